// Package config loads tagmonster settings.
package config

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/phobologic/tagmonster/internal/index"
	"github.com/phobologic/tagmonster/internal/locate"
	"github.com/phobologic/tagmonster/internal/tagsfile"
)

// EnvConfig names the environment variable that selects the settings file.
const EnvConfig = "TAGMONSTER_CONFIG"

// DefaultFile is the settings file looked up when nothing else is given.
const DefaultFile = "tagmonster.yaml"

// DefaultCacheDir is where completion caches go unless configured.
const DefaultCacheDir = "completion_cache"

// ErrInvalid wraps every validation failure.
var ErrInvalid = errors.New("invalid configuration")

// TagFile is one tags file and the scope its symbols complete in.
type TagFile struct {
	Scope    string `yaml:"scope" json:"scope"`
	FilePath string `yaml:"file_path" json:"file_path"`
}

// Config holds the settings consumed by the index engine plus a few host
// options. Relative paths are resolved against BaseDir.
type Config struct {
	TagFiles           []TagFile `yaml:"tag_files" json:"tag_files"`
	IgnoreTagRegex     string    `yaml:"ignore_tag_regex" json:"ignore_tag_regex"`
	RebuildTagsCommand string    `yaml:"rebuild_tags_command" json:"rebuild_tags_command"`

	CompletionCacheDir string `yaml:"completion_cache_dir,omitempty" json:"completion_cache_dir,omitempty"`
	ContextLines       int    `yaml:"context_lines" json:"context_lines"`
	WorkingDir         string `yaml:"working_dir,omitempty" json:"working_dir,omitempty"`

	// BaseDir anchors relative paths. LoadConfig sets it to the directory
	// of the settings file.
	BaseDir string `yaml:"-" json:"-"`
}

// GetDefaultConfig returns the settings used when a file omits a key.
func GetDefaultConfig() *Config {
	return &Config{
		CompletionCacheDir: DefaultCacheDir,
		ContextLines:       locate.DefaultRadius,
	}
}

// DefaultPath returns the settings path from the environment, falling back
// to DefaultFile in the current directory.
func DefaultPath() string {
	if p := os.Getenv(EnvConfig); p != "" {
		return p
	}
	return DefaultFile
}

// LoadConfig reads and validates a settings file. Files ending in .json or
// .sublime-settings are decoded as JSON, anything else as YAML.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := GetDefaultConfig()
	if err := decode(path, data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
	}

	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("resolving config path: %w", err)
	}
	cfg.BaseDir = filepath.Dir(abs)

	if err := validateConfig(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func decode(path string, data []byte, cfg *Config) error {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		return json.Unmarshal(data, cfg)
	case ".sublime-settings":
		return json.Unmarshal(stripJSONC(data), cfg)
	default:
		// Unknown keys are ignored: settings files are often shared with
		// the editor.
		err := yaml.NewDecoder(bytes.NewReader(data)).Decode(cfg)
		if errors.Is(err, io.EOF) {
			return nil
		}
		return err
	}
}

// Marshal renders cfg as YAML.
func Marshal(cfg *Config) ([]byte, error) {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal config: %w", err)
	}
	return data, nil
}

// SaveConfig writes cfg as YAML, creating parent directories.
func SaveConfig(cfg *Config, path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := Marshal(cfg)
	if err != nil {
		return err
	}

	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

func validateConfig(c *Config) error {
	for i, tf := range c.TagFiles {
		if strings.TrimSpace(tf.FilePath) == "" {
			return fmt.Errorf("%w: tag_files[%d]: file_path is required", ErrInvalid, i)
		}
		if strings.TrimSpace(tf.Scope) == "" {
			return fmt.Errorf("%w: tag_files[%d]: scope is required", ErrInvalid, i)
		}
	}
	if _, err := tagsfile.CompileIgnore(c.IgnoreTagRegex); err != nil {
		return fmt.Errorf("%w: ignore_tag_regex: %v", ErrInvalid, err)
	}
	if c.ContextLines < 0 {
		return fmt.Errorf("%w: context_lines must not be negative", ErrInvalid)
	}
	return nil
}

// Ignore compiles the ignore expression; nil means nothing is ignored.
func (c *Config) Ignore() (*regexp.Regexp, error) {
	return tagsfile.CompileIgnore(c.IgnoreTagRegex)
}

// Sources returns the configured tags files with absolute paths.
func (c *Config) Sources() []index.Source {
	out := make([]index.Source, len(c.TagFiles))
	for i, tf := range c.TagFiles {
		out[i] = index.Source{Scope: tf.Scope, Path: c.Resolve(tf.FilePath)}
	}
	return out
}

// CacheDir returns the absolute completion cache directory.
func (c *Config) CacheDir() string {
	dir := c.CompletionCacheDir
	if dir == "" {
		dir = DefaultCacheDir
	}
	return c.resolveFrom(c.Dir(), dir)
}

// Dir returns the directory the rebuild command runs in.
func (c *Config) Dir() string {
	if c.WorkingDir != "" {
		return c.Resolve(c.WorkingDir)
	}
	return c.Resolve(".")
}

// Resolve makes path absolute relative to BaseDir, or the current
// directory when BaseDir is unset.
func (c *Config) Resolve(path string) string {
	return c.resolveFrom(c.BaseDir, path)
}

func (c *Config) resolveFrom(base, path string) string {
	if filepath.IsAbs(path) {
		return filepath.Clean(path)
	}
	if base == "" {
		if abs, err := filepath.Abs(path); err == nil {
			return abs
		}
		return path
	}
	return filepath.Join(base, path)
}
