// Package completion writes per-scope completion cache files.
package completion

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

const (
	filePrefix = "tagmonster_"
	fileExt    = ".sublime-completions"
)

// Cache is the on-disk shape of one completion file.
type Cache struct {
	Scope       string   `json:"scope"`
	Completions []string `json:"completions"`
}

// Source is what the writer needs from an index.
type Source interface {
	Scopes() []string
	NamesForScope(scope string) []string
}

// FileName returns the cache file name for the n-th scope.
func FileName(n int) string {
	return fmt.Sprintf("%s%d%s", filePrefix, n, fileExt)
}

// Write replaces the contents of dir with one cache file per scope of src.
// Regular files already in dir are removed first; subdirectories are left
// alone. It returns the paths written, in scope order.
func Write(src Source, dir string) ([]string, error) {
	if err := ensureDir(dir); err != nil {
		return nil, err
	}
	if err := clearFiles(dir); err != nil {
		return nil, err
	}

	var written []string
	for n, scope := range src.Scopes() {
		path := filepath.Join(dir, FileName(n))
		data, err := encode(Cache{Scope: scope, Completions: src.NamesForScope(scope)})
		if err != nil {
			return written, fmt.Errorf("encoding scope %s: %w", scope, err)
		}
		if err := os.WriteFile(path, data, 0o644); err != nil {
			return written, fmt.Errorf("writing %s: %w", path, err)
		}
		written = append(written, path)
	}
	return written, nil
}

// Read decodes one cache file.
func Read(path string) (Cache, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Cache{}, err
	}
	var c Cache
	if err := json.Unmarshal(data, &c); err != nil {
		return Cache{}, fmt.Errorf("decoding %s: %w", path, err)
	}
	return c, nil
}

func encode(c Cache) ([]byte, error) {
	if c.Completions == nil {
		c.Completions = []string{}
	}
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "    ")
	if err := enc.Encode(c); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func ensureDir(dir string) error {
	info, err := os.Stat(dir)
	switch {
	case err == nil && info.IsDir():
		return nil
	case err == nil:
		return fmt.Errorf("completion cache %s: not a directory", dir)
	case !os.IsNotExist(err):
		return fmt.Errorf("completion cache %s: %w", dir, err)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating completion cache: %w", err)
	}
	return nil
}

func clearFiles(dir string) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return fmt.Errorf("listing completion cache: %w", err)
	}
	for _, e := range entries {
		if !e.Type().IsRegular() {
			continue
		}
		if err := os.Remove(filepath.Join(dir, e.Name())); err != nil {
			return fmt.Errorf("clearing completion cache: %w", err)
		}
	}
	return nil
}
