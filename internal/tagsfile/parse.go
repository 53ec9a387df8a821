// Package tagsfile reads and writes ctags-format tags files.
package tagsfile

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"

	"github.com/phobologic/tagmonster/internal/model"
)

// extensionStart separates the locator from extension fields.
const extensionStart = `;"`

// File is the parsed content of one tags file.
type File struct {
	Path     string
	Header   model.Header
	Tags     []model.Tag
	Warnings []Warning
}

// CompileIgnore compiles an ignore expression. The expression is anchored at
// the start of the tag name. An empty expression ignores nothing and yields
// a nil regexp.
func CompileIgnore(expr string) (*regexp.Regexp, error) {
	if expr == "" {
		return nil, nil
	}
	re, err := regexp.Compile(`^(?:` + expr + `)`)
	if err != nil {
		return nil, fmt.Errorf("compiling ignore regex %q: %w", expr, err)
	}
	return re, nil
}

// Parse reads the tags file at path. Every tag is stamped with scope, and
// tags whose name matches ignore are dropped. Relative file references are
// resolved against the directory that holds the tags file.
func Parse(path, scope string, ignore *regexp.Regexp) (*File, error) {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return nil, &ConfigError{Path: path, Err: err}
	}

	f, err := os.Open(absPath)
	if err != nil {
		return nil, &ConfigError{Path: path, Err: err}
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return nil, &ConfigError{Path: path, Err: err}
	}
	if info.IsDir() {
		return nil, &ConfigError{Path: path, Err: errors.New("is a directory")}
	}

	tf, err := ParseReader(f, absPath, scope, ignore)
	if err != nil {
		return nil, &ConfigError{Path: path, Err: err}
	}
	return tf, nil
}

// ParseReader parses tags from r. path is the absolute location of the tags
// file and is used as the base for relative file references and in warnings.
func ParseReader(r io.Reader, path, scope string, ignore *regexp.Regexp) (*File, error) {
	tf := &File{Path: path}
	baseDir := filepath.Dir(path)
	br := bufio.NewReader(r)

	for lineNo := 1; ; lineNo++ {
		raw, readErr := br.ReadString('\n')
		if readErr != nil && readErr != io.EOF {
			return nil, readErr
		}
		line := strings.TrimRight(raw, "\r\n")

		switch {
		case line == "":
		case strings.HasPrefix(line, "!_"):
			if w, ok := parseHeader(&tf.Header, line); !ok {
				tf.Warnings = append(tf.Warnings, Warning{Path: path, Line: lineNo, Reason: w})
			}
		default:
			tag, reason := parseEntry(line)
			if reason != "" {
				tf.Warnings = append(tf.Warnings, Warning{Path: path, Line: lineNo, Reason: reason})
				break
			}
			if ignore != nil && ignore.MatchString(tag.Name) {
				break
			}
			tag.Scope = scope
			tag.File = resolveFile(baseDir, tag.File)
			tf.Tags = append(tf.Tags, tag)
		}

		if readErr == io.EOF {
			return tf, nil
		}
	}
}

// parseEntry splits one tag line. A non-empty reason means the line is
// malformed and must be skipped.
func parseEntry(line string) (model.Tag, string) {
	parts := strings.SplitN(line, "\t", 3)
	if len(parts) < 3 {
		return model.Tag{}, "expected name, file and locator separated by tabs"
	}
	tag := model.Tag{Name: parts[0], File: parts[1]}
	if tag.Name == "" {
		return model.Tag{}, "empty tag name"
	}
	if tag.File == "" {
		return model.Tag{}, "empty file reference"
	}

	locator, ext := parts[2], ""
	if i := strings.LastIndex(parts[2], extensionStart); i > 0 {
		locator, ext = parts[2][:i], parts[2][i+len(extensionStart):]
	}
	if locator == "" {
		return model.Tag{}, "empty locator"
	}
	if isDigits(locator) {
		n, err := strconv.Atoi(locator)
		if err != nil || n < 1 {
			return model.Tag{}, fmt.Sprintf("invalid line number locator %q", locator)
		}
		tag.Line = n
	} else {
		tag.Pattern = locator
	}

	if reason := parseExtensions(&tag, ext); reason != "" {
		return model.Tag{}, reason
	}
	return tag, ""
}

func parseExtensions(tag *model.Tag, ext string) string {
	if !strings.HasPrefix(ext, "\t") {
		return ""
	}
	kindFound := false
	for _, field := range strings.Split(ext[1:], "\t") {
		if field == "" {
			continue
		}
		k, v, ok := strings.Cut(field, ":")
		if !ok {
			if kindFound {
				return fmt.Sprintf("unexpected extension field %q", field)
			}
			tag.Kind = field
			kindFound = true
			continue
		}
		switch k {
		case "kind":
			tag.Kind = v
			kindFound = true
		case "line":
			n, err := strconv.Atoi(v)
			if err != nil {
				return fmt.Sprintf("invalid line field %q", v)
			}
			if tag.Line == 0 {
				tag.Line = n
			}
		default:
			if tag.Fields == nil {
				tag.Fields = make(map[string]string)
			}
			tag.Fields[k] = v
		}
	}
	return ""
}

// parseHeader records a pseudo-tag. It returns a warning and false for
// unknown or unparseable headers.
func parseHeader(h *model.Header, line string) (string, bool) {
	elems := strings.Split(line, "\t")
	if len(elems) < 2 {
		return fmt.Sprintf("header %q has no value", elems[0]), false
	}
	value := elems[1]
	switch elems[0] {
	case "!_TAG_FILE_FORMAT":
		n, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Sprintf("invalid tags file format %q", value), false
		}
		if h.Format == 0 {
			h.Format = n
		}
	case "!_TAG_FILE_SORTED":
		n, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Sprintf("invalid sort value %q", value), false
		}
		h.Sorted = n
	case "!_TAG_PROGRAM_AUTHOR":
		h.ProgramAuthor = value
	case "!_TAG_PROGRAM_NAME":
		h.ProgramName = value
	case "!_TAG_PROGRAM_URL":
		h.ProgramURL = value
	case "!_TAG_PROGRAM_VERSION":
		h.ProgramVersion = value
	default:
		// Universal ctags emits many more pseudo-tags (kinds, roles,
		// extras); they carry nothing the index needs.
		if strings.HasPrefix(elems[0], "!_TAG_") {
			return "", true
		}
		return fmt.Sprintf("unknown header %q", elems[0]), false
	}
	return "", true
}

func resolveFile(baseDir, file string) string {
	file = filepath.FromSlash(file)
	if filepath.IsAbs(file) {
		return filepath.Clean(file)
	}
	return filepath.Join(baseDir, file)
}

func isDigits(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return s != ""
}
