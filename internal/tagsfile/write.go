package tagsfile

import (
	"bufio"
	"fmt"
	"io"
	"path/filepath"
	"sort"
	"strconv"

	"github.com/phobologic/tagmonster/internal/model"
)

// Write serializes tags in the extended ctags format, sorted by name. The
// File field of each tag is written as given, with forward slashes.
func Write(w io.Writer, h model.Header, tags []model.Tag) error {
	sorted := make([]model.Tag, len(tags))
	copy(sorted, tags)
	sort.SliceStable(sorted, func(i, j int) bool {
		a, b := &sorted[i], &sorted[j]
		if a.Name != b.Name {
			return a.Name < b.Name
		}
		if a.File != b.File {
			return a.File < b.File
		}
		return a.Line < b.Line
	})

	bw := bufio.NewWriter(w)
	writeHeader(bw, h)
	for i := range sorted {
		writeEntry(bw, &sorted[i])
	}
	return bw.Flush()
}

func writeHeader(w *bufio.Writer, h model.Header) {
	format := h.Format
	if format == 0 {
		format = 2
	}
	fmt.Fprintf(w, "!_TAG_FILE_FORMAT\t%d\t/extended format; --format=1 will not append ;\" to lines/\n", format)
	fmt.Fprintf(w, "!_TAG_FILE_SORTED\t1\t/0=unsorted, 1=sorted, 2=foldcase/\n")
	for _, kv := range [][2]string{
		{"!_TAG_PROGRAM_AUTHOR", h.ProgramAuthor},
		{"!_TAG_PROGRAM_NAME", h.ProgramName},
		{"!_TAG_PROGRAM_URL", h.ProgramURL},
		{"!_TAG_PROGRAM_VERSION", h.ProgramVersion},
	} {
		if kv[1] != "" {
			fmt.Fprintf(w, "%s\t%s\t//\n", kv[0], kv[1])
		}
	}
}

func writeEntry(w *bufio.Writer, t *model.Tag) {
	locator := t.Pattern
	if locator == "" {
		locator = strconv.Itoa(t.Line)
	}
	fmt.Fprintf(w, "%s\t%s\t%s%s", t.Name, filepath.ToSlash(t.File), locator, extensionStart)
	if t.Kind != "" {
		fmt.Fprintf(w, "\t%s", t.Kind)
	}
	if t.Line > 0 && t.Pattern != "" {
		fmt.Fprintf(w, "\tline:%d", t.Line)
	}

	keys := make([]string, 0, len(t.Fields))
	for k := range t.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Fprintf(w, "\t%s:%s", k, t.Fields[k])
	}
	w.WriteByte('\n')
}
