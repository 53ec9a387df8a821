// Package index aggregates parsed tags into an immutable symbol index.
package index

import (
	"context"
	"regexp"
	"runtime"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/phobologic/tagmonster/internal/model"
	"github.com/phobologic/tagmonster/internal/tagsfile"
)

// Source is one tags file and the scope its tags are grouped under.
type Source struct {
	Scope string
	Path  string
}

// Entry is one loaded occurrence of a name and the scope it came from.
type Entry struct {
	Name  string
	Scope string
}

// Index maps tag names to records and groups names by scope. An Index is
// never modified after Load returns it, so concurrent readers need no lock.
type Index struct {
	names   []string
	origin  []string // scope of names[i]
	lookup  map[string]model.Tag
	scopes  []string
	byScope map[string][]string
}

// Empty returns an index with no tags.
func Empty() *Index {
	return &Index{
		lookup:  map[string]model.Tag{},
		byScope: map[string][]string{},
	}
}

// Load parses every source and builds a new index. Sources are parsed
// concurrently; tags are merged in source order. Any unreadable tags file
// fails the whole load. Malformed lines are returned as warnings.
func Load(ctx context.Context, sources []Source, ignore *regexp.Regexp) (*Index, []tagsfile.Warning, error) {
	files := make([]*tagsfile.File, len(sources))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(runtime.GOMAXPROCS(0))
	for i, src := range sources {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			tf, err := tagsfile.Parse(src.Path, src.Scope, ignore)
			if err != nil {
				return err
			}
			files[i] = tf
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, nil, err
	}

	idx := Empty()
	var warnings []tagsfile.Warning
	for i, tf := range files {
		idx.addScope(sources[i].Scope)
		for _, tag := range tf.Tags {
			idx.add(tag)
		}
		warnings = append(warnings, tf.Warnings...)
	}
	return idx, warnings, nil
}

// New builds an index directly from tags, in order. Scopes are registered
// in order of first appearance.
func New(tags []model.Tag) *Index {
	idx := Empty()
	for _, tag := range tags {
		idx.addScope(tag.Scope)
		idx.add(tag)
	}
	return idx
}

func (idx *Index) addScope(scope string) {
	if _, ok := idx.byScope[scope]; ok {
		return
	}
	idx.scopes = append(idx.scopes, scope)
	idx.byScope[scope] = []string{}
}

func (idx *Index) add(tag model.Tag) {
	idx.names = append(idx.names, tag.Name)
	idx.origin = append(idx.origin, tag.Scope)
	idx.byScope[tag.Scope] = append(idx.byScope[tag.Scope], tag.Name)
	idx.lookup[tag.Name] = tag
}

// Lookup returns the record for name. When the tags contained duplicates,
// the last one loaded wins.
func (idx *Index) Lookup(name string) (model.Tag, bool) {
	tag, ok := idx.lookup[name]
	return tag, ok
}

// Names returns every loaded tag name in load order, duplicates included.
func (idx *Index) Names() []string {
	return clone(idx.names)
}

// Search returns the names starting with prefix in load order, duplicates
// included. An empty prefix matches every name.
func (idx *Index) Search(prefix string) []string {
	out := []string{}
	for _, name := range idx.names {
		if strings.HasPrefix(name, prefix) {
			out = append(out, name)
		}
	}
	return out
}

// Entries is Search with each name's scope attached.
func (idx *Index) Entries(prefix string) []Entry {
	out := []Entry{}
	for i, name := range idx.names {
		if strings.HasPrefix(name, prefix) {
			out = append(out, Entry{Name: name, Scope: idx.origin[i]})
		}
	}
	return out
}

// Len is the number of loaded tags, duplicates included.
func (idx *Index) Len() int {
	return len(idx.names)
}

// Scopes returns the configured scopes in configuration order.
func (idx *Index) Scopes() []string {
	return clone(idx.scopes)
}

// NamesForScope returns the names loaded under scope in load order. Unknown
// scopes yield an empty slice.
func (idx *Index) NamesForScope(scope string) []string {
	return clone(idx.byScope[scope])
}

func clone(s []string) []string {
	out := make([]string, len(s))
	copy(out, s)
	return out
}
