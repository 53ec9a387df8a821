// Package model defines core data structures for tagmonster.
package model

// SymbolKind indicates the syntactic kind of a symbol.
type SymbolKind string

const (
	Class    SymbolKind = "class"
	Function SymbolKind = "function"
	Method   SymbolKind = "method"
	Type     SymbolKind = "type"
	Module   SymbolKind = "module"
)

// Letter returns the single-letter ctags kind for k.
func (k SymbolKind) Letter() string {
	switch k {
	case Class:
		return "c"
	case Function:
		return "f"
	case Method:
		return "m"
	case Type:
		return "t"
	case Module:
		return "M"
	}
	return ""
}

// Tag is one symbol record read from a tags file. Tags are values and are
// never modified after parsing.
type Tag struct {
	Name    string
	File    string // Defining source file; absolute once read from a tags file
	Pattern string // Raw locator as written by the generator, delimiters included
	Scope   string
	Line    int // 1-based; 0 when the tags file carries no line information
	Kind    string
	Fields  map[string]string
}

// HasPattern reports whether the tag carries a search pattern locator.
func (t Tag) HasPattern() bool {
	return t.Pattern != ""
}

// Header holds the pseudo-tag metadata found at the top of a tags file.
type Header struct {
	Format         int
	Sorted         int
	ProgramAuthor  string
	ProgramName    string
	ProgramURL     string
	ProgramVersion string
}

// Definition is a symbol definition extracted from source by the generator.
type Definition struct {
	Name       string
	SymbolKind SymbolKind
	Line       int // 1-based
	File       string
	Text       string // Full text of the defining line
	Parent     string // Enclosing class or receiver type, if any
	Signature  string
}
