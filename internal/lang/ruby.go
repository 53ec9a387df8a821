package lang

import (
	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/ruby"

	"github.com/phobologic/tagmonster/internal/model"
)

func init() {
	Languages["ruby"] = &Language{
		Name:             "ruby",
		Extensions:       []string{".rb"},
		Scope:            "source.ruby",
		lang:             ruby.GetLanguage(),
		FindMethodClass:  rubyFindMethodClass,
		FindReceiverType: rubyFindMethodClass,
		ExtractSignature: rubyExtractSignature,
	}
}

// rubyFindMethodClass walks the parent chain looking for a class or module node.
func rubyFindMethodClass(funcNode *sitter.Node, source []byte) string {
	node := funcNode.Parent()
	for node != nil {
		switch node.Type() {
		case "class", "module":
			return rubyClassName(node, source)
		case "method", "singleton_method":
			// Nested defs belong to the outer method, not a class body.
			return ""
		}
		node = node.Parent()
	}
	return ""
}

func rubyClassName(node *sitter.Node, source []byte) string {
	if name := node.ChildByFieldName("name"); name != nil {
		return NodeText(name, source)
	}
	return ""
}

func rubyExtractSignature(defNode *sitter.Node, kind model.SymbolKind, source []byte) string {
	switch kind {
	case model.Class:
		if sc := defNode.ChildByFieldName("superclass"); sc != nil {
			return CollapseWhitespace(NodeText(sc, source))
		}
		return ""
	case model.Module:
		return ""
	}
	if params := defNode.ChildByFieldName("parameters"); params != nil {
		return CollapseWhitespace(NodeText(params, source))
	}
	return ""
}
