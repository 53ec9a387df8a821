package lang

import (
	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/golang"

	"github.com/phobologic/tagmonster/internal/model"
)

func init() {
	Languages["go"] = &Language{
		Name:             "go",
		Extensions:       []string{".go"},
		Scope:            "source.go",
		lang:             golang.GetLanguage(),
		FindReceiverType: goFindReceiverType,
		ExtractSignature: goExtractSignature,
	}
}

// goFindReceiverType extracts the receiver type name from a method_declaration node.
// Navigates: method_declaration → parameter_list (receiver) → parameter_declaration → type.
func goFindReceiverType(node *sitter.Node, source []byte) string {
	receiver := node.ChildByFieldName("receiver")
	if receiver == nil {
		return ""
	}
	for j := 0; j < int(receiver.NamedChildCount()); j++ {
		param := receiver.NamedChild(j)
		if param.Type() == "parameter_declaration" {
			return goExtractTypeName(param, source)
		}
	}
	return ""
}

// goExtractTypeName extracts the type name from a parameter_declaration,
// unwrapping pointer_type and generic instantiation if present.
func goExtractTypeName(param *sitter.Node, source []byte) string {
	typ := param.ChildByFieldName("type")
	for typ != nil {
		switch typ.Type() {
		case "type_identifier":
			return NodeText(typ, source)
		case "pointer_type", "generic_type":
			typ = typ.NamedChild(0)
		default:
			return ""
		}
	}
	return ""
}

func goExtractSignature(defNode *sitter.Node, kind model.SymbolKind, source []byte) string {
	if kind == model.Type {
		if t := defNode.ChildByFieldName("type"); t != nil {
			switch t.Type() {
			case "struct_type":
				return "struct"
			case "interface_type":
				return "interface"
			}
			return CollapseWhitespace(NodeText(t, source))
		}
		return ""
	}

	var params, result string
	if p := defNode.ChildByFieldName("parameters"); p != nil {
		params = CollapseWhitespace(NodeText(p, source))
	}
	if r := defNode.ChildByFieldName("result"); r != nil {
		result = CollapseWhitespace(NodeText(r, source))
	}
	if result != "" {
		return params + " " + result
	}
	return params
}
