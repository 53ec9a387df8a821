// Package parse extracts symbol definitions from source files using tree-sitter.
package parse

import (
	"context"
	"strings"

	sitter "github.com/smacker/go-tree-sitter"

	"github.com/phobologic/tagmonster/internal/lang"
	"github.com/phobologic/tagmonster/internal/model"
)

var captureKinds = map[string]model.SymbolKind{
	"definition.class":    model.Class,
	"definition.function": model.Function,
	"definition.method":   model.Method,
	"definition.type":     model.Type,
	"definition.module":   model.Module,
}

// ExtractDefinitions parses a source file and returns its definitions in
// source order. The parser must be created for l.
// filePath is used only for Definition.File.
func ExtractDefinitions(l *lang.Language, parser *sitter.Parser, query *sitter.Query, source []byte, filePath string) []model.Definition {
	if len(source) == 0 {
		return nil
	}

	tree, err := parser.ParseCtx(context.Background(), nil, source)
	if err != nil {
		return nil
	}
	defer tree.Close()

	qc := sitter.NewQueryCursor()
	defer qc.Close()
	qc.Exec(query, tree.RootNode())

	lines := strings.Split(string(source), "\n")
	var defs []model.Definition

	for {
		match, ok := qc.NextMatch()
		if !ok {
			break
		}
		match = qc.FilterPredicates(match, source)

		var nameNode, defNode *sitter.Node
		var kind model.SymbolKind
		for _, c := range match.Captures {
			cname := query.CaptureNameForId(c.Index)
			if cname == "name" {
				nameNode = c.Node
			} else if k, ok := captureKinds[cname]; ok {
				kind = k
				defNode = c.Node
			}
		}
		if nameNode == nil || defNode == nil {
			continue
		}

		var parent string
		switch kind {
		case model.Function:
			if l.FindMethodClass != nil {
				if cls := l.FindMethodClass(defNode, source); cls != "" {
					kind = model.Method
					parent = cls
				}
			}
		case model.Method:
			if l.FindReceiverType != nil {
				parent = l.FindReceiverType(defNode, source)
			}
		}

		var signature string
		if l.ExtractSignature != nil {
			signature = l.ExtractSignature(defNode, kind, source)
		}

		row := int(nameNode.StartPoint().Row)
		var text string
		if row < len(lines) {
			text = strings.TrimSuffix(lines[row], "\r")
		}

		defs = append(defs, model.Definition{
			Name:       lang.NodeText(nameNode, source),
			SymbolKind: kind,
			Line:       row + 1,
			File:       filePath,
			Text:       text,
			Parent:     parent,
			Signature:  signature,
		})
	}

	return defs
}
