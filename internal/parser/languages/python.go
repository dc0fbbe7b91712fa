package languages

import (
	"nexus/internal/parser"

	"github.com/smacker/go-tree-sitter/python"
)

func RegisterPython(r *parser.Registry) {
	r.Register(&parser.TreeSitterGrammar{
		Lang:     "python",
		Exts:     []string{"py", "pyw"},
		Language: python.GetLanguage(),
		Kinds: map[string]parser.NodeKind{
			"function_definition": parser.KindFunction,
			"class_definition":    parser.KindClass,
			"comment":             parser.KindComment,
		},
	})
}
