package languages

import (
	"nexus/internal/parser"

	"github.com/smacker/go-tree-sitter/golang"
)

func RegisterGo(r *parser.Registry) {
	r.Register(&parser.TreeSitterGrammar{
		Lang:     "go",
		Exts:     []string{"go"},
		Language: golang.GetLanguage(),
		Kinds: map[string]parser.NodeKind{
			"function_declaration": parser.KindFunction,
			"method_declaration":   parser.KindFunction,
			"func_literal":         parser.KindFunction,
			"type_declaration":     parser.KindClass,
			"comment":              parser.KindComment,
		},
	})
}
