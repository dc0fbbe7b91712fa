package languages

import (
	"nexus/internal/parser"

	"github.com/smacker/go-tree-sitter/kotlin"
)

func RegisterKotlin(r *parser.Registry) {
	r.Register(&parser.TreeSitterGrammar{
		Lang:     "kotlin",
		Exts:     []string{"kt", "kts"},
		Language: kotlin.GetLanguage(),
		Kinds: map[string]parser.NodeKind{
			"function_declaration": parser.KindFunction,
			"class_declaration":    parser.KindClass,
			"object_declaration":   parser.KindClass,
			"line_comment":         parser.KindComment,
			"multiline_comment":    parser.KindComment,
			"comment":              parser.KindComment,
		},
	})
}
