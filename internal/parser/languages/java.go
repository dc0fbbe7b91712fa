package languages

import (
	"nexus/internal/parser"

	"github.com/smacker/go-tree-sitter/java"
)

func RegisterJava(r *parser.Registry) {
	r.Register(&parser.TreeSitterGrammar{
		Lang:     "java",
		Exts:     []string{"java"},
		Language: java.GetLanguage(),
		Kinds: map[string]parser.NodeKind{
			"method_declaration":          parser.KindFunction,
			"constructor_declaration":     parser.KindFunction,
			"class_declaration":           parser.KindClass,
			"interface_declaration":       parser.KindClass,
			"enum_declaration":            parser.KindClass,
			"record_declaration":          parser.KindClass,
			"annotation_type_declaration": parser.KindClass,
			"line_comment":                parser.KindComment,
			"block_comment":               parser.KindComment,
		},
	})
}
