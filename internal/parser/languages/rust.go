package languages

import (
	"nexus/internal/parser"

	"github.com/smacker/go-tree-sitter/rust"
)

func RegisterRust(r *parser.Registry) {
	r.Register(&parser.TreeSitterGrammar{
		Lang:     "rust",
		Exts:     []string{"rs"},
		Language: rust.GetLanguage(),
		Kinds: map[string]parser.NodeKind{
			"function_item":    parser.KindFunction,
			"macro_definition": parser.KindFunction,
			"struct_item":      parser.KindClass,
			"enum_item":        parser.KindClass,
			"union_item":       parser.KindClass,
			"trait_item":       parser.KindClass,
			"impl_item":        parser.KindClass,
			"mod_item":         parser.KindContainer,
			"line_comment":     parser.KindComment,
			"block_comment":    parser.KindComment,
		},
		// impl blocks carry the implemented type in "type".
		NameFields: []string{"name", "type"},
	})
}
