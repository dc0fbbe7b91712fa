package languages

import (
	"nexus/internal/parser"

	"github.com/smacker/go-tree-sitter/csharp"
)

func RegisterCSharp(r *parser.Registry) {
	r.Register(&parser.TreeSitterGrammar{
		Lang:     "csharp",
		Exts:     []string{"cs"},
		Language: csharp.GetLanguage(),
		Kinds: map[string]parser.NodeKind{
			"method_declaration":                parser.KindFunction,
			"constructor_declaration":           parser.KindFunction,
			"local_function_statement":          parser.KindFunction,
			"class_declaration":                 parser.KindClass,
			"struct_declaration":                parser.KindClass,
			"interface_declaration":             parser.KindClass,
			"enum_declaration":                  parser.KindClass,
			"record_declaration":                parser.KindClass,
			"namespace_declaration":             parser.KindContainer,
			"file_scoped_namespace_declaration": parser.KindContainer,
			"comment":                           parser.KindComment,
		},
	})
}
