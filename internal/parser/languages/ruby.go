package languages

import (
	"nexus/internal/parser"

	"github.com/smacker/go-tree-sitter/ruby"
)

func RegisterRuby(r *parser.Registry) {
	r.Register(&parser.TreeSitterGrammar{
		Lang:     "ruby",
		Exts:     []string{"rb"},
		Language: ruby.GetLanguage(),
		Kinds: map[string]parser.NodeKind{
			"method":           parser.KindFunction,
			"singleton_method": parser.KindFunction,
			"class":            parser.KindClass,
			"singleton_class":  parser.KindClass,
			"module":           parser.KindContainer,
			"comment":          parser.KindComment,
		},
	})
}
