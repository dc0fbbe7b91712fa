package languages

import (
	"nexus/internal/parser"

	"github.com/smacker/go-tree-sitter/swift"
)

func RegisterSwift(r *parser.Registry) {
	r.Register(&parser.TreeSitterGrammar{
		Lang:     "swift",
		Exts:     []string{"swift"},
		Language: swift.GetLanguage(),
		Kinds: map[string]parser.NodeKind{
			"function_declaration": parser.KindFunction,
			"init_declaration":     parser.KindFunction,
			"class_declaration":    parser.KindClass,
			"protocol_declaration": parser.KindClass,
			"comment":              parser.KindComment,
			"multiline_comment":    parser.KindComment,
		},
	})
}
