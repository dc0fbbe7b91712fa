package languages

import (
	"nexus/internal/parser"

	"github.com/smacker/go-tree-sitter/javascript"
)

// jsKinds is shared by the JavaScript and TypeScript variants.
var jsKinds = map[string]parser.NodeKind{
	"function_declaration":           parser.KindFunction,
	"generator_function_declaration": parser.KindFunction,
	"function_expression":            parser.KindFunction,
	"function":                       parser.KindFunction,
	"arrow_function":                 parser.KindFunction,
	"method_definition":              parser.KindFunction,
	"class_declaration":              parser.KindClass,
	"comment":                        parser.KindComment,
}

func RegisterJavaScript(r *parser.Registry) {
	r.Register(&parser.TreeSitterGrammar{
		Lang:     "javascript",
		Exts:     []string{"js", "jsx", "mjs", "cjs"},
		Language: javascript.GetLanguage(),
		Kinds:    jsKinds,
	})
}
