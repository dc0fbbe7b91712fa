package languages

import (
	"maps"

	"nexus/internal/parser"

	"github.com/smacker/go-tree-sitter/typescript/tsx"
	"github.com/smacker/go-tree-sitter/typescript/typescript"
)

func tsKinds() map[string]parser.NodeKind {
	kinds := maps.Clone(jsKinds)
	kinds["abstract_class_declaration"] = parser.KindClass
	kinds["interface_declaration"] = parser.KindClass
	kinds["type_alias_declaration"] = parser.KindClass
	kinds["enum_declaration"] = parser.KindClass
	kinds["internal_module"] = parser.KindContainer
	kinds["module"] = parser.KindContainer
	return kinds
}

func RegisterTypeScript(r *parser.Registry) {
	r.Register(&parser.TreeSitterGrammar{
		Lang:     "typescript",
		Exts:     []string{"ts", "mts", "cts"},
		Language: typescript.GetLanguage(),
		Kinds:    tsKinds(),
	})
	r.Register(&parser.TreeSitterGrammar{
		Lang:     "tsx",
		Exts:     []string{"tsx"},
		Language: tsx.GetLanguage(),
		Kinds:    tsKinds(),
	})
}
