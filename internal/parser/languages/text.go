package languages

import "nexus/internal/parser"

// RegisterText adds the plain-text variants. Files of these types never
// contain declarations and are indexed as a single chunk.
func RegisterText(r *parser.Registry) {
	r.Register(&parser.TextGrammar{Lang: "markdown", Exts: []string{"md", "markdown"}})
	r.Register(&parser.TextGrammar{Lang: "yaml", Exts: []string{"yaml", "yml"}})
	r.Register(&parser.TextGrammar{Lang: "toml", Exts: []string{"toml"}})
	r.Register(&parser.TextGrammar{Lang: "json", Exts: []string{"json"}})
	r.Register(&parser.TextGrammar{Lang: "shell", Exts: []string{"sh", "bash", "zsh"}})
	r.Register(&parser.TextGrammar{Lang: "text", Exts: []string{"txt"}})
}
