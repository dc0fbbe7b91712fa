// Package languages holds the grammar variants known to the parser.
package languages

import "nexus/internal/parser"

// RegisterAll registers every supported language.
func RegisterAll(r *parser.Registry) {
	RegisterRust(r)
	RegisterPython(r)
	RegisterJavaScript(r)
	RegisterTypeScript(r)
	RegisterGo(r)
	RegisterJava(r)
	RegisterCSharp(r)
	RegisterRuby(r)
	RegisterSwift(r)
	RegisterKotlin(r)
	RegisterText(r)
}

// NewRegistry returns a registry with every supported language registered.
func NewRegistry() *parser.Registry {
	r := parser.NewRegistry()
	RegisterAll(r)
	return r
}
