package parser

import (
	"path/filepath"
	"sort"
	"strings"
	"sync"
)

// Registry maps file extensions to grammars.
type Registry struct {
	mu    sync.RWMutex
	exts  map[string]Grammar // extension (without dot) → grammar
	names map[string]Grammar // language name → grammar
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		exts:  make(map[string]Grammar),
		names: make(map[string]Grammar),
	}
}

// Register adds a grammar under its name and extensions. A later
// registration for the same extension replaces the earlier one.
func (r *Registry) Register(g Grammar) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.names[g.Name()] = g
	for _, ext := range g.Extensions() {
		r.exts[strings.ToLower(ext)] = g
	}
}

// Lookup returns the grammar for a file path based on its extension, or nil.
func (r *Registry) Lookup(path string) Grammar {
	ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(path), "."))
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.exts[ext]
}

// LanguageName returns the language name for a file path, or "".
func (r *Registry) LanguageName(path string) string {
	if g := r.Lookup(path); g != nil {
		return g.Name()
	}
	return ""
}

// Extensions returns the set of all registered file extensions (without dot).
func (r *Registry) Extensions() map[string]bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	exts := make(map[string]bool, len(r.exts))
	for ext := range r.exts {
		exts[ext] = true
	}
	return exts
}

// Languages returns the registered language names in sorted order.
func (r *Registry) Languages() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.names))
	for name := range r.names {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
