package parser

import (
	"context"
	"strings"

	sitter "github.com/smacker/go-tree-sitter"
)

const maxNameLen = 120

// identifierTypes are node types that can stand in for a missing name field.
var identifierTypes = map[string]bool{
	"identifier":          true,
	"type_identifier":     true,
	"simple_identifier":   true,
	"field_identifier":    true,
	"property_identifier": true,
	"constant":            true,
	"name":                true,
}

// TreeSitterGrammar is a grammar variant backed by a tree-sitter language.
// Kinds maps grammar node types to chunking kinds; unmapped nodes are folded
// into their nearest mapped ancestor.
type TreeSitterGrammar struct {
	Lang     string
	Exts     []string
	Language *sitter.Language
	Kinds    map[string]NodeKind
	// NameFields are the field names tried, in order, to find a node's
	// symbol name. Defaults to "name".
	NameFields []string
}

func (g *TreeSitterGrammar) Name() string         { return g.Lang }
func (g *TreeSitterGrammar) Extensions() []string { return g.Exts }

func (g *TreeSitterGrammar) Build(ctx context.Context, src []byte) (*Node, int, error) {
	p := sitter.NewParser()
	defer p.Close()
	p.SetLanguage(g.Language)

	tree, err := p.ParseCtx(ctx, nil, src)
	if err != nil {
		return nil, 0, err
	}
	defer tree.Close()

	root := &Node{
		Type:      tree.RootNode().Type(),
		Kind:      KindOther,
		StartByte: 0,
		EndByte:   uint32(len(src)),
		StartLine: 1,
		EndLine:   lineAt(src, len(src)),
	}
	var syntaxErrors int
	g.fold(tree.RootNode(), root, src, &syntaxErrors)
	return root, syntaxErrors, nil
}

func (g *TreeSitterGrammar) fold(n *sitter.Node, parent *Node, src []byte, syntaxErrors *int) {
	count := int(n.ChildCount())
	for i := 0; i < count; i++ {
		c := n.Child(i)
		if c == nil {
			continue
		}
		if c.IsMissing() {
			*syntaxErrors++
			continue
		}
		if c.Type() == "ERROR" {
			*syntaxErrors++
			parent.Children = append(parent.Children, g.node(c, KindError, src))
			continue
		}
		kind, ok := g.Kinds[c.Type()]
		if !ok {
			g.fold(c, parent, src, syntaxErrors)
			continue
		}
		out := g.node(c, kind, src)
		parent.Children = append(parent.Children, out)
		g.fold(c, out, src, syntaxErrors)
	}
}

func (g *TreeSitterGrammar) node(n *sitter.Node, kind NodeKind, src []byte) *Node {
	out := &Node{
		Type:      n.Type(),
		Kind:      kind,
		StartByte: n.StartByte(),
		EndByte:   n.EndByte(),
		StartLine: int(n.StartPoint().Row) + 1,
		EndLine:   int(n.EndPoint().Row) + 1,
	}
	if kind != KindComment && kind != KindError {
		out.Name = g.nameOf(n, src)
	}
	return out
}

func (g *TreeSitterGrammar) nameOf(n *sitter.Node, src []byte) string {
	fields := g.NameFields
	if len(fields) == 0 {
		fields = []string{"name"}
	}
	for _, f := range fields {
		if c := n.ChildByFieldName(f); c != nil {
			return cleanName(c.Content(src))
		}
	}

	named := int(n.NamedChildCount())
	for i := 0; i < named; i++ {
		c := n.NamedChild(i)
		if c != nil && identifierTypes[c.Type()] {
			return cleanName(c.Content(src))
		}
	}

	// Go type_declaration → type_spec name, and similar wrappers.
	if named > 0 {
		if c := n.NamedChild(0); c != nil {
			if nc := c.ChildByFieldName("name"); nc != nil {
				return cleanName(nc.Content(src))
			}
		}
	}

	// Anonymous functions bound to a declarator (const f = () => {}).
	if p := n.Parent(); p != nil {
		if nc := p.ChildByFieldName("name"); nc != nil {
			return cleanName(nc.Content(src))
		}
	}
	return ""
}

func cleanName(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		s = s[:i]
	}
	s = strings.TrimSpace(s)
	if len(s) > maxNameLen {
		s = s[:maxNameLen]
	}
	return s
}

// TextGrammar is the variant for files without declarations (markup,
// configuration, scripts). Its tree is a single root node.
type TextGrammar struct {
	Lang string
	Exts []string
}

func (g *TextGrammar) Name() string         { return g.Lang }
func (g *TextGrammar) Extensions() []string { return g.Exts }

func (g *TextGrammar) Build(_ context.Context, src []byte) (*Node, int, error) {
	return &Node{
		Type:      "document",
		Kind:      KindOther,
		EndByte:   uint32(len(src)),
		StartLine: 1,
		EndLine:   lineAt(src, len(src)),
	}, 0, nil
}
