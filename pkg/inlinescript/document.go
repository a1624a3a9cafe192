package inlinescript

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"
)

// Attribute is one name/value pair of a script element, in source order.
type Attribute struct {
	Name  string
	Value string
}

// ScriptNode is a typed view of one <script> element.
type ScriptNode struct {
	Attributes []Attribute
	// Text is the inline body. It is empty when the element has no children.
	Text string

	// position among all script elements in document order
	index int
	// set when the element holds anything other than a single text node
	unsupported bool
	node        *html.Node
}

// Attr returns the value of the named attribute.
func (s ScriptNode) Attr(name string) (string, bool) {
	for _, a := range s.Attributes {
		if a.Name == name {
			return a.Value, true
		}
	}
	return "", false
}

// IsExternal reports whether the element loads its code through src.
func (s ScriptNode) IsExternal() bool {
	_, ok := s.Attr("src")
	return ok
}

// Document is one parsed HTML file together with the exact text it came from.
// Rewrites are applied to the source text, never to a re-serialized tree.
type Document struct {
	source string
	dom    *goquery.Document
}

// Parse builds a Document from raw HTML.
func Parse(source string) (*Document, error) {
	dom, err := goquery.NewDocumentFromReader(strings.NewReader(source))
	if err != nil {
		return nil, fmt.Errorf("parse html: %w", err)
	}
	return &Document{source: source, dom: dom}, nil
}

// Source returns the text the document was parsed from.
func (d *Document) Source() string {
	return d.source
}

// Render serializes the parse tree.
func (d *Document) Render() (string, error) {
	return d.dom.Html()
}

// Scripts returns the script elements selected by p, in document order.
func (d *Document) Scripts(p Policy) []ScriptNode {
	all := d.dom.Find("script").Nodes
	position := make(map[*html.Node]int, len(all))
	for i, n := range all {
		position[n] = i
	}

	selected := d.dom.Find(p.Selector())
	scripts := make([]ScriptNode, 0, selected.Length())
	for _, n := range selected.Nodes {
		scripts = append(scripts, newScriptNode(n, position[n]))
	}
	return scripts
}

func newScriptNode(n *html.Node, index int) ScriptNode {
	s := ScriptNode{index: index, node: n}
	for _, a := range n.Attr {
		name := a.Key
		if a.Namespace != "" {
			name = a.Namespace + ":" + a.Key
		}
		s.Attributes = append(s.Attributes, Attribute{Name: name, Value: a.Val})
	}

	child := n.FirstChild
	switch {
	case child == nil:
	case child.Type == html.TextNode && child.NextSibling == nil:
		s.Text = child.Data
	default:
		s.unsupported = true
	}
	return s
}

// outerHTML is the serialized form of the element as the parser sees it.
func (s ScriptNode) outerHTML() (string, error) {
	var buf bytes.Buffer
	if err := html.Render(&buf, s.node); err != nil {
		return "", err
	}
	return buf.String(), nil
}
