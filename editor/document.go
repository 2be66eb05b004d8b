// Package editor turns a canonical HTML string into a live tree that a user
// can edit in place (text runs and images) and reconciles the edits back into
// a canonical string.
package editor

import (
	"bytes"
	"errors"
	"fmt"
	"strings"

	"github.com/JohannesKaufmann/dom"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// NodeID identifies a node of a live tree for the lifetime of one edit session.
type NodeID int

// Mark flags nodes created (or adopted) by the editor's transforms.
type Mark uint8

const (
	MarkEditable Mark = 1 << iota
	MarkImageWrapper
	MarkReplaceControl
)

// Class names written on marked nodes. They are what a UI styles, and what
// lets output saved with markers kept be adopted again on the next session.
const (
	ClassTextNode     = "blockeditor-textnode"
	ClassImageWrapper = "blockeditor-image-wrapper"
	ClassReplaceBtn   = "blockeditor-replace-btn"
)

type nodeMeta struct {
	id    NodeID
	marks Mark
	link  *LinkRecord
	cmd   *Command
}

// Document is a mutable handle over a parsed HTML tree plus the editor's
// per-node metadata. It is not safe for concurrent use; Session serializes
// access to it.
type Document struct {
	root  *html.Node // document node, or a synthetic container for fragments
	scope *html.Node // <body> for full documents, root otherwise
	full  bool

	meta   map[*html.Node]*nodeMeta
	byID   map[NodeID]*html.Node
	nextID NodeID
}

func newDocument() *Document {
	container := &html.Node{Type: html.ElementNode, Data: "div", DataAtom: atom.Div}
	return &Document{
		root:  container,
		scope: container,
		meta:  map[*html.Node]*nodeMeta{},
		byID:  map[NodeID]*html.Node{},
	}
}

// isFullDocument reports whether the markup carries its own document
// structure rather than being body content. Only the leading markup counts:
// a doctype, or <html>, <head> or <body> as the first tag after blank text
// and comments.
func isFullDocument(s string) bool {
	z := html.NewTokenizer(strings.NewReader(s))
	for {
		switch z.Next() {
		case html.ErrorToken:
			return false
		case html.CommentToken:
		case html.DoctypeToken:
			return true
		case html.TextToken:
			if strings.TrimSpace(string(z.Text())) != "" {
				return false
			}
		case html.StartTagToken, html.SelfClosingTagToken:
			name, _ := z.TagName()
			switch atom.Lookup(name) {
			case atom.Html, atom.Head, atom.Body:
				return true
			}
			return false
		default:
			return false
		}
	}
}

// Parse materializes a canonical document. Fragments are parsed the way a
// <div>'s innerHTML would be. On failure the returned document is empty but
// usable, and the error says why.
func Parse(canonical string) (*Document, error) {
	d := newDocument()
	if strings.TrimSpace(canonical) == "" {
		return d, nil
	}

	if isFullDocument(canonical) {
		root, err := html.Parse(strings.NewReader(canonical))
		if err != nil {
			return d, fmt.Errorf("parsing document: %w", err)
		}
		body := findFirst(root, func(n *html.Node) bool { return n.DataAtom == atom.Body })
		if body == nil {
			return d, errors.New("parsed document has no body")
		}
		d.root, d.scope, d.full = root, body, true
	} else {
		nodes, err := html.ParseFragment(strings.NewReader(canonical), fragmentContext())
		if err != nil {
			return d, fmt.Errorf("parsing fragment: %w", err)
		}
		for _, n := range nodes {
			d.root.AppendChild(n)
		}
	}

	d.adoptMarkers()
	return d, nil
}

func fragmentContext() *html.Node {
	return &html.Node{Type: html.ElementNode, Data: "div", DataAtom: atom.Div}
}

// Render serializes the tree. Full documents render whole; fragments render
// the children of the container only.
func (d *Document) Render() (string, error) {
	var buf bytes.Buffer
	if d.full {
		if err := html.Render(&buf, d.root); err != nil {
			return "", err
		}
		return buf.String(), nil
	}
	for c := d.root.FirstChild; c != nil; c = c.NextSibling {
		if err := html.Render(&buf, c); err != nil {
			return "", err
		}
	}
	return buf.String(), nil
}

// AppendFragment parses markup in the context of the editable scope and
// appends the resulting nodes at its end.
func (d *Document) AppendFragment(fragment string) ([]*html.Node, error) {
	ctx := d.scope
	if !d.full {
		ctx = fragmentContext()
	}
	nodes, err := html.ParseFragment(strings.NewReader(fragment), ctx)
	if err != nil {
		return nil, fmt.Errorf("parsing fragment: %w", err)
	}
	for _, n := range nodes {
		d.scope.AppendChild(n)
	}
	d.adoptMarkers()
	return nodes, nil
}

// AppendHTML appends a fragment to a canonical document without starting a
// session. Fragment documents are concatenated byte for byte; full documents
// get the fragment inside <body>.
func AppendHTML(canonical, fragment string) (string, error) {
	if !isFullDocument(canonical) {
		return canonical + fragment, nil
	}
	d, err := Parse(canonical)
	if err != nil {
		return "", err
	}
	if _, err := d.AppendFragment(fragment); err != nil {
		return "", err
	}
	return d.Render()
}

func (d *Document) metaFor(n *html.Node) *nodeMeta {
	m, ok := d.meta[n]
	if !ok {
		m = &nodeMeta{}
		d.meta[n] = m
	}
	return m
}

// ID returns the node's identifier, assigning one on first use.
func (d *Document) ID(n *html.Node) NodeID {
	m := d.metaFor(n)
	if m.id == 0 {
		d.nextID++
		m.id = d.nextID
		d.byID[m.id] = n
	}
	return m.id
}

// AssignIDs gives every editable container and image in scope an identifier,
// in document order. Identifiers already assigned are kept, so for a fresh
// session the numbering depends only on the canonical document.
func (d *Document) AssignIDs() {
	walk(d.scope, func(n *html.Node) bool {
		if n.Type == html.ElementNode && (isImage(n) || d.hasAny(n, MarkEditable)) {
			d.ID(n)
		}
		return true
	})
}

// Node resolves an identifier to a node that is still attached to the tree.
func (d *Document) Node(id NodeID) (*html.Node, bool) {
	n, ok := d.byID[id]
	if !ok || !d.attached(n) {
		return nil, false
	}
	return n, true
}

func (d *Document) attached(n *html.Node) bool {
	for p := n; p != nil; p = p.Parent {
		if p == d.root {
			return true
		}
	}
	return false
}

func (d *Document) hasAny(n *html.Node, m Mark) bool {
	meta, ok := d.meta[n]
	return ok && meta.marks&m != 0
}

func (d *Document) mark(n *html.Node, m Mark) {
	d.metaFor(n).marks |= m
}

// Marked returns the nodes in scope carrying any of the given marks, in
// document order.
func (d *Document) Marked(m Mark) []*html.Node {
	return d.elements(func(n *html.Node) bool { return d.hasAny(n, m) })
}

// adoptMarkers records marker classes present in the markup itself, so that
// output saved with markers kept is never wrapped a second time.
func (d *Document) adoptMarkers() {
	walk(d.scope, func(n *html.Node) bool {
		if n.Type != html.ElementNode {
			return true
		}
		switch {
		case hasClass(n, ClassTextNode):
			d.mark(n, MarkEditable)
		case hasClass(n, ClassImageWrapper):
			d.mark(n, MarkImageWrapper)
		case hasClass(n, ClassReplaceBtn):
			d.mark(n, MarkReplaceControl)
		}
		return true
	})
}

// StripMarkers removes everything the editor injected: replace controls are
// dropped, wrappers and editable containers are unwrapped in place.
func (d *Document) StripMarkers() {
	for _, n := range d.Marked(MarkReplaceControl) {
		dom.RemoveNode(n)
	}
	for _, n := range d.Marked(MarkImageWrapper | MarkEditable) {
		dom.UnwrapNode(n)
	}
}
