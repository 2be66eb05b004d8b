package editor

import (
	"strings"

	"github.com/JohannesKaufmann/dom"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// opaqueText lists elements whose text is never turned into editable runs:
// raw text, embeds, and form controls a <span> cannot live in.
var opaqueText = map[atom.Atom]bool{
	atom.Script:    true,
	atom.Style:     true,
	atom.Noscript:  true,
	atom.Template:  true,
	atom.Textarea:  true,
	atom.Title:     true,
	atom.Iframe:    true,
	atom.Noembed:   true,
	atom.Noframes:  true,
	atom.Xmp:       true,
	atom.Plaintext: true,
	atom.Select:    true,
	atom.Option:    true,
	atom.Optgroup:  true,
	atom.Datalist:  true,
	atom.Svg:       true,
	atom.Math:      true,
}

// textRuns returns the non-blank text nodes in scope that are not yet inside
// an editable container, in document order.
func (d *Document) textRuns() []*html.Node {
	var runs []*html.Node
	walk(d.scope, func(n *html.Node) bool {
		switch n.Type {
		case html.ElementNode:
			if opaqueText[n.DataAtom] || d.hasAny(n, MarkEditable|MarkReplaceControl) {
				return false
			}
		case html.TextNode:
			if strings.TrimSpace(n.Data) != "" {
				runs = append(runs, n)
			}
		}
		return true
	})
	return runs
}

// MaterializeText replaces every pending text run with an editable container
// and returns the new containers.
func (d *Document) MaterializeText() []*html.Node {
	runs := d.textRuns()
	containers := make([]*html.Node, 0, len(runs))
	for _, t := range runs {
		containers = append(containers, d.replaceTextRun(t))
	}
	return containers
}

// replaceTextRun moves the text node itself into the container, so the
// original text is kept byte for byte.
func (d *Document) replaceTextRun(t *html.Node) *html.Node {
	span := newElement(atom.Span, "contenteditable", "true", "class", ClassTextNode)
	dom.WrapNode(t, span)
	d.mark(span, MarkEditable)
	return span
}

// setText replaces the content of an editable container.
func (d *Document) setText(container *html.Node, text string) {
	for c := container.FirstChild; c != nil; c = container.FirstChild {
		container.RemoveChild(c)
	}
	container.AppendChild(&html.Node{Type: html.TextNode, Data: text})
}

// Text returns the current text of a node.
func (d *Document) Text(n *html.Node) string {
	return dom.CollectText(n)
}
