package editor

import (
	"strings"

	"github.com/JohannesKaufmann/dom"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// walk visits n and its descendants in document order. Returning false from
// fn skips the children of the node just visited. fn must not detach nodes;
// collect first, mutate after.
func walk(n *html.Node, fn func(*html.Node) bool) {
	if !fn(n) {
		return
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		walk(c, fn)
	}
}

func findFirst(n *html.Node, pred func(*html.Node) bool) *html.Node {
	var found *html.Node
	walk(n, func(c *html.Node) bool {
		if found != nil {
			return false
		}
		if c.Type == html.ElementNode && pred(c) {
			found = c
			return false
		}
		return true
	})
	return found
}

// elements collects the element nodes in scope matching pred, in document order.
func (d *Document) elements(pred func(*html.Node) bool) []*html.Node {
	var out []*html.Node
	walk(d.scope, func(n *html.Node) bool {
		if n != d.scope && n.Type == html.ElementNode && pred(n) {
			out = append(out, n)
		}
		return true
	})
	return out
}

func newElement(a atom.Atom, attrs ...string) *html.Node {
	n := &html.Node{Type: html.ElementNode, Data: a.String(), DataAtom: a}
	for i := 0; i+1 < len(attrs); i += 2 {
		n.Attr = append(n.Attr, html.Attribute{Key: attrs[i], Val: attrs[i+1]})
	}
	return n
}

func getAttr(n *html.Node, key string) (string, bool) {
	return dom.GetAttribute(n, key)
}

// setAttr updates the attribute in place, or appends it.
func setAttr(n *html.Node, key, val string) {
	for i, a := range n.Attr {
		if a.Namespace == "" && a.Key == key {
			n.Attr[i].Val = val
			return
		}
	}
	n.Attr = append(n.Attr, html.Attribute{Key: key, Val: val})
}

func removeAttr(n *html.Node, key string) {
	kept := n.Attr[:0]
	for _, a := range n.Attr {
		if a.Namespace == "" && a.Key == key {
			continue
		}
		kept = append(kept, a)
	}
	n.Attr = kept
}

func hasClass(n *html.Node, class string) bool {
	return dom.HasClass(n, class)
}

type styleDecl struct {
	prop string
	val  string
}

func parseStyle(s string) []styleDecl {
	var decls []styleDecl
	for _, part := range strings.Split(s, ";") {
		prop, val, ok := strings.Cut(part, ":")
		if !ok {
			continue
		}
		prop = strings.ToLower(strings.TrimSpace(prop))
		if prop == "" {
			continue
		}
		decls = append(decls, styleDecl{prop: prop, val: strings.TrimSpace(val)})
	}
	return decls
}

func formatStyle(decls []styleDecl) string {
	parts := make([]string, 0, len(decls))
	for _, d := range decls {
		parts = append(parts, d.prop+": "+d.val)
	}
	if len(parts) == 0 {
		return ""
	}
	return strings.Join(parts, "; ") + ";"
}

// mergeStyle sets each override on top of the declarations in s.
func mergeStyle(s string, overrides []styleDecl) string {
	decls := parseStyle(s)
	for _, o := range overrides {
		replaced := false
		for i := range decls {
			if decls[i].prop == o.prop {
				decls[i].val = o.val
				replaced = true
			}
		}
		if !replaced {
			decls = append(decls, o)
		}
	}
	return formatStyle(decls)
}

// hasStyle reports whether s declares every one of want, values included.
func hasStyle(s string, want []styleDecl) bool {
	decls := parseStyle(s)
outer:
	for _, w := range want {
		for _, d := range decls {
			if d.prop == w.prop && strings.EqualFold(d.val, w.val) {
				continue outer
			}
		}
		return false
	}
	return true
}

// withoutStyle drops the named properties from s.
func withoutStyle(s string, props []styleDecl) string {
	var kept []styleDecl
outer:
	for _, d := range parseStyle(s) {
		for _, p := range props {
			if d.prop == p.prop {
				continue outer
			}
		}
		kept = append(kept, d)
	}
	return formatStyle(kept)
}
