package export

import (
	"bytes"
	"fmt"
	"math"
	"strconv"
	"strings"
	"unicode"

	"github.com/JohannesKaufmann/dom"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// stripInvalidXMLChars removes characters not allowed in XML 1.0 content.
func stripInvalidXMLChars(s string) string {
	return strings.Map(func(r rune) rune {
		if r == 0x9 || r == 0xA || r == 0xD ||
			(r >= 0x20 && r <= 0xD7FF) ||
			(r >= 0xE000 && r <= 0xFFFD) ||
			(r >= 0x10000 && r <= 0x10FFFF) {
			return r
		}
		return -1
	}, s)
}

// cleanDimension turns a width/height value into a plain integer, or "".
func cleanDimension(val string) string {
	val = strings.TrimSpace(val)
	for _, suffix := range []string{"px", "em", "rem", "%", "pt"} {
		val = strings.TrimSuffix(val, suffix)
	}
	f, err := strconv.ParseFloat(val, 64)
	if err != nil || f < 0 {
		return ""
	}
	return strconv.Itoa(int(math.Round(f)))
}

// cleanID replaces whitespace in an id with hyphens.
func cleanID(val string) string {
	return strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) {
			return '-'
		}
		return r
	}, strings.TrimSpace(val))
}

var (
	phrasingTags = set("h1", "h2", "h3", "h4", "h5", "h6", "p",
		"span", "b", "strong", "i", "em", "a",
		"code", "samp", "kbd", "var", "sub", "sup",
		"small", "s", "u", "mark", "abbr", "dfn",
		"cite", "del", "ins", "bdi", "bdo", "time", "data")

	// structural blocks keep their insides when lifted out of phrasing content
	structuralTags = set("table", "pre", "ul", "ol", "dl", "blockquote", "figure")

	blockTags = set("p", "div", "h1", "h2", "h3", "h4", "h5", "h6",
		"ul", "ol", "li", "dl", "dt", "dd",
		"blockquote", "section", "article", "aside",
		"header", "footer", "main", "figure", "figcaption", "nav",
		"table", "pre", "hr", "address")

	dimensionTags = set("img", "td", "th", "col", "colgroup", "table")

	allowedTags = set("div", "p", "h1", "h2", "h3", "h4", "h5", "h6", "ul", "ol", "li", "dl", "dt", "dd",
		"address", "hr", "pre", "blockquote", "cite", "em", "strong", "small", "s", "dfn",
		"abbr", "data", "time", "code", "var", "samp", "kbd", "sub", "sup", "i", "b", "u",
		"mark", "ruby", "rt", "rp", "bdi", "bdo", "span", "br", "wbr", "ins", "del", "img",
		"table", "caption", "colgroup", "col", "tbody", "thead", "tfoot", "tr", "td", "th",
		"section", "article", "aside", "header", "footer", "main", "figure", "figcaption", "nav",
		"a", "html", "head", "body")

	allowedAttrs = set("id", "class", "style", "title", "lang", "dir",
		"href", "src", "alt", "width", "height",
		"colspan", "rowspan", "scope", "headers",
		"cite", "datetime", "value", "type",
		"rel", "media", "start", "reversed", "epub:type")
)

func set(keys ...string) map[string]bool {
	m := make(map[string]bool, len(keys))
	for _, k := range keys {
		m[k] = true
	}
	return m
}

var voidElements = map[atom.Atom]bool{
	atom.Area: true, atom.Base: true, atom.Br: true, atom.Col: true,
	atom.Embed: true, atom.Hr: true, atom.Img: true, atom.Input: true,
	atom.Link: true, atom.Meta: true, atom.Source: true, atom.Wbr: true,
}

func element(tag string) *html.Node {
	return &html.Node{Type: html.ElementNode, Data: tag, DataAtom: atom.Lookup([]byte(tag))}
}

// sanitizer rewrites a parsed body into EPUB 3 XHTML.
type sanitizer struct {
	ids  map[string]bool // ids present in the input
	used map[string]bool // ids already emitted
}

// sanitizeXHTML converts a body fragment to XHTML accepted by EPUB 3
// readers: whitelisted elements and attributes, no remote images, embeds
// and media turned into links, and content models repaired.
func sanitizeXHTML(body string) string {
	body = stripInvalidXMLChars(body)
	doc, err := html.Parse(strings.NewReader(body))
	if err != nil {
		return body
	}

	s := &sanitizer{ids: map[string]bool{}, used: map[string]bool{}}
	walkElements(doc, func(n *html.Node) {
		if id := cleanID(dom.GetAttributeOr(n, "id", "")); id != "" {
			s.ids[id] = true
		}
	})
	s.clean(doc)

	var buf bytes.Buffer
	renderXHTML(&buf, doc)
	out := buf.String()
	if i := strings.Index(out, "<body>"); i >= 0 {
		out = out[i+len("<body>"):]
		if j := strings.LastIndex(out, "</body>"); j >= 0 {
			out = out[:j]
		}
	}
	return out
}

func walkElements(n *html.Node, fn func(*html.Node)) {
	if n.Type == html.ElementNode {
		fn(n)
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		walkElements(c, fn)
	}
}

// clean returns the node to keep in place of n, or nil to drop it.
func (s *sanitizer) clean(n *html.Node) *html.Node {
	if n.Type == html.CommentNode {
		return nil
	}
	if n.Type == html.ElementNode {
		switch n.Data {
		case "video", "audio", "iframe":
			return mediaLink(n)
		case "source":
			return nil
		case "picture":
			for c := n.FirstChild; c != nil; c = c.NextSibling {
				if c.Type == html.ElementNode && c.Data == "img" {
					n.RemoveChild(c)
					return s.clean(c)
				}
			}
			return nil
		case "img":
			src := strings.TrimSpace(dom.GetAttributeOr(n, "src", ""))
			if src == "" || strings.HasPrefix(src, "http://") || strings.HasPrefix(src, "https://") || strings.HasPrefix(src, "//") {
				return nil
			}
		}
		if !allowedTags[n.Data] {
			return nil
		}
		s.filterAttrs(n)
		if phrasingTags[n.Data] {
			liftBlocks(n)
		}
		if n.Data == "dl" {
			fixDefinitionList(n)
		}
		if n.Data == "figcaption" && (n.Parent == nil || n.Parent.Data != "figure") {
			n.Data, n.DataAtom = "p", atom.P
		}
	}

	for c := n.FirstChild; c != nil; {
		next := c.NextSibling
		if r := s.clean(c); r == nil {
			n.RemoveChild(c)
		} else if r != c {
			n.InsertBefore(r, c)
			n.RemoveChild(c)
		}
		c = next
	}
	return n
}

// mediaLink replaces a video, audio or iframe with a link to its source.
func mediaLink(n *html.Node) *html.Node {
	src := dom.GetAttributeOr(n, "src", "")
	for c := n.FirstChild; src == "" && c != nil; c = c.NextSibling {
		if c.Type == html.ElementNode && c.Data == "source" {
			src = dom.GetAttributeOr(c, "src", "")
		}
	}
	src = strings.TrimSpace(src)
	if src == "" {
		return nil
	}
	label := "Media"
	if n.Data == "iframe" {
		label = "Embed"
	}
	a := element("a")
	a.Attr = []html.Attribute{{Key: "href", Val: src}}
	a.AppendChild(&html.Node{Type: html.TextNode, Data: "[" + label + ": " + src + "]"})
	return a
}

func (s *sanitizer) filterAttrs(n *html.Node) {
	var kept []html.Attribute
	for _, a := range n.Attr {
		if !allowedAttrs[a.Key] {
			continue
		}
		switch a.Key {
		case "href":
			if frag, ok := strings.CutPrefix(a.Val, "#"); ok && frag != "" && !s.ids[frag] {
				continue
			}
			if strings.HasPrefix(strings.ToLower(strings.TrimSpace(a.Val)), "javascript:") {
				continue
			}
		case "id":
			id := cleanID(a.Val)
			if id == "" {
				continue
			}
			if s.used[id] {
				for i := 2; ; i++ {
					if c := fmt.Sprintf("%s-%d", id, i); !s.used[c] {
						id = c
						break
					}
				}
			}
			s.used[id] = true
			a.Val = id
		case "width", "height":
			if !dimensionTags[n.Data] {
				continue
			}
			if a.Val = cleanDimension(a.Val); a.Val == "" || a.Val == "0" {
				continue
			}
		}
		kept = append(kept, a)
	}
	n.Attr = kept
}

// liftBlocks fixes block content inside a phrasing element. Structural
// blocks move above the outermost phrasing ancestor; other blocks are
// unwrapped in place.
func liftBlocks(n *html.Node) {
	for c := n.FirstChild; c != nil; {
		next := c.NextSibling
		if c.Type != html.ElementNode || !blockTags[c.Data] {
			c = next
			continue
		}
		if structuralTags[c.Data] && n.Parent != nil {
			n.RemoveChild(c)
			target := n
			for target.Parent != nil && target.Parent.Type == html.ElementNode && phrasingTags[target.Parent.Data] {
				target = target.Parent
			}
			if target.Parent != nil {
				target.Parent.InsertBefore(c, target)
			}
		} else {
			for cc := c.FirstChild; cc != nil; {
				cnext := cc.NextSibling
				c.RemoveChild(cc)
				n.InsertBefore(cc, c)
				cc = cnext
			}
			n.RemoveChild(c)
		}
		c = next
	}
}

// fixDefinitionList makes a dl hold dt/dd pairs.
func fixDefinitionList(n *html.Node) {
	for c := n.FirstChild; c != nil; {
		next := c.NextSibling
		switch {
		case c.Type == html.TextNode && strings.TrimSpace(c.Data) != "":
			dt := element("dt")
			n.InsertBefore(dt, c)
			n.RemoveChild(c)
			dt.AppendChild(c)
		case c.Type == html.ElementNode && c.Data != "dt" && c.Data != "dd" && c.Data != "div":
			dd := element("dd")
			n.InsertBefore(dd, c)
			n.RemoveChild(c)
			dd.AppendChild(c)
		}
		c = next
	}

	seenDt := false
	var lastDt *html.Node
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if c.Type != html.ElementNode {
			continue
		}
		switch c.Data {
		case "dt":
			seenDt = true
			lastDt = c
		case "dd", "div":
			if c.Data == "dd" && !seenDt {
				n.InsertBefore(element("dt"), c)
				seenDt = true
			}
			lastDt = nil
		}
	}
	if lastDt != nil {
		n.InsertBefore(element("dd"), lastDt.NextSibling)
	}
	if !seenDt {
		n.InsertBefore(element("dt"), n.FirstChild)
	}
	if !hasChild(n, "dd") && !hasChild(n, "div") {
		n.AppendChild(element("dd"))
	}
}

func hasChild(n *html.Node, tag string) bool {
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if c.Type == html.ElementNode && c.Data == tag {
			return true
		}
	}
	return false
}

// renderXHTML renders a tree with self-closing void elements.
func renderXHTML(buf *bytes.Buffer, n *html.Node) {
	switch n.Type {
	case html.TextNode:
		buf.WriteString(html.EscapeString(n.Data))
	case html.ElementNode:
		buf.WriteByte('<')
		buf.WriteString(n.Data)
		for _, a := range n.Attr {
			buf.WriteByte(' ')
			buf.WriteString(a.Key)
			buf.WriteString(`="`)
			buf.WriteString(html.EscapeString(a.Val))
			buf.WriteByte('"')
		}
		if voidElements[n.DataAtom] && n.FirstChild == nil {
			buf.WriteString("/>")
			return
		}
		buf.WriteByte('>')
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			renderXHTML(buf, c)
		}
		buf.WriteString("</")
		buf.WriteString(n.Data)
		buf.WriteByte('>')
	case html.DocumentNode:
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			renderXHTML(buf, c)
		}
	case html.RawNode:
		buf.WriteString(n.Data)
	}
}
