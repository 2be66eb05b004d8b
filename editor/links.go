package editor

import (
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// neutralHref is the navigation target of a neutralized anchor.
const neutralHref = "javascript:void(0)"

// disabledLinkStyle is the visual affordance of a neutralized anchor.
var disabledLinkStyle = []styleDecl{
	{prop: "pointer-events", val: "none"},
	{prop: "opacity", val: "0.6"},
	{prop: "cursor", val: "not-allowed"},
}

// LinkRecord is the saved state of a neutralized anchor.
type LinkRecord struct {
	OriginalHref  string
	HadHref       bool
	OriginalStyle string
	HadStyle      bool

	// legacy anchors arrived already neutralized: target kept in data-href
	// and the disabled style declared in full.
	legacy bool
}

func isAnchor(n *html.Node) bool { return n.DataAtom == atom.A }

// NeutralizeLinks disables navigation on every anchor in scope that has no
// link record yet and returns how many were neutralized.
func (d *Document) NeutralizeLinks() int {
	count := 0
	for _, a := range d.elements(isAnchor) {
		m := d.metaFor(a)
		if m.link != nil {
			continue
		}

		href, hadHref := getAttr(a, "href")
		style, hadStyle := getAttr(a, "style")
		rec := &LinkRecord{
			OriginalHref:  href,
			HadHref:       hadHref,
			OriginalStyle: style,
			HadStyle:      hadStyle,
		}
		if saved, ok := getAttr(a, "data-href"); ok && href == neutralHref && hasStyle(style, disabledLinkStyle) {
			stripped := withoutStyle(style, disabledLinkStyle)
			rec = &LinkRecord{
				OriginalHref:  saved,
				HadHref:       true,
				OriginalStyle: stripped,
				HadStyle:      stripped != "",
				legacy:        true,
			}
		}

		m.link = rec
		setAttr(a, "href", neutralHref)
		setAttr(a, "style", mergeStyle(style, disabledLinkStyle))
		count++
	}
	return count
}

// RestoreLinks writes every anchor's saved target and style back and clears
// its record. Anchors without a record are left untouched.
func (d *Document) RestoreLinks() int {
	count := 0
	for _, a := range d.elements(isAnchor) {
		m, ok := d.meta[a]
		if !ok || m.link == nil {
			continue
		}
		rec := m.link

		if rec.HadHref {
			setAttr(a, "href", rec.OriginalHref)
		} else {
			removeAttr(a, "href")
		}
		if rec.HadStyle {
			setAttr(a, "style", rec.OriginalStyle)
		} else {
			removeAttr(a, "style")
		}
		if rec.legacy {
			removeAttr(a, "data-href")
		}

		m.link = nil
		count++
	}
	return count
}

// Link returns the record of a neutralized anchor.
func (d *Document) Link(n *html.Node) (LinkRecord, bool) {
	m, ok := d.meta[n]
	if !ok || m.link == nil {
		return LinkRecord{}, false
	}
	return *m.link, true
}
