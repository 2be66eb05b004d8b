package editor

import (
	"strconv"

	"github.com/JohannesKaufmann/dom"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// Action names a command a control can dispatch to the session.
type Action string

const ActionReplaceImage Action = "replace-image"

// Command is the descriptor attached to a control node: what to do, and to
// which node.
type Command struct {
	Action Action
	Target NodeID
}

func isImage(n *html.Node) bool { return n.DataAtom == atom.Img }

// WrapImages gives every image in scope a wrapper carrying a replace control
// and returns how many images were newly wrapped. Images whose parent is
// already a wrapper are left in place; their wrapper only gets its control
// checked.
func (d *Document) WrapImages() int {
	count := 0
	for _, img := range d.elements(isImage) {
		if d.wrapImage(img) {
			count++
		}
	}
	return count
}

func (d *Document) wrapImage(img *html.Node) bool {
	if p := img.Parent; p != nil && d.hasAny(p, MarkImageWrapper) {
		d.ensureControl(p, img)
		return false
	}
	if img.Parent == nil {
		return false
	}

	wrapper := dom.WrapNode(img, newElement(atom.Div, "class", ClassImageWrapper))
	d.mark(wrapper, MarkImageWrapper)
	d.ensureControl(wrapper, img)
	return true
}

// ensureControl makes sure wrapper holds exactly one replace control bound to
// img for this session.
func (d *Document) ensureControl(wrapper, img *html.Node) {
	var ctl *html.Node
	for c := wrapper.FirstChild; c != nil; c = c.NextSibling {
		if c.Type == html.ElementNode && d.hasAny(c, MarkReplaceControl) {
			ctl = c
			break
		}
	}
	if ctl == nil {
		ctl = newElement(atom.Button, "type", "button", "class", ClassReplaceBtn)
		ctl.AppendChild(&html.Node{Type: html.TextNode, Data: "Replace"})
		wrapper.AppendChild(ctl)
		d.mark(ctl, MarkReplaceControl)
	}

	cmd := &Command{Action: ActionReplaceImage, Target: d.ID(img)}
	d.metaFor(ctl).cmd = cmd
	setAttr(ctl, "data-command", string(cmd.Action))
	setAttr(ctl, "data-target", strconv.Itoa(int(cmd.Target)))
}

// Commands returns the descriptors attached to the controls in scope.
func (d *Document) Commands() []Command {
	var out []Command
	for _, ctl := range d.Marked(MarkReplaceControl) {
		if m := d.meta[ctl]; m.cmd != nil {
			out = append(out, *m.cmd)
		}
	}
	return out
}

// Images returns the identifiers of all images in scope, in document order.
func (d *Document) Images() []NodeID {
	imgs := d.elements(isImage)
	ids := make([]NodeID, 0, len(imgs))
	for _, img := range imgs {
		ids = append(ids, d.ID(img))
	}
	return ids
}
