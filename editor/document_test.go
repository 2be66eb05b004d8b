package editor

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/net/html"
)

// normalize parses and renders markup without transforms, giving the form
// every saved document is compared against.
func normalize(t *testing.T, s string) string {
	t.Helper()
	d, err := Parse(s)
	require.NoError(t, err)
	out, err := d.Render()
	require.NoError(t, err)
	return out
}

func TestParseFragmentAndFullDocument(t *testing.T) {
	tests := []struct {
		name string
		in   string
		full bool
	}{
		{"fragment", `<div><p>Hello</p></div>`, false},
		{"doctype", `<!DOCTYPE html><html><body><p>Hello</p></body></html>`, true},
		{"html tag only", `<html><body><p>Hello</p></body></html>`, true},
		{"body only", `<body><p>Hello</p></body>`, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d, err := Parse(tt.in)
			require.NoError(t, err)
			assert.Equal(t, tt.full, d.full)
			if tt.full {
				assert.Equal(t, "body", d.scope.Data)
			} else {
				assert.Same(t, d.root, d.scope)
			}
		})
	}
}

func TestIsFullDocument(t *testing.T) {
	tests := []struct {
		in   string
		want bool
	}{
		{`<!doctype html><p>x</p>`, true},
		{"\n  <!-- generated -->\n<HTML lang=\"en\"><body></body></HTML>", true},
		{`<head><title>x</title></head><p>y</p>`, true},
		{`<body class="home"><p>y</p></body>`, true},
		{`<p>Use the <code>&lt;body&gt;</code> tag</p>`, false},
		{`<div><script>var t = "<html>";</script></div>`, false},
		{`<a title="<body>" href="/">x</a>`, false},
		{`intro text <html>`, false},
		{``, false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, isFullDocument(tt.in), tt.in)
	}
}

func TestParseEmpty(t *testing.T) {
	d, err := Parse("   ")
	require.NoError(t, err)
	out, err := d.Render()
	require.NoError(t, err)
	assert.Empty(t, out)
	assert.Empty(t, d.MaterializeText())
}

func TestRenderFragmentKeepsSiblings(t *testing.T) {
	in := `<h1>Title</h1><p>One</p>text after`
	assert.Equal(t, in, normalize(t, in))
}

func TestNeutralizeAndRestoreLinks(t *testing.T) {
	d, err := Parse(`<p><a href="/about" style="color: red">About</a><a>Bare</a></p>`)
	require.NoError(t, err)

	assert.Equal(t, 2, d.NeutralizeLinks())
	assert.Equal(t, 0, d.NeutralizeLinks(), "already neutralized anchors are skipped")

	live, err := d.Render()
	require.NoError(t, err)
	assert.Contains(t, live, `<a href="javascript:void(0)" style="color: red; pointer-events: none; opacity: 0.6; cursor: not-allowed;">About</a>`)
	assert.Contains(t, live, `<a href="javascript:void(0)" style="pointer-events: none; opacity: 0.6; cursor: not-allowed;">Bare</a>`)

	anchors := d.elements(isAnchor)
	rec, ok := d.Link(anchors[0])
	require.True(t, ok)
	assert.Equal(t, LinkRecord{OriginalHref: "/about", HadHref: true, OriginalStyle: "color: red", HadStyle: true}, rec)

	assert.Equal(t, 2, d.RestoreLinks())
	assert.Equal(t, 0, d.RestoreLinks())

	out, err := d.Render()
	require.NoError(t, err)
	assert.Equal(t, `<p><a href="/about" style="color: red">About</a><a>Bare</a></p>`, out)
}

func TestRestoreLegacyNeutralizedLink(t *testing.T) {
	d, err := Parse(`<a href="javascript:void(0)" data-href="/pricing" style="pointer-events: none; opacity: 0.6; cursor: not-allowed;">Pricing</a>`)
	require.NoError(t, err)

	d.NeutralizeLinks()
	d.RestoreLinks()

	out, err := d.Render()
	require.NoError(t, err)
	assert.Equal(t, `<a href="/pricing">Pricing</a>`, out)
}

func TestCallerAnchorWithDataHrefIsNotLegacy(t *testing.T) {
	in := `<a href="javascript:void(0)" data-href="/menu">Menu</a>`
	d, err := Parse(in)
	require.NoError(t, err)

	d.NeutralizeLinks()
	rec, ok := d.Link(d.elements(isAnchor)[0])
	require.True(t, ok)
	assert.Equal(t, "javascript:void(0)", rec.OriginalHref)
	d.RestoreLinks()

	out, err := d.Render()
	require.NoError(t, err)
	assert.Equal(t, in, out)
}

func TestMaterializeText(t *testing.T) {
	d, err := Parse(`<div><p>Hello <b>world</b></p>   <script>if (a < b) { go() }</script><style>p{}</style><textarea>raw</textarea></div>`)
	require.NoError(t, err)

	containers := d.MaterializeText()
	require.Len(t, containers, 2)
	assert.Equal(t, "Hello ", d.Text(containers[0]))
	assert.Equal(t, "world", d.Text(containers[1]))
	assert.Empty(t, d.MaterializeText(), "second pass finds nothing new")

	out, err := d.Render()
	require.NoError(t, err)
	assert.Contains(t, out, `<p><span contenteditable="true" class="blockeditor-textnode">Hello </span><b><span contenteditable="true" class="blockeditor-textnode">world</span></b></p>`)
	assert.Contains(t, out, `<script>if (a < b) { go() }</script>`)
	assert.Contains(t, out, `<textarea>raw</textarea>`)
}

func TestMaterializeTextAdoptsExistingContainers(t *testing.T) {
	d, err := Parse(`<p><span contenteditable="true" class="blockeditor-textnode">Saved</span> and new</p>`)
	require.NoError(t, err)

	containers := d.MaterializeText()
	require.Len(t, containers, 1)
	assert.Equal(t, " and new", d.Text(containers[0]))
	assert.Len(t, d.Marked(MarkEditable), 2)
}

func TestWrapImages(t *testing.T) {
	d, err := Parse(`<div><img src="a.png"><p><img src="b.png" alt="b"></p></div>`)
	require.NoError(t, err)

	assert.Equal(t, 2, d.WrapImages())
	assert.Equal(t, 0, d.WrapImages())
	assert.Len(t, d.Marked(MarkImageWrapper), 2)
	assert.Len(t, d.Marked(MarkReplaceControl), 2)

	cmds := d.Commands()
	require.Len(t, cmds, 2)
	assert.Equal(t, d.Images(), []NodeID{cmds[0].Target, cmds[1].Target})
	for _, c := range cmds {
		assert.Equal(t, ActionReplaceImage, c.Action)
	}

	out, err := d.Render()
	require.NoError(t, err)
	assert.Contains(t, out, `<div class="blockeditor-image-wrapper"><img src="a.png"/><button type="button" class="blockeditor-replace-btn" data-command="replace-image"`)
}

func TestWrapImagesAddsMissingControl(t *testing.T) {
	d, err := Parse(`<div class="blockeditor-image-wrapper"><img src="a.png"/></div>`)
	require.NoError(t, err)

	assert.Equal(t, 0, d.WrapImages())
	assert.Len(t, d.Marked(MarkImageWrapper), 1)
	assert.Len(t, d.Marked(MarkReplaceControl), 1)
}

func TestStripMarkers(t *testing.T) {
	in := `<div><p>Hi</p><img src="a.png"/></div>`
	d, err := Parse(in)
	require.NoError(t, err)
	d.MaterializeText()
	d.WrapImages()

	d.StripMarkers()
	out, err := d.Render()
	require.NoError(t, err)
	assert.Equal(t, in, out)
}

func TestAppendFragment(t *testing.T) {
	d, err := Parse(`<p>a</p>`)
	require.NoError(t, err)

	nodes, err := d.AppendFragment(`<p>b</p><img src="x.png">`)
	require.NoError(t, err)
	assert.Len(t, nodes, 2)

	out, err := d.Render()
	require.NoError(t, err)
	assert.Equal(t, `<p>a</p><p>b</p><img src="x.png"/>`, out)
}

func TestAppendHTML(t *testing.T) {
	out, err := AppendHTML(`<p>a</p>`, `<p>b</p>`)
	require.NoError(t, err)
	assert.Equal(t, `<p>a</p><p>b</p>`, out)

	out, err = AppendHTML(`<html><body><p>a</p></body></html>`, `<p>b</p>`)
	require.NoError(t, err)
	assert.Equal(t, `<html><head></head><body><p>a</p><p>b</p></body></html>`, out)
}

func TestNodeIDs(t *testing.T) {
	d, err := Parse(`<p>x</p>`)
	require.NoError(t, err)
	p := d.elements(func(n *html.Node) bool { return n.Data == "p" })[0]

	id := d.ID(p)
	assert.Equal(t, id, d.ID(p), "ids are stable")
	got, ok := d.Node(id)
	require.True(t, ok)
	assert.Same(t, p, got)

	p.Parent.RemoveChild(p)
	_, ok = d.Node(id)
	assert.False(t, ok, "detached nodes do not resolve")
}

func TestStyleHelpers(t *testing.T) {
	assert.Equal(t, "color: red; opacity: 0.6;", mergeStyle("color:red;opacity:1", []styleDecl{{"opacity", "0.6"}}))
	assert.Equal(t, "color: red;", withoutStyle("color: red; cursor: not-allowed;", disabledLinkStyle))
	assert.Equal(t, "", withoutStyle("pointer-events: none", disabledLinkStyle))
	assert.True(t, strings.HasSuffix(mergeStyle("", disabledLinkStyle), "cursor: not-allowed;"))
}
