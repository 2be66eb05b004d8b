package export

import (
	"strings"
	"testing"
)

func TestSanitizeXHTML_FiltersAttrs(t *testing.T) {
	result := sanitizeXHTML(`<p id="intro" onclick="alert(1)" data-track="click" aria-label="x" epub:type="chapter">Hello</p>`)
	for _, bad := range []string{"onclick", "data-track", "aria-label"} {
		if strings.Contains(result, bad) {
			t.Errorf("%s should be stripped: %s", bad, result)
		}
	}
	if !strings.Contains(result, `id="intro"`) {
		t.Error("id should be kept")
	}
	if !strings.Contains(result, `epub:type="chapter"`) {
		t.Error("epub:type should be kept")
	}
}

func TestSanitizeXHTML_Links(t *testing.T) {
	result := sanitizeXHTML(`<a href="#menu">menu</a><a href="#gone">gone</a><a href="javascript:void(0)">x</a><div id="menu"></div>`)
	if !strings.Contains(result, `<a href="#menu">`) {
		t.Errorf("valid fragment link should be kept: %s", result)
	}
	if strings.Contains(result, "#gone") {
		t.Errorf("broken fragment link should be dropped: %s", result)
	}
	if strings.Contains(result, "javascript:") {
		t.Errorf("script link should be dropped: %s", result)
	}
}

func TestSanitizeXHTML_VoidElements(t *testing.T) {
	result := sanitizeXHTML(`<p>line<br>next</p><hr>`)
	if !strings.Contains(result, "<br/>") || !strings.Contains(result, "<hr/>") {
		t.Errorf("void elements should self-close: %s", result)
	}
}

func TestSanitizeXHTML_StripsSiteChrome(t *testing.T) {
	input := `<nav><a href="/">Home</a></nav><script>x()</script><style>p{}</style>` +
		`<form><input name="q"><button type="button">Go</button></form><svg><circle r="1"/></svg><p>kept</p>`
	result := sanitizeXHTML(input)
	for _, tag := range []string{"<script", "<style", "<form", "<input", "<button", "<svg"} {
		if strings.Contains(result, tag) {
			t.Errorf("%s should be removed: %s", tag, result)
		}
	}
	if !strings.Contains(result, "<p>kept</p>") || !strings.Contains(result, "<nav>") {
		t.Errorf("allowed content should survive: %s", result)
	}
}

func TestSanitizeXHTML_EmbedsAndMedia(t *testing.T) {
	tests := []struct {
		name, input, want string
	}{
		{"map iframe", `<div class="extra-map"><iframe src="https://maps.example/embed"></iframe></div>`, `<a href="https://maps.example/embed">[Embed: https://maps.example/embed]</a>`},
		{"video source", `<video controls><source src="/uploads/tour.mp4" type="video/mp4"></video>`, `<a href="/uploads/tour.mp4">[Media: /uploads/tour.mp4]</a>`},
		{"audio src", `<audio src="song.mp3"></audio>`, `[Media: song.mp3]`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := sanitizeXHTML(tt.input)
			if !strings.Contains(result, tt.want) {
				t.Errorf("got %s, want %s", result, tt.want)
			}
		})
	}
	if result := sanitizeXHTML(`<iframe></iframe><p>x</p>`); strings.Contains(result, "<a") {
		t.Errorf("empty iframe should vanish: %s", result)
	}
}

func TestSanitizeXHTML_Images(t *testing.T) {
	tests := []struct {
		name  string
		input string
		keep  bool
	}{
		{"remote", `<img src="https://cdn.example/a.jpg" alt="a">`, false},
		{"protocol relative", `<img src="//cdn.example/a.jpg" alt="a">`, false},
		{"no src", `<img alt="a">`, false},
		{"internal", `<img src="../images/a.jpg" alt="a">`, true},
		{"picture", `<picture><source srcset="a.webp"><img src="a.jpg" alt="a" data-x="1"></picture>`, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := sanitizeXHTML(tt.input)
			if got := strings.Contains(result, "<img"); got != tt.keep {
				t.Errorf("keep = %v, got %s", got, result)
			}
			if strings.Contains(result, "<picture") || strings.Contains(result, "<source") || strings.Contains(result, "data-x") {
				t.Errorf("picture should collapse to a clean img: %s", result)
			}
		})
	}
}

func TestSanitizeXHTML_IDs(t *testing.T) {
	result := sanitizeXHTML(`<div id="intro">a</div><div id="intro">b</div><p id="my id">c</p><p id=" ">d</p>`)
	if !strings.Contains(result, `id="intro"`) || !strings.Contains(result, `id="intro-2"`) {
		t.Errorf("duplicate ids should be suffixed: %s", result)
	}
	if !strings.Contains(result, `id="my-id"`) {
		t.Errorf("whitespace in ids should become hyphens: %s", result)
	}
	if strings.Contains(result, `id=""`) {
		t.Errorf("blank ids should be dropped: %s", result)
	}
}

func TestCleanDimension(t *testing.T) {
	tests := []struct{ in, want string }{
		{"100", "100"},
		{"916.7", "917"},
		{"50px", "50"},
		{"80%", "80"},
		{"auto", ""},
		{"-5", ""},
	}
	for _, tt := range tests {
		if got := cleanDimension(tt.in); got != tt.want {
			t.Errorf("cleanDimension(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestSanitizeXHTML_Dimensions(t *testing.T) {
	result := sanitizeXHTML(`<div width="100"><img src="a.jpg" alt="" width="1.5" height="0"></div>`)
	if strings.Contains(result, `<div width`) {
		t.Errorf("div dimensions should be dropped: %s", result)
	}
	if !strings.Contains(result, `width="2"`) {
		t.Errorf("img width should be rounded: %s", result)
	}
	if strings.Contains(result, `height=`) {
		t.Errorf("zero height should be dropped: %s", result)
	}
}

func TestSanitizeXHTML_Nesting(t *testing.T) {
	tests := []struct {
		name, input, want string
	}{
		{"p in h1", `<h1><div>Title</div></h1>`, `<h1>Title</h1>`},
		{"table in p", `<p>Before<span><table><tbody><tr><td>c</td></tr></tbody></table></span></p>`, `<table>`},
		{"figcaption outside figure", `<div><figcaption>Cap</figcaption></div>`, `<p>Cap</p>`},
		{"figcaption inside figure", `<figure><figcaption>Cap</figcaption></figure>`, `<figcaption>Cap</figcaption>`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := sanitizeXHTML(tt.input)
			if !strings.Contains(result, tt.want) {
				t.Errorf("got %s, want %s", result, tt.want)
			}
		})
	}
	if result := sanitizeXHTML(`<p>Before<span><table><tbody><tr><td>c</td></tr></tbody></table></span></p>`); strings.Contains(result, "<span><table") {
		t.Errorf("table should be lifted out of phrasing content: %s", result)
	}
}

func TestSanitizeXHTML_DefinitionLists(t *testing.T) {
	tests := []struct {
		name, input, want string
	}{
		{"bare text", `<dl>bare<dt>t</dt><dd>d</dd></dl>`, `<dl><dt>bare</dt><dt>t</dt><dd>d</dd></dl>`},
		{"dt without dd", `<dl><dt>t</dt></dl>`, `<dl><dt>t</dt><dd></dd></dl>`},
		{"dd before dt", `<dl><dd>d</dd></dl>`, `<dl><dt></dt><dd>d</dd></dl>`},
		{"empty", `<dl></dl>`, `<dl><dt></dt><dd></dd></dl>`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if result := sanitizeXHTML(tt.input); !strings.Contains(result, tt.want) {
				t.Errorf("got %s, want %s", result, tt.want)
			}
		})
	}
}

func TestSanitizeXHTML_InvalidXMLChars(t *testing.T) {
	result := sanitizeXHTML("<p>Hello\x12World\x01</p><p>tab\there</p>")
	if strings.ContainsAny(result, "\x12\x01") {
		t.Errorf("control characters should be stripped: %q", result)
	}
	if !strings.Contains(result, "HelloWorld") || !strings.Contains(result, "tab\there") {
		t.Errorf("valid text should survive: %q", result)
	}
}
