package theme

import (
	"fmt"
	"image/color"
	"strconv"
	"strings"
)

// Palette is the three-color scheme chosen for a site.
type Palette struct {
	Primary    string `json:"primary" yaml:"primary"`
	Background string `json:"background" yaml:"background"`
	Text       string `json:"text" yaml:"text"`
}

var DefaultPalette = Palette{Primary: "#4f46e5", Background: "#ffffff", Text: "#111827"}

// WithDefaults fills empty or unparseable colors from DefaultPalette.
func (p Palette) WithDefaults() Palette {
	fill := func(v, def string) string {
		if _, err := ParseHex(v); err != nil {
			return def
		}
		return strings.TrimSpace(v)
	}
	return Palette{
		Primary:    fill(p.Primary, DefaultPalette.Primary),
		Background: fill(p.Background, DefaultPalette.Background),
		Text:       fill(p.Text, DefaultPalette.Text),
	}
}

// ParseHex parses #rgb or #rrggbb.
func ParseHex(s string) (color.RGBA, error) {
	s = strings.TrimPrefix(strings.TrimSpace(s), "#")
	if len(s) == 3 {
		s = string([]byte{s[0], s[0], s[1], s[1], s[2], s[2]})
	}
	if len(s) != 6 {
		return color.RGBA{}, fmt.Errorf("invalid color %q", s)
	}
	v, err := strconv.ParseUint(s, 16, 32)
	if err != nil {
		return color.RGBA{}, fmt.Errorf("invalid color %q", s)
	}
	return color.RGBA{R: uint8(v >> 16), G: uint8(v >> 8), B: uint8(v), A: 0xFF}, nil
}

// Colors returns the parsed palette, defaults filled.
func (p Palette) Colors() (primary, background, text color.RGBA) {
	p = p.WithDefaults()
	primary, _ = ParseHex(p.Primary)
	background, _ = ParseHex(p.Background)
	text, _ = ParseHex(p.Text)
	return
}

// CSS renders the palette as custom properties for the given mode. Dark
// mode swaps background and text.
func (p Palette) CSS(c Context) string {
	p = p.WithDefaults()
	bg, fg := p.Background, p.Text
	if c.Attr() == string(Dark) {
		bg, fg = fg, bg
	}
	return fmt.Sprintf(":root { --primary: %s; --background: %s; --text: %s; }", p.Primary, bg, fg)
}
