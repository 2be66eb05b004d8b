package export

import (
	"bytes"
	"crypto/sha256"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"math"
	"strings"

	"golang.org/x/image/draw"
	"golang.org/x/image/font"
	"golang.org/x/image/font/gofont/gobold"
	"golang.org/x/image/font/gofont/goregular"
	"golang.org/x/image/font/opentype"
	"golang.org/x/image/math/fixed"

	"github.com/adammathes/sitedeck/theme"
)

const (
	coverWidth  = 1200
	coverHeight = 1800
)

// renderCover draws a PNG cover in the site's palette: a pattern of
// primary-colored circles seeded from the title, with the title and section
// count on a background band.
func renderCover(title string, sections int, p theme.Palette) ([]byte, error) {
	primary, background, text := p.Colors()

	img := image.NewRGBA(image.Rect(0, 0, coverWidth, coverHeight))
	draw.Draw(img, img.Bounds(), image.NewUniform(background), image.Point{}, draw.Src)
	drawPattern(img, sha256.Sum256([]byte(title)), primary, background)

	boldFace, err := loadFace(gobold.TTF, 64)
	if err != nil {
		return nil, fmt.Errorf("loading bold font: %w", err)
	}
	regularFace, err := loadFace(goregular.TTF, 32)
	if err != nil {
		return nil, fmt.Errorf("loading regular font: %w", err)
	}

	drawTitleBlock(img, title, sections, boldFace, regularFace, background, text, primary)

	label := "sitedeck"
	w := font.MeasureString(regularFace, label).Ceil()
	drawString(img, label, regularFace, coverWidth-40-w, coverHeight-40, text)

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("encoding cover PNG: %w", err)
	}
	return buf.Bytes(), nil
}

// blend mixes a toward b; t=0 is a, t=1 is b.
func blend(a, b color.RGBA, t float64) color.RGBA {
	mix := func(x, y uint8) uint8 { return uint8(math.Round(float64(x) + (float64(y)-float64(x))*t)) }
	return color.RGBA{mix(a.R, b.R), mix(a.G, b.G), mix(a.B, b.B), 0xFF}
}

// drawPattern fills a grid of circles above and below the title band. Hash
// bytes choose each circle's radius and how far its color fades toward the
// background.
func drawPattern(img *image.RGBA, hash [32]byte, primary, background color.RGBA) {
	const (
		cols          = 12
		rows          = 18
		cellW         = coverWidth / cols
		cellH         = coverHeight / rows
		titleRowStart = 7
		titleRowEnd   = 11
	)
	for row := 0; row < rows; row++ {
		if row >= titleRowStart && row <= titleRowEnd {
			continue
		}
		for col := 0; col < cols; col++ {
			idx := (row*cols + col) % len(hash)
			b := hash[idx] ^ byte(row*17+col*31)
			fade := 0.15 + 0.7*float64(b)/255

			b2 := hash[(idx+7)%len(hash)] ^ byte(row*13+col*41)
			maxR := float64(cellW) / 2.2
			minR := maxR * 0.25
			radius := minR + (maxR-minR)*float64(b2)/255

			fillCircle(img, col*cellW+cellW/2, row*cellH+cellH/2, radius, blend(primary, background, fade))
		}
	}
}

func fillCircle(img *image.RGBA, cx, cy int, radius float64, c color.RGBA) {
	r := int(math.Ceil(radius))
	r2 := radius * radius
	for dy := -r; dy <= r; dy++ {
		for dx := -r; dx <= r; dx++ {
			if float64(dx*dx+dy*dy) > r2 {
				continue
			}
			x, y := cx+dx, cy+dy
			if x >= 0 && x < coverWidth && y >= 0 && y < coverHeight {
				img.SetRGBA(x, y, c)
			}
		}
	}
}

func drawTitleBlock(img *image.RGBA, title string, sections int, titleFace, metaFace font.Face, background, text, rule color.RGBA) {
	const (
		bandTop    = 650
		bandBottom = 1150
		padX       = 80
		maxWidth   = coverWidth - padX*2
	)

	draw.Draw(img, image.Rect(0, bandTop, coverWidth, bandBottom), image.NewUniform(background), image.Point{}, draw.Src)
	for x := padX; x < coverWidth-padX; x++ {
		img.SetRGBA(x, bandTop+20, rule)
		img.SetRGBA(x, bandBottom-20, rule)
	}

	lines := wrapText(title, titleFace, maxWidth)
	lineHeight := titleFace.Metrics().Height.Ceil() + 8
	metaHeight := metaFace.Metrics().Height.Ceil() + 16
	y := bandTop + (bandBottom-bandTop-len(lines)*lineHeight-metaHeight)/2 + titleFace.Metrics().Ascent.Ceil()

	for _, line := range lines {
		w := font.MeasureString(titleFace, line).Ceil()
		drawString(img, line, titleFace, (coverWidth-w)/2, y, text)
		y += lineHeight
	}

	y += 16
	meta := fmt.Sprintf("%d sections", sections)
	if sections == 1 {
		meta = "1 section"
	}
	w := font.MeasureString(metaFace, meta).Ceil()
	drawString(img, meta, metaFace, (coverWidth-w)/2, y, text)
}

func drawString(img *image.RGBA, s string, face font.Face, x, y int, c color.RGBA) {
	d := &font.Drawer{
		Dst:  img,
		Src:  image.NewUniform(c),
		Face: face,
		Dot:  fixed.P(x, y),
	}
	d.DrawString(s)
}

// wrapText splits text into lines no wider than maxWidth pixels.
func wrapText(text string, face font.Face, maxWidth int) []string {
	words := strings.Fields(text)
	if len(words) == 0 {
		return []string{text}
	}
	var lines []string
	current := words[0]
	for _, word := range words[1:] {
		trial := current + " " + word
		if font.MeasureString(face, trial).Ceil() <= maxWidth {
			current = trial
			continue
		}
		lines = append(lines, current)
		current = word
	}
	return append(lines, current)
}

func loadFace(ttf []byte, sizePt float64) (font.Face, error) {
	f, err := opentype.Parse(ttf)
	if err != nil {
		return nil, err
	}
	return opentype.NewFace(f, &opentype.FaceOptions{
		Size:    sizePt,
		DPI:     72,
		Hinting: font.HintingFull,
	})
}
