package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/adammathes/sitedeck/editor"
	"github.com/adammathes/sitedeck/generate"
	"github.com/adammathes/sitedeck/theme"
)

const cafeHTML = `<section class="hero"><h1>Harbour Cafe</h1><p>Coffee by the sea.</p><img src="https://cdn.example.com/hero.jpg" alt="hero"></section>
<section id="about"><h2>About</h2><p>We open at seven every day.</p><a href="#contact">Say hello</a></section>`

// workspace is a temporary directory with a config file pointing every
// store inside it.
type workspace struct {
	dir    string
	config string
}

func newWorkspace(t *testing.T, extra string) workspace {
	t.Helper()
	t.Setenv("OPENAI_API_KEY", "")
	t.Setenv("PEXELS_API_KEY", "")
	t.Setenv("SITEDECK_OWNER", "")

	dir := t.TempDir()
	cfg := fmt.Sprintf(`owner: u1
assets:
  dir: %s
  base_url: /assets
publish:
  database: %s
theme_file: %s
%s`, filepath.Join(dir, "assets"), filepath.Join(dir, "sites.db"), filepath.Join(dir, "theme.yaml"), extra)
	path := filepath.Join(dir, "sitedeck.yaml")
	require.NoError(t, os.WriteFile(path, []byte(cfg), 0o644))
	return workspace{dir: dir, config: path}
}

func (w workspace) writeSite(t *testing.T, doc string) string {
	t.Helper()
	path := filepath.Join(w.dir, "site.json")
	require.NoError(t, writeSite(path, &generate.Site{
		Title:   "Harbour Cafe",
		Palette: theme.Palette{Primary: "#0ea5e9", Background: "#ffffff", Text: "#0f172a"},
		HTML:    doc,
	}))
	return path
}

func (w workspace) run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := root()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(append([]string{"--config", w.config, "--silent"}, args...))
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

// nodeIDs lists the IDs a fresh edit session assigns to doc.
func nodeIDs(t *testing.T, doc string) ([]editor.TextRun, []editor.Image) {
	t.Helper()
	s := editor.New(doc, nil)
	require.NoError(t, s.Edit())
	runs, err := s.TextRuns()
	require.NoError(t, err)
	images, err := s.Images()
	require.NoError(t, err)
	return runs, images
}

func findRun(t *testing.T, runs []editor.TextRun, text string) editor.NodeID {
	t.Helper()
	for _, r := range runs {
		if strings.Contains(r.Text, text) {
			return r.ID
		}
	}
	t.Fatalf("no text run contains %q", text)
	return 0
}

func makePNG(w, h int) []byte {
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.NRGBA{200, 100, 50, 255})
		}
	}
	var buf bytes.Buffer
	png.Encode(&buf, img)
	return buf.Bytes()
}

func TestLoadConfig(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "")
	t.Setenv("PEXELS_API_KEY", "")
	t.Setenv("SITEDECK_OWNER", "")
	dir := t.TempDir()

	c, err := loadConfig(filepath.Join(dir, "missing.yaml"), false)
	require.NoError(t, err)
	assert.Equal(t, defaultConfig(), c)

	_, err = loadConfig(filepath.Join(dir, "missing.yaml"), true)
	assert.ErrorIs(t, err, os.ErrNotExist)

	path := filepath.Join(dir, "sitedeck.yaml")
	require.NoError(t, os.WriteFile(path, []byte("log_level: debug\nopenai:\n  model: gpt-test\n  timeout: 90s\nassets:\n  quality: 70\n"), 0o644))
	c, err = loadConfig(path, true)
	require.NoError(t, err)
	assert.Equal(t, "debug", c.LogLevel)
	assert.Equal(t, "gpt-test", c.OpenAI.Model)
	assert.Equal(t, 90*time.Second, c.OpenAI.Timeout)
	assert.Equal(t, 70, c.Assets.Quality)
	assert.Equal(t, generate.DefaultEndpoint, c.OpenAI.Endpoint, "unset keys keep defaults")

	t.Setenv("OPENAI_API_KEY", "sk-env")
	t.Setenv("SITEDECK_OWNER", "env-owner")
	c, err = loadConfig(path, true)
	require.NoError(t, err)
	assert.Equal(t, "sk-env", c.OpenAI.APIKey)
	assert.Equal(t, "env-owner", c.Owner)

	require.NoError(t, os.WriteFile(path, []byte("openai: [\n"), 0o644))
	_, err = loadConfig(path, true)
	assert.Error(t, err)
}

func TestNewLogger(t *testing.T) {
	_, err := newLogger("info", false, false)
	require.NoError(t, err)
	_, err = newLogger("loud", false, false)
	assert.Error(t, err)

	log, err := newLogger("info", true, false)
	require.NoError(t, err)
	assert.NotNil(t, log.Check(-1, "debug"), "verbose enables debug")

	log, err = newLogger("debug", false, true)
	require.NoError(t, err)
	assert.Nil(t, log.Check(1, "warn"), "silent drops warnings")
}

func TestReadSite(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "site.json")

	require.NoError(t, os.WriteFile(path, []byte(`{"title":"x","html":"<p>hi</p>"}`), 0o644))
	site, err := readSite(path)
	require.NoError(t, err)
	assert.Equal(t, theme.DefaultPalette, site.Palette)

	require.NoError(t, os.WriteFile(path, []byte(`{"title":"x","html":"  "}`), 0o644))
	_, err = readSite(path)
	assert.ErrorContains(t, err, "no html")

	require.NoError(t, os.WriteFile(path, []byte(`not json`), 0o644))
	_, err = readSite(path)
	assert.Error(t, err)
}

func TestParseAssignment(t *testing.T) {
	tests := []struct {
		in      string
		id      editor.NodeID
		value   string
		wantErr bool
	}{
		{in: "4=Fresh bread", id: 4, value: "Fresh bread"},
		{in: " 12 =a=b", id: 12, value: "a=b"},
		{in: "7=", id: 7, value: ""},
		{in: "no-equals", wantErr: true},
		{in: "x=text", wantErr: true},
	}
	for _, tt := range tests {
		id, value, err := parseAssignment(tt.in)
		if tt.wantErr {
			assert.Error(t, err, tt.in)
			continue
		}
		require.NoError(t, err, tt.in)
		assert.Equal(t, tt.id, id, tt.in)
		assert.Equal(t, tt.value, value, tt.in)
	}
}

func TestEditList(t *testing.T) {
	w := newWorkspace(t, "")
	site := w.writeSite(t, cafeHTML)

	out, err := w.run(t, "edit", site, "--list")
	require.NoError(t, err)
	assert.Contains(t, out, "ID")
	assert.Contains(t, out, "Coffee by the sea.")
	assert.Contains(t, out, "https://cdn.example.com/hero.jpg")

	saved, err := readSite(site)
	require.NoError(t, err)
	assert.Equal(t, cafeHTML, saved.HTML, "listing does not save")
}

func TestEditSetAndReplace(t *testing.T) {
	w := newWorkspace(t, "")
	site := w.writeSite(t, cafeHTML)
	runs, images := nodeIDs(t, cafeHTML)
	require.Len(t, images, 1)

	file := filepath.Join(w.dir, "new-hero.png")
	require.NoError(t, os.WriteFile(file, makePNG(40, 30), 0o644))

	_, err := w.run(t, "edit", site,
		"--set", fmt.Sprintf("%d=Fresh bread daily", findRun(t, runs, "Coffee by the sea")),
		"--replace", fmt.Sprintf("%d=%s", images[0].ID, file),
	)
	require.NoError(t, err)

	saved, err := readSite(site)
	require.NoError(t, err)
	assert.Contains(t, saved.HTML, "Fresh bread daily")
	assert.NotContains(t, saved.HTML, "Coffee by the sea")
	assert.NotContains(t, saved.HTML, "cdn.example.com")
	assert.Contains(t, saved.HTML, `src="/assets/uploads/`)
	assert.Contains(t, saved.HTML, `href="#contact"`, "links are restored on save")
	assert.NotContains(t, saved.HTML, editor.ClassTextNode)

	uploads, err := filepath.Glob(filepath.Join(w.dir, "assets", "uploads", "*"))
	require.NoError(t, err)
	assert.Len(t, uploads, 1)
}

// listedID returns the ID column of the first `edit --list` row containing text.
func listedID(t *testing.T, listing, text string) string {
	t.Helper()
	for _, line := range strings.Split(listing, "\n") {
		if strings.Contains(line, text) {
			return strings.Fields(line)[0]
		}
	}
	t.Fatalf("listing has no row containing %q:\n%s", text, listing)
	return ""
}

func TestEditSetUsesListedIDs(t *testing.T) {
	w := newWorkspace(t, "")
	site := w.writeSite(t, cafeHTML)

	listing, err := w.run(t, "edit", site, "--list")
	require.NoError(t, err)
	id := listedID(t, listing, "We open at seven")

	_, err = w.run(t, "edit", site, "--set", id+"=Open from six")
	require.NoError(t, err)

	saved, err := readSite(site)
	require.NoError(t, err)
	assert.Contains(t, saved.HTML, "<p>Open from six</p>")
	assert.Contains(t, saved.HTML, "Coffee by the sea.")
}

func TestEditReplaceWithURL(t *testing.T) {
	w := newWorkspace(t, "")
	site := w.writeSite(t, cafeHTML)
	_, images := nodeIDs(t, cafeHTML)

	_, err := w.run(t, "edit", site, "--replace", fmt.Sprintf("%d=https://images.example.org/new.jpg", images[0].ID))
	require.NoError(t, err)

	saved, err := readSite(site)
	require.NoError(t, err)
	assert.Contains(t, saved.HTML, `src="https://images.example.org/new.jpg"`)
}

func TestEditErrorsLeaveSiteUntouched(t *testing.T) {
	w := newWorkspace(t, "")
	site := w.writeSite(t, cafeHTML)
	runs, images := nodeIDs(t, cafeHTML)

	_, err := w.run(t, "edit", site,
		"--set", fmt.Sprintf("%d=Changed", findRun(t, runs, "Coffee")),
		"--set", "9999=nowhere",
		"--set", "garbage",
		"--replace", fmt.Sprintf("%d=%s", images[0].ID, filepath.Join(w.dir, "missing.png")),
	)
	require.Error(t, err)
	assert.ErrorIs(t, err, editor.ErrUnknownNode)
	assert.ErrorContains(t, err, "garbage")
	assert.ErrorContains(t, err, "missing.png")

	saved, err := readSite(site)
	require.NoError(t, err)
	assert.Equal(t, cafeHTML, saved.HTML)

	_, err = w.run(t, "edit", site)
	assert.ErrorIs(t, err, errNothingToEdit)
}

func TestExtras(t *testing.T) {
	w := newWorkspace(t, "")
	site := w.writeSite(t, cafeHTML)

	_, err := w.run(t, "extras", site, "map", "--lat", "-33.92", "--lng", "18.42")
	require.NoError(t, err)
	_, err = w.run(t, "extras", site, "products", "--currency", "$",
		"--product", "Croissant|3.50|https://cdn.example.com/c.jpg",
		"--product", "incomplete||")
	require.NoError(t, err)

	saved, err := readSite(site)
	require.NoError(t, err)
	assert.Contains(t, saved.HTML, "-33.92,18.42")
	assert.Contains(t, saved.HTML, "Croissant")
	assert.Contains(t, saved.HTML, "$3.50")
	assert.True(t, strings.HasPrefix(saved.HTML, cafeHTML), "blocks are appended")

	_, err = w.run(t, "extras", site, "carousel")
	assert.ErrorContains(t, err, "unknown block kind")
	_, err = w.run(t, "extras", site, "map", "--lat", "95")
	assert.Error(t, err)
}

func TestPublishAndShow(t *testing.T) {
	w := newWorkspace(t, "")
	site := w.writeSite(t, cafeHTML)

	out, err := w.run(t, "publish", site, "--name", "Harbour-Cafe", "--plan", "annual")
	require.NoError(t, err)
	assert.Equal(t, "harbour-cafe\n", out)

	out, err = w.run(t, "publish", "--list")
	require.NoError(t, err)
	assert.Contains(t, out, "harbour-cafe")
	assert.Contains(t, out, "annual")

	_, err = w.run(t, "publish", site, "--name", "harbour-cafe", "--owner", "someone-else")
	assert.ErrorContains(t, err, "taken")

	_, err = w.run(t, "theme", "dark")
	require.NoError(t, err)
	page := filepath.Join(w.dir, "page.html")
	_, err = w.run(t, "show", "harbour-cafe", "-o", page)
	require.NoError(t, err)
	data, err := os.ReadFile(page)
	require.NoError(t, err)
	assert.Contains(t, string(data), `data-theme="dark"`)
	assert.Contains(t, string(data), "--primary: #0ea5e9")
	assert.Contains(t, string(data), "<title>Harbour Cafe</title>")

	_, err = w.run(t, "publish", "--unpublish", "harbour-cafe")
	require.NoError(t, err)
	_, err = w.run(t, "show", "harbour-cafe")
	assert.ErrorContains(t, err, "not found")
}

func TestTheme(t *testing.T) {
	w := newWorkspace(t, "")

	out, err := w.run(t, "theme")
	require.NoError(t, err)
	assert.Equal(t, "light\n", out)

	out, err = w.run(t, "theme", "toggle")
	require.NoError(t, err)
	assert.Equal(t, "dark\n", out)

	out, err = w.run(t, "theme")
	require.NoError(t, err)
	assert.Equal(t, "dark\n", out, "preference persists")

	_, err = w.run(t, "theme", "sepia")
	assert.Error(t, err)
}

func TestExportMarkdown(t *testing.T) {
	w := newWorkspace(t, "")
	site := w.writeSite(t, cafeHTML)

	out, err := w.run(t, "export", site)
	require.NoError(t, err)
	assert.Contains(t, out, "# Harbour Cafe")
	assert.Contains(t, out, "## About")

	_, err = w.run(t, "export", site, "--format", "epub")
	assert.ErrorContains(t, err, "requires -o")
	_, err = w.run(t, "export", site, "--format", "pdf")
	assert.ErrorContains(t, err, "unknown format")
}

func TestExportEPUBEmbedsStoredImages(t *testing.T) {
	w := newWorkspace(t, "")
	dir := filepath.Join(w.dir, "assets", "uploads")
	require.NoError(t, os.MkdirAll(dir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "hero.png"), makePNG(20, 20), 0o644))
	site := w.writeSite(t, `<section><h1>Gallery</h1><img src="/assets/uploads/hero.png" alt="hero"></section>`)

	book := filepath.Join(w.dir, "site.epub")
	_, err := w.run(t, "export", site, "--format", "epub", "-o", book)
	require.NoError(t, err)
	info, err := os.Stat(book)
	require.NoError(t, err)
	assert.Greater(t, info.Size(), int64(0))
}

func TestGenerateAndRebuild(t *testing.T) {
	var (
		mu      sync.Mutex
		prompts []string
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Messages []struct {
				Content string `json:"content"`
			} `json:"messages"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		mu.Lock()
		prompts = append(prompts, req.Messages[len(req.Messages)-1].Content)
		mu.Unlock()
		site := `{"title":"Harbour Cafe","palette":{"primary":"#0ea5e9"},"html":"<section><h1>Harbour Cafe</h1><p>Open daily.</p></section>"}`
		json.NewEncoder(w).Encode(map[string]any{
			"choices": []map[string]any{{"message": map[string]string{"role": "assistant", "content": site}}},
		})
	}))
	defer srv.Close()

	w := newWorkspace(t, fmt.Sprintf("openai:\n  api_key: sk-test\n  endpoint: %s\n", srv.URL))
	out := filepath.Join(w.dir, "generated.json")

	_, err := w.run(t, "generate", "a", "seaside", "cafe", "--type", "restaurant", "-o", out)
	require.NoError(t, err)
	site, err := readSite(out)
	require.NoError(t, err)
	assert.Equal(t, "Harbour Cafe", site.Title)
	assert.Equal(t, "#0ea5e9", site.Palette.Primary)
	mu.Lock()
	require.Len(t, prompts, 1)
	assert.Contains(t, prompts[0], "a seaside cafe")
	mu.Unlock()

	_, err = w.run(t, "generate", "make it darker", "--from", out, "-o", out)
	require.NoError(t, err)
	mu.Lock()
	require.Len(t, prompts, 2)
	assert.Contains(t, prompts[1], "make it darker")
	assert.Contains(t, prompts[1], "# Harbour Cafe", "rebuild sends the current site as markdown")
	mu.Unlock()

	_, err = w.run(t, "generate", "x", "--type", "casino")
	assert.ErrorContains(t, err, "unknown site type")
	_, err = w.run(t, "generate", "x", "--color", "blue")
	assert.ErrorContains(t, err, "--color")
}

func TestGenerateNeedsKey(t *testing.T) {
	w := newWorkspace(t, "")
	_, err := w.run(t, "generate", "a cafe")
	assert.ErrorIs(t, err, generate.ErrNoAPIKey)
}
