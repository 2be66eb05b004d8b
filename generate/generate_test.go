package generate

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/adammathes/sitedeck/theme"
)

// fakeModel serves a chat completion with the given content and records
// the last request.
func fakeModel(t *testing.T, content string, status int) (*httptest.Server, *completionRequest, *string) {
	t.Helper()
	var got completionRequest
	var auth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		auth = r.Header.Get("Authorization")
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(status)
		if status != http.StatusOK {
			json.NewEncoder(w).Encode(map[string]any{"error": map[string]string{"message": "quota exceeded"}})
			return
		}
		json.NewEncoder(w).Encode(map[string]any{
			"choices": []map[string]any{{"message": map[string]string{"role": "assistant", "content": content}}},
		})
	}))
	t.Cleanup(srv.Close)
	return srv, &got, &auth
}

func testClient(url string) *Client {
	c := NewClient("sk-test")
	c.Endpoint = url
	return c
}

const siteJSON = `{"title":"Harbour Cafe","palette":{"primary":"#0ea5e9","background":"#ffffff","text":"#0f172a"},"html":"<section><h1>Harbour Cafe</h1></section>"}`

func TestGenerate(t *testing.T) {
	srv, got, auth := fakeModel(t, siteJSON, http.StatusOK)

	site, err := testClient(srv.URL).Generate(context.Background(), Request{
		Description: "  a seaside cafe  ",
		SiteType:    Restaurant,
		ThemeColor:  "#0ea5e9",
	})
	require.NoError(t, err)

	want := &Site{
		Title:   "Harbour Cafe",
		Palette: theme.Palette{Primary: "#0ea5e9", Background: "#ffffff", Text: "#0f172a"},
		HTML:    "<section><h1>Harbour Cafe</h1></section>",
	}
	if diff := cmp.Diff(want, site); diff != "" {
		t.Errorf("site mismatch (-want +got):\n%s", diff)
	}

	assert.Equal(t, "Bearer sk-test", *auth)
	assert.Equal(t, DefaultModel, got.Model)
	assert.Equal(t, "json_object", got.ResponseFormat.Type)
	require.Len(t, got.Messages, 2)
	assert.Equal(t, "system", got.Messages[0].Role)
	user := got.Messages[1].Content
	assert.Contains(t, user, "a seaside cafe\n")
	assert.Contains(t, user, "Site Type: restaurant")
	assert.Contains(t, user, "Theme Color: #0ea5e9")
}

func TestGenerateDefaults(t *testing.T) {
	srv, got, _ := fakeModel(t, siteJSON, http.StatusOK)
	_, err := testClient(srv.URL).Generate(context.Background(), Request{Description: "studio"})
	require.NoError(t, err)
	assert.Contains(t, got.Messages[1].Content, "Site Type: portfolio")
	assert.Contains(t, got.Messages[1].Content, "Theme Color: auto")
}

func TestRebuildSendsMarkdown(t *testing.T) {
	srv, got, _ := fakeModel(t, siteJSON, http.StatusOK)
	_, err := testClient(srv.URL).Rebuild(context.Background(),
		Request{Description: "make it darker"},
		`<html><body><h1>Old Cafe</h1><p>Since 1990</p></body></html>`)
	require.NoError(t, err)

	user := got.Messages[1].Content
	assert.Contains(t, user, "Rebuild this website using prompt - make it darker.")
	assert.Contains(t, user, "# Old Cafe")
	assert.NotContains(t, user, "<h1>")
}

func TestGenerateErrors(t *testing.T) {
	_, err := NewClient("").Generate(context.Background(), Request{Description: "x"})
	assert.ErrorIs(t, err, ErrNoAPIKey)

	_, err = NewClient("k").Generate(context.Background(), Request{Description: "  "})
	assert.Error(t, err)

	srv, _, _ := fakeModel(t, "", http.StatusTooManyRequests)
	_, err = testClient(srv.URL).Generate(context.Background(), Request{Description: "x"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "429")
	assert.Contains(t, err.Error(), "quota exceeded")

	srv, _, _ = fakeModel(t, "Sure! Here is your site: <html>", http.StatusOK)
	_, err = testClient(srv.URL).Generate(context.Background(), Request{Description: "x"})
	assert.ErrorIs(t, err, ErrInvalidResponse)
}

func TestParseSite(t *testing.T) {
	tests := []struct {
		name    string
		in      string
		title   string
		wantErr bool
	}{
		{"plain", siteJSON, "Harbour Cafe", false},
		{"fenced", "```json\n" + siteJSON + "\n```", "Harbour Cafe", false},
		{"bare fence", "```\n" + siteJSON + "```", "Harbour Cafe", false},
		{"missing title", `{"html":"<p>x</p>"}`, "Untitled site", false},
		{"empty html", `{"title":"x","html":"  "}`, "", true},
		{"not json", "<html></html>", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			site, err := ParseSite(tt.in)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidResponse)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.title, site.Title)
			assert.NotEmpty(t, site.Palette.Primary)
		})
	}
}

func TestParseSiteFencedHTML(t *testing.T) {
	site, err := ParseSite(`{"title":"x","html":"` + "```html\\n<p>hi</p>\\n```" + `"}`)
	require.NoError(t, err)
	assert.Equal(t, "<p>hi</p>", site.HTML)
}

func TestParseSiteType(t *testing.T) {
	st, err := ParseSiteType("")
	require.NoError(t, err)
	assert.Equal(t, Portfolio, st)

	st, err = ParseSiteType("landing-page")
	require.NoError(t, err)
	assert.Equal(t, LandingPage, st)

	_, err = ParseSiteType("wiki")
	assert.Error(t, err)
	assert.True(t, strings.Contains(err.Error(), "wiki"))
}
