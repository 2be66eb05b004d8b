package publish

import (
	"html"
	"net/url"
	"regexp"
	"strings"

	readability "codeberg.org/readeck/go-readability"
)

var (
	titleTagRe   = regexp.MustCompile(`(?is)<title[^>]*>(.*?)</title>`)
	firstH1Re    = regexp.MustCompile(`(?is)<h1[^>]*>(.*?)</h1>`)
	firstPRe     = regexp.MustCompile(`(?is)<p[^>]*>(.*?)</p>`)
	htmlTagRe    = regexp.MustCompile(`<[^>]+>`)
	titleSplitRe = regexp.MustCompile(`\s*[-|\x{2013}\x{2014}]\s+`)
)

const maxExcerpt = 200

// Meta is listing information derived from a site's HTML.
type Meta struct {
	Title   string
	Excerpt string
}

// metaBase resolves relative links while extracting; it never leaves the
// process.
var metaBase = &url.URL{Scheme: "https", Host: "site.invalid", Path: "/"}

// ExtractMeta runs readability over the document for a title and excerpt.
// Missing values fall back to <title>, then the first <h1>, and the first
// paragraph.
func ExtractMeta(doc string) Meta {
	var m Meta
	if article, err := readability.FromReader(strings.NewReader(doc), metaBase); err == nil {
		m.Title = cleanTitle(article.Title)
		m.Excerpt = squash(article.Excerpt)
	}
	if m.Title == "" {
		m.Title = extractTitle(doc)
	}
	if m.Excerpt == "" {
		if p := firstPRe.FindStringSubmatch(doc); p != nil {
			m.Excerpt = squash(html.UnescapeString(htmlTagRe.ReplaceAllString(p[1], "")))
		}
	}
	if r := []rune(m.Excerpt); len(r) > maxExcerpt {
		m.Excerpt = strings.TrimSpace(string(r[:maxExcerpt-1])) + "…"
	}
	return m
}

// extractTitle reads <title>, then the first <h1>.
func extractTitle(doc string) string {
	if m := titleTagRe.FindStringSubmatch(doc); m != nil {
		if t := cleanTitle(html.UnescapeString(m[1])); t != "" && t != "Untitled" {
			return t
		}
	}
	if m := firstH1Re.FindStringSubmatch(doc); m != nil {
		if t := squash(html.UnescapeString(htmlTagRe.ReplaceAllString(m[1], ""))); t != "" {
			return t
		}
	}
	return "Untitled"
}

// cleanTitle drops a trailing " - Section" or " | Site" part.
func cleanTitle(title string) string {
	return strings.TrimSpace(titleSplitRe.Split(squash(title), -1)[0])
}

func squash(s string) string { return strings.Join(strings.Fields(s), " ") }
