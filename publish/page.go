package publish

import (
	"fmt"
	"html"
	"regexp"

	"github.com/adammathes/sitedeck/theme"
)

// PageOptions control how a stored site is served.
type PageOptions struct {
	Title   string
	Palette theme.Palette
	Theme   theme.Context
}

var (
	fullDocRe   = regexp.MustCompile(`(?is)^\s*(?:<!--.*?-->\s*)*<(?:!doctype|html\b)`)
	htmlOpenRe  = regexp.MustCompile(`(?i)<html\b[^>]*>`)
	headCloseRe = regexp.MustCompile(`(?i)</head>`)
	themeAttrRe = regexp.MustCompile(`(?i)\sdata-theme="[^"]*"`)
)

// RenderPage turns a canonical document into a standalone page. Fragments
// are wrapped in a full document; full documents get the theme attribute
// and palette variables injected.
func RenderPage(doc string, opts PageOptions) string {
	style := "<style>" + opts.Palette.CSS(opts.Theme) + "</style>"
	mode := opts.Theme.Attr()

	if fullDocRe.MatchString(doc) {
		if loc := htmlOpenRe.FindStringIndex(doc); loc != nil {
			tag := themeAttrRe.ReplaceAllString(doc[loc[0]:loc[1]-1], "")
			doc = doc[:loc[0]] + tag + fmt.Sprintf(` data-theme="%s">`, mode) + doc[loc[1]:]
		}
		if loc := headCloseRe.FindStringIndex(doc); loc != nil {
			doc = doc[:loc[0]] + style + "\n" + doc[loc[0]:]
		}
		return doc
	}

	title := opts.Title
	if title == "" {
		title = extractTitle(doc)
	}
	return fmt.Sprintf(`<!DOCTYPE html>
<html data-theme="%s">
<head>
	<meta charset="utf-8">
	<meta name="viewport" content="width=device-width, initial-scale=1">
	<title>%s</title>
	%s
	<style>
		body {
			font-family: -apple-system, BlinkMacSystemFont, "Segoe UI", Roboto, Helvetica, Arial, sans-serif;
			line-height: 1.6;
			color: var(--text);
			background: var(--background);
			margin: 0;
		}
		a { color: var(--primary); }
		img { max-width: 100%%; height: auto; }
	</style>
</head>
<body>
%s
</body>
</html>
`, mode, html.EscapeString(title), style, doc)
}
