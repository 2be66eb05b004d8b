// Package export converts a canonical site document into offline formats:
// Markdown and EPUB.
package export

import (
	"fmt"
	"strings"
	"sync"

	"github.com/JohannesKaufmann/dom"
	"github.com/JohannesKaufmann/html-to-markdown/v2/converter"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/base"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/commonmark"
	"golang.org/x/net/html"
)

var (
	mdConverter     *converter.Converter
	mdConverterOnce sync.Once
)

// markdownConverter returns a shared converter. Data URI images become
// alt-text placeholders, iframes become links.
func markdownConverter() *converter.Converter {
	mdConverterOnce.Do(func() {
		mdConverter = converter.NewConverter(
			converter.WithPlugins(
				base.NewBasePlugin(),
				commonmark.NewCommonmarkPlugin(),
			),
		)
		// PriorityEarly runs before the commonmark renderers.
		mdConverter.Register.RendererFor("img", converter.TagTypeInline,
			func(ctx converter.Context, w converter.Writer, n *html.Node) converter.RenderStatus {
				src := dom.GetAttributeOr(n, "src", "")
				if !strings.HasPrefix(src, "data:") {
					return converter.RenderTryNext
				}
				if alt := strings.TrimSpace(dom.GetAttributeOr(n, "alt", "")); alt != "" {
					w.WriteString("[Image: " + alt + "]")
				}
				return converter.RenderSuccess
			},
			converter.PriorityEarly,
		)
		mdConverter.Register.RendererFor("iframe", converter.TagTypeBlock,
			func(ctx converter.Context, w converter.Writer, n *html.Node) converter.RenderStatus {
				src := strings.TrimSpace(dom.GetAttributeOr(n, "src", ""))
				if src != "" {
					w.WriteString("\n\n[Embed](" + src + ")\n\n")
				}
				return converter.RenderSuccess
			},
			converter.PriorityEarly,
		)
	})
	return mdConverter
}

// Markdown converts a document (full page or fragment) to CommonMark.
func Markdown(doc string) (string, error) {
	md, err := markdownConverter().ConvertString(bodyContent(doc))
	if err != nil {
		return "", fmt.Errorf("markdown conversion: %w", err)
	}
	return strings.TrimSpace(md), nil
}

// bodyContent returns what sits between <body> and </body>, or the whole
// input if there is no body tag.
func bodyContent(doc string) string {
	lower := strings.ToLower(doc)
	start := strings.Index(lower, "<body")
	if start < 0 {
		return doc
	}
	end := strings.Index(doc[start:], ">")
	if end < 0 {
		return doc
	}
	start += end + 1
	if stop := strings.Index(lower[start:], "</body>"); stop >= 0 {
		return doc[start : start+stop]
	}
	return doc[start:]
}
