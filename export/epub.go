package export

import (
	"bytes"
	"encoding/base64"
	"fmt"
	gohtml "html"
	"regexp"
	"strings"

	"github.com/JohannesKaufmann/dom"
	epub "github.com/go-shiori/go-epub"
	"go.uber.org/zap"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"

	"github.com/adammathes/sitedeck/theme"
)

// Matches <img src="data:MIME;base64,DATA">.
var imgDataURIRe = regexp.MustCompile(`(<img\b[^>]*?\bsrc\s*=\s*")data:([^;]+);base64,([^"]*)(")`)

// Book is a site prepared for EPUB export.
type Book struct {
	Title   string
	Author  string
	HTML    string
	Palette theme.Palette
}

// ImageSource resolves a non-data image src to its bytes. Images it cannot
// resolve are dropped from the book if they are remote.
type ImageSource func(src string) (data []byte, mime string, ok bool)

type epubOptions struct {
	images ImageSource
	log    *zap.Logger
}

// EPUBOption configures EPUB.
type EPUBOption func(*epubOptions)

// WithImages inlines images that src resolves.
func WithImages(src ImageSource) EPUBOption {
	return func(o *epubOptions) { o.images = src }
}

func WithLogger(l *zap.Logger) EPUBOption {
	return func(o *epubOptions) { o.log = l }
}

// chapter is one top-level section of the site.
type chapter struct {
	Title string
	HTML  string
}

// EPUB writes the site as an EPUB 3 book: a palette cover, a contents page
// and one chapter per top-level section.
func EPUB(b Book, path string, opts ...EPUBOption) error {
	o := epubOptions{log: zap.NewNop()}
	for _, opt := range opts {
		opt(&o)
	}

	chapters, err := splitChapters(b.HTML, o.images)
	if err != nil {
		return err
	}
	title := strings.TrimSpace(b.Title)
	if title == "" && len(chapters) > 0 {
		title = chapters[0].Title
	}
	if title == "" {
		title = "Untitled site"
	}

	e, err := epub.NewEpub(title)
	if err != nil {
		return fmt.Errorf("creating epub: %w", err)
	}
	e.SetLang("en")
	author := b.Author
	if author == "" {
		author = "sitedeck"
	}
	e.SetAuthor(author)

	cssPath, err := e.AddCSS(dataURI("text/css", []byte(bookCSS(b.Palette))), "styles.css")
	if err != nil {
		o.log.Warn("could not add CSS", zap.Error(err))
		cssPath = ""
	}

	if cover, err := renderCover(title, len(chapters), b.Palette); err != nil {
		o.log.Warn("could not render cover", zap.Error(err))
	} else if coverPath, err := e.AddImage(dataURI("image/png", cover), "cover.png"); err != nil {
		o.log.Warn("could not add cover image", zap.Error(err))
	} else if err := e.SetCover(coverPath, ""); err != nil {
		o.log.Warn("could not set cover", zap.Error(err))
	}

	if _, err := e.AddSection(contentsBody(chapters), "Contents", "contents.xhtml", cssPath); err != nil {
		o.log.Warn("could not add table of contents", zap.Error(err))
	}

	for i, ch := range chapters {
		body := sanitizeXHTML(ch.HTML)
		body = extractImages(e, body, i+1, o.log)
		if _, err := e.AddSection(body, ch.Title, chapterFile(i), cssPath); err != nil {
			o.log.Warn("could not add section", zap.String("title", ch.Title), zap.Error(err))
		}
	}

	if err := e.Write(path); err != nil {
		return fmt.Errorf("writing epub: %w", err)
	}
	o.log.Debug("wrote epub", zap.String("path", path), zap.Int("chapters", len(chapters)))
	return nil
}

func chapterFile(i int) string { return fmt.Sprintf("section%03d.xhtml", i+1) }

func dataURI(mime string, data []byte) string {
	return "data:" + mime + ";base64," + base64.StdEncoding.EncodeToString(data)
}

func bookCSS(p theme.Palette) string {
	p = p.WithDefaults()
	return fmt.Sprintf(`body { margin: 1em; line-height: 1.5; color: %s; }
h1, h2, h3 { color: %s; }
a { color: %s; }
img { max-width: 100%%; height: auto; }
blockquote { margin-left: 1em; padding-left: 0.5em; border-left: 2px solid %s; }
.toc { list-style-type: none; padding-left: 0; }
.toc li { margin-bottom: 1.2em; }
.toc a { text-decoration: none; }`, p.Text, p.Primary, p.Primary, p.Primary)
}

// splitChapters parses the document body and cuts it at each top-level
// section, article, header or footer. Content between those elements joins
// the preceding chapter.
func splitChapters(doc string, images ImageSource) ([]chapter, error) {
	root, err := html.Parse(strings.NewReader(bodyContent(doc)))
	if err != nil {
		return nil, fmt.Errorf("parsing site: %w", err)
	}
	body := findBody(root)
	if body == nil {
		return nil, nil
	}
	if images != nil {
		inlineImages(body, images)
	}

	var groups [][]*html.Node
	for c := body.FirstChild; c != nil; c = c.NextSibling {
		if len(groups) == 0 || startsChapter(c) {
			groups = append(groups, nil)
		}
		groups[len(groups)-1] = append(groups[len(groups)-1], c)
	}

	var chapters []chapter
	for _, g := range groups {
		var buf bytes.Buffer
		text := ""
		for _, n := range g {
			if err := html.Render(&buf, n); err != nil {
				return nil, fmt.Errorf("rendering section: %w", err)
			}
			text += dom.CollectText(n)
		}
		if strings.TrimSpace(text) == "" && !strings.Contains(buf.String(), "<img") {
			continue
		}
		title := ""
		for _, n := range g {
			if title = headingText(n); title != "" {
				break
			}
		}
		if title == "" {
			title = fmt.Sprintf("Section %d", len(chapters)+1)
		}
		chapters = append(chapters, chapter{Title: title, HTML: buf.String()})
	}
	return chapters, nil
}

func findBody(n *html.Node) *html.Node {
	if n.Type == html.ElementNode && n.DataAtom == atom.Body {
		return n
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if b := findBody(c); b != nil {
			return b
		}
	}
	return nil
}

func startsChapter(n *html.Node) bool {
	if n.Type != html.ElementNode {
		return false
	}
	switch n.DataAtom {
	case atom.Section, atom.Article, atom.Header, atom.Footer:
		return true
	}
	return false
}

// headingText returns the text of the first h1, h2 or h3 under n.
func headingText(n *html.Node) string {
	if n.Type == html.ElementNode {
		switch n.DataAtom {
		case atom.H1, atom.H2, atom.H3:
			return strings.Join(strings.Fields(dom.CollectText(n)), " ")
		}
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if t := headingText(c); t != "" {
			return t
		}
	}
	return ""
}

func inlineImages(n *html.Node, images ImageSource) {
	if n.Type == html.ElementNode && n.DataAtom == atom.Img {
		src := strings.TrimSpace(dom.GetAttributeOr(n, "src", ""))
		if src != "" && !strings.HasPrefix(src, "data:") {
			if data, mime, ok := images(src); ok {
				for i := range n.Attr {
					if n.Attr[i].Key == "src" {
						n.Attr[i].Val = dataURI(mime, data)
					}
				}
			}
		}
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		inlineImages(c, images)
	}
}

// extractImages moves data URI images into the book and points their src
// at the internal copy.
func extractImages(e *epub.Epub, body string, chapterIdx int, log *zap.Logger) string {
	imgIdx := 0
	return imgDataURIRe.ReplaceAllStringFunc(body, func(match string) string {
		parts := imgDataURIRe.FindStringSubmatch(match)
		prefix, mime, b64data, suffix := parts[1], parts[2], parts[3], parts[4]

		ext := ".jpg"
		switch {
		case strings.Contains(mime, "png"):
			ext = ".png"
		case strings.Contains(mime, "gif"):
			ext = ".gif"
		case strings.Contains(mime, "svg"):
			ext = ".svg"
		case strings.Contains(mime, "webp"):
			ext = ".webp"
		}
		filename := fmt.Sprintf("s%03d_img%03d%s", chapterIdx, imgIdx, ext)
		imgIdx++

		if _, err := base64.StdEncoding.DecodeString(b64data); err != nil {
			if _, err := base64.RawStdEncoding.DecodeString(b64data); err != nil {
				log.Warn("invalid base64 image", zap.String("file", filename), zap.Error(err))
				return match
			}
		}
		internal, err := e.AddImage("data:"+mime+";base64,"+b64data, filename)
		if err != nil {
			log.Warn("could not add image", zap.String("file", filename), zap.Error(err))
			return match
		}
		return prefix + internal + suffix
	})
}

// contentsBody renders the front matter list of chapters.
func contentsBody(chapters []chapter) string {
	var b strings.Builder
	b.WriteString("<h1>Contents</h1>\n<ol class=\"toc\">\n")
	for i, ch := range chapters {
		fmt.Fprintf(&b, "<li><a href=\"%s\">%s</a></li>\n", chapterFile(i), gohtml.EscapeString(ch.Title))
	}
	b.WriteString("</ol>\n")
	return b.String()
}
