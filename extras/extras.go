// Package extras builds the embeddable blocks a user can append to a site:
// maps, street view, galleries, product grids, videos and forms.
package extras

import (
	"bytes"
	"errors"
	"fmt"
	"html"
	"html/template"
	"strings"

	"github.com/microcosm-cc/bluemonday"

	"github.com/adammathes/sitedeck/editor"
)

// Kind names a block type. The values are the ones the studio sends.
type Kind string

const (
	KindMap        Kind = "map"
	KindStreetView Kind = "street"
	KindGallery    Kind = "gallery"
	KindProducts   Kind = "products"
	KindVideo      Kind = "video"
	KindGoogleForm Kind = "gform"
)

var Kinds = []Kind{KindMap, KindStreetView, KindGallery, KindProducts, KindVideo, KindGoogleForm}

// ErrInvalid is returned for input a block cannot be built from.
var ErrInvalid = errors.New("extras: invalid input")

// Builder produces one HTML fragment.
type Builder interface {
	Kind() Kind
	Fragment() (string, error)
}

var strict = bluemonday.StrictPolicy()

// plain strips markup from user-supplied text. The result is unescaped
// again since the templates escape on output.
func plain(s string) string {
	return strings.TrimSpace(html.UnescapeString(strict.Sanitize(s)))
}

func render(name string, data any) (string, error) {
	var buf bytes.Buffer
	if err := templates.ExecuteTemplate(&buf, name, data); err != nil {
		return "", fmt.Errorf("rendering %s block: %w", name, err)
	}
	return buf.String(), nil
}

// Append adds the block to the end of a canonical document.
func Append(canonical string, b Builder) (string, error) {
	frag, err := b.Fragment()
	if err != nil {
		return "", err
	}
	return editor.AppendHTML(canonical, frag)
}

// Insert adds the block to a session: into the canonical document while
// viewing, into the live tree while editing.
func Insert(s *editor.Session, b Builder) error {
	frag, err := b.Fragment()
	if err != nil {
		return err
	}
	return s.AppendExtras(frag)
}

var templates = template.Must(template.New("extras").Parse(`
{{- define "map" -}}
<div class="extra-map"><iframe width="100%" height="350" style="border:0;border-radius:12px;" src="{{.}}" loading="lazy"></iframe></div>
{{- end -}}

{{- define "street" -}}
<div class="extra-streetview"><iframe width="100%" height="350" style="border:0;border-radius:12px;" src="{{.}}" loading="lazy"></iframe></div>
{{- end -}}

{{- define "gallery" -}}
<h3 style="font-size:22px;margin-bottom:12px;">{{.Title}}</h3>
<div class="extra-gallery" style="display:grid;grid-template-columns:repeat(auto-fill,minmax(140px,1fr));gap:12px;">
{{- range .URLs}}
<img src="{{.}}" style="width:100%;height:130px;object-fit:cover;border-radius:12px;box-shadow:0 4px 10px rgba(0,0,0,0.06);"/>
{{- end}}
</div>
{{- end -}}

{{- define "products" -}}
<h3 style="font-size:22px;margin-bottom:12px;">{{.Title}}</h3>
<div class="extra-product-grid" style="display:grid;grid-template-columns:repeat(auto-fill,minmax(180px,1fr));gap:18px;">
{{- range .Items}}
<div class="product-card" style="padding:12px;background:white;border-radius:14px;box-shadow:0 4px 15px rgba(0,0,0,0.08);">
<img src="{{.Image}}" style="width:100%;height:120px;object-fit:cover;border-radius:12px;margin-bottom:8px;"/>
<h3 style="font-size:16px;font-weight:600;margin-bottom:4px;">{{.Name}}</h3>
<p style="color:#555;font-size:14px;">{{$.Currency}}{{.Price}}</p>
</div>
{{- end}}
</div>
{{- end -}}

{{- define "video" -}}
<div class="extra-video-block"><h3 class="extra-video-title">{{.Title}}</h3><video controls="" width="100%" class="extra-video-player"><source src="{{.URL}}" type="{{.Type}}"/></video></div>
{{- end -}}

{{- define "gform" -}}
<div class="extra-gform-block"><h3 class="extra-gform-title">{{.Title}}</h3><iframe src="{{.URL}}" width="100%" height="600" frameborder="0" class="extra-gform-frame"></iframe></div>
{{- end -}}
`))
