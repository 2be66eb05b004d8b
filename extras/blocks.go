package extras

import (
	"fmt"
	"net/url"
	"path"
	"strconv"
	"strings"
)

func coord(f float64) string { return strconv.FormatFloat(f, 'f', -1, 64) }

func checkLatLng(lat, lng float64) error {
	if lat < -90 || lat > 90 || lng < -180 || lng > 180 {
		return fmt.Errorf("coordinates %s,%s out of range: %w", coord(lat), coord(lng), ErrInvalid)
	}
	return nil
}

// checkURL accepts absolute http(s) URLs and root-relative paths.
func checkURL(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", fmt.Errorf("empty URL: %w", ErrInvalid)
	}
	if strings.HasPrefix(raw, "/") && !strings.HasPrefix(raw, "//") {
		return raw, nil
	}
	u, err := url.Parse(raw)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return "", fmt.Errorf("URL %q: %w", raw, ErrInvalid)
	}
	return raw, nil
}

// Map embeds a pinned location.
type Map struct {
	Lat, Lng float64
}

func (Map) Kind() Kind { return KindMap }

func (m Map) Fragment() (string, error) {
	if err := checkLatLng(m.Lat, m.Lng); err != nil {
		return "", err
	}
	src := fmt.Sprintf("https://www.google.com/maps?q=%s,%s&output=embed", coord(m.Lat), coord(m.Lng))
	return render("map", src)
}

// StreetView embeds the street-level panorama nearest a location.
type StreetView struct {
	Lat, Lng float64
}

func (StreetView) Kind() Kind { return KindStreetView }

func (s StreetView) Fragment() (string, error) {
	if err := checkLatLng(s.Lat, s.Lng); err != nil {
		return "", err
	}
	src := fmt.Sprintf("https://www.google.com/maps?q=&layer=c&cbll=%s,%s&cbp=12,0,0,0,0&output=svembed", coord(s.Lat), coord(s.Lng))
	return render("street", src)
}

// Gallery is a grid of images. Blank URLs are skipped.
type Gallery struct {
	Title string
	URLs  []string
}

func (Gallery) Kind() Kind { return KindGallery }

func (g Gallery) Fragment() (string, error) {
	data := struct {
		Title string
		URLs  []string
	}{Title: plain(g.Title)}
	if data.Title == "" {
		data.Title = "Gallery"
	}
	for _, u := range g.URLs {
		if strings.TrimSpace(u) == "" {
			continue
		}
		checked, err := checkURL(u)
		if err != nil {
			return "", err
		}
		data.URLs = append(data.URLs, checked)
	}
	if len(data.URLs) == 0 {
		return "", fmt.Errorf("gallery has no images: %w", ErrInvalid)
	}
	return render("gallery", data)
}

// Product is one card of a product grid.
type Product struct {
	Name  string
	Price string
	Image string
}

// Products is a product grid. Only products with a name, a price and an
// image are shown.
type Products struct {
	Title    string
	Currency string // price prefix, "R" if empty
	Items    []Product
}

func (Products) Kind() Kind { return KindProducts }

func (p Products) Fragment() (string, error) {
	data := struct {
		Title    string
		Currency string
		Items    []Product
	}{Title: plain(p.Title), Currency: plain(p.Currency)}
	if data.Title == "" {
		data.Title = "Products"
	}
	if p.Currency == "" {
		data.Currency = "R"
	}
	for _, it := range p.Items {
		it = Product{Name: plain(it.Name), Price: plain(it.Price), Image: strings.TrimSpace(it.Image)}
		if it.Name == "" || it.Price == "" || it.Image == "" {
			continue
		}
		img, err := checkURL(it.Image)
		if err != nil {
			return "", err
		}
		it.Image = img
		data.Items = append(data.Items, it)
	}
	if len(data.Items) == 0 {
		return "", fmt.Errorf("no complete products: %w", ErrInvalid)
	}
	return render("products", data)
}

// Video embeds an uploaded video file.
type Video struct {
	Title string
	URL   string
}

func (Video) Kind() Kind { return KindVideo }

func (v Video) Fragment() (string, error) {
	src, err := checkURL(v.URL)
	if err != nil {
		return "", err
	}
	title := plain(v.Title)
	if title == "" {
		title = "Video"
	}
	return render("video", struct{ Title, URL, Type string }{title, src, videoType(src)})
}

func videoType(src string) string {
	u, err := url.Parse(src)
	if err != nil {
		return "video/mp4"
	}
	switch strings.ToLower(path.Ext(u.Path)) {
	case ".webm":
		return "video/webm"
	case ".ogv", ".ogg":
		return "video/ogg"
	case ".mov":
		return "video/quicktime"
	}
	return "video/mp4"
}

// GoogleForm embeds a published Google Form.
type GoogleForm struct {
	Title string
	URL   string
}

func (GoogleForm) Kind() Kind { return KindGoogleForm }

func (f GoogleForm) Fragment() (string, error) {
	src, err := checkURL(f.URL)
	if err != nil {
		return "", err
	}
	if !strings.Contains(src, "docs.google.com/forms") {
		return "", fmt.Errorf("not a Google Form URL %q: %w", src, ErrInvalid)
	}
	title := plain(f.Title)
	if title == "" {
		title = "Form"
	}
	return render("gform", struct{ Title, URL string }{title, src})
}
