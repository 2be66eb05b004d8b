package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/adammathes/sitedeck/extras"
)

type extrasFlags struct {
	lat, lng float64
	title    string
	urls     []string
	files    []string
	products []string
	currency string
}

func extrasCmd(a *app) *cobra.Command {
	var f extrasFlags

	cmd := cobra.Command{
		Use:   "extras SITE KIND",
		Short: "Append a block to a site: " + kindList(),
		Long: `Extras appends an embeddable block to the end of the site.

  map, street   --lat and --lng
  gallery       --url or --file per image, optional --title
  products      --product "NAME|PRICE|IMAGE" per item, --currency, --title
  video, gform  --url (or --file for video), optional --title

Local files are uploaded to the asset store first.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := args[0]
			site, err := readSite(path)
			if err != nil {
				return err
			}
			if len(f.files) > 0 {
				store := a.assetStore()
				for _, file := range f.files {
					url, err := uploadFile(cmd.Context(), store, file, a.log)
					if err != nil {
						return err
					}
					f.urls = append(f.urls, url)
				}
			}
			b, err := buildExtra(extras.Kind(args[1]), f)
			if err != nil {
				return err
			}
			doc, err := extras.Append(site.HTML, b)
			if err != nil {
				return err
			}
			site.HTML = doc
			if err := writeSite(path, site); err != nil {
				return err
			}
			a.log.Info("added block", zap.String("kind", string(b.Kind())), zap.String("path", path))
			return nil
		},
	}

	flags := cmd.Flags()
	flags.Float64Var(&f.lat, "lat", 0, "Latitude for map and street blocks")
	flags.Float64Var(&f.lng, "lng", 0, "Longitude for map and street blocks")
	flags.StringVar(&f.title, "title", "", "Block title")
	flags.StringArrayVar(&f.urls, "url", nil, "Image, video or form URL (repeatable)")
	flags.StringArrayVar(&f.files, "file", nil, "Local image or video to upload (repeatable)")
	flags.StringArrayVar(&f.products, "product", nil, `Product as "NAME|PRICE|IMAGE" (repeatable)`)
	flags.StringVar(&f.currency, "currency", "", "Price prefix for products (default R)")

	return &cmd
}

func buildExtra(kind extras.Kind, f extrasFlags) (extras.Builder, error) {
	first := ""
	if len(f.urls) > 0 {
		first = f.urls[0]
	}
	switch kind {
	case extras.KindMap:
		return extras.Map{Lat: f.lat, Lng: f.lng}, nil
	case extras.KindStreetView:
		return extras.StreetView{Lat: f.lat, Lng: f.lng}, nil
	case extras.KindGallery:
		return extras.Gallery{Title: f.title, URLs: f.urls}, nil
	case extras.KindProducts:
		p := extras.Products{Title: f.title, Currency: f.currency}
		for _, item := range f.products {
			parts := strings.SplitN(item, "|", 3)
			if len(parts) != 3 {
				return nil, fmt.Errorf("--product %q: want NAME|PRICE|IMAGE", item)
			}
			p.Items = append(p.Items, extras.Product{Name: parts[0], Price: parts[1], Image: parts[2]})
		}
		return p, nil
	case extras.KindVideo:
		return extras.Video{Title: f.title, URL: first}, nil
	case extras.KindGoogleForm:
		return extras.GoogleForm{Title: f.title, URL: first}, nil
	}
	return nil, fmt.Errorf("unknown block kind %q (want %s)", kind, kindList())
}

func kindList() string {
	names := make([]string, len(extras.Kinds))
	for i, k := range extras.Kinds {
		names[i] = string(k)
	}
	return strings.Join(names, ", ")
}
