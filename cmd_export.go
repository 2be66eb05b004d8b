package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/adammathes/sitedeck/assets"
	"github.com/adammathes/sitedeck/export"
)

func exportCmd(a *app) *cobra.Command {
	var (
		format string
		output string
		author string
	)

	cmd := cobra.Command{
		Use:   "export SITE",
		Short: "Export a site as Markdown or EPUB",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			site, err := readSite(args[0])
			if err != nil {
				return err
			}

			switch strings.ToLower(format) {
			case "md", "markdown":
				md, err := export.Markdown(site.HTML)
				if err != nil {
					return err
				}
				if output == "" {
					_, err = fmt.Fprint(cmd.OutOrStdout(), md)
					return err
				}
				return os.WriteFile(output, []byte(md), 0o644)

			case "epub":
				if output == "" {
					return fmt.Errorf("--format epub requires -o output.epub")
				}
				book := export.Book{
					Title:   site.Title,
					Author:  author,
					HTML:    site.HTML,
					Palette: site.Palette,
				}
				err := export.EPUB(book, output,
					export.WithImages(localImages(a.assetStore())),
					export.WithLogger(a.log.Named("epub")),
				)
				if err != nil {
					return fmt.Errorf("building epub: %w", err)
				}
				a.log.Info("wrote epub", zap.String("path", output))
				return nil
			}
			return fmt.Errorf("unknown format %q (want md or epub)", format)
		},
	}

	cmd.Flags().StringVar(&format, "format", "md", "Output format: md or epub")
	cmd.Flags().StringVarP(&output, "out", "o", "", "Output file (default: stdout, required for epub)")
	cmd.Flags().StringVar(&author, "author", "", "EPUB author (default sitedeck)")

	return &cmd
}

// localImages resolves images that live in the asset store so they can be
// embedded in a book.
func localImages(store *assets.Store) export.ImageSource {
	return func(src string) ([]byte, string, bool) {
		path, ok := store.Path(src)
		if !ok {
			return nil, "", false
		}
		data, err := os.ReadFile(filepath.Clean(path))
		if err != nil {
			return nil, "", false
		}
		return data, mimetype.Detect(data).String(), true
	}
}
