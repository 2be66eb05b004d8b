package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/adammathes/sitedeck/assets"
)

func assetsCmd(a *app) *cobra.Command {
	cmd := cobra.Command{
		Use:   "assets",
		Short: "Upload, import and search images for a site",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "upload FILE...",
		Short: "Store local files and print their URLs",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store := a.assetStore()
			for _, file := range args {
				url, err := uploadFile(cmd.Context(), store, file, a.log)
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), url)
			}
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "import URL...",
		Short: "Copy remote images into the store and print their URLs",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			im, err := a.importer(a.assetStore())
			if err != nil {
				return err
			}
			for _, raw := range args {
				url, err := im.Import(cmd.Context(), raw)
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), url)
			}
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "search QUERY",
		Short: "Search stock photos",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if a.cfg.Pexels.APIKey == "" {
				return fmt.Errorf("no Pexels API key: set PEXELS_API_KEY or pexels.api_key")
			}
			photos, err := assets.NewPexels(a.cfg.Pexels.APIKey).Search(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "SIZE\tBY\tURL")
			for _, p := range photos {
				fmt.Fprintf(tw, "%dx%d\t%s\t%s\n", p.Width, p.Height, p.Photographer, p.Src.Large)
			}
			return tw.Flush()
		},
	})

	return &cmd
}

// uploadFile streams a local file into the store, logging progress.
func uploadFile(ctx context.Context, store *assets.Store, path string, log *zap.Logger) (url string, err error) {
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("upload: %w", err)
	}
	defer closeWith(&err, f)
	info, err := f.Stat()
	if err != nil {
		return "", fmt.Errorf("upload: %w", err)
	}

	last := -1
	return store.Upload(ctx, filepath.Base(path), info.Size(), f, func(percent int) {
		if last < 0 || percent-last >= 25 || (percent == 100 && last != 100) {
			last = percent
			log.Debug("uploading", zap.String("file", path), zap.Int("percent", percent))
		}
	})
}
