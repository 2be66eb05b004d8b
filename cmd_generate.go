package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/adammathes/sitedeck/generate"
	"github.com/adammathes/sitedeck/theme"
)

func generateCmd(a *app) *cobra.Command {
	var (
		siteType string
		color    string
		output   string
		from     string
	)

	cmd := cobra.Command{
		Use:   "generate DESCRIPTION",
		Short: "Generate a site from a description, or rebuild an existing one",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			typ, err := generate.ParseSiteType(siteType)
			if err != nil {
				return err
			}
			if color != "" {
				if _, err := theme.ParseHex(color); err != nil {
					return fmt.Errorf("--color: %w", err)
				}
			}
			client, err := a.generator()
			if err != nil {
				return err
			}

			req := generate.Request{
				Description: strings.Join(args, " "),
				SiteType:    typ,
				ThemeColor:  color,
			}

			var site *generate.Site
			if from != "" {
				current, err := readSite(from)
				if err != nil {
					return err
				}
				a.log.Info("rebuilding site", zap.String("from", from), zap.String("type", string(typ)))
				site, err = client.Rebuild(cmd.Context(), req, current.HTML)
				if err != nil {
					return err
				}
			} else {
				a.log.Info("generating site", zap.String("type", string(typ)))
				site, err = client.Generate(cmd.Context(), req)
				if err != nil {
					return err
				}
			}

			if output == "" {
				output = "site.json"
			}
			if err := writeSite(output, site); err != nil {
				return err
			}
			a.log.Info("wrote site", zap.String("title", site.Title), zap.String("path", output))
			return nil
		},
	}

	cmd.Flags().StringVar(&siteType, "type", string(generate.Portfolio), "Site type: "+siteTypeList())
	cmd.Flags().StringVar(&color, "color", "", "Primary theme color as #rrggbb")
	cmd.Flags().StringVarP(&output, "out", "o", "", "Output site file (default site.json)")
	cmd.Flags().StringVar(&from, "from", "", "Rebuild this site file instead of starting fresh")

	return &cmd
}

func siteTypeList() string {
	names := make([]string, len(generate.SiteTypes))
	for i, t := range generate.SiteTypes {
		names[i] = string(t)
	}
	return strings.Join(names, ", ")
}
