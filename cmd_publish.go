package main

import (
	"errors"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/adammathes/sitedeck/publish"
)

func publishCmd(a *app) *cobra.Command {
	var (
		name      string
		plan      string
		owner     string
		list      bool
		unpublish string
	)

	cmd := cobra.Command{
		Use:   "publish [SITE]",
		Short: "Publish a site under a name, or list and remove published sites",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) (err error) {
			if owner == "" {
				owner = a.cfg.Owner
			}
			sites, err := a.sites()
			if err != nil {
				return err
			}
			defer closeWith(&err, sites)
			ctx := cmd.Context()

			switch {
			case list:
				records, err := sites.ListByOwner(ctx, owner)
				if err != nil {
					return err
				}
				tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
				fmt.Fprintln(tw, "NAME\tPLAN\tUPDATED\tTITLE")
				for _, r := range records {
					fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", r.Name, r.Plan, r.UpdatedAt.Format("2006-01-02 15:04"), r.Title)
				}
				return tw.Flush()

			case unpublish != "":
				return sites.Unpublish(ctx, unpublish, owner)
			}

			if len(args) != 1 {
				return errors.New("publish needs a SITE file, --list or --unpublish NAME")
			}
			site, err := readSite(args[0])
			if err != nil {
				return err
			}
			p, err := publish.ParsePlan(plan)
			if err != nil {
				return err
			}
			rec, err := sites.Publish(ctx, publish.Site{
				Name:    name,
				HTML:    site.HTML,
				Plan:    p,
				Owner:   owner,
				Palette: site.Palette,
			})
			if err != nil {
				return err
			}
			a.log.Info("published", zap.String("name", rec.Name), zap.String("plan", string(rec.Plan)))
			fmt.Fprintln(cmd.OutOrStdout(), rec.Name)
			return nil
		},
	}

	cmd.Flags().StringVar(&name, "name", "", "Site name, a lowercase DNS label")
	cmd.Flags().StringVar(&plan, "plan", string(publish.Monthly), "Billing plan: monthly or annual")
	cmd.Flags().StringVar(&owner, "owner", "", "Owner ID (default from config or SITEDECK_OWNER)")
	cmd.Flags().BoolVar(&list, "list", false, "List the owner's published sites")
	cmd.Flags().StringVar(&unpublish, "unpublish", "", "Remove the named site")

	return &cmd
}

func showCmd(a *app) *cobra.Command {
	var output string

	cmd := cobra.Command{
		Use:   "show NAME",
		Short: "Render a published site as a standalone page",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) (err error) {
			sites, err := a.sites()
			if err != nil {
				return err
			}
			defer closeWith(&err, sites)

			rec, err := sites.Get(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			mode, err := a.theme()
			if err != nil {
				return err
			}
			page := publish.RenderPage(rec.HTML, publish.PageOptions{
				Title:   rec.Title,
				Palette: rec.Palette,
				Theme:   mode,
			})
			if output == "" {
				_, err = cmd.OutOrStdout().Write([]byte(page))
				return err
			}
			return os.WriteFile(output, []byte(page), 0o644)
		},
	}

	cmd.Flags().StringVarP(&output, "out", "o", "", "Output file (default: stdout)")
	return &cmd
}
