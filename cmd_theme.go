package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/adammathes/sitedeck/theme"
)

func themeCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:       "theme [toggle|light|dark]",
		Short:     "Show or change the light/dark preference",
		Args:      cobra.MaximumNArgs(1),
		ValidArgs: []string{"toggle", string(theme.Light), string(theme.Dark)},
		RunE: func(cmd *cobra.Command, args []string) error {
			current, err := a.theme()
			if err != nil {
				return err
			}
			if len(args) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), current.Attr())
				return nil
			}

			next := current
			switch args[0] {
			case "toggle":
				next = current.Toggle()
			case string(theme.Light), string(theme.Dark):
				next = theme.Context{Mode: theme.Mode(args[0])}
			default:
				return fmt.Errorf("unknown theme %q (want toggle, light or dark)", args[0])
			}
			if err := next.Save(a.cfg.ThemeFile); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), next.Attr())
			return nil
		},
	}
}
