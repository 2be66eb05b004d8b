// sitedeck: generate a website from a description, then edit, extend,
// publish and export it.
//
//	sitedeck generate "a bakery in Cape Town" -o site.json
//	sitedeck edit site.json --list
//	sitedeck edit site.json --set 4="Fresh bread daily" --replace 9=hero.jpg
//	sitedeck extras site.json map --lat -33.92 --lng 18.42
//	sitedeck publish site.json --name bakery
//	sitedeck export site.json --format epub -o bakery.epub
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/adammathes/sitedeck/assets"
	"github.com/adammathes/sitedeck/generate"
	"github.com/adammathes/sitedeck/publish"
	"github.com/adammathes/sitedeck/theme"
)

// app carries the state shared by every command once flags are parsed.
type app struct {
	configPath string
	verbose    bool
	silent     bool

	cfg config
	log *zap.Logger
}

func root() *cobra.Command {
	a := &app{log: zap.NewNop()}

	cmd := cobra.Command{
		Use:           "sitedeck",
		Short:         "Generate, edit and publish single-page websites",
		SilenceErrors: true,
		SilenceUsage:  true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.setup(cmd.Flags().Changed("config"))
		},
		PersistentPostRun: func(*cobra.Command, []string) {
			_ = a.log.Sync()
		},
	}

	pflags := cmd.PersistentFlags()
	pflags.StringVar(&a.configPath, "config", "sitedeck.yaml", "Path to the config file")
	pflags.BoolVarP(&a.verbose, "verbose", "v", false, "Log debug output")
	pflags.BoolVar(&a.silent, "silent", false, "Suppress all output except errors (for pipeline use)")

	cmd.AddCommand(generateCmd(a))
	cmd.AddCommand(editCmd(a))
	cmd.AddCommand(extrasCmd(a))
	cmd.AddCommand(publishCmd(a))
	cmd.AddCommand(showCmd(a))
	cmd.AddCommand(exportCmd(a))
	cmd.AddCommand(themeCmd(a))
	cmd.AddCommand(assetsCmd(a))

	return &cmd
}

func (a *app) setup(explicit bool) error {
	cfg, err := loadConfig(a.configPath, explicit)
	if err != nil {
		return err
	}
	log, err := newLogger(cfg.LogLevel, a.verbose, a.silent)
	if err != nil {
		return err
	}
	a.cfg = cfg
	a.log = log
	return nil
}

func (a *app) generator() (*generate.Client, error) {
	if a.cfg.OpenAI.APIKey == "" {
		return nil, generate.ErrNoAPIKey
	}
	c := generate.NewClient(a.cfg.OpenAI.APIKey)
	c.Endpoint = a.cfg.OpenAI.Endpoint
	c.Model = a.cfg.OpenAI.Model
	c.HTTP.Timeout = a.cfg.OpenAI.Timeout
	c.Logger = a.log.Named("generate")
	return c, nil
}

func (a *app) assetStore() *assets.Store {
	opts := assets.OptimizeOptions{
		MaxWidth: a.cfg.Assets.MaxWidth,
		Quality:  a.cfg.Assets.Quality,
	}
	return assets.NewStore(a.cfg.Assets.Dir, a.cfg.Assets.BaseURL,
		assets.WithStoreLogger(a.log.Named("assets")),
		assets.WithMaxBytes(a.cfg.Assets.MaxBytes),
		assets.WithOptimize(&opts),
	)
}

func (a *app) importer(store *assets.Store) (*assets.Importer, error) {
	opts := []assets.ImporterOption{
		assets.WithImporterLogger(a.log.Named("import")),
		assets.WithUserAgent(a.cfg.Assets.UserAgent),
	}
	if a.cfg.Assets.Proxy != "" {
		return assets.NewProxyImporter(store, a.cfg.Assets.Timeout, a.cfg.Assets.Proxy, opts...)
	}
	return assets.NewImporter(store, a.cfg.Assets.Timeout, opts...), nil
}

func (a *app) sites() (*publish.Store, error) {
	return publish.Open(a.cfg.Publish.Database, publish.WithLogger(a.log.Named("publish")))
}

func (a *app) theme() (theme.Context, error) {
	return theme.Load(a.cfg.ThemeFile)
}

// closeWith closes c and appends its error to *err.
func closeWith(err *error, c interface{ Close() error }) {
	*err = multierr.Append(*err, c.Close())
}

func main() {
	if err := root().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
