package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/adammathes/sitedeck/assets"
	"github.com/adammathes/sitedeck/editor"
)

var errNothingToEdit = errors.New("nothing to edit: pass --set, --replace or --list")

func editCmd(a *app) *cobra.Command {
	var (
		list        bool
		sets        []string
		replaces    []string
		importURLs  bool
		keepMarkers bool
		output      string
	)

	cmd := cobra.Command{
		Use:   "edit SITE",
		Short: "Edit the text and images of a site in place",
		Long: `Edit opens a session over the site, applies every --set and --replace
and saves the result. Node IDs come from --list and are only valid for the
document they were listed from.

A --replace value is either an image URL or a local file, which is uploaded
to the asset store. With --import remote URLs are copied into the store too.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := args[0]
			site, err := readSite(path)
			if err != nil {
				return err
			}
			store := a.assetStore()
			session := editor.New(site.HTML, func(doc string) { site.HTML = doc },
				editor.WithLogger(a.log.Named("editor")),
				editor.WithUploader(store),
				editor.WithKeepMarkers(keepMarkers),
			)
			if err := session.Edit(); err != nil {
				return err
			}

			if list {
				return multierr.Append(printNodes(cmd.OutOrStdout(), session), session.Cancel())
			}
			if len(sets) == 0 && len(replaces) == 0 {
				return multierr.Append(errNothingToEdit, session.Cancel())
			}

			var errs error
			for _, kv := range sets {
				id, text, err := parseAssignment(kv)
				if err != nil {
					errs = multierr.Append(errs, fmt.Errorf("--set: %w", err))
					continue
				}
				errs = multierr.Append(errs, session.SetText(id, text))
			}
			for _, kv := range replaces {
				id, value, err := parseAssignment(kv)
				if err != nil {
					errs = multierr.Append(errs, fmt.Errorf("--replace: %w", err))
					continue
				}
				var im *assets.Importer
				if importURLs && isRemote(value) {
					if im, err = a.importer(store); err != nil {
						errs = multierr.Append(errs, err)
						continue
					}
				}
				errs = multierr.Append(errs, replaceImage(cmd.Context(), session, im, id, value))
			}
			if errs != nil {
				return multierr.Append(errs, session.Cancel())
			}

			if _, err := session.Save(); err != nil {
				return err
			}
			if output == "" {
				output = path
			}
			if err := writeSite(output, site); err != nil {
				return err
			}
			a.log.Info("saved site",
				zap.String("path", output),
				zap.Int("texts", len(sets)),
				zap.Int("images", len(replaces)),
			)
			return nil
		},
	}

	cmd.Flags().BoolVar(&list, "list", false, "List editable text runs and images with their IDs")
	cmd.Flags().StringArrayVar(&sets, "set", nil, "Replace the text of a run: ID=TEXT (repeatable)")
	cmd.Flags().StringArrayVar(&replaces, "replace", nil, "Replace an image: ID=URL or ID=FILE (repeatable)")
	cmd.Flags().BoolVar(&importURLs, "import", false, "Copy remote replacement images into the asset store")
	cmd.Flags().BoolVar(&keepMarkers, "keep-markers", false, "Keep editing markers in the saved document")
	cmd.Flags().StringVarP(&output, "out", "o", "", "Write the edited site here instead of over SITE")

	return &cmd
}

func printNodes(w io.Writer, s *editor.Session) error {
	runs, err := s.TextRuns()
	if err != nil {
		return err
	}
	images, err := s.Images()
	if err != nil {
		return err
	}

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tKIND\tCONTENT")
	for _, r := range runs {
		fmt.Fprintf(tw, "%d\ttext\t%s\n", r.ID, ellipsize(r.Text, 60))
	}
	for _, img := range images {
		fmt.Fprintf(tw, "%d\timage\t%s\n", img.ID, ellipsize(img.Src, 60))
	}
	return tw.Flush()
}

// replaceImage runs one replace flow to completion. Any failure leaves the
// image untouched.
func replaceImage(ctx context.Context, s *editor.Session, im *assets.Importer, id editor.NodeID, value string) (err error) {
	if err := s.OpenReplace(id); err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = s.CancelReplace()
		}
	}()

	if isRemote(value) {
		url := value
		if im != nil {
			if url, err = im.Import(ctx, value); err != nil {
				return err
			}
		}
		if err := s.SetReplaceURL(url); err != nil {
			return err
		}
		return s.ApplyReplace()
	}

	f, err := os.Open(value)
	if err != nil {
		return fmt.Errorf("replacement image: %w", err)
	}
	defer closeWith(&err, f)
	info, err := f.Stat()
	if err != nil {
		return fmt.Errorf("replacement image: %w", err)
	}
	if _, err := s.UploadReplacement(ctx, filepath.Base(value), info.Size(), f); err != nil {
		return err
	}
	if err := s.WaitUploads(ctx); err != nil {
		return err
	}
	if st, ok := s.Replacing(); ok && st.Err != nil {
		return st.Err
	}
	return s.ApplyReplace()
}

// parseAssignment splits "ID=VALUE".
func parseAssignment(kv string) (editor.NodeID, string, error) {
	key, value, ok := strings.Cut(kv, "=")
	if !ok {
		return 0, "", fmt.Errorf("%q is not ID=VALUE", kv)
	}
	id, err := strconv.Atoi(strings.TrimSpace(key))
	if err != nil {
		return 0, "", fmt.Errorf("%q: invalid node ID", kv)
	}
	return editor.NodeID(id), value, nil
}

func isRemote(s string) bool {
	return strings.HasPrefix(s, "http://") || strings.HasPrefix(s, "https://")
}

func ellipsize(s string, n int) string {
	s = strings.Join(strings.Fields(s), " ")
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}
