package main

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/adammathes/sitedeck/generate"
)

// readSite loads a site file written by generate or edit.
func readSite(path string) (*generate.Site, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading site: %w", err)
	}
	var site generate.Site
	if err := json.Unmarshal(data, &site); err != nil {
		return nil, fmt.Errorf("parsing site %s: %w", path, err)
	}
	if strings.TrimSpace(site.HTML) == "" {
		return nil, fmt.Errorf("site %s has no html", path)
	}
	site.Palette = site.Palette.WithDefaults()
	return &site, nil
}

// writeSite replaces path atomically so an interrupted write never leaves a
// truncated site behind.
func writeSite(path string, site *generate.Site) (err error) {
	data, err := json.MarshalIndent(site, "", "  ")
	if err != nil {
		return err
	}
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, ".site-*.json")
	if err != nil {
		return fmt.Errorf("writing site: %w", err)
	}
	defer func() {
		if err != nil {
			_ = os.Remove(tmp.Name())
		}
	}()
	if _, err := tmp.Write(append(data, '\n')); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("writing site: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("writing site: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("writing site: %w", err)
	}
	return nil
}
