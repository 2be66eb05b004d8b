// Package theme holds the light/dark preference and the color palette a
// generated site is rendered with.
package theme

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Mode is a display mode.
type Mode string

const (
	Light Mode = "light"
	Dark  Mode = "dark"
)

// Context is the theme preference handed to renderers. The zero value is
// light.
type Context struct {
	Mode Mode `yaml:"mode"`
}

// Valid reports whether m is a known mode.
func (m Mode) Valid() bool { return m == Light || m == Dark }

// Load reads a persisted preference. A missing file yields light.
func Load(path string) (Context, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return Context{Mode: Light}, nil
	}
	if err != nil {
		return Context{Mode: Light}, fmt.Errorf("reading theme: %w", err)
	}
	var c Context
	if err := yaml.Unmarshal(data, &c); err != nil {
		return Context{Mode: Light}, fmt.Errorf("parsing theme %s: %w", path, err)
	}
	if !c.Mode.Valid() {
		c.Mode = Light
	}
	return c, nil
}

// Save persists the preference, creating parent directories as needed.
func (c Context) Save(path string) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("creating theme directory: %w", err)
		}
	}
	data, err := yaml.Marshal(Context{Mode: c.mode()})
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

// Toggle flips between light and dark.
func (c Context) Toggle() Context {
	if c.mode() == Dark {
		return Context{Mode: Light}
	}
	return Context{Mode: Dark}
}

// Attr is the data-theme attribute value for the root element.
func (c Context) Attr() string { return string(c.mode()) }

func (c Context) mode() Mode {
	if c.Mode.Valid() {
		return c.Mode
	}
	return Light
}
