package main

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/adammathes/sitedeck/assets"
	"github.com/adammathes/sitedeck/generate"
)

// config is sitedeck.yaml. Secrets may come from the environment instead.
type config struct {
	LogLevel string `yaml:"log_level"`
	Owner    string `yaml:"owner"`

	OpenAI struct {
		APIKey   string        `yaml:"api_key"`
		Endpoint string        `yaml:"endpoint"`
		Model    string        `yaml:"model"`
		Timeout  time.Duration `yaml:"timeout"`
	} `yaml:"openai"`

	Pexels struct {
		APIKey string `yaml:"api_key"`
	} `yaml:"pexels"`

	Assets struct {
		Dir       string        `yaml:"dir"`
		BaseURL   string        `yaml:"base_url"`
		MaxWidth  int           `yaml:"max_width"`
		Quality   int           `yaml:"quality"`
		MaxBytes  int64         `yaml:"max_bytes"`
		UserAgent string        `yaml:"user_agent"`
		Timeout   time.Duration `yaml:"timeout"`
		Proxy     string        `yaml:"proxy"`
	} `yaml:"assets"`

	Publish struct {
		Database string `yaml:"database"`
	} `yaml:"publish"`

	ThemeFile string `yaml:"theme_file"`
}

func defaultConfig() config {
	var c config
	c.LogLevel = "info"
	c.OpenAI.Endpoint = generate.DefaultEndpoint
	c.OpenAI.Model = generate.DefaultModel
	c.OpenAI.Timeout = generate.DefaultTimeout
	c.Assets.Dir = "sitedeck-data/assets"
	c.Assets.BaseURL = "/assets"
	c.Assets.MaxWidth = assets.DefaultOptimizeOptions.MaxWidth
	c.Assets.Quality = assets.DefaultOptimizeOptions.Quality
	c.Assets.MaxBytes = assets.DefaultMaxBytes
	c.Assets.UserAgent = assets.DefaultUserAgent
	c.Assets.Timeout = 30 * time.Second
	c.Publish.Database = "sitedeck-data/sites.db"
	c.ThemeFile = "sitedeck-data/theme.yaml"
	return c
}

// loadConfig reads path over the defaults. A missing file is not an error
// unless it was named explicitly.
func loadConfig(path string, explicit bool) (config, error) {
	c := defaultConfig()
	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, os.ErrNotExist) && !explicit:
	case err != nil:
		return c, fmt.Errorf("reading config: %w", err)
	default:
		if err := yaml.Unmarshal(data, &c); err != nil {
			return c, fmt.Errorf("parsing config %s: %w", path, err)
		}
	}
	if v := os.Getenv("OPENAI_API_KEY"); v != "" {
		c.OpenAI.APIKey = v
	}
	if v := os.Getenv("PEXELS_API_KEY"); v != "" {
		c.Pexels.APIKey = v
	}
	if v := os.Getenv("SITEDECK_OWNER"); v != "" {
		c.Owner = v
	}
	return c, nil
}
