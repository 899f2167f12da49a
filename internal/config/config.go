// engine/internal/config/config.go
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"jobcollect-engine/internal/scrape/discover"

	"gopkg.in/yaml.v3"
)

type Config struct {
	App struct {
		DataDir string `yaml:"data_dir"`
	} `yaml:"app"`

	Site struct {
		BaseURL       string          `yaml:"base_url"`
		BootstrapPath string          `yaml:"bootstrap_path"`
		Routes        discover.Routes `yaml:"routes"`

		SitemapPath   string `yaml:"sitemap_path"`
		ActivePattern string `yaml:"active_pattern"`

		DirectoryPath    string `yaml:"directory_path"`
		DirectoryPattern string `yaml:"directory_pattern"`
		CompanyPattern   string `yaml:"company_pattern"`
		JobPattern       string `yaml:"job_pattern"`
	} `yaml:"site"`

	Search struct {
		Keywords string `yaml:"keywords"`
		Sort     string `yaml:"sort"`
		Location string `yaml:"location"`
		Remote   string `yaml:"remote"`
	} `yaml:"search"`

	Collect struct {
		MaxResults          int      `yaml:"max_results"`
		MaxPages            int      `yaml:"max_pages"`
		WalkMaxPages        int      `yaml:"walk_max_pages"`
		BatchSize           int      `yaml:"batch_size"`
		MinDescriptionChars int      `yaml:"min_description_chars"`
		GapFill             bool     `yaml:"gap_fill"`
		Strategies          []string `yaml:"strategies"`
	} `yaml:"collect"`

	Retry struct {
		MaxAttempts int `yaml:"max_attempts"`
		BaseDelayMS int `yaml:"base_delay_ms"`
		JitterMS    int `yaml:"jitter_ms"`
	} `yaml:"retry"`

	HTTP struct {
		TimeoutSeconds int      `yaml:"timeout_seconds"`
		RatePerSecond  float64  `yaml:"rate_per_second"`
		Burst          int      `yaml:"burst"`
		UserAgents     []string `yaml:"user_agents"`
		ProxyURL       string   `yaml:"proxy_url"`
		ProxyUser      string   `yaml:"proxy_user"`
	} `yaml:"http"`

	Output struct {
		DBFile        string `yaml:"db_file"`
		RetentionDays int    `yaml:"retention_days"`
	} `yaml:"output"`

	Log struct {
		Level  string `yaml:"level"`
		Format string `yaml:"format"`
	} `yaml:"log"`
}

// Strategy names accepted in collect.strategies, in default run order.
var KnownStrategies = []string{"api", "sitemap", "walk"}

func Default() Config {
	var cfg Config
	cfg.App.DataDir = "."

	cfg.Site.BootstrapPath = "/jobs"
	cfg.Site.Routes = discover.DefaultRoutes()
	cfg.Site.SitemapPath = "/sitemap.xml"
	cfg.Site.DirectoryPath = "/directory"

	cfg.Collect.MaxResults = 100
	cfg.Collect.MaxPages = 20
	cfg.Collect.WalkMaxPages = 5
	cfg.Collect.BatchSize = 10
	cfg.Collect.MinDescriptionChars = 200
	cfg.Collect.GapFill = true
	cfg.Collect.Strategies = append([]string(nil), KnownStrategies...)

	cfg.Retry.MaxAttempts = 3
	cfg.Retry.BaseDelayMS = 1000
	cfg.Retry.JitterMS = 500

	cfg.HTTP.TimeoutSeconds = 20
	cfg.HTTP.RatePerSecond = 2
	cfg.HTTP.Burst = 2

	cfg.Output.DBFile = "jobcollect.db"
	cfg.Output.RetentionDays = 30

	cfg.Log.Level = "info"
	cfg.Log.Format = "text"
	return cfg
}

// Load reads path on top of Default() and merges <name>.local.<ext> over it
// when that file exists.
func Load(path string) (Config, error) {
	cfg := Default()
	b, err := os.ReadFile(path)
	if err != nil {
		return cfg, err
	}
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return cfg, fmt.Errorf("parse %s: %w", path, err)
	}
	if err := OverlayLocal(&cfg, LocalPath(path)); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// LocalPath returns the override file for path: config.yml -> config.local.yml.
func LocalPath(path string) string {
	ext := filepath.Ext(path)
	return strings.TrimSuffix(path, ext) + ".local" + ext
}

func (c Config) RetryBaseDelay() time.Duration {
	return time.Duration(c.Retry.BaseDelayMS) * time.Millisecond
}

func (c Config) RetryJitter() time.Duration {
	return time.Duration(c.Retry.JitterMS) * time.Millisecond
}

func (c Config) Timeout() time.Duration {
	return time.Duration(c.HTTP.TimeoutSeconds) * time.Second
}

func (c Config) Retention() time.Duration {
	return time.Duration(c.Output.RetentionDays) * 24 * time.Hour
}

// DBPath resolves output.db_file against app.data_dir.
func (c Config) DBPath() string {
	if filepath.IsAbs(c.Output.DBFile) {
		return c.Output.DBFile
	}
	return filepath.Join(c.App.DataDir, c.Output.DBFile)
}
