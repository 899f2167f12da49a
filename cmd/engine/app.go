package main

import (
	"fmt"
	"net/http"
	"os"
	"path/filepath"

	"jobcollect-engine/internal/collect"
	"jobcollect-engine/internal/config"
	"jobcollect-engine/internal/scrape/api"
	"jobcollect-engine/internal/scrape/fetch"
	"jobcollect-engine/internal/scrape/sitemap"
	"jobcollect-engine/internal/scrape/util"
	"jobcollect-engine/internal/secrets"

	"github.com/sirupsen/logrus"
)

const defaultUserAgent = "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0 Safari/537.36"

// loadConfig bootstraps <data-dir>/config.yml when --config is not given,
// then loads, normalizes and validates it.
func loadConfig(log *logrus.Entry) (config.Config, error) {
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return config.Config{}, err
	}
	path := configPath
	if path == "" {
		p, err := config.EnsureUserConfig(dataDir, filepath.Join("config", "config.yml"))
		if err != nil {
			return config.Config{}, fmt.Errorf("config bootstrap failed: %w", err)
		}
		path = p
	}

	cfg, err := config.Load(path)
	if err != nil {
		return cfg, fmt.Errorf("config load failed (%s): %w", path, err)
	}
	cfg, res := config.NormalizeAndValidate(cfg)
	for _, w := range res.Warnings {
		log.WithField("config", path).Warn(w)
	}
	if !res.OK() {
		return cfg, config.Validate(cfg)
	}
	if cfg.App.DataDir == "" || cfg.App.DataDir == "." {
		cfg.App.DataDir = dataDir
	}
	return cfg, nil
}

func newLogger(cfg config.Config) *logrus.Entry {
	l := logrus.New()
	l.SetOutput(os.Stderr)
	if lvl, err := logrus.ParseLevel(cfg.Log.Level); err == nil {
		l.SetLevel(lvl)
	}
	if cfg.Log.Format == "json" {
		l.SetFormatter(&logrus.JSONFormatter{})
	} else {
		l.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}
	return logrus.NewEntry(l)
}

func newClient(cfg config.Config, log *logrus.Entry) (*fetch.Client, error) {
	proxy, err := secrets.ProxyURL(cfg)
	if err != nil {
		return nil, err
	}

	agents := cfg.HTTP.UserAgents
	if len(agents) == 0 {
		agents = []string{defaultUserAgent}
	}
	base := http.Header{}
	base.Set("Accept-Language", "en-US,en;q=0.9")

	return fetch.NewClient(
		fetch.NewRestyFetcher(fetch.RestyOptions{Timeout: cfg.Timeout(), ProxyURL: proxy}),
		fetch.ClientOptions{
			Headers: fetch.NewRotatingHeaders(agents, base),
			Limiter: util.NewHostLimiter(cfg.HTTP.RatePerSecond, cfg.HTTP.Burst),
			Policy: fetch.Policy{
				MaxAttempts: cfg.Retry.MaxAttempts,
				BaseDelay:   cfg.RetryBaseDelay(),
				Jitter:      cfg.RetryJitter(),
			},
			Timeout: cfg.Timeout(),
			Log:     log,
		},
	), nil
}

// buildStrategies returns the configured strategies in collect.strategies order.
func buildStrategies(cfg config.Config, client *fetch.Client, log *logrus.Entry) ([]collect.Strategy, error) {
	if cfg.Site.BaseURL == "" {
		return nil, fmt.Errorf("site.base_url is not set")
	}

	var out []collect.Strategy
	for _, name := range cfg.Collect.Strategies {
		switch name {
		case "api":
			s, err := api.New(api.Config{
				BaseURL:       cfg.Site.BaseURL,
				BootstrapPath: cfg.Site.BootstrapPath,
				Routes:        cfg.Site.Routes,
				Query: api.Query{
					Keywords: cfg.Search.Keywords,
					Sort:     cfg.Search.Sort,
					Location: cfg.Search.Location,
					Remote:   cfg.Search.Remote,
				},
				MaxPages:            cfg.Collect.MaxPages,
				BatchSize:           cfg.Collect.BatchSize,
				MinDescriptionChars: cfg.Collect.MinDescriptionChars,
				GapFill:             cfg.Collect.GapFill,
			}, client, log)
			if err != nil {
				return nil, err
			}
			out = append(out, s)
		case "sitemap":
			s, err := sitemap.New(sitemap.Config{
				BaseURL:       cfg.Site.BaseURL,
				IndexPath:     cfg.Site.SitemapPath,
				ActivePattern: cfg.Site.ActivePattern,
				BatchSize:     cfg.Collect.BatchSize,
			}, client, log)
			if err != nil {
				return nil, err
			}
			out = append(out, s)
		case "walk":
			s, err := sitemap.NewWalk(sitemap.WalkConfig{
				BaseURL:          cfg.Site.BaseURL,
				StartPath:        cfg.Site.DirectoryPath,
				MaxPages:         cfg.Collect.WalkMaxPages,
				DirectoryPattern: cfg.Site.DirectoryPattern,
				CompanyPattern:   cfg.Site.CompanyPattern,
				JobPattern:       cfg.Site.JobPattern,
				BatchSize:        cfg.Collect.BatchSize,
			}, client, log)
			if err != nil {
				return nil, err
			}
			out = append(out, s)
		default:
			return nil, fmt.Errorf("unknown strategy %q", name)
		}
	}
	return out, nil
}
