package sitemap

import (
	"context"
	"encoding/xml"
	"errors"
	"fmt"
	"net/url"
	"regexp"
	"strings"

	"jobcollect-engine/internal/collect"
	"jobcollect-engine/internal/domain"
	"jobcollect-engine/internal/scrape/fetch"
	"jobcollect-engine/internal/scrape/util"

	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
)

var tracer = otel.Tracer("jobcollect/scrape/sitemap")

// ErrNoActiveSitemap means the index lists no child sitemap for active jobs.
var ErrNoActiveSitemap = errors.New("no active-jobs sitemap")

// DefaultActivePattern matches child sitemaps such as jobs-active-1.xml.
const DefaultActivePattern = `(?i)(jobs?[-_]?active|active[-_]?jobs?)`

type Config struct {
	BaseURL string
	// IndexPath is the sitemap index, resolved against BaseURL.
	IndexPath     string
	ActivePattern string
	BatchSize     int
}

// Collector discovers job pages through the sitemap index.
type Collector struct {
	cfg    Config
	base   *url.URL
	active *regexp.Regexp
	pages  pageRunner
	log    *logrus.Entry
}

func New(cfg Config, client *fetch.Client, log *logrus.Entry) (*Collector, error) {
	base, err := url.Parse(cfg.BaseURL)
	if err != nil || base.Host == "" {
		return nil, fmt.Errorf("sitemap: invalid base url %q", cfg.BaseURL)
	}
	if cfg.IndexPath == "" {
		cfg.IndexPath = "/sitemap.xml"
	}
	if cfg.ActivePattern == "" {
		cfg.ActivePattern = DefaultActivePattern
	}
	active, err := regexp.Compile(cfg.ActivePattern)
	if err != nil {
		return nil, fmt.Errorf("sitemap: active pattern: %w", err)
	}
	if cfg.BatchSize < 1 {
		cfg.BatchSize = 5
	}
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	log = log.WithField("component", "sitemap")
	return &Collector{
		cfg:    cfg,
		base:   base,
		active: active,
		pages:  pageRunner{client: client, batchSize: cfg.BatchSize, strategy: domain.SourceSitemap, log: log},
		log:    log,
	}, nil
}

func (c *Collector) Name() string { return string(domain.SourceSitemap) }

// Collect gathers at most 2×want candidate URLs from the active-jobs
// sitemaps and fetches each page until want records are saved.
func (c *Collector) Collect(ctx context.Context, st *collect.State, want int) (int, error) {
	sctx, span := tracer.Start(ctx, "sitemap:candidates")
	urls, err := c.candidates(sctx, st, 2*want)
	span.SetAttributes(attribute.Int("candidates", len(urls)))
	span.End()
	if err != nil {
		return 0, err
	}
	c.log.WithFields(logrus.Fields{"run_id": st.RunID(), "candidates": len(urls)}).Info("sitemap candidates")
	return c.pages.run(ctx, st, urls, want)
}

func (c *Collector) candidates(ctx context.Context, st *collect.State, limit int) ([]string, error) {
	indexURL := util.ResolveURL(c.base, c.cfg.IndexPath)
	children, locs, err := c.fetchSitemap(ctx, indexURL)
	if err != nil {
		return nil, fmt.Errorf("sitemap index: %w", err)
	}

	// a plain urlset in place of an index is used as is
	if len(children) == 0 {
		return capURLs(fresh(st, dedupe(locs)), limit), nil
	}

	var active []string
	for _, child := range children {
		if c.active.MatchString(child) {
			active = append(active, child)
		}
	}
	if len(active) == 0 {
		return nil, ErrNoActiveSitemap
	}

	var all []string
	for _, child := range active {
		if len(all) >= limit {
			break
		}
		_, locs, err := c.fetchSitemap(ctx, child)
		if err != nil {
			c.log.WithField("sitemap", child).WithError(err).Warn("child sitemap unavailable")
			continue
		}
		all = fresh(st, dedupe(append(all, locs...)))
	}
	return capURLs(all, limit), nil
}

// fetchSitemap returns the child sitemaps of an index, or the page URLs of
// a urlset.
func (c *Collector) fetchSitemap(ctx context.Context, u string) (children, locs []string, err error) {
	res, err := c.pages.client.Get(ctx, fetch.KindSitemap, u, nil)
	if err != nil {
		return nil, nil, err
	}
	return parseSitemap(res.Body)
}

type sitemapIndex struct {
	Sitemaps []locEntry `xml:"sitemap"`
}

type urlSet struct {
	URLs []locEntry `xml:"url"`
}

type locEntry struct {
	Loc string `xml:"loc"`
}

func parseSitemap(data []byte) (children, locs []string, err error) {
	var index sitemapIndex
	if err := xml.Unmarshal(data, &index); err == nil && len(index.Sitemaps) > 0 {
		for _, sm := range index.Sitemaps {
			if loc := strings.TrimSpace(sm.Loc); loc != "" {
				children = append(children, loc)
			}
		}
		return children, nil, nil
	}

	var set urlSet
	if err := xml.Unmarshal(data, &set); err != nil {
		return nil, nil, fmt.Errorf("%w: %v", fetch.ErrMalformedResponse, err)
	}
	for _, e := range set.URLs {
		if loc := strings.TrimSpace(e.Loc); loc != "" {
			locs = append(locs, loc)
		}
	}
	return nil, locs, nil
}

func dedupe(urls []string) []string {
	seen := map[string]bool{}
	out := urls[:0:0]
	for _, u := range urls {
		k := util.CanonicalURL(u)
		if seen[k] {
			continue
		}
		seen[k] = true
		out = append(out, u)
	}
	return out
}

func capURLs(urls []string, limit int) []string {
	if limit >= 0 && len(urls) > limit {
		return urls[:limit]
	}
	return urls
}
