package sitemap

import (
	"context"
	"fmt"
	"net/url"
	"regexp"

	"jobcollect-engine/internal/collect"
	"jobcollect-engine/internal/domain"
	"jobcollect-engine/internal/scrape/fetch"
	"jobcollect-engine/internal/scrape/util"

	"github.com/PuerkitoBio/goquery"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/attribute"
)

const (
	DefaultDirectoryPattern = `/directory(?:[/?]|$)`
	DefaultCompanyPattern   = `/compan(?:y|ies)/[^/?#]+/?$`
	DefaultJobPattern       = `/jobs?/[^/?#]+/?$`
)

type WalkConfig struct {
	BaseURL string
	// StartPath is the first directory page, resolved against BaseURL.
	StartPath string
	// MaxPages bounds the number of directory pages fetched.
	MaxPages         int
	DirectoryPattern string
	CompanyPattern   string
	JobPattern       string
	BatchSize        int
}

// WalkCollector finds job pages by a breadth-first walk from a directory
// listing through company pages. Job pages are terminal: their links are
// never followed.
type WalkCollector struct {
	cfg       WalkConfig
	base      *url.URL
	directory *regexp.Regexp
	company   *regexp.Regexp
	job       *regexp.Regexp
	pages     pageRunner
	log       *logrus.Entry
}

func NewWalk(cfg WalkConfig, client *fetch.Client, log *logrus.Entry) (*WalkCollector, error) {
	base, err := url.Parse(cfg.BaseURL)
	if err != nil || base.Host == "" {
		return nil, fmt.Errorf("walk: invalid base url %q", cfg.BaseURL)
	}
	if cfg.StartPath == "" {
		cfg.StartPath = "/directory"
	}
	if cfg.MaxPages < 1 {
		cfg.MaxPages = 1
	}
	if cfg.BatchSize < 1 {
		cfg.BatchSize = 5
	}
	w := &WalkCollector{cfg: cfg, base: base}
	for _, p := range []struct {
		dst **regexp.Regexp
		src string
		def string
	}{
		{&w.directory, cfg.DirectoryPattern, DefaultDirectoryPattern},
		{&w.company, cfg.CompanyPattern, DefaultCompanyPattern},
		{&w.job, cfg.JobPattern, DefaultJobPattern},
	} {
		src := p.src
		if src == "" {
			src = p.def
		}
		re, err := regexp.Compile(src)
		if err != nil {
			return nil, fmt.Errorf("walk: pattern %q: %w", src, err)
		}
		*p.dst = re
	}
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	w.log = log.WithField("component", "walk")
	w.pages = pageRunner{client: client, batchSize: cfg.BatchSize, strategy: domain.SourceHTML, log: w.log}
	return w, nil
}

func (w *WalkCollector) Name() string { return "walk" }

type pageKind int

const (
	kindDirectory pageKind = iota
	kindCompany
)

type walkItem struct {
	url  string
	kind pageKind
}

// Collect walks directory and company pages in BFS order. Job links are
// processed in batches as they accumulate.
func (w *WalkCollector) Collect(ctx context.Context, st *collect.State, want int) (int, error) {
	ctx, span := tracer.Start(ctx, "walk")
	defer span.End()

	start := util.ResolveURL(w.base, w.cfg.StartPath)
	queue := []walkItem{{url: start, kind: kindDirectory}}
	visited := map[string]bool{util.CanonicalURL(start): true}
	jobsSeen := map[string]bool{}

	var pending []string
	saved, dirPages := 0, 0

	flush := func() error {
		n, err := w.pages.run(ctx, st, fresh(st, pending), want-saved)
		saved += n
		pending = pending[:0]
		return err
	}

	for len(queue) > 0 {
		if saved >= want || st.Done() {
			break
		}
		if err := ctx.Err(); err != nil {
			return saved, err
		}
		item := queue[0]
		queue = queue[1:]

		if item.kind == kindDirectory {
			if dirPages >= w.cfg.MaxPages {
				continue
			}
			dirPages++
		}

		doc, _, err := w.pages.client.GetDocument(ctx, fetch.KindPage, item.url, nil)
		if err != nil {
			if dirPages == 1 && item.kind == kindDirectory && item.url == start {
				return saved, fmt.Errorf("directory: %w", err)
			}
			w.log.WithField("url", item.url).WithError(err).Warn("walk page unavailable")
			continue
		}

		for _, link := range w.links(doc, item.url) {
			key := util.CanonicalURL(link)
			switch {
			case w.job.MatchString(pathOf(link)):
				if item.kind == kindCompany && !jobsSeen[key] {
					jobsSeen[key] = true
					pending = append(pending, link)
				}
			case w.company.MatchString(pathOf(link)):
				if item.kind == kindDirectory && !visited[key] {
					visited[key] = true
					queue = append(queue, walkItem{url: link, kind: kindCompany})
				}
			case w.directory.MatchString(pathOf(link)):
				if item.kind == kindDirectory && !visited[key] {
					visited[key] = true
					queue = append(queue, walkItem{url: link, kind: kindDirectory})
				}
			}
		}

		if len(pending) >= w.cfg.BatchSize {
			if err := flush(); err != nil {
				return saved, err
			}
		}
	}

	if len(pending) > 0 && saved < want && !st.Done() {
		if err := flush(); err != nil {
			return saved, err
		}
	}

	span.SetAttributes(attribute.Int("directory_pages", dirPages), attribute.Int("jobs", len(jobsSeen)))
	w.log.WithFields(logrus.Fields{
		"run_id":          st.RunID(),
		"directory_pages": dirPages,
		"jobs":            len(jobsSeen),
		"saved":           saved,
	}).Info("walk finished")
	return saved, nil
}

func (w *WalkCollector) links(doc *goquery.Document, pageURL string) []string {
	base, err := url.Parse(pageURL)
	if err != nil {
		return nil
	}
	var out []string
	doc.Find("a[href]").Each(func(_ int, a *goquery.Selection) {
		abs := util.ResolveURL(base, a.AttrOr("href", ""))
		if abs == "" {
			return
		}
		if u, err := url.Parse(abs); err != nil || u.Host != w.base.Host {
			return
		}
		out = append(out, abs)
	})
	return out
}

// pathOf returns the path and query of u, the part the patterns match.
func pathOf(u string) string {
	p, err := url.Parse(u)
	if err != nil {
		return ""
	}
	return p.RequestURI()
}
