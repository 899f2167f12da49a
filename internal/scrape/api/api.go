// Package api is the primary strategy: it paginates the site's JSON listing
// endpoint and enriches each item from its detail sub-resources.
package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"

	"jobcollect-engine/internal/collect"
	"jobcollect-engine/internal/domain"
	"jobcollect-engine/internal/scrape/discover"
	"jobcollect-engine/internal/scrape/fetch"
	"jobcollect-engine/internal/scrape/jobpage"
	"jobcollect-engine/internal/scrape/resolve"
	"jobcollect-engine/internal/scrape/util"

	"dario.cat/mergo"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/sync/errgroup"
)

var tracer = otel.Tracer("jobcollect/scrape/api")

// Query holds the listing filters. Empty values are not sent.
type Query struct {
	Keywords string
	Sort     string
	Location string
	Remote   string
}

func (q Query) values(page int) url.Values {
	v := url.Values{}
	v.Set("page", strconv.Itoa(page))
	for k, s := range map[string]string{
		"keywords":       q.Keywords,
		"sort":           q.Sort,
		"city_state_zip": q.Location,
		"remote":         q.Remote,
	} {
		if s != "" {
			v.Set(k, s)
		}
	}
	return v
}

type Config struct {
	// BaseURL is the site root; BootstrapPath is resolved against it. An
	// empty BootstrapPath skips discovery and uses the default routes.
	BaseURL       string
	BootstrapPath string
	Routes        discover.Routes
	Query         Query
	// MaxPages bounds listing fetches; 0 means no bound.
	MaxPages  int
	BatchSize int
	// MinDescriptionChars is the description length below which the job's
	// HTML page is consulted to fill gaps.
	MinDescriptionChars int
	GapFill             bool
}

type Collector struct {
	cfg    Config
	base   *url.URL
	client *fetch.Client
	log    *logrus.Entry
}

func New(cfg Config, client *fetch.Client, log *logrus.Entry) (*Collector, error) {
	base, err := url.Parse(cfg.BaseURL)
	if err != nil || base.Host == "" {
		return nil, fmt.Errorf("api: invalid base url %q", cfg.BaseURL)
	}
	if cfg.BatchSize < 1 {
		cfg.BatchSize = 10
	}
	if cfg.Routes == (discover.Routes{}) {
		cfg.Routes = discover.DefaultRoutes()
	}
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	return &Collector{cfg: cfg, base: base, client: client, log: log.WithField("component", "api")}, nil
}

func (c *Collector) Name() string { return string(domain.SourceAPI) }

// Collect runs the Page(n) state machine until the quota, the page budget,
// an empty or unusable listing, or a missing next link stops it.
func (c *Collector) Collect(ctx context.Context, st *collect.State, want int) (int, error) {
	d, err := c.discover(ctx)
	if err != nil {
		return 0, err
	}
	hdr := apiHeaders(d.CSRFToken)
	log := c.log.WithField("run_id", st.RunID())

	saved := 0
	pageURL, err := d.Endpoints.ListingURL(c.cfg.Query.values(1))
	if err != nil {
		return 0, fmt.Errorf("listing url: %w", err)
	}

	for page := 1; ; page++ {
		if saved >= want || st.Done() {
			return saved, nil
		}
		if c.cfg.MaxPages > 0 && page > c.cfg.MaxPages {
			log.WithField("max_pages", c.cfg.MaxPages).Info("page budget reached")
			return saved, nil
		}

		lp, err := c.fetchListing(ctx, pageURL, hdr)
		if err != nil {
			return saved, fmt.Errorf("listing page %d: %w", page, err)
		}
		log.WithFields(logrus.Fields{"page": page, "items": len(lp.items)}).Info("listing page")
		if len(lp.items) == 0 {
			return saved, nil
		}

		n, err := c.enrichPage(ctx, st, d, hdr, lp.items, want-saved)
		saved += n
		if err != nil {
			return saved, err
		}

		if lp.next == "" {
			return saved, nil
		}
		pageURL = util.ResolveURL(c.base, lp.next)
		if pageURL == "" {
			return saved, nil
		}
	}
}

func (c *Collector) discover(ctx context.Context) (discover.Discovery, error) {
	if c.cfg.BootstrapPath == "" {
		return discover.Fallback(c.base, c.cfg.Routes), nil
	}
	bootstrap := util.ResolveURL(c.base, c.cfg.BootstrapPath)
	if bootstrap == "" {
		return discover.Discovery{}, fmt.Errorf("bootstrap: invalid path %q", c.cfg.BootstrapPath)
	}
	doc, _, err := c.client.GetDocument(ctx, fetch.KindBootstrap, bootstrap, nil)
	if err != nil {
		return discover.Discovery{}, fmt.Errorf("bootstrap: %w", err)
	}
	d := discover.Discover(doc, c.base, c.cfg.Routes)
	c.log.WithFields(logrus.Fields{
		"route_table": d.FromRouteTable,
		"defaulted":   d.Defaulted,
		"csrf":        d.CSRFToken != "",
	}).Info("discovered endpoints")
	return d, nil
}

func apiHeaders(token string) http.Header {
	h := http.Header{}
	h.Set("Accept", "application/json")
	h.Set("X-Requested-With", "XMLHttpRequest")
	if token != "" {
		h.Set("X-CSRF-TOKEN", token)
	}
	return h
}

type listingPage struct {
	items []map[string]any
	next  string
}

// fetchListing decodes a listing page. A body without a "data" or "jobs"
// array is a malformed response.
func (c *Collector) fetchListing(ctx context.Context, u string, hdr http.Header) (listingPage, error) {
	ctx, span := tracer.Start(ctx, "api:listing")
	defer span.End()
	span.SetAttributes(attribute.String("url", u))

	var body map[string]any
	if err := c.client.GetJSON(ctx, fetch.KindListing, u, hdr, &body); err != nil {
		return listingPage{}, err
	}

	var raw []any
	found := false
	for _, k := range []string{"data", "jobs"} {
		if arr, ok := body[k].([]any); ok {
			raw, found = arr, true
			break
		}
	}
	if !found {
		return listingPage{}, fmt.Errorf("%w: no data or jobs array", fetch.ErrMalformedResponse)
	}

	lp := listingPage{}
	for _, e := range raw {
		if m, ok := e.(map[string]any); ok {
			lp.items = append(lp.items, m)
		}
	}
	if links, ok := body["links"].(map[string]any); ok {
		lp.next, _ = links["next"].(string)
	}
	if lp.next == "" {
		lp.next, _ = body["next_page_url"].(string)
	}
	return lp, nil
}

// enrichPage processes items in batches. Each batch is enriched
// concurrently, then persisted in original order; persisting stops as soon
// as the quota is met and the rest of the batch is discarded.
func (c *Collector) enrichPage(ctx context.Context, st *collect.State, d discover.Discovery, hdr http.Header, items []map[string]any, want int) (int, error) {
	saved := 0
	for start := 0; start < len(items); start += c.cfg.BatchSize {
		if saved >= want || st.Done() {
			return saved, nil
		}
		if err := ctx.Err(); err != nil {
			return saved, err
		}
		end := min(start+c.cfg.BatchSize, len(items))
		batch := items[start:end]

		results := make([]*domain.JobRecord, len(batch))
		var g errgroup.Group
		g.SetLimit(c.cfg.BatchSize)
		for i, item := range batch {
			g.Go(func() error {
				results[i] = c.enrichItem(ctx, st, d, hdr, item)
				return nil
			})
		}
		_ = g.Wait()

		n, done, err := st.PersistBatch(ctx, results, want-saved)
		saved += n
		if err != nil || done {
			return saved, err
		}
	}
	return saved, nil
}

// enrichItem returns nil for items that were already persisted.
func (c *Collector) enrichItem(ctx context.Context, st *collect.State, d discover.Discovery, hdr http.Header, item map[string]any) *domain.JobRecord {
	listingOnly := resolve.Resolve(resolve.Fragment{Listing: item})
	listingOnly.URL = util.ResolveURL(c.base, listingOnly.URL)
	if st.Seen(listingOnly) || st.Done() {
		return nil
	}

	frag := resolve.Fragment{Listing: item}
	if id := listingOnly.ID; id != "" {
		var g errgroup.Group
		g.Go(func() error {
			frag.Detail = c.fetchSub(ctx, fetch.KindDetail, d.Endpoints.DetailURL, id, hdr)
			return nil
		})
		g.Go(func() error {
			frag.Additional = c.fetchSub(ctx, fetch.KindAdditional, d.Endpoints.AdditionalURL, id, hdr)
			return nil
		})
		_ = g.Wait()
	}
	frag.Labeled = resolve.LabelsFromBlocks(frag.Detail, frag.Additional, frag.Listing)

	rec := resolve.Resolve(frag)
	if rec.URL != "" {
		rec.URL = util.ResolveURL(c.base, rec.URL)
	}
	rec.SourceStrategy = domain.SourceAPI

	if c.cfg.GapFill && rec.URL != "" && rec.Gaps(c.cfg.MinDescriptionChars) {
		c.fillGaps(ctx, &rec)
	}
	return &rec
}

// fetchSub fetches a detail-style sub-resource. Any failure means the
// fields it would supply are unavailable.
func (c *Collector) fetchSub(ctx context.Context, kind fetch.Kind, build func(string) (string, error), id string, hdr http.Header) map[string]any {
	u, err := build(id)
	if err != nil {
		return nil
	}
	var body map[string]any
	if err := c.client.GetJSON(ctx, kind, u, hdr, &body); err != nil {
		level := logrus.DebugLevel
		if !fetch.IsClientRejection(err) && !errors.Is(err, context.Canceled) {
			level = logrus.WarnLevel
		}
		c.log.WithFields(logrus.Fields{"kind": kind, "id": id}).WithError(err).Log(level, "sub-resource unavailable")
		return nil
	}
	if data, ok := body["data"].(map[string]any); ok {
		return data
	}
	return body
}

// fillGaps merges the job page's structured data into rec without
// overwriting any field rec already has.
func (c *Collector) fillGaps(ctx context.Context, rec *domain.JobRecord) {
	doc, _, err := c.client.GetDocument(ctx, fetch.KindPage, rec.URL, nil)
	if err != nil {
		c.log.WithField("url", rec.URL).WithError(err).Debug("gap-fill page unavailable")
		return
	}
	extra, ok := jobpage.Structured(doc)
	if !ok {
		return
	}
	extra.URL, extra.ID, extra.SourceStrategy = "", "", ""
	if err := mergo.Merge(rec, extra); err != nil {
		c.log.WithField("url", rec.URL).WithError(err).Warn("gap-fill merge failed")
	}
}
