package api

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"testing"
	"time"

	"jobcollect-engine/internal/collect"
	"jobcollect-engine/internal/domain"
	"jobcollect-engine/internal/scrape/fetch"
	"jobcollect-engine/internal/scrape/sitetest"

	"github.com/stretchr/testify/require"
)

type recorder struct {
	mu   sync.Mutex
	recs []domain.JobRecord
}

func (r *recorder) Save(_ context.Context, rec domain.JobRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.recs = append(r.recs, rec)
	return nil
}

func (r *recorder) ids() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []string
	for _, rec := range r.recs {
		out = append(out, rec.ID)
	}
	return out
}

func job(id string) sitetest.Job {
	return sitetest.Job{
		ID:          id,
		Title:       "Engineer " + id,
		Company:     "Acme",
		Location:    "Reston, VA",
		Clearance:   "Secret",
		JobType:     "Full-Time",
		Description: strings.Repeat("Build systems. ", 20),
	}
}

func jobs(prefix string, n int) []sitetest.Job {
	out := make([]sitetest.Job, n)
	for i := range out {
		out[i] = job(fmt.Sprintf("%s%d", prefix, i+1))
	}
	return out
}

func newCollector(t *testing.T, site *sitetest.Site, mutate func(*Config)) *Collector {
	t.Helper()
	cfg := Config{
		BaseURL:             site.URL,
		BootstrapPath:       "/jobs",
		BatchSize:           3,
		MinDescriptionChars: 50,
		GapFill:             true,
	}
	if mutate != nil {
		mutate(&cfg)
	}
	client := fetch.NewClient(fetch.NewRestyFetcher(fetch.RestyOptions{}), fetch.ClientOptions{
		Policy:  fetch.Policy{MaxAttempts: 2, BaseDelay: time.Millisecond},
		Timeout: 5 * time.Second,
	})
	c, err := New(cfg, client, nil)
	require.NoError(t, err)
	return c
}

func TestPaginationIssuesExactlyNPageFetches(t *testing.T) {
	site := sitetest.New()
	defer site.Close()
	site.Pages = [][]sitetest.Job{jobs("a", 2), jobs("b", 2), jobs("c", 1)}

	rec := &recorder{}
	st := collect.NewState("run", 100, rec)
	n, err := newCollector(t, site, nil).Collect(context.Background(), st, 100)
	require.NoError(t, err)
	require.Equal(t, 5, n)
	require.Equal(t, 3, site.Hits("listing"))
	require.Equal(t, 1, site.Hits("bootstrap"))
	require.Equal(t, []string{"a1", "a2", "b1", "b2", "c1"}, rec.ids())
}

func TestRecordsAreFullyResolved(t *testing.T) {
	site := sitetest.New()
	defer site.Close()
	site.Pages = [][]sitetest.Job{{job("x1")}}

	rec := &recorder{}
	_, err := newCollector(t, site, nil).Collect(context.Background(), collect.NewState("run", 5, rec), 5)
	require.NoError(t, err)
	require.Len(t, rec.recs, 1)

	got := rec.recs[0]
	require.Equal(t, "x1", got.ID)
	require.Equal(t, site.JobURL("x1"), got.URL)
	require.Equal(t, "Engineer x1", got.Title)
	require.Equal(t, "Acme", got.Company)
	require.Equal(t, "Reston, VA", got.Location)
	require.Equal(t, "Secret", got.ClearanceLevel)
	require.Equal(t, "Full-Time", got.EmploymentType)
	require.Equal(t, domain.SourceAPI, got.SourceStrategy)
	require.True(t, strings.HasPrefix(got.DescriptionText, "Build systems. Build systems."))
	// nothing was missing, so the HTML page was never fetched
	require.Zero(t, site.Hits("page"))
}

func TestQuotaStopsMidBatch(t *testing.T) {
	site := sitetest.New()
	defer site.Close()
	site.Pages = [][]sitetest.Job{jobs("a", 5), jobs("b", 5)}

	rec := &recorder{}
	st := collect.NewState("run", 4, rec)
	n, err := newCollector(t, site, nil).Collect(context.Background(), st, 4)
	require.NoError(t, err)
	require.Equal(t, 4, n)
	require.Equal(t, []string{"a1", "a2", "a3", "a4"}, rec.ids())
	// the second page is never requested
	require.Equal(t, 1, site.Hits("listing"))
	// batch of 3 then batch of 2; a5 was fetched but discarded
	require.Equal(t, 5, site.Hits("detail"))
}

func TestPageBudget(t *testing.T) {
	site := sitetest.New()
	defer site.Close()
	site.Pages = [][]sitetest.Job{jobs("a", 1), jobs("b", 1), jobs("c", 1)}

	rec := &recorder{}
	n, err := newCollector(t, site, func(c *Config) { c.MaxPages = 2 }).
		Collect(context.Background(), collect.NewState("run", 10, rec), 10)
	require.NoError(t, err)
	require.Equal(t, 2, n)
	require.Equal(t, 2, site.Hits("listing"))
}

func TestDuplicatesAcrossPagesPersistOnce(t *testing.T) {
	site := sitetest.New()
	defer site.Close()
	site.Pages = [][]sitetest.Job{{job("a1"), job("a2")}, {job("a2"), job("a3")}}

	rec := &recorder{}
	n, err := newCollector(t, site, nil).Collect(context.Background(), collect.NewState("run", 10, rec), 10)
	require.NoError(t, err)
	require.Equal(t, 3, n)
	require.Equal(t, []string{"a1", "a2", "a3"}, rec.ids())
}

func TestDetailFailureYieldsPartialRecordAndGapFill(t *testing.T) {
	site := sitetest.New()
	defer site.Close()
	site.Pages = [][]sitetest.Job{{job("p1")}}
	site.DetailStatus = http.StatusNotFound

	rec := &recorder{}
	n, err := newCollector(t, site, nil).Collect(context.Background(), collect.NewState("run", 5, rec), 5)
	require.NoError(t, err)
	require.Equal(t, 1, n)
	require.Equal(t, 1, site.Hits("detail"))
	require.Equal(t, 1, site.Hits("page"))

	got := rec.recs[0]
	require.Equal(t, "Engineer p1", got.Title)
	// description came from the page's structured data
	require.True(t, strings.HasPrefix(got.DescriptionText, "Build systems."))
	// location and clearance are not in the structured data, so they stay empty
	require.Empty(t, got.Location)
	require.Empty(t, got.ClearanceLevel)
	require.Equal(t, domain.SourceAPI, got.SourceStrategy)
}

func TestBootstrapFailureIsFatalToStrategy(t *testing.T) {
	site := sitetest.New()
	defer site.Close()
	site.Pages = [][]sitetest.Job{jobs("a", 1)}
	site.BootstrapStatus = http.StatusServiceUnavailable

	n, err := newCollector(t, site, nil).Collect(context.Background(), collect.NewState("run", 5, &recorder{}), 5)
	require.Error(t, err)
	require.Contains(t, err.Error(), "bootstrap")
	require.Zero(t, n)
	require.Zero(t, site.Hits("listing"))
	require.Equal(t, 2, site.Hits("bootstrap"))
}

func TestListingServerErrorEndsPagination(t *testing.T) {
	site := sitetest.New()
	defer site.Close()
	site.Pages = [][]sitetest.Job{jobs("a", 1)}
	site.ListingStatus = http.StatusInternalServerError

	n, err := newCollector(t, site, nil).Collect(context.Background(), collect.NewState("run", 5, &recorder{}), 5)
	require.Error(t, err)
	require.Zero(t, n)
	require.Equal(t, 2, site.Hits("listing"))
}

func TestSkipBootstrapUsesDefaultRoutes(t *testing.T) {
	site := sitetest.New()
	defer site.Close()
	site.Pages = [][]sitetest.Job{jobs("a", 1)}

	// without the bootstrap page there is no CSRF token, and the fake listing rejects that
	n, err := newCollector(t, site, func(c *Config) { c.BootstrapPath = "" }).
		Collect(context.Background(), collect.NewState("run", 5, &recorder{}), 5)
	require.Error(t, err)
	require.True(t, fetch.IsClientRejection(err))
	require.Zero(t, n)
	require.Zero(t, site.Hits("bootstrap"))
	require.Equal(t, 1, site.Hits("listing"))
}

func TestQueryValues(t *testing.T) {
	v := Query{Keywords: "analyst", Location: "20190", Remote: "1"}.values(3)
	require.Equal(t, "city_state_zip=20190&keywords=analyst&page=3&remote=1", v.Encode())
}
