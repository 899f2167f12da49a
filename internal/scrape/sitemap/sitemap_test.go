package sitemap

import (
	"context"
	"fmt"
	"sort"
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

func (r *recorder) titles() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []string
	for _, rec := range r.recs {
		out = append(out, rec.Title)
	}
	return out
}

func testClient() *fetch.Client {
	return fetch.NewClient(fetch.NewRestyFetcher(fetch.RestyOptions{}), fetch.ClientOptions{
		Policy:  fetch.Policy{MaxAttempts: 1},
		Timeout: 5 * time.Second,
	})
}

func jobs(prefix string, n int) []sitetest.Job {
	out := make([]sitetest.Job, n)
	for i := range out {
		id := fmt.Sprintf("%s%d", prefix, i+1)
		out[i] = sitetest.Job{ID: id, Title: "Job " + id, Company: "Acme", Location: "Austin, TX", Description: "Do work."}
	}
	return out
}

func TestParseSitemap(t *testing.T) {
	children, locs, err := parseSitemap([]byte(`<sitemapindex><sitemap><loc> https://x.test/a.xml </loc></sitemap></sitemapindex>`))
	require.NoError(t, err)
	require.Equal(t, []string{"https://x.test/a.xml"}, children)
	require.Empty(t, locs)

	children, locs, err = parseSitemap([]byte(`<urlset><url><loc>https://x.test/job/1</loc></url><url><loc></loc></url></urlset>`))
	require.NoError(t, err)
	require.Empty(t, children)
	require.Equal(t, []string{"https://x.test/job/1"}, locs)

	_, _, err = parseSitemap([]byte(`{"not":"xml"}`))
	require.ErrorIs(t, err, fetch.ErrMalformedResponse)
}

func TestSitemapCollectsActiveJobs(t *testing.T) {
	site := sitetest.New()
	defer site.Close()
	site.SitemapJobs = jobs("s", 3)

	rec := &recorder{}
	c, err := New(Config{BaseURL: site.URL, BatchSize: 2}, testClient(), nil)
	require.NoError(t, err)

	n, err := c.Collect(context.Background(), collect.NewState("run", 10, rec), 10)
	require.NoError(t, err)
	require.Equal(t, 3, n)
	require.Equal(t, []string{"Job s1", "Job s2", "Job s3"}, rec.titles())
	// index + the active child only
	require.Equal(t, 2, site.Hits("sitemap"))

	for _, r := range rec.recs {
		// the pages carry JSON-LD
		require.Equal(t, domain.SourceJSONLD, r.SourceStrategy)
		require.Equal(t, "Austin, TX", r.Location)
	}
}

func TestSitemapCapsCandidatesAtTwiceRemaining(t *testing.T) {
	site := sitetest.New()
	defer site.Close()
	site.SitemapJobs = jobs("s", 10)

	c, err := New(Config{BaseURL: site.URL, BatchSize: 4}, testClient(), nil)
	require.NoError(t, err)

	st := collect.NewState("run", 2, &recorder{})
	urls, err := c.candidates(context.Background(), st, 2*st.Remaining())
	require.NoError(t, err)
	require.Len(t, urls, 4)

	n, err := c.Collect(context.Background(), st, 2)
	require.NoError(t, err)
	require.Equal(t, 2, n)
	// one batch of four pages, two of them discarded
	require.Equal(t, 4, site.Hits("page"))
}

func TestSitemapWithoutActiveChild(t *testing.T) {
	site := sitetest.New()
	defer site.Close()

	c, err := New(Config{BaseURL: site.URL, ActivePattern: `nomatch`}, testClient(), nil)
	require.NoError(t, err)
	_, err = c.Collect(context.Background(), collect.NewState("run", 1, &recorder{}), 1)
	require.ErrorIs(t, err, ErrNoActiveSitemap)
}

func TestWalkFollowsDirectoryCompanyJob(t *testing.T) {
	site := sitetest.New()
	defer site.Close()
	site.Directory = [][]string{{"acme"}, {"globex"}, {"initech"}}
	site.Companies["acme"] = jobs("a", 2)
	site.Companies["globex"] = jobs("g", 1)
	site.Companies["initech"] = jobs("i", 1)

	rec := &recorder{}
	w, err := NewWalk(WalkConfig{BaseURL: site.URL, MaxPages: 2, BatchSize: 2}, testClient(), nil)
	require.NoError(t, err)

	n, err := w.Collect(context.Background(), collect.NewState("run", 10, rec), 10)
	require.NoError(t, err)
	require.Equal(t, 3, n)

	got := rec.titles()
	sort.Strings(got)
	require.Equal(t, []string{"Job a1", "Job a2", "Job g1"}, got)

	// the page budget stops the third directory page
	require.Equal(t, 2, site.Hits("directory"))
	require.Equal(t, 2, site.Hits("company"))
	// job pages link to /company/elsewhere and /directory?page=9; neither is followed
	require.Equal(t, 3, site.Hits("page"))
}

func TestWalkStopsAtQuota(t *testing.T) {
	site := sitetest.New()
	defer site.Close()
	site.Directory = [][]string{{"acme", "globex"}}
	site.Companies["acme"] = jobs("a", 3)
	site.Companies["globex"] = jobs("g", 3)

	rec := &recorder{}
	w, err := NewWalk(WalkConfig{BaseURL: site.URL, MaxPages: 5, BatchSize: 3}, testClient(), nil)
	require.NoError(t, err)

	n, err := w.Collect(context.Background(), collect.NewState("run", 2, rec), 2)
	require.NoError(t, err)
	require.Equal(t, 2, n)
	require.Equal(t, 1, site.Hits("company"))
	require.Equal(t, domain.SourceJSONLD, rec.recs[0].SourceStrategy)
}

func TestWalkMissingDirectoryIsAnError(t *testing.T) {
	site := sitetest.New()
	defer site.Close()

	w, err := NewWalk(WalkConfig{BaseURL: site.URL}, testClient(), nil)
	require.NoError(t, err)
	_, err = w.Collect(context.Background(), collect.NewState("run", 1, &recorder{}), 1)
	require.Error(t, err)
	require.True(t, fetch.IsClientRejection(err))
}
