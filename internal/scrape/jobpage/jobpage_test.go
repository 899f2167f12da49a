package jobpage

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"jobcollect-engine/internal/domain"
	"jobcollect-engine/internal/scrape/fetch"

	"github.com/PuerkitoBio/goquery"
	"github.com/stretchr/testify/require"
)

func parse(t *testing.T, html, u string) Result {
	t.Helper()
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	require.NoError(t, err)
	return Parse(doc, u)
}

const labeledPage = `<html><head><title>Analyst | Jobs</title>
<style>.x{}</style><script>var location = "nowhere";</script></head>
<body>
<h1>Intelligence   Analyst</h1>
<div class="company-name">Acme Federal</div>
<ul>
  <li>Security Clearance: TS/SCI with Poly</li>
  <li>Location: Chantilly, VA</li>
  <li>Job Type: Contract</li>
  <li>Posted: 2024-04-02</li>
</ul>
<div class="job-description"><p>Description of Duties: Produce all-source   analysis.</p></div>
</body></html>`

func TestParseLabeledPage(t *testing.T) {
	res := parse(t, labeledPage, "https://jobs.example.com/job/1")
	require.False(t, res.Structured)
	require.Equal(t, domain.SourceHTML, res.Strategy(domain.SourceHTML))

	rec := res.Record
	require.Equal(t, "https://jobs.example.com/job/1", rec.URL)
	require.Equal(t, "Intelligence Analyst", rec.Title)
	require.Equal(t, "Acme Federal", rec.Company)
	require.Equal(t, "TS/SCI with Poly", rec.ClearanceLevel)
	require.Equal(t, "Chantilly, VA", rec.Location)
	require.Equal(t, "Contract", rec.EmploymentType)
	require.Equal(t, "2024-04-02", rec.DatePosted)
	require.Equal(t, "Produce all-source analysis.", rec.DescriptionText)
	require.Contains(t, rec.DescriptionHTML, "Description of Duties")
}

const structuredPage = `<html><head>
<script type="application/ld+json">{"@type":"JobPosting","title":"Structured Title",
 "hiringOrganization":{"name":"LD Corp"},
 "jobLocation":{"address":{"addressLocality":"Denver","addressRegion":"CO"}},
 "description":"<p>From JSON-LD</p>"}</script></head>
<body><h1>DOM Title</h1><div class="location">Boise, ID</div>
<p>Security Clearance: Secret</p></body></html>`

func TestParseStructuredWins(t *testing.T) {
	res := parse(t, structuredPage, "https://jobs.example.com/job/2")
	require.True(t, res.Structured)
	require.Equal(t, domain.SourceJSONLD, res.Strategy(domain.SourceSitemap))

	rec := res.Record
	require.Equal(t, "Structured Title", rec.Title)
	require.Equal(t, "LD Corp", rec.Company)
	require.Equal(t, "Denver, CO", rec.Location)
	require.Equal(t, "From JSON-LD", rec.DescriptionText)
	// labels still fill what the structured data lacks
	require.Equal(t, "Secret", rec.ClearanceLevel)
}

func TestStructuredOnly(t *testing.T) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(structuredPage))
	require.NoError(t, err)
	rec, ok := Structured(doc)
	require.True(t, ok)
	require.Equal(t, "Structured Title", rec.Title)
	require.Empty(t, rec.ClearanceLevel)

	doc, err = goquery.NewDocumentFromReader(strings.NewReader(labeledPage))
	require.NoError(t, err)
	_, ok = Structured(doc)
	require.False(t, ok)
}

func TestFetch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, labeledPage)
	}))
	defer srv.Close()

	c := fetch.NewClient(fetch.NewRestyFetcher(fetch.RestyOptions{}), fetch.ClientOptions{Policy: fetch.Policy{MaxAttempts: 1}})
	res, err := Fetch(context.Background(), c, srv.URL+"/job/1")
	require.NoError(t, err)
	require.Equal(t, "Intelligence Analyst", res.Record.Title)
	require.Equal(t, srv.URL+"/job/1", res.Record.URL)
}

func TestParseResolvesRelativeStructuredURL(t *testing.T) {
	res := parse(t, `<html><head><script type="application/ld+json">
{"@type":"JobPosting","title":"T","url":"/jobs/9"}</script></head><body></body></html>`,
		"https://example.com/jobs/9")
	require.Equal(t, "https://example.com/jobs/9", res.Record.URL)
	require.True(t, res.Structured)
}

func TestParseSurvivesLengthChangingRunes(t *testing.T) {
	html := "<html><body><p>" + strings.Repeat("Ⱥ", 20) + "</p><p>Location: Reston</p></body></html>"
	res := parse(t, html, "https://example.com/job/2")
	require.Equal(t, "Reston", res.Record.Location)
	require.Equal(t, "https://example.com/job/2", res.Record.URL)
}
