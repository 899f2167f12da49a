// Package sitetest serves a fake job site for strategy and pipeline tests:
// a bootstrap page, the JSON API, job pages, sitemaps and a directory.
package sitetest

import (
	"encoding/json"
	"fmt"
	"html"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
)

type Job struct {
	ID          string
	Title       string
	Company     string
	Location    string
	Clearance   string
	JobType     string
	Description string
}

// Site is a fake job site. Configure it before the first request.
type Site struct {
	*httptest.Server

	// Pages are the listing pages; page n has a next link while n < len(Pages).
	Pages [][]Job
	// ListingStatus, when set, is returned for every listing request.
	ListingStatus int
	// DetailStatus, when set, is returned for every detail and additional request.
	DetailStatus int
	// BootstrapStatus, when set, is returned for the bootstrap page.
	BootstrapStatus int
	// SitemapJobs are listed in the active-jobs child sitemap.
	SitemapJobs []Job
	// Directory maps directory page number to companies; companies map to jobs.
	Directory [][]string
	Companies map[string][]Job
	// PageJobs are jobs that have an HTML page but are not in the API.
	PageJobs []Job

	mu   sync.Mutex
	hits map[string]int
}

func New() *Site {
	s := &Site{hits: map[string]int{}, Companies: map[string][]Job{}}
	mux := http.NewServeMux()
	mux.HandleFunc("GET /jobs", s.bootstrap)
	mux.HandleFunc("GET /api/v1/jobs/search", s.listing)
	mux.HandleFunc("GET /api/v1/jobs/{id}", s.detail)
	mux.HandleFunc("GET /api/v1/jobs/{id}/additional", s.additional)
	mux.HandleFunc("GET /job/{id}", s.jobPage)
	mux.HandleFunc("GET /sitemap.xml", s.sitemapIndex)
	mux.HandleFunc("GET /sitemaps/{name}", s.childSitemap)
	mux.HandleFunc("GET /directory", s.directory)
	mux.HandleFunc("GET /company/{slug}", s.company)
	s.Server = httptest.NewServer(mux)
	return s
}

// Hits returns how many requests hit the named handler.
func (s *Site) Hits(name string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.hits[name]
}

// FallbackHits counts requests that only the fallback strategies make.
func (s *Site) FallbackHits() int {
	return s.Hits("sitemap") + s.Hits("directory") + s.Hits("company")
}

func (s *Site) hit(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.hits[name]++
}

func (s *Site) find(id string) (Job, bool) {
	all := append([]Job{}, s.PageJobs...)
	all = append(all, s.SitemapJobs...)
	for _, p := range s.Pages {
		all = append(all, p...)
	}
	for _, js := range s.Companies {
		all = append(all, js...)
	}
	for _, j := range all {
		if j.ID == id {
			return j, true
		}
	}
	return Job{}, false
}

func (s *Site) JobURL(id string) string { return s.URL + "/job/" + id }

func (s *Site) bootstrap(w http.ResponseWriter, r *http.Request) {
	s.hit("bootstrap")
	if s.BootstrapStatus != 0 {
		w.WriteHeader(s.BootstrapStatus)
		return
	}
	fmt.Fprint(w, `<html><head><meta name="csrf-token" content="test-token">
<script>const Ziggy = {"url":"`+s.URL+`","routes":{
"api.jobs.search":{"uri":"api\/v1\/jobs\/search","methods":["GET"]},
"api.jobs.show":{"uri":"api\/v1\/jobs\/{job}","methods":["GET"]},
"api.jobs.additional":{"uri":"api\/v1\/jobs\/{job}\/additional","methods":["GET"]}}};</script>
</head><body><div id="app"></div></body></html>`)
}

func (s *Site) listing(w http.ResponseWriter, r *http.Request) {
	s.hit("listing")
	if s.ListingStatus != 0 {
		w.WriteHeader(s.ListingStatus)
		return
	}
	if r.Header.Get("X-CSRF-TOKEN") != "test-token" {
		w.WriteHeader(http.StatusForbidden)
		return
	}
	page, _ := strconv.Atoi(r.URL.Query().Get("page"))
	if page < 1 {
		page = 1
	}
	body := map[string]any{"data": []any{}}
	if page <= len(s.Pages) {
		var items []any
		for _, j := range s.Pages[page-1] {
			items = append(items, map[string]any{
				"id":      j.ID,
				"title":   j.Title,
				"company": map[string]any{"name": j.Company},
				"url":     "/job/" + j.ID,
			})
		}
		body["data"] = items
	}
	if page < len(s.Pages) {
		q := r.URL.Query()
		q.Set("page", strconv.Itoa(page+1))
		body["links"] = map[string]any{"next": s.URL + r.URL.Path + "?" + q.Encode()}
	} else {
		body["links"] = map[string]any{"next": nil}
	}
	writeJSON(w, body)
}

func (s *Site) detail(w http.ResponseWriter, r *http.Request) {
	s.hit("detail")
	if s.DetailStatus != 0 {
		w.WriteHeader(s.DetailStatus)
		return
	}
	j, ok := s.find(r.PathValue("id"))
	if !ok {
		w.WriteHeader(http.StatusNotFound)
		return
	}
	writeJSON(w, map[string]any{"data": map[string]any{
		"id":          j.ID,
		"location":    j.Location,
		"job_type":    j.JobType,
		"description": "<p>" + html.EscapeString(j.Description) + "</p>",
	}})
}

func (s *Site) additional(w http.ResponseWriter, r *http.Request) {
	s.hit("additional")
	if s.DetailStatus != 0 {
		w.WriteHeader(s.DetailStatus)
		return
	}
	j, ok := s.find(r.PathValue("id"))
	if !ok {
		w.WriteHeader(http.StatusNotFound)
		return
	}
	var blocks []any
	if j.Clearance != "" {
		blocks = append(blocks, map[string]any{"label": "Security Clearance", "value": j.Clearance})
	}
	writeJSON(w, map[string]any{"data": map[string]any{"custom_blocks": blocks}})
}

func (s *Site) jobPage(w http.ResponseWriter, r *http.Request) {
	s.hit("page")
	j, ok := s.find(r.PathValue("id"))
	if !ok {
		w.WriteHeader(http.StatusNotFound)
		return
	}
	ld, _ := json.Marshal(map[string]any{
		"@context":           "https://schema.org",
		"@type":              "JobPosting",
		"title":              j.Title,
		"hiringOrganization": map[string]any{"name": j.Company},
		"description":        "<p>" + html.EscapeString(j.Description) + "</p>",
	})
	fmt.Fprintf(w, `<html><head><script type="application/ld+json">%s</script></head>
<body><h1>%s</h1><ul><li>Location: %s</li><li>Security Clearance: %s</li></ul>
<a href="/company/elsewhere">Other company</a><a href="/directory?page=9">More jobs</a></body></html>`,
		ld, html.EscapeString(j.Title), html.EscapeString(j.Location), html.EscapeString(j.Clearance))
}

func (s *Site) sitemapIndex(w http.ResponseWriter, r *http.Request) {
	s.hit("sitemap")
	w.Header().Set("Content-Type", "application/xml")
	fmt.Fprintf(w, `<?xml version="1.0" encoding="UTF-8"?>
<sitemapindex xmlns="http://www.sitemaps.org/schemas/sitemap/0.9">
<sitemap><loc>%[1]s/sitemaps/companies.xml</loc></sitemap>
<sitemap><loc>%[1]s/sitemaps/jobs-active-1.xml</loc></sitemap>
<sitemap><loc>%[1]s/sitemaps/jobs-expired-1.xml</loc></sitemap>
</sitemapindex>`, s.URL)
}

func (s *Site) childSitemap(w http.ResponseWriter, r *http.Request) {
	s.hit("sitemap")
	var b strings.Builder
	b.WriteString(`<?xml version="1.0" encoding="UTF-8"?><urlset xmlns="http://www.sitemaps.org/schemas/sitemap/0.9">`)
	switch r.PathValue("name") {
	case "jobs-active-1.xml":
		for _, j := range s.SitemapJobs {
			fmt.Fprintf(&b, "<url><loc>%s</loc></url>", s.JobURL(j.ID))
		}
	case "companies.xml":
		fmt.Fprintf(&b, "<url><loc>%s/company/acme</loc></url>", s.URL)
	default:
		fmt.Fprintf(&b, "<url><loc>%s/job/expired</loc></url>", s.URL)
	}
	b.WriteString(`</urlset>`)
	w.Header().Set("Content-Type", "application/xml")
	fmt.Fprint(w, b.String())
}

func (s *Site) directory(w http.ResponseWriter, r *http.Request) {
	s.hit("directory")
	page, _ := strconv.Atoi(r.URL.Query().Get("page"))
	if page < 1 {
		page = 1
	}
	if page > len(s.Directory) {
		w.WriteHeader(http.StatusNotFound)
		return
	}
	var b strings.Builder
	b.WriteString("<html><body><ul>")
	for _, slug := range s.Directory[page-1] {
		fmt.Fprintf(&b, `<li><a href="/company/%s">%s</a></li>`, slug, slug)
	}
	b.WriteString("</ul>")
	if page < len(s.Directory) {
		fmt.Fprintf(&b, `<a rel="next" href="/directory?page=%d">Next</a>`, page+1)
	}
	b.WriteString("</body></html>")
	fmt.Fprint(w, b.String())
}

func (s *Site) company(w http.ResponseWriter, r *http.Request) {
	s.hit("company")
	jobs, ok := s.Companies[r.PathValue("slug")]
	if !ok {
		w.WriteHeader(http.StatusNotFound)
		return
	}
	var b strings.Builder
	b.WriteString("<html><body>")
	for _, j := range jobs {
		fmt.Fprintf(&b, `<a href="/job/%s">%s</a>`, j.ID, html.EscapeString(j.Title))
	}
	b.WriteString(`<a href="/directory">All companies</a></body></html>`)
	fmt.Fprint(w, b.String())
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}
