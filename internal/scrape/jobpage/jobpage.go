// Package jobpage turns a single job detail page into a record: JSON-LD
// first, then "Label: value" lines, then header and selector heuristics.
package jobpage

import (
	"context"
	"net/url"

	"jobcollect-engine/internal/domain"
	"jobcollect-engine/internal/scrape/fetch"
	"jobcollect-engine/internal/scrape/resolve"
	"jobcollect-engine/internal/scrape/util"

	"github.com/PuerkitoBio/goquery"
)

// Result is a parsed job page.
type Result struct {
	Record domain.JobRecord
	// Structured reports whether JSON-LD supplied any field.
	Structured bool
}

// Strategy returns SourceJSONLD when the page's structured data was used,
// otherwise fallback.
func (r Result) Strategy(fallback domain.SourceStrategy) domain.SourceStrategy {
	if r.Structured {
		return domain.SourceJSONLD
	}
	return fallback
}

// Fetch downloads and parses pageURL.
func Fetch(ctx context.Context, c *fetch.Client, pageURL string) (Result, error) {
	doc, _, err := c.GetDocument(ctx, fetch.KindPage, pageURL, nil)
	if err != nil {
		return Result{}, err
	}
	return Parse(doc, pageURL), nil
}

// Parse resolves a record from doc. The page URL is the record's URL unless
// the structured data names one; a relative one is resolved against the page.
func Parse(doc *goquery.Document, pageURL string) Result {
	rec, sources := resolve.Trace(Fragment(doc, pageURL))
	if base, err := url.Parse(pageURL); err == nil {
		rec.URL = util.ResolveURL(base, rec.URL)
	}
	if rec.URL == "" {
		rec.URL = pageURL
	}
	structured := false
	for _, src := range sources {
		if src == resolve.SrcStructured {
			structured = true
			break
		}
	}
	return Result{Record: rec, Structured: structured}
}

// Fragment collects the page's structured, labeled and DOM views.
func Fragment(doc *goquery.Document, pageURL string) resolve.Fragment {
	return resolve.Fragment{
		StructuredData: resolve.ExtractJobPosting(doc),
		Labeled:        resolve.LabelsFromText(util.PageText(doc)),
		DOM:            domFields(doc, pageURL),
	}
}

// Structured resolves only the page's JSON-LD. ok is false when there is none.
func Structured(doc *goquery.Document) (domain.JobRecord, bool) {
	jp := resolve.ExtractJobPosting(doc)
	if jp == nil {
		return domain.JobRecord{}, false
	}
	return resolve.Resolve(resolve.Fragment{StructuredData: jp}), true
}

var companySelectors = []string{
	".company-name",
	".job-company",
	".company",
	"[itemprop='hiringOrganization']",
	"[data-testid='company-name']",
}

var descriptionSelectors = []string{
	".job-description",
	"#job-description",
	"[itemprop='description']",
	".description",
	".job-details",
	"#content",
	"article",
}

func domFields(doc *goquery.Document, pageURL string) map[string]string {
	out := map[string]string{resolve.DOMURL: pageURL}

	if t := title(doc); t != "" {
		out[resolve.DOMTitle] = t
	}
	for _, sel := range companySelectors {
		if t := util.CleanText(doc.Find(sel).First().Text()); t != "" {
			out[resolve.DOMCompany] = t
			break
		}
	}
	if out[resolve.DOMCompany] == "" {
		if v := util.CleanText(doc.Find(`meta[property="og:site_name"]`).AttrOr("content", "")); v != "" {
			out[resolve.DOMCompany] = v
		}
	}
	if loc := util.FindLocation(doc); loc != "" {
		out[resolve.DOMLocation] = loc
	}
	for _, sel := range descriptionSelectors {
		s := doc.Find(sel).First()
		if s.Length() == 0 {
			continue
		}
		if h, err := s.Html(); err == nil && util.StripHTML(h) != "" {
			out[resolve.DOMDescriptionHTML] = h
			break
		}
	}
	return out
}

func title(doc *goquery.Document) string {
	if t := util.CleanText(doc.Find("h1").First().Text()); t != "" && !util.LooksLikeJunkTitle(t) {
		return t
	}
	if t := util.CleanText(doc.Find(`meta[property="og:title"]`).AttrOr("content", "")); t != "" {
		return t
	}
	return util.CleanText(doc.Find("title").First().Text())
}
