package domain

import (
	"strings"

	"jobcollect-engine/internal/scrape/util"
)

// SourceStrategy names the acquisition strategy that produced a record.
type SourceStrategy string

const (
	SourceAPI     SourceStrategy = "api"
	SourceJSONLD  SourceStrategy = "jsonld"
	SourceHTML    SourceStrategy = "html"
	SourceSitemap SourceStrategy = "sitemap"
)

// JobRecord is the canonical output record. Empty strings stand for missing values.
type JobRecord struct {
	ID              string         `json:"id"`
	URL             string         `json:"url"`
	Title           string         `json:"title"`
	Company         string         `json:"company"`
	Location        string         `json:"location"`
	ClearanceLevel  string         `json:"clearance_level"`
	Salary          string         `json:"salary"`
	EmploymentType  string         `json:"employment_type"`
	DatePosted      string         `json:"date_posted"`
	DescriptionHTML string         `json:"description_html"`
	DescriptionText string         `json:"description_text"`
	SourceStrategy  SourceStrategy `json:"source_strategy"`
}

// Finalize normalizes whitespace on every text field and derives DescriptionText
// from DescriptionHTML when it is missing.
func (j *JobRecord) Finalize() {
	j.ID = util.CleanText(j.ID)
	j.URL = strings.TrimSpace(j.URL)
	j.Title = util.CleanText(j.Title)
	j.Company = util.CleanText(j.Company)
	j.Location = util.NormalizeLocation(j.Location)
	j.ClearanceLevel = util.CleanText(j.ClearanceLevel)
	j.Salary = util.CleanText(j.Salary)
	j.EmploymentType = util.CleanText(j.EmploymentType)
	j.DatePosted = util.CleanText(j.DatePosted)
	j.DescriptionHTML = strings.TrimSpace(j.DescriptionHTML)
	j.DescriptionText = util.CleanText(j.DescriptionText)
	if j.DescriptionText == "" && j.DescriptionHTML != "" {
		j.DescriptionText = util.StripHTML(j.DescriptionHTML)
	}
}

// Valid reports whether the record carries an identity.
func (j JobRecord) Valid() bool {
	return j.ID != "" || j.URL != ""
}

// IdentityKeys returns every key the record can be recognised by. The URL key
// is canonicalized so tracking params and fragments do not defeat dedup.
func (j JobRecord) IdentityKeys() []string {
	var keys []string
	if u := util.CanonicalURL(j.URL); u != "" {
		keys = append(keys, "url:"+u)
	}
	if id := strings.TrimSpace(j.ID); id != "" {
		keys = append(keys, "id:"+id)
	}
	return keys
}

// Gaps reports whether any field the API enrichment step cares about is
// missing, or the description is shorter than minDesc characters.
func (j JobRecord) Gaps(minDesc int) bool {
	return j.DescriptionText == "" ||
		j.EmploymentType == "" ||
		j.ClearanceLevel == "" ||
		j.Location == "" ||
		len([]rune(j.DescriptionText)) < minDesc
}
