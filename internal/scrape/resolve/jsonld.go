package resolve

import (
	"encoding/json"
	"strings"

	"jobcollect-engine/internal/scrape/util"

	"github.com/PuerkitoBio/goquery"
)

// JobPosting is the subset of a schema.org JobPosting the resolver reads.
type JobPosting struct {
	ID              string
	URL             string
	Title           string
	Company         string
	Location        string
	Salary          string
	EmploymentType  string
	DatePosted      string
	DescriptionHTML string
	DescriptionText string
	Clearance       string
}

// ExtractJobPosting returns the first JobPosting found in the document's
// application/ld+json blocks, or nil. Blocks that fail to parse are skipped.
func ExtractJobPosting(doc *goquery.Document) *JobPosting {
	var found *JobPosting
	doc.Find(`script[type="application/ld+json"]`).EachWithBreak(func(_ int, s *goquery.Selection) bool {
		raw := strings.TrimSpace(s.Text())
		if raw == "" {
			return true
		}
		dec := json.NewDecoder(strings.NewReader(raw))
		dec.UseNumber()
		var data any
		if err := dec.Decode(&data); err != nil {
			return true
		}
		if obj := findJobPosting(data); obj != nil {
			found = jobPostingFrom(obj)
			return false
		}
		return true
	})
	return found
}

// findJobPosting walks objects, arrays and @graph containers.
func findJobPosting(v any) map[string]any {
	switch t := v.(type) {
	case []any:
		for _, e := range t {
			if obj := findJobPosting(e); obj != nil {
				return obj
			}
		}
	case map[string]any:
		if isType(t["@type"], "JobPosting") {
			return t
		}
		if g, ok := t["@graph"]; ok {
			return findJobPosting(g)
		}
	}
	return nil
}

func isType(v any, want string) bool {
	switch t := v.(type) {
	case string:
		return strings.EqualFold(t, want)
	case []any:
		for _, e := range t {
			if s, ok := e.(string); ok && strings.EqualFold(s, want) {
				return true
			}
		}
	}
	return false
}

func jobPostingFrom(m map[string]any) *JobPosting {
	jp := &JobPosting{
		URL:            lookup(m, "url"),
		Title:          lookup(m, "title", "name"),
		Company:        lookup(m, "hiringOrganization"),
		Location:       jobLocation(m),
		Salary:         salaryText(m["baseSalary"]),
		EmploymentType: lookup(m, "employmentType"),
		DatePosted:     lookup(m, "datePosted"),
		Clearance:      lookup(m, "securityClearanceRequirement"),
	}
	if id, ok := m["identifier"].(map[string]any); ok {
		jp.ID = lookup(id, "value")
	} else {
		jp.ID = lookup(m, "identifier")
	}
	if jp.Salary == "" {
		jp.Salary = salaryText(m["estimatedSalary"])
	}
	if desc, ok := m["description"].(string); ok {
		jp.DescriptionHTML = strings.TrimSpace(desc)
		jp.DescriptionText = util.StripHTML(desc)
	}
	return jp
}

// jobLocation takes the first jobLocation's address; a telecommute posting
// with no address reads as Remote.
func jobLocation(m map[string]any) string {
	loc := m["jobLocation"]
	if arr, ok := loc.([]any); ok && len(arr) > 0 {
		loc = arr[0]
	}
	if s := placeText(loc); s != "" {
		return s
	}
	if strings.EqualFold(lookup(m, "jobLocationType"), "TELECOMMUTE") {
		return "Remote"
	}
	return ""
}
