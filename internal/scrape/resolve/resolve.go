// Package resolve merges partial views of one job posting into a JobRecord by
// evaluating a fixed, ordered list of sources per field.
package resolve

import (
	"jobcollect-engine/internal/domain"
)

// Source names used in rules and traces.
const (
	SrcDetail     = "detail"
	SrcListing    = "listing"
	SrcAdditional = "additional"
	SrcStructured = "structured"
	SrcLabeled    = "labeled"
	SrcDOM        = "dom"
)

// DOM keys set by page handlers.
const (
	DOMURL             = "url"
	DOMTitle           = "title"
	DOMCompany         = "company"
	DOMLocation        = "location"
	DOMDescriptionHTML = "description_html"
)

// Fragment is the per-record union of partial views. Any part may be nil.
type Fragment struct {
	Listing        map[string]any
	Detail         map[string]any
	Additional     map[string]any
	StructuredData *JobPosting
	// Labeled holds custom blocks and "Label: value" lines keyed by Label* constants.
	Labeled map[string]string
	DOM     map[string]string
}

// Rule is one (source, extractor) pair. Extract returns "" on a miss.
type Rule struct {
	Source  string
	Extract func(Fragment) string
}

// FieldRules is the precedence list for one output field.
type FieldRules struct {
	Field string
	Rules []Rule
	set   func(*domain.JobRecord, string)
}

// Pick returns the first non-empty value and the source it came from.
func (f FieldRules) Pick(frag Fragment) (value, source string) {
	for _, r := range f.Rules {
		if v := r.Extract(frag); v != "" {
			return v, r.Source
		}
	}
	return "", ""
}

// Sources lists the field's sources in precedence order.
func (f FieldRules) Sources() []string {
	out := make([]string, len(f.Rules))
	for i, r := range f.Rules {
		out[i] = r.Source
	}
	return out
}

func jsonRules(keys ...string) []Rule {
	return jsonRulesWith(text, keys...)
}

func jsonRulesWith(render func(any) string, keys ...string) []Rule {
	return []Rule{
		{SrcDetail, func(f Fragment) string { return lookupWith(render, f.Detail, keys...) }},
		{SrcListing, func(f Fragment) string { return lookupWith(render, f.Listing, keys...) }},
		{SrcAdditional, func(f Fragment) string { return lookupWith(render, f.Additional, keys...) }},
	}
}

func structured(get func(*JobPosting) string) Rule {
	return Rule{SrcStructured, func(f Fragment) string {
		if f.StructuredData == nil {
			return ""
		}
		return get(f.StructuredData)
	}}
}

func labeled(label string) Rule {
	return Rule{SrcLabeled, func(f Fragment) string { return f.Labeled[label] }}
}

func dom(key string) Rule {
	return Rule{SrcDOM, func(f Fragment) string { return f.DOM[key] }}
}

func salaryRules() []Rule {
	get := func(m map[string]any) string {
		if m == nil {
			return ""
		}
		for _, k := range []string{"salary", "salary_range", "compensation", "pay"} {
			if s := salaryText(m[k]); s != "" {
				return s
			}
		}
		return rangeText(m, []string{"salary_min", "min_salary"}, []string{"salary_max", "max_salary"})
	}
	return []Rule{
		{SrcDetail, func(f Fragment) string { return get(f.Detail) }},
		{SrcListing, func(f Fragment) string { return get(f.Listing) }},
		{SrcAdditional, func(f Fragment) string { return get(f.Additional) }},
	}
}

func rules(parts ...[]Rule) []Rule {
	var out []Rule
	for _, p := range parts {
		out = append(out, p...)
	}
	return out
}

func one(r Rule) []Rule { return []Rule{r} }

// Security clearance never falls back to the job type.
var fieldRules = []FieldRules{
	{
		Field: "id",
		Rules: rules(jsonRules("id", "job_id", "uuid"), one(structured(func(j *JobPosting) string { return j.ID }))),
		set:   func(r *domain.JobRecord, v string) { r.ID = v },
	},
	{
		Field: "url",
		Rules: rules(
			jsonRules("url", "job_url", "permalink", "link"),
			one(structured(func(j *JobPosting) string { return j.URL })),
			one(dom(DOMURL)),
		),
		set: func(r *domain.JobRecord, v string) { r.URL = v },
	},
	{
		Field: "title",
		Rules: rules(
			jsonRules("title", "job_title", "position"),
			one(structured(func(j *JobPosting) string { return j.Title })),
			one(dom(DOMTitle)),
		),
		set: func(r *domain.JobRecord, v string) { r.Title = v },
	},
	{
		Field: "company",
		Rules: rules(
			jsonRules("company", "company_name", "employer", "organization"),
			one(structured(func(j *JobPosting) string { return j.Company })),
			one(labeled(LabelCompany)),
			one(dom(DOMCompany)),
		),
		set: func(r *domain.JobRecord, v string) { r.Company = v },
	},
	{
		Field: "location",
		Rules: rules(
			jsonRulesWith(placeText, "location", "job_location", "city_state", "locations"),
			one(structured(func(j *JobPosting) string { return j.Location })),
			one(labeled(LabelLocation)),
			one(dom(DOMLocation)),
		),
		set: func(r *domain.JobRecord, v string) { r.Location = v },
	},
	{
		Field: "clearance_level",
		Rules: rules(
			jsonRules("security_clearance", "clearance_level", "clearance"),
			one(structured(func(j *JobPosting) string { return j.Clearance })),
			one(labeled(LabelClearance)),
		),
		set: func(r *domain.JobRecord, v string) { r.ClearanceLevel = v },
	},
	{
		Field: "salary",
		Rules: rules(
			salaryRules(),
			one(structured(func(j *JobPosting) string { return j.Salary })),
			one(labeled(LabelSalary)),
		),
		set: func(r *domain.JobRecord, v string) { r.Salary = v },
	},
	{
		Field: "employment_type",
		Rules: rules(
			jsonRules("job_type", "employment_type"),
			one(structured(func(j *JobPosting) string { return j.EmploymentType })),
			one(labeled(LabelJobType)),
		),
		set: func(r *domain.JobRecord, v string) { r.EmploymentType = v },
	},
	{
		Field: "date_posted",
		Rules: rules(
			jsonRules("date_posted", "posted_at", "posted_date", "created_at"),
			one(structured(func(j *JobPosting) string { return j.DatePosted })),
			one(labeled(LabelPosted)),
		),
		set: func(r *domain.JobRecord, v string) { r.DatePosted = v },
	},
	{
		Field: "description_html",
		Rules: rules(
			jsonRules("description_html", "description", "body"),
			one(structured(func(j *JobPosting) string { return j.DescriptionHTML })),
			one(dom(DOMDescriptionHTML)),
		),
		set: func(r *domain.JobRecord, v string) { r.DescriptionHTML = v },
	},
	{
		// falls back to the HTML-derived text in JobRecord.Finalize
		Field: "description_text",
		Rules: rules(
			one(structured(func(j *JobPosting) string { return j.DescriptionText })),
			one(labeled(LabelDuties)),
		),
		set: func(r *domain.JobRecord, v string) { r.DescriptionText = v },
	},
}

// Fields returns the precedence lists in output order.
func Fields() []FieldRules { return fieldRules }

// Resolve builds a finalized record from the fragment.
func Resolve(frag Fragment) domain.JobRecord {
	rec, _ := Trace(frag)
	return rec
}

// Trace is Resolve that also reports which source supplied each field.
func Trace(frag Fragment) (domain.JobRecord, map[string]string) {
	var rec domain.JobRecord
	sources := map[string]string{}
	for _, f := range fieldRules {
		v, src := f.Pick(frag)
		if v == "" {
			continue
		}
		f.set(&rec, v)
		sources[f.Field] = src
	}
	rec.Finalize()
	return rec, sources
}
