package util

import (
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/PuerkitoBio/goquery"
)

var junkTitleRe = regexp.MustCompile(`(?i)\b(?:view (?:job|this job|all jobs|details)|apply(?: now| today| here)?)\b`)

// LooksLikeJunkTitle reports headings such as "Apply now" or "View job"
// that stand in for the real title.
func LooksLikeJunkTitle(t string) bool {
	return junkTitleRe.MatchString(t)
}

// FindLocation tries the usual job-page location selectors, then the
// og:description meta, then a "Location:" label anywhere in the body.
func FindLocation(doc *goquery.Document) string {
	candidates := []string{
		".job-location",
		".location",
		".job__location",
		"[itemprop='jobLocation']",
		"[data-testid='job-location']",
		"[data-testid='location']",
	}

	for _, sel := range candidates {
		if t := CleanText(doc.Find(sel).First().Text()); t != "" {
			return NormalizeLocation(t)
		}
	}

	if v, ok := doc.Find(`meta[property="og:description"]`).Attr("content"); ok {
		if loc := ExtractLocationFromLabeledText(v); loc != "" {
			return NormalizeLocation(loc)
		}
	}

	body := PageText(doc)
	if loc := ExtractLocationFromLabeledText(body); loc != "" {
		return NormalizeLocation(loc)
	}

	return ""
}

// extracts after "Location" patterns in plain text
func ExtractLocationFromLabeledText(s string) string {
	return ExtractLabeledValue(s, 80, "location:", "locations:", "job location:")
}

// ExtractLabeledValue returns the text following the first matching label
// (case-insensitive) up to the end of its line, or "" when nothing matched or
// the value is longer than max runes.
func ExtractLabeledValue(s string, max int, labels ...string) string {
	for _, lab := range labels {
		if start := indexFoldEnd(s, lab); start >= 0 {
			rest := strings.TrimLeft(s[start:], " \t")

			// stop at newline-ish boundaries if present
			for _, cut := range []string{"\n", "\r", " | ", " · "} {
				if j := strings.Index(rest, cut); j >= 0 {
					rest = rest[:j]
				}
			}

			rest = CleanText(rest)
			if rest != "" && len([]rune(rest)) <= max {
				return rest
			}
		}
	}
	return ""
}

// indexFoldEnd returns the byte offset in s just past the first
// case-insensitive match of label, or -1. Offsets are taken from s itself
// because case mapping can change a rune's encoded length.
func indexFoldEnd(s, label string) int {
	if label == "" {
		return -1
	}
	for i := 0; i < len(s); {
		if end, ok := hasPrefixFold(s[i:], label); ok {
			return i + end
		}
		_, size := utf8.DecodeRuneInString(s[i:])
		i += size
	}
	return -1
}

func hasPrefixFold(s, prefix string) (int, bool) {
	n := 0
	for _, pr := range prefix {
		if n >= len(s) {
			return 0, false
		}
		r, size := utf8.DecodeRuneInString(s[n:])
		if r != pr && !strings.EqualFold(string(r), string(pr)) {
			return 0, false
		}
		n += size
	}
	return n, true
}
