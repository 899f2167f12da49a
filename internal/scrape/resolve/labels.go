package resolve

import (
	"regexp"
	"strings"

	"jobcollect-engine/internal/scrape/util"
)

// Custom block labels, lower-cased. Values are keyed by these in Fragment.Labeled.
const (
	LabelClearance = "security clearance"
	LabelSalary    = "salary"
	LabelJobType   = "job type"
	LabelLocation  = "location"
	LabelPosted    = "posted"
	LabelCompany   = "company"
	LabelDuties    = "description of duties"
)

var lineLabels = []string{
	LabelClearance,
	LabelSalary,
	LabelJobType,
	LabelLocation,
	LabelPosted,
	LabelCompany,
}

// dutiesRe captures everything after "Description of Duties:" up to the next
// known label line or the end of the text.
var dutiesRe = regexp.MustCompile(`(?is)description of duties:\s*(.+?)(?:\n\s*(?:security clearance|salary|job type|location|posted|company):|\z)`)

// LabelsFromText extracts "Label: value" lines from page text (one block per
// line, as produced by util.PageText). Matching is case-insensitive.
func LabelsFromText(body string) map[string]string {
	out := map[string]string{}
	for _, lab := range lineLabels {
		if v := util.ExtractLabeledValue(body, 120, lab+":"); v != "" {
			out[lab] = v
		}
	}
	if m := dutiesRe.FindStringSubmatch(body); m != nil {
		if v := util.CleanText(m[1]); v != "" {
			out[LabelDuties] = v
		}
	}
	return out
}

// LabelsFromBlocks reads custom blocks out of decoded API payloads: arrays of
// {label|title|name, value|content|text|body} objects under the usual keys.
// Earlier payloads win.
func LabelsFromBlocks(payloads ...map[string]any) map[string]string {
	out := map[string]string{}
	for _, p := range payloads {
		for _, key := range []string{"custom_blocks", "customBlocks", "custom_fields", "blocks"} {
			arr, ok := p[key].([]any)
			if !ok {
				continue
			}
			for _, e := range arr {
				b, ok := e.(map[string]any)
				if !ok {
					continue
				}
				label := strings.ToLower(strings.TrimSuffix(lookup(b, "label", "title", "name"), ":"))
				if label == "" {
					continue
				}
				val := lookup(b, "value", "content", "text", "body")
				if strings.Contains(val, "<") {
					val = util.StripHTML(val)
				}
				if _, seen := out[label]; !seen && val != "" {
					out[label] = val
				}
			}
		}
	}
	return out
}
