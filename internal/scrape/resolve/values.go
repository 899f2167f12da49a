package resolve

import (
	"encoding/json"
	"strconv"
	"strings"

	"jobcollect-engine/internal/scrape/util"
)

// text renders a decoded JSON value as a display string. Objects render
// through their name-like keys; arrays join their elements.
func text(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return util.CleanText(t)
	case json.Number, float64, float32, int, int64:
		return numText(t)
	case map[string]any:
		for _, k := range []string{"name", "title", "label", "display_name", "value", "text"} {
			if s := text(t[k]); s != "" {
				return s
			}
		}
	case []any:
		var parts []string
		for _, e := range t {
			if s := text(e); s != "" {
				parts = append(parts, s)
			}
		}
		return strings.Join(parts, ", ")
	}
	return ""
}

// numText formats a number without any locale or currency formatting.
func numText(v any) string {
	switch n := v.(type) {
	case json.Number:
		return n.String()
	case float64:
		return strconv.FormatFloat(n, 'f', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(n), 'f', -1, 32)
	case int:
		return strconv.Itoa(n)
	case int64:
		return strconv.FormatInt(n, 10)
	}
	return ""
}

// placeText is text for location values: objects render through their
// address before their name.
func placeText(v any) string {
	switch t := v.(type) {
	case map[string]any:
		if a := addressText(t); a != "" {
			return a
		}
	case []any:
		var parts []string
		for _, e := range t {
			if s := placeText(e); s != "" {
				parts = append(parts, s)
			}
		}
		return strings.Join(parts, ", ")
	}
	return text(v)
}

func lookup(m map[string]any, keys ...string) string {
	return lookupWith(text, m, keys...)
}

func lookupWith(render func(any) string, m map[string]any, keys ...string) string {
	if m == nil {
		return ""
	}
	for _, k := range keys {
		if s := render(m[k]); s != "" {
			return s
		}
	}
	return ""
}

// addressText joins locality, region and country from a postal address or a
// plain {city, state} object.
func addressText(m map[string]any) string {
	if addr, ok := m["address"]; ok {
		switch a := addr.(type) {
		case string:
			return util.CleanText(a)
		case map[string]any:
			m = a
		}
	}
	var parts []string
	for _, keys := range [][]string{
		{"addressLocality", "city"},
		{"addressRegion", "state", "region"},
		{"addressCountry", "country"},
	} {
		for _, k := range keys {
			v, ok := m[k]
			if !ok {
				continue
			}
			var s string
			if c, ok := v.(map[string]any); ok {
				s = text(c["name"])
			} else {
				s = text(v)
			}
			if s != "" {
				parts = append(parts, s)
				break
			}
		}
	}
	return strings.Join(parts, ", ")
}

// salaryText renders a salary value. Numeric values are kept as written and
// ranges become "min-max".
func salaryText(v any) string {
	switch t := v.(type) {
	case map[string]any:
		if inner, ok := t["value"]; ok {
			if s := salaryText(inner); s != "" {
				return s
			}
		}
		return rangeText(t,
			[]string{"minValue", "min", "min_salary", "salary_min", "from"},
			[]string{"maxValue", "max", "max_salary", "salary_max", "to"},
		)
	case []any:
		if len(t) > 0 {
			return salaryText(t[0])
		}
		return ""
	default:
		return text(v)
	}
}

func rangeText(m map[string]any, minKeys, maxKeys []string) string {
	lo, hi := lookup(m, minKeys...), lookup(m, maxKeys...)
	switch {
	case lo != "" && hi != "" && lo != hi:
		return lo + "-" + hi
	case lo != "":
		return lo
	default:
		return hi
	}
}
