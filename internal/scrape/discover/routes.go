// Package discover derives API endpoint templates and the anti-forgery token
// from the site's bootstrap page.
package discover

import (
	"fmt"
	"net/url"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/titanous/json5"
)

// Route names a route in the page's route table and the path used when the
// table or the route is missing.
type Route struct {
	Name    string `yaml:"name"`
	Default string `yaml:"default"`
}

type Routes struct {
	Listing    Route `yaml:"listing"`
	Detail     Route `yaml:"detail"`
	Additional Route `yaml:"additional"`
}

func DefaultRoutes() Routes {
	return Routes{
		Listing:    Route{Name: "api.jobs.search", Default: "/api/v1/jobs/search"},
		Detail:     Route{Name: "api.jobs.show", Default: "/api/v1/jobs/{job}"},
		Additional: Route{Name: "api.jobs.additional", Default: "/api/v1/jobs/{job}/additional"},
	}
}

// Template is a URI with {param} and {param?} placeholders.
type Template struct {
	Name      string
	Path      string
	FromTable bool
}

var placeholderRe = regexp.MustCompile(`\{(\w+)(\?)?\}`)

// Expand substitutes params (path-escaped) and resolves the result against base.
// A missing required param is an error; a missing optional one drops its segment.
func (t Template) Expand(base *url.URL, params map[string]string) (string, error) {
	var missing []string
	path := placeholderRe.ReplaceAllStringFunc(t.Path, func(m string) string {
		sub := placeholderRe.FindStringSubmatch(m)
		if v, ok := params[sub[1]]; ok && v != "" {
			return url.PathEscape(v)
		}
		if sub[2] != "?" {
			missing = append(missing, sub[1])
		}
		return ""
	})
	if len(missing) > 0 {
		return "", fmt.Errorf("route %q: missing params %v", t.Name, missing)
	}
	if !strings.Contains(path, "://") {
		path = strings.ReplaceAll(path, "//", "/")
		if !strings.HasPrefix(path, "/") {
			path = "/" + path
		}
	}
	if len(path) > 1 {
		path = strings.TrimSuffix(path, "/")
	}

	ref, err := url.Parse(path)
	if err != nil {
		return "", fmt.Errorf("route %q: %w", t.Name, err)
	}
	if base == nil {
		return ref.String(), nil
	}
	return base.ResolveReference(ref).String(), nil
}

// ExpandID fills every placeholder with id; detail routes name their single
// parameter differently from site to site.
func (t Template) ExpandID(base *url.URL, id string) (string, error) {
	params := map[string]string{}
	for _, m := range placeholderRe.FindAllStringSubmatch(t.Path, -1) {
		params[m[1]] = id
	}
	return t.Expand(base, params)
}

// Params lists the placeholder names in order.
func (t Template) Params() []string {
	var out []string
	for _, m := range placeholderRe.FindAllStringSubmatch(t.Path, -1) {
		out = append(out, m[1])
	}
	return out
}

type Endpoints struct {
	Base       *url.URL
	Listing    Template
	Detail     Template
	Additional Template
}

func (e Endpoints) ListingURL(query url.Values) (string, error) {
	u, err := e.Listing.Expand(e.Base, nil)
	if err != nil {
		return "", err
	}
	if len(query) == 0 {
		return u, nil
	}
	parsed, err := url.Parse(u)
	if err != nil {
		return "", err
	}
	q := parsed.Query()
	for k, vs := range query {
		for _, v := range vs {
			q.Add(k, v)
		}
	}
	parsed.RawQuery = q.Encode()
	return parsed.String(), nil
}

func (e Endpoints) DetailURL(id string) (string, error) { return e.Detail.ExpandID(e.Base, id) }

func (e Endpoints) AdditionalURL(id string) (string, error) {
	return e.Additional.ExpandID(e.Base, id)
}

// Discovery is the result of reading a bootstrap page. Endpoints is always
// usable; FromRouteTable reports whether any route came from the page.
type Discovery struct {
	Endpoints      Endpoints
	CSRFToken      string
	FromRouteTable bool
	// Defaulted lists the route names that fell back to default paths.
	Defaulted []string
}

type routeTable struct {
	URL    string                `json:"url"`
	Routes map[string]routeEntry `json:"routes"`
}

type routeEntry struct {
	URI     string   `json:"uri"`
	Methods []string `json:"methods"`
}

var (
	ziggyRe  = regexp.MustCompile(`\bZiggy\s*=\s*\{`)
	routesRe = regexp.MustCompile(`\bZiggy\.routes\s*=\s*\{|["']?\broutes["']?\s*:\s*\{`)
)

// Discover reads the route table and CSRF token out of bootstrap HTML.
func Discover(doc *goquery.Document, base *url.URL, routes Routes) Discovery {
	table := findRouteTable(doc)

	d := Discovery{CSRFToken: csrfToken(doc)}
	pick := func(r Route) Template {
		if e, ok := table[r.Name]; ok && strings.TrimSpace(e.URI) != "" {
			d.FromRouteTable = true
			return Template{Name: r.Name, Path: e.URI, FromTable: true}
		}
		d.Defaulted = append(d.Defaulted, r.Name)
		return Template{Name: r.Name, Path: r.Default}
	}

	d.Endpoints = Endpoints{
		Base:       base,
		Listing:    pick(routes.Listing),
		Detail:     pick(routes.Detail),
		Additional: pick(routes.Additional),
	}
	return d
}

// Fallback returns the discovery used when there is no bootstrap page at all.
func Fallback(base *url.URL, routes Routes) Discovery {
	return Discovery{
		Endpoints: Endpoints{
			Base:       base,
			Listing:    Template{Name: routes.Listing.Name, Path: routes.Listing.Default},
			Detail:     Template{Name: routes.Detail.Name, Path: routes.Detail.Default},
			Additional: Template{Name: routes.Additional.Name, Path: routes.Additional.Default},
		},
		Defaulted: []string{routes.Listing.Name, routes.Detail.Name, routes.Additional.Name},
	}
}

func csrfToken(doc *goquery.Document) string {
	for _, sel := range []string{
		`meta[name="csrf-token"]`,
		`meta[name="csrf_token"]`,
		`meta[name="_token"]`,
		`meta[name="x-csrf-token"]`,
	} {
		if v := strings.TrimSpace(doc.Find(sel).First().AttrOr("content", "")); v != "" {
			return v
		}
	}
	return ""
}

func findRouteTable(doc *goquery.Document) map[string]routeEntry {
	var out map[string]routeEntry
	doc.Find("script").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		if _, ok := s.Attr("src"); ok {
			return true
		}
		routes, ok := parseRouteTable(s.Text())
		if ok {
			out = routes
			return false
		}
		return true
	})
	return out
}

func parseRouteTable(script string) (map[string]routeEntry, bool) {
	if loc := ziggyRe.FindStringIndex(script); loc != nil {
		var table routeTable
		obj := balancedObject(script[loc[1]-1:])
		if obj != "" && json5.Unmarshal([]byte(obj), &table) == nil && len(table.Routes) > 0 {
			return table.Routes, true
		}
	}

	// a bare route map: `Ziggy.routes = {...}` or `routes: {...}`
	if loc := routesRe.FindStringIndex(script); loc != nil {
		var routes map[string]routeEntry
		obj := balancedObject(script[loc[1]-1:])
		if obj != "" && json5.Unmarshal([]byte(obj), &routes) == nil && len(routes) > 0 {
			return routes, true
		}
	}
	return nil, false
}

// balancedObject returns the {...} literal at the start of s, honouring
// quoted strings, or "" when it is unterminated.
func balancedObject(s string) string {
	if !strings.HasPrefix(s, "{") {
		return ""
	}
	depth := 0
	var quote byte
	escaped := false
	for i := 0; i < len(s); i++ {
		c := s[i]
		if quote != 0 {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == quote:
				quote = 0
			}
			continue
		}
		switch c {
		case '"', '\'', '`':
			quote = c
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return s[:i+1]
			}
		}
	}
	return ""
}
