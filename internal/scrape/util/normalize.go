package util

import (
	"strings"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

func CleanText(s string) string {
	s = strings.ReplaceAll(s, "\u00a0", " ")
	s = strings.Join(strings.Fields(s), " ")
	return strings.TrimSpace(s)
}

func NormalizeLocation(loc string) string {
	loc = CleanText(loc)
	if loc == "" {
		return ""
	}

	loc = strings.TrimPrefix(loc, "Location:")
	loc = strings.TrimPrefix(loc, "LOCATIONS:")
	loc = strings.TrimSpace(loc)

	parts := strings.Split(loc, ",")
	seen := map[string]bool{}
	var out []string
	for _, p := range parts {
		p = CleanText(p)
		if p == "" {
			continue
		}
		k := strings.ToLower(p)
		if seen[k] {
			continue
		}
		seen[k] = true
		out = append(out, p)
	}
	return strings.Join(out, ", ")
}

// StripHTML returns the visible text of an HTML fragment on a single
// whitespace-normalized line. Block boundaries become spaces.
func StripHTML(fragment string) string {
	if strings.TrimSpace(fragment) == "" {
		return ""
	}
	if !strings.ContainsAny(fragment, "<&") {
		return CleanText(fragment)
	}
	root, err := html.Parse(strings.NewReader(fragment))
	if err != nil {
		return CleanText(fragment)
	}
	var b strings.Builder
	writeText(root, &b, " ")
	return CleanText(b.String())
}

// PageText returns the document's visible body text, one normalized line per
// block element, with scripts and styles dropped. Used for "Label: value" scans.
func PageText(doc *goquery.Document) string {
	sel := doc.Find("body")
	if sel.Length() == 0 {
		sel = doc.Selection
	}
	var b strings.Builder
	for _, n := range sel.Nodes {
		writeText(n, &b, "\n")
	}

	var lines []string
	for _, line := range strings.Split(b.String(), "\n") {
		if line = CleanText(line); line != "" {
			lines = append(lines, line)
		}
	}
	return strings.Join(lines, "\n")
}

func writeText(n *html.Node, b *strings.Builder, sep string) {
	switch n.Type {
	case html.TextNode:
		b.WriteString(n.Data)
		return
	case html.CommentNode:
		return
	case html.ElementNode:
		if skipElement(n.DataAtom) {
			return
		}
	}

	block := n.Type == html.ElementNode && isBlock(n.DataAtom)
	if block {
		b.WriteString(sep)
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		writeText(c, b, sep)
	}
	if block {
		b.WriteString(sep)
	}
}

func skipElement(a atom.Atom) bool {
	switch a {
	case atom.Script, atom.Style, atom.Noscript, atom.Template, atom.Head:
		return true
	}
	return false
}

func isBlock(a atom.Atom) bool {
	switch a {
	case atom.P, atom.Div, atom.Br, atom.Li, atom.Ul, atom.Ol, atom.Tr, atom.Td, atom.Th,
		atom.Table, atom.Section, atom.Article, atom.Header, atom.Footer, atom.Aside,
		atom.H1, atom.H2, atom.H3, atom.H4, atom.H5, atom.H6, atom.Dt, atom.Dd, atom.Dl,
		atom.Blockquote, atom.Pre, atom.Hr, atom.Main, atom.Nav, atom.Form:
		return true
	}
	return false
}
