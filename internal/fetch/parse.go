package fetch

import (
	"io"
	"strings"

	"golang.org/x/net/html"

	"gardenbot/internal/stock"
)

// Parse extracts the stock snapshot from the page HTML.
//
// Page shape: each section is an <h2> header ("GEAR STOCK", ...) followed,
// somewhere later in document order, by a <ul> whose <li> entries carry the
// item name in the first <span> and the quantity in the second (older page
// revisions inline "Name x3" as plain text; both forms are handled).
//
// Every configured section is present in the result, possibly empty.
// Unknown sections and non-allowlisted items are dropped silently.
func Parse(r io.Reader, sections []string, table *Table) (stock.Snapshot, error) {
	doc, err := html.Parse(r)
	if err != nil {
		return nil, err
	}

	known := make(map[string]bool, len(sections))
	snap := make(stock.Snapshot, len(sections))
	for _, name := range sections {
		known[name] = true
		snap[name] = []stock.Item{}
	}

	// Flatten to document order once; "the ul following an h2" is a forward
	// scan, not a sibling relationship, on this page.
	nodes := flatten(doc)
	for i, n := range nodes {
		if !isElement(n, "h2") {
			continue
		}
		section := strings.ToUpper(textOf(n))
		if !known[section] {
			continue
		}
		ul := nextElement(nodes, i+1, "ul")
		if ul == nil {
			continue
		}
		snap[section] = parseItems(ul, section, table)
	}
	return snap, nil
}

func parseItems(ul *html.Node, section string, table *Table) []stock.Item {
	items := []stock.Item{}
	for _, li := range childElements(ul, "li") {
		text := textOf(li)
		name := NormalizeName(text)
		qty := qtyFromText(text)

		spans := descendantElements(li, "span")
		if len(spans) >= 1 {
			name = NormalizeName(textOf(spans[0]))
			if len(spans) >= 2 {
				qty = qtyFromText(" " + textOf(spans[1]))
			}
		}
		if name == "" {
			continue
		}

		spec, ok := table.Item(name)
		if !ok {
			continue
		}
		emoji := spec.Emoji
		if emoji == "" {
			emoji = table.SectionEmoji(section)
		}
		if qty != "" {
			qty = "x" + qty
		}
		items = append(items, stock.Item{Name: spec.Name, Emoji: emoji, Qty: qty})
	}
	return items
}

// ---- DOM helpers ----

func flatten(n *html.Node) []*html.Node {
	var out []*html.Node
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		out = append(out, n)
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return out
}

func isElement(n *html.Node, tag string) bool {
	return n.Type == html.ElementNode && n.Data == tag
}

func nextElement(nodes []*html.Node, from int, tag string) *html.Node {
	for i := from; i < len(nodes); i++ {
		if isElement(nodes[i], tag) {
			return nodes[i]
		}
	}
	return nil
}

func childElements(n *html.Node, tag string) []*html.Node {
	var out []*html.Node
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if isElement(c, tag) {
			out = append(out, c)
		}
	}
	return out
}

func descendantElements(n *html.Node, tag string) []*html.Node {
	var out []*html.Node
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			if isElement(c, tag) {
				out = append(out, c)
			}
			walk(c)
		}
	}
	walk(n)
	return out
}

// textOf concatenates the text descendants of n, whitespace-collapsed.
func textOf(n *html.Node) string {
	var b strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.TextNode {
			b.WriteString(n.Data)
			b.WriteString(" ")
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return strings.Join(strings.Fields(b.String()), " ")
}
