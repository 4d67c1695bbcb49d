// Package fetch retrieves the stock page over HTTP and parses it into a
// stock.Snapshot. It owns item-name normalization: the page is noisy
// (quantity suffixes, stray whitespace, inconsistent casing), and only
// allowlisted items survive parsing.
package fetch

import (
	"regexp"
	"strings"
)

type ItemSpec struct {
	Name  string
	Emoji string
}

type SectionSpec struct {
	Name  string
	Emoji string
}

// Table resolves raw scraped names to canonical allowlisted items and
// carries the emoji decorations per item and per section. Immutable after
// construction.
type Table struct {
	items    map[string]ItemSpec // folded name -> spec
	sections map[string]string   // section name -> emoji
}

func NewTable(items []ItemSpec, sections []SectionSpec) *Table {
	t := &Table{
		items:    make(map[string]ItemSpec, len(items)),
		sections: make(map[string]string, len(sections)),
	}
	for _, it := range items {
		key := strings.ToLower(NormalizeName(it.Name))
		if key == "" {
			continue
		}
		t.items[key] = ItemSpec{Name: NormalizeName(it.Name), Emoji: it.Emoji}
	}
	for _, s := range sections {
		t.sections[strings.ToUpper(strings.TrimSpace(s.Name))] = s.Emoji
	}
	return t
}

// Item resolves a raw scraped name. ok=false means the item is not
// allowlisted and should be skipped.
func (t *Table) Item(raw string) (ItemSpec, bool) {
	spec, ok := t.items[strings.ToLower(NormalizeName(raw))]
	return spec, ok
}

func (t *Table) SectionEmoji(section string) string {
	return t.sections[strings.ToUpper(strings.TrimSpace(section))]
}

// Names returns the canonical item names, for building admin keyboards.
func (t *Table) Names() []string {
	out := make([]string, 0, len(t.items))
	for _, spec := range t.items {
		out = append(out, spec.Name)
	}
	return out
}

var (
	reQtySuffix = regexp.MustCompile(`(?i)\s*x\d+\s*$`)
	reDigits    = regexp.MustCompile(`\d+`)
)

// NormalizeName strips a trailing quantity suffix ("Mango x3" -> "Mango")
// and collapses whitespace.
func NormalizeName(raw string) string {
	s := reQtySuffix.ReplaceAllString(raw, "")
	return strings.Join(strings.Fields(s), " ")
}

// qtyFromText extracts the numeric quantity from strings like "x3" or
// "Mango x3"; "" when absent.
func qtyFromText(s string) string {
	m := reQtySuffix.FindString(s)
	if m == "" {
		return ""
	}
	return reDigits.FindString(m)
}
