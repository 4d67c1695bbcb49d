// Package stock defines the inventory snapshot model shared by the fetcher
// and the watcher, plus the change-detection primitives built on it:
// canonicalization, fingerprinting, and refresh periods.
package stock

// Item is a single inventory entry as scraped from the stock page.
type Item struct {
	Name  string `json:"name"`
	Emoji string `json:"emoji"`
	Qty   string `json:"qty"`
}

// Snapshot maps a section name to its items, in page order.
// Immutable once captured; canonicalization returns a copy.
type Snapshot map[string][]Item

// Empty reports whether none of the given sections has any items.
func (s Snapshot) Empty(sections []string) bool {
	for _, name := range sections {
		if len(s[name]) > 0 {
			return false
		}
	}
	return true
}
