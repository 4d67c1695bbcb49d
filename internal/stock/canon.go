package stock

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"sort"
	"strings"
)

// Canonicalize normalizes a snapshot for equality comparison: every field is
// case-folded and whitespace-collapsed, emoji runes are sorted (the page
// sometimes reorders combined emoji), and items within a section are sorted
// by name. Ties keep their original relative order so the result is stable.
func Canonicalize(s Snapshot) Snapshot {
	out := make(Snapshot, len(s))
	for section, items := range s {
		norm := make([]Item, len(items))
		for i, it := range items {
			norm[i] = Item{
				Name:  foldSpace(strings.ToLower(it.Name)),
				Emoji: sortRunes(strings.TrimSpace(it.Emoji)),
				Qty:   foldSpace(strings.ToLower(it.Qty)),
			}
		}
		sort.SliceStable(norm, func(i, j int) bool { return norm[i].Name < norm[j].Name })
		out[section] = norm
	}
	return out
}

// Fingerprint returns a hex SHA-256 digest of the canonical form of s.
// Sections are serialized in lexicographic order with a fixed field order,
// so two snapshots that differ only in presentation hash identically.
func Fingerprint(s Snapshot) string {
	canon := Canonicalize(s)
	names := make([]string, 0, len(canon))
	for name := range canon {
		names = append(names, name)
	}
	sort.Strings(names)

	type sectionRec struct {
		Section string `json:"section"`
		Items   []Item `json:"items"`
	}

	h := sha256.New()
	enc := json.NewEncoder(h)
	for _, name := range names {
		// Encode cannot fail for this shape; the digest is all we need.
		_ = enc.Encode(sectionRec{Section: name, Items: canon[name]})
	}
	return hex.EncodeToString(h.Sum(nil))
}

// foldSpace trims edges and collapses internal whitespace runs to single spaces.
func foldSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

func sortRunes(s string) string {
	if s == "" {
		return s
	}
	rs := []rune(s)
	sort.Slice(rs, func(i, j int) bool { return rs[i] < rs[j] })
	return string(rs)
}
