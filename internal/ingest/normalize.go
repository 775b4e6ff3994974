package ingest

import (
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

var parenthesized = regexp.MustCompile(`\([^)]*\)`)

// fold upper-cases s, strips diacritics and collapses whitespace.
func fold(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	out, _, err := transform.String(t, s)
	if err != nil {
		out = s
	}
	return strings.Join(strings.Fields(strings.ToUpper(out)), " ")
}

// NameKey normalizes a barangay name for matching.
func NameKey(s string) string {
	return fold(s)
}

// MunicipalityKey normalizes a municipality name for matching: "City of"
// prefixes, "City" suffixes and parenthesised notes are dropped, so
// "CITY OF BAIS (Capital)", "Bais City" and "bais" share one key.
func MunicipalityKey(s string) string {
	k := fold(parenthesized.ReplaceAllString(s, " "))
	k = strings.TrimPrefix(k, "CITY OF ")
	k = strings.TrimSuffix(k, " CITY")
	return k
}

// Index resolves normalized names to ids. An exact key match wins,
// otherwise a stored key containing the query matches. A lookup that hits
// more than one id is ambiguous and matches nothing.
type Index struct {
	keys []string
	ids  []int64
}

// Add registers id under an already normalized key. Empty keys are ignored.
func (x *Index) Add(key string, id int64) {
	if key == "" {
		return
	}
	x.keys = append(x.keys, key)
	x.ids = append(x.ids, id)
}

// Len returns the number of entries.
func (x *Index) Len() int { return len(x.keys) }

// Match looks up an already normalized key.
func (x *Index) Match(key string) (int64, bool) {
	if key == "" {
		return 0, false
	}
	if id, n := x.find(func(k string) bool { return k == key }); n > 0 {
		return id, n == 1
	}
	id, n := x.find(func(k string) bool { return strings.Contains(k, key) })
	return id, n == 1
}

// find returns the first id accepted by hit and the number of distinct
// ids accepted.
func (x *Index) find(hit func(k string) bool) (int64, int) {
	var first int64
	n := 0
	for i, k := range x.keys {
		if !hit(k) {
			continue
		}
		if n == 0 {
			first = x.ids[i]
			n = 1
		} else if x.ids[i] != first {
			n++
		}
	}
	return first, n
}
