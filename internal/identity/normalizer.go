package identity

import (
	"strings"
	"unicode"

	"github.com/agnivade/levenshtein"
)

// legal-entity suffixes stripped from the tail of a cleaned name
var legalSuffixes = []string{
	"incorporated", "corporation", "company", "limited",
	"gmbh", "inc", "corp", "llc", "ltd", "plc", "co",
}

// Normalizer resolves free-text account names to canonical identities.
// It holds its own alias table and is constructed once per run; there are
// no package-level caches.
type Normalizer struct {
	aliases   map[string]string // cleaned alias -> canonical form
	threshold int               // minimum similarity ratio (0-100) for a fuzzy hit
}

func NewNormalizer(threshold int) *Normalizer {
	if threshold <= 0 || threshold > 100 {
		threshold = 85
	}
	return &Normalizer{
		aliases:   map[string]string{},
		threshold: threshold,
	}
}

// AddAlias registers a known alias. The alias is cleaned before storage so
// lookups match regardless of the raw form it arrives in.
func (n *Normalizer) AddAlias(alias, canonical string) {
	cleaned := Clean(alias)
	if cleaned == "" {
		return
	}
	n.aliases[cleaned] = Clean(canonical)
}

// Normalize returns the canonical identity for a raw account name. Exact
// alias hits win; otherwise the closest alias at or above the similarity
// threshold; otherwise the cleaned name itself.
func (n *Normalizer) Normalize(raw string) string {
	cleaned := Clean(raw)
	if cleaned == "" {
		return ""
	}
	if canonical, ok := n.aliases[cleaned]; ok {
		return canonical
	}

	best := ""
	bestScore := 0
	for alias, canonical := range n.aliases {
		score := Ratio(cleaned, alias)
		if score > bestScore {
			bestScore = score
			best = canonical
		}
	}
	if bestScore >= n.threshold {
		return best
	}
	return cleaned
}

func (n *Normalizer) AreSameAccount(a, b string) bool {
	return n.Normalize(a) == n.Normalize(b)
}

// Clean lower-cases, strips punctuation and trailing legal-entity suffixes,
// and collapses whitespace.
func Clean(raw string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(raw) {
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			b.WriteRune(r)
		case unicode.IsSpace(r):
			b.WriteRune(' ')
		default:
			// punctuation becomes a separator so "Apple,Inc" splits cleanly
			b.WriteRune(' ')
		}
	}

	words := strings.Fields(b.String())
	for len(words) > 1 && isLegalSuffix(words[len(words)-1]) {
		words = words[:len(words)-1]
	}
	return strings.Join(words, " ")
}

func isLegalSuffix(word string) bool {
	for _, s := range legalSuffixes {
		if word == s {
			return true
		}
	}
	return false
}

// Ratio is a 0-100 similarity score derived from Levenshtein edit distance.
func Ratio(a, b string) int {
	if a == b {
		return 100
	}
	longest := len([]rune(a))
	if l := len([]rune(b)); l > longest {
		longest = l
	}
	if longest == 0 {
		return 100
	}
	dist := levenshtein.ComputeDistance(a, b)
	return int(float64(longest-dist) / float64(longest) * 100)
}
