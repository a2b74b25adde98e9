// Package matching resolves loosely typed or dictated names onto a small set of
// canonical strings.
package matching

import (
	"slices"
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/agnivade/levenshtein"
)

// DefaultThreshold is the minimum score a vocabulary entry needs to replace a candidate.
const DefaultThreshold = 80

// Candidate is a vocabulary entry together with its similarity score.
type Candidate struct {
	Value string  `json:"value"`
	Score float64 `json:"score"`
}

// Match is the outcome of resolving a candidate against a vocabulary.
//
// Value is the best entry when Matched is true and the untouched candidate otherwise.
// Candidates lists every distinct entry at or above the threshold, best first.
type Match struct {
	Value      string
	Score      float64
	Matched    bool
	Candidates []Candidate
}

// Ambiguous reports whether another distinct entry shares the top score.
func (m Match) Ambiguous() bool {
	return m.Matched && len(m.Candidates) > 1 && m.Candidates[1].Score == m.Candidates[0].Score
}

// Tied returns the entries sharing the top score.
func (m Match) Tied() []string {
	if !m.Matched {
		return nil
	}
	var out []string
	for _, c := range m.Candidates {
		if c.Score != m.Score {
			break
		}
		out = append(out, c.Value)
	}
	return out
}

// Resolve returns the closest vocabulary entry to candidate, or candidate itself when
// nothing scores at least threshold.
func Resolve(candidate string, vocabulary []string, threshold int) string {
	return Best(candidate, vocabulary, threshold).Value
}

// Best scores candidate against every vocabulary entry. Ties keep vocabulary order.
// An empty candidate or vocabulary is returned unchanged.
func Best(candidate string, vocabulary []string, threshold int) Match {
	miss := Match{Value: candidate}
	if candidate == "" || len(vocabulary) == 0 {
		return miss
	}

	if slices.Contains(vocabulary, candidate) {
		return Match{
			Value:      candidate,
			Score:      100,
			Matched:    true,
			Candidates: []Candidate{{Value: candidate, Score: 100}},
		}
	}

	seen := make(map[string]struct{}, len(vocabulary))
	var scored []Candidate
	for _, entry := range vocabulary {
		if entry == "" {
			continue
		}
		if _, dup := seen[entry]; dup {
			continue
		}
		seen[entry] = struct{}{}

		score := Score(candidate, entry)
		if score >= float64(threshold) {
			scored = append(scored, Candidate{Value: entry, Score: score})
		}
	}

	if len(scored) == 0 {
		return miss
	}

	sort.SliceStable(scored, func(i, j int) bool { return scored[i].Score > scored[j].Score })

	return Match{
		Value:      scored[0].Value,
		Score:      scored[0].Score,
		Matched:    true,
		Candidates: scored,
	}
}

// Score returns a 0-100 similarity between a and b based on normalized edit distance.
// Comparison ignores case, surrounding space and word order.
func Score(a, b string) float64 {
	na, nb := normalize(a), normalize(b)
	if na == "" && nb == "" {
		return 100
	}
	direct := ratio(na, nb)
	sorted := ratio(sortTokens(na), sortTokens(nb))
	if sorted > direct {
		return sorted
	}
	return direct
}

func ratio(a, b string) float64 {
	longest := max(utf8.RuneCountInString(a), utf8.RuneCountInString(b))
	if longest == 0 {
		return 100
	}
	dist := levenshtein.ComputeDistance(a, b)
	return float64(longest-dist) * 100 / float64(longest)
}

func normalize(s string) string {
	return strings.Join(strings.Fields(strings.ToLower(s)), " ")
}

func sortTokens(s string) string {
	tokens := strings.Fields(s)
	sort.Strings(tokens)
	return strings.Join(tokens, " ")
}
