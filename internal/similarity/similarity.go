// Package similarity provides a small, deterministic, dependency-free text
// comparison library used to suppress near-duplicate bot posts. It is pure:
// no logging, no shared state, safe for concurrent use.
//
// The combined score blends two signals:
//
//   - normalized Levenshtein similarity (weight 0.4), and
//   - Jaccard overlap of extracted keyword sets (weight 0.6).
//
// Identical normalized strings always score exactly 1.0. A candidate is a
// duplicate of an earlier post when its score reaches the threshold
// (DefaultThreshold unless the caller overrides it).
package similarity

import (
	"crypto/sha256"
	"encoding/hex"
	"regexp"
	"strings"
)

// DefaultThreshold is the combined-score cutoff at or above which two texts
// are considered duplicates. Policy, not physics; deployments may tune it.
const DefaultThreshold = 0.7

// Blend weights for the combined score.
const (
	editWeight    = 0.4
	keywordWeight = 0.6
)

// stopwords are dropped during keyword extraction. The set is intentionally
// small: just the high-frequency English function words that would otherwise
// dominate the Jaccard overlap.
var stopwords = map[string]struct{}{
	"the": {}, "and": {}, "for": {}, "are": {}, "but": {}, "not": {},
	"you": {}, "all": {}, "can": {}, "had": {}, "her": {}, "was": {},
	"one": {}, "our": {}, "out": {}, "day": {}, "get": {}, "has": {},
	"him": {}, "his": {}, "how": {}, "its": {}, "may": {}, "new": {},
	"now": {}, "old": {}, "see": {}, "two": {}, "way": {}, "who": {},
	"did": {}, "have": {}, "with": {}, "this": {}, "that": {}, "from": {},
	"they": {}, "been": {}, "were": {}, "what": {}, "when": {}, "your": {},
	"will": {}, "would": {}, "there": {}, "their": {}, "about": {},
	"which": {}, "could": {}, "should": {}, "them": {}, "than": {},
	"then": {}, "some": {}, "very": {}, "just": {}, "into": {}, "over": {},
	"also": {}, "only": {}, "most": {}, "other": {}, "because": {},
	"while": {}, "where": {}, "does": {}, "doing": {},
}

var wordRE = regexp.MustCompile(`[a-z]+`)

// suffixes stripped during light stemming, longest first. Stemming only
// applies when the remaining stem keeps at least four runes, so short words
// pass through untouched ("during" stays "during").
var stemSuffixes = []string{"ations", "ation", "ing", "ers", "es", "er", "ed", "s"}

func stem(w string) string {
	for _, suf := range stemSuffixes {
		if strings.HasSuffix(w, suf) && len(w)-len(suf) >= 4 {
			return w[:len(w)-len(suf)]
		}
	}
	return w
}

// normalize lowercases and collapses runs of whitespace so that trivially
// reformatted text compares equal.
func normalize(s string) string {
	return strings.Join(strings.Fields(strings.ToLower(s)), " ")
}

// EditDistance returns the Levenshtein distance between a and b, computed
// over runes with the standard two-row dynamic program.
func EditDistance(a, b string) int {
	ra, rb := []rune(a), []rune(b)
	if len(ra) == 0 {
		return len(rb)
	}
	if len(rb) == 0 {
		return len(ra)
	}

	prev := make([]int, len(rb)+1)
	curr := make([]int, len(rb)+1)
	for j := range prev {
		prev[j] = j
	}
	for i := 1; i <= len(ra); i++ {
		curr[0] = i
		for j := 1; j <= len(rb); j++ {
			cost := 1
			if ra[i-1] == rb[j-1] {
				cost = 0
			}
			curr[j] = minInt(prev[j]+1, curr[j-1]+1, prev[j-1]+cost)
		}
		prev, curr = curr, prev
	}
	return prev[len(rb)]
}

// editSimilarity is the normalized edit-distance similarity in [0,1]:
// 1 - distance/max(len). Two empty strings are identical (1.0).
func editSimilarity(a, b string) float64 {
	la, lb := len([]rune(a)), len([]rune(b))
	if la == 0 && lb == 0 {
		return 1.0
	}
	longest := la
	if lb > longest {
		longest = lb
	}
	return 1.0 - float64(EditDistance(a, b))/float64(longest)
}

// ExtractKeywords returns the set of content-bearing tokens in text:
// lowercased, alphabetic-only, longer than two runes, stopwords removed,
// lightly stemmed so that inflected forms of the same word ("presenting",
// "presentations") collapse to a shared key.
func ExtractKeywords(text string) map[string]struct{} {
	words := wordRE.FindAllString(strings.ToLower(text), -1)
	out := make(map[string]struct{}, len(words))
	for _, w := range words {
		if len(w) <= 2 {
			continue
		}
		if _, skip := stopwords[w]; skip {
			continue
		}
		out[stem(w)] = struct{}{}
	}
	return out
}

// KeywordOverlap is the Jaccard index of two keyword sets. Two empty sets
// are defined as fully overlapping (1.0); exactly one empty set is 0.0.
func KeywordOverlap(k1, k2 map[string]struct{}) float64 {
	if len(k1) == 0 && len(k2) == 0 {
		return 1.0
	}
	if len(k1) == 0 || len(k2) == 0 {
		return 0.0
	}
	small, large := k1, k2
	if len(small) > len(large) {
		small, large = large, small
	}
	inter := 0
	for w := range small {
		if _, ok := large[w]; ok {
			inter++
		}
	}
	union := len(k1) + len(k2) - inter
	return float64(inter) / float64(union)
}

// containment is the overlap coefficient of two keyword sets: the share of
// the smaller set found in the larger one. It catches rephrasings whose word
// order differs too widely for edit distance to notice.
func containment(k1, k2 map[string]struct{}) float64 {
	if len(k1) == 0 || len(k2) == 0 {
		return 0.0
	}
	small, large := k1, k2
	if len(small) > len(large) {
		small, large = large, small
	}
	inter := 0
	for w := range small {
		if _, ok := large[w]; ok {
			inter++
		}
	}
	return float64(inter) / float64(len(small))
}

// Score returns the combined similarity of a and b in [0,1]. Identical
// normalized strings short-circuit to exactly 1.0 so floating-point blending
// can never undercut an exact match.
//
// The base score blends edit similarity (0.4) with keyword Jaccard (0.6).
// When both texts carry at least three keywords, the keyword containment of
// the smaller set is taken as a floor: a post whose content words almost all
// appear in an earlier post is a rephrasing even when the sentences read very
// differently, and the duplicate guard should err toward suppression. Short
// texts skip the floor so that two-word posts cannot trivially collide.
func Score(a, b string) float64 {
	na, nb := normalize(a), normalize(b)
	if na == nb {
		return 1.0
	}
	ka, kb := ExtractKeywords(na), ExtractKeywords(nb)

	edit := editSimilarity(na, nb)
	kw := KeywordOverlap(ka, kb)
	score := editWeight*edit + keywordWeight*kw

	if len(ka) >= 3 && len(kb) >= 3 {
		if cov := containment(ka, kb); cov > score {
			score = cov
		}
	}
	return score
}

// IsDuplicate reports whether a and b score at or above threshold. A
// threshold <= 0 falls back to DefaultThreshold.
func IsDuplicate(a, b string, threshold float64) bool {
	if threshold <= 0 {
		threshold = DefaultThreshold
	}
	return Score(a, b) >= threshold
}

// ContentHash returns a stable 16-hex-character digest of the lowercased,
// trimmed text. Case- and padding-variants of the same text hash identically,
// which makes the hash usable for O(1) exact-duplicate lookups before the
// more expensive similarity scan.
func ContentHash(text string) string {
	sum := sha256.Sum256([]byte(strings.TrimSpace(strings.ToLower(text))))
	return hex.EncodeToString(sum[:8])
}

func minInt(a, b, c int) int {
	if b < a {
		a = b
	}
	if c < a {
		a = c
	}
	return a
}
