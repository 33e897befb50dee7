package character

import (
	"fmt"
	"strings"

	"github.com/antzucaro/matchr"
)

// fuzzyThreshold is the minimum Jaro-Winkler similarity for a phonetic
// candidate to win; pure string fallback requires the higher plainThreshold.
const (
	fuzzyThreshold = 0.70
	plainThreshold = 0.85
)

// Resolve maps a model-produced reference to a concrete character id.
//
// Models regularly address characters loosely: "Varnas" instead of
// "companion_varnas_the_skeptic", or a misspelt name. Resolution proceeds in
// three passes:
//
//  1. Exact id match.
//  2. Exact display-name match, case-insensitive.
//  3. Phonetic match: Double Metaphone code overlap between the reference and
//     each character's name or id, ranked by Jaro-Winkler similarity. When no
//     phonetic candidate exists, a pure Jaro-Winkler pass with a stricter
//     threshold is used.
//
// Returns ErrNotFound when nothing clears the thresholds.
func (s *Store) Resolve(ref string) (string, error) {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return "", fmt.Errorf("%w: empty reference", ErrNotFound)
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	if _, ok := s.characters[ref]; ok {
		return ref, nil
	}

	refLower := strings.ToLower(ref)
	for id, c := range s.characters {
		if strings.ToLower(c.Name) == refLower {
			return id, nil
		}
	}

	refCodes := phoneticCodes(refLower)

	type candidate struct {
		id       string
		score    float64
		phonetic bool
	}
	var best candidate

	for id, c := range s.characters {
		for _, label := range []string{strings.ToLower(c.Name), strings.ReplaceAll(id, "_", " ")} {
			score := bestSimilarity(refLower, label)
			phonetic := codesOverlap(refCodes, phoneticCodes(label))

			switch {
			case phonetic && score >= fuzzyThreshold:
				if !best.phonetic || score > best.score {
					best = candidate{id: id, score: score, phonetic: true}
				}
			case !best.phonetic && score >= plainThreshold && score > best.score:
				best = candidate{id: id, score: score}
			}
		}
	}

	if best.id == "" {
		return "", fmt.Errorf("%w: no character matches %q", ErrNotFound, ref)
	}
	return best.id, nil
}

// phoneticCodes returns the union of Double Metaphone codes for every token.
func phoneticCodes(text string) map[string]struct{} {
	codes := make(map[string]struct{}, 4)
	for _, tok := range strings.Fields(text) {
		p, sec := matchr.DoubleMetaphone(tok)
		if p != "" {
			codes[p] = struct{}{}
		}
		if sec != "" {
			codes[sec] = struct{}{}
		}
	}
	return codes
}

func codesOverlap(a, b map[string]struct{}) bool {
	if len(a) > len(b) {
		a, b = b, a
	}
	for code := range a {
		if _, ok := b[code]; ok {
			return true
		}
	}
	return false
}

// bestSimilarity takes the highest Jaro-Winkler score across the full strings
// and every token pair, so a one-word reference can bind to a multi-word name.
func bestSimilarity(a, b string) float64 {
	score := matchr.JaroWinkler(a, b, false)
	for _, at := range strings.Fields(a) {
		for _, bt := range strings.Fields(b) {
			if s := matchr.JaroWinkler(at, bt, false); s > score {
				score = s
			}
		}
	}
	return score
}
