package moderation

import (
	"unicode"

	"github.com/abadojack/whatlanggo"
	goahocorasick "github.com/anknown/ahocorasick"
	"github.com/samber/lo"
)

// Screen vets outgoing moderation text (display cards, special titles,
// kick reasons) against a banned-word list before anything reaches the
// server. Matching is resilient to Leet speak and punctuation padding.
type Screen struct {
	matcher *goahocorasick.Machine
}

// Verdict reports what the screen found in one text.
type Verdict struct {
	Matches []string // offending substrings as they appeared in the input
	Lang    string   // ISO 639-1 language guess, empty when undetected
}

func (v Verdict) Clean() bool {
	return len(v.Matches) == 0
}

type textMapping struct {
	normalized []rune
	origIdx    []int
}

// NewScreen initializes the Aho-Corasick automaton with a normalized
// version of the provided banned words list.
func NewScreen(bannedWords []string) (Screen, error) {
	patterns := make([][]rune, len(bannedWords))
	for i, word := range bannedWords {
		patterns[i] = normalizeRunes([]rune(word))
	}

	m := new(goahocorasick.Machine)
	if err := m.Build(patterns); err != nil {
		return Screen{}, err
	}
	return Screen{matcher: m}, nil
}

// Check scans a text and reports every banned pattern it contains,
// mapped back to the original characters so callers can show the exact
// offending fragment.
func (s *Screen) Check(text string) Verdict {
	verdict := Verdict{}
	mapping := normalize(text)
	if len(mapping.normalized) == 0 {
		return verdict
	}

	info := whatlanggo.Detect(text)
	verdict.Lang = info.Lang.Iso6391()

	origRunes := []rune(text)
	spans := s.matcher.MultiPatternSearch(mapping.normalized, false)
	if len(spans) == 0 {
		return verdict
	}

	for _, span := range spans {
		normStart := span.Pos
		normEnd := normStart + len(span.Word)

		if normStart < 0 || normEnd > len(mapping.origIdx) {
			continue
		}

		origStart := mapping.origIdx[normStart]
		lastCharOrigIdx := mapping.origIdx[normEnd-1]
		verdict.Matches = append(verdict.Matches, string(origRunes[origStart:lastCharOrigIdx+1]))
	}
	verdict.Matches = lo.Uniq(verdict.Matches)
	return verdict
}

// normalize transforms the input string into a searchable format and tracks original rune positions.
func normalize(input string) textMapping {
	origRunes := []rune(input)
	norm := make([]rune, 0, len(origRunes))
	origIdx := make([]int, 0, len(origRunes))

	for i, r := range origRunes {
		clean := simplifyRune(r)
		if isNoise(clean) {
			continue
		}
		norm = append(norm, unicode.ToLower(clean))
		origIdx = append(origIdx, i)
	}
	return textMapping{normalized: norm, origIdx: origIdx}
}

// normalizeRunes applies simplification and noise removal to a slice of runes.
func normalizeRunes(input []rune) []rune {
	out := make([]rune, 0, len(input))
	for _, r := range input {
		clean := simplifyRune(r)
		if isNoise(clean) {
			continue
		}
		out = append(out, unicode.ToLower(clean))
	}
	return out
}

// simplifyRune maps common Leet speak characters back to their standard alphabet counterparts.
func simplifyRune(r rune) rune {
	switch r {
	case '4', '@':
		return 'a'
	case '3', '€':
		return 'e'
	case '1', '!', '|':
		return 'i'
	case '0':
		return 'o'
	case '5', '$':
		return 's'
	default:
		return r
	}
}

// isNoise identifies characters that should be ignored during the pattern matching phase.
func isNoise(r rune) bool {
	return unicode.IsPunct(r) || unicode.IsSpace(r) || unicode.IsSymbol(r)
}
