package parser

import (
	"strings"
	"unicode"

	"github.com/sugarme/tokenizer/normalizer"
	"golang.org/x/text/unicode/norm"
)

type lowercase struct{}

func (lowercase) Normalize(n *normalizer.NormalizedString) (*normalizer.NormalizedString, error) {
	return n.Lowercase(), nil
}

// textNormalizer is stateless; every call builds its own NormalizedString.
var textNormalizer normalizer.Normalizer = normalizer.NewSequence([]normalizer.Normalizer{
	normalizer.NewNFKC(),
	lowercase{},
})

// NormalizeText applies NFKC, lowercases letters, and flattens every digit
// to '0' when the token has digits but no letters (prices, dates, ids).
func NormalizeText(s string) string {
	// The tokenizer's NFKC step emits decomposed runes; composing here first
	// makes it a no-op.
	s = norm.NFKC.String(s)
	allNumeric, hasDigit := true, false
	for _, r := range s {
		if unicode.IsDigit(r) {
			hasDigit = true
		}
		if r > unicode.MaxASCII || unicode.IsLetter(r) {
			allNumeric = false
		}
	}
	if n, err := textNormalizer.Normalize(normalizer.NewNormalizedFrom(s)); err == nil {
		s = n.GetNormalized()
	}
	if !(allNumeric && hasDigit) {
		return s
	}
	return strings.Map(func(r rune) rune {
		if r >= '0' && r <= '9' {
			return '0'
		}
		return r
	}, s)
}
