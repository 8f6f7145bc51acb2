package synthesis

import (
	"math/rand"
	"strings"
	"unicode"
)

const substitutionChance = 0.25

var substitutions = map[rune]rune{
	'с': 'з',
	'о': 'а',
	'в': 'ф',
}

// Styler roughs up generated text to read like the persona's informal typing:
// a coin-flip on the first letter's case and occasional Cyrillic letter swaps.
type Styler struct {
	rand *rand.Rand
}

func NewStyler(r *rand.Rand) *Styler {
	return &Styler{rand: r}
}

func (s *Styler) Apply(text string) string {
	if text == "" {
		return text
	}

	runes := []rune(text)
	if s.rand.Intn(2) == 0 {
		runes[0] = unicode.ToLower(runes[0])
	} else {
		runes[0] = unicode.ToUpper(runes[0])
	}

	words := strings.Fields(string(runes))
	for i, word := range words {
		if s.rand.Float64() >= substitutionChance {
			continue
		}
		words[i] = s.substituteOne(word)
	}
	return strings.Join(words, " ")
}

func (s *Styler) substituteOne(word string) string {
	runes := []rune(word)
	candidates := make([]int, 0, len(runes))
	for i, r := range runes {
		if _, ok := substitutions[r]; ok {
			candidates = append(candidates, i)
		}
	}
	if len(candidates) == 0 {
		return word
	}
	pos := candidates[s.rand.Intn(len(candidates))]
	runes[pos] = substitutions[runes[pos]]
	return string(runes)
}
