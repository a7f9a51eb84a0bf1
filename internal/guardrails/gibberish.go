package guardrails

import (
	"strings"
	"unicode"
)

const (
	minLetterRatio    = 0.3
	minVowelRatio     = 0.15
	maxConsonantRun   = 6
	maxRepeatedRun    = 12
	minGibberishInput = 8
)

// IsGibberish applies character-level heuristics: too few meaningful
// characters, too few vowels, long consonant clusters or a long run of one
// repeated character. Digits and operators count as meaningful so math
// notation is not flagged.
func IsGibberish(text string) bool {
	trimmed := strings.TrimSpace(text)
	if len([]rune(trimmed)) < minGibberishInput {
		return false
	}

	var asciiLetters, vowels, meaningful, consonantRun, longestConsonantRun, repeatRun int
	var prev rune
	for _, r := range trimmed {
		if r == prev {
			repeatRun++
			if repeatRun >= maxRepeatedRun && !unicode.IsSpace(r) {
				return true
			}
		} else {
			repeatRun = 1
		}
		prev = r

		switch {
		case unicode.IsLetter(r):
			meaningful++
			if r > unicode.MaxASCII {
				consonantRun = 0
				break
			}
			asciiLetters++
			if strings.ContainsRune("aeiouyAEIOUY", r) {
				vowels++
				consonantRun = 0
			} else {
				consonantRun++
				if consonantRun > longestConsonantRun {
					longestConsonantRun = consonantRun
				}
			}
		case unicode.IsDigit(r), strings.ContainsRune("+-*/=^()[]{}.,:;<>!?%'\"", r):
			meaningful++
			consonantRun = 0
		case unicode.IsSpace(r):
			consonantRun = 0
		default:
			consonantRun = 0
		}
	}

	total := len([]rune(trimmed))
	if float64(meaningful)/float64(total) < minLetterRatio {
		return true
	}
	if asciiLetters >= minGibberishInput && float64(vowels)/float64(asciiLetters) < minVowelRatio {
		return true
	}
	return longestConsonantRun > maxConsonantRun
}
