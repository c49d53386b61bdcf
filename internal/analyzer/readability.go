package analyzer

import (
	"strings"
	"unicode"
)

// FleschReadingEase scores a corpus with the standard formula
// 206.835 - 1.015*(words/sentences) - 84.6*(syllables/words).
// A corpus with zero words or zero sentences scores exactly 0.
func FleschReadingEase(corpus string) float64 {
	words := strings.Fields(corpus)
	if len(words) == 0 {
		return 0
	}
	sentences := countSentences(corpus)
	if sentences == 0 {
		return 0
	}

	syllables := 0
	for _, w := range words {
		syllables += countSyllables(w)
	}

	wordCount := float64(len(words))
	return 206.835 - 1.015*(wordCount/float64(sentences)) - 84.6*(float64(syllables)/wordCount)
}

// countSentences counts maximal segments that contain at least one
// alphanumeric rune, delimited by runs of '.', '!', or '?'. A trailing
// unterminated segment counts as one sentence.
func countSentences(text string) int {
	count := 0
	hasContent := false
	for _, r := range text {
		switch {
		case r == '.' || r == '!' || r == '?':
			if hasContent {
				count++
				hasContent = false
			}
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			hasContent = true
		}
	}
	if hasContent {
		count++
	}
	return count
}

// countSyllables estimates syllables by counting vowel groups (aeiouy) over
// the word's letters, dropping a silent trailing e after a consonant other
// than l. Words yield at least one syllable.
func countSyllables(word string) int {
	letters := make([]rune, 0, len(word))
	for _, r := range strings.ToLower(word) {
		if r >= 'a' && r <= 'z' {
			letters = append(letters, r)
		}
	}
	if len(letters) == 0 {
		return 1
	}

	count := 0
	prevVowel := false
	for _, r := range letters {
		vowel := isVowel(r)
		if vowel && !prevVowel {
			count++
		}
		prevVowel = vowel
	}

	last := letters[len(letters)-1]
	if count > 1 && len(letters) > 2 && last == 'e' {
		prev := letters[len(letters)-2]
		if !isVowel(prev) && prev != 'l' {
			count--
		}
	}

	if count < 1 {
		count = 1
	}
	return count
}

func isVowel(r rune) bool {
	switch r {
	case 'a', 'e', 'i', 'o', 'u', 'y':
		return true
	}
	return false
}
