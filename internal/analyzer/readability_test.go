package analyzer

import (
	"math"
	"testing"
)

func TestFleschReadingEaseKnownValue(t *testing.T) {
	// 6 words, 2 sentences, 6 syllables:
	// 206.835 - 1.015*(6/2) - 84.6*(6/6) = 119.19
	got := FleschReadingEase("The cat sat. The cat ran.")
	if math.Abs(got-119.19) > 0.001 {
		t.Errorf("score = %f, want 119.19", got)
	}
}

func TestFleschReadingEaseUnterminatedSentence(t *testing.T) {
	// 2 words, 1 sentence, 3 syllables:
	// 206.835 - 1.015*2 - 84.6*1.5 = 77.905
	got := FleschReadingEase("hello world")
	if math.Abs(got-77.905) > 0.001 {
		t.Errorf("score = %f, want 77.905", got)
	}
}

func TestFleschReadingEaseDegenerateInputs(t *testing.T) {
	cases := []struct {
		name   string
		corpus string
	}{
		{"empty", ""},
		{"whitespace", "  \t\n"},
		{"punctuation only", "!!! ??? ..."},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := FleschReadingEase(tc.corpus); got != 0 {
				t.Errorf("score = %f, want sentinel 0", got)
			}
		})
	}
}

func TestCountSentences(t *testing.T) {
	cases := []struct {
		text string
		want int
	}{
		{"", 0},
		{"?!.", 0},
		{"One. Two! Three?", 3},
		{"Wait... what?!", 2},
		{"no terminator at all", 1},
		{"Ends cleanly.", 1},
		{"a.b.c", 3},
	}
	for _, tc := range cases {
		if got := countSentences(tc.text); got != tc.want {
			t.Errorf("countSentences(%q) = %d, want %d", tc.text, got, tc.want)
		}
	}
}

func TestCountSyllables(t *testing.T) {
	cases := []struct {
		word string
		want int
	}{
		{"cat", 1},
		{"hello", 2},
		{"make", 1},
		{"table", 2},
		{"see", 1},
		{"beautiful", 3},
		{"rhythm", 1},
		{"Readability", 5},
		{"123", 1},
		{"", 1},
	}
	for _, tc := range cases {
		if got := countSyllables(tc.word); got != tc.want {
			t.Errorf("countSyllables(%q) = %d, want %d", tc.word, got, tc.want)
		}
	}
}
