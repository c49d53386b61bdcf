package analyzer

import (
	"strings"

	"github.com/pemistahl/lingua-go"
)

// detectionLanguages bounds the classifier to languages common on the web;
// a smaller candidate set keeps detection fast and more decisive.
var detectionLanguages = []lingua.Language{
	lingua.Arabic,
	lingua.Chinese,
	lingua.Dutch,
	lingua.English,
	lingua.French,
	lingua.German,
	lingua.Italian,
	lingua.Japanese,
	lingua.Korean,
	lingua.Portuguese,
	lingua.Russian,
	lingua.Spanish,
}

// Language classifies the corpus language and returns its lowercase ISO
// 639-1 code. It returns an empty string when detection is disabled, the
// corpus is empty, or no language reaches sufficient confidence.
func (a *Analyzer) Language(corpus string) string {
	if a.detector == nil {
		return ""
	}
	text := strings.TrimSpace(corpus)
	if text == "" {
		return ""
	}
	lang, ok := a.detector.DetectLanguageOf(text)
	if !ok {
		return ""
	}
	return strings.ToLower(lang.IsoCode639_1().String())
}
