package analyzer

import (
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/pemistahl/lingua-go"
)

// Options controls text analysis behaviour.
type Options struct {
	TopKeywords    int
	ExtraStopWords []string
	DetectLanguage bool
}

// Analyzer computes the linguistic metrics of a page corpus. Everything it
// consults (stop-word set, keyword cap, language detector) is fixed at
// construction; a single instance is safe for concurrent use.
type Analyzer struct {
	stopWords map[string]struct{}
	topN      int
	detector  lingua.LanguageDetector
}

// New builds an Analyzer from the given options.
func New(opts Options) *Analyzer {
	topN := opts.TopKeywords
	if topN <= 0 {
		topN = 20
	}

	words := make(map[string]struct{}, len(defaultStopWords)+len(opts.ExtraStopWords))
	for w := range defaultStopWords {
		words[w] = struct{}{}
	}
	for _, w := range opts.ExtraStopWords {
		w = strings.ToLower(strings.TrimSpace(w))
		if w != "" {
			words[w] = struct{}{}
		}
	}

	var detector lingua.LanguageDetector
	if opts.DetectLanguage {
		detector = lingua.NewLanguageDetectorBuilder().
			FromLanguages(detectionLanguages...).
			Build()
	}

	return &Analyzer{
		stopWords: words,
		topN:      topN,
		detector:  detector,
	}
}

// Corpus builds the analyzed text of a page: the trimmed text content of
// every p, div, and span element in document order, joined by single spaces.
// The selection is deliberately broad; nested containers contribute their
// text once per matching element, so wrapper markup repeats inner text.
func Corpus(doc *goquery.Document) string {
	parts := []string{}
	doc.Find("p, div, span").Each(func(_ int, s *goquery.Selection) {
		if text := strings.TrimSpace(s.Text()); text != "" {
			parts = append(parts, text)
		}
	})
	return strings.Join(parts, " ")
}

// WordCount counts the whitespace-delimited tokens of a corpus.
func WordCount(corpus string) int {
	return len(strings.Fields(corpus))
}
