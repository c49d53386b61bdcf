package extractor

import (
	"bytes"
	"fmt"
	"net/url"
	"strings"
	"unicode/utf8"

	"github.com/PuerkitoBio/goquery"

	"github.com/boopin/seo-url-analyzer/pkg/types"
)

// Extraction holds the structural metrics pulled from one page.
type Extraction struct {
	Title            string
	MetaDescription  string
	Headings         []types.HeadingRecord
	Links            []types.LinkRecord
	ImageCount       int
	ImagesMissingAlt int
	HasViewport      bool
}

// Parse turns raw markup into a navigable document tree.
func Parse(body []byte) (*goquery.Document, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("parse markup: %w", err)
	}
	return doc, nil
}

// Extract pulls title, meta description, headings, images, links, and the
// viewport flag from a parsed document. Links are resolved against base and
// classified internal when their host equals the page host exactly; probing
// happens elsewhere, so every record starts out unknown.
func Extract(doc *goquery.Document, base *url.URL) *Extraction {
	ex := &Extraction{
		Headings: []types.HeadingRecord{},
		Links:    []types.LinkRecord{},
	}

	ex.Title = strings.TrimSpace(doc.Find("title").First().Text())
	ex.MetaDescription = metaContent(doc, "description")
	ex.HasViewport = metaPresent(doc, "viewport")

	doc.Find("h1, h2, h3, h4, h5, h6").Each(func(_ int, s *goquery.Selection) {
		level := headingLevel(goquery.NodeName(s))
		if level == 0 {
			return
		}
		ex.Headings = append(ex.Headings, types.HeadingRecord{
			Level: level,
			Text:  strings.TrimSpace(s.Text()),
		})
	})

	doc.Find("img").Each(func(_ int, s *goquery.Selection) {
		ex.ImageCount++
		if alt, ok := s.Attr("alt"); !ok || alt == "" {
			ex.ImagesMissingAlt++
		}
	})

	doc.Find("a[href]").Each(func(_ int, s *goquery.Selection) {
		href, ok := s.Attr("href")
		if !ok {
			return
		}
		resolved, err := base.Parse(href)
		if err != nil {
			return
		}
		ex.Links = append(ex.Links, types.LinkRecord{
			AbsoluteURL:  resolved.String(),
			AnchorText:   strings.TrimSpace(s.Text()),
			Internal:     strings.EqualFold(resolved.Host, base.Host),
			Reachability: types.ReachabilityUnknown,
		})
	})

	return ex
}

// AnchorTexts returns the trimmed anchor texts of the document, keeping only
// texts longer than one character. Used by anchor-keyword consumers that
// need stricter filtering than the link records apply.
func AnchorTexts(doc *goquery.Document) []string {
	texts := []string{}
	doc.Find("a[href]").Each(func(_ int, s *goquery.Selection) {
		text := strings.TrimSpace(s.Text())
		if utf8.RuneCountInString(text) > 1 {
			texts = append(texts, text)
		}
	})
	return texts
}

// metaContent returns the trimmed content attribute of the first meta tag
// whose name matches case-insensitively, or an empty string.
func metaContent(doc *goquery.Document, name string) string {
	var content string
	doc.Find("meta").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		if n, ok := s.Attr("name"); ok && strings.EqualFold(n, name) {
			content, _ = s.Attr("content")
			return false
		}
		return true
	})
	return strings.TrimSpace(content)
}

func metaPresent(doc *goquery.Document, name string) bool {
	found := false
	doc.Find("meta").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		if n, ok := s.Attr("name"); ok && strings.EqualFold(n, name) {
			found = true
			return false
		}
		return true
	})
	return found
}

func headingLevel(tag string) int {
	switch tag {
	case "h1":
		return 1
	case "h2":
		return 2
	case "h3":
		return 3
	case "h4":
		return 4
	case "h5":
		return 5
	case "h6":
		return 6
	default:
		return 0
	}
}
