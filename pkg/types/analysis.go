package types

import (
	"fmt"
	"net/url"
	"strings"
	"time"
)

// AnalysisRequest is one URL submitted for analysis. Construct it with
// NewAnalysisRequest and treat it as immutable afterwards.
type AnalysisRequest struct {
	URL *url.URL
	Raw string
}

// NewAnalysisRequest normalizes a raw URL string into a request. URLs
// without a scheme default to https. URLs without a host are rejected.
func NewAnalysisRequest(raw string) (AnalysisRequest, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return AnalysisRequest{}, fmt.Errorf("empty url")
	}
	if !strings.Contains(trimmed, "://") {
		trimmed = "https://" + trimmed
	}
	parsed, err := url.Parse(trimmed)
	if err != nil {
		return AnalysisRequest{}, fmt.Errorf("parse url %q: %w", raw, err)
	}
	if parsed.Host == "" {
		return AnalysisRequest{}, fmt.Errorf("url %q has no host", raw)
	}
	return AnalysisRequest{URL: parsed, Raw: raw}, nil
}

// Page represents the fetched content of one URL.
type Page struct {
	URL             *url.URL
	FinalURL        *url.URL
	Body            []byte
	ContentType     string
	StatusCode      int
	FetchedAt       time.Time
	ResponseLatency time.Duration
}

// HeadingRecord is one heading element in document order.
type HeadingRecord struct {
	Level int    `json:"level"`
	Text  string `json:"text"`
}

// Reachability reports the outcome of a link existence probe. Unknown means
// no probe ran for the link; it is distinct from a confirmed failure.
type Reachability string

const (
	ReachabilityUnknown     Reachability = "unknown"
	ReachabilityReachable   Reachability = "reachable"
	ReachabilityUnreachable Reachability = "unreachable"
)

// LinkRecord is one classified anchor discovered on a page. Internal is true
// iff the link host equals the page host exactly, with no subdomain folding.
type LinkRecord struct {
	AbsoluteURL  string       `json:"absolute_url"`
	AnchorText   string       `json:"anchor_text"`
	Internal     bool         `json:"is_internal"`
	Reachability Reachability `json:"reachable"`
}

// KeywordEntry is one ranked term of the keyword frequency table.
type KeywordEntry struct {
	Term      string `json:"term"`
	Frequency int    `json:"frequency"`
}

// Status values for AnalysisResult.
const StatusSuccess = "Success"

// ErrorStatus renders a failure message into the status field form.
func ErrorStatus(msg string) string {
	return "Error: " + msg
}

// AnalysisResult is the canonical per-URL output record. A failed run
// carries only URL and Status; every other field keeps its zero value and
// every collection is empty, never partially populated.
type AnalysisResult struct {
	URL              string          `json:"url"`
	Status           string          `json:"status"`
	LoadTimeMS       *int64          `json:"load_time_ms"`
	SSLValid         *bool           `json:"ssl_valid"`
	SSLExpiresAt     *time.Time      `json:"ssl_expires_at"`
	MobileFriendly   *bool           `json:"mobile_friendly"`
	Language         string          `json:"language"`
	WordCount        int             `json:"word_count"`
	Readability      float64         `json:"readability_score"`
	MetaTitle        string          `json:"meta_title"`
	MetaDescription  string          `json:"meta_description"`
	HeadingCounts    [6]int          `json:"heading_counts"`
	Headings         []HeadingRecord `json:"headings"`
	InternalLinks    []LinkRecord    `json:"internal_links"`
	ExternalLinks    []LinkRecord    `json:"external_links"`
	ImageCount       int             `json:"image_count"`
	ImagesMissingAlt int             `json:"images_missing_alt"`
	Keywords         []KeywordEntry  `json:"keywords"`
}

// Failed reports whether the record carries an error status.
func (r *AnalysisResult) Failed() bool {
	return r.Status != StatusSuccess
}

// EmptyResult builds the all-defaults failure record for a URL.
func EmptyResult(pageURL, msg string) *AnalysisResult {
	return &AnalysisResult{
		URL:           pageURL,
		Status:        ErrorStatus(msg),
		Headings:      []HeadingRecord{},
		InternalLinks: []LinkRecord{},
		ExternalLinks: []LinkRecord{},
		Keywords:      []KeywordEntry{},
	}
}

// HeadingCountsOf derives the per-level counts from a heading sequence.
// Index 0 counts h1 tags, index 5 counts h6 tags.
func HeadingCountsOf(headings []HeadingRecord) [6]int {
	var counts [6]int
	for _, h := range headings {
		if h.Level >= 1 && h.Level <= 6 {
			counts[h.Level-1]++
		}
	}
	return counts
}
