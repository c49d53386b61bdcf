// Package report derives the flattened side tables an export layer consumes
// alongside the ordered result batch. It defines record shapes only;
// rendering and serialization live outside this repository's scope.
package report

import "github.com/boopin/seo-url-analyzer/pkg/types"

// HeadingRow is one heading flattened across the batch.
type HeadingRow struct {
	URL   string `json:"url"`
	Level int    `json:"level"`
	Text  string `json:"text"`
}

// LinkRow is one discovered link flattened across the batch.
type LinkRow struct {
	SourceURL  string `json:"source_url"`
	LinkURL    string `json:"link_url"`
	AnchorText string `json:"anchor_text"`
}

// Tables holds the derived side tables of a finished batch.
type Tables struct {
	Headings      []HeadingRow `json:"headings"`
	InternalLinks []LinkRow    `json:"internal_links"`
	ExternalLinks []LinkRow    `json:"external_links"`
}

// Build flattens headings and links out of the result batch, preserving
// batch order and per-page document order. Failed records contribute no
// rows; their collections are empty by construction.
func Build(results []types.AnalysisResult) Tables {
	tables := Tables{
		Headings:      []HeadingRow{},
		InternalLinks: []LinkRow{},
		ExternalLinks: []LinkRow{},
	}
	for _, result := range results {
		for _, h := range result.Headings {
			tables.Headings = append(tables.Headings, HeadingRow{
				URL:   result.URL,
				Level: h.Level,
				Text:  h.Text,
			})
		}
		tables.InternalLinks = append(tables.InternalLinks, linkRows(result.URL, result.InternalLinks)...)
		tables.ExternalLinks = append(tables.ExternalLinks, linkRows(result.URL, result.ExternalLinks)...)
	}
	return tables
}

func linkRows(sourceURL string, links []types.LinkRecord) []LinkRow {
	rows := make([]LinkRow, 0, len(links))
	for _, link := range links {
		rows = append(rows, LinkRow{
			SourceURL:  sourceURL,
			LinkURL:    link.AbsoluteURL,
			AnchorText: link.AnchorText,
		})
	}
	return rows
}
