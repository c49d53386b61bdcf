package storage

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"
	"unicode"

	htmltomarkdown "github.com/JohannesKaufmann/html-to-markdown/v2"
	"github.com/JohannesKaufmann/html-to-markdown/v2/converter"
	readability "github.com/go-shiori/go-readability"

	"github.com/boopin/seo-url-analyzer/pkg/types"
)

// SnapshotWriter renders each analyzed page's main content to a markdown
// file with a frontmatter header. Files live under dir/<host>/<path>.md with
// path segments sanitized for the filesystem.
type SnapshotWriter struct {
	dir string
}

// NewSnapshotWriter creates the snapshot directory if needed.
func NewSnapshotWriter(dir string) (*SnapshotWriter, error) {
	if strings.TrimSpace(dir) == "" {
		return nil, fmt.Errorf("snapshot directory not set")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create snapshot directory: %w", err)
	}
	return &SnapshotWriter{dir: dir}, nil
}

// Write distils the page to its main content, converts it to markdown, and
// writes it with a frontmatter header describing the analysis.
func (w *SnapshotWriter) Write(_ context.Context, result *types.AnalysisResult, page *types.Page) error {
	pageURL, err := url.Parse(result.URL)
	if err != nil {
		return fmt.Errorf("parse page url: %w", err)
	}

	parser := readability.NewParser()
	article, err := parser.Parse(bytes.NewReader(page.Body), pageURL)
	if err != nil {
		return fmt.Errorf("extract main content: %w", err)
	}

	content := article.Content
	if strings.TrimSpace(content) == "" {
		content = string(page.Body)
	}

	markdown, err := htmltomarkdown.ConvertString(content, converter.WithDomain(pageURL.Scheme+"://"+pageURL.Host))
	if err != nil {
		return fmt.Errorf("convert to markdown: %w", err)
	}
	markdown = strings.TrimSpace(markdown)

	sum := sha256.Sum256([]byte(markdown))
	doc := buildSnapshotDocument(result, page, markdown, hex.EncodeToString(sum[:]))

	target := w.filePath(pageURL)
	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return fmt.Errorf("create snapshot path: %w", err)
	}
	if err := os.WriteFile(target, []byte(doc), 0o644); err != nil {
		return fmt.Errorf("write snapshot: %w", err)
	}
	return nil
}

func buildSnapshotDocument(result *types.AnalysisResult, page *types.Page, body, hash string) string {
	var b strings.Builder
	b.Grow(len(body) + 256)
	b.WriteString("---\n")
	fmt.Fprintf(&b, "url: %s\n", result.URL)
	fmt.Fprintf(&b, "status: %d\n", page.StatusCode)
	fmt.Fprintf(&b, "fetched_at: %s\n", page.FetchedAt.UTC().Format(time.RFC3339))
	fmt.Fprintf(&b, "content_sha256: %s\n", hash)
	fmt.Fprintf(&b, "word_count: %d\n", result.WordCount)
	fmt.Fprintf(&b, "internal_links: %d\n", len(result.InternalLinks))
	fmt.Fprintf(&b, "external_links: %d\n", len(result.ExternalLinks))
	b.WriteString("---\n\n")
	b.WriteString(body)
	b.WriteString("\n")
	return b.String()
}

func (w *SnapshotWriter) filePath(pageURL *url.URL) string {
	segments := []string{w.dir, sanitizeSegment(pageURL.Host)}
	for _, seg := range strings.Split(strings.Trim(pageURL.Path, "/"), "/") {
		if cleaned := sanitizeSegment(seg); cleaned != "" {
			segments = append(segments, cleaned)
		}
	}
	if len(segments) == 2 {
		segments = append(segments, "index")
	}
	path := filepath.Join(segments...)
	return path + ".md"
}

// sanitizeSegment keeps letters, digits, '-', '_' and '.' and folds
// everything else to '-', so any URL path maps to a safe relative file path.
func sanitizeSegment(seg string) string {
	var b strings.Builder
	for _, r := range seg {
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			b.WriteRune(unicode.ToLower(r))
		case r == '-' || r == '_' || r == '.':
			b.WriteRune(r)
		default:
			b.WriteRune('-')
		}
	}
	return strings.Trim(b.String(), "-.")
}
