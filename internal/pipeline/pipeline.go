// Package pipeline runs the per-URL analysis: fetch, parse, extract, and
// score one page, producing exactly one AnalysisResult. A run either yields
// a fully populated record or the all-defaults failure shape, never a
// partially filled one.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/url"

	"github.com/boopin/seo-url-analyzer/internal/analyzer"
	"github.com/boopin/seo-url-analyzer/internal/extractor"
	"github.com/boopin/seo-url-analyzer/internal/fetcher"
	"github.com/boopin/seo-url-analyzer/pkg/types"
)

// State names the stages a run moves through. Any stage may transition
// directly to StateFailed.
type State string

const (
	StatePending    State = "pending"
	StateFetching   State = "fetching"
	StateParsing    State = "parsing"
	StateExtracting State = "extracting"
	StateDone       State = "done"
	StateFailed     State = "failed"
)

// Fetcher retrieves page content and measures load time.
type Fetcher interface {
	Fetch(ctx context.Context, pageURL *url.URL) (*types.Page, error)
	MeasureLoadTime(ctx context.Context, pageURL *url.URL) (int64, error)
}

// TLSChecker validates the certificate served on a host's port 443.
type TLSChecker interface {
	Check(ctx context.Context, host string) fetcher.TLSReport
}

// LinkProber annotates link records with reachability verdicts.
type LinkProber interface {
	Annotate(ctx context.Context, links []types.LinkRecord)
}

// Sink receives each finished (result, page) pair before the page is
// discarded. Persist errors never fail the record.
type Sink interface {
	Persist(ctx context.Context, runID string, result *types.AnalysisResult, page *types.Page) error
}

// Pipeline sequences the analysis stages for one URL at a time. A single
// instance is safe for concurrent use; runs share no mutable state.
type Pipeline struct {
	fetcher  Fetcher
	tls      TLSChecker
	analyzer *analyzer.Analyzer
	prober   LinkProber
	sink     Sink
	logger   *slog.Logger
}

// New wires a pipeline. tls, prober, and sink may be nil to disable the
// corresponding optional stage.
func New(f Fetcher, tls TLSChecker, a *analyzer.Analyzer, prober LinkProber, sink Sink, logger *slog.Logger) *Pipeline {
	if logger == nil {
		logger = slog.Default()
	}
	return &Pipeline{
		fetcher:  f,
		tls:      tls,
		analyzer: a,
		prober:   prober,
		sink:     sink,
		logger:   logger,
	}
}

// Run analyzes one URL. On success the error is nil; on failure the result
// is the empty failure shape and the error carries the taxonomy kind.
func (p *Pipeline) Run(ctx context.Context, runID string, req types.AnalysisRequest) (*types.AnalysisResult, *Error) {
	pageURL := req.URL
	logger := p.logger.With("url", pageURL.String())
	logger.Debug("state transition", "state", StatePending)

	logger.Debug("state transition", "state", StateFetching)

	// The load-time probe is independent of the content fetch; its failure
	// only leaves LoadTimeMS unset.
	var loadTime *int64
	if ms, err := p.fetcher.MeasureLoadTime(ctx, pageURL); err != nil {
		logger.Debug("load time measurement failed", "error", err)
	} else {
		loadTime = &ms
	}

	page, err := p.fetcher.Fetch(ctx, pageURL)
	if err != nil {
		return p.fail(logger, pageURL, classifyFetchError(err))
	}
	if page.StatusCode < 200 || page.StatusCode > 299 {
		return p.fail(logger, pageURL, &Error{
			Kind:    KindHTTPStatus,
			Message: fmt.Sprintf("unexpected HTTP status %d", page.StatusCode),
		})
	}

	result := &types.AnalysisResult{
		URL:        pageURL.String(),
		Status:     types.StatusSuccess,
		LoadTimeMS: loadTime,
	}

	// TLS failures are recovered locally: SSLValid goes false, the run
	// carries on.
	if p.tls != nil {
		report := p.tls.Check(ctx, pageURL.Hostname())
		valid := report.Valid
		result.SSLValid = &valid
		result.SSLExpiresAt = report.Expiry
		if !report.Valid {
			logger.Debug("tls check failed", "host", pageURL.Hostname(), "kind", KindTLSFailure.String())
		}
	}

	logger.Debug("state transition", "state", StateParsing)
	doc, err := extractor.Parse(page.Body)
	if err != nil {
		return p.fail(logger, pageURL, &Error{
			Kind:    KindParseFailure,
			Message: "failed to parse page markup",
			Cause:   err,
		})
	}

	logger.Debug("state transition", "state", StateExtracting)
	base := page.FinalURL
	if base == nil {
		base = pageURL
	}
	ex := extractor.Extract(doc, base)

	corpus := analyzer.Corpus(doc)
	result.WordCount = analyzer.WordCount(corpus)
	result.Readability = analyzer.FleschReadingEase(corpus)
	result.Keywords = p.analyzer.Keywords(corpus)
	result.Language = p.analyzer.Language(corpus)

	result.MetaTitle = ex.Title
	result.MetaDescription = ex.MetaDescription
	result.Headings = ex.Headings
	result.HeadingCounts = types.HeadingCountsOf(ex.Headings)
	result.ImageCount = ex.ImageCount
	result.ImagesMissingAlt = ex.ImagesMissingAlt
	viewport := ex.HasViewport
	result.MobileFriendly = &viewport

	if p.prober != nil {
		p.prober.Annotate(ctx, ex.Links)
	}

	result.InternalLinks = make([]types.LinkRecord, 0, len(ex.Links))
	result.ExternalLinks = []types.LinkRecord{}
	for _, link := range ex.Links {
		if link.Internal {
			result.InternalLinks = append(result.InternalLinks, link)
		} else {
			result.ExternalLinks = append(result.ExternalLinks, link)
		}
	}

	if p.sink != nil {
		if err := p.sink.Persist(ctx, runID, result, page); err != nil {
			logger.Error("persist failed", "error", err)
		}
	}

	logger.Debug("state transition", "state", StateDone)
	return result, nil
}

func (p *Pipeline) fail(logger *slog.Logger, pageURL *url.URL, perr *Error) (*types.AnalysisResult, *Error) {
	logger.Warn("analysis failed", "state", StateFailed, "kind", perr.Kind.String(), "error", perr)
	return types.EmptyResult(pageURL.String(), perr.Message), perr
}

// classifyFetchError maps a transport error onto the taxonomy. Deadline
// expiry anywhere in the fetch is a Timeout; everything else is a network
// failure.
func classifyFetchError(err error) *Error {
	if errors.Is(err, context.DeadlineExceeded) {
		return &Error{Kind: KindTimeout, Message: "request timed out", Cause: err}
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return &Error{Kind: KindTimeout, Message: "request timed out", Cause: err}
	}
	return &Error{Kind: KindNetworkFailure, Message: fmt.Sprintf("fetch failed: %v", rootCause(err)), Cause: err}
}

// rootCause unwraps to the innermost error so status messages stay short.
func rootCause(err error) error {
	for {
		inner := errors.Unwrap(err)
		if inner == nil {
			return err
		}
		err = inner
	}
}
