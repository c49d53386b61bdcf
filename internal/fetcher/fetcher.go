package fetcher

import (
	"compress/flate"
	"compress/gzip"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/andybalholm/brotli"

	"github.com/boopin/seo-url-analyzer/pkg/types"
)

// Fetcher retrieves web pages for the analyzer.
type Fetcher interface {
	Fetch(ctx context.Context, pageURL *url.URL) (*types.Page, error)
	MeasureLoadTime(ctx context.Context, pageURL *url.URL) (int64, error)
}

// Options controls HTTP fetching behaviour.
type Options struct {
	UserAgent    string
	Headers      map[string]string
	Timeout      time.Duration
	MaxBodyBytes int64
	// Transport overrides the default transport pair. Intended for tests.
	Transport http.RoundTripper
}

// HTTPFetcher implements Fetcher via the Go http.Client. It keeps two
// clients: a pooled one for content fetches and one with keep-alives
// disabled so load-time measurements always include connection setup.
type HTTPFetcher struct {
	client       *http.Client
	loadClient   *http.Client
	userAgent    string
	extraHeaders map[string]string
	maxBodyBytes int64
}

// NewHTTPFetcher constructs an HTTP fetcher using the provided options.
func NewHTTPFetcher(opts Options) (*HTTPFetcher, error) {
	if opts.Timeout <= 0 {
		opts.Timeout = 10 * time.Second
	}
	if opts.MaxBodyBytes <= 0 {
		opts.MaxBodyBytes = 5 * 1024 * 1024 // 5MB cap
	}

	transport := opts.Transport
	loadTransport := opts.Transport
	if transport == nil {
		transport = &http.Transport{
			DialContext:           (&net.Dialer{Timeout: 10 * time.Second, KeepAlive: 30 * time.Second}).DialContext,
			TLSHandshakeTimeout:   10 * time.Second,
			MaxIdleConns:          100,
			IdleConnTimeout:       90 * time.Second,
			ExpectContinueTimeout: 1 * time.Second,
		}
		loadTransport = &http.Transport{
			DialContext:       (&net.Dialer{Timeout: 10 * time.Second}).DialContext,
			DisableKeepAlives: true,
		}
	}

	headers := make(map[string]string, len(opts.Headers))
	for k, v := range opts.Headers {
		headers[k] = v
	}

	return &HTTPFetcher{
		client:       &http.Client{Timeout: opts.Timeout, Transport: transport},
		loadClient:   &http.Client{Timeout: opts.Timeout, Transport: loadTransport},
		userAgent:    opts.UserAgent,
		extraHeaders: headers,
		maxBodyBytes: opts.MaxBodyBytes,
	}, nil
}

// Fetch downloads a single URL using HTTP. Non-2xx responses are returned as
// pages with the status code set, not as errors.
func (f *HTTPFetcher) Fetch(ctx context.Context, pageURL *url.URL) (*types.Page, error) {
	if pageURL == nil {
		return nil, errors.New("page URL is nil")
	}

	httpReq, err := f.buildRequest(ctx, pageURL)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	resp, err := f.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("http fetch failed: %w", err)
	}

	body, err := f.readBody(resp)
	if err != nil {
		return nil, err
	}

	finalURL := pageURL
	if resp.Request != nil && resp.Request.URL != nil {
		finalURL = resp.Request.URL
	}

	page := &types.Page{
		URL:             pageURL,
		FinalURL:        finalURL,
		Body:            body,
		ContentType:     resp.Header.Get("Content-Type"),
		StatusCode:      resp.StatusCode,
		FetchedAt:       time.Now(),
		ResponseLatency: time.Since(start),
	}

	return page, nil
}

// MeasureLoadTime performs an independent timed download of the URL and
// returns the elapsed milliseconds. The body is drained but discarded and
// the HTTP status is ignored; only transport failures count as errors.
func (f *HTTPFetcher) MeasureLoadTime(ctx context.Context, pageURL *url.URL) (int64, error) {
	if pageURL == nil {
		return 0, errors.New("page URL is nil")
	}

	httpReq, err := f.buildRequest(ctx, pageURL)
	if err != nil {
		return 0, err
	}

	start := time.Now()
	resp, err := f.loadClient.Do(httpReq)
	if err != nil {
		return 0, fmt.Errorf("load time fetch failed: %w", err)
	}
	defer resp.Body.Close()

	if _, err := io.Copy(io.Discard, io.LimitReader(resp.Body, f.maxBodyBytes+1)); err != nil {
		return 0, fmt.Errorf("drain body: %w", err)
	}
	return time.Since(start).Milliseconds(), nil
}

func (f *HTTPFetcher) buildRequest(ctx context.Context, pageURL *url.URL) (*http.Request, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}

	if f.userAgent != "" {
		httpReq.Header.Set("User-Agent", f.userAgent)
	}
	httpReq.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
	httpReq.Header.Set("Accept-Language", "en-US,en;q=0.8")
	httpReq.Header.Set("Accept-Encoding", "gzip, deflate, br")

	for k, v := range f.extraHeaders {
		httpReq.Header.Set(k, v)
	}
	return httpReq, nil
}

func (f *HTTPFetcher) readBody(resp *http.Response) ([]byte, error) {
	if resp == nil || resp.Body == nil {
		return nil, errors.New("empty response body")
	}

	reader := io.Reader(resp.Body)
	closers := []io.Closer{resp.Body}

	encoding := strings.ToLower(strings.TrimSpace(resp.Header.Get("Content-Encoding")))
	switch encoding {
	case "gzip":
		gz, err := gzip.NewReader(resp.Body)
		if err != nil {
			return nil, fmt.Errorf("gzip decode: %w", err)
		}
		reader = gz
		closers = append(closers, gz)
	case "br":
		reader = brotli.NewReader(resp.Body)
	case "deflate":
		fl := flate.NewReader(resp.Body)
		reader = fl
		closers = append(closers, fl)
	}

	defer func() {
		for i := len(closers) - 1; i >= 0; i-- {
			_ = closers[i].Close()
		}
	}()

	limited := io.LimitReader(reader, f.maxBodyBytes+1)
	body, err := io.ReadAll(limited)
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}
	if int64(len(body)) > f.maxBodyBytes {
		return nil, fmt.Errorf("response body exceeds limit of %d bytes", f.maxBodyBytes)
	}
	return body, nil
}

// Client exposes the pooled HTTP client for reuse (eg. robots.txt fetches).
func (f *HTTPFetcher) Client() *http.Client {
	if f == nil {
		return nil
	}
	return f.client
}
