package batch

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/boopin/seo-url-analyzer/internal/config"
)

func testConfig() config.Config {
	cfg := config.Default()
	cfg.TLS.Enabled = false
	cfg.Analyze.DetectLanguage = false
	cfg.Fetch.Timeout = config.DurationFrom(5 * time.Second)
	return cfg
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestEngine(t *testing.T, cfg config.Config, opts ...Option) *Engine {
	t.Helper()
	opts = append(opts, WithLogger(discardLogger()))
	engine, err := NewEngine(cfg, opts...)
	if err != nil {
		t.Fatalf("NewEngine: %v", err)
	}
	t.Cleanup(func() { _ = engine.Close() })
	return engine
}

// pageServer serves a small page whose title carries the request path so
// tests can verify which result landed in which slot.
func pageServer(t *testing.T) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.HasPrefix(r.URL.Path, "/slow") {
			time.Sleep(100 * time.Millisecond)
		}
		fmt.Fprintf(w, "<html><head><title>%s</title></head><body><p>content for %s</p></body></html>", r.URL.Path, r.URL.Path)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestRunPreservesInputOrder(t *testing.T) {
	srv := pageServer(t)

	urls := []string{
		srv.URL + "/slow-first",
		srv.URL + "/second",
		srv.URL + "/slow-third",
		srv.URL + "/fourth",
	}

	engine := newTestEngine(t, testConfig())
	report, err := engine.Run(context.Background(), urls)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(report.Results) != len(urls) {
		t.Fatalf("results = %d, want %d", len(report.Results), len(urls))
	}
	for i, u := range urls {
		if report.Results[i].URL != u {
			t.Errorf("results[%d].URL = %q, want %q", i, report.Results[i].URL, u)
		}
	}
	if report.RunID == "" {
		t.Error("run id missing")
	}
}

func TestRunTruncatesOversizedBatches(t *testing.T) {
	srv := pageServer(t)

	urls := make([]string, 12)
	for i := range urls {
		urls[i] = fmt.Sprintf("%s/page-%d", srv.URL, i)
	}

	engine := newTestEngine(t, testConfig())
	report, err := engine.Run(context.Background(), urls)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(report.Results) != 10 {
		t.Fatalf("results = %d, want 10", len(report.Results))
	}
	if report.Truncated != 2 {
		t.Errorf("truncated = %d, want 2", report.Truncated)
	}
	if report.Requested != 12 {
		t.Errorf("requested = %d, want 12", report.Requested)
	}
	for _, result := range report.Results {
		if strings.HasSuffix(result.URL, "/page-10") || strings.HasSuffix(result.URL, "/page-11") {
			t.Errorf("dropped URL %q leaked into results", result.URL)
		}
	}
}

func TestRunIsolatesFailures(t *testing.T) {
	srv := pageServer(t)

	dead := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	deadURL := dead.URL
	dead.Close()

	urls := []string{
		srv.URL + "/ok-one",
		deadURL + "/unreachable",
		srv.URL + "/ok-two",
	}

	engine := newTestEngine(t, testConfig())
	report, err := engine.Run(context.Background(), urls)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	if report.Results[0].Failed() || report.Results[2].Failed() {
		t.Error("healthy URLs must not be affected by a sibling failure")
	}
	failed := report.Results[1]
	if !strings.HasPrefix(failed.Status, "Error") {
		t.Errorf("status = %q, want Error prefix", failed.Status)
	}
	if failed.LoadTimeMS != nil || failed.WordCount != 0 || len(failed.Keywords) != 0 {
		t.Error("failed record leaked partial data")
	}
}

func TestRunInvalidURLConsumesItsSlot(t *testing.T) {
	srv := pageServer(t)

	urls := []string{srv.URL + "/fine", "https://"}
	engine := newTestEngine(t, testConfig())
	report, err := engine.Run(context.Background(), urls)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(report.Results) != 2 {
		t.Fatalf("results = %d, want 2", len(report.Results))
	}
	if report.Results[0].Failed() {
		t.Error("valid URL failed")
	}
	if !report.Results[1].Failed() {
		t.Error("invalid URL must yield an error record")
	}
}

func TestRunReportsMonotonicProgress(t *testing.T) {
	srv := pageServer(t)

	var mu sync.Mutex
	var calls [][2]int
	progress := func(completed, total int) {
		mu.Lock()
		calls = append(calls, [2]int{completed, total})
		mu.Unlock()
	}

	urls := []string{srv.URL + "/a", srv.URL + "/b", srv.URL + "/c"}
	engine := newTestEngine(t, testConfig(), WithProgress(progress))
	if _, err := engine.Run(context.Background(), urls); err != nil {
		t.Fatalf("Run: %v", err)
	}

	mu.Lock()
	defer mu.Unlock()
	if len(calls) != len(urls) {
		t.Fatalf("progress calls = %d, want %d", len(calls), len(urls))
	}
	for i, call := range calls {
		if call[0] != i+1 {
			t.Errorf("call %d completed = %d, want %d", i, call[0], i+1)
		}
		if call[1] != len(urls) {
			t.Errorf("call %d total = %d, want %d", i, call[1], len(urls))
		}
	}
}

func TestRunProgressDeliveryStaysOrderedUnderConcurrency(t *testing.T) {
	srv := pageServer(t)

	// A slow observer of the first completion must not see the second
	// completion overtake it.
	var mu sync.Mutex
	var seen []int
	progress := func(completed, _ int) {
		if completed == 1 {
			time.Sleep(50 * time.Millisecond)
		}
		mu.Lock()
		seen = append(seen, completed)
		mu.Unlock()
	}

	cfg := testConfig()
	cfg.Batch.Concurrency = 2

	urls := []string{srv.URL + "/a", srv.URL + "/b"}
	engine := newTestEngine(t, cfg, WithProgress(progress))
	if _, err := engine.Run(context.Background(), urls); err != nil {
		t.Fatalf("Run: %v", err)
	}

	mu.Lock()
	defer mu.Unlock()
	if len(seen) != 2 || seen[0] != 1 || seen[1] != 2 {
		t.Fatalf("progress delivery order = %v, want [1 2]", seen)
	}
}

func TestRunCancelledBatchStillYieldsOneRecordPerURL(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()
	defer close(release)

	cfg := testConfig()
	cfg.Batch.Concurrency = 1

	urls := []string{srv.URL + "/one", srv.URL + "/two", srv.URL + "/three"}

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(50 * time.Millisecond)
		cancel()
	}()

	engine := newTestEngine(t, cfg)
	report, err := engine.Run(ctx, urls)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(report.Results) != len(urls) {
		t.Fatalf("results = %d, want %d", len(report.Results), len(urls))
	}
	for i, result := range report.Results {
		if result.Status == "" {
			t.Errorf("results[%d] has no status", i)
		}
		if !result.Failed() {
			t.Errorf("results[%d] should have failed under cancellation", i)
		}
	}
}

func TestEmptyBatch(t *testing.T) {
	engine := newTestEngine(t, testConfig())
	report, err := engine.Run(context.Background(), nil)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(report.Results) != 0 {
		t.Errorf("results = %d, want 0", len(report.Results))
	}
	if report.Requested != 0 || report.Truncated != 0 {
		t.Errorf("requested = %d truncated = %d", report.Requested, report.Truncated)
	}
}
