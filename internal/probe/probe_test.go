package probe

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync/atomic"
	"testing"
	"time"

	"github.com/boopin/seo-url-analyzer/pkg/types"
)

func mustParse(t *testing.T, raw string) *url.URL {
	t.Helper()
	u, err := url.Parse(raw)
	if err != nil {
		t.Fatalf("parse url %q: %v", raw, err)
	}
	return u
}

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/ok", func(w http.ResponseWriter, r *http.Request) {})
	mux.HandleFunc("/missing", func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "not here", http.StatusNotFound)
	})
	mux.HandleFunc("/robots.txt", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("User-agent: *\nDisallow: /private\n"))
	})
	mux.HandleFunc("/private/page", func(w http.ResponseWriter, r *http.Request) {})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func link(raw string) types.LinkRecord {
	return types.LinkRecord{AbsoluteURL: raw, Reachability: types.ReachabilityUnknown}
}

func TestAnnotateSetsVerdicts(t *testing.T) {
	srv := newTestServer(t)

	links := []types.LinkRecord{
		link(srv.URL + "/ok"),
		link(srv.URL + "/missing"),
		link("mailto:someone@example.com"),
	}

	p := New(Options{Concurrency: 2, Timeout: 2 * time.Second})
	p.Annotate(context.Background(), links)

	if got := links[0].Reachability; got != types.ReachabilityReachable {
		t.Errorf("/ok reachability = %q", got)
	}
	if got := links[1].Reachability; got != types.ReachabilityUnreachable {
		t.Errorf("/missing reachability = %q", got)
	}
	if got := links[2].Reachability; got != types.ReachabilityUnknown {
		t.Errorf("mailto link must stay unknown, got %q", got)
	}
}

func TestAnnotateTransportErrorMeansUnreachable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	dead := srv.URL
	srv.Close()

	links := []types.LinkRecord{link(dead + "/gone")}
	p := New(Options{Timeout: time.Second})
	p.Annotate(context.Background(), links)

	if got := links[0].Reachability; got != types.ReachabilityUnreachable {
		t.Errorf("dead server reachability = %q", got)
	}
}

func TestAnnotateSharesVerdictAcrossDuplicates(t *testing.T) {
	var hits atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
	}))
	defer srv.Close()

	links := []types.LinkRecord{
		link(srv.URL + "/dup"),
		link(srv.URL + "/dup"),
		link(srv.URL + "/dup"),
	}
	p := New(Options{Timeout: time.Second})
	p.Annotate(context.Background(), links)

	if got := hits.Load(); got != 1 {
		t.Errorf("duplicate target probed %d times, want 1", got)
	}
	for i, l := range links {
		if l.Reachability != types.ReachabilityReachable {
			t.Errorf("links[%d] reachability = %q", i, l.Reachability)
		}
	}
}

func TestAnnotateHonoursLinkCap(t *testing.T) {
	srv := newTestServer(t)

	links := []types.LinkRecord{
		link(srv.URL + "/ok"),
		link(srv.URL + "/ok?n=2"),
		link(srv.URL + "/ok?n=3"),
	}
	p := New(Options{MaxLinks: 1, Timeout: time.Second})
	p.Annotate(context.Background(), links)

	if got := links[0].Reachability; got != types.ReachabilityReachable {
		t.Errorf("capped prober skipped the first target: %q", got)
	}
	for i := 1; i < len(links); i++ {
		if links[i].Reachability != types.ReachabilityUnknown {
			t.Errorf("links[%d] beyond cap must stay unknown, got %q", i, links[i].Reachability)
		}
	}
}

func TestAnnotateSkipsRobotsDisallowedTargets(t *testing.T) {
	srv := newTestServer(t)

	gate := NewRobotsGate(srv.Client(), "analyzer-test", time.Minute)
	links := []types.LinkRecord{
		link(srv.URL + "/private/page"),
		link(srv.URL + "/ok"),
	}

	p := New(Options{Timeout: time.Second, Robots: gate})
	p.Annotate(context.Background(), links)

	if got := links[0].Reachability; got != types.ReachabilityUnknown {
		t.Errorf("disallowed target must stay unknown, got %q", got)
	}
	if got := links[1].Reachability; got != types.ReachabilityReachable {
		t.Errorf("allowed target reachability = %q", got)
	}
}

func TestAnnotateCancelledContextLeavesUnknown(t *testing.T) {
	srv := newTestServer(t)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	links := []types.LinkRecord{link(srv.URL + "/ok")}
	p := New(Options{Timeout: time.Second})
	p.Annotate(ctx, links)

	if got := links[0].Reachability; got != types.ReachabilityUnknown {
		t.Errorf("cancelled probe must leave link unknown, got %q", got)
	}
}

func TestRobotsGateFailsOpenWithoutRobotsFile(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	}))
	defer srv.Close()

	gate := NewRobotsGate(srv.Client(), "analyzer-test", time.Minute)
	target := mustParse(t, srv.URL+"/anything")
	if !gate.Allowed(context.Background(), target) {
		t.Fatal("missing robots.txt must fail open")
	}
}

func TestHostLimiterThrottles(t *testing.T) {
	limiter := NewHostLimiter(RateSettings{Requests: 1, Window: 50 * time.Millisecond})

	start := time.Now()
	for i := 0; i < 3; i++ {
		if err := limiter.Wait(context.Background(), "example.com"); err != nil {
			t.Fatalf("Wait: %v", err)
		}
	}
	if elapsed := time.Since(start); elapsed < 80*time.Millisecond {
		t.Errorf("three waits at 1 req / 50ms took %s, want at least ~100ms", elapsed)
	}
}
