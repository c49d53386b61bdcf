// Package probe performs optional reachability checks against the links
// discovered on an analyzed page. Each unique target gets one lightweight
// HEAD request; verdicts fan back out to every record sharing the URL.
package probe

import (
	"context"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/boopin/seo-url-analyzer/pkg/types"
)

// Options controls prober behaviour.
type Options struct {
	UserAgent   string
	Concurrency int
	// Timeout bounds each individual link check.
	Timeout time.Duration
	// MaxLinks caps how many unique targets are probed per page.
	MaxLinks    int
	RatePerHost RateSettings
	// Robots, when non-nil, skips targets its rules disallow.
	Robots *RobotsGate
	Logger *slog.Logger
	// Transport overrides the probe transport. Intended for tests.
	Transport http.RoundTripper
}

// Prober runs bounded-concurrency existence checks. Its worker count is
// independent of the batch-level pool so enabling probes never multiplies
// page-level concurrency.
type Prober struct {
	client      *http.Client
	userAgent   string
	concurrency int
	timeout     time.Duration
	maxLinks    int
	limiter     *HostLimiter
	robots      *RobotsGate
	logger      *slog.Logger
}

// New builds a prober from options.
func New(opts Options) *Prober {
	if opts.Concurrency <= 0 {
		opts.Concurrency = 8
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 5 * time.Second
	}
	if opts.MaxLinks <= 0 {
		opts.MaxLinks = 100
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	transport := opts.Transport
	if transport == nil {
		transport = &http.Transport{
			MaxConnsPerHost:     opts.Concurrency,
			MaxIdleConnsPerHost: opts.Concurrency,
			IdleConnTimeout:     90 * time.Second,
		}
	}

	return &Prober{
		client: &http.Client{
			Timeout:   opts.Timeout,
			Transport: transport,
			CheckRedirect: func(_ *http.Request, _ []*http.Request) error {
				return http.ErrUseLastResponse
			},
		},
		userAgent:   opts.UserAgent,
		concurrency: opts.Concurrency,
		timeout:     opts.Timeout,
		maxLinks:    opts.MaxLinks,
		limiter:     NewHostLimiter(opts.RatePerHost),
		robots:      opts.Robots,
		logger:      logger,
	}
}

// Annotate probes the unique http(s) targets among links and sets each
// record's Reachability in place. Targets beyond the per-page cap, targets
// with other schemes, and robots-disallowed targets stay unknown.
func (p *Prober) Annotate(ctx context.Context, links []types.LinkRecord) {
	targets := p.collectTargets(ctx, links)
	if len(targets) == 0 {
		return
	}

	verdicts := p.probeAll(ctx, targets)

	for i := range links {
		if verdict, ok := verdicts[links[i].AbsoluteURL]; ok {
			links[i].Reachability = verdict
		}
	}
}

func (p *Prober) collectTargets(ctx context.Context, links []types.LinkRecord) []string {
	seen := make(map[string]struct{}, len(links))
	targets := make([]string, 0, len(links))
	for _, link := range links {
		if len(targets) >= p.maxLinks {
			p.logger.Debug("probe target cap reached", "cap", p.maxLinks)
			break
		}
		if _, dup := seen[link.AbsoluteURL]; dup {
			continue
		}
		seen[link.AbsoluteURL] = struct{}{}

		parsed, err := url.Parse(link.AbsoluteURL)
		if err != nil {
			continue
		}
		scheme := strings.ToLower(parsed.Scheme)
		if scheme != "http" && scheme != "https" {
			continue
		}
		if p.robots != nil && !p.robots.Allowed(ctx, parsed) {
			p.logger.Debug("probe blocked by robots", "url", link.AbsoluteURL)
			continue
		}
		targets = append(targets, link.AbsoluteURL)
	}
	return targets
}

func (p *Prober) probeAll(ctx context.Context, targets []string) map[string]types.Reachability {
	type verdict struct {
		url   string
		reach types.Reachability
	}

	jobs := make(chan string, len(targets))
	results := make(chan verdict, len(targets))

	workers := p.concurrency
	if workers > len(targets) {
		workers = len(targets)
	}

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for target := range jobs {
				results <- verdict{url: target, reach: p.checkLink(ctx, target)}
			}
		}()
	}

	for _, target := range targets {
		jobs <- target
	}
	close(jobs)

	go func() {
		wg.Wait()
		close(results)
	}()

	verdicts := make(map[string]types.Reachability, len(targets))
	for v := range results {
		if v.reach != types.ReachabilityUnknown {
			verdicts[v.url] = v.reach
		}
	}
	return verdicts
}

// checkLink issues one HEAD request under the per-link timeout. A transport
// error or a status of 400 or above means unreachable; a cancelled batch
// leaves the link unknown rather than condemning it.
func (p *Prober) checkLink(ctx context.Context, target string) types.Reachability {
	parsed, err := url.Parse(target)
	if err != nil {
		return types.ReachabilityUnreachable
	}

	if err := p.limiter.Wait(ctx, parsed.Hostname()); err != nil {
		return types.ReachabilityUnknown
	}

	linkCtx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(linkCtx, http.MethodHead, target, nil)
	if err != nil {
		return types.ReachabilityUnreachable
	}
	if p.userAgent != "" {
		req.Header.Set("User-Agent", p.userAgent)
	}

	resp, err := p.client.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return types.ReachabilityUnknown
		}
		return types.ReachabilityUnreachable
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return types.ReachabilityUnreachable
	}
	return types.ReachabilityReachable
}
