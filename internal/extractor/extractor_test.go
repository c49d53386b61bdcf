package extractor

import (
	"net/url"
	"strings"
	"testing"

	"github.com/boopin/seo-url-analyzer/pkg/types"
)

func mustParseURL(t *testing.T, raw string) *url.URL {
	t.Helper()
	u, err := url.Parse(raw)
	if err != nil {
		t.Fatalf("parse url %q: %v", raw, err)
	}
	return u
}

func extract(t *testing.T, html, base string) *Extraction {
	t.Helper()
	doc, err := Parse([]byte(html))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	return Extract(doc, mustParseURL(t, base))
}

func TestExtractTitleAndMeta(t *testing.T) {
	cases := []struct {
		name      string
		html      string
		wantTitle string
		wantDesc  string
	}{
		{
			name:      "title trimmed and first wins",
			html:      `<html><head><title>  First  </title><title>Second</title></head></html>`,
			wantTitle: "First",
		},
		{
			name: "meta description case-insensitive",
			html: `<html><head><meta NAME="Description" content="About the page"></head></html>`,

			wantDesc: "About the page",
		},
		{
			name:     "meta description trimmed",
			html:     `<html><head><meta name="description" content="  padded  "></head></html>`,
			wantDesc: "padded",
		},
		{
			name: "absent title and description",
			html: `<html><head></head><body></body></html>`,
		},
		{
			name: "unrelated meta tags ignored",
			html: `<html><head><meta name="keywords" content="a,b"><meta property="og:description" content="og"></head></html>`,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			ex := extract(t, tc.html, "https://example.com/")
			if ex.Title != tc.wantTitle {
				t.Errorf("title = %q, want %q", ex.Title, tc.wantTitle)
			}
			if ex.MetaDescription != tc.wantDesc {
				t.Errorf("meta description = %q, want %q", ex.MetaDescription, tc.wantDesc)
			}
		})
	}
}

func TestExtractHeadingsInDocumentOrder(t *testing.T) {
	html := `<html><body>
		<h2> Second level first </h2>
		<h1>Main</h1>
		<h3>Deep</h3>
		<h2>Another</h2>
		<h6>Tiny</h6>
	</body></html>`

	ex := extract(t, html, "https://example.com/")

	want := []types.HeadingRecord{
		{Level: 2, Text: "Second level first"},
		{Level: 1, Text: "Main"},
		{Level: 3, Text: "Deep"},
		{Level: 2, Text: "Another"},
		{Level: 6, Text: "Tiny"},
	}
	if len(ex.Headings) != len(want) {
		t.Fatalf("got %d headings, want %d", len(ex.Headings), len(want))
	}
	for i, h := range want {
		if ex.Headings[i] != h {
			t.Errorf("heading %d = %+v, want %+v", i, ex.Headings[i], h)
		}
	}

	counts := types.HeadingCountsOf(ex.Headings)
	if counts != [6]int{1, 2, 1, 0, 0, 1} {
		t.Errorf("derived counts = %v", counts)
	}
}

func TestExtractImagesMissingAlt(t *testing.T) {
	html := `<html><body>
		<img src="a.png">
		<img src="b.png" alt="">
		<img src="c.png" alt="  ">
		<img src="d.png" alt="described">
	</body></html>`

	ex := extract(t, html, "https://example.com/")
	if ex.ImageCount != 4 {
		t.Errorf("image count = %d, want 4", ex.ImageCount)
	}
	// Absent and empty alt are missing; whitespace-only still counts as set.
	if ex.ImagesMissingAlt != 2 {
		t.Errorf("missing alt = %d, want 2", ex.ImagesMissingAlt)
	}
}

func TestExtractLinkClassification(t *testing.T) {
	html := `<html><body>
		<a href="/about">About</a>
		<a href="https://EXAMPLE.com/team">Team</a>
		<a href="https://sub.example.com/">Subdomain</a>
		<a href="https://example.com:8443/">Alt port</a>
		<a href="https://other.org/page">Elsewhere</a>
		<a href="mailto:hi@example.com">Mail</a>
		<a href="#section">Jump</a>
		<a href="https://example.com/icon"><img src="i.png"></a>
	</body></html>`

	ex := extract(t, html, "https://example.com/index.html")

	byURL := map[string]types.LinkRecord{}
	for _, l := range ex.Links {
		byURL[l.AbsoluteURL] = l
	}

	if len(ex.Links) != 8 {
		t.Fatalf("got %d links, want 8", len(ex.Links))
	}

	rel, ok := byURL["https://example.com/about"]
	if !ok || !rel.Internal {
		t.Errorf("relative link should resolve internal, got %+v", rel)
	}
	if rel.AnchorText != "About" {
		t.Errorf("anchor text = %q", rel.AnchorText)
	}

	if l := byURL["https://EXAMPLE.com/team"]; !l.Internal {
		t.Error("host comparison should be case-insensitive")
	}
	if l := byURL["https://sub.example.com/"]; l.Internal {
		t.Error("subdomains must not fold into the page host")
	}
	if l := byURL["https://example.com:8443/"]; l.Internal {
		t.Error("a differing port makes the authority external")
	}
	if l := byURL["https://other.org/page"]; l.Internal {
		t.Error("foreign host classified internal")
	}
	if l := byURL["mailto:hi@example.com"]; l.Internal {
		t.Error("mailto has no host and is external")
	}
	if l, ok := byURL["https://example.com/index.html#section"]; !ok || !l.Internal {
		t.Errorf("fragment link should resolve onto the page itself, got %+v", l)
	}
	if l := byURL["https://example.com/icon"]; l.AnchorText != "" {
		t.Errorf("image-only anchor should keep empty text, got %q", l.AnchorText)
	}

	for _, l := range ex.Links {
		if l.Reachability != types.ReachabilityUnknown {
			t.Errorf("link %s reachability = %q before probing", l.AbsoluteURL, l.Reachability)
		}
	}
}

func TestExtractSkipsUnparsableHrefs(t *testing.T) {
	html := `<html><body><a href="https://bad.example.com/%zz">broken</a><a href="/ok">fine</a></body></html>`
	ex := extract(t, html, "https://example.com/")
	if len(ex.Links) != 1 {
		t.Fatalf("got %d links, want 1", len(ex.Links))
	}
	if ex.Links[0].AbsoluteURL != "https://example.com/ok" {
		t.Errorf("surviving link = %q", ex.Links[0].AbsoluteURL)
	}
}

func TestExtractViewport(t *testing.T) {
	with := `<html><head><meta name="viewport" content="width=device-width"></head></html>`
	without := `<html><head><meta name="robots" content="index"></head></html>`

	if !extract(t, with, "https://example.com/").HasViewport {
		t.Error("viewport meta not detected")
	}
	if extract(t, without, "https://example.com/").HasViewport {
		t.Error("viewport reported without the meta tag")
	}
}

func TestAnchorTextsFilterShortTexts(t *testing.T) {
	html := `<html><body>
		<a href="/a">navigation</a>
		<a href="/b">x</a>
		<a href="/c">  </a>
		<a href="/d">ok</a>
	</body></html>`

	doc, err := Parse([]byte(html))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	got := AnchorTexts(doc)
	want := []string{"navigation", "ok"}
	if len(got) != len(want) || got[0] != want[0] || got[1] != want[1] {
		t.Errorf("anchor texts = %v, want %v", got, want)
	}
}

func TestExtractExamplePageCounts(t *testing.T) {
	desc := strings.Repeat("d", 80)
	html := `<html><head>
		<title>Example</title>
		<meta name="description" content="` + desc + `">
	</head><body>
		<h1>One</h1>
		<h2>Two A</h2>
		<h2>Two B</h2>
		<a href="/first">1</a>
		<a href="/second">2</a>
		<a href="https://example.com/third">3</a>
		<a href="https://other.org/a">ext 1</a>
		<a href="https://another.net/b">ext 2</a>
	</body></html>`

	ex := extract(t, html, "https://example.com/")

	counts := types.HeadingCountsOf(ex.Headings)
	if counts[0] != 1 || counts[1] != 2 {
		t.Errorf("heading counts = %v, want h1=1 h2=2", counts)
	}
	if len(ex.MetaDescription) != 80 {
		t.Errorf("meta description length = %d, want 80", len(ex.MetaDescription))
	}

	var internal, external int
	for _, l := range ex.Links {
		if l.Internal {
			internal++
		} else {
			external++
		}
	}
	if internal != 3 || external != 2 {
		t.Errorf("internal=%d external=%d, want 3 and 2", internal, external)
	}
}
