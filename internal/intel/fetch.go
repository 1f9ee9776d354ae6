package intel

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
)

const (
	MaxHeadlines = 10
	fetchTimeout = 15 * time.Second
	userAgent    = "TalentMarket/1.0 (+engine)"
)

var ErrNoSource = errors.New("no news source configured")

// UpstreamError is a non-2xx answer from the news source.
type UpstreamError struct {
	URL    string
	Status int
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("news source %s: status %d", e.URL, e.Status)
}

// Fetcher downloads a news search page and pulls headlines out of it.
type Fetcher struct {
	Template string // contains one %s for the escaped company name
	Selector string

	hc      *http.Client
	limiter *HostLimiter
}

func NewFetcher(template, selector string, limiter *HostLimiter) *Fetcher {
	return &Fetcher{
		Template: template,
		Selector: selector,
		hc:       &http.Client{Timeout: fetchTimeout},
		limiter:  limiter,
	}
}

func (f *Fetcher) URLFor(company string) string {
	return fmt.Sprintf(f.Template, url.QueryEscape(strings.TrimSpace(company)))
}

// Headlines fetches the news page for company and returns up to
// MaxHeadlines distinct headline texts along with the URL fetched.
func (f *Fetcher) Headlines(ctx context.Context, company string) ([]string, string, error) {
	if f.Template == "" {
		return nil, "", ErrNoSource
	}
	u := f.URLFor(company)
	if f.limiter != nil {
		if err := f.limiter.WaitURL(ctx, u); err != nil {
			return nil, u, err
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, u, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)

	res, err := f.hc.Do(req)
	if err != nil {
		return nil, u, fmt.Errorf("fetch %s: %w", u, err)
	}
	defer res.Body.Close()
	if res.StatusCode < 200 || res.StatusCode > 299 {
		_, _ = io.Copy(io.Discard, res.Body)
		return nil, u, &UpstreamError{URL: u, Status: res.StatusCode}
	}

	doc, err := goquery.NewDocumentFromReader(res.Body)
	if err != nil {
		return nil, u, fmt.Errorf("parse news html: %w", err)
	}
	return ExtractHeadlines(doc, f.Selector), u, nil
}

// ExtractHeadlines collects the whitespace-collapsed text of nodes matching
// selector, skipping empties and duplicates.
func ExtractHeadlines(doc *goquery.Document, selector string) []string {
	seen := map[string]bool{}
	var out []string
	doc.Find(selector).EachWithBreak(func(_ int, s *goquery.Selection) bool {
		text := strings.Join(strings.Fields(s.Text()), " ")
		if text == "" || seen[text] {
			return true
		}
		seen[text] = true
		out = append(out, text)
		return len(out) < MaxHeadlines
	})
	return out
}
