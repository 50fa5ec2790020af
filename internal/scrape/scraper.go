package scrape

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"

	"parcellink/internal/config"
)

// ErrNoDetailsLink is returned when the search page has no link to a
// details page for the parcel.
var ErrNoDetailsLink = errors.New("no details link found")

// StatusError is a non-200 response from the assessing site.
type StatusError struct {
	URL  string
	Code int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("GET %s: %d %s", e.URL, e.Code, http.StatusText(e.Code))
}

// Scraper fetches parcel details pages from the city assessing site. All
// requests share one rate limiter.
type Scraper struct {
	base       *url.URL
	client     *http.Client
	limiter    *rate.Limiter
	userAgent  string
	maxRetries int
	backoff    time.Duration
	log        logrus.FieldLogger
}

// New returns a Scraper for cfg. A zero delay disables pacing.
func New(cfg config.ScrapeConfig, log logrus.FieldLogger) (*Scraper, error) {
	base, err := url.Parse(cfg.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid scrape base url %q: %w", cfg.BaseURL, err)
	}

	limit := rate.Inf
	if cfg.Delay > 0 {
		limit = rate.Every(cfg.Delay)
	}
	backoff := cfg.Delay
	if backoff <= 0 {
		backoff = 100 * time.Millisecond
	}

	return &Scraper{
		base:       base,
		client:     &http.Client{Timeout: cfg.Timeout},
		limiter:    rate.NewLimiter(limit, 1),
		userAgent:  cfg.UserAgent,
		maxRetries: cfg.MaxRetries,
		backoff:    backoff,
		log:        log,
	}, nil
}

// Fetch looks the parcel up on the search page, follows the details link
// and parses the details page.
func (s *Scraper) Fetch(ctx context.Context, parcelID string) (*Details, error) {
	search := *s.base
	q := search.Query()
	q.Set("parcel", parcelID)
	search.RawQuery = q.Encode()

	doc, err := s.get(ctx, search.String())
	if err != nil {
		return nil, err
	}

	var href string
	doc.Find("a[href]").EachWithBreak(func(_ int, a *goquery.Selection) bool {
		if h, _ := a.Attr("href"); strings.Contains(h, "pid=") {
			href = h
			return false
		}
		return true
	})
	if href == "" {
		return nil, ErrNoDetailsLink
	}

	ref, err := url.Parse(href)
	if err != nil {
		return nil, fmt.Errorf("invalid details link %q: %w", href, err)
	}
	doc, err = s.get(ctx, s.base.ResolveReference(ref).String())
	if err != nil {
		return nil, err
	}
	return parseDetails(doc), nil
}

// get fetches and parses one page, retrying transient failures with
// doubling backoff.
func (s *Scraper) get(ctx context.Context, target string) (*goquery.Document, error) {
	backoff := s.backoff
	for attempt := 0; ; attempt++ {
		doc, err := s.getOnce(ctx, target)
		if err == nil {
			return doc, nil
		}
		if !retryable(err) || attempt >= s.maxRetries || ctx.Err() != nil {
			return nil, err
		}

		s.log.WithError(err).Debugf("Retrying %s in %v (%d/%d)", target, backoff, attempt+1, s.maxRetries)
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(backoff):
		}
		backoff *= 2
	}
}

func (s *Scraper) getOnce(ctx context.Context, target string) (*goquery.Document, error) {
	if err := s.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, err
	}
	if s.userAgent != "" {
		req.Header.Set("User-Agent", s.userAgent)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, &StatusError{URL: target, Code: resp.StatusCode}
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", target, err)
	}
	return doc, nil
}

// retryable reports whether err is worth another attempt: timeouts, 429
// and 5xx responses. Other 4xx responses are final.
func retryable(err error) bool {
	var se *StatusError
	if errors.As(err, &se) {
		return se.Code == http.StatusTooManyRequests || se.Code >= 500
	}
	if errors.Is(err, context.Canceled) {
		return false
	}
	var ne net.Error
	if errors.As(err, &ne) && ne.Timeout() {
		return true
	}
	return errors.Is(err, context.DeadlineExceeded)
}
