package downloader

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"time"

	"embed-bot/models"

	"github.com/PuerkitoBio/goquery"
	"go.uber.org/zap"
	"golang.org/x/net/publicsuffix"
	"golang.org/x/time/rate"
)

// DefaultMaxMediaBytes caps a single media download.
const DefaultMaxMediaBytes = 256 << 20

const userAgent = "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/131.0.0.0 Safari/537.36"

// NewHTTPClient builds the HTTP client shared by the page scrapers. Its cookie
// jar keeps the session cookies platforms set on the page request and require
// on the media request.
func NewHTTPClient(timeout time.Duration) *http.Client {
	jar, err := cookiejar.New(&cookiejar.Options{PublicSuffixList: publicsuffix.List})
	if err != nil {
		// cookiejar.New never fails with a non-nil options value.
		panic(err)
	}
	return &http.Client{Timeout: timeout, Jar: jar}
}

// PageFetcher downloads pages and media with browser-like headers, throttled
// by a shared rate limiter.
type PageFetcher struct {
	client        *http.Client
	limiter       *rate.Limiter
	logger        *zap.Logger
	maxMediaBytes int64
}

// NewPageFetcher creates a fetcher allowing rps requests per second. A
// non-positive rps disables throttling.
func NewPageFetcher(client *http.Client, rps float64, logger *zap.Logger) *PageFetcher {
	limit := rate.Inf
	if rps > 0 {
		limit = rate.Limit(rps)
	}
	return &PageFetcher{
		client:        client,
		limiter:       rate.NewLimiter(limit, 1),
		logger:        logger,
		maxMediaBytes: DefaultMaxMediaBytes,
	}
}

// Document fetches pageURL and parses it as HTML.
func (f *PageFetcher) Document(ctx context.Context, kind models.IntegrationKind, pageURL string) (*goquery.Document, error) {
	resp, err := f.get(ctx, kind, pageURL, "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return nil, fetchFailed(kind, ReasonNetwork, fmt.Errorf("parse page: %w", err))
	}
	return doc, nil
}

// Media downloads mediaURL into memory.
func (f *PageFetcher) Media(ctx context.Context, kind models.IntegrationKind, mediaURL string) ([]byte, error) {
	resp, err := f.get(ctx, kind, mediaURL, "*/*")
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	return readLimited(kind, resp.Body, f.maxMediaBytes)
}

func readLimited(kind models.IntegrationKind, r io.Reader, limit int64) ([]byte, error) {
	data, err := io.ReadAll(io.LimitReader(r, limit+1))
	if err != nil {
		return nil, fetchFailed(kind, ReasonNetwork, fmt.Errorf("read media: %w", err))
	}
	if int64(len(data)) > limit {
		return nil, fetchFailed(kind, ReasonUnsupported, fmt.Errorf("media larger than %d bytes", limit))
	}
	if len(data) == 0 {
		return nil, fetchFailed(kind, ReasonUnsupported, errors.New("empty media"))
	}
	return data, nil
}

func (f *PageFetcher) get(ctx context.Context, kind models.IntegrationKind, target, accept string) (*http.Response, error) {
	if err := f.limiter.Wait(ctx); err != nil {
		return nil, fetchFailed(kind, ReasonNetwork, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, http.NoBody)
	if err != nil {
		return nil, fetchFailed(kind, ReasonNotFound, fmt.Errorf("create request: %w", err))
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept", accept)
	req.Header.Set("Accept-Language", "en-US,en;q=0.9")
	req.Header.Set("Sec-Fetch-Mode", "navigate")
	req.Header.Set("Upgrade-Insecure-Requests", "1")

	start := time.Now()
	resp, err := f.client.Do(req)
	if err != nil {
		f.logger.Warn("HTTP request failed",
			zap.String("integration", string(kind)),
			zap.String("url", target),
			zap.Duration("duration", time.Since(start)),
			zap.Error(err))
		return nil, fetchFailed(kind, ReasonNetwork, err)
	}

	f.logger.Debug("HTTP request completed",
		zap.String("integration", string(kind)),
		zap.String("url", target),
		zap.Int("status_code", resp.StatusCode),
		zap.Duration("duration", time.Since(start)))

	if reason, ok := statusReason(resp.StatusCode); ok {
		resp.Body.Close()
		return nil, fetchFailed(kind, reason, fmt.Errorf("HTTP %d", resp.StatusCode))
	}
	return resp, nil
}

// statusReason maps a non-success status to a fetch failure reason.
func statusReason(code int) (Reason, bool) {
	switch {
	case code >= 200 && code < 300:
		return "", false
	case code == http.StatusNotFound || code == http.StatusGone:
		return ReasonNotFound, true
	case code == http.StatusUnauthorized || code == http.StatusForbidden:
		return ReasonPrivate, true
	case code == http.StatusTooManyRequests:
		return ReasonRateLimited, true
	default:
		return ReasonNetwork, true
	}
}
