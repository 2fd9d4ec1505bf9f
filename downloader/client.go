// Package downloader resolves social media URLs to platform clients and
// fetches posts from them.
package downloader

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"

	"embed-bot/models"
)

// ErrDispatchMiss is returned when no registered client owns a URL. Callers
// treat it as "ignore this message".
var ErrDispatchMiss = errors.New("no client for url")

// Client fetches posts from one platform.
type Client interface {
	// Integration is the platform this client serves.
	Integration() models.IntegrationKind
	// Domains lists host patterns, optionally with a path prefix
	// ("youtube.com/shorts").
	Domains() []string
	// Matches reports whether u belongs to this client.
	Matches(u *url.URL) bool
	// Identify extracts the platform identifier and media index from u.
	Identify(u *url.URL) (uid string, index int, err error)
	// Fetch downloads metadata and media. Failures are *FetchError and are
	// never retried here.
	Fetch(ctx context.Context, u *url.URL) (*models.Post, error)
}

// Reason classifies a fetch failure.
type Reason string

const (
	ReasonNotFound    Reason = "not found"
	ReasonPrivate     Reason = "private"
	ReasonUnsupported Reason = "unsupported format"
	ReasonRateLimited Reason = "rate limited"
	ReasonNetwork     Reason = "network error"
)

// FetchError is returned by Client.Fetch.
type FetchError struct {
	Integration models.IntegrationKind
	Reason      Reason
	Err         error
}

func (e *FetchError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s fetch failed (%s): %v", e.Integration, e.Reason, e.Err)
	}
	return fmt.Sprintf("%s fetch failed (%s)", e.Integration, e.Reason)
}

func (e *FetchError) Unwrap() error {
	return e.Err
}

// IsFetchError reports whether err is a *FetchError and returns it.
func IsFetchError(err error) (*FetchError, bool) {
	var fetchErr *FetchError
	if errors.As(err, &fetchErr) {
		return fetchErr, true
	}
	return nil, false
}

func fetchFailed(kind models.IntegrationKind, reason Reason, err error) *FetchError {
	return &FetchError{Integration: kind, Reason: reason, Err: err}
}

// pattern is a parsed domain pattern: a host with an optional path prefix.
type pattern struct {
	host       string
	pathPrefix string
}

func parsePattern(raw string) pattern {
	host, path, _ := strings.Cut(strings.ToLower(raw), "/")
	p := pattern{host: host}
	if path != "" {
		p.pathPrefix = "/" + strings.Trim(path, "/")
	}
	return p
}

// match accepts the pattern host itself and any of its subdomains.
func (p pattern) match(u *url.URL) bool {
	host := strings.ToLower(u.Hostname())
	if host != p.host && !strings.HasSuffix(host, "."+p.host) {
		return false
	}
	if p.pathPrefix == "" {
		return true
	}
	path := u.EscapedPath()
	return path == p.pathPrefix || strings.HasPrefix(path, p.pathPrefix+"/")
}

// MatchDomains reports whether u matches any of the domain patterns.
func MatchDomains(u *url.URL, domains []string) bool {
	for _, d := range domains {
		if parsePattern(d).match(u) {
			return true
		}
	}
	return false
}

// pathSegments returns the non-empty segments of u's path.
func pathSegments(u *url.URL) []string {
	var segments []string
	for _, s := range strings.Split(u.Path, "/") {
		if s != "" {
			segments = append(segments, s)
		}
	}
	return segments
}

// rebase points u's path at base, or returns u unchanged when base is empty.
func rebase(u *url.URL, base string) string {
	if base == "" {
		return u.String()
	}
	return strings.TrimSuffix(base, "/") + u.EscapedPath()
}
