package downloader

import (
	"context"
	"fmt"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"time"

	"embed-bot/models"

	"github.com/PuerkitoBio/goquery"
)

var (
	instagramLikesRe   = regexp.MustCompile(`^([\d.,]+[KkMm]?) likes?`)
	instagramAuthorRe  = regexp.MustCompile(` - ([A-Za-z0-9._]+) on ([A-Z][a-z]+ \d{1,2}, \d{4})`)
	instagramCaptionRe = regexp.MustCompile(`(?s):\s*"(.*)"\s*\.?\s*$`)
)

// InstagramClient scrapes the OpenGraph tags of public post and reel pages.
type InstagramClient struct {
	fetcher *PageFetcher
	baseURL string
}

// NewInstagramClient creates an Instagram client.
func NewInstagramClient(fetcher *PageFetcher) *InstagramClient {
	return &InstagramClient{fetcher: fetcher, baseURL: "https://www.instagram.com"}
}

func (c *InstagramClient) Integration() models.IntegrationKind {
	return models.IntegrationInstagram
}

func (c *InstagramClient) Domains() []string {
	return []string{"instagram.com", "ddinstagram.com"}
}

func (c *InstagramClient) Matches(u *url.URL) bool {
	return MatchDomains(u, c.Domains())
}

// Identify uses the shortcode, the last path segment.
func (c *InstagramClient) Identify(u *url.URL) (string, int, error) {
	segments := pathSegments(u)
	if len(segments) == 0 {
		return "", 0, fetchFailed(c.Integration(), ReasonNotFound, fmt.Errorf("no shortcode in %s", u))
	}
	return segments[len(segments)-1], 0, nil
}

func (c *InstagramClient) Fetch(ctx context.Context, u *url.URL) (*models.Post, error) {
	shortcode, _, err := c.Identify(u)
	if err != nil {
		return nil, err
	}

	page := &url.URL{Path: "/p/" + shortcode + "/"}
	doc, err := c.fetcher.Document(ctx, c.Integration(), rebase(page, c.baseURL))
	if err != nil {
		return nil, err
	}

	og := openGraph(doc)
	if len(og) == 0 {
		// Login walls carry no OpenGraph tags.
		return nil, fetchFailed(c.Integration(), ReasonPrivate, nil)
	}

	mediaURL := firstNonEmpty(og["og:video:secure_url"], og["og:video"], og["og:image"])
	if mediaURL == "" {
		return nil, fetchFailed(c.Integration(), ReasonUnsupported, fmt.Errorf("no media on %s", shortcode))
	}

	post := &models.Post{URL: u.String()}
	parseInstagramDescription(post, og["og:description"])
	if post.Description == "" {
		post.Description = captionOf(og["og:title"])
	}

	media, err := c.fetcher.Media(ctx, c.Integration(), mediaURL)
	if err != nil {
		return nil, err
	}
	post.Media = media
	return post, nil
}

// parseInstagramDescription reads `1,234 likes, 5 comments - user on March 1, 2024: "caption"`.
func parseInstagramDescription(post *models.Post, description string) {
	if m := instagramLikesRe.FindStringSubmatch(description); m != nil {
		if likes, ok := parseCount(m[1]); ok {
			post.Likes = &likes
		}
	}
	if m := instagramAuthorRe.FindStringSubmatch(description); m != nil {
		post.Author = m[1]
		if created, err := time.Parse("January 2, 2006", m[2]); err == nil {
			post.Created = created
		}
	}
	if m := instagramCaptionRe.FindStringSubmatch(description); m != nil {
		post.Description = strings.TrimSpace(m[1])
	}
}

func captionOf(s string) string {
	if m := instagramCaptionRe.FindStringSubmatch(s); m != nil {
		return strings.TrimSpace(m[1])
	}
	return strings.TrimSpace(s)
}

// parseCount parses "1,234", "1.2K" and "3M".
func parseCount(s string) (int64, bool) {
	s = strings.ReplaceAll(strings.TrimSpace(s), ",", "")
	multiplier := 1.0
	switch {
	case strings.HasSuffix(s, "K"), strings.HasSuffix(s, "k"):
		multiplier, s = 1e3, s[:len(s)-1]
	case strings.HasSuffix(s, "M"), strings.HasSuffix(s, "m"):
		multiplier, s = 1e6, s[:len(s)-1]
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, false
	}
	return int64(f * multiplier), true
}

// openGraph collects the og:* meta properties of a page. The first value of a
// repeated property wins.
func openGraph(doc *goquery.Document) map[string]string {
	og := make(map[string]string)
	doc.Find(`meta[property^="og:"]`).Each(func(_ int, s *goquery.Selection) {
		property, _ := s.Attr("property")
		content, ok := s.Attr("content")
		if !ok {
			return
		}
		if _, seen := og[property]; !seen {
			og[property] = strings.TrimSpace(content)
		}
	})
	return og
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
