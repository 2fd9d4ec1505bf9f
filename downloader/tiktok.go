package downloader

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"regexp"
	"strings"
	"time"

	"embed-bot/models"
)

var tiktokVideoIDRe = regexp.MustCompile(`^\d{8,}$`)

// TikTok rehydration status codes.
const (
	tiktokStatusOK       = 0
	tiktokStatusNotFound = 10204
	tiktokStatusPrivate  = 10222
)

// TikTokClient reads the rehydration JSON TikTok embeds in video pages.
type TikTokClient struct {
	fetcher *PageFetcher
	baseURL string
}

// NewTikTokClient creates a TikTok client.
func NewTikTokClient(fetcher *PageFetcher) *TikTokClient {
	return &TikTokClient{fetcher: fetcher}
}

func (c *TikTokClient) Integration() models.IntegrationKind {
	return models.IntegrationTikTok
}

func (c *TikTokClient) Domains() []string {
	return []string{"tiktok.com", "vm.tiktok.com"}
}

func (c *TikTokClient) Matches(u *url.URL) bool {
	return MatchDomains(u, c.Domains())
}

// Identify returns the numeric video id of /@user/video/<id> links, or the
// last path segment of short links.
func (c *TikTokClient) Identify(u *url.URL) (string, int, error) {
	segments := pathSegments(u)
	for i, s := range segments {
		if (s == "video" || s == "photo") && i+1 < len(segments) && tiktokVideoIDRe.MatchString(segments[i+1]) {
			return segments[i+1], 0, nil
		}
	}
	if len(segments) == 0 {
		return "", 0, fetchFailed(c.Integration(), ReasonNotFound, fmt.Errorf("no video id in %s", u))
	}
	return segments[len(segments)-1], 0, nil
}

type tiktokRehydration struct {
	DefaultScope struct {
		VideoDetail struct {
			StatusCode int `json:"statusCode"`
			ItemInfo   struct {
				ItemStruct tiktokItem `json:"itemStruct"`
			} `json:"itemInfo"`
		} `json:"webapp.video-detail"`
	} `json:"__DEFAULT_SCOPE__"`
}

type tiktokItem struct {
	ID         string      `json:"id"`
	Desc       string      `json:"desc"`
	CreateTime json.Number `json:"createTime"`
	Author     struct {
		UniqueID string `json:"uniqueId"`
	} `json:"author"`
	Stats struct {
		PlayCount int64 `json:"playCount"`
		DiggCount int64 `json:"diggCount"`
	} `json:"stats"`
	Video struct {
		PlayAddr     string `json:"playAddr"`
		DownloadAddr string `json:"downloadAddr"`
	} `json:"video"`
	IsContentClassified bool `json:"isContentClassified"`
}

func (c *TikTokClient) Fetch(ctx context.Context, u *url.URL) (*models.Post, error) {
	doc, err := c.fetcher.Document(ctx, c.Integration(), rebase(u, c.baseURL))
	if err != nil {
		return nil, err
	}

	raw := strings.TrimSpace(doc.Find(`script#__UNIVERSAL_DATA_FOR_REHYDRATION__`).First().Text())
	if raw == "" {
		return nil, fetchFailed(c.Integration(), ReasonUnsupported, errors.New("no rehydration data"))
	}

	var data tiktokRehydration
	if err := json.Unmarshal([]byte(raw), &data); err != nil {
		return nil, fetchFailed(c.Integration(), ReasonUnsupported, fmt.Errorf("decode rehydration data: %w", err))
	}

	detail := data.DefaultScope.VideoDetail
	switch detail.StatusCode {
	case tiktokStatusOK:
	case tiktokStatusNotFound:
		return nil, fetchFailed(c.Integration(), ReasonNotFound, nil)
	case tiktokStatusPrivate:
		return nil, fetchFailed(c.Integration(), ReasonPrivate, nil)
	default:
		return nil, fetchFailed(c.Integration(), ReasonUnsupported, fmt.Errorf("status code %d", detail.StatusCode))
	}

	item := detail.ItemInfo.ItemStruct
	mediaURL := firstNonEmpty(item.Video.PlayAddr, item.Video.DownloadAddr)
	if mediaURL == "" {
		return nil, fetchFailed(c.Integration(), ReasonUnsupported, errors.New("no playable stream"))
	}

	views, likes := item.Stats.PlayCount, item.Stats.DiggCount
	post := &models.Post{
		URL:         u.String(),
		Author:      item.Author.UniqueID,
		Description: strings.TrimSpace(item.Desc),
		Views:       &views,
		Likes:       &likes,
		Spoiler:     item.IsContentClassified,
	}
	if ts, err := item.CreateTime.Int64(); err == nil && ts > 0 {
		post.Created = time.Unix(ts, 0).UTC()
	}

	media, err := c.fetcher.Media(ctx, c.Integration(), mediaURL)
	if err != nil {
		return nil, err
	}
	post.Media = media
	return post, nil
}
