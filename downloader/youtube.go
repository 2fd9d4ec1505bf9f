package downloader

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"embed-bot/models"

	"github.com/kkdai/youtube/v2"
)

// youtubeAPI is the part of *youtube.Client the Shorts client uses.
type youtubeAPI interface {
	GetVideoContext(ctx context.Context, id string) (*youtube.Video, error)
	GetStreamContext(ctx context.Context, video *youtube.Video, format *youtube.Format) (io.ReadCloser, int64, error)
}

// YouTubeClient downloads YouTube Shorts.
type YouTubeClient struct {
	api           youtubeAPI
	maxMediaBytes int64
}

// NewYouTubeClient creates a Shorts client on top of httpClient.
func NewYouTubeClient(httpClient *http.Client) *YouTubeClient {
	return &YouTubeClient{
		api:           &youtube.Client{HTTPClient: httpClient},
		maxMediaBytes: DefaultMaxMediaBytes,
	}
}

func (c *YouTubeClient) Integration() models.IntegrationKind {
	return models.IntegrationYouTube
}

func (c *YouTubeClient) Domains() []string {
	return []string{"youtube.com/shorts"}
}

func (c *YouTubeClient) Matches(u *url.URL) bool {
	return MatchDomains(u, c.Domains())
}

// Identify returns the video id following /shorts/.
func (c *YouTubeClient) Identify(u *url.URL) (string, int, error) {
	segments := pathSegments(u)
	if len(segments) < 2 || segments[0] != "shorts" {
		return "", 0, fetchFailed(c.Integration(), ReasonNotFound, fmt.Errorf("no video id in %s", u))
	}
	return segments[1], 0, nil
}

func (c *YouTubeClient) Fetch(ctx context.Context, u *url.URL) (*models.Post, error) {
	id, _, err := c.Identify(u)
	if err != nil {
		return nil, err
	}

	video, err := c.api.GetVideoContext(ctx, id)
	if err != nil {
		return nil, c.classify(err)
	}

	format := bestProgressiveMP4(video.Formats)
	if format == nil {
		return nil, fetchFailed(c.Integration(), ReasonUnsupported, errors.New("no progressive mp4 stream"))
	}

	stream, _, err := c.api.GetStreamContext(ctx, video, format)
	if err != nil {
		return nil, c.classify(err)
	}
	defer stream.Close()

	media, err := readLimited(c.Integration(), stream, c.maxMediaBytes)
	if err != nil {
		return nil, err
	}

	views := int64(video.Views)
	return &models.Post{
		URL:         u.String(),
		Author:      video.Author,
		Description: video.Title,
		Views:       &views,
		Created:     video.PublishDate,
		Media:       media,
	}, nil
}

func (c *YouTubeClient) classify(err error) error {
	switch {
	case errors.Is(err, youtube.ErrVideoPrivate), errors.Is(err, youtube.ErrLoginRequired):
		return fetchFailed(c.Integration(), ReasonPrivate, err)
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return fetchFailed(c.Integration(), ReasonNetwork, err)
	case strings.Contains(err.Error(), "429"):
		return fetchFailed(c.Integration(), ReasonRateLimited, err)
	default:
		return fetchFailed(c.Integration(), ReasonUnsupported, err)
	}
}

// bestProgressiveMP4 picks the highest resolution mp4 format carrying both
// audio and video.
func bestProgressiveMP4(formats youtube.FormatList) *youtube.Format {
	var best *youtube.Format
	for i := range formats {
		f := &formats[i]
		if f.AudioChannels == 0 || !strings.HasPrefix(f.MimeType, "video/mp4") {
			continue
		}
		if best == nil || f.Height > best.Height {
			best = f
		}
	}
	return best
}
