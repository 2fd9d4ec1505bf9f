package downloader

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

const instagramPage = `<!DOCTYPE html>
<html><head>
<meta property="og:title" content="Some One on Instagram: &quot;fallback caption&quot;">
<meta property="og:description" content="1,234 likes, 5 comments - some.one on March 1, 2024: &quot;Sunset over the bay&quot;">
<meta property="og:video" content="%s/media.mp4">
<meta property="og:image" content="%s/thumb.jpg">
</head><body></body></html>`

func newInstagramServer(t *testing.T, page string) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	var srv *httptest.Server
	mux.HandleFunc("/p/Cabc123/", func(w http.ResponseWriter, r *http.Request) {
		assert.Contains(t, r.Header.Get("User-Agent"), "Mozilla")
		fmt.Fprintf(w, page, srv.URL, srv.URL)
	})
	mux.HandleFunc("/media.mp4", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("video-bytes"))
	})
	srv = httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func newTestInstagramClient(t *testing.T, srv *httptest.Server) *InstagramClient {
	c := NewInstagramClient(NewPageFetcher(srv.Client(), 0, zaptest.NewLogger(t)))
	c.baseURL = srv.URL
	return c
}

func TestInstagramFetch(t *testing.T) {
	srv := newInstagramServer(t, instagramPage)
	c := newTestInstagramClient(t, srv)

	u, err := url.Parse("https://www.instagram.com/reel/Cabc123/?igsh=xyz")
	require.NoError(t, err)

	post, err := c.Fetch(context.Background(), u)
	require.NoError(t, err)

	assert.Equal(t, u.String(), post.URL)
	assert.Equal(t, "some.one", post.Author)
	assert.Equal(t, "Sunset over the bay", post.Description)
	require.NotNil(t, post.Likes)
	assert.Equal(t, int64(1234), *post.Likes)
	assert.Nil(t, post.Views)
	assert.Equal(t, time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC), post.Created)
	assert.Equal(t, []byte("video-bytes"), post.Media)
	assert.False(t, post.Persisted())
}

func TestInstagramFetchLoginWallIsPrivate(t *testing.T) {
	srv := newInstagramServer(t, `<html><head><title>Login %s %s</title></head></html>`)
	c := newTestInstagramClient(t, srv)

	u, _ := url.Parse("https://www.instagram.com/p/Cabc123/")
	_, err := c.Fetch(context.Background(), u)

	fetchErr, ok := IsFetchError(err)
	require.True(t, ok)
	assert.Equal(t, ReasonPrivate, fetchErr.Reason)
}

func TestInstagramFetchMissingPost(t *testing.T) {
	srv := newInstagramServer(t, instagramPage)
	c := newTestInstagramClient(t, srv)

	u, _ := url.Parse("https://www.instagram.com/p/Cmissing/")
	_, err := c.Fetch(context.Background(), u)

	fetchErr, ok := IsFetchError(err)
	require.True(t, ok)
	assert.Equal(t, ReasonNotFound, fetchErr.Reason)
}

func TestParseCount(t *testing.T) {
	tests := map[string]int64{
		"12":    12,
		"1,234": 1234,
		"1.2K":  1200,
		"3M":    3000000,
	}
	for in, want := range tests {
		got, ok := parseCount(in)
		assert.True(t, ok, in)
		assert.Equal(t, want, got, in)
	}

	_, ok := parseCount("lots")
	assert.False(t, ok)
}
