package delivery

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"
	"unicode/utf8"

	"embed-bot/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

var pngHeader = []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR")

type fakeTranscoder struct {
	calls  int
	shrink func(data []byte) []byte
	err    error
}

func (f *fakeTranscoder) Transcode(_ context.Context, data []byte, _ string) ([]byte, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return f.shrink(data), nil
}

func halve(data []byte) []byte {
	return data[:len(data)/2]
}

type recordingSender struct {
	errs     []error
	messages []*Message
}

func (r *recordingSender) send(_ context.Context, msg *Message) (string, error) {
	r.messages = append(r.messages, msg)
	i := len(r.messages) - 1
	if i < len(r.errs) && r.errs[i] != nil {
		return "", r.errs[i]
	}
	return "msg-1", nil
}

func newTestEngine(t *testing.T, transcoder Transcoder) *Engine {
	cfg := models.DeliveryConfig{MaxContentLength: 2000, MaxTranscodes: 3}
	return NewEngine(transcoder, cfg, func() string { return "😺" }, zaptest.NewLogger(t))
}

func newMediaPost(size int) *models.Post {
	media := append([]byte{}, pngHeader...)
	media = append(media, bytes.Repeat([]byte{0}, size)...)
	return &models.Post{URL: "https://www.tiktok.com/@a/video/1", Media: media}
}

func TestDeliverSuccess(t *testing.T) {
	transcoder := &fakeTranscoder{shrink: halve}
	sender := &recordingSender{}
	post := newMediaPost(100)

	result, err := newTestEngine(t, transcoder).Deliver(context.Background(), post, "<@1>", sender.send)
	require.NoError(t, err)

	assert.Equal(t, "msg-1", result.MessageID)
	assert.Equal(t, 1, result.Attempts)
	assert.Zero(t, result.Transcodes)
	assert.Zero(t, transcoder.calls)

	require.Len(t, sender.messages, 1)
	msg := sender.messages[0]
	assert.Equal(t, "Here you go <@1> 😺.\n🔗 URL: https://www.tiktok.com/@a/video/1", msg.Content)
	require.NotNil(t, msg.File)
	assert.Equal(t, "file.png", msg.File.Name)
	assert.Equal(t, "image/png", msg.File.ContentType)
}

func TestDeliverSizeErrorTranscodesOnceAndResends(t *testing.T) {
	transcoder := &fakeTranscoder{shrink: halve}
	sender := &recordingSender{errs: []error{ErrEntityTooLarge}}
	post := newMediaPost(100)
	original := len(post.Media)

	result, err := newTestEngine(t, transcoder).Deliver(context.Background(), post, "<@1>", sender.send)
	require.NoError(t, err)

	assert.Equal(t, 1, transcoder.calls)
	assert.Len(t, sender.messages, 2)
	assert.Equal(t, 2, result.Attempts)
	assert.Equal(t, 1, result.Transcodes)
	assert.Equal(t, original/2, len(post.Media))
	assert.Len(t, sender.messages[1].File.Data, original/2)
}

func TestDeliverOtherErrorPropagatesWithoutTranscode(t *testing.T) {
	transportErr := errors.New("HTTP 500 Internal Server Error")
	transcoder := &fakeTranscoder{shrink: halve}
	sender := &recordingSender{errs: []error{transportErr}}

	result, err := newTestEngine(t, transcoder).Deliver(context.Background(), newMediaPost(100), "<@1>", sender.send)
	assert.ErrorIs(t, err, transportErr)
	assert.Zero(t, transcoder.calls)
	assert.Len(t, sender.messages, 1)
	assert.Equal(t, 1, result.Attempts)
}

func TestDeliverTranscodeExhausted(t *testing.T) {
	transcoder := &fakeTranscoder{shrink: halve}
	sender := &recordingSender{errs: []error{ErrEntityTooLarge, ErrEntityTooLarge, ErrEntityTooLarge, ErrEntityTooLarge, ErrEntityTooLarge}}

	result, err := newTestEngine(t, transcoder).Deliver(context.Background(), newMediaPost(1000), "<@1>", sender.send)
	assert.ErrorIs(t, err, ErrTranscodeExhausted)
	assert.Equal(t, 3, transcoder.calls)
	assert.Equal(t, 3, result.Transcodes)
	assert.Equal(t, 4, result.Attempts)
}

func TestDeliverTranscodeThatDoesNotShrinkStops(t *testing.T) {
	transcoder := &fakeTranscoder{shrink: func(data []byte) []byte { return data }}
	sender := &recordingSender{errs: []error{ErrEntityTooLarge, ErrEntityTooLarge}}

	_, err := newTestEngine(t, transcoder).Deliver(context.Background(), newMediaPost(100), "<@1>", sender.send)
	assert.ErrorIs(t, err, ErrTranscodeExhausted)
	assert.Equal(t, 1, transcoder.calls)
	assert.Len(t, sender.messages, 1)
}

func TestDeliverTranscoderFailure(t *testing.T) {
	transcoderErr := errors.New("ffmpeg exploded")
	transcoder := &fakeTranscoder{err: transcoderErr}
	sender := &recordingSender{errs: []error{ErrEntityTooLarge}}

	_, err := newTestEngine(t, transcoder).Deliver(context.Background(), newMediaPost(100), "<@1>", sender.send)
	assert.ErrorIs(t, err, transcoderErr)
	assert.Len(t, sender.messages, 1)
}

func TestDeliverSizeErrorWithoutMediaFails(t *testing.T) {
	transcoder := &fakeTranscoder{shrink: halve}
	sender := &recordingSender{errs: []error{ErrEntityTooLarge}}

	_, err := newTestEngine(t, transcoder).Deliver(context.Background(), &models.Post{URL: "u"}, "<@1>", sender.send)
	assert.ErrorIs(t, err, ErrEntityTooLarge)
	assert.Zero(t, transcoder.calls)
	assert.Nil(t, sender.messages[0].File)
}

func TestDeliverSpoilerAttachmentName(t *testing.T) {
	sender := &recordingSender{}
	post := newMediaPost(10)
	post.Spoiler = true

	_, err := newTestEngine(t, &fakeTranscoder{shrink: halve}).Deliver(context.Background(), post, "<@1>", sender.send)
	require.NoError(t, err)
	assert.Equal(t, "SPOILER_file.png", sender.messages[0].File.Name)
	assert.True(t, strings.HasSuffix(sender.messages[0].Content, "||🔗 URL: https://www.tiktok.com/@a/video/1||"))
}

func TestTruncate(t *testing.T) {
	caption := strings.Repeat("a", 2005)

	plain := Truncate(caption, 2000, false)
	assert.Equal(t, strings.Repeat("a", 1997)+"...", plain)
	assert.Equal(t, 2000, utf8.RuneCountInString(plain))

	spoiler := Truncate(caption, 2000, true)
	assert.Equal(t, strings.Repeat("a", 1995)+"||...", spoiler)
	assert.Equal(t, 2000, utf8.RuneCountInString(spoiler))

	short := strings.Repeat("a", 2000)
	assert.Equal(t, short, Truncate(short, 2000, true))
}

func TestTruncateCountsCharacters(t *testing.T) {
	caption := strings.Repeat("é", 2005)

	got := Truncate(caption, 2000, false)
	assert.Equal(t, 2000, utf8.RuneCountInString(got))
	assert.True(t, utf8.ValidString(got))
}

func TestBuildCaptionTruncatesLongPosts(t *testing.T) {
	post := &models.Post{
		URL:         "https://www.instagram.com/p/abc/",
		Description: strings.Repeat("b", 3000),
		Format:      "{description}",
	}

	caption := BuildCaption(post, "<@1>", "😺", 2000)
	assert.Equal(t, 2000, utf8.RuneCountInString(caption))
	assert.True(t, strings.HasPrefix(caption, "Here you go <@1> 😺.\n"))
	assert.True(t, strings.HasSuffix(caption, "b..."))

	post.Spoiler = true
	caption = BuildCaption(post, "<@1>", "😺", 2000)
	assert.Equal(t, 2000, utf8.RuneCountInString(caption))
	assert.True(t, strings.HasSuffix(caption, "b||..."))
}

func TestGuessExtension(t *testing.T) {
	assert.Equal(t, ".png", GuessExtension(pngHeader))
	assert.Equal(t, DefaultExtension, GuessExtension([]byte("plain text, nothing to sniff")))
	assert.Equal(t, DefaultExtension, GuessExtension(nil))
}

func TestFFmpegMissingBinary(t *testing.T) {
	f := NewFFmpeg("/nonexistent/ffmpeg", zaptest.NewLogger(t))

	_, err := f.Transcode(context.Background(), pngHeader, ".png")
	assert.Error(t, err)
}
