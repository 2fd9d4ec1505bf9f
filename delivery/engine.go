// Package delivery sends posts through a chat transport, shrinking media
// that the transport rejects as too large.
package delivery

import (
	"context"
	"errors"
	"fmt"

	"embed-bot/metrics"
	"embed-bot/models"

	"go.uber.org/zap"
)

var (
	// ErrEntityTooLarge is returned by a SendFunc when the transport rejects
	// the payload size.
	ErrEntityTooLarge = errors.New("entity too large")
	// ErrTranscodeExhausted is returned when transcoding cannot bring the
	// media under the transport limit.
	ErrTranscodeExhausted = errors.New("media could not be shrunk below the size limit")
)

// Attachment is a file uploaded with a message.
type Attachment struct {
	Name        string
	ContentType string
	Data        []byte
}

// Message is what a SendFunc delivers.
type Message struct {
	Content string
	File    *Attachment
}

// SendFunc delivers msg and returns a handle to the created message. Size
// rejections must be reported as ErrEntityTooLarge.
type SendFunc func(ctx context.Context, msg *Message) (string, error)

// Transcoder re-encodes media to a smaller size.
type Transcoder interface {
	Transcode(ctx context.Context, data []byte, ext string) ([]byte, error)
}

// State is a delivery state.
type State int

const (
	StateAttempt State = iota
	StateTranscode
	StateSuccess
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateAttempt:
		return "attempt"
	case StateTranscode:
		return "transcode"
	case StateSuccess:
		return "success"
	case StateFailed:
		return "failed"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Result describes a finished delivery.
type Result struct {
	MessageID  string
	Attempts   int
	Transcodes int
}

// Engine runs the attempt/transcode state machine.
type Engine struct {
	transcoder       Transcoder
	maxContentLength int
	maxTranscodes    int
	decorate         func() string
	logger           *zap.Logger
	metrics          *metrics.Metrics
}

// NewEngine creates an engine. decorate supplies the caption's decorative marker.
func NewEngine(transcoder Transcoder, cfg models.DeliveryConfig, decorate func() string, logger *zap.Logger) *Engine {
	return &Engine{
		transcoder:       transcoder,
		maxContentLength: cfg.MaxContentLength,
		maxTranscodes:    cfg.MaxTranscodes,
		decorate:         decorate,
		logger:           logger,
		metrics:          metrics.Get(),
	}
}

// Deliver sends post through send. A size rejection transcodes the media and
// resends, at most maxTranscodes times; any other send error is returned as is.
// post.Media is replaced by the transcoded payload.
func (e *Engine) Deliver(ctx context.Context, post *models.Post, mention string, send SendFunc) (*Result, error) {
	result := &Result{}
	state := StateAttempt
	var lastErr error

	for {
		switch state {
		case StateAttempt:
			result.Attempts++
			id, err := send(ctx, e.message(post, mention))
			switch {
			case err == nil:
				result.MessageID = id
				state = StateSuccess
			case errors.Is(err, ErrEntityTooLarge) && post.HasMedia():
				e.logger.Info("Payload too large, transcoding",
					zap.String("url", post.URL),
					zap.Int("size", len(post.Media)),
					zap.Int("attempt", result.Attempts))
				state = StateTranscode
			default:
				lastErr = err
				state = StateFailed
			}

		case StateTranscode:
			if err := e.transcode(ctx, post, result); err != nil {
				lastErr = err
				state = StateFailed
				continue
			}
			state = StateAttempt

		case StateSuccess:
			e.metrics.DeliveriesTotal.WithLabelValues(StateSuccess.String()).Inc()
			return result, nil

		case StateFailed:
			e.metrics.DeliveriesTotal.WithLabelValues(StateFailed.String()).Inc()
			return result, lastErr
		}
	}
}

func (e *Engine) transcode(ctx context.Context, post *models.Post, result *Result) error {
	if result.Transcodes >= e.maxTranscodes {
		e.metrics.TranscodesTotal.WithLabelValues("exhausted").Inc()
		return fmt.Errorf("%w after %d transcodes", ErrTranscodeExhausted, result.Transcodes)
	}

	ext := GuessExtension(post.Media)
	result.Transcodes++
	shrunk, err := e.transcoder.Transcode(ctx, post.Media, ext)
	if err != nil {
		e.metrics.TranscodesTotal.WithLabelValues("error").Inc()
		return fmt.Errorf("transcode %s: %w", ext, err)
	}
	if len(shrunk) == 0 || len(shrunk) >= len(post.Media) {
		e.metrics.TranscodesTotal.WithLabelValues("no_shrink").Inc()
		return fmt.Errorf("%w: %d -> %d bytes", ErrTranscodeExhausted, len(post.Media), len(shrunk))
	}

	e.metrics.TranscodesTotal.WithLabelValues("ok").Inc()
	e.logger.Info("Transcoded media",
		zap.String("url", post.URL),
		zap.Int("from", len(post.Media)),
		zap.Int("to", len(shrunk)),
		zap.Int("transcodes", result.Transcodes))
	post.Media = shrunk
	return nil
}

func (e *Engine) message(post *models.Post, mention string) *Message {
	msg := &Message{Content: BuildCaption(post, mention, e.decorate(), e.maxContentLength)}
	if post.HasMedia() {
		msg.File = &Attachment{
			Name:        AttachmentName(GuessExtension(post.Media), post.Spoiler),
			ContentType: GuessContentType(post.Media),
			Data:        post.Media,
		}
	}
	return msg
}
