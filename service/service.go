// Package service runs the embed pipeline: policy checks, onboarding, rate
// limiting, fetch-or-reuse and persistence.
package service

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"
	"unicode/utf8"

	"embed-bot/downloader"
	"embed-bot/metrics"
	"embed-bot/models"

	"go.uber.org/zap"
)

// MaxPostFormatLength bounds custom post format templates.
const MaxPostFormatLength = 1000

var (
	ErrIntegrationDisabled = errors.New("integration is disabled on this server")
	ErrRateLimited         = errors.New("server post limit reached")
	ErrMemberSilenced      = errors.New("member is silenced on this server")
	ErrUnknownIntegration  = errors.New("unknown integration")
	ErrFormatTooLong       = fmt.Errorf("post format is longer than %d characters", MaxPostFormatLength)
)

// Store is the persistence the pipeline needs. *database.Repository implements it.
type Store interface {
	CreateServer(ctx context.Context, vendor models.Vendor, vendorUID string, tier models.Tier) (*models.Server, error)
	GetServer(ctx context.Context, vendor models.Vendor, vendorUID string, status models.Status) (*models.Server, error)
	UpdatePostFormat(ctx context.Context, vendor models.Vendor, vendorUID string, kind models.IntegrationKind, format string) error
	GetPostCount(ctx context.Context, serverID int64, since time.Time) (int64, error)
	GetPost(ctx context.Context, url string, kind models.IntegrationKind, integrationUID string, index int) (*models.Post, error)
	SaveServerPost(ctx context.Context, vendor models.Vendor, serverUID, authorUID string, post *models.Post, kind models.IntegrationKind, integrationUID string, index int) error
	SetMemberBanned(ctx context.Context, serverID int64, memberUID string, banned bool) error
	IsMemberBanned(ctx context.Context, serverID int64, memberUID string) (bool, error)
}

// Service is the entry point chat bindings call into.
type Service struct {
	store      Store
	dispatcher *downloader.Dispatcher
	limits     models.LimitsConfig
	logger     *zap.Logger
	metrics    *metrics.Metrics
	now        func() time.Time
}

// New creates a Service.
func New(store Store, dispatcher *downloader.Dispatcher, limits models.LimitsConfig, logger *zap.Logger) *Service {
	return &Service{
		store:      store,
		dispatcher: dispatcher,
		limits:     limits,
		logger:     logger,
		metrics:    metrics.Get(),
		now:        time.Now,
	}
}

// ShouldHandle reports whether rawURL belongs to a supported platform. It has
// no side effects.
func (s *Service) ShouldHandle(rawURL string) bool {
	return s.dispatcher.ShouldHandle(rawURL)
}

// GetPost resolves rawURL, checks the server's policies, and returns the post
// either from storage or freshly fetched. Every successful call records one
// delivery into the server. The returned post carries the integration's
// post format.
func (s *Service) GetPost(ctx context.Context, vendor models.Vendor, serverUID, authorUID, rawURL string) (*models.Post, error) {
	client, u, err := s.dispatcher.Resolve(rawURL)
	if err != nil {
		return nil, err
	}
	kind := client.Integration()

	server, err := s.Onboard(ctx, vendor, serverUID)
	if err != nil {
		return nil, err
	}

	banned, err := s.store.IsMemberBanned(ctx, server.ID, authorUID)
	if err != nil {
		return nil, err
	}
	if banned {
		return nil, ErrMemberSilenced
	}

	integration := server.Integration(kind)
	if !integration.Enabled {
		return nil, fmt.Errorf("%s: %w", kind, ErrIntegrationDisabled)
	}

	if err := s.checkRateLimit(ctx, server); err != nil {
		return nil, err
	}

	uid, index, err := client.Identify(u)
	if err != nil {
		return nil, err
	}

	post, err := s.store.GetPost(ctx, rawURL, kind, uid, index)
	if err != nil {
		return nil, err
	}
	if post == nil {
		if post, err = s.fetch(ctx, client, u); err != nil {
			return nil, err
		}
		post.URL = rawURL
	} else {
		s.logger.Debug("Reusing stored post",
			zap.String("url", rawURL),
			zap.String("integration", string(kind)),
			zap.Int64("post_id", post.ID))
	}

	if err := s.store.SaveServerPost(ctx, vendor, serverUID, authorUID, post, kind, uid, index); err != nil {
		return nil, err
	}

	post.Format = integration.PostFormat
	return post, nil
}

func (s *Service) fetch(ctx context.Context, client downloader.Client, u *url.URL) (*models.Post, error) {
	start := time.Now()
	post, err := client.Fetch(ctx, u)
	s.metrics.ObserveFetch(string(client.Integration()), start, err)
	if err != nil {
		return nil, err
	}
	s.logger.Info("Fetched post",
		zap.String("url", u.String()),
		zap.String("integration", string(client.Integration())),
		zap.Int("size", len(post.Media)),
		zap.Duration("duration", time.Since(start)))
	return post, nil
}

// Limit returns the post limit of a tier over the rate window. Zero or less
// means unlimited.
func (s *Service) Limit(tier models.Tier) int {
	if tier == models.TierPremium {
		return s.limits.Premium
	}
	return s.limits.Free
}

func (s *Service) checkRateLimit(ctx context.Context, server *models.Server) error {
	limit := s.Limit(server.Tier)
	if limit <= 0 {
		return nil
	}
	count, err := s.store.GetPostCount(ctx, server.ID, s.now().Add(-s.limits.Window))
	if err != nil {
		return err
	}
	if count >= int64(limit) {
		return fmt.Errorf("%w: %d/%d posts in the last %s", ErrRateLimited, count, limit, s.limits.Window)
	}
	return nil
}

// Onboard returns the active server for a vendor context, creating it with
// the free tier and default integrations when it does not exist yet.
func (s *Service) Onboard(ctx context.Context, vendor models.Vendor, serverUID string) (*models.Server, error) {
	server, err := s.store.GetServer(ctx, vendor, serverUID, models.StatusActive)
	if err != nil {
		return nil, err
	}
	if server != nil {
		return server, nil
	}

	server, err = s.store.CreateServer(ctx, vendor, serverUID, models.TierFree)
	if err == nil {
		s.logger.Info("Onboarded server", zap.String("vendor", string(vendor)), zap.String("server_uid", serverUID))
		return server, nil
	}

	// A concurrent onboarding may have won the unique index.
	existing, getErr := s.store.GetServer(ctx, vendor, serverUID, models.StatusActive)
	if getErr == nil && existing != nil {
		return existing, nil
	}
	return nil, err
}

// SetMemberBanned silences or unsilences a member.
func (s *Service) SetMemberBanned(ctx context.Context, vendor models.Vendor, serverUID, memberUID string, banned bool) error {
	server, err := s.Onboard(ctx, vendor, serverUID)
	if err != nil {
		return err
	}
	return s.store.SetMemberBanned(ctx, server.ID, memberUID, banned)
}

// UpdatePostFormat sets the post format template of one integration. An
// empty format restores the default.
func (s *Service) UpdatePostFormat(ctx context.Context, vendor models.Vendor, serverUID string, kind models.IntegrationKind, format string) error {
	if !kind.Valid() {
		return fmt.Errorf("%w: %q", ErrUnknownIntegration, kind)
	}
	if utf8.RuneCountInString(format) > MaxPostFormatLength {
		return ErrFormatTooLong
	}
	if _, err := s.Onboard(ctx, vendor, serverUID); err != nil {
		return err
	}
	return s.store.UpdatePostFormat(ctx, vendor, serverUID, kind, strings.TrimSpace(format))
}

// ServerInfo renders a server's configuration for the help command.
func (s *Service) ServerInfo(ctx context.Context, vendor models.Vendor, serverUID string) (string, error) {
	server, err := s.Onboard(ctx, vendor, serverUID)
	if err != nil {
		return "", err
	}
	count, err := s.store.GetPostCount(ctx, server.ID, s.now().Add(-s.limits.Window))
	if err != nil {
		return "", err
	}

	var b strings.Builder
	b.WriteString("**Server configuration**\n")
	fmt.Fprintf(&b, "Tier: %s", server.Tier)
	if server.TierValidUntil != nil {
		fmt.Fprintf(&b, " (valid until %s)", models.HumanDate(*server.TierValidUntil))
	}
	b.WriteString("\n")

	limit := "unlimited"
	if l := s.Limit(server.Tier); l > 0 {
		limit = fmt.Sprint(l)
	}
	fmt.Fprintf(&b, "Posts in the last %s: %d/%s\n", s.limits.Window, count, limit)

	b.WriteString("Integrations:\n")
	for _, kind := range models.AllIntegrations {
		integration := server.Integration(kind)
		status := "disabled"
		if integration.Enabled {
			status = "enabled"
		}
		format := integration.PostFormat
		if format == "" {
			format = models.DefaultPostFormat
		}
		fmt.Fprintf(&b, "- %s: %s, format: `%s`\n", kind, status, format)
	}
	return b.String(), nil
}
