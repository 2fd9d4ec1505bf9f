package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"time"

	"embed-bot/cache"
	"embed-bot/models"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// ErrServerNotFound is returned when no server row matches a vendor context.
var ErrServerNotFound = errors.New("server not found")

// Repository owns all storage access and invalidates the cache entries of
// everything it mutates.
type Repository struct {
	mu         sync.RWMutex
	db         *sql.DB
	dbPath     string
	cache      *cache.Cache
	counterTTL time.Duration
	logger     *zap.Logger
	now        func() time.Time
}

// NewRepository wraps db. dbPath is used to reopen the pool after transient
// failures. counterTTL is the TTL of cached post counters.
func NewRepository(db *sql.DB, dbPath string, c *cache.Cache, counterTTL time.Duration, logger *zap.Logger) *Repository {
	return &Repository{
		db:         db,
		dbPath:     dbPath,
		cache:      c,
		counterTTL: counterTTL,
		logger:     logger,
		now:        time.Now,
	}
}

// Close closes the connection pool.
func (r *Repository) Close() error {
	return r.conn().Close()
}

// CreateServer inserts a server together with one enabled integration per
// supported platform, then primes the cache with it.
func (r *Repository) CreateServer(ctx context.Context, vendor models.Vendor, vendorUID string, tier models.Tier) (*models.Server, error) {
	server := &models.Server{
		UID:          uuid.NewString(),
		VendorUID:    vendorUID,
		Vendor:       vendor,
		Tier:         tier,
		Status:       models.StatusActive,
		Prefix:       ".",
		Integrations: make(map[models.IntegrationKind]models.Integration, len(models.AllIntegrations)),
	}

	err := r.withRecovery(ctx, "create_server", func(db *sql.DB) error {
		tx, err := db.BeginTx(ctx, nil)
		if err != nil {
			return err
		}
		defer tx.Rollback()

		res, err := tx.ExecContext(ctx,
			`INSERT INTO server (uid, vendor_uid, vendor, tier, status, prefix, created) VALUES (?, ?, ?, ?, ?, ?, ?)`,
			server.UID, server.VendorUID, server.Vendor, server.Tier, server.Status, server.Prefix, r.now().Unix())
		if err != nil {
			return fmt.Errorf("insert server: %w", err)
		}
		if server.ID, err = res.LastInsertId(); err != nil {
			return err
		}

		stmt, err := tx.PrepareContext(ctx,
			`INSERT INTO server_integration (uid, server_id, integration, enabled) VALUES (?, ?, ?, TRUE)`)
		if err != nil {
			return fmt.Errorf("prepare integration insert: %w", err)
		}
		defer stmt.Close()

		integrations := make(map[models.IntegrationKind]models.Integration, len(models.AllIntegrations))
		for _, kind := range models.AllIntegrations {
			integration := models.Integration{UID: uuid.NewString(), Kind: kind, Enabled: true}
			res, err := stmt.ExecContext(ctx, integration.UID, server.ID, kind)
			if err != nil {
				return fmt.Errorf("insert %s integration: %w", kind, err)
			}
			if integration.ID, err = res.LastInsertId(); err != nil {
				return err
			}
			integrations[kind] = integration
		}

		if err := tx.Commit(); err != nil {
			return err
		}
		server.Integrations = integrations
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create server %s/%s: %w", vendor, vendorUID, err)
	}

	if err := r.cache.Set(ctx, cache.ServerKey(vendor, vendorUID), server); err != nil {
		r.logger.Warn("Failed to prime server cache", zap.String("vendor_uid", vendorUID), zap.Error(err))
	}
	return server, nil
}

// GetServer returns the server with its integrations, or nil when none matches.
// Active servers are served from and written through the cache.
func (r *Repository) GetServer(ctx context.Context, vendor models.Vendor, vendorUID string, status models.Status) (*models.Server, error) {
	key := cache.ServerKey(vendor, vendorUID)
	cacheable := status == models.StatusActive

	if cacheable {
		var cached *models.Server
		lookup, err := r.cache.Get(ctx, key, &cached)
		if err != nil {
			r.logger.Warn("Server cache read failed, falling back to storage", zap.Error(err))
		} else if lookup == cache.Hit && cached != nil {
			return cached, nil
		}
	}

	var server *models.Server
	err := r.withRecovery(ctx, "get_server", func(db *sql.DB) error {
		server = nil
		rows, err := db.QueryContext(ctx, `
			SELECT s.id, s.uid, s.vendor_uid, s.vendor, s.tier, s.tier_valid_until, s.status, s.prefix,
			       i.id, i.uid, i.integration, i.enabled, i.post_format
			FROM server s
			LEFT JOIN server_integration i ON i.server_id = s.id
			WHERE s.vendor = ? AND s.vendor_uid = ? AND s.status = ?
			ORDER BY s.id, i.id`, vendor, vendorUID, status)
		if err != nil {
			return err
		}
		defer rows.Close()

		for rows.Next() {
			var (
				s              models.Server
				tierValidUntil sql.NullInt64
				integrationID  sql.NullInt64
				integrationUID sql.NullString
				kind           sql.NullString
				enabled        sql.NullBool
				postFormat     sql.NullString
			)
			if err := rows.Scan(&s.ID, &s.UID, &s.VendorUID, &s.Vendor, &s.Tier, &tierValidUntil, &s.Status, &s.Prefix,
				&integrationID, &integrationUID, &kind, &enabled, &postFormat); err != nil {
				return fmt.Errorf("scan server row: %w", err)
			}

			if server == nil {
				if tierValidUntil.Valid {
					t := time.Unix(tierValidUntil.Int64, 0)
					s.TierValidUntil = &t
				}
				s.Integrations = make(map[models.IntegrationKind]models.Integration)
				server = &s
			} else if s.ID != server.ID {
				// Only the first matching server is returned.
				break
			}

			if integrationID.Valid {
				k := models.IntegrationKind(kind.String)
				server.Integrations[k] = models.Integration{
					ID:         integrationID.Int64,
					UID:        integrationUID.String,
					Kind:       k,
					Enabled:    enabled.Bool,
					PostFormat: postFormat.String,
				}
			}
		}
		return rows.Err()
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get server %s/%s: %w", vendor, vendorUID, err)
	}
	if server == nil {
		return nil, nil
	}

	if cacheable {
		if err := r.cache.Set(ctx, key, server); err != nil {
			r.logger.Warn("Failed to cache server", zap.String("vendor_uid", vendorUID), zap.Error(err))
		}
	}
	return server, nil
}

// UpdatePostFormat sets the post format of one integration of a server and
// invalidates the cached server.
func (r *Repository) UpdatePostFormat(ctx context.Context, vendor models.Vendor, vendorUID string, kind models.IntegrationKind, format string) error {
	var affected int64
	err := r.withRecovery(ctx, "update_post_format", func(db *sql.DB) error {
		res, err := db.ExecContext(ctx, `
			UPDATE server_integration SET post_format = ?
			WHERE integration = ?
			  AND server_id IN (SELECT id FROM server WHERE vendor = ? AND vendor_uid = ?)`,
			format, kind, vendor, vendorUID)
		if err != nil {
			return err
		}
		affected, err = res.RowsAffected()
		return err
	})
	if err != nil {
		return fmt.Errorf("failed to update %s post format for %s/%s: %w", kind, vendor, vendorUID, err)
	}

	if err := r.cache.Delete(ctx, cache.ServerKey(vendor, vendorUID)); err != nil {
		return fmt.Errorf("failed to invalidate server %s/%s: %w", vendor, vendorUID, err)
	}
	if affected == 0 {
		return ErrServerNotFound
	}
	return nil
}

// UpdateServerTier changes a server's tier and invalidates its cached entry.
func (r *Repository) UpdateServerTier(ctx context.Context, vendor models.Vendor, vendorUID string, tier models.Tier, validUntil *time.Time) error {
	var until sql.NullInt64
	if validUntil != nil {
		until = sql.NullInt64{Int64: validUntil.Unix(), Valid: true}
	}

	var affected int64
	err := r.withRecovery(ctx, "update_server_tier", func(db *sql.DB) error {
		res, err := db.ExecContext(ctx,
			`UPDATE server SET tier = ?, tier_valid_until = ? WHERE vendor = ? AND vendor_uid = ?`,
			tier, until, vendor, vendorUID)
		if err != nil {
			return err
		}
		affected, err = res.RowsAffected()
		return err
	})
	if err != nil {
		return fmt.Errorf("failed to update tier for %s/%s: %w", vendor, vendorUID, err)
	}

	if err := r.cache.Delete(ctx, cache.ServerKey(vendor, vendorUID)); err != nil {
		return fmt.Errorf("failed to invalidate server %s/%s: %w", vendor, vendorUID, err)
	}
	if affected == 0 {
		return ErrServerNotFound
	}
	return nil
}

// ExpireTiers downgrades every premium server whose tier expired before now.
// It returns the number of servers downgraded.
func (r *Repository) ExpireTiers(ctx context.Context, now time.Time) (int, error) {
	type vendorRef struct {
		vendor    models.Vendor
		vendorUID string
	}
	var expired []vendorRef

	err := r.withRecovery(ctx, "expire_tiers", func(db *sql.DB) error {
		expired = expired[:0]
		tx, err := db.BeginTx(ctx, nil)
		if err != nil {
			return err
		}
		defer tx.Rollback()

		rows, err := tx.QueryContext(ctx,
			`SELECT vendor, vendor_uid FROM server WHERE tier != ? AND tier_valid_until IS NOT NULL AND tier_valid_until < ?`,
			models.TierFree, now.Unix())
		if err != nil {
			return err
		}
		for rows.Next() {
			var ref vendorRef
			if err := rows.Scan(&ref.vendor, &ref.vendorUID); err != nil {
				rows.Close()
				return err
			}
			expired = append(expired, ref)
		}
		rows.Close()
		if err := rows.Err(); err != nil {
			return err
		}

		if _, err := tx.ExecContext(ctx,
			`UPDATE server SET tier = ?, tier_valid_until = NULL WHERE tier != ? AND tier_valid_until IS NOT NULL AND tier_valid_until < ?`,
			models.TierFree, models.TierFree, now.Unix()); err != nil {
			return err
		}
		return tx.Commit()
	})
	if err != nil {
		return 0, fmt.Errorf("failed to expire tiers: %w", err)
	}

	for _, ref := range expired {
		if err := r.cache.Delete(ctx, cache.ServerKey(ref.vendor, ref.vendorUID)); err != nil {
			return len(expired), fmt.Errorf("failed to invalidate server %s/%s: %w", ref.vendor, ref.vendorUID, err)
		}
	}
	return len(expired), nil
}

// GetPostCount returns how many posts were delivered into a server after since.
// The count is cached with the short counter TTL. A delivery committed between
// the count query and the cache write finds no counter to increment, so the
// cached count can lag by that delivery until the counter TTL expires.
func (r *Repository) GetPostCount(ctx context.Context, serverID int64, since time.Time) (int64, error) {
	key := cache.ServerPostCountKey(serverID)

	var count int64
	lookup, err := r.cache.Get(ctx, key, &count)
	if err != nil {
		r.logger.Warn("Post count cache read failed, falling back to storage", zap.Error(err))
	} else if lookup == cache.Hit {
		return count, nil
	}

	err = r.withRecovery(ctx, "get_post_count", func(db *sql.DB) error {
		return db.QueryRowContext(ctx,
			`SELECT COUNT(*) FROM server_post WHERE server_id = ? AND created > ?`,
			serverID, since.Unix()).Scan(&count)
	})
	if err != nil {
		return 0, fmt.Errorf("failed to count posts for server %d: %w", serverID, err)
	}

	if err := r.cache.Set(ctx, key, count, cache.WithTTL(r.counterTTL)); err != nil {
		r.logger.Warn("Failed to cache post count", zap.Int64("server_id", serverID), zap.Error(err))
	}
	return count, nil
}

// GetPost looks a post up by its content-addressing triple. url is attached to
// the returned value for display only. It returns nil when nothing is stored.
func (r *Repository) GetPost(ctx context.Context, url string, kind models.IntegrationKind, integrationUID string, index int) (*models.Post, error) {
	var post *models.Post
	err := r.withRecovery(ctx, "get_post", func(db *sql.DB) error {
		var (
			p           models.Post
			author      sql.NullString
			description sql.NullString
			views       sql.NullInt64
			likes       sql.NullInt64
			postedAt    sql.NullInt64
			blob        []byte
		)
		err := db.QueryRowContext(ctx, `
			SELECT id, author, description, views, likes, spoiler, posted_at, blob
			FROM post
			WHERE integration = ? AND integration_uid = ? AND integration_index = ?`,
			kind, integrationUID, index).Scan(&p.ID, &author, &description, &views, &likes, &p.Spoiler, &postedAt, &blob)
		if errors.Is(err, sql.ErrNoRows) {
			post = nil
			return nil
		}
		if err != nil {
			return err
		}

		p.URL = url
		p.Author = author.String
		p.Description = description.String
		if views.Valid {
			p.Views = &views.Int64
		}
		if likes.Valid {
			p.Likes = &likes.Int64
		}
		if postedAt.Valid {
			p.Created = time.Unix(postedAt.Int64, 0)
		}
		if len(blob) > 0 {
			p.Media = blob
		}
		post = &p
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get %s post %s/%d: %w", kind, integrationUID, index, err)
	}
	return post, nil
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// SavePost inserts a post and returns a copy carrying its storage identifier.
// When the triple is already stored, the existing row's identifier is returned.
func (r *Repository) SavePost(ctx context.Context, post *models.Post, kind models.IntegrationKind, integrationUID string, index int) (*models.Post, error) {
	var id int64
	err := r.withRecovery(ctx, "save_post", func(db *sql.DB) error {
		var err error
		id, err = insertPost(ctx, db, post, kind, integrationUID, index)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to save %s post %s/%d: %w", kind, integrationUID, index, err)
	}

	stored := *post
	stored.ID = id
	return &stored, nil
}

func insertPost(ctx context.Context, db execer, post *models.Post, kind models.IntegrationKind, integrationUID string, index int) (int64, error) {
	var postedAt sql.NullInt64
	if !post.Created.IsZero() {
		postedAt = sql.NullInt64{Int64: post.Created.Unix(), Valid: true}
	}
	var blob []byte
	if post.HasMedia() {
		blob = append([]byte(nil), post.Media...)
	}

	res, err := db.ExecContext(ctx, `
		INSERT INTO post (integration, integration_uid, integration_index, author, description, views, likes, spoiler, posted_at, blob)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(integration, integration_uid, integration_index) DO NOTHING`,
		kind, integrationUID, index,
		nullString(post.Author), nullString(post.Description), nullInt(post.Views), nullInt(post.Likes),
		post.Spoiler, postedAt, blob)
	if err != nil {
		return 0, fmt.Errorf("insert post: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return 0, err
	}
	if affected == 1 {
		return res.LastInsertId()
	}

	var id int64
	err = db.QueryRowContext(ctx,
		`SELECT id FROM post WHERE integration = ? AND integration_uid = ? AND integration_index = ?`,
		kind, integrationUID, index).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("select existing post: %w", err)
	}
	return id, nil
}

// SaveServerPost records a delivery of post into a server. A post that is not
// persisted yet is inserted in the same transaction as the delivery record; on
// success post.ID is set. The server's cached post counter is incremented.
func (r *Repository) SaveServerPost(ctx context.Context, vendor models.Vendor, serverUID, authorUID string, post *models.Post, kind models.IntegrationKind, integrationUID string, index int) error {
	var postID int64
	err := r.withRecovery(ctx, "save_server_post", func(db *sql.DB) error {
		var serverID int64
		err := db.QueryRowContext(ctx,
			`SELECT id FROM server WHERE vendor = ? AND vendor_uid = ? ORDER BY status = 'active' DESC, id LIMIT 1`,
			vendor, serverUID).Scan(&serverID)
		if errors.Is(err, sql.ErrNoRows) {
			return ErrServerNotFound
		}
		if err != nil {
			return err
		}

		if post.Persisted() {
			postID = post.ID
			if err := insertServerPost(ctx, db, serverID, postID, authorUID, post.URL, r.now()); err != nil {
				return err
			}
			return r.incrementPostCount(ctx, serverID)
		}

		tx, err := db.BeginTx(ctx, nil)
		if err != nil {
			return err
		}
		defer tx.Rollback()

		if postID, err = insertPost(ctx, tx, post, kind, integrationUID, index); err != nil {
			return err
		}
		if err := insertServerPost(ctx, tx, serverID, postID, authorUID, post.URL, r.now()); err != nil {
			return err
		}
		if err := tx.Commit(); err != nil {
			return err
		}
		return r.incrementPostCount(ctx, serverID)
	})
	if err != nil {
		if errors.Is(err, ErrServerNotFound) {
			return fmt.Errorf("save post for %s/%s: %w", vendor, serverUID, ErrServerNotFound)
		}
		return fmt.Errorf("failed to save server post for %s/%s: %w", vendor, serverUID, err)
	}

	post.ID = postID
	return nil
}

func insertServerPost(ctx context.Context, db execer, serverID, postID int64, authorUID, url string, created time.Time) error {
	_, err := db.ExecContext(ctx,
		`INSERT INTO server_post (server_id, post_id, author_uid, url, created) VALUES (?, ?, ?, ?, ?)`,
		serverID, postID, authorUID, url, created.Unix())
	if err != nil {
		return fmt.Errorf("insert server post: %w", err)
	}
	return nil
}

// incrementPostCount bumps the cached counter. If the bump fails the counter is
// dropped so the next read recounts from storage.
func (r *Repository) incrementPostCount(ctx context.Context, serverID int64) error {
	key := cache.ServerPostCountKey(serverID)
	if _, _, err := r.cache.Increment(ctx, key); err != nil {
		r.logger.Warn("Post count increment failed, dropping counter", zap.Int64("server_id", serverID), zap.Error(err))
		if delErr := r.cache.Delete(ctx, key); delErr != nil {
			r.logger.Error("Failed to drop post counter", zap.Int64("server_id", serverID), zap.Error(delErr))
		}
	}
	return nil
}

// SetMemberBanned (un)silences a member of a server.
func (r *Repository) SetMemberBanned(ctx context.Context, serverID int64, memberUID string, banned bool) error {
	err := r.withRecovery(ctx, "set_member_banned", func(db *sql.DB) error {
		_, err := db.ExecContext(ctx, `
			INSERT INTO server_member (server_id, member_uid, banned) VALUES (?, ?, ?)
			ON CONFLICT(server_id, member_uid) DO UPDATE SET banned = excluded.banned`,
			serverID, memberUID, banned)
		return err
	})
	if err != nil {
		return fmt.Errorf("failed to set banned=%t for member %s: %w", banned, memberUID, err)
	}
	return nil
}

// IsMemberBanned reports whether a member is silenced in a server.
func (r *Repository) IsMemberBanned(ctx context.Context, serverID int64, memberUID string) (bool, error) {
	var banned bool
	err := r.withRecovery(ctx, "is_member_banned", func(db *sql.DB) error {
		err := db.QueryRowContext(ctx,
			`SELECT banned FROM server_member WHERE server_id = ? AND member_uid = ?`,
			serverID, memberUID).Scan(&banned)
		if errors.Is(err, sql.ErrNoRows) {
			banned = false
			return nil
		}
		return err
	})
	if err != nil {
		return false, fmt.Errorf("failed to check member %s: %w", memberUID, err)
	}
	return banned, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func nullInt(n *int64) sql.NullInt64 {
	if n == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: *n, Valid: true}
}
