package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"go.uber.org/zap"
)

// PruneServerPosts deletes delivery records created before the cutoff. They no
// longer count towards any rate window. Posts themselves are kept so future
// requests for the same content can reuse them.
func (r *Repository) PruneServerPosts(ctx context.Context, before time.Time) (int64, error) {
	var rowsAffected int64
	err := r.withRecovery(ctx, "prune_server_posts", func(db *sql.DB) error {
		res, err := db.ExecContext(ctx, `DELETE FROM server_post WHERE created < ?`, before.Unix())
		if err != nil {
			return err
		}
		rowsAffected, err = res.RowsAffected()
		return err
	})
	if err != nil {
		return 0, fmt.Errorf("failed to prune server posts: %w", err)
	}

	r.logger.Info("Pruned old server posts",
		zap.Int64("rows", rowsAffected),
		zap.Time("before", before))
	return rowsAffected, nil
}
