package repository

import (
	"context"
	"database/sql"
	"errors"

	"app/internal/model"
)

type RenderCacheRepository interface {
	GetEntry(ctx context.Context, userID string, kind model.AssetKind) (*model.RenderCache, error)
	CommitEntry(ctx context.Context, userID string, kind model.AssetKind, blobKey string) error
}

type renderCacheRepo struct {
	db *sql.DB
}

func NewRenderCacheRepo(db *sql.DB) RenderCacheRepository {
	return &renderCacheRepo{db: db}
}

func (r *renderCacheRepo) GetEntry(ctx context.Context, userID string, kind model.AssetKind) (*model.RenderCache, error) {
	var c model.RenderCache
	query := `SELECT user_id, kind, blob_key, last_rendered FROM render_cache WHERE user_id=$1 AND kind=$2`
	row := r.db.QueryRowContext(ctx, query, userID, kind)
	if err := row.Scan(&c.UserID, &c.Kind, &c.BlobKey, &c.LastRendered); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &c, nil
}

// CommitEntry marks the cached artifact authoritative as of now. Callers
// only invoke this after the remote API accepted the rendered asset.
func (r *renderCacheRepo) CommitEntry(ctx context.Context, userID string, kind model.AssetKind, blobKey string) error {
	query := `INSERT INTO render_cache (user_id, kind, blob_key, last_rendered)
              VALUES ($1, $2, $3, now())
              ON CONFLICT (user_id, kind)
              DO UPDATE SET blob_key=$3, last_rendered=now()`
	_, err := r.db.ExecContext(ctx, query, userID, kind, blobKey)
	return err
}
