package repository

import (
	"context"
	"database/sql"
	"errors"

	"app/internal/model"
)

type SettingsRepository interface {
	GetSettings(ctx context.Context, userID string, kind model.AssetKind) (*model.AssetSettings, error)
	UpsertSettings(ctx context.Context, s *model.AssetSettings) error
	SetEnabled(ctx context.Context, userID string, kind model.AssetKind, enabled bool) error
	ListEnabledUserIDs(ctx context.Context) ([]string, error)
}

type settingsRepo struct {
	db *sql.DB
}

func NewSettingsRepo(db *sql.DB) SettingsRepository {
	return &settingsRepo{db: db}
}

func (r *settingsRepo) GetSettings(ctx context.Context, userID string, kind model.AssetKind) (*model.AssetSettings, error) {
	var s model.AssetSettings
	query := `SELECT user_id, kind, enabled, template_id, template_props, created_at, updated_at
              FROM asset_settings WHERE user_id=$1 AND kind=$2`
	row := r.db.QueryRowContext(ctx, query, userID, kind)
	if err := row.Scan(&s.UserID, &s.Kind, &s.Enabled, &s.TemplateID, &s.TemplateProps, &s.CreatedAt, &s.UpdatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &s, nil
}

// UpsertSettings writes the user's template configuration. updated_at is
// bumped on every write; the render cache compares against it.
func (r *settingsRepo) UpsertSettings(ctx context.Context, s *model.AssetSettings) error {
	query := `INSERT INTO asset_settings (user_id, kind, enabled, template_id, template_props, updated_at)
              VALUES ($1, $2, $3, $4, $5, now())
              ON CONFLICT (user_id, kind)
              DO UPDATE SET template_id=$4, template_props=$5, updated_at=now()
              RETURNING user_id, kind, enabled, template_id, template_props, created_at, updated_at`
	row := r.db.QueryRowContext(ctx, query, s.UserID, s.Kind, s.Enabled, s.TemplateID, s.TemplateProps)
	return row.Scan(&s.UserID, &s.Kind, &s.Enabled, &s.TemplateID, &s.TemplateProps, &s.CreatedAt, &s.UpdatedAt)
}

// SetEnabled flips the enabled flag. Setting the current value again is a
// no-op by construction, which keeps feature disabling idempotent.
func (r *settingsRepo) SetEnabled(ctx context.Context, userID string, kind model.AssetKind, enabled bool) error {
	query := `UPDATE asset_settings SET enabled=$3 WHERE user_id=$1 AND kind=$2`
	_, err := r.db.ExecContext(ctx, query, userID, kind, enabled)
	return err
}

// ListEnabledUserIDs returns users with at least one enabled asset kind,
// for the live-status poller.
func (r *settingsRepo) ListEnabledUserIDs(ctx context.Context) ([]string, error) {
	query := `SELECT DISTINCT user_id FROM asset_settings WHERE enabled=true`
	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}
