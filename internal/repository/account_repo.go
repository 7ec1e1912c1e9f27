package repository

import (
	"context"
	"database/sql"
	"errors"

	"app/internal/model"
)

type AccountRepository interface {
	GetAccount(ctx context.Context, userID, provider string) (*model.LinkedAccount, error)
}

type accountRepo struct {
	db *sql.DB
}

func NewAccountRepo(db *sql.DB) AccountRepository {
	return &accountRepo{db: db}
}

func (r *accountRepo) GetAccount(ctx context.Context, userID, provider string) (*model.LinkedAccount, error) {
	var a model.LinkedAccount
	query := `SELECT user_id, provider, provider_account_id, created_at
              FROM linked_accounts WHERE user_id=$1 AND provider=$2`
	row := r.db.QueryRowContext(ctx, query, userID, provider)
	if err := row.Scan(&a.UserID, &a.Provider, &a.ProviderAccountID, &a.CreatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &a, nil
}
