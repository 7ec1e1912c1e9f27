package model

import "time"

// Supported external providers.
const (
	ProviderTwitter = "twitter"
	ProviderTwitch  = "twitch"
)

// LinkedAccount connects a user to an external provider account.
type LinkedAccount struct {
	UserID            string    `db:"user_id" json:"user_id"`
	Provider          string    `db:"provider" json:"provider"`
	ProviderAccountID string    `db:"provider_account_id" json:"provider_account_id"`
	CreatedAt         time.Time `db:"created_at" json:"created_at"`
}

// Credentials is an opaque OAuth token pair for a provider account.
// Tokens are stored in the credential store, never in Postgres.
type Credentials struct {
	Token       string `json:"token"`
	TokenSecret string `json:"token_secret"`
}
