package service

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"app/internal/config"

	"github.com/rs/zerolog"
)

// TwitchService answers whether a channel is currently live. Used by the
// poller to detect stream-up and stream-down transitions.
type TwitchService interface {
	IsStreaming(ctx context.Context, providerAccountID string) (bool, error)
}

type twitchService struct {
	apiBaseURL   string
	authBaseURL  string
	clientID     string
	clientSecret string
	client       *http.Client
	logger       zerolog.Logger

	mu          sync.Mutex
	appToken    string
	tokenExpiry time.Time
}

func NewTwitchService(cfg *config.Config, logger zerolog.Logger) TwitchService {
	return &twitchService{
		apiBaseURL:   strings.TrimRight(cfg.TwitchAPIBaseURL, "/"),
		authBaseURL:  strings.TrimRight(cfg.TwitchAuthBaseURL, "/"),
		clientID:     cfg.TwitchClientID,
		clientSecret: cfg.TwitchClientSecret,
		client:       &http.Client{Timeout: 15 * time.Second},
		logger:       logger.With().Str("service", "TwitchService").Logger(),
	}
}

// appAccessToken returns a cached client-credentials token, refreshing it
// shortly before expiry.
func (s *twitchService) appAccessToken(ctx context.Context) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.appToken != "" && time.Now().Before(s.tokenExpiry.Add(-time.Minute)) {
		return s.appToken, nil
	}

	form := url.Values{}
	form.Set("client_id", s.clientID)
	form.Set("client_secret", s.clientSecret)
	form.Set("grant_type", "client_credentials")

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.authBaseURL+"/oauth2/token", strings.NewReader(form.Encode()))
	if err != nil {
		return "", fmt.Errorf("creating token request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := s.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("requesting app access token: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("reading token response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("token endpoint returned status %d: %s", resp.StatusCode, string(body))
	}

	var token struct {
		AccessToken string `json:"access_token"`
		ExpiresIn   int    `json:"expires_in"`
	}
	if err := json.Unmarshal(body, &token); err != nil {
		return "", fmt.Errorf("unmarshaling token response: %w", err)
	}

	s.appToken = token.AccessToken
	s.tokenExpiry = time.Now().Add(time.Duration(token.ExpiresIn) * time.Second)
	return s.appToken, nil
}

// IsStreaming checks the Helix streams endpoint; a non-empty data array
// means the channel is live.
func (s *twitchService) IsStreaming(ctx context.Context, providerAccountID string) (bool, error) {
	token, err := s.appAccessToken(ctx)
	if err != nil {
		return false, err
	}

	reqURL := fmt.Sprintf("%s/helix/streams?user_id=%s", s.apiBaseURL, url.QueryEscape(providerAccountID))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return false, fmt.Errorf("creating streams request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Client-Id", s.clientID)

	resp, err := s.client.Do(req)
	if err != nil {
		return false, fmt.Errorf("requesting stream status: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusUnauthorized {
		// Token may have been revoked server-side; drop the cache so the
		// next poll re-authenticates.
		s.mu.Lock()
		s.appToken = ""
		s.mu.Unlock()
	}
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return false, fmt.Errorf("streams endpoint returned status %d: %s", resp.StatusCode, string(body))
	}

	var payload struct {
		Data []json.RawMessage `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return false, fmt.Errorf("unmarshaling streams response: %w", err)
	}
	return len(payload.Data) != 0, nil
}
