package main

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"net/http"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"app/internal/config"
	"app/internal/logger"
	"app/internal/middleware"
	"app/internal/model"
	"app/internal/repository"
	"app/internal/service"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/joho/godotenv"
	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
)

func main() {
	// Initialize logger
	logger := logger.New()

	// Load environment variables
	if err := godotenv.Load(); err != nil {
		logger.Warn().Msg("Warning: no .env file found")
	}

	// Load config
	cfg, err := config.Load()
	if err != nil {
		logger.Fatal().Msgf("Error loading config: %v", err)
	}

	// Initialize DB connection
	db, err := sql.Open("pgx", cfg.DBConnectionString)
	if err != nil {
		logger.Fatal().Msgf("Failed to open DB connection: %v", err)
	}
	defer db.Close()

	if err := db.Ping(); err != nil {
		logger.Fatal().Msgf("Failed to ping DB: %v", err)
	}
	logger.Info().Msg("Database connection established")

	p := &poller{
		settingsRepo: repository.NewSettingsRepo(db),
		accountRepo:  repository.NewAccountRepo(db),
		twitch:       service.NewTwitchService(cfg, logger),
		client:       &http.Client{Timeout: 30 * time.Second},
		triggerBase:  cfg.TriggerBaseURL,
		secret:       cfg.TriggerSecret,
		lastLive:     make(map[string]bool),
		logger:       logger.With().Str("service", "Poller").Logger(),
	}

	// Set up context with graceful shutdown
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	// Schedule the live-status poll
	c := cron.New()
	if _, err := c.AddFunc(cfg.PollSchedule, func() { p.poll(ctx) }); err != nil {
		logger.Fatal().Msgf("Invalid poll schedule %q: %v", cfg.PollSchedule, err)
	}
	c.Start()
	logger.Info().Str("schedule", cfg.PollSchedule).Msg("Live-status poller started")

	<-ctx.Done()
	logger.Info().Msg("Shutdown signal received, stopping poller...")
	<-c.Stop().Done()
	logger.Info().Msg("Poller stopped")
}

// poller watches the live status of every user with at least one enabled
// feature and fires the sync trigger endpoints on transitions. Stream
// state between polls is held in memory; a restart re-observes the
// current status and only transitions fire triggers, so syncs are not
// replayed.
type poller struct {
	settingsRepo repository.SettingsRepository
	accountRepo  repository.AccountRepository
	twitch       service.TwitchService
	client       *http.Client
	triggerBase  string
	secret       string
	lastLive     map[string]bool
	mu           sync.Mutex
	logger       zerolog.Logger
}

func (p *poller) poll(ctx context.Context) {
	userIDs, err := p.settingsRepo.ListEnabledUserIDs(ctx)
	if err != nil {
		p.logger.Error().Err(err).Msg("Failed to list enabled users")
		return
	}
	p.logger.Debug().Int("users", len(userIDs)).Msg("Polling live status")

	for _, userID := range userIDs {
		// One user failing must not stop the sweep.
		if err := p.pollUser(ctx, userID); err != nil {
			p.logger.Error().Err(err).Str("user_id", userID).Msg("Failed to poll user")
		}
		if ctx.Err() != nil {
			return
		}
	}
}

func (p *poller) pollUser(ctx context.Context, userID string) error {
	account, err := p.accountRepo.GetAccount(ctx, userID, model.ProviderTwitch)
	if err != nil {
		return err
	}
	if account == nil {
		// Enabled features without a linked Twitch account cannot be
		// polled; the sync service reports the same condition as a noop.
		return nil
	}

	live, err := p.twitch.IsStreaming(ctx, account.ProviderAccountID)
	if err != nil {
		return err
	}

	p.mu.Lock()
	wasLive, seen := p.lastLive[userID]
	p.lastLive[userID] = live
	p.mu.Unlock()

	switch {
	case live && (!seen || !wasLive):
		p.logger.Info().Str("user_id", userID).Msg("Stream went live, triggering stream-up")
		return p.trigger(ctx, "/v1/streams/up", userID)
	case !live && seen && wasLive:
		p.logger.Info().Str("user_id", userID).Msg("Stream went offline, triggering stream-down")
		return p.trigger(ctx, "/v1/streams/down", userID)
	}
	return nil
}

func (p *poller) trigger(ctx context.Context, path, userID string) error {
	body, err := json.Marshal(map[string]string{"user_id": userID})
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.triggerBase+path, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(middleware.TriggerSecretHeader, p.secret)

	resp, err := p.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("trigger %s returned status %d", path, resp.StatusCode)
	}
	return nil
}
