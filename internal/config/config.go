package config

import (
	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	Port               string `envconfig:"PORT" default:"8080"`
	Environment        string `envconfig:"ENV" default:"development"`
	DBConnectionString string `envconfig:"DB_CONNECTION_STRING" required:"true"`

	// Auth settings
	JWTSecret     string `envconfig:"JWT_SECRET" required:"true"`
	TriggerSecret string `envconfig:"TRIGGER_SHARED_SECRET" required:"true"`

	// S3 asset storage settings
	S3URL          string `envconfig:"S3_URL" required:"true"`
	S3Region       string `envconfig:"S3_REGION" required:"true"`
	S3AccessKey    string `envconfig:"S3_ACCESS_KEY" required:"true"`
	S3SecretKey    string `envconfig:"S3_SECRET_KEY" required:"true"`
	S3BucketPrefix string `envconfig:"S3_BUCKET_PREFIX" default:"stream-assets"`

	// GCP settings (Secret Manager credential store, Pub/Sub alerts + DLQ)
	GCPProjectID                  string `envconfig:"GCP_PROJECT_ID" required:"true"`
	PubSubEmulatorHost            string `envconfig:"PUBSUB_EMULATOR_HOST" default:""`
	PubSubAlertTopic              string `envconfig:"PUBSUB_ALERT_TOPIC" default:"sync_alerts"`
	PubSubSyncDLQTopic            string `envconfig:"PUBSUB_SYNC_DLQ_TOPIC" default:"sync_dlq"`
	DLQEndpointURL                string `envconfig:"DLQ_ENDPOINT_URL" default:""`
	PubSubPushServiceAccountEmail string `envconfig:"PUBSUB_PUSH_SERVICE_ACCOUNT_EMAIL" default:""`

	// Render service settings
	RenderServiceBaseURL string `envconfig:"RENDER_SERVICE_BASE_URL" required:"true"`
	RenderTimeoutSec     int    `envconfig:"RENDER_TIMEOUT_SEC" default:"120"`

	// Twitter API settings
	TwitterAPIBaseURL string `envconfig:"TWITTER_API_BASE_URL" default:"https://api.twitter.com"`
	TwitterAPIKey     string `envconfig:"TWITTER_API_KEY" required:"true"`
	TwitterAPISecret  string `envconfig:"TWITTER_API_SECRET" required:"true"`

	// Twitch API settings (live-status poller)
	TwitchAPIBaseURL   string `envconfig:"TWITCH_API_BASE_URL" default:"https://api.twitch.tv"`
	TwitchAuthBaseURL  string `envconfig:"TWITCH_AUTH_BASE_URL" default:"https://id.twitch.tv"`
	TwitchClientID     string `envconfig:"TWITCH_CLIENT_ID" default:""`
	TwitchClientSecret string `envconfig:"TWITCH_CLIENT_SECRET" default:""`

	// Poller settings
	PollSchedule   string `envconfig:"POLL_SCHEDULE" default:"@every 1m"`
	TriggerBaseURL string `envconfig:"TRIGGER_BASE_URL" default:"http://localhost:8080"`

	// Sync engine settings
	DownloadMaxAttempts int `envconfig:"DOWNLOAD_MAX_ATTEMPTS" default:"2"`
	SyncLeaseTTLSec     int `envconfig:"SYNC_LEASE_TTL_SEC" default:"60"`
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}
