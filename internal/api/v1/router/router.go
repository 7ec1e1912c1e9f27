package router

import (
	"app/internal/api/v1/handler"
	"app/internal/config"
	"app/internal/lease"
	"app/internal/middleware"
	"app/internal/pubsub"
	"app/internal/repository"
	"app/internal/service"
	"context"
	"database/sql"
	"net/http"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	awsmiddleware "github.com/aws/smithy-go/middleware"
	"github.com/go-playground/validator/v10"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/rs/cors"
	"github.com/rs/zerolog"
	"github.com/swaggo/swag"
)

func New(cfg *config.Config, logger zerolog.Logger) (http.Handler, *sql.DB, error) {
	logger.Info().Msg("Router initialized")
	logger.Info().Str("environment", cfg.Environment).Msg("App environment loaded")

	// 1. Open DB connection (connection pooling)
	dsn := cfg.DBConnectionString
	// In a development environment, we want to ensure that SSL is disabled for
	// local testing. In production, the connection string should be provided
	// with the correct SSL settings.
	if cfg.Environment == "development" && !strings.Contains(dsn, "sslmode") {
		separator := " "
		if strings.HasPrefix(dsn, "postgres://") || strings.HasPrefix(dsn, "postgresql://") {
			if strings.Contains(dsn, "?") {
				separator = "&"
			} else {
				separator = "?"
			}
		}
		dsn += separator + "sslmode=disable"
	}
	// For non-development environments that use a transaction pooler like pgbouncer,
	// we must use the simple query protocol to avoid issues with server-side prepared statements.
	if cfg.Environment != "development" {
		if !strings.Contains(dsn, "prefer_simple_protocol") {
			separator := "&"
			if !strings.Contains(dsn, "?") {
				separator = "?"
			}
			dsn += separator + "prefer_simple_protocol=true"
		}
	}

	db, err := sql.Open("pgx", dsn)
	if err != nil {
		logger.Fatal().Msgf("Failed to open DB connection: %v", err)
		return nil, nil, err
	}

	if err := db.Ping(); err != nil {
		logger.Fatal().Msgf("Failed to ping DB: %v", err)
		return nil, nil, err
	}
	logger.Info().Msg("Database connection successful")

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(25)
	db.SetConnMaxIdleTime(5 * time.Minute)

	// 2. Initialize S3 client for asset blob storage
	s3Config, err := awsconfig.LoadDefaultConfig(context.TODO(),
		awsconfig.WithRegion(cfg.S3Region),
		awsconfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(cfg.S3AccessKey, cfg.S3SecretKey, "")),
		awsconfig.WithAPIOptions([]func(*awsmiddleware.Stack) error{removeDisableGzip()}),
	)
	if err != nil {
		logger.Fatal().Msgf("Failed to load S3 config: %v", err)
	}
	s3Client := s3.NewFromConfig(s3Config, func(o *s3.Options) {
		o.BaseEndpoint = aws.String(cfg.S3URL)
		o.UsePathStyle = true
	})

	// 3. Initialize validator
	validate := validator.New(validator.WithRequiredStructEnabled())

	// 4. Initialize Pub/Sub publisher
	pubSubPublisher, err := pubsub.NewPublisher(context.Background(), cfg)
	if err != nil {
		logger.Fatal().Msgf("Failed to create Pub/Sub publisher: %v", err)
		return nil, nil, err
	}

	// 5. Initialize the Secret Manager credential store
	credStore, err := service.NewSecretManagerStore(context.Background(), cfg)
	if err != nil {
		logger.Fatal().Msgf("Failed to create credential store: %v", err)
		return nil, nil, err
	}

	// 6. Initialize repositories & services & handlers
	settingsRepo := repository.NewSettingsRepo(db)
	cacheRepo := repository.NewRenderCacheRepo(db)
	dlqRepo := repository.NewDLQRepository(db)

	buckets := service.Buckets{Prefix: cfg.S3BucketPrefix}
	blobSvc := service.NewS3BlobService(s3Client, logger)
	profileAPI := service.NewTwitterService(cfg, logger)
	renderSvc := service.NewRenderClient(cfg, logger)
	featureSvc := service.NewFeatureService(settingsRepo, logger)
	alertSvc := service.NewAlertService(pubSubPublisher, cfg.PubSubAlertTopic, cfg.PubSubSyncDLQTopic, logger)
	leases := lease.NewManager(time.Duration(cfg.SyncLeaseTTLSec) * time.Second)
	syncSvc := service.NewSyncService(
		settingsRepo, cacheRepo, credStore, profileAPI, blobSvc, renderSvc,
		featureSvc, alertSvc, leases, buckets, cfg.DownloadMaxAttempts, logger,
	)
	settingsSvc := service.NewSettingsService(settingsRepo, credStore, profileAPI, blobSvc, buckets, logger)
	dlqSvc := service.NewDLQService(dlqRepo)

	streamHandler := handler.NewStreamHandler(syncSvc, validate, logger)
	settingsHandler := handler.NewSettingsHandler(settingsSvc, validate, logger)
	dlqHandler := handler.NewDLQHandler(dlqSvc, logger)

	// 7. Initialize middleware
	authMiddleware := middleware.AuthMiddleware(cfg.JWTSecret)
	triggerAuthMiddleware := middleware.TriggerAuthMiddleware(cfg.TriggerSecret)
	isLocalDev := cfg.PubSubEmulatorHost != ""
	pubsubAuthMiddleware := middleware.PubSubAuthMiddleware(isLocalDev, cfg.DLQEndpointURL, cfg.PubSubPushServiceAccountEmail, logger)

	// 8. Create ServeMux router
	mux := http.NewServeMux()

	// Create a subrouter for API v1 with the /v1 prefix
	apiV1Mux := http.NewServeMux()
	streamHandler.RegisterRoutes(apiV1Mux, triggerAuthMiddleware)
	settingsHandler.RegisterRoutes(apiV1Mux, authMiddleware)
	dlqHandler.RegisterRoutes(apiV1Mux, pubsubAuthMiddleware)

	mux.Handle("/v1/", http.StripPrefix("/v1", apiV1Mux))

	// Swagger documentation, generated into the docs package
	mux.HandleFunc("/swagger/doc.json", func(w http.ResponseWriter, r *http.Request) {
		doc, err := swag.ReadDoc()
		if err != nil {
			http.Error(w, "Swagger spec not available", http.StatusNotFound)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(doc))
	})
	mux.Handle("/swagger/", http.StripPrefix("/swagger/", http.FileServer(http.Dir("./docs/swagger-ui"))))

	// 9. Apply CORS middleware
	c := cors.New(cors.Options{
		AllowedOrigins:   []string{"*"}, // Allow all origins for development
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"*"},
		AllowCredentials: true,
		Debug:            false,
	})

	return middleware.LoggerMiddleware(c.Handler(mux)), db, nil
}

// removeDisableGzip is a workaround for S3 signature errors with some S3-compatible services.
// See: https://github.com/supabase/storage/issues/577
func removeDisableGzip() func(*awsmiddleware.Stack) error {
	return func(stack *awsmiddleware.Stack) error {
		// Only remove the middleware if it exists.
		if _, ok := stack.Finalize.Get("DisableAcceptEncodingGzip"); ok {
			_, err := stack.Finalize.Remove("DisableAcceptEncodingGzip")
			return err
		}
		return nil
	}
}
