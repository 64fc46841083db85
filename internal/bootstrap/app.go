package bootstrap

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"

	"cvbuilder-backend/internal/artifacts"
	googleauth "cvbuilder-backend/internal/auth"
	"cvbuilder-backend/internal/cvs"
	"cvbuilder-backend/internal/generation"
	"cvbuilder-backend/internal/profiles"
	"cvbuilder-backend/internal/queue"
	"cvbuilder-backend/internal/services/health"
	"cvbuilder-backend/internal/shared/auth"
	"cvbuilder-backend/internal/shared/config"
	"cvbuilder-backend/internal/shared/server"
	"cvbuilder-backend/internal/shared/storage/db"
	"cvbuilder-backend/internal/shared/storage/object"
	gcsstore "cvbuilder-backend/internal/shared/storage/object/gcs"
	localstore "cvbuilder-backend/internal/shared/storage/object/local"
	s3store "cvbuilder-backend/internal/shared/storage/object/s3"
	"cvbuilder-backend/internal/shared/telemetry"
	"cvbuilder-backend/internal/sources"
	"cvbuilder-backend/internal/users"
)

const (
	relayChannel  = "cvbuilder:generation:events"
	brokerBuffer  = 32
	ownerTokenTTL = 15 * time.Minute
)

// App holds the wired dependencies of the API process.
type App struct {
	Config      config.Config
	Router      *gin.Engine
	DB          *sql.DB
	Redis       *redis.Client
	Store       object.ObjectStore
	Broker      *generation.Broker
	Coordinator *generation.Coordinator
	Health      *health.Service
}

// Build connects storage and wires every feature handler into the router.
func Build(ctx context.Context, cfg config.Config) (*App, error) {
	if strings.TrimSpace(cfg.Env) == "" {
		cfg.Env = "dev"
	}
	if strings.TrimSpace(cfg.ObjectStoreType) == "" {
		cfg.ObjectStoreType = "local"
	}

	sqlDB, err := buildDB(ctx, cfg)
	if err != nil {
		return nil, err
	}
	store, err := buildStore(ctx, cfg)
	if err != nil {
		return nil, err
	}

	app := &App{
		Config: cfg,
		DB:     sqlDB,
		Store:  store,
		Health: health.NewService(),
	}

	if err := app.buildEvents(ctx); err != nil {
		return nil, err
	}
	q, err := buildQueue(ctx, cfg)
	if err != nil {
		return nil, err
	}

	var (
		cvRepo      cvs.Repo
		profileRepo profiles.Repo
		sourceRepo  sources.Repo
		userRepo    users.Repo
	)
	if sqlDB != nil {
		cvRepo = &cvs.PGRepo{DB: sqlDB}
		profileRepo = &profiles.PGRepo{DB: sqlDB}
		sourceRepo = &sources.PGRepo{DB: sqlDB}
		userRepo = &users.PGRepo{DB: sqlDB}
		app.Health.Add("database", sqlDB.PingContext)
	} else {
		cvRepo = cvs.NewMemoryRepo()
		profileRepo = profiles.NewMemoryRepo()
		sourceRepo = sources.NewMemoryRepo()
		userRepo = users.NewMemoryRepo()
	}

	resolver := artifacts.NewResolver(store, cfg.SignedURLTTL)
	tokens := auth.NewOwnerTokens(ownerTokenTTL)
	genSvc := buildGenerationService(cfg)

	coord := generation.NewCoordinator(cvRepo, resolver, genSvc, tokens, app.Broker)
	coord.Queue = q
	if cfg.GenerationDisplayTimeout > 0 {
		coord.DisplayTimeout = cfg.GenerationDisplayTimeout
	}
	app.Coordinator = coord

	userSvc := users.NewService(userRepo)
	handlers := []server.RouteRegistrar{
		cvs.NewHandler(&cvs.Service{Repo: cvRepo, Store: store}),
		generation.NewHandler(coord, cfg.LoginURL),
		profiles.NewHandler(&profiles.Service{
			Repo:      profileRepo,
			Store:     store,
			Generator: genSvc,
			Tokens:    tokens,
			URLTTL:    cfg.SignedURLTTL,
		}, cfg.LoginURL),
		sources.NewHandler(&sources.Service{Repo: sourceRepo, Store: store}),
		users.NewHandler(userSvc, cfg.LoginURL),
		googleauth.NewGoogleService(googleauth.Config{
			ClientID:      cfg.GoogleClientID,
			ClientSecret:  cfg.GoogleClientSecret,
			RedirectURL:   cfg.GoogleRedirectURL,
			UIRedirectURL: cfg.UIRedirectURL,
		}, userSvc),
	}
	if local, ok := store.(*localstore.Store); ok {
		handlers = append(handlers, &localstore.Handler{Store: local})
	}

	app.Router = server.NewRouter(server.RouterDeps{
		Config:   cfg,
		Health:   server.HealthFunc(app.ready),
		Handlers: handlers,
	})
	return app, nil
}

// Close releases the connections opened by Build.
func (a *App) Close() {
	if a.Redis != nil {
		_ = a.Redis.Close()
	}
	if a.DB != nil {
		_ = a.DB.Close()
	}
}

func (a *App) ready(c *gin.Context) (bool, any) {
	report := a.Health.Status(c.Request.Context())
	status := "ok"
	if !report.OK {
		status = "degraded"
	}
	return report.OK, gin.H{"status": status, "checks": report.Checks}
}

func (a *App) buildEvents(ctx context.Context) error {
	a.Broker = generation.NewBroker(brokerBuffer)
	if strings.TrimSpace(a.Config.RedisAddr) == "" {
		return nil
	}
	rdb, err := generation.DialRedis(ctx, a.Config.RedisAddr, a.Config.RedisPassword, a.Config.RedisDB)
	if err != nil {
		if isDevLike(a.Config.Env) {
			telemetry.Warn("bootstrap.redis.unavailable", map[string]any{"error": err})
			return nil
		}
		return err
	}
	a.Redis = rdb
	a.Broker.Relay = generation.NewRedisRelay(rdb, relayChannel)
	a.Health.Add("redis", func(ctx context.Context) error {
		return rdb.Ping(ctx).Err()
	})
	return nil
}

func buildDB(ctx context.Context, cfg config.Config) (*sql.DB, error) {
	if strings.TrimSpace(cfg.DatabaseURL) == "" {
		if isDevLike(cfg.Env) {
			telemetry.Info("bootstrap.database.memory", map[string]any{"reason": "DATABASE_URL empty"})
			return nil, nil
		}
		return nil, fmt.Errorf("DATABASE_URL is required")
	}

	sqlDB, err := db.Connect(ctx, cfg.DatabaseURL, db.OptionsFromEnv(db.DefaultServerOptions()))
	if err != nil {
		if isDevLike(cfg.Env) {
			telemetry.Warn("bootstrap.database.memory", map[string]any{"error": err})
			return nil, nil
		}
		return nil, err
	}
	if err := db.RunMigrations(ctx, sqlDB); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	return sqlDB, nil
}

func buildStore(ctx context.Context, cfg config.Config) (object.ObjectStore, error) {
	switch cfg.ObjectStoreType {
	case "s3":
		return s3store.New(ctx, s3store.Options{
			Region:        cfg.AWSRegion,
			Bucket:        cfg.S3Bucket,
			Prefix:        cfg.S3Prefix,
			KMSKeyID:      cfg.SSEKMSKeyID,
			PublicBaseURL: cfg.S3PublicBaseURL,
			Endpoint:      cfg.S3Endpoint,
		})
	case "gcs":
		return gcsstore.New(ctx, gcsstore.Options{
			Bucket:        cfg.GCSBucket,
			PublicBaseURL: cfg.GCSPublicBaseURL,
		})
	default:
		return localstore.New(cfg.LocalStoreDir, localstore.Options{
			PublicBaseURL: cfg.PublicBaseURL,
			SigningKey:    cfg.JWTSecret,
			PublicRead:    cfg.LocalStorePublicRead,
		}), nil
	}
}

func buildQueue(ctx context.Context, cfg config.Config) (queue.Client, error) {
	if strings.TrimSpace(cfg.GenerationSQSQueueURL) == "" {
		return nil, nil
	}
	return queue.NewSQSClient(ctx, cfg.GenerationSQSQueueURL, cfg.AWSRegion)
}

func buildGenerationService(cfg config.Config) generation.Service {
	if cfg.GenerationServiceURL == "" {
		telemetry.Warn("bootstrap.generation.unconfigured", nil)
		return generation.Unconfigured{}
	}
	return generation.NewHTTPClient(cfg.GenerationServiceURL, cfg.GenerationHTTPTimeout)
}

func isDevLike(env string) bool {
	switch strings.ToLower(strings.TrimSpace(env)) {
	case "dev", "local", "test":
		return true
	default:
		return false
	}
}
