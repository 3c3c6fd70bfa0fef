// Package app wires configuration, storage, delivery and HTTP into a runnable server.
package app

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/tharamac2/Tharamac/internal/auth"
	"github.com/tharamac2/Tharamac/internal/clock"
	"github.com/tharamac2/Tharamac/internal/config"
	"github.com/tharamac2/Tharamac/internal/db"
	httphandler "github.com/tharamac2/Tharamac/internal/http"
	"github.com/tharamac2/Tharamac/internal/http/handlers"
	"github.com/tharamac2/Tharamac/internal/repo"
	"github.com/tharamac2/Tharamac/internal/sms"
	"github.com/tharamac2/Tharamac/internal/validation"
)

// App holds the wired server and the resources it owns.
type App struct {
	Handler http.Handler
	Service *auth.Service
	DB      *sql.DB

	logger      *zap.Logger
	redis       *redis.Client
	authHandler *handlers.AuthHandler
}

// NewLogger returns a console logger in development and a JSON logger otherwise.
func NewLogger(cfg *config.Config) (*zap.Logger, error) {
	var zc zap.Config
	if cfg.IsProduction() || cfg.Env != "development" {
		zc = zap.NewProductionConfig()
	} else {
		zc = zap.NewDevelopmentConfig()
	}
	if cfg.LogLevel != "" {
		level, err := zapcore.ParseLevel(cfg.LogLevel)
		if err != nil {
			return nil, fmt.Errorf("invalid LOG_LEVEL %q: %w", cfg.LogLevel, err)
		}
		zc.Level = zap.NewAtomicLevelAt(level)
	}
	return zc.Build()
}

// New builds the App. Postgres is opened and migrated when DATABASE_URL is set.
func New(ctx context.Context, cfg *config.Config, clk clock.Clocker, logger *zap.Logger) (*App, error) {
	a := &App{logger: logger}

	var (
		users    repo.UserRepo
		sessions repo.SessionRepo
	)
	if cfg.DatabaseURL != "" {
		database, err := db.Open(ctx, cfg.DatabaseURL, logger)
		if err != nil {
			return nil, err
		}
		a.DB = database
		if err := db.Migrate(database); err != nil {
			a.Close()
			return nil, err
		}
		users = repo.NewUserRepo(database)
		sessions = repo.NewSessionRepo(database)
	} else {
		logger.Warn("DATABASE_URL not set; users and sessions are kept in memory")
		users = repo.NewMemoryUserRepo()
		sessions = repo.NewMemorySessionRepo()
	}

	otpRepo, err := a.otpRepo(ctx, cfg)
	if err != nil {
		a.Close()
		return nil, err
	}

	var sender sms.Sender
	if cfg.SMSGatewayConfigured() {
		sender = sms.NewGatewaySender(cfg.SMSGatewayAPIKey, cfg.SMSGatewayURL, cfg.SMSSenderID)
	} else {
		logger.Warn("SMS gateway not configured; OTP codes are written to the log")
		sender = sms.NewLogSender(logger)
	}

	validate, err := validation.New()
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("build validator: %w", err)
	}

	otpCfg := auth.OtpConfig{
		Length:      cfg.OTPLength,
		TTL:         cfg.OTPTTL,
		MaxAttempts: cfg.OTPMaxAttempts,
		ResendAfter: cfg.OTPResendAfter,
		DevMode:     cfg.DevMode,
		Salt:        cfg.OTPSalt,
	}
	jwtService := auth.NewJWTService(cfg.JWTSecret, cfg.AccessTokenTTL, clk)
	a.Service = auth.NewService(
		auth.NewIssuer(otpRepo, sender, clk, validate, logger, otpCfg),
		auth.NewVerifier(otpRepo, clk, validate, logger, otpCfg),
		auth.NewSessionManager(users, sessions, jwtService, clk, logger, cfg.SessionTTL),
		jwtService,
		users,
		validate,
		logger,
	)

	a.authHandler = handlers.NewAuthHandler(a.Service, clk, logger)
	a.Handler = httphandler.NewRouter(a.authHandler, a.Service, cfg.AllowedOrigins(), logger)
	return a, nil
}

func (a *App) otpRepo(ctx context.Context, cfg *config.Config) (repo.OtpRepo, error) {
	switch cfg.OTPStore {
	case config.StorePostgres:
		if a.DB == nil {
			return nil, fmt.Errorf("OTP_STORE=postgres requires DATABASE_URL")
		}
		return repo.NewOtpRepo(a.DB), nil
	case config.StoreRedis:
		opts, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			return nil, fmt.Errorf("invalid REDIS_URL: %w", err)
		}
		client := redis.NewClient(opts)
		pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		if err := client.Ping(pingCtx).Err(); err != nil {
			_ = client.Close()
			return nil, fmt.Errorf("failed to ping redis: %w", err)
		}
		a.redis = client
		a.logger.Info("using redis OTP store", zap.String("addr", opts.Addr))
		return repo.NewRedisOtpRepo(client), nil
	default:
		a.logger.Warn("using in-memory OTP store")
		return repo.NewMemoryOtpRepo(), nil
	}
}

// RunJanitor purges expired OTP requests every interval until ctx is done.
func (a *App) RunJanitor(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := a.Service.PurgeExpired(ctx)
			if err != nil {
				a.logger.Warn("failed to purge expired OTP requests", zap.Error(err))
				continue
			}
			if n > 0 {
				a.logger.Debug("purged expired OTP requests", zap.Int64("count", n))
			}
		}
	}
}

// Close releases the database, Redis and rate limiter resources.
func (a *App) Close() {
	if a.authHandler != nil {
		a.authHandler.Close()
	}
	if a.redis != nil {
		_ = a.redis.Close()
	}
	if a.DB != nil {
		_ = a.DB.Close()
	}
}
