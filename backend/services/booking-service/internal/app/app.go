package app

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/poofware/homeservices/backend/services/booking-service/internal/config"
	"github.com/poofware/homeservices/backend/services/booking-service/internal/locks"
	"github.com/poofware/homeservices/backend/shared/go-repositories"
	"github.com/poofware/homeservices/backend/shared/go-utils"
	"github.com/redis/go-redis/v9"
)

const (
	maxRetries     = 5
	connectTimeout = 5 * time.Second
	initialBackoff = 500 * time.Millisecond
)

// App holds the process-wide connections. DB and Redis are optional; without
// them the service falls back to in-memory audit rows and poll locks.
type App struct {
	Config *config.Config
	DB     *pgxpool.Pool
	Redis  *redis.Client
}

func NewApp(cfg *config.Config) (*App, error) {
	app := &App{Config: cfg}

	if cfg.DBUrl != "" {
		pool, err := connectDB(cfg.DBUrl)
		if err != nil {
			return nil, err
		}
		app.DB = pool
	} else {
		utils.Logger.Warn("DB_URL not set; booking audit kept in memory only.")
	}

	if cfg.RedisAddr != "" {
		client := locks.NewRedisClient(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
		ctx, cancel := context.WithTimeout(context.Background(), connectTimeout)
		defer cancel()
		if err := client.Ping(ctx).Err(); err != nil {
			_ = client.Close()
			app.Close()
			return nil, fmt.Errorf("failed to ping Redis: %w", err)
		}
		utils.Logger.Info("booking-service connected to Redis")
		app.Redis = client
	} else {
		utils.Logger.Warn("REDIS_ADDR not set; poll locks are process-local.")
	}

	return app, nil
}

// AuditRepository picks the Postgres repository when a DB is configured.
func (a *App) AuditRepository() repositories.BookingAuditRepository {
	if a.DB != nil {
		return repositories.NewBookingAuditRepository(a.DB)
	}
	return repositories.NewMemoryBookingAuditRepository()
}

// PollLock picks the Redis lock when Redis is configured.
func (a *App) PollLock() locks.PollLock {
	if a.Redis != nil {
		return locks.NewRedisPollLock(a.Redis)
	}
	return locks.NewMemoryPollLock()
}

// Ping checks the optional dependencies that are configured.
func (a *App) Ping(ctx context.Context) error {
	if a.DB != nil {
		if err := a.DB.Ping(ctx); err != nil {
			return fmt.Errorf("database: %w", err)
		}
	}
	if a.Redis != nil {
		if err := a.Redis.Ping(ctx).Err(); err != nil {
			return fmt.Errorf("redis: %w", err)
		}
	}
	return nil
}

func (a *App) Close() {
	if a.DB != nil {
		a.DB.Close()
		utils.Logger.Info("booking-service DB connection closed.")
	}
	if a.Redis != nil {
		_ = a.Redis.Close()
		utils.Logger.Info("booking-service Redis connection closed.")
	}
}

func connectDB(databaseURL string) (*pgxpool.Pool, error) {
	var (
		dbPool  *pgxpool.Pool
		err     error
		backoff = initialBackoff
	)

	for i := 1; i <= maxRetries; i++ {
		ctx, cancel := context.WithTimeout(context.Background(), connectTimeout)
		dbPool, err = newDBPool(ctx, databaseURL)
		cancel()
		if err == nil {
			utils.Logger.Infof("booking-service connected to DB on attempt %d", i)
			return dbPool, nil
		}

		utils.Logger.WithError(err).Warnf(
			"Failed DB connect on attempt %d/%d. Retrying in %v...",
			i, maxRetries, backoff,
		)

		if i == maxRetries {
			break
		}
		time.Sleep(backoff)
		backoff *= 2
	}
	return nil, fmt.Errorf("unable to connect after %d attempts: %w", maxRetries, err)
}

func newDBPool(ctx context.Context, databaseURL string) (*pgxpool.Pool, error) {
	cfg, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, err
	}
	cfg.MaxConnIdleTime = 2 * time.Minute
	cfg.HealthCheckPeriod = 30 * time.Second
	return pgxpool.ConnectConfig(ctx, cfg)
}
