// @title           English Adventure User Service API
// @version         1.0
// @description     Accounts, progression and leaderboard for the English Adventure game.
// @BasePath        /api
//
// @securityDefinitions.apikey BearerAuth
// @in                         header
// @name                       Authorization
// @description                Type "Bearer" followed by a space and the JWT.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog"

	"github.com/englishadventure/user-service/internal/api"
	"github.com/englishadventure/user-service/internal/api/handler"
	"github.com/englishadventure/user-service/internal/api/middleware"
	"github.com/englishadventure/user-service/internal/auth"
	"github.com/englishadventure/user-service/internal/core/ports"
	"github.com/englishadventure/user-service/internal/core/service"
	"github.com/englishadventure/user-service/internal/infrastructure/config"
	"github.com/englishadventure/user-service/internal/infrastructure/db/mongo"
	"github.com/englishadventure/user-service/internal/infrastructure/db/postgres"
	"github.com/englishadventure/user-service/internal/infrastructure/db/redis"
	"github.com/englishadventure/user-service/internal/infrastructure/messaging"
	"github.com/englishadventure/user-service/internal/infrastructure/messaging/rabbitmq"
	"github.com/englishadventure/user-service/internal/infrastructure/queue"
	"github.com/englishadventure/user-service/pkg/logger"
)

const serviceName = "user-service"

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "%s: %v\n", serviceName, err)
		os.Exit(1)
	}
}

func run(ctx context.Context) error {
	cfg, err := config.Load(ctx)
	if err != nil {
		return err
	}

	log := logger.Init(logger.Options{
		Level:   cfg.LogLevel,
		Pretty:  cfg.IsDevelopment(),
		Service: serviceName,
	})

	// --- Storage ---
	repo, storeCheck, closeStore, err := openStore(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer closeStore()

	redisClient, err := redis.Connect(ctx, redis.Config{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
		PoolSize: cfg.Redis.PoolSize,
		Timeout:  cfg.Redis.Timeout,
	})
	if err != nil {
		return err
	}
	defer redisClient.Close()
	idempotency := redis.NewIdempotencyStore(redisClient, cfg.Redis.IdempotencyTTL)

	checks := []handler.DependencyCheck{
		storeCheck,
		{Name: "redis", Ping: func(ctx context.Context) error { return redisClient.Ping(ctx).Err() }},
	}

	// --- Events ---
	var downstream ports.EventPublisher = messaging.NewLogPublisher(log)
	if cfg.RabbitMQ.URL != "" {
		broker, err := rabbitmq.Dial(rabbitmq.Config{URL: cfg.RabbitMQ.URL, Queue: cfg.RabbitMQ.Queue}, log)
		if err != nil {
			return err
		}
		defer func() {
			if err := broker.Close(); err != nil {
				log.Warn().Err(err).Msg("rabbitmq close")
			}
		}()
		downstream = broker
		checks = append(checks, handler.DependencyCheck{Name: "rabbitmq", Ping: broker.Ping})
	} else {
		log.Warn().Msg("RABBITMQ_URL not set, account events are only logged")
	}

	// Workers flush their queues once the HTTP server has stopped accepting requests.
	workerCtx, stopWorkers := context.WithCancel(context.Background())
	dispatcher := queue.NewDispatcher(cfg.Events.Workers, downstream, log)
	dispatcher.Start(workerCtx)
	defer func() {
		stopWorkers()
		dispatcher.Wait()
	}()

	// --- Services ---
	tokens := auth.NewTokenIssuer(cfg.Auth.JWTSecret, cfg.Auth.TokenTTL)
	authService := service.NewAuthService(repo, tokens, dispatcher, cfg.Auth.BcryptCost, log)
	accountService := service.NewAccountService(repo, idempotency, dispatcher, log)

	loginLimiter := middleware.NewRateLimiter(cfg.RateLimit.LoginPerSecond, cfg.RateLimit.LoginBurst, log)
	go loginLimiter.Run(ctx)

	e := api.NewRouter(api.Deps{
		Log:            log,
		APIPrefix:      cfg.APIPrefix,
		AuthService:    authService,
		AccountService: accountService,
		Tokens:         tokens,
		LoginLimiter:   loginLimiter,
		Readiness:      checks,
	})

	// --- Serve ---
	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("port", cfg.Port).Str("storage", cfg.StorageDriver).Msg("starting server")
		if err := e.Start(":" + cfg.Port); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server: %w", err)
		}
	case <-ctx.Done():
	}

	log.Info().Dur("timeout", cfg.ShutdownTimeout).Msg("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}

// openStore connects the account store selected by STORAGE_DRIVER and
// prepares its schema.
func openStore(ctx context.Context, cfg *config.Config, log zerolog.Logger) (ports.AccountRepository, handler.DependencyCheck, func(), error) {
	switch cfg.StorageDriver {
	case config.DriverPostgres:
		db, err := postgres.Connect(ctx, postgres.Config{DSN: cfg.Postgres.DSN})
		if err != nil {
			return nil, handler.DependencyCheck{}, nil, err
		}
		if err := postgres.Migrate(ctx, db); err != nil {
			_ = db.Close()
			return nil, handler.DependencyCheck{}, nil, err
		}
		log.Info().Msg("postgres migrations applied")

		check := handler.DependencyCheck{Name: "postgres", Ping: db.PingContext}
		closeFn := func() {
			if err := db.Close(); err != nil {
				log.Warn().Err(err).Msg("postgres close")
			}
		}
		return postgres.NewAccountRepository(db), check, closeFn, nil

	default:
		client, db, err := mongo.Connect(ctx, mongo.Config{
			URI:         cfg.Mongo.URI,
			Database:    cfg.Mongo.Database,
			Timeout:     cfg.Mongo.Timeout,
			MaxPoolSize: cfg.Mongo.MaxPoolSize,
			MinPoolSize: cfg.Mongo.MinPoolSize,
		})
		if err != nil {
			return nil, handler.DependencyCheck{}, nil, err
		}
		repo := mongo.NewAccountRepository(db)
		if err := repo.EnsureIndexes(ctx); err != nil {
			_ = client.Disconnect(context.Background())
			return nil, handler.DependencyCheck{}, nil, err
		}

		check := handler.DependencyCheck{Name: "mongo", Ping: func(ctx context.Context) error {
			return client.Ping(ctx, nil)
		}}
		closeFn := func() {
			if err := client.Disconnect(context.Background()); err != nil {
				log.Warn().Err(err).Msg("mongo disconnect")
			}
		}
		return repo, check, closeFn, nil
	}
}
