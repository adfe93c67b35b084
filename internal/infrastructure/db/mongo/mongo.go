package mongo

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const (
	defaultTimeout     = 10 * time.Second
	defaultMaxPoolSize = 100
	appName            = "user-service"
)

// Config holds the account store connection settings.
type Config struct {
	URI         string
	Database    string
	Timeout     time.Duration
	MaxPoolSize uint64
	MinPoolSize uint64
}

func (c Config) timeout() time.Duration {
	if c.Timeout <= 0 {
		return defaultTimeout
	}
	return c.Timeout
}

// clientOptions translates cfg into driver options. Timeout also bounds
// server selection and socket connects so a dead cluster fails fast.
func clientOptions(cfg Config) *options.ClientOptions {
	maxPool := cfg.MaxPoolSize
	if maxPool == 0 {
		maxPool = defaultMaxPoolSize
	}
	minPool := cfg.MinPoolSize
	if minPool > maxPool {
		minPool = maxPool
	}

	return options.Client().
		ApplyURI(cfg.URI).
		SetAppName(appName).
		SetMaxPoolSize(maxPool).
		SetMinPoolSize(minPool).
		SetServerSelectionTimeout(cfg.timeout()).
		SetConnectTimeout(cfg.timeout())
}

// Connect opens the client, pings the primary and returns the account database.
func Connect(ctx context.Context, cfg Config) (*mongo.Client, *mongo.Database, error) {
	connectCtx, cancel := context.WithTimeout(ctx, cfg.timeout())
	defer cancel()

	client, err := mongo.Connect(connectCtx, clientOptions(cfg))
	if err != nil {
		return nil, nil, fmt.Errorf("mongo connect: %w", err)
	}

	if err := client.Ping(connectCtx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, nil, fmt.Errorf("mongo ping %s: %w", cfg.Database, err)
	}

	return client, client.Database(cfg.Database), nil
}
