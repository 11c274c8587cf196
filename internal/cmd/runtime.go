package cmd

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"

	"github.com/legaltrack/pjnsync/internal/config"
	"github.com/legaltrack/pjnsync/internal/logging"
	"github.com/legaltrack/pjnsync/internal/store"
)

// runtime bundles the pieces every long-running command needs: the loaded
// configuration, a logger and a connected store.
type runtime struct {
	cfg    *config.Config
	log    *logging.Logger
	store  store.Store
	client *mongo.Client
}

func newRuntime(ctx context.Context) (*runtime, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}

	log, err := logging.NewLogger(cfg.Logging.File, cfg.Logging.Level)
	if err != nil {
		return nil, fmt.Errorf("failed to open log output: %w", err)
	}

	timeout := time.Duration(cfg.Mongo.ConnectTimeoutSeconds) * time.Second
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	connectCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	client, err := mongo.Connect(connectCtx, options.Client().ApplyURI(cfg.Mongo.URI))
	if err != nil {
		_ = log.Close()
		return nil, fmt.Errorf("failed to connect to mongodb: %w", err)
	}
	if err := client.Ping(connectCtx, readpref.Primary()); err != nil {
		_ = client.Disconnect(context.Background())
		_ = log.Close()
		return nil, fmt.Errorf("mongodb unreachable at %s: %w", cfg.Mongo.URI, err)
	}

	return &runtime{
		cfg:    cfg,
		log:    log,
		store:  store.NewMongo(client.Database(cfg.Mongo.Database)),
		client: client,
	}, nil
}

func (r *runtime) close() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := r.client.Disconnect(ctx); err != nil {
		r.log.Warn("mongodb disconnect failed", "error", err.Error())
	}
	_ = r.log.Close()
}
