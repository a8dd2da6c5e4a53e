// Command userctl runs maintenance tasks against the user service stores.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/redis/go-redis/v9"
	"github.com/tubeline/user-service/internal/config"
	"github.com/tubeline/user-service/internal/database"
	"github.com/tubeline/user-service/internal/sessions"
	"github.com/tubeline/user-service/internal/users"
	"github.com/tubeline/user-service/pkg/logger"
)

func main() {
	logger.Init(os.Getenv("LOG_LEVEL"))
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd(openStores).ExecuteContext(ctx); err != nil {
		logger.Errorf("%v", err)
		stop()
		os.Exit(1)
	}
}

// openStores connects to the same stores as the service.
func openStores(ctx context.Context) (*env, error) {
	cfg, err := config.LoadConfig()
	if err != nil {
		return nil, err
	}
	client, err := database.ConnectMongo(ctx, cfg.MongoDB.URI, cfg.MongoDB.Timeout)
	if err != nil {
		return nil, err
	}
	repo := users.NewMongoUserRepository(client.Database(cfg.MongoDB.Database).Collection("users"))
	e := &env{
		users:   repo,
		binding: repo,
		indexes: repo.EnsureIndexes,
		close:   func() { _ = client.Disconnect(context.Background()) },
	}
	if cfg.Session.Store == "redis" {
		rdb := redis.NewClient(&redis.Options{Addr: cfg.Redis.Addr(), Password: cfg.Redis.Password, DB: cfg.Redis.DB})
		e.binding = sessions.NewRedisBinding(rdb, "session:", cfg.JWT.RefreshTokenTTL)
		e.close = func() {
			_ = rdb.Close()
			_ = client.Disconnect(context.Background())
		}
	}
	return e, nil
}
