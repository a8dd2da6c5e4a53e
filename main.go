package main

import (
	"context"
	"errors"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/sony/gobreaker"
	"github.com/tubeline/user-service/handlers"
	"github.com/tubeline/user-service/internal/config"
	"github.com/tubeline/user-service/internal/database"
	"github.com/tubeline/user-service/internal/password"
	"github.com/tubeline/user-service/internal/ratelimit"
	"github.com/tubeline/user-service/internal/sessions"
	"github.com/tubeline/user-service/internal/storage"
	"github.com/tubeline/user-service/internal/tokens"
	"github.com/tubeline/user-service/internal/users"
	"github.com/tubeline/user-service/pkg/logger"
	"github.com/tubeline/user-service/pkg/metrics"
	"github.com/tubeline/user-service/pkg/middleware"
)

func main() {
	logger.Init(os.Getenv("LOG_LEVEL"))

	cfg, err := config.LoadConfig()
	if err != nil {
		logger.Fatalf("failed to load config: %v", err)
	}
	logger.Init(cfg.LogLevel)
	logger.UseJSON(cfg.IsProduction())
	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}
	logger.Infof("config loaded: env=%s redis=%v rate_limit=%s session_store=%s", cfg.Server.Environment, cfg.Redis.Enabled(), cfg.RateLimit.Backend, cfg.Session.Store)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	client, err := database.ConnectMongoRetry(ctx, cfg.MongoDB.URI, cfg.MongoDB.Timeout, 5, time.Second)
	if err != nil {
		logger.Fatalf("could not connect to MongoDB: %v", err)
	}
	defer func() { _ = client.Disconnect(context.Background()) }()

	repo := users.NewMongoUserRepository(client.Database(cfg.MongoDB.Database).Collection("users"))
	if err := repo.EnsureIndexes(ctx); err != nil {
		logger.Fatalf("failed to create user indexes: %v", err)
	}

	var rdb *redis.Client
	if cfg.Redis.Enabled() {
		rdb = redis.NewClient(&redis.Options{Addr: cfg.Redis.Addr(), Password: cfg.Redis.Password, DB: cfg.Redis.DB})
		defer func() { _ = rdb.Close() }()
		if err := rdb.Ping(ctx).Err(); err != nil {
			logger.Warnf("redis ping failed (%s): %v", cfg.Redis.Addr(), err)
		} else {
			logger.Infof("connected to Redis: %s", cfg.Redis.Addr())
		}
	}

	access, err := tokens.NewCodec(tokens.Access, cfg.JWT.AccessSecret, cfg.JWT.AccessTokenTTL)
	if err != nil {
		logger.Fatalf("access token codec: %v", err)
	}
	refresh, err := tokens.NewCodec(tokens.Refresh, cfg.JWT.RefreshSecret, cfg.JWT.RefreshTokenTTL)
	if err != nil {
		logger.Fatalf("refresh token codec: %v", err)
	}

	var binding sessions.Binding = repo
	if cfg.Session.Store == "redis" {
		binding = sessions.NewRedisBinding(rdb, "session:", cfg.JWT.RefreshTokenTTL)
		logger.Infof("using Redis for refresh token storage")
	}
	sessionSvc := sessions.NewService(binding, repo, access, refresh)

	// the denylist needs Redis; without it logout only revokes the refresh token
	var gateDenylist middleware.AccessDenylist
	var logoutDenylist handlers.AccessDenier
	if rdb != nil {
		d := sessions.NewDenylist(rdb)
		gateDenylist, logoutDenylist = d, d
	}

	media, mediaCheck := buildMedia(ctx, cfg)
	userSvc := users.NewService(repo, sessionSvc, media, password.NewBcrypt(cfg.Security.BcryptCost))

	factory := ratelimit.NewFactory(nil)
	if cfg.RateLimit.Backend == "redis" {
		factory = ratelimit.NewFactory(ratelimit.NewRedisCounter(rdb))
	}
	limits := handlers.NewRouteLimits(factory, func(route string) ratelimit.Policy {
		return ratelimit.Policy{Max: cfg.RateLimit.MaxFor(route), Window: cfg.RateLimit.Window}
	})

	r := gin.New()
	r.MaxMultipartMemory = cfg.Security.MultipartMax
	r.Use(
		gin.Recovery(),
		middleware.RequestLogger(),
		middleware.CORS(cfg.CORS.Origin),
		middleware.BodyLimit(cfg.Security.JSONBodyLimit, cfg.Security.MultipartMax),
	)

	gate := middleware.NewGate(access, refresh, repo, binding, gateDenylist)
	handlers.NewUserHandler(userSvc, logoutDenylist, handlers.CookieOptions{
		Secure:     cfg.Cookie.Secure,
		Domain:     cfg.Cookie.Domain,
		AccessTTL:  cfg.JWT.AccessTokenTTL,
		RefreshTTL: cfg.JWT.RefreshTokenTTL,
	}).Register(r.Group("/api/v1"), gate, limits.Middleware)
	if n := limits.StartSweepers(ctx, cfg.RateLimit.Window); n > 0 {
		logger.Debugf("started %d rate limit sweepers", n)
	}

	checks := map[string]handlers.Check{
		"mongo": func(ctx context.Context) error { return client.Ping(ctx, nil) },
		"media": mediaCheck,
	}
	if rdb != nil {
		checks["redis"] = func(ctx context.Context) error { return rdb.Ping(ctx).Err() }
	}
	handlers.NewHealth(checks).Register(r)
	handlers.RegisterSwagger(r)

	metrics.RegisterCollectors(prometheus.DefaultRegisterer)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	srv := &http.Server{
		Addr:              net.JoinHostPort(cfg.Server.Host, cfg.Server.Port),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       cfg.Server.ReadTimeout,
		WriteTimeout:      cfg.Server.WriteTimeout,
	}
	go func() {
		logger.Infof("starting user service on %s", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatalf("server failed: %v", err)
		}
	}()

	<-ctx.Done()
	logger.Infof("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Warnf("graceful shutdown failed: %v", err)
	}
}

// buildMedia returns MinIO storage when configured and in-process storage
// otherwise, behind a circuit breaker, plus its readiness check.
func buildMedia(ctx context.Context, cfg *config.Config) (*storage.BreakerMedia, handlers.Check) {
	var backend storage.Media
	ping := func(context.Context) error { return nil }

	if mc := storage.LoadMinIOConfig(); mc.Enabled() {
		m, err := storage.NewMinIOStorage(ctx, mc)
		if err != nil {
			logger.Fatalf("failed to initialize MinIO storage: %v", err)
		}
		backend, ping = m, m.Ping
		logger.Infof("media stored in MinIO bucket %s", mc.Bucket)
	} else {
		logger.Warnf("MINIO_ENDPOINT not set: media is kept in memory and lost on restart")
		backend = storage.NewMemoryMedia("")
	}

	bm := storage.NewBreakerMedia(backend, storage.BreakerSettings{
		Name:         "media",
		Timeout:      cfg.Media.BreakerTimeout,
		MinRequests:  cfg.Media.BreakerMinRequests,
		FailureRatio: cfg.Media.BreakerFailureRatio,
	})
	check := func(ctx context.Context) error {
		if bm.State() == gobreaker.StateOpen {
			return storage.ErrUnavailable
		}
		return ping(ctx)
	}
	return bm, check
}
