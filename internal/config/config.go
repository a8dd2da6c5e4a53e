package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds application configuration
type Config struct {
	Server    ServerConfig
	MongoDB   MongoDBConfig
	Redis     RedisConfig
	JWT       JWTConfig
	RateLimit RateLimitConfig
	Session   SessionConfig
	Cookie    CookieConfig
	Security  SecurityConfig
	Media     MediaConfig
	CORS      CORSConfig
	LogLevel  string
}

type ServerConfig struct {
	Port         string
	Host         string
	Environment  string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

type MongoDBConfig struct {
	URI      string
	Database string
	Timeout  time.Duration
}

type RedisConfig struct {
	Host     string
	Port     string
	Password string
	DB       int
}

// Enabled reports whether a Redis host was configured.
func (r RedisConfig) Enabled() bool { return r.Host != "" }

func (r RedisConfig) Addr() string { return r.Host + ":" + r.Port }

type JWTConfig struct {
	AccessSecret    string
	RefreshSecret   string
	AccessTokenTTL  time.Duration
	RefreshTokenTTL time.Duration
}

// Route names used for per-route rate limits.
const (
	RouteRegister       = "register"
	RouteLogin          = "login"
	RouteRefresh        = "refresh"
	RouteLogout         = "logout"
	RouteChangePassword = "change_password"
	RouteProfile        = "profile"
	RouteUpdateProfile  = "update_profile"
	RouteUpdateMedia    = "update_media"
)

var defaultRouteMax = map[string]int{
	RouteRegister:       5,
	RouteLogin:          10,
	RouteRefresh:        5,
	RouteLogout:         3,
	RouteChangePassword: 3,
	RouteProfile:        30,
	RouteUpdateProfile:  10,
	RouteUpdateMedia:    5,
}

type RateLimitConfig struct {
	Backend string // memory | redis
	Window  time.Duration
	Max     map[string]int
}

// MaxFor returns the configured request allowance for route, falling back to 10.
func (r RateLimitConfig) MaxFor(route string) int {
	if n, ok := r.Max[route]; ok && n > 0 {
		return n
	}
	return 10
}

type SessionConfig struct {
	Store string // mongo | redis
}

type CookieConfig struct {
	Secure bool
	Domain string
}

type SecurityConfig struct {
	BcryptCost    int
	JSONBodyLimit int64
	MultipartMax  int64
}

type MediaConfig struct {
	BreakerTimeout      time.Duration
	BreakerMinRequests  uint32
	BreakerFailureRatio float64
}

type CORSConfig struct {
	Origin string
}

// LoadConfig loads configuration from environment variables and an optional
// .env file. Missing or inconsistent required values are returned as errors.
func LoadConfig() (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.AutomaticEnv()

	v.SetDefault("SERVER_PORT", "8000")
	v.SetDefault("SERVER_HOST", "0.0.0.0")
	v.SetDefault("SERVER_ENVIRONMENT", "development")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("MONGODB_DATABASE", "users")
	v.SetDefault("MONGODB_TIMEOUT", 10)
	v.SetDefault("REDIS_PORT", "6379")
	v.SetDefault("REDIS_DB", 0)
	v.SetDefault("ACCESS_TOKEN_TTL", 15)
	v.SetDefault("REFRESH_TOKEN_TTL", 14400)
	v.SetDefault("RATE_LIMIT_BACKEND", "memory")
	v.SetDefault("RATE_LIMIT_WINDOW_SECONDS", 60)
	v.SetDefault("SESSION_STORE", "mongo")
	v.SetDefault("COOKIE_SECURE", true)
	v.SetDefault("BCRYPT_COST", 10)
	v.SetDefault("JSON_BODY_LIMIT_BYTES", 20*1024)
	v.SetDefault("MULTIPART_MAX_BYTES", 8<<20)
	v.SetDefault("MEDIA_BREAKER_TIMEOUT_SECONDS", 30)
	v.SetDefault("MEDIA_BREAKER_MIN_REQUESTS", 3)
	v.SetDefault("MEDIA_BREAKER_FAILURE_RATIO", 0.6)
	v.SetDefault("CORS_ORIGIN", "http://localhost:3000")
	for route, n := range defaultRouteMax {
		v.SetDefault(routeKey(route), n)
	}

	cfg := &Config{
		Server: ServerConfig{
			Port:         v.GetString("SERVER_PORT"),
			Host:         v.GetString("SERVER_HOST"),
			Environment:  v.GetString("SERVER_ENVIRONMENT"),
			ReadTimeout:  30 * time.Second,
			WriteTimeout: 30 * time.Second,
		},
		MongoDB: MongoDBConfig{
			URI:      v.GetString("MONGODB_URI"),
			Database: v.GetString("MONGODB_DATABASE"),
			Timeout:  time.Duration(v.GetInt("MONGODB_TIMEOUT")) * time.Second,
		},
		Redis: RedisConfig{
			Host:     v.GetString("REDIS_HOST"),
			Port:     v.GetString("REDIS_PORT"),
			Password: v.GetString("REDIS_PASSWORD"),
			DB:       v.GetInt("REDIS_DB"),
		},
		JWT: JWTConfig{
			AccessSecret:    v.GetString("ACCESS_TOKEN_SECRET"),
			RefreshSecret:   v.GetString("REFRESH_TOKEN_SECRET"),
			AccessTokenTTL:  time.Duration(v.GetInt("ACCESS_TOKEN_TTL")) * time.Minute,
			RefreshTokenTTL: time.Duration(v.GetInt("REFRESH_TOKEN_TTL")) * time.Minute,
		},
		RateLimit: RateLimitConfig{
			Backend: strings.ToLower(v.GetString("RATE_LIMIT_BACKEND")),
			Window:  time.Duration(v.GetInt("RATE_LIMIT_WINDOW_SECONDS")) * time.Second,
			Max:     make(map[string]int, len(defaultRouteMax)),
		},
		Session:  SessionConfig{Store: strings.ToLower(v.GetString("SESSION_STORE"))},
		Cookie:   CookieConfig{Secure: v.GetBool("COOKIE_SECURE"), Domain: v.GetString("COOKIE_DOMAIN")},
		Security: SecurityConfig{
			BcryptCost:    v.GetInt("BCRYPT_COST"),
			JSONBodyLimit: v.GetInt64("JSON_BODY_LIMIT_BYTES"),
			MultipartMax:  v.GetInt64("MULTIPART_MAX_BYTES"),
		},
		Media: MediaConfig{
			BreakerTimeout:      time.Duration(v.GetInt("MEDIA_BREAKER_TIMEOUT_SECONDS")) * time.Second,
			BreakerMinRequests:  v.GetUint32("MEDIA_BREAKER_MIN_REQUESTS"),
			BreakerFailureRatio: v.GetFloat64("MEDIA_BREAKER_FAILURE_RATIO"),
		},
		CORS:     CORSConfig{Origin: v.GetString("CORS_ORIGIN")},
		LogLevel: v.GetString("LOG_LEVEL"),
	}
	for route := range defaultRouteMax {
		cfg.RateLimit.Max[route] = v.GetInt(routeKey(route))
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func routeKey(route string) string {
	return "RATE_LIMIT_" + strings.ToUpper(route) + "_MAX"
}

func (c *Config) validate() error {
	var errs []error
	if c.MongoDB.URI == "" {
		errs = append(errs, errors.New("MONGODB_URI is required"))
	}
	if c.JWT.AccessSecret == "" {
		errs = append(errs, errors.New("ACCESS_TOKEN_SECRET is required"))
	}
	if c.JWT.RefreshSecret == "" {
		errs = append(errs, errors.New("REFRESH_TOKEN_SECRET is required"))
	}
	if c.JWT.AccessSecret != "" && c.JWT.AccessSecret == c.JWT.RefreshSecret {
		errs = append(errs, errors.New("ACCESS_TOKEN_SECRET and REFRESH_TOKEN_SECRET must differ"))
	}
	if c.JWT.AccessTokenTTL <= 0 || c.JWT.RefreshTokenTTL <= 0 {
		errs = append(errs, errors.New("token TTLs must be positive"))
	}
	if c.RateLimit.Window <= 0 {
		errs = append(errs, errors.New("RATE_LIMIT_WINDOW_SECONDS must be positive"))
	}
	switch c.RateLimit.Backend {
	case "memory":
	case "redis":
		if !c.Redis.Enabled() {
			errs = append(errs, errors.New("RATE_LIMIT_BACKEND=redis requires REDIS_HOST"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown RATE_LIMIT_BACKEND %q", c.RateLimit.Backend))
	}
	switch c.Session.Store {
	case "mongo":
	case "redis":
		if !c.Redis.Enabled() {
			errs = append(errs, errors.New("SESSION_STORE=redis requires REDIS_HOST"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown SESSION_STORE %q", c.Session.Store))
	}
	return errors.Join(errs...)
}

// IsProduction reports whether the service runs in production mode.
func (c *Config) IsProduction() bool {
	return strings.EqualFold(c.Server.Environment, "production")
}
