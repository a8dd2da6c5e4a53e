package storage

import (
	"os"
	"strconv"
	"time"
)

// MinIOConfig holds MinIO connection configuration
type MinIOConfig struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	UseSSL    bool
	Bucket    string
	Prefix    string
	// PublicURL, when set, is used to build asset URLs instead of presigning.
	PublicURL  string
	PresignTTL time.Duration
}

// Enabled reports whether an endpoint was configured.
func (c *MinIOConfig) Enabled() bool { return c != nil && c.Endpoint != "" }

// LoadMinIOConfig loads MinIO config from environment
func LoadMinIOConfig() *MinIOConfig {
	ttl := 7 * 24 * time.Hour
	if h, err := strconv.Atoi(os.Getenv("MINIO_PRESIGN_TTL_HOURS")); err == nil && h > 0 {
		ttl = time.Duration(h) * time.Hour
	}
	return &MinIOConfig{
		Endpoint:   os.Getenv("MINIO_ENDPOINT"),
		AccessKey:  os.Getenv("MINIO_ACCESS_KEY"),
		SecretKey:  os.Getenv("MINIO_SECRET_KEY"),
		UseSSL:     os.Getenv("MINIO_USE_SSL") == "true",
		Bucket:     getEnv("MINIO_BUCKET", "user-media"),
		Prefix:     getEnv("MINIO_PREFIX", "users/"),
		PublicURL:  os.Getenv("MINIO_PUBLIC_URL"),
		PresignTTL: ttl,
	}
}

func getEnv(k, d string) string {
	v := os.Getenv(k)
	if v == "" {
		return d
	}
	return v
}
