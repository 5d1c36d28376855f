package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Server  ServerConfig  `yaml:"server"`
	Storage StorageConfig `yaml:"storage"`
	Signing SigningConfig `yaml:"signing"`
}

type ServerConfig struct {
	Addr     string `yaml:"addr"`
	LogLevel string `yaml:"log_level"`
}

type StorageConfig struct {
	Driver               string              `yaml:"driver"`
	Endpoint             string              `yaml:"endpoint"`
	Region               string              `yaml:"region"`
	AccessKeyID          string              `yaml:"access_key"`
	SecretAccessKey      string              `yaml:"secret_key"`
	AllowedBuckets       map[string]string   `yaml:"allowed_buckets"`
	AllowedIPs           map[string][]string `yaml:"allowed_ips"`
	EnableBucketPolicies bool                `yaml:"enable_bucket_policies"`
	UseSSL               bool                `yaml:"use_ssl"`
	AvatarBucket         string              `yaml:"avatar_bucket"`
}

// SigningConfig controls signed URL lifetimes and the signing request rate.
type SigningConfig struct {
	DefaultTTL  time.Duration `yaml:"default_ttl"`
	MaxTTL      time.Duration `yaml:"max_ttl"`
	Skew        time.Duration `yaml:"skew"`
	NegativeTTL time.Duration `yaml:"negative_ttl"`
	RateLimit   float64       `yaml:"rate_limit"`
	RateBurst   int           `yaml:"rate_burst"`
}

func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Addr:     ":8080",
			LogLevel: "info",
		},
		Storage: StorageConfig{
			Driver:          "minio",
			Endpoint:        "localhost:9000",
			Region:          "us-east-1",
			AccessKeyID:     "minioadmin",
			SecretAccessKey: "minioadmin",
			AllowedBuckets:  map[string]string{"avatars": "all"},
			AvatarBucket:    "avatars",
		},
		Signing: SigningConfig{
			DefaultTTL:  60 * time.Second,
			MaxTTL:      time.Hour,
			Skew:        10 * time.Second,
			NegativeTTL: 15 * time.Second,
			RateLimit:   50,
			RateBurst:   100,
		},
	}
}

// Load builds the configuration from defaults, then the YAML file at path
// (skipped when path is empty), then environment variables.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config file: %w", err)
		}
		// yaml merges into non-nil maps; a file's bucket list replaces the default.
		defaultBuckets := cfg.Storage.AllowedBuckets
		cfg.Storage.AllowedBuckets = nil
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config file %s: %w", path, err)
		}
		if cfg.Storage.AllowedBuckets == nil {
			cfg.Storage.AllowedBuckets = defaultBuckets
		}
	}

	if err := applyEnv(cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) Validate() error {
	switch c.Storage.Driver {
	case "minio", "s3":
	default:
		return fmt.Errorf("unknown storage driver %q", c.Storage.Driver)
	}
	if c.Signing.DefaultTTL <= 0 {
		return errors.New("signing default_ttl must be positive")
	}
	if c.Signing.MaxTTL < c.Signing.DefaultTTL {
		return errors.New("signing max_ttl must not be below default_ttl")
	}
	if c.Signing.Skew < 0 || c.Signing.NegativeTTL <= 0 {
		return errors.New("signing skew must be non-negative and negative_ttl positive")
	}
	if c.Signing.NegativeTTL >= c.Signing.DefaultTTL {
		return errors.New("signing negative_ttl must be shorter than default_ttl")
	}
	if c.Signing.Skew >= c.Signing.DefaultTTL {
		return errors.New("signing skew must be shorter than default_ttl")
	}
	if c.Signing.RateLimit <= 0 || c.Signing.RateBurst <= 0 {
		return errors.New("signing rate_limit and rate_burst must be positive")
	}
	return nil
}

func applyEnv(cfg *Config) error {
	cfg.Server.Addr = getEnv("SIGNET_ADDR", cfg.Server.Addr)
	cfg.Server.LogLevel = getEnv("LOG_LEVEL", cfg.Server.LogLevel)

	cfg.Storage.Driver = getEnv("STORAGE_DRIVER", cfg.Storage.Driver)
	cfg.Storage.Endpoint = getEnv("S3_ENDPOINT", cfg.Storage.Endpoint)
	cfg.Storage.Region = getEnv("S3_REGION", cfg.Storage.Region)
	cfg.Storage.AccessKeyID = getEnv("S3_ACCESS_KEY", cfg.Storage.AccessKeyID)
	cfg.Storage.SecretAccessKey = getEnv("S3_SECRET_KEY", cfg.Storage.SecretAccessKey)
	cfg.Storage.AvatarBucket = getEnv("AVATAR_BUCKET", cfg.Storage.AvatarBucket)
	cfg.Storage.UseSSL = getEnv("S3_USE_SSL", strconv.FormatBool(cfg.Storage.UseSSL)) == "true"
	cfg.Storage.EnableBucketPolicies = getEnv("ENABLE_BUCKET_POLICIES", strconv.FormatBool(cfg.Storage.EnableBucketPolicies)) == "true"

	if v := os.Getenv("ALLOWED_BUCKETS"); v != "" {
		buckets, err := parseBucketAccess(v)
		if err != nil {
			return err
		}
		cfg.Storage.AllowedBuckets = buckets
	}
	if v := os.Getenv("ALLOWED_IPS"); v != "" {
		ips, err := parseBucketIPs(v)
		if err != nil {
			return err
		}
		cfg.Storage.AllowedIPs = ips
	}

	var err error
	if cfg.Signing.DefaultTTL, err = getDuration("SIGN_DEFAULT_TTL", cfg.Signing.DefaultTTL); err != nil {
		return err
	}
	if cfg.Signing.MaxTTL, err = getDuration("SIGN_MAX_TTL", cfg.Signing.MaxTTL); err != nil {
		return err
	}
	if cfg.Signing.Skew, err = getDuration("SIGN_SKEW", cfg.Signing.Skew); err != nil {
		return err
	}
	if cfg.Signing.NegativeTTL, err = getDuration("SIGN_NEGATIVE_TTL", cfg.Signing.NegativeTTL); err != nil {
		return err
	}
	if v := os.Getenv("SIGN_RATE_LIMIT"); v != "" {
		if cfg.Signing.RateLimit, err = strconv.ParseFloat(v, 64); err != nil {
			return fmt.Errorf("SIGN_RATE_LIMIT: %w", err)
		}
	}
	if v := os.Getenv("SIGN_RATE_BURST"); v != "" {
		if cfg.Signing.RateBurst, err = strconv.Atoi(v); err != nil {
			return fmt.Errorf("SIGN_RATE_BURST: %w", err)
		}
	}
	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getDuration(key string, defaultValue time.Duration) (time.Duration, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return d, nil
}

// parseBucketAccess reads "bucket:level,bucket:level" where level is read,
// write or all.
func parseBucketAccess(policy string) (map[string]string, error) {
	bucketAccess := make(map[string]string)
	pairs := strings.Split(policy, ",")
	for _, pair := range pairs {
		parts := strings.Split(pair, ":")
		if len(parts) != 2 {
			return nil, errors.New("invalid bucket access policy format")
		}
		bucketName := strings.TrimSpace(parts[0])
		accessLevel := strings.TrimSpace(parts[1])
		if bucketName == "" || accessLevel == "" {
			return nil, errors.New("bucket name or access level cannot be empty")
		}
		switch accessLevel {
		case "read", "write", "all":
		default:
			return nil, fmt.Errorf("unknown access level %q for bucket %s", accessLevel, bucketName)
		}
		bucketAccess[bucketName] = accessLevel
	}
	return bucketAccess, nil
}

// parseBucketIPs reads "bucket=prefix|prefix,bucket=prefix".
func parseBucketIPs(policy string) (map[string][]string, error) {
	bucketIPs := make(map[string][]string)
	for _, pair := range strings.Split(policy, ",") {
		bucketName, prefixes, ok := strings.Cut(pair, "=")
		bucketName = strings.TrimSpace(bucketName)
		if !ok || bucketName == "" || strings.TrimSpace(prefixes) == "" {
			return nil, errors.New("invalid bucket ip policy format")
		}
		for _, prefix := range strings.Split(prefixes, "|") {
			if prefix = strings.TrimSpace(prefix); prefix != "" {
				bucketIPs[bucketName] = append(bucketIPs[bucketName], prefix)
			}
		}
	}
	return bucketIPs, nil
}
