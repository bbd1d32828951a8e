// Package config builds the service configuration from environment variables.
//
// A .env file in the working directory is loaded first when present, so local
// runs and docker-compose share one set of keys. Every value has a default
// suitable for a single-node dev setup; production overrides them.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"

	pstrings "farmshield/pkg/platform/strings"
)

// Config is the full service configuration.
type Config struct {
	Environment  string
	Server       Server
	Database     DatabaseConfig
	Redis        RedisConfig
	Auth         AuthConfig
	OTP          OTPConfig
	Policy       PolicyConfig
	Claims       ClaimsConfig
	Assessor     AssessorConfig
	Storage      StorageConfig
	Sensor       SensorConfig
	Kafka        KafkaConfig
	SMS          SMSConfig
	Notification NotificationConfig
	RateLimit    RateLimitConfig
	Log          LogConfig
}

// Server captures HTTP server level configuration.
type Server struct {
	Addr            string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration
	RequestTimeout  time.Duration
}

// DatabaseConfig selects the persistence backend. An empty URL runs the
// in-memory stores.
type DatabaseConfig struct {
	URL             string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	TxTimeout       time.Duration
	AutoMigrate     bool
}

// RedisConfig configures the session revocation list. An empty URL keeps
// revocations in memory.
type RedisConfig struct {
	URL          string
	PoolSize     int
	MinIdleConns int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// AuthConfig configures session tokens and official login.
type AuthConfig struct {
	JWTSigningKey     string
	Issuer            string
	AccessTokenTTL    time.Duration
	RefreshTokenTTL   time.Duration
	RegistrationTTL   time.Duration
	SeedOfficialsFile string
}

// OTPConfig configures the one-time-password gate.
type OTPConfig struct {
	TTL time.Duration
	// FixedCode, when set, replaces random generation (demo and test deployments only).
	FixedCode      string
	IssuePerMinute float64
	IssueBurst     int
	PurgeInterval  time.Duration
	SenderMode     string // "sms" or "log"
}

// PolicyConfig holds pricing constants and lifecycle timing.
type PolicyConfig struct {
	// PremiumMultiplier is k1 in premium = rate * area * k1.
	PremiumMultiplier decimal.Decimal
	// CoverageDivisor is k2 in coverage = maxCoverage * area / k2.
	CoverageDivisor decimal.Decimal
	ValidityMonths  int
	CropRatesFile   string
	ExpirySweep     time.Duration
	Currency        string
	PaymentKeyID    string
}

// ClaimsConfig holds adjudication parameters.
type ClaimsConfig struct {
	ApprovalThreshold decimal.Decimal
	GeofenceTolerance float64 // metres
	GeofenceMode      GeofenceMode
	EarthRadius       float64 // metres
	MinImages         int
	MaxImageBytes     int64
	// AllowedPolicyStatuses lists statuses a claim may be filed from.
	AllowedPolicyStatuses []string
}

// GeofenceMode selects what happens when the filing location is outside tolerance.
type GeofenceMode string

const (
	GeofenceWarn   GeofenceMode = "warn"
	GeofenceStrict GeofenceMode = "strict"
)

// AssessorConfig configures the damage assessment client.
type AssessorConfig struct {
	URL              string
	Timeout          time.Duration
	FailureThreshold int
	Cooldown         time.Duration
	FallbackSeed     int64
}

// StorageConfig selects the claim image backend.
type StorageConfig struct {
	Backend     string // "local", "s3" or "gcs"
	LocalDir    string
	Bucket      string
	Prefix      string
	S3Endpoint  string
	S3Region    string
	S3PathStyle bool
}

// SensorConfig guards device ingestion. An empty key accepts readings
// without the X-Sensor-Key header (development only).
type SensorConfig struct {
	IngestKey string
}

// KafkaConfig configures lifecycle event publishing. No brokers disables it.
type KafkaConfig struct {
	Brokers           []string
	Topic             string
	Partitions        int32
	ReplicationFactor int16
	RelayInterval     time.Duration
	RelayBatch        int
}

// SMSConfig configures the Fast2SMS gateway.
type SMSConfig struct {
	APIKey  string
	BaseURL string
	Route   string
	Timeout time.Duration
}

// NotificationConfig sizes the asynchronous dispatcher.
type NotificationConfig struct {
	QueueSize int
	Workers   int
}

// RateLimitConfig sets per-client request budgets per minute. Zero leaves a
// class unthrottled.
type RateLimitConfig struct {
	Enabled         bool
	AuthPerMinute   int
	UploadPerMinute int
	WritePerMinute  int
	ReadPerMinute   int
	SweepInterval   time.Duration
}

type LogConfig struct {
	Level  string
	Format string
}

// FromEnv builds a Config from environment variables so main stays lean.
func FromEnv() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	cfg := &Config{
		Environment: getEnv("APP_ENV", "development"),
		Server: Server{
			Addr:            getEnv("FARMSHIELD_ADDR", ":8080"),
			ReadTimeout:     getDuration("HTTP_READ_TIMEOUT", 15*time.Second),
			WriteTimeout:    getDuration("HTTP_WRITE_TIMEOUT", 60*time.Second),
			ShutdownTimeout: getDuration("HTTP_SHUTDOWN_TIMEOUT", 10*time.Second),
			RequestTimeout:  getDuration("HTTP_REQUEST_TIMEOUT", 45*time.Second),
		},
		Database: DatabaseConfig{
			URL:             os.Getenv("DATABASE_URL"),
			MaxOpenConns:    getInt("DB_MAX_OPEN_CONNS", 25),
			MaxIdleConns:    getInt("DB_MAX_IDLE_CONNS", 5),
			ConnMaxLifetime: getDuration("DB_CONN_MAX_LIFETIME", 30*time.Minute),
			TxTimeout:       getDuration("DB_TX_TIMEOUT", 5*time.Second),
			AutoMigrate:     getBool("DB_AUTO_MIGRATE", true),
		},
		Redis: RedisConfig{
			URL:          os.Getenv("REDIS_URL"),
			PoolSize:     getInt("REDIS_POOL_SIZE", 10),
			MinIdleConns: getInt("REDIS_MIN_IDLE_CONNS", 2),
			DialTimeout:  getDuration("REDIS_DIAL_TIMEOUT", 5*time.Second),
			ReadTimeout:  getDuration("REDIS_READ_TIMEOUT", 3*time.Second),
			WriteTimeout: getDuration("REDIS_WRITE_TIMEOUT", 3*time.Second),
		},
		Auth: AuthConfig{
			JWTSigningKey:     getEnv("JWT_SIGNING_KEY", "dev-secret-key-change-in-production"),
			Issuer:            getEnv("JWT_ISSUER", "farmshield"),
			AccessTokenTTL:    getDuration("ACCESS_TOKEN_TTL", 24*time.Hour),
			RefreshTokenTTL:   getDuration("REFRESH_TOKEN_TTL", 7*24*time.Hour),
			RegistrationTTL:   getDuration("REGISTRATION_TOKEN_TTL", 15*time.Minute),
			SeedOfficialsFile: os.Getenv("SEED_OFFICIALS_FILE"),
		},
		OTP: OTPConfig{
			TTL:            getDuration("OTP_TTL", 5*time.Minute),
			FixedCode:      os.Getenv("OTP_FIXED_CODE"),
			IssuePerMinute: getFloat("OTP_ISSUE_PER_MINUTE", 3),
			IssueBurst:     getInt("OTP_ISSUE_BURST", 3),
			PurgeInterval:  getDuration("OTP_PURGE_INTERVAL", 10*time.Minute),
			SenderMode:     getEnv("OTP_SENDER", "log"),
		},
		Policy: PolicyConfig{
			PremiumMultiplier: getDecimal("PREMIUM_MULTIPLIER", decimal.NewFromInt(100)),
			CoverageDivisor:   getDecimal("COVERAGE_DIVISOR", decimal.NewFromInt(10)),
			ValidityMonths:    getInt("POLICY_VALIDITY_MONTHS", 6),
			CropRatesFile:     os.Getenv("CROP_RATES_FILE"),
			ExpirySweep:       getDuration("POLICY_EXPIRY_SWEEP", time.Hour),
			Currency:          getEnv("PAYMENT_CURRENCY", "INR"),
			PaymentKeyID:      getEnv("PAYMENT_KEY_ID", "rzp_test_key"),
		},
		Claims: ClaimsConfig{
			ApprovalThreshold:     getDecimal("CLAIM_APPROVAL_THRESHOLD", decimal.NewFromInt(75)),
			GeofenceTolerance:     getFloat("GEOFENCE_TOLERANCE_METERS", 500),
			GeofenceMode:          GeofenceMode(getEnv("GEOFENCE_MODE", string(GeofenceWarn))),
			EarthRadius:           getFloat("EARTH_RADIUS_METERS", 6371e3),
			MinImages:             getInt("CLAIM_MIN_IMAGES", 4),
			MaxImageBytes:         int64(getInt("CLAIM_MAX_IMAGE_BYTES", 10<<20)),
			AllowedPolicyStatuses: getLowerList("CLAIM_ALLOWED_POLICY_STATUSES", []string{"active"}),
		},
		Assessor: AssessorConfig{
			URL:              getEnv("ASSESSOR_URL", "http://localhost:8000"),
			Timeout:          getDuration("ASSESSOR_TIMEOUT", 10*time.Second),
			FailureThreshold: getInt("ASSESSOR_FAILURE_THRESHOLD", 3),
			Cooldown:         getDuration("ASSESSOR_COOLDOWN", 30*time.Second),
			FallbackSeed:     int64(getInt("ASSESSOR_FALLBACK_SEED", 0)),
		},
		Storage: StorageConfig{
			Backend:     getEnv("IMAGE_STORE", "local"),
			LocalDir:    getEnv("IMAGE_STORE_DIR", "uploads"),
			Bucket:      os.Getenv("IMAGE_STORE_BUCKET"),
			Prefix:      getEnv("IMAGE_STORE_PREFIX", "claims"),
			S3Endpoint:  os.Getenv("S3_ENDPOINT"),
			S3Region:    getEnv("S3_REGION", "ap-south-1"),
			S3PathStyle: getBool("S3_PATH_STYLE", false),
		},
		Sensor: SensorConfig{
			IngestKey: os.Getenv("SENSOR_INGEST_KEY"),
		},
		Kafka: KafkaConfig{
			Brokers:           getList("KAFKA_BROKERS", nil),
			Topic:             getEnv("KAFKA_LIFECYCLE_TOPIC", "farmshield.lifecycle"),
			Partitions:        int32(getInt("KAFKA_TOPIC_PARTITIONS", 3)),
			ReplicationFactor: int16(getInt("KAFKA_TOPIC_REPLICATION", 1)),
			RelayInterval:     getDuration("OUTBOX_RELAY_INTERVAL", 2*time.Second),
			RelayBatch:        getInt("OUTBOX_RELAY_BATCH", 100),
		},
		SMS: SMSConfig{
			APIKey:  os.Getenv("FAST2SMS_API_KEY"),
			BaseURL: getEnv("FAST2SMS_URL", "https://www.fast2sms.com/dev/bulkV2"),
			Route:   getEnv("FAST2SMS_ROUTE", "q"),
			Timeout: getDuration("FAST2SMS_TIMEOUT", 10*time.Second),
		},
		Notification: NotificationConfig{
			QueueSize: getInt("NOTIFY_QUEUE_SIZE", 256),
			Workers:   getInt("NOTIFY_WORKERS", 2),
		},
		RateLimit: RateLimitConfig{
			Enabled:         getBool("RATE_LIMIT_ENABLED", true),
			AuthPerMinute:   getInt("RATE_LIMIT_AUTH_PER_MINUTE", 10),
			UploadPerMinute: getInt("RATE_LIMIT_UPLOAD_PER_MINUTE", 5),
			WritePerMinute:  getInt("RATE_LIMIT_WRITE_PER_MINUTE", 50),
			ReadPerMinute:   getInt("RATE_LIMIT_READ_PER_MINUTE", 100),
			SweepInterval:   getDuration("RATE_LIMIT_SWEEP_INTERVAL", 5*time.Minute),
		},
		Log: LogConfig{
			Level:  getEnv("LOG_LEVEL", "info"),
			Format: getEnv("LOG_FORMAT", "json"),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects combinations that would break lifecycle invariants at runtime.
func (c *Config) Validate() error {
	var errs []error
	if c.OTP.FixedCode != "" && c.Environment == "production" {
		errs = append(errs, errors.New("OTP_FIXED_CODE must not be set in production"))
	}
	if c.Sensor.IngestKey == "" && c.Environment == "production" {
		errs = append(errs, errors.New("SENSOR_INGEST_KEY is required in production"))
	}
	if c.OTP.FixedCode != "" && len(c.OTP.FixedCode) != 6 {
		errs = append(errs, errors.New("OTP_FIXED_CODE must be 6 digits"))
	}
	if c.Claims.GeofenceMode != GeofenceWarn && c.Claims.GeofenceMode != GeofenceStrict {
		errs = append(errs, fmt.Errorf("GEOFENCE_MODE must be warn or strict, got %q", c.Claims.GeofenceMode))
	}
	if c.Claims.MinImages < 1 {
		errs = append(errs, errors.New("CLAIM_MIN_IMAGES must be at least 1"))
	}
	if c.Policy.CoverageDivisor.IsZero() {
		errs = append(errs, errors.New("COVERAGE_DIVISOR must be non-zero"))
	}
	if c.Policy.ValidityMonths < 1 {
		errs = append(errs, errors.New("POLICY_VALIDITY_MONTHS must be positive"))
	}
	if min(c.RateLimit.AuthPerMinute, c.RateLimit.UploadPerMinute, c.RateLimit.WritePerMinute, c.RateLimit.ReadPerMinute) < 0 {
		errs = append(errs, errors.New("RATE_LIMIT_*_PER_MINUTE must not be negative"))
	}
	switch c.Storage.Backend {
	case "local":
	case "s3", "gcs":
		if c.Storage.Bucket == "" {
			errs = append(errs, fmt.Errorf("IMAGE_STORE_BUCKET is required for %s", c.Storage.Backend))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown IMAGE_STORE %q", c.Storage.Backend))
	}
	return errors.Join(errs...)
}

func getEnv(key, fallback string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return fallback
}

func getInt(key string, fallback int) int {
	if v, err := strconv.Atoi(os.Getenv(key)); err == nil {
		return v
	}
	return fallback
}

func getFloat(key string, fallback float64) float64 {
	if v, err := strconv.ParseFloat(os.Getenv(key), 64); err == nil {
		return v
	}
	return fallback
}

func getBool(key string, fallback bool) bool {
	if v, err := strconv.ParseBool(os.Getenv(key)); err == nil {
		return v
	}
	return fallback
}

func getDuration(key string, fallback time.Duration) time.Duration {
	if v, err := time.ParseDuration(os.Getenv(key)); err == nil {
		return v
	}
	return fallback
}

func getDecimal(key string, fallback decimal.Decimal) decimal.Decimal {
	if v, err := decimal.NewFromString(os.Getenv(key)); err == nil {
		return v
	}
	return fallback
}

func getList(key string, fallback []string) []string {
	raw := os.Getenv(key)
	if strings.TrimSpace(raw) == "" {
		return fallback
	}
	return pstrings.SplitList(raw)
}

func getLowerList(key string, fallback []string) []string {
	raw := os.Getenv(key)
	if strings.TrimSpace(raw) == "" {
		return fallback
	}
	return pstrings.SplitListLower(raw)
}
