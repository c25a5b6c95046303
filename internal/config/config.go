package config

import (
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"os"
	"strconv"
	"time"

	"love-sync-backend/internal/models"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config holds all configuration for the application
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Database  DatabaseConfig  `yaml:"database"`
	AWS       AWSConfig       `yaml:"aws"`
	JWT       JWTConfig       `yaml:"jwt"`
	Log       LogConfig       `yaml:"log"`
	Calendar  CalendarConfig  `yaml:"calendar"`
	Sessions  SessionsConfig  `yaml:"sessions"`
	Payment   PaymentConfig   `yaml:"payment"`
	APNs      APNsConfig      `yaml:"apns"`
	NATS      NATSConfig      `yaml:"nats"`
	RateLimit RateLimitConfig `yaml:"ratelimit"`
}

// ServerConfig holds server configuration
type ServerConfig struct {
	Port           int      `yaml:"port"`
	Host           string   `yaml:"host"`
	AllowedOrigins []string `yaml:"allowed_origins"`
}

// DatabaseConfig holds database configuration
type DatabaseConfig struct {
	Driver   string `yaml:"driver"` // postgres or memory
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	DBName   string `yaml:"dbname"`
	SSLMode  string `yaml:"sslmode"`
}

// AWSConfig holds S3 configuration for memory uploads
type AWSConfig struct {
	Region    string `yaml:"region"`
	S3Bucket  string `yaml:"s3_bucket"`
	AccessKey string `yaml:"access_key"`
	SecretKey string `yaml:"secret_key"`
	Endpoint  string `yaml:"endpoint"` // S3-compatible endpoint, empty for AWS
}

// JWTConfig holds JWT configuration
type JWTConfig struct {
	Secret string `yaml:"secret"`
}

// LogConfig holds logging configuration
type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"` // console or json
}

// CalendarDay is one configured content day
type CalendarDay struct {
	Day      int    `yaml:"day"`
	Date     string `yaml:"date"` // YYYY-MM-DD, unlocks at local midnight
	Title    string `yaml:"title"`
	Subtitle string `yaml:"subtitle"`
	Premium  bool   `yaml:"premium"`
}

// CalendarConfig holds the unlock schedule
type CalendarConfig struct {
	Timezone string        `yaml:"timezone"`
	Days     []CalendarDay `yaml:"days"`
}

// SessionsConfig tunes the shared session games
type SessionsConfig struct {
	PollInterval   time.Duration `yaml:"poll_interval"`
	CountdownLead  time.Duration `yaml:"countdown_lead"`
	SnapWindow     time.Duration `yaml:"snap_window"`
	SnapSkew       time.Duration `yaml:"snap_skew"`
	ShareBaseURL   string        `yaml:"share_base_url"`
	AnnounceWindow time.Duration `yaml:"announce_window"`
}

// PaymentConfig holds payment gateway settings. Amounts are in the smallest currency unit.
type PaymentConfig struct {
	Provider       string `yaml:"provider"` // razorpay or local
	BaseURL        string `yaml:"base_url"`
	KeyID          string `yaml:"key_id"`
	KeySecret      string `yaml:"key_secret"`
	Currency       string `yaml:"currency"`
	ProposalAmount int64  `yaml:"proposal_amount"`
	CoupleAmount   int64  `yaml:"couple_amount"`
}

// APNsConfig holds Apple push settings. An empty key file disables APNs.
type APNsConfig struct {
	KeyFile    string `yaml:"key_file"`
	KeyID      string `yaml:"key_id"`
	TeamID     string `yaml:"team_id"`
	Topic      string `yaml:"topic"`
	Production bool   `yaml:"production"`
}

// NATSConfig holds the event bus settings. An empty URL keeps events in process.
type NATSConfig struct {
	URL           string `yaml:"url"`
	SubjectPrefix string `yaml:"subject_prefix"`
}

// RateLimitConfig holds per-IP limits for write endpoints
type RateLimitConfig struct {
	RequestsPerMinute int `yaml:"requests_per_minute"`
	Burst             int `yaml:"burst"`
}

// Default returns a configuration that runs fully in memory
func Default() *Config {
	return &Config{
		Server: ServerConfig{Port: 8080, Host: "0.0.0.0", AllowedOrigins: []string{"*"}},
		Database: DatabaseConfig{
			Driver:  "memory",
			Host:    "localhost",
			Port:    5432,
			User:    "lovesync",
			DBName:  "lovesync",
			SSLMode: "disable",
		},
		AWS: AWSConfig{Region: "ap-south-1"},
		JWT: JWTConfig{Secret: "dev-secret-change-me"},
		Log: LogConfig{Level: "info", Format: "console"},
		Calendar: CalendarConfig{
			Timezone: "Asia/Kolkata",
			Days: []CalendarDay{
				{Day: 1, Date: "2026-02-07", Title: "Rose Day", Subtitle: "Where our story began to bloom"},
				{Day: 2, Date: "2026-02-08", Title: "Propose Day", Subtitle: "A digital promise of forever"},
				{Day: 3, Date: "2026-02-09", Title: "Chocolate Day", Subtitle: "Sweet moments we've shared"},
				{Day: 4, Date: "2026-02-10", Title: "Teddy Day", Subtitle: "Virtual hugs and soft words"},
				{Day: 5, Date: "2026-02-11", Title: "Promise Day", Subtitle: "Oaths written in the stars"},
				{Day: 6, Date: "2026-02-12", Title: "Hug Day", Subtitle: "Wrapping you in digital warmth"},
				{Day: 7, Date: "2026-02-13", Title: "Kiss Day", Subtitle: "The magic of a tender touch"},
				{Day: 8, Date: "2026-02-14", Title: "Valentine's Day", Subtitle: "The ultimate cosmic celebration"},
			},
		},
		Sessions: SessionsConfig{
			PollInterval:   800 * time.Millisecond,
			CountdownLead:  3 * time.Second,
			SnapWindow:     10 * time.Second,
			SnapSkew:       250 * time.Millisecond,
			ShareBaseURL:   "http://localhost:3000",
			AnnounceWindow: 5 * time.Minute,
		},
		Payment: PaymentConfig{
			Provider:       "local",
			BaseURL:        "https://api.razorpay.com/v1",
			Currency:       "INR",
			ProposalAmount: 4900,
			CoupleAmount:   9900,
		},
		NATS:      NATSConfig{SubjectPrefix: "lovesync.sessions"},
		RateLimit: RateLimitConfig{RequestsPerMinute: 30, Burst: 10},
	}
}

// Load reads .env, then the YAML file over the defaults, then secret overrides from the environment.
// A missing file is not an error.
func Load(path string) (*Config, error) {
	_ = godotenv.Load()

	cfg := Default()
	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	case errors.Is(err, fs.ErrNotExist):
	default:
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg.applyEnv()
	return cfg, nil
}

func (c *Config) applyEnv() {
	c.Database.Driver = getEnv("DATABASE_DRIVER", c.Database.Driver)
	c.Database.Host = getEnv("DATABASE_HOST", c.Database.Host)
	c.Database.Port = getEnvAsInt("DATABASE_PORT", c.Database.Port)
	c.Database.Password = getEnv("DATABASE_PASSWORD", c.Database.Password)
	c.JWT.Secret = getEnv("JWT_SECRET", c.JWT.Secret)
	c.Payment.KeyID = getEnv("PAYMENT_KEY_ID", c.Payment.KeyID)
	c.Payment.KeySecret = getEnv("PAYMENT_KEY_SECRET", c.Payment.KeySecret)
	c.AWS.AccessKey = getEnv("AWS_ACCESS_KEY", c.AWS.AccessKey)
	c.AWS.SecretKey = getEnv("AWS_SECRET_KEY", c.AWS.SecretKey)
	c.NATS.URL = getEnv("NATS_URL", c.NATS.URL)
	c.Server.Port = getEnvAsInt("PORT", c.Server.Port)
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

// DSN returns the PostgreSQL connection string
func (c *DatabaseConfig) DSN() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.DBName, c.SSLMode)
}

// URL returns the connection string in URL form, as the migrator expects
func (c *DatabaseConfig) URL() string {
	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(c.User, c.Password),
		Host:     fmt.Sprintf("%s:%d", c.Host, c.Port),
		Path:     "/" + c.DBName,
		RawQuery: "sslmode=" + url.QueryEscape(c.SSLMode),
	}
	return u.String()
}

// ContentDays resolves the configured dates to unlock instants at local midnight
func (c *CalendarConfig) ContentDays() ([]models.ContentDay, error) {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return nil, fmt.Errorf("failed to load calendar timezone %q: %w", c.Timezone, err)
	}

	days := make([]models.ContentDay, 0, len(c.Days))
	seen := make(map[int]bool, len(c.Days))
	for _, d := range c.Days {
		if d.Day <= 0 {
			return nil, fmt.Errorf("calendar day %q has invalid index %d", d.Title, d.Day)
		}
		if seen[d.Day] {
			return nil, fmt.Errorf("calendar day %d is configured twice", d.Day)
		}
		seen[d.Day] = true

		at, err := time.ParseInLocation("2006-01-02", d.Date, loc)
		if err != nil {
			return nil, fmt.Errorf("failed to parse date for day %d: %w", d.Day, err)
		}
		days = append(days, models.ContentDay{
			Day:         d.Day,
			Title:       d.Title,
			Subtitle:    d.Subtitle,
			UnlockAt:    at,
			PremiumOnly: d.Premium,
		})
	}
	return days, nil
}
