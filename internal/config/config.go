package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

const (
	StoreMemory   = "memory"
	StorePostgres = "postgres"
)

type DBConfig struct {
	User          string
	Password      string
	Host          string
	Port          int
	Database      string
	SSLMode       string
	MaxRetries    int
	RetryInterval time.Duration
}

// DSN returns the pgx connection string
func (c DBConfig) DSN() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s", c.User, c.Password, c.Host, c.Port, c.Database, c.SSLMode)
}

type RedisConfig struct {
	Addr      string
	Password  string
	DB        int
	KeyPrefix string
}

type NATSConfig struct {
	URL           string
	SubjectPrefix string
}

type AdminConfig struct {
	Username string
	Password string
	Email    string
}

type Config struct {
	ServerAddr    string
	GinMode       string
	LogLevel      string
	Store         string
	DB            DBConfig
	Redis         RedisConfig
	NATS          NATSConfig
	JWTSecret     string
	SessionTTL    time.Duration
	SweepInterval time.Duration
	CookieSecure  bool
	Admin         AdminConfig
}

// Load reads flags from args, falling back to AUCTION_* environment variables and then defaults
func Load(args []string) (Config, error) {
	fs := pflag.NewFlagSet("auction", pflag.ContinueOnError)

	// server config
	fs.String("server-addr", ":8080", "HTTP listen address")
	fs.String("gin-mode", "release", "gin mode (debug|release|test)")
	fs.String("log-level", "info", "log level")
	fs.Bool("cookie-secure", false, "mark the session cookie Secure")

	// storage config
	fs.String("store", StoreMemory, "storage backend (memory|postgres)")
	fs.String("db-user", "postgres", "")
	fs.String("db-password", "", "")
	fs.String("db-host", "localhost", "")
	fs.Int("db-port", 5432, "")
	fs.String("db-database", "auction", "")
	fs.String("db-sslmode", "disable", "")
	fs.Int("db-max-retries", 5, "connection attempts before giving up")
	fs.Duration("db-retry-interval", 2*time.Second, "")

	// redis config, sessions stay in memory when redis-addr is empty
	fs.String("redis-addr", "", "")
	fs.String("redis-password", "", "")
	fs.Int("redis-db", 0, "")
	fs.String("redis-key-prefix", "auction:session:", "")

	// nats config, events are only logged when nats-url is empty
	fs.String("nats-url", "", "")
	fs.String("nats-subject-prefix", "auction", "")

	// session config
	fs.String("jwt-secret", "change-me", "HMAC secret for session tokens")
	fs.Duration("session-ttl", 24*time.Hour, "")
	fs.Duration("sweep-interval", 30*time.Second, "how often expired auctions are closed")

	// admin seed
	fs.String("admin-username", "admin", "")
	fs.String("admin-password", "admin123", "")
	fs.String("admin-email", "admin@auction.com", "")

	if err := fs.Parse(args); err != nil {
		return Config{}, fmt.Errorf("config: parse flags: %w", err)
	}

	v := viper.New()
	if err := v.BindPFlags(fs); err != nil {
		return Config{}, fmt.Errorf("config: bind flags: %w", err)
	}
	v.SetEnvPrefix("AUCTION")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	cfg := Config{
		ServerAddr: v.GetString("server-addr"),
		GinMode:    v.GetString("gin-mode"),
		LogLevel:   v.GetString("log-level"),
		Store:      strings.ToLower(v.GetString("store")),
		DB: DBConfig{
			User:          v.GetString("db-user"),
			Password:      v.GetString("db-password"),
			Host:          v.GetString("db-host"),
			Port:          v.GetInt("db-port"),
			Database:      v.GetString("db-database"),
			SSLMode:       v.GetString("db-sslmode"),
			MaxRetries:    v.GetInt("db-max-retries"),
			RetryInterval: v.GetDuration("db-retry-interval"),
		},
		Redis: RedisConfig{
			Addr:      v.GetString("redis-addr"),
			Password:  v.GetString("redis-password"),
			DB:        v.GetInt("redis-db"),
			KeyPrefix: v.GetString("redis-key-prefix"),
		},
		NATS: NATSConfig{
			URL:           v.GetString("nats-url"),
			SubjectPrefix: v.GetString("nats-subject-prefix"),
		},
		JWTSecret:     v.GetString("jwt-secret"),
		SessionTTL:    v.GetDuration("session-ttl"),
		SweepInterval: v.GetDuration("sweep-interval"),
		CookieSecure:  v.GetBool("cookie-secure"),
		Admin: AdminConfig{
			Username: v.GetString("admin-username"),
			Password: v.GetString("admin-password"),
			Email:    v.GetString("admin-email"),
		},
	}
	return cfg, cfg.Validate()
}

// Validate rejects configurations the server cannot start with
func (c Config) Validate() error {
	switch {
	case c.Store != StoreMemory && c.Store != StorePostgres:
		return fmt.Errorf("config: unknown store %q", c.Store)
	case c.JWTSecret == "":
		return fmt.Errorf("config: jwt-secret must not be empty")
	case c.SessionTTL <= 0:
		return fmt.Errorf("config: session-ttl must be positive")
	case c.SweepInterval <= 0:
		return fmt.Errorf("config: sweep-interval must be positive")
	}
	return nil
}
