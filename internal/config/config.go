package config

import (
	"errors"
	"fmt"
	"io/fs"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	defaultServerPort         = "8080"
	defaultEnv                = "development"
	defaultLogLevel           = "info"
	defaultRequestTimeout     = 2 * time.Second
	defaultShutdownTimeout    = 10 * time.Second
	defaultEventStream        = "ledger.events"
	defaultProjectionGroup    = "ledger-projection-group"
	defaultProjectionConsumer = "ledger-projection-1"
)

// Config holds the ledger service settings, read from the environment and an
// optional .env file.
type Config struct {
	ServerPort      string
	Env             string
	LogLevel        string
	RequestTimeout  time.Duration
	ShutdownTimeout time.Duration

	RedisAddr     string
	RedisPassword string
	RedisDB       int

	EventStream        string
	ProjectionEnabled  bool
	ProjectionGroup    string
	ProjectionConsumer string

	// Warnings lists values that were rejected and replaced by defaults. They
	// are reported once the logger exists.
	Warnings []string
}

// EventsEnabled reports whether a Redis address was configured.
func (c Config) EventsEnabled() bool {
	return c.RedisAddr != ""
}

func (c Config) Addr() string {
	return ":" + c.ServerPort
}

// LoadConfig reads <path>/.env when present (existing environment variables
// win) and then resolves every setting through viper.
func LoadConfig(path string) (Config, error) {
	if err := godotenv.Load(filepath.Join(path, ".env")); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return Config{}, fmt.Errorf("failed to load .env: %w", err)
	}

	v := viper.New()
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	v.SetDefault("SERVER_PORT", defaultServerPort)
	v.SetDefault("ENV", defaultEnv)
	v.SetDefault("LOG_LEVEL", defaultLogLevel)
	v.SetDefault("REQUEST_TIMEOUT", defaultRequestTimeout.String())
	v.SetDefault("SHUTDOWN_TIMEOUT", defaultShutdownTimeout.String())
	v.SetDefault("REDIS_ADDR", "")
	v.SetDefault("REDIS_PASSWORD", "")
	v.SetDefault("REDIS_DB", 0)
	v.SetDefault("LEDGER_EVENT_STREAM", defaultEventStream)
	v.SetDefault("PROJECTION_ENABLED", false)
	v.SetDefault("PROJECTION_GROUP", defaultProjectionGroup)
	v.SetDefault("PROJECTION_CONSUMER", defaultProjectionConsumer)

	cfg := Config{
		ServerPort:         strings.TrimSpace(v.GetString("SERVER_PORT")),
		Env:                strings.TrimSpace(v.GetString("ENV")),
		LogLevel:           strings.TrimSpace(v.GetString("LOG_LEVEL")),
		RedisAddr:          strings.TrimSpace(v.GetString("REDIS_ADDR")),
		RedisPassword:      v.GetString("REDIS_PASSWORD"),
		RedisDB:            v.GetInt("REDIS_DB"),
		EventStream:        strings.TrimSpace(v.GetString("LEDGER_EVENT_STREAM")),
		ProjectionEnabled:  v.GetBool("PROJECTION_ENABLED"),
		ProjectionGroup:    strings.TrimSpace(v.GetString("PROJECTION_GROUP")),
		ProjectionConsumer: strings.TrimSpace(v.GetString("PROJECTION_CONSUMER")),
	}

	cfg.RequestTimeout = cfg.duration(v, "REQUEST_TIMEOUT")
	cfg.ShutdownTimeout = cfg.duration(v, "SHUTDOWN_TIMEOUT")

	if port := strings.TrimSpace(os.Getenv("PORT")); port != "" {
		cfg.ServerPort = port
	}

	cfg.coerce()
	return cfg, nil
}

// duration reads key as a Go duration. A bare number is taken as seconds;
// time.ParseDuration would reject it and viper would read it as nanoseconds.
// Unparseable values come back as zero for coerce to replace.
func (c *Config) duration(v *viper.Viper, key string) time.Duration {
	raw := strings.TrimSpace(v.GetString(key))
	if secs, err := strconv.ParseFloat(raw, 64); err == nil {
		if math.IsNaN(secs) || math.IsInf(secs, 0) {
			return 0
		}
		d := time.Duration(secs * float64(time.Second))
		c.warn("%s=%s has no unit; reading it as %s", key, raw, d)
		return d
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return 0
	}
	return d
}

func (c *Config) coerce() {
	if c.ServerPort == "" {
		c.warn("empty SERVER_PORT; using %s", defaultServerPort)
		c.ServerPort = defaultServerPort
	}
	if c.Env == "" {
		c.Env = defaultEnv
	}
	if c.RequestTimeout <= 0 {
		c.warn("REQUEST_TIMEOUT must be a positive duration; using %s", defaultRequestTimeout)
		c.RequestTimeout = defaultRequestTimeout
	}
	if c.ShutdownTimeout <= 0 {
		c.warn("SHUTDOWN_TIMEOUT must be a positive duration; using %s", defaultShutdownTimeout)
		c.ShutdownTimeout = defaultShutdownTimeout
	}
	if c.RedisDB < 0 {
		c.warn("negative REDIS_DB %d; using 0", c.RedisDB)
		c.RedisDB = 0
	}
	if c.EventStream == "" {
		c.EventStream = defaultEventStream
	}
	if c.ProjectionGroup == "" {
		c.ProjectionGroup = defaultProjectionGroup
	}
	if c.ProjectionConsumer == "" {
		c.ProjectionConsumer = defaultProjectionConsumer
	}
	if c.ProjectionEnabled && !c.EventsEnabled() {
		c.warn("PROJECTION_ENABLED requires REDIS_ADDR; projection disabled")
		c.ProjectionEnabled = false
	}
}

func (c *Config) warn(format string, args ...any) {
	c.Warnings = append(c.Warnings, fmt.Sprintf(format, args...))
}
