// Package config loads the gateway configuration from defaults, an optional
// a2ui.yaml file and A2UI_* environment variables.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// EnvConfigFile names an explicit config file. Without it, a2ui.yaml is
// looked up in the working directory and /etc/a2ui.
const EnvConfigFile = "A2UI_CONFIG"

// Config holds the gateway configuration.
type Config struct {
	HTTP      HTTPConfig      `mapstructure:"http"`
	RPC       RPCConfig       `mapstructure:"rpc"`
	WS        WSConfig        `mapstructure:"ws"`
	Session   SessionConfig   `mapstructure:"session"`
	Redis     RedisConfig     `mapstructure:"redis"`
	SQLite    SQLiteConfig    `mapstructure:"sqlite"`
	Backend   BackendConfig   `mapstructure:"backend"`
	View      ViewConfig      `mapstructure:"view"`
	Policy    PolicyConfig    `mapstructure:"policy"`
	Log       LogConfig       `mapstructure:"log"`
	Telemetry TelemetryConfig `mapstructure:"telemetry"`
}

// HTTPConfig configures the HTTP API and WebSocket listener.
type HTTPConfig struct {
	Port int `mapstructure:"port"`
	// APIKey, when set, is required in the WebSocket hello frame and the
	// X-API-Key header of API calls.
	APIKey string `mapstructure:"api_key"`
}

// RPCConfig configures the JSON-RPC listener for backend pushes. Port 0 disables it.
type RPCConfig struct {
	Port int `mapstructure:"port"`
}

// WSConfig holds WebSocket connection settings.
type WSConfig struct {
	PingInterval   time.Duration `mapstructure:"ping_interval"`
	WriteTimeout   time.Duration `mapstructure:"write_timeout"`
	ReadTimeout    time.Duration `mapstructure:"read_timeout"`
	MaxMessageSize int64         `mapstructure:"max_message_size"`
	BufferSize     int           `mapstructure:"buffer_size"`
	TurnTimeout    time.Duration `mapstructure:"turn_timeout"`
}

// SessionConfig selects the session store and its lifetime.
type SessionConfig struct {
	Store         string        `mapstructure:"store"`
	TTL           time.Duration `mapstructure:"ttl"`
	SweepInterval time.Duration `mapstructure:"sweep_interval"`
	UserID        string        `mapstructure:"user_id"`
	AppName       string        `mapstructure:"app_name"`
}

type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

type SQLiteConfig struct {
	DSN string `mapstructure:"dsn"`
}

// BackendConfig locates the conversational backend. An empty URL runs the
// gateway with structural actions only.
type BackendConfig struct {
	URL     string        `mapstructure:"url"`
	Timeout time.Duration `mapstructure:"timeout"`
}

type ViewConfig struct {
	DefaultLanguage string `mapstructure:"default_language"`
	MaxCandidates   int    `mapstructure:"max_candidates"`
	SurfaceID       string `mapstructure:"surface_id"`
}

type PolicyConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	File    string `mapstructure:"file"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

type TelemetryConfig struct {
	Enabled bool `mapstructure:"enabled"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("http.port", 8080)
	v.SetDefault("http.api_key", "")
	v.SetDefault("rpc.port", 8092)

	v.SetDefault("ws.ping_interval", 30*time.Second)
	v.SetDefault("ws.write_timeout", 10*time.Second)
	v.SetDefault("ws.read_timeout", 60*time.Second)
	v.SetDefault("ws.max_message_size", 65536)
	v.SetDefault("ws.buffer_size", 256)
	v.SetDefault("ws.turn_timeout", 90*time.Second)

	v.SetDefault("session.store", "memory")
	v.SetDefault("session.ttl", 24*time.Hour)
	v.SetDefault("session.sweep_interval", 10*time.Minute)
	v.SetDefault("session.user_id", "a2ui-web")
	v.SetDefault("session.app_name", "seichijunrei_bot")

	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("sqlite.dsn", "a2ui.db")

	v.SetDefault("backend.url", "")
	v.SetDefault("backend.timeout", 60*time.Second)

	v.SetDefault("view.default_language", "zh-CN")
	v.SetDefault("view.max_candidates", 10)
	v.SetDefault("view.surface_id", "main")

	v.SetDefault("policy.enabled", true)
	v.SetDefault("policy.file", "")

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")

	v.SetDefault("telemetry.enabled", true)
}

// Load reads the configuration. Env var overrides use the prefix A2UI_ with
// dots replaced by underscores, e.g. A2UI_SESSION_STORE.
func Load() (*Config, error) {
	v := viper.New()
	setDefaults(v)

	cfgPath := os.Getenv(EnvConfigFile)
	if cfgPath != "" {
		v.SetConfigFile(cfgPath)
	} else {
		v.SetConfigName("a2ui")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("/etc/a2ui")
	}

	v.SetEnvPrefix("A2UI")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if cfgPath != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	var c Config
	if err := v.Unmarshal(&c); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return &c, nil
}

// Validate checks values that would otherwise fail later at startup.
func (c *Config) Validate() error {
	var errs []error
	if c.HTTP.Port <= 0 {
		errs = append(errs, fmt.Errorf("http.port must be positive, got %d", c.HTTP.Port))
	}
	if c.RPC.Port < 0 {
		errs = append(errs, fmt.Errorf("rpc.port must not be negative, got %d", c.RPC.Port))
	}
	switch c.Session.Store {
	case "memory", "redis", "sqlite":
	default:
		errs = append(errs, fmt.Errorf("session.store must be memory, redis or sqlite, got %q", c.Session.Store))
	}
	if c.View.MaxCandidates < 0 {
		errs = append(errs, fmt.Errorf("view.max_candidates must not be negative, got %d", c.View.MaxCandidates))
	}
	if c.WS.MaxMessageSize <= 0 {
		errs = append(errs, fmt.Errorf("ws.max_message_size must be positive, got %d", c.WS.MaxMessageSize))
	}
	switch strings.ToLower(c.Log.Format) {
	case "text", "json":
	default:
		errs = append(errs, fmt.Errorf("log.format must be text or json, got %q", c.Log.Format))
	}
	if len(errs) > 0 {
		return fmt.Errorf("invalid config: %w", errors.Join(errs...))
	}
	return nil
}
