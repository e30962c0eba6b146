package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// EnvPrefix prefixes every environment override, e.g. BEATROOM_SERVER_HTTP_ADDRESS.
const EnvPrefix = "BEATROOM"

type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Room     RoomConfig     `mapstructure:"room"`
	Database DatabaseConfig `mapstructure:"database"`
	Log      LogConfig      `mapstructure:"log"`
}

type ServerConfig struct {
	HTTPAddress    string        `mapstructure:"http_address"`
	RPCAddress     string        `mapstructure:"rpc_address"`
	GRPCAddress    string        `mapstructure:"grpc_address"`
	MetricsAddress string        `mapstructure:"metrics_address"`
	PublicURL      string        `mapstructure:"public_url"`
	Heartbeat      time.Duration `mapstructure:"heartbeat"`
	SendBuffer     int           `mapstructure:"send_buffer"`
}

type RoomConfig struct {
	CountdownFrom     int           `mapstructure:"countdown_from"`
	CountdownInterval time.Duration `mapstructure:"countdown_interval"`
	CodeAttempts      int           `mapstructure:"code_attempts"`
	MinReadyPlayers   int           `mapstructure:"min_ready_players"`
}

// Database drivers.
const (
	DriverNone     = "none"
	DriverGorm     = "gorm"
	DriverPostgres = "postgres"
)

type DatabaseConfig struct {
	Driver   string         `mapstructure:"driver"`
	Postgres PostgresConfig `mapstructure:"postgres"`
}

type PostgresConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	DBName   string `mapstructure:"dbname"`
	SSLMode  string `mapstructure:"sslmode"`
}

// DSN renders the key/value connection string understood by lib/pq and pgx.
func (p PostgresConfig) DSN() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		p.Host, p.Port, p.User, p.Password, p.DBName, p.SSLMode)
}

// URL renders the postgres:// form used by golang-migrate.
func (p PostgresConfig) URL() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
		p.User, p.Password, p.Host, p.Port, p.DBName, p.SSLMode)
}

type LogConfig struct {
	Level       string `mapstructure:"level"`
	Development bool   `mapstructure:"development"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.http_address", ":8080")
	v.SetDefault("server.rpc_address", ":9090")
	v.SetDefault("server.grpc_address", ":9091")
	v.SetDefault("server.metrics_address", ":9100")
	v.SetDefault("server.public_url", "http://localhost:8080")
	v.SetDefault("server.heartbeat", 30*time.Second)
	v.SetDefault("server.send_buffer", 256)

	v.SetDefault("room.countdown_from", 3)
	v.SetDefault("room.countdown_interval", time.Second)
	v.SetDefault("room.code_attempts", 16)
	v.SetDefault("room.min_ready_players", 1)

	v.SetDefault("database.driver", DriverNone)
	v.SetDefault("database.postgres.host", "localhost")
	v.SetDefault("database.postgres.port", 5432)
	v.SetDefault("database.postgres.user", "postgres")
	v.SetDefault("database.postgres.password", "")
	v.SetDefault("database.postgres.dbname", "beatroom")
	v.SetDefault("database.postgres.sslmode", "disable")

	v.SetDefault("log.level", "info")
	v.SetDefault("log.development", false)
}

// LoadDotEnv loads environment variables from a .env file if present.
// Existing environment variables are not overwritten.
func LoadDotEnv(path string) error {
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	return godotenv.Load(path)
}

// LoadConfig reads config.yaml from path (a missing file is fine), then
// applies .env, BEATROOM_* environment variables and any changed flags, in
// increasing order of precedence. Flag names use dashes in place of dots and
// underscores, e.g. --server-http-address.
func LoadConfig(path string, flags *pflag.FlagSet) (*Config, error) {
	if err := LoadDotEnv(filepath.Join(path, ".env")); err != nil {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	v := viper.New()
	setDefaults(v)

	v.AddConfigPath(path)
	v.SetConfigName("config")
	v.SetConfigType("yaml")

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	if flags != nil {
		for _, key := range v.AllKeys() {
			if f := flags.Lookup(FlagName(key)); f != nil && f.Changed {
				v.Set(key, f.Value.String())
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// FlagName maps a config key such as "server.http_address" to its flag name.
func FlagName(key string) string {
	return strings.NewReplacer(".", "-", "_", "-").Replace(key)
}

func (c *Config) Validate() error {
	if c.Room.CountdownInterval <= 0 {
		return fmt.Errorf("room.countdown_interval must be positive, got %s", c.Room.CountdownInterval)
	}
	if c.Room.CountdownFrom < 0 {
		return fmt.Errorf("room.countdown_from must not be negative, got %d", c.Room.CountdownFrom)
	}
	if c.Room.MinReadyPlayers < 1 {
		return fmt.Errorf("room.min_ready_players must be at least 1, got %d", c.Room.MinReadyPlayers)
	}
	if c.Room.CodeAttempts < 1 {
		return fmt.Errorf("room.code_attempts must be at least 1, got %d", c.Room.CodeAttempts)
	}
	if c.Server.SendBuffer < 1 {
		return fmt.Errorf("server.send_buffer must be at least 1, got %d", c.Server.SendBuffer)
	}
	switch c.Database.Driver {
	case DriverNone, DriverGorm, DriverPostgres:
	default:
		return fmt.Errorf("unknown database.driver %q", c.Database.Driver)
	}
	return nil
}
