// Package config загружает конфиг blacketbot из YAML-файла, применяет
// переопределения из окружения и проверяет результат.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/invopop/jsonschema"
	"gopkg.in/yaml.v3"

	"example.com/blacket/pkg/blacket"
)

// Config: весь конфиг бинаря.
type Config struct {
	Token    string `yaml:"token" json:"token,omitempty" jsonschema:"description=Session token; when empty username/password are used to log in"`
	Username string `yaml:"username" json:"username,omitempty"`
	Password string `yaml:"password" json:"password,omitempty"`
	OTP      string `yaml:"otp" json:"otp,omitempty"`

	BaseURL   string `yaml:"base_url" json:"base_url,omitempty"`
	SocketURL string `yaml:"socket_url" json:"socket_url,omitempty"`

	Reconnect ReconnectConfig `yaml:"reconnect" json:"reconnect"`
	Logging   LoggingConfig   `yaml:"logging" json:"logging"`
	Archive   ArchiveConfig   `yaml:"archive" json:"archive"`
	Inspect   InspectConfig   `yaml:"inspect" json:"inspect"`
	Bot       BotConfig       `yaml:"bot" json:"bot"`
}

type ReconnectConfig struct {
	Enabled  bool          `yaml:"enabled" json:"enabled"`
	Delay    time.Duration `yaml:"delay" json:"delay" jsonschema:"description=Pause before every attempt (yaml duration like 2s)"`
	Attempts int           `yaml:"attempts" json:"attempts" jsonschema:"minimum=0,description=Reconnect attempts allowed over the client lifetime; 0 means unbounded"`
	// AckTimeout ограничивает ожидание messages-ack, 0 отключает таймаут.
	AckTimeout time.Duration `yaml:"ack_timeout" json:"ack_timeout"`
}

type LoggingConfig struct {
	Level  string `yaml:"level" json:"level" jsonschema:"enum=debug,enum=info,enum=warn,enum=error"`
	Format string `yaml:"format" json:"format" jsonschema:"enum=json,enum=console,enum=text"`
}

// ArchiveConfig: архив сообщений; пустой DSN отключает архив.
type ArchiveConfig struct {
	Driver string `yaml:"driver" json:"driver" jsonschema:"enum=sqlite3,enum=mysql"`
	DSN    string `yaml:"dsn" json:"dsn,omitempty"`
}

// InspectConfig: HTTP API для просмотра кэшей; пустой адрес отключает.
type InspectConfig struct {
	Address string `yaml:"address" json:"address,omitempty"`
}

type BotConfig struct {
	Prefix string `yaml:"prefix" json:"prefix" jsonschema:"minLength=1"`
	// Room: куда бот пишет объявления clan watch.
	Room          int64         `yaml:"room" json:"room"`
	WatchInterval time.Duration `yaml:"watch_interval" json:"watch_interval"`
	WatchFile     string        `yaml:"watch_file" json:"watch_file" jsonschema:"description=JSON file persisting the watched clan list"`
	Watch         []int64       `yaml:"watch" json:"watch,omitempty"`
}

// DefaultConfig возвращает конфиг по умолчанию.
func DefaultConfig() *Config {
	return &Config{
		Reconnect: ReconnectConfig{
			Enabled:  true,
			Delay:    2 * time.Second,
			Attempts: 0,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "console",
		},
		Archive: ArchiveConfig{
			Driver: "sqlite3",
		},
		Bot: BotConfig{
			Prefix:        "!",
			Room:          0,
			WatchInterval: time.Minute,
			WatchFile:     "conf/watch.json",
		},
	}
}

// Load читает конфиг: умолчания -> файл -> окружение -> Validate.
// Пустой path: только умолчания и окружение.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	if path != "" {
		if err := loadFromFile(path, cfg); err != nil {
			return nil, fmt.Errorf("load config file: %w", err)
		}
	}

	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

func loadFromFile(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	return yaml.Unmarshal(data, cfg)
}

func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("BLACKET_TOKEN"); v != "" {
		cfg.Token = v
	}
	if v := os.Getenv("BLACKET_USERNAME"); v != "" {
		cfg.Username = v
	}
	if v := os.Getenv("BLACKET_PASSWORD"); v != "" {
		cfg.Password = v
	}
	if v := os.Getenv("BLACKET_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
	if v := os.Getenv("BLACKET_LOG_FORMAT"); v != "" {
		cfg.Logging.Format = v
	}
	if v := os.Getenv("BLACKET_ARCHIVE_DSN"); v != "" {
		cfg.Archive.DSN = v
	}
	if v := os.Getenv("BLACKET_INSPECT_ADDR"); v != "" {
		cfg.Inspect.Address = v
	}
	if v := os.Getenv("BLACKET_BOT_ROOM"); v != "" {
		if room, err := strconv.ParseInt(v, 10, 64); err == nil {
			cfg.Bot.Room = room
		}
	}
}

// Validate проверяет конфиг.
func (c *Config) Validate() error {
	if c.Token == "" && (c.Username == "" || c.Password == "") {
		return fmt.Errorf("token or username/password required")
	}
	if c.Reconnect.Delay < 0 || c.Reconnect.AckTimeout < 0 {
		return fmt.Errorf("reconnect durations cannot be negative")
	}
	if c.Reconnect.Attempts < 0 {
		return fmt.Errorf("reconnect attempts cannot be negative: %d", c.Reconnect.Attempts)
	}
	if !isValidLogLevel(c.Logging.Level) {
		return fmt.Errorf("invalid log level: %s", c.Logging.Level)
	}
	switch strings.ToLower(c.Logging.Format) {
	case "json", "console", "text":
	default:
		return fmt.Errorf("invalid log format: %s", c.Logging.Format)
	}
	if c.Archive.DSN != "" {
		switch c.Archive.Driver {
		case "sqlite3", "mysql":
		default:
			return fmt.Errorf("unsupported archive driver: %s", c.Archive.Driver)
		}
	}
	if c.Bot.Prefix == "" {
		return fmt.Errorf("bot prefix cannot be empty")
	}
	if c.Bot.WatchInterval <= 0 {
		return fmt.Errorf("bot watch interval must be positive")
	}
	return nil
}

func isValidLogLevel(level string) bool {
	switch strings.ToLower(level) {
	case "debug", "info", "warn", "error":
		return true
	}
	return false
}

// Options переводит конфиг в настройки клиента. Token передаётся отдельно:
// он может прийти из логина.
func (c *Config) Options(token string) blacket.Options {
	return blacket.Options{
		Token:             token,
		Reconnect:         c.Reconnect.Enabled,
		ReconnectTime:     c.Reconnect.Delay,
		ReconnectAttempts: c.Reconnect.Attempts,
		AckTimeout:        c.Reconnect.AckTimeout,
		BaseURL:           c.BaseURL,
		SocketURL:         c.SocketURL,
	}
}

// String: конфиг для лога, без секретов.
func (c *Config) String() string {
	return fmt.Sprintf("Config{Token: %s, Username: %s, Reconnect: %t, Log: %s/%s, Archive: %s, Inspect: %s, Watch: %d clans}",
		mask(c.Token), c.Username, c.Reconnect.Enabled, c.Logging.Level, c.Logging.Format,
		c.Archive.Driver, c.Inspect.Address, len(c.Bot.Watch))
}

func mask(s string) string {
	if s == "" {
		return ""
	}
	return "***"
}

// Schema: JSON Schema конфига (для редакторов и blacketbot -schema).
func Schema() *jsonschema.Schema {
	r := jsonschema.Reflector{
		AllowAdditionalProperties: true,
	}
	s := r.Reflect(new(Config))
	s.Title = "blacketbot config"
	s.Description = "YAML configuration of the blacketbot binary"
	return s
}
