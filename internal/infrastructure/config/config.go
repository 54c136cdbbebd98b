package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/goccy/go-yaml"
	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	"github.com/pelletier/go-toml/v2"
)

// DefaultConnectURL is the connect URL template used when none is configured.
const DefaultConnectURL = "ws://[[client-hostname]]:[[client-port]]/figwheel-connect"

// Config holds all bridge configuration.
type Config struct {
	Connect ConnectConfig `yaml:"connect" toml:"connect"`
	Host    HostConfig    `yaml:"host" toml:"host"`
	Session SessionConfig `yaml:"session" toml:"session"`
	Output  OutputConfig  `yaml:"output" toml:"output"`
	Logging LogConfig     `yaml:"logging" toml:"logging"`
	Status  StatusConfig  `yaml:"status" toml:"status"`
}

// ConnectConfig holds transport configuration.
type ConnectConfig struct {
	URL          string        `envconfig:"BRIDGE_CONNECT_URL" yaml:"url" toml:"url"`
	PageURL      string        `envconfig:"BRIDGE_PAGE_URL" yaml:"page_url" toml:"page_url"`
	WebSocket    bool          `envconfig:"BRIDGE_WEBSOCKET" yaml:"websocket" toml:"websocket"`
	PollInterval time.Duration `envconfig:"BRIDGE_POLL_INTERVAL" yaml:"poll_interval" toml:"poll_interval"`
	BackoffBase  time.Duration `envconfig:"BRIDGE_BACKOFF_BASE" yaml:"backoff_base" toml:"backoff_base"`
	BackoffMax   time.Duration `envconfig:"BRIDGE_BACKOFF_MAX" yaml:"backoff_max" toml:"backoff_max"`
	HTTPTimeout  time.Duration `envconfig:"BRIDGE_HTTP_TIMEOUT" yaml:"http_timeout" toml:"http_timeout"`
	SendRPS      float64       `envconfig:"BRIDGE_SEND_RPS" yaml:"send_rps" toml:"send_rps"`
}

// HostConfig describes the embedded program host.
type HostConfig struct {
	Env           string        `envconfig:"BRIDGE_HOST_ENV" yaml:"env" toml:"env"`
	RootDir       string        `envconfig:"BRIDGE_ROOT_DIR" yaml:"root_dir" toml:"root_dir"`
	UserAgent     string        `envconfig:"BRIDGE_USER_AGENT" yaml:"user_agent" toml:"user_agent"`
	EvalTimeout   time.Duration `envconfig:"BRIDGE_EVAL_TIMEOUT" yaml:"eval_timeout" toml:"eval_timeout"`
	ReloadTimeout time.Duration `envconfig:"BRIDGE_RELOAD_TIMEOUT" yaml:"reload_timeout" toml:"reload_timeout"`
}

// SessionConfig holds session persistence configuration.
type SessionConfig struct {
	File string `envconfig:"BRIDGE_SESSION_FILE" yaml:"file" toml:"file"`
}

// OutputConfig selects the print receivers, comma separated ("console,repl").
type OutputConfig struct {
	Print string `envconfig:"BRIDGE_PRINT_OUTPUT" yaml:"print" toml:"print"`
}

// LogConfig holds logging configuration.
type LogConfig struct {
	Level       string `envconfig:"BRIDGE_LOG_LEVEL" yaml:"level" toml:"level"`
	Development bool   `envconfig:"BRIDGE_LOG_DEV" yaml:"development" toml:"development"`
}

// StatusConfig holds the local status endpoint configuration. Empty Addr disables it.
type StatusConfig struct {
	Addr string `envconfig:"BRIDGE_STATUS_ADDR" yaml:"addr" toml:"addr"`
}

// Default returns default configuration.
func Default() *Config {
	return &Config{
		Connect: ConnectConfig{
			URL:          DefaultConnectURL,
			WebSocket:    true,
			PollInterval: 500 * time.Millisecond,
			BackoffBase:  time.Second,
			BackoffMax:   20 * time.Second,
		},
		Host: HostConfig{
			Env:           "auto",
			RootDir:       ".",
			EvalTimeout:   30 * time.Second,
			ReloadTimeout: 30 * time.Second,
		},
		Output: OutputConfig{
			Print: "console,repl",
		},
		Logging: LogConfig{
			Level: "info",
		},
	}
}

// Load builds configuration from defaults, an optional .env file and
// environment variables.
func Load() (*Config, error) {
	return LoadFile("")
}

// LoadFile builds configuration from defaults, the given YAML or TOML file
// (skipped when path is empty), an optional .env file and environment
// variables, in increasing order of precedence.
func LoadFile(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		if err := decodeFile(path, cfg); err != nil {
			return nil, err
		}
	}

	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}

	if err := envconfig.Process("", cfg); err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	return cfg, nil
}

// LoadOrDefault loads configuration from environment or returns default.
func LoadOrDefault() *Config {
	cfg, err := Load()
	if err != nil {
		return Default()
	}
	return cfg
}

func decodeFile(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, cfg)
	case ".toml":
		err = toml.Unmarshal(data, cfg)
	default:
		return fmt.Errorf("unsupported config file format: %s", path)
	}
	if err != nil {
		return fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	return nil
}

// PrintReceivers splits the print output setting into receiver names.
func (c OutputConfig) PrintReceivers() []string {
	var out []string
	for _, p := range strings.Split(c.Print, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
