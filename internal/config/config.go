// Package config loads gateway settings from a TOML file and the
// environment.
//
// Precedence, lowest first: built-in defaults, the file, WAGATE_*
// environment variables. The result is validated before it is returned.
package config

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"

	"wagate/internal/logging"
)

const (
	EnvSessionID      = "WAGATE_SESSION_ID"
	EnvDataDir        = "WAGATE_DATA_DIR"
	EnvPassphrase     = "WAGATE_PASSPHRASE"
	EnvListen         = "WAGATE_LISTEN"
	EnvAllowRemote    = "WAGATE_ALLOW_REMOTE"
	EnvAPIKey         = "WAGATE_API_KEY"
	EnvWebsocket      = "WAGATE_WEBSOCKET"
	EnvWebhookEnabled = "WAGATE_WEBHOOK_ENABLED"
	EnvWebhookURL     = "WAGATE_WEBHOOK_URL"
	EnvDBDialect      = "WAGATE_DB_DIALECT"
	EnvDBAddress      = "WAGATE_DB_ADDRESS"
	EnvMaxRetries     = "WAGATE_MAX_RETRIES"
)

// Config is the full gateway configuration.
type Config struct {
	SessionID  string `toml:"session_id"`
	DataDir    string `toml:"data_dir"`
	Passphrase string `toml:"passphrase"`
	DeviceName string `toml:"device_name"`

	HTTP      HTTPConfig      `toml:"http"`
	Reconnect ReconnectConfig `toml:"reconnect"`
	Webhook   WebhookConfig   `toml:"webhook"`
	Database  DatabaseConfig  `toml:"database"`
	Media     MediaConfig     `toml:"media"`
	Phone     PhoneConfig     `toml:"phone"`
	Log       LogConfig       `toml:"log"`
}

type HTTPConfig struct {
	Listen      string `toml:"listen"`
	AllowRemote bool   `toml:"allow_remote"`
	APIKey      string `toml:"api_key"`
	Websocket   bool   `toml:"websocket"`
}

type ReconnectConfig struct {
	BaseDelay time.Duration `toml:"base_delay"`
	MaxDelay  time.Duration `toml:"max_delay"`
	// MaxRetries of zero retries forever.
	MaxRetries int `toml:"max_retries"`
}

type WebhookConfig struct {
	Enabled bool          `toml:"enabled"`
	URL     string        `toml:"url"`
	Timeout time.Duration `toml:"timeout"`
}

type DatabaseConfig struct {
	Dialect string `toml:"dialect"`
	Address string `toml:"address"`
}

// MediaConfig bounds fetching image and document URLs.
type MediaConfig struct {
	Timeout time.Duration `toml:"timeout"`
	// MaxBytes of zero uses the transport default.
	MaxBytes int64 `toml:"max_bytes"`
}

type PhoneConfig struct {
	CountryCode string `toml:"country_code"`
	AreaCodeLen int    `toml:"area_code_len"`
	MobileDigit string `toml:"mobile_digit"`
	// SubscriberLen is the subscriber length without the mobile digit.
	SubscriberLen int `toml:"subscriber_len"`
}

type LogConfig struct {
	Level  string `toml:"level"`
	Format string `toml:"format"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		SessionID:  "session-config",
		DataDir:    "data",
		DeviceName: "Whatsapp Bot",
		HTTP: HTTPConfig{
			Listen:    "127.0.0.1:3000",
			Websocket: true,
		},
		Reconnect: ReconnectConfig{
			BaseDelay: time.Second,
			MaxDelay:  30 * time.Second,
		},
		Webhook: WebhookConfig{
			Timeout: 10 * time.Second,
		},
		Database: DatabaseConfig{
			Dialect: "sqlite3",
		},
		Media: MediaConfig{
			Timeout: 30 * time.Second,
		},
		Phone: PhoneConfig{
			CountryCode:   "55",
			AreaCodeLen:   2,
			MobileDigit:   "9",
			SubscriberLen: 8,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// Load reads path over the defaults, applies environment overrides and
// validates. An empty path skips the file.
func Load(path string) (Config, error) {
	cfg := Default()
	if path != "" {
		meta, err := toml.DecodeFile(path, &cfg)
		if err != nil {
			return Config{}, fmt.Errorf("config load failed (%s): %w", path, err)
		}
		if undecoded := meta.Undecoded(); len(undecoded) > 0 {
			keys := make([]string, len(undecoded))
			for i, k := range undecoded {
				keys[i] = k.String()
			}
			return Config{}, fmt.Errorf("config %s: unknown keys %s", path, strings.Join(keys, ", "))
		}
	}
	if err := applyEnvOverrides(&cfg); err != nil {
		return Config{}, err
	}
	if err := Validate(cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func applyEnvOverrides(cfg *Config) error {
	setString(&cfg.SessionID, EnvSessionID)
	setString(&cfg.DataDir, EnvDataDir)
	setString(&cfg.Passphrase, EnvPassphrase)
	setString(&cfg.HTTP.Listen, EnvListen)
	setString(&cfg.HTTP.APIKey, EnvAPIKey)
	setString(&cfg.Webhook.URL, EnvWebhookURL)
	setString(&cfg.Database.Dialect, EnvDBDialect)
	setString(&cfg.Database.Address, EnvDBAddress)

	for env, dst := range map[string]*bool{
		EnvAllowRemote:    &cfg.HTTP.AllowRemote,
		EnvWebsocket:      &cfg.HTTP.Websocket,
		EnvWebhookEnabled: &cfg.Webhook.Enabled,
	} {
		raw := strings.TrimSpace(os.Getenv(env))
		if raw == "" {
			continue
		}
		v, err := strconv.ParseBool(raw)
		if err != nil {
			return fmt.Errorf("%s: %w", env, err)
		}
		*dst = v
	}

	if raw := strings.TrimSpace(os.Getenv(EnvMaxRetries)); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			return fmt.Errorf("%s: %w", EnvMaxRetries, err)
		}
		cfg.Reconnect.MaxRetries = n
	}
	return nil
}

func setString(dst *string, env string) {
	if v := strings.TrimSpace(os.Getenv(env)); v != "" {
		*dst = v
	}
}

// Validate reports the first invalid setting.
func Validate(cfg Config) error {
	if strings.TrimSpace(cfg.SessionID) == "" {
		return fmt.Errorf("config missing session_id")
	}
	if strings.ContainsAny(cfg.SessionID, `/\`) || cfg.SessionID == "." || cfg.SessionID == ".." {
		return fmt.Errorf("session_id %q is not a valid file name", cfg.SessionID)
	}
	if strings.TrimSpace(cfg.DataDir) == "" {
		return fmt.Errorf("config missing data_dir")
	}
	if strings.TrimSpace(cfg.HTTP.Listen) == "" {
		return fmt.Errorf("config missing http.listen")
	}

	r := cfg.Reconnect
	if r.BaseDelay <= 0 {
		return fmt.Errorf("reconnect.base_delay must be positive")
	}
	if r.MaxDelay < r.BaseDelay {
		return fmt.Errorf("reconnect.max_delay %s is below base_delay %s", r.MaxDelay, r.BaseDelay)
	}
	if r.MaxRetries < 0 {
		return fmt.Errorf("reconnect.max_retries must not be negative")
	}

	if cfg.Webhook.Enabled {
		if strings.TrimSpace(cfg.Webhook.URL) == "" {
			return fmt.Errorf("webhook.url is required when webhook.enabled is true")
		}
		u, err := url.Parse(cfg.Webhook.URL)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			return fmt.Errorf("webhook.url %q must be an absolute http(s) URL", cfg.Webhook.URL)
		}
	}

	switch cfg.Database.Dialect {
	case "sqlite3":
	case "postgres":
		if strings.TrimSpace(cfg.Database.Address) == "" {
			return fmt.Errorf("database.address is required for postgres")
		}
	default:
		return fmt.Errorf("database.dialect %q must be sqlite3 or postgres", cfg.Database.Dialect)
	}

	if cfg.Media.Timeout <= 0 {
		return fmt.Errorf("media.timeout must be positive")
	}
	if cfg.Media.MaxBytes < 0 {
		return fmt.Errorf("media.max_bytes must not be negative")
	}

	p := cfg.Phone
	if p.CountryCode != "" {
		if len(p.MobileDigit) != 1 || p.MobileDigit[0] < '0' || p.MobileDigit[0] > '9' {
			return fmt.Errorf("phone.mobile_digit %q must be a single digit", p.MobileDigit)
		}
		if p.AreaCodeLen < 0 || p.SubscriberLen <= 0 {
			return fmt.Errorf("phone.area_code_len and phone.subscriber_len must be positive")
		}
	}

	if !logging.ValidLevel(cfg.Log.Level) {
		return fmt.Errorf("log.level %q is not a known level", cfg.Log.Level)
	}
	switch strings.ToLower(cfg.Log.Format) {
	case "", "text", "json":
	default:
		return fmt.Errorf("log.format %q must be text or json", cfg.Log.Format)
	}
	return nil
}

// DatabaseAddress returns the device store DSN, defaulting to a sqlite
// file inside DataDir.
func (c Config) DatabaseAddress() string {
	if c.Database.Address != "" {
		return c.Database.Address
	}
	return "file:" + filepath.Join(c.DataDir, "device.db") + "?_foreign_keys=on"
}

// CredentialsDir is where session bundles are stored.
func (c Config) CredentialsDir() string {
	return filepath.Join(c.DataDir, "sessions")
}
