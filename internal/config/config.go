// Package config loads service configuration from defaults, an optional YAML
// file, an optional .env file and TENDRIL_* environment variables, in that
// order of precedence.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/mitchellh/mapstructure"
	"gopkg.in/yaml.v3"
)

// EnvPrefix prefixes every environment override.
const EnvPrefix = "TENDRIL_"

// Config is the complete service configuration.
type Config struct {
	Log           LogConfig         `mapstructure:"log"`
	Browser       BrowserConfig     `mapstructure:"browser"`
	Redis         RedisConfig       `mapstructure:"redis"`
	Ledger        LedgerConfig      `mapstructure:"ledger"`
	HTTP          HTTPConfig        `mapstructure:"http"`
	Auth          AuthConfig        `mapstructure:"auth"`
	Quota         QuotaConfig       `mapstructure:"quota"`
	Limits        LimitsConfig      `mapstructure:"limits"`
	SelectorsFile string            `mapstructure:"selectors_file"`
	Answers       map[string]string `mapstructure:"answers"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

type BrowserConfig struct {
	Headless    bool          `mapstructure:"headless"`
	Bin         string        `mapstructure:"bin"`
	ControlURL  string        `mapstructure:"control_url"`
	UserDataDir string        `mapstructure:"user_data_dir"`
	MaxSessions int           `mapstructure:"max_sessions"`
	PacingMin   time.Duration `mapstructure:"pacing_min"`
	PacingMax   time.Duration `mapstructure:"pacing_max"`
	Ready       time.Duration `mapstructure:"ready_timeout"`
	// UserAgents overrides the browser's built-in pool. From the environment
	// it is a comma-separated list.
	UserAgents []string `mapstructure:"user_agents"`
}

// RedisConfig selects the shared ledger backend. An empty Addr falls back to LedgerConfig.
type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
	Prefix   string `mapstructure:"prefix"`
}

// LedgerConfig applies when Redis is not configured. An empty File keeps the
// ledger in memory. A non-empty HashKey stores identifiers as keyed hashes.
type LedgerConfig struct {
	File    string `mapstructure:"file"`
	HashKey string `mapstructure:"hash_key"`
}

type HTTPConfig struct {
	Addr string `mapstructure:"addr"`
}

type AuthConfig struct {
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`
	LoginURL string `mapstructure:"login_url"`
}

// QuotaConfig bounds outbound messages. Zero disables the quota.
type QuotaConfig struct {
	MessagesPerDay int `mapstructure:"messages_per_day"`
}

type LimitsConfig struct {
	MaxPages         int `mapstructure:"max_pages"`
	MaxShowMore      int `mapstructure:"max_show_more"`
	MaxFormSteps     int `mapstructure:"max_form_steps"`
	MaxCaptchaRounds int `mapstructure:"max_captcha_rounds"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Log: LogConfig{Level: "info", Format: "text"},
		Browser: BrowserConfig{
			Headless:    true,
			MaxSessions: 2,
			PacingMin:   500 * time.Millisecond,
			PacingMax:   1500 * time.Millisecond,
			Ready:       10 * time.Second,
		},
		Redis:  RedisConfig{Prefix: "tendril:"},
		Ledger: LedgerConfig{File: ".tendril/ledger.json"},
		HTTP:   HTTPConfig{Addr: ":8080"},
		Auth:   AuthConfig{LoginURL: "https://www.linkedin.com/login"},
		Limits: LimitsConfig{
			MaxPages:         10,
			MaxShowMore:      20,
			MaxFormSteps:     8,
			MaxCaptchaRounds: 3,
		},
	}
}

// envKeys lists the dotted keys that accept environment overrides.
var envKeys = []string{
	"log.level", "log.format",
	"browser.headless", "browser.bin", "browser.control_url", "browser.user_data_dir",
	"browser.max_sessions", "browser.pacing_min", "browser.pacing_max", "browser.ready_timeout",
	"browser.user_agents",
	"redis.addr", "redis.password", "redis.db", "redis.prefix",
	"ledger.file", "ledger.hash_key",
	"http.addr",
	"auth.username", "auth.password", "auth.login_url",
	"quota.messages_per_day",
	"selectors_file",
	"limits.max_pages", "limits.max_show_more", "limits.max_form_steps", "limits.max_captcha_rounds",
}

// EnvName returns the environment variable overriding a dotted key.
func EnvName(key string) string {
	return EnvPrefix + strings.ToUpper(strings.ReplaceAll(key, ".", "_"))
}

type loader struct {
	envFile string
	lookup  func(string) (string, bool)
}

// Option configures Load.
type Option func(*loader)

// WithEnvFile reads dotenv values from name instead of ".env".
// An empty name disables the dotenv layer.
func WithEnvFile(name string) Option {
	return func(l *loader) {
		l.envFile = name
	}
}

// WithLookup replaces os.LookupEnv.
func WithLookup(lookup func(string) (string, bool)) Option {
	return func(l *loader) {
		l.lookup = lookup
	}
}

// Load builds the configuration. An empty path skips the YAML layer; a
// missing .env file is ignored.
func Load(path string, opts ...Option) (*Config, error) {
	l := &loader{envFile: ".env", lookup: os.LookupEnv}
	for _, opt := range opts {
		opt(l)
	}

	raw := map[string]any{}
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
		if err := yaml.Unmarshal(data, &raw); err != nil {
			return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
		}
		if raw == nil {
			raw = map[string]any{}
		}
	}

	dotenv := map[string]string{}
	if l.envFile != "" {
		values, err := godotenv.Read(l.envFile)
		switch {
		case err == nil:
			dotenv = values
		case !errors.Is(err, os.ErrNotExist):
			return nil, fmt.Errorf("failed to read %s: %w", l.envFile, err)
		}
	}

	for _, key := range envKeys {
		name := EnvName(key)
		v, ok := l.lookup(name)
		if !ok {
			v, ok = dotenv[name]
		}
		if ok {
			set(raw, key, v)
		}
	}

	cfg := Default()
	if err := decode(raw, cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func decode(raw map[string]any, cfg *Config) error {
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           cfg,
		WeaklyTypedInput: true,
		ErrorUnused:      true,
		DecodeHook: mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeDurationHookFunc(),
			mapstructure.StringToSliceHookFunc(","),
		),
	})
	if err != nil {
		return err
	}
	if err := dec.Decode(raw); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}

// set writes v at a dotted path, creating intermediate maps.
func set(m map[string]any, key string, v any) {
	parts := strings.Split(key, ".")
	for _, p := range parts[:len(parts)-1] {
		next, ok := m[p].(map[string]any)
		if !ok {
			next = map[string]any{}
			m[p] = next
		}
		m = next
	}
	m[parts[len(parts)-1]] = v
}

// Validate reports every invalid setting.
func (c *Config) Validate() error {
	var errs []error
	switch strings.ToLower(c.Log.Level) {
	case "debug", "info", "warn", "error":
	default:
		errs = append(errs, fmt.Errorf("log.level: unknown level %q", c.Log.Level))
	}
	switch strings.ToLower(c.Log.Format) {
	case "text", "json":
	default:
		errs = append(errs, fmt.Errorf("log.format: must be text or json, got %q", c.Log.Format))
	}
	if c.Browser.MaxSessions < 1 {
		errs = append(errs, errors.New("browser.max_sessions: must be at least 1"))
	}
	if c.Browser.PacingMin < 0 || c.Browser.PacingMax < c.Browser.PacingMin {
		errs = append(errs, fmt.Errorf("browser.pacing: need 0 <= min <= max, got %s..%s", c.Browser.PacingMin, c.Browser.PacingMax))
	}
	if c.Browser.Ready <= 0 {
		errs = append(errs, errors.New("browser.ready_timeout: must be positive"))
	}
	for i, ua := range c.Browser.UserAgents {
		if strings.TrimSpace(ua) == "" {
			errs = append(errs, fmt.Errorf("browser.user_agents[%d]: must not be empty", i))
		}
	}
	if c.Redis.DB < 0 {
		errs = append(errs, errors.New("redis.db: must not be negative"))
	}
	if c.Quota.MessagesPerDay < 0 {
		errs = append(errs, errors.New("quota.messages_per_day: must not be negative"))
	}
	for name, v := range map[string]int{
		"limits.max_pages":          c.Limits.MaxPages,
		"limits.max_show_more":      c.Limits.MaxShowMore,
		"limits.max_form_steps":     c.Limits.MaxFormSteps,
		"limits.max_captcha_rounds": c.Limits.MaxCaptchaRounds,
	} {
		if v < 1 {
			errs = append(errs, fmt.Errorf("%s: must be at least 1", name))
		}
	}
	return errors.Join(errs...)
}
