package config

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	toml "github.com/pelletier/go-toml/v2"

	"github.com/five82/ocupado/internal/device"
)

// Device is one configured door sensor.
type Device struct {
	ID   string
	Name string
}

// MQTT configures the optional state publisher. An empty Broker disables it.
type MQTT struct {
	Broker      string
	TopicPrefix string
	ClientID    string
	Username    string
	Password    string
}

// Enabled reports whether a broker is configured.
func (m MQTT) Enabled() bool {
	return m.Broker != ""
}

// Config captures everything ocupado needs at startup.
type Config struct {
	BaseURL     string
	AccessToken string
	Devices     []Device
	RetryDelay  time.Duration
	ProbeEvery  time.Duration
	LogLevel    string
	LogFile     string
	HTTPAddr    string
	Theme       string
	MQTT        MQTT
}

const (
	defaultConfigPath  = "~/.config/ocupado/config.toml"
	defaultBaseURL     = "https://api.particle.io"
	defaultLogFile     = "~/.local/share/ocupado/ocupado.log"
	defaultLogLevel    = "info"
	defaultRetryDelay  = 3 * time.Second
	defaultProbeEvery  = 10 * time.Second
	defaultTopicPrefix = "ocupado"

	envAccessToken = "OCUPADO_ACCESS_TOKEN"
	envBaseURL     = "OCUPADO_BASE_URL"
)

// ErrInvalid wraps every validation failure.
var ErrInvalid = errors.New("invalid config")

type rawConfig struct {
	BaseURL     string      `toml:"base_url"`
	AccessToken string      `toml:"access_token"`
	RetryDelay  string      `toml:"retry_delay"`
	ProbeEvery  string      `toml:"probe_every"`
	LogLevel    string      `toml:"log_level"`
	LogFile     string      `toml:"log_file"`
	HTTPAddr    string      `toml:"http_addr"`
	Theme       string      `toml:"theme"`
	Devices     []rawDevice `toml:"devices"`
	MQTT        rawMQTT     `toml:"mqtt"`
}

type rawDevice struct {
	ID   string `toml:"id"`
	Name string `toml:"name"`
}

type rawMQTT struct {
	Broker      string `toml:"broker"`
	TopicPrefix string `toml:"topic_prefix"`
	ClientID    string `toml:"client_id"`
	Username    string `toml:"username"`
	Password    string `toml:"password"`
}

// Load locates, parses and validates the config. Unlike optional settings,
// the credential, base URL and device list are required: a missing file or
// an incomplete one is an error.
func Load(path string) (Config, error) {
	resolved, err := resolvePath(path)
	if err != nil {
		return Config{}, err
	}

	file, err := os.Open(resolved)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return Config{}, fmt.Errorf("%w: no config at %s", ErrInvalid, resolved)
		}
		return Config{}, fmt.Errorf("open config: %w", err)
	}
	defer file.Close()

	bytes, err := io.ReadAll(file)
	if err != nil {
		return Config{}, fmt.Errorf("read config: %w", err)
	}

	var raw rawConfig
	if err := toml.Unmarshal(bytes, &raw); err != nil {
		return Config{}, fmt.Errorf("parse config: %w", err)
	}

	cfg, err := raw.normalize()
	if err != nil {
		return Config{}, err
	}
	cfg.applyEnv()
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (raw rawConfig) normalize() (Config, error) {
	cfg := Config{
		BaseURL:     strings.TrimSpace(raw.BaseURL),
		AccessToken: strings.TrimSpace(raw.AccessToken),
		LogLevel:    strings.TrimSpace(raw.LogLevel),
		HTTPAddr:    strings.TrimSpace(raw.HTTPAddr),
		Theme:       strings.TrimSpace(raw.Theme),
		MQTT: MQTT{
			Broker:      strings.TrimSpace(raw.MQTT.Broker),
			TopicPrefix: strings.Trim(strings.TrimSpace(raw.MQTT.TopicPrefix), "/"),
			ClientID:    strings.TrimSpace(raw.MQTT.ClientID),
			Username:    strings.TrimSpace(raw.MQTT.Username),
			Password:    raw.MQTT.Password,
		},
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultBaseURL
	}
	if cfg.LogLevel == "" {
		cfg.LogLevel = defaultLogLevel
	}
	if cfg.MQTT.TopicPrefix == "" {
		cfg.MQTT.TopicPrefix = defaultTopicPrefix
	}

	logFile := strings.TrimSpace(raw.LogFile)
	if logFile == "" {
		logFile = defaultLogFile
	}
	cfg.LogFile = mustExpand(logFile)

	var err error
	if cfg.RetryDelay, err = parseDuration("retry_delay", raw.RetryDelay, defaultRetryDelay); err != nil {
		return Config{}, err
	}
	if cfg.ProbeEvery, err = parseDuration("probe_every", raw.ProbeEvery, defaultProbeEvery); err != nil {
		return Config{}, err
	}

	for _, d := range raw.Devices {
		cfg.Devices = append(cfg.Devices, Device{
			ID:   strings.TrimSpace(d.ID),
			Name: strings.TrimSpace(d.Name),
		})
	}
	return cfg, nil
}

func (c *Config) applyEnv() {
	if v := strings.TrimSpace(os.Getenv(envAccessToken)); v != "" {
		c.AccessToken = v
	}
	if v := strings.TrimSpace(os.Getenv(envBaseURL)); v != "" {
		c.BaseURL = v
	}
}

// Validate reports the first missing or inconsistent required setting.
func (c Config) Validate() error {
	if strings.TrimSpace(c.AccessToken) == "" {
		return fmt.Errorf("%w: access_token is required", ErrInvalid)
	}
	if strings.TrimSpace(c.BaseURL) == "" {
		return fmt.Errorf("%w: base_url is required", ErrInvalid)
	}
	if len(c.Devices) == 0 {
		return fmt.Errorf("%w: at least one [[devices]] entry is required", ErrInvalid)
	}
	seen := make(map[string]struct{}, len(c.Devices))
	for i, d := range c.Devices {
		if d.ID == "" {
			return fmt.Errorf("%w: devices[%d] has no id", ErrInvalid, i)
		}
		if _, dup := seen[d.ID]; dup {
			return fmt.Errorf("%w: device id %q listed twice", ErrInvalid, d.ID)
		}
		seen[d.ID] = struct{}{}
	}
	if c.RetryDelay <= 0 || c.ProbeEvery <= 0 {
		return fmt.Errorf("%w: retry_delay and probe_every must be positive", ErrInvalid)
	}
	return nil
}

// DeviceSpecs converts the device list for the monitor, preserving order.
func (c Config) DeviceSpecs() []device.Spec {
	specs := make([]device.Spec, 0, len(c.Devices))
	for _, d := range c.Devices {
		specs = append(specs, device.Spec{ID: device.ID(d.ID), Name: d.Name})
	}
	return specs
}

func parseDuration(field, value string, fallback time.Duration) (time.Duration, error) {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(trimmed)
	if err != nil {
		return 0, fmt.Errorf("%w: %s: %v", ErrInvalid, field, err)
	}
	return d, nil
}

// DefaultPath returns the default config file path.
func DefaultPath() string {
	return defaultConfigPath
}

func resolvePath(path string) (string, error) {
	if strings.TrimSpace(path) == "" {
		return expandPath(defaultConfigPath)
	}
	return expandPath(path)
}

func mustExpand(path string) string {
	expanded, err := expandPath(path)
	if err != nil {
		return path
	}
	return expanded
}

func expandPath(path string) (string, error) {
	trimmed := strings.TrimSpace(path)
	if trimmed == "" {
		return "", fmt.Errorf("path is empty")
	}
	if strings.HasPrefix(trimmed, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home dir: %w", err)
		}
		trimmed = filepath.Join(home, strings.TrimPrefix(trimmed, "~"))
	}
	return filepath.Abs(trimmed)
}
