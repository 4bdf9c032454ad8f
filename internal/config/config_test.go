package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.toml")
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	return path
}

const minimalConfig = `
access_token = "tok"

[[devices]]
id = "dev1"
name = "Toilet 1"
`

func TestLoad_MissingConfigFails(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)

	_, err := Load(filepath.Join(home, "does-not-exist.toml"))
	if !errors.Is(err, ErrInvalid) {
		t.Fatalf("Load error = %v, want ErrInvalid", err)
	}
}

func TestLoad_MinimalUsesDefaults(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)
	t.Setenv(envAccessToken, "")
	t.Setenv(envBaseURL, "")

	cfg, err := Load(writeConfig(t, minimalConfig))
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if cfg.BaseURL != defaultBaseURL {
		t.Fatalf("BaseURL = %q, want %q", cfg.BaseURL, defaultBaseURL)
	}
	if cfg.RetryDelay != defaultRetryDelay {
		t.Fatalf("RetryDelay = %v, want %v", cfg.RetryDelay, defaultRetryDelay)
	}
	if cfg.ProbeEvery != defaultProbeEvery {
		t.Fatalf("ProbeEvery = %v, want %v", cfg.ProbeEvery, defaultProbeEvery)
	}
	if cfg.LogLevel != defaultLogLevel {
		t.Fatalf("LogLevel = %q, want %q", cfg.LogLevel, defaultLogLevel)
	}
	wantLog, err := expandPath(defaultLogFile)
	if err != nil {
		t.Fatalf("expandPath(defaultLogFile) returned error: %v", err)
	}
	if cfg.LogFile != wantLog {
		t.Fatalf("LogFile = %q, want %q", cfg.LogFile, wantLog)
	}
	if cfg.MQTT.Enabled() {
		t.Fatalf("MQTT enabled without broker")
	}
	if cfg.MQTT.TopicPrefix != defaultTopicPrefix {
		t.Fatalf("TopicPrefix = %q, want %q", cfg.MQTT.TopicPrefix, defaultTopicPrefix)
	}
}

func TestLoad_ParsesAndTrimsConfig(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)
	t.Setenv(envAccessToken, "")
	t.Setenv(envBaseURL, "")

	cfg, err := Load(writeConfig(t, `
base_url = "  http://10.0.0.5:8080  "
access_token = "  secret  "
retry_delay = "5s"
probe_every = "30s"
log_level = " debug "
log_file = "  ~/.ocupado/log.json  "
http_addr = "127.0.0.1:9100"

[[devices]]
id = " b "
name = " Toilet 2 "

[[devices]]
id = "a"

[mqtt]
broker = "tcp://localhost:1883"
topic_prefix = "/office/toilets/"
`))
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if cfg.BaseURL != "http://10.0.0.5:8080" || cfg.AccessToken != "secret" {
		t.Fatalf("BaseURL/AccessToken = %q/%q", cfg.BaseURL, cfg.AccessToken)
	}
	if cfg.RetryDelay != 5*time.Second || cfg.ProbeEvery != 30*time.Second {
		t.Fatalf("durations = %v/%v, want 5s/30s", cfg.RetryDelay, cfg.ProbeEvery)
	}
	if cfg.LogLevel != "debug" {
		t.Fatalf("LogLevel = %q, want debug", cfg.LogLevel)
	}
	if !strings.HasPrefix(cfg.LogFile, home) {
		t.Fatalf("LogFile = %q, want it under HOME %q", cfg.LogFile, home)
	}
	specs := cfg.DeviceSpecs()
	if len(specs) != 2 || specs[0].ID != "b" || specs[0].Name != "Toilet 2" || specs[1].ID != "a" {
		t.Fatalf("DeviceSpecs = %#v, want b then a in file order", specs)
	}
	if !cfg.MQTT.Enabled() || cfg.MQTT.TopicPrefix != "office/toilets" {
		t.Fatalf("MQTT = %#v, want enabled with trimmed prefix", cfg.MQTT)
	}
}

func TestLoad_EnvironmentOverrides(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	t.Setenv(envAccessToken, "from-env")
	t.Setenv(envBaseURL, "http://override")

	cfg, err := Load(writeConfig(t, `
[[devices]]
id = "dev1"
`))
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if cfg.AccessToken != "from-env" || cfg.BaseURL != "http://override" {
		t.Fatalf("env not applied: %q %q", cfg.AccessToken, cfg.BaseURL)
	}
}

func TestLoad_RejectsIncompleteConfig(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	t.Setenv(envAccessToken, "")
	t.Setenv(envBaseURL, "")

	tests := []struct {
		name string
		body string
		want string
	}{
		{"no token", "[[devices]]\nid = \"a\"\n", "access_token"},
		{"no devices", "access_token = \"tok\"\n", "devices"},
		{"empty id", "access_token = \"tok\"\n[[devices]]\nname = \"x\"\n", "no id"},
		{"duplicate id", "access_token = \"tok\"\n[[devices]]\nid = \"a\"\n[[devices]]\nid = \"a\"\n", "twice"},
		{"bad duration", "access_token = \"tok\"\nretry_delay = \"soon\"\n[[devices]]\nid = \"a\"\n", "retry_delay"},
		{"negative duration", "access_token = \"tok\"\nprobe_every = \"-1s\"\n[[devices]]\nid = \"a\"\n", "positive"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tt.body))
			if !errors.Is(err, ErrInvalid) {
				t.Fatalf("Load error = %v, want ErrInvalid", err)
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Fatalf("Load error = %q, want it to mention %q", err.Error(), tt.want)
			}
		})
	}
}

func TestLoad_InvalidTOMLFails(t *testing.T) {
	_, err := Load(writeConfig(t, `access_token = [`))
	if err == nil {
		t.Fatalf("Load returned nil error, want parse error")
	}
	if !strings.Contains(err.Error(), "parse config") {
		t.Fatalf("Load error = %q, want it to mention parse config", err.Error())
	}
}

func TestExpandPath_ExpandsTildeAndReturnsAbs(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)

	got, err := expandPath("~/a/b")
	if err != nil {
		t.Fatalf("expandPath returned error: %v", err)
	}
	want := filepath.Join(home, "a/b")
	if got != want {
		t.Fatalf("expandPath = %q, want %q", got, want)
	}
}

func TestExpandPath_EmptyErrors(t *testing.T) {
	if _, err := expandPath("   "); err == nil {
		t.Fatalf("expandPath returned nil error, want error")
	}
}
