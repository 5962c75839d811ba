package appconfig

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestLoadAppliesDefaultsWhenFileMissing(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.ConfigVersion != CurrentConfigVersion {
		t.Fatalf("expected config_version %d, got %d", CurrentConfigVersion, cfg.ConfigVersion)
	}
	if cfg.Agent.Binary != "claude" {
		t.Fatalf("expected default agent binary, got %q", cfg.Agent.Binary)
	}
	if cfg.Service.TabNameMax != 16 {
		t.Fatalf("expected default tab_name_max, got %d", cfg.Service.TabNameMax)
	}
	if cfg.HTTP.SessionCookie != "vibedeck_session" {
		t.Fatalf("expected default session cookie, got %q", cfg.HTTP.SessionCookie)
	}
}

func TestLoadMergesFileOverDefaults(t *testing.T) {
	path := writeConfig(t, `
config_version: 1
service:
  tab_name_max: 24
agent:
  binary: /opt/agent/bin/claude
commands:
  deploy: "deploy {args} from {branch}"
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Service.TabNameMax != 24 {
		t.Fatalf("expected tab_name_max 24, got %d", cfg.Service.TabNameMax)
	}
	if cfg.Service.EntryMaxLines != 5000 {
		t.Fatalf("expected default entry_max_lines, got %d", cfg.Service.EntryMaxLines)
	}
	if cfg.Agent.Binary != "/opt/agent/bin/claude" {
		t.Fatalf("expected agent binary override, got %q", cfg.Agent.Binary)
	}
	if cfg.Commands["deploy"] != "deploy {args} from {branch}" {
		t.Fatalf("expected custom command, got %q", cfg.Commands["deploy"])
	}
}

func TestLoadRejectsMissingConfigVersion(t *testing.T) {
	path := writeConfig(t, `
state_dir: /tmp/vibedeck
`)
	if _, err := Load(path); err == nil || !strings.Contains(err.Error(), "config_version is required") {
		t.Fatalf("expected config_version error, got %v", err)
	}
}

func TestLoadRejectsUnsupportedConfigVersion(t *testing.T) {
	path := writeConfig(t, `
config_version: 3
`)
	if _, err := Load(path); err == nil || !strings.Contains(err.Error(), "unsupported config_version") {
		t.Fatalf("expected config_version error, got %v", err)
	}
}

func TestLoadRejectsInvalidDefaultMode(t *testing.T) {
	path := writeConfig(t, `
config_version: 1
service:
  default_mode: voice
`)
	if _, err := Load(path); err == nil || !strings.Contains(err.Error(), "service.default_mode") {
		t.Fatalf("expected default_mode error, got %v", err)
	}
}

func TestLoadRejectsInvalidRateLimit(t *testing.T) {
	path := writeConfig(t, `
config_version: 1
http:
  rate_per_second: 0
`)
	if _, err := Load(path); err == nil || !strings.Contains(err.Error(), "http.rate_per_second") {
		t.Fatalf("expected rate limit error, got %v", err)
	}
}

func TestExpandEnv(t *testing.T) {
	t.Setenv("FOO", "bar")
	value := expandEnv("$FOO/$UID/$GID/$MISSING")
	if !strings.HasPrefix(value, "bar/") {
		t.Fatalf("expected env expansion, got %q", value)
	}
	if strings.Contains(value, "$UID") || strings.Contains(value, "$GID") {
		t.Fatalf("expected UID/GID expansion, got %q", value)
	}
	if !strings.HasSuffix(value, "/$MISSING") {
		t.Fatalf("expected missing vars to remain, got %q", value)
	}
}

func TestWriteDefaultRespectsOverwrite(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	written, err := WriteDefault(path, false)
	if err != nil {
		t.Fatalf("write default: %v", err)
	}
	if written != path {
		t.Fatalf("expected path %q, got %q", path, written)
	}
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("expected config to exist: %v", err)
	}
	if _, err := WriteDefault(path, false); err == nil {
		t.Fatalf("expected error when config exists")
	}
	if _, err := WriteDefault(path, true); err != nil {
		t.Fatalf("expected overwrite to succeed: %v", err)
	}
}

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, []byte(strings.TrimSpace(content)+"\n"), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}
