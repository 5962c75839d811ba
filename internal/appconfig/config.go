package appconfig

import (
	"os"
	"path/filepath"

	"github.com/ryanhaqueIT/vibedeck/internal/auth"
	"github.com/ryanhaqueIT/vibedeck/schema"
)

// Config is the top-level application configuration.
type Config struct {
	ConfigVersion int               `mapstructure:"config_version" yaml:"config_version"`
	StateDir      string            `mapstructure:"state_dir" yaml:"state_dir"`
	Service       ServiceConfig     `mapstructure:"service" yaml:"service"`
	Agent         AgentConfig       `mapstructure:"agent" yaml:"agent"`
	Shell         ShellConfig       `mapstructure:"shell" yaml:"shell"`
	Commands      map[string]string `mapstructure:"commands" yaml:"commands"`
	HTTP          HTTPConfig        `mapstructure:"http" yaml:"http"`
	Auth          AuthConfig        `mapstructure:"auth" yaml:"auth"`
	Logging       LoggingConfig     `mapstructure:"logging" yaml:"logging"`
}

// CurrentConfigVersion marks the supported config version.
const CurrentConfigVersion = 1

// ServiceConfig controls core engine behavior.
type ServiceConfig struct {
	TabNameMax    int    `mapstructure:"tab_name_max" yaml:"tab_name_max"`
	TabNameSuffix string `mapstructure:"tab_name_suffix" yaml:"tab_name_suffix"`
	EntryMaxLines int    `mapstructure:"entry_max_lines" yaml:"entry_max_lines"`
	DefaultMode   string `mapstructure:"default_mode" yaml:"default_mode"`
	DefaultTheme  string `mapstructure:"default_theme" yaml:"default_theme"`
}

// AgentConfig configures the batch-mode agent process.
type AgentConfig struct {
	Binary   string            `mapstructure:"binary" yaml:"binary"`
	Args     []string          `mapstructure:"args" yaml:"args"`
	Env      map[string]string `mapstructure:"env" yaml:"env"`
	Preamble string            `mapstructure:"preamble" yaml:"preamble"`
}

// ShellConfig configures the persistent shell.
type ShellConfig struct {
	Binary string `mapstructure:"binary" yaml:"binary"`
}

// HTTPConfig configures the remote-access server.
type HTTPConfig struct {
	Addr            string   `mapstructure:"addr" yaml:"addr"`
	SessionCookie   string   `mapstructure:"session_cookie" yaml:"session_cookie"`
	SessionTTLHours int      `mapstructure:"session_ttl_hours" yaml:"session_ttl_hours"`
	AllowedOrigins  []string `mapstructure:"allowed_origins" yaml:"allowed_origins"`
	RatePerSecond   float64  `mapstructure:"rate_per_second" yaml:"rate_per_second"`
	RateBurst       int      `mapstructure:"rate_burst" yaml:"rate_burst"`
}

// AuthConfig configures auth storage and seed users.
type AuthConfig struct {
	UserFile  string          `mapstructure:"user_file" yaml:"user_file"`
	SeedUsers []auth.SeedUser `mapstructure:"seed_users" yaml:"seed_users"`
}

// LoggingConfig controls log output and audit behavior.
type LoggingConfig struct {
	Level              string `mapstructure:"level" yaml:"level"`
	DisableAuditTrails bool   `mapstructure:"disable_audit_trails" yaml:"disable_audit_trails"`
}

// DefaultConfig returns a config with sensible defaults.
func DefaultConfig() (Config, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return Config{}, err
	}
	return Config{
		ConfigVersion: CurrentConfigVersion,
		StateDir:      filepath.Join(home, ".vibedeck", "state"),
		Service: ServiceConfig{
			TabNameMax:    16,
			TabNameSuffix: "$",
			EntryMaxLines: schema.DefaultEntryMaxLines,
			DefaultMode:   string(schema.InputModeAI),
			DefaultTheme:  string(schema.DefaultTheme),
		},
		Agent: AgentConfig{
			Binary: "claude",
			Args:   []string{},
			Env:    map[string]string{},
		},
		Shell: ShellConfig{
			Binary: "",
		},
		Commands: map[string]string{},
		HTTP: HTTPConfig{
			Addr:            ":27490",
			SessionCookie:   "vibedeck_session",
			SessionTTLHours: 720,
			AllowedOrigins:  []string{},
			RatePerSecond:   10,
			RateBurst:       20,
		},
		Auth: AuthConfig{
			UserFile:  filepath.Join(home, ".vibedeck", "users.json"),
			SeedUsers: []auth.SeedUser{},
		},
		Logging: LoggingConfig{
			Level:              "info",
			DisableAuditTrails: false,
		},
	}, nil
}

// DefaultConfigPath returns the standard config path.
func DefaultConfigPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".vibedeck", "config.yaml"), nil
}
