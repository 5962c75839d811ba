package appconfig

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/ryanhaqueIT/vibedeck/schema"
)

// Load reads configuration from the provided path. If path is empty, uses DefaultConfigPath.
func Load(path string) (Config, error) {
	if path == "" {
		defaultPath, err := DefaultConfigPath()
		if err != nil {
			return Config{}, err
		}
		path = defaultPath
	}

	cfg, err := DefaultConfig()
	if err != nil {
		return Config{}, err
	}

	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	v.SetDefault("config_version", cfg.ConfigVersion)
	v.SetDefault("state_dir", cfg.StateDir)
	v.SetDefault("service.tab_name_max", cfg.Service.TabNameMax)
	v.SetDefault("service.tab_name_suffix", cfg.Service.TabNameSuffix)
	v.SetDefault("service.entry_max_lines", cfg.Service.EntryMaxLines)
	v.SetDefault("service.default_mode", cfg.Service.DefaultMode)
	v.SetDefault("service.default_theme", cfg.Service.DefaultTheme)
	v.SetDefault("agent.binary", cfg.Agent.Binary)
	v.SetDefault("agent.args", cfg.Agent.Args)
	v.SetDefault("agent.env", cfg.Agent.Env)
	v.SetDefault("agent.preamble", cfg.Agent.Preamble)
	v.SetDefault("shell.binary", cfg.Shell.Binary)
	v.SetDefault("commands", cfg.Commands)
	v.SetDefault("http.addr", cfg.HTTP.Addr)
	v.SetDefault("http.session_cookie", cfg.HTTP.SessionCookie)
	v.SetDefault("http.session_ttl_hours", cfg.HTTP.SessionTTLHours)
	v.SetDefault("http.allowed_origins", cfg.HTTP.AllowedOrigins)
	v.SetDefault("http.rate_per_second", cfg.HTTP.RatePerSecond)
	v.SetDefault("http.rate_burst", cfg.HTTP.RateBurst)
	v.SetDefault("auth.user_file", cfg.Auth.UserFile)
	v.SetDefault("auth.seed_users", cfg.Auth.SeedUsers)
	v.SetDefault("logging.level", cfg.Logging.Level)
	v.SetDefault("logging.disable_audit_trails", cfg.Logging.DisableAuditTrails)

	configLoaded := false
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return Config{}, err
		}
	} else {
		configLoaded = true
	}

	if configLoaded {
		if !v.IsSet("config_version") {
			return Config{}, fmt.Errorf("config_version is required; expected %d", CurrentConfigVersion)
		}
		if v.GetInt("config_version") != CurrentConfigVersion {
			return Config{}, fmt.Errorf("unsupported config_version %d; expected %d", v.GetInt("config_version"), CurrentConfigVersion)
		}
	}

	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, err
	}
	expandConfigEnv(&cfg)
	if err := validateServiceConfig(cfg.Service); err != nil {
		return Config{}, err
	}
	if err := validateHTTPConfig(cfg.HTTP); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func validateServiceConfig(cfg ServiceConfig) error {
	if _, ok := schema.NormalizeInputMode(cfg.DefaultMode); !ok {
		return fmt.Errorf("service.default_mode must be %q or %q", schema.InputModeAI, schema.InputModeTerminal)
	}
	if cfg.TabNameMax < 1 {
		return fmt.Errorf("service.tab_name_max must be at least 1")
	}
	if cfg.EntryMaxLines < 1 {
		return fmt.Errorf("service.entry_max_lines must be at least 1")
	}
	return nil
}

func validateHTTPConfig(cfg HTTPConfig) error {
	if cfg.SessionTTLHours < 1 {
		return fmt.Errorf("http.session_ttl_hours must be at least 1")
	}
	if cfg.RatePerSecond <= 0 {
		return fmt.Errorf("http.rate_per_second must be positive")
	}
	if cfg.RateBurst < 1 {
		return fmt.Errorf("http.rate_burst must be at least 1")
	}
	return nil
}

func expandConfigEnv(cfg *Config) {
	if cfg == nil {
		return
	}
	cfg.StateDir = expandEnv(cfg.StateDir)
	cfg.Agent.Binary = expandEnv(cfg.Agent.Binary)
	cfg.Shell.Binary = expandEnv(cfg.Shell.Binary)
	cfg.Auth.UserFile = expandEnv(cfg.Auth.UserFile)
}

func expandEnv(value string) string {
	if value == "" {
		return value
	}
	return os.Expand(value, func(key string) string {
		if key == "" {
			return ""
		}
		if val, ok := lookupEnv(key); ok {
			return val
		}
		return "$" + key
	})
}

func lookupEnv(key string) (string, bool) {
	if val, ok := os.LookupEnv(key); ok {
		return val, true
	}
	switch key {
	case "UID":
		return fmt.Sprintf("%d", os.Getuid()), true
	case "GID":
		return fmt.Sprintf("%d", os.Getgid()), true
	}
	return "", false
}

// WriteDefault writes the default config to the target path.
func WriteDefault(path string, overwrite bool) (string, error) {
	if path == "" {
		defaultPath, err := DefaultConfigPath()
		if err != nil {
			return "", err
		}
		path = defaultPath
	}

	if !overwrite {
		if _, err := os.Stat(path); err == nil {
			return "", fmt.Errorf("config already exists at %s", path)
		}
	}

	cfg, err := DefaultConfig()
	if err != nil {
		return "", err
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return "", err
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", err
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return "", err
	}
	return path, nil
}
