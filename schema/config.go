package schema

import (
	"os"
	"path/filepath"
)

// ServiceConfig defines defaults and limits for the core service.
type ServiceConfig struct {
	StateDir        string
	DefaultTheme    ThemeName
	TabNameMax      int
	TabNameSuffix   string
	EntryMaxLines   int
	DefaultMode     InputMode
	AgentBinary     string
	AgentArgs       []string
	AgentEnv        []string
	PreambleText    string
	ShellBinary     string
	// DisableAuditLogging disables audit trail debug logs for commands.
	DisableAuditLogging bool
}

// DefaultEntryMaxLines is the default per-tab entry log limit.
const DefaultEntryMaxLines = 5000

// NormalizeServiceConfig applies defaults and validates the config.
func NormalizeServiceConfig(cfg ServiceConfig) (ServiceConfig, error) {
	if cfg.StateDir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return ServiceConfig{}, err
		}
		cfg.StateDir = filepath.Join(home, ".vibedeck", "state")
	}
	if cfg.TabNameMax <= 0 {
		cfg.TabNameMax = 16
	}
	if cfg.TabNameSuffix == "" {
		cfg.TabNameSuffix = "$"
	}
	if cfg.EntryMaxLines <= 0 {
		cfg.EntryMaxLines = DefaultEntryMaxLines
	}
	if cfg.DefaultMode == "" {
		cfg.DefaultMode = InputModeAI
	}
	if cfg.DefaultTheme == "" {
		cfg.DefaultTheme = DefaultTheme
	}
	if cfg.AgentBinary == "" {
		cfg.AgentBinary = "claude"
	}
	if cfg.ShellBinary == "" {
		cfg.ShellBinary = defaultShell()
	}
	return cfg, nil
}

func defaultShell() string {
	if shell := os.Getenv("SHELL"); shell != "" {
		return shell
	}
	return "/bin/sh"
}

// NormalizeInputMode validates an input mode value.
func NormalizeInputMode(mode string) (InputMode, bool) {
	switch InputMode(mode) {
	case InputModeAI, InputModeTerminal:
		return InputMode(mode), true
	default:
		return "", false
	}
}
