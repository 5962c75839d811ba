package main

import (
	"context"
	"fmt"
	"os/signal"
	"path/filepath"
	"sort"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/ryanhaqueIT/vibedeck"
	"github.com/ryanhaqueIT/vibedeck/httpapi"
	"github.com/ryanhaqueIT/vibedeck/internal/appconfig"
	"github.com/ryanhaqueIT/vibedeck/schema"
	"pkt.systems/pslog"
)

func newServeCmd() *cobra.Command {
	var cfgPath string
	var workDirs []string
	var disableAuditTrails bool
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the vibedeck server",
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := pslog.Ctx(cmd.Context())
			cfg, err := appconfig.Load(cfgPath)
			if err != nil {
				return err
			}
			if disableAuditTrails {
				cfg.Logging.DisableAuditTrails = true
			}

			serverCfg := vibedeck.ServerConfig{
				Service:  toServiceConfig(cfg),
				HTTP:     toHTTPConfig(cfg),
				Auth:     vibedeck.AuthConfig{UserFile: cfg.Auth.UserFile, SeedUsers: cfg.Auth.SeedUsers},
				Commands: cfg.Commands,
			}
			server, err := vibedeck.New(serverCfg, vibedeck.ServerDeps{})
			if err != nil {
				return err
			}

			for _, dir := range workDirs {
				dir = strings.TrimSpace(dir)
				if dir == "" {
					continue
				}
				resp, err := server.Service().CreateSession(cmd.Context(), schema.CreateSessionRequest{WorkDir: dir})
				if err != nil {
					return fmt.Errorf("session for %q: %w", dir, err)
				}
				logger.Info("session opened", "session", resp.Session.ID, "work_dir", dir)
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			go func() {
				<-ctx.Done()
				stopCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
				defer cancel()
				if err := server.Stop(stopCtx); err != nil {
					logger.Warn("server stop failed", "err", err)
				}
			}()
			logger.Info("http server listening", "addr", serverCfg.HTTP.Addr)
			if err := server.Start(ctx); err != nil {
				return err
			}
			return server.Wait()
		},
	}
	cmd.Flags().StringVarP(&cfgPath, "config", "c", "", "path to config file")
	cmd.Flags().StringArrayVarP(&workDirs, "workdir", "w", nil, "open a session in this directory at startup (repeatable)")
	cmd.Flags().BoolVar(&disableAuditTrails, "disable-audit-trails", false, "disable audit trail logging for commands")
	return cmd
}

func toServiceConfig(cfg appconfig.Config) schema.ServiceConfig {
	return schema.ServiceConfig{
		StateDir:            cfg.StateDir,
		DefaultTheme:        schema.ThemeName(cfg.Service.DefaultTheme),
		TabNameMax:          cfg.Service.TabNameMax,
		TabNameSuffix:       cfg.Service.TabNameSuffix,
		EntryMaxLines:       cfg.Service.EntryMaxLines,
		DefaultMode:         schema.InputMode(cfg.Service.DefaultMode),
		AgentBinary:         cfg.Agent.Binary,
		AgentArgs:           cfg.Agent.Args,
		AgentEnv:            flattenEnv(cfg.Agent.Env),
		PreambleText:        cfg.Agent.Preamble,
		ShellBinary:         cfg.Shell.Binary,
		DisableAuditLogging: cfg.Logging.DisableAuditTrails,
	}
}

func toHTTPConfig(cfg appconfig.Config) httpapi.Config {
	return httpapi.Config{
		Addr:            cfg.HTTP.Addr,
		SessionCookie:   cfg.HTTP.SessionCookie,
		SessionTTLHours: cfg.HTTP.SessionTTLHours,
		SessionFile:     sessionFilePath(cfg.StateDir),
		AllowedOrigins:  cfg.HTTP.AllowedOrigins,
		RatePerSecond:   cfg.HTTP.RatePerSecond,
		RateBurst:       cfg.HTTP.RateBurst,
	}
}

func sessionFilePath(stateDir string) string {
	if strings.TrimSpace(stateDir) == "" {
		return ""
	}
	return filepath.Join(stateDir, "web-sessions.json")
}

func flattenEnv(env map[string]string) []string {
	if len(env) == 0 {
		return nil
	}
	keys := make([]string, 0, len(env))
	for key := range env {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	out := make([]string, 0, len(keys))
	for _, key := range keys {
		out = append(out, key+"="+env[key])
	}
	return out
}
