package vibedeck

import (
	"context"
	"errors"
	"sync"

	"pkt.systems/pslog"

	"github.com/ryanhaqueIT/vibedeck/core"
	"github.com/ryanhaqueIT/vibedeck/httpapi"
	"github.com/ryanhaqueIT/vibedeck/internal/agent"
	"github.com/ryanhaqueIT/vibedeck/internal/auth"
	"github.com/ryanhaqueIT/vibedeck/internal/command"
	"github.com/ryanhaqueIT/vibedeck/internal/git"
	"github.com/ryanhaqueIT/vibedeck/internal/shellproc"
	"github.com/ryanhaqueIT/vibedeck/schema"
)

// Server composes the dispatch engine with the remote-access surface.
type Server interface {
	Start(ctx context.Context) error
	Wait() error
	Stop(ctx context.Context) error
	Service() core.Service
}

// ServerConfig configures the compositor.
type ServerConfig struct {
	Service  schema.ServiceConfig
	HTTP     httpapi.Config
	Auth     AuthConfig
	Commands map[string]string
}

// AuthConfig defines authentication storage settings.
type AuthConfig struct {
	UserFile  string
	SeedUsers []auth.SeedUser
}

// ServerDeps captures optional dependencies. Nil entries get default
// implementations built from the config.
type ServerDeps struct {
	ServiceDeps core.ServiceDeps
}

// New constructs a vibedeck server.
func New(cfg ServerConfig, deps ServerDeps) (Server, error) {
	normalized, err := schema.NormalizeServiceConfig(cfg.Service)
	if err != nil {
		return nil, err
	}
	cfg.Service = normalized

	logger := deps.ServiceDeps.Logger
	if logger == nil {
		logger = pslog.Ctx(context.Background())
	}

	serviceDeps := deps.ServiceDeps
	serviceDeps.Logger = logger
	if serviceDeps.Git == nil {
		serviceDeps.Git = git.Info{}
	}
	if serviceDeps.Agent == nil {
		runner, err := agent.NewRunner(agent.Config{
			BinaryPath:   cfg.Service.AgentBinary,
			ExtraArgs:    cfg.Service.AgentArgs,
			Env:          cfg.Service.AgentEnv,
			PreambleText: cfg.Service.PreambleText,
		})
		if err != nil {
			return nil, err
		}
		serviceDeps.Agent = runner
	}
	if serviceDeps.Shell == nil {
		serviceDeps.Shell = &shellproc.Factory{
			Binary: cfg.Service.ShellBinary,
			Logger: logger,
		}
	}
	if serviceDeps.Commands == nil {
		serviceDeps.Commands = command.NewRegistry(command.Config{
			Custom: cfg.Commands,
			Git:    git.Info{},
			Logger: logger,
		})
	}

	hub := httpapi.NewHub()
	if serviceDeps.Sink == nil {
		serviceDeps.Sink = hub
	} else {
		serviceDeps.Sink = eventFanout{sinks: []core.EventSink{serviceDeps.Sink, hub}}
	}

	service, err := core.NewService(cfg.Service, serviceDeps)
	if err != nil {
		return nil, err
	}

	authStore, err := auth.NewStoreWithLogger(cfg.Auth.UserFile, cfg.Auth.SeedUsers, logger)
	if err != nil {
		return nil, err
	}

	handler := httpapi.NewHandler(serviceBindings(service), service, hub)
	httpSrv := httpapi.NewServer(cfg.HTTP, service, authStore, handler, hub)

	return &compositeServer{
		cfg:     cfg,
		service: service,
		httpSrv: httpSrv,
	}, nil
}

// serviceBindings adapts remote protocol operations onto the core service.
// Remote submissions always carry OriginRemote so local-input echoes are
// not doubled back to peers.
func serviceBindings(svc core.Service) httpapi.Bindings {
	return httpapi.Bindings{
		ExecuteCommand: func(ctx context.Context, sessionID schema.SessionID, tabID schema.TabID, input string, mode schema.InputMode) error {
			_, err := svc.Submit(ctx, schema.SubmitRequest{
				SessionID: sessionID,
				TabID:     tabID,
				Input:     input,
				Mode:      mode,
				Origin:    schema.OriginRemote,
			})
			return err
		},
		SwitchMode: func(ctx context.Context, sessionID schema.SessionID, mode schema.InputMode) error {
			_, err := svc.SetInputMode(ctx, schema.SetInputModeRequest{SessionID: sessionID, Mode: mode})
			return err
		},
		SelectSession: func(ctx context.Context, sessionID schema.SessionID, tabID schema.TabID) error {
			if tabID != "" {
				_, err := svc.ActivateTab(ctx, schema.ActivateTabRequest{SessionID: sessionID, TabID: tabID})
				return err
			}
			if _, ok := svc.SessionState(sessionID); !ok {
				return schema.ErrSessionNotFound
			}
			return nil
		},
		SelectTab: func(ctx context.Context, sessionID schema.SessionID, tabID schema.TabID) error {
			_, err := svc.ActivateTab(ctx, schema.ActivateTabRequest{SessionID: sessionID, TabID: tabID})
			return err
		},
		NewTab: func(ctx context.Context, sessionID schema.SessionID) (schema.TabSnapshot, error) {
			resp, err := svc.CreateTab(ctx, schema.CreateTabRequest{SessionID: sessionID})
			return resp.Tab, err
		},
		CloseTab: func(ctx context.Context, sessionID schema.SessionID, tabID schema.TabID) error {
			_, err := svc.CloseTab(ctx, schema.CloseTabRequest{SessionID: sessionID, TabID: tabID})
			return err
		},
		RenameTab: func(ctx context.Context, sessionID schema.SessionID, tabID schema.TabID, name schema.TabName) (schema.TabSnapshot, error) {
			resp, err := svc.RenameTab(ctx, schema.RenameTabRequest{SessionID: sessionID, TabID: tabID, Name: name})
			return resp.Tab, err
		},
		ListSessions: func(ctx context.Context) ([]schema.SessionSnapshot, error) {
			resp, err := svc.ListSessions(ctx, schema.ListSessionsRequest{})
			return resp.Sessions, err
		},
	}
}

type compositeServer struct {
	cfg     ServerConfig
	service core.Service
	httpSrv *httpapi.Server
	logger  pslog.Logger

	mu      sync.Mutex
	ctx     context.Context
	cancel  context.CancelFunc
	errCh   chan error
	started bool
}

func (s *compositeServer) Service() core.Service {
	return s.service
}

func (s *compositeServer) Start(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}
	s.mu.Lock()
	if s.started {
		s.mu.Unlock()
		pslog.Ctx(ctx).Warn("server start rejected", "reason", "already started")
		return errors.New("server already started")
	}
	s.ctx, s.cancel = context.WithCancel(ctx)
	s.errCh = make(chan error, 1)
	s.started = true
	s.logger = pslog.Ctx(s.ctx)
	s.mu.Unlock()

	log := s.logger
	log.Info("server start", "http_addr", s.cfg.HTTP.Addr)
	go func() {
		if err := httpapi.ListenAndServe(s.ctx, s.cfg.HTTP.Addr, s.httpSrv.Handler()); err != nil {
			log.Error("http server failed", "err", err)
			s.errCh <- err
		}
	}()
	return nil
}

func (s *compositeServer) Wait() error {
	s.mu.Lock()
	ctx := s.ctx
	errCh := s.errCh
	started := s.started
	s.mu.Unlock()
	if !started {
		return errors.New("server not started")
	}

	select {
	case <-ctx.Done():
		return nil
	case err := <-errCh:
		if err != nil {
			pslog.Ctx(ctx).Error("server stopped", "err", err)
			_ = s.Stop(context.Background())
			return err
		}
		return nil
	}
}

func (s *compositeServer) Stop(ctx context.Context) error {
	s.mu.Lock()
	cancel := s.cancel
	started := s.started
	log := s.logger
	srvCtx := s.ctx
	s.mu.Unlock()
	if !started {
		return nil
	}
	if log == nil {
		log = pslog.Ctx(context.Background())
	}
	log.Info("server stop requested")
	if cancel != nil {
		cancel()
	}
	if ctx == nil {
		log.Info("server stop completed")
		return nil
	}
	select {
	case <-ctx.Done():
		log.Warn("server stop timed out", "err", ctx.Err())
		return ctx.Err()
	case <-srvCtx.Done():
		log.Info("server stopped")
		return nil
	}
}
