package core

import (
	"context"

	"pkt.systems/pslog"
)

// GitInfo provides the narrow git lookups the service consumes. Lookup
// failures degrade to zero values.
type GitInfo interface {
	IsRepo(ctx context.Context, dir string) bool
	Branch(ctx context.Context, dir string) string
}

// ServiceDeps captures optional dependencies for the core service.
type ServiceDeps struct {
	Agent    AgentRunner
	Shell    ShellFactory
	Commands CommandResolver
	Git      GitInfo
	Sink     EventSink
	Logger   pslog.Logger
}
