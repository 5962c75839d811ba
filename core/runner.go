package core

import (
	"context"

	"github.com/ryanhaqueIT/vibedeck/schema"
)

// AgentRunner spawns batch-mode agent processes: one process per submitted
// unit of work, resumed via the tab's agent-session id when present.
type AgentRunner interface {
	Start(ctx context.Context, req StartRequest) (RunHandle, error)
	Capabilities() AgentCapabilities
}

// AgentCapabilities declares optional agent features. Image passing is
// gated on StructuredImageInput, never on agent identity.
type AgentCapabilities struct {
	StructuredImageInput bool
}

// StartRequest describes one batch-mode agent invocation. GitBranch is the
// branch checked out in WorkDir, empty outside a repository.
type StartRequest struct {
	SessionID schema.SessionID
	TabID     schema.TabID
	WorkDir   string
	GitBranch string
	Prompt    string
	Images    []schema.ImageAttachment
	ResumeID  schema.AgentSessionID
	ReadOnly  bool
	Overrides schema.AgentOverrides
}

// RunHandle exposes the event stream and process lifecycle controls.
type RunHandle interface {
	Events() EventStream
	Signal(ctx context.Context, sig ProcessSignal) error
	Wait(ctx context.Context) (RunResult, error)
	Close() error
}

// EventStream yields normalized events from a batch-mode agent process.
type EventStream interface {
	Next(ctx context.Context) (schema.AgentEvent, error)
	Close() error
}

// RunResult describes the process outcome.
type RunResult struct {
	ExitCode int
}

// ProcessSignal indicates which signal to send to the process.
type ProcessSignal string

const (
	// ProcessSignalTERM requests a termination signal.
	ProcessSignalTERM ProcessSignal = "TERM"
	// ProcessSignalKILL requests an immediate kill signal.
	ProcessSignalKILL ProcessSignal = "KILL"
)

// ShellProcess is a persistent-mode process: submissions are written to its
// input stream, no new process is spawned per unit of work.
type ShellProcess interface {
	Write(ctx context.Context, input string) error
	Close() error
}

// ShellFactory opens one persistent shell per session on first use.
type ShellFactory interface {
	Open(ctx context.Context, workDir string) (ShellProcess, error)
}
