package schema

import "errors"

var (
	// ErrInvalidRequest indicates a malformed request payload.
	ErrInvalidRequest = errors.New("invalid request")
	// ErrSessionNotFound indicates a requested session could not be found.
	ErrSessionNotFound = errors.New("session not found")
	// ErrTabNotFound indicates a requested tab could not be found.
	ErrTabNotFound = errors.New("tab not found")
	// ErrNoActiveTab indicates a session in AI mode has no active tab.
	// This is a data-integrity violation, not a normal error path.
	ErrNoActiveTab = errors.New("no active tab for session")
	// ErrSessionBusy indicates the session is busy and the submission
	// could not be admitted.
	ErrSessionBusy = errors.New("session is busy")
	// ErrTabBusy indicates the target tab already has running work.
	ErrTabBusy = errors.New("tab is busy")
	// ErrEmptyInput indicates the submitted payload was empty.
	ErrEmptyInput = errors.New("empty input")
	// ErrRunnerUnavailable indicates no agent runner is configured.
	ErrRunnerUnavailable = errors.New("agent runner not configured")
	// ErrShellUnavailable indicates no shell factory is configured.
	ErrShellUnavailable = errors.New("shell not configured")
	// ErrNotConfigured indicates a delegated callback is not wired.
	ErrNotConfigured = errors.New("not configured")
	// ErrUnknownCommand indicates an unrecognized slash command.
	ErrUnknownCommand = errors.New("unknown command")
)
