package core

import (
	"context"

	"github.com/ryanhaqueIT/vibedeck/schema"
)

// BuiltinFunc executes a built-in slash command outside the agent. The
// returned lines are appended to the tab's entry log as system output.
type BuiltinFunc func(ctx context.Context, cctx schema.CommandContext) ([]string, error)

// CommandResolution is the outcome of resolving a slash command. Exactly one
// of Prompt or Builtin is set: a templated prompt that flows through the
// normal busy/queue decision, or a builtin handled without the agent.
type CommandResolution struct {
	Prompt  string
	Builtin BuiltinFunc
	Label   string
}

// CommandResolver resolves slash commands before the dispatch decision.
// The boolean reports whether the input was a slash command at all.
type CommandResolver interface {
	Resolve(ctx context.Context, input string, cctx schema.CommandContext) (CommandResolution, bool, error)
}
