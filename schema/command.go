package schema

// CommandContext carries the session variables available to slash-command
// template substitution.
type CommandContext struct {
	SessionID SessionID
	TabID     TabID
	TabName   TabName
	WorkDir   string
	GitBranch string
}
