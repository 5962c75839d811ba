package command

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/ryanhaqueIT/vibedeck/core"
	"github.com/ryanhaqueIT/vibedeck/schema"
	"pkt.systems/pslog"
)

// GitStatus provides the repository lookups builtins consume.
type GitStatus interface {
	StatusLines(ctx context.Context, dir string) []string
}

// Definition is one registered slash command. Exactly one of Template or
// Builtin is set: templates expand to an agent prompt, builtins run locally.
type Definition struct {
	Template string
	Builtin  core.BuiltinFunc
	Help     string
}

// Registry resolves slash commands against registered definitions. It
// implements core.CommandResolver.
type Registry struct {
	defs map[string]Definition
	git  GitStatus
	log  pslog.Logger
}

// Config customizes the registry.
type Config struct {
	// Custom maps command names to prompt templates, merged over the
	// defaults. Placeholders: {args}, {branch}, {cwd}, {tab}.
	Custom map[string]string
	Git    GitStatus
	Logger pslog.Logger
}

// NewRegistry builds a registry with the default command set plus any
// configured custom templates.
func NewRegistry(cfg Config) *Registry {
	r := &Registry{
		defs: make(map[string]Definition),
		git:  cfg.Git,
		log:  cfg.Logger,
	}
	r.defs["commit"] = Definition{
		Template: "Stage and commit the current changes in {cwd}. {args}\nWrite a concise commit message describing what changed and why.",
		Help:     "commit the working tree, optionally with guidance",
	}
	r.defs["review"] = Definition{
		Template: "Review the uncommitted changes in {cwd} (branch {branch}). Point out bugs, missing tests, and anything that would not pass code review. {args}",
		Help:     "review uncommitted changes",
	}
	r.defs["test"] = Definition{
		Template: "Run the test suite in {cwd} and fix any failures you find. {args}",
		Help:     "run and repair the tests",
	}
	r.defs["status"] = Definition{
		Builtin: r.statusBuiltin,
		Help:    "show the git working tree status",
	}
	r.defs["help"] = Definition{
		Builtin: r.helpBuiltin,
		Help:    "list available commands",
	}
	for name, template := range cfg.Custom {
		name = strings.ToLower(strings.TrimSpace(name))
		if name == "" || strings.TrimSpace(template) == "" {
			continue
		}
		r.defs[name] = Definition{Template: template, Help: "custom command"}
	}
	return r
}

// Resolve implements core.CommandResolver.
func (r *Registry) Resolve(ctx context.Context, input string, cctx schema.CommandContext) (core.CommandResolution, bool, error) {
	parsed, isCommand := Parse(input)
	if !isCommand {
		return core.CommandResolution{}, false, nil
	}
	if parsed.Name == "" {
		return core.CommandResolution{}, true, fmt.Errorf("%w: empty command", schema.ErrUnknownCommand)
	}
	def, ok := r.defs[parsed.Name]
	if !ok {
		return core.CommandResolution{}, true, fmt.Errorf("%w: /%s", schema.ErrUnknownCommand, parsed.Name)
	}
	if r.log != nil {
		r.log.Debug("command resolved", "name", parsed.Name, "builtin", def.Builtin != nil, "session", cctx.SessionID, "tab", cctx.TabID)
	}
	label := "/" + parsed.Name
	if def.Builtin != nil {
		return core.CommandResolution{Builtin: def.Builtin, Label: label}, true, nil
	}
	_ = ctx
	return core.CommandResolution{
		Prompt: expand(def.Template, parsed.Rest, cctx),
		Label:  label,
	}, true, nil
}

// expand substitutes session variables into a command template.
func expand(template, args string, cctx schema.CommandContext) string {
	replacer := strings.NewReplacer(
		"{args}", args,
		"{branch}", cctx.GitBranch,
		"{cwd}", cctx.WorkDir,
		"{tab}", string(cctx.TabName),
	)
	return strings.TrimSpace(replacer.Replace(template))
}

func (r *Registry) statusBuiltin(ctx context.Context, cctx schema.CommandContext) ([]string, error) {
	if r.git == nil {
		return nil, fmt.Errorf("git status unavailable")
	}
	lines := r.git.StatusLines(ctx, cctx.WorkDir)
	if len(lines) == 0 {
		return []string{"working tree clean"}, nil
	}
	return lines, nil
}

func (r *Registry) helpBuiltin(_ context.Context, _ schema.CommandContext) ([]string, error) {
	names := make([]string, 0, len(r.defs))
	for name := range r.defs {
		names = append(names, name)
	}
	sort.Strings(names)
	lines := make([]string, 0, len(names))
	for _, name := range names {
		lines = append(lines, fmt.Sprintf("/%s - %s", name, r.defs[name].Help))
	}
	return lines, nil
}
