package git

import (
	"context"
	"fmt"
	"os/exec"
	"strings"

	"pkt.systems/pslog"
)

// Run executes a git command in the provided directory.
func Run(ctx context.Context, dir string, args ...string) (string, error) {
	log := pslog.Ctx(ctx).With("dir", dir, "args", strings.Join(args, " "))
	log.Debug("git run start")
	cmd := exec.CommandContext(ctx, "git", args...)
	cmd.Dir = dir
	output, err := cmd.CombinedOutput()
	if err != nil {
		preview := strings.TrimSpace(string(output))
		truncated := false
		if len(preview) > 200 {
			preview = preview[:200]
			truncated = true
		}
		log.Warn("git run failed", "err", err, "output", preview, "truncated", truncated)
		return string(output), fmt.Errorf("git %s failed: %w (%s)", strings.Join(args, " "), err, strings.TrimSpace(string(output)))
	}
	log.Debug("git run ok", "output_len", len(output))
	return string(output), nil
}

// Info provides the narrow git lookups consumed by the core service.
// All failures degrade to zero values rather than propagating.
type Info struct{}

// IsRepo reports whether dir is inside a git work tree.
func (Info) IsRepo(ctx context.Context, dir string) bool {
	output, err := Run(ctx, dir, "rev-parse", "--is-inside-work-tree")
	if err != nil {
		return false
	}
	return strings.TrimSpace(output) == "true"
}

// Branch returns the current branch name for dir. Detached heads report
// "(detached)"; lookup failures report an empty branch.
func (Info) Branch(ctx context.Context, dir string) string {
	output, err := Run(ctx, dir, "rev-parse", "--abbrev-ref", "HEAD")
	if err != nil {
		return ""
	}
	branch := strings.TrimSpace(output)
	if branch == "HEAD" {
		return "(detached)"
	}
	return branch
}

// StatusLines returns porcelain status lines for dir, or nil on failure.
func (Info) StatusLines(ctx context.Context, dir string) []string {
	output, err := Run(ctx, dir, "status", "--porcelain")
	if err != nil {
		return nil
	}
	trimmed := strings.TrimSpace(output)
	if trimmed == "" {
		return nil
	}
	return strings.Split(trimmed, "\n")
}
