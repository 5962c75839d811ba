package agent

import (
	"strings"
	"testing"

	"github.com/ryanhaqueIT/vibedeck/core"
	"github.com/ryanhaqueIT/vibedeck/schema"
)

func TestBuildArgsWriteMode(t *testing.T) {
	args := buildArgs(Config{}, core.StartRequest{Prompt: "go"})
	joined := strings.Join(args, " ")
	if !strings.Contains(joined, "--dangerously-skip-permissions") {
		t.Fatalf("write runs skip permission prompts, got %v", args)
	}
	if strings.Contains(joined, "--permission-mode") {
		t.Fatalf("write runs must not restrict permissions, got %v", args)
	}
	if !strings.Contains(joined, "--output-format stream-json") {
		t.Fatalf("expected stream-json output, got %v", args)
	}
}

func TestBuildArgsReadOnlyRestrictsPermissions(t *testing.T) {
	args := buildArgs(Config{}, core.StartRequest{Prompt: "look", ReadOnly: true})
	joined := strings.Join(args, " ")
	if strings.Contains(joined, "--dangerously-skip-permissions") {
		t.Fatalf("read-only runs must not skip permission prompts, got %v", args)
	}
	if !strings.Contains(joined, "--permission-mode plan") {
		t.Fatalf("expected restricted permission mode, got %v", args)
	}
}

func TestBuildArgsResumeAndOverrides(t *testing.T) {
	args := buildArgs(Config{ExtraArgs: []string{"--max-turns", "30"}}, core.StartRequest{
		Prompt:   "continue",
		ResumeID: "agent-123",
		Overrides: schema.AgentOverrides{
			Model:     "opus",
			ExtraArgs: []string{"--fallback-model", "sonnet"},
		},
	})
	joined := strings.Join(args, " ")
	if !strings.Contains(joined, "--resume agent-123") {
		t.Fatalf("expected resume flag, got %v", args)
	}
	if !strings.Contains(joined, "--max-turns 30") {
		t.Fatalf("expected configured extra args, got %v", args)
	}
	if !strings.Contains(joined, "--model opus") {
		t.Fatalf("expected model override, got %v", args)
	}
	if !strings.Contains(joined, "--fallback-model sonnet") {
		t.Fatalf("expected per-session extra args, got %v", args)
	}
}

func TestBuildArgsReadOnlyFiltersSkipFlagFromExtraArgs(t *testing.T) {
	args := buildArgs(Config{ExtraArgs: []string{"--dangerously-skip-permissions", "--max-turns", "30"}}, core.StartRequest{
		Prompt:   "look",
		ReadOnly: true,
		Overrides: schema.AgentOverrides{
			ExtraArgs: []string{"--dangerously-skip-permissions=true", "--fallback-model", "sonnet"},
		},
	})
	joined := strings.Join(args, " ")
	if strings.Contains(joined, "--dangerously-skip-permissions") {
		t.Fatalf("extra args must not widen a read-only run, got %v", args)
	}
	if !strings.Contains(joined, "--max-turns 30") || !strings.Contains(joined, "--fallback-model sonnet") {
		t.Fatalf("unrelated extra args must survive the filter, got %v", args)
	}

	write := buildArgs(Config{ExtraArgs: []string{"--dangerously-skip-permissions"}}, core.StartRequest{Prompt: "go"})
	count := 0
	for _, arg := range write {
		if arg == "--dangerously-skip-permissions" {
			count++
		}
	}
	if count != 2 {
		t.Fatalf("write runs keep configured extra args, got %v", write)
	}
}

func TestStdinPayloadPlainPrompt(t *testing.T) {
	payload := stdinPayload(Config{}, core.StartRequest{Prompt: "hello"})
	if payload != "hello" {
		t.Fatalf("unexpected payload: %q", payload)
	}
}

func TestStdinPayloadPreambleOnFreshRunsOnly(t *testing.T) {
	cfg := Config{PreambleText: "house rules"}
	fresh := stdinPayload(cfg, core.StartRequest{Prompt: "hello"})
	if !strings.HasPrefix(fresh, "house rules\n\n") || !strings.HasSuffix(fresh, "hello") {
		t.Fatalf("expected preamble prepended, got %q", fresh)
	}
	resumed := stdinPayload(cfg, core.StartRequest{Prompt: "hello", ResumeID: "agent-1"})
	if resumed != "hello" {
		t.Fatalf("resumed runs already carry the preamble, got %q", resumed)
	}
}

func TestStdinPayloadExpandsPreamblePlaceholders(t *testing.T) {
	cfg := Config{PreambleText: "Working in {cwd} on branch {branch}."}
	payload := stdinPayload(cfg, core.StartRequest{
		Prompt:    "hello",
		WorkDir:   "/src/app",
		GitBranch: "main",
	})
	if !strings.HasPrefix(payload, "Working in /src/app on branch main.\n\n") {
		t.Fatalf("expected placeholders expanded, got %q", payload)
	}

	bare := stdinPayload(cfg, core.StartRequest{Prompt: "hello", WorkDir: "/src/app"})
	if !strings.HasPrefix(bare, "Working in /src/app on branch .") {
		t.Fatalf("missing branch expands to empty, got %q", bare)
	}
}

func TestStdinPayloadStructuredImages(t *testing.T) {
	payload := stdinPayload(Config{}, core.StartRequest{
		Prompt: "describe this",
		Images: []schema.ImageAttachment{{Path: "/tmp/shot.png", MediaType: "image/png"}},
	})
	if !strings.Contains(payload, `"prompt":"describe this"`) {
		t.Fatalf("expected structured prompt, got %q", payload)
	}
	if !strings.Contains(payload, `"/tmp/shot.png"`) {
		t.Fatalf("expected image path in payload, got %q", payload)
	}
}
