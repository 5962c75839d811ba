package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"
	"syscall"
	"time"

	"github.com/ryanhaqueIT/vibedeck/core"
	"github.com/ryanhaqueIT/vibedeck/schema"
	"pkt.systems/pslog"
)

// Config controls how the batch-mode agent process is invoked.
type Config struct {
	BinaryPath   string
	ExtraArgs    []string
	Env          []string
	PreambleText string
}

// Runner implements core.AgentRunner by spawning one agent process per unit
// of work and decoding its JSONL event stream.
type Runner struct {
	cfg Config
}

// NewRunner constructs a batch-mode agent runner.
func NewRunner(cfg Config) (*Runner, error) {
	if cfg.BinaryPath == "" {
		cfg.BinaryPath = "claude"
	}
	return &Runner{cfg: cfg}, nil
}

// Capabilities reports what this adapter supports.
func (r *Runner) Capabilities() core.AgentCapabilities {
	return core.AgentCapabilities{StructuredImageInput: true}
}

// Start spawns one agent process for the request.
func (r *Runner) Start(ctx context.Context, req core.StartRequest) (core.RunHandle, error) {
	if strings.TrimSpace(req.Prompt) == "" && len(req.Images) == 0 {
		return nil, schema.ErrEmptyInput
	}
	args := buildArgs(r.cfg, req)
	log := pslog.Ctx(ctx)
	if log != nil {
		log.Info(
			"agent start",
			"workdir", req.WorkDir,
			"args_len", len(args),
			"resume", req.ResumeID != "",
			"read_only", req.ReadOnly,
			"prompt_len", len(req.Prompt),
			"images", len(req.Images),
		)
	}

	binary := r.cfg.BinaryPath
	if req.Overrides.BinaryPath != "" {
		binary = req.Overrides.BinaryPath
	}
	cmd := exec.CommandContext(ctx, binary, args...)
	if req.WorkDir != "" {
		cmd.Dir = req.WorkDir
	}
	cmd.Env = append(os.Environ(), r.cfg.Env...)
	cmd.Env = append(cmd.Env, req.Overrides.Env...)

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, err
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return nil, err
	}
	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, err
	}

	if err := cmd.Start(); err != nil {
		if log != nil {
			log.Error("agent start failed", "err", err)
		}
		return nil, err
	}
	if log != nil && cmd.Process != nil {
		log.Info("agent started", "pid", cmd.Process.Pid)
	}

	payload := stdinPayload(r.cfg, req)
	go func() {
		_, _ = io.WriteString(stdin, payload)
		_ = stdin.Close()
	}()

	stream := newCombinedStream(ctx, stdout, stderr)
	return &runHandle{
		cmd:     cmd,
		stream:  stream,
		log:     log,
		started: time.Now(),
	}, nil
}

// buildArgs assembles the process arguments. Write-mode runs skip the
// permission prompts; read-only runs keep them restricted.
func buildArgs(cfg Config, req core.StartRequest) []string {
	args := []string{"-p", "--output-format", "stream-json", "--verbose"}
	if req.ReadOnly {
		args = append(args, "--permission-mode", "plan")
	} else {
		args = append(args, "--dangerously-skip-permissions")
	}
	if req.Overrides.Model != "" {
		args = append(args, "--model", req.Overrides.Model)
	}
	extra := append(append([]string(nil), cfg.ExtraArgs...), req.Overrides.ExtraArgs...)
	if req.ReadOnly {
		extra = stripSkipPermissions(extra)
	}
	args = append(args, extra...)
	if req.ResumeID != "" {
		args = append(args, "--resume", string(req.ResumeID))
	}
	return args
}

// stripSkipPermissions drops permission-bypass flags so configured extra
// args cannot widen a read-only run.
func stripSkipPermissions(args []string) []string {
	kept := args[:0]
	for _, arg := range args {
		if arg == "--dangerously-skip-permissions" || strings.HasPrefix(arg, "--dangerously-skip-permissions=") {
			continue
		}
		kept = append(kept, arg)
	}
	return kept
}

// stdinPayload builds what is written to the process's stdin. Image
// attachments switch the payload to a structured JSON document; plain
// prompts go through as-is. The preamble is expanded and prepended on
// fresh runs only, resumed conversations already carry it.
func stdinPayload(cfg Config, req core.StartRequest) string {
	prompt := req.Prompt
	if cfg.PreambleText != "" && req.ResumeID == "" {
		prompt = expandPreamble(cfg.PreambleText, req) + "\n\n" + prompt
	}
	if len(req.Images) == 0 {
		return prompt
	}
	doc := struct {
		Prompt string                   `json:"prompt"`
		Images []schema.ImageAttachment `json:"images"`
	}{Prompt: prompt, Images: req.Images}
	data, err := json.Marshal(doc)
	if err != nil {
		return prompt
	}
	return string(data)
}

// expandPreamble substitutes run variables into the preamble template.
func expandPreamble(template string, req core.StartRequest) string {
	replacer := strings.NewReplacer(
		"{branch}", req.GitBranch,
		"{cwd}", req.WorkDir,
	)
	return strings.TrimSpace(replacer.Replace(template))
}

type runHandle struct {
	cmd     *exec.Cmd
	stream  *combinedStream
	log     pslog.Logger
	started time.Time
}

func (r *runHandle) Events() core.EventStream {
	return r.stream
}

func (r *runHandle) Signal(ctx context.Context, sig core.ProcessSignal) error {
	_ = ctx
	if r.cmd == nil || r.cmd.Process == nil {
		return fmt.Errorf("process not started")
	}
	switch sig {
	case core.ProcessSignalTERM:
		return r.cmd.Process.Signal(syscall.SIGTERM)
	case core.ProcessSignalKILL:
		return r.cmd.Process.Signal(syscall.SIGKILL)
	default:
		return fmt.Errorf("unsupported signal: %s", sig)
	}
}

func (r *runHandle) Wait(ctx context.Context) (core.RunResult, error) {
	_ = ctx
	if r.cmd == nil {
		return core.RunResult{}, fmt.Errorf("process not started")
	}
	err := r.cmd.Wait()
	signal := ""
	exitCode := 0
	if err != nil {
		if exitErr, ok := err.(*exec.ExitError); ok {
			exitCode = exitErr.ExitCode()
			if status, ok := exitErr.Sys().(syscall.WaitStatus); ok && status.Signaled() {
				signal = status.Signal().String()
			}
		} else {
			if r.log != nil {
				r.log.Error("agent wait failed", "err", err)
			}
			return core.RunResult{}, err
		}
	}
	if r.log != nil {
		fields := []any{
			"exit_code", exitCode,
			"duration_ms", time.Since(r.started).Milliseconds(),
		}
		if signal != "" {
			fields = append(fields, "signal", signal)
		}
		r.log.Info("agent finished", fields...)
	}
	return core.RunResult{ExitCode: exitCode}, nil
}

func (r *runHandle) Close() error {
	if r.stream != nil {
		_ = r.stream.Close()
	}
	return nil
}
