// Package shell executes commands in isolated shell subprocesses and
// recovers structured results through the ps1 metadata protocol.
package shell

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/deixis/dispatch/internal/ps1"
)

// DefaultShell is used when a Runner does not name a shell binary.
const DefaultShell = "bash"

// Runner executes one command per subprocess. Each invocation spawns a
// fresh interactive shell with the metadata prompt installed, so
// commands share no shell state and each capture carries its own
// protocol blocks.
type Runner struct {
	Shell     string        // shell binary, resolved via PATH; default bash
	Workspace string        // optional boundary for cwd resolution
	Timeout   time.Duration // default per-command wall clock; 0 = unbounded
	MaxOutput int           // content budget in characters for truncation
}

// RunSpec describes one command invocation.
type RunSpec struct {
	Command string
	Cwd     string        // optional working directory
	Timeout time.Duration // overrides the runner default when > 0
	Hidden  bool          // internal command; bypasses truncation
}

// Run executes the command and returns its result. Failures of the
// command itself — non-zero exit, timeout, a subprocess that would not
// start — are encoded in the result, not returned as errors. The only
// error is a contract violation: an empty command.
func (r *Runner) Run(ctx context.Context, spec RunSpec) (*Result, error) {
	if strings.TrimSpace(spec.Command) == "" {
		return nil, fmt.Errorf("empty command")
	}

	dir, err := r.resolveDir(spec.Cwd)
	if err != nil {
		meta := ps1.NewMetadata()
		meta.ExitCode = ExitStartFailure
		return NewResult(spec.Command, fmt.Sprintf("Failed to start command: %v", err), meta, r.MaxOutput, spec.Hidden), nil
	}

	timeout := r.Timeout
	if spec.Timeout > 0 {
		timeout = spec.Timeout
	}
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	shell := r.Shell
	if shell == "" {
		shell = DefaultShell
	}

	// The command is fed on stdin to a forced-interactive shell with
	// the metadata prompt installed, so the shell itself prints one
	// block before the command runs and one after it completes. The
	// prompt — not an extra echo — survives commands that redirect or
	// suppress their own output.
	cmd := exec.CommandContext(ctx, shell, "--noprofile", "--norc", "-i")
	cmd.Dir = dir
	cmd.Env = append(os.Environ(), "PS1="+ps1.Prompt(), "PS2=")
	cmd.Stdin = strings.NewReader(spec.Command + "\n")

	// On cancellation kill the whole process group, so children of the
	// shell holding the output pipes die with it. WaitDelay covers
	// anything that survives the kill.
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
	cmd.Cancel = func() error {
		return syscall.Kill(-cmd.Process.Pid, syscall.SIGKILL)
	}
	cmd.WaitDelay = 5 * time.Second

	// One shared writer keeps stdout and stderr interleaved the way a
	// terminal would show them, bounded as a memory guard. The guard is
	// far above the content budget so the tail survives for Truncate.
	var buf bytes.Buffer
	w := &limitWriter{buf: &buf, limit: r.captureLimit()}
	cmd.Stdout = w
	cmd.Stderr = w

	runErr := cmd.Run()
	capture := buf.String()

	meta := ps1.NewMetadata()
	blocks := ps1.FindBlockSpans(capture)
	if len(blocks) > 0 {
		// The interactive shell prints the prompt once before the
		// command and once after it, so a normal capture holds two
		// blocks and the last one follows command completion. A
		// capture with fewer than two blocks has no post-command
		// block — the shell exited mid-cycle (e.g. an explicit exit) —
		// and the exit code is settled below from the process status,
		// which bash sets to the last command's status.
		meta = ps1.ParseBlock(blocks[len(blocks)-1].Body)
	}
	content := sliceContent(capture, blocks, spec.Command)

	switch {
	case errors.Is(ctx.Err(), context.DeadlineExceeded):
		meta.ExitCode = ExitTimeout
		content = appendNote(content, fmt.Sprintf("[Command timed out after %s]", timeout))
	case errors.Is(ctx.Err(), context.Canceled):
		content = appendNote(content, "[Command cancelled]")
	case runErr != nil:
		var exitErr *exec.ExitError
		if errors.As(runErr, &exitErr) {
			if len(blocks) < 2 {
				meta.ExitCode = exitErr.ExitCode()
			}
		} else {
			meta.ExitCode = ExitStartFailure
			content = appendNote(content, fmt.Sprintf("Failed to start command: %v", runErr))
		}
	default:
		if len(blocks) < 2 {
			meta.ExitCode = 0
		}
	}

	return NewResult(spec.Command, content, meta, r.MaxOutput, spec.Hidden), nil
}

// resolveDir resolves cwd, enforcing the workspace boundary when one is
// configured.
func (r *Runner) resolveDir(cwd string) (string, error) {
	if r.Workspace == "" {
		return cwd, nil
	}
	if cwd == "" {
		return r.Workspace, nil
	}

	var dir string
	if filepath.IsAbs(cwd) {
		dir = filepath.Clean(cwd)
	} else {
		dir = filepath.Clean(filepath.Join(r.Workspace, cwd))
	}

	rel, err := filepath.Rel(r.Workspace, dir)
	if err != nil {
		return "", fmt.Errorf("resolving cwd: %w", err)
	}
	if strings.HasPrefix(rel, "..") {
		return "", fmt.Errorf("cwd %q is outside workspace %q", cwd, r.Workspace)
	}
	return dir, nil
}

// sliceContent extracts the command's own output from a raw capture.
// An interactive shell surrounds the output with noise the consumer
// must never see: job-control warnings and the pre-command prompt
// before it, the echoed command line, then the post-command prompt and
// an exit banner after it. The output is the text between the last two
// prompt blocks, minus the echoed line. With one block the shell
// exited mid-cycle and everything after the block belongs to the
// command; with none, the whole capture does.
func sliceContent(capture string, blocks []ps1.Block, command string) string {
	var content string
	switch {
	case len(blocks) >= 2:
		content = capture[blocks[len(blocks)-2].End:blocks[len(blocks)-1].Start]
	case len(blocks) == 1:
		content = capture[blocks[0].End:]
	default:
		content = ps1.StripBlocks(capture)
	}
	content = strings.TrimLeft(content, "\n")
	content = strings.TrimPrefix(content, command)
	return strings.Trim(content, "\n")
}

// captureLimit bounds the raw capture as a memory guard, well above the
// content budget so head-and-tail truncation still sees the tail.
func (r *Runner) captureLimit() int {
	const floor = 1 << 20
	if limit := 8 * r.MaxOutput; limit > floor {
		return limit
	}
	return floor
}

func appendNote(content, note string) string {
	if content == "" {
		return note
	}
	return content + "\n" + note
}

// limitWriter writes up to limit bytes to buf, then silently discards
// the rest.
type limitWriter struct {
	buf   *bytes.Buffer
	limit int
}

func (w *limitWriter) Write(p []byte) (int, error) {
	remaining := w.limit - w.buf.Len()
	if remaining <= 0 {
		return len(p), nil // discard
	}
	if len(p) > remaining {
		// Write only what fits, but report all bytes as consumed
		// to avoid short write errors from io.Copy.
		w.buf.Write(p[:remaining])
		return len(p), nil
	}
	return w.buf.Write(p)
}
