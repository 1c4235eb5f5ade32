package batch

import (
	"fmt"
	"strings"

	"github.com/deixis/dispatch/internal/shell"
)

// Result aggregates the per-command results of one batch, in the order
// the commands were submitted.
type Result struct {
	RunID   string          `json:"run_id"`
	Results []*shell.Result `json:"results"`
}

// Error reports whether any command in the batch failed.
func (r *Result) Error() bool {
	for _, res := range r.Results {
		if res.Error() {
			return true
		}
	}
	return false
}

// Success reports whether every command in the batch succeeded.
func (r *Result) Success() bool { return !r.Error() }

// FilterByExitCode returns the results with the given exit code, in
// result order.
func (r *Result) FilterByExitCode(code int) []*shell.Result {
	var out []*shell.Result
	for _, res := range r.Results {
		if res.ExitCode() == code {
			out = append(out, res)
		}
	}
	return out
}

// Successful returns the results that completed with exit code 0.
func (r *Result) Successful() []*shell.Result {
	return r.FilterByExitCode(0)
}

// Failed returns the results with a non-zero exit code.
func (r *Result) Failed() []*shell.Result {
	var out []*shell.Result
	for _, res := range r.Results {
		if res.Error() {
			out = append(out, res)
		}
	}
	return out
}

// Message is a one-line summary of the batch outcome.
func (r *Result) Message() string {
	succeeded := len(r.Successful())
	return fmt.Sprintf("Executed %d commands: %d succeeded, %d failed",
		len(r.Results), succeeded, len(r.Results)-succeeded)
}

// AgentObservation renders the whole batch for the model: each result
// labelled with its 1-based position and command, in submission order.
func (r *Result) AgentObservation() string {
	var parts []string
	for i, res := range r.Results {
		parts = append(parts, fmt.Sprintf("=== Command %d: %s ===", i+1, res.Command))
		parts = append(parts, res.Metadata.Prefix+res.Content+res.Metadata.Suffix)
		if res.Metadata.WorkingDir != "" {
			parts = append(parts, fmt.Sprintf("[Working directory: %s]", res.Metadata.WorkingDir))
		}
		parts = append(parts, fmt.Sprintf("[Exit code: %d]", res.ExitCode()))
	}
	return strings.Join(parts, "\n")
}
