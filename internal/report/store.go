// Package report provides structured persistence and retrieval of
// command run results. Runs are stored as typed structs keyed by run
// ID and can be queried by exit code, position, or command text.
package report

import (
	"fmt"
	"strings"

	"github.com/deixis/dispatch/internal/shell"
)

// Kind identifies the type of a run.
type Kind string

const (
	// Exec is a single-command run.
	Exec Kind = "exec"
	// Batch is a multi-command parallel run.
	Batch Kind = "batch"
)

// Store persists and retrieves run results.
type Store interface {
	Save(result *RunResult) error
	Load(runID string) (*RunResult, error)
}

// RunResult holds the results of one run, in submission order.
type RunResult struct {
	ID      string          `json:"id"`
	Kind    Kind            `json:"kind"`
	Results []*shell.Result `json:"results"`
}

// ByExitCode returns the results with the given exit code, in
// submission order.
func (r *RunResult) ByExitCode(code int) []*shell.Result {
	var out []*shell.Result
	for _, res := range r.Results {
		if res.ExitCode() == code {
			out = append(out, res)
		}
	}
	return out
}

// Failed returns the results with a non-zero exit code.
func (r *RunResult) Failed() []*shell.Result {
	var out []*shell.Result
	for _, res := range r.Results {
		if res.Error() {
			out = append(out, res)
		}
	}
	return out
}

// At returns the result at the given 0-based submission index.
func (r *RunResult) At(index int) (*shell.Result, error) {
	if index < 0 || index >= len(r.Results) {
		return nil, fmt.Errorf("run %s has %d results, index %d out of range", r.ID, len(r.Results), index)
	}
	return r.Results[index], nil
}

// ByCommand returns the results whose command contains the given
// substring, in submission order.
func (r *RunResult) ByCommand(substr string) []*shell.Result {
	var out []*shell.Result
	for _, res := range r.Results {
		if strings.Contains(res.Command, substr) {
			out = append(out, res)
		}
	}
	return out
}
