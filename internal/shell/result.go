package shell

import (
	"fmt"
	"strings"

	"github.com/deixis/dispatch/internal/ps1"
)

// Reserved exit codes for outcomes the command itself never reports.
// Real processes exit with 0–255, so negative values are unambiguous.
const (
	// ExitUnknown means no exit status was captured.
	ExitUnknown = -1
	// ExitTimeout means the command exceeded its wall-clock budget and
	// was terminated.
	ExitTimeout = -2
	// ExitStartFailure means the subprocess could not be started.
	ExitStartFailure = -3
)

// Result is the record produced for one command. It is constructed once
// the subprocess has terminated (or timed out) and never mutated.
type Result struct {
	Command  string       `json:"command"`
	Content  string       `json:"content"`
	Metadata ps1.Metadata `json:"metadata"`
	Hidden   bool         `json:"hidden,omitempty"`
}

// NewResult builds the result for a finished command. Unless the
// command is hidden, content is bounded by maxContent; hidden commands
// never reach the consumer the size limit protects, so they bypass
// truncation.
func NewResult(command, content string, meta ps1.Metadata, maxContent int, hidden bool) *Result {
	if !hidden {
		content = Truncate(content, maxContent)
	}
	return &Result{
		Command:  command,
		Content:  content,
		Metadata: meta,
		Hidden:   hidden,
	}
}

// ExitCode returns the command's exit status, or a reserved sentinel.
func (r *Result) ExitCode() int { return r.Metadata.ExitCode }

// Error reports whether the command failed.
func (r *Result) Error() bool { return r.ExitCode() != 0 }

// Success reports whether the command succeeded.
func (r *Result) Success() bool { return !r.Error() }

// Message is a one-line summary of the command's outcome.
func (r *Result) Message() string {
	return fmt.Sprintf("Command `%s` executed with exit code %d.", r.Command, r.ExitCode())
}

// AgentObservation renders the result for the model: the content framed
// by the metadata prefix/suffix, followed by the working directory,
// interpreter path and exit code when known.
func (r *Result) AgentObservation() string {
	var b strings.Builder
	b.WriteString(r.Metadata.Prefix)
	b.WriteString(r.Content)
	b.WriteString(r.Metadata.Suffix)
	if r.Metadata.WorkingDir != "" {
		fmt.Fprintf(&b, "\n[Current working directory: %s]", r.Metadata.WorkingDir)
	}
	if r.Metadata.InterpreterPath != "" {
		fmt.Fprintf(&b, "\n[Python interpreter: %s]", r.Metadata.InterpreterPath)
	}
	if r.Metadata.ExitCode != ExitUnknown {
		fmt.Fprintf(&b, "\n[Command finished with exit code %d]", r.Metadata.ExitCode)
	}
	return b.String()
}

// ToMap converts the result to a plain key-value mapping for
// persistence or transport. ResultFromMap reverses it losslessly.
func (r *Result) ToMap() map[string]any {
	return map[string]any{
		"command": r.Command,
		"content": r.Content,
		"metadata": map[string]any{
			"exit_code":           r.Metadata.ExitCode,
			"pid":                 r.Metadata.PID,
			"username":            r.Metadata.Username,
			"hostname":            r.Metadata.Hostname,
			"working_dir":         r.Metadata.WorkingDir,
			"py_interpreter_path": r.Metadata.InterpreterPath,
			"prefix":              r.Metadata.Prefix,
			"suffix":              r.Metadata.Suffix,
		},
	}
}

// ResultFromMap rebuilds a Result from the mapping produced by ToMap.
// Loose metadata values go through the same coercion as protocol
// blocks.
func ResultFromMap(m map[string]any) *Result {
	r := &Result{Metadata: ps1.NewMetadata()}
	if s, ok := m["command"].(string); ok {
		r.Command = s
	}
	if s, ok := m["content"].(string); ok {
		r.Content = s
	}
	if meta, ok := m["metadata"].(map[string]any); ok {
		r.Metadata = ps1.MetadataFromMap(meta)
	}
	return r
}
