package batch

import (
	"strings"
	"testing"

	"github.com/deixis/dispatch/internal/ps1"
	"github.com/deixis/dispatch/internal/shell"
)

func resultWithCode(command string, code int) *shell.Result {
	meta := ps1.NewMetadata()
	meta.ExitCode = code
	return shell.NewResult(command, "out:"+command, meta, 0, false)
}

func TestResult_FilterByExitCode(t *testing.T) {
	r := &Result{Results: []*shell.Result{
		resultWithCode("a", 0),
		resultWithCode("b", 2),
		resultWithCode("c", 0),
		resultWithCode("d", 2),
	}}

	if got := r.FilterByExitCode(2); len(got) != 2 || got[0].Command != "b" || got[1].Command != "d" {
		t.Errorf("FilterByExitCode(2) = %+v, want b and d in order", got)
	}
	if got := r.FilterByExitCode(127); len(got) != 0 {
		t.Errorf("FilterByExitCode(127) = %+v, want none", got)
	}
	if got := r.Successful(); len(got) != 2 {
		t.Errorf("Successful() has %d entries, want 2", len(got))
	}
}

func TestResult_Message(t *testing.T) {
	r := &Result{Results: []*shell.Result{
		resultWithCode("a", 0),
		resultWithCode("b", 1),
		resultWithCode("c", 0),
	}}
	want := "Executed 3 commands: 2 succeeded, 1 failed"
	if got := r.Message(); got != want {
		t.Errorf("Message() = %q, want %q", got, want)
	}
}

func TestResult_AgentObservation(t *testing.T) {
	meta := ps1.NewMetadata()
	meta.ExitCode = 0
	meta.WorkingDir = "/srv/app"
	first := shell.NewResult("echo A", "A", meta, 0, false)

	r := &Result{Results: []*shell.Result{first, resultWithCode("exit 1", 1)}}
	obs := r.AgentObservation()

	for _, want := range []string{
		"=== Command 1: echo A ===",
		"[Working directory: /srv/app]",
		"[Exit code: 0]",
		"=== Command 2: exit 1 ===",
		"[Exit code: 1]",
	} {
		if !strings.Contains(obs, want) {
			t.Errorf("observation missing %q:\n%s", want, obs)
		}
	}
	// Submission order, not completion order.
	if strings.Index(obs, "Command 1") > strings.Index(obs, "Command 2") {
		t.Errorf("observation out of order:\n%s", obs)
	}
}
