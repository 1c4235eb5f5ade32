package mcp

import (
	"context"
	"fmt"
	"strings"

	"github.com/deixis/dispatch/internal/report"
	"github.com/deixis/dispatch/internal/shell"
	"github.com/modelcontextprotocol/go-sdk/mcp"
)

type inspectParams struct {
	RunID    string `json:"run_id" jsonschema:"the run ID from a dsp_exec or dsp_batch result"`
	ExitCode *int   `json:"exit_code,omitempty" jsonschema:"only return results with this exit code (e.g. 1 for failures, -2 for timeouts)"`
	Index    *int   `json:"index,omitempty" jsonschema:"only return the result at this 0-based submission position"`
	Command  string `json:"command,omitempty" jsonschema:"only return results whose command contains this substring"`
}

func (h *handler) inspectHandler(ctx context.Context, req *mcp.CallToolRequest, params inspectParams) (*mcp.CallToolResult, any, error) {
	if params.RunID == "" {
		return errorResult("run_id is required")
	}

	run, err := h.store.Load(params.RunID)
	if err != nil {
		return errorResult(fmt.Sprintf("Failed to load run %s: %v", params.RunID, err))
	}

	results := run.Results
	switch {
	case params.Index != nil:
		res, err := run.At(*params.Index)
		if err != nil {
			return errorResult(err.Error())
		}
		results = []*shell.Result{res}
	case params.ExitCode != nil:
		results = run.ByExitCode(*params.ExitCode)
	case params.Command != "":
		results = run.ByCommand(params.Command)
	}

	if len(results) == 0 {
		return textResult(fmt.Sprintf("No matching results in run %s (%s, %d commands).", run.ID, run.Kind, len(run.Results)))
	}

	return textResult(formatInspectOutput(run, results))
}

func formatInspectOutput(run *report.RunResult, results []*shell.Result) string {
	var b strings.Builder

	fmt.Fprintf(&b, "Run: %s (%s, %d of %d commands)\n", run.ID, run.Kind, len(results), len(run.Results))

	for _, res := range results {
		fmt.Fprintln(&b)
		fmt.Fprintf(&b, "$ %s\n", res.Command)
		if content := strings.TrimRight(res.Content, "\n"); content != "" {
			fmt.Fprintln(&b, content)
		}
		if res.Metadata.WorkingDir != "" {
			fmt.Fprintf(&b, "[Working directory: %s]\n", res.Metadata.WorkingDir)
		}
		fmt.Fprintf(&b, "[Exit code: %d]\n", res.ExitCode())
	}

	return b.String()
}
