package mcp

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/deixis/dispatch/internal/report"
	"github.com/deixis/dispatch/internal/shell"
	"github.com/google/uuid"
	"github.com/modelcontextprotocol/go-sdk/mcp"
)

type execParams struct {
	Command string  `json:"command" jsonschema:"the bash command to execute"`
	Cwd     string  `json:"cwd,omitempty" jsonschema:"optional working directory for the command; relative paths resolve against the workspace"`
	Timeout float64 `json:"timeout,omitempty" jsonschema:"optional timeout in seconds; uses the default timeout when omitted"`
	Hidden  bool    `json:"hidden,omitempty" jsonschema:"internal command; output bypasses truncation"`
}

func (h *handler) execHandler(ctx context.Context, req *mcp.CallToolRequest, params execParams) (*mcp.CallToolResult, any, error) {
	if strings.TrimSpace(params.Command) == "" {
		return errorResult("command is required")
	}
	if params.Timeout < 0 {
		return errorResult(fmt.Sprintf("timeout must be positive, got %v", params.Timeout))
	}

	res, err := h.runner.Run(ctx, shell.RunSpec{
		Command: params.Command,
		Cwd:     params.Cwd,
		Timeout: time.Duration(params.Timeout * float64(time.Second)),
		Hidden:  params.Hidden,
	})
	if err != nil {
		return errorResult(fmt.Sprintf("exec failed: %v", err))
	}

	runID := uuid.New().String()
	// A failed save must not fail the command, but it does make the
	// advertised dsp_inspect drill-down miss later; leave a trace.
	if err := h.store.Save(&report.RunResult{
		ID:      runID,
		Kind:    report.Exec,
		Results: []*shell.Result{res},
	}); err != nil {
		log.Printf("saving run %s: %v", runID, err)
	}

	var b strings.Builder
	b.WriteString(res.AgentObservation())
	fmt.Fprintf(&b, "\nRun: %s\n", runID)
	return textResult(b.String())
}
