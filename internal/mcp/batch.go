package mcp

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/deixis/dispatch/internal/batch"
	"github.com/deixis/dispatch/internal/report"
	"github.com/modelcontextprotocol/go-sdk/mcp"
)

type batchParams struct {
	Commands          []string `json:"commands" jsonschema:"list of bash commands to execute in parallel; each command runs in its own subprocess and must not rely on another command's output"`
	MaxConcurrency    int      `json:"max_concurrency,omitempty" jsonschema:"maximum number of commands to run simultaneously; default 10; lower this for resource-intensive commands"`
	TimeoutPerCommand float64  `json:"timeout_per_command,omitempty" jsonschema:"optional timeout in seconds for each individual command; uses the default timeout when omitted"`
	Cwd               string   `json:"cwd,omitempty" jsonschema:"optional working directory shared by all commands; relative paths resolve against the workspace"`
}

func (h *handler) batchHandler(ctx context.Context, req *mcp.CallToolRequest, params batchParams) (*mcp.CallToolResult, any, error) {
	if len(params.Commands) == 0 {
		return errorResult("commands is required and must not be empty")
	}

	concurrency := params.MaxConcurrency
	if concurrency == 0 {
		concurrency = h.cfg.MaxConcurrency()
	}

	res, err := h.orchestrator.Run(ctx, batch.Params{
		Commands:          params.Commands,
		MaxConcurrency:    concurrency,
		TimeoutPerCommand: time.Duration(params.TimeoutPerCommand * float64(time.Second)),
		Cwd:               params.Cwd,
	})
	if err != nil {
		return errorResult(fmt.Sprintf("batch failed: %v", err))
	}

	if err := h.store.Save(&report.RunResult{
		ID:      res.RunID,
		Kind:    report.Batch,
		Results: res.Results,
	}); err != nil {
		log.Printf("saving run %s: %v", res.RunID, err)
	}

	var b strings.Builder
	b.WriteString(res.Message())
	fmt.Fprintf(&b, "\nRun: %s\n\n", res.RunID)
	b.WriteString(res.AgentObservation())
	if res.Error() {
		fmt.Fprintf(&b, "\n\nInspect failures with dsp_inspect(run_id=%q, exit_code=<code>).", res.RunID)
	}
	return textResult(b.String())
}
