// Package mcp provides the Dispatch MCP server, registering all tools
// and publishing model instructions.
package mcp

import (
	"context"
	_ "embed"
	"net/url"
	"time"

	"github.com/deixis/dispatch"
	"github.com/deixis/dispatch/internal/batch"
	"github.com/deixis/dispatch/internal/config"
	"github.com/deixis/dispatch/internal/report"
	"github.com/deixis/dispatch/internal/shell"
	"github.com/modelcontextprotocol/go-sdk/mcp"
)

//go:embed instructions.md
var Instructions string

// handler holds shared dependencies for all tool handlers.
type handler struct {
	cfg          *config.Config
	runner       *shell.Runner
	orchestrator *batch.Orchestrator
	store        report.Store
}

// NewServer creates an MCP server with all Dispatch tools registered.
// The workspace seeds the runner's cwd boundary until the client
// announces its roots.
func NewServer(cfg *config.Config, r *shell.Runner, store report.Store, workspace string) *mcp.Server {
	if workspace != "" {
		r.Workspace = workspace
	}
	h := &handler{
		cfg:          cfg,
		runner:       r,
		orchestrator: &batch.Orchestrator{Runner: r},
		store:        store,
	}

	mcpOpts := &mcp.ServerOptions{
		Instructions: Instructions,
		Capabilities: &mcp.ServerCapabilities{
			Tools: &mcp.ToolCapabilities{ListChanged: false},
		},
		InitializedHandler: func(ctx context.Context, req *mcp.InitializedRequest) {
			h.updateWorkspaceFromRoots(ctx, req.Session)
		},
	}
	s := mcp.NewServer(&mcp.Implementation{Name: "dispatch", Version: dispatch.Version}, mcpOpts)

	mcp.AddTool(s, &mcp.Tool{
		Name: "dsp_exec",
		Description: `Execute one bash command in an isolated subprocess and return its output with structured metadata.

The command runs in a fresh shell, so it shares no state with previous commands.
The result carries the exit code, working directory, and process ID recovered from
the shell itself, and is stored for drill-down via dsp_inspect.`,
	}, h.execHandler)

	mcp.AddTool(s, &mcp.Tool{
		Name: "dsp_batch",
		Description: `Execute multiple bash commands in parallel for faster execution.

Use for independent commands that don't depend on each other's output — parallel
grep/search commands, independent file operations, independent test commands.
Each command runs in an isolated subprocess with its own exit code and output;
commands do NOT share state. For dependent commands use dsp_exec with && chaining.
Keep the number of parallel commands reasonable (default max 10) to avoid resource
exhaustion. Results are labeled per command, returned in submission order, and
stored for drill-down via dsp_inspect.`,
	}, h.batchHandler)

	mcp.AddTool(s, &mcp.Tool{
		Name: "dsp_inspect",
		Description: `Drill into results from a dsp_exec or dsp_batch run.

Use the run_id from the tool output. Filter by exit_code to find failures,
by index for one command's full result, or by command substring.`,
	}, h.inspectHandler)

	return s
}

// updateWorkspaceFromRoots queries the client for MCP roots and updates
// the handler's runner and config if a valid root is returned. This is
// called during session initialization, before any tool calls.
func (h *handler) updateWorkspaceFromRoots(ctx context.Context, session *mcp.ServerSession) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	roots, err := session.ListRoots(ctx, &mcp.ListRootsParams{})
	if err != nil {
		return
	}
	if len(roots.Roots) == 0 {
		return
	}

	u, err := url.Parse(roots.Roots[0].URI)
	if err != nil || u.Scheme != "file" {
		return
	}
	workspace := u.Path

	loaded, err := config.Load(workspace)
	if err != nil {
		return
	}

	h.cfg = loaded.Config
	h.runner.Workspace = workspace
	h.runner.Shell = loaded.Config.Shell()
	h.runner.Timeout = loaded.Config.Timeout()
	h.runner.MaxOutput = loaded.Config.MaxOutput()
}

// textResult is a helper to build a text-only tool result.
func textResult(text string) (*mcp.CallToolResult, any, error) {
	return &mcp.CallToolResult{
		Content: []mcp.Content{&mcp.TextContent{Text: text}},
	}, nil, nil
}

// errorResult is a helper to build an error tool result.
func errorResult(text string) (*mcp.CallToolResult, any, error) {
	return &mcp.CallToolResult{
		Content: []mcp.Content{&mcp.TextContent{Text: text}},
		IsError: true,
	}, nil, nil
}
