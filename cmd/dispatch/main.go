// Command dispatch executes bash commands in isolated subprocesses with
// structured results, singly or in parallel batches.
package main

import (
	"bufio"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"time"

	"github.com/deixis/dispatch"
	"github.com/deixis/dispatch/internal/batch"
	"github.com/deixis/dispatch/internal/config"
	dspmcp "github.com/deixis/dispatch/internal/mcp"
	"github.com/deixis/dispatch/internal/report"
	"github.com/deixis/dispatch/internal/shell"
	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"
)

func main() {
	log.SetFlags(0)
	log.SetPrefix("dispatch: ")

	if len(os.Args) < 2 {
		usage()
		os.Exit(2)
	}

	cmd := os.Args[1]
	args := os.Args[2:]

	var err error
	switch cmd {
	case "mcp":
		err = mcpMain(args)
	case "run":
		err = runMain(args)
	case "batch":
		err = batchMain(args)
	case "version":
		fmt.Println(dispatch.Version)
	case "help", "-h", "--help":
		usage()
	default:
		fmt.Fprintf(os.Stderr, "dispatch: unknown command %q\n", cmd)
		usage()
		os.Exit(2)
	}

	if err != nil {
		log.Fatal(err)
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, `Usage: dispatch <command> [flags] [args]

Commands:
  run         Execute one command and print its structured result
  batch       Execute commands in parallel (args, or one per stdin line with -)
  mcp         Start the MCP server
  version     Print the version
  help        Show this help

Use "dispatch <command> -h" for command-specific flags.`)
}

// --- mcp ---

func mcpMain(args []string) error {
	fs := flag.NewFlagSet("mcp", flag.ExitOnError)
	instructions := fs.Bool("instructions", false, "print model instructions and exit")
	httpAddr := fs.String("http", "", "start HTTP server on address (e.g. :9090)")
	_ = fs.Parse(args)

	if *instructions {
		fmt.Print(dspmcp.Instructions)
		return nil
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	return serve(ctx, *httpAddr)
}

func serve(ctx context.Context, httpAddr string) error {
	workspace, err := os.Getwd()
	if err != nil {
		return fmt.Errorf("determining workspace: %w", err)
	}

	loaded, err := config.Load(workspace)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	cfg := loaded.Config

	disk := report.NewDiskStore()
	store := report.NewCachedStore(5, disk)

	r := &shell.Runner{
		Shell:     cfg.Shell(),
		Workspace: workspace,
		Timeout:   cfg.Timeout(),
		MaxOutput: cfg.MaxOutput(),
	}

	server := dspmcp.NewServer(cfg, r, store, workspace)

	if httpAddr != "" {
		return serveHTTP(ctx, server, httpAddr)
	}
	return server.Run(ctx, &mcpsdk.StdioTransport{})
}

func serveHTTP(ctx context.Context, server *mcpsdk.Server, addr string) error {
	handler := mcpsdk.NewStreamableHTTPHandler(
		func(_ *http.Request) *mcpsdk.Server { return server },
		nil,
	)

	httpServer := &http.Server{
		Addr:    addr,
		Handler: handler,
	}

	go func() {
		<-ctx.Done()
		_ = httpServer.Close()
	}()

	log.Printf("listening on %s", addr)
	if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("http server: %w", err)
	}
	return nil
}

// --- run ---

func runMain(args []string) error {
	fs := flag.NewFlagSet("run", flag.ExitOnError)
	cwdFlag := fs.String("cwd", "", "working directory for the command")
	timeoutFlag := fs.Duration("timeout", 0, "override configured timeout (e.g. 30s)")
	jsonFlag := fs.Bool("json", false, "output the result as JSON")
	_ = fs.Parse(args)

	if fs.NArg() != 1 {
		return fmt.Errorf("run takes exactly one command argument")
	}
	command := fs.Arg(0)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	r, _, err := newRunner(*timeoutFlag)
	if err != nil {
		return err
	}

	res, err := r.Run(ctx, shell.RunSpec{Command: command, Cwd: *cwdFlag})
	if err != nil {
		return fmt.Errorf("run: %w", err)
	}

	if *jsonFlag {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(res); err != nil {
			return err
		}
	} else {
		fmt.Println(res.AgentObservation())
	}

	if res.Error() {
		os.Exit(1)
	}
	return nil
}

// --- batch ---

func batchMain(args []string) error {
	fs := flag.NewFlagSet("batch", flag.ExitOnError)
	concurrencyFlag := fs.Int("concurrency", 0, "maximum simultaneous commands (default from config)")
	timeoutFlag := fs.Duration("timeout", 0, "per-command timeout override (e.g. 30s)")
	cwdFlag := fs.String("cwd", "", "working directory shared by all commands")
	jsonFlag := fs.Bool("json", false, "output results as JSON")
	_ = fs.Parse(args)

	commands := fs.Args()
	if len(commands) == 1 && commands[0] == "-" {
		var err error
		commands, err = readCommands(os.Stdin)
		if err != nil {
			return fmt.Errorf("reading commands: %w", err)
		}
	}
	if len(commands) == 0 {
		return fmt.Errorf("batch takes commands as arguments, or one per stdin line with -")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	r, cfg, err := newRunner(*timeoutFlag)
	if err != nil {
		return err
	}

	concurrency := *concurrencyFlag
	if concurrency == 0 {
		concurrency = cfg.MaxConcurrency()
	}

	o := &batch.Orchestrator{Runner: r}
	res, err := o.Run(ctx, batch.Params{
		Commands:       commands,
		MaxConcurrency: concurrency,
		Cwd:            *cwdFlag,
	})
	if err != nil {
		return fmt.Errorf("batch: %w", err)
	}

	if *jsonFlag {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(res); err != nil {
			return err
		}
	} else {
		fmt.Println(res.Message())
		fmt.Println()
		fmt.Println(res.AgentObservation())
	}

	if res.Error() {
		os.Exit(1)
	}
	return nil
}

// readCommands reads one command per line, skipping blank lines.
func readCommands(f *os.File) ([]string, error) {
	var commands []string
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		if line := sc.Text(); line != "" {
			commands = append(commands, line)
		}
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	return commands, nil
}

// --- shared ---

func newRunner(timeoutOverride time.Duration) (*shell.Runner, *config.Config, error) {
	workspace, err := os.Getwd()
	if err != nil {
		return nil, nil, fmt.Errorf("determining workspace: %w", err)
	}

	loaded, err := config.Load(workspace)
	if err != nil {
		return nil, nil, fmt.Errorf("loading config: %w", err)
	}
	cfg := loaded.Config

	timeout := cfg.Timeout()
	if timeoutOverride > 0 {
		timeout = timeoutOverride
	}

	return &shell.Runner{
		Shell:     cfg.Shell(),
		Workspace: workspace,
		Timeout:   timeout,
		MaxOutput: cfg.MaxOutput(),
	}, cfg, nil
}
