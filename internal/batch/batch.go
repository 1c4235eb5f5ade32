// Package batch orchestrates independent shell commands with bounded
// concurrency and order-preserving aggregation.
package batch

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/deixis/dispatch/internal/ps1"
	"github.com/deixis/dispatch/internal/shell"
	"github.com/google/uuid"
)

// DefaultMaxConcurrency bounds simultaneous commands when a batch does
// not set its own limit.
const DefaultMaxConcurrency = 10

// Runner executes one command. Implemented by shell.Runner.
type Runner interface {
	Run(ctx context.Context, spec shell.RunSpec) (*shell.Result, error)
}

// Params describes one batch invocation. Commands must be independent:
// the orchestrator guarantees isolation between them but no relative
// ordering of their side effects.
type Params struct {
	Commands          []string
	MaxConcurrency    int           // 0 means DefaultMaxConcurrency
	TimeoutPerCommand time.Duration // 0 means the runner default
	Cwd               string        // shared working directory for every command
	Hidden            bool          // internal batch; bypasses truncation
}

// Orchestrator fans batches out over a bounded worker pool.
type Orchestrator struct {
	Runner Runner
}

// Run executes every command in p and returns one result per command,
// in submission order regardless of completion order. Failures of
// individual commands — non-zero exits, timeouts, start failures — are
// encoded in their result slots; Run itself fails only on invalid
// parameters, before any command is dispatched.
func (o *Orchestrator) Run(ctx context.Context, p Params) (*Result, error) {
	if len(p.Commands) == 0 {
		return nil, fmt.Errorf("at least one command is required")
	}
	concurrency := p.MaxConcurrency
	if concurrency == 0 {
		concurrency = DefaultMaxConcurrency
	}
	if concurrency < 1 {
		return nil, fmt.Errorf("max_concurrency must be at least 1, got %d", p.MaxConcurrency)
	}
	if p.TimeoutPerCommand < 0 {
		return nil, fmt.Errorf("timeout_per_command must be positive, got %s", p.TimeoutPerCommand)
	}

	// One slot per command, each written by exactly one worker. The
	// fixed indices avoid a lock on a shared list and make the
	// aggregate come out in submission order for free.
	results := make([]*shell.Result, len(p.Commands))

	workers := concurrency
	if n := len(p.Commands); workers > n {
		workers = n
	}

	jobs := make(chan int)
	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range jobs {
				results[i] = o.runOne(ctx, p, p.Commands[i])
			}
		}()
	}

	// Feed indices in submission order so admission is FIFO. When the
	// batch is cancelled, stop feeding; slots that never started are
	// filled in below so the result count always matches the input.
feed:
	for i := range p.Commands {
		select {
		case jobs <- i:
		case <-ctx.Done():
			break feed
		}
	}
	close(jobs)
	wg.Wait()

	for i, r := range results {
		if r == nil {
			results[i] = syntheticResult(p.Commands[i], "[Batch cancelled before this command started]", p.Hidden)
		}
	}

	return &Result{RunID: uuid.New().String(), Results: results}, nil
}

func (o *Orchestrator) runOne(ctx context.Context, p Params, command string) *shell.Result {
	res, err := o.Runner.Run(ctx, shell.RunSpec{
		Command: command,
		Cwd:     p.Cwd,
		Timeout: p.TimeoutPerCommand,
		Hidden:  p.Hidden,
	})
	if err != nil {
		// The runner rejected the command outright. The slot still
		// gets a result; one bad command never fails the batch call.
		return syntheticResult(command, fmt.Sprintf("Failed to start command: %v", err), p.Hidden)
	}
	return res
}

func syntheticResult(command, explanation string, hidden bool) *shell.Result {
	meta := ps1.NewMetadata()
	meta.ExitCode = shell.ExitStartFailure
	return shell.NewResult(command, explanation, meta, 0, hidden)
}
