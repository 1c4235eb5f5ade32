package report

import (
	"fmt"
	"testing"

	"github.com/deixis/dispatch/internal/ps1"
	"github.com/deixis/dispatch/internal/shell"
)

func resultWithCode(command string, code int) *shell.Result {
	meta := ps1.NewMetadata()
	meta.ExitCode = code
	return shell.NewResult(command, "out:"+command, meta, 0, false)
}

func sampleRun(id string) *RunResult {
	return &RunResult{
		ID:   id,
		Kind: Batch,
		Results: []*shell.Result{
			resultWithCode("echo a", 0),
			resultWithCode("make build", 2),
			resultWithCode("echo b", 0),
			resultWithCode("make test", 1),
		},
	}
}

func TestRunResult_Filters(t *testing.T) {
	r := sampleRun("run-1")

	if got := r.ByExitCode(0); len(got) != 2 || got[0].Command != "echo a" {
		t.Errorf("ByExitCode(0) = %+v, want the two echo commands", got)
	}
	if got := r.Failed(); len(got) != 2 || got[0].Command != "make build" || got[1].Command != "make test" {
		t.Errorf("Failed() = %+v, want the two make commands in order", got)
	}
	if got := r.ByCommand("make"); len(got) != 2 {
		t.Errorf("ByCommand(make) has %d entries, want 2", len(got))
	}

	res, err := r.At(1)
	if err != nil || res.Command != "make build" {
		t.Errorf("At(1) = %v, %v", res, err)
	}
	if _, err := r.At(4); err == nil {
		t.Error("At(4) = nil error, want out of range")
	}
	if _, err := r.At(-1); err == nil {
		t.Error("At(-1) = nil error, want out of range")
	}
}

func TestDiskStore_RoundTrip(t *testing.T) {
	s := NewDiskStore()
	want := sampleRun("run-disk")
	if err := s.Save(want); err != nil {
		t.Fatalf("Save: %v", err)
	}

	got, err := s.Load("run-disk")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if got.ID != want.ID || got.Kind != want.Kind || len(got.Results) != len(want.Results) {
		t.Errorf("Load = %+v, want %+v", got, want)
	}
	if got.Results[1].ExitCode() != 2 {
		t.Errorf("Results[1].ExitCode = %d, want 2", got.Results[1].ExitCode())
	}
}

func TestDiskStore_LoadMissing(t *testing.T) {
	s := NewDiskStore()
	if _, err := s.Load("no-such-run"); err == nil {
		t.Fatal("expected error for missing run")
	}
}

// countingStore records backing-store hits so cache behavior is visible.
type countingStore struct {
	saves int
	loads int
	data  map[string]*RunResult
}

func (c *countingStore) Save(r *RunResult) error {
	c.saves++
	if c.data == nil {
		c.data = make(map[string]*RunResult)
	}
	c.data[r.ID] = r
	return nil
}

func (c *countingStore) Load(id string) (*RunResult, error) {
	c.loads++
	r, ok := c.data[id]
	if !ok {
		return nil, fmt.Errorf("run %s not found", id)
	}
	return r, nil
}

func TestCachedStore_HitSkipsBacking(t *testing.T) {
	back := &countingStore{}
	s := NewCachedStore(4, back)

	if err := s.Save(sampleRun("run-1")); err != nil {
		t.Fatalf("Save: %v", err)
	}
	if back.saves != 1 {
		t.Errorf("backing saves = %d, want 1", back.saves)
	}

	if _, err := s.Load("run-1"); err != nil {
		t.Fatalf("Load: %v", err)
	}
	if back.loads != 0 {
		t.Errorf("backing loads = %d, want 0 (cache hit)", back.loads)
	}
}

func TestCachedStore_EvictsLeastRecent(t *testing.T) {
	back := &countingStore{}
	s := NewCachedStore(2, back)

	for _, id := range []string{"run-1", "run-2", "run-3"} {
		if err := s.Save(sampleRun(id)); err != nil {
			t.Fatalf("Save %s: %v", id, err)
		}
	}

	// run-1 was evicted, so this load must hit the backing store.
	if _, err := s.Load("run-1"); err != nil {
		t.Fatalf("Load: %v", err)
	}
	if back.loads != 1 {
		t.Errorf("backing loads = %d, want 1 (eviction forced a miss)", back.loads)
	}

	// run-3 is still cached.
	if _, err := s.Load("run-3"); err != nil {
		t.Fatalf("Load: %v", err)
	}
	if back.loads != 1 {
		t.Errorf("backing loads = %d, want still 1 (run-3 cached)", back.loads)
	}
}
