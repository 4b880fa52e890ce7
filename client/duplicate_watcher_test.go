package client

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/qwertys/qwertys-api/models"
	"github.com/qwertys/qwertys-api/services"
)

// gatedChecker blocks each check until its gate for the programme is released.
type gatedChecker struct {
	mu      sync.Mutex
	gates   map[string]chan struct{}
	results map[string]*models.DuplicateCheckResponse
	errs    map[string]error
	started chan string
}

func newGatedChecker() *gatedChecker {
	return &gatedChecker{
		gates:   map[string]chan struct{}{},
		results: map[string]*models.DuplicateCheckResponse{},
		errs:    map[string]error{},
		started: make(chan string, 16),
	}
}

func (g *gatedChecker) gate(programmeID string) chan struct{} {
	g.mu.Lock()
	defer g.mu.Unlock()
	ch, ok := g.gates[programmeID]
	if !ok {
		ch = make(chan struct{})
		g.gates[programmeID] = ch
	}
	return ch
}

func (g *gatedChecker) CheckDuplicate(ctx context.Context, c services.DuplicateCandidate) (*models.DuplicateCheckResponse, error) {
	gate := g.gate(c.ProgrammeID)
	g.started <- c.ProgrammeID
	<-gate // results are delivered even after cancellation, like a slow network

	g.mu.Lock()
	defer g.mu.Unlock()
	return g.results[c.ProgrammeID], g.errs[c.ProgrammeID]
}

func candidate(programmeID string) services.DuplicateCandidate {
	return services.DuplicateCandidate{ProgrammeID: programmeID, PartenaireID: "x", TestType: models.TestTypeSite}
}

func exists(id string) *models.DuplicateCheckResponse {
	return &models.DuplicateCheckResponse{Exists: true, Test: &models.DuplicateConflict{ExistingTestID: id}}
}

func TestDuplicateWatcher_StaleResultDiscarded(t *testing.T) {
	g := newGatedChecker()
	g.results["old"] = exists("stale")
	g.results["new"] = &models.DuplicateCheckResponse{Exists: false}

	w := NewDuplicateWatcher(g, nil)
	w.Select(candidate("old"))
	<-g.started
	w.Select(candidate("new"))
	<-g.started

	// The newer answer arrives first, then the stale one.
	close(g.gate("new"))
	close(g.gate("old"))
	w.Wait()

	if got := w.Warning(); got != nil {
		t.Fatalf("stale result applied: %+v", got)
	}
}

func TestDuplicateWatcher_LatestResultApplied(t *testing.T) {
	g := newGatedChecker()
	g.results["a"] = exists("t-1")

	var seen []*models.DuplicateConflict
	w := NewDuplicateWatcher(g, func(c *models.DuplicateConflict) { seen = append(seen, c) })
	w.Select(candidate("a"))
	<-g.started
	close(g.gate("a"))
	w.Wait()

	if got := w.Warning(); got == nil || got.ExistingTestID != "t-1" {
		t.Fatalf("expected warning t-1, got %+v", got)
	}
	if len(seen) != 1 {
		t.Fatalf("expected one change notification, got %d", len(seen))
	}

	// Emptying the pair clears the warning synchronously.
	w.Select(services.DuplicateCandidate{TestType: models.TestTypeSite})
	if w.Warning() != nil {
		t.Fatal("incomplete pair must clear the warning")
	}
	if len(seen) != 2 || seen[1] != nil {
		t.Fatalf("expected a nil notification, got %v", seen)
	}
}

func TestDuplicateWatcher_FailureClearsWarning(t *testing.T) {
	g := newGatedChecker()
	g.results["a"] = exists("t-1")
	g.errs["b"] = errors.New("network down")

	w := NewDuplicateWatcher(g, nil)
	w.Select(candidate("a"))
	<-g.started
	close(g.gate("a"))
	w.Wait()
	if w.Warning() == nil {
		t.Fatal("expected a warning before the failure")
	}

	w.Select(candidate("b"))
	<-g.started
	close(g.gate("b"))
	w.Wait()
	if w.Warning() != nil {
		t.Fatal("a failed check must clear the warning")
	}
}

func TestDuplicateWatcher_CloseDropsLateResult(t *testing.T) {
	g := newGatedChecker()
	g.results["a"] = exists("t-1")

	w := NewDuplicateWatcher(g, func(*models.DuplicateConflict) {
		t.Error("no notification expected after Close")
	})
	w.Select(candidate("a"))
	<-g.started
	w.Close()
	close(g.gate("a"))
	w.Wait()

	if w.Warning() != nil {
		t.Fatal("late result applied after Close")
	}

	w.Select(candidate("a"))
	select {
	case <-g.started:
		t.Fatal("closed watcher must not start checks")
	default:
	}
}
