package client

import (
	"context"
	"sync"
	"time"

	"github.com/qwertys/qwertys-api/models"
	"github.com/qwertys/qwertys-api/services"
)

// DuplicateChecker is implemented by *Client.
type DuplicateChecker interface {
	CheckDuplicate(ctx context.Context, c services.DuplicateCandidate) (*models.DuplicateCheckResponse, error)
}

// DuplicateWatcher runs the soft duplicate check while a form is being
// filled. Each Select cancels the previous check; only the result of the
// latest selection is applied. A failed check clears the warning.
type DuplicateWatcher struct {
	checker  DuplicateChecker
	onChange func(*models.DuplicateConflict)
	debounce time.Duration

	mu      sync.Mutex
	seq     uint64
	cancel  context.CancelFunc
	closed  bool
	warning *models.DuplicateConflict
	wg      sync.WaitGroup
}

// NewDuplicateWatcher calls onChange (which may be nil) with the current
// warning each time it changes. onChange runs with the watcher locked and
// must not call back into it.
func NewDuplicateWatcher(checker DuplicateChecker, onChange func(*models.DuplicateConflict)) *DuplicateWatcher {
	return &DuplicateWatcher{checker: checker, onChange: onChange}
}

// WithDebounce waits d before sending each check, so fast typing only
// triggers the last one.
func (w *DuplicateWatcher) WithDebounce(d time.Duration) *DuplicateWatcher {
	w.debounce = d
	return w
}

// Select starts a check for the candidate. An incomplete pair clears the warning.
func (w *DuplicateWatcher) Select(c services.DuplicateCandidate) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return
	}

	w.seq++
	seq := w.seq
	if w.cancel != nil {
		w.cancel()
		w.cancel = nil
	}

	if c.ProgrammeID == "" || c.PartenaireID == "" || !c.TestType.Valid() {
		w.setWarning(nil)
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	w.cancel = cancel
	w.wg.Add(1)
	go w.run(ctx, seq, c)
}

func (w *DuplicateWatcher) run(ctx context.Context, seq uint64, c services.DuplicateCandidate) {
	defer w.wg.Done()

	if w.debounce > 0 {
		t := time.NewTimer(w.debounce)
		select {
		case <-ctx.Done():
			t.Stop()
			return
		case <-t.C:
		}
	}

	res, err := w.checker.CheckDuplicate(ctx, c)

	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed || seq != w.seq {
		return
	}
	if err != nil || res == nil || !res.Exists {
		w.setWarning(nil)
		return
	}
	w.setWarning(res.Test)
}

func (w *DuplicateWatcher) setWarning(conflict *models.DuplicateConflict) {
	if w.warning == nil && conflict == nil {
		return
	}
	w.warning = conflict
	if w.onChange != nil {
		w.onChange(conflict)
	}
}

// Warning returns the conflict found for the latest selection, if any.
func (w *DuplicateWatcher) Warning() *models.DuplicateConflict {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.warning
}

// Wait blocks until every started check has returned.
func (w *DuplicateWatcher) Wait() {
	w.wg.Wait()
}

// Close abandons the in-flight check. Late results are dropped.
func (w *DuplicateWatcher) Close() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return
	}
	w.closed = true
	if w.cancel != nil {
		w.cancel()
		w.cancel = nil
	}
}
