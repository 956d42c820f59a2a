package memory

import (
	"context"
	"fmt"
	"sync"

	"splitsmart/internal/sheets"
)

// Exporter keeps exported snapshots in memory. It backs the worker when no
// spreadsheet is configured and doubles as a test double.
type Exporter struct {
	mu        sync.Mutex
	snapshots []sheets.Snapshot
	err       error
}

var _ sheets.PlanExporter = (*Exporter)(nil)

func New() *Exporter {
	return &Exporter{}
}

// ExportPlan stores the snapshot and returns a synthetic reference.
func (e *Exporter) ExportPlan(_ context.Context, s sheets.Snapshot) (string, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.err != nil {
		return "", e.err
	}
	s.Transactions = append(s.Transactions[:0:0], s.Transactions...)
	e.snapshots = append(e.snapshots, s)
	return fmt.Sprintf("mem:%d", len(e.snapshots)), nil
}

// Snapshots returns a copy of everything exported so far.
func (e *Exporter) Snapshots() []sheets.Snapshot {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]sheets.Snapshot(nil), e.snapshots...)
}

// Latest returns the last snapshot exported for groupID.
func (e *Exporter) Latest(groupID string) (sheets.Snapshot, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	for i := len(e.snapshots) - 1; i >= 0; i-- {
		if e.snapshots[i].GroupID == groupID {
			return e.snapshots[i], true
		}
	}
	return sheets.Snapshot{}, false
}

// FailWith makes every following export return err; nil clears it.
func (e *Exporter) FailWith(err error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.err = err
}
