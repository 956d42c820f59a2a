// Package sheets exports settlement plans to spreadsheets.
package sheets

import (
	"context"
	"time"

	"splitsmart/internal/core"
)

// Snapshot is a settlement plan as it is written out: one row per transaction.
type Snapshot struct {
	GroupID       string
	GroupName     string
	LedgerVersion int64
	Transactions  []core.Transaction
	ComputedAt    time.Time
}

// Ports for outbound adapters.
type (
	// PlanExporter writes a snapshot and returns a reference to where it landed.
	PlanExporter interface {
		ExportPlan(ctx context.Context, s Snapshot) (ref string, err error)
	}
)

// SettledMarker fills the payment columns of a snapshot with no transactions.
const SettledMarker = "settled"

// Rows flattens a snapshot into spreadsheet rows:
// computed_at, group, group name, ledger version, from, to, amount.
// A snapshot without transactions still produces one row so the export
// records that the group was settled at that version.
func Rows(s Snapshot) [][]any {
	stamp := s.ComputedAt.UTC().Format(time.RFC3339)
	if len(s.Transactions) == 0 {
		return [][]any{{stamp, s.GroupID, s.GroupName, s.LedgerVersion, SettledMarker, SettledMarker, core.Zero.String()}}
	}
	rows := make([][]any, 0, len(s.Transactions))
	for _, t := range s.Transactions {
		rows = append(rows, []any{stamp, s.GroupID, s.GroupName, s.LedgerVersion, string(t.From), string(t.To), t.Amount.String()})
	}
	return rows
}
