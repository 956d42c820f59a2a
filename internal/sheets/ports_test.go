package sheets

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"splitsmart/internal/core"
)

func TestRows(t *testing.T) {
	at := time.Date(2026, 3, 1, 12, 0, 0, 0, time.FixedZone("CET", 3600))

	t.Run("one row per transaction", func(t *testing.T) {
		rows := Rows(Snapshot{
			GroupID:       "g1",
			GroupName:     "Trip",
			LedgerVersion: 3,
			ComputedAt:    at,
			Transactions: []core.Transaction{
				{From: "c", To: "a", Amount: core.MustParseMoney("45")},
				{From: "b", To: "a", Amount: core.MustParseMoney("15.5")},
			},
		})
		assert.Equal(t, [][]any{
			{"2026-03-01T11:00:00Z", "g1", "Trip", int64(3), "c", "a", "45.00"},
			{"2026-03-01T11:00:00Z", "g1", "Trip", int64(3), "b", "a", "15.50"},
		}, rows)
	})

	t.Run("settled group", func(t *testing.T) {
		rows := Rows(Snapshot{GroupID: "g1", ComputedAt: at})
		assert.Equal(t, [][]any{
			{"2026-03-01T11:00:00Z", "g1", "", int64(0), SettledMarker, SettledMarker, "0.00"},
		}, rows)
	})
}
