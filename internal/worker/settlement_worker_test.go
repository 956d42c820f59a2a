package worker

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"splitsmart/internal/amqp"
	"splitsmart/internal/cache"
	"splitsmart/internal/core"
	"splitsmart/internal/services"
	sheetsmem "splitsmart/internal/sheets/memory"
	"splitsmart/internal/storage/memory"
)

type env struct {
	store    *memory.Store
	exporter *sheetsmem.Exporter
	worker   *SettlementWorker
}

func newEnv(t *testing.T) *env {
	t.Helper()
	store := memory.New()
	plans := cache.NewLRUCache[services.Plan](16, time.Minute)
	settlements := services.NewSettlementService(store, plans, nil)
	exporter := sheetsmem.New()
	return &env{
		store:    store,
		exporter: exporter,
		worker:   NewSettlementWorker(store, settlements, exporter, 2, nil),
	}
}

// seedGroup creates a group where b owes a half of amount.
func (e *env) seedGroup(t *testing.T, id string, amount string) {
	t.Helper()
	ctx := context.Background()
	a := core.UserID(id + "-a")
	b := core.UserID(id + "-b")
	for _, u := range []core.UserID{a, b} {
		require.NoError(t, e.store.CreateUser(ctx, core.User{ID: u, Email: string(u) + "@example.com", Name: string(u)}))
	}
	require.NoError(t, e.store.CreateGroup(ctx, core.Group{ID: id, Name: "Group " + id, AdminID: a}))
	require.NoError(t, e.store.AddMember(ctx, core.Member{GroupID: id, UserID: b, Role: core.RoleMember}))
	if amount == "" {
		return
	}

	total := core.MustParseMoney(amount)
	shares, err := core.Allocate(total, core.Equal{Participants: []core.UserID{a, b}}, nil)
	require.NoError(t, err)
	exp := core.Expense{ID: id + "-e1", GroupID: id, PayerID: a, Description: "x", Total: total, Policy: core.PolicyEqual, CreatedAt: time.Now()}
	require.NoError(t, e.store.CreateExpense(ctx, core.ExpenseRecord{Expense: exp, Shares: core.SharesFor(exp.ID, shares)}))
}

func TestHandleExpenseRecorded(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t)
	e.seedGroup(t, "g1", "30")

	err := e.worker.HandleExpenseRecorded(ctx, amqp.NewExpenseRecordedMessage("g1", "g1-e1", 1))
	require.NoError(t, err)

	snap, ok := e.exporter.Latest("g1")
	require.True(t, ok)
	assert.Equal(t, "Group g1", snap.GroupName)
	assert.Equal(t, int64(1), snap.LedgerVersion)
	require.Len(t, snap.Transactions, 1)
	assert.Equal(t, core.UserID("g1-b"), snap.Transactions[0].From)
	assert.Equal(t, core.UserID("g1-a"), snap.Transactions[0].To)
	assert.Equal(t, "15.00", snap.Transactions[0].Amount.String())
}

func TestHandleExpenseRecorded_UnknownGroupIsDropped(t *testing.T) {
	e := newEnv(t)
	err := e.worker.HandleExpenseRecorded(context.Background(), amqp.NewExpenseRecordedMessage("gone", "x", 1))
	assert.NoError(t, err)
	assert.Empty(t, e.exporter.Snapshots())
}

func TestHandleExpenseRecorded_UnbalancedIsDropped(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t)
	e.seedGroup(t, "g1", "")
	require.NoError(t, e.store.CreateExpense(ctx, core.ExpenseRecord{
		Expense: core.Expense{ID: "bad", GroupID: "g1", PayerID: "g1-a", Description: "x", Total: core.MustParseMoney("10"), Policy: core.PolicyCustom},
		Shares:  []core.ExpenseShare{{ExpenseID: "bad", UserID: "g1-b", Amount: core.MustParseMoney("3")}},
	}))

	err := e.worker.HandleExpenseRecorded(ctx, amqp.NewExpenseRecordedMessage("g1", "bad", 1))
	assert.NoError(t, err)
	assert.Empty(t, e.exporter.Snapshots())
}

func TestHandleExpenseRecorded_ExportFailureRequeues(t *testing.T) {
	e := newEnv(t)
	e.seedGroup(t, "g1", "10")
	boom := errors.New("sheets unavailable")
	e.exporter.FailWith(boom)

	err := e.worker.HandleExpenseRecorded(context.Background(), amqp.NewExpenseRecordedMessage("g1", "g1-e1", 1))
	assert.ErrorIs(t, err, boom)
}

func TestRefreshAll(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t)
	for i := 0; i < 5; i++ {
		e.seedGroup(t, fmt.Sprintf("g%d", i), fmt.Sprintf("%d", (i+1)*10))
	}

	require.NoError(t, e.worker.RefreshAll(ctx))
	assert.Len(t, e.exporter.Snapshots(), 5)

	snap, ok := e.exporter.Latest("g4")
	require.True(t, ok)
	assert.Equal(t, "25.00", snap.Transactions[0].Amount.String())
}

func TestRefreshAll_ContinuesPastFailures(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t)
	e.seedGroup(t, "g1", "10")
	e.exporter.FailWith(errors.New("down"))

	assert.NoError(t, e.worker.RefreshAll(ctx))
	assert.Empty(t, e.exporter.Snapshots())
}

func TestRefreshAll_Cancelled(t *testing.T) {
	e := newEnv(t)
	e.seedGroup(t, "g1", "10")
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	assert.ErrorIs(t, e.worker.RefreshAll(ctx), context.Canceled)
}

func TestRunStopsWithContext(t *testing.T) {
	e := newEnv(t)
	e.seedGroup(t, "g1", "10")
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan struct{})
	go func() {
		e.worker.Run(ctx, 10*time.Millisecond)
		close(done)
	}()

	require.Eventually(t, func() bool { return len(e.exporter.Snapshots()) >= 2 }, time.Second, 5*time.Millisecond)
	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Run did not return after cancel")
	}
}

func TestWithoutExporter(t *testing.T) {
	e := newEnv(t)
	e.seedGroup(t, "g1", "10")
	w := NewSettlementWorker(e.store, services.NewSettlementService(e.store, nil, nil), nil, 0, nil)
	assert.NoError(t, w.HandleExpenseRecorded(context.Background(), amqp.NewExpenseRecordedMessage("g1", "g1-e1", 1)))
}
