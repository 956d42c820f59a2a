package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"splitsmart/internal/core"
	"splitsmart/internal/storage"
)

func balanceOf(t *testing.T, s core.GroupSummary, u core.UserID) string {
	t.Helper()
	for _, e := range s.Balances {
		if e.User == u {
			return e.Balance.String()
		}
	}
	t.Fatalf("no balance for %s", u)
	return ""
}

func TestSettlementService_BalancesAndPlan(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	a := f.signup(t, "a")
	b := f.signup(t, "b")
	c := f.signup(t, "c")
	outsider := f.signup(t, "outsider")
	gid := f.group(t, a, joiner{name: "b"}, joiner{name: "c"})

	_, err := f.expenses.AddExpense(ctx, a, gid, ExpenseInput{
		Description: "Hotel",
		Total:       core.MustParseMoney("90"),
		Policy:      core.Equal{Participants: []core.UserID{a, b, c}},
	})
	require.NoError(t, err)
	_, err = f.expenses.AddExpense(ctx, b, gid, ExpenseInput{
		Description: "Fuel",
		Total:       core.MustParseMoney("30"),
		Policy:      core.Equal{Participants: []core.UserID{b, c}},
	})
	require.NoError(t, err)

	sum, err := f.settlements.Balances(ctx, c, gid)
	require.NoError(t, err)
	assert.Equal(t, "120.00", sum.TotalSpent.String())
	assert.Equal(t, "60.00", balanceOf(t, sum, a))
	assert.Equal(t, "-15.00", balanceOf(t, sum, b))
	assert.Equal(t, "-45.00", balanceOf(t, sum, c))

	plan, err := f.settlements.Simplify(ctx, b, gid)
	require.NoError(t, err)
	assert.Equal(t, int64(2), plan.LedgerVersion)
	require.Len(t, plan.Transactions, 2)
	assert.Equal(t, c, plan.Transactions[0].From)
	assert.Equal(t, a, plan.Transactions[0].To)
	assert.Equal(t, "45.00", plan.Transactions[0].Amount.String())
	assert.Equal(t, b, plan.Transactions[1].From)
	assert.Equal(t, "15.00", plan.Transactions[1].Amount.String())

	_, err = f.settlements.Balances(ctx, outsider, gid)
	assert.ErrorIs(t, err, ErrForbidden)
	_, err = f.settlements.Simplify(ctx, outsider, gid)
	assert.ErrorIs(t, err, ErrForbidden)
}

func TestSettlementService_PlanCache(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	a := f.signup(t, "a")
	b := f.signup(t, "b")
	gid := f.group(t, a, joiner{name: "b"})

	first, err := f.settlements.Plan(ctx, gid)
	require.NoError(t, err)
	assert.Empty(t, first.Transactions)
	assert.Equal(t, 1, f.plans.Size())

	cached, err := f.settlements.Plan(ctx, gid)
	require.NoError(t, err)
	assert.Equal(t, first.ComputedAt, cached.ComputedAt)

	// recording an expense invalidates and bumps the version
	_, err = f.expenses.AddExpense(ctx, a, gid, ExpenseInput{
		Description: "Tickets",
		Total:       core.MustParseMoney("40"),
		Policy:      core.Equal{Participants: []core.UserID{a, b}},
	})
	require.NoError(t, err)
	assert.Equal(t, 0, f.plans.Size())

	fresh, err := f.settlements.Plan(ctx, gid)
	require.NoError(t, err)
	assert.Equal(t, int64(1), fresh.LedgerVersion)
	require.Len(t, fresh.Transactions, 1)
	assert.Equal(t, "20.00", fresh.Transactions[0].Amount.String())

	// a stale entry is ignored even if it was never invalidated
	f.plans.Set(ctx, planKey(gid), Plan{GroupID: gid, LedgerVersion: 0})
	again, err := f.settlements.Plan(ctx, gid)
	require.NoError(t, err)
	assert.Len(t, again.Transactions, 1)
}

func TestSettlementService_RejectsUnbalancedLedger(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	a := f.signup(t, "a")
	b := f.signup(t, "b")
	gid := f.group(t, a, joiner{name: "b"})

	// written straight to the store, bypassing allocation
	require.NoError(t, f.store.CreateExpense(ctx, core.ExpenseRecord{
		Expense: core.Expense{ID: "bad", GroupID: gid, PayerID: a, Description: "broken", Total: core.MustParseMoney("10"), Policy: core.PolicyCustom},
		Shares:  []core.ExpenseShare{{ExpenseID: "bad", UserID: b, Amount: core.MustParseMoney("4")}},
	}))

	_, err := f.settlements.Plan(ctx, gid)
	assert.ErrorIs(t, err, core.ErrUnbalanced)
}

func TestSettlementService_Overview(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	a := f.signup(t, "a")
	b := f.signup(t, "b")
	g1 := f.group(t, a, joiner{name: "b"})
	g2 := f.group(t, b)
	_, err := f.groups.AddMember(ctx, b, g2, AddMemberInput{Email: "a@example.com"})
	require.NoError(t, err)

	_, err = f.expenses.AddExpense(ctx, b, g2, ExpenseInput{
		Description: "Groceries",
		Total:       core.MustParseMoney("10"),
		Policy:      core.Percentage{Shares: []core.PercentShare{{User: a, Percent: core.MustParseMoney("100").Decimal()}}},
	})
	require.NoError(t, err)

	summaries, err := f.settlements.Overview(ctx, a)
	require.NoError(t, err)
	require.Len(t, summaries, 2)
	assert.Equal(t, g1, summaries[0].GroupID)
	assert.Equal(t, g2, summaries[1].GroupID)
	assert.Equal(t, "-10.00", balanceOf(t, summaries[1], a))
}

func TestSettlementService_MissingGroup(t *testing.T) {
	f := newFixture(t)
	_, err := f.settlements.Plan(context.Background(), "missing")
	assert.ErrorIs(t, err, storage.ErrNotFound)
}
