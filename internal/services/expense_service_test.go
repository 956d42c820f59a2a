package services

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"splitsmart/internal/core"
	"splitsmart/internal/storage"
	"splitsmart/internal/storage/memory"
)

func TestExpenseService_AddEqual(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	a := f.signup(t, "a")
	b := f.signup(t, "b")
	c := f.signup(t, "c")
	gid := f.group(t, a, joiner{name: "b"}, joiner{name: "c"})

	rec, err := f.expenses.AddExpense(ctx, a, gid, ExpenseInput{
		Description: "Dinner",
		Total:       core.MustParseMoney("100"),
		Policy:      core.Equal{Participants: []core.UserID{a, b, c}},
	})
	require.NoError(t, err)
	assert.Equal(t, a, rec.PayerID)
	assert.Equal(t, core.PolicyEqual, rec.Policy)
	require.Len(t, rec.Shares, 3)
	assert.Equal(t, "33.33", rec.Shares[0].Amount.String())
	assert.Equal(t, "33.34", rec.Shares[2].Amount.String())

	stored, err := f.expenses.GetExpense(ctx, b, gid, rec.ID)
	require.NoError(t, err)
	assert.Equal(t, "Dinner", stored.Description)

	require.Len(t, f.publisher.events, 1)
	assert.Equal(t, published{GroupID: gid, ExpenseID: rec.ID, Version: 1}, f.publisher.events[0])

	list, err := f.expenses.ListExpenses(ctx, c, gid)
	require.NoError(t, err)
	assert.Len(t, list, 1)
}

func TestExpenseService_PreferenceUsesStoredTags(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	u1 := f.signup(t, "u1")
	f.signup(t, "u2")
	u3 := f.signup(t, "u3")
	gid := f.group(t, u1,
		joiner{name: "u2", tags: []string{"non-veg", "drinker"}},
		joiner{name: "u3", tags: []string{"veg", "drinker"}},
	)
	_, err := f.groups.SetMemberTags(ctx, u1, gid, u1, []string{"veg", "non-drinker"})
	require.NoError(t, err)

	policy, err := core.DecodePolicy(core.PolicyPreference, json.RawMessage(`{"tags":["veg"]}`))
	require.NoError(t, err)

	rec, err := f.expenses.AddExpense(ctx, u1, gid, ExpenseInput{
		Description: "Salad",
		Total:       core.MustParseMoney("90"),
		Policy:      policy,
	})
	require.NoError(t, err)
	require.Len(t, rec.Shares, 2)
	assert.Equal(t, u1, rec.Shares[0].UserID)
	assert.Equal(t, u3, rec.Shares[1].UserID)
	assert.Equal(t, "45.00", rec.Shares[1].Amount.String())
	assert.Equal(t, []string{"veg"}, rec.PreferenceTags)

	_, err = f.expenses.AddExpense(ctx, u1, gid, ExpenseInput{
		Description: "Whisky",
		Total:       core.MustParseMoney("50"),
		Policy:      core.Preference{Tags: []string{"veg", "non-veg"}},
	})
	assert.ErrorIs(t, err, core.ErrInvalidInput)
}

func TestExpenseService_Rejections(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	a := f.signup(t, "a")
	b := f.signup(t, "b")
	outsider := f.signup(t, "outsider")
	gid := f.group(t, a, joiner{name: "b"})

	tests := []struct {
		name  string
		actor core.UserID
		in    ExpenseInput
		want  error
	}{
		{
			name:  "non member caller",
			actor: outsider,
			in:    ExpenseInput{Description: "x", Total: core.MustParseMoney("10"), Policy: core.Equal{Participants: []core.UserID{a}}},
			want:  ErrForbidden,
		},
		{
			name:  "payer outside group",
			actor: a,
			in:    ExpenseInput{PayerID: outsider, Description: "x", Total: core.MustParseMoney("10"), Policy: core.Equal{Participants: []core.UserID{a}}},
			want:  core.ErrInvalidInput,
		},
		{
			name:  "participant outside group",
			actor: a,
			in:    ExpenseInput{Description: "x", Total: core.MustParseMoney("10"), Policy: core.Equal{Participants: []core.UserID{a, outsider}}},
			want:  core.ErrInvalidInput,
		},
		{
			name:  "percentages off",
			actor: a,
			in: ExpenseInput{Description: "x", Total: core.MustParseMoney("10"), Policy: core.Percentage{Shares: []core.PercentShare{
				{User: a, Percent: core.MustParseMoney("60").Decimal()},
				{User: b, Percent: core.MustParseMoney("39").Decimal()},
			}}},
			want: core.ErrInvalidInput,
		},
		{
			name:  "custom mismatch",
			actor: a,
			in: ExpenseInput{Description: "x", Total: core.MustParseMoney("550"), Policy: core.Custom{Shares: []core.FixedShare{
				{User: a, Amount: core.MustParseMoney("200")},
				{User: b, Amount: core.MustParseMoney("300")},
			}}},
			want: core.ErrInvalidInput,
		},
		{
			name:  "zero total",
			actor: a,
			in:    ExpenseInput{Description: "x", Total: core.MustParseMoney("0.004"), Policy: core.Equal{Participants: []core.UserID{a}}},
			want:  core.ErrInvalidAmount,
		},
		{
			name:  "empty description",
			actor: a,
			in:    ExpenseInput{Description: "  ", Total: core.MustParseMoney("10"), Policy: core.Equal{Participants: []core.UserID{a}}},
			want:  core.ErrEmptyDescription,
		},
		{
			name:  "no policy",
			actor: a,
			in:    ExpenseInput{Description: "x", Total: core.MustParseMoney("10")},
			want:  core.ErrInvalidInput,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.expenses.AddExpense(ctx, tt.actor, gid, tt.in)
			assert.ErrorIs(t, err, tt.want)
		})
	}

	// nothing was recorded or announced
	records, err := f.store.ListExpenses(ctx, gid)
	require.NoError(t, err)
	assert.Empty(t, records)
	assert.Empty(t, f.publisher.events)

	_, err = f.expenses.AddExpense(ctx, a, "missing", ExpenseInput{Description: "x", Total: core.MustParseMoney("1"), Policy: core.Equal{Participants: []core.UserID{a}}})
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestExpenseService_PublishFailureDoesNotFailRequest(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	a := f.signup(t, "a")
	gid := f.group(t, a)
	f.publisher.err = errBroker

	rec, err := f.expenses.AddExpense(ctx, a, gid, ExpenseInput{
		Description: "Taxi",
		Total:       core.MustParseMoney("12.50"),
		Policy:      core.Equal{Participants: []core.UserID{a}},
	})
	require.NoError(t, err)

	_, err = f.store.GetExpense(ctx, gid, rec.ID)
	assert.NoError(t, err)
}

func TestExpenseService_WithoutPublisher(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	a := f.signup(t, "a")
	gid := f.group(t, a)

	svc := NewExpenseService(f.store, nil, nil, nil)
	_, err := svc.AddExpense(ctx, a, gid, ExpenseInput{
		Description: "Solo",
		Total:       core.MustParseMoney("5"),
		Policy:      core.Equal{Participants: []core.UserID{a}},
	})
	assert.NoError(t, err)
}

type versionlessStore struct {
	*memory.Store
}

func (versionlessStore) LedgerVersion(context.Context, string) (int64, error) {
	return 0, errors.New("version unavailable")
}

func TestExpenseService_SkipsEventWithoutLedgerVersion(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	a := f.signup(t, "a")
	gid := f.group(t, a)

	svc := NewExpenseService(versionlessStore{f.store}, f.publisher, nil, nil)
	rec, err := svc.AddExpense(ctx, a, gid, ExpenseInput{
		Description: "Dinner",
		Total:       core.MustParseMoney("20"),
		Policy:      core.Equal{Participants: []core.UserID{a}},
	})
	require.NoError(t, err)
	assert.Empty(t, f.publisher.events)

	_, err = f.store.GetExpense(ctx, gid, rec.ID)
	assert.NoError(t, err)
}
