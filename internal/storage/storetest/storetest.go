// Package storetest holds the behaviour every storage.Store must share.
package storetest

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"splitsmart/internal/core"
	"splitsmart/internal/storage"
)

// Run exercises newStore against the Store contract.
func Run(t *testing.T, newStore func(t *testing.T) storage.Store) {
	t.Run("users", func(t *testing.T) { testUsers(t, newStore(t)) })
	t.Run("groups and members", func(t *testing.T) { testGroups(t, newStore(t)) })
	t.Run("expenses and ledger", func(t *testing.T) { testExpenses(t, newStore(t)) })
}

func seedUsers(t *testing.T, s storage.Store, ids ...core.UserID) {
	t.Helper()
	for _, id := range ids {
		require.NoError(t, s.CreateUser(context.Background(), core.User{
			ID:           id,
			Email:        string(id) + "@example.com",
			Name:         "User " + string(id),
			PasswordHash: "hash",
		}))
	}
}

func testUsers(t *testing.T, s storage.Store) {
	ctx := context.Background()
	seedUsers(t, s, "alice")

	u, err := s.GetUser(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, "alice@example.com", u.Email)

	byEmail, err := s.GetUserByEmail(ctx, "alice@example.com")
	require.NoError(t, err)
	assert.Equal(t, core.UserID("alice"), byEmail.ID)

	err = s.CreateUser(ctx, core.User{ID: "alice2", Email: "alice@example.com", Name: "dup", PasswordHash: "x"})
	assert.ErrorIs(t, err, storage.ErrConflict)

	_, err = s.GetUser(ctx, "nobody")
	assert.ErrorIs(t, err, storage.ErrNotFound)
	_, err = s.GetUserByEmail(ctx, "nobody@example.com")
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func testGroups(t *testing.T, s storage.Store) {
	ctx := context.Background()
	seedUsers(t, s, "alice", "bob", "carol")

	require.NoError(t, s.CreateGroup(ctx, core.Group{ID: "g1", Name: "Trip", AdminID: "alice"}))
	require.NoError(t, s.CreateGroup(ctx, core.Group{ID: "g2", Name: "Flat", AdminID: "bob"}))

	g, err := s.GetGroup(ctx, "g1")
	require.NoError(t, err)
	assert.Equal(t, core.UserID("alice"), g.AdminID)

	_, err = s.GetGroup(ctx, "missing")
	assert.ErrorIs(t, err, storage.ErrNotFound)

	admin, err := s.GetMember(ctx, "g1", "alice")
	require.NoError(t, err)
	assert.Equal(t, core.RoleAdmin, admin.Role)
	assert.Equal(t, "User alice", admin.Name)

	require.NoError(t, s.AddMember(ctx, core.Member{GroupID: "g1", UserID: "carol", Role: core.RoleMember, Tags: []string{"veg"}}))
	require.NoError(t, s.AddMember(ctx, core.Member{GroupID: "g1", UserID: "bob", Role: core.RoleMember}))

	err = s.AddMember(ctx, core.Member{GroupID: "g1", UserID: "bob", Role: core.RoleMember})
	assert.ErrorIs(t, err, storage.ErrConflict)

	members, err := s.ListMembers(ctx, "g1")
	require.NoError(t, err)
	require.Len(t, members, 3)
	// join order
	assert.Equal(t, core.UserID("alice"), members[0].UserID)
	assert.Equal(t, core.UserID("carol"), members[1].UserID)
	assert.Equal(t, []string{"veg"}, members[1].Tags)
	assert.Equal(t, core.UserID("bob"), members[2].UserID)

	require.NoError(t, s.SetMemberTags(ctx, "g1", "bob", []string{"drinker", "non-veg"}))
	bob, err := s.GetMember(ctx, "g1", "bob")
	require.NoError(t, err)
	assert.Equal(t, []string{"drinker", "non-veg"}, bob.Tags)

	err = s.SetMemberTags(ctx, "g2", "carol", []string{"veg"})
	assert.ErrorIs(t, err, storage.ErrNotFound)

	_, err = s.GetMember(ctx, "g2", "alice")
	assert.ErrorIs(t, err, storage.ErrNotFound)

	groups, err := s.ListGroupsForUser(ctx, "bob")
	require.NoError(t, err)
	assert.Len(t, groups, 2)

	groups, err = s.ListGroupsForUser(ctx, "carol")
	require.NoError(t, err)
	require.Len(t, groups, 1)
	assert.Equal(t, "g1", groups[0].ID)

	ids, err := s.ListGroupIDs(ctx)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"g1", "g2"}, ids)
}

func testExpenses(t *testing.T, s storage.Store) {
	ctx := context.Background()
	seedUsers(t, s, "alice", "bob", "carol")
	require.NoError(t, s.CreateGroup(ctx, core.Group{ID: "g1", Name: "Trip", AdminID: "alice"}))
	require.NoError(t, s.AddMember(ctx, core.Member{GroupID: "g1", UserID: "bob", Role: core.RoleMember}))
	require.NoError(t, s.AddMember(ctx, core.Member{GroupID: "g1", UserID: "carol", Role: core.RoleMember}))

	v, err := s.LedgerVersion(ctx, "g1")
	require.NoError(t, err)
	assert.Equal(t, int64(0), v)

	created := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	rec := core.ExpenseRecord{
		Expense: core.Expense{
			ID:          "e1",
			GroupID:     "g1",
			PayerID:     "alice",
			Description: "Dinner",
			Total:       core.MustParseMoney("100"),
			Policy:      core.PolicyEqual,
			CreatedAt:   created,
		},
		Shares: []core.ExpenseShare{
			{ExpenseID: "e1", UserID: "carol", Amount: core.MustParseMoney("33.33")},
			{ExpenseID: "e1", UserID: "alice", Amount: core.MustParseMoney("33.33")},
			{ExpenseID: "e1", UserID: "bob", Amount: core.MustParseMoney("33.34")},
		},
	}
	require.NoError(t, s.CreateExpense(ctx, rec))

	second := core.ExpenseRecord{
		Expense: core.Expense{
			ID:             "e2",
			GroupID:        "g1",
			PayerID:        "bob",
			Description:    "Wine",
			Total:          core.MustParseMoney("10.005"),
			Policy:         core.PolicyPreference,
			PreferenceTags: []string{"drinker"},
			CreatedAt:      created.Add(time.Hour),
		},
		Shares: []core.ExpenseShare{
			{ExpenseID: "e2", UserID: "bob", Amount: core.MustParseMoney("10.005")},
		},
	}
	require.NoError(t, s.CreateExpense(ctx, second))

	assert.ErrorIs(t, s.CreateExpense(ctx, rec), storage.ErrConflict)

	got, err := s.GetExpense(ctx, "g1", "e1")
	require.NoError(t, err)
	assert.Equal(t, "Dinner", got.Description)
	assert.True(t, got.CreatedAt.Equal(created))
	require.Len(t, got.Shares, 3)
	// allocation order is preserved
	assert.Equal(t, core.UserID("carol"), got.Shares[0].UserID)
	assert.Equal(t, "33.34", got.Shares[2].Amount.String())

	_, err = s.GetExpense(ctx, "g1", "nope")
	assert.ErrorIs(t, err, storage.ErrNotFound)

	records, err := s.ListExpenses(ctx, "g1")
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, "e1", records[0].ID)
	assert.Equal(t, []string{"drinker"}, records[1].PreferenceTags)
	// amounts are stored exactly
	assert.Equal(t, "10.005", records[1].Total.Exact())

	ledger, err := s.GroupLedger(ctx, "g1")
	require.NoError(t, err)
	assert.Equal(t, int64(2), ledger.Version)
	assert.Equal(t, []core.UserID{"alice", "bob", "carol"}, ledger.MemberIDs())
	assert.Len(t, ledger.Records, 2)

	_, err = s.GroupLedger(ctx, "missing")
	assert.ErrorIs(t, err, storage.ErrNotFound)
}
