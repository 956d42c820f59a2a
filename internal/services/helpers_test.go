package services

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"splitsmart/internal/auth"
	"splitsmart/internal/cache"
	"splitsmart/internal/core"
	"splitsmart/internal/storage/memory"
)

type published struct {
	GroupID   string
	ExpenseID string
	Version   int64
}

type fakePublisher struct {
	mu     sync.Mutex
	events []published
	err    error
}

func (p *fakePublisher) PublishExpenseRecorded(_ context.Context, groupID, expenseID string, version int64) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	p.events = append(p.events, published{groupID, expenseID, version})
	return nil
}

type fixture struct {
	store       *memory.Store
	accounts    *AccountService
	groups      *GroupService
	expenses    *ExpenseService
	settlements *SettlementService
	publisher   *fakePublisher
	plans       *cache.LRUCache[Plan]
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	store := memory.New()
	plans := cache.NewLRUCache[Plan](16, time.Minute)
	pub := &fakePublisher{}
	settlements := NewSettlementService(store, plans, nil)
	return &fixture{
		store:       store,
		accounts:    NewAccountService(store, auth.NewTokenIssuer("0123456789abcdef", time.Hour), nil),
		groups:      NewGroupService(store, nil),
		expenses:    NewExpenseService(store, pub, settlements, nil),
		settlements: settlements,
		publisher:   pub,
		plans:       plans,
	}
}

// signup registers name as name@example.com and returns the user ID.
func (f *fixture) signup(t *testing.T, name string) core.UserID {
	t.Helper()
	u, err := f.accounts.Signup(context.Background(), SignupInput{
		Email:    name + "@example.com",
		Name:     name,
		Password: "password-" + name,
	})
	require.NoError(t, err)
	return u.ID
}

type joiner struct {
	name string
	tags []string
}

// group creates a group administered by admin and adds the joiners in order.
func (f *fixture) group(t *testing.T, admin core.UserID, joiners ...joiner) string {
	t.Helper()
	ctx := context.Background()
	g, err := f.groups.CreateGroup(ctx, admin, "Trip")
	require.NoError(t, err)
	for _, j := range joiners {
		_, err := f.groups.AddMember(ctx, admin, g.ID, AddMemberInput{Email: j.name + "@example.com", Tags: j.tags})
		require.NoError(t, err)
	}
	return g.ID
}

var errBroker = errors.New("broker down")
