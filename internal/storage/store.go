package storage

import (
	"context"
	"errors"

	"splitsmart/internal/core"
)

var (
	ErrNotFound = errors.New("not found")
	ErrConflict = errors.New("already exists")
)

// Ledger is everything needed to fold a group's balances, read consistently.
type Ledger struct {
	Group   core.Group
	Members []core.Member
	Records []core.ExpenseRecord
	// Version increases with every recorded expense.
	Version int64
}

// MemberIDs returns the member user IDs in join order.
func (l Ledger) MemberIDs() []core.UserID {
	ids := make([]core.UserID, 0, len(l.Members))
	for _, m := range l.Members {
		ids = append(ids, m.UserID)
	}
	return ids
}

// Store is the persistence port used by the services. Members are always
// returned in join order and expenses in recording order; shares keep the
// order they were allocated in.
type Store interface {
	CreateUser(ctx context.Context, u core.User) error
	GetUser(ctx context.Context, id core.UserID) (core.User, error)
	GetUserByEmail(ctx context.Context, email string) (core.User, error)

	// CreateGroup stores the group and makes its admin the first member.
	CreateGroup(ctx context.Context, g core.Group) error
	GetGroup(ctx context.Context, id string) (core.Group, error)
	ListGroupsForUser(ctx context.Context, userID core.UserID) ([]core.Group, error)
	ListGroupIDs(ctx context.Context) ([]string, error)

	AddMember(ctx context.Context, m core.Member) error
	GetMember(ctx context.Context, groupID string, userID core.UserID) (core.Member, error)
	ListMembers(ctx context.Context, groupID string) ([]core.Member, error)
	SetMemberTags(ctx context.Context, groupID string, userID core.UserID, tags []string) error

	// CreateExpense stores the expense with its shares atomically.
	CreateExpense(ctx context.Context, rec core.ExpenseRecord) error
	GetExpense(ctx context.Context, groupID, expenseID string) (core.ExpenseRecord, error)
	ListExpenses(ctx context.Context, groupID string) ([]core.ExpenseRecord, error)

	GroupLedger(ctx context.Context, groupID string) (Ledger, error)
	LedgerVersion(ctx context.Context, groupID string) (int64, error)

	Ping(ctx context.Context) error
	Close() error
}
