// Package services holds the use cases behind the API and the worker.
// Access checks live here; the core package stays free of I/O.
package services

import (
	"context"
	"errors"
	"fmt"

	"splitsmart/internal/core"
	"splitsmart/internal/storage"
)

var (
	ErrForbidden        = errors.New("access denied")
	ErrPasswordTooShort = errors.New("password must be at least 8 characters")
)

const minPasswordLen = 8

// EventPublisher announces ledger changes to other processes.
type EventPublisher interface {
	PublishExpenseRecorded(ctx context.Context, groupID, expenseID string, ledgerVersion int64) error
}

// requireMember returns the caller's membership or ErrForbidden. A missing
// group is reported as not found.
func requireMember(ctx context.Context, store storage.Store, groupID string, userID core.UserID) (core.Member, error) {
	m, err := store.GetMember(ctx, groupID, userID)
	if err == nil {
		return m, nil
	}
	if !errors.Is(err, storage.ErrNotFound) {
		return core.Member{}, err
	}
	if _, gerr := store.GetGroup(ctx, groupID); gerr != nil {
		return core.Member{}, gerr
	}
	return core.Member{}, fmt.Errorf("group %s: %w", groupID, ErrForbidden)
}
