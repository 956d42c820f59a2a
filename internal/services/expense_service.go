package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"splitsmart/internal/core"
	"splitsmart/internal/log"
	"splitsmart/internal/storage"
)

type ExpenseInput struct {
	// PayerID defaults to the caller.
	PayerID     core.UserID
	Description string
	Total       core.Money
	Policy      core.SplitPolicy
}

// PlanInvalidator drops cached settlement plans of a group.
type PlanInvalidator interface {
	Invalidate(ctx context.Context, groupID string)
}

// ExpenseService allocates and records expenses, then tells the rest of
// the system the group's ledger changed.
type ExpenseService struct {
	store     storage.Store
	publisher EventPublisher
	plans     PlanInvalidator
	logger    *log.Logger
	slog      *log.StructuredLogger
	now       func() time.Time
}

// NewExpenseService wires the service. publisher and plans may be nil.
func NewExpenseService(store storage.Store, publisher EventPublisher, plans PlanInvalidator, logger *log.Logger) *ExpenseService {
	if logger == nil {
		logger = log.Discard()
	}
	logger = logger.WithComponent(log.ComponentExpense)
	return &ExpenseService{
		store:     store,
		publisher: publisher,
		plans:     plans,
		logger:    logger,
		slog:      log.NewStructuredLogger(logger),
		now:       time.Now,
	}
}

// AddExpense records an expense paid by a group member and split by in.Policy.
// The ledger is only touched when the allocation succeeds.
func (s *ExpenseService) AddExpense(ctx context.Context, actor core.UserID, groupID string, in ExpenseInput) (core.ExpenseRecord, error) {
	if _, err := requireMember(ctx, s.store, groupID, actor); err != nil {
		return core.ExpenseRecord{}, err
	}

	payer := in.PayerID
	if payer == "" {
		payer = actor
	}
	if in.Policy == nil {
		return core.ExpenseRecord{}, &core.InvalidInputError{Reason: "missing split policy"}
	}

	e := core.Expense{
		ID:             uuid.NewString(),
		GroupID:        groupID,
		PayerID:        payer,
		Description:    strings.TrimSpace(in.Description),
		Total:          in.Total.Round(),
		Policy:         in.Policy.Kind(),
		PreferenceTags: core.PolicyTags(in.Policy),
		CreatedAt:      s.now().UTC(),
	}
	if err := e.Validate(); err != nil {
		return core.ExpenseRecord{}, err
	}

	members, err := s.store.ListMembers(ctx, groupID)
	if err != nil {
		return core.ExpenseRecord{}, err
	}
	if err := checkMembership(members, append([]core.UserID{payer}, core.PolicyUsers(in.Policy)...)); err != nil {
		return core.ExpenseRecord{}, err
	}

	shares, err := core.Allocate(e.Total, in.Policy, core.RosterFromMembers(members))
	if err != nil {
		s.logger.DebugContext(ctx, "Allocation rejected",
			log.FieldGroupID, groupID,
			log.FieldPolicy, e.Policy.String(),
			log.FieldError, err)
		return core.ExpenseRecord{}, err
	}

	rec := core.ExpenseRecord{Expense: e, Shares: core.SharesFor(e.ID, shares)}
	if err := s.store.CreateExpense(ctx, rec); err != nil {
		return core.ExpenseRecord{}, fmt.Errorf("save expense: %w", err)
	}

	s.slog.LogExpenseCreated(ctx, groupID, e.ID, e.Description, e.Total.String(), e.Policy.String(), len(rec.Shares))

	if s.plans != nil {
		s.plans.Invalidate(ctx, groupID)
	}
	s.publish(ctx, rec)

	return rec, nil
}

// publish never fails the request: the expense is already stored and the
// worker's periodic refresh catches up on missed events.
func (s *ExpenseService) publish(ctx context.Context, rec core.ExpenseRecord) {
	if s.publisher == nil {
		return
	}
	version, err := s.store.LedgerVersion(ctx, rec.GroupID)
	if err != nil {
		s.logger.WarnContext(ctx, "Skipping expense event, ledger version unavailable",
			log.FieldGroupID, rec.GroupID,
			log.FieldExpenseID, rec.ID,
			log.FieldError, err)
		return
	}
	if err := s.publisher.PublishExpenseRecorded(ctx, rec.GroupID, rec.ID, version); err != nil {
		s.logger.ErrorContext(ctx, "Failed to publish expense event",
			log.FieldGroupID, rec.GroupID,
			log.FieldExpenseID, rec.ID,
			log.FieldOperation, log.OpPublish,
			log.FieldError, err)
	}
}

// ListExpenses returns the group's expenses in recording order.
func (s *ExpenseService) ListExpenses(ctx context.Context, actor core.UserID, groupID string) ([]core.ExpenseRecord, error) {
	if _, err := requireMember(ctx, s.store, groupID, actor); err != nil {
		return nil, err
	}
	return s.store.ListExpenses(ctx, groupID)
}

func (s *ExpenseService) GetExpense(ctx context.Context, actor core.UserID, groupID, expenseID string) (core.ExpenseRecord, error) {
	if _, err := requireMember(ctx, s.store, groupID, actor); err != nil {
		return core.ExpenseRecord{}, err
	}
	return s.store.GetExpense(ctx, groupID, expenseID)
}

func checkMembership(members []core.Member, users []core.UserID) error {
	set := make(map[core.UserID]struct{}, len(members))
	for _, m := range members {
		set[m.UserID] = struct{}{}
	}
	for _, u := range users {
		if _, ok := set[u]; !ok {
			return &core.InvalidInputError{Reason: fmt.Sprintf("user %s is not a member of this group", u)}
		}
	}
	return nil
}
