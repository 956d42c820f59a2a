package services

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"splitsmart/internal/cache"
	"splitsmart/internal/core"
	"splitsmart/internal/log"
	"splitsmart/internal/storage"
)

// Plan is a settlement plan for one version of a group's ledger.
type Plan struct {
	GroupID       string             `json:"group_id"`
	LedgerVersion int64              `json:"ledger_version"`
	Transactions  []core.Transaction `json:"transactions"`
	ComputedAt    time.Time          `json:"computed_at"`
}

const overviewConcurrency = 4

// SettlementService derives balances and settlement plans from the ledger.
// Plans are cached per group and tagged with the ledger version they were
// computed from, so a stale entry is never served.
type SettlementService struct {
	store  storage.Store
	plans  cache.Cache[Plan]
	logger *log.Logger
	slog   *log.StructuredLogger
	now    func() time.Time
}

// NewSettlementService wires the service. plans may be nil to disable caching.
func NewSettlementService(store storage.Store, plans cache.Cache[Plan], logger *log.Logger) *SettlementService {
	if logger == nil {
		logger = log.Discard()
	}
	logger = logger.WithComponent(log.ComponentSettlement)
	return &SettlementService{
		store:  store,
		plans:  plans,
		logger: logger,
		slog:   log.NewStructuredLogger(logger),
		now:    time.Now,
	}
}

// Balances returns every member's net position rounded to cents.
func (s *SettlementService) Balances(ctx context.Context, actor core.UserID, groupID string) (core.GroupSummary, error) {
	if _, err := requireMember(ctx, s.store, groupID, actor); err != nil {
		return core.GroupSummary{}, err
	}
	return s.summary(ctx, groupID)
}

func (s *SettlementService) summary(ctx context.Context, groupID string) (core.GroupSummary, error) {
	ledger, err := s.store.GroupLedger(ctx, groupID)
	if err != nil {
		return core.GroupSummary{}, err
	}
	b := core.FoldBalances(ledger.MemberIDs(), ledger.Records)
	return core.Summarize(groupID, b, ledger.Records), nil
}

// Overview summarizes every group the actor belongs to.
func (s *SettlementService) Overview(ctx context.Context, actor core.UserID) ([]core.GroupSummary, error) {
	groups, err := s.store.ListGroupsForUser(ctx, actor)
	if err != nil {
		return nil, err
	}

	summaries := make([]core.GroupSummary, len(groups))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(overviewConcurrency)
	for i, grp := range groups {
		i, grp := i, grp
		g.Go(func() error {
			sum, err := s.summary(gctx, grp.ID)
			if err != nil {
				return fmt.Errorf("summarize group %s: %w", grp.ID, err)
			}
			summaries[i] = sum
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return summaries, nil
}

// Simplify returns the settlement plan of a group the actor belongs to.
func (s *SettlementService) Simplify(ctx context.Context, actor core.UserID, groupID string) (Plan, error) {
	if _, err := requireMember(ctx, s.store, groupID, actor); err != nil {
		return Plan{}, err
	}
	return s.Plan(ctx, groupID)
}

// Plan returns the cached plan when it matches the current ledger version,
// recomputing it otherwise.
func (s *SettlementService) Plan(ctx context.Context, groupID string) (Plan, error) {
	if s.plans != nil {
		version, err := s.store.LedgerVersion(ctx, groupID)
		if err != nil {
			return Plan{}, err
		}
		if p, ok := s.plans.Get(ctx, planKey(groupID)); ok && p.LedgerVersion == version {
			s.slog.LogSettlementComputed(ctx, groupID, len(p.Transactions), true)
			return p, nil
		}
	}
	return s.Refresh(ctx, groupID)
}

// Refresh recomputes the plan from the ledger and stores it in the cache.
func (s *SettlementService) Refresh(ctx context.Context, groupID string) (Plan, error) {
	ledger, err := s.store.GroupLedger(ctx, groupID)
	if err != nil {
		return Plan{}, err
	}

	b := core.FoldBalances(ledger.MemberIDs(), ledger.Records)
	if err := b.Imbalance(); err != nil {
		s.logger.ErrorContext(ctx, "Ledger does not balance",
			log.FieldGroupID, groupID,
			log.FieldError, err)
		return Plan{}, fmt.Errorf("group %s: %w", groupID, err)
	}

	txs := core.Simplify(b)
	if txs == nil {
		txs = []core.Transaction{}
	}
	p := Plan{
		GroupID:       groupID,
		LedgerVersion: ledger.Version,
		Transactions:  txs,
		ComputedAt:    s.now().UTC(),
	}
	if s.plans != nil {
		s.plans.Set(ctx, planKey(groupID), p)
	}
	s.slog.LogSettlementComputed(ctx, groupID, len(txs), false)
	return p, nil
}

// Invalidate drops the cached plan of groupID.
func (s *SettlementService) Invalidate(ctx context.Context, groupID string) {
	if s.plans != nil {
		s.plans.Delete(ctx, planKey(groupID))
	}
}

func planKey(groupID string) string {
	return "plan:" + groupID
}
