// Package memory is an in-process storage.Store used by tests and the
// "memory" data backend.
package memory

import (
	"context"
	"fmt"
	"sync"

	"splitsmart/internal/core"
	"splitsmart/internal/storage"
)

type groupState struct {
	group   core.Group
	members []core.Member
	records []core.ExpenseRecord
	version int64
}

type Store struct {
	mu      sync.RWMutex
	users   map[core.UserID]core.User
	byEmail map[string]core.UserID
	groups  map[string]*groupState
	order   []string
}

var _ storage.Store = (*Store)(nil)

func New() *Store {
	return &Store{
		users:   make(map[core.UserID]core.User),
		byEmail: make(map[string]core.UserID),
		groups:  make(map[string]*groupState),
	}
}

func (s *Store) CreateUser(_ context.Context, u core.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.users[u.ID]; ok {
		return fmt.Errorf("create user: %w", storage.ErrConflict)
	}
	if _, ok := s.byEmail[u.Email]; ok {
		return fmt.Errorf("create user: %w", storage.ErrConflict)
	}
	s.users[u.ID] = u
	s.byEmail[u.Email] = u.ID
	return nil
}

func (s *Store) GetUser(_ context.Context, id core.UserID) (core.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	u, ok := s.users[id]
	if !ok {
		return core.User{}, fmt.Errorf("get user: %w", storage.ErrNotFound)
	}
	return u, nil
}

func (s *Store) GetUserByEmail(_ context.Context, email string) (core.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := s.byEmail[email]
	if !ok {
		return core.User{}, fmt.Errorf("get user: %w", storage.ErrNotFound)
	}
	return s.users[id], nil
}

func (s *Store) CreateGroup(_ context.Context, g core.Group) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.groups[g.ID]; ok {
		return fmt.Errorf("create group: %w", storage.ErrConflict)
	}
	admin, ok := s.users[g.AdminID]
	if !ok {
		return fmt.Errorf("create group: admin: %w", storage.ErrNotFound)
	}
	s.groups[g.ID] = &groupState{
		group: g,
		members: []core.Member{{
			GroupID: g.ID,
			UserID:  g.AdminID,
			Name:    admin.Name,
			Role:    core.RoleAdmin,
			Tags:    []string{},
		}},
	}
	s.order = append(s.order, g.ID)
	return nil
}

func (s *Store) GetGroup(_ context.Context, id string) (core.Group, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	st, ok := s.groups[id]
	if !ok {
		return core.Group{}, fmt.Errorf("get group: %w", storage.ErrNotFound)
	}
	return st.group, nil
}

func (s *Store) ListGroupsForUser(_ context.Context, userID core.UserID) ([]core.Group, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []core.Group
	for _, id := range s.order {
		st := s.groups[id]
		if st.memberIndex(userID) >= 0 {
			out = append(out, st.group)
		}
	}
	return out, nil
}

func (s *Store) ListGroupIDs(_ context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]string(nil), s.order...), nil
}

func (s *Store) AddMember(_ context.Context, m core.Member) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	st, ok := s.groups[m.GroupID]
	if !ok {
		return fmt.Errorf("add member: group: %w", storage.ErrNotFound)
	}
	u, ok := s.users[m.UserID]
	if !ok {
		return fmt.Errorf("add member: user: %w", storage.ErrNotFound)
	}
	if st.memberIndex(m.UserID) >= 0 {
		return fmt.Errorf("add member: %w", storage.ErrConflict)
	}
	m.Name = u.Name
	m.Tags = cloneTags(m.Tags)
	st.members = append(st.members, m)
	return nil
}

func (s *Store) GetMember(_ context.Context, groupID string, userID core.UserID) (core.Member, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	st, ok := s.groups[groupID]
	if !ok {
		return core.Member{}, fmt.Errorf("get member: %w", storage.ErrNotFound)
	}
	i := st.memberIndex(userID)
	if i < 0 {
		return core.Member{}, fmt.Errorf("get member: %w", storage.ErrNotFound)
	}
	return cloneMember(st.members[i]), nil
}

func (s *Store) ListMembers(_ context.Context, groupID string) ([]core.Member, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	st, ok := s.groups[groupID]
	if !ok {
		return nil, nil
	}
	return st.cloneMembers(), nil
}

func (s *Store) SetMemberTags(_ context.Context, groupID string, userID core.UserID, tags []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	st, ok := s.groups[groupID]
	if !ok {
		return fmt.Errorf("set member tags: %w", storage.ErrNotFound)
	}
	i := st.memberIndex(userID)
	if i < 0 {
		return fmt.Errorf("set member tags: %w", storage.ErrNotFound)
	}
	st.members[i].Tags = cloneTags(tags)
	return nil
}

func (s *Store) CreateExpense(_ context.Context, rec core.ExpenseRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	st, ok := s.groups[rec.GroupID]
	if !ok {
		return fmt.Errorf("create expense: group: %w", storage.ErrNotFound)
	}
	for _, r := range st.records {
		if r.ID == rec.ID {
			return fmt.Errorf("create expense: %w", storage.ErrConflict)
		}
	}
	st.records = append(st.records, cloneRecord(rec))
	st.version++
	return nil
}

func (s *Store) GetExpense(_ context.Context, groupID, expenseID string) (core.ExpenseRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if st, ok := s.groups[groupID]; ok {
		for _, r := range st.records {
			if r.ID == expenseID {
				return cloneRecord(r), nil
			}
		}
	}
	return core.ExpenseRecord{}, fmt.Errorf("get expense %s: %w", expenseID, storage.ErrNotFound)
}

func (s *Store) ListExpenses(_ context.Context, groupID string) ([]core.ExpenseRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	st, ok := s.groups[groupID]
	if !ok {
		return nil, nil
	}
	return st.cloneRecords(), nil
}

func (s *Store) GroupLedger(_ context.Context, groupID string) (storage.Ledger, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	st, ok := s.groups[groupID]
	if !ok {
		return storage.Ledger{}, fmt.Errorf("get group: %w", storage.ErrNotFound)
	}
	return storage.Ledger{
		Group:   st.group,
		Members: st.cloneMembers(),
		Records: st.cloneRecords(),
		Version: st.version,
	}, nil
}

func (s *Store) LedgerVersion(_ context.Context, groupID string) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	st, ok := s.groups[groupID]
	if !ok {
		return 0, fmt.Errorf("get ledger version: %w", storage.ErrNotFound)
	}
	return st.version, nil
}

func (s *Store) Ping(context.Context) error { return nil }

func (s *Store) Close() error { return nil }

func (st *groupState) memberIndex(userID core.UserID) int {
	for i, m := range st.members {
		if m.UserID == userID {
			return i
		}
	}
	return -1
}

func (st *groupState) cloneMembers() []core.Member {
	out := make([]core.Member, len(st.members))
	for i, m := range st.members {
		out[i] = cloneMember(m)
	}
	return out
}

func (st *groupState) cloneRecords() []core.ExpenseRecord {
	out := make([]core.ExpenseRecord, len(st.records))
	for i, r := range st.records {
		out[i] = cloneRecord(r)
	}
	return out
}

func cloneMember(m core.Member) core.Member {
	m.Tags = cloneTags(m.Tags)
	return m
}

func cloneRecord(r core.ExpenseRecord) core.ExpenseRecord {
	r.PreferenceTags = cloneTags(r.PreferenceTags)
	r.Shares = append([]core.ExpenseShare(nil), r.Shares...)
	return r
}

func cloneTags(tags []string) []string {
	if tags == nil {
		return []string{}
	}
	return append([]string{}, tags...)
}
