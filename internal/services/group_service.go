package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"splitsmart/internal/core"
	"splitsmart/internal/log"
	"splitsmart/internal/storage"
)

type GroupDetail struct {
	Group   core.Group
	Members []core.Member
}

type AddMemberInput struct {
	Email string
	Role  core.Role
	Tags  []string
}

// GroupService manages groups and their membership.
type GroupService struct {
	store  storage.Store
	logger *log.Logger
}

func NewGroupService(store storage.Store, logger *log.Logger) *GroupService {
	if logger == nil {
		logger = log.Discard()
	}
	return &GroupService{store: store, logger: logger.WithComponent(log.ComponentGroup)}
}

// CreateGroup makes actor the admin and first member of a new group.
func (s *GroupService) CreateGroup(ctx context.Context, actor core.UserID, name string) (core.Group, error) {
	g := core.Group{ID: uuid.NewString(), Name: strings.TrimSpace(name), AdminID: actor}
	if err := g.Validate(); err != nil {
		return core.Group{}, err
	}
	if err := s.store.CreateGroup(ctx, g); err != nil {
		return core.Group{}, fmt.Errorf("create group: %w", err)
	}
	s.logger.InfoContext(ctx, "Group created",
		log.FieldGroupID, g.ID,
		log.FieldUserID, string(actor))
	return g, nil
}

func (s *GroupService) ListGroups(ctx context.Context, actor core.UserID) ([]core.Group, error) {
	return s.store.ListGroupsForUser(ctx, actor)
}

// GetGroup is visible to members only.
func (s *GroupService) GetGroup(ctx context.Context, actor core.UserID, groupID string) (GroupDetail, error) {
	if _, err := requireMember(ctx, s.store, groupID, actor); err != nil {
		return GroupDetail{}, err
	}
	g, err := s.store.GetGroup(ctx, groupID)
	if err != nil {
		return GroupDetail{}, err
	}
	members, err := s.store.ListMembers(ctx, groupID)
	if err != nil {
		return GroupDetail{}, err
	}
	return GroupDetail{Group: g, Members: members}, nil
}

// AddMember adds the user registered under in.Email. Only admins may add members.
func (s *GroupService) AddMember(ctx context.Context, actor core.UserID, groupID string, in AddMemberInput) (core.Member, error) {
	caller, err := requireMember(ctx, s.store, groupID, actor)
	if err != nil {
		return core.Member{}, err
	}
	if caller.Role != core.RoleAdmin {
		return core.Member{}, fmt.Errorf("only admins can add members: %w", ErrForbidden)
	}

	role := in.Role
	if role == "" {
		role = core.RoleMember
	}
	if !role.IsValid() {
		return core.Member{}, &core.InvalidInputError{Reason: "invalid role: " + string(role)}
	}

	u, err := s.store.GetUserByEmail(ctx, normalizeEmail(in.Email))
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return core.Member{}, fmt.Errorf("no user registered as %s: %w", in.Email, storage.ErrNotFound)
		}
		return core.Member{}, err
	}

	m := core.Member{GroupID: groupID, UserID: u.ID, Name: u.Name, Role: role, Tags: core.NormalizeTags(in.Tags)}
	if err := s.store.AddMember(ctx, m); err != nil {
		return core.Member{}, fmt.Errorf("add member: %w", err)
	}
	s.logger.InfoContext(ctx, "Member added",
		log.FieldGroupID, groupID,
		log.FieldUserID, string(u.ID))
	return m, nil
}

// SetMemberTags replaces a member's preference tags. Members may edit their
// own tags; admins may edit anyone's.
func (s *GroupService) SetMemberTags(ctx context.Context, actor core.UserID, groupID string, target core.UserID, tags []string) (core.Member, error) {
	caller, err := requireMember(ctx, s.store, groupID, actor)
	if err != nil {
		return core.Member{}, err
	}
	if actor != target && caller.Role != core.RoleAdmin {
		return core.Member{}, fmt.Errorf("only admins can edit other members: %w", ErrForbidden)
	}

	normalized := core.NormalizeTags(tags)
	if err := s.store.SetMemberTags(ctx, groupID, target, normalized); err != nil {
		return core.Member{}, err
	}
	return s.store.GetMember(ctx, groupID, target)
}
