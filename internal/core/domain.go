package core

import (
	"errors"
	"strings"
	"time"
)

const (
	RoleAdmin  Role = "admin"
	RoleMember Role = "member"
)

const maxDescriptionLen = 200

type (
	// UserID identifies a person across groups, shares and balances.
	UserID string

	Role string

	User struct {
		ID           UserID
		Email        string
		Name         string
		PasswordHash string
	}

	Group struct {
		ID      string
		Name    string
		AdminID UserID
	}

	Member struct {
		GroupID string
		UserID  UserID
		Name    string
		Role    Role
		Tags    []string // Preference tags this member satisfies
	}

	Expense struct {
		ID             string
		GroupID        string
		PayerID        UserID
		Description    string
		Total          Money
		Policy         PolicyKind
		PreferenceTags []string
		CreatedAt      time.Time
	}

	ExpenseShare struct {
		ExpenseID string
		UserID    UserID
		Amount    Money
	}

	// ExpenseRecord is an expense together with its persisted shares.
	ExpenseRecord struct {
		Expense
		Shares []ExpenseShare
	}
)

var (
	ErrInvalidAmount    = errors.New("invalid amount")
	ErrEmptyDescription = errors.New("empty description")
	ErrEmptyName        = errors.New("empty name")
	ErrInvalidEmail     = errors.New("invalid email")
	ErrMissingPayer     = errors.New("missing payer")

	ErrNameTooLong        = errors.New("group name too long (max 100 characters)")
	ErrDescriptionTooLong = errors.New("description too long (max 200 characters)")
)

func (u User) Validate() error {
	if !strings.Contains(u.Email, "@") {
		return ErrInvalidEmail
	}
	if strings.TrimSpace(u.Name) == "" {
		return ErrEmptyName
	}
	return nil
}

func (g Group) Validate() error {
	if strings.TrimSpace(g.Name) == "" {
		return ErrEmptyName
	}
	if len(g.Name) > 100 {
		return ErrNameTooLong
	}
	return nil
}

func (e Expense) Validate() error {
	if len(strings.TrimSpace(e.Description)) == 0 {
		return ErrEmptyDescription
	}
	if len(e.Description) > maxDescriptionLen {
		return ErrDescriptionTooLong
	}
	if err := e.Total.Validate(); err != nil {
		return err
	}
	if e.PayerID == "" {
		return ErrMissingPayer
	}
	if !e.Policy.IsValid() {
		return invalidInput("invalid split type: %s", e.Policy)
	}
	return nil
}

// IsValid reports whether r is a known membership role.
func (r Role) IsValid() bool {
	return r == RoleAdmin || r == RoleMember
}

// NormalizeTags trims, lowercases and deduplicates tags, keeping first-seen order.
func NormalizeTags(tags []string) []string {
	seen := make(map[string]struct{}, len(tags))
	out := make([]string, 0, len(tags))
	for _, t := range tags {
		t = strings.ToLower(strings.TrimSpace(t))
		if t == "" {
			continue
		}
		if _, ok := seen[t]; ok {
			continue
		}
		seen[t] = struct{}{}
		out = append(out, t)
	}
	return out
}
