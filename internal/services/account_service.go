package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"splitsmart/internal/auth"
	"splitsmart/internal/core"
	"splitsmart/internal/log"
	"splitsmart/internal/storage"
)

type SignupInput struct {
	Email    string
	Name     string
	Password string
}

// AccountService registers users and logs them in.
type AccountService struct {
	store  storage.Store
	tokens *auth.TokenIssuer
	logger *log.Logger
}

func NewAccountService(store storage.Store, tokens *auth.TokenIssuer, logger *log.Logger) *AccountService {
	if logger == nil {
		logger = log.Discard()
	}
	return &AccountService{
		store:  store,
		tokens: tokens,
		logger: logger.WithComponent(log.ComponentAuth),
	}
}

// Signup creates a user. A duplicate email yields storage.ErrConflict.
func (s *AccountService) Signup(ctx context.Context, in SignupInput) (core.User, error) {
	u := core.User{
		ID:    core.UserID(uuid.NewString()),
		Email: normalizeEmail(in.Email),
		Name:  strings.TrimSpace(in.Name),
	}
	if err := u.Validate(); err != nil {
		return core.User{}, err
	}
	if len(in.Password) < minPasswordLen {
		return core.User{}, ErrPasswordTooShort
	}

	hash, err := auth.HashPassword(in.Password)
	if err != nil {
		return core.User{}, err
	}
	u.PasswordHash = hash

	if err := s.store.CreateUser(ctx, u); err != nil {
		return core.User{}, fmt.Errorf("signup %s: %w", u.Email, err)
	}

	s.logger.InfoContext(ctx, "User signed up",
		log.FieldUserID, string(u.ID),
		log.FieldOperation, log.OpSignup)
	return u, nil
}

// Login checks the password and returns a bearer token.
func (s *AccountService) Login(ctx context.Context, email, password string) (string, core.User, error) {
	u, err := s.store.GetUserByEmail(ctx, normalizeEmail(email))
	if errors.Is(err, storage.ErrNotFound) {
		return "", core.User{}, auth.ErrInvalidCredentials
	}
	if err != nil {
		return "", core.User{}, err
	}
	if err := auth.CheckPassword(u.PasswordHash, password); err != nil {
		s.logger.WarnContext(ctx, "Rejected login",
			log.FieldUserID, string(u.ID),
			log.FieldOperation, log.OpLogin)
		return "", core.User{}, err
	}

	token, err := s.tokens.Issue(u)
	if err != nil {
		return "", core.User{}, err
	}
	return token, u, nil
}

// Authenticate verifies a bearer token.
func (s *AccountService) Authenticate(token string) (*auth.Claims, error) {
	return s.tokens.Parse(token)
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
