package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"splitsmart/internal/auth"
	"splitsmart/internal/core"
	"splitsmart/internal/storage"
)

func TestAccountService_Signup(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	u, err := f.accounts.Signup(ctx, SignupInput{Email: " Alice@Example.com ", Name: "Alice", Password: "correct horse"})
	require.NoError(t, err)
	assert.Equal(t, "alice@example.com", u.Email)
	assert.NotEmpty(t, u.ID)
	assert.NotEqual(t, "correct horse", u.PasswordHash)

	_, err = f.accounts.Signup(ctx, SignupInput{Email: "alice@example.com", Name: "Again", Password: "correct horse"})
	assert.ErrorIs(t, err, storage.ErrConflict)

	tests := []struct {
		name string
		in   SignupInput
		want error
	}{
		{"bad email", SignupInput{Email: "nope", Name: "X", Password: "longenough"}, core.ErrInvalidEmail},
		{"empty name", SignupInput{Email: "x@example.com", Name: " ", Password: "longenough"}, core.ErrEmptyName},
		{"short password", SignupInput{Email: "x@example.com", Name: "X", Password: "short"}, ErrPasswordTooShort},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.accounts.Signup(ctx, tt.in)
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestAccountService_Login(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	id := f.signup(t, "bob")

	token, u, err := f.accounts.Login(ctx, "BOB@example.com", "password-bob")
	require.NoError(t, err)
	assert.Equal(t, id, u.ID)

	claims, err := f.accounts.Authenticate(token)
	require.NoError(t, err)
	assert.Equal(t, id, claims.UserID)

	_, _, err = f.accounts.Login(ctx, "bob@example.com", "wrong")
	assert.ErrorIs(t, err, auth.ErrInvalidCredentials)

	_, _, err = f.accounts.Login(ctx, "ghost@example.com", "whatever")
	assert.ErrorIs(t, err, auth.ErrInvalidCredentials)
}
