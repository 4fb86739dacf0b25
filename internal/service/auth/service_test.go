package auth

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/jwalitptl/lab-cases/internal/config"
	"github.com/jwalitptl/lab-cases/internal/model"
	"github.com/jwalitptl/lab-cases/pkg/auth"
	apperrors "github.com/jwalitptl/lab-cases/pkg/errors"
	"github.com/jwalitptl/lab-cases/pkg/security"
)

func newTestService(t *testing.T) *Service {
	t.Helper()
	hasher := security.NewBcryptHasher(bcrypt.MinCost)
	users, err := UsersFromConfig(DemoUsers(), hasher)
	require.NoError(t, err)
	return NewService(users, hasher, auth.NewJWTService("test-secret", "lab-cases", time.Hour))
}

func TestSignInAndSession(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	session, err := svc.SignIn(ctx, "  Lab@Example.com ", "password")
	require.NoError(t, err)
	assert.Equal(t, model.Principal{ID: "user-lab", Email: "lab@example.com", Role: model.RoleLab}, session.User)
	assert.True(t, session.ExpiresAt.After(time.Now()))

	got, err := svc.GetSession(ctx, session.Token)
	require.NoError(t, err)
	assert.Equal(t, session.User, got.User)

	p, err := svc.CurrentUser(ctx, session.Token)
	require.NoError(t, err)
	assert.True(t, p.IsLab())
}

func TestSignInRejectsBadCredentials(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	_, err := svc.SignIn(ctx, "mineers@example.com", "wrong")
	assert.True(t, apperrors.HasCode(err, apperrors.ErrUnauthenticated))

	_, err = svc.SignIn(ctx, "nobody@example.com", "password")
	assert.True(t, apperrors.HasCode(err, apperrors.ErrUnauthenticated))
}

func TestSignOutRevokes(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	session, err := svc.SignIn(ctx, "mineers@example.com", "password")
	require.NoError(t, err)
	require.NoError(t, svc.SignOut(ctx, session.Token))

	_, err = svc.CurrentUser(ctx, session.Token)
	assert.True(t, apperrors.HasCode(err, apperrors.ErrUnauthenticated))

	assert.NoError(t, svc.SignOut(ctx, session.Token))
	assert.NoError(t, svc.SignOut(ctx, "garbage"))
}

func TestCurrentUserWithoutToken(t *testing.T) {
	svc := newTestService(t)
	_, err := svc.CurrentUser(context.Background(), "")
	assert.True(t, apperrors.HasCode(err, apperrors.ErrUnauthenticated))
}

func TestUsersFromConfig(t *testing.T) {
	hasher := security.NewBcryptHasher(bcrypt.MinCost)
	hash, err := hasher.Hash("correct horse")
	require.NoError(t, err)

	users, err := UsersFromConfig([]config.UserConfig{
		{ID: "u1", Email: "a@example.com", PasswordHash: hash, Role: "mineers"},
	}, hasher)
	require.NoError(t, err)
	require.Len(t, users, 1)
	assert.Equal(t, hash, users[0].PasswordHash)

	_, err = UsersFromConfig([]config.UserConfig{
		{ID: "u1", Email: "a@example.com", Password: "password1"},
		{ID: "u2", Email: "A@example.com", Password: "password2"},
	}, hasher)
	assert.ErrorContains(t, err, "duplicate email")

	_, err = UsersFromConfig([]config.UserConfig{{ID: "u1", Email: "a@example.com", PasswordHash: "plain"}}, hasher)
	assert.Error(t, err)

	_, err = UsersFromConfig([]config.UserConfig{{ID: "u1", Email: "a@example.com"}}, hasher)
	assert.Error(t, err)
}
