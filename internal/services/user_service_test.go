package services

import (
	"context"
	"testing"

	"activation-backend/internal/auth"
	"activation-backend/internal/cache"
	"activation-backend/internal/config"
	"activation-backend/internal/models"
	"activation-backend/internal/repositories/memory"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newUserService(t *testing.T) (*UserService, *cache.Memory) {
	t.Helper()
	cfg := &config.Config{}
	cfg.JWT.Secret = "test-secret"
	cfg.JWT.ExpirationHours = 1
	cfg.JWT.Issuer = "activation-backend"

	sessions := cache.NewMemory()
	svc := NewUserService(memory.New(), sessions, auth.NewJWTManager(cfg), quietLogger())
	require.NoError(t, svc.CreateUser(context.Background(), &models.User{
		Name:  "Ana Gomez",
		Email: " Ana@Example.com ",
		Role:  models.RoleAdmin,
	}, "hunter22"))
	return svc, sessions
}

func TestLoginOpensSession(t *testing.T) {
	svc, sessions := newUserService(t)
	ctx := context.Background()

	resp, err := svc.Login(ctx, &models.LoginRequest{Email: "ana@example.com", Password: "hunter22"})
	require.NoError(t, err)
	assert.NotEmpty(t, resp.Token)
	assert.Equal(t, "ana@example.com", resp.User.Email)

	claims, err := svc.JWTManager.ValidateToken(resp.Token)
	require.NoError(t, err)
	session, err := sessions.GetSession(ctx, claims.SessionID())
	require.NoError(t, err)
	assert.Equal(t, resp.User.ID, session.UserID)
	assert.Equal(t, models.RoleAdmin, session.Role)

	require.NoError(t, svc.Logout(ctx, claims.SessionID()))
	_, err = sessions.GetSession(ctx, claims.SessionID())
	assert.ErrorIs(t, err, cache.ErrSessionNotFound)
}

func TestLoginRejectsBadCredentials(t *testing.T) {
	svc, _ := newUserService(t)
	ctx := context.Background()

	_, err := svc.Login(ctx, &models.LoginRequest{Email: "ana@example.com", Password: "wrong"})
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	_, err = svc.Login(ctx, &models.LoginRequest{Email: "nobody@example.com", Password: "hunter22"})
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestCreateUserValidates(t *testing.T) {
	svc, _ := newUserService(t)
	ctx := context.Background()

	assert.Error(t, svc.CreateUser(ctx, &models.User{Name: "X", Email: "x@example.com"}, ""))
	assert.Error(t, svc.CreateUser(ctx, &models.User{Name: "X", Email: "x@example.com", Role: "root"}, "pw"))
	assert.Error(t, svc.CreateUser(ctx, &models.User{Name: "Dup", Email: "ANA@example.com"}, "pw"))
}
