package services

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nexuscomply/backend/internal/config"
	"github.com/nexuscomply/backend/internal/models"
)

func TestAuthService_Login(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	service := NewAuthService(f.db, config.Config{JWTSecret: "test-secret", TokenTTL: time.Hour})

	token, user, err := service.Login(ctx, " KLC@nexus.test ", "password123")
	require.NoError(t, err)
	assert.NotEmpty(t, token)
	assert.Equal(t, f.outletUser.ID, user.ID)
	assert.NotNil(t, user.LastLogin)

	claims, err := service.ValidateToken(token)
	require.NoError(t, err)
	assert.Equal(t, f.outletUser.ID, claims.UserID)
	assert.Equal(t, models.RoleOutlet, claims.Role)
	require.NotNil(t, claims.OutletID)
	assert.Equal(t, f.outlet.ID, *claims.OutletID)

	actor := claims.Actor()
	assert.True(t, actor.ownsOutlet(f.outlet.ID))

	token, _, err = service.Login(ctx, "klc@nexus.test", "wrongpassword")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
	assert.Empty(t, token)

	_, _, err = service.Login(ctx, "ghost@nexus.test", "password123")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestAuthService_DisabledAccount(t *testing.T) {
	f := newFixture(t)
	service := NewAuthService(f.db, config.Config{JWTSecret: "test-secret"})
	require.NoError(t, f.db.Model(&f.manager).Update("enabled", false).Error)

	_, _, err := service.Login(context.Background(), "aisha@nexus.test", "password123")
	assert.ErrorIs(t, err, ErrAccountDisabled)
}

func TestAuthService_ValidateToken(t *testing.T) {
	f := newFixture(t)
	service := NewAuthService(f.db, config.Config{JWTSecret: "test-secret", TokenTTL: time.Hour})
	token, err := service.GenerateToken(&f.admin)
	require.NoError(t, err)

	other := NewAuthService(f.db, config.Config{JWTSecret: "other-secret"})
	_, err = other.ValidateToken(token)
	assert.ErrorIs(t, err, ErrInvalidToken)

	service.now = func() time.Time { return time.Now().Add(2 * time.Hour) }
	_, err = service.ValidateToken(token)
	assert.ErrorIs(t, err, ErrInvalidToken, "expired")

	_, err = service.ValidateToken("not-a-token")
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestAuthService_ResetPassword(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	service := NewAuthService(f.db, config.Config{JWTSecret: "test-secret"})

	require.NoError(t, service.ResetPassword(ctx, "admin@nexus.test", "n3w-passw0rd"))
	_, _, err := service.Login(ctx, "admin@nexus.test", "n3w-passw0rd")
	require.NoError(t, err)
	_, _, err = service.Login(ctx, "admin@nexus.test", "password123")
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	assert.ErrorIs(t, service.ResetPassword(ctx, "ghost@nexus.test", "x"), ErrInvalidCredentials)
}
