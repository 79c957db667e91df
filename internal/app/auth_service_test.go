package app

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"docchat/internal/model"
	"docchat/internal/pkg/jwtutil"
	"docchat/internal/repository"
)

func TestAuthService_RegisterLogin(t *testing.T) {
	ctx := context.Background()
	svc := NewAuthService(repository.NewUserRepository(newTestDB(t)), "secret", time.Hour)

	reg, err := svc.Register(ctx, RegisterInput{Username: "ada", Email: "Ada@Example.com", Password: "correct-horse"})
	require.NoError(t, err)
	assert.Equal(t, "ada@example.com", reg.User.Email)

	claims, err := jwtutil.ParseToken("secret", reg.Token)
	require.NoError(t, err)
	assert.Equal(t, reg.User.ID, claims.UserID)

	login, err := svc.Login(ctx, LoginInput{Username: "ada", Password: "correct-horse"})
	require.NoError(t, err)
	assert.Equal(t, reg.User.ID, login.User.ID)

	_, err = svc.Login(ctx, LoginInput{Username: "ada", Password: "wrong-password"})
	assert.ErrorIs(t, err, ErrInvalidCredential)

	_, err = svc.Register(ctx, RegisterInput{Username: "ada", Email: "other@example.com", Password: "correct-horse"})
	assert.ErrorIs(t, err, ErrUsernameExists)

	_, err = svc.Register(ctx, RegisterInput{Username: "bob", Email: "ada@example.com", Password: "correct-horse"})
	assert.ErrorIs(t, err, ErrEmailExists)

	_, err = svc.Register(ctx, RegisterInput{Username: "bob", Email: "bob@example.com", Password: "short"})
	assert.ErrorIs(t, err, ErrInvalidInput)

	user, err := svc.GetUserByID(ctx, reg.User.ID)
	require.NoError(t, err)
	assert.Equal(t, "ada", user.Username)

	_, err = svc.GetUserByID(ctx, 999)
	assert.ErrorIs(t, err, ErrUnauthenticated, "a token for a deleted user is no longer valid")
}

func TestAuthService_ErrorKinds(t *testing.T) {
	ctx := context.Background()
	svc := NewAuthService(repository.NewUserRepository(newTestDB(t)), "secret", time.Hour)
	_, err := svc.Register(ctx, RegisterInput{Username: "ada", Email: "ada@example.com", Password: "correct-horse"})
	require.NoError(t, err)

	_, err = svc.Register(ctx, RegisterInput{Username: "ada", Email: "x@example.com", Password: "correct-horse"})
	assert.ErrorIs(t, err, ErrInvalidInput)
	assert.True(t, IsClientError(err))

	// unknown user and wrong password look the same
	_, unknown := svc.Login(ctx, LoginInput{Username: "nobody", Password: "correct-horse"})
	_, wrong := svc.Login(ctx, LoginInput{Username: "ada", Password: "wrong-password"})
	assert.ErrorIs(t, unknown, ErrInvalidCredential)
	assert.Equal(t, unknown, wrong)
	assert.ErrorIs(t, unknown, ErrUnauthenticated)

	_, err = svc.Login(ctx, LoginInput{Username: "  ", Password: "x"})
	assert.ErrorIs(t, err, ErrInvalidInput)
}

type brokenUserStore struct{ UserStore }

func (brokenUserStore) GetByUsername(context.Context, string) (*model.User, error) {
	return nil, errors.New("connection refused")
}

func TestAuthService_StoreFailureIsUpstream(t *testing.T) {
	svc := NewAuthService(brokenUserStore{}, "secret", time.Hour)

	_, err := svc.Login(context.Background(), LoginInput{Username: "ada", Password: "correct-horse"})
	assert.ErrorIs(t, err, ErrUpstream)
	assert.False(t, IsClientError(err))

	_, err = svc.Register(context.Background(), RegisterInput{Username: "ada", Email: "ada@example.com", Password: "correct-horse"})
	assert.ErrorIs(t, err, ErrUpstream)
}
