package app

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"golang.org/x/crypto/bcrypt"

	"docchat/internal/model"
	"docchat/internal/pkg/jwtutil"
)

const minPasswordLen = 8

// dummyHash is compared against when a username is unknown, so a login
// takes as long whether or not the account exists.
var dummyHash = sync.OnceValue(func() []byte {
	h, _ := bcrypt.GenerateFromPassword([]byte("docchat-no-such-user"), bcrypt.DefaultCost)
	return h
})

// AuthService registers users and issues the bearer tokens that scope every
// document and conversation to its owner.
type AuthService struct {
	users         UserStore
	jwtSecret     string
	jwtExpiration time.Duration
}

type RegisterInput struct {
	Username string
	Email    string
	Password string
}

type LoginInput struct {
	Username string
	Password string
}

type AuthResult struct {
	Token string
	User  *model.User
}

func NewAuthService(users UserStore, jwtSecret string, jwtExpiration time.Duration) *AuthService {
	return &AuthService{
		users:         users,
		jwtSecret:     jwtSecret,
		jwtExpiration: jwtExpiration,
	}
}

func (s *AuthService) Register(ctx context.Context, in RegisterInput) (*AuthResult, error) {
	username := strings.TrimSpace(in.Username)
	email := strings.ToLower(strings.TrimSpace(in.Email))
	password := strings.TrimSpace(in.Password)
	switch {
	case username == "" || email == "":
		return nil, fmt.Errorf("%w: username and email are required", ErrInvalidInput)
	case len(password) < minPasswordLen:
		return nil, fmt.Errorf("%w: password must be at least %d characters", ErrInvalidInput, minPasswordLen)
	}

	if taken, err := s.users.GetByUsername(ctx, username); err != nil {
		return nil, fmt.Errorf("%w: look up username: %w", ErrUpstream, err)
	} else if taken != nil {
		return nil, ErrUsernameExists
	}
	if taken, err := s.users.GetByEmail(ctx, email); err != nil {
		return nil, fmt.Errorf("%w: look up email: %w", ErrUpstream, err)
	} else if taken != nil {
		return nil, ErrEmailExists
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("hash password failed: %w", err)
	}
	user := &model.User{Username: username, Email: email, PasswordHash: string(hash)}
	if err := s.users.Create(ctx, user); err != nil {
		return nil, fmt.Errorf("%w: create user: %w", ErrUpstream, err)
	}
	return s.issue(user)
}

// Login never reveals whether the username or the password was wrong.
func (s *AuthService) Login(ctx context.Context, in LoginInput) (*AuthResult, error) {
	username := strings.TrimSpace(in.Username)
	password := strings.TrimSpace(in.Password)
	if username == "" || password == "" {
		return nil, fmt.Errorf("%w: username and password are required", ErrInvalidInput)
	}

	user, err := s.users.GetByUsername(ctx, username)
	if err != nil {
		return nil, fmt.Errorf("%w: look up user: %w", ErrUpstream, err)
	}
	hash := dummyHash()
	if user != nil {
		hash = []byte(user.PasswordHash)
	}
	if err := bcrypt.CompareHashAndPassword(hash, []byte(password)); err != nil || user == nil {
		return nil, ErrInvalidCredential
	}
	return s.issue(user)
}

// GetUserByID resolves the owner behind a token. A token whose user no
// longer exists counts as unauthenticated.
func (s *AuthService) GetUserByID(ctx context.Context, id uint) (*model.User, error) {
	if id == 0 {
		return nil, ErrUnauthenticated
	}
	user, err := s.users.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("%w: load user: %w", ErrUpstream, err)
	}
	if user == nil {
		return nil, fmt.Errorf("%w: user %d no longer exists", ErrUnauthenticated, id)
	}
	return user, nil
}

func (s *AuthService) issue(user *model.User) (*AuthResult, error) {
	token, err := jwtutil.GenerateToken(s.jwtSecret, s.jwtExpiration, user.ID, user.Username)
	if err != nil {
		return nil, err
	}
	return &AuthResult{Token: token, User: user}, nil
}
