package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"doordashboard/internal/log"
	"doordashboard/internal/storage"
)

const minPasswordLen = 8

var (
	ErrInvalidCredentials = errors.New("invalid username or password")
	ErrInvalidInput       = errors.New("invalid input")
)

// UserStore is the persistence the auth service needs.
type UserStore interface {
	Create(ctx context.Context, u storage.User) (storage.User, error)
	GetByID(ctx context.Context, id int64) (storage.User, error)
	GetByUsername(ctx context.Context, username string) (storage.User, error)
	TouchLogin(ctx context.Context, id int64, at time.Time) error
}

// User is the account as shown to clients; it never carries the hash.
type User struct {
	ID        int64     `json:"id"`
	Username  string    `json:"username"`
	Email     string    `json:"email"`
	IsAdmin   bool      `json:"is_admin"`
	CreatedAt time.Time `json:"created_at"`
}

// Grant is returned by Register and Login.
type Grant struct {
	AccessToken string `json:"access_token"`
	User        User   `json:"user"`
}

type Service struct {
	users  UserStore
	tokens TokenConfig
	logger *log.Logger
	now    func() time.Time
}

func NewService(users UserStore, tokens TokenConfig, logger *log.Logger) *Service {
	if logger == nil {
		logger = log.Discard()
	}
	return &Service{
		users:  users,
		tokens: tokens,
		logger: logger.WithComponent(log.ComponentAuth),
		now:    time.Now,
	}
}

// Register creates an account and signs the caller in.
func (s *Service) Register(ctx context.Context, username, password, email string, admin bool) (Grant, error) {
	username = strings.TrimSpace(username)
	if username == "" {
		return Grant{}, fmt.Errorf("%w: username is required", ErrInvalidInput)
	}
	if len(password) < minPasswordLen {
		return Grant{}, fmt.Errorf("%w: password must be at least %d characters", ErrInvalidInput, minPasswordLen)
	}

	hash, err := HashPassword(password)
	if err != nil {
		return Grant{}, err
	}
	u, err := s.users.Create(ctx, storage.User{
		Username:     username,
		Email:        strings.TrimSpace(email),
		PasswordHash: hash,
		IsAdmin:      admin,
	})
	if err != nil {
		return Grant{}, err
	}

	s.logger.InfoContext(ctx, "User registered", log.FieldUsername, u.Username, log.FieldOperation, log.OpRegister)
	return s.grant(u)
}

// Login verifies credentials. Unknown users and wrong passwords fail the
// same way.
func (s *Service) Login(ctx context.Context, username, password string) (Grant, error) {
	u, err := s.users.GetByUsername(ctx, strings.TrimSpace(username))
	if errors.Is(err, storage.ErrUserNotFound) {
		return Grant{}, ErrInvalidCredentials
	}
	if err != nil {
		return Grant{}, err
	}
	if !CheckPassword(u.PasswordHash, password) {
		s.logger.WarnContext(ctx, "Failed login", log.FieldUsername, u.Username, log.FieldErrorType, log.ErrorTypeAuth)
		return Grant{}, ErrInvalidCredentials
	}

	if err := s.users.TouchLogin(ctx, u.ID, s.now()); err != nil {
		s.logger.WarnContext(ctx, "Could not record login time", log.FieldError, err)
	}
	return s.grant(u)
}

// Me returns the account behind a verified token.
func (s *Service) Me(ctx context.Context, claims *Claims) (User, error) {
	if claims == nil {
		return User{}, ErrMissingToken
	}
	u, err := s.users.GetByID(ctx, claims.UserID)
	if errors.Is(err, storage.ErrUserNotFound) {
		return User{}, ErrInvalidToken
	}
	if err != nil {
		return User{}, err
	}
	return publicUser(u), nil
}

func (s *Service) grant(u storage.User) (Grant, error) {
	token, err := Issue(s.tokens, u.ID, u.Username, u.IsAdmin, s.now())
	if err != nil {
		return Grant{}, err
	}
	return Grant{AccessToken: token, User: publicUser(u)}, nil
}

func publicUser(u storage.User) User {
	return User{
		ID:        u.ID,
		Username:  u.Username,
		Email:     u.Email,
		IsAdmin:   u.IsAdmin,
		CreatedAt: u.CreatedAt,
	}
}
