package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"golang.org/x/crypto/bcrypt"

	"github.com/joao-fontenele/shopflow/internal/domain"
)

const minPasswordLength = 8

var ErrInvalidCredentials = fmt.Errorf("invalid credentials: %w", domain.ErrUnauthenticated)

type UserStore interface {
	Create(ctx context.Context, u *domain.User) error
	GetByID(ctx context.Context, id int64) (*domain.User, error)
	GetByUsername(ctx context.Context, username string) (*domain.User, error)
	UpdateProfile(ctx context.Context, u *domain.User) error
}

type Registration struct {
	Username  string `json:"username"`
	Email     string `json:"email"`
	Password  string `json:"password"`
	Password2 string `json:"password2"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Address   string `json:"address"`
	Phone     string `json:"phone"`
	IsStaff   bool   `json:"is_staff"`
}

// ProfileUpdate carries the editable profile fields; nil fields are left
// unchanged.
type ProfileUpdate struct {
	FirstName *string `json:"first_name"`
	LastName  *string `json:"last_name"`
	Address   *string `json:"address"`
	Phone     *string `json:"phone"`
}

type Service struct {
	users            UserStore
	tokens           *TokenIssuer
	allowStaffSignup bool
	logger           *slog.Logger
}

func NewService(users UserStore, tokens *TokenIssuer, allowStaffSignup bool, logger *slog.Logger) *Service {
	return &Service{
		users:            users,
		tokens:           tokens,
		allowStaffSignup: allowStaffSignup,
		logger:           logger,
	}
}

func (s *Service) Register(ctx context.Context, reg Registration) (*domain.User, error) {
	reg.Username = strings.TrimSpace(reg.Username)
	if reg.Username == "" {
		return nil, domain.NewValidationError("username", "this field is required")
	}
	if len(reg.Password) < minPasswordLength {
		return nil, domain.NewValidationError("password", fmt.Sprintf("must be at least %d characters", minPasswordLength))
	}
	if reg.Password != reg.Password2 {
		return nil, domain.NewValidationError("password", "passwords don't match")
	}
	if reg.IsStaff && !s.allowStaffSignup {
		return nil, domain.NewValidationError("is_staff", "staff accounts cannot be self-registered")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(reg.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	user := &domain.User{
		Username:     reg.Username,
		Email:        reg.Email,
		PasswordHash: string(hash),
		FirstName:    reg.FirstName,
		LastName:     reg.LastName,
		Address:      reg.Address,
		Phone:        reg.Phone,
		IsStaff:      reg.IsStaff,
	}
	if err := s.users.Create(ctx, user); err != nil {
		return nil, err
	}

	s.logger.Info("user registered", "user_id", user.ID, "is_staff", user.IsStaff)
	return user, nil
}

func (s *Service) Login(ctx context.Context, username, password string) (TokenPair, error) {
	user, err := s.users.GetByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return TokenPair{}, ErrInvalidCredentials
		}
		return TokenPair{}, err
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return TokenPair{}, ErrInvalidCredentials
	}

	return s.tokens.Issue(user)
}

// Refresh exchanges a refresh token for a new access token. The user is
// reloaded so a revoked staff flag takes effect.
func (s *Service) Refresh(ctx context.Context, refreshToken string) (string, error) {
	actor, err := s.tokens.ParseRefresh(refreshToken)
	if err != nil {
		return "", err
	}

	user, err := s.users.GetByID(ctx, actor.UserID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return "", ErrInvalidCredentials
		}
		return "", err
	}

	pair, err := s.tokens.Issue(user)
	if err != nil {
		return "", err
	}
	return pair.Access, nil
}

func (s *Service) Profile(ctx context.Context, actor domain.Actor) (*domain.User, error) {
	return s.users.GetByID(ctx, actor.UserID)
}

func (s *Service) UpdateProfile(ctx context.Context, actor domain.Actor, upd ProfileUpdate) (*domain.User, error) {
	user, err := s.users.GetByID(ctx, actor.UserID)
	if err != nil {
		return nil, err
	}

	if upd.FirstName != nil {
		user.FirstName = *upd.FirstName
	}
	if upd.LastName != nil {
		user.LastName = *upd.LastName
	}
	if upd.Address != nil {
		user.Address = *upd.Address
	}
	if upd.Phone != nil {
		user.Phone = *upd.Phone
	}

	if err := s.users.UpdateProfile(ctx, user); err != nil {
		return nil, err
	}
	return user, nil
}
