package service

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/filo-ai/portal/internal/model"
	"github.com/filo-ai/portal/internal/store"
	"github.com/filo-ai/portal/pkg/logger"
)

const minPasswordLen = 6

var (
	// ErrInvalidCredentials is returned for an unknown email or a wrong
	// password.
	ErrInvalidCredentials = errors.New("invalid email or password")
	// ErrEmailTaken is returned when signing up with a registered email.
	ErrEmailTaken = errors.New("email already registered")
	// ErrInvalidInput wraps sign-up validation failures.
	ErrInvalidInput = errors.New("invalid input")
)

// TokenIssuer mints access tokens.
type TokenIssuer interface {
	IssueToken(userID string) (string, time.Time, error)
}

// UserService handles accounts.
type UserService struct {
	users  store.Users
	tokens TokenIssuer
	logger *logger.Logger
	cost   int
	now    func() time.Time
}

// NewUserService creates a new user service.
func NewUserService(users store.Users, tokens TokenIssuer, log *logger.Logger) *UserService {
	return &UserService{
		users:  users,
		tokens: tokens,
		logger: log,
		cost:   bcrypt.DefaultCost,
		now:    time.Now,
	}
}

// SignUp registers an account and signs it in.
func (s *UserService) SignUp(ctx context.Context, req *model.SignUpRequest) (*model.AuthResponse, error) {
	if err := validateSignUp(req); err != nil {
		return nil, err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), s.cost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	user := &model.User{
		ID:           uuid.Must(uuid.NewV7()).String(),
		Email:        strings.TrimSpace(req.Email),
		PasswordHash: string(hash),
		Phone:        strings.TrimSpace(req.Phone),
		Name:         strings.TrimSpace(req.Name),
		State:        strings.TrimSpace(req.State),
		GSTIN:        strings.TrimSpace(req.GSTIN),
		BusinessType: strings.TrimSpace(req.BusinessType),
		Turnover:     req.Turnover,
		CreatedAt:    s.now(),
	}

	if err := s.users.CreateUser(ctx, user); err != nil {
		if errors.Is(err, store.ErrConflict) {
			return nil, ErrEmailTaken
		}
		return nil, fmt.Errorf("failed to create user: %w", err)
	}

	s.logger.Info("user signed up", zap.String(logger.FieldUserID, user.ID))
	return s.session(user)
}

// SignIn checks credentials and issues a token.
func (s *UserService) SignIn(ctx context.Context, req *model.SignInRequest) (*model.AuthResponse, error) {
	user, err := s.users.GetUserByEmail(ctx, req.Email)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, fmt.Errorf("failed to load user: %w", err)
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.Password)); err != nil {
		return nil, ErrInvalidCredentials
	}

	return s.session(user)
}

// Profile returns the public profile of a user.
func (s *UserService) Profile(ctx context.Context, userID string) (*model.Profile, error) {
	user, err := s.users.GetUser(ctx, userID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to load user: %w", err)
	}
	p := user.Profile()
	return &p, nil
}

func (s *UserService) session(user *model.User) (*model.AuthResponse, error) {
	token, expires, err := s.tokens.IssueToken(user.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to issue token: %w", err)
	}
	return &model.AuthResponse{
		AccessToken: token,
		ExpiresAt:   expires.Unix(),
		Profile:     user.Profile(),
	}, nil
}

func validateSignUp(req *model.SignUpRequest) error {
	if _, err := mail.ParseAddress(strings.TrimSpace(req.Email)); err != nil {
		return fmt.Errorf("%w: email is invalid", ErrInvalidInput)
	}
	if len(req.Password) < minPasswordLen {
		return fmt.Errorf("%w: password must be at least %d characters long", ErrInvalidInput, minPasswordLen)
	}
	required := []struct{ field, value string }{
		{"phone", req.Phone},
		{"name", req.Name},
		{"state", req.State},
	}
	for _, r := range required {
		if strings.TrimSpace(r.value) == "" {
			return fmt.Errorf("%w: %s is required", ErrInvalidInput, r.field)
		}
	}
	return nil
}
