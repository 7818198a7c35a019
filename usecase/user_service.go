package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/jbergloda1/swha-backend/domain/entities"
	"github.com/jbergloda1/swha-backend/domain/repositories"
	"github.com/jbergloda1/swha-backend/internal/auth"
)

// UserService handles registration, login and profile management
type UserService struct {
	users  repositories.UserRepository
	tokens *auth.TokenManager
	logger *zap.Logger
}

// NewUserService creates a new user service
func NewUserService(users repositories.UserRepository, tokens *auth.TokenManager, logger *zap.Logger) *UserService {
	return &UserService{users: users, tokens: tokens, logger: logger}
}

// RegisterInput carries the fields of a new account
type RegisterInput struct {
	Username string
	Email    string
	FullName string
	Password string
}

// Session is an issued access token together with its owner
type Session struct {
	Token     string
	ExpiresAt time.Time
	User      *entities.User
}

// ProfileUpdate lists the mutable profile fields; nil leaves a field unchanged
type ProfileUpdate struct {
	Email    *string
	FullName *string
	Bio      *string
}

// Register creates an account
func (s *UserService) Register(ctx context.Context, in RegisterInput) (*entities.User, error) {
	hash, err := auth.HashPassword(in.Password)
	if err != nil {
		if errors.Is(err, auth.ErrWeakPassword) {
			return nil, fmt.Errorf("%w: %v", ErrInvalidInput, err)
		}
		return nil, err
	}

	user := entities.NewUser(in.Username, in.Email, in.FullName, hash)
	if err := user.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}

	if err := s.users.Create(ctx, user); err != nil {
		if errors.Is(err, repositories.ErrDuplicate) {
			return nil, ErrUserExists
		}
		return nil, fmt.Errorf("failed to create user: %w", err)
	}

	s.logger.Info("User registered",
		zap.String("userID", user.ID),
		zap.String("username", user.Username))
	return user, nil
}

// Login verifies credentials and issues an access token. The identifier may
// be a username or an email address.
func (s *UserService) Login(ctx context.Context, identifier, password string) (*Session, error) {
	identifier = strings.TrimSpace(identifier)
	if identifier == "" || password == "" {
		return nil, auth.ErrInvalidCredentials
	}

	var (
		user *entities.User
		err  error
	)
	if strings.Contains(identifier, "@") {
		user, err = s.users.GetByEmail(ctx, strings.ToLower(identifier))
	} else {
		user, err = s.users.GetByUsername(ctx, identifier)
	}
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return nil, auth.ErrInvalidCredentials
		}
		return nil, fmt.Errorf("failed to look up user: %w", err)
	}

	if err := auth.CheckPassword(user.PasswordHash, password); err != nil {
		s.logger.Warn("Failed login attempt", zap.String("username", user.Username))
		return nil, err
	}
	if !user.IsActive {
		return nil, ErrInactiveUser
	}

	token, expiresAt, err := s.tokens.GenerateUserToken(user.ID, user.Username, user.IsSuperuser)
	if err != nil {
		return nil, fmt.Errorf("failed to issue token: %w", err)
	}

	s.logger.Info("User logged in", zap.String("userID", user.ID))
	return &Session{Token: token, ExpiresAt: expiresAt, User: user}, nil
}

// Get returns a user by ID
func (s *UserService) Get(ctx context.Context, userID string) (*entities.User, error) {
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	return user, nil
}

// UpdateProfile applies the non-nil fields of update
func (s *UserService) UpdateProfile(ctx context.Context, userID string, update ProfileUpdate) (*entities.User, error) {
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}

	if update.Email != nil {
		user.Email = strings.ToLower(strings.TrimSpace(*update.Email))
	}
	if update.FullName != nil {
		user.FullName = strings.TrimSpace(*update.FullName)
	}
	if update.Bio != nil {
		user.Bio = strings.TrimSpace(*update.Bio)
	}
	if err := user.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	user.Touch()

	if err := s.users.Update(ctx, user); err != nil {
		if errors.Is(err, repositories.ErrDuplicate) {
			return nil, ErrUserExists
		}
		return nil, fmt.Errorf("failed to update user: %w", err)
	}
	return user, nil
}
