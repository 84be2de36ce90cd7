package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"crawford.app/podcastserver/internal/entity"
	"crawford.app/podcastserver/internal/modules/user/dto"
	"crawford.app/podcastserver/internal/modules/user/repository"
	"crawford.app/podcastserver/pkg/apperror"
	"crawford.app/podcastserver/pkg/password"
	"crawford.app/podcastserver/pkg/token"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var (
	ErrUsernameTaken      = errors.New("username already registered")
	ErrEmailTaken         = errors.New("email already registered")
	ErrInvalidCredentials = fmt.Errorf("incorrect username or password: %w", apperror.ErrUnauthorized)
	ErrInactiveUser       = fmt.Errorf("inactive user: %w", apperror.ErrUnauthorized)
)

type AuthService interface {
	Register(ctx context.Context, req dto.RegisterRequest) (*dto.UserResponse, error)
	Login(ctx context.Context, req dto.LoginRequest) (*dto.TokenResponse, error)
	UpdateMe(ctx context.Context, actor *entity.User, req dto.UpdateMeRequest) (*dto.UserResponse, error)
}

type authService struct {
	repo             repository.UserRepository
	tokens           *token.Manager
	allowAdminSignup bool
	logger           *zap.Logger
}

func NewAuthService(repo repository.UserRepository, tokens *token.Manager, allowAdminSignup bool, logger *zap.Logger) AuthService {
	return &authService{
		repo:             repo,
		tokens:           tokens,
		allowAdminSignup: allowAdminSignup,
		logger:           logger,
	}
}

func (s *authService) Register(ctx context.Context, req dto.RegisterRequest) (*dto.UserResponse, error) {
	role := entity.RoleUser
	if req.Role != "" {
		parsed, err := entity.ParseRole(req.Role)
		if err != nil {
			return nil, err
		}
		role = parsed
	}
	if role == entity.RoleAdmin && !s.allowAdminSignup {
		return nil, fmt.Errorf("admin accounts cannot be self-registered: %w", apperror.ErrForbidden)
	}

	username := strings.TrimSpace(req.Username)
	email := strings.ToLower(strings.TrimSpace(req.Email))

	if err := CheckAvailability(ctx, s.repo, username, email, 0); err != nil {
		return nil, asDuplicate(err, apperror.ErrBadRequest)
	}

	hash, err := password.Hash(req.Password)
	if err != nil {
		if errors.Is(err, password.ErrTooLong) {
			return nil, fmt.Errorf("%w: %w", err, apperror.ErrInvalidInput)
		}
		return nil, err
	}

	user := &entity.User{
		Username:     username,
		Email:        email,
		PasswordHash: hash,
		IsActive:     true,
		Role:         role,
	}
	if err := s.repo.Create(ctx, user); err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, fmt.Errorf("username or email already registered: %w", apperror.ErrBadRequest)
		}
		return nil, err
	}

	s.logger.Info("user registered", zap.Uint("user_id", user.ID), zap.String("role", string(user.Role)))

	resp := dto.NewUserResponse(user)
	return &resp, nil
}

func (s *authService) Login(ctx context.Context, req dto.LoginRequest) (*dto.TokenResponse, error) {
	user, err := s.repo.FindByUsername(ctx, strings.TrimSpace(req.Username))
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}

	if !password.Verify(user.PasswordHash, req.Password) {
		return nil, ErrInvalidCredentials
	}
	if !user.IsActive {
		return nil, ErrInactiveUser
	}

	signed, _, err := s.tokens.Issue(token.Identity{
		UserID:   user.ID,
		Username: user.Username,
		Email:    user.Email,
		Role:     string(user.Role),
		IsAdmin:  user.IsAdmin(),
	})
	if err != nil {
		return nil, err
	}

	return &dto.TokenResponse{
		AccessToken: signed,
		TokenType:   "bearer",
		ExpiresIn:   int64(s.tokens.TTL().Seconds()),
		IsAdmin:     user.IsAdmin(),
		UserRole:    string(user.Role),
	}, nil
}

func (s *authService) UpdateMe(ctx context.Context, actor *entity.User, req dto.UpdateMeRequest) (*dto.UserResponse, error) {
	if req.Role != nil || req.IsActive != nil || req.IsAdmin != nil {
		return nil, fmt.Errorf("role and active status can only be changed by an admin: %w", apperror.ErrForbidden)
	}

	user, err := s.repo.FindByID(ctx, actor.ID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("user not found: %w", apperror.ErrNotFound)
		}
		return nil, err
	}

	if err := ApplyAccountChanges(ctx, s.repo, user, req.Username, req.Email, req.Password); err != nil {
		return nil, err
	}

	if err := s.repo.Update(ctx, user); err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, fmt.Errorf("username or email already registered: %w", apperror.ErrConflict)
		}
		return nil, err
	}

	resp := dto.NewUserResponse(user)
	return &resp, nil
}

// ApplyAccountChanges validates and applies username, email and password changes
// to user in memory. Taken usernames or emails are reported as Conflict.
func ApplyAccountChanges(ctx context.Context, repo repository.UserRepository, user *entity.User, username, email, plain *string) error {
	var newUsername, newEmail string
	if username != nil {
		if v := strings.TrimSpace(*username); v != user.Username {
			newUsername = v
		}
	}
	if email != nil {
		if v := strings.ToLower(strings.TrimSpace(*email)); v != user.Email {
			newEmail = v
		}
	}

	if err := CheckAvailability(ctx, repo, newUsername, newEmail, user.ID); err != nil {
		return asDuplicate(err, apperror.ErrConflict)
	}

	if newUsername != "" {
		user.Username = newUsername
	}
	if newEmail != "" {
		user.Email = newEmail
	}

	if plain != nil {
		hash, err := password.Hash(*plain)
		if err != nil {
			if errors.Is(err, password.ErrTooLong) {
				return fmt.Errorf("%w: %w", err, apperror.ErrInvalidInput)
			}
			return err
		}
		user.PasswordHash = hash
	}
	return nil
}

// CheckAvailability returns ErrUsernameTaken or ErrEmailTaken when another user
// (not selfID) already holds the value. Empty values are skipped.
func CheckAvailability(ctx context.Context, repo repository.UserRepository, username, email string, selfID uint) error {
	if username != "" {
		existing, err := repo.FindByUsername(ctx, username)
		if err == nil && existing.ID != selfID {
			return ErrUsernameTaken
		}
		if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}
	}

	if email != "" {
		existing, err := repo.FindByEmail(ctx, email)
		if err == nil && existing.ID != selfID {
			return ErrEmailTaken
		}
		if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}
	}
	return nil
}

func asDuplicate(err, kind error) error {
	if errors.Is(err, ErrUsernameTaken) || errors.Is(err, ErrEmailTaken) {
		return fmt.Errorf("%w: %w", err, kind)
	}
	return err
}
