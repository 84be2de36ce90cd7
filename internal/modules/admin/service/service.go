package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"crawford.app/podcastserver/internal/entity"
	"crawford.app/podcastserver/internal/modules/admin/dto"
	liveRepo "crawford.app/podcastserver/internal/modules/live/repository"
	podcastRepo "crawford.app/podcastserver/internal/modules/podcast/repository"
	podcastService "crawford.app/podcastserver/internal/modules/podcast/service"
	search "crawford.app/podcastserver/internal/modules/search/service"
	userDto "crawford.app/podcastserver/internal/modules/user/dto"
	userRepo "crawford.app/podcastserver/internal/modules/user/repository"
	userService "crawford.app/podcastserver/internal/modules/user/service"
	"crawford.app/podcastserver/pkg/apperror"
	commonDto "crawford.app/podcastserver/pkg/dto"
	"crawford.app/podcastserver/pkg/password"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var errUserNotFound = fmt.Errorf("user not found: %w", apperror.ErrNotFound)

type AdminService interface {
	CreateUser(ctx context.Context, req dto.CreateUserRequest) (*userDto.UserResponse, error)
	ListUsers(ctx context.Context, page commonDto.Pagination) ([]userDto.UserResponse, error)
	GetUser(ctx context.Context, id uint) (*userDto.UserResponse, error)
	UpdateUser(ctx context.Context, id uint, req dto.UpdateUserRequest) (*userDto.UserResponse, error)
	// DeleteUser removes the account with its podcasts and live streams.
	DeleteUser(ctx context.Context, actor *entity.User, id uint) error
}

type adminService struct {
	users    userRepo.UserRepository
	podcasts podcastRepo.Repository
	streams  liveRepo.Repository
	assets   podcastService.Service
	meili    search.MeiliSearchService
	logger   *zap.Logger
}

func NewAdminService(
	users userRepo.UserRepository,
	podcasts podcastRepo.Repository,
	streams liveRepo.Repository,
	assets podcastService.Service,
	meili search.MeiliSearchService,
	logger *zap.Logger,
) AdminService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &adminService{
		users:    users,
		podcasts: podcasts,
		streams:  streams,
		assets:   assets,
		meili:    meili,
		logger:   logger,
	}
}

func (s *adminService) CreateUser(ctx context.Context, req dto.CreateUserRequest) (*userDto.UserResponse, error) {
	role := entity.RoleUser
	if req.Role != "" {
		parsed, err := entity.ParseRole(req.Role)
		if err != nil {
			return nil, err
		}
		role = parsed
	}

	username := strings.TrimSpace(req.Username)
	email := strings.ToLower(strings.TrimSpace(req.Email))
	if err := userService.CheckAvailability(ctx, s.users, username, email, 0); err != nil {
		if errors.Is(err, userService.ErrUsernameTaken) || errors.Is(err, userService.ErrEmailTaken) {
			return nil, fmt.Errorf("%w: %w", err, apperror.ErrConflict)
		}
		return nil, err
	}

	hash, err := password.Hash(req.Password)
	if err != nil {
		if errors.Is(err, password.ErrTooLong) {
			return nil, fmt.Errorf("%w: %w", err, apperror.ErrInvalidInput)
		}
		return nil, err
	}

	active := true
	if req.IsActive != nil {
		active = *req.IsActive
	}

	user := &entity.User{
		Username:     username,
		Email:        email,
		PasswordHash: hash,
		IsActive:     active,
		Role:         role,
	}
	if err := s.users.Create(ctx, user); err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, fmt.Errorf("username or email already registered: %w", apperror.ErrConflict)
		}
		return nil, err
	}

	s.logger.Info("user created by admin", zap.Uint("user_id", user.ID), zap.String("role", string(role)))

	resp := userDto.NewUserResponse(user)
	return &resp, nil
}

func (s *adminService) ListUsers(ctx context.Context, page commonDto.Pagination) ([]userDto.UserResponse, error) {
	page = page.Normalize()
	users, err := s.users.FindAll(ctx, page.Skip, page.Limit)
	if err != nil {
		return nil, err
	}

	out := make([]userDto.UserResponse, 0, len(users))
	for _, u := range users {
		out = append(out, userDto.NewUserResponse(u))
	}
	return out, nil
}

func (s *adminService) GetUser(ctx context.Context, id uint) (*userDto.UserResponse, error) {
	user, err := s.find(ctx, id)
	if err != nil {
		return nil, err
	}
	resp := userDto.NewUserResponse(user)
	return &resp, nil
}

func (s *adminService) UpdateUser(ctx context.Context, id uint, req dto.UpdateUserRequest) (*userDto.UserResponse, error) {
	user, err := s.find(ctx, id)
	if err != nil {
		return nil, err
	}

	role, err := resolveRole(user.Role, req.Role, req.IsAdmin)
	if err != nil {
		return nil, err
	}

	if err := userService.ApplyAccountChanges(ctx, s.users, user, req.Username, req.Email, req.Password); err != nil {
		return nil, err
	}
	user.Role = role
	if req.IsActive != nil {
		user.IsActive = *req.IsActive
	}

	if err := s.users.Update(ctx, user); err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, fmt.Errorf("username or email already registered: %w", apperror.ErrConflict)
		}
		return nil, err
	}

	resp := userDto.NewUserResponse(user)
	return &resp, nil
}

func (s *adminService) DeleteUser(ctx context.Context, actor *entity.User, id uint) error {
	if actor != nil && actor.ID == id {
		return fmt.Errorf("admins cannot delete their own account: %w", apperror.ErrBadRequest)
	}
	if _, err := s.find(ctx, id); err != nil {
		return err
	}

	podcasts, err := s.podcasts.FindByOwner(ctx, id)
	if err != nil {
		return err
	}
	streams, err := s.streams.FindByHost(ctx, id)
	if err != nil {
		return err
	}

	if err := s.users.DeleteCascade(ctx, id); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return errUserNotFound
		}
		return err
	}

	// records are gone; files and index entries are best-effort
	s.assets.RemoveAssets(ctx, podcasts)
	if s.meili != nil {
		for _, st := range streams {
			if err := s.meili.DeleteLiveStream(st.ID); err != nil {
				s.logger.Warn("failed to remove live stream from search index", zap.Uint("stream_id", st.ID), zap.Error(err))
			}
		}
	}

	s.logger.Info("user deleted",
		zap.Uint("user_id", id),
		zap.Int("podcasts", len(podcasts)),
		zap.Int("live_streams", len(streams)),
	)
	return nil
}

func (s *adminService) find(ctx context.Context, id uint) (*entity.User, error) {
	user, err := s.users.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errUserNotFound
		}
		return nil, err
	}
	return user, nil
}

// resolveRole merges the role and legacy is_admin fields into one role.
func resolveRole(current entity.Role, role *string, isAdmin *bool) (entity.Role, error) {
	next := current
	if role != nil {
		parsed, err := entity.ParseRole(*role)
		if err != nil {
			return "", err
		}
		next = parsed
	}

	if isAdmin != nil {
		switch {
		case *isAdmin && role == nil:
			next = entity.RoleAdmin
		case !*isAdmin && role == nil && next == entity.RoleAdmin:
			next = entity.RoleUser
		case *isAdmin != (next == entity.RoleAdmin):
			return "", fmt.Errorf("is_admin contradicts role %q: %w", next, apperror.ErrInvalidInput)
		}
	}
	return next, nil
}
