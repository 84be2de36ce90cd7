package middleware

import (
	"errors"
	"fmt"

	"crawford.app/podcastserver/internal/entity"
	userRepo "crawford.app/podcastserver/internal/modules/user/repository"
	"crawford.app/podcastserver/pkg/apperror"
	"crawford.app/podcastserver/pkg/response"
	"crawford.app/podcastserver/pkg/token"
	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

const userContextKey = "user"

var (
	errUserGone     = fmt.Errorf("could not validate credentials: %w", apperror.ErrUnauthorized)
	errInactiveUser = fmt.Errorf("inactive user: %w", apperror.ErrUnauthorized)
)

type AuthMiddleware struct {
	userRepo userRepo.UserRepository
	tokens   *token.Manager
}

func NewAuthMiddleware(userRepo userRepo.UserRepository, tokens *token.Manager) *AuthMiddleware {
	return &AuthMiddleware{
		userRepo: userRepo,
		tokens:   tokens,
	}
}

// RequireAuth verifies the bearer token and loads the current user record.
// Role and active status always come from the database, not from the token.
func (m *AuthMiddleware) RequireAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		tokenString, err := token.FromHeader(c.GetHeader("Authorization"))
		if err != nil {
			abort(c, err)
			return
		}

		claims, err := m.tokens.Verify(tokenString)
		if err != nil {
			abort(c, err)
			return
		}

		user, err := m.userRepo.FindByID(c.Request.Context(), claims.UserID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				abort(c, errUserGone)
				return
			}
			abort(c, err)
			return
		}

		// a renamed account invalidates tokens issued under the old name
		if user.Username != claims.Subject {
			abort(c, errUserGone)
			return
		}
		if !user.IsActive {
			abort(c, errInactiveUser)
			return
		}

		c.Set("user_id", user.ID)
		c.Set(userContextKey, user)
		c.Next()
	}
}

// RequireLecturerOrAdmin must run after RequireAuth.
func (m *AuthMiddleware) RequireLecturerOrAdmin() gin.HandlerFunc {
	return func(c *gin.Context) {
		user, err := CurrentUser(c)
		if err != nil {
			abort(c, err)
			return
		}
		if !user.Role.CanPublish() {
			abort(c, fmt.Errorf("lecturer or admin role required: %w", apperror.ErrForbidden))
			return
		}
		c.Next()
	}
}

// RequireAdmin must run after RequireAuth.
func (m *AuthMiddleware) RequireAdmin() gin.HandlerFunc {
	return func(c *gin.Context) {
		user, err := CurrentUser(c)
		if err != nil {
			abort(c, err)
			return
		}
		if !user.IsAdmin() {
			abort(c, fmt.Errorf("admin access required: %w", apperror.ErrForbidden))
			return
		}
		c.Next()
	}
}

// CurrentUser returns the user loaded by RequireAuth.
func CurrentUser(c *gin.Context) (*entity.User, error) {
	value, exists := c.Get(userContextKey)
	if !exists {
		return nil, fmt.Errorf("user not authenticated: %w", apperror.ErrUnauthorized)
	}
	user, ok := value.(*entity.User)
	if !ok || user == nil {
		return nil, fmt.Errorf("user not authenticated: %w", apperror.ErrUnauthorized)
	}
	return user, nil
}

func abort(c *gin.Context, err error) {
	response.ResponseError(c, err)
	c.Abort()
}
