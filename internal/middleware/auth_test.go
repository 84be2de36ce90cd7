package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"crawford.app/podcastserver/internal/entity"
	"crawford.app/podcastserver/pkg/token"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

type mockUserRepo struct {
	users map[uint]*entity.User
}

func (m *mockUserRepo) Create(ctx context.Context, user *entity.User) error { return nil }

func (m *mockUserRepo) FindByID(ctx context.Context, id uint) (*entity.User, error) {
	u, ok := m.users[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	clone := *u
	return &clone, nil
}

func (m *mockUserRepo) FindByUsername(ctx context.Context, username string) (*entity.User, error) {
	return nil, gorm.ErrRecordNotFound
}

func (m *mockUserRepo) FindByEmail(ctx context.Context, email string) (*entity.User, error) {
	return nil, gorm.ErrRecordNotFound
}

func (m *mockUserRepo) FindAll(ctx context.Context, offset, limit int) ([]*entity.User, error) {
	return nil, nil
}

func (m *mockUserRepo) Update(ctx context.Context, user *entity.User) error { return nil }

func (m *mockUserRepo) DeleteCascade(ctx context.Context, id uint) error { return nil }

func setupRouter(t *testing.T, repo *mockUserRepo) (*gin.Engine, *token.Manager) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	tokens, err := token.NewManager("middleware-secret", time.Hour)
	require.NoError(t, err)

	m := NewAuthMiddleware(repo, tokens)
	r := gin.New()

	ok := func(c *gin.Context) {
		user, err := CurrentUser(c)
		require.NoError(t, err)
		c.JSON(http.StatusOK, gin.H{"role": user.Role})
	}

	authed := r.Group("/", m.RequireAuth())
	authed.GET("/me", ok)
	authed.POST("/publish", m.RequireLecturerOrAdmin(), ok)
	authed.GET("/admin", m.RequireAdmin(), ok)

	return r, tokens
}

func issue(t *testing.T, tokens *token.Manager, u *entity.User) string {
	t.Helper()
	signed, _, err := tokens.Issue(token.Identity{
		UserID:   u.ID,
		Username: u.Username,
		Email:    u.Email,
		Role:     string(u.Role),
		IsAdmin:  u.IsAdmin(),
	})
	require.NoError(t, err)
	return signed
}

func TestRequireAuth(t *testing.T) {
	alice := &entity.User{ID: 1, Username: "alice", Email: "a@x.com", Role: entity.RoleLecturer, IsActive: true}
	repo := &mockUserRepo{users: map[uint]*entity.User{1: alice}}
	r, tokens := setupRouter(t, repo)
	valid := issue(t, tokens, alice)

	ghost := issue(t, tokens, &entity.User{ID: 99, Username: "ghost", Role: entity.RoleUser})
	renamed := issue(t, tokens, &entity.User{ID: 1, Username: "old-alice", Role: entity.RoleLecturer})

	tests := []struct {
		name       string
		header     string
		wantStatus int
	}{
		{name: "no header", header: "", wantStatus: http.StatusUnauthorized},
		{name: "wrong scheme", header: "Basic " + valid, wantStatus: http.StatusUnauthorized},
		{name: "garbage token", header: "Bearer abc", wantStatus: http.StatusUnauthorized},
		{name: "deleted user", header: "Bearer " + ghost, wantStatus: http.StatusUnauthorized},
		{name: "subject mismatch", header: "Bearer " + renamed, wantStatus: http.StatusUnauthorized},
		{name: "valid", header: "Bearer " + valid, wantStatus: http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/me", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			w := httptest.NewRecorder()
			r.ServeHTTP(w, req)

			assert.Equal(t, tt.wantStatus, w.Code)
			if tt.wantStatus == http.StatusUnauthorized {
				assert.Equal(t, "Bearer", w.Header().Get("WWW-Authenticate"))
			}
		})
	}
}

func TestRequireAuth_InactiveUser(t *testing.T) {
	bob := &entity.User{ID: 2, Username: "bob", Role: entity.RoleUser, IsActive: true}
	repo := &mockUserRepo{users: map[uint]*entity.User{2: bob}}
	r, tokens := setupRouter(t, repo)
	signed := issue(t, tokens, bob)

	bob.IsActive = false

	req := httptest.NewRequest(http.MethodGet, "/me", nil)
	req.Header.Set("Authorization", "Bearer "+signed)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.JSONEq(t, `{"error":"inactive user: unauthorized"}`, w.Body.String())
}

func TestRoleGates_UseStoredRole(t *testing.T) {
	carol := &entity.User{ID: 3, Username: "carol", Role: entity.RoleAdmin, IsActive: true}
	dave := &entity.User{ID: 4, Username: "dave", Role: entity.RoleUser, IsActive: true}
	repo := &mockUserRepo{users: map[uint]*entity.User{3: carol, 4: dave}}
	r, tokens := setupRouter(t, repo)

	adminToken := issue(t, tokens, carol)
	userToken := issue(t, tokens, dave)

	// carol is demoted and dave promoted after their tokens were issued
	carol.Role = entity.RoleUser
	dave.Role = entity.RoleLecturer

	tests := []struct {
		name       string
		method     string
		path       string
		token      string
		wantStatus int
	}{
		{name: "demoted admin loses admin route", method: http.MethodGet, path: "/admin", token: adminToken, wantStatus: http.StatusForbidden},
		{name: "demoted admin loses publish route", method: http.MethodPost, path: "/publish", token: adminToken, wantStatus: http.StatusForbidden},
		{name: "promoted user gains publish route", method: http.MethodPost, path: "/publish", token: userToken, wantStatus: http.StatusOK},
		{name: "promoted user still not admin", method: http.MethodGet, path: "/admin", token: userToken, wantStatus: http.StatusForbidden},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(tt.method, tt.path, nil)
			req.Header.Set("Authorization", "Bearer "+tt.token)
			w := httptest.NewRecorder()
			r.ServeHTTP(w, req)

			assert.Equal(t, tt.wantStatus, w.Code)
		})
	}
}

func TestCurrentUser_Missing(t *testing.T) {
	c, _ := gin.CreateTestContext(httptest.NewRecorder())
	_, err := CurrentUser(c)
	assert.Error(t, err)
}
