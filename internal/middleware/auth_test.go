package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"github.com/aiwendy/roundtable/internal/config"
	"github.com/aiwendy/roundtable/internal/modules/model"
	"github.com/aiwendy/roundtable/internal/modules/repo"
	"github.com/aiwendy/roundtable/internal/pkg/utils/tokens"
)

// MockUserRepo is a mock implementation of repo.UserRepo
type MockUserRepo struct {
	mock.Mock
}

func (m *MockUserRepo) Create(ctx context.Context, u *model.User) error {
	args := m.Called(ctx, u)
	return args.Error(0)
}

func (m *MockUserRepo) GetByIdentifier(ctx context.Context, identifier string) (*model.User, error) {
	args := m.Called(ctx, identifier)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.User), args.Error(1)
}

func (m *MockUserRepo) GetBySecretKeyHMAC(ctx context.Context, hmac string) (*model.User, error) {
	args := m.Called(ctx, hmac)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.User), args.Error(1)
}

func authTestConfig() *config.Config {
	return &config.Config{
		Auth: config.AuthConfig{
			BearerTokenPrefix: "sk_user_",
			SecretPepper:      "pepper",
		},
	}
}

func authTestRouter(users repo.UserRepo) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(UserAuth(authTestConfig(), users))
	r.GET("/me", func(c *gin.Context) {
		user, ok := CurrentUser(c)
		if !ok {
			c.JSON(http.StatusInternalServerError, gin.H{"msg": "no user in context"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"id": user.ID.String()})
	})
	return r
}

func TestUserAuth_ValidToken(t *testing.T) {
	users := &MockUserRepo{}
	userID := uuid.New()
	wantHMAC := tokens.HMAC256Hex("pepper", "abc123")
	users.On("GetBySecretKeyHMAC", mock.Anything, wantHMAC).
		Return(&model.User{ID: userID, SecretKeyHMAC: wantHMAC}, nil)

	req := httptest.NewRequest(http.MethodGet, "/me", nil)
	req.Header.Set("Authorization", "Bearer sk_user_abc123")
	w := httptest.NewRecorder()
	authTestRouter(users).ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), userID.String())
	users.AssertExpectations(t)
}

func TestUserAuth_RejectsMalformedHeaders(t *testing.T) {
	users := &MockUserRepo{}
	r := authTestRouter(users)

	tests := []struct {
		name   string
		header string
	}{
		{"missing header", ""},
		{"not bearer", "Basic sk_user_abc123"},
		{"wrong token prefix", "Bearer tok_abc123"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/me", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			w := httptest.NewRecorder()
			r.ServeHTTP(w, req)
			assert.Equal(t, http.StatusUnauthorized, w.Code)
		})
	}
	users.AssertNotCalled(t, "GetBySecretKeyHMAC", mock.Anything, mock.Anything)
}

func TestUserAuth_UnknownToken(t *testing.T) {
	users := &MockUserRepo{}
	users.On("GetBySecretKeyHMAC", mock.Anything, mock.Anything).
		Return(nil, repo.ErrUserNotFound)

	req := httptest.NewRequest(http.MethodGet, "/me", nil)
	req.Header.Set("Authorization", "Bearer sk_user_unknown")
	w := httptest.NewRecorder()
	authTestRouter(users).ServeHTTP(w, req)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestUserAuth_RepoError(t *testing.T) {
	users := &MockUserRepo{}
	users.On("GetBySecretKeyHMAC", mock.Anything, mock.Anything).
		Return(nil, errors.New("connection refused"))

	req := httptest.NewRequest(http.MethodGet, "/me", nil)
	req.Header.Set("Authorization", "Bearer sk_user_abc123")
	w := httptest.NewRecorder()
	authTestRouter(users).ServeHTTP(w, req)

	assert.Equal(t, http.StatusInternalServerError, w.Code)
}
