package handler

import (
	"bytes"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"vehicle-auction/internal/auctionerrors"
	model "vehicle-auction/internal/models"
	"vehicle-auction/services/auction/dto"
	"vehicle-auction/services/auction/helpers"

	"github.com/gin-gonic/gin"
	"github.com/golang/mock/gomock"
	"github.com/stretchr/testify/require"
)

// withUser stands in for the session middleware
func withUser(user *model.User) gin.HandlerFunc {
	return func(c *gin.Context) {
		if user != nil {
			helpers.SetCurrentUser(c, *user)
		}
		c.Next()
	}
}

func encodeBody(t *testing.T, body any) []byte {
	t.Helper()
	if s, ok := body.(string); ok {
		return []byte(s)
	}
	raw, err := json.Marshal(body)
	require.NoError(t, err)
	return raw
}

func doRequest(router http.Handler, method, path string, body []byte, cookies ...*http.Cookie) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	for _, ck := range cookies {
		req.AddCookie(ck)
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func decodeEnvelope(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var resp map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	return resp
}

func TestLoginHandler(t *testing.T) {
	gin.SetMode(gin.TestMode)

	alice := model.User{ID: "u1", Username: "alice", Email: "alice@example.com", Role: model.RoleBidder, Balance: 1000}

	tests := []struct {
		name           string
		requestBody    any
		mockSetup      func(m *MockSessionServiceInterface)
		expectedStatus int
		expectedMsg    string
		expectCookie   bool
	}{
		{
			name:        "success",
			requestBody: dto.LoginRequest{Username: "alice", Password: "secret1"},
			mockSetup: func(m *MockSessionServiceInterface) {
				m.EXPECT().Login(gomock.Any(), "alice", "secret1").Return(alice, "token-1", nil)
			},
			expectedStatus: http.StatusOK,
			expectedMsg:    "login successful",
			expectCookie:   true,
		},
		{
			name:        "wrong_password",
			requestBody: dto.LoginRequest{Username: "alice", Password: "nope"},
			mockSetup: func(m *MockSessionServiceInterface) {
				m.EXPECT().Login(gomock.Any(), "alice", "nope").Return(model.User{}, "", auctionerrors.ErrInvalidCredentials)
			},
			expectedStatus: http.StatusUnauthorized,
			expectedMsg:    "invalid username or password",
		},
		{
			name:           "invalid_json",
			requestBody:    `{invalid json}`,
			mockSetup:      func(m *MockSessionServiceInterface) {},
			expectedStatus: http.StatusBadRequest,
			expectedMsg:    "invalid request payload",
		},
		{
			name:           "missing_password",
			requestBody:    dto.LoginRequest{Username: "alice"},
			mockSetup:      func(m *MockSessionServiceInterface) {},
			expectedStatus: http.StatusBadRequest,
			expectedMsg:    "invalid request payload",
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			ctrl := gomock.NewController(t)
			mockService := NewMockSessionServiceInterface(ctrl)
			tc.mockSetup(mockService)

			router := gin.New()
			router.POST("/api/login", NewAuthHandler(mockService, time.Hour, false).LoginHandler)

			w := doRequest(router, http.MethodPost, "/api/login", encodeBody(t, tc.requestBody))
			require.Equal(t, tc.expectedStatus, w.Code)
			resp := decodeEnvelope(t, w)
			require.Contains(t, resp["message"], tc.expectedMsg)

			cookies := w.Result().Cookies()
			if !tc.expectCookie {
				require.Empty(t, cookies)
				return
			}
			require.Len(t, cookies, 1)
			require.Equal(t, helpers.SessionCookie, cookies[0].Name)
			require.Equal(t, "token-1", cookies[0].Value)
			require.True(t, cookies[0].HttpOnly)
			require.Equal(t, http.SameSiteLaxMode, cookies[0].SameSite)

			data := resp["data"].(map[string]any)
			require.Equal(t, "token-1", data["token"])
			require.Equal(t, "alice", data["user"].(map[string]any)["username"])
		})
	}
}

func TestRegisterHandler(t *testing.T) {
	gin.SetMode(gin.TestMode)

	tests := []struct {
		name           string
		requestBody    any
		mockSetup      func(m *MockSessionServiceInterface)
		expectedStatus int
		expectedMsg    string
	}{
		{
			name:        "success",
			requestBody: dto.RegisterRequest{Username: "carol", Password: "secret1", Email: "carol@example.com"},
			mockSetup: func(m *MockSessionServiceInterface) {
				m.EXPECT().Register(gomock.Any(), "carol", "carol@example.com", "secret1").
					Return(model.User{ID: "u3", Username: "carol", Email: "carol@example.com", Role: model.RoleBidder}, nil)
			},
			expectedStatus: http.StatusOK,
			expectedMsg:    "registration successful",
		},
		{
			name:        "duplicate_username",
			requestBody: dto.RegisterRequest{Username: "alice", Password: "secret1", Email: "a2@example.com"},
			mockSetup: func(m *MockSessionServiceInterface) {
				m.EXPECT().Register(gomock.Any(), "alice", "a2@example.com", "secret1").
					Return(model.User{}, auctionerrors.ErrDuplicateUsername)
			},
			expectedStatus: http.StatusConflict,
			expectedMsg:    "username already exists",
		},
		{
			name:        "invalid_email",
			requestBody: dto.RegisterRequest{Username: "dave", Password: "secret1", Email: "not-an-email"},
			mockSetup: func(m *MockSessionServiceInterface) {
				m.EXPECT().Register(gomock.Any(), "dave", "not-an-email", "secret1").
					Return(model.User{}, auctionerrors.ErrInvalidEmail)
			},
			expectedStatus: http.StatusBadRequest,
			expectedMsg:    "invalid email",
		},
		{
			name:           "missing_email",
			requestBody:    dto.RegisterRequest{Username: "dave", Password: "secret1"},
			mockSetup:      func(m *MockSessionServiceInterface) {},
			expectedStatus: http.StatusBadRequest,
			expectedMsg:    "invalid request payload",
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			ctrl := gomock.NewController(t)
			mockService := NewMockSessionServiceInterface(ctrl)
			tc.mockSetup(mockService)

			router := gin.New()
			router.POST("/api/register", NewAuthHandler(mockService, time.Hour, false).RegisterHandler)

			w := doRequest(router, http.MethodPost, "/api/register", encodeBody(t, tc.requestBody))
			require.Equal(t, tc.expectedStatus, w.Code)
			require.Contains(t, decodeEnvelope(t, w)["message"], tc.expectedMsg)
			require.Empty(t, w.Result().Cookies(), "registration must not log the user in")
		})
	}
}

func TestLogoutHandler(t *testing.T) {
	gin.SetMode(gin.TestMode)

	t.Run("clears_cookie", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		mockService := NewMockSessionServiceInterface(ctrl)
		mockService.EXPECT().Logout(gomock.Any(), "token-1").Return(nil)

		router := gin.New()
		router.POST("/api/logout", NewAuthHandler(mockService, time.Hour, false).LogoutHandler)

		w := doRequest(router, http.MethodPost, "/api/logout", nil, &http.Cookie{Name: helpers.SessionCookie, Value: "token-1"})
		require.Equal(t, http.StatusOK, w.Code)

		cookies := w.Result().Cookies()
		require.Len(t, cookies, 1)
		require.Equal(t, helpers.SessionCookie, cookies[0].Name)
		require.Empty(t, cookies[0].Value)
		require.Less(t, cookies[0].MaxAge, 0)
	})

	t.Run("without_session", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		mockService := NewMockSessionServiceInterface(ctrl)
		mockService.EXPECT().Logout(gomock.Any(), "").Return(nil)

		router := gin.New()
		router.POST("/api/logout", NewAuthHandler(mockService, time.Hour, false).LogoutHandler)

		w := doRequest(router, http.MethodPost, "/api/logout", nil)
		require.Equal(t, http.StatusOK, w.Code)
	})

	t.Run("store_failure", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		mockService := NewMockSessionServiceInterface(ctrl)
		mockService.EXPECT().Logout(gomock.Any(), "token-1").Return(errors.New("redis down"))

		router := gin.New()
		router.POST("/api/logout", NewAuthHandler(mockService, time.Hour, false).LogoutHandler)

		w := doRequest(router, http.MethodPost, "/api/logout", nil, &http.Cookie{Name: helpers.SessionCookie, Value: "token-1"})
		require.Equal(t, http.StatusInternalServerError, w.Code)
	})
}

func TestCheckAuthHandler(t *testing.T) {
	gin.SetMode(gin.TestMode)

	alice := model.User{ID: "u1", Username: "alice", Role: model.RoleBidder}

	tests := []struct {
		name           string
		user           *model.User
		expectedStatus int
		authenticated  bool
	}{
		{name: "authenticated", user: &alice, expectedStatus: http.StatusOK, authenticated: true},
		{name: "anonymous", user: nil, expectedStatus: http.StatusUnauthorized, authenticated: false},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			ctrl := gomock.NewController(t)
			h := NewAuthHandler(NewMockSessionServiceInterface(ctrl), time.Hour, false)

			router := gin.New()
			router.GET("/api/check-auth", withUser(tc.user), h.CheckAuthHandler)

			w := doRequest(router, http.MethodGet, "/api/check-auth", nil)
			require.Equal(t, tc.expectedStatus, w.Code)

			data := decodeEnvelope(t, w)["data"].(map[string]any)
			require.Equal(t, tc.authenticated, data["authenticated"])
			if tc.authenticated {
				require.Equal(t, "alice", data["user"].(map[string]any)["username"])
			} else {
				require.NotContains(t, data, "user")
			}
		})
	}
}
