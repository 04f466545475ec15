package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/agamariel/canteen/internal/models"
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
)

func TestJWTMiddleware(t *testing.T) {
	secret := "test-secret"
	user := &models.User{
		ID:    uuid.New(),
		Login: "parent@example.com",
	}

	validToken, _ := GenerateToken(user, secret, time.Hour)
	expiredToken, _ := GenerateToken(user, secret, -time.Hour)

	tests := []struct {
		name           string
		authHeader     string
		expectedStatus int
		checkContext   bool
	}{
		{
			name:           "valid token",
			authHeader:     "Bearer " + validToken,
			expectedStatus: http.StatusOK,
			checkContext:   true,
		},
		{
			name:           "missing token",
			authHeader:     "",
			expectedStatus: http.StatusUnauthorized,
		},
		{
			name:           "invalid token",
			authHeader:     "Bearer invalid.token.here",
			expectedStatus: http.StatusUnauthorized,
		},
		{
			name:           "expired token",
			authHeader:     "Bearer " + expiredToken,
			expectedStatus: http.StatusUnauthorized,
		},
		{
			name:           "malformed bearer prefix",
			authHeader:     "NotBearer " + validToken,
			expectedStatus: http.StatusUnauthorized,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := echo.New()
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			rec := httptest.NewRecorder()
			c := e.NewContext(req, rec)

			if tt.authHeader != "" {
				req.Header.Set("Authorization", tt.authHeader)
			}

			handler := func(c echo.Context) error {
				return c.String(http.StatusOK, "success")
			}

			h := JWTMiddleware(secret)(handler)
			err := h(c)

			if tt.expectedStatus == http.StatusOK {
				if err != nil {
					t.Errorf("Expected no error, got %v", err)
				}
			} else {
				if err == nil {
					t.Error("Expected error, got nil")
				}
				if he, ok := err.(*echo.HTTPError); ok {
					if he.Code != tt.expectedStatus {
						t.Errorf("Expected status %d, got %d", tt.expectedStatus, he.Code)
					}
				}
			}

			if tt.checkContext {
				userID, ok := c.Get(string(UserIDKey)).(uuid.UUID)
				if !ok {
					t.Error("UserID not found in context")
				}
				if userID != user.ID {
					t.Errorf("UserID mismatch: got %v, want %v", userID, user.ID)
				}

				login, ok := c.Get(string(UserLoginKey)).(string)
				if !ok {
					t.Error("Login not found in context")
				}
				if login != user.Login {
					t.Errorf("Login mismatch: got %v, want %v", login, user.Login)
				}
			}
		})
	}
}

func TestGetUserIDFromContext(t *testing.T) {
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()

	userID := uuid.New()

	tests := []struct {
		name    string
		setup   func(c echo.Context)
		wantErr bool
	}{
		{
			name: "valid user ID in context",
			setup: func(c echo.Context) {
				c.Set(string(UserIDKey), userID)
			},
			wantErr: false,
		},
		{
			name:    "no user ID in context",
			setup:   func(c echo.Context) {},
			wantErr: true,
		},
		{
			name: "wrong type in context",
			setup: func(c echo.Context) {
				c.Set(string(UserIDKey), "not-a-uuid")
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := e.NewContext(req, rec)
			tt.setup(c)

			got, err := GetUserIDFromContext(c)
			if (err != nil) != tt.wantErr {
				t.Errorf("GetUserIDFromContext() error = %v, wantErr %v", err, tt.wantErr)
				return
			}
			if !tt.wantErr && got != userID {
				t.Errorf("GetUserIDFromContext() = %v, want %v", got, userID)
			}
		})
	}
}

func TestExtractTokenFromHeader(t *testing.T) {
	e := echo.New()

	tests := []struct {
		name   string
		header string
		want   string
	}{
		{
			name:   "valid bearer token",
			header: "Bearer eyJhbGciOiJIUzI1NiIsInR5cCI6IkpXVCJ9",
			want:   "eyJhbGciOiJIUzI1NiIsInR5cCI6IkpXVCJ9",
		},
		{
			name:   "bearer lowercase",
			header: "bearer token123",
			want:   "token123",
		},
		{
			name:   "no bearer prefix",
			header: "token123",
			want:   "",
		},
		{
			name:   "empty header",
			header: "",
			want:   "",
		},
		{
			name:   "only bearer",
			header: "Bearer",
			want:   "",
		},
		{
			name:   "extra spaces",
			header: "Bearer  token123",
			want:   "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			rec := httptest.NewRecorder()
			c := e.NewContext(req, rec)

			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}

			got := extractTokenFromHeader(c)
			if got != tt.want {
				t.Errorf("extractTokenFromHeader() = %v, want %v", got, tt.want)
			}
		})
	}
}
