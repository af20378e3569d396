package api

import (
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/illegalcall/weight-insights/internal/models"
)

func TestHandleLogin(t *testing.T) {
	server, _, _ := setupTestServer(t)

	tests := []struct {
		name           string
		reqBody        models.LoginRequest
		expectedStatus int
		checkResponse  func(*testing.T, *http.Response)
	}{
		{
			name:           "successful login",
			reqBody:        models.LoginRequest{Email: "user@example.com", Password: "password123"},
			expectedStatus: fiber.StatusOK,
			checkResponse: func(t *testing.T, resp *http.Response) {
				var result models.LoginResponse
				decode(t, resp, &result)

				assert.NotEmpty(t, result.Token)
				assert.Equal(t, "Bearer", result.TokenType)

				token, err := jwt.Parse(result.Token, func(token *jwt.Token) (interface{}, error) {
					return []byte(server.cfg.JWT.Secret), nil
				})
				require.NoError(t, err)
				assert.True(t, token.Valid)

				claims := token.Claims.(jwt.MapClaims)
				assert.Equal(t, "u1", claims["sub"])
				assert.Equal(t, "user@example.com", claims["email"])
				exp := int64(claims["exp"].(float64))
				assert.Greater(t, exp, time.Now().Unix())
			},
		},
		{
			name:           "invalid credentials",
			reqBody:        models.LoginRequest{Email: "user@example.com", Password: "wrong"},
			expectedStatus: fiber.StatusUnauthorized,
			checkResponse: func(t *testing.T, resp *http.Response) {
				var result map[string]string
				decode(t, resp, &result)
				assert.Equal(t, "Invalid credentials", result["error"])
			},
		},
		{
			name:           "missing credentials",
			reqBody:        models.LoginRequest{},
			expectedStatus: fiber.StatusBadRequest,
			checkResponse: func(t *testing.T, resp *http.Response) {
				var result map[string]string
				decode(t, resp, &result)
				assert.Equal(t, "Email and password are required", result["error"])
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, err := server.app.Test(newRequest(t, "POST", "/api/login", "", tt.reqBody))
			require.NoError(t, err)
			assert.Equal(t, tt.expectedStatus, resp.StatusCode)
			tt.checkResponse(t, resp)
		})
	}
}

func TestHandleLoginServiceError(t *testing.T) {
	server, _, _ := setupTestServer(t)
	server.auth = fakeAuth{err: errors.New("gotrue unreachable")}

	resp, err := server.app.Test(newRequest(t, "POST", "/api/login", "", models.LoginRequest{Email: "a@b.c", Password: "x"}))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusInternalServerError, resp.StatusCode)

	var result map[string]string
	decode(t, resp, &result)
	assert.Contains(t, result["error"], "gotrue unreachable")
}

func TestRequireAdmin(t *testing.T) {
	server, mock, _ := setupTestServer(t)

	mock.ExpectQuery("FROM profiles WHERE id").
		WithArgs("u1").
		WillReturnRows(profileRow{id: "u1", limit: 10}.rows())

	resp, err := server.app.Test(newRequest(t, "GET", "/api/admin/webhook-config", "u1", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusForbidden, resp.StatusCode)

	var result map[string]string
	decode(t, resp, &result)
	assert.Equal(t, "Administrator access is required.", result["error"])
	assert.NoError(t, mock.ExpectationsWereMet())
}
