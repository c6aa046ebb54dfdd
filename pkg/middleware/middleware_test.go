package middleware

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRequireUser(t *testing.T) {
	var seenUser string
	var seenAdmin bool
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seenUser = UserID(r.Context())
		seenAdmin = IsAdmin(r.Context())
		w.WriteHeader(http.StatusNoContent)
	})

	t.Run("Missing Header", func(t *testing.T) {
		rr := httptest.NewRecorder()
		RequireUser(next).ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/", nil))

		assert.Equal(t, http.StatusUnauthorized, rr.Code)
	})

	t.Run("User", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set(UserIDHeader, "user-1")
		rr := httptest.NewRecorder()
		RequireUser(next).ServeHTTP(rr, req)

		assert.Equal(t, http.StatusNoContent, rr.Code)
		assert.Equal(t, "user-1", seenUser)
		assert.False(t, seenAdmin)
	})

	t.Run("Admin", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set(UserIDHeader, "ops-1")
		req.Header.Set(UserRolesHeader, "support, Admin")
		rr := httptest.NewRecorder()
		RequireUser(RequireAdmin(next)).ServeHTTP(rr, req)

		assert.Equal(t, http.StatusNoContent, rr.Code)
		assert.True(t, seenAdmin)
	})

	t.Run("Admin Required", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set(UserIDHeader, "user-1")
		rr := httptest.NewRecorder()
		RequireUser(RequireAdmin(next)).ServeHTTP(rr, req)

		assert.Equal(t, http.StatusForbidden, rr.Code)
	})
}

func TestStructuredLogger(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, nil))
	h := NewStructuredLogger(logger)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
		_, _ = w.Write([]byte("short and stout"))
	}))

	req := httptest.NewRequest(http.MethodPost, "/wallets", nil)
	req.Header.Set(UserIDHeader, "user-1")
	h.ServeHTTP(httptest.NewRecorder(), req)

	var line struct {
		Level   string `json:"level"`
		Msg     string `json:"msg"`
		Request struct {
			Method string `json:"method"`
			Path   string `json:"path"`
			UserID string `json:"user_id"`
		} `json:"request"`
		Response struct {
			Status int `json:"status"`
			Bytes  int `json:"bytes"`
		} `json:"response"`
	}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, "WARN", line.Level)
	assert.Equal(t, "request failed", line.Msg)
	assert.Equal(t, "/wallets", line.Request.Path)
	assert.Equal(t, "user-1", line.Request.UserID)
	assert.Equal(t, http.StatusTeapot, line.Response.Status)
	assert.Equal(t, 15, line.Response.Bytes)
}
