package middleware

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSignatureHandler(t *testing.T) {
	const key = "whsec_test"
	body := `{"status":"succeeded"}`

	var reachedBody string
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		b, _ := io.ReadAll(r.Body)
		reachedBody = string(b)
		w.WriteHeader(http.StatusOK)
	})
	h := SignatureHandler(key)(next)

	t.Run("valid signature", func(t *testing.T) {
		mac := hmac.New(sha256.New, []byte(key))
		mac.Write([]byte(body))
		sig := hex.EncodeToString(mac.Sum(nil))

		req := httptest.NewRequest(http.MethodPut, "/api/payments/1/status", strings.NewReader(body))
		req.Header.Set("X-Signature", sig)
		w := httptest.NewRecorder()

		h.ServeHTTP(w, req)

		assert.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, body, reachedBody, "body must be replayable for the handler")
	})

	t.Run("wrong signature", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPut, "/api/payments/1/status", strings.NewReader(body))
		req.Header.Set("X-Signature", "deadbeef")
		w := httptest.NewRecorder()

		h.ServeHTTP(w, req)

		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})

	t.Run("missing signature", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPut, "/api/payments/1/status", strings.NewReader(body))
		w := httptest.NewRecorder()

		h.ServeHTTP(w, req)

		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})

	t.Run("empty key disables verification", func(t *testing.T) {
		open := SignatureHandler("")(next)
		req := httptest.NewRequest(http.MethodPut, "/api/payments/1/status", strings.NewReader(body))
		w := httptest.NewRecorder()

		open.ServeHTTP(w, req)

		assert.Equal(t, http.StatusOK, w.Code)
	})
}

func TestAdminOnly(t *testing.T) {
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	h := AdminOnly(next)

	t.Run("admin passes", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/orders/admin", nil)
		req = req.WithContext(ContextWithIdentity(req.Context(), Identity{UserID: 1, IsAdmin: true}))
		w := httptest.NewRecorder()

		h.ServeHTTP(w, req)
		assert.Equal(t, http.StatusOK, w.Code)
	})

	t.Run("non-admin rejected", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/orders/admin", nil)
		req = req.WithContext(ContextWithIdentity(req.Context(), Identity{UserID: 1}))
		w := httptest.NewRecorder()

		h.ServeHTTP(w, req)
		assert.Equal(t, http.StatusForbidden, w.Code)
	})

	t.Run("anonymous rejected", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/orders/admin", nil)
		w := httptest.NewRecorder()

		h.ServeHTTP(w, req)
		assert.Equal(t, http.StatusForbidden, w.Code)
	})
}
