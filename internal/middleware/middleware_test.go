package middleware

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

var okHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
})

func serve(h http.Handler, method, path, remoteAddr string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, nil)
	if remoteAddr != "" {
		req.RemoteAddr = remoteAddr
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestBucketFromPath(t *testing.T) {
	tests := []struct {
		path   string
		bucket string
		ok     bool
	}{
		{"/signed/avatars/u1/avatar.jpg", "avatars", true},
		{"/signed/docs", "docs", true},
		{"/signed/", "", false},
		{"/signed", "", false},
		{"/avatars/8f14e45f", "profile", true},
		{"/health", "", false},
	}
	for _, tt := range tests {
		bucket, ok := bucketFromPath(tt.path, "profile")
		assert.Equal(t, tt.ok, ok, tt.path)
		assert.Equal(t, tt.bucket, bucket, tt.path)
	}
}

func TestWithValidation(t *testing.T) {
	h := WithValidation(ValidationConfig{
		ExcludedPaths: []string{"/health"},
		BucketAccess:  map[string]string{"avatars": "all", "public": "read", "drop": "write"},
		AvatarBucket:  "avatars",
	})(okHandler)

	tests := []struct {
		method string
		path   string
		want   int
	}{
		{http.MethodGet, "/health", http.StatusOK},
		{http.MethodGet, "/signed/avatars/u1/avatar.jpg", http.StatusOK},
		{http.MethodDelete, "/signed/avatars/u1/avatar.jpg", http.StatusOK},
		{http.MethodPut, "/avatars/u1", http.StatusOK},
		{http.MethodGet, "/signed/public/logo.png", http.StatusOK},
		{http.MethodDelete, "/signed/public/logo.png", http.StatusForbidden},
		{http.MethodGet, "/signed/drop/x", http.StatusForbidden},
		{http.MethodGet, "/signed/secret/x", http.StatusForbidden},
		{http.MethodDelete, "/signed", http.StatusOK},
	}
	for _, tt := range tests {
		rec := serve(h, tt.method, tt.path, "")
		assert.Equal(t, tt.want, rec.Code, "%s %s", tt.method, tt.path)
	}
}

func TestWithBucketAccessControl(t *testing.T) {
	policy := PolicyFromAccess(
		map[string]string{"avatars": "all", "public": "read"},
		map[string][]string{"avatars": {"10.0.", "::1"}, "public": {"192.168."}},
		"avatars",
	)
	assert.ElementsMatch(t, []string{"GET", "HEAD"}, policy.AllowedOperations["public"])

	h := WithBucketAccessControl(policy, zap.NewNop(), true)(okHandler)

	assert.Equal(t, http.StatusOK, serve(h, http.MethodGet, "/signed/avatars/a.jpg", "10.0.3.4:5555").Code)
	assert.Equal(t, http.StatusOK, serve(h, http.MethodGet, "/signed/avatars/a.jpg", "[::1]:5555").Code)
	assert.Equal(t, http.StatusForbidden, serve(h, http.MethodGet, "/signed/avatars/a.jpg", "172.16.0.1:5555").Code)
	assert.Equal(t, http.StatusForbidden, serve(h, http.MethodDelete, "/signed/public/a.jpg", "192.168.1.1:80").Code)
	assert.Equal(t, http.StatusOK, serve(h, http.MethodPut, "/avatars/u1", "10.0.0.9:1").Code)
	assert.Equal(t, http.StatusOK, serve(h, http.MethodGet, "/health", "8.8.8.8:1").Code)

	disabled := WithBucketAccessControl(policy, zap.NewNop(), false)(okHandler)
	assert.Equal(t, http.StatusOK, serve(disabled, http.MethodGet, "/signed/other/a.jpg", "8.8.8.8:1").Code)
}

func TestWithLogging(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	h := WithLogging(zap.New(core))(okHandler)

	serve(h, http.MethodGet, "/signed/avatars/a.jpg", "")

	entries := logs.FilterMessage("http request completed").All()
	if assert.Len(t, entries, 1) {
		fields := entries[0].ContextMap()
		assert.Equal(t, "/signed/avatars/a.jpg", fields["path"])
		assert.EqualValues(t, http.StatusOK, fields["status"])
		assert.EqualValues(t, 2, fields["size"])
	}
}

func TestMetrics(t *testing.T) {
	m := NewMetricsMiddleware("avatars")
	// a second instance shares the same series
	_ = NewMetricsMiddleware("avatars")

	h := Chain(okHandler, m.WithMetrics)
	serve(h, http.MethodGet, "/signed/avatars/a.jpg", "")

	rec := serve(m, http.MethodGet, "/metrics", "")
	body := rec.Body.String()
	assert.Contains(t, body, "http_requests_total")
	assert.Contains(t, body, `http_response_status_total{code="200"}`)
	assert.True(t, strings.Contains(body, "bucket_operations_total"))
}

func TestChainOrder(t *testing.T) {
	var order []string
	mark := func(name string) func(http.Handler) http.Handler {
		return func(next http.Handler) http.Handler {
			return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				order = append(order, name)
				next.ServeHTTP(w, r)
			})
		}
	}

	serve(Chain(okHandler, mark("inner"), mark("outer")), http.MethodGet, "/", "")
	assert.Equal(t, []string{"outer", "inner"}, order)
}
