package middleware

import (
	"net/http"
	"strings"
)

type ValidationConfig struct {
	ExcludedPaths []string
	BucketAccess  map[string]string
	AvatarBucket  string
}

// WithValidation rejects requests for buckets that are not configured, and
// methods the bucket's access level does not grant.
func WithValidation(config ValidationConfig) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			for _, path := range config.ExcludedPaths {
				if strings.HasPrefix(r.URL.Path, path) {
					next.ServeHTTP(w, r)
					return
				}
			}

			bucketName, ok := bucketFromPath(r.URL.Path, config.AvatarBucket)
			if !ok {
				next.ServeHTTP(w, r)
				return
			}

			if policy, exists := config.BucketAccess[bucketName]; exists {
				if levelAllows(policy, r.Method) {
					next.ServeHTTP(w, r)
					return
				}
				http.Error(w, "access denied", http.StatusForbidden)
				return
			}

			http.Error(w, "bucket access not configured", http.StatusForbidden)
		})
	}
}

func levelAllows(level, method string) bool {
	switch method {
	case http.MethodGet, http.MethodHead:
		return level == "read" || level == "all"
	case http.MethodPut, http.MethodDelete:
		return level == "write" || level == "all"
	}
	return false
}
