package middleware

import (
	"net"
	"net/http"
	"slices"
	"strings"

	"go.uber.org/zap"
)

type BucketPolicy struct {
	AllowedOperations map[string][]string // bucket -> operations
	AllowedIPs        map[string][]string // bucket -> IP prefixes
	AvatarBucket      string
}

// PolicyFromAccess expands "read"/"write"/"all" access levels into the HTTP
// methods they grant.
func PolicyFromAccess(access map[string]string, ips map[string][]string, avatarBucket string) BucketPolicy {
	ops := make(map[string][]string, len(access))
	for bucket, level := range access {
		for _, method := range []string{http.MethodGet, http.MethodHead, http.MethodPut, http.MethodDelete} {
			if levelAllows(level, method) {
				ops[bucket] = append(ops[bucket], method)
			}
		}
	}
	return BucketPolicy{AllowedOperations: ops, AllowedIPs: ips, AvatarBucket: avatarBucket}
}

func WithBucketAccessControl(policy BucketPolicy, logger *zap.Logger, enabled bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if !enabled {
			logger.Info("Bucket policies are disabled")
			return next
		}
		logger.Info("Bucket access control middleware enabled")
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			bucketName, ok := bucketFromPath(r.URL.Path, policy.AvatarBucket)
			if !ok {
				next.ServeHTTP(w, r)
				return
			}

			if !isOperationAllowed(policy, bucketName, r.Method) {
				http.Error(w, "Operation not allowed", http.StatusForbidden)
				return
			}

			if !isIPAllowed(policy, bucketName, r.RemoteAddr) {
				logger.Warn("request from disallowed address",
					zap.String("bucket", bucketName),
					zap.String("remote_addr", r.RemoteAddr),
				)
				http.Error(w, "Access denied", http.StatusForbidden)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

func isOperationAllowed(policy BucketPolicy, bucketName, method string) bool {
	return slices.Contains(policy.AllowedOperations[bucketName], method)
}

func isIPAllowed(policy BucketPolicy, bucketName, remoteAddr string) bool {
	allowedIPs, exists := policy.AllowedIPs[bucketName]
	if !exists {
		return false
	}
	clientIP, _, err := net.SplitHostPort(remoteAddr)
	if err != nil {
		clientIP = remoteAddr
	}
	for _, ipPrefix := range allowedIPs {
		if strings.HasPrefix(clientIP, ipPrefix) {
			return true
		}
	}
	return false
}
