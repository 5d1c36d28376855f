package middleware

import (
	"net/http"
	"strings"
)

// Chain applies multiple middleware to a handler in the order they are provided
func Chain(h http.Handler, middleware ...func(http.Handler) http.Handler) http.Handler {
	for _, m := range middleware {
		h = m(h)
	}
	return h
}

// bucketFromPath returns the bucket a request targets: the first segment
// after /signed/, or avatarBucket for /avatars/ uploads.
func bucketFromPath(path, avatarBucket string) (string, bool) {
	switch {
	case strings.HasPrefix(path, "/signed/"):
		bucket, _, _ := strings.Cut(strings.TrimPrefix(path, "/signed/"), "/")
		return bucket, bucket != ""
	case strings.HasPrefix(path, "/avatars/"):
		return avatarBucket, avatarBucket != ""
	}
	return "", false
}
