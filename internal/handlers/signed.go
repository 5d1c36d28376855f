package handlers

import (
	"math"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/muandane/special-stack/signet/internal/cache"
	"github.com/muandane/special-stack/signet/internal/resolver"
)

type SignedURLResponse struct {
	URL       string    `json:"url"`
	Source    string    `json:"source"`
	ExpiresAt time.Time `json:"expires_at"`
}

type SignedURLHandler struct {
	resolver *resolver.Resolver
	urls     *cache.SignedURLCache
	logger   *zap.Logger
}

func NewSignedURLHandler(r *resolver.Resolver, urls *cache.SignedURLCache, logger *zap.Logger) *SignedURLHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SignedURLHandler{resolver: r, urls: urls, logger: logger}
}

// GetSignedURL handles GET /signed/:bucket/*path
func (h *SignedURLHandler) GetSignedURL(c *gin.Context) {
	bucket, objectPath, ok := h.objectParams(c)
	if !ok {
		return
	}

	var ttl time.Duration
	if raw := c.Query("ttl"); raw != "" {
		seconds, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || seconds <= 0 {
			handleError(c, h.logger, &ValidationError{Field: "ttl", Message: "must be a positive number of seconds"})
			return
		}
		// Larger values overflow Duration; the resolver clamps to max_ttl.
		seconds = min(seconds, math.MaxInt64/int64(time.Second))
		ttl = time.Duration(seconds) * time.Second
	}

	res, err := h.resolver.Resolve(c.Request.Context(), bucket, objectPath, ttl)
	if err != nil {
		handleError(c, h.logger.With(zap.String("bucket", bucket), zap.String("path", objectPath)), err)
		return
	}

	source := "storage"
	if res.State == cache.Fresh {
		source = "cache"
	}
	c.JSON(http.StatusOK, SignedURLResponse{URL: res.URL, Source: source, ExpiresAt: res.ExpiresAt})
}

// InvalidateSignedURL handles DELETE /signed/:bucket/*path
func (h *SignedURLHandler) InvalidateSignedURL(c *gin.Context) {
	bucket, objectPath, ok := h.objectParams(c)
	if !ok {
		return
	}

	h.urls.Invalidate(cache.Key(bucket, objectPath))
	h.logger.Info("signed url invalidated", zap.String("bucket", bucket), zap.String("path", objectPath))
	c.Status(http.StatusNoContent)
}

// ClearSignedURLs handles DELETE /signed, sent on sign-out.
func (h *SignedURLHandler) ClearSignedURLs(c *gin.Context) {
	n := h.urls.Len()
	h.urls.Clear()
	h.logger.Info("signed url cache cleared", zap.Int("entries", n))
	c.Status(http.StatusNoContent)
}

func (h *SignedURLHandler) objectParams(c *gin.Context) (string, string, bool) {
	bucket := c.Param("bucket")
	objectPath := c.Param("path")
	if len(objectPath) > 0 {
		objectPath = objectPath[1:]
	}
	if bucket == "" || objectPath == "" {
		handleError(c, h.logger, &ValidationError{Field: "path", Message: "bucket and object path are required"})
		return "", "", false
	}
	return bucket, objectPath, true
}
