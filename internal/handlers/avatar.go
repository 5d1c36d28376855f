package handlers

import (
	"bytes"
	"compress/gzip"
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/muandane/special-stack/signet/internal/avatars"
)

const maxAvatarSize = 10 << 20

type AvatarHandler struct {
	avatars *avatars.Service
	logger  *zap.Logger
}

func NewAvatarHandler(svc *avatars.Service, logger *zap.Logger) *AvatarHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AvatarHandler{avatars: svc, logger: logger}
}

// PutAvatar handles PUT /avatars/:uid
func (h *AvatarHandler) PutAvatar(c *gin.Context) {
	uid := c.Param("uid")
	logger := h.logger.With(zap.String("uid", uid))

	body, err := processRequestBody(c)
	if err != nil {
		var tooLarge *http.MaxBytesError
		if !errors.As(err, &tooLarge) {
			err = &ValidationError{Field: "body", Message: err.Error()}
		}
		handleError(c, logger, err)
		return
	}

	path, err := h.avatars.Replace(c.Request.Context(), uid, body, c.GetHeader("Content-Type"), c.Query("filename"))
	if err != nil {
		handleError(c, logger, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"path": path, "bucket": h.avatars.Bucket()})
}

func processRequestBody(c *gin.Context) ([]byte, error) {
	body, err := io.ReadAll(http.MaxBytesReader(c.Writer, c.Request.Body, maxAvatarSize))
	if err != nil {
		return nil, err
	}

	if c.GetHeader("Content-Encoding") == "gzip" {
		return decompressData(body)
	}

	return body, nil
}

func decompressData(data []byte) ([]byte, error) {
	gzipReader, err := gzip.NewReader(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	defer gzipReader.Close()

	return io.ReadAll(io.LimitReader(gzipReader, maxAvatarSize))
}
