package avatars

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/muandane/special-stack/signet/internal/cache"
	"github.com/muandane/special-stack/signet/internal/storage"
)

type Ext string

const (
	JPG  Ext = "jpg"
	PNG  Ext = "png"
	WEBP Ext = "webp"
	HEIC Ext = "heic"
	HEIF Ext = "heif"
)

// Exts lists every extension an avatar may be stored under.
var Exts = []Ext{JPG, PNG, WEBP, HEIC, HEIF}

var (
	ErrInvalidUserID = errors.New("user id must be a uuid")
	ErrEmptyAvatar   = errors.New("avatar body is empty")
)

func ExtFromMIME(mimeType string) (Ext, bool) {
	switch strings.ToLower(strings.TrimSpace(mimeType)) {
	case "image/jpeg", "image/jpg":
		return JPG, true
	case "image/png":
		return PNG, true
	case "image/webp":
		return WEBP, true
	case "image/heic":
		return HEIC, true
	case "image/heif":
		return HEIF, true
	}
	return "", false
}

// ExtFromName takes the extension from a file name or URI, ignoring any
// query string.
func ExtFromName(name string) (Ext, bool) {
	clean, _, _ := strings.Cut(name, "?")
	i := strings.LastIndex(clean, ".")
	if i < 0 || i == len(clean)-1 {
		return "", false
	}
	last := Ext(strings.ToLower(clean[i+1:]))
	if last == "jpeg" {
		return JPG, true
	}
	if slices.Contains(Exts, last) {
		return last, true
	}
	return "", false
}

func ContentType(ext Ext) string {
	switch ext {
	case PNG:
		return "image/png"
	case WEBP:
		return "image/webp"
	case HEIC:
		return "image/heic"
	case HEIF:
		return "image/heif"
	default:
		return "image/jpeg"
	}
}

func ObjectPath(uid string, ext Ext) string {
	return fmt.Sprintf("%s/avatar.%s", uid, ext)
}

// Invalidator drops cached signed URLs for a key.
type Invalidator interface {
	Invalidate(key string)
}

type Service struct {
	store  storage.Store
	urls   Invalidator
	bucket string
	logger *zap.Logger
}

func NewService(store storage.Store, urls Invalidator, bucket string, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{store: store, urls: urls, bucket: bucket, logger: logger}
}

func (s *Service) Bucket() string {
	return s.bucket
}

// Replace uploads a new avatar for uid, deletes the avatar stored under any
// other extension and drops every cached URL for the old paths. The
// extension comes from contentType, then filename, then falls back to jpg.
func (s *Service) Replace(ctx context.Context, uid string, body []byte, contentType, filename string) (string, error) {
	if _, err := uuid.Parse(uid); err != nil {
		return "", fmt.Errorf("%w: %q", ErrInvalidUserID, uid)
	}
	if len(body) == 0 {
		return "", ErrEmptyAvatar
	}

	ext, ok := ExtFromMIME(contentType)
	if !ok {
		if ext, ok = ExtFromName(filename); !ok {
			ext = JPG
		}
	}
	if contentType == "" {
		contentType = ContentType(ext)
	}
	contentType = strings.ToLower(contentType)
	objectPath := ObjectPath(uid, ext)

	logger := s.logger.With(
		zap.String("bucket", s.bucket),
		zap.String("path", objectPath),
		zap.String("content_type", contentType),
	)

	if err := s.store.Put(ctx, s.bucket, objectPath, bytes.NewReader(body), int64(len(body)), contentType); err != nil {
		logger.Error("avatar upload failed", zap.Error(err))
		return "", err
	}
	logger.Info("avatar uploaded", zap.String("size", humanize.Bytes(uint64(len(body)))))

	// The new object replaces whatever was cached for this path too.
	s.urls.Invalidate(cache.Key(s.bucket, objectPath))

	var others []string
	for _, e := range Exts {
		if e == ext {
			continue
		}
		other := ObjectPath(uid, e)
		others = append(others, other)
		s.urls.Invalidate(cache.Key(s.bucket, other))
	}
	if err := s.store.Remove(ctx, s.bucket, others...); err != nil {
		logger.Error("failed to remove stale avatar variants", zap.Error(err))
		return "", err
	}

	return objectPath, nil
}
