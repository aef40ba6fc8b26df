// Package objectstore uploads report attachments and returns URLs that
// browsers can resolve. When no backend is configured, files are embedded as
// data: URLs instead.
package objectstore

import (
	"context"
	"encoding/base64"
	"fmt"
	"net/http"
	"path"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/AnshRaj112/civicpulse-backend/internal/config"
)

// MaxObjectSize caps a single upload.
const MaxObjectSize = 10 << 20

type Object struct {
	Key         string
	ContentType string
	Data        []byte
}

type Store interface {
	Put(ctx context.Context, obj Object) (string, error)
	Name() string
}

// NewObject names data with a random key, keeping the original extension,
// and sniffs the content type when the caller does not know it.
func NewObject(filename, contentType string, data []byte) Object {
	if contentType == "" || contentType == "application/octet-stream" {
		contentType = http.DetectContentType(data)
	}
	ext := strings.ToLower(path.Ext(filename))
	if len(ext) > 8 {
		ext = ""
	}
	return Object{Key: uuid.NewString() + ext, ContentType: contentType, Data: data}
}

// InlineStore never leaves the process: the returned URL carries the bytes.
type InlineStore struct{}

func (InlineStore) Name() string { return "inline" }

func (InlineStore) Put(_ context.Context, obj Object) (string, error) {
	if len(obj.Data) > MaxObjectSize {
		return "", fmt.Errorf("object too large for inline storage: %d bytes", len(obj.Data))
	}
	ct := obj.ContentType
	if ct == "" {
		ct = "application/octet-stream"
	}
	return "data:" + ct + ";base64," + base64.StdEncoding.EncodeToString(obj.Data), nil
}

// FromConfig picks Cloudinary, then MinIO, then inline storage. A configured
// backend that fails to initialize is logged and skipped.
func FromConfig(ctx context.Context, cfg *config.Config, logger *zap.Logger) Store {
	if cfg.CloudinaryConfigured() {
		s, err := NewCloudinaryStore(cfg.CloudinaryName, cfg.CloudinaryAPIKey, cfg.CloudinaryAPISecret, cfg.UploadFolder)
		if err == nil {
			return s
		}
		logger.Warn("cloudinary unavailable", zap.Error(err))
	}
	if cfg.MinIOConfigured() {
		s, err := NewMinIOStore(ctx, MinIOConfig{
			Endpoint:  cfg.MinIOEndpoint,
			AccessKey: cfg.MinIOAccessKey,
			SecretKey: cfg.MinIOSecretKey,
			Bucket:    cfg.MinIOBucket,
			UseSSL:    cfg.MinIOUseSSL,
			PublicURL: cfg.MinIOPublicURL,
			Folder:    cfg.UploadFolder,
		}, logger)
		if err == nil {
			return s
		}
		logger.Warn("minio unavailable", zap.Error(err))
	}
	logger.Warn("no object storage configured, attachments will be stored inline")
	return InlineStore{}
}
