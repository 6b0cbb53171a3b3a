package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

// ErrObjectNotFound is returned by Download when the key does not exist.
var ErrObjectNotFound = errors.New("stored object not found")

// Storage holds the raw bytes of uploaded documents
type Storage interface {
	// Upload stores data under key
	Upload(ctx context.Context, key string, contentType string, data io.Reader) error

	// Download retrieves an object by key
	Download(ctx context.Context, key string) (io.ReadCloser, error)

	// Delete removes an object by key
	Delete(ctx context.Context, key string) error
}

// StorageType represents the storage backend type
type StorageType string

const (
	StorageTypeLocal StorageType = "local"
	StorageTypeS3    StorageType = "s3"
)

// StorageConfig holds configuration for storage
type StorageConfig struct {
	Type         StorageType
	LocalPath    string // For local storage
	S3Bucket     string // For S3 storage
	S3Region     string // For S3 storage
	AWSAccessKey string
	AWSSecretKey string
}

// NewStorage creates a new storage instance based on configuration
func NewStorage(ctx context.Context, cfg StorageConfig) (Storage, error) {
	switch cfg.Type {
	case StorageTypeLocal, "":
		path := cfg.LocalPath
		if path == "" {
			path = "./storage/documents"
		}
		return NewLocalStorage(path)
	case StorageTypeS3:
		if cfg.S3Bucket == "" {
			return nil, errors.New("an S3 bucket is required for S3 storage")
		}
		if cfg.S3Region == "" {
			cfg.S3Region = "us-east-1"
		}
		return NewS3Storage(ctx, cfg)
	default:
		return nil, fmt.Errorf("unknown storage type: %s", cfg.Type)
	}
}

// ObjectKey builds a unique key for a patient's upload. The random component
// makes a fresh key on every call, which is what duplicate-key retries rely on.
func ObjectKey(patientID *uuid.UUID, filename string) string {
	owner := "unassigned"
	if patientID != nil {
		owner = patientID.String()
	}
	return fmt.Sprintf("%s/%s_%s", owner, uuid.NewString(), SanitizeFilename(filename))
}

// SanitizeFilename strips directories and separators from a client filename.
func SanitizeFilename(filename string) string {
	name := filepath.Base(strings.ReplaceAll(filename, "\\", "/"))
	ext := filepath.Ext(name)
	base := strings.TrimSuffix(name, ext)
	base = strings.ReplaceAll(base, " ", "_")
	if base == "" || base == "." || base == "/" {
		base = "document"
	}
	return base + strings.ToLower(ext)
}

// ContentType determines content type from filename
func ContentType(filename string) string {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".pdf":
		return "application/pdf"
	case ".jpg", ".jpeg":
		return "image/jpeg"
	case ".png":
		return "image/png"
	case ".heic":
		return "image/heic"
	case ".webp":
		return "image/webp"
	case ".txt":
		return "text/plain"
	default:
		return "application/octet-stream"
	}
}
