package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
)

var (
	// ErrBlobNotFound is returned when no object exists under a key
	ErrBlobNotFound = errors.New("blob not found")

	// ErrPresignUnsupported is returned by backends that cannot mint URLs
	ErrPresignUnsupported = errors.New("presigned URLs are not supported by this backend")
)

// BlobStore stores document contents by key
type BlobStore interface {
	// Put stores r under key and returns the number of bytes written
	Put(ctx context.Context, key string, r io.Reader, contentType string) (int64, error)
	Get(ctx context.Context, key string) ([]byte, error)
	Delete(ctx context.Context, key string) error
	PresignedURL(ctx context.Context, key string, ttl time.Duration) (string, error)
	HealthCheck(ctx context.Context) error
	// Provider names the backend, recorded with each document
	Provider() string
}

var unsafeNameChars = regexp.MustCompile(`[^A-Za-z0-9._-]+`)

// SanitizeFilename strips directories and replaces anything outside
// [A-Za-z0-9._-] with underscores
func SanitizeFilename(name string) string {
	name = path.Base(strings.ReplaceAll(name, "\\", "/"))
	name = unsafeNameChars.ReplaceAllString(name, "_")
	name = strings.Trim(name, "._")
	if name == "" {
		return "file"
	}
	return name
}

// DocumentKey builds the blob key for a project document:
// orgs/<org>/projects/<project>/<uuid>-<sanitized name>
func DocumentKey(orgID, projectID uuid.UUID, filename string) string {
	return fmt.Sprintf("orgs/%s/projects/%s/%s-%s", orgID, projectID, uuid.NewString(), SanitizeFilename(filename))
}
