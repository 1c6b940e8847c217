// Package documents stores project files in a blob store with their
// metadata and version chain in Postgres.
package documents

import (
	"io"
	"time"

	"github.com/google/uuid"

	"github.com/platinummonkey/buildpro/pkg/pagination"
)

// Document is the metadata of one stored file version
type Document struct {
	ID               uuid.UUID  `json:"id"`
	OrganizationID   uuid.UUID  `json:"organization_id"`
	ProjectID        uuid.UUID  `json:"project_id"`
	Name             string     `json:"name"`
	Description      *string    `json:"description"`
	DocumentType     *string    `json:"document_type"`
	FileSize         int64      `json:"file_size"`
	MimeType         string     `json:"mime_type"`
	StorageProvider  string     `json:"storage_provider"`
	StorageKey       string     `json:"-"`
	Checksum         string     `json:"checksum"`
	Version          int        `json:"version"`
	IsLatest         bool       `json:"is_latest"`
	ParentDocumentID *uuid.UUID `json:"parent_document_id"`
	UploadedByID     *uuid.UUID `json:"uploaded_by_id"`
	UploadedByName   *string    `json:"uploaded_by_name"`
	CreatedAt        time.Time  `json:"created_at"`
	UpdatedAt        time.Time  `json:"updated_at"`
}

// ListFilter narrows GET /projects/{id}/documents
type ListFilter struct {
	DocumentType string
	Search       string
	LatestOnly   bool
	Page         pagination.Params
}

// Upload is one multipart file submitted for storage
type Upload struct {
	Filename         string
	ContentType      string
	DocumentType     *string
	Description      *string
	ParentDocumentID *uuid.UUID
	Body             io.Reader
}

// UpdateRequest is the body of PUT /projects/{id}/documents/{document_id}
type UpdateRequest struct {
	Name         *string `json:"name"`
	Description  *string `json:"description"`
	DocumentType *string `json:"document_type"`
}

// Content is a downloaded document
type Content struct {
	Document *Document
	Data     []byte
}

// URLResponse is the body of GET /projects/{id}/documents/{document_id}/url.
// ExpiresAt is nil when the backend cannot presign and URL points at the
// download endpoint instead.
type URLResponse struct {
	URL       string     `json:"url"`
	ExpiresAt *time.Time `json:"expires_at"`
}

// Options bounds what may be uploaded
type Options struct {
	MaxUploadSize     int64
	AllowedExtensions []string
	PresignTTL        time.Duration
}
