package documents

import (
	"bytes"
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/platinummonkey/buildpro/pkg/apperrors"
	"github.com/platinummonkey/buildpro/pkg/auth"
	"github.com/platinummonkey/buildpro/pkg/observability"
	"github.com/platinummonkey/buildpro/pkg/orgs"
	"github.com/platinummonkey/buildpro/pkg/pagination"
	"github.com/platinummonkey/buildpro/pkg/projects"
	"github.com/platinummonkey/buildpro/pkg/storage"
	"github.com/platinummonkey/buildpro/pkg/storage/postgres"
	"github.com/platinummonkey/buildpro/pkg/tenancy"
)

const (
	denyView   = "you do not have permission to view documents in this project"
	denyUpload = "you do not have permission to upload documents to this project"
)

// Service manages project documents
type Service struct {
	db     *sql.DB
	access *projects.Access
	blobs  storage.BlobStore
	opts   Options
	now    func() time.Time
}

// NewService creates the document service
func NewService(db *sql.DB, access *projects.Access, blobs storage.BlobStore, opts Options) *Service {
	return &Service{db: db, access: access, blobs: blobs, opts: opts, now: time.Now}
}

const documentColumns = `d.id, d.organization_id, d.project_id, d.name, d.description, d.document_type,
	COALESCE(d.file_size, 0), COALESCE(d.mime_type, ''), d.storage_provider, d.storage_key, COALESCE(d.checksum, ''),
	d.version, d.is_latest, d.parent_document_id,
	d.uploaded_by_id, NULLIF(TRIM(CONCAT(uu.first_name, ' ', uu.last_name)), '') AS uploaded_by_name,
	d.created_at, d.updated_at`

const documentFrom = `FROM documents d LEFT JOIN users uu ON uu.id = d.uploaded_by_id`

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanDocument(row rowScanner) (*Document, error) {
	var d Document
	err := row.Scan(&d.ID, &d.OrganizationID, &d.ProjectID, &d.Name, &d.Description, &d.DocumentType,
		&d.FileSize, &d.MimeType, &d.StorageProvider, &d.StorageKey, &d.Checksum,
		&d.Version, &d.IsLatest, &d.ParentDocumentID,
		&d.UploadedByID, &d.UploadedByName,
		&d.CreatedAt, &d.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &d, nil
}

func (s *Service) getDocument(ctx context.Context, q postgres.Querier, orgID, projectID, documentID uuid.UUID) (*Document, error) {
	scope := tenancy.ForProject("d", orgID, projectID).And("d.id = ?", documentID)
	d, err := scanDocument(q.QueryRowContext(ctx, `SELECT `+documentColumns+` `+documentFrom+` `+scope.Where(), scope.Args()...))
	if err != nil {
		return nil, postgres.NotFoundOr(err, "document", "get document")
	}
	return d, nil
}

// List returns a page of a project's documents, newest first
func (s *Service) List(ctx context.Context, principal *auth.Principal, oc *orgs.OrgContext, projectID uuid.UUID, f ListFilter) (pagination.Result[*Document], error) {
	var empty pagination.Result[*Document]
	orgID := oc.OrgID()
	if _, err := s.access.Authorize(ctx, orgID, projectID, principal.UserID, projects.CanViewProject, denyView); err != nil {
		return empty, err
	}

	scope := tenancy.ForProject("d", orgID, projectID)
	if f.DocumentType != "" {
		scope.And("d.document_type = ?", f.DocumentType)
	}
	if f.Search != "" {
		scope.And("(d.name ILIKE ? OR d.description ILIKE ?)", "%"+f.Search+"%", "%"+f.Search+"%")
	}
	if f.LatestOnly {
		scope.Raw("d.is_latest = true")
	}

	var total int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM documents d `+scope.Where(), scope.Args()...).Scan(&total); err != nil {
		return empty, fmt.Errorf("failed to count documents: %w", err)
	}

	where := scope.Where()
	page := scope.Page(f.Page.Limit(), f.Page.Offset())
	rows, err := s.db.QueryContext(ctx, `SELECT `+documentColumns+` `+documentFrom+` `+where+`
		ORDER BY d.created_at DESC `+page, scope.Args()...)
	if err != nil {
		return empty, fmt.Errorf("failed to list documents: %w", err)
	}
	defer rows.Close()

	var items []*Document
	for rows.Next() {
		d, err := scanDocument(rows)
		if err != nil {
			return empty, fmt.Errorf("failed to scan document: %w", err)
		}
		items = append(items, d)
	}
	if err := rows.Err(); err != nil {
		return empty, fmt.Errorf("failed to iterate documents: %w", err)
	}
	return pagination.NewResult(items, total, f.Page), nil
}

// Get returns one document's metadata
func (s *Service) Get(ctx context.Context, principal *auth.Principal, oc *orgs.OrgContext, projectID, documentID uuid.UUID) (*Document, error) {
	if _, err := s.access.Authorize(ctx, oc.OrgID(), projectID, principal.UserID, projects.CanViewProject, denyView); err != nil {
		return nil, err
	}
	return s.getDocument(ctx, s.db, oc.OrgID(), projectID, documentID)
}

func (s *Service) extensionAllowed(name string) bool {
	if len(s.opts.AllowedExtensions) == 0 {
		return true
	}
	ext := strings.ToLower(filepath.Ext(name))
	for _, allowed := range s.opts.AllowedExtensions {
		if ext == allowed {
			return true
		}
	}
	return false
}

// readLimited buffers r, failing once more than limit bytes arrive
func readLimited(r io.Reader, limit int64) ([]byte, error) {
	data, err := io.ReadAll(io.LimitReader(r, limit+1))
	if err != nil {
		return nil, fmt.Errorf("failed to read upload: %w", err)
	}
	if int64(len(data)) > limit {
		return nil, apperrors.BadRequest(fmt.Sprintf("file exceeds the maximum upload size of %d bytes", limit))
	}
	return data, nil
}

// Upload stores a file and records its metadata. With a parent document the
// upload becomes the next version and the parent stops being latest. The
// blob is written inside the metadata transaction so a failed write leaves
// no row behind.
func (s *Service) Upload(ctx context.Context, principal *auth.Principal, oc *orgs.OrgContext, projectID uuid.UUID, up Upload) (*Document, error) {
	orgID := oc.OrgID()
	if _, err := s.access.Authorize(ctx, orgID, projectID, principal.UserID, projects.CanUploadDocuments, denyUpload); err != nil {
		return nil, err
	}

	name := strings.TrimSpace(filepath.Base(up.Filename))
	if name == "" || name == "." {
		return nil, apperrors.BadRequest("file name is required")
	}
	if !s.extensionAllowed(name) {
		return nil, apperrors.BadRequest(fmt.Sprintf("file type %q is not allowed", filepath.Ext(name)))
	}
	data, err := readLimited(up.Body, s.opts.MaxUploadSize)
	if err != nil {
		return nil, err
	}
	if len(data) == 0 {
		return nil, apperrors.BadRequest("file is empty")
	}
	sum := sha256.Sum256(data)
	mimeType := up.ContentType
	if mimeType == "" {
		mimeType = "application/octet-stream"
	}

	key := storage.DocumentKey(orgID, projectID, name)
	written := false
	var id uuid.UUID
	err = postgres.WithTx(ctx, s.db, func(tx *sql.Tx) error {
		version := 1
		if up.ParentDocumentID != nil {
			parent, err := s.getDocument(ctx, tx, orgID, projectID, *up.ParentDocumentID)
			if err != nil {
				if apperrors.IsKind(err, apperrors.KindNotFound) {
					return apperrors.BadRequest("parent_document_id must reference an existing document in this project")
				}
				return err
			}
			version = parent.Version + 1
			if _, err := tx.ExecContext(ctx, `
				UPDATE documents SET is_latest = false, updated_at = now()
				WHERE id = $1 AND organization_id = $2 AND project_id = $3`,
				parent.ID, orgID, projectID); err != nil {
				return fmt.Errorf("failed to supersede document: %w", err)
			}
		}

		err := tx.QueryRowContext(ctx, `
			INSERT INTO documents (organization_id, project_id, name, description, document_type, file_size,
			                       mime_type, storage_provider, storage_key, checksum, version, is_latest,
			                       parent_document_id, uploaded_by_id)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, true, $12, $13)
			RETURNING id`,
			orgID, projectID, name, up.Description, up.DocumentType, int64(len(data)),
			mimeType, s.blobs.Provider(), key, hex.EncodeToString(sum[:]), version,
			up.ParentDocumentID, principal.UserID).Scan(&id)
		if err != nil {
			return postgres.MapError(err, "create document")
		}

		if _, err := s.blobs.Put(ctx, key, bytes.NewReader(data), mimeType); err != nil {
			return fmt.Errorf("failed to store document content: %w", err)
		}
		written = true
		return nil
	})
	if err != nil {
		if written {
			if derr := s.blobs.Delete(ctx, key); derr != nil {
				observability.FromContext(ctx).WithError(derr).WithField("storage_key", key).
					Warn("failed to remove orphaned document blob")
			}
		}
		return nil, err
	}
	return s.getDocument(ctx, s.db, orgID, projectID, id)
}

// Update changes a document's name, description or type
func (s *Service) Update(ctx context.Context, principal *auth.Principal, oc *orgs.OrgContext, projectID, documentID uuid.UUID, req UpdateRequest) (*Document, error) {
	orgID := oc.OrgID()
	if _, err := s.access.Authorize(ctx, orgID, projectID, principal.UserID, projects.CanUploadDocuments, denyUpload); err != nil {
		return nil, err
	}
	d, err := s.getDocument(ctx, s.db, orgID, projectID, documentID)
	if err != nil {
		return nil, err
	}
	if req.Name != nil {
		name := strings.TrimSpace(*req.Name)
		if name == "" || len(name) > 255 {
			return nil, apperrors.Validation("name must be between 1 and 255 characters")
		}
		d.Name = name
	}
	if req.Description != nil {
		d.Description = req.Description
	}
	if req.DocumentType != nil {
		d.DocumentType = req.DocumentType
	}

	res, err := s.db.ExecContext(ctx, `
		UPDATE documents SET name = $4, description = $5, document_type = $6, updated_at = now()
		WHERE id = $1 AND organization_id = $2 AND project_id = $3 AND is_deleted = false`,
		documentID, orgID, projectID, d.Name, d.Description, d.DocumentType)
	if err != nil {
		return nil, postgres.MapError(err, "update document")
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return nil, apperrors.NotFound("document")
	}
	return s.getDocument(ctx, s.db, orgID, projectID, documentID)
}

// Download returns a document with its content
func (s *Service) Download(ctx context.Context, principal *auth.Principal, oc *orgs.OrgContext, projectID, documentID uuid.UUID) (*Content, error) {
	d, err := s.Get(ctx, principal, oc, projectID, documentID)
	if err != nil {
		return nil, err
	}
	data, err := s.blobs.Get(ctx, d.StorageKey)
	if err != nil {
		if errors.Is(err, storage.ErrBlobNotFound) {
			return nil, apperrors.NotFound("document content")
		}
		return nil, fmt.Errorf("failed to read document content: %w", err)
	}
	return &Content{Document: d, Data: data}, nil
}

// URL returns a time-limited link to the content. Backends without
// presigning get the authenticated download path.
func (s *Service) URL(ctx context.Context, principal *auth.Principal, oc *orgs.OrgContext, projectID, documentID uuid.UUID) (*URLResponse, error) {
	d, err := s.Get(ctx, principal, oc, projectID, documentID)
	if err != nil {
		return nil, err
	}
	url, err := s.blobs.PresignedURL(ctx, d.StorageKey, s.opts.PresignTTL)
	switch {
	case errors.Is(err, storage.ErrPresignUnsupported):
		return &URLResponse{URL: fmt.Sprintf("/api/v1/projects/%s/documents/%s/download", projectID, documentID)}, nil
	case err != nil:
		return nil, fmt.Errorf("failed to presign document: %w", err)
	}
	expires := s.now().Add(s.opts.PresignTTL).UTC()
	return &URLResponse{URL: url, ExpiresAt: &expires}, nil
}

// Delete soft-deletes a document. The blob is kept.
func (s *Service) Delete(ctx context.Context, principal *auth.Principal, oc *orgs.OrgContext, projectID, documentID uuid.UUID) error {
	orgID := oc.OrgID()
	if _, err := s.access.Authorize(ctx, orgID, projectID, principal.UserID, projects.CanUploadDocuments, denyUpload); err != nil {
		return err
	}
	res, err := s.db.ExecContext(ctx, `
		UPDATE documents SET is_deleted = true, deleted_at = now(), updated_at = now()
		WHERE id = $1 AND organization_id = $2 AND project_id = $3 AND is_deleted = false`,
		documentID, orgID, projectID)
	if err != nil {
		return fmt.Errorf("failed to delete document: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return apperrors.NotFound("document")
	}
	return nil
}
