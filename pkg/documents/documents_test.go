package documents

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/platinummonkey/buildpro/pkg/apperrors"
	"github.com/platinummonkey/buildpro/pkg/auth"
	"github.com/platinummonkey/buildpro/pkg/contextkeys"
	"github.com/platinummonkey/buildpro/pkg/orgs"
	"github.com/platinummonkey/buildpro/pkg/projects"
	"github.com/platinummonkey/buildpro/pkg/projects/projectstest"
	"github.com/platinummonkey/buildpro/pkg/rbac"
	"github.com/platinummonkey/buildpro/pkg/storage"
)

var documentCols = []string{
	"id", "organization_id", "project_id", "name", "description", "document_type",
	"file_size", "mime_type", "storage_provider", "storage_key", "checksum",
	"version", "is_latest", "parent_document_id",
	"uploaded_by_id", "uploaded_by_name", "created_at", "updated_at",
}

// memStore is an in-memory BlobStore
type memStore struct {
	mu         sync.Mutex
	blobs      map[string][]byte
	putErr     error
	presignURL string
}

func newMemStore() *memStore {
	return &memStore{blobs: make(map[string][]byte)}
}

func (m *memStore) Put(ctx context.Context, key string, r io.Reader, contentType string) (int64, error) {
	if m.putErr != nil {
		return 0, m.putErr
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return 0, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.blobs[key] = data
	return int64(len(data)), nil
}

func (m *memStore) Get(ctx context.Context, key string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	data, ok := m.blobs[key]
	if !ok {
		return nil, storage.ErrBlobNotFound
	}
	return data, nil
}

func (m *memStore) Delete(ctx context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.blobs, key)
	return nil
}

func (m *memStore) PresignedURL(ctx context.Context, key string, ttl time.Duration) (string, error) {
	if m.presignURL == "" {
		return "", storage.ErrPresignUnsupported
	}
	return m.presignURL + key, nil
}

func (m *memStore) HealthCheck(ctx context.Context) error { return nil }
func (m *memStore) Provider() string { return "memory" }

var testOptions = Options{
	MaxUploadSize:     64,
	AllowedExtensions: []string{".pdf", ".png"},
	PresignTTL:        15 * time.Minute,
}

func newTestService(t *testing.T) (*Service, sqlmock.Sqlmock, *memStore) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	blobs := newMemStore()
	svc := NewService(db, projects.NewAccess(db, nil), blobs, testOptions)
	svc.now = func() time.Time { return time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC) }
	return svc, mock, blobs
}

func documentRows(f projectstest.Fixture, id uuid.UUID, key string, version int) *sqlmock.Rows {
	now := time.Now()
	return sqlmock.NewRows(documentCols).AddRow(
		id, f.OrgID, f.ProjectID, "plan.pdf", nil, "Drawing",
		int64(11), "application/pdf", "memory", key, "abc",
		version, true, nil,
		f.ManagerID, "Pat Manager", now, now,
	)
}

func managerScope(f projectstest.Fixture) (*auth.Principal, *orgs.OrgContext) {
	return projectstest.Principal(f.ManagerID, rbac.RoleProjectManager), f.OrgContext(f.ManagerID, orgs.OrgRoleMember)
}

func TestService_Upload(t *testing.T) {
	svc, mock, blobs := newTestService(t)
	f := projectstest.NewFixture()
	id := uuid.New()
	content := []byte("hello plans")
	sum := sha256.Sum256(content)
	docType := "Drawing"

	f.ExpectProject(mock)
	mock.ExpectBegin()
	mock.ExpectQuery("INSERT INTO documents").
		WithArgs(f.OrgID, f.ProjectID, "plan.pdf", nil, "Drawing", int64(len(content)),
			"application/pdf", "memory", sqlmock.AnyArg(), hex.EncodeToString(sum[:]), 1,
			nil, f.ManagerID).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(id))
	mock.ExpectCommit()
	mock.ExpectQuery("FROM documents d LEFT JOIN users uu").
		WithArgs(f.OrgID, f.ProjectID, id).
		WillReturnRows(documentRows(f, id, "k", 1))

	principal, oc := managerScope(f)
	doc, err := svc.Upload(context.Background(), principal, oc, f.ProjectID, Upload{
		Filename:     "plan.pdf",
		ContentType:  "application/pdf",
		DocumentType: &docType,
		Body:         bytes.NewReader(content),
	})

	require.NoError(t, err)
	assert.Equal(t, id, doc.ID)
	require.Len(t, blobs.blobs, 1)
	for key, data := range blobs.blobs {
		assert.True(t, strings.HasPrefix(key, "orgs/"+f.OrgID.String()+"/projects/"+f.ProjectID.String()+"/"))
		assert.True(t, strings.HasSuffix(key, "-plan.pdf"))
		assert.Equal(t, content, data)
	}
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestService_UploadNewVersion(t *testing.T) {
	svc, mock, _ := newTestService(t)
	f := projectstest.NewFixture()
	parentID := uuid.New()
	id := uuid.New()

	f.ExpectProject(mock)
	mock.ExpectBegin()
	mock.ExpectQuery("FROM documents d LEFT JOIN users uu").
		WithArgs(f.OrgID, f.ProjectID, parentID).
		WillReturnRows(documentRows(f, parentID, "old", 2))
	mock.ExpectExec("UPDATE documents SET is_latest = false").
		WithArgs(parentID, f.OrgID, f.ProjectID).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery("INSERT INTO documents").
		WithArgs(f.OrgID, f.ProjectID, "plan.pdf", nil, nil, sqlmock.AnyArg(),
			"application/octet-stream", "memory", sqlmock.AnyArg(), sqlmock.AnyArg(), 3,
			parentID, f.ManagerID).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(id))
	mock.ExpectCommit()
	mock.ExpectQuery("FROM documents d").
		WithArgs(f.OrgID, f.ProjectID, id).
		WillReturnRows(documentRows(f, id, "new", 3))

	principal, oc := managerScope(f)
	doc, err := svc.Upload(context.Background(), principal, oc, f.ProjectID, Upload{
		Filename:         "plan.pdf",
		ParentDocumentID: &parentID,
		Body:             strings.NewReader("revision c"),
	})

	require.NoError(t, err)
	assert.Equal(t, 3, doc.Version)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestService_UploadMissingParent(t *testing.T) {
	svc, mock, _ := newTestService(t)
	f := projectstest.NewFixture()
	parentID := uuid.New()

	f.ExpectProject(mock)
	mock.ExpectBegin()
	mock.ExpectQuery("FROM documents d").
		WithArgs(f.OrgID, f.ProjectID, parentID).
		WillReturnRows(sqlmock.NewRows(documentCols))
	mock.ExpectRollback()

	principal, oc := managerScope(f)
	_, err := svc.Upload(context.Background(), principal, oc, f.ProjectID, Upload{
		Filename:         "plan.pdf",
		ParentDocumentID: &parentID,
		Body:             strings.NewReader("x"),
	})

	assert.Equal(t, apperrors.KindBadRequest, apperrors.KindOf(err))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestService_UploadBlobFailureRollsBack(t *testing.T) {
	svc, mock, blobs := newTestService(t)
	blobs.putErr = errors.New("bucket unavailable")
	f := projectstest.NewFixture()

	f.ExpectProject(mock)
	mock.ExpectBegin()
	mock.ExpectQuery("INSERT INTO documents").
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(uuid.New()))
	mock.ExpectRollback()

	principal, oc := managerScope(f)
	_, err := svc.Upload(context.Background(), principal, oc, f.ProjectID, Upload{
		Filename: "plan.pdf",
		Body:     strings.NewReader("x"),
	})

	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to store document content")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestService_UploadRejections(t *testing.T) {
	f := projectstest.NewFixture()
	tests := []struct {
		name     string
		filename string
		body     string
		message  string
	}{
		{"extension", "setup.exe", "x", "not allowed"},
		{"too large", "plan.pdf", strings.Repeat("x", 65), "maximum upload size"},
		{"empty", "plan.pdf", "", "file is empty"},
		{"no name", "", "x", "file name is required"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, mock, _ := newTestService(t)
			f.ExpectProject(mock)

			principal, oc := managerScope(f)
			_, err := svc.Upload(context.Background(), principal, oc, f.ProjectID, Upload{
				Filename: tt.filename,
				Body:     strings.NewReader(tt.body),
			})

			assert.Equal(t, apperrors.KindBadRequest, apperrors.KindOf(err))
			assert.Contains(t, err.Error(), tt.message)
			assert.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

func TestService_UploadRequiresCapability(t *testing.T) {
	svc, mock, _ := newTestService(t)
	f := projectstest.NewFixture()
	viewer := uuid.New()

	f.ExpectProject(mock)
	f.ExpectMember(mock, viewer, projectstest.ViewOnly)

	_, err := svc.Upload(context.Background(),
		projectstest.Principal(viewer, rbac.RoleStakeholder),
		f.OrgContext(viewer, orgs.OrgRoleMember),
		f.ProjectID, Upload{Filename: "plan.pdf", Body: strings.NewReader("x")})

	assert.Equal(t, apperrors.KindForbidden, apperrors.KindOf(err))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestService_URL(t *testing.T) {
	f := projectstest.NewFixture()
	id := uuid.New()

	t.Run("presigned", func(t *testing.T) {
		svc, mock, blobs := newTestService(t)
		blobs.presignURL = "https://bucket.example.com/"
		f.ExpectProject(mock)
		mock.ExpectQuery("FROM documents d").
			WithArgs(f.OrgID, f.ProjectID, id).
			WillReturnRows(documentRows(f, id, "orgs/a/b", 1))

		principal, oc := managerScope(f)
		resp, err := svc.URL(context.Background(), principal, oc, f.ProjectID, id)

		require.NoError(t, err)
		assert.Equal(t, "https://bucket.example.com/orgs/a/b", resp.URL)
		require.NotNil(t, resp.ExpiresAt)
		assert.Equal(t, time.Date(2026, 3, 10, 12, 15, 0, 0, time.UTC), *resp.ExpiresAt)
	})

	t.Run("download fallback", func(t *testing.T) {
		svc, mock, _ := newTestService(t)
		f.ExpectProject(mock)
		mock.ExpectQuery("FROM documents d").
			WithArgs(f.OrgID, f.ProjectID, id).
			WillReturnRows(documentRows(f, id, "orgs/a/b", 1))

		principal, oc := managerScope(f)
		resp, err := svc.URL(context.Background(), principal, oc, f.ProjectID, id)

		require.NoError(t, err)
		assert.Equal(t, "/api/v1/projects/"+f.ProjectID.String()+"/documents/"+id.String()+"/download", resp.URL)
		assert.Nil(t, resp.ExpiresAt)
	})
}

func TestService_DownloadMissingBlob(t *testing.T) {
	svc, mock, _ := newTestService(t)
	f := projectstest.NewFixture()
	id := uuid.New()

	f.ExpectProject(mock)
	mock.ExpectQuery("FROM documents d").
		WithArgs(f.OrgID, f.ProjectID, id).
		WillReturnRows(documentRows(f, id, "gone", 1))

	principal, oc := managerScope(f)
	_, err := svc.Download(context.Background(), principal, oc, f.ProjectID, id)

	assert.Equal(t, apperrors.KindNotFound, apperrors.KindOf(err))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestService_DeleteKeepsBlob(t *testing.T) {
	svc, mock, blobs := newTestService(t)
	blobs.blobs["orgs/x"] = []byte("keep")
	f := projectstest.NewFixture()
	id := uuid.New()

	f.ExpectProject(mock)
	mock.ExpectExec("UPDATE documents SET is_deleted = true").
		WithArgs(id, f.OrgID, f.ProjectID).
		WillReturnResult(sqlmock.NewResult(0, 1))

	principal, oc := managerScope(f)
	require.NoError(t, svc.Delete(context.Background(), principal, oc, f.ProjectID, id))
	assert.Len(t, blobs.blobs, 1)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestHandlers_UploadAndDownload(t *testing.T) {
	svc, mock, blobs := newTestService(t)
	router := mux.NewRouter()
	NewHandlers(svc).RegisterRoutes(router)
	f := projectstest.NewFixture()
	base := "/projects/" + f.ProjectID.String() + "/documents"

	scoped := func(req *http.Request) *http.Request {
		principal, oc := managerScope(f)
		ctx := contextkeys.WithAuth(req.Context(), principal)
		ctx = contextkeys.WithOrg(ctx, oc)
		return req.WithContext(ctx)
	}

	t.Run("missing file", func(t *testing.T) {
		var body bytes.Buffer
		mw := multipart.NewWriter(&body)
		require.NoError(t, mw.WriteField("description", "site plan"))
		require.NoError(t, mw.Close())

		req := httptest.NewRequest("POST", base, &body)
		req.Header.Set("Content-Type", mw.FormDataContentType())
		w := httptest.NewRecorder()
		router.ServeHTTP(w, scoped(req))

		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Contains(t, w.Body.String(), "file is required")
	})

	t.Run("not multipart", func(t *testing.T) {
		req := httptest.NewRequest("POST", base, strings.NewReader(`{}`))
		req.Header.Set("Content-Type", "application/json")
		w := httptest.NewRecorder()
		router.ServeHTTP(w, scoped(req))

		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("upload", func(t *testing.T) {
		id := uuid.New()
		f.ExpectProject(mock)
		mock.ExpectBegin()
		mock.ExpectQuery("INSERT INTO documents").
			WithArgs(f.OrgID, f.ProjectID, "plan.pdf", "site plan", nil, int64(5),
				"application/octet-stream", "memory", sqlmock.AnyArg(), sqlmock.AnyArg(), 1,
				nil, f.ManagerID).
			WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(id))
		mock.ExpectCommit()
		mock.ExpectQuery("FROM documents d").
			WithArgs(f.OrgID, f.ProjectID, id).
			WillReturnRows(documentRows(f, id, "k", 1))

		var body bytes.Buffer
		mw := multipart.NewWriter(&body)
		require.NoError(t, mw.WriteField("description", "site plan"))
		part, err := mw.CreateFormFile("file", "plan.pdf")
		require.NoError(t, err)
		_, err = part.Write([]byte("%PDF-"))
		require.NoError(t, err)
		require.NoError(t, mw.Close())

		req := httptest.NewRequest("POST", base, &body)
		req.Header.Set("Content-Type", mw.FormDataContentType())
		w := httptest.NewRecorder()
		router.ServeHTTP(w, scoped(req))

		assert.Equal(t, http.StatusCreated, w.Code)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("download", func(t *testing.T) {
		id := uuid.New()
		blobs.blobs["orgs/plan"] = []byte("%PDF-")
		f.ExpectProject(mock)
		mock.ExpectQuery("FROM documents d").
			WithArgs(f.OrgID, f.ProjectID, id).
			WillReturnRows(documentRows(f, id, "orgs/plan", 1))

		w := httptest.NewRecorder()
		router.ServeHTTP(w, scoped(httptest.NewRequest("GET", base+"/"+id.String()+"/download", nil)))

		assert.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "application/pdf", w.Header().Get("Content-Type"))
		assert.Equal(t, `attachment; filename=plan.pdf`, w.Header().Get("Content-Disposition"))
		assert.Equal(t, "%PDF-", w.Body.String())
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}
