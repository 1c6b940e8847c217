package documents

import (
	"errors"
	"fmt"
	"mime"
	"net/http"
	"strconv"

	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"github.com/platinummonkey/buildpro/pkg/apperrors"
	"github.com/platinummonkey/buildpro/pkg/httputil"
	"github.com/platinummonkey/buildpro/pkg/orgs"
)

// multipartMemory is how much of a multipart body is held in memory before
// spilling to temp files
const multipartMemory = 8 << 20

// Handlers provides HTTP handlers for documents
type Handlers struct {
	service *Service
}

// NewHandlers creates document handlers
func NewHandlers(service *Service) *Handlers {
	return &Handlers{service: service}
}

// RegisterRoutes registers document routes on a tenant-scoped router
func (h *Handlers) RegisterRoutes(router *mux.Router) {
	router.HandleFunc("/projects/{project_id}/documents", h.list).Methods("GET")
	router.HandleFunc("/projects/{project_id}/documents", h.upload).Methods("POST")
	router.HandleFunc("/projects/{project_id}/documents/{document_id}", h.get).Methods("GET")
	router.HandleFunc("/projects/{project_id}/documents/{document_id}", h.update).Methods("PUT")
	router.HandleFunc("/projects/{project_id}/documents/{document_id}", h.delete).Methods("DELETE")
	router.HandleFunc("/projects/{project_id}/documents/{document_id}/download", h.download).Methods("GET")
	router.HandleFunc("/projects/{project_id}/documents/{document_id}/url", h.url).Methods("GET")
}

// list handles GET /projects/{project_id}/documents
func (h *Handlers) list(w http.ResponseWriter, r *http.Request) {
	principal, oc, err := orgs.RequestScope(r.Context())
	if err != nil {
		httputil.WriteAppError(w, r, err)
		return
	}
	projectID, err := httputil.ParsePathUUID(r, "project_id")
	if err != nil {
		httputil.WriteAppError(w, r, err)
		return
	}
	page, err := httputil.ParsePagination(r)
	if err != nil {
		httputil.WriteAppError(w, r, err)
		return
	}
	latest, err := httputil.ParseQueryBool(r, "latest_only")
	if err != nil {
		httputil.WriteAppError(w, r, err)
		return
	}

	result, err := h.service.List(r.Context(), principal, oc, projectID, ListFilter{
		DocumentType: httputil.ParseQueryString(r, "document_type"),
		Search:       httputil.ParseQueryString(r, "search"),
		LatestOnly:   latest,
		Page:         page,
	})
	if err != nil {
		httputil.WriteAppError(w, r, err)
		return
	}
	httputil.WriteSuccess(w, result)
}

func optionalFormValue(r *http.Request, key string) *string {
	v := r.FormValue(key)
	if v == "" {
		return nil
	}
	return &v
}

// upload handles POST /projects/{project_id}/documents
func (h *Handlers) upload(w http.ResponseWriter, r *http.Request) {
	principal, oc, err := orgs.RequestScope(r.Context())
	if err != nil {
		httputil.WriteAppError(w, r, err)
		return
	}
	projectID, err := httputil.ParsePathUUID(r, "project_id")
	if err != nil {
		httputil.WriteAppError(w, r, err)
		return
	}

	// Leave room for the multipart framing around the file itself.
	r.Body = http.MaxBytesReader(w, r.Body, h.service.opts.MaxUploadSize+multipartMemory)
	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			httputil.WriteAppError(w, r, apperrors.BadRequest(
				fmt.Sprintf("file exceeds the maximum upload size of %d bytes", h.service.opts.MaxUploadSize)))
			return
		}
		httputil.WriteAppError(w, r, apperrors.BadRequest("request must be multipart/form-data"))
		return
	}
	defer r.MultipartForm.RemoveAll()

	file, header, err := r.FormFile("file")
	if err != nil {
		httputil.WriteAppError(w, r, apperrors.BadRequest("file is required"))
		return
	}
	defer file.Close()

	up := Upload{
		Filename:     header.Filename,
		ContentType:  header.Header.Get("Content-Type"),
		DocumentType: optionalFormValue(r, "document_type"),
		Description:  optionalFormValue(r, "description"),
		Body:         file,
	}
	if v := r.FormValue("parent_document_id"); v != "" {
		parentID, err := uuid.Parse(v)
		if err != nil {
			httputil.WriteAppError(w, r, apperrors.Validation("invalid parent_document_id"))
			return
		}
		up.ParentDocumentID = &parentID
	}

	doc, err := h.service.Upload(r.Context(), principal, oc, projectID, up)
	if err != nil {
		httputil.WriteAppError(w, r, err)
		return
	}
	httputil.WriteCreated(w, doc)
}

// get handles GET /projects/{project_id}/documents/{document_id}
func (h *Handlers) get(w http.ResponseWriter, r *http.Request) {
	principal, oc, err := orgs.RequestScope(r.Context())
	if err != nil {
		httputil.WriteAppError(w, r, err)
		return
	}
	projectID, documentID, err := httputil.ParseProjectPath(r, "document_id")
	if err != nil {
		httputil.WriteAppError(w, r, err)
		return
	}
	doc, err := h.service.Get(r.Context(), principal, oc, projectID, documentID)
	if err != nil {
		httputil.WriteAppError(w, r, err)
		return
	}
	httputil.WriteSuccess(w, doc)
}

// update handles PUT /projects/{project_id}/documents/{document_id}
func (h *Handlers) update(w http.ResponseWriter, r *http.Request) {
	principal, oc, err := orgs.RequestScope(r.Context())
	if err != nil {
		httputil.WriteAppError(w, r, err)
		return
	}
	projectID, documentID, err := httputil.ParseProjectPath(r, "document_id")
	if err != nil {
		httputil.WriteAppError(w, r, err)
		return
	}
	var req UpdateRequest
	if err := httputil.ParseJSON(r, &req); err != nil {
		httputil.WriteAppError(w, r, err)
		return
	}
	doc, err := h.service.Update(r.Context(), principal, oc, projectID, documentID, req)
	if err != nil {
		httputil.WriteAppError(w, r, err)
		return
	}
	httputil.WriteSuccess(w, doc)
}

// delete handles DELETE /projects/{project_id}/documents/{document_id}
func (h *Handlers) delete(w http.ResponseWriter, r *http.Request) {
	principal, oc, err := orgs.RequestScope(r.Context())
	if err != nil {
		httputil.WriteAppError(w, r, err)
		return
	}
	projectID, documentID, err := httputil.ParseProjectPath(r, "document_id")
	if err != nil {
		httputil.WriteAppError(w, r, err)
		return
	}
	if err := h.service.Delete(r.Context(), principal, oc, projectID, documentID); err != nil {
		httputil.WriteAppError(w, r, err)
		return
	}
	httputil.WriteNoContent(w)
}

// download handles GET /projects/{project_id}/documents/{document_id}/download
func (h *Handlers) download(w http.ResponseWriter, r *http.Request) {
	principal, oc, err := orgs.RequestScope(r.Context())
	if err != nil {
		httputil.WriteAppError(w, r, err)
		return
	}
	projectID, documentID, err := httputil.ParseProjectPath(r, "document_id")
	if err != nil {
		httputil.WriteAppError(w, r, err)
		return
	}
	content, err := h.service.Download(r.Context(), principal, oc, projectID, documentID)
	if err != nil {
		httputil.WriteAppError(w, r, err)
		return
	}

	w.Header().Set("Content-Type", content.Document.MimeType)
	w.Header().Set("Content-Length", strconv.Itoa(len(content.Data)))
	w.Header().Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": content.Document.Name}))
	w.WriteHeader(http.StatusOK)
	w.Write(content.Data)
}

// url handles GET /projects/{project_id}/documents/{document_id}/url
func (h *Handlers) url(w http.ResponseWriter, r *http.Request) {
	principal, oc, err := orgs.RequestScope(r.Context())
	if err != nil {
		httputil.WriteAppError(w, r, err)
		return
	}
	projectID, documentID, err := httputil.ParseProjectPath(r, "document_id")
	if err != nil {
		httputil.WriteAppError(w, r, err)
		return
	}
	resp, err := h.service.URL(r.Context(), principal, oc, projectID, documentID)
	if err != nil {
		httputil.WriteAppError(w, r, err)
		return
	}
	httputil.WriteSuccess(w, resp)
}
