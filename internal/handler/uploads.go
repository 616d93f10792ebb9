package handler

import (
	"io"
	"log"
	"mime"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/tirtakita/api/internal/blob"
)

// 5 MB is plenty for a phone photo of a receipt.
const maxUploadSize = 5 << 20

// UploadHandler stores proof files and serves them back by reference.
type UploadHandler struct {
	store blob.Store
}

func NewUploadHandler(store blob.Store) *UploadHandler {
	return &UploadHandler{store: store}
}

// RegisterRoutes registers upload endpoints. Mounted at /companies/{cid}/uploads.
func (h *UploadHandler) RegisterRoutes(r chi.Router) {
	r.Post("/", h.Upload)
	r.Get("/{ref}", h.Download)
}

// Upload accepts a multipart file field named "file" and returns the
// reference to store in a proof_ref column.
func (h *UploadHandler) Upload(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadSize)
	if err := r.ParseMultipartForm(maxUploadSize); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid multipart body"})
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "file field is required"})
		return
	}
	defer file.Close()

	ref, err := h.store.Save(header.Filename, file)
	if err != nil {
		log.Printf("ERROR: save upload: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	writeJSON(w, http.StatusCreated, map[string]string{"ref": ref})
}

func (h *UploadHandler) Download(w http.ResponseWriter, r *http.Request) {
	ref := chi.URLParam(r, "ref")

	rc, err := h.store.Open(ref)
	if err != nil {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "file not found"})
		return
	}
	defer rc.Close()

	contentType := mime.TypeByExtension(strings.ToLower(filepath.Ext(ref)))
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	w.Header().Set("Content-Type", contentType)
	if _, err := io.Copy(w, rc); err != nil {
		log.Printf("ERROR: stream upload %s: %v", ref, err)
	}
}
