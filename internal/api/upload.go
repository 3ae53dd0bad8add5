package api

import (
	"fmt"
	"log/slog"
	"mime/multipart"
	"net/http"

	"github.com/cityshare/cityshare/internal/blob"
	"github.com/cityshare/cityshare/internal/imaging"
	"github.com/cityshare/cityshare/internal/metrics"
)

// MaxUploadFiles is the most files one upload request may carry.
const MaxUploadFiles = 10

// UploadHandler stores uploaded images.
type UploadHandler struct {
	Blobs   blob.Store
	Metrics *metrics.Metrics
}

type uploadResponse struct {
	Success bool     `json:"success"`
	URLs    []string `json:"urls"`
	Count   int      `json:"count"`
}

// Upload handles POST /upload. Every file is validated before any is
// stored, so a rejected request stores nothing.
func (h *UploadHandler) Upload(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, MaxUploadFiles*imaging.MaxBytes+1<<20)

	if err := r.ParseMultipartForm(8 << 20); err != nil {
		jsonError(w, http.StatusBadRequest, "request too large or invalid multipart form")
		return
	}
	defer r.MultipartForm.RemoveAll()

	folder := r.FormValue("folder")
	if err := blob.ValidFolder(folder); err != nil {
		jsonError(w, http.StatusBadRequest, err.Error())
		return
	}

	files := r.MultipartForm.File["files"]
	if len(files) == 0 {
		jsonError(w, http.StatusBadRequest, "no files provided")
		return
	}
	if len(files) > MaxUploadFiles {
		jsonError(w, http.StatusBadRequest, fmt.Sprintf("at most %d files per upload", MaxUploadFiles))
		return
	}

	processed := make([]*imaging.ProcessResult, 0, len(files))
	for _, fh := range files {
		result, err := processUpload(fh)
		if err != nil {
			h.count("rejected", 1)
			jsonError(w, http.StatusBadRequest, fmt.Sprintf("%s: %v", fh.Filename, err))
			return
		}
		processed = append(processed, result)
	}

	urls := make([]string, 0, len(processed))
	for _, p := range processed {
		key, err := blob.ObjectKey(folder, p.Ext)
		if err != nil {
			jsonError(w, http.StatusBadRequest, err.Error())
			return
		}
		url, err := h.Blobs.Put(r.Context(), key, p.MIME, p.Data)
		if err != nil {
			slog.Error("failed to store upload", "key", key, "error", err)
			jsonError(w, http.StatusInternalServerError, "failed to store file")
			return
		}
		urls = append(urls, url)
	}

	h.count("stored", len(urls))
	slog.Info("files uploaded", "count", len(urls), "folder", folder, "user_id", GetUser(r.Context()).ID)
	jsonResponse(w, http.StatusOK, uploadResponse{Success: true, URLs: urls, Count: len(urls)})
}

func (h *UploadHandler) count(result string, n int) {
	if h.Metrics != nil {
		h.Metrics.UploadsTotal.WithLabelValues(result).Add(float64(n))
	}
}

func processUpload(fh *multipart.FileHeader) (*imaging.ProcessResult, error) {
	if fh.Size > imaging.MaxBytes {
		return nil, imaging.ErrTooLarge
	}
	f, err := fh.Open()
	if err != nil {
		return nil, fmt.Errorf("opening file: %w", err)
	}
	defer f.Close()
	return imaging.Process(f)
}
