package handlers

import (
	"bytes"
	"context"
	"io"
	"net/http"

	"go.uber.org/zap"

	"github.com/AnshRaj112/storefront-backend/internal/apperr"
)

// MaxUploadBytes caps an uploaded image at 10MB.
const MaxUploadBytes = 10 << 20

// allowedImageTypes are the sniffed content types accepted for upload.
var allowedImageTypes = map[string]bool{
	"image/jpeg": true,
	"image/png":  true,
	"image/gif":  true,
	"image/webp": true,
}

// ImageUploader stores an image and returns its public URL;
// services.CloudinaryService implements it.
type ImageUploader interface {
	UploadImage(ctx context.Context, file io.Reader) (string, error)
}

type UploadHandler struct {
	uploader ImageUploader
	log      *zap.Logger
}

// NewUploadHandler accepts a nil uploader; uploads then fail with 500.
func NewUploadHandler(uploader ImageUploader, log *zap.Logger) *UploadHandler {
	return &UploadHandler{uploader: uploader, log: log}
}

type UploadResponse struct {
	Status  string `json:"status"`
	Message string `json:"message"`
	URL     string `json:"url,omitempty"`
}

// Upload handles POST /uploads (multipart field "file")
func (h *UploadHandler) Upload(w http.ResponseWriter, r *http.Request) {
	if h.uploader == nil {
		writeError(w, r, h.log, apperr.Unexpected("upload service not available", nil))
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, MaxUploadBytes+1<<20)
	if err := r.ParseMultipartForm(MaxUploadBytes); err != nil {
		writeError(w, r, h.log, apperr.Validation("Failed to parse form: file must be at most 10MB"))
		return
	}
	defer r.MultipartForm.RemoveAll()

	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, r, h.log, apperr.Validation("No file provided"))
		return
	}
	defer file.Close()

	if header.Size > MaxUploadBytes {
		writeError(w, r, h.log, apperr.Validation("File must be at most 10MB"))
		return
	}

	// Sniff the real type from the first 512 bytes.
	head := make([]byte, 512)
	n, err := io.ReadFull(file, head)
	if err != nil && err != io.ErrUnexpectedEOF && err != io.EOF {
		writeError(w, r, h.log, apperr.Unexpected("could not read upload", err))
		return
	}
	head = head[:n]
	if !allowedImageTypes[http.DetectContentType(head)] {
		writeError(w, r, h.log, apperr.Validation("Only image files (jpeg, png, gif, webp) can be uploaded"))
		return
	}

	url, err := h.uploader.UploadImage(r.Context(), io.MultiReader(bytes.NewReader(head), file))
	if err != nil {
		writeError(w, r, h.log, apperr.Unexpected("Failed to upload file", err))
		return
	}

	writeJSON(w, http.StatusCreated, UploadResponse{
		Status:  statusSuccess,
		Message: "File uploaded successfully",
		URL:     url,
	})
}
