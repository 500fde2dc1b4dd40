package http

import (
	"bufio"
	"io"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/sobat-hris/sobat-backend-go/internal/domain/user"
	"github.com/sobat-hris/sobat-backend-go/internal/handler/http/response"
	"github.com/sobat-hris/sobat-backend-go/internal/service/file"
)

type FileHandler interface {
	Download(w http.ResponseWriter, r *http.Request)
}

type FileHandlerImpl struct {
	fileService file.FileService
}

func NewFileHandler(fileService file.FileService) FileHandler {
	return &FileHandlerImpl{fileService: fileService}
}

// Download streams a blob of the caller's company. Blobs are immutable, so
// clients may cache them for good.
func (h *FileHandlerImpl) Download(w http.ResponseWriter, r *http.Request) {
	caller, err := callerFromRequest(r)
	if err != nil {
		response.HandleError(w, err)
		return
	}
	if caller.CompanyID == "" {
		response.HandleError(w, user.ErrCompanyIDRequired)
		return
	}

	blobID := chi.URLParam(r, "blob_id")
	rc, err := h.fileService.Open(r.Context(), caller.CompanyID, blobID)
	if err != nil {
		response.HandleError(w, err)
		return
	}
	defer rc.Close()

	br := bufio.NewReader(rc)
	head, _ := br.Peek(512)

	w.Header().Set("Content-Type", http.DetectContentType(head))
	w.Header().Set("Cache-Control", "private, max-age=31536000, immutable")
	w.WriteHeader(http.StatusOK)
	if _, err := io.Copy(w, br); err != nil {
		slog.Warn("file stream interrupted", "blob_id", blobID, "error", err)
	}
}
