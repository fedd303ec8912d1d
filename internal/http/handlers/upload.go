package handlers

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/sync/errgroup"

	"github.com/swiftloan/api/internal/config"
	"github.com/swiftloan/api/internal/observability"
	"github.com/swiftloan/api/internal/storage"
)

type UploadHandler struct {
	uploader storage.Uploader
	prom     *observability.Prom
}

func NewUploadHandler(uploader storage.Uploader, prom *observability.Prom) *UploadHandler {
	return &UploadHandler{uploader: uploader, prom: prom}
}

// POST /api/upload
//
// Accepts multipart "files" parts and returns the resulting public URLs
// in submission order. A single failed part fails the whole batch.
func (h *UploadHandler) Upload(ctx *gin.Context) {
	form, err := ctx.MultipartForm()
	if err != nil {
		RespondBadRequest(ctx, "Expected multipart form data", nil)
		return
	}

	files := form.File["files"]
	if len(files) == 0 {
		RespondBadRequest(ctx, "No files were submitted", nil)
		return
	}

	cctx, cancel := config.WithTimeout(60 * time.Second)
	defer cancel()

	urls := make([]string, len(files))
	g, gctx := errgroup.WithContext(cctx)

	for i, fh := range files {
		i, fh := i, fh

		g.Go(func() error {
			f, err := fh.Open()
			if err != nil {
				return err
			}
			defer f.Close()

			url, err := h.uploader.Upload(gctx, fh.Filename, f)
			if err != nil {
				return err
			}

			urls[i] = url
			return nil
		})
	}

	start := time.Now()
	err = g.Wait()
	if h.prom != nil {
		h.prom.ObserveUpload(len(files), time.Since(start), err == nil)
	}

	if err != nil {
		if errors.Is(err, storage.ErrNotConfigured) {
			RespondError(ctx, http.StatusServiceUnavailable, "uploads_unavailable", "Document storage is not configured", nil)
			return
		}
		RespondInternal(ctx, "Could not upload documents")
		return
	}

	ctx.JSON(http.StatusOK, gin.H{"urls": urls})
}
