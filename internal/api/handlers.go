package api

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/11im/whisper-api/internal/health"
	"github.com/11im/whisper-api/internal/storage"
	"github.com/11im/whisper-api/internal/stt"
	"github.com/11im/whisper-api/internal/upload"
)

// Handler carries the collaborators behind the HTTP surface.
type Handler struct {
	store  *storage.Store
	coord  *stt.Coordinator
	health *health.Reporter
	log    *zap.Logger
}

func NewHandler(store *storage.Store, coord *stt.Coordinator, reporter *health.Reporter, log *zap.Logger) *Handler {
	if log == nil {
		log = zap.NewNop()
	}
	return &Handler{store: store, coord: coord, health: reporter, log: log}
}

// RegisterRoutes registers all API routes
func RegisterRoutes(r *gin.Engine, h *Handler) {
	r.POST("/transcribe", h.handleTranscribe)
	r.GET("/health", h.handleHealth)
}

// handleTranscribe accepts one audio file as the "file" part of a multipart
// form, transcribes it and returns the text with timed segments. The upload
// only exists on disk between validation and the response: by the time a
// response is written, success or failure, the temp file is gone.
func (h *Handler) handleTranscribe(c *gin.Context) {
	start := time.Now()

	fileHeader, err := c.FormFile("file")
	if err != nil && isBodyTooLarge(err) {
		h.log.Warn("upload rejected, body too large", zap.Error(err))
		c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": "request body too large"})
		return
	}

	var req *upload.Request
	switch {
	case err == nil:
		req = &upload.Request{
			Filename:    fileHeader.Filename,
			ContentType: fileHeader.Header.Get("Content-Type"),
			Size:        fileHeader.Size,
		}
	case hasBlankFilePart(c.Request):
		req = &upload.Request{}
	}
	if verr := upload.Validate(req); verr != nil {
		h.log.Warn("upload rejected",
			zap.String("reason", string(verr.Reason)),
			zap.String("filename", requestFilename(req)))
		c.JSON(http.StatusBadRequest, gin.H{"error": verr.Message})
		return
	}

	src, err := fileHeader.Open()
	if err != nil {
		h.respondError(c, &storage.IOError{Op: "open upload", Path: fileHeader.Filename, Err: err})
		return
	}
	stored, err := h.store.Save(fileHeader.Filename, src)
	src.Close()
	if err != nil {
		h.respondError(c, err)
		return
	}

	h.log.Info("processing upload",
		zap.String("filename", stored.Name),
		zap.Int64("size", stored.Size))

	result, err := h.transcribeStored(c.Request.Context(), stored)
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, transcribeResponse{
		Text:     result.Text,
		Segments: result.Segments,
		Language: result.Language,
		ProcessingTime: processingTime{
			Transcribe: result.Elapsed.Seconds(),
			Total:      time.Since(start).Seconds(),
		},
	})
}

// transcribeStored runs the engine on a stored upload. The file is released
// before this returns, so no response is ever written while the upload is
// still on disk.
func (h *Handler) transcribeStored(ctx context.Context, f *storage.StoredFile) (*stt.Result, error) {
	defer h.store.Release(f)
	return h.coord.Transcribe(ctx, f.Path)
}

// handleHealth reports liveness. It never touches the coordinator, so it
// answers immediately even while a transcription holds the engine.
func (h *Handler) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, h.health.Snapshot(c.Request.Context()))
}

func requestFilename(req *upload.Request) string {
	if req == nil {
		return ""
	}
	return req.Filename
}

// hasBlankFilePart reports whether the form carries a "file" entry that was
// parsed as a plain value. Browsers submit an unchosen file input as a part
// with an empty filename parameter, which the multipart parser stores as a
// form value rather than a file.
func hasBlankFilePart(r *http.Request) bool {
	return r.MultipartForm != nil && len(r.MultipartForm.Value["file"]) > 0
}

func isBodyTooLarge(err error) bool {
	var maxErr *http.MaxBytesError
	if errors.As(err, &maxErr) {
		return true
	}
	return err != nil && strings.Contains(err.Error(), "request body too large")
}
