package api

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/11im/whisper-api/internal/storage"
	"github.com/11im/whisper-api/internal/stt"
	"github.com/11im/whisper-api/internal/upload"
)

// transcribeResponse is the success body of POST /transcribe.
type transcribeResponse struct {
	Text           string         `json:"text"`
	Segments       []stt.Segment  `json:"segments"`
	Language       string         `json:"language"`
	ProcessingTime processingTime `json:"processing_time"`
}

// processingTime reports wall-clock seconds. Transcribe covers the engine
// call alone; Total covers the whole request including upload handling.
type processingTime struct {
	Transcribe float64 `json:"transcribe"`
	Total      float64 `json:"total"`
}

// respondError maps a classified failure onto the wire: validation faults
// belong to the client (400), storage and engine faults to the server (500).
// Engine failures also carry their diagnostic trace in the body.
func (h *Handler) respondError(c *gin.Context, err error) {
	var (
		verr   *upload.ValidationError
		ioErr  *storage.IOError
		engErr *stt.EngineError
	)
	switch {
	case errors.As(err, &verr):
		c.JSON(http.StatusBadRequest, gin.H{"error": verr.Message})
	case errors.As(err, &ioErr):
		h.log.Error("upload storage failed", zap.Error(ioErr))
		c.JSON(http.StatusInternalServerError, gin.H{"error": ioErr.Error()})
	case errors.As(err, &engErr):
		body := gin.H{"error": engErr.Message}
		if engErr.Trace != "" {
			body["traceback"] = engErr.Trace
		}
		c.JSON(http.StatusInternalServerError, body)
	default:
		h.log.Error("unclassified failure", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
	}
}
