package handlers

import (
	"context"
	"errors"
	"net/http"
	"path/filepath"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/memovox/memovox/internal/services"
	"github.com/memovox/memovox/internal/utils"
)

// transcriptResponse is the single body shape of /trascrivi: always a
// JSON object with one string field, even on failure.
type transcriptResponse struct {
	Transcript string `json:"transcript"`
}

type TranscribeHandler struct {
	svc       services.TranscribeService
	uploadDir string
	log       *logrus.Logger
}

func NewTranscribeHandler(svc services.TranscribeService, uploadDir string, log *logrus.Logger) *TranscribeHandler {
	return &TranscribeHandler{svc: svc, uploadDir: uploadDir, log: log}
}

// Handle receives one multipart audio upload and runs it through the
// pipeline. Status codes: 400 no file, 500 conversion/unexpected,
// 502 empty upstream reply, 200 otherwise.
func (h *TranscribeHandler) Handle(c *gin.Context) {
	fh, err := c.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, transcriptResponse{Transcript: services.PhraseNoFile})
		return
	}

	dst := filepath.Join(h.uploadDir, uuid.NewString()+filepath.Ext(fh.Filename))
	if err := c.SaveUploadedFile(fh, dst); err != nil {
		h.log.WithError(err).Error("failed to persist upload")
		c.JSON(http.StatusInternalServerError, transcriptResponse{Transcript: services.PhraseConversionFailed})
		return
	}

	// A client that disconnects mid-upload must not abort the
	// pipeline: transcription and notification finish regardless.
	ctx := context.WithoutCancel(c.Request.Context())

	transcript, err := h.svc.Process(ctx, services.Upload{
		Path: dst,
		Name: fh.Filename,
		MIME: fh.Header.Get("Content-Type"),
		Size: fh.Size,
	})
	if err != nil {
		h.log.WithError(err).Error("pipeline failed")
		c.JSON(utils.HTTPStatus(err), transcriptResponse{Transcript: failurePhrase(err)})
		return
	}

	c.JSON(http.StatusOK, transcriptResponse{Transcript: transcript})
}

func failurePhrase(err error) string {
	var ae *utils.AppError
	if errors.As(err, &ae) && ae.Message != "" {
		return ae.Message
	}
	return services.PhraseRequestFailed
}
