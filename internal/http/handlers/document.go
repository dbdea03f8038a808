package handlers

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/AICC2024/video-review/internal/http/response"
	"github.com/AICC2024/video-review/internal/platform/apierr"
	"github.com/AICC2024/video-review/internal/platform/gcp"
	"github.com/AICC2024/video-review/internal/platform/logger"
	"github.com/AICC2024/video-review/internal/review/chat"
	"github.com/AICC2024/video-review/internal/review/extract"
)

type documentTexter interface {
	DocumentText(ctx context.Context, src extract.Source) (string, error)
}

type DocumentHandler struct {
	log   *logger.Logger
	texts documentTexter
}

func NewDocumentHandler(log *logger.Logger, texts documentTexter) *DocumentHandler {
	return &DocumentHandler{log: log.With("handler", "DocumentHandler"), texts: texts}
}

// GET /api/documents/:asset_id/text
func (h *DocumentHandler) Text(c *gin.Context) {
	assetID := c.Param("asset_id")
	text, err := h.texts.DocumentText(c.Request.Context(), extract.Source{StorageKey: chat.DocumentKey(assetID)})
	if err != nil {
		if errors.Is(err, gcp.ErrObjectNotFound) {
			err = apierr.New(http.StatusNotFound, "not_found", err)
		} else {
			h.log.Error("document text failed", "asset_id", assetID, "error", err)
		}
		response.RespondErr(c, "document_text_failed", err)
		return
	}
	response.RespondOK(c, gin.H{"content": text})
}
