package handlers

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	types "github.com/AICC2024/video-review/internal/domain"
	"github.com/AICC2024/video-review/internal/http/response"
	"github.com/AICC2024/video-review/internal/jobs/dispatch"
	"github.com/AICC2024/video-review/internal/platform/apierr"
	"github.com/AICC2024/video-review/internal/platform/logger"
	"github.com/AICC2024/video-review/internal/review/chat"
	"github.com/AICC2024/video-review/internal/review/extract"
	"github.com/AICC2024/video-review/internal/review/orchestrator"
	"github.com/AICC2024/video-review/internal/review/reviewerr"
)

type reviewJobs interface {
	Dispatch(ctx context.Context, job orchestrator.Job) (dispatch.Ack, error)
	Execute(ctx context.Context, job orchestrator.Job) (orchestrator.Result, error)
}

type chatReplier interface {
	Reply(ctx context.Context, req chat.Request) (string, error)
}

type ReviewHandler struct {
	log  *logger.Logger
	jobs reviewJobs
	chat chatReplier
}

func NewReviewHandler(log *logger.Logger, jobs reviewJobs, chat chatReplier) *ReviewHandler {
	return &ReviewHandler{log: log.With("handler", "ReviewHandler"), jobs: jobs, chat: chat}
}

type reviewReq struct {
	FileURL    string `json:"file_url"`
	StorageKey string `json:"storage_key"`
	MediaType  string `json:"media_type"`
	AssetID    string `json:"asset_id"`
}

func (r reviewReq) job(defaultKind types.MediaKind) (orchestrator.Job, error) {
	kind := defaultKind
	if strings.TrimSpace(r.MediaType) != "" || kind == "" {
		k, ok := types.ParseMediaKind(r.MediaType)
		if !ok {
			return orchestrator.Job{}, &reviewerr.ValidationError{Field: "media_type"}
		}
		kind = k
	}
	return orchestrator.Job{
		AssetID:   strings.TrimSpace(r.AssetID),
		MediaKind: kind,
		Source: extract.Source{
			URL:        strings.TrimSpace(r.FileURL),
			StorageKey: strings.TrimSpace(r.StorageKey),
		},
	}, nil
}

// POST /api/review/async
func (h *ReviewHandler) ReviewAsync(c *gin.Context) {
	h.start(c, "")
}

// POST /api/review/video/async
func (h *ReviewHandler) ReviewVideoAsync(c *gin.Context) {
	h.start(c, types.MediaVideo)
}

func (h *ReviewHandler) start(c *gin.Context, kind types.MediaKind) {
	var req reviewReq
	if err := c.ShouldBindJSON(&req); err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_request", err)
		return
	}
	job, err := req.job(kind)
	if err == nil && kind == types.MediaVideo && job.MediaKind != types.MediaVideo {
		err = &reviewerr.ValidationError{Field: "media_type"}
	}
	if err != nil {
		response.RespondErr(c, "invalid_request", err)
		return
	}
	ack, err := h.jobs.Dispatch(c.Request.Context(), job)
	if err != nil {
		response.RespondErr(c, "dispatch_failed", err)
		return
	}
	response.RespondAccepted(c, ack)
}

// POST /api/review/document
// Runs a whole-document review inline. Without a source the asset's stored
// .docx is reviewed.
func (h *ReviewHandler) ReviewDocument(c *gin.Context) {
	var req reviewReq
	if err := c.ShouldBindJSON(&req); err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_request", err)
		return
	}
	job, err := req.job(types.MediaDocument)
	if err != nil {
		response.RespondErr(c, "invalid_request", err)
		return
	}
	job.WholeAsset = true
	if job.Source.Empty() && job.AssetID != "" {
		job.Source.StorageKey = chat.DocumentKey(job.AssetID)
	}
	if err := orchestrator.Validate(job); err != nil {
		response.RespondErr(c, "invalid_request", err)
		return
	}
	res, err := h.jobs.Execute(c.Request.Context(), job)
	if err != nil {
		var ee *reviewerr.ExtractionError
		switch {
		case errors.Is(err, dispatch.ErrAssetBusy):
			err = apierr.New(http.StatusConflict, "asset_busy", err)
		case errors.As(err, &ee):
			err = apierr.New(http.StatusUnprocessableEntity, "extraction_failed", err)
		}
		response.RespondErr(c, "review_failed", err)
		return
	}
	if res.CommentsWritten == 0 && len(res.Failures) > 0 {
		response.RespondErr(c, "review_failed", res.Failures[0].Err)
		return
	}
	response.RespondOK(c, gin.H{"status": "completed", "comments_added": res.CommentsWritten})
}

type chatReq struct {
	Message   string `json:"message"`
	FileURL   string `json:"file_url"`
	MediaType string `json:"media_type"`
	AssetID   string `json:"asset_id"`
	ChatImage string `json:"chat_image"`
}

// POST /api/review/chat
func (h *ReviewHandler) Chat(c *gin.Context) {
	var req chatReq
	if err := c.ShouldBindJSON(&req); err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_request", err)
		return
	}
	reply, err := h.chat.Reply(c.Request.Context(), chat.Request{
		Message:   req.Message,
		FileURL:   req.FileURL,
		MediaType: req.MediaType,
		AssetID:   req.AssetID,
		ChatImage: req.ChatImage,
	})
	if err != nil {
		var ve *reviewerr.ValidationError
		if errors.As(err, &ve) {
			response.RespondErr(c, "invalid_request", err)
			return
		}
		h.log.Error("chat failed", "asset_id", req.AssetID, "error", err)
		response.RespondError(c, http.StatusInternalServerError, "chat_failed", errors.New("chat request failed"))
		return
	}
	response.RespondOK(c, gin.H{"response": reply})
}
