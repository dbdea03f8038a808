package handlers

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/AICC2024/video-review/internal/http/response"
	"github.com/AICC2024/video-review/internal/platform/apierr"
	"github.com/AICC2024/video-review/internal/platform/logger"
	"github.com/AICC2024/video-review/internal/review/notify"
)

type notifier interface {
	Team(ctx context.Context, in notify.TeamNotice) error
	Comment(ctx context.Context, in notify.CommentNotice) error
}

type NotifyHandler struct {
	log    *logger.Logger
	notify notifier
}

func NewNotifyHandler(log *logger.Logger, n notifier) *NotifyHandler {
	return &NotifyHandler{log: log.With("handler", "NotifyHandler"), notify: n}
}

type notifyTeamReq struct {
	AssetID  string   `json:"asset_id"`
	Reviewer string   `json:"reviewer"`
	AssetURL string   `json:"asset_url"`
	To       []string `json:"to"`
	Message  string   `json:"message"`
}

// POST /api/notify/team
func (h *NotifyHandler) Team(c *gin.Context) {
	var req notifyTeamReq
	if err := c.ShouldBindJSON(&req); err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_request", err)
		return
	}
	err := h.notify.Team(c.Request.Context(), notify.TeamNotice{
		AssetID:  req.AssetID,
		Reviewer: req.Reviewer,
		AssetURL: req.AssetURL,
		To:       req.To,
		Message:  req.Message,
	})
	if err != nil {
		h.fail(c, req.AssetID, err)
		return
	}
	response.RespondOK(c, gin.H{"status": "Notification sent"})
}

type notifyCommentReq struct {
	AssetID     string   `json:"asset_id"`
	Page        *int     `json:"page"`
	CommentText string   `json:"comment_text"`
	Reviewer    string   `json:"reviewer"`
	To          []string `json:"to"`
	AssetURL    string   `json:"asset_url"`
}

// POST /api/notify/comment
func (h *NotifyHandler) Comment(c *gin.Context) {
	var req notifyCommentReq
	if err := c.ShouldBindJSON(&req); err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_request", err)
		return
	}
	err := h.notify.Comment(c.Request.Context(), notify.CommentNotice{
		AssetID:  req.AssetID,
		Page:     req.Page,
		Comment:  req.CommentText,
		Reviewer: req.Reviewer,
		AssetURL: req.AssetURL,
		To:       req.To,
	})
	if err != nil {
		h.fail(c, req.AssetID, err)
		return
	}
	response.RespondOK(c, gin.H{"status": "Comment notification sent"})
}

func (h *NotifyHandler) fail(c *gin.Context, assetID string, err error) {
	if errors.Is(err, apierr.ErrInvalidArgument) {
		response.RespondErr(c, "invalid_request", err)
		return
	}
	h.log.Error("notification failed", "asset_id", assetID, "error", err)
	response.RespondError(c, http.StatusInternalServerError, "notify_failed", errors.New("failed to send notification"))
}
