package handlers

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	repos "github.com/AICC2024/video-review/internal/data/repos/review"
	types "github.com/AICC2024/video-review/internal/domain"
	"github.com/AICC2024/video-review/internal/http/response"
	"github.com/AICC2024/video-review/internal/platform/ctxutil"
	"github.com/AICC2024/video-review/internal/platform/dbctx"
	"github.com/AICC2024/video-review/internal/platform/logger"
)

const anonymousAuthor = "Anonymous"

type CommentHandler struct {
	log      *logger.Logger
	comments repos.CommentRepo
}

func NewCommentHandler(log *logger.Logger, comments repos.CommentRepo) *CommentHandler {
	return &CommentHandler{log: log.With("handler", "CommentHandler"), comments: comments}
}

// commentView is the read shape of a comment.
type commentView struct {
	ID        uuid.UUID       `json:"id"`
	Timestamp *string         `json:"timestamp"`
	UnitIndex *int            `json:"unit_index"`
	Comment   string          `json:"comment"`
	Author    string          `json:"author"`
	CreatedAt string          `json:"created_at"`
	Reactions types.Reactions `json:"reactions"`
}

func viewOf(c *types.Comment) commentView {
	reactions, err := types.DecodeReactions(c.Reactions)
	if err != nil || reactions == nil {
		reactions = types.Reactions{}
	}
	return commentView{
		ID:        c.ID,
		Timestamp: c.Timestamp,
		UnitIndex: c.UnitIndex,
		Comment:   c.Body,
		Author:    c.Author,
		CreatedAt: c.CreatedAt.UTC().Format(time.RFC3339),
		Reactions: reactions,
	}
}

func caller(c *gin.Context) string {
	if rd := ctxutil.GetRequestData(c.Request.Context()); rd != nil {
		return strings.TrimSpace(rd.Username)
	}
	return ""
}

type createCommentReq struct {
	AssetID   string  `json:"asset_id"`
	Timestamp *string `json:"timestamp"`
	UnitIndex *int    `json:"unit_index"`
	Comment   string  `json:"comment"`
}

// POST /api/comments
func (h *CommentHandler) Create(c *gin.Context) {
	var req createCommentReq
	if err := c.ShouldBindJSON(&req); err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_request", err)
		return
	}
	if strings.TrimSpace(req.AssetID) == "" || strings.TrimSpace(req.Comment) == "" {
		response.RespondError(c, http.StatusBadRequest, "invalid_request", errors.New("asset_id and comment are required"))
		return
	}
	author := caller(c)
	if author == "" {
		author = anonymousAuthor
	}
	dbc := dbctx.Context{Ctx: c.Request.Context()}
	id, err := h.comments.Append(dbc, &types.Comment{
		AssetID:   strings.TrimSpace(req.AssetID),
		Timestamp: req.Timestamp,
		UnitIndex: req.UnitIndex,
		Body:      req.Comment,
		Author:    author,
	})
	if err != nil {
		response.RespondErr(c, "create_comment_failed", err)
		return
	}
	response.RespondOK(c, gin.H{"status": "success", "id": id})
}

// GET /api/comments/:asset_id
func (h *CommentHandler) ListByAsset(c *gin.Context) {
	dbc := dbctx.Context{Ctx: c.Request.Context()}
	rows, err := h.comments.ListByAsset(dbc, c.Param("asset_id"))
	if err != nil {
		response.RespondErr(c, "list_comments_failed", err)
		return
	}
	out := make([]commentView, 0, len(rows))
	for _, row := range rows {
		out = append(out, viewOf(row))
	}
	response.RespondOK(c, out)
}

// GET /api/comments/unique_asset_ids
func (h *CommentHandler) UniqueAssetIDs(c *gin.Context) {
	dbc := dbctx.Context{Ctx: c.Request.Context()}
	ids, err := h.comments.DistinctAssetIDs(dbc)
	if err != nil {
		response.RespondErr(c, "list_assets_failed", err)
		return
	}
	if ids == nil {
		ids = []string{}
	}
	response.RespondOK(c, ids)
}

type updateCommentReq struct {
	Comment string `json:"comment"`
}

// PUT /api/comments/:id
func (h *CommentHandler) Update(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_comment_id", err)
		return
	}
	var req updateCommentReq
	if err := c.ShouldBindJSON(&req); err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_request", err)
		return
	}
	if strings.TrimSpace(req.Comment) == "" {
		response.RespondError(c, http.StatusBadRequest, "invalid_request", errors.New("comment is required"))
		return
	}
	dbc := dbctx.Context{Ctx: c.Request.Context()}
	if _, err := h.comments.UpdateBody(dbc, id, req.Comment); err != nil {
		response.RespondErr(c, "update_comment_failed", err)
		return
	}
	response.RespondOK(c, gin.H{"status": "updated", "id": id})
}

type reactionsReq struct {
	Reactions []string `json:"reactions"`
}

// PATCH /api/comments/:id/reactions
// Each label in the body is toggled for the caller.
func (h *CommentHandler) ToggleReactions(c *gin.Context) {
	user := caller(c)
	if user == "" {
		response.RespondError(c, http.StatusUnauthorized, "unauthorized", errors.New("sign in to react"))
		return
	}
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_comment_id", err)
		return
	}
	var req reactionsReq
	if err := c.ShouldBindJSON(&req); err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_request", err)
		return
	}
	dbc := dbctx.Context{Ctx: c.Request.Context()}
	reactions, err := h.comments.ToggleReactions(dbc, id, user, req.Reactions)
	if err != nil {
		response.RespondErr(c, "toggle_reactions_failed", err)
		return
	}
	if reactions == nil {
		reactions = types.Reactions{}
	}
	response.RespondOK(c, gin.H{"status": "reaction toggled", "id": id, "reactions": reactions})
}

// DELETE /api/comments/:id
func (h *CommentHandler) Delete(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_comment_id", err)
		return
	}
	dbc := dbctx.Context{Ctx: c.Request.Context()}
	if err := h.comments.Delete(dbc, id); err != nil {
		response.RespondErr(c, "delete_comment_failed", err)
		return
	}
	response.RespondOK(c, gin.H{"status": "deleted", "id": id})
}
