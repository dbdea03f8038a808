package handlers

import (
	"errors"
	"net/http"
	"path"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/AICC2024/video-review/internal/http/response"
	"github.com/AICC2024/video-review/internal/platform/apierr"
	"github.com/AICC2024/video-review/internal/platform/gcp"
	"github.com/AICC2024/video-review/internal/platform/logger"
	"github.com/AICC2024/video-review/internal/review/instructions"
)

type AdminHandler struct {
	log          *logger.Logger
	instructions instructions.Store
	bucket       gcp.BucketService
}

func NewAdminHandler(log *logger.Logger, store instructions.Store, bucket gcp.BucketService) *AdminHandler {
	return &AdminHandler{log: log.With("handler", "AdminHandler"), instructions: store, bucket: bucket}
}

// GET /api/admin/instructions?mode=
func (h *AdminHandler) GetInstructions(c *gin.Context) {
	mode := instructions.NormalizeMode(c.Query("mode"))
	if mode == "" {
		response.RespondError(c, http.StatusBadRequest, "invalid_request", errors.New("missing mode"))
		return
	}
	content, err := h.instructions.Get(c.Request.Context(), mode)
	if err != nil {
		response.RespondErr(c, "read_instructions_failed", err)
		return
	}
	response.RespondOK(c, gin.H{"mode": mode, "content": content})
}

// GET /api/admin/instructions/all
func (h *AdminHandler) ListInstructions(c *gin.Context) {
	all, err := h.instructions.All(c.Request.Context())
	if err != nil {
		response.RespondErr(c, "read_instructions_failed", err)
		return
	}
	response.RespondOK(c, gin.H{"instructions": all})
}

type saveInstructionsReq struct {
	Mode    string  `json:"mode"`
	Content *string `json:"content"`
}

// POST /api/admin/instructions
func (h *AdminHandler) SaveInstructions(c *gin.Context) {
	var req saveInstructionsReq
	if err := c.ShouldBindJSON(&req); err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_request", err)
		return
	}
	mode := instructions.NormalizeMode(req.Mode)
	if mode == "" || req.Content == nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_request", errors.New("missing mode or content"))
		return
	}
	if err := h.instructions.Set(c.Request.Context(), mode, *req.Content); err != nil {
		response.RespondErr(c, "save_instructions_failed", err)
		return
	}
	h.log.Info("instructions saved", "mode", mode, "bytes", len(*req.Content))
	response.RespondOK(c, gin.H{"status": "saved", "mode": mode})
}

// POST /api/admin/upload (multipart: file, category)
func (h *AdminHandler) Upload(c *gin.Context) {
	category := strings.Trim(strings.TrimSpace(c.PostForm("category")), "/")
	fh, err := c.FormFile("file")
	if err != nil || category == "" {
		response.RespondError(c, http.StatusBadRequest, "invalid_request", errors.New("missing file or category"))
		return
	}
	f, err := fh.Open()
	if err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_request", err)
		return
	}
	defer f.Close()

	key := gcp.MediaKey(category, fh.Filename)
	if err := h.bucket.UploadFile(c.Request.Context(), key, f); err != nil {
		response.RespondErr(c, "upload_failed", err)
		return
	}
	h.log.Info("media uploaded", "key", key, "size", fh.Size)
	response.RespondOK(c, gin.H{"status": "uploaded", "key": key, "url": h.bucket.GetPublicURL(key)})
}

type archiveReq struct {
	Key      string `json:"key"`
	Category string `json:"category"`
	Filename string `json:"filename"`
}

// POST /api/admin/archive
// Accepts {key} or the older {category, filename} pair.
func (h *AdminHandler) Archive(c *gin.Context) {
	var req archiveReq
	if err := c.ShouldBindJSON(&req); err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_request", err)
		return
	}
	key := strings.TrimSpace(req.Key)
	if key == "" && strings.TrimSpace(req.Category) != "" && strings.TrimSpace(req.Filename) != "" {
		key = gcp.MediaKey(req.Category, req.Filename)
	}
	if key == "" || strings.HasSuffix(key, "/") {
		response.RespondError(c, http.StatusBadRequest, "invalid_request", errors.New("missing key"))
		return
	}
	dst, err := h.bucket.Archive(c.Request.Context(), key)
	if err != nil {
		if errors.Is(err, gcp.ErrObjectNotFound) {
			err = apierr.New(http.StatusNotFound, "not_found", err)
		}
		response.RespondErr(c, "archive_failed", err)
		return
	}
	response.RespondOK(c, gin.H{"status": "archived", "from": key, "to": dst})
}

type mediaItem struct {
	Filename string `json:"filename"`
	URL      string `json:"url"`
}

// GET /api/media?type=<category>
func (h *AdminHandler) ListMedia(c *gin.Context) {
	category := strings.Trim(strings.TrimSpace(c.Query("type")), "/")
	if category == "" {
		response.RespondError(c, http.StatusBadRequest, "invalid_request", errors.New("missing media type"))
		return
	}
	keys, err := h.bucket.ListKeys(c.Request.Context(), category+"/")
	if err != nil {
		response.RespondErr(c, "list_media_failed", err)
		return
	}
	out := make([]mediaItem, 0, len(keys))
	for _, k := range keys {
		out = append(out, mediaItem{Filename: path.Base(k), URL: h.bucket.GetPublicURL(k)})
	}
	response.RespondOK(c, out)
}
