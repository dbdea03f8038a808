package handlers

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	types "github.com/AICC2024/video-review/internal/domain"
	"github.com/AICC2024/video-review/internal/http/response"
	"github.com/AICC2024/video-review/internal/platform/apierr"
	"github.com/AICC2024/video-review/internal/platform/dbctx"
	"github.com/AICC2024/video-review/internal/platform/gcp"
	"github.com/AICC2024/video-review/internal/platform/logger"
	"github.com/AICC2024/video-review/internal/review/extract"
)

type videoTranscriber interface {
	Transcript(ctx context.Context, src extract.Source) (*gcp.Transcript, error)
}

type unitTextLister interface {
	ListByAsset(dbc dbctx.Context, assetID string) ([]*types.UnitText, error)
}

type TranscriptHandler struct {
	log         *logger.Logger
	transcripts videoTranscriber
	units       unitTextLister
}

func NewTranscriptHandler(log *logger.Logger, transcripts videoTranscriber, units unitTextLister) *TranscriptHandler {
	return &TranscriptHandler{
		log:         log.With("handler", "TranscriptHandler"),
		transcripts: transcripts,
		units:       units,
	}
}

type transcriptSegment struct {
	Start float64 `json:"start"`
	End   float64 `json:"end"`
	Text  string  `json:"text"`
}

// VideoKey is the bucket key uploaded videos are stored under.
func VideoKey(assetID string) string { return "videos/" + assetID + ".mp4" }

// GET /api/transcript/:asset_id
func (h *TranscriptHandler) Stored(c *gin.Context) {
	assetID := c.Param("asset_id")
	units, err := h.units.ListByAsset(dbctx.Context{Ctx: c.Request.Context()}, assetID)
	if err != nil {
		h.log.Error("list unit text failed", "asset_id", assetID, "error", err)
		response.RespondErr(c, "transcript_failed", err)
		return
	}
	segments := storedSegments(units)
	if len(segments) == 0 {
		response.RespondErr(c, "transcript_not_found", apierr.New(http.StatusNotFound, "transcript_not_found", errors.New("transcript not found")))
		return
	}
	response.RespondOK(c, segments)
}

// GET /api/transcript_on_demand/:asset_id
func (h *TranscriptHandler) OnDemand(c *gin.Context) {
	assetID := c.Param("asset_id")
	tr, err := h.transcripts.Transcript(c.Request.Context(), extract.Source{StorageKey: VideoKey(assetID)})
	if err != nil {
		switch {
		case errors.Is(err, gcp.ErrObjectNotFound):
			err = apierr.New(http.StatusNotFound, "not_found", err)
		case errors.Is(err, extract.ErrTranscriptUnavailable):
			err = apierr.New(http.StatusServiceUnavailable, "transcript_unavailable", err)
		default:
			h.log.Error("on-demand transcription failed", "asset_id", assetID, "error", err)
		}
		response.RespondErr(c, "transcribe_failed", err)
		return
	}
	response.RespondOK(c, liveSegments(tr))
}

// storedSegments turns sampled narration into segments running from one
// sample offset to the next.
func storedSegments(units []*types.UnitText) []transcriptSegment {
	out := make([]transcriptSegment, 0, len(units))
	for _, u := range units {
		text := strings.TrimSpace(u.Text)
		if text == "" {
			continue
		}
		if n := len(out); n > 0 {
			out[n-1].End = float64(u.UnitIndex)
		}
		start := float64(u.UnitIndex)
		out = append(out, transcriptSegment{Start: start, End: start + extract.VideoSampleEvery, Text: text})
	}
	return out
}

func liveSegments(tr *gcp.Transcript) []transcriptSegment {
	out := make([]transcriptSegment, 0, len(tr.Segments))
	for _, s := range tr.Segments {
		if text := strings.TrimSpace(s.Text); text != "" {
			out = append(out, transcriptSegment{Start: s.StartSec, End: s.EndSec, Text: text})
		}
	}
	if len(out) == 0 && strings.TrimSpace(tr.Text) != "" {
		out = append(out, transcriptSegment{Text: strings.TrimSpace(tr.Text)})
	}
	return out
}
