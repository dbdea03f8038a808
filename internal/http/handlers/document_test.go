package handlers

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/AICC2024/video-review/internal/platform/gcp"
	"github.com/AICC2024/video-review/internal/platform/logger"
	"github.com/AICC2024/video-review/internal/review/extract"
)

type textsFunc func(ctx context.Context, src extract.Source) (string, error)

func (f textsFunc) DocumentText(ctx context.Context, src extract.Source) (string, error) {
	return f(ctx, src)
}

func TestDocumentText(t *testing.T) {
	var gotKey string
	h := NewDocumentHandler(logger.Nop(), textsFunc(func(_ context.Context, src extract.Source) (string, error) {
		gotKey = src.StorageKey
		switch src.StorageKey {
		case "documents/brief.docx":
			return "Intro\n\nScope", nil
		case "documents/broken.docx":
			return "", errors.New("soffice exited 1")
		default:
			return "", fmt.Errorf("download: %w", gcp.ErrObjectNotFound)
		}
	}))
	r := testEngine("")
	r.GET("/api/documents/:asset_id/text", h.Text)

	rec := doJSON(t, r, http.MethodGet, "/api/documents/brief/text", nil)
	wantStatus(t, rec, http.StatusOK)
	if got := decode[map[string]string](t, rec); got["content"] != "Intro\n\nScope" || gotKey != "documents/brief.docx" {
		t.Fatalf("content = %v key = %q", got, gotKey)
	}
	wantStatus(t, doJSON(t, r, http.MethodGet, "/api/documents/nope/text", nil), http.StatusNotFound)
	wantStatus(t, doJSON(t, r, http.MethodGet, "/api/documents/broken/text", nil), http.StatusInternalServerError)
}
