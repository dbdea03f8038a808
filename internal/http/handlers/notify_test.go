package handlers

import (
	"context"
	"errors"
	"net/http"
	"testing"

	"github.com/AICC2024/video-review/internal/platform/logger"
	"github.com/AICC2024/video-review/internal/platform/sendgrid"
	"github.com/AICC2024/video-review/internal/review/notify"
)

type stubMail struct {
	sent []sendgrid.SendEmailRequest
	err  error
}

func (m *stubMail) Send(_ context.Context, req sendgrid.SendEmailRequest) (*sendgrid.SendEmailResult, error) {
	if m.err != nil {
		return nil, m.err
	}
	m.sent = append(m.sent, req)
	return &sendgrid.SendEmailResult{StatusCode: http.StatusAccepted}, nil
}

func notifyEngine(mail *stubMail) http.Handler {
	h := NewNotifyHandler(logger.Nop(), notify.New(logger.Nop(), mail, "reviews@example.com"))
	r := testEngine("dana")
	r.POST("/api/notify/team", h.Team)
	r.POST("/api/notify/comment", h.Comment)
	return r
}

func TestNotifyTeam(t *testing.T) {
	mail := &stubMail{}
	r := notifyEngine(mail)

	rec := doJSON(t, r, http.MethodPost, "/api/notify/team", map[string]any{
		"asset_id": "deck-1", "reviewer": "Dana", "asset_url": "https://app.example.com/deck-1",
		"to": []string{"team@example.com"}, "message": "Ready for edits",
	})
	wantStatus(t, rec, http.StatusOK)
	if got := decode[map[string]string](t, rec); got["status"] != "Notification sent" {
		t.Fatalf("body = %v", got)
	}
	if len(mail.sent) != 1 || mail.sent[0].Subject != "Review Complete: deck-1" {
		t.Fatalf("sent = %+v", mail.sent)
	}

	rec = doJSON(t, r, http.MethodPost, "/api/notify/team", map[string]any{"asset_id": "deck-1", "reviewer": "Dana"})
	wantStatus(t, rec, http.StatusBadRequest)
}

func TestNotifyComment(t *testing.T) {
	r := notifyEngine(&stubMail{})
	rec := doJSON(t, r, http.MethodPost, "/api/notify/comment", map[string]any{
		"asset_id": "deck-1", "page": 2, "comment_text": "see this", "reviewer": "Dana",
		"to": []string{"lee@example.com"}, "asset_url": "https://app.example.com/deck-1",
	})
	wantStatus(t, rec, http.StatusOK)
	if got := decode[map[string]string](t, rec); got["status"] != "Comment notification sent" {
		t.Fatalf("body = %v", got)
	}

	r = notifyEngine(&stubMail{err: errors.New("sendgrid 503")})
	rec = doJSON(t, r, http.MethodPost, "/api/notify/comment", map[string]any{
		"asset_id": "deck-1", "comment_text": "see this", "reviewer": "Dana", "to": []string{"lee@example.com"},
	})
	wantStatus(t, rec, http.StatusInternalServerError)
	if got := decode[errorBody](t, rec); got.Error.Code != "notify_failed" {
		t.Fatalf("code = %q", got.Error.Code)
	}
}
