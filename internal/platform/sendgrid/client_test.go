package sendgrid

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/AICC2024/video-review/internal/platform/logger"
)

func TestSendBuildsMailRequest(t *testing.T) {
	var got mailSendRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v3/mail/send" || r.Header.Get("Authorization") != "Bearer SG.test" {
			t.Errorf("unexpected request %s auth=%q", r.URL.Path, r.Header.Get("Authorization"))
		}
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("decode: %v", err)
		}
		w.Header().Set("X-Message-Id", "msg-1")
		w.WriteHeader(http.StatusAccepted)
	}))
	defer srv.Close()

	c, err := New(logger.Nop(), Config{APIKey: "SG.test", BaseURL: srv.URL, DefaultFromEmail: "reviews@example.com"})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	res, err := c.Send(context.Background(), SendEmailRequest{
		To:      Addresses([]string{"a@example.com", " A@example.com ", ""}),
		Subject: "Review Complete: deck-1",
		Text:    "done",
	})
	if err != nil {
		t.Fatalf("Send: %v", err)
	}
	if res.StatusCode != http.StatusAccepted || res.MessageID != "msg-1" {
		t.Fatalf("result: %+v", res)
	}
	if got.From.Email != "reviews@example.com" {
		t.Fatalf("default from not applied: %+v", got.From)
	}
	if len(got.Personalizations) != 1 || len(got.Personalizations[0].To) != 1 {
		t.Fatalf("recipients not deduplicated: %+v", got.Personalizations)
	}
	if len(got.Content) != 1 || got.Content[0].Type != "text/plain" {
		t.Fatalf("content: %+v", got.Content)
	}
}

func TestSendValidation(t *testing.T) {
	c, err := New(logger.Nop(), Config{APIKey: "SG.test", BaseURL: "http://127.0.0.1:1"})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	_, err = c.Send(context.Background(), SendEmailRequest{To: Addresses([]string{"a@example.com"}), Subject: "x", Text: "y"})
	if err == nil || !strings.Contains(err.Error(), "From.Email") {
		t.Fatalf("expected missing from error, got %v", err)
	}
	_, err = c.Send(context.Background(), SendEmailRequest{From: EmailAddress{Email: "f@example.com"}, Subject: "x", Text: "y"})
	if err == nil || !strings.Contains(err.Error(), "To required") {
		t.Fatalf("expected missing to error, got %v", err)
	}
}

func TestSendSurfacesAPIErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"errors":[{"message":"invalid to address"}]}`))
	}))
	defer srv.Close()

	c, _ := New(logger.Nop(), Config{APIKey: "SG.test", BaseURL: srv.URL, DefaultFromEmail: "f@example.com"})
	_, err := c.Send(context.Background(), SendEmailRequest{To: Addresses([]string{"bad"}), Subject: "x", Text: "y"})
	var he *HTTPError
	if err == nil || !strings.Contains(err.Error(), "invalid to address") {
		t.Fatalf("expected api error, got %v", err)
	}
	if !errors.As(err, &he) || he.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected *HTTPError 400, got %v", err)
	}
}

func TestConfigFromEnvFallsBackToNotifyFrom(t *testing.T) {
	t.Setenv("SENDGRID_FROM_EMAIL", "")
	t.Setenv("NOTIFY_FROM_EMAIL", "notify@example.com")
	if got := ConfigFromEnv().DefaultFromEmail; got != "notify@example.com" {
		t.Fatalf("DefaultFromEmail=%q", got)
	}
}
