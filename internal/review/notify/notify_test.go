package notify

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/AICC2024/video-review/internal/platform/apierr"
	"github.com/AICC2024/video-review/internal/platform/logger"
	"github.com/AICC2024/video-review/internal/platform/sendgrid"
)

type captureMail struct {
	sent []sendgrid.SendEmailRequest
	err  error
}

func (m *captureMail) Send(_ context.Context, req sendgrid.SendEmailRequest) (*sendgrid.SendEmailResult, error) {
	if m.err != nil {
		return nil, m.err
	}
	m.sent = append(m.sent, req)
	return &sendgrid.SendEmailResult{StatusCode: 202, MessageID: "m-1"}, nil
}

func TestTeamNotice(t *testing.T) {
	mail := &captureMail{}
	n := New(logger.Nop(), mail, "reviews@example.com")
	err := n.Team(context.Background(), TeamNotice{
		AssetID:  "deck-1",
		Reviewer: "Dana",
		AssetURL: "https://app.example.com/review/deck-1",
		To:       []string{"a@example.com", "A@example.com", " "},
	})
	if err != nil {
		t.Fatalf("Team: %v", err)
	}
	got := mail.sent[0]
	if got.Subject != "Review Complete: deck-1" || got.From.Email != "reviews@example.com" || len(got.To) != 1 {
		t.Fatalf("request = %+v", got)
	}
	want := "Dana has completed their review of deck-1.\n\nMessage:\n[No message provided]\n\nYou can view the comments and feedback at:\nhttps://app.example.com/review/deck-1"
	if got.Text != want {
		t.Fatalf("body = %q", got.Text)
	}
}

func TestCommentNotice(t *testing.T) {
	mail := &captureMail{}
	n := New(logger.Nop(), mail, "")
	page := 4
	if err := n.Comment(context.Background(), CommentNotice{
		AssetID: "deck-1", Page: &page, Comment: "  fix the logo ", Reviewer: "Dana",
		AssetURL: "https://app.example.com/r", To: []string{"b@example.com"},
	}); err != nil {
		t.Fatalf("Comment: %v", err)
	}
	got := mail.sent[0]
	if got.Subject != "@Notify from Dana - Comment on deck-1" {
		t.Fatalf("subject = %q", got.Subject)
	}
	if !strings.HasPrefix(got.Text, "Dana tagged you in a comment on Slide 4 of deck-1:\n\n\"fix the logo\"") {
		t.Fatalf("body = %q", got.Text)
	}
	if got.From.Email != "" {
		t.Fatalf("empty from should defer to client default, got %q", got.From.Email)
	}

	if err := n.Comment(context.Background(), CommentNotice{AssetID: "clip", Comment: "x", Reviewer: "Dana", To: []string{"b@example.com"}}); err != nil {
		t.Fatalf("Comment: %v", err)
	}
	if !strings.Contains(mail.sent[1].Text, "on Timeline Comment of clip") {
		t.Fatalf("body = %q", mail.sent[1].Text)
	}
}

func TestNoticeErrors(t *testing.T) {
	n := New(logger.Nop(), &captureMail{}, "")
	err := n.Team(context.Background(), TeamNotice{AssetID: "a", Reviewer: "r", AssetURL: "u"})
	if !errors.Is(err, apierr.ErrInvalidArgument) || !strings.HasPrefix(err.Error(), "to ") {
		t.Fatalf("want missing to, got %v", err)
	}
	err = n.Comment(context.Background(), CommentNotice{AssetID: "a", Reviewer: "r", To: []string{"x@example.com"}})
	if !errors.Is(err, apierr.ErrInvalidArgument) || !strings.HasPrefix(err.Error(), "comment_text ") {
		t.Fatalf("want missing comment_text, got %v", err)
	}

	n = New(logger.Nop(), &captureMail{err: errors.New("sendgrid down")}, "")
	if err := n.Team(context.Background(), TeamNotice{AssetID: "a", Reviewer: "r", AssetURL: "u", To: []string{"x@example.com"}}); err == nil {
		t.Fatal("want send error")
	}
}

func TestAssetBaseFillsMissingURL(t *testing.T) {
	mail := &captureMail{}
	n := New(logger.Nop(), mail, "").WithAssetBase("https://app.example.com/review/")
	if err := n.Team(context.Background(), TeamNotice{AssetID: "deck 1", Reviewer: "Dana", To: []string{"a@example.com"}}); err != nil {
		t.Fatalf("Team: %v", err)
	}
	if !strings.HasSuffix(mail.sent[0].Text, "\nhttps://app.example.com/review/deck%201") {
		t.Fatalf("body = %q", mail.sent[0].Text)
	}
}
