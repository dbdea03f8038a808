package chat

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/AICC2024/video-review/internal/platform/logger"
	"github.com/AICC2024/video-review/internal/review/contextasm"
	"github.com/AICC2024/video-review/internal/review/extract"
	"github.com/AICC2024/video-review/internal/review/reasoning"
	"github.com/AICC2024/video-review/internal/review/reviewerr"
)

type stubHistory struct {
	ctx contextasm.Context
	err error
}

func (s stubHistory) Build(context.Context, string) (contextasm.Context, error) { return s.ctx, s.err }

type stubPages struct {
	rendered []int
	docKey   string
	text     string
}

func (s *stubPages) RenderPage(_ context.Context, src extract.Source, page int) ([]byte, string, error) {
	s.rendered = append(s.rendered, page)
	return []byte("png"), "image/png", nil
}

func (s *stubPages) DocumentText(_ context.Context, src extract.Source) (string, error) {
	s.docKey = src.StorageKey
	return s.text, nil
}

type recordingReasoner struct {
	last reasoning.AskRequest
	err  error
}

func (r *recordingReasoner) ReviewUnit(context.Context, reasoning.ReviewRequest) (string, error) {
	return "", errors.New("not used")
}

func (r *recordingReasoner) Ask(_ context.Context, req reasoning.AskRequest) (string, error) {
	r.last = req
	if r.err != nil {
		return "", r.err
	}
	return " Based on page 2, tighten the title. ", nil
}

func history() stubHistory {
	return stubHistory{ctx: contextasm.Context{
		PriorComments: "Slide 1 - dana: Too much text",
		PriorUnits:    "Page 1:\nWelcome",
	}}
}

func TestReplyAttachesReferencedPage(t *testing.T) {
	pages := &stubPages{}
	rs := &recordingReasoner{}
	svc := New(logger.Nop(), history(), pages, rs, nil)

	got, err := svc.Reply(context.Background(), Request{
		Message:   "What about Page 2?",
		FileURL:   "https://cdn.example.com/deck.PDF",
		MediaType: "storyboard",
		AssetID:   "deck-1",
		ChatImage: "data:image/png;base64,AAAA",
	})
	if err != nil {
		t.Fatalf("Reply: %v", err)
	}
	if got != "Based on page 2, tighten the title." {
		t.Fatalf("reply = %q", got)
	}
	if len(pages.rendered) != 1 || pages.rendered[0] != 2 {
		t.Fatalf("rendered = %v", pages.rendered)
	}
	if rs.last.ImageURL != "data:image/png;base64,cG5n" {
		t.Fatalf("page render should replace the screenshot, got %q", rs.last.ImageURL)
	}
}

func TestReplyUsesScreenshotWithoutPageReference(t *testing.T) {
	pages := &stubPages{}
	rs := &recordingReasoner{}
	svc := New(logger.Nop(), history(), pages, rs, nil)

	_, err := svc.Reply(context.Background(), Request{
		Message:   "Is this image readable?",
		FileURL:   "https://cdn.example.com/deck.pdf",
		MediaType: "storyboard",
		AssetID:   "deck-1",
		ChatImage: "data:image/jpeg;base64,BBBB",
	})
	if err != nil {
		t.Fatalf("Reply: %v", err)
	}
	if len(pages.rendered) != 0 {
		t.Fatalf("no page should render, got %v", pages.rendered)
	}
	if rs.last.ImageURL != "data:image/jpeg;base64,BBBB" {
		t.Fatalf("image = %q", rs.last.ImageURL)
	}
	if !strings.HasPrefix(rs.last.Prompt, "You have been provided an uploaded image.") {
		t.Fatalf("prompt = %q", rs.last.Prompt)
	}
	if !strings.Contains(rs.last.Prompt, "Comments:\nSlide 1 - dana: Too much text") {
		t.Fatalf("prompt misses comments: %q", rs.last.Prompt)
	}
}

func TestReplyTextOnly(t *testing.T) {
	rs := &recordingReasoner{}
	svc := New(logger.Nop(), history(), &stubPages{}, rs, nil)

	_, err := svc.Reply(context.Background(), Request{
		Message:   "page 3 please",
		FileURL:   "https://cdn.example.com/clip.mp4",
		MediaType: "video",
		AssetID:   "clip-1",
		ChatImage: "https://not-inline.example.com/a.png",
	})
	if err != nil {
		t.Fatalf("Reply: %v", err)
	}
	if rs.last.ImageURL != "" {
		t.Fatalf("non inline screenshot must be ignored, got %q", rs.last.ImageURL)
	}
	if !strings.Contains(rs.last.Prompt, "Storyboard Pages (if relevant):\nPage 1:\nWelcome") {
		t.Fatalf("prompt = %q", rs.last.Prompt)
	}
}

func TestReplyDocumentReadsStoredText(t *testing.T) {
	pages := &stubPages{text: "Full handbook text"}
	rs := &recordingReasoner{}
	svc := New(logger.Nop(), stubHistory{err: errors.New("db down")}, pages, rs, nil)

	if _, err := svc.Reply(context.Background(), Request{Message: "Summarize", FileURL: "https://cdn.example.com/Handbook.DOCX", MediaType: "document", AssetID: "handbook"}); err != nil {
		t.Fatalf("Reply: %v", err)
	}
	if pages.docKey != "documents/handbook.docx" {
		t.Fatalf("doc key = %q", pages.docKey)
	}
	if !strings.Contains(rs.last.Prompt, "Storyboard pages:\nFull handbook text") ||
		!strings.HasPrefix(rs.last.Prompt, "You are the review agent. The user has a question about this document.") {
		t.Fatalf("prompt = %q", rs.last.Prompt)
	}
}

func TestReplyDocumentTextFollowsFileExtension(t *testing.T) {
	cases := []struct {
		name      string
		fileURL   string
		mediaType string
		wantDoc   bool
		wantPages string
	}{
		{name: "docx storyboard", fileURL: "https://cdn.example.com/deck.docx", mediaType: "storyboard", wantDoc: true, wantPages: "Storyboard pages:\nFull handbook text"},
		{name: "pdf document", fileURL: "https://cdn.example.com/handbook.pdf", mediaType: "document", wantPages: "Page 1:\nWelcome"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			pages := &stubPages{text: "Full handbook text"}
			rs := &recordingReasoner{}
			svc := New(logger.Nop(), history(), pages, rs, nil)
			if _, err := svc.Reply(context.Background(), Request{Message: "Summarize", FileURL: tc.fileURL, MediaType: tc.mediaType, AssetID: "handbook"}); err != nil {
				t.Fatalf("Reply: %v", err)
			}
			if gotDoc := pages.docKey != ""; gotDoc != tc.wantDoc {
				t.Fatalf("document text read = %v, want %v", gotDoc, tc.wantDoc)
			}
			if !strings.Contains(rs.last.Prompt, tc.wantPages) {
				t.Fatalf("prompt = %q, want it to contain %q", rs.last.Prompt, tc.wantPages)
			}
		})
	}
}

func TestReplyErrors(t *testing.T) {
	svc := New(logger.Nop(), history(), &stubPages{}, &recordingReasoner{}, nil)
	if _, err := svc.Reply(context.Background(), Request{Message: "  "}); reviewerr.Kind(err) != "validation_error" {
		t.Fatalf("want validation_error, got %v", err)
	}

	failing := &recordingReasoner{err: &reviewerr.ReasoningServiceError{Op: "ask", Reason: "upstream 500"}}
	svc = New(logger.Nop(), history(), &stubPages{}, failing, nil)
	if _, err := svc.Reply(context.Background(), Request{Message: "hi", AssetID: "a"}); reviewerr.Kind(err) != "reasoning_error" {
		t.Fatalf("want reasoning_error, got %v", err)
	}
}

func TestReferencedPage(t *testing.T) {
	cases := []struct {
		msg, url string
		page     int
		ok       bool
	}{
		{"see page 12", "x.pdf", 12, true},
		{"PAGE 4 looks off", "x.pdf", 4, true},
		{"pages 4", "x.pdf", 0, false},
		{"page 123", "x.pdf", 0, false},
		{"page 0", "x.pdf", 0, false},
		{"page 2", "x.pptx", 0, false},
	}
	for _, tc := range cases {
		page, ok := referencedPage(tc.msg, tc.url)
		if page != tc.page || ok != tc.ok {
			t.Errorf("referencedPage(%q, %q) = %d, %v", tc.msg, tc.url, page, ok)
		}
	}
}
