// Package chat answers free-form reviewer questions about an asset using
// the comments and unit text gathered so far.
package chat

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/AICC2024/video-review/internal/platform/logger"
	"github.com/AICC2024/video-review/internal/review/contextasm"
	"github.com/AICC2024/video-review/internal/review/extract"
	"github.com/AICC2024/video-review/internal/review/instructions"
	"github.com/AICC2024/video-review/internal/review/reasoning"
	"github.com/AICC2024/video-review/internal/review/reviewerr"
)

var pageRef = regexp.MustCompile(`(?i)\bpage (\d{1,2})\b`)

type Request struct {
	Message   string
	FileURL   string
	MediaType string
	AssetID   string
	// ChatImage is an optional screenshot as a data:image/... URL.
	ChatImage string
}

type contextBuilder interface {
	Build(ctx context.Context, assetID string) (contextasm.Context, error)
}

type pageSource interface {
	RenderPage(ctx context.Context, src extract.Source, page int) ([]byte, string, error)
	DocumentText(ctx context.Context, src extract.Source) (string, error)
}

type Service struct {
	log          *logger.Logger
	history      contextBuilder
	pages        pageSource
	reasoner     reasoning.Direct
	instructions instructions.Store
}

func New(log *logger.Logger, history contextBuilder, pages pageSource, reasoner reasoning.Direct, store instructions.Store) *Service {
	return &Service{
		log:          log.With("component", "ChatService"),
		history:      history,
		pages:        pages,
		reasoner:     reasoner,
		instructions: store,
	}
}

// Reply answers req.Message. Context and page rendering failures degrade
// the prompt; only a reasoning failure fails the call.
func (s *Service) Reply(ctx context.Context, req Request) (string, error) {
	msg := strings.TrimSpace(req.Message)
	if msg == "" {
		return "", &reviewerr.ValidationError{Field: "message"}
	}
	log := s.log.With("asset_id", req.AssetID, "media_type", req.MediaType)

	var history contextasm.Context
	if strings.TrimSpace(req.AssetID) != "" {
		c, err := s.history.Build(ctx, req.AssetID)
		if err != nil {
			log.Warn("chat context unavailable", "error", err)
		} else {
			history = c
		}
	}
	pageContext := history.PriorUnits
	if isDocx(req.FileURL) && req.AssetID != "" {
		text, err := s.pages.DocumentText(ctx, extract.Source{StorageKey: DocumentKey(req.AssetID)})
		if err != nil {
			log.Warn("document text unavailable for chat", "error", err)
		}
		pageContext = text
	}

	prompt := buildPrompt(req, msg, pageContext, history.PriorComments)

	image := ""
	if page, ok := referencedPage(msg, req.FileURL); ok {
		// a page reference wins over any uploaded screenshot
		b, mime, err := s.pages.RenderPage(ctx, extract.Source{URL: req.FileURL}, page)
		if err != nil {
			log.Warn("page render for chat failed", "page", page, "error", err)
		} else {
			image = reasoning.DataURL(mime, b)
		}
	} else if strings.HasPrefix(req.ChatImage, "data:image/") {
		image = req.ChatImage
	}

	system := instructions.Lookup(ctx, log, s.instructions, instructions.ModeChat)
	reply, err := s.reasoner.Ask(ctx, reasoning.AskRequest{System: system, Prompt: prompt, ImageURL: image})
	if err != nil {
		return "", err
	}
	log.Debug("chat reply", "chars", len(reply), "with_image", image != "")
	return strings.TrimSpace(reply), nil
}

// isDocx reports whether the chat is about a Word document, whose stored
// text replaces the per-unit page context.
func isDocx(fileURL string) bool {
	return strings.HasSuffix(strings.ToLower(strings.TrimSpace(fileURL)), ".docx")
}

// DocumentKey is where the source of a whole document review is stored.
func DocumentKey(assetID string) string {
	return "documents/" + strings.TrimSpace(assetID) + ".docx"
}

func referencedPage(msg, fileURL string) (int, bool) {
	if fileURL == "" || !strings.HasSuffix(strings.ToLower(strings.TrimSpace(fileURL)), ".pdf") {
		return 0, false
	}
	m := pageRef.FindStringSubmatch(msg)
	if m == nil {
		return 0, false
	}
	n, err := strconv.Atoi(m[1])
	if err != nil || n < 1 {
		return 0, false
	}
	return n, true
}

func buildPrompt(req Request, msg, pages, comments string) string {
	if strings.TrimSpace(req.ChatImage) != "" {
		return "You have been provided an uploaded image. The user may ask about the image's contents. " +
			"Please prioritize the image over other document context if questions reference it directly.\n\n" +
			fmt.Sprintf("User Question: %s\n\nStoryboard Pages (if relevant):\n%s\n\nComments:\n%s", msg, pages, comments)
	}
	return fmt.Sprintf(
		"You are the review agent. The user has a question about this %s.\nFile: %s\n\nStoryboard pages:\n%s\n\nComments so far:\n%s\n\nQuestion: %s",
		req.MediaType, req.FileURL, pages, comments, msg,
	)
}
