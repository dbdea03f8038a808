package reasoning

import (
	"context"
	"encoding/base64"
	"strings"

	"github.com/AICC2024/video-review/internal/platform/envutil"
	"github.com/AICC2024/video-review/internal/platform/logger"
	"github.com/AICC2024/video-review/internal/platform/openai"
	"github.com/AICC2024/video-review/internal/review/reviewerr"
)

// ReviewRequest asks for feedback on one unit.
type ReviewRequest struct {
	System          string
	Text            string
	Image           []byte
	ImageMIME       string
	MaxOutputTokens int
}

// AskRequest is a free-form question from the chat path. ImageURL may be an
// https URL or a data URL.
type AskRequest struct {
	System   string
	Prompt   string
	ImageURL string
}

// Direct is the single-call contract the orchestrator and chat use.
// Failures are *reviewerr.ReasoningServiceError or
// *reviewerr.ReasoningTimeoutError.
type Direct interface {
	ReviewUnit(ctx context.Context, req ReviewRequest) (string, error)
	Ask(ctx context.Context, req AskRequest) (string, error)
}

const (
	ModeDirect  = "direct"
	ModeSession = "session"
)

// New picks the adapter for mode (REASONING_MODE when empty).
func New(log *logger.Logger, client openai.Client, mode string) Direct {
	if mode == "" {
		mode = envutil.String("REASONING_MODE", ModeDirect)
	}
	if strings.EqualFold(mode, ModeSession) {
		return NewSessionReviewer(log, NewOpenAISession(client), PollerFromEnv())
	}
	return NewOpenAIDirect(client)
}

// DataURL encodes an image inline as data:<mime>;base64,<payload>.
func DataURL(mime string, b []byte) string {
	if mime == "" {
		mime = "image/png"
	}
	return "data:" + mime + ";base64," + base64.StdEncoding.EncodeToString(b)
}

type openAIDirect struct {
	client openai.Client
}

func NewOpenAIDirect(client openai.Client) Direct {
	return &openAIDirect{client: client}
}

func (d *openAIDirect) ReviewUnit(ctx context.Context, req ReviewRequest) (string, error) {
	in := openai.TextRequest{
		System:          req.System,
		User:            req.Text,
		MaxOutputTokens: req.MaxOutputTokens,
		Style:           "review",
	}
	if len(req.Image) > 0 {
		in.Images = []openai.ImageInput{{ImageURL: DataURL(req.ImageMIME, req.Image)}}
	}
	return d.generate(ctx, "review_unit", in)
}

func (d *openAIDirect) Ask(ctx context.Context, req AskRequest) (string, error) {
	in := openai.TextRequest{System: req.System, User: req.Prompt, Style: "chat"}
	if u := strings.TrimSpace(req.ImageURL); u != "" {
		in.Images = []openai.ImageInput{{ImageURL: u}}
	}
	return d.generate(ctx, "ask", in)
}

func (d *openAIDirect) generate(ctx context.Context, op string, in openai.TextRequest) (string, error) {
	out, err := d.client.Generate(ctx, in)
	if err != nil {
		return "", &reviewerr.ReasoningServiceError{Op: op, Err: err}
	}
	out = strings.TrimSpace(out)
	if out == "" {
		return "", &reviewerr.ReasoningServiceError{Op: op, Reason: "empty reply"}
	}
	return out, nil
}
