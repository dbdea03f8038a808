package reasoning

import (
	"context"
	"fmt"
	"strings"

	"github.com/AICC2024/video-review/internal/platform/logger"
	"github.com/AICC2024/video-review/internal/platform/openai"
	"github.com/AICC2024/video-review/internal/review/reviewerr"
)

type Message struct {
	Text     string
	ImageURL string
}

type RunHandle struct {
	SessionID string
	RunID     string
}

type RunState string

const (
	RunPending   RunState = "pending"
	RunCompleted RunState = "completed"
	RunFailed    RunState = "failed"
)

type RunStatus struct {
	State  RunState
	Reason string
}

// Session is a multi-turn thread on the reasoning service.
type Session interface {
	CreateSession(ctx context.Context) (string, error)
	PostMessage(ctx context.Context, sessionID string, msg Message) error
	Run(ctx context.Context, sessionID string, instructions string, maxOutputTokens int) (RunHandle, error)
	Poll(ctx context.Context, run RunHandle) (RunStatus, error)
	ReadLatestReply(ctx context.Context, sessionID string) (string, error)
}

type openAISession struct {
	client openai.Client
}

// NewOpenAISession maps sessions onto conversations and runs onto background responses.
func NewOpenAISession(client openai.Client) Session {
	return &openAISession{client: client}
}

func (s *openAISession) CreateSession(ctx context.Context) (string, error) {
	return s.client.CreateConversation(ctx)
}

func (s *openAISession) PostMessage(ctx context.Context, sessionID string, msg Message) error {
	var images []openai.ImageInput
	if strings.TrimSpace(msg.ImageURL) != "" {
		images = []openai.ImageInput{{ImageURL: msg.ImageURL}}
	}
	return s.client.AddUserMessage(ctx, sessionID, msg.Text, images)
}

func (s *openAISession) Run(ctx context.Context, sessionID string, instructions string, maxOutputTokens int) (RunHandle, error) {
	resp, err := s.client.StartResponse(ctx, sessionID, instructions, maxOutputTokens)
	if err != nil {
		return RunHandle{}, err
	}
	return RunHandle{SessionID: sessionID, RunID: resp.ID}, nil
}

func (s *openAISession) Poll(ctx context.Context, run RunHandle) (RunStatus, error) {
	resp, err := s.client.GetResponse(ctx, run.RunID)
	if err != nil {
		return RunStatus{}, err
	}
	switch resp.Status {
	case openai.StatusCompleted:
		return RunStatus{State: RunCompleted}, nil
	case openai.StatusFailed, openai.StatusCancelled, openai.StatusIncomplete:
		reason := resp.Reason
		if reason == "" {
			reason = resp.Status
		}
		return RunStatus{State: RunFailed, Reason: reason}, nil
	default:
		return RunStatus{State: RunPending}, nil
	}
}

func (s *openAISession) ReadLatestReply(ctx context.Context, sessionID string) (string, error) {
	return s.client.LatestAssistantText(ctx, sessionID)
}

// SessionReviewer drives a Session through the Direct contract: one
// session per call, one message, one run, then bounded polling.
type SessionReviewer struct {
	log     *logger.Logger
	session Session
	poller  Poller
}

func NewSessionReviewer(log *logger.Logger, session Session, poller Poller) *SessionReviewer {
	return &SessionReviewer{
		log:     log.With("component", "SessionReviewer"),
		session: session,
		poller:  poller,
	}
}

func (r *SessionReviewer) ReviewUnit(ctx context.Context, req ReviewRequest) (string, error) {
	msg := Message{Text: req.Text}
	if len(req.Image) > 0 {
		msg.ImageURL = DataURL(req.ImageMIME, req.Image)
	}
	return r.converse(ctx, "review_unit", req.System, msg, req.MaxOutputTokens)
}

func (r *SessionReviewer) Ask(ctx context.Context, req AskRequest) (string, error) {
	return r.converse(ctx, "ask", req.System, Message{Text: req.Prompt, ImageURL: req.ImageURL}, 0)
}

func (r *SessionReviewer) converse(ctx context.Context, op, instructions string, msg Message, maxTokens int) (string, error) {
	sessionID, err := r.session.CreateSession(ctx)
	if err != nil {
		return "", &reviewerr.ReasoningServiceError{Op: op, Reason: "create session", Err: err}
	}
	if err := r.session.PostMessage(ctx, sessionID, msg); err != nil {
		return "", &reviewerr.ReasoningServiceError{Op: op, Reason: "post message", Err: err}
	}
	run, err := r.session.Run(ctx, sessionID, instructions, maxTokens)
	if err != nil {
		return "", &reviewerr.ReasoningServiceError{Op: op, Reason: "start run", Err: err}
	}

	res := r.poller.Wait(ctx, func(ctx context.Context) (PollResult, bool) {
		st, err := r.session.Poll(ctx, run)
		if err != nil {
			return PollResult{Status: PollFailed, Reason: fmt.Sprintf("poll: %v", err)}, true
		}
		switch st.State {
		case RunCompleted:
			text, err := r.session.ReadLatestReply(ctx, sessionID)
			if err != nil {
				return PollResult{Status: PollFailed, Reason: fmt.Sprintf("read reply: %v", err)}, true
			}
			return PollResult{Status: PollCompleted, Text: text}, true
		case RunFailed:
			return PollResult{Status: PollFailed, Reason: st.Reason}, true
		default:
			return PollResult{}, false
		}
	})

	switch res.Status {
	case PollCompleted:
		text := strings.TrimSpace(res.Text)
		if text == "" {
			return "", &reviewerr.ReasoningServiceError{Op: op, Reason: "empty reply"}
		}
		return text, nil
	case PollTimedOut:
		r.log.Warn("reasoning run timed out", "session_id", sessionID, "run_id", run.RunID, "attempts", res.Attempts)
		return "", &reviewerr.ReasoningTimeoutError{Op: op, Attempts: res.Attempts, Interval: r.poller.Interval}
	default:
		return "", &reviewerr.ReasoningServiceError{Op: op, Reason: res.Reason}
	}
}
