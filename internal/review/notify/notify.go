// Package notify emails reviewers about finished reviews and tagged comments.
package notify

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/AICC2024/video-review/internal/platform/apierr"
	"github.com/AICC2024/video-review/internal/platform/logger"
	"github.com/AICC2024/video-review/internal/platform/sendgrid"
)

type TeamNotice struct {
	AssetID  string
	Reviewer string
	AssetURL string
	To       []string
	Message  string
}

type CommentNotice struct {
	AssetID  string
	Page     *int
	Comment  string
	Reviewer string
	AssetURL string
	To       []string
}

type Notifier struct {
	log       *logger.Logger
	mail      sendgrid.Client
	from      string
	assetBase string
}

// New returns a Notifier sending from the address in from; an empty from
// falls back to the mail client's default sender.
func New(log *logger.Logger, mail sendgrid.Client, from string) *Notifier {
	return &Notifier{log: log.With("component", "Notifier"), mail: mail, from: strings.TrimSpace(from)}
}

// WithAssetBase sets the review app URL used to link an asset when the
// caller sends no asset_url.
func (n *Notifier) WithAssetBase(base string) *Notifier {
	n.assetBase = strings.TrimRight(strings.TrimSpace(base), "/")
	return n
}

func (n *Notifier) assetURL(assetID, given string) string {
	if u := strings.TrimSpace(given); u != "" || n.assetBase == "" {
		return u
	}
	return n.assetBase + "/" + url.PathEscape(assetID)
}

func (n *Notifier) Team(ctx context.Context, in TeamNotice) error {
	in.AssetURL = n.assetURL(in.AssetID, in.AssetURL)
	switch {
	case strings.TrimSpace(in.AssetID) == "":
		return missing("asset_id")
	case strings.TrimSpace(in.Reviewer) == "":
		return missing("reviewer")
	case strings.TrimSpace(in.AssetURL) == "":
		return missing("asset_url")
	}
	msg := in.Message
	if msg == "" {
		msg = "[No message provided]"
	}
	subject := "Review Complete: " + in.AssetID
	body := fmt.Sprintf("%s has completed their review of %s.\n\nMessage:\n%s\n\nYou can view the comments and feedback at:\n%s",
		in.Reviewer, in.AssetID, msg, in.AssetURL)
	return n.send(ctx, "review_complete", in.To, subject, body)
}

func (n *Notifier) Comment(ctx context.Context, in CommentNotice) error {
	in.AssetURL = n.assetURL(in.AssetID, in.AssetURL)
	switch {
	case strings.TrimSpace(in.AssetID) == "":
		return missing("asset_id")
	case strings.TrimSpace(in.Comment) == "":
		return missing("comment_text")
	case strings.TrimSpace(in.Reviewer) == "":
		return missing("reviewer")
	}
	where := "Timeline Comment"
	if in.Page != nil && *in.Page > 0 {
		where = fmt.Sprintf("Slide %d", *in.Page)
	}
	subject := fmt.Sprintf("@Notify from %s - Comment on %s", in.Reviewer, in.AssetID)
	body := fmt.Sprintf("%s tagged you in a comment on %s of %s:\n\n\"%s\"\n\nView the full review:\n%s",
		in.Reviewer, where, in.AssetID, strings.TrimSpace(in.Comment), in.AssetURL)
	return n.send(ctx, "comment_tag", in.To, subject, body)
}

func (n *Notifier) send(ctx context.Context, category string, to []string, subject, body string) error {
	if n.mail == nil {
		return fmt.Errorf("send %s email: mail delivery is not configured", category)
	}
	rcpts := sendgrid.Addresses(to)
	if len(rcpts) == 0 {
		return missing("to")
	}
	req := sendgrid.SendEmailRequest{
		To:         rcpts,
		Subject:    subject,
		Text:       body,
		Categories: []string{"video-review", category},
	}
	if n.from != "" {
		req.From = sendgrid.EmailAddress{Email: n.from}
	}
	res, err := n.mail.Send(ctx, req)
	if err != nil {
		return fmt.Errorf("send %s email: %w", category, err)
	}
	n.log.Info("notification sent", "category", category, "recipients", len(rcpts), "message_id", res.MessageID)
	return nil
}

func missing(field string) error {
	return fmt.Errorf("%s is required: %w", field, apierr.ErrInvalidArgument)
}
