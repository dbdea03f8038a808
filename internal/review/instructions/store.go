// Package instructions stores the editable system instructions used for
// each review mode.
package instructions

import (
	"context"
	"errors"
	"strings"

	"github.com/AICC2024/video-review/internal/platform/logger"
)

const (
	ModeDocument   = "document"
	ModeStoryboard = "storyboard"
	ModeVideo      = "video"
	ModeChat       = "chat"
)

var ErrEmptyMode = errors.New("instruction mode required")

type Store interface {
	Get(ctx context.Context, mode string) (string, error)
	Set(ctx context.Context, mode, content string) error
	All(ctx context.Context) (map[string]string, error)
}

// NormalizeMode lower-cases mode and maps the legacy "pdf" key to storyboard.
func NormalizeMode(mode string) string {
	mode = strings.ToLower(strings.TrimSpace(mode))
	if mode == "pdf" {
		return ModeStoryboard
	}
	return mode
}

// Lookup returns the instruction for mode, or "" when the mode is unknown or
// the store fails. A review never stops for a missing instruction.
func Lookup(ctx context.Context, log *logger.Logger, s Store, mode string) string {
	if s == nil {
		return ""
	}
	content, err := s.Get(ctx, mode)
	if err != nil {
		log.Warn("instruction lookup failed; using empty instruction", "mode", mode, "error", err)
		return ""
	}
	return content
}
