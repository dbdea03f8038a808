package review

import "strings"

type MediaKind string

const (
	MediaDocument   MediaKind = "document"
	MediaStoryboard MediaKind = "storyboard"
	MediaVideo      MediaKind = "video"
)

// AgentAuthor is the fixed author recorded on comments written by the
// automated reviewer.
const AgentAuthor = "AGENT"

// ParseMediaKind normalizes the loose media_type strings sent by clients
// ("pdf", "storyboards", "videos", "docx", ...). ok is false when the
// value is empty or unrecognized.
func ParseMediaKind(raw string) (MediaKind, bool) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "document", "documents", "doc", "docx", "text":
		return MediaDocument, true
	case "storyboard", "storyboards", "pdf", "slides", "deck", "pptx":
		return MediaStoryboard, true
	case "video", "videos", "mp4", "mov", "webm":
		return MediaVideo, true
	default:
		return "", false
	}
}

// Paged reports whether units of this kind are pages.
func (k MediaKind) Paged() bool {
	return k == MediaDocument || k == MediaStoryboard
}

// InstructionMode is the instruction store key used for reviews of this kind.
func (k MediaKind) InstructionMode() string {
	return string(k)
}
