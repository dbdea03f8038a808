package orchestrator

import (
	"fmt"
	"strconv"
	"strings"

	types "github.com/AICC2024/video-review/internal/domain"
)

const (
	markerVision   = "\n\n-- AGENT (Vision Review)"
	markerVideo    = "\n\n-- AGENT (Video Review)"
	markerDocument = "\n\n-- AGENT (Document Review)"
)

const (
	pageMaxTokens     = 1000
	videoMaxTokens    = 500
	documentMaxTokens = 1000
)

func pagePrompt(kind types.MediaKind, page, total int, text string) string {
	noun := "storyboard slide"
	if kind == types.MediaDocument {
		noun = "document page"
	}
	var b strings.Builder
	fmt.Fprintf(&b, "Please review this %s (Page %d of %d). ", noun, page, total)
	b.WriteString("Provide only 2–3 specific, visual improvements. ")
	b.WriteString("Base your feedback on what you clearly see in the slide and its narration. ")
	b.WriteString("Avoid vague language like 'if not already present' and do not include Overall Tone or What Works unless explicitly instructed.")
	if t := strings.TrimSpace(text); t != "" {
		b.WriteString("\n\nText on this page:\n")
		b.WriteString(t)
	}
	return b.String()
}

func videoPrompt(ts, scene, total int, narration string) string {
	return fmt.Sprintf(
		"Please review this video scene (Timestamp: %ds, scene %d of %d). Here is the narration: “%s” Provide 1–2 visual improvement suggestions for the scene shown.",
		ts, scene, total, strings.TrimSpace(narration),
	)
}

func documentPrompt(assetID, text string) string {
	return fmt.Sprintf("Here is the content of the document titled %s:\n\n%s\n\nPlease provide a detailed review with feedback.", assetID, text)
}

// cleanReply trims the reply and drops bold markers.
func cleanReply(reply string) string {
	return strings.TrimSpace(strings.ReplaceAll(strings.TrimSpace(reply), "**", ""))
}

func pageComment(page int, reply string) string {
	return "Slide " + strconv.Itoa(page) + ": " + cleanReply(reply) + markerVision
}

// videoComment labels the reply with the scene offset in seconds.
func videoComment(ts int, reply string) string {
	return strconv.Itoa(ts) + "s: " + cleanReply(reply) + markerVideo
}

func documentComment(reply string) string {
	return cleanReply(reply) + markerDocument
}
