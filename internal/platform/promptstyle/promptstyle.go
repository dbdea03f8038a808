package promptstyle

import "strings"

const marker = "VIDEO_REVIEW_PROMPT_STYLE_V1"

// ApplySystem prepends a short guidance block to system prompts.
// Prompts that already carry the block are returned unchanged.
func ApplySystem(system string, mode string) string {
	base := strings.TrimSpace(system)
	if base == "" {
		return base
	}
	if strings.Contains(base, marker) {
		return base
	}
	mode = strings.ToLower(strings.TrimSpace(mode))

	var b strings.Builder
	b.WriteString(marker)
	b.WriteString("\nYou are a careful creative reviewer for training video and storyboard production.")
	b.WriteString("\nFollow the system and user instructions precisely.")
	b.WriteString("\nGround feedback in the provided content; do not invent scenes, slides or quotes.")
	switch mode {
	case "chat":
		b.WriteString("\nAnswer the reviewer's question directly. Reference slide numbers or timestamps when relevant.")
	case "review":
		b.WriteString("\nGive specific, actionable suggestions. Do not repeat the content back.")
	default:
		b.WriteString("\nBe concise and structured when helpful.")
	}
	b.WriteString("\n---\n")
	b.WriteString(base)
	return strings.TrimSpace(b.String())
}
