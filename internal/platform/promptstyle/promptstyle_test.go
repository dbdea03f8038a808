package promptstyle

import (
	"strings"
	"testing"
)

func TestApplySystem(t *testing.T) {
	if got := ApplySystem("   ", "review"); got != "" {
		t.Fatalf("empty system should stay empty, got %q", got)
	}

	out := ApplySystem("Review slides for clarity.", "review")
	if !strings.HasPrefix(out, marker) {
		t.Fatalf("missing marker: %q", out)
	}
	if !strings.HasSuffix(out, "---\nReview slides for clarity.") {
		t.Fatalf("original system not preserved at end: %q", out)
	}
	if !strings.Contains(out, "actionable suggestions") {
		t.Fatalf("review guidance missing: %q", out)
	}

	if again := ApplySystem(out, "chat"); again != out {
		t.Fatalf("ApplySystem should be idempotent")
	}

	chat := ApplySystem("Help the reviewer.", "chat")
	if !strings.Contains(chat, "slide numbers or timestamps") {
		t.Fatalf("chat guidance missing: %q", chat)
	}
}
