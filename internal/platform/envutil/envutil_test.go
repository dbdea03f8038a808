package envutil

import (
	"testing"
	"time"
)

func TestHelpers(t *testing.T) {
	t.Setenv("VR_TEST_INT", "7")
	t.Setenv("VR_TEST_BAD_INT", "x")
	t.Setenv("VR_TEST_BOOL", "yes")
	t.Setenv("VR_TEST_DUR_SECS", "30")
	t.Setenv("VR_TEST_DUR", "2m")
	t.Setenv("VR_TEST_LIST", " a, ,b ")

	if got := Int("VR_TEST_INT", 1); got != 7 {
		t.Fatalf("Int: got %d", got)
	}
	if got := Int("VR_TEST_BAD_INT", 1); got != 1 {
		t.Fatalf("Int fallback: got %d", got)
	}
	if !Bool("VR_TEST_BOOL", false) {
		t.Fatalf("Bool: expected true")
	}
	if Bool("VR_TEST_UNSET_BOOL", false) {
		t.Fatalf("Bool default: expected false")
	}
	if got := Duration("VR_TEST_DUR_SECS", time.Second); got != 30*time.Second {
		t.Fatalf("Duration secs: got %v", got)
	}
	if got := Duration("VR_TEST_DUR", time.Second); got != 2*time.Minute {
		t.Fatalf("Duration: got %v", got)
	}
	if got := String("VR_TEST_UNSET", "def"); got != "def" {
		t.Fatalf("String default: got %q", got)
	}
	if got := List("VR_TEST_LIST"); len(got) != 2 || got[0] != "a" || got[1] != "b" {
		t.Fatalf("List: got %v", got)
	}
}
