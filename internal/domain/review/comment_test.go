package review

import (
	"reflect"
	"sort"
	"testing"

	"gorm.io/datatypes"
)

func TestReactionsToggleIsItsOwnInverse(t *testing.T) {
	cases := []Reactions{
		{},
		{"like": {"bob"}},
		{"like": {"alice", "bob"}, "fire": {"carol"}},
	}
	for _, start := range cases {
		r := clone(start)
		r.Toggle("like", "alice")
		r.Toggle("like", "alice")
		if !reflect.DeepEqual(normalize(r), normalize(start)) {
			t.Fatalf("double toggle changed state: start=%v end=%v", start, r)
		}
	}
}

func TestReactionsToggle(t *testing.T) {
	r := Reactions{}
	r.Toggle("like", "alice")
	if !r.Has("like", "alice") {
		t.Fatalf("expected alice to have liked")
	}
	r.Toggle("like", "bob")
	if got := r["like"]; len(got) != 2 {
		t.Fatalf("expected two users, got %v", got)
	}
	r.Toggle("like", "alice")
	r.Toggle("like", "bob")
	if _, ok := r["like"]; ok {
		t.Fatalf("empty label should be removed: %v", r)
	}
	r.Toggle("", "alice")
	r.Toggle("like", "")
	if len(r) != 0 {
		t.Fatalf("blank label or user should be ignored: %v", r)
	}
}

func TestDecodeReactionsLegacyString(t *testing.T) {
	r, err := DecodeReactions(datatypes.JSON(`{"like":"alice","fire":["bob","bob"],"bad":3}`))
	if err != nil {
		t.Fatalf("DecodeReactions: %v", err)
	}
	if !r.Has("like", "alice") || len(r["like"]) != 1 {
		t.Fatalf("legacy string not coerced: %v", r)
	}
	if len(r["fire"]) != 1 {
		t.Fatalf("duplicates not collapsed: %v", r)
	}
	if _, ok := r["bad"]; ok {
		t.Fatalf("non-user value should be dropped: %v", r)
	}
	if got := r.Labels(); !reflect.DeepEqual(got, []string{"fire", "like"}) {
		t.Fatalf("Labels: %v", got)
	}
}

func TestDecodeReactionsEmpty(t *testing.T) {
	r, err := DecodeReactions(nil)
	if err != nil || len(r) != 0 {
		t.Fatalf("expected empty set, got %v %v", r, err)
	}
}

func TestParseMediaKind(t *testing.T) {
	cases := map[string]MediaKind{
		"pdf":         MediaStoryboard,
		"Storyboards": MediaStoryboard,
		"video":       MediaVideo,
		"docx":        MediaDocument,
	}
	for in, want := range cases {
		got, ok := ParseMediaKind(in)
		if !ok || got != want {
			t.Fatalf("ParseMediaKind(%q) = %q, %v", in, got, ok)
		}
	}
	if _, ok := ParseMediaKind("hologram"); ok {
		t.Fatalf("unknown kind should not parse")
	}
}

func clone(r Reactions) Reactions {
	out := Reactions{}
	for k, v := range r {
		out[k] = append([]string(nil), v...)
	}
	return out
}

func normalize(r Reactions) map[string][]string {
	out := map[string][]string{}
	for k, v := range r {
		if len(v) > 0 {
			cp := append([]string(nil), v...)
			sort.Strings(cp)
			out[k] = cp
		}
	}
	return out
}
