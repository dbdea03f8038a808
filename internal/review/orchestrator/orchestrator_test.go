package orchestrator

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	types "github.com/AICC2024/video-review/internal/domain"
	"github.com/AICC2024/video-review/internal/platform/logger"
	"github.com/AICC2024/video-review/internal/review/extract"
	"github.com/AICC2024/video-review/internal/review/reasoning"
	"github.com/AICC2024/video-review/internal/review/reviewerr"
)

type fakeExtractor struct {
	units      []extract.Unit
	renderErrs map[int]error
	err        error
	text       string
	textErr    error
	closed     bool
}

func (f *fakeExtractor) Extract(_ context.Context, _ extract.Source, _ types.MediaKind) (*extract.UnitSeq, error) {
	if f.err != nil {
		return nil, f.err
	}
	indexes := make([]int, len(f.units))
	for i, u := range f.units {
		indexes[i] = u.Index
	}
	return extract.NewUnitSeq(indexes, func(_ context.Context, pos int, index int) (extract.Unit, error) {
		if err := f.renderErrs[index]; err != nil {
			return extract.Unit{}, err
		}
		return f.units[pos], nil
	}, func() { f.closed = true }), nil
}

func (f *fakeExtractor) DocumentText(context.Context, extract.Source) (string, error) {
	return f.text, f.textErr
}

type fakeReasoner struct {
	mu       sync.Mutex
	requests []reasoning.ReviewRequest
	fail     func(req reasoning.ReviewRequest) error
}

func (f *fakeReasoner) ReviewUnit(_ context.Context, req reasoning.ReviewRequest) (string, error) {
	f.mu.Lock()
	f.requests = append(f.requests, req)
	f.mu.Unlock()
	if f.fail != nil {
		if err := f.fail(req); err != nil {
			return "", err
		}
	}
	return "  **Bold** tip for the unit.  ", nil
}

func (f *fakeReasoner) Ask(context.Context, reasoning.AskRequest) (string, error) {
	return "", errors.New("not used")
}

type memStore struct {
	mu         sync.Mutex
	units      map[int]string
	comments   []*types.Comment
	appendFail func(c *types.Comment) bool
}

func newMemStore() *memStore { return &memStore{units: map[int]string{}} }

func (m *memStore) UpsertUnitText(_ context.Context, _ string, index int, text string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.units[index] = text
	return nil
}

func (m *memStore) AppendComment(_ context.Context, c *types.Comment) (uuid.UUID, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.appendFail != nil && m.appendFail(c) {
		return uuid.Nil, &reviewerr.PersistenceError{Op: "append_comment", Err: errors.New("db down")}
	}
	c.ID = uuid.New()
	m.comments = append(m.comments, c)
	return c.ID, nil
}

type mapInstructions map[string]string

func (m mapInstructions) Get(_ context.Context, mode string) (string, error) { return m[mode], nil }
func (m mapInstructions) Set(context.Context, string, string) error          { return nil }
func (m mapInstructions) All(context.Context) (map[string]string, error)     { return m, nil }

func pages(n int) []extract.Unit {
	out := make([]extract.Unit, n)
	for i := range out {
		out[i] = extract.Unit{Index: i + 1, Text: "page text", Image: []byte{0x89, 'P', 'N', 'G'}, ImageMIME: "image/png"}
	}
	return out
}

func storyboardJob() Job {
	return Job{JobID: "job-1", AssetID: "deck-1", MediaKind: types.MediaStoryboard, Source: extract.Source{URL: "https://cdn.example.com/deck.pdf"}}
}

func TestRunSkipsTimedOutPage(t *testing.T) {
	ex := &fakeExtractor{units: pages(3)}
	rs := &fakeReasoner{fail: func(req reasoning.ReviewRequest) error {
		if strings.Contains(req.Text, "(Page 2 of 3)") {
			return &reviewerr.ReasoningTimeoutError{Op: "review_unit", Attempts: 20, Interval: 2 * time.Second}
		}
		return nil
	}}
	store := newMemStore()
	o := New(logger.Nop(), Deps{Extractor: ex, Reasoner: rs, Instructions: mapInstructions{"storyboard": "be kind"}, Store: store})

	res, err := o.Run(context.Background(), storyboardJob())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if res.UnitsTotal != 3 || res.UnitsProcessed != 2 || res.CommentsWritten != 2 {
		t.Fatalf("unexpected counts: %+v", res)
	}
	if len(store.comments) != 2 {
		t.Fatalf("want 2 comments, got %d", len(store.comments))
	}
	for i, want := range []int{1, 3} {
		c := store.comments[i]
		if c.UnitIndex == nil || *c.UnitIndex != want {
			t.Fatalf("comment %d unit index = %v, want %d", i, c.UnitIndex, want)
		}
		if c.Author != types.AgentAuthor {
			t.Fatalf("author = %q", c.Author)
		}
	}
	if got := store.comments[0].Body; got != "Slide 1: Bold tip for the unit.\n\n-- AGENT (Vision Review)" {
		t.Fatalf("body = %q", got)
	}
	if len(res.Failures) != 1 || res.Failures[0].UnitIndex != 2 || res.Failures[0].Kind != "reasoning_timeout" || res.Failures[0].Stage != StateCalling {
		t.Fatalf("failures = %+v", res.Failures)
	}
	if len(store.units) != 3 {
		t.Fatalf("page text should be stored for every page, got %v", store.units)
	}
	if res.Final() != StateDone {
		t.Fatalf("final state = %s", res.Final())
	}
	if !ex.closed {
		t.Fatal("unit sequence not closed")
	}
	for _, req := range rs.requests {
		if req.System != "be kind" || req.MaxOutputTokens != 1000 || len(req.Image) == 0 {
			t.Fatalf("unexpected request: %+v", req)
		}
	}
}

func TestRunVideoUsesTimestamps(t *testing.T) {
	ex := &fakeExtractor{units: []extract.Unit{
		{Index: 0, Text: "hello there", Image: []byte("f0")},
		{Index: 3, Text: "general kenobi", Image: []byte("f3")},
		{Index: 6, Text: "", Image: []byte("f6")},
	}}
	rs := &fakeReasoner{}
	store := newMemStore()
	o := New(logger.Nop(), Deps{Extractor: ex, Reasoner: rs, Store: store})

	job := Job{AssetID: "vid-1", MediaKind: types.MediaVideo, Source: extract.Source{StorageKey: "videos/a.mp4"}}
	res, err := o.Run(context.Background(), job)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if res.CommentsWritten != 3 {
		t.Fatalf("comments = %d", res.CommentsWritten)
	}
	for i, want := range []string{"0", "3", "6"} {
		c := store.comments[i]
		if c.Timestamp == nil || *c.Timestamp != want || c.UnitIndex != nil {
			t.Fatalf("comment %d: timestamp=%v unit_index=%v", i, c.Timestamp, c.UnitIndex)
		}
		if wantBody := want + "s: Bold tip for the unit.\n\n-- AGENT (Video Review)"; c.Body != wantBody {
			t.Fatalf("body = %q, want %q", c.Body, wantBody)
		}
	}
	if !strings.Contains(rs.requests[1].Text, "Timestamp: 3s") || !strings.Contains(rs.requests[1].Text, "“general kenobi”") {
		t.Fatalf("prompt = %q", rs.requests[1].Text)
	}
	if rs.requests[0].MaxOutputTokens != 500 {
		t.Fatalf("max tokens = %d", rs.requests[0].MaxOutputTokens)
	}
	if store.units[3] != "general kenobi" {
		t.Fatalf("narration not stored: %v", store.units)
	}
}

func TestRunAbortsOnExtractionError(t *testing.T) {
	ex := &fakeExtractor{err: errors.New("corrupt pdf")}
	store := newMemStore()
	o := New(logger.Nop(), Deps{Extractor: ex, Reasoner: &fakeReasoner{}, Store: store})

	res, err := o.Run(context.Background(), storyboardJob())
	var ee *reviewerr.ExtractionError
	if !errors.As(err, &ee) || ee.AssetID != "deck-1" {
		t.Fatalf("want ExtractionError for deck-1, got %v", err)
	}
	if res.Final() != StateAborted || len(store.comments) != 0 {
		t.Fatalf("final=%s comments=%d", res.Final(), len(store.comments))
	}
}

func TestRunAbortsOnZeroUnits(t *testing.T) {
	o := New(logger.Nop(), Deps{Extractor: &fakeExtractor{}, Reasoner: &fakeReasoner{}, Store: newMemStore()})
	_, err := o.Run(context.Background(), storyboardJob())
	if reviewerr.Kind(err) != "extraction_error" {
		t.Fatalf("want extraction_error, got %v", err)
	}
}

func TestRunContinuesPastUnitFailures(t *testing.T) {
	ex := &fakeExtractor{
		units:      pages(3),
		renderErrs: map[int]error{1: errors.New("pdftoppm exited 1")},
	}
	store := newMemStore()
	store.appendFail = func(c *types.Comment) bool { return c.UnitIndex != nil && *c.UnitIndex == 2 }
	o := New(logger.Nop(), Deps{Extractor: ex, Reasoner: &fakeReasoner{}, Store: store})

	res, err := o.Run(context.Background(), storyboardJob())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(store.comments) != 1 || *store.comments[0].UnitIndex != 3 {
		t.Fatalf("want only page 3 comment, got %d comments", len(store.comments))
	}
	if len(res.Failures) != 2 {
		t.Fatalf("failures = %+v", res.Failures)
	}
	if res.Failures[0].Stage != StateRendering || res.Failures[1].Kind != "persistence_error" || res.Failures[1].Stage != StatePersisting {
		t.Fatalf("failures = %+v", res.Failures)
	}
}

func TestRunWholeDocument(t *testing.T) {
	ex := &fakeExtractor{text: "Chapter one."}
	rs := &fakeReasoner{}
	store := newMemStore()
	o := New(logger.Nop(), Deps{Extractor: ex, Reasoner: rs, Instructions: mapInstructions{"document": "doc rules"}, Store: store})

	job := Job{AssetID: "handbook", MediaKind: types.MediaDocument, Source: extract.Source{StorageKey: "documents/handbook.docx"}, WholeAsset: true}
	res, err := o.Run(context.Background(), job)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if res.CommentsWritten != 1 || len(store.comments) != 1 {
		t.Fatalf("comments = %d", res.CommentsWritten)
	}
	c := store.comments[0]
	if c.UnitIndex != nil || c.Timestamp != nil {
		t.Fatal("whole document comment must not carry a unit")
	}
	if c.Body != "Bold tip for the unit.\n\n-- AGENT (Document Review)" {
		t.Fatalf("body = %q", c.Body)
	}
	req := rs.requests[0]
	if req.System != "doc rules" || !strings.Contains(req.Text, "document titled handbook:\n\nChapter one.") {
		t.Fatalf("request = %+v", req)
	}
}

func TestValidate(t *testing.T) {
	ok := storyboardJob()
	cases := []struct {
		name  string
		edit  func(j *Job)
		field string
	}{
		{"asset", func(j *Job) { j.AssetID = " " }, "asset_id"},
		{"kind", func(j *Job) { j.MediaKind = "" }, "media_type"},
		{"unknown kind", func(j *Job) { j.MediaKind = "podcast" }, "media_type"},
		{"source", func(j *Job) { j.Source = extract.Source{} }, "file_url"},
		{"whole video", func(j *Job) { j.MediaKind = types.MediaVideo; j.WholeAsset = true }, "media_type"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			j := ok
			tc.edit(&j)
			var ve *reviewerr.ValidationError
			if err := Validate(j); !errors.As(err, &ve) || ve.Field != tc.field {
				t.Fatalf("want validation error on %s, got %v", tc.field, err)
			}
		})
	}
	if err := Validate(ok); err != nil {
		t.Fatalf("valid job rejected: %v", err)
	}
}

func TestRunRejectsInvalidJobWithoutWork(t *testing.T) {
	ex := &fakeExtractor{units: pages(1)}
	o := New(logger.Nop(), Deps{Extractor: ex, Reasoner: &fakeReasoner{}, Store: newMemStore()})
	res, err := o.Run(context.Background(), Job{MediaKind: types.MediaVideo})
	if reviewerr.Kind(err) != "validation_error" {
		t.Fatalf("want validation_error, got %v", err)
	}
	if res.Final() != StateAborted || ex.closed {
		t.Fatalf("final=%s closed=%v", res.Final(), ex.closed)
	}
}
