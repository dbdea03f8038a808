package extract

import (
	"context"
	"sync"
)

// Unit is one reviewable slice of an asset. Index is the 1-based page for
// paged media and the offset in whole seconds for video.
type Unit struct {
	Index     int
	Text      string
	Image     []byte
	ImageMIME string
}

// UnitSeq yields units one at a time. Rendering happens in Next, so a
// failure on one unit does not stop later units from being produced.
type UnitSeq struct {
	indexes []int
	render  func(ctx context.Context, pos int, index int) (Unit, error)
	pos     int

	closeOnce sync.Once
	cleanup   func()
}

// NewUnitSeq builds a sequence over indexes. render receives the position in
// the sequence and the unit index.
func NewUnitSeq(indexes []int, render func(ctx context.Context, pos int, index int) (Unit, error), cleanup func()) *UnitSeq {
	return &UnitSeq{indexes: indexes, render: render, cleanup: cleanup}
}

func (s *UnitSeq) Total() int { return len(s.indexes) }

// Indexes returns the unit indexes in processing order.
func (s *UnitSeq) Indexes() []int {
	out := make([]int, len(s.indexes))
	copy(out, s.indexes)
	return out
}

// Next renders the next unit. ok is false once the sequence is exhausted.
// A non-nil error with ok true is scoped to the returned unit's index.
func (s *UnitSeq) Next(ctx context.Context) (Unit, bool, error) {
	if s.pos >= len(s.indexes) {
		return Unit{}, false, nil
	}
	pos, idx := s.pos, s.indexes[s.pos]
	s.pos++
	if err := ctx.Err(); err != nil {
		return Unit{Index: idx}, true, err
	}
	u, err := s.render(ctx, pos, idx)
	u.Index = idx
	return u, true, err
}

func (s *UnitSeq) Close() error {
	s.closeOnce.Do(func() {
		if s.cleanup != nil {
			s.cleanup()
		}
	})
	return nil
}
