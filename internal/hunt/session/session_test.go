package session

import (
	"errors"
	"testing"

	"huntforge.ai/internal/hunt/index"
)

// gridResolver returns one hint per query, three cells away along the ray.
type gridResolver struct{ calls int }

func (g *gridResolver) Hints(_ string, x, y int32, dir index.Direction) map[index.HintID]index.ResolvedHint {
	g.calls++
	dx, dy := [4]int32{0, 3, 0, -3}[dir], [4]int32{-3, 0, 3, 0}[dir]
	return map[index.HintID]index.ResolvedHint{
		7: {Distance: 3, X: x + dx, Y: y + dy},
	}
}

func TestSession_HintsNeedPositionAndDirection(t *testing.T) {
	r := &gridResolver{}
	s := New("s1", "test", r)

	s.SetDirection(index.East)
	if len(s.Hints()) != 0 || r.calls != 0 {
		t.Fatalf("expected no query without position: %+v calls=%d", s.Hints(), r.calls)
	}
	s.SetPosition(index.Coord{X: 1, Y: 1})
	if h := s.Hints()[7]; h.X != 4 || h.Y != 1 {
		t.Fatalf("unexpected hint: %+v", h)
	}
	s.ClearDirection()
	if len(s.Hints()) != 0 {
		t.Fatalf("expected empty hints after ClearDirection")
	}
	st := s.State()
	if st.Position == nil || *st.Position != (index.Coord{X: 1, Y: 1}) || st.Direction != nil {
		t.Fatalf("state mismatch: %+v", st)
	}
}

func TestSession_MoveTo(t *testing.T) {
	s := New("s1", "test", &gridResolver{})
	s.SetPosition(index.Coord{X: 0, Y: 0})
	s.SetDirection(index.North)

	if err := s.MoveTo(8); !errors.Is(err, ErrUnknownHint) {
		t.Fatalf("err=%v want ErrUnknownHint", err)
	}
	if st := s.State(); *st.Position != (index.Coord{}) || st.Direction == nil {
		t.Fatalf("state changed on failed MoveTo: %+v", st)
	}

	if err := s.MoveTo(7); err != nil {
		t.Fatalf("MoveTo: %v", err)
	}
	st := s.State()
	if *st.Position != (index.Coord{X: 0, Y: -3}) {
		t.Fatalf("position=%+v want 0,-3", *st.Position)
	}
	if st.Direction != nil || len(st.Hints) != 0 {
		t.Fatalf("direction should be cleared: %+v", st)
	}
	if err := s.MoveTo(7); !errors.Is(err, ErrUnknownHint) {
		t.Fatalf("hints are cleared after move, err=%v", err)
	}
}
