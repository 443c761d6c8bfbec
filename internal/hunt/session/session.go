package session

import (
	"errors"

	"huntforge.ai/internal/hunt/index"
)

var ErrUnknownHint = errors.New("hint is not among the current results")

type Resolver interface {
	Hints(source string, x, y int32, dir index.Direction) map[index.HintID]index.ResolvedHint
}

// State is a read-only view of a session. Nil fields are unset.
type State struct {
	Position  *index.Coord                        `json:"position"`
	Direction *index.Direction                    `json:"direction"`
	Hints     map[index.HintID]index.ResolvedHint `json:"hints"`
}

// Session tracks one hunter's position and facing. Not safe for concurrent use;
// each connection owns its session.
type Session struct {
	ID     string
	source string
	res    Resolver

	pos    index.Coord
	hasPos bool
	dir    index.Direction
	hasDir bool

	hints map[index.HintID]index.ResolvedHint
}

func New(id, source string, r Resolver) *Session {
	return &Session{
		ID:     id,
		source: source,
		res:    r,
		hints:  map[index.HintID]index.ResolvedHint{},
	}
}

func (s *Session) SetPosition(c index.Coord) {
	s.pos = c
	s.hasPos = true
	s.refresh()
}

func (s *Session) SetDirection(d index.Direction) {
	s.dir = d
	s.hasDir = true
	s.refresh()
}

func (s *Session) ClearDirection() {
	s.hasDir = false
	s.refresh()
}

// MoveTo jumps to the position of hint id from the current results and clears
// the direction. State is unchanged when id is not a current result.
func (s *Session) MoveTo(id index.HintID) error {
	h, ok := s.hints[id]
	if !ok {
		return ErrUnknownHint
	}
	s.pos = index.Coord{X: h.X, Y: h.Y}
	s.hasPos = true
	s.hasDir = false
	s.refresh()
	return nil
}

func (s *Session) Hints() map[index.HintID]index.ResolvedHint { return s.hints }

func (s *Session) State() State {
	st := State{Hints: s.hints}
	if s.hasPos {
		p := s.pos
		st.Position = &p
	}
	if s.hasDir {
		d := s.dir
		st.Direction = &d
	}
	return st
}

func (s *Session) refresh() {
	if !s.hasPos || !s.hasDir || s.res == nil {
		s.hints = map[index.HintID]index.ResolvedHint{}
		return
	}
	s.hints = s.res.Hints(s.source, s.pos.X, s.pos.Y, s.dir)
}
