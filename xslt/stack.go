package xslt

import (
	"fmt"
	"slices"

	"github.com/midbel/angle/xpath"
)

type globalState int8

const (
	Unevaluated globalState = iota
	Evaluating
	Evaluated
)

func (s globalState) String() string {
	switch s {
	case Unevaluated:
		return "unevaluated"
	case Evaluating:
		return "evaluating"
	case Evaluated:
		return "evaluated"
	default:
		return "unknown"
	}
}

type globalSlot struct {
	state globalState
	value xpath.Value
}

// Stack holds the variables of one transform. Local variables live in
// frames addressed by a base and a frame relative index. Globals have their
// own slots and are evaluated on first access.
type Stack struct {
	frames []xpath.Value
	links  []int
	top    int
	base   int

	globals []globalSlot
}

func NewStack(globals int) *Stack {
	return &Stack{
		globals: make([]globalSlot, globals),
	}
}

// Link pushes a frame of size slots above the current top, makes it the
// current frame and returns its base.
func (s *Stack) Link(size int) int {
	base := s.top
	s.links = append(s.links, base)
	s.top += size
	if n := s.top - len(s.frames); n > 0 {
		s.frames = append(s.frames, make([]xpath.Value, n)...)
	}
	clear(s.frames[base:s.top])
	s.base = base
	return base
}

// Unlink discards the frame pushed by the last Link and makes saved the
// current frame, whatever frame was current before.
func (s *Stack) Unlink(saved int) {
	if n := len(s.links); n > 0 {
		s.top = s.links[n-1]
		s.links = s.links[:n-1]
		clear(s.frames[s.top:])
	}
	s.base = saved
}

// Frame returns the base of the current frame.
func (s *Stack) Frame() int {
	return s.base
}

func (s *Stack) SetFrame(base int) {
	s.base = base
}

// Depth returns the number of linked frames.
func (s *Stack) Depth() int {
	return len(s.links)
}

func (s *Stack) SetLocal(index int, value xpath.Value) {
	s.SetLocalAt(s.base, index, value)
}

func (s *Stack) SetLocalAt(base, index int, value xpath.Value) {
	s.frames[base+index] = value
}

func (s *Stack) Local(index int) (xpath.Value, error) {
	ix := s.base + index
	if ix < 0 || ix >= s.top || s.frames[ix] == nil {
		return nil, fmt.Errorf("local variable at %d: %w", index, ErrUndefined)
	}
	return s.frames[ix], nil
}

func (s *Stack) IsLocalSet(index int) bool {
	ix := s.base + index
	return ix < s.top && s.frames[ix] != nil
}

// ClearLocal unsets n slots of the current frame starting at start.
func (s *Stack) ClearLocal(start, n int) {
	if n <= 0 {
		return
	}
	clear(s.frames[s.base+start : s.base+start+n])
}

func (s *Stack) globalState(slot int) globalState {
	return s.globals[slot].state
}

// BindGlobal marks the slot as evaluated with the given value.
func (s *Stack) BindGlobal(slot int, value xpath.Value) {
	s.globals[slot] = globalSlot{
		state: Evaluated,
		value: value,
	}
}

// Global returns the value of a global slot, evaluating it with eval on
// first access. Accessing a slot whose evaluation is in progress is a self
// reference.
func (s *Stack) Global(slot int, eval func() (xpath.Value, error)) (xpath.Value, error) {
	g := &s.globals[slot]
	switch g.state {
	case Evaluated:
		return g.value, nil
	case Evaluating:
		return nil, ErrSelfReference
	default:
	}
	g.state = Evaluating
	v, err := eval()
	g = &s.globals[slot]
	if err != nil {
		g.state = Unevaluated
		return nil, err
	}
	g.state = Evaluated
	g.value = v
	return v, nil
}

// snapshot is used by tests to compare frames.
func (s *Stack) snapshot() []xpath.Value {
	return slices.Clone(s.frames[:s.top])
}
