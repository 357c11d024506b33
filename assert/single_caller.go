package assert

import "fmt"

// SingleCaller enforces the single-threaded cooperative scheduling model of
// the debug engine: it is driven by exactly one caller goroutine, and every
// mutation of engine state must happen on that goroutine. Zero value is
// unbound; the first call to Check binds it.
type SingleCaller struct {
	bound bool
	id    uint64
}

// Check panics if called from a goroutine other than the one that first
// called Check on this SingleCaller.
func (s *SingleCaller) Check() {
	id := GetGoRoutineID()
	if !s.bound {
		s.bound = true
		s.id = id
		return
	}
	if s.id != id {
		panic(fmt.Sprintf("nativedbg: engine accessed from goroutine %d, expected %d", id, s.id))
	}
}

// Reset releases the binding, allowing a subsequent Check call to rebind to
// whichever goroutine calls it next. Used after engine restart, where the
// driving goroutine may legitimately change.
func (s *SingleCaller) Reset() {
	s.bound = false
}
