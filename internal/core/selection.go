// Rectangle selection driven by press, move and release gestures
package core

import (
	"fmt"
	"image"
	"sync"

	"cutout-studio/internal/geometry"
)

// SelectionState is the phase of the selection gesture
type SelectionState int

const (
	SelectionIdle SelectionState = iota
	SelectionDragging
	SelectionCommitted
)

func (s SelectionState) String() string {
	switch s {
	case SelectionIdle:
		return "idle"
	case SelectionDragging:
		return "dragging"
	case SelectionCommitted:
		return "committed"
	}
	return fmt.Sprintf("SelectionState(%d)", int(s))
}

// SelectionMachine turns pointer gestures in image space into a committed
// rectangle. A committed rectangle stays readable while a new drag is in
// progress and is replaced only when that drag is released.
type SelectionMachine struct {
	mu        sync.RWMutex
	state     SelectionState
	anchor    image.Point
	candidate image.Rectangle
	committed image.Rectangle
	hasRect   bool

	onChange func(SelectionState, image.Rectangle)
}

// NewSelectionMachine creates an idle selection machine
func NewSelectionMachine() *SelectionMachine {
	return &SelectionMachine{}
}

// OnChange registers a listener called after every state change, outside the lock
func (sm *SelectionMachine) OnChange(fn func(SelectionState, image.Rectangle)) {
	sm.mu.Lock()
	defer sm.mu.Unlock()
	sm.onChange = fn
}

// Press starts a drag at p
func (sm *SelectionMachine) Press(p image.Point) {
	sm.mu.Lock()
	sm.state = SelectionDragging
	sm.anchor = p
	sm.candidate = image.Rectangle{Min: p, Max: p}
	sm.mu.Unlock()

	sm.notify()
}

// Move updates the live candidate rectangle; ignored unless dragging
func (sm *SelectionMachine) Move(p image.Point) {
	sm.mu.Lock()
	if sm.state != SelectionDragging {
		sm.mu.Unlock()
		return
	}
	sm.candidate = geometry.NormalizeRect(sm.anchor, p)
	sm.mu.Unlock()

	sm.notify()
}

// Release finishes the drag at p. A degenerate rectangle returns the
// machine to idle and clears any earlier selection.
func (sm *SelectionMachine) Release(p image.Point) bool {
	sm.mu.Lock()
	if sm.state != SelectionDragging {
		sm.mu.Unlock()
		return false
	}

	rect := geometry.NormalizeRect(sm.anchor, p)
	sm.candidate = image.Rectangle{}
	if rect.Empty() {
		sm.state = SelectionIdle
		sm.committed = image.Rectangle{}
		sm.hasRect = false
	} else {
		sm.state = SelectionCommitted
		sm.committed = rect
		sm.hasRect = true
	}
	committed := sm.hasRect
	sm.mu.Unlock()

	sm.notify()
	return committed
}

// Reset drops the selection and returns to idle
func (sm *SelectionMachine) Reset() {
	sm.mu.Lock()
	sm.state = SelectionIdle
	sm.candidate = image.Rectangle{}
	sm.committed = image.Rectangle{}
	sm.hasRect = false
	sm.mu.Unlock()

	sm.notify()
}

// State returns the current phase
func (sm *SelectionMachine) State() SelectionState {
	sm.mu.RLock()
	defer sm.mu.RUnlock()
	return sm.state
}

// Rect returns the committed rectangle, if any
func (sm *SelectionMachine) Rect() (image.Rectangle, bool) {
	sm.mu.RLock()
	defer sm.mu.RUnlock()
	return sm.committed, sm.hasRect
}

// Candidate returns the rectangle being dragged, if any
func (sm *SelectionMachine) Candidate() (image.Rectangle, bool) {
	sm.mu.RLock()
	defer sm.mu.RUnlock()
	return sm.candidate, sm.state == SelectionDragging
}

func (sm *SelectionMachine) notify() {
	sm.mu.RLock()
	fn := sm.onChange
	state := sm.state
	rect := sm.committed
	if state == SelectionDragging {
		rect = sm.candidate
	}
	sm.mu.RUnlock()

	if fn != nil {
		fn(state, rect)
	}
}
