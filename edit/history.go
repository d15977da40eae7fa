package edit

import "fmt"

// DefaultMaxUndo is the undo depth History uses when the caller doesn't
// have an opinion.
const DefaultMaxUndo = 100

// EmptyStackError reports an Undo or Redo call with nothing on the
// relevant stack.
type EmptyStackError struct {
	Op string // "undo" or "redo"
}

func (e *EmptyStackError) Error() string {
	return fmt.Sprintf("edit: nothing to %s", e.Op)
}

// History manages a linear undo/redo stack for a target of type T. The
// undo stack is bounded: once it exceeds maxUndo the oldest entry is
// dropped from the front. The redo stack is cleared by any recorded
// Execute, matching standard editor behavior — once you branch off by
// executing something new, the old redo branch is gone.
type History[T any] struct {
	undo []Action[T]
	redo []Action[T]

	maxUndo     int
	mergeBroken bool

	// saveDistance tracks how far the current state is from the last
	// MarkSaved call:
	//   0      - current state matches the last save
	//   n > 0  - n undos needed to reach the saved state
	//   n < 0  - |n| redos needed to reach the saved state
	//   nil    - never saved, or the save point is unreachable (dropped
	//            by capacity overflow, or its redo branch was discarded)
	saveDistance *int64
}

// NewHistory returns an empty history with the given maximum undo depth.
// saveDistance starts nil: a fresh history has never been saved, so
// HasUnsavedChanges reports true until the first MarkSaved.
func NewHistory[T any](maxUndo int) *History[T] {
	return &History[T]{maxUndo: maxUndo}
}

// Execute applies action to target and, if the action IsRecorded, pushes
// it onto the undo stack after clearing the redo stack and attempting to
// merge it with the current top entry.
//
// Non-recorded actions are applied but never pushed. If a non-recorded
// action also reports BreaksMerge, the next recorded action will not
// merge with whatever is currently on top of the undo stack.
//
// If Apply fails, the action is not pushed and history state is
// unchanged.
func (h *History[T]) Execute(action Action[T], target *T) error {
	if err := action.Apply(target); err != nil {
		return err
	}

	if !action.IsRecorded() {
		if action.BreaksMerge() {
			h.mergeBroken = true
		}
		return nil
	}

	isContent := action.ModifiesContent()

	h.redo = nil
	if isContent && h.saveDistance != nil && *h.saveDistance < 0 {
		h.saveDistance = nil
	}

	if !h.mergeBroken && len(h.undo) > 0 {
		top := h.undo[len(h.undo)-1]
		if merged, back := top.Merge(action); merged {
			if isContent && h.saveDistance != nil && *h.saveDistance == 0 {
				h.saveDistance = nil
			}
			return nil
		} else {
			action = back
		}
	}
	h.mergeBroken = false

	if isContent && h.saveDistance != nil {
		*h.saveDistance++
	}

	h.undo = append(h.undo, action)
	if len(h.undo) > h.maxUndo {
		h.undo = h.undo[1:]
		if h.saveDistance != nil && *h.saveDistance > int64(len(h.undo)) {
			h.saveDistance = nil
		}
	}
	return nil
}

// Undo reverses the most recently executed action and moves it onto the
// redo stack. Returns an EmptyStackError if the undo stack is empty.
func (h *History[T]) Undo(target *T) error {
	if len(h.undo) == 0 {
		return &EmptyStackError{Op: "undo"}
	}
	action := h.undo[len(h.undo)-1]
	h.undo = h.undo[:len(h.undo)-1]
	if err := action.Undo(target); err != nil {
		return err
	}
	h.redo = append(h.redo, action)
	if action.ModifiesContent() && h.saveDistance != nil {
		*h.saveDistance--
	}
	return nil
}

// Redo reapplies the most recently undone action. Returns an
// EmptyStackError if the redo stack is empty.
func (h *History[T]) Redo(target *T) error {
	if len(h.redo) == 0 {
		return &EmptyStackError{Op: "redo"}
	}
	action := h.redo[len(h.redo)-1]
	h.redo = h.redo[:len(h.redo)-1]
	if err := action.Apply(target); err != nil {
		return err
	}
	if action.ModifiesContent() && h.saveDistance != nil {
		*h.saveDistance++
	}
	h.undo = append(h.undo, action)
	if len(h.undo) > h.maxUndo {
		h.undo = h.undo[1:]
		if h.saveDistance != nil && *h.saveDistance > int64(len(h.undo)) {
			h.saveDistance = nil
		}
	}
	return nil
}

// CanUndo reports whether there is an action to undo.
func (h *History[T]) CanUndo() bool { return len(h.undo) > 0 }

// CanRedo reports whether there is an action to redo.
func (h *History[T]) CanRedo() bool { return len(h.redo) > 0 }

// UndoCount returns the number of actions on the undo stack.
func (h *History[T]) UndoCount() int { return len(h.undo) }

// RedoCount returns the number of actions on the redo stack.
func (h *History[T]) RedoCount() int { return len(h.redo) }

// MaxUndo returns the configured maximum undo depth.
func (h *History[T]) MaxUndo() int { return h.maxUndo }

// UndoDescriptions returns undo-stack action descriptions, most recent
// first.
func (h *History[T]) UndoDescriptions() []string {
	out := make([]string, len(h.undo))
	for i, a := range h.undo {
		out[len(h.undo)-1-i] = a.Description()
	}
	return out
}

// RedoDescriptions returns redo-stack action descriptions, most recent
// first.
func (h *History[T]) RedoDescriptions() []string {
	out := make([]string, len(h.redo))
	for i, a := range h.redo {
		out[len(h.redo)-1-i] = a.Description()
	}
	return out
}

// MarkSaved records the current state as the saved state. After this,
// HasUnsavedChanges returns false until Execute, Undo, or Redo touches
// content again.
func (h *History[T]) MarkSaved() {
	zero := int64(0)
	h.saveDistance = &zero
}

// HasUnsavedChanges reports whether the current state differs from the
// last saved state — true if MarkSaved has never been called, the
// history has changed since, or the save point is permanently
// unreachable (dropped by capacity overflow or its redo branch was
// discarded).
func (h *History[T]) HasUnsavedChanges() bool {
	return h.saveDistance == nil || *h.saveDistance != 0
}

// Clear empties both stacks and resets the merge-broken flag. If the
// current state was the saved state, it remains so; otherwise the save
// point is permanently lost.
func (h *History[T]) Clear() {
	h.undo = nil
	h.redo = nil
	h.mergeBroken = false
	if h.saveDistance == nil || *h.saveDistance != 0 {
		h.saveDistance = nil
	}
}
