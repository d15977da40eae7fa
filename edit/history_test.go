package edit

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

type counter struct {
	value int
}

type addAction struct {
	BaseAction[counter]
	amount int
}

func (a *addAction) Apply(c *counter) error { c.value += a.amount; return nil }
func (a *addAction) Undo(c *counter) error  { c.value -= a.amount; return nil }
func (a *addAction) Description() string    { return "Add" }

// setValueAction simulates a drag: consecutive instances merge, keeping
// the first oldValue and the latest newValue.
type setValueAction struct {
	BaseAction[counter]
	oldValue, newValue int
}

func (a *setValueAction) Apply(c *counter) error { c.value = a.newValue; return nil }
func (a *setValueAction) Undo(c *counter) error  { c.value = a.oldValue; return nil }
func (a *setValueAction) Description() string    { return "Set value" }

func (a *setValueAction) Merge(other Action[counter]) (bool, Action[counter]) {
	if o, ok := other.(*setValueAction); ok {
		a.newValue = o.newValue
		return true, nil
	}
	return false, other
}

// selectionAction is recorded but does not modify content.
type selectionAction struct {
	BaseAction[counter]
	oldValue, newValue int
}

func (a *selectionAction) Apply(c *counter) error { c.value = a.newValue; return nil }
func (a *selectionAction) Undo(c *counter) error  { c.value = a.oldValue; return nil }
func (a *selectionAction) Description() string    { return "Select" }
func (a *selectionAction) ModifiesContent() bool  { return false }

// cameraMoveAction is non-recorded and does not break merges.
type cameraMoveAction struct {
	BaseAction[counter]
	offset int
}

func (a *cameraMoveAction) Apply(c *counter) error { c.value += a.offset; return nil }
func (a *cameraMoveAction) Undo(c *counter) error  { panic("non-recorded actions should never be undone") }
func (a *cameraMoveAction) Description() string    { return "Camera move" }
func (a *cameraMoveAction) IsRecorded() bool       { return false }

// cameraZoomAction is non-recorded and breaks merges.
type cameraZoomAction struct {
	BaseAction[counter]
}

func (a *cameraZoomAction) Apply(c *counter) error { return nil }
func (a *cameraZoomAction) Undo(c *counter) error  { panic("non-recorded actions should never be undone") }
func (a *cameraZoomAction) Description() string    { return "Camera zoom" }
func (a *cameraZoomAction) IsRecorded() bool       { return false }
func (a *cameraZoomAction) BreaksMerge() bool      { return true }

type failingAction struct {
	BaseAction[counter]
}

func (a *failingAction) Apply(c *counter) error { return errors.New("always fails") }
func (a *failingAction) Undo(c *counter) error  { return errors.New("always fails") }
func (a *failingAction) Description() string    { return "Failing" }

func TestExecuteAppliesAndPushes(t *testing.T) {
	h := NewHistory[counter](DefaultMaxUndo)
	c := &counter{}

	require.NoError(t, h.Execute(&addAction{amount: 5}, c))
	require.Equal(t, 5, c.value)
	require.Equal(t, 1, h.UndoCount())
	require.Equal(t, 0, h.RedoCount())
}

func TestUndoReversesAndMovesToRedo(t *testing.T) {
	h := NewHistory[counter](DefaultMaxUndo)
	c := &counter{}

	require.NoError(t, h.Execute(&addAction{amount: 5}, c))
	require.NoError(t, h.Undo(c))
	require.Equal(t, 0, c.value)
	require.Equal(t, 0, h.UndoCount())
	require.Equal(t, 1, h.RedoCount())
}

func TestRedoReappliesAndMovesToUndo(t *testing.T) {
	h := NewHistory[counter](DefaultMaxUndo)
	c := &counter{}

	require.NoError(t, h.Execute(&addAction{amount: 5}, c))
	require.NoError(t, h.Undo(c))
	require.NoError(t, h.Redo(c))
	require.Equal(t, 5, c.value)
	require.Equal(t, 1, h.UndoCount())
	require.Equal(t, 0, h.RedoCount())
}

func TestExecuteClearsRedoStack(t *testing.T) {
	h := NewHistory[counter](DefaultMaxUndo)
	c := &counter{}

	require.NoError(t, h.Execute(&addAction{amount: 5}, c))
	require.NoError(t, h.Undo(c))
	require.Equal(t, 1, h.RedoCount())

	require.NoError(t, h.Execute(&addAction{amount: 3}, c))
	require.Equal(t, 0, h.RedoCount())
	require.Equal(t, 3, c.value)
}

func TestUndoEmptyReturnsError(t *testing.T) {
	h := NewHistory[counter](DefaultMaxUndo)
	c := &counter{}
	require.Error(t, h.Undo(c))
}

func TestRedoEmptyReturnsError(t *testing.T) {
	h := NewHistory[counter](DefaultMaxUndo)
	c := &counter{}
	require.Error(t, h.Redo(c))
}

func TestCapacityDropsOldest(t *testing.T) {
	h := NewHistory[counter](2)
	c := &counter{}

	require.NoError(t, h.Execute(&addAction{amount: 1}, c))
	require.NoError(t, h.Execute(&addAction{amount: 2}, c))
	require.NoError(t, h.Execute(&addAction{amount: 3}, c))

	require.Equal(t, 2, h.UndoCount())
	require.Equal(t, 6, c.value)

	require.NoError(t, h.Undo(c))
	require.NoError(t, h.Undo(c))
	require.Equal(t, 1, c.value)
	require.Error(t, h.Undo(c))
}

func TestDescriptions(t *testing.T) {
	h := NewHistory[counter](DefaultMaxUndo)
	c := &counter{}

	require.Empty(t, h.UndoDescriptions())
	require.Empty(t, h.RedoDescriptions())

	require.NoError(t, h.Execute(&addAction{amount: 1}, c))
	require.NoError(t, h.Execute(&addAction{amount: 2}, c))
	require.Equal(t, []string{"Add", "Add"}, h.UndoDescriptions())

	require.NoError(t, h.Undo(c))
	require.NoError(t, h.Undo(c))
	require.Equal(t, []string{"Add", "Add"}, h.RedoDescriptions())
}

func TestCanUndoCanRedo(t *testing.T) {
	h := NewHistory[counter](DefaultMaxUndo)
	c := &counter{}

	require.False(t, h.CanUndo())
	require.False(t, h.CanRedo())

	require.NoError(t, h.Execute(&addAction{amount: 1}, c))
	require.True(t, h.CanUndo())
	require.False(t, h.CanRedo())

	require.NoError(t, h.Undo(c))
	require.False(t, h.CanUndo())
	require.True(t, h.CanRedo())
}

func TestClearEmptiesBothStacks(t *testing.T) {
	h := NewHistory[counter](DefaultMaxUndo)
	c := &counter{}

	require.NoError(t, h.Execute(&addAction{amount: 1}, c))
	require.NoError(t, h.Execute(&addAction{amount: 2}, c))
	require.NoError(t, h.Undo(c))

	h.Clear()
	require.Equal(t, 0, h.UndoCount())
	require.Equal(t, 0, h.RedoCount())
}

func TestFailedExecuteDoesNotPush(t *testing.T) {
	h := NewHistory[counter](DefaultMaxUndo)
	c := &counter{}

	require.Error(t, h.Execute(&failingAction{}, c))
	require.Equal(t, 0, h.UndoCount())
	require.Equal(t, 0, c.value)
}

func TestMaxUndoAccessor(t *testing.T) {
	h := NewHistory[counter](42)
	require.Equal(t, 42, h.MaxUndo())
}

func TestMergeCoalescesConsecutiveActions(t *testing.T) {
	h := NewHistory[counter](DefaultMaxUndo)
	c := &counter{}

	require.NoError(t, h.Execute(&setValueAction{oldValue: 0, newValue: 10}, c))
	require.NoError(t, h.Execute(&setValueAction{oldValue: 10, newValue: 20}, c))
	require.NoError(t, h.Execute(&setValueAction{oldValue: 20, newValue: 30}, c))

	require.Equal(t, 30, c.value)
	require.Equal(t, 1, h.UndoCount())

	require.NoError(t, h.Undo(c))
	require.Equal(t, 0, c.value)
}

func TestMergeDoesNotMergeDifferentTypes(t *testing.T) {
	h := NewHistory[counter](DefaultMaxUndo)
	c := &counter{}

	require.NoError(t, h.Execute(&setValueAction{oldValue: 0, newValue: 10}, c))
	require.NoError(t, h.Execute(&addAction{amount: 5}, c))

	require.Equal(t, 15, c.value)
	require.Equal(t, 2, h.UndoCount())
}

func TestMergeAfterUndoClearsRedo(t *testing.T) {
	h := NewHistory[counter](DefaultMaxUndo)
	c := &counter{}

	require.NoError(t, h.Execute(&setValueAction{oldValue: 0, newValue: 10}, c))
	require.NoError(t, h.Undo(c))
	require.Equal(t, 1, h.RedoCount())

	require.NoError(t, h.Execute(&setValueAction{oldValue: 0, newValue: 5}, c))
	require.Equal(t, 0, h.RedoCount())
	require.Equal(t, 1, h.UndoCount())
}

func TestNonRecordedActionAppliesButNotPushed(t *testing.T) {
	h := NewHistory[counter](DefaultMaxUndo)
	c := &counter{}

	require.NoError(t, h.Execute(&cameraMoveAction{offset: 42}, c))
	require.Equal(t, 42, c.value)
	require.Equal(t, 0, h.UndoCount())
	require.Equal(t, 0, h.RedoCount())
}

func TestNonRecordedActionDoesNotClearRedo(t *testing.T) {
	h := NewHistory[counter](DefaultMaxUndo)
	c := &counter{}

	require.NoError(t, h.Execute(&addAction{amount: 5}, c))
	require.NoError(t, h.Undo(c))
	require.Equal(t, 1, h.RedoCount())

	require.NoError(t, h.Execute(&cameraMoveAction{offset: 1}, c))
	require.Equal(t, 1, h.RedoCount())
}

func TestNonRecordedWithoutBreakPreservesMerge(t *testing.T) {
	h := NewHistory[counter](DefaultMaxUndo)
	c := &counter{}

	require.NoError(t, h.Execute(&setValueAction{oldValue: 0, newValue: 10}, c))
	require.NoError(t, h.Execute(&cameraMoveAction{offset: 0}, c))
	require.NoError(t, h.Execute(&setValueAction{oldValue: 10, newValue: 20}, c))

	require.Equal(t, 20, c.value)
	require.Equal(t, 1, h.UndoCount())
	require.NoError(t, h.Undo(c))
	require.Equal(t, 0, c.value)
}

func TestBreaksMergePreventsCoalescing(t *testing.T) {
	h := NewHistory[counter](DefaultMaxUndo)
	c := &counter{}

	require.NoError(t, h.Execute(&setValueAction{oldValue: 0, newValue: 10}, c))
	require.NoError(t, h.Execute(&cameraZoomAction{}, c))
	require.NoError(t, h.Execute(&setValueAction{oldValue: 10, newValue: 20}, c))

	require.Equal(t, 20, c.value)
	require.Equal(t, 2, h.UndoCount())

	require.NoError(t, h.Undo(c))
	require.Equal(t, 10, c.value)
	require.NoError(t, h.Undo(c))
	require.Equal(t, 0, c.value)
}

func TestMergeBrokenResetsAfterRecordedAction(t *testing.T) {
	h := NewHistory[counter](DefaultMaxUndo)
	c := &counter{}

	require.NoError(t, h.Execute(&setValueAction{oldValue: 0, newValue: 10}, c))
	require.NoError(t, h.Execute(&cameraZoomAction{}, c))
	require.NoError(t, h.Execute(&setValueAction{oldValue: 10, newValue: 20}, c))
	require.Equal(t, 2, h.UndoCount())

	require.NoError(t, h.Execute(&setValueAction{oldValue: 20, newValue: 30}, c))
	require.Equal(t, 2, h.UndoCount())
}

func TestFailedActionDoesNotBreakMerge(t *testing.T) {
	h := NewHistory[counter](DefaultMaxUndo)
	c := &counter{}

	require.NoError(t, h.Execute(&setValueAction{oldValue: 0, newValue: 10}, c))
	_ = h.Execute(&failingAction{}, c)

	require.NoError(t, h.Execute(&setValueAction{oldValue: 10, newValue: 20}, c))
	require.Equal(t, 1, h.UndoCount())
}

func TestUnsavedChangesOnFreshHistory(t *testing.T) {
	h := NewHistory[counter](DefaultMaxUndo)
	require.True(t, h.HasUnsavedChanges())
}

func TestNotUnsavedAfterMarkSaved(t *testing.T) {
	h := NewHistory[counter](DefaultMaxUndo)
	h.MarkSaved()
	require.False(t, h.HasUnsavedChanges())
}

func TestUnsavedAfterExecute(t *testing.T) {
	h := NewHistory[counter](DefaultMaxUndo)
	c := &counter{}

	h.MarkSaved()
	require.NoError(t, h.Execute(&addAction{amount: 1}, c))
	require.True(t, h.HasUnsavedChanges())
}

func TestNotUnsavedAfterUndoToSavePoint(t *testing.T) {
	h := NewHistory[counter](DefaultMaxUndo)
	c := &counter{}

	h.MarkSaved()
	require.NoError(t, h.Execute(&addAction{amount: 1}, c))
	require.NoError(t, h.Undo(c))
	require.False(t, h.HasUnsavedChanges())
}

func TestNotUnsavedAfterUndoThenRedoToSavePoint(t *testing.T) {
	h := NewHistory[counter](DefaultMaxUndo)
	c := &counter{}

	require.NoError(t, h.Execute(&addAction{amount: 1}, c))
	h.MarkSaved()
	require.NoError(t, h.Undo(c))
	require.True(t, h.HasUnsavedChanges())
	require.NoError(t, h.Redo(c))
	require.False(t, h.HasUnsavedChanges())
}

func TestUnsavedAfterUndoPastSavePoint(t *testing.T) {
	h := NewHistory[counter](DefaultMaxUndo)
	c := &counter{}

	require.NoError(t, h.Execute(&addAction{amount: 1}, c))
	h.MarkSaved()
	require.NoError(t, h.Undo(c))
	require.True(t, h.HasUnsavedChanges())
}

func TestSaveLostWhenNewBranchAfterUndo(t *testing.T) {
	h := NewHistory[counter](DefaultMaxUndo)
	c := &counter{}

	require.NoError(t, h.Execute(&addAction{amount: 1}, c))
	h.MarkSaved()
	require.NoError(t, h.Undo(c))
	require.NoError(t, h.Execute(&addAction{amount: 2}, c))
	require.True(t, h.HasUnsavedChanges())
	require.NoError(t, h.Undo(c))
	require.True(t, h.HasUnsavedChanges())
}

func TestSaveLostWhenCapacityOverflow(t *testing.T) {
	h := NewHistory[counter](2)
	c := &counter{}

	h.MarkSaved()
	require.NoError(t, h.Execute(&addAction{amount: 1}, c))
	require.NoError(t, h.Execute(&addAction{amount: 2}, c))
	require.True(t, h.HasUnsavedChanges())
	require.NoError(t, h.Undo(c))
	require.NoError(t, h.Undo(c))
	require.False(t, h.HasUnsavedChanges())

	require.NoError(t, h.Redo(c))
	require.NoError(t, h.Redo(c))
	require.NoError(t, h.Execute(&addAction{amount: 3}, c))
	require.True(t, h.HasUnsavedChanges())
}

func TestMergeAtSavePointInvalidates(t *testing.T) {
	h := NewHistory[counter](DefaultMaxUndo)
	c := &counter{}

	require.NoError(t, h.Execute(&setValueAction{oldValue: 0, newValue: 10}, c))
	h.MarkSaved()
	require.NoError(t, h.Execute(&setValueAction{oldValue: 10, newValue: 20}, c))
	require.True(t, h.HasUnsavedChanges())
}

func TestNonRecordedActionDoesNotAffectSave(t *testing.T) {
	h := NewHistory[counter](DefaultMaxUndo)
	c := &counter{}

	h.MarkSaved()
	require.NoError(t, h.Execute(&cameraMoveAction{offset: 42}, c))
	require.False(t, h.HasUnsavedChanges())
}

func TestClearPreservesSaveAtCurrentState(t *testing.T) {
	h := NewHistory[counter](DefaultMaxUndo)
	c := &counter{}

	require.NoError(t, h.Execute(&addAction{amount: 1}, c))
	h.MarkSaved()
	h.Clear()
	require.False(t, h.HasUnsavedChanges())
}

func TestClearLosesUnreachableSave(t *testing.T) {
	h := NewHistory[counter](DefaultMaxUndo)
	c := &counter{}

	h.MarkSaved()
	require.NoError(t, h.Execute(&addAction{amount: 1}, c))
	h.Clear()
	require.True(t, h.HasUnsavedChanges())
}

func TestNonContentActionIsRecordedButNoSaveChange(t *testing.T) {
	h := NewHistory[counter](DefaultMaxUndo)
	c := &counter{}

	h.MarkSaved()
	require.NoError(t, h.Execute(&selectionAction{oldValue: 0, newValue: 42}, c))
	require.Equal(t, 42, c.value)
	require.Equal(t, 1, h.UndoCount())
	require.False(t, h.HasUnsavedChanges())
}

func TestMixedContentAndNonContentSaveTracking(t *testing.T) {
	h := NewHistory[counter](DefaultMaxUndo)
	c := &counter{}

	h.MarkSaved()
	require.NoError(t, h.Execute(&addAction{amount: 10}, c))
	require.True(t, h.HasUnsavedChanges())

	require.NoError(t, h.Execute(&selectionAction{oldValue: 10, newValue: 99}, c))
	require.True(t, h.HasUnsavedChanges())

	require.NoError(t, h.Undo(c))
	require.True(t, h.HasUnsavedChanges())

	require.NoError(t, h.Undo(c))
	require.False(t, h.HasUnsavedChanges())
}
