// Package drag models the pick-up/move/drop gesture that changes a task's
// status column. Transitions are pure: each one returns the next state and,
// for a completed drop, the move to submit. Nothing here touches the store or
// the network; the board view feeds the resulting move into the session and
// snaps back if the mutation gate reports the task busy.
package drag

import "teamboard/internal/models"

// Phase is the gesture phase.
type Phase int

const (
	Idle Phase = iota
	Dragging
)

// State is the current gesture state. The zero value is Idle.
type State struct {
	Phase  Phase
	TaskID int64
	From   models.Status // column the task was picked up from
	Over   models.Status // column the drag currently hovers
}

// Move is the command produced by a completed drop.
type Move struct {
	TaskID int64
	To     models.Status
}

// columnOrder fixes the mapping between board columns and statuses.
var columnOrder = []models.Status{models.StatusTodo, models.StatusInProgress, models.StatusDone}

// StatusForColumn maps a column index to its status. Any other index is not a
// drop target.
func StatusForColumn(i int) (models.Status, bool) {
	if i < 0 || i >= len(columnOrder) {
		return "", false
	}
	return columnOrder[i], true
}

// ColumnForStatus maps a status to its column index.
func ColumnForStatus(s models.Status) int {
	for i, c := range columnOrder {
		if c == s {
			return i
		}
	}
	return -1
}

// Grab picks up a task. Grabbing while already dragging replaces the gesture.
func Grab(s State, taskID int64, from models.Status) State {
	return State{Phase: Dragging, TaskID: taskID, From: from, Over: from}
}

// HoverLeft moves the drag one column left, saturating at the first column.
func HoverLeft(s State) State {
	if s.Phase != Dragging {
		return s
	}
	if i := ColumnForStatus(s.Over); i > 0 {
		s.Over = columnOrder[i-1]
	}
	return s
}

// HoverRight moves the drag one column right, saturating at the last column.
func HoverRight(s State) State {
	if s.Phase != Dragging {
		return s
	}
	if i := ColumnForStatus(s.Over); i >= 0 && i < len(columnOrder)-1 {
		s.Over = columnOrder[i+1]
	}
	return s
}

// Cancel abandons the gesture; the task stays where it was.
func Cancel(s State) State {
	return State{}
}

// Drop completes the gesture. A move is produced only when the drop target is
// a real column different from the column the task came from; dropping back
// where it started is a no-op.
func Drop(s State) (State, *Move) {
	if s.Phase != Dragging {
		return State{}, nil
	}
	if !s.Over.Valid() || s.Over == s.From {
		return State{}, nil
	}
	return State{}, &Move{TaskID: s.TaskID, To: s.Over}
}
