package lineMap

import (
	"errors"
	"strings"
	"sync"
)

const (
	InstanceStateInitial int8 = iota
	InstanceState
)

// Instance - represents a singular instance of a line map.
type Instance struct {
	// Instance related data.
	//
	state      int8
	value      string
	valueMutex *sync.Mutex

	// Child structs.
	//
	source  Source
	history History
}

// New - creates a new instance of a line map wrapping value and the Source
// it came from. The returned Instance starts with an empty history; call
// InitialIndex to record the starting snapshot.
func New(value string, source Source) *Instance {
	return &Instance{
		state:      InstanceStateInitial,
		value:      value,
		valueMutex: &sync.Mutex{},
		source:     source,
		history:    History{},
	}
}

// InitialIndex - perform initial indexing of the lines in the `Instance.value` and
// stores the line map in the `Instance.history`. This method only executes once when
// the `Instance.history` is empty.
func (i *Instance) InitialIndex() error {
	// Does the history already have an initial snapshot? If so,
	// we return an error.
	//
	if i.history.hasInitialSnapshot || i.history.notEmpty() {
		return errors.New("line map: initial snapshot already exists in history")
	}

	// Trigger snapshot of the initial `Instance` state.
	//
	return i.history.snapshot(i, LineSnapshotTypeInitial, nil)
}

// Update - updates the value of `Instance.value` and creates a snapshot of the new state in `Instance.history`.
func (i *Instance) Update(newValue string) error {

	// Before we can make an update, we need to ensure that the `Instance.history` has an
	// initial snapshot. If not, we return an error.
	//
	if !i.history.hasInitialSnapshot {
		return errors.New("line map: initial snapshot does not exist in history")
	}

	// Get latest snapshot from the instance history.
	//
	latestSnapshot := i.history.items[len(i.history.items)-1]

	// Are there changes between the new value and the latest snapshot in the history? If not, we place
	// a snapshot in the history that indicates that there are no changes at this point in time.
	//
	if latestSnapshot.SourceCompare(newValue) {
		return i.history.snapshot(i, LineSnapshotTypeNoChange, nil)
	}

	// Collect changes between the new value and the last snapshot in the history.
	//
	changes, err := i.changes(newValue)
	if err != nil {
		return err
	}

	i.value = strings.Clone(newValue)

	return i.history.snapshot(i, LineSnapshotTypeChange, &changes)
}

// changes computes the per-line differences between the last recorded
// snapshot and newValue. Lines are matched by content along their longest
// common subsequence; matched lines are recorded as "unchanged" (tracing to
// their old index), lines only present in newValue as "expanding", and lines
// only present in the old snapshot as "contracting" (keyed by a negative
// sentinel, since they have no position in newValue).
func (i *Instance) changes(newValue string) (map[int]LineChange, error) {

	if i.history.empty() {
		return nil, errors.New("line map: history is empty, cannot compute changes")
	}

	lastSnapshot := i.history.items[len(i.history.items)-1]
	oldLines := lastSnapshot.lines
	newLines := strings.Split(newValue, "\n")

	matched := matchLines(oldLines, newLines)

	changes := make(map[int]LineChange)
	matchedOld := make(map[int]bool, len(matched))

	for newIndex, oldIndex := range matched {
		matchedOld[oldIndex] = true

		change, err := newLineChange("unchanged", oldIndex, oldIndex, oldIndex)
		if err != nil {
			return nil, err
		}
		changes[newIndex] = *change
	}

	for newIndex := range newLines {
		if _, ok := matched[newIndex]; ok {
			continue
		}

		change, err := newLineChange(LineSnapshotTypeExpanding, -1, newIndex, newIndex)
		if err != nil {
			return nil, err
		}
		changes[newIndex] = *change
	}

	for oldIndex := range oldLines {
		if matchedOld[oldIndex] {
			continue
		}

		change, err := newLineChange(LineSnapshotTypeContracting, oldIndex, oldIndex, oldIndex)
		if err != nil {
			return nil, err
		}
		changes[-(oldIndex+1)] = *change
	}

	return changes, nil
}

// matchLines pairs lines from oldLines and newLines that belong to a longest
// common subsequence by content, returning a map from new-line index to
// old-line index for each paired line.
func matchLines(oldLines, newLines []string) map[int]int {
	n, m := len(oldLines), len(newLines)

	dp := make([][]int, n+1)
	for idx := range dp {
		dp[idx] = make([]int, m+1)
	}

	for i := n - 1; i >= 0; i-- {
		for j := m - 1; j >= 0; j-- {
			switch {
			case oldLines[i] == newLines[j]:
				dp[i][j] = dp[i+1][j+1] + 1
			case dp[i+1][j] >= dp[i][j+1]:
				dp[i][j] = dp[i+1][j]
			default:
				dp[i][j] = dp[i][j+1]
			}
		}
	}

	matched := make(map[int]int)
	i, j := 0, 0
	for i < n && j < m {
		switch {
		case oldLines[i] == newLines[j]:
			matched[j] = i
			i++
			j++
		case dp[i+1][j] >= dp[i][j+1]:
			i++
		default:
			j++
		}
	}
	return matched
}

// Value returns the most recently recorded source value.
func (i *Instance) Value() string {
	return i.value
}

// Lines returns the lines of the most recently recorded source value.
func (i *Instance) Lines() []string {
	return strings.Split(i.value, "\n")
}

// SnapshotCount returns the number of snapshots recorded in the history,
// including the initial one.
func (i *Instance) SnapshotCount() int {
	return len(i.history.items)
}

// LineOrigin traces lineNumber in the latest snapshot back to its line
// number in the initial snapshot, or -1 if it has no origin there.
func (i *Instance) LineOrigin(lineNumber int) int {
	return i.history.LineOrigin(lineNumber)
}

// LineHistory returns every recorded change affecting lineNumber, oldest
// first, walking backwards from the latest snapshot to the line's origin or
// insertion point.
func (i *Instance) LineHistory(lineNumber int) []LineChange {
	var history []LineChange

	current := lineNumber
	for idx := len(i.history.items) - 1; idx > 0; idx-- {
		snapshot := i.history.items[idx]
		if snapshot.changes == nil {
			continue
		}

		change, exists := (*snapshot.changes)[current]
		if !exists {
			continue
		}

		history = append(history, change)

		if change._type == LineSnapshotTypeExpanding || change._type == LineSnapshotTypeContracting {
			break
		}
		current = change.origin
	}

	for left, right := 0, len(history)-1; left < right; left, right = left+1, right-1 {
		history[left], history[right] = history[right], history[left]
	}

	return history
}
