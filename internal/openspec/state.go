package openspec

import (
	"fmt"
	"path/filepath"
)

// --- Change lifecycle state machine ---
//
// proposed → approved → implemented
// proposed → rejected
//
// Terminal statuses (rejected, implemented) admit no further
// transitions. Every transition relocates the change's file to the
// partition named after the new status.

// transitions maps each status to the statuses reachable from it.
var transitions = map[ChangeStatus][]ChangeStatus{
	StatusProposed: {StatusApproved, StatusRejected},
	StatusApproved: {StatusImplemented},
}

// CanTransition reports whether a change may move from one status to
// another.
func CanTransition(from, to ChangeStatus) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// checkTransition returns a descriptive error for an illegal move.
func checkTransition(change *ChangeProposal, to ChangeStatus) error {
	if !CanTransition(change.Status, to) {
		return fmt.Errorf("change %q cannot move from %s to %s", change.ID, change.Status, to)
	}
	return nil
}

// partitionFor returns the directory, relative to the workspace root,
// where a change with the given status lives.
func partitionFor(status ChangeStatus) string {
	switch status {
	case StatusApproved:
		return filepath.Join("changes", "approved")
	case StatusRejected:
		return filepath.Join("changes", "rejected")
	case StatusImplemented:
		return filepath.Join("changes", "implemented")
	default:
		return filepath.Join("changes", "proposals")
	}
}

// specPartition returns the directory, relative to the workspace root,
// where documents of the given type live.
func specPartition(t SpecType) string {
	return filepath.Join("specs", string(t))
}
