package task

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/pmezard/go-difflib/difflib"
	"github.com/pkg/errors"
)

type (
	// FieldChange is one field's before/after in a history entry. Description
	// changes carry a unified diff instead of the full texts.
	FieldChange struct {
		Field string `json:"field"`
		Old   string `json:"old,omitempty"`
		New   string `json:"new,omitempty"`
		Diff  string `json:"diff,omitempty"`
	}

	// HistoryEntry is one line of a task's reconstructed history.
	HistoryEntry struct {
		ActorName   string        `json:"actor_name"`
		Action      Action        `json:"action"`
		Description string        `json:"description"`
		Changes     []FieldChange `json:"changes,omitempty"`
		CreatedAt   time.Time     `json:"created_at"`
	}
)

// History reconstructs a task's timeline, newest first. Edits report only the
// fields that changed between consecutive snapshots; the oldest snapshot is
// the creation baseline. Pure read, never mutates stored data.
func (svc *Service) History(ctx context.Context, taskID int) ([]HistoryEntry, error) {
	if _, err := svc.repo.GetTaskByID(ctx, taskID); err != nil {
		return nil, err
	}
	records, err := svc.repo.QueryActionRecords(ctx, taskID)
	if err != nil {
		return nil, errors.Wrap(err, "querying action records")
	}
	snapshots, err := svc.repo.QueryTaskDifferences(ctx, taskID)
	if err != nil {
		return nil, errors.Wrap(err, "querying snapshots")
	}

	changes := changesByRecord(snapshots)
	entries := make([]HistoryEntry, 0, len(records))
	for _, rec := range records {
		entries = append(entries, HistoryEntry{
			ActorName:   rec.ActorName,
			Action:      rec.Action,
			Description: rec.Description,
			Changes:     changes[rec.ID],
			CreatedAt:   rec.CreatedAt,
		})
	}
	sort.SliceStable(entries, func(i, j int) bool { return entries[i].CreatedAt.After(entries[j].CreatedAt) })
	return entries, nil
}

// changesByRecord diffs consecutive snapshots (given newest first) and maps
// each snapshot's changed fields to the action record it was taken for. The
// oldest snapshot is the baseline and reports all of its fields.
func changesByRecord(snapshots []TaskDifference) map[int][]FieldChange {
	changes := make(map[int][]FieldChange, len(snapshots))
	for i, snap := range snapshots {
		if i == len(snapshots)-1 { // creation baseline
			changes[snap.ActionRecordID] = baselineChanges(snap)
			break
		}
		changes[snap.ActionRecordID] = diffSnapshots(snapshots[i+1], snap)
	}
	return changes
}

func baselineChanges(snap TaskDifference) []FieldChange {
	return []FieldChange{
		{Field: "assignee_id", New: fmt.Sprint(snap.AssigneeID)},
		{Field: "title", New: snap.Title},
		{Field: "description", New: snap.Description},
		{Field: "due", New: snap.Due.Format(time.RFC3339)},
		{Field: "priority", New: PriorityLabel(snap.Priority)},
		{Field: "difficulty", New: DifficultyLabel(snap.Difficulty)},
	}
}

// diffSnapshots reports the fields that differ between two consecutive
// snapshots. Diffing a snapshot against itself yields an empty set.
func diffSnapshots(prev, next TaskDifference) []FieldChange {
	var changes []FieldChange
	if prev.AssigneeID != next.AssigneeID {
		changes = append(changes, FieldChange{
			Field: "assignee_id",
			Old:   fmt.Sprint(prev.AssigneeID),
			New:   fmt.Sprint(next.AssigneeID),
		})
	}
	if prev.Title != next.Title {
		changes = append(changes, FieldChange{Field: "title", Old: prev.Title, New: next.Title})
	}
	if prev.Description != next.Description {
		changes = append(changes, FieldChange{
			Field: "description",
			Diff:  descriptionDiff(prev.Description, next.Description),
		})
	}
	if !prev.Due.Equal(next.Due) {
		changes = append(changes, FieldChange{
			Field: "due",
			Old:   prev.Due.Format(time.RFC3339),
			New:   next.Due.Format(time.RFC3339),
		})
	}
	if prev.Priority != next.Priority {
		changes = append(changes, FieldChange{
			Field: "priority",
			Old:   PriorityLabel(prev.Priority),
			New:   PriorityLabel(next.Priority),
		})
	}
	if prev.Difficulty != next.Difficulty {
		changes = append(changes, FieldChange{
			Field: "difficulty",
			Old:   DifficultyLabel(prev.Difficulty),
			New:   DifficultyLabel(next.Difficulty),
		})
	}
	return changes
}

func descriptionDiff(old, new string) string {
	diff, err := difflib.GetUnifiedDiffString(difflib.UnifiedDiff{
		A:        difflib.SplitLines(old),
		B:        difflib.SplitLines(new),
		FromFile: "before",
		ToFile:   "after",
		Context:  2,
	})
	if err != nil {
		return ""
	}
	return strings.TrimRight(diff, "\n")
}
