package task

import (
	"time"

	"github.com/trezcool/kazi/core"
)

// Status is a task's lifecycle state. The zero value is invalid.
type Status int

const (
	StatusReview Status = iota + 1
	StatusWorkingOnIt
	StatusWaitingForReview
	StatusWaitingForSupervisorGrade
	StatusRejected
	StatusAccepted
)

var statusLabels = map[Status]string{
	StatusReview:                    "Review",
	StatusWorkingOnIt:               "Working on it",
	StatusWaitingForReview:          "Waiting for review",
	StatusWaitingForSupervisorGrade: "Waiting for supervisor grade",
	StatusRejected:                  "Rejected",
	StatusAccepted:                  "Accepted",
}

func (s Status) String() string { return statusLabels[s] }

func (s Status) Valid() bool { return s >= StatusReview && s <= StatusAccepted }

// Terminal reports whether no further transitions are permitted.
func (s Status) Terminal() bool { return s == StatusRejected || s == StatusAccepted }

// Phase is an approval voting round, independent of task status.
type Phase int

const (
	PhaseCreation Phase = iota + 1
	PhaseSubmission
)

var phaseLabels = map[Phase]string{
	PhaseCreation:   "creation",
	PhaseSubmission: "submission",
}

func (p Phase) String() string { return phaseLabels[p] }

func (p Phase) Valid() bool { return p == PhaseCreation || p == PhaseSubmission }

// PhaseForStatus maps a status to the voting phase it accepts, if any.
func PhaseForStatus(s Status) (Phase, bool) {
	switch s {
	case StatusReview:
		return PhaseCreation, true
	case StatusWaitingForReview:
		return PhaseSubmission, true
	}
	return 0, false
}

// Decision is a vote's verdict.
type Decision int

const (
	DecisionAccept Decision = iota + 1
	DecisionChangeRequested
)

func (d Decision) String() string {
	if d == DecisionAccept {
		return "accept"
	}
	return "change requested"
}

func (d Decision) Valid() bool { return d == DecisionAccept || d == DecisionChangeRequested }

// Priority / difficulty labels
var (
	priorityLabels   = map[int]string{1: "Low", 2: "Planned", 3: "Urgent"}
	difficultyLabels = map[int]string{1: "Easy", 2: "Normal", 3: "Difficult"}
)

func PriorityLabel(p int) string   { return priorityLabels[p] }
func DifficultyLabel(d int) string { return difficultyLabels[d] }

type Task struct {
	ID          int       `json:"id"`
	MilestoneID int       `json:"milestone_id"`
	AssigneeID  int       `json:"assignee_id"`
	TeamID      int       `json:"team_id"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	Due         time.Time `json:"due"`
	Priority    int       `json:"priority"`   // 1..3
	Difficulty  int       `json:"difficulty"` // 1..3
	Modifier    int       `json:"modifier"`   // 1..5 bonus
	Status      Status    `json:"status"`

	CreatedAt            time.Time `json:"created_at"` // UTC
	CreationApprovedAt   time.Time `json:"creation_approved_at"`
	CompletedAt          time.Time `json:"completed_at"`
	SubmissionApprovedAt time.Time `json:"submission_approved_at"`
}

// Points is the task's grade contribution: difficulty x priority + modifier.
func (t Task) Points() int {
	modifier := t.Modifier
	if modifier < 1 {
		modifier = 1
	} else if modifier > 5 {
		modifier = 5
	}
	return t.Difficulty*t.Priority + modifier
}

// CompletionHours is the time spent from creation to completion, in hours.
// Returns -1 when the task was never completed.
func (t Task) CompletionHours() float64 {
	if t.CompletedAt.IsZero() {
		return -1
	}
	return t.CompletedAt.Sub(t.CreatedAt).Hours()
}

type Vote struct {
	ID        int       `json:"id"`
	TaskID    int       `json:"task_id"`
	VoterID   int       `json:"voter_id"`
	Phase     Phase     `json:"phase"`
	Decision  Decision  `json:"decision"`
	CreatedAt time.Time `json:"created_at"` // UTC
}

// Tally is the vote count for one (task, phase). Accepts includes the
// assignee's implicit self-accept once evaluated by the state machine.
type Tally struct {
	Accepts        int `json:"accepts"`
	ChangeRequests int `json:"change_requests"`
}

type Comment struct {
	ID       int    `json:"id"`
	TaskID   int    `json:"task_id"`
	AuthorID int    `json:"author_id"`
	Body     string `json:"body"`
	FileURL  string `json:"file_url"`
	// IsFinal marks the completion update required before submission.
	IsFinal   bool      `json:"is_final"`
	CreatedAt time.Time `json:"created_at"` // UTC
}

// Action is a closed audit action type.
type Action int

const (
	ActionCreated Action = iota + 1
	ActionEdited
	ActionCommented
	ActionVoted
	ActionSubmitted
	ActionOpened // creation quorum reached
	ActionReopened
	ActionGradeRequested // submission quorum reached
	ActionAccepted
	ActionRejected
	ActionStatusForced
	ActionOverdueRejected
)

var actionVerbs = map[Action]string{
	ActionCreated:         "created",
	ActionEdited:          "edited",
	ActionCommented:       "commented on",
	ActionVoted:           "voted on",
	ActionSubmitted:       "submitted",
	ActionOpened:          "opened",
	ActionReopened:        "reopened",
	ActionGradeRequested:  "requested a grade for",
	ActionAccepted:        "accepted",
	ActionRejected:        "rejected",
	ActionStatusForced:    "forced the status of",
	ActionOverdueRejected: "auto-rejected",
}

func (a Action) Verb() string { return actionVerbs[a] }

// ActionRecord is an immutable audit entry. Append-only, never mutated.
type ActionRecord struct {
	ID          int       `json:"id"`
	TaskID      int       `json:"task_id"`
	ActorID     int       `json:"actor_id"`
	ActorName   string    `json:"actor_name"`
	Action      Action    `json:"action"`
	Description string    `json:"description"` // "<actor> <verb> <object>"
	CreatedAt   time.Time `json:"created_at"`  // UTC
}

// TaskDifference is an immutable copy of a task's editable fields, taken
// right after the action it is attached to. History is reconstructed by
// diffing consecutive snapshots; the oldest one is the creation baseline.
type TaskDifference struct {
	ID             int       `json:"id"`
	ActionRecordID int       `json:"action_record_id"`
	TaskID         int       `json:"task_id"`
	AssigneeID     int       `json:"assignee_id"`
	Title          string    `json:"title"`
	Description    string    `json:"description"`
	Due            time.Time `json:"due"`
	Priority       int       `json:"priority"`
	Difficulty     int       `json:"difficulty"`
	CreatedAt      time.Time `json:"created_at"` // UTC
}

func snapshotOf(t Task) TaskDifference {
	return TaskDifference{
		TaskID:      t.ID,
		AssigneeID:  t.AssigneeID,
		Title:       t.Title,
		Description: t.Description,
		Due:         t.Due,
		Priority:    t.Priority,
		Difficulty:  t.Difficulty,
	}
}

// NewTask contains information needed to create a new Task.
type NewTask struct {
	MilestoneID int       `json:"milestone_id" validate:"required"`
	AssigneeID  int       `json:"assignee_id" validate:"required"`
	TeamID      int       `json:"team_id" validate:"required"`
	Title       string    `json:"title" validate:"required,max=256"`
	Description string    `json:"description" validate:"required"`
	Due         time.Time `json:"due" validate:"required"`
	Priority    int       `json:"priority" validate:"scale"`
	Difficulty  int       `json:"difficulty" validate:"scale"`
	Modifier    int       `json:"modifier" validate:"omitempty,modifier"`
}

func (nt *NewTask) Validate() error {
	nt.Title = core.CleanString(nt.Title)
	nt.Description = core.CleanString(nt.Description)
	if nt.Priority == 0 {
		nt.Priority = 2
	}
	if nt.Difficulty == 0 {
		nt.Difficulty = 2
	}
	if nt.Modifier == 0 {
		nt.Modifier = 1
	}
	return core.Validate.Struct(nt)
}

// UpdateTask defines what information may be provided to modify an existing
// Task while it is still in review.
type UpdateTask struct {
	AssigneeID  int       `json:"assignee_id"`
	Title       string    `json:"title" validate:"omitempty,max=256"`
	Description string    `json:"description"`
	Due         time.Time `json:"due"`
	Priority    int       `json:"priority" validate:"omitempty,scale"`
	Difficulty  int       `json:"difficulty" validate:"omitempty,scale"`
}

func (ut *UpdateTask) Validate() error {
	ut.Title = core.CleanString(ut.Title)
	ut.Description = core.CleanString(ut.Description)
	return core.Validate.Struct(ut)
}

// NewComment contains information needed to comment on a Task.
type NewComment struct {
	Body    string `json:"body" validate:"required"`
	FileURL string `json:"file_url" validate:"omitempty,url"`
	IsFinal bool   `json:"is_final"`
}

func (nc *NewComment) Validate() error {
	nc.Body = core.CleanString(nc.Body)
	return core.Validate.Struct(nc)
}
