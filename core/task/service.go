package task

import (
	"context"
	"fmt"
	"time"

	"github.com/pkg/errors"

	"github.com/trezcool/kazi/core"
	"github.com/trezcool/kazi/core/course"
)

var (
	// errors
	ErrNotFound              = errors.New("task not found")
	ErrDuplicateVote         = errors.New("an active vote for this phase already exists")
	ErrNotAuthorized         = errors.New("not authorized to perform this action")
	ErrNotAssignee           = errors.New("only the task's assignee may do this")
	ErrInvalidTransition     = errors.New("task status does not allow this action")
	ErrInvalidPhaseForStatus = errors.New("voting is closed for the task's current status")
	ErrMissingFinalComment   = errors.New("a completion comment is required before submitting")
	ErrInvalidTarget         = errors.New("invalid target status")

	errAssigneeNotMember  = errors.New("assignee is not a member of the team")
	errMilestoneMismatch  = errors.New("milestone does not belong to the team's course")
	errFinalNotWorking    = errors.New("a completion comment can only be added while working on the task")
	errFinalNotAssignee   = errors.New("only the assignee can flag a completion comment")
	errSupervisorsNoVotes = errors.New("supervisors do not vote")
)

type (
	// Tx bundles the writes of one state-machine step. Implementations run the
	// whole closure against a single locked task row (or an equivalent mutex)
	// so a quorum-crossing transition fires exactly once.
	Tx interface {
		CreateTask(t Task) (Task, error)
		GetTaskForUpdate(id int) (Task, error)
		UpdateTask(t Task) error

		CreateVote(v Vote) (Vote, error)
		HasVote(taskID, voterID int, phase Phase) (bool, error)
		TallyVotes(taskID int, phase Phase) (Tally, error)
		PurgeVotes(taskID int, phase Phase) error

		CreateComment(c Comment) (Comment, error)
		HasFinalComment(taskID int) (bool, error)
		UnflagFinalComments(taskID int) error

		CreateActionRecord(r ActionRecord) (ActionRecord, error)
		CreateTaskDifference(d TaskDifference) (TaskDifference, error)
	}

	Repository interface {
		// InTx runs fn atomically; all writes commit together or not at all.
		InTx(ctx context.Context, fn func(tx Tx) error) error

		GetTaskByID(ctx context.Context, id int) (Task, error)
		QueryTeamMilestoneTasks(ctx context.Context, teamID, milestoneID int) ([]Task, error)
		QueryCourseTasks(ctx context.Context, courseID int) ([]Task, error)
		// QueryOpenTasks returns tasks in a non-terminal status below
		// WaitingForSupervisorGrade, for the overdue sweep.
		QueryOpenTasks(ctx context.Context) ([]Task, error)
		QueryVoterCourseVotes(ctx context.Context, voterID, courseID int) ([]Vote, error)
		QueryComments(ctx context.Context, taskID int) ([]Comment, error)
		// QueryActionRecords returns a task's audit records, newest first.
		QueryActionRecords(ctx context.Context, taskID int) ([]ActionRecord, error)
		// QueryTaskDifferences returns a task's snapshots, newest first.
		QueryTaskDifferences(ctx context.Context, taskID int) ([]TaskDifference, error)
	}

	// Actor identifies the caller of a mutating operation.
	Actor struct {
		ID           int
		Name         string
		IsSupervisor bool
	}

	// VoteResult reports the outcome of a cast vote.
	VoteResult struct {
		Tally        Tally  `json:"tally"`
		Transitioned bool   `json:"transitioned"`
		Status       Status `json:"status"`
	}

	Service struct {
		repo       Repository
		courseRepo course.Repository
		mailSvc    core.EmailService
		pushSvc    core.PushService
		logger     core.Logger
		conf       *core.Config
		now        func() time.Time
	}
)

func NewService(
	repo Repository,
	courseRepo course.Repository,
	mailSvc core.EmailService,
	pushSvc core.PushService,
	logger core.Logger,
	conf *core.Config,
) *Service {
	return &Service{
		repo:       repo,
		courseRepo: courseRepo,
		mailSvc:    mailSvc,
		pushSvc:    pushSvc,
		logger:     logger,
		conf:       conf,
		now:        func() time.Time { return time.Now().UTC() },
	}
}

// SystemActor is the actor recorded for clock-driven transitions.
var SystemActor = Actor{Name: "system"}

// Create registers a new task in Review. The assignee is auto-credited with an
// implicit accept vote, so on a one or two person team the task opens at once.
func (svc *Service) Create(ctx context.Context, actor Actor, nt NewTask) (Task, error) {
	if err := nt.Validate(); err != nil {
		return Task{}, err
	}

	milestone, err := svc.courseRepo.GetMilestoneByID(ctx, nt.MilestoneID)
	if err != nil {
		return Task{}, errors.Wrap(err, "fetching milestone")
	}
	team, err := svc.courseRepo.GetTeamByID(ctx, nt.TeamID)
	if err != nil {
		return Task{}, errors.Wrap(err, "fetching team")
	}
	if milestone.CourseID != team.CourseID {
		return Task{}, core.NewValidationError(errMilestoneMismatch,
			core.FieldError{Field: "milestone_id", Error: errMilestoneMismatch.Error()})
	}
	if err = svc.authorize(ctx, actor, team); err != nil {
		return Task{}, err
	}
	ok, err := svc.courseRepo.IsTeamMember(ctx, nt.TeamID, nt.AssigneeID)
	if err != nil {
		return Task{}, errors.Wrap(err, "checking assignee membership")
	}
	if !ok {
		return Task{}, core.NewValidationError(errAssigneeNotMember,
			core.FieldError{Field: "assignee_id", Error: errAssigneeNotMember.Error()})
	}
	teamSize, err := svc.courseRepo.CountTeamMembers(ctx, nt.TeamID)
	if err != nil {
		return Task{}, errors.Wrap(err, "counting team members")
	}

	var (
		task   Task
		opened bool
	)
	now := svc.now()
	err = svc.repo.InTx(ctx, func(tx Tx) error {
		task, err = tx.CreateTask(Task{
			MilestoneID: nt.MilestoneID,
			AssigneeID:  nt.AssigneeID,
			TeamID:      nt.TeamID,
			Title:       nt.Title,
			Description: nt.Description,
			Due:         nt.Due,
			Priority:    nt.Priority,
			Difficulty:  nt.Difficulty,
			Modifier:    nt.Modifier,
			Status:      StatusReview,
			CreatedAt:   now,
		})
		if err != nil {
			return errors.Wrap(err, "creating task")
		}
		rec, err := svc.record(tx, task, actor, ActionCreated, now)
		if err != nil {
			return err
		}
		snap := snapshotOf(task)
		snap.ActionRecordID = rec.ID
		snap.CreatedAt = now
		if _, err = tx.CreateTaskDifference(snap); err != nil {
			return errors.Wrap(err, "creating baseline snapshot")
		}
		if opened, err = svc.evaluateCreation(tx, &task, actor, teamSize, now); err != nil {
			return err
		}
		return nil
	})
	if err != nil {
		return Task{}, err
	}

	svc.notifyCreated(ctx, task, actor)
	if opened {
		svc.notifyOpened(ctx, task)
	}
	return task, nil
}

// Edit updates a task's editable fields and snapshots the result. Only the
// assignee or the team's supervisor may edit, and only before submission.
func (svc *Service) Edit(ctx context.Context, actor Actor, taskID int, ut UpdateTask) (Task, error) {
	if err := ut.Validate(); err != nil {
		return Task{}, err
	}

	task, err := svc.repo.GetTaskByID(ctx, taskID)
	if err != nil {
		return Task{}, err
	}
	team, err := svc.courseRepo.GetTeamByID(ctx, task.TeamID)
	if err != nil {
		return Task{}, errors.Wrap(err, "fetching team")
	}
	if actor.ID != task.AssigneeID {
		if !actor.IsSupervisor || team.SupervisorID != actor.ID {
			return Task{}, ErrNotAuthorized
		}
	}
	if ut.AssigneeID != 0 && ut.AssigneeID != task.AssigneeID {
		ok, err := svc.courseRepo.IsTeamMember(ctx, task.TeamID, ut.AssigneeID)
		if err != nil {
			return Task{}, errors.Wrap(err, "checking assignee membership")
		}
		if !ok {
			return Task{}, core.NewValidationError(errAssigneeNotMember,
				core.FieldError{Field: "assignee_id", Error: errAssigneeNotMember.Error()})
		}
	}

	now := svc.now()
	err = svc.repo.InTx(ctx, func(tx Tx) error {
		task, err = tx.GetTaskForUpdate(taskID)
		if err != nil {
			return err
		}
		if task.Status != StatusReview && task.Status != StatusWorkingOnIt {
			return ErrInvalidTransition
		}
		if ut.AssigneeID != 0 {
			task.AssigneeID = ut.AssigneeID
		}
		if ut.Title != "" {
			task.Title = ut.Title
		}
		if ut.Description != "" {
			task.Description = ut.Description
		}
		if !ut.Due.IsZero() {
			task.Due = ut.Due
		}
		if ut.Priority != 0 {
			task.Priority = ut.Priority
		}
		if ut.Difficulty != 0 {
			task.Difficulty = ut.Difficulty
		}
		if err = tx.UpdateTask(task); err != nil {
			return errors.Wrap(err, "updating task")
		}
		rec, err := svc.record(tx, task, actor, ActionEdited, now)
		if err != nil {
			return err
		}
		snap := snapshotOf(task)
		snap.ActionRecordID = rec.ID
		snap.CreatedAt = now
		_, err = tx.CreateTaskDifference(snap)
		return errors.Wrap(err, "creating snapshot")
	})
	if err != nil {
		return Task{}, err
	}

	svc.notifyEdited(ctx, task, actor)
	return task, nil
}

// AddComment posts a comment. A comment flagged as the completion update can
// only come from the assignee while the task is being worked on; it supersedes
// any previous completion comment.
func (svc *Service) AddComment(ctx context.Context, actor Actor, taskID int, nc NewComment) (Comment, error) {
	if err := nc.Validate(); err != nil {
		return Comment{}, err
	}

	task, err := svc.repo.GetTaskByID(ctx, taskID)
	if err != nil {
		return Comment{}, err
	}
	team, err := svc.courseRepo.GetTeamByID(ctx, task.TeamID)
	if err != nil {
		return Comment{}, errors.Wrap(err, "fetching team")
	}
	if err = svc.authorize(ctx, actor, team); err != nil {
		return Comment{}, err
	}

	var comment Comment
	now := svc.now()
	err = svc.repo.InTx(ctx, func(tx Tx) error {
		task, err = tx.GetTaskForUpdate(taskID)
		if err != nil {
			return err
		}
		if task.Status.Terminal() {
			return ErrInvalidTransition
		}
		if nc.IsFinal {
			if actor.ID != task.AssigneeID {
				return core.NewValidationError(errFinalNotAssignee,
					core.FieldError{Field: "is_final", Error: errFinalNotAssignee.Error()})
			}
			if task.Status != StatusWorkingOnIt {
				return core.NewValidationError(errFinalNotWorking,
					core.FieldError{Field: "is_final", Error: errFinalNotWorking.Error()})
			}
			if err = tx.UnflagFinalComments(taskID); err != nil {
				return errors.Wrap(err, "unflagging previous completion comments")
			}
		}
		comment, err = tx.CreateComment(Comment{
			TaskID:    taskID,
			AuthorID:  actor.ID,
			Body:      nc.Body,
			FileURL:   nc.FileURL,
			IsFinal:   nc.IsFinal,
			CreatedAt: now,
		})
		if err != nil {
			return errors.Wrap(err, "creating comment")
		}
		_, err = svc.record(tx, task, actor, ActionCommented, now)
		return err
	})
	if err != nil {
		return Comment{}, err
	}

	svc.notifyCommented(ctx, task, actor)
	return comment, nil
}

// CastVote records a team member's verdict for the task's current voting
// phase and applies any quorum-crossing transition in the same transaction.
func (svc *Service) CastVote(ctx context.Context, actor Actor, taskID int, phase Phase, decision Decision) (VoteResult, error) {
	if !phase.Valid() || !decision.Valid() {
		return VoteResult{}, ErrInvalidTarget
	}
	if actor.IsSupervisor {
		return VoteResult{}, errors.Wrap(ErrNotAuthorized, errSupervisorsNoVotes.Error())
	}

	task, err := svc.repo.GetTaskByID(ctx, taskID)
	if err != nil {
		return VoteResult{}, err
	}
	if actor.ID == task.AssigneeID {
		return VoteResult{}, ErrNotAuthorized
	}
	ok, err := svc.courseRepo.IsTeamMember(ctx, task.TeamID, actor.ID)
	if err != nil {
		return VoteResult{}, errors.Wrap(err, "checking voter membership")
	}
	if !ok {
		return VoteResult{}, ErrNotAuthorized
	}
	teamSize, err := svc.courseRepo.CountTeamMembers(ctx, task.TeamID)
	if err != nil {
		return VoteResult{}, errors.Wrap(err, "counting team members")
	}

	var res VoteResult
	now := svc.now()
	err = svc.repo.InTx(ctx, func(tx Tx) error {
		task, err = tx.GetTaskForUpdate(taskID)
		if err != nil {
			return err
		}
		expected, open := PhaseForStatus(task.Status)
		if !open || expected != phase {
			return ErrInvalidPhaseForStatus
		}
		if has, err := tx.HasVote(taskID, actor.ID, phase); err != nil {
			return errors.Wrap(err, "checking existing vote")
		} else if has {
			return ErrDuplicateVote
		}
		if _, err = tx.CreateVote(Vote{
			TaskID:    taskID,
			VoterID:   actor.ID,
			Phase:     phase,
			Decision:  decision,
			CreatedAt: now,
		}); err != nil {
			return errors.Wrap(err, "creating vote")
		}
		if _, err = svc.record(tx, task, actor, ActionVoted, now); err != nil {
			return err
		}

		switch phase {
		case PhaseCreation:
			res.Transitioned, err = svc.evaluateCreation(tx, &task, actor, teamSize, now)
		case PhaseSubmission:
			res.Transitioned, err = svc.evaluateSubmission(tx, &task, actor, teamSize, now)
		}
		if err != nil {
			return err
		}
		res.Tally, err = tx.TallyVotes(taskID, phase)
		if err != nil {
			return errors.Wrap(err, "tallying votes")
		}
		res.Tally.Accepts++ // implicit self-accept
		res.Status = task.Status
		return nil
	})
	if err != nil {
		return VoteResult{}, err
	}

	svc.notifyVoted(ctx, task, actor, decision)
	if res.Transitioned {
		switch task.Status {
		case StatusWorkingOnIt:
			if phase == PhaseCreation {
				svc.notifyOpened(ctx, task)
			} else {
				svc.notifyReopened(ctx, task)
			}
		case StatusWaitingForSupervisorGrade:
			svc.notifyGradeRequested(ctx, task)
		}
	}
	return res, nil
}

// Submit moves a worked-on task to review. Requires a completion comment;
// purges any stale submission votes from a prior round.
func (svc *Service) Submit(ctx context.Context, actor Actor, taskID int) (Task, error) {
	task, err := svc.repo.GetTaskByID(ctx, taskID)
	if err != nil {
		return Task{}, err
	}
	teamSize, err := svc.courseRepo.CountTeamMembers(ctx, task.TeamID)
	if err != nil {
		return Task{}, errors.Wrap(err, "counting team members")
	}

	var graded bool
	now := svc.now()
	err = svc.repo.InTx(ctx, func(tx Tx) error {
		task, err = tx.GetTaskForUpdate(taskID)
		if err != nil {
			return err
		}
		if actor.ID != task.AssigneeID {
			return ErrNotAssignee
		}
		if task.Status != StatusWorkingOnIt {
			return ErrInvalidTransition
		}
		if has, err := tx.HasFinalComment(taskID); err != nil {
			return errors.Wrap(err, "checking completion comment")
		} else if !has {
			return ErrMissingFinalComment
		}
		if err = tx.PurgeVotes(taskID, PhaseSubmission); err != nil {
			return errors.Wrap(err, "purging stale submission votes")
		}
		task.Status = StatusWaitingForReview
		task.CompletedAt = now
		if err = tx.UpdateTask(task); err != nil {
			return errors.Wrap(err, "updating task")
		}
		if _, err = svc.record(tx, task, actor, ActionSubmitted, now); err != nil {
			return err
		}
		graded, err = svc.evaluateSubmission(tx, &task, actor, teamSize, now)
		return err
	})
	if err != nil {
		return Task{}, err
	}

	svc.notifySubmitted(ctx, task, actor)
	if graded {
		svc.notifyGradeRequested(ctx, task)
	}
	return task, nil
}

// ForceTransition lets the team's supervisor set a task's status directly,
// bypassing quorum. Valid targets: Rejected, WorkingOnIt, Accepted.
func (svc *Service) ForceTransition(ctx context.Context, actor Actor, taskID int, target Status) (Task, error) {
	if !actor.IsSupervisor {
		return Task{}, ErrNotAuthorized
	}
	switch target {
	case StatusRejected, StatusWorkingOnIt, StatusAccepted:
	default:
		return Task{}, ErrInvalidTarget
	}

	task, err := svc.repo.GetTaskByID(ctx, taskID)
	if err != nil {
		return Task{}, err
	}
	team, err := svc.courseRepo.GetTeamByID(ctx, task.TeamID)
	if err != nil {
		return Task{}, errors.Wrap(err, "fetching team")
	}
	if team.SupervisorID != actor.ID {
		return Task{}, ErrNotAuthorized
	}

	now := svc.now()
	err = svc.repo.InTx(ctx, func(tx Tx) error {
		task, err = tx.GetTaskForUpdate(taskID)
		if err != nil {
			return err
		}
		if task.Status.Terminal() {
			return ErrInvalidTransition
		}
		task.Status = target
		action := ActionStatusForced
		switch target {
		case StatusAccepted:
			action = ActionAccepted
			if task.CompletedAt.IsZero() {
				task.CompletedAt = now
			}
			task.SubmissionApprovedAt = now
		case StatusRejected:
			action = ActionRejected
		}
		if err = tx.UpdateTask(task); err != nil {
			return errors.Wrap(err, "updating task")
		}
		_, err = svc.record(tx, task, actor, action, now)
		return err
	})
	if err != nil {
		return Task{}, err
	}

	switch target {
	case StatusWorkingOnIt:
		svc.notifyReopened(ctx, task)
	default:
		svc.notifyResolved(ctx, task)
	}
	return task, nil
}

// RejectOverdue force-rejects every open task past its own or its milestone's
// due date. Driven by an external scheduler; returns the number rejected.
func (svc *Service) RejectOverdue(ctx context.Context) (int, error) {
	tasks, err := svc.repo.QueryOpenTasks(ctx)
	if err != nil {
		return 0, errors.Wrap(err, "querying open tasks")
	}

	now := svc.now()
	milestones := make(map[int]time.Time) // id -> due
	rejected := 0
	for _, t := range tasks {
		due, ok := milestones[t.MilestoneID]
		if !ok {
			m, err := svc.courseRepo.GetMilestoneByID(ctx, t.MilestoneID)
			if err != nil {
				svc.logger.Error(fmt.Sprintf("task.RejectOverdue: milestone %d: %v", t.MilestoneID, err), err)
				continue
			}
			due = m.Due
			milestones[t.MilestoneID] = due
		}
		if now.Before(t.Due) && now.Before(due) {
			continue
		}

		taskID := t.ID
		err = svc.repo.InTx(ctx, func(tx Tx) error {
			task, err := tx.GetTaskForUpdate(taskID)
			if err != nil {
				return err
			}
			if task.Status.Terminal() || task.Status == StatusWaitingForSupervisorGrade {
				return nil // raced with a grade or force-set, leave it
			}
			task.Status = StatusRejected
			if err = tx.UpdateTask(task); err != nil {
				return errors.Wrap(err, "updating task")
			}
			if _, err = svc.record(tx, task, SystemActor, ActionOverdueRejected, now); err != nil {
				return err
			}
			t = task
			return nil
		})
		if err != nil {
			svc.logger.Error(fmt.Sprintf("task.RejectOverdue: task %d: %v", taskID, err), err)
			continue
		}
		if t.Status == StatusRejected {
			rejected++
			svc.notifyResolved(ctx, t)
		}
	}
	return rejected, nil
}

func (svc *Service) Get(ctx context.Context, id int) (Task, error) {
	return svc.repo.GetTaskByID(ctx, id)
}

func (svc *Service) QueryTeamMilestone(ctx context.Context, teamID, milestoneID int) ([]Task, error) {
	return svc.repo.QueryTeamMilestoneTasks(ctx, teamID, milestoneID)
}

func (svc *Service) Comments(ctx context.Context, taskID int) ([]Comment, error) {
	if _, err := svc.repo.GetTaskByID(ctx, taskID); err != nil {
		return nil, err
	}
	return svc.repo.QueryComments(ctx, taskID)
}

// authorize passes for team members and the team's own supervisor.
func (svc *Service) authorize(ctx context.Context, actor Actor, team course.Team) error {
	if actor.IsSupervisor {
		if team.SupervisorID != actor.ID {
			return ErrNotAuthorized
		}
		return nil
	}
	ok, err := svc.courseRepo.IsTeamMember(ctx, team.ID, actor.ID)
	if err != nil {
		return errors.Wrap(err, "checking team membership")
	}
	if !ok {
		return ErrNotAuthorized
	}
	return nil
}

func (svc *Service) record(tx Tx, t Task, actor Actor, action Action, now time.Time) (ActionRecord, error) {
	rec, err := tx.CreateActionRecord(ActionRecord{
		TaskID:      t.ID,
		ActorID:     actor.ID,
		ActorName:   actor.Name,
		Action:      action,
		Description: fmt.Sprintf("%s %s %q", actor.Name, action.Verb(), t.Title),
		CreatedAt:   now,
	})
	return rec, errors.Wrap(err, "creating action record")
}

// evaluateCreation checks the creation-phase quorum against the team size at
// the time of the call. The tally includes the assignee's implicit self-accept.
func (svc *Service) evaluateCreation(tx Tx, t *Task, actor Actor, teamSize int, now time.Time) (bool, error) {
	tally, err := tx.TallyVotes(t.ID, PhaseCreation)
	if err != nil {
		return false, errors.Wrap(err, "tallying creation votes")
	}
	tally.Accepts++ // implicit self-accept
	if 2*tally.Accepts <= teamSize-1 {
		return false, nil
	}
	t.Status = StatusWorkingOnIt
	t.CreationApprovedAt = now
	if err = tx.UpdateTask(*t); err != nil {
		return false, errors.Wrap(err, "updating task")
	}
	if _, err = svc.record(tx, *t, actor, ActionOpened, now); err != nil {
		return false, err
	}
	return true, nil
}

// evaluateSubmission checks the submission-phase tallies: accepts quorum hands
// the task to the supervisor for grading; change-request quorum reopens it,
// purging submission votes and unflagging the completion comment.
func (svc *Service) evaluateSubmission(tx Tx, t *Task, actor Actor, teamSize int, now time.Time) (bool, error) {
	tally, err := tx.TallyVotes(t.ID, PhaseSubmission)
	if err != nil {
		return false, errors.Wrap(err, "tallying submission votes")
	}
	tally.Accepts++ // implicit self-accept

	switch {
	case 2*tally.Accepts > teamSize-1:
		t.Status = StatusWaitingForSupervisorGrade
		t.SubmissionApprovedAt = now
		if err = tx.UpdateTask(*t); err != nil {
			return false, errors.Wrap(err, "updating task")
		}
		if _, err = svc.record(tx, *t, actor, ActionGradeRequested, now); err != nil {
			return false, err
		}
		return true, nil

	case 2*tally.ChangeRequests >= teamSize-1 && tally.ChangeRequests > 0:
		t.Status = StatusWorkingOnIt
		t.CompletedAt = time.Time{}
		if err = tx.PurgeVotes(t.ID, PhaseSubmission); err != nil {
			return false, errors.Wrap(err, "purging submission votes")
		}
		if err = tx.UnflagFinalComments(t.ID); err != nil {
			return false, errors.Wrap(err, "unflagging completion comment")
		}
		if err = tx.UpdateTask(*t); err != nil {
			return false, errors.Wrap(err, "updating task")
		}
		if _, err = svc.record(tx, *t, actor, ActionReopened, now); err != nil {
			return false, err
		}
		return true, nil
	}
	return false, nil
}
