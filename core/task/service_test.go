package task_test

import (
	"context"
	"testing"
	"time"

	"github.com/pkg/errors"

	"github.com/trezcool/kazi/core"
	"github.com/trezcool/kazi/core/course"
	"github.com/trezcool/kazi/core/task"
	emailsvc "github.com/trezcool/kazi/services/email"
	inmemdb "github.com/trezcool/kazi/storage/database/inmem"
	testutil "github.com/trezcool/kazi/tests"
)

type fixture struct {
	svc        *task.Service
	courseRepo course.Repository
	taskRepo   task.Repository
	course     course.Course
	milestone  course.Milestone
	team       course.Team
	supervisor course.Supervisor
	devs       []course.Developer
}

// setup seeds one course, one future milestone and one supervised team of
// teamSize developers. devs[0] plays the assignee in most tests.
func setup(t *testing.T, teamSize int) *fixture {
	t.Helper()
	testutil.InitValidators()
	conf := testutil.NewConfig()

	db := inmemdb.NewDB()
	courseRepo := inmemdb.NewCourseRepository(db)
	taskRepo := inmemdb.NewTaskRepository(db)
	svc := task.NewService(taskRepo, courseRepo, emailsvc.NewConsoleServiceMock(conf), nil, testutil.Logger{}, conf)

	crs := testutil.CreateCourse(t, courseRepo, "INF3590", 60, 40)
	milestone := testutil.CreateMilestone(t, courseRepo, crs.ID, "Sprint 1", 100, time.Now().Add(30*24*time.Hour))
	sup := testutil.CreateSupervisor(t, courseRepo, "Prof Kalala")
	team := testutil.CreateTeam(t, courseRepo, crs.ID, "Simba", sup.ID)

	names := []string{"Amani Banza", "Bahati Cibangu", "Chiza Dikembe", "Dada Eale", "Eyenga Fataki"}
	devs := make([]course.Developer, 0, teamSize)
	for i := 0; i < teamSize; i++ {
		dev := testutil.CreateDeveloper(t, courseRepo, names[i])
		testutil.AddMembers(t, courseRepo, team.ID, dev.ID)
		devs = append(devs, dev)
	}

	return &fixture{
		svc:        svc,
		courseRepo: courseRepo,
		taskRepo:   taskRepo,
		course:     crs,
		milestone:  milestone,
		team:       team,
		supervisor: sup,
		devs:       devs,
	}
}

func (f *fixture) actor(i int) task.Actor {
	return task.Actor{ID: f.devs[i].ID, Name: f.devs[i].Name}
}

func (f *fixture) supActor() task.Actor {
	return task.Actor{ID: f.supervisor.ID, Name: f.supervisor.Name, IsSupervisor: true}
}

func (f *fixture) newTask() task.NewTask {
	return task.NewTask{
		MilestoneID: f.milestone.ID,
		AssigneeID:  f.devs[0].ID,
		TeamID:      f.team.ID,
		Title:       "Implement login",
		Description: "Add the login form and session handling.",
		Due:         time.Now().Add(7 * 24 * time.Hour),
	}
}

// createTask creates a task assigned to devs[0] by devs[0].
func (f *fixture) createTask(t *testing.T) task.Task {
	t.Helper()
	tsk, err := f.svc.Create(context.Background(), f.actor(0), f.newTask())
	if err != nil {
		t.Fatalf("Create() failed: %v", err)
	}
	return tsk
}

// openTask drives a fresh task to WorkingOnIt regardless of team size.
func (f *fixture) openTask(t *testing.T) task.Task {
	t.Helper()
	tsk := f.createTask(t)
	ctx := context.Background()
	for i := 1; i < len(f.devs) && tsk.Status == task.StatusReview; i++ {
		if _, err := f.svc.CastVote(ctx, f.actor(i), tsk.ID, task.PhaseCreation, task.DecisionAccept); err != nil {
			t.Fatalf("CastVote() failed: %v", err)
		}
		var err error
		if tsk, err = f.svc.Get(ctx, tsk.ID); err != nil {
			t.Fatalf("Get() failed: %v", err)
		}
	}
	if tsk.Status != task.StatusWorkingOnIt {
		t.Fatalf("openTask() could not open task, status = %v", tsk.Status)
	}
	return tsk
}

// submitTask adds the completion comment and submits.
func (f *fixture) submitTask(t *testing.T, taskID int) task.Task {
	t.Helper()
	ctx := context.Background()
	if _, err := f.svc.AddComment(ctx, f.actor(0), taskID, task.NewComment{Body: "Done.", IsFinal: true}); err != nil {
		t.Fatalf("AddComment() failed: %v", err)
	}
	tsk, err := f.svc.Submit(ctx, f.actor(0), taskID)
	if err != nil {
		t.Fatalf("Submit() failed: %v", err)
	}
	return tsk
}

func Test_Service_Create(t *testing.T) {
	ctx := context.Background()

	t.Run("solo team opens immediately", func(t *testing.T) {
		f := setup(t, 1)
		tsk := f.createTask(t)
		if tsk.Status != task.StatusWorkingOnIt {
			t.Errorf("Status = %v, want %v", tsk.Status, task.StatusWorkingOnIt)
		}
		if tsk.CreationApprovedAt.IsZero() {
			t.Error("CreationApprovedAt not set")
		}
	})

	t.Run("two person team opens immediately", func(t *testing.T) {
		f := setup(t, 2)
		tsk := f.createTask(t)
		if tsk.Status != task.StatusWorkingOnIt {
			t.Errorf("Status = %v, want %v", tsk.Status, task.StatusWorkingOnIt)
		}
	})

	t.Run("three person team waits for votes", func(t *testing.T) {
		f := setup(t, 3)
		tsk := f.createTask(t)
		if tsk.Status != task.StatusReview {
			t.Errorf("Status = %v, want %v", tsk.Status, task.StatusReview)
		}
		if !tsk.CreationApprovedAt.IsZero() {
			t.Error("CreationApprovedAt should not be set")
		}
	})

	t.Run("defaults applied", func(t *testing.T) {
		f := setup(t, 3)
		tsk := f.createTask(t)
		if tsk.Priority != 2 || tsk.Difficulty != 2 || tsk.Modifier != 1 {
			t.Errorf("defaults = (%d, %d, %d), want (2, 2, 1)", tsk.Priority, tsk.Difficulty, tsk.Modifier)
		}
	})

	t.Run("assignee must be a team member", func(t *testing.T) {
		f := setup(t, 2)
		outsider := testutil.CreateDeveloper(t, f.courseRepo, "Zawadi Yumba")
		nt := f.newTask()
		nt.AssigneeID = outsider.ID
		_, err := f.svc.Create(ctx, f.actor(0), nt)
		if _, ok := errors.Cause(err).(*core.ValidationError); !ok {
			t.Errorf("Create() error = %v, want validation error", err)
		}
	})

	t.Run("milestone must belong to the team's course", func(t *testing.T) {
		f := setup(t, 2)
		other := testutil.CreateCourse(t, f.courseRepo, "INF2000", 50, 50)
		m := testutil.CreateMilestone(t, f.courseRepo, other.ID, "M1", 100, time.Now().Add(time.Hour))
		nt := f.newTask()
		nt.MilestoneID = m.ID
		_, err := f.svc.Create(ctx, f.actor(0), nt)
		if _, ok := errors.Cause(err).(*core.ValidationError); !ok {
			t.Errorf("Create() error = %v, want validation error", err)
		}
	})

	t.Run("non member cannot create", func(t *testing.T) {
		f := setup(t, 2)
		outsider := testutil.CreateDeveloper(t, f.courseRepo, "Zawadi Yumba")
		_, err := f.svc.Create(ctx, task.Actor{ID: outsider.ID, Name: outsider.Name}, f.newTask())
		if errors.Cause(err) != task.ErrNotAuthorized {
			t.Errorf("Create() error = %v, want %v", err, task.ErrNotAuthorized)
		}
	})

	t.Run("foreign supervisor cannot create", func(t *testing.T) {
		f := setup(t, 2)
		other := testutil.CreateSupervisor(t, f.courseRepo, "Prof Mbuyi")
		_, err := f.svc.Create(ctx, task.Actor{ID: other.ID, Name: other.Name, IsSupervisor: true}, f.newTask())
		if errors.Cause(err) != task.ErrNotAuthorized {
			t.Errorf("Create() error = %v, want %v", err, task.ErrNotAuthorized)
		}
	})

	t.Run("team supervisor can create", func(t *testing.T) {
		f := setup(t, 3)
		tsk, err := f.svc.Create(ctx, f.supActor(), f.newTask())
		if err != nil {
			t.Fatalf("Create() failed: %v", err)
		}
		if tsk.Status != task.StatusReview {
			t.Errorf("Status = %v, want %v", tsk.Status, task.StatusReview)
		}
	})
}

func Test_Service_CastVote(t *testing.T) {
	ctx := context.Background()

	t.Run("accept vote reaches creation quorum", func(t *testing.T) {
		f := setup(t, 4) // implicit self-accept + 1 vote = 2; 2*2 > 3
		tsk := f.createTask(t)
		res, err := f.svc.CastVote(ctx, f.actor(1), tsk.ID, task.PhaseCreation, task.DecisionAccept)
		if err != nil {
			t.Fatalf("CastVote() failed: %v", err)
		}
		if !res.Transitioned {
			t.Error("expected a transition")
		}
		if res.Status != task.StatusWorkingOnIt {
			t.Errorf("Status = %v, want %v", res.Status, task.StatusWorkingOnIt)
		}
		if res.Tally.Accepts != 2 {
			t.Errorf("Tally.Accepts = %d, want 2", res.Tally.Accepts)
		}
	})

	t.Run("below quorum stays in review", func(t *testing.T) {
		f := setup(t, 5) // implicit self-accept + 1 vote = 2; 2*2 <= 4
		tsk := f.createTask(t)
		res, err := f.svc.CastVote(ctx, f.actor(1), tsk.ID, task.PhaseCreation, task.DecisionAccept)
		if err != nil {
			t.Fatalf("CastVote() failed: %v", err)
		}
		if res.Transitioned {
			t.Error("unexpected transition")
		}
		if res.Status != task.StatusReview {
			t.Errorf("Status = %v, want %v", res.Status, task.StatusReview)
		}
	})

	t.Run("duplicate vote rejected", func(t *testing.T) {
		f := setup(t, 5)
		tsk := f.createTask(t)
		if _, err := f.svc.CastVote(ctx, f.actor(1), tsk.ID, task.PhaseCreation, task.DecisionAccept); err != nil {
			t.Fatalf("CastVote() failed: %v", err)
		}
		_, err := f.svc.CastVote(ctx, f.actor(1), tsk.ID, task.PhaseCreation, task.DecisionChangeRequested)
		if errors.Cause(err) != task.ErrDuplicateVote {
			t.Errorf("CastVote() error = %v, want %v", err, task.ErrDuplicateVote)
		}
	})

	t.Run("vote after transition rejected", func(t *testing.T) {
		f := setup(t, 4)
		tsk := f.createTask(t)
		if _, err := f.svc.CastVote(ctx, f.actor(1), tsk.ID, task.PhaseCreation, task.DecisionAccept); err != nil {
			t.Fatalf("CastVote() failed: %v", err)
		}
		// quorum reached; the creation round is closed
		_, err := f.svc.CastVote(ctx, f.actor(2), tsk.ID, task.PhaseCreation, task.DecisionAccept)
		if errors.Cause(err) != task.ErrInvalidPhaseForStatus {
			t.Errorf("CastVote() error = %v, want %v", err, task.ErrInvalidPhaseForStatus)
		}
	})

	t.Run("wrong phase for status rejected", func(t *testing.T) {
		f := setup(t, 3)
		tsk := f.createTask(t)
		_, err := f.svc.CastVote(ctx, f.actor(1), tsk.ID, task.PhaseSubmission, task.DecisionAccept)
		if errors.Cause(err) != task.ErrInvalidPhaseForStatus {
			t.Errorf("CastVote() error = %v, want %v", err, task.ErrInvalidPhaseForStatus)
		}
	})

	t.Run("assignee cannot vote", func(t *testing.T) {
		f := setup(t, 3)
		tsk := f.createTask(t)
		_, err := f.svc.CastVote(ctx, f.actor(0), tsk.ID, task.PhaseCreation, task.DecisionAccept)
		if errors.Cause(err) != task.ErrNotAuthorized {
			t.Errorf("CastVote() error = %v, want %v", err, task.ErrNotAuthorized)
		}
	})

	t.Run("supervisor cannot vote", func(t *testing.T) {
		f := setup(t, 3)
		tsk := f.createTask(t)
		_, err := f.svc.CastVote(ctx, f.supActor(), tsk.ID, task.PhaseCreation, task.DecisionAccept)
		if errors.Cause(err) != task.ErrNotAuthorized {
			t.Errorf("CastVote() error = %v, want %v", err, task.ErrNotAuthorized)
		}
	})

	t.Run("non member cannot vote", func(t *testing.T) {
		f := setup(t, 3)
		tsk := f.createTask(t)
		outsider := testutil.CreateDeveloper(t, f.courseRepo, "Zawadi Yumba")
		_, err := f.svc.CastVote(ctx, task.Actor{ID: outsider.ID, Name: outsider.Name}, tsk.ID, task.PhaseCreation, task.DecisionAccept)
		if errors.Cause(err) != task.ErrNotAuthorized {
			t.Errorf("CastVote() error = %v, want %v", err, task.ErrNotAuthorized)
		}
	})

	t.Run("unknown task", func(t *testing.T) {
		f := setup(t, 3)
		_, err := f.svc.CastVote(ctx, f.actor(1), 999, task.PhaseCreation, task.DecisionAccept)
		if errors.Cause(err) != task.ErrNotFound {
			t.Errorf("CastVote() error = %v, want %v", err, task.ErrNotFound)
		}
	})
}

func Test_Service_Submit(t *testing.T) {
	ctx := context.Background()

	t.Run("requires completion comment", func(t *testing.T) {
		f := setup(t, 1)
		tsk := f.createTask(t)
		_, err := f.svc.Submit(ctx, f.actor(0), tsk.ID)
		if errors.Cause(err) != task.ErrMissingFinalComment {
			t.Errorf("Submit() error = %v, want %v", err, task.ErrMissingFinalComment)
		}
	})

	t.Run("only assignee submits", func(t *testing.T) {
		f := setup(t, 2)
		tsk := f.createTask(t)
		_, err := f.svc.Submit(ctx, f.actor(1), tsk.ID)
		if errors.Cause(err) != task.ErrNotAssignee {
			t.Errorf("Submit() error = %v, want %v", err, task.ErrNotAssignee)
		}
	})

	t.Run("cannot submit from review", func(t *testing.T) {
		f := setup(t, 3)
		tsk := f.createTask(t)
		_, err := f.svc.Submit(ctx, f.actor(0), tsk.ID)
		if errors.Cause(err) != task.ErrInvalidTransition {
			t.Errorf("Submit() error = %v, want %v", err, task.ErrInvalidTransition)
		}
	})

	t.Run("solo team submit goes straight to grading", func(t *testing.T) {
		f := setup(t, 1)
		tsk := f.createTask(t)
		tsk = f.submitTask(t, tsk.ID)
		if tsk.Status != task.StatusWaitingForSupervisorGrade {
			t.Errorf("Status = %v, want %v", tsk.Status, task.StatusWaitingForSupervisorGrade)
		}
		if tsk.CompletedAt.IsZero() {
			t.Error("CompletedAt not set")
		}
		if tsk.SubmissionApprovedAt.IsZero() {
			t.Error("SubmissionApprovedAt not set")
		}
	})

	t.Run("large team submit waits for review", func(t *testing.T) {
		f := setup(t, 3)
		tsk := f.openTask(t)
		tsk = f.submitTask(t, tsk.ID)
		if tsk.Status != task.StatusWaitingForReview {
			t.Errorf("Status = %v, want %v", tsk.Status, task.StatusWaitingForReview)
		}
		if tsk.CompletedAt.IsZero() {
			t.Error("CompletedAt not set")
		}
	})
}

func Test_Service_submissionReview(t *testing.T) {
	ctx := context.Background()

	t.Run("accept quorum requests a grade", func(t *testing.T) {
		f := setup(t, 3)
		tsk := f.openTask(t)
		tsk = f.submitTask(t, tsk.ID)
		res, err := f.svc.CastVote(ctx, f.actor(1), tsk.ID, task.PhaseSubmission, task.DecisionAccept)
		if err != nil {
			t.Fatalf("CastVote() failed: %v", err)
		}
		if !res.Transitioned || res.Status != task.StatusWaitingForSupervisorGrade {
			t.Errorf("result = (%v, %v), want transition to %v", res.Transitioned, res.Status, task.StatusWaitingForSupervisorGrade)
		}
	})

	t.Run("change request quorum reopens", func(t *testing.T) {
		f := setup(t, 3)
		tsk := f.openTask(t)
		tsk = f.submitTask(t, tsk.ID)
		res, err := f.svc.CastVote(ctx, f.actor(1), tsk.ID, task.PhaseSubmission, task.DecisionChangeRequested)
		if err != nil {
			t.Fatalf("CastVote() failed: %v", err)
		}
		if !res.Transitioned || res.Status != task.StatusWorkingOnIt {
			t.Errorf("result = (%v, %v), want transition to %v", res.Transitioned, res.Status, task.StatusWorkingOnIt)
		}

		tsk, err = f.svc.Get(ctx, tsk.ID)
		if err != nil {
			t.Fatalf("Get() failed: %v", err)
		}
		if !tsk.CompletedAt.IsZero() {
			t.Error("CompletedAt should be cleared on reopen")
		}
		// the completion comment was unflagged; a new one is required
		if _, err = f.svc.Submit(ctx, f.actor(0), tsk.ID); errors.Cause(err) != task.ErrMissingFinalComment {
			t.Errorf("Submit() error = %v, want %v", err, task.ErrMissingFinalComment)
		}
		// and the purged round can be voted again after resubmission
		f.submitTask(t, tsk.ID)
		if _, err = f.svc.CastVote(ctx, f.actor(1), tsk.ID, task.PhaseSubmission, task.DecisionAccept); err != nil {
			t.Errorf("CastVote() after resubmission failed: %v", err)
		}
	})

	t.Run("single change request does not reopen a large team's task", func(t *testing.T) {
		f := setup(t, 5)
		tsk := f.createTask(t)
		for i := 1; i <= 2; i++ { // 1 implicit + 2 votes = 3; 2*3 > 4
			if _, err := f.svc.CastVote(ctx, f.actor(i), tsk.ID, task.PhaseCreation, task.DecisionAccept); err != nil {
				t.Fatalf("CastVote() failed: %v", err)
			}
		}
		f.submitTask(t, tsk.ID)
		res, err := f.svc.CastVote(ctx, f.actor(1), tsk.ID, task.PhaseSubmission, task.DecisionChangeRequested)
		if err != nil {
			t.Fatalf("CastVote() failed: %v", err)
		}
		if res.Transitioned { // 2*1 < 4
			t.Error("unexpected transition")
		}
	})
}

func Test_Service_Edit(t *testing.T) {
	ctx := context.Background()

	t.Run("assignee edits fields", func(t *testing.T) {
		f := setup(t, 3)
		tsk := f.createTask(t)
		edited, err := f.svc.Edit(ctx, f.actor(0), tsk.ID, task.UpdateTask{
			Title:      "Implement login v2",
			Priority:   3,
			Difficulty: 1,
		})
		if err != nil {
			t.Fatalf("Edit() failed: %v", err)
		}
		if edited.Title != "Implement login v2" || edited.Priority != 3 || edited.Difficulty != 1 {
			t.Errorf("Edit() = %+v, fields not applied", edited)
		}
		if edited.Description != tsk.Description {
			t.Error("untouched fields must be preserved")
		}
	})

	t.Run("teammate cannot edit", func(t *testing.T) {
		f := setup(t, 3)
		tsk := f.createTask(t)
		_, err := f.svc.Edit(ctx, f.actor(1), tsk.ID, task.UpdateTask{Title: "hijack"})
		if errors.Cause(err) != task.ErrNotAuthorized {
			t.Errorf("Edit() error = %v, want %v", err, task.ErrNotAuthorized)
		}
	})

	t.Run("team supervisor can edit", func(t *testing.T) {
		f := setup(t, 3)
		tsk := f.createTask(t)
		if _, err := f.svc.Edit(ctx, f.supActor(), tsk.ID, task.UpdateTask{Title: "Scoped down"}); err != nil {
			t.Errorf("Edit() failed: %v", err)
		}
	})

	t.Run("cannot edit after submission", func(t *testing.T) {
		f := setup(t, 1)
		tsk := f.createTask(t)
		f.submitTask(t, tsk.ID)
		_, err := f.svc.Edit(ctx, f.actor(0), tsk.ID, task.UpdateTask{Title: "too late"})
		if errors.Cause(err) != task.ErrInvalidTransition {
			t.Errorf("Edit() error = %v, want %v", err, task.ErrInvalidTransition)
		}
	})

	t.Run("new assignee must be a team member", func(t *testing.T) {
		f := setup(t, 3)
		tsk := f.createTask(t)
		outsider := testutil.CreateDeveloper(t, f.courseRepo, "Zawadi Yumba")
		_, err := f.svc.Edit(ctx, f.actor(0), tsk.ID, task.UpdateTask{AssigneeID: outsider.ID})
		if _, ok := errors.Cause(err).(*core.ValidationError); !ok {
			t.Errorf("Edit() error = %v, want validation error", err)
		}
	})
}

func Test_Service_AddComment(t *testing.T) {
	ctx := context.Background()

	t.Run("teammate comments", func(t *testing.T) {
		f := setup(t, 3)
		tsk := f.createTask(t)
		c, err := f.svc.AddComment(ctx, f.actor(1), tsk.ID, task.NewComment{Body: "Looks too big, split it?"})
		if err != nil {
			t.Fatalf("AddComment() failed: %v", err)
		}
		if c.IsFinal {
			t.Error("comment must not be final")
		}
		comments, err := f.svc.Comments(ctx, tsk.ID)
		if err != nil {
			t.Fatalf("Comments() failed: %v", err)
		}
		if len(comments) != 1 {
			t.Errorf("len(comments) = %d, want 1", len(comments))
		}
	})

	t.Run("final comment only from assignee", func(t *testing.T) {
		f := setup(t, 2)
		tsk := f.createTask(t) // 2-person team: already WorkingOnIt
		_, err := f.svc.AddComment(ctx, f.actor(1), tsk.ID, task.NewComment{Body: "Done.", IsFinal: true})
		if _, ok := errors.Cause(err).(*core.ValidationError); !ok {
			t.Errorf("AddComment() error = %v, want validation error", err)
		}
	})

	t.Run("final comment only while working", func(t *testing.T) {
		f := setup(t, 3)
		tsk := f.createTask(t) // still in Review
		_, err := f.svc.AddComment(ctx, f.actor(0), tsk.ID, task.NewComment{Body: "Done.", IsFinal: true})
		if _, ok := errors.Cause(err).(*core.ValidationError); !ok {
			t.Errorf("AddComment() error = %v, want validation error", err)
		}
	})

	t.Run("new final comment supersedes the previous one", func(t *testing.T) {
		f := setup(t, 1)
		tsk := f.createTask(t)
		if _, err := f.svc.AddComment(ctx, f.actor(0), tsk.ID, task.NewComment{Body: "Done.", IsFinal: true}); err != nil {
			t.Fatalf("AddComment() failed: %v", err)
		}
		if _, err := f.svc.AddComment(ctx, f.actor(0), tsk.ID, task.NewComment{Body: "Actually done now.", IsFinal: true}); err != nil {
			t.Fatalf("AddComment() failed: %v", err)
		}
		comments, err := f.svc.Comments(ctx, tsk.ID)
		if err != nil {
			t.Fatalf("Comments() failed: %v", err)
		}
		finals := 0
		for _, c := range comments {
			if c.IsFinal {
				finals++
			}
		}
		if finals != 1 {
			t.Errorf("final comments = %d, want 1", finals)
		}
	})

	t.Run("no comments on resolved tasks", func(t *testing.T) {
		f := setup(t, 1)
		tsk := f.createTask(t)
		if _, err := f.svc.ForceTransition(ctx, f.supActor(), tsk.ID, task.StatusRejected); err != nil {
			t.Fatalf("ForceTransition() failed: %v", err)
		}
		_, err := f.svc.AddComment(ctx, f.actor(0), tsk.ID, task.NewComment{Body: "too late"})
		if errors.Cause(err) != task.ErrInvalidTransition {
			t.Errorf("AddComment() error = %v, want %v", err, task.ErrInvalidTransition)
		}
	})
}

func Test_Service_ForceTransition(t *testing.T) {
	ctx := context.Background()

	t.Run("accept stamps timestamps", func(t *testing.T) {
		f := setup(t, 3)
		tsk := f.createTask(t)
		tsk, err := f.svc.ForceTransition(ctx, f.supActor(), tsk.ID, task.StatusAccepted)
		if err != nil {
			t.Fatalf("ForceTransition() failed: %v", err)
		}
		if tsk.Status != task.StatusAccepted {
			t.Errorf("Status = %v, want %v", tsk.Status, task.StatusAccepted)
		}
		if tsk.CompletedAt.IsZero() || tsk.SubmissionApprovedAt.IsZero() {
			t.Error("acceptance timestamps not set")
		}
	})

	t.Run("reopen", func(t *testing.T) {
		f := setup(t, 3)
		tsk := f.createTask(t)
		tsk, err := f.svc.ForceTransition(ctx, f.supActor(), tsk.ID, task.StatusWorkingOnIt)
		if err != nil {
			t.Fatalf("ForceTransition() failed: %v", err)
		}
		if tsk.Status != task.StatusWorkingOnIt {
			t.Errorf("Status = %v, want %v", tsk.Status, task.StatusWorkingOnIt)
		}
	})

	t.Run("non supervisor rejected", func(t *testing.T) {
		f := setup(t, 3)
		tsk := f.createTask(t)
		_, err := f.svc.ForceTransition(ctx, f.actor(1), tsk.ID, task.StatusAccepted)
		if errors.Cause(err) != task.ErrNotAuthorized {
			t.Errorf("ForceTransition() error = %v, want %v", err, task.ErrNotAuthorized)
		}
	})

	t.Run("foreign supervisor rejected", func(t *testing.T) {
		f := setup(t, 3)
		tsk := f.createTask(t)
		other := testutil.CreateSupervisor(t, f.courseRepo, "Prof Mbuyi")
		_, err := f.svc.ForceTransition(ctx, task.Actor{ID: other.ID, Name: other.Name, IsSupervisor: true}, tsk.ID, task.StatusAccepted)
		if errors.Cause(err) != task.ErrNotAuthorized {
			t.Errorf("ForceTransition() error = %v, want %v", err, task.ErrNotAuthorized)
		}
	})

	t.Run("invalid target rejected", func(t *testing.T) {
		f := setup(t, 3)
		tsk := f.createTask(t)
		_, err := f.svc.ForceTransition(ctx, f.supActor(), tsk.ID, task.StatusReview)
		if errors.Cause(err) != task.ErrInvalidTarget {
			t.Errorf("ForceTransition() error = %v, want %v", err, task.ErrInvalidTarget)
		}
	})

	t.Run("terminal tasks are frozen", func(t *testing.T) {
		f := setup(t, 3)
		tsk := f.createTask(t)
		if _, err := f.svc.ForceTransition(ctx, f.supActor(), tsk.ID, task.StatusRejected); err != nil {
			t.Fatalf("ForceTransition() failed: %v", err)
		}
		_, err := f.svc.ForceTransition(ctx, f.supActor(), tsk.ID, task.StatusWorkingOnIt)
		if errors.Cause(err) != task.ErrInvalidTransition {
			t.Errorf("ForceTransition() error = %v, want %v", err, task.ErrInvalidTransition)
		}
	})
}

func Test_Service_RejectOverdue(t *testing.T) {
	ctx := context.Background()
	f := setup(t, 1)

	// overdue by its own deadline
	overdue := f.newTask()
	overdue.Due = time.Now().Add(-time.Hour)
	overdueTask, err := f.svc.Create(ctx, f.actor(0), overdue)
	if err != nil {
		t.Fatalf("Create() failed: %v", err)
	}

	// overdue through its milestone
	pastMilestone := testutil.CreateMilestone(t, f.courseRepo, f.course.ID, "Sprint 0", 100, time.Now().Add(-time.Hour))
	lateMilestone := f.newTask()
	lateMilestone.MilestoneID = pastMilestone.ID
	lateMilestoneTask, err := f.svc.Create(ctx, f.actor(0), lateMilestone)
	if err != nil {
		t.Fatalf("Create() failed: %v", err)
	}

	// not due yet
	fresh := f.createTask(t)

	n, err := f.svc.RejectOverdue(ctx)
	if err != nil {
		t.Fatalf("RejectOverdue() failed: %v", err)
	}
	if n != 2 {
		t.Errorf("RejectOverdue() = %d, want 2", n)
	}
	for _, id := range []int{overdueTask.ID, lateMilestoneTask.ID} {
		tsk, err := f.svc.Get(ctx, id)
		if err != nil {
			t.Fatalf("Get() failed: %v", err)
		}
		if tsk.Status != task.StatusRejected {
			t.Errorf("task %d Status = %v, want %v", id, tsk.Status, task.StatusRejected)
		}
	}
	tsk, err := f.svc.Get(ctx, fresh.ID)
	if err != nil {
		t.Fatalf("Get() failed: %v", err)
	}
	if tsk.Status != task.StatusWorkingOnIt {
		t.Errorf("fresh task Status = %v, want %v", tsk.Status, task.StatusWorkingOnIt)
	}

	// a second sweep finds nothing new
	if n, err = f.svc.RejectOverdue(ctx); err != nil || n != 0 {
		t.Errorf("RejectOverdue() = (%d, %v), want (0, nil)", n, err)
	}
}

func Test_Service_History(t *testing.T) {
	ctx := context.Background()
	f := setup(t, 3)
	tsk := f.createTask(t)

	if _, err := f.svc.Edit(ctx, f.actor(0), tsk.ID, task.UpdateTask{Title: "Implement SSO login", Priority: 3}); err != nil {
		t.Fatalf("Edit() failed: %v", err)
	}
	if _, err := f.svc.CastVote(ctx, f.actor(1), tsk.ID, task.PhaseCreation, task.DecisionAccept); err != nil {
		t.Fatalf("CastVote() failed: %v", err)
	}

	entries, err := f.svc.History(ctx, tsk.ID)
	if err != nil {
		t.Fatalf("History() failed: %v", err)
	}
	// created, edited, voted, opened
	if len(entries) != 4 {
		t.Fatalf("len(entries) = %d, want 4", len(entries))
	}

	var created, edited *task.HistoryEntry
	for i := range entries {
		switch entries[i].Action {
		case task.ActionCreated:
			created = &entries[i]
		case task.ActionEdited:
			edited = &entries[i]
		}
	}
	if created == nil || edited == nil {
		t.Fatal("missing created or edited entry")
	}

	// the baseline reports every editable field
	if len(created.Changes) != 6 {
		t.Errorf("len(created.Changes) = %d, want 6", len(created.Changes))
	}

	// the edit reports only what changed
	if len(edited.Changes) != 2 {
		t.Fatalf("len(edited.Changes) = %d, want 2: %+v", len(edited.Changes), edited.Changes)
	}
	for _, c := range edited.Changes {
		switch c.Field {
		case "title":
			if c.Old != "Implement login" || c.New != "Implement SSO login" {
				t.Errorf("title change = %+v", c)
			}
		case "priority":
			if c.Old != "Planned" || c.New != "Urgent" {
				t.Errorf("priority change = %+v", c)
			}
		default:
			t.Errorf("unexpected change %+v", c)
		}
	}
}
