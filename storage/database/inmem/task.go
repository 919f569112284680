package inmemdb

import (
	"context"
	"sort"

	"github.com/trezcool/kazi/core/task"
)

type taskRepository struct {
	db *DB
}

var _ task.Repository = (*taskRepository)(nil)

func NewTaskRepository(db *DB) *taskRepository {
	return &taskRepository{db: db}
}

// InTx holds the write lock for the whole closure so state-machine steps
// serialize, mirroring the postgres row lock. There is no rollback: a failing
// closure may leave partial writes behind, which is acceptable for tests.
func (repo *taskRepository) InTx(_ context.Context, fn func(tx task.Tx) error) error {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()
	return fn(&taskTx{db: repo.db})
}

func (repo *taskRepository) GetTaskByID(_ context.Context, id int) (task.Task, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	if t, ok := repo.db.tasks[id]; ok {
		return *t, nil
	}
	return task.Task{}, task.ErrNotFound
}

func (repo *taskRepository) QueryTeamMilestoneTasks(_ context.Context, teamID, milestoneID int) ([]task.Task, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	var tasks []task.Task
	for _, t := range repo.db.tasks {
		if t.TeamID == teamID && t.MilestoneID == milestoneID {
			tasks = append(tasks, *t)
		}
	}
	sortTasks(tasks)
	return tasks, nil
}

func (repo *taskRepository) QueryCourseTasks(_ context.Context, courseID int) ([]task.Task, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	var tasks []task.Task
	for _, t := range repo.db.tasks {
		if m, ok := repo.db.milestones[t.MilestoneID]; ok && m.CourseID == courseID {
			tasks = append(tasks, *t)
		}
	}
	sortTasks(tasks)
	return tasks, nil
}

func (repo *taskRepository) QueryOpenTasks(_ context.Context) ([]task.Task, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	var tasks []task.Task
	for _, t := range repo.db.tasks {
		switch t.Status {
		case task.StatusReview, task.StatusWorkingOnIt, task.StatusWaitingForReview:
			tasks = append(tasks, *t)
		}
	}
	sortTasks(tasks)
	return tasks, nil
}

func (repo *taskRepository) QueryVoterCourseVotes(_ context.Context, voterID, courseID int) ([]task.Vote, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	var votes []task.Vote
	for _, v := range repo.db.votes {
		if v.VoterID != voterID {
			continue
		}
		t, ok := repo.db.tasks[v.TaskID]
		if !ok {
			continue
		}
		if m, ok := repo.db.milestones[t.MilestoneID]; ok && m.CourseID == courseID {
			votes = append(votes, *v)
		}
	}
	sort.Slice(votes, func(i, j int) bool { return votes[i].ID < votes[j].ID })
	return votes, nil
}

func (repo *taskRepository) QueryComments(_ context.Context, taskID int) ([]task.Comment, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	var comments []task.Comment
	for _, c := range repo.db.comments {
		if c.TaskID == taskID {
			comments = append(comments, *c)
		}
	}
	sort.Slice(comments, func(i, j int) bool { return comments[i].ID < comments[j].ID })
	return comments, nil
}

func (repo *taskRepository) QueryActionRecords(_ context.Context, taskID int) ([]task.ActionRecord, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	var records []task.ActionRecord
	for _, r := range repo.db.records {
		if r.TaskID == taskID {
			records = append(records, *r)
		}
	}
	// newest first
	sort.Slice(records, func(i, j int) bool {
		if records[i].CreatedAt.Equal(records[j].CreatedAt) {
			return records[i].ID > records[j].ID
		}
		return records[i].CreatedAt.After(records[j].CreatedAt)
	})
	return records, nil
}

func (repo *taskRepository) QueryTaskDifferences(_ context.Context, taskID int) ([]task.TaskDifference, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	var snaps []task.TaskDifference
	for _, d := range repo.db.diffs {
		if d.TaskID == taskID {
			snaps = append(snaps, *d)
		}
	}
	// newest first
	sort.Slice(snaps, func(i, j int) bool {
		if snaps[i].CreatedAt.Equal(snaps[j].CreatedAt) {
			return snaps[i].ID > snaps[j].ID
		}
		return snaps[i].CreatedAt.After(snaps[j].CreatedAt)
	})
	return snaps, nil
}

func sortTasks(tasks []task.Task) {
	sort.Slice(tasks, func(i, j int) bool { return tasks[i].ID < tasks[j].ID })
}

// taskTx runs with the DB write lock already held.
type taskTx struct {
	db *DB
}

var _ task.Tx = (*taskTx)(nil)

func (tx *taskTx) CreateTask(t task.Task) (task.Task, error) {
	t.ID = tx.db.nextPK("task")
	tx.db.tasks[t.ID] = &t
	return t, nil
}

func (tx *taskTx) GetTaskForUpdate(id int) (task.Task, error) {
	if t, ok := tx.db.tasks[id]; ok {
		return *t, nil
	}
	return task.Task{}, task.ErrNotFound
}

func (tx *taskTx) UpdateTask(t task.Task) error {
	if _, ok := tx.db.tasks[t.ID]; !ok {
		return task.ErrNotFound
	}
	tx.db.tasks[t.ID] = &t
	return nil
}

func (tx *taskTx) CreateVote(v task.Vote) (task.Vote, error) {
	v.ID = tx.db.nextPK("vote")
	tx.db.votes[v.ID] = &v
	return v, nil
}

func (tx *taskTx) HasVote(taskID, voterID int, phase task.Phase) (bool, error) {
	for _, v := range tx.db.votes {
		if v.TaskID == taskID && v.VoterID == voterID && v.Phase == phase {
			return true, nil
		}
	}
	return false, nil
}

func (tx *taskTx) TallyVotes(taskID int, phase task.Phase) (task.Tally, error) {
	var tally task.Tally
	for _, v := range tx.db.votes {
		if v.TaskID != taskID || v.Phase != phase {
			continue
		}
		if v.Decision == task.DecisionAccept {
			tally.Accepts++
		} else {
			tally.ChangeRequests++
		}
	}
	return tally, nil
}

func (tx *taskTx) PurgeVotes(taskID int, phase task.Phase) error {
	for id, v := range tx.db.votes {
		if v.TaskID == taskID && v.Phase == phase {
			delete(tx.db.votes, id)
		}
	}
	return nil
}

func (tx *taskTx) CreateComment(c task.Comment) (task.Comment, error) {
	c.ID = tx.db.nextPK("comment")
	tx.db.comments[c.ID] = &c
	return c, nil
}

func (tx *taskTx) HasFinalComment(taskID int) (bool, error) {
	for _, c := range tx.db.comments {
		if c.TaskID == taskID && c.IsFinal {
			return true, nil
		}
	}
	return false, nil
}

func (tx *taskTx) UnflagFinalComments(taskID int) error {
	for _, c := range tx.db.comments {
		if c.TaskID == taskID {
			c.IsFinal = false
		}
	}
	return nil
}

func (tx *taskTx) CreateActionRecord(r task.ActionRecord) (task.ActionRecord, error) {
	r.ID = tx.db.nextPK("action_record")
	tx.db.records[r.ID] = &r
	return r, nil
}

func (tx *taskTx) CreateTaskDifference(d task.TaskDifference) (task.TaskDifference, error) {
	d.ID = tx.db.nextPK("task_difference")
	tx.db.diffs[d.ID] = &d
	return d, nil
}
