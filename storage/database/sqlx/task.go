package sqlxrepos

import (
	"context"
	"database/sql"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/kazi/core/task"
)

type taskRepository struct {
	db *sqlx.DB
}

var _ task.Repository = (*taskRepository)(nil)

func NewTaskRepository(db *sql.DB) *taskRepository {
	return &taskRepository{db: sqlx.NewDb(db, "postgres")}
}

type taskRow struct {
	ID                   int       `db:"id"`
	MilestoneID          int       `db:"milestone_id"`
	AssigneeID           int       `db:"assignee_id"`
	TeamID               int       `db:"team_id"`
	Title                string    `db:"title"`
	Description          string    `db:"description"`
	Due                  time.Time `db:"due"`
	Priority             int       `db:"priority"`
	Difficulty           int       `db:"difficulty"`
	Modifier             int       `db:"modifier"`
	Status               int       `db:"status"`
	CreatedAt            time.Time `db:"created_at"`
	CreationApprovedAt   null.Time `db:"creation_approved_at"`
	CompletedAt          null.Time `db:"completed_at"`
	SubmissionApprovedAt null.Time `db:"submission_approved_at"`
}

func (r taskRow) toTask() task.Task {
	return task.Task{
		ID:                   r.ID,
		MilestoneID:          r.MilestoneID,
		AssigneeID:           r.AssigneeID,
		TeamID:               r.TeamID,
		Title:                r.Title,
		Description:          r.Description,
		Due:                  r.Due,
		Priority:             r.Priority,
		Difficulty:           r.Difficulty,
		Modifier:             r.Modifier,
		Status:               task.Status(r.Status),
		CreatedAt:            r.CreatedAt,
		CreationApprovedAt:   r.CreationApprovedAt.Time,
		CompletedAt:          r.CompletedAt.Time,
		SubmissionApprovedAt: r.SubmissionApprovedAt.Time,
	}
}

func nullableTime(t time.Time) null.Time {
	return null.NewTime(t, !t.IsZero())
}

func (repo *taskRepository) InTx(ctx context.Context, fn func(tx task.Tx) error) error {
	tx, err := repo.db.BeginTxx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, "beginning transaction")
	}
	defer func() { _ = tx.Rollback() }()

	if err = fn(&taskTx{ctx: ctx, tx: tx}); err != nil {
		return err
	}
	return errors.Wrap(tx.Commit(), "committing transaction")
}

func (repo *taskRepository) GetTaskByID(ctx context.Context, id int) (task.Task, error) {
	var row taskRow
	err := repo.db.GetContext(ctx, &row, `SELECT * FROM task WHERE id = $1`, id)
	if err == sql.ErrNoRows {
		return task.Task{}, task.ErrNotFound
	}
	return row.toTask(), errors.Wrap(err, "getting task")
}

func (repo *taskRepository) QueryTeamMilestoneTasks(ctx context.Context, teamID, milestoneID int) ([]task.Task, error) {
	return repo.queryTasks(ctx, `SELECT * FROM task WHERE team_id = $1 AND milestone_id = $2 ORDER BY id`, teamID, milestoneID)
}

func (repo *taskRepository) QueryCourseTasks(ctx context.Context, courseID int) ([]task.Task, error) {
	return repo.queryTasks(ctx, `
		SELECT t.* FROM task t
		JOIN milestone m ON m.id = t.milestone_id
		WHERE m.course_id = $1
		ORDER BY t.id`,
		courseID,
	)
}

func (repo *taskRepository) QueryOpenTasks(ctx context.Context) ([]task.Task, error) {
	return repo.queryTasks(ctx, `SELECT * FROM task WHERE status IN ($1, $2, $3) ORDER BY id`,
		int(task.StatusReview), int(task.StatusWorkingOnIt), int(task.StatusWaitingForReview))
}

func (repo *taskRepository) queryTasks(ctx context.Context, query string, args ...interface{}) ([]task.Task, error) {
	var rows []taskRow
	if err := repo.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, errors.Wrap(err, "querying tasks")
	}
	tasks := make([]task.Task, 0, len(rows))
	for _, row := range rows {
		tasks = append(tasks, row.toTask())
	}
	return tasks, nil
}

func (repo *taskRepository) QueryVoterCourseVotes(ctx context.Context, voterID, courseID int) ([]task.Vote, error) {
	rows, err := repo.db.QueryContext(ctx, `
		SELECT v.id, v.task_id, v.voter_id, v.phase, v.decision, v.created_at
		FROM vote v
		JOIN task t ON t.id = v.task_id
		JOIN milestone m ON m.id = t.milestone_id
		WHERE v.voter_id = $1 AND m.course_id = $2`,
		voterID, courseID,
	)
	if err != nil {
		return nil, errors.Wrap(err, "querying votes")
	}
	defer func() { _ = rows.Close() }()

	var votes []task.Vote
	for rows.Next() {
		var v task.Vote
		if err = rows.Scan(&v.ID, &v.TaskID, &v.VoterID, &v.Phase, &v.Decision, &v.CreatedAt); err != nil {
			return nil, errors.Wrap(err, "scanning vote")
		}
		votes = append(votes, v)
	}
	return votes, errors.Wrap(rows.Err(), "querying votes")
}

func (repo *taskRepository) QueryComments(ctx context.Context, taskID int) ([]task.Comment, error) {
	rows, err := repo.db.QueryContext(ctx, `
		SELECT id, task_id, author_id, body, file_url, is_final, created_at
		FROM comment WHERE task_id = $1 ORDER BY created_at`,
		taskID,
	)
	if err != nil {
		return nil, errors.Wrap(err, "querying comments")
	}
	defer func() { _ = rows.Close() }()

	var comments []task.Comment
	for rows.Next() {
		var c task.Comment
		if err = rows.Scan(&c.ID, &c.TaskID, &c.AuthorID, &c.Body, &c.FileURL, &c.IsFinal, &c.CreatedAt); err != nil {
			return nil, errors.Wrap(err, "scanning comment")
		}
		comments = append(comments, c)
	}
	return comments, errors.Wrap(rows.Err(), "querying comments")
}

func (repo *taskRepository) QueryActionRecords(ctx context.Context, taskID int) ([]task.ActionRecord, error) {
	rows, err := repo.db.QueryContext(ctx, `
		SELECT id, task_id, actor_id, actor_name, action, description, created_at
		FROM action_record WHERE task_id = $1 ORDER BY created_at DESC, id DESC`,
		taskID,
	)
	if err != nil {
		return nil, errors.Wrap(err, "querying action records")
	}
	defer func() { _ = rows.Close() }()

	var records []task.ActionRecord
	for rows.Next() {
		var rec task.ActionRecord
		if err = rows.Scan(&rec.ID, &rec.TaskID, &rec.ActorID, &rec.ActorName, &rec.Action, &rec.Description, &rec.CreatedAt); err != nil {
			return nil, errors.Wrap(err, "scanning action record")
		}
		records = append(records, rec)
	}
	return records, errors.Wrap(rows.Err(), "querying action records")
}

func (repo *taskRepository) QueryTaskDifferences(ctx context.Context, taskID int) ([]task.TaskDifference, error) {
	rows, err := repo.db.QueryContext(ctx, `
		SELECT id, action_record_id, task_id, assignee_id, title, description, due, priority, difficulty, created_at
		FROM task_difference WHERE task_id = $1 ORDER BY created_at DESC, id DESC`,
		taskID,
	)
	if err != nil {
		return nil, errors.Wrap(err, "querying snapshots")
	}
	defer func() { _ = rows.Close() }()

	var snaps []task.TaskDifference
	for rows.Next() {
		var s task.TaskDifference
		if err = rows.Scan(&s.ID, &s.ActionRecordID, &s.TaskID, &s.AssigneeID, &s.Title, &s.Description, &s.Due, &s.Priority, &s.Difficulty, &s.CreatedAt); err != nil {
			return nil, errors.Wrap(err, "scanning snapshot")
		}
		snaps = append(snaps, s)
	}
	return snaps, errors.Wrap(rows.Err(), "querying snapshots")
}

// taskTx is the single-transaction view of the task tables. GetTaskForUpdate
// locks the task row so concurrent votes serialize.
type taskTx struct {
	ctx context.Context
	tx  *sqlx.Tx
}

var _ task.Tx = (*taskTx)(nil)

func (t *taskTx) CreateTask(tsk task.Task) (task.Task, error) {
	err := t.tx.QueryRowContext(t.ctx, `
		INSERT INTO task (milestone_id, assignee_id, team_id, title, description, due, priority, difficulty, modifier,
		                  status, created_at, creation_approved_at, completed_at, submission_approved_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
		RETURNING id`,
		tsk.MilestoneID, tsk.AssigneeID, tsk.TeamID, tsk.Title, tsk.Description, tsk.Due, tsk.Priority, tsk.Difficulty,
		tsk.Modifier, int(tsk.Status), tsk.CreatedAt,
		nullableTime(tsk.CreationApprovedAt), nullableTime(tsk.CompletedAt), nullableTime(tsk.SubmissionApprovedAt),
	).Scan(&tsk.ID)
	return tsk, errors.Wrap(err, "inserting task")
}

func (t *taskTx) GetTaskForUpdate(id int) (task.Task, error) {
	var row taskRow
	err := t.tx.GetContext(t.ctx, &row, `SELECT * FROM task WHERE id = $1 FOR UPDATE`, id)
	if err == sql.ErrNoRows {
		return task.Task{}, task.ErrNotFound
	}
	return row.toTask(), errors.Wrap(err, "locking task")
}

func (t *taskTx) UpdateTask(tsk task.Task) error {
	res, err := t.tx.ExecContext(t.ctx, `
		UPDATE task
		SET milestone_id = $2, assignee_id = $3, title = $4, description = $5, due = $6, priority = $7,
		    difficulty = $8, modifier = $9, status = $10, creation_approved_at = $11, completed_at = $12,
		    submission_approved_at = $13
		WHERE id = $1`,
		tsk.ID, tsk.MilestoneID, tsk.AssigneeID, tsk.Title, tsk.Description, tsk.Due, tsk.Priority, tsk.Difficulty,
		tsk.Modifier, int(tsk.Status),
		nullableTime(tsk.CreationApprovedAt), nullableTime(tsk.CompletedAt), nullableTime(tsk.SubmissionApprovedAt),
	)
	if err != nil {
		return errors.Wrap(err, "updating task")
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return task.ErrNotFound
	}
	return nil
}

func (t *taskTx) CreateVote(v task.Vote) (task.Vote, error) {
	err := t.tx.QueryRowContext(t.ctx, `
		INSERT INTO vote (task_id, voter_id, phase, decision, created_at)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id`,
		v.TaskID, v.VoterID, int(v.Phase), int(v.Decision), v.CreatedAt,
	).Scan(&v.ID)
	return v, errors.Wrap(err, "inserting vote")
}

func (t *taskTx) HasVote(taskID, voterID int, phase task.Phase) (bool, error) {
	var exists bool
	err := t.tx.QueryRowContext(t.ctx,
		`SELECT EXISTS (SELECT 1 FROM vote WHERE task_id = $1 AND voter_id = $2 AND phase = $3)`,
		taskID, voterID, int(phase),
	).Scan(&exists)
	return exists, errors.Wrap(err, "checking vote")
}

func (t *taskTx) TallyVotes(taskID int, phase task.Phase) (task.Tally, error) {
	var tally task.Tally
	err := t.tx.QueryRowContext(t.ctx, `
		SELECT COUNT(*) FILTER (WHERE decision = $3),
		       COUNT(*) FILTER (WHERE decision = $4)
		FROM vote WHERE task_id = $1 AND phase = $2`,
		taskID, int(phase), int(task.DecisionAccept), int(task.DecisionChangeRequested),
	).Scan(&tally.Accepts, &tally.ChangeRequests)
	return tally, errors.Wrap(err, "tallying votes")
}

func (t *taskTx) PurgeVotes(taskID int, phase task.Phase) error {
	_, err := t.tx.ExecContext(t.ctx, `DELETE FROM vote WHERE task_id = $1 AND phase = $2`, taskID, int(phase))
	return errors.Wrap(err, "purging votes")
}

func (t *taskTx) CreateComment(c task.Comment) (task.Comment, error) {
	err := t.tx.QueryRowContext(t.ctx, `
		INSERT INTO comment (task_id, author_id, body, file_url, is_final, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id`,
		c.TaskID, c.AuthorID, c.Body, c.FileURL, c.IsFinal, c.CreatedAt,
	).Scan(&c.ID)
	return c, errors.Wrap(err, "inserting comment")
}

func (t *taskTx) HasFinalComment(taskID int) (bool, error) {
	var exists bool
	err := t.tx.QueryRowContext(t.ctx,
		`SELECT EXISTS (SELECT 1 FROM comment WHERE task_id = $1 AND is_final)`, taskID,
	).Scan(&exists)
	return exists, errors.Wrap(err, "checking completion comment")
}

func (t *taskTx) UnflagFinalComments(taskID int) error {
	_, err := t.tx.ExecContext(t.ctx, `UPDATE comment SET is_final = FALSE WHERE task_id = $1 AND is_final`, taskID)
	return errors.Wrap(err, "unflagging completion comments")
}

func (t *taskTx) CreateActionRecord(r task.ActionRecord) (task.ActionRecord, error) {
	err := t.tx.QueryRowContext(t.ctx, `
		INSERT INTO action_record (task_id, actor_id, actor_name, action, description, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id`,
		r.TaskID, r.ActorID, r.ActorName, int(r.Action), r.Description, r.CreatedAt,
	).Scan(&r.ID)
	return r, errors.Wrap(err, "inserting action record")
}

func (t *taskTx) CreateTaskDifference(d task.TaskDifference) (task.TaskDifference, error) {
	err := t.tx.QueryRowContext(t.ctx, `
		INSERT INTO task_difference (action_record_id, task_id, assignee_id, title, description, due, priority, difficulty, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING id`,
		d.ActionRecordID, d.TaskID, d.AssigneeID, d.Title, d.Description, d.Due, d.Priority, d.Difficulty, d.CreatedAt,
	).Scan(&d.ID)
	return d, errors.Wrap(err, "inserting snapshot")
}
