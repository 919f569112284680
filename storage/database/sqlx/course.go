package sqlxrepos

import (
	"context"
	"database/sql"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"

	"github.com/trezcool/kazi/core/course"
)

type courseRepository struct {
	db *sqlx.DB
}

var _ course.Repository = (*courseRepository)(nil)

func NewCourseRepository(db *sql.DB) *courseRepository {
	return &courseRepository{db: sqlx.NewDb(db, "postgres")}
}

type courseRow struct {
	ID               int          `db:"id"`
	Code             string       `db:"code"`
	Name             string       `db:"name"`
	AcademicYear     string       `db:"academic_year"`
	Semester         string       `db:"semester"`
	GroupWeight      int          `db:"group_weight"`
	IndividualWeight int          `db:"individual_weight"`
	IsActive         bool         `db:"is_active"`
	CreatedAt        sql.NullTime `db:"created_at"`
	UpdatedAt        sql.NullTime `db:"updated_at"`
}

func (r courseRow) toCourse() course.Course {
	return course.Course{
		ID:               r.ID,
		Code:             r.Code,
		Name:             r.Name,
		AcademicYear:     r.AcademicYear,
		Semester:         r.Semester,
		GroupWeight:      r.GroupWeight,
		IndividualWeight: r.IndividualWeight,
		IsActive:         r.IsActive,
		CreatedAt:        r.CreatedAt.Time,
		UpdatedAt:        r.UpdatedAt.Time,
	}
}

func (repo *courseRepository) CreateCourse(ctx context.Context, c course.Course) (course.Course, error) {
	err := repo.db.QueryRowContext(ctx, `
		INSERT INTO course (code, name, academic_year, semester, group_weight, individual_weight, is_active, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING id`,
		c.Code, c.Name, c.AcademicYear, c.Semester, c.GroupWeight, c.IndividualWeight, c.IsActive, c.CreatedAt, c.UpdatedAt,
	).Scan(&c.ID)
	return c, errors.Wrap(err, "inserting course")
}

func (repo *courseRepository) GetCourseByID(ctx context.Context, id int) (course.Course, error) {
	var row courseRow
	err := repo.db.GetContext(ctx, &row, `SELECT * FROM course WHERE id = $1`, id)
	if err == sql.ErrNoRows {
		return course.Course{}, course.ErrNotFound
	}
	return row.toCourse(), errors.Wrap(err, "getting course")
}

func (repo *courseRepository) QueryActiveCourses(ctx context.Context) ([]course.Course, error) {
	var rows []courseRow
	err := repo.db.SelectContext(ctx, &rows, `SELECT * FROM course WHERE is_active ORDER BY academic_year DESC, code`)
	if err != nil {
		return nil, errors.Wrap(err, "querying active courses")
	}
	courses := make([]course.Course, 0, len(rows))
	for _, row := range rows {
		courses = append(courses, row.toCourse())
	}
	return courses, nil
}

func (repo *courseRepository) UpdateCourse(ctx context.Context, c course.Course) (course.Course, error) {
	res, err := repo.db.ExecContext(ctx, `
		UPDATE course
		SET code = $2, name = $3, academic_year = $4, semester = $5, group_weight = $6,
		    individual_weight = $7, is_active = $8, updated_at = $9
		WHERE id = $1`,
		c.ID, c.Code, c.Name, c.AcademicYear, c.Semester, c.GroupWeight, c.IndividualWeight, c.IsActive, c.UpdatedAt,
	)
	if err != nil {
		return course.Course{}, errors.Wrap(err, "updating course")
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return course.Course{}, course.ErrNotFound
	}
	return c, nil
}

func (repo *courseRepository) CreateMilestone(ctx context.Context, m course.Milestone) (course.Milestone, error) {
	err := repo.db.QueryRowContext(ctx, `
		INSERT INTO milestone (course_id, name, description, weight, due)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id`,
		m.CourseID, m.Name, m.Description, m.Weight, m.Due,
	).Scan(&m.ID)
	return m, errors.Wrap(err, "inserting milestone")
}

func (repo *courseRepository) GetMilestoneByID(ctx context.Context, id int) (course.Milestone, error) {
	var m course.Milestone
	err := repo.db.QueryRowContext(ctx,
		`SELECT id, course_id, name, description, weight, due FROM milestone WHERE id = $1`, id,
	).Scan(&m.ID, &m.CourseID, &m.Name, &m.Description, &m.Weight, &m.Due)
	if err == sql.ErrNoRows {
		return course.Milestone{}, course.ErrNotFound
	}
	return m, errors.Wrap(err, "getting milestone")
}

func (repo *courseRepository) UpdateMilestone(ctx context.Context, m course.Milestone) (course.Milestone, error) {
	res, err := repo.db.ExecContext(ctx, `
		UPDATE milestone SET name = $2, description = $3, weight = $4, due = $5 WHERE id = $1`,
		m.ID, m.Name, m.Description, m.Weight, m.Due,
	)
	if err != nil {
		return course.Milestone{}, errors.Wrap(err, "updating milestone")
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return course.Milestone{}, course.ErrNotFound
	}
	return m, nil
}

func (repo *courseRepository) QueryCourseMilestones(ctx context.Context, courseID int) ([]course.Milestone, error) {
	rows, err := repo.db.QueryContext(ctx, `
		SELECT id, course_id, name, description, weight, due FROM milestone WHERE course_id = $1 ORDER BY due`,
		courseID,
	)
	if err != nil {
		return nil, errors.Wrap(err, "querying milestones")
	}
	defer func() { _ = rows.Close() }()

	var milestones []course.Milestone
	for rows.Next() {
		var m course.Milestone
		if err = rows.Scan(&m.ID, &m.CourseID, &m.Name, &m.Description, &m.Weight, &m.Due); err != nil {
			return nil, errors.Wrap(err, "scanning milestone")
		}
		milestones = append(milestones, m)
	}
	return milestones, errors.Wrap(rows.Err(), "querying milestones")
}

func (repo *courseRepository) CreateTeam(ctx context.Context, t course.Team) (course.Team, error) {
	supervisorID := sql.NullInt64{Int64: int64(t.SupervisorID), Valid: t.SupervisorID != 0}
	err := repo.db.QueryRowContext(ctx, `
		INSERT INTO team (course_id, name, git_url, supervisor_id)
		VALUES ($1, $2, $3, $4)
		RETURNING id`,
		t.CourseID, t.Name, t.GitURL, supervisorID,
	).Scan(&t.ID)
	return t, errors.Wrap(err, "inserting team")
}

func (repo *courseRepository) GetTeamByID(ctx context.Context, id int) (course.Team, error) {
	var t course.Team
	var supervisorID sql.NullInt64
	err := repo.db.QueryRowContext(ctx,
		`SELECT id, course_id, name, git_url, supervisor_id FROM team WHERE id = $1`, id,
	).Scan(&t.ID, &t.CourseID, &t.Name, &t.GitURL, &supervisorID)
	if err == sql.ErrNoRows {
		return course.Team{}, course.ErrNotFound
	}
	t.SupervisorID = int(supervisorID.Int64)
	return t, errors.Wrap(err, "getting team")
}

func (repo *courseRepository) QueryCourseTeams(ctx context.Context, courseID int) ([]course.Team, error) {
	rows, err := repo.db.QueryContext(ctx, `
		SELECT id, course_id, name, git_url, supervisor_id FROM team WHERE course_id = $1 ORDER BY name`,
		courseID,
	)
	if err != nil {
		return nil, errors.Wrap(err, "querying teams")
	}
	defer func() { _ = rows.Close() }()

	var teams []course.Team
	for rows.Next() {
		var t course.Team
		var supervisorID sql.NullInt64
		if err = rows.Scan(&t.ID, &t.CourseID, &t.Name, &t.GitURL, &supervisorID); err != nil {
			return nil, errors.Wrap(err, "scanning team")
		}
		t.SupervisorID = int(supervisorID.Int64)
		teams = append(teams, t)
	}
	return teams, errors.Wrap(rows.Err(), "querying teams")
}

func (repo *courseRepository) CreateDeveloper(ctx context.Context, d course.Developer) (course.Developer, error) {
	err := repo.db.QueryRowContext(ctx, `
		INSERT INTO developer (name, email, photo_url) VALUES ($1, $2, $3) RETURNING id`,
		d.Name, d.Email, d.PhotoURL,
	).Scan(&d.ID)
	return d, errors.Wrap(err, "inserting developer")
}

func (repo *courseRepository) GetDeveloperByID(ctx context.Context, id int) (course.Developer, error) {
	var d course.Developer
	err := repo.db.QueryRowContext(ctx,
		`SELECT id, name, email, photo_url FROM developer WHERE id = $1`, id,
	).Scan(&d.ID, &d.Name, &d.Email, &d.PhotoURL)
	if err == sql.ErrNoRows {
		return course.Developer{}, course.ErrNotFound
	}
	return d, errors.Wrap(err, "getting developer")
}

func (repo *courseRepository) QueryDeveloperTeams(ctx context.Context, developerID int) ([]course.Team, error) {
	rows, err := repo.db.QueryContext(ctx, `
		SELECT t.id, t.course_id, t.name, t.git_url, t.supervisor_id
		FROM team t
		JOIN team_member tm ON tm.team_id = t.id
		WHERE tm.developer_id = $1`,
		developerID,
	)
	if err != nil {
		return nil, errors.Wrap(err, "querying developer teams")
	}
	defer func() { _ = rows.Close() }()

	var teams []course.Team
	for rows.Next() {
		var t course.Team
		var supervisorID sql.NullInt64
		if err = rows.Scan(&t.ID, &t.CourseID, &t.Name, &t.GitURL, &supervisorID); err != nil {
			return nil, errors.Wrap(err, "scanning team")
		}
		t.SupervisorID = int(supervisorID.Int64)
		teams = append(teams, t)
	}
	return teams, errors.Wrap(rows.Err(), "querying developer teams")
}

func (repo *courseRepository) CreateSupervisor(ctx context.Context, s course.Supervisor) (course.Supervisor, error) {
	err := repo.db.QueryRowContext(ctx, `
		INSERT INTO supervisor (name, email) VALUES ($1, $2) RETURNING id`,
		s.Name, s.Email,
	).Scan(&s.ID)
	return s, errors.Wrap(err, "inserting supervisor")
}

func (repo *courseRepository) GetSupervisorByID(ctx context.Context, id int) (course.Supervisor, error) {
	var s course.Supervisor
	err := repo.db.QueryRowContext(ctx,
		`SELECT id, name, email FROM supervisor WHERE id = $1`, id,
	).Scan(&s.ID, &s.Name, &s.Email)
	if err == sql.ErrNoRows {
		return course.Supervisor{}, course.ErrNotFound
	}
	return s, errors.Wrap(err, "getting supervisor")
}

func (repo *courseRepository) AddTeamMember(ctx context.Context, teamID, developerID int) error {
	_, err := repo.db.ExecContext(ctx, `
		INSERT INTO team_member (team_id, developer_id) VALUES ($1, $2) ON CONFLICT DO NOTHING`,
		teamID, developerID,
	)
	return errors.Wrap(err, "adding team member")
}

func (repo *courseRepository) RemoveTeamMember(ctx context.Context, teamID, developerID int) error {
	_, err := repo.db.ExecContext(ctx,
		`DELETE FROM team_member WHERE team_id = $1 AND developer_id = $2`, teamID, developerID,
	)
	return errors.Wrap(err, "removing team member")
}

func (repo *courseRepository) QueryTeamMembers(ctx context.Context, teamID int) ([]course.Developer, error) {
	rows, err := repo.db.QueryContext(ctx, `
		SELECT d.id, d.name, d.email, d.photo_url
		FROM developer d
		JOIN team_member tm ON tm.developer_id = d.id
		WHERE tm.team_id = $1
		ORDER BY d.name`,
		teamID,
	)
	if err != nil {
		return nil, errors.Wrap(err, "querying team members")
	}
	defer func() { _ = rows.Close() }()

	var developers []course.Developer
	for rows.Next() {
		var d course.Developer
		if err = rows.Scan(&d.ID, &d.Name, &d.Email, &d.PhotoURL); err != nil {
			return nil, errors.Wrap(err, "scanning developer")
		}
		developers = append(developers, d)
	}
	return developers, errors.Wrap(rows.Err(), "querying team members")
}

func (repo *courseRepository) CountTeamMembers(ctx context.Context, teamID int) (int, error) {
	var count int
	err := repo.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM team_member WHERE team_id = $1`, teamID,
	).Scan(&count)
	return count, errors.Wrap(err, "counting team members")
}

func (repo *courseRepository) IsTeamMember(ctx context.Context, teamID, developerID int) (bool, error) {
	var exists bool
	err := repo.db.QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM team_member WHERE team_id = $1 AND developer_id = $2)`,
		teamID, developerID,
	).Scan(&exists)
	return exists, errors.Wrap(err, "checking team membership")
}
