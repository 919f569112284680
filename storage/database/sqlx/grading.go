package sqlxrepos

import (
	"context"
	"database/sql"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"

	"github.com/trezcool/kazi/core/grading"
)

type gradingRepository struct {
	db *sqlx.DB
}

var _ grading.Repository = (*gradingRepository)(nil)

func NewGradingRepository(db *sql.DB) *gradingRepository {
	return &gradingRepository{db: sqlx.NewDb(db, "postgres")}
}

func (repo *gradingRepository) GetPointPool(ctx context.Context, developerID, courseID int) (grading.PointPool, error) {
	var pp grading.PointPool
	err := repo.db.QueryRowContext(ctx,
		`SELECT id, developer_id, course_id, points FROM point_pool WHERE developer_id = $1 AND course_id = $2`,
		developerID, courseID,
	).Scan(&pp.ID, &pp.DeveloperID, &pp.CourseID, &pp.Points)
	if err == sql.ErrNoRows {
		return grading.PointPool{}, grading.ErrNotFound
	}
	return pp, errors.Wrap(err, "getting point pool")
}

func (repo *gradingRepository) UpsertPointPool(ctx context.Context, pp grading.PointPool) (grading.PointPool, error) {
	err := repo.db.QueryRowContext(ctx, `
		INSERT INTO point_pool (developer_id, course_id, points)
		VALUES ($1, $2, $3)
		ON CONFLICT (developer_id, course_id) DO UPDATE SET points = EXCLUDED.points
		RETURNING id`,
		pp.DeveloperID, pp.CourseID, pp.Points,
	).Scan(&pp.ID)
	return pp, errors.Wrap(err, "upserting point pool")
}

func (repo *gradingRepository) QueryCoursePointPools(ctx context.Context, courseID int) ([]grading.PointPool, error) {
	rows, err := repo.db.QueryContext(ctx,
		`SELECT id, developer_id, course_id, points FROM point_pool WHERE course_id = $1`, courseID,
	)
	if err != nil {
		return nil, errors.Wrap(err, "querying point pools")
	}
	defer func() { _ = rows.Close() }()

	var pools []grading.PointPool
	for rows.Next() {
		var pp grading.PointPool
		if err = rows.Scan(&pp.ID, &pp.DeveloperID, &pp.CourseID, &pp.Points); err != nil {
			return nil, errors.Wrap(err, "scanning point pool")
		}
		pools = append(pools, pp)
	}
	return pools, errors.Wrap(rows.Err(), "querying point pools")
}

func (repo *gradingRepository) GetGraphInterval(ctx context.Context, courseID, difficulty, priority int) (grading.GraphInterval, error) {
	var gi grading.GraphInterval
	err := repo.db.QueryRowContext(ctx, `
		SELECT id, course_id, difficulty, priority, lower_bound, upper_bound
		FROM graph_interval WHERE course_id = $1 AND difficulty = $2 AND priority = $3`,
		courseID, difficulty, priority,
	).Scan(&gi.ID, &gi.CourseID, &gi.Difficulty, &gi.Priority, &gi.LowerBound, &gi.UpperBound)
	if err == sql.ErrNoRows {
		return grading.GraphInterval{}, grading.ErrNotFound
	}
	return gi, errors.Wrap(err, "getting graph interval")
}

func (repo *gradingRepository) UpsertGraphInterval(ctx context.Context, gi grading.GraphInterval) (grading.GraphInterval, error) {
	err := repo.db.QueryRowContext(ctx, `
		INSERT INTO graph_interval (course_id, difficulty, priority, lower_bound, upper_bound)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (course_id, difficulty, priority)
		DO UPDATE SET lower_bound = EXCLUDED.lower_bound, upper_bound = EXCLUDED.upper_bound
		RETURNING id`,
		gi.CourseID, gi.Difficulty, gi.Priority, gi.LowerBound, gi.UpperBound,
	).Scan(&gi.ID)
	return gi, errors.Wrap(err, "upserting graph interval")
}
