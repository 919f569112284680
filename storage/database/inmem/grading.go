package inmemdb

import (
	"context"
	"sort"

	"github.com/trezcool/kazi/core/grading"
)

type gradingRepository struct {
	db *DB
}

var _ grading.Repository = (*gradingRepository)(nil)

func NewGradingRepository(db *DB) *gradingRepository {
	return &gradingRepository{db: db}
}

func (repo *gradingRepository) GetPointPool(_ context.Context, developerID, courseID int) (grading.PointPool, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	for _, pp := range repo.db.pools {
		if pp.DeveloperID == developerID && pp.CourseID == courseID {
			return *pp, nil
		}
	}
	return grading.PointPool{}, grading.ErrNotFound
}

func (repo *gradingRepository) UpsertPointPool(_ context.Context, pp grading.PointPool) (grading.PointPool, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	for _, existing := range repo.db.pools {
		if existing.DeveloperID == pp.DeveloperID && existing.CourseID == pp.CourseID {
			existing.Points = pp.Points
			return *existing, nil
		}
	}
	pp.ID = repo.db.nextPK("point_pool")
	repo.db.pools[pp.ID] = &pp
	return pp, nil
}

func (repo *gradingRepository) QueryCoursePointPools(_ context.Context, courseID int) ([]grading.PointPool, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	var pools []grading.PointPool
	for _, pp := range repo.db.pools {
		if pp.CourseID == courseID {
			pools = append(pools, *pp)
		}
	}
	sort.Slice(pools, func(i, j int) bool { return pools[i].ID < pools[j].ID })
	return pools, nil
}

func (repo *gradingRepository) GetGraphInterval(_ context.Context, courseID, difficulty, priority int) (grading.GraphInterval, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	for _, gi := range repo.db.intervals {
		if gi.CourseID == courseID && gi.Difficulty == difficulty && gi.Priority == priority {
			return *gi, nil
		}
	}
	return grading.GraphInterval{}, grading.ErrNotFound
}

func (repo *gradingRepository) UpsertGraphInterval(_ context.Context, gi grading.GraphInterval) (grading.GraphInterval, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	for _, existing := range repo.db.intervals {
		if existing.CourseID == gi.CourseID && existing.Difficulty == gi.Difficulty && existing.Priority == gi.Priority {
			existing.LowerBound = gi.LowerBound
			existing.UpperBound = gi.UpperBound
			return *existing, nil
		}
	}
	gi.ID = repo.db.nextPK("graph_interval")
	repo.db.intervals[gi.ID] = &gi
	return gi, nil
}
