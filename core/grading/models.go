package grading

import (
	"errors"

	"github.com/trezcool/kazi/core"
	"github.com/trezcool/kazi/core/course"
)

var errBounds = errors.New("bounds must satisfy 0 <= lower < upper, or both be -1")

// PointPool is a developer's raw peer-review score for a course, recomputed
// from scratch on demand.
type PointPool struct {
	ID          int `json:"id"`
	DeveloperID int `json:"developer_id"`
	CourseID    int `json:"course_id"`
	Points      int `json:"points"`
}

// GraphInterval calibrates the expected completion time, in hours, for tasks
// of one (difficulty, priority) bucket. The default (-1, -1) means
// uncalibrated: every accepted task of the bucket is rewarded.
type GraphInterval struct {
	ID         int     `json:"id"`
	CourseID   int     `json:"course_id"`
	Difficulty int     `json:"difficulty"`
	Priority   int     `json:"priority"`
	LowerBound float64 `json:"lower_bound"`
	UpperBound float64 `json:"upper_bound"`
}

func (gi GraphInterval) Calibrated() bool {
	return gi.LowerBound != -1 || gi.UpperBound != -1
}

// Contains reports whether hours falls strictly within the bounds.
func (gi GraphInterval) Contains(hours float64) bool {
	return gi.LowerBound < hours && hours < gi.UpperBound
}

// MilestoneGrade is one milestone's grades for a team and one of its members.
type MilestoneGrade struct {
	MilestoneID    int    `json:"milestone_id"`
	Name           string `json:"name"`
	Weight         int    `json:"weight"`
	TeamGrade      int    `json:"team_grade"`
	DeveloperGrade int    `json:"developer_grade"`
}

// RankedScore is one row of a course's scaled point pool, ranked best first.
type RankedScore struct {
	Developer course.Developer `json:"developer"`
	Score     int              `json:"score"` // raw
	Grade     int              `json:"grade"` // scaled 0..100
}

// NewGraphInterval contains information needed to calibrate a bucket.
type NewGraphInterval struct {
	Difficulty int     `json:"difficulty" validate:"scale"`
	Priority   int     `json:"priority" validate:"scale"`
	LowerBound float64 `json:"lower_bound"`
	UpperBound float64 `json:"upper_bound"`
}

func (ngi *NewGraphInterval) Validate() error {
	if err := core.Validate.Struct(ngi); err != nil {
		return err
	}
	if ngi.LowerBound == -1 && ngi.UpperBound == -1 {
		return nil
	}
	if ngi.LowerBound < 0 || ngi.UpperBound <= ngi.LowerBound {
		return core.NewValidationError(errBounds,
			core.FieldError{Field: "lower_bound", Error: errBounds.Error()},
			core.FieldError{Field: "upper_bound", Error: errBounds.Error()},
		)
	}
	return nil
}
