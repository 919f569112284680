package grading

import (
	"context"
	"fmt"
	"math"

	"github.com/pkg/errors"

	"github.com/trezcool/kazi/core"
	"github.com/trezcool/kazi/core/course"
	"github.com/trezcool/kazi/core/task"
)

var ErrNotFound = errors.New("not found")

type (
	Repository interface {
		GetPointPool(ctx context.Context, developerID, courseID int) (PointPool, error)
		UpsertPointPool(ctx context.Context, pp PointPool) (PointPool, error)
		QueryCoursePointPools(ctx context.Context, courseID int) ([]PointPool, error)

		GetGraphInterval(ctx context.Context, courseID, difficulty, priority int) (GraphInterval, error)
		UpsertGraphInterval(ctx context.Context, gi GraphInterval) (GraphInterval, error)
	}

	Service struct {
		repo       Repository
		taskRepo   task.Repository
		courseRepo course.Repository
		logger     core.Logger
	}
)

func NewService(repo Repository, taskRepo task.Repository, courseRepo course.Repository, logger core.Logger) *Service {
	return &Service{
		repo:       repo,
		taskRepo:   taskRepo,
		courseRepo: courseRepo,
		logger:     logger,
	}
}

// TeamGrade is the accepted share of a team's task points for a milestone,
// as a rounded percentage. Zero total points grades 0.
func (svc *Service) TeamGrade(ctx context.Context, teamID, milestoneID int) (int, error) {
	tg, _, err := svc.milestoneGrades(ctx, teamID, milestoneID, 0)
	return tg, err
}

// DeveloperGrade measures a developer's accepted points against their fair
// share of the team total, capped at 100.
func (svc *Service) DeveloperGrade(ctx context.Context, teamID, developerID, milestoneID int) (int, error) {
	_, dg, err := svc.milestoneGrades(ctx, teamID, milestoneID, developerID)
	return dg, err
}

func (svc *Service) milestoneGrades(ctx context.Context, teamID, milestoneID, developerID int) (int, int, error) {
	tasks, err := svc.taskRepo.QueryTeamMilestoneTasks(ctx, teamID, milestoneID)
	if err != nil {
		return 0, 0, errors.Wrap(err, "querying milestone tasks")
	}

	var total, accepted, devAccepted int
	for _, t := range tasks {
		pts := t.Points()
		total += pts
		if t.Status == task.StatusAccepted {
			accepted += pts
			if t.AssigneeID == developerID {
				devAccepted += pts
			}
		}
	}
	if total == 0 {
		return 0, 0, nil
	}
	teamGrade := round(float64(accepted) / float64(total) * 100)

	if developerID == 0 {
		return teamGrade, 0, nil
	}
	teamSize, err := svc.courseRepo.CountTeamMembers(ctx, teamID)
	if err != nil {
		return 0, 0, errors.Wrap(err, "counting team members")
	}
	if teamSize == 0 {
		return teamGrade, 0, nil
	}
	fairShare := float64(total) / float64(teamSize)
	devGrade := round(float64(devAccepted) / fairShare * 100)
	if devGrade > 100 {
		devGrade = 100
	}
	return teamGrade, devGrade, nil
}

// ProjectGrade is a developer's final course grade: milestone-weighted team
// and individual grades blended by the course's group/individual weights.
func (svc *Service) ProjectGrade(ctx context.Context, developerID, teamID int) (int, error) {
	team, err := svc.courseRepo.GetTeamByID(ctx, teamID)
	if err != nil {
		return 0, errors.Wrap(err, "fetching team")
	}
	crs, err := svc.courseRepo.GetCourseByID(ctx, team.CourseID)
	if err != nil {
		return 0, errors.Wrap(err, "fetching course")
	}
	breakdown, err := svc.MilestoneBreakdown(ctx, teamID, developerID)
	if err != nil {
		return 0, err
	}

	var group, individual float64
	for _, mg := range breakdown {
		group += float64(mg.TeamGrade) * float64(mg.Weight) / 100
		individual += float64(mg.DeveloperGrade) * float64(mg.Weight) / 100
	}
	grade := group*float64(crs.GroupWeight)/100 + individual*float64(crs.IndividualWeight)/100
	return round(grade), nil
}

// MilestoneBreakdown grades each of the team's course milestones. Historical
// data may carry weights that do not sum to 100; that is flagged, not fatal.
func (svc *Service) MilestoneBreakdown(ctx context.Context, teamID, developerID int) ([]MilestoneGrade, error) {
	team, err := svc.courseRepo.GetTeamByID(ctx, teamID)
	if err != nil {
		return nil, errors.Wrap(err, "fetching team")
	}
	milestones, err := svc.courseRepo.QueryCourseMilestones(ctx, team.CourseID)
	if err != nil {
		return nil, errors.Wrap(err, "querying milestones")
	}

	var weightSum int
	breakdown := make([]MilestoneGrade, 0, len(milestones))
	for _, m := range milestones {
		weightSum += m.Weight
		tg, dg, err := svc.milestoneGrades(ctx, teamID, m.ID, developerID)
		if err != nil {
			return nil, err
		}
		breakdown = append(breakdown, MilestoneGrade{
			MilestoneID:    m.ID,
			Name:           m.Name,
			Weight:         m.Weight,
			TeamGrade:      tg,
			DeveloperGrade: dg,
		})
	}
	if weightSum != 100 {
		svc.logger.Warn(fmt.Sprintf("grading: course %d milestone weights sum to %d, not 100", team.CourseID, weightSum))
	}
	return breakdown, nil
}

// SetGraphInterval calibrates the completion-time bounds for one
// (difficulty, priority) bucket of a course.
func (svc *Service) SetGraphInterval(ctx context.Context, courseID int, ngi NewGraphInterval) (GraphInterval, error) {
	if err := ngi.Validate(); err != nil {
		return GraphInterval{}, err
	}
	if _, err := svc.courseRepo.GetCourseByID(ctx, courseID); err != nil {
		return GraphInterval{}, errors.Wrap(err, "fetching course")
	}
	return svc.repo.UpsertGraphInterval(ctx, GraphInterval{
		CourseID:   courseID,
		Difficulty: ngi.Difficulty,
		Priority:   ngi.Priority,
		LowerBound: ngi.LowerBound,
		UpperBound: ngi.UpperBound,
	})
}

func (svc *Service) GraphInterval(ctx context.Context, courseID, difficulty, priority int) (GraphInterval, error) {
	gi, err := svc.repo.GetGraphInterval(ctx, courseID, difficulty, priority)
	if errors.Cause(err) == ErrNotFound {
		return GraphInterval{CourseID: courseID, Difficulty: difficulty, Priority: priority, LowerBound: -1, UpperBound: -1}, nil
	}
	return gi, err
}

func round(f float64) int { return int(math.Round(f)) }
