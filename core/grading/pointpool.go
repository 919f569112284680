package grading

import (
	"context"
	"fmt"
	"sort"

	"github.com/pkg/errors"

	"github.com/trezcool/kazi/core/course"
	"github.com/trezcool/kazi/core/task"
)

// RecomputePointPool rebuilds every developer's raw score for a course from
// scratch: rewarded accepted tasks and penalized rejected ones, plus credit
// or penalty for the accept votes they cast on eventually resolved tasks.
// Safe to run concurrently with ongoing voting; it only reads terminal tasks'
// outcomes, which are immutable.
func (svc *Service) RecomputePointPool(ctx context.Context, courseID int) error {
	if _, err := svc.courseRepo.GetCourseByID(ctx, courseID); err != nil {
		return errors.Wrap(err, "fetching course")
	}
	developers, err := svc.courseDevelopers(ctx, courseID)
	if err != nil {
		return err
	}
	tasks, err := svc.taskRepo.QueryCourseTasks(ctx, courseID)
	if err != nil {
		return errors.Wrap(err, "querying course tasks")
	}

	byID := make(map[int]task.Task, len(tasks))
	for _, t := range tasks {
		byID[t.ID] = t
	}
	intervals := make(map[[2]int]GraphInterval) // (difficulty, priority)

	for _, dev := range developers {
		score := 0

		for _, t := range tasks {
			if t.AssigneeID != dev.ID {
				continue
			}
			switch t.Status {
			case task.StatusAccepted:
				key := [2]int{t.Difficulty, t.Priority}
				gi, ok := intervals[key]
				if !ok {
					if gi, err = svc.GraphInterval(ctx, courseID, t.Difficulty, t.Priority); err != nil {
						return errors.Wrap(err, "fetching graph interval")
					}
					intervals[key] = gi
				}
				if !gi.Calibrated() || gi.Contains(t.CompletionHours()) {
					score++
				}
			case task.StatusRejected:
				score--
			}
		}

		votes, err := svc.taskRepo.QueryVoterCourseVotes(ctx, dev.ID, courseID)
		if err != nil {
			return errors.Wrap(err, "querying developer votes")
		}
		for _, v := range votes {
			if v.Decision != task.DecisionAccept {
				continue
			}
			switch byID[v.TaskID].Status {
			case task.StatusAccepted:
				score++
			case task.StatusRejected:
				score--
			}
		}

		if _, err = svc.repo.UpsertPointPool(ctx, PointPool{
			DeveloperID: dev.ID,
			CourseID:    courseID,
			Points:      score,
		}); err != nil {
			return errors.Wrap(err, fmt.Sprintf("persisting score for developer %d", dev.ID))
		}
	}
	return nil
}

// CoursePointPool recomputes the course's raw scores and returns them scaled
// against the maximum, ranked best first. A non-positive maximum scales
// everyone to 0; negative raws clamp to 0.
func (svc *Service) CoursePointPool(ctx context.Context, courseID int) ([]RankedScore, error) {
	if err := svc.RecomputePointPool(ctx, courseID); err != nil {
		return nil, err
	}
	developers, err := svc.courseDevelopers(ctx, courseID)
	if err != nil {
		return nil, err
	}
	pools, err := svc.repo.QueryCoursePointPools(ctx, courseID)
	if err != nil {
		return nil, errors.Wrap(err, "querying point pools")
	}

	scores := make(map[int]int, len(pools))
	maxScore := 0
	for _, pp := range pools {
		scores[pp.DeveloperID] = pp.Points
		if pp.Points > maxScore {
			maxScore = pp.Points
		}
	}

	ranked := make([]RankedScore, 0, len(developers))
	for _, dev := range developers {
		raw := scores[dev.ID]
		grade := 0
		if maxScore > 0 && raw > 0 {
			if raw == maxScore {
				grade = 100
			} else {
				grade = round(float64(raw) / float64(maxScore) * 100)
			}
		}
		ranked = append(ranked, RankedScore{Developer: dev, Score: raw, Grade: grade})
	}
	sort.SliceStable(ranked, func(i, j int) bool {
		if ranked[i].Grade != ranked[j].Grade {
			return ranked[i].Grade > ranked[j].Grade
		}
		return ranked[i].Developer.Name < ranked[j].Developer.Name
	})
	return ranked, nil
}

// courseDevelopers is the deduplicated union of the course's team rosters.
func (svc *Service) courseDevelopers(ctx context.Context, courseID int) ([]course.Developer, error) {
	teams, err := svc.courseRepo.QueryCourseTeams(ctx, courseID)
	if err != nil {
		return nil, errors.Wrap(err, "querying course teams")
	}
	seen := make(map[int]bool)
	var developers []course.Developer
	for _, team := range teams {
		members, err := svc.courseRepo.QueryTeamMembers(ctx, team.ID)
		if err != nil {
			return nil, errors.Wrap(err, "querying team members")
		}
		for _, m := range members {
			if seen[m.ID] {
				continue
			}
			seen[m.ID] = true
			developers = append(developers, m)
		}
	}
	return developers, nil
}
