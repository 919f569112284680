package inmemdb

import (
	"context"
	"sort"

	"github.com/trezcool/kazi/core/course"
)

type courseRepository struct {
	db *DB
}

var _ course.Repository = (*courseRepository)(nil)

func NewCourseRepository(db *DB) *courseRepository {
	return &courseRepository{db: db}
}

func (repo *courseRepository) CreateCourse(_ context.Context, c course.Course) (course.Course, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	c.ID = repo.db.nextPK("course")
	repo.db.courses[c.ID] = &c
	return c, nil
}

func (repo *courseRepository) GetCourseByID(_ context.Context, id int) (course.Course, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	if c, ok := repo.db.courses[id]; ok {
		return *c, nil
	}
	return course.Course{}, course.ErrNotFound
}

func (repo *courseRepository) QueryActiveCourses(_ context.Context) ([]course.Course, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	courses := make([]course.Course, 0, len(repo.db.courses))
	for _, c := range repo.db.courses {
		if c.IsActive {
			courses = append(courses, *c)
		}
	}
	sort.Slice(courses, func(i, j int) bool { return courses[i].ID < courses[j].ID })
	return courses, nil
}

func (repo *courseRepository) UpdateCourse(_ context.Context, c course.Course) (course.Course, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	if _, ok := repo.db.courses[c.ID]; !ok {
		return course.Course{}, course.ErrNotFound
	}
	repo.db.courses[c.ID] = &c
	return c, nil
}

func (repo *courseRepository) CreateMilestone(_ context.Context, m course.Milestone) (course.Milestone, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	m.ID = repo.db.nextPK("milestone")
	repo.db.milestones[m.ID] = &m
	return m, nil
}

func (repo *courseRepository) GetMilestoneByID(_ context.Context, id int) (course.Milestone, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	if m, ok := repo.db.milestones[id]; ok {
		return *m, nil
	}
	return course.Milestone{}, course.ErrNotFound
}

func (repo *courseRepository) UpdateMilestone(_ context.Context, m course.Milestone) (course.Milestone, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	if _, ok := repo.db.milestones[m.ID]; !ok {
		return course.Milestone{}, course.ErrNotFound
	}
	repo.db.milestones[m.ID] = &m
	return m, nil
}

func (repo *courseRepository) QueryCourseMilestones(_ context.Context, courseID int) ([]course.Milestone, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	var milestones []course.Milestone
	for _, m := range repo.db.milestones {
		if m.CourseID == courseID {
			milestones = append(milestones, *m)
		}
	}
	sort.Slice(milestones, func(i, j int) bool { return milestones[i].Due.Before(milestones[j].Due) })
	return milestones, nil
}

func (repo *courseRepository) CreateTeam(_ context.Context, t course.Team) (course.Team, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	t.ID = repo.db.nextPK("team")
	repo.db.teams[t.ID] = &t
	repo.db.members[t.ID] = make(map[int]bool)
	return t, nil
}

func (repo *courseRepository) GetTeamByID(_ context.Context, id int) (course.Team, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	if t, ok := repo.db.teams[id]; ok {
		return *t, nil
	}
	return course.Team{}, course.ErrNotFound
}

func (repo *courseRepository) QueryCourseTeams(_ context.Context, courseID int) ([]course.Team, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	var teams []course.Team
	for _, t := range repo.db.teams {
		if t.CourseID == courseID {
			teams = append(teams, *t)
		}
	}
	sort.Slice(teams, func(i, j int) bool { return teams[i].ID < teams[j].ID })
	return teams, nil
}

func (repo *courseRepository) CreateDeveloper(_ context.Context, d course.Developer) (course.Developer, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	d.ID = repo.db.nextPK("developer")
	repo.db.developers[d.ID] = &d
	return d, nil
}

func (repo *courseRepository) GetDeveloperByID(_ context.Context, id int) (course.Developer, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	if d, ok := repo.db.developers[id]; ok {
		return *d, nil
	}
	return course.Developer{}, course.ErrNotFound
}

func (repo *courseRepository) QueryDeveloperTeams(_ context.Context, developerID int) ([]course.Team, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	var teams []course.Team
	for teamID, members := range repo.db.members {
		if members[developerID] {
			if t, ok := repo.db.teams[teamID]; ok {
				teams = append(teams, *t)
			}
		}
	}
	sort.Slice(teams, func(i, j int) bool { return teams[i].ID < teams[j].ID })
	return teams, nil
}

func (repo *courseRepository) CreateSupervisor(_ context.Context, s course.Supervisor) (course.Supervisor, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	s.ID = repo.db.nextPK("supervisor")
	repo.db.supervisors[s.ID] = &s
	return s, nil
}

func (repo *courseRepository) GetSupervisorByID(_ context.Context, id int) (course.Supervisor, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	if s, ok := repo.db.supervisors[id]; ok {
		return *s, nil
	}
	return course.Supervisor{}, course.ErrNotFound
}

func (repo *courseRepository) AddTeamMember(_ context.Context, teamID, developerID int) error {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	members, ok := repo.db.members[teamID]
	if !ok {
		return course.ErrNotFound
	}
	members[developerID] = true
	return nil
}

func (repo *courseRepository) RemoveTeamMember(_ context.Context, teamID, developerID int) error {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	if members, ok := repo.db.members[teamID]; ok {
		delete(members, developerID)
	}
	return nil
}

func (repo *courseRepository) QueryTeamMembers(_ context.Context, teamID int) ([]course.Developer, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	var developers []course.Developer
	for devID := range repo.db.members[teamID] {
		if d, ok := repo.db.developers[devID]; ok {
			developers = append(developers, *d)
		}
	}
	sort.Slice(developers, func(i, j int) bool { return developers[i].ID < developers[j].ID })
	return developers, nil
}

func (repo *courseRepository) CountTeamMembers(_ context.Context, teamID int) (int, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()
	return len(repo.db.members[teamID]), nil
}

func (repo *courseRepository) IsTeamMember(_ context.Context, teamID, developerID int) (bool, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()
	return repo.db.members[teamID][developerID], nil
}
