package course

import (
	"context"
	"errors"
	"time"
)

var (
	// errors
	ErrNotFound       = errors.New("not found")
	ErrAlreadyMember  = errors.New("developer is already on a team for this course")
	errWeightsSum     = errors.New("group and individual weights must sum to 100")
	errDueInPast      = errors.New("due date is in the past")
	ErrNoMilestone    = errors.New("course has no upcoming milestone")
	ErrMemberNotFound = errors.New("developer is not a member of this team")
)

type (
	Repository interface {
		CreateCourse(ctx context.Context, c Course) (Course, error)
		GetCourseByID(ctx context.Context, id int) (Course, error)
		QueryActiveCourses(ctx context.Context) ([]Course, error)
		UpdateCourse(ctx context.Context, c Course) (Course, error)

		CreateMilestone(ctx context.Context, m Milestone) (Milestone, error)
		GetMilestoneByID(ctx context.Context, id int) (Milestone, error)
		UpdateMilestone(ctx context.Context, m Milestone) (Milestone, error)
		// QueryCourseMilestones returns a course's milestones ordered by due date, ascending.
		QueryCourseMilestones(ctx context.Context, courseID int) ([]Milestone, error)

		CreateTeam(ctx context.Context, t Team) (Team, error)
		GetTeamByID(ctx context.Context, id int) (Team, error)
		QueryCourseTeams(ctx context.Context, courseID int) ([]Team, error)

		CreateDeveloper(ctx context.Context, d Developer) (Developer, error)
		GetDeveloperByID(ctx context.Context, id int) (Developer, error)
		QueryDeveloperTeams(ctx context.Context, developerID int) ([]Team, error)

		CreateSupervisor(ctx context.Context, s Supervisor) (Supervisor, error)
		GetSupervisorByID(ctx context.Context, id int) (Supervisor, error)

		AddTeamMember(ctx context.Context, teamID, developerID int) error
		RemoveTeamMember(ctx context.Context, teamID, developerID int) error
		QueryTeamMembers(ctx context.Context, teamID int) ([]Developer, error)
		CountTeamMembers(ctx context.Context, teamID int) (int, error)
		IsTeamMember(ctx context.Context, teamID, developerID int) (bool, error)
	}

	Service struct {
		repo Repository
	}
)

func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

func (svc *Service) CreateCourse(ctx context.Context, nc NewCourse) (Course, error) {
	now := time.Now().UTC()
	return svc.repo.CreateCourse(ctx, Course{
		Code:             nc.Code,
		Name:             nc.Name,
		AcademicYear:     nc.AcademicYear,
		Semester:         nc.Semester,
		GroupWeight:      nc.GroupWeight,
		IndividualWeight: nc.IndividualWeight,
		IsActive:         true,
		CreatedAt:        now,
		UpdatedAt:        now,
	})
}

func (svc *Service) GetCourse(ctx context.Context, id int) (Course, error) {
	return svc.repo.GetCourseByID(ctx, id)
}

func (svc *Service) QueryActive(ctx context.Context) ([]Course, error) {
	return svc.repo.QueryActiveCourses(ctx)
}

func (svc *Service) CreateMilestone(ctx context.Context, courseID int, nm NewMilestone) (Milestone, error) {
	if _, err := svc.repo.GetCourseByID(ctx, courseID); err != nil {
		return Milestone{}, err
	}
	return svc.repo.CreateMilestone(ctx, Milestone{
		CourseID:    courseID,
		Name:        nm.Name,
		Description: nm.Description,
		Weight:      nm.Weight,
		Due:         nm.Due,
	})
}

// CurrentMilestone returns the course's earliest milestone that is not yet due.
func (svc *Service) CurrentMilestone(ctx context.Context, courseID int) (Milestone, error) {
	milestones, err := svc.repo.QueryCourseMilestones(ctx, courseID)
	if err != nil {
		return Milestone{}, err
	}
	now := time.Now()
	for _, m := range milestones {
		if m.Due.After(now) {
			return m, nil
		}
	}
	return Milestone{}, ErrNoMilestone
}

func (svc *Service) CreateTeam(ctx context.Context, courseID int, nt NewTeam) (Team, error) {
	if _, err := svc.repo.GetCourseByID(ctx, courseID); err != nil {
		return Team{}, err
	}
	if nt.SupervisorID != 0 {
		if _, err := svc.repo.GetSupervisorByID(ctx, nt.SupervisorID); err != nil {
			return Team{}, err
		}
	}
	return svc.repo.CreateTeam(ctx, Team{
		CourseID:     courseID,
		Name:         nt.Name,
		GitURL:       nt.GitURL,
		SupervisorID: nt.SupervisorID,
	})
}

func (svc *Service) GetTeam(ctx context.Context, id int) (Team, error) {
	return svc.repo.GetTeamByID(ctx, id)
}

func (svc *Service) CreateDeveloper(ctx context.Context, nd NewDeveloper) (Developer, error) {
	return svc.repo.CreateDeveloper(ctx, Developer{
		Name:     nd.Name,
		Email:    nd.Email,
		PhotoURL: nd.PhotoURL,
	})
}

// AddMember puts a developer on a team. A developer may belong to at most one
// team per course; rosters can change mid-milestone.
func (svc *Service) AddMember(ctx context.Context, teamID, developerID int) error {
	team, err := svc.repo.GetTeamByID(ctx, teamID)
	if err != nil {
		return err
	}
	if _, err = svc.repo.GetDeveloperByID(ctx, developerID); err != nil {
		return err
	}
	teams, err := svc.repo.QueryDeveloperTeams(ctx, developerID)
	if err != nil {
		return err
	}
	for _, t := range teams {
		if t.CourseID == team.CourseID {
			return ErrAlreadyMember
		}
	}
	return svc.repo.AddTeamMember(ctx, teamID, developerID)
}

func (svc *Service) RemoveMember(ctx context.Context, teamID, developerID int) error {
	ok, err := svc.repo.IsTeamMember(ctx, teamID, developerID)
	if err != nil {
		return err
	}
	if !ok {
		return ErrMemberNotFound
	}
	return svc.repo.RemoveTeamMember(ctx, teamID, developerID)
}

func (svc *Service) TeamMembers(ctx context.Context, teamID int) ([]Developer, error) {
	return svc.repo.QueryTeamMembers(ctx, teamID)
}
