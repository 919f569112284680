package course

import (
	"fmt"
	"time"

	"github.com/trezcool/kazi/core"
)

// Semesters
const (
	SemesterFall   = "Fall"
	SemesterSpring = "Spring"
	SemesterSummer = "Summer"
)

var Semesters = []string{SemesterFall, SemesterSpring, SemesterSummer}

type Course struct {
	ID               int       `json:"id"`
	Code             string    `json:"code"`
	Name             string    `json:"name"`
	AcademicYear     string    `json:"academic_year"` // e.g. "2025-2026"
	Semester         string    `json:"semester"`
	GroupWeight      int       `json:"group_weight"`
	IndividualWeight int       `json:"individual_weight"`
	IsActive         bool      `json:"is_active"`
	CreatedAt        time.Time `json:"created_at"` // UTC
	UpdatedAt        time.Time `json:"updated_at"` // UTC
}

func (c Course) TermLabel() string {
	return c.AcademicYear + " " + c.Semester
}

// DefaultAcademicYear returns the academic year ending in the reference year.
func DefaultAcademicYear(reference ...int) string {
	year := time.Now().Year()
	if len(reference) > 0 {
		year = reference[0]
	}
	return fmt.Sprintf("%d-%d", year-1, year)
}

// AcademicYearChoices returns the 4 selectable academic years around the reference year.
func AcademicYearChoices(reference ...int) []string {
	year := time.Now().Year()
	if len(reference) > 0 {
		year = reference[0]
	}
	start := year - 2
	choices := make([]string, 0, 4)
	for y := start; y < start+4; y++ {
		choices = append(choices, fmt.Sprintf("%d-%d", y, y+1))
	}
	return choices
}

type Milestone struct {
	ID          int       `json:"id"`
	CourseID    int       `json:"course_id"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	Weight      int       `json:"weight"` // percentage, all of a course's milestones should sum to 100
	Due         time.Time `json:"due"`
}

type Team struct {
	ID           int    `json:"id"`
	CourseID     int    `json:"course_id"`
	Name         string `json:"name"`
	GitURL       string `json:"git_url"`
	SupervisorID int    `json:"supervisor_id"` // 0 = unsupervised
}

type Developer struct {
	ID       int    `json:"id"`
	Name     string `json:"name"`
	Email    string `json:"email"`
	PhotoURL string `json:"photo_url"`
}

// Supervisor is the team's grading authority (a lecturer).
type Supervisor struct {
	ID    int    `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
}

// NewCourse contains information needed to create a new Course.
type NewCourse struct {
	Code             string `json:"code" validate:"required,max=8"`
	Name             string `json:"name" validate:"required,max=256"`
	AcademicYear     string `json:"academic_year" validate:"omitempty,len=9"`
	Semester         string `json:"semester" validate:"omitempty,oneof=Fall Spring Summer"`
	GroupWeight      int    `json:"group_weight" validate:"min=0,max=100"`
	IndividualWeight int    `json:"individual_weight" validate:"min=0,max=100"`
}

func (nc *NewCourse) Validate() error {
	nc.Code = core.CleanString(nc.Code)
	nc.Name = core.CleanString(nc.Name)
	if nc.AcademicYear == "" {
		nc.AcademicYear = DefaultAcademicYear()
	}
	if nc.Semester == "" {
		nc.Semester = SemesterFall
	}
	if err := core.Validate.Struct(nc); err != nil {
		return err
	}
	if nc.GroupWeight+nc.IndividualWeight != 100 {
		return core.NewValidationError(
			errWeightsSum,
			core.FieldError{Field: "group_weight", Error: errWeightsSum.Error()},
			core.FieldError{Field: "individual_weight", Error: errWeightsSum.Error()},
		)
	}
	return nil
}

// NewMilestone contains information needed to create a new Milestone.
type NewMilestone struct {
	Name        string    `json:"name" validate:"required,max=128"`
	Description string    `json:"description"`
	Weight      int       `json:"weight" validate:"min=1,max=100"`
	Due         time.Time `json:"due" validate:"required"`
}

func (nm *NewMilestone) Validate() error {
	nm.Name = core.CleanString(nm.Name)
	if err := core.Validate.Struct(nm); err != nil {
		return err
	}
	if !nm.Due.After(time.Now()) {
		return core.NewValidationError(errDueInPast, core.FieldError{Field: "due", Error: errDueInPast.Error()})
	}
	return nil
}

// NewTeam contains information needed to create a new Team.
type NewTeam struct {
	Name         string `json:"name" validate:"required,max=256"`
	GitURL       string `json:"git_url" validate:"omitempty,url"`
	SupervisorID int    `json:"supervisor_id"`
}

func (nt *NewTeam) Validate() error {
	nt.Name = core.CleanString(nt.Name)
	return core.Validate.Struct(nt)
}

// NewDeveloper contains information needed to register a Developer.
type NewDeveloper struct {
	Name     string `json:"name" validate:"required,max=256"`
	Email    string `json:"email" validate:"required,email"`
	PhotoURL string `json:"photo_url" validate:"omitempty,url"`
}

func (nd *NewDeveloper) Validate() error {
	nd.Name = core.CleanString(nd.Name)
	nd.Email = core.CleanString(nd.Email, true /* lower */)
	return core.Validate.Struct(nd)
}
