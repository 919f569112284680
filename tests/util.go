package testutil

import (
	"context"
	"net/mail"
	"strings"
	"testing"
	"time"

	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"

	"github.com/trezcool/kazi/core"
	"github.com/trezcool/kazi/core/course"
)

// NewConfig returns a config for tests; nothing is read from the environment.
func NewConfig() *core.Config {
	return &core.Config{
		Debug:            true,
		TestMode:         true,
		Env:              "TEST",
		AppName:          "Kazi",
		SecretKey:        "s3cr3t",
		FrontendBaseURL:  "http://localhost:3000",
		DefaultFromEmail: mail.Address{Name: "Kazi", Address: "noreply@localhost"},
	}
}

// InitValidators sets up the shared validator once; safe to call from every test.
func InitValidators() {
	if core.Validate != nil {
		return
	}
	_en := en.New()
	uni := ut.New(_en, _en)
	translator, _ := uni.GetTranslator("en")
	core.InitValidators(validator.New(), translator)
}

// Logger discards everything.
type Logger struct{}

var _ core.Logger = Logger{}

func (Logger) Debug(string, ...interface{}) {}
func (Logger) Info(string, ...interface{})  {}
func (Logger) Warn(string, ...interface{})  {}
func (Logger) Error(string, ...interface{}) {}
func (Logger) Fatal(string, ...interface{}) {}

func CreateCourse(t *testing.T, repo course.Repository, code string, groupWeight, individualWeight int) course.Course {
	t.Helper()
	now := time.Now().UTC()
	crs, err := repo.CreateCourse(context.Background(), course.Course{
		Code:             code,
		Name:             code + " name",
		AcademicYear:     course.DefaultAcademicYear(),
		Semester:         course.SemesterFall,
		GroupWeight:      groupWeight,
		IndividualWeight: individualWeight,
		IsActive:         true,
		CreatedAt:        now,
		UpdatedAt:        now,
	})
	if err != nil {
		t.Fatalf("CreateCourse() failed: %v", err)
	}
	return crs
}

func CreateMilestone(t *testing.T, repo course.Repository, courseID int, name string, weight int, due time.Time) course.Milestone {
	t.Helper()
	m, err := repo.CreateMilestone(context.Background(), course.Milestone{
		CourseID: courseID,
		Name:     name,
		Weight:   weight,
		Due:      due,
	})
	if err != nil {
		t.Fatalf("CreateMilestone() failed: %v", err)
	}
	return m
}

func CreateTeam(t *testing.T, repo course.Repository, courseID int, name string, supervisorID int) course.Team {
	t.Helper()
	team, err := repo.CreateTeam(context.Background(), course.Team{
		CourseID:     courseID,
		Name:         name,
		SupervisorID: supervisorID,
	})
	if err != nil {
		t.Fatalf("CreateTeam() failed: %v", err)
	}
	return team
}

func CreateDeveloper(t *testing.T, repo course.Repository, name string) course.Developer {
	t.Helper()
	email := strings.ToLower(strings.ReplaceAll(name, " ", ".")) + "@test.cd"
	dev, err := repo.CreateDeveloper(context.Background(), course.Developer{Name: name, Email: email})
	if err != nil {
		t.Fatalf("CreateDeveloper() failed: %v", err)
	}
	return dev
}

func CreateSupervisor(t *testing.T, repo course.Repository, name string) course.Supervisor {
	t.Helper()
	email := strings.ToLower(strings.ReplaceAll(name, " ", ".")) + "@test.cd"
	sup, err := repo.CreateSupervisor(context.Background(), course.Supervisor{Name: name, Email: email})
	if err != nil {
		t.Fatalf("CreateSupervisor() failed: %v", err)
	}
	return sup
}

func AddMembers(t *testing.T, repo course.Repository, teamID int, developerIDs ...int) {
	t.Helper()
	for _, devID := range developerIDs {
		if err := repo.AddTeamMember(context.Background(), teamID, devID); err != nil {
			t.Fatalf("AddMembers() failed: %v", err)
		}
	}
}
