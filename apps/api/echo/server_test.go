package echoapi

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/dgrijalva/jwt-go"
	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"

	"github.com/trezcool/kazi/core"
	"github.com/trezcool/kazi/core/course"
	"github.com/trezcool/kazi/core/grading"
	"github.com/trezcool/kazi/core/task"
	emailsvc "github.com/trezcool/kazi/services/email"
	inmemdb "github.com/trezcool/kazi/storage/database/inmem"
	testutil "github.com/trezcool/kazi/tests"
)

type apiFixture struct {
	conf       *core.Config
	server     Server
	courseRepo course.Repository
	taskSvc    *task.Service

	course     course.Course
	milestone  course.Milestone
	team       course.Team
	supervisor course.Supervisor
	devs       []course.Developer
}

func setup(t *testing.T) *apiFixture {
	t.Helper()
	conf := testutil.NewConfig()

	_en := en.New()
	uni := ut.New(_en, _en)
	translator, _ := uni.GetTranslator("en")
	validate := validator.New()
	if core.Validate == nil {
		core.InitValidators(validate, translator)
	}

	db := inmemdb.NewDB()
	courseRepo := inmemdb.NewCourseRepository(db)
	taskRepo := inmemdb.NewTaskRepository(db)
	gradingRepo := inmemdb.NewGradingRepository(db)
	subRepo := inmemdb.NewPushSubscriptionRepository(db)
	mailSvc := emailsvc.NewConsoleServiceMock(conf)
	logger := testutil.Logger{}

	taskSvc := task.NewService(taskRepo, courseRepo, mailSvc, nil, logger, conf)
	courseSvc := course.NewService(courseRepo)
	gradingSvc := grading.NewService(gradingRepo, taskRepo, courseRepo, logger)

	srv := NewServer(ServerDeps{
		Conf:       conf,
		Logger:     logger,
		TaskSvc:    taskSvc,
		CourseSvc:  courseSvc,
		GradingSvc: gradingSvc,
		SubRepo:    subRepo,
		Validate:   core.Validate,
		Translator: core.Translator,
	})

	crs := testutil.CreateCourse(t, courseRepo, "INF3590", 60, 40)
	milestone := testutil.CreateMilestone(t, courseRepo, crs.ID, "Sprint 1", 100, time.Now().Add(30*24*time.Hour))
	sup := testutil.CreateSupervisor(t, courseRepo, "Prof Kalala")
	team := testutil.CreateTeam(t, courseRepo, crs.ID, "Simba", sup.ID)

	var devs []course.Developer
	for _, name := range []string{"Amani Banza", "Bahati Cibangu", "Chiza Dikembe"} {
		dev := testutil.CreateDeveloper(t, courseRepo, name)
		testutil.AddMembers(t, courseRepo, team.ID, dev.ID)
		devs = append(devs, dev)
	}

	return &apiFixture{
		conf:       conf,
		server:     srv,
		courseRepo: courseRepo,
		taskSvc:    taskSvc,
		course:     crs,
		milestone:  milestone,
		team:       team,
		supervisor: sup,
		devs:       devs,
	}
}

func (f *apiFixture) token(t *testing.T, sub int, name string, isSupervisor bool) string {
	t.Helper()
	claims := &Claims{
		StandardClaims: jwt.StandardClaims{
			Subject:   strconv.Itoa(sub),
			ExpiresAt: time.Now().Add(time.Hour).Unix(),
		},
		Name:         name,
		IsSupervisor: isSupervisor,
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(f.conf.SecretKey))
	if err != nil {
		t.Fatalf("token() failed: %v", err)
	}
	return token
}

func (f *apiFixture) request(t *testing.T, method, path, token string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var buff bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buff).Encode(body); err != nil {
			t.Fatalf("request() failed: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buff)
	req.Header.Set(echoHeaderContentType, echoMIMEApplicationJSON)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	f.server.ServeHTTP(rec, req)
	return rec
}

const (
	echoHeaderContentType   = "Content-Type"
	echoMIMEApplicationJSON = "application/json"
)

func (f *apiFixture) createTask(t *testing.T) task.Task {
	t.Helper()
	dev := f.devs[0]
	tsk, err := f.taskSvc.Create(context.Background(),
		task.Actor{ID: dev.ID, Name: dev.Name}, task.NewTask{
			MilestoneID: f.milestone.ID,
			AssigneeID:  dev.ID,
			TeamID:      f.team.ID,
			Title:       "Implement login",
			Description: "Add the login form.",
			Due:         time.Now().Add(7 * 24 * time.Hour),
		})
	if err != nil {
		t.Fatalf("createTask() failed: %v", err)
	}
	return tsk
}

func Test_server_home(t *testing.T) {
	f := setup(t)
	rec := f.request(t, http.MethodGet, "/", "", nil)
	if rec.Code != http.StatusOK {
		t.Errorf("GET / = %d, want %d", rec.Code, http.StatusOK)
	}
}

func Test_server_auth(t *testing.T) {
	f := setup(t)

	t.Run("missing token", func(t *testing.T) {
		rec := f.request(t, http.MethodGet, "/v1/tasks/1", "", nil)
		if rec.Code != http.StatusUnauthorized {
			t.Errorf("code = %d, want %d: %s", rec.Code, http.StatusUnauthorized, rec.Body)
		}
	})

	t.Run("garbage token", func(t *testing.T) {
		rec := f.request(t, http.MethodGet, "/v1/tasks/1", "not.a.token", nil)
		if rec.Code != http.StatusUnauthorized {
			t.Errorf("code = %d, want %d: %s", rec.Code, http.StatusUnauthorized, rec.Body)
		}
	})

	t.Run("supervisor route forbidden for developers", func(t *testing.T) {
		tsk := f.createTask(t)
		token := f.token(t, f.devs[1].ID, f.devs[1].Name, false)
		rec := f.request(t, http.MethodPost, "/v1/tasks/"+strconv.Itoa(tsk.ID)+"/status", token,
			map[string]interface{}{"status": int(task.StatusAccepted)})
		if rec.Code != http.StatusForbidden {
			t.Errorf("code = %d, want %d: %s", rec.Code, http.StatusForbidden, rec.Body)
		}
	})
}

func Test_taskApi(t *testing.T) {
	f := setup(t)

	t.Run("create", func(t *testing.T) {
		token := f.token(t, f.devs[0].ID, f.devs[0].Name, false)
		rec := f.request(t, http.MethodPost, "/v1/tasks", token, map[string]interface{}{
			"milestone_id": f.milestone.ID,
			"assignee_id":  f.devs[0].ID,
			"team_id":      f.team.ID,
			"title":        "Implement logout",
			"description":  "Clear the session.",
			"due":          time.Now().Add(7 * 24 * time.Hour).Format(time.RFC3339),
		})
		if rec.Code != http.StatusCreated {
			t.Fatalf("code = %d, want %d: %s", rec.Code, http.StatusCreated, rec.Body)
		}
		var tsk task.Task
		if err := json.Unmarshal(rec.Body.Bytes(), &tsk); err != nil {
			t.Fatalf("unmarshalling response: %v", err)
		}
		if tsk.Status != task.StatusReview {
			t.Errorf("Status = %v, want %v", tsk.Status, task.StatusReview)
		}
	})

	t.Run("create without required fields", func(t *testing.T) {
		token := f.token(t, f.devs[0].ID, f.devs[0].Name, false)
		rec := f.request(t, http.MethodPost, "/v1/tasks", token, map[string]interface{}{"title": "incomplete"})
		if rec.Code != http.StatusBadRequest {
			t.Errorf("code = %d, want %d: %s", rec.Code, http.StatusBadRequest, rec.Body)
		}
	})

	t.Run("unknown task", func(t *testing.T) {
		token := f.token(t, f.devs[0].ID, f.devs[0].Name, false)
		rec := f.request(t, http.MethodGet, "/v1/tasks/999", token, nil)
		if rec.Code != http.StatusNotFound {
			t.Errorf("code = %d, want %d: %s", rec.Code, http.StatusNotFound, rec.Body)
		}
	})

	t.Run("vote and duplicate vote", func(t *testing.T) {
		tsk := f.createTask(t)
		token := f.token(t, f.devs[1].ID, f.devs[1].Name, false)
		path := "/v1/tasks/" + strconv.Itoa(tsk.ID) + "/votes"
		body := map[string]interface{}{"phase": int(task.PhaseCreation), "decision": int(task.DecisionAccept)}

		rec := f.request(t, http.MethodPost, path, token, body)
		if rec.Code != http.StatusOK {
			t.Fatalf("code = %d, want %d: %s", rec.Code, http.StatusOK, rec.Body)
		}
		var res VoteResponse
		if err := json.Unmarshal(rec.Body.Bytes(), &res); err != nil {
			t.Fatalf("unmarshalling response: %v", err)
		}
		// 3-person team: implicit self-accept + this vote reaches quorum
		if !res.Transitioned || res.Status != task.StatusWorkingOnIt {
			t.Errorf("result = %+v, want transition to %v", res, task.StatusWorkingOnIt)
		}

		rec = f.request(t, http.MethodPost, path, token, body)
		if rec.Code != http.StatusUnprocessableEntity { // round closed by the transition
			t.Errorf("code = %d, want %d: %s", rec.Code, http.StatusUnprocessableEntity, rec.Body)
		}
	})

	t.Run("submit without completion comment", func(t *testing.T) {
		tsk := f.createTask(t)
		voter := f.token(t, f.devs[1].ID, f.devs[1].Name, false)
		f.request(t, http.MethodPost, "/v1/tasks/"+strconv.Itoa(tsk.ID)+"/votes", voter,
			map[string]interface{}{"phase": int(task.PhaseCreation), "decision": int(task.DecisionAccept)})

		assignee := f.token(t, f.devs[0].ID, f.devs[0].Name, false)
		rec := f.request(t, http.MethodPost, "/v1/tasks/"+strconv.Itoa(tsk.ID)+"/submit", assignee, nil)
		if rec.Code != http.StatusUnprocessableEntity {
			t.Errorf("code = %d, want %d: %s", rec.Code, http.StatusUnprocessableEntity, rec.Body)
		}
	})

	t.Run("supervisor forces acceptance", func(t *testing.T) {
		tsk := f.createTask(t)
		token := f.token(t, f.supervisor.ID, f.supervisor.Name, true)
		rec := f.request(t, http.MethodPost, "/v1/tasks/"+strconv.Itoa(tsk.ID)+"/status", token,
			map[string]interface{}{"status": int(task.StatusAccepted)})
		if rec.Code != http.StatusOK {
			t.Fatalf("code = %d, want %d: %s", rec.Code, http.StatusOK, rec.Body)
		}
		var got task.Task
		if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
			t.Fatalf("unmarshalling response: %v", err)
		}
		if got.Status != task.StatusAccepted {
			t.Errorf("Status = %v, want %v", got.Status, task.StatusAccepted)
		}
	})
}

func Test_courseApi_teamMembers(t *testing.T) {
	f := setup(t)
	token := f.token(t, f.devs[0].ID, f.devs[0].Name, false)

	rec := f.request(t, http.MethodGet, "/v1/teams/"+strconv.Itoa(f.team.ID)+"/developers", token, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("code = %d, want %d: %s", rec.Code, http.StatusOK, rec.Body)
	}
	var members []course.Developer
	if err := json.Unmarshal(rec.Body.Bytes(), &members); err != nil {
		t.Fatalf("unmarshalling response: %v", err)
	}
	var names []string
	for _, m := range members {
		names = append(names, m.Name)
	}
	assert.ElementsMatch(t, names, []string{"Amani Banza", "Bahati Cibangu", "Chiza Dikembe"})
}

func Test_pushApi(t *testing.T) {
	f := setup(t)
	token := f.token(t, f.devs[0].ID, f.devs[0].Name, false)

	rec := f.request(t, http.MethodPost, "/v1/push-subscriptions", token, map[string]interface{}{
		"endpoint": "https://push.example.com/sub/abc",
		"keys":     map[string]string{"p256dh": "BKey", "auth": "AKey"},
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("code = %d, want %d: %s", rec.Code, http.StatusCreated, rec.Body)
	}
	var sub core.PushSubscription
	if err := json.Unmarshal(rec.Body.Bytes(), &sub); err != nil {
		t.Fatalf("unmarshalling response: %v", err)
	}
	if sub.ID == "" || sub.DeveloperID != f.devs[0].ID {
		t.Errorf("subscription = %+v", sub)
	}

	rec = f.request(t, http.MethodDelete, "/v1/push-subscriptions/"+sub.ID, token, nil)
	if rec.Code != http.StatusNoContent {
		t.Errorf("code = %d, want %d: %s", rec.Code, http.StatusNoContent, rec.Body)
	}

	rec = f.request(t, http.MethodDelete, "/v1/push-subscriptions/not-a-uuid", token, nil)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("code = %d, want %d: %s", rec.Code, http.StatusBadRequest, rec.Body)
	}
}
