package task

import (
	"context"
	"fmt"
	"net/mail"

	"github.com/trezcool/kazi/core"
	"github.com/trezcool/kazi/core/course"
)

// Notification dispatch is best effort and runs after the transaction commits.
// A delivery failure never affects the state change that triggered it.

func (svc *Service) notifyCreated(ctx context.Context, t Task, actor Actor) {
	subject := fmt.Sprintf("New task awaiting review: %s", t.Title)
	body := fmt.Sprintf("%s created %q and needs your approval to start working on it.", actor.Name, t.Title)
	svc.notifyTeammates(ctx, t, subject, body, actor.ID, t.AssigneeID)
}

func (svc *Service) notifyEdited(ctx context.Context, t Task, actor Actor) {
	subject := fmt.Sprintf("Task updated: %s", t.Title)
	body := fmt.Sprintf("%s edited %q.", actor.Name, t.Title)
	svc.notifyTeammates(ctx, t, subject, body, actor.ID)
}

func (svc *Service) notifyCommented(ctx context.Context, t Task, actor Actor) {
	if actor.ID == t.AssigneeID {
		return
	}
	subject := fmt.Sprintf("New comment on %s", t.Title)
	body := fmt.Sprintf("%s commented on %q.", actor.Name, t.Title)
	svc.notifyAssignee(ctx, t, subject, body)
}

func (svc *Service) notifyVoted(ctx context.Context, t Task, actor Actor, decision Decision) {
	subject := fmt.Sprintf("New vote on %s", t.Title)
	body := fmt.Sprintf("%s voted %q on %q.", actor.Name, decision, t.Title)
	svc.notifyAssignee(ctx, t, subject, body)
}

func (svc *Service) notifyOpened(ctx context.Context, t Task) {
	subject := fmt.Sprintf("Task approved: %s", t.Title)
	body := fmt.Sprintf("Your team approved %q. You can start working on it.", t.Title)
	svc.notifyAssignee(ctx, t, subject, body)
}

func (svc *Service) notifySubmitted(ctx context.Context, t Task, actor Actor) {
	subject := fmt.Sprintf("Task awaiting your review: %s", t.Title)
	body := fmt.Sprintf("%s submitted %q for review.", actor.Name, t.Title)
	svc.notifyTeammates(ctx, t, subject, body, t.AssigneeID)
}

func (svc *Service) notifyReopened(ctx context.Context, t Task) {
	subject := fmt.Sprintf("Task reopened: %s", t.Title)
	body := fmt.Sprintf("%q was sent back for more work. Check the change requests and resubmit.", t.Title)
	svc.notifyAssignee(ctx, t, subject, body)
}

func (svc *Service) notifyGradeRequested(ctx context.Context, t Task) {
	team, err := svc.courseRepo.GetTeamByID(ctx, t.TeamID)
	if err != nil || team.SupervisorID == 0 {
		return
	}
	sup, err := svc.courseRepo.GetSupervisorByID(ctx, team.SupervisorID)
	if err != nil {
		svc.logger.Warn(fmt.Sprintf("task.notifyGradeRequested: supervisor %d: %v", team.SupervisorID, err))
		return
	}
	subject := fmt.Sprintf("Task ready for grading: %s", t.Title)
	svc.mailSvc.SendMessages(&core.EmailMessage{
		To:      []mail.Address{{Name: sup.Name, Address: sup.Email}},
		Subject: subject,
		BodyStr: fmt.Sprintf("%q passed team review and is waiting for your grade.", t.Title),
	})
}

func (svc *Service) notifyResolved(ctx context.Context, t Task) {
	var subject, body string
	switch t.Status {
	case StatusAccepted:
		subject = fmt.Sprintf("Task accepted: %s", t.Title)
		body = fmt.Sprintf("%q was accepted. Points are in.", t.Title)
	case StatusRejected:
		subject = fmt.Sprintf("Task rejected: %s", t.Title)
		body = fmt.Sprintf("%q was rejected.", t.Title)
	default:
		return
	}

	dev, err := svc.courseRepo.GetDeveloperByID(ctx, t.AssigneeID)
	if err != nil {
		svc.logger.Warn(fmt.Sprintf("task.notifyResolved: developer %d: %v", t.AssigneeID, err))
		return
	}
	svc.mailSvc.SendMessages(&core.EmailMessage{
		To:           []mail.Address{{Name: dev.Name, Address: dev.Email}},
		Subject:      subject,
		TemplateName: "task-resolved",
		TemplateData: struct {
			ID       int
			Name     string
			Title    string
			Points   int
			Accepted bool
		}{t.ID, dev.Name, t.Title, t.Points(), t.Status == StatusAccepted},
	})
	if svc.pushSvc != nil {
		svc.pushSvc.Push(core.PushMessage{
			Title: subject,
			Body:  body,
			URL:   fmt.Sprintf("%s/tasks/%d", svc.conf.FrontendBaseURL, t.ID),
		}, dev.ID)
	}
}

func (svc *Service) notifyAssignee(ctx context.Context, t Task, subject, body string) {
	dev, err := svc.courseRepo.GetDeveloperByID(ctx, t.AssigneeID)
	if err != nil {
		svc.logger.Warn(fmt.Sprintf("task.notifyAssignee: developer %d: %v", t.AssigneeID, err))
		return
	}
	svc.send(t, subject, body, dev)
}

// notifyTeammates mails every member of the task's team except the excluded ids.
func (svc *Service) notifyTeammates(ctx context.Context, t Task, subject, body string, exclude ...int) {
	members, err := svc.courseRepo.QueryTeamMembers(ctx, t.TeamID)
	if err != nil {
		svc.logger.Warn(fmt.Sprintf("task.notifyTeammates: team %d: %v", t.TeamID, err))
		return
	}
	recipients := members[:0]
	for _, m := range members {
		if contains(exclude, m.ID) {
			continue
		}
		recipients = append(recipients, m)
	}
	svc.send(t, subject, body, recipients...)
}

func (svc *Service) send(t Task, subject, body string, recipients ...course.Developer) {
	if len(recipients) == 0 {
		return
	}
	to := make([]mail.Address, 0, len(recipients))
	ids := make([]int, 0, len(recipients))
	for _, r := range recipients {
		to = append(to, mail.Address{Name: r.Name, Address: r.Email})
		ids = append(ids, r.ID)
	}
	svc.mailSvc.SendMessages(&core.EmailMessage{To: to, Subject: subject, BodyStr: body})
	if svc.pushSvc != nil {
		svc.pushSvc.Push(core.PushMessage{
			Title: subject,
			Body:  body,
			URL:   fmt.Sprintf("%s/tasks/%d", svc.conf.FrontendBaseURL, t.ID),
		}, ids...)
	}
}

func contains(ids []int, id int) bool {
	for _, v := range ids {
		if v == id {
			return true
		}
	}
	return false
}
