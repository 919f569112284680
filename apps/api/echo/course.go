package echoapi

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/kazi/core/course"
)

type courseApi struct {
	svc *course.Service
}

func registerCourseAPI(g *echo.Group, jwt echo.MiddlewareFunc, svc *course.Service) {
	api := courseApi{svc: svc}

	cg := g.Group("/courses", jwt)
	cg.POST("", api.create, supervisorMiddleware())
	cg.GET("", api.queryActive)
	cg.GET("/:id", api.retrieve)
	cg.POST("/:id/milestones", api.createMilestone, supervisorMiddleware())
	cg.GET("/:id/milestones/current", api.currentMilestone)
	cg.POST("/:id/teams", api.createTeam, supervisorMiddleware())

	tg := g.Group("/teams", jwt)
	tg.GET("/:id", api.retrieveTeam)
	tg.GET("/:id/developers", api.teamMembers)
	tg.POST("/:id/developers", api.addMember, supervisorMiddleware())
	tg.DELETE("/:id/developers/:devID", api.removeMember, supervisorMiddleware())

	dg := g.Group("/developers", jwt, supervisorMiddleware())
	dg.POST("", api.createDeveloper)
}

func (api *courseApi) create(ctx echo.Context) error {
	var data course.NewCourse
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewCourse")
	}
	if err := data.Validate(); err != nil {
		return err
	}

	crs, err := api.svc.CreateCourse(ctx.Request().Context(), data)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusCreated, crs)
}

func (api *courseApi) queryActive(ctx echo.Context) error {
	courses, err := api.svc.QueryActive(ctx.Request().Context())
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, courses)
}

func (api *courseApi) retrieve(ctx echo.Context) error {
	id, err := intParam(ctx, "id")
	if err != nil {
		return err
	}
	crs, err := api.svc.GetCourse(ctx.Request().Context(), id)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, crs)
}

func (api *courseApi) createMilestone(ctx echo.Context) error {
	id, err := intParam(ctx, "id")
	if err != nil {
		return err
	}
	var data course.NewMilestone
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewMilestone")
	}
	if err = data.Validate(); err != nil {
		return err
	}

	m, err := api.svc.CreateMilestone(ctx.Request().Context(), id, data)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusCreated, m)
}

func (api *courseApi) currentMilestone(ctx echo.Context) error {
	id, err := intParam(ctx, "id")
	if err != nil {
		return err
	}
	m, err := api.svc.CurrentMilestone(ctx.Request().Context(), id)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, m)
}

func (api *courseApi) createTeam(ctx echo.Context) error {
	id, err := intParam(ctx, "id")
	if err != nil {
		return err
	}
	var data course.NewTeam
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewTeam")
	}
	if err = data.Validate(); err != nil {
		return err
	}

	team, err := api.svc.CreateTeam(ctx.Request().Context(), id, data)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusCreated, team)
}

func (api *courseApi) retrieveTeam(ctx echo.Context) error {
	id, err := intParam(ctx, "id")
	if err != nil {
		return err
	}
	team, err := api.svc.GetTeam(ctx.Request().Context(), id)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, team)
}

func (api *courseApi) teamMembers(ctx echo.Context) error {
	id, err := intParam(ctx, "id")
	if err != nil {
		return err
	}
	members, err := api.svc.TeamMembers(ctx.Request().Context(), id)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, members)
}

func (api *courseApi) addMember(ctx echo.Context) error {
	id, err := intParam(ctx, "id")
	if err != nil {
		return err
	}
	var data AddMemberRequest
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to AddMemberRequest")
	}
	if err = data.Validate(); err != nil {
		return err
	}

	if err = api.svc.AddMember(ctx.Request().Context(), id, data.DeveloperID); err != nil {
		return err
	}
	return ctx.NoContent(http.StatusNoContent)
}

func (api *courseApi) removeMember(ctx echo.Context) error {
	id, err := intParam(ctx, "id")
	if err != nil {
		return err
	}
	devID, err := intParam(ctx, "devID")
	if err != nil {
		return err
	}

	if err = api.svc.RemoveMember(ctx.Request().Context(), id, devID); err != nil {
		return err
	}
	return ctx.NoContent(http.StatusNoContent)
}

func (api *courseApi) createDeveloper(ctx echo.Context) error {
	var data course.NewDeveloper
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewDeveloper")
	}
	if err := data.Validate(); err != nil {
		return err
	}

	dev, err := api.svc.CreateDeveloper(ctx.Request().Context(), data)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusCreated, dev)
}
