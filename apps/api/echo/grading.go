package echoapi

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/kazi/core/grading"
)

type gradingApi struct {
	svc *grading.Service
}

func registerGradingAPI(g *echo.Group, jwt echo.MiddlewareFunc, svc *grading.Service) {
	api := gradingApi{svc: svc}

	tg := g.Group("/teams", jwt)
	tg.GET("/:id/grade", api.teamGrade)
	tg.GET("/:id/breakdown", api.breakdown)
	tg.GET("/:id/developers/:devID/grade", api.developerGrade)

	cg := g.Group("/courses", jwt)
	cg.GET("/:id/point-pool", api.pointPool)
	cg.POST("/:id/graph-intervals", api.setGraphInterval, supervisorMiddleware())
}

// teamGrade grades one milestone (?milestone=N).
func (api *gradingApi) teamGrade(ctx echo.Context) error {
	id, err := intParam(ctx, "id")
	if err != nil {
		return err
	}
	milestoneID, err := intQueryParam(ctx, "milestone")
	if err != nil {
		return err
	}

	grade, err := api.svc.TeamGrade(ctx.Request().Context(), id, milestoneID)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, echo.Map{"team_id": id, "milestone_id": milestoneID, "grade": grade})
}

// developerGrade is the developer's project grade, or their grade for one
// milestone when ?milestone=N is given.
func (api *gradingApi) developerGrade(ctx echo.Context) error {
	id, err := intParam(ctx, "id")
	if err != nil {
		return err
	}
	devID, err := intParam(ctx, "devID")
	if err != nil {
		return err
	}

	if ctx.QueryParam("milestone") != "" {
		milestoneID, err := intQueryParam(ctx, "milestone")
		if err != nil {
			return err
		}
		grade, err := api.svc.DeveloperGrade(ctx.Request().Context(), id, devID, milestoneID)
		if err != nil {
			return err
		}
		return ctx.JSON(http.StatusOK, echo.Map{"developer_id": devID, "milestone_id": milestoneID, "grade": grade})
	}

	grade, err := api.svc.ProjectGrade(ctx.Request().Context(), devID, id)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, echo.Map{"developer_id": devID, "team_id": id, "grade": grade})
}

func (api *gradingApi) breakdown(ctx echo.Context) error {
	id, err := intParam(ctx, "id")
	if err != nil {
		return err
	}
	var devID int
	if ctx.QueryParam("developer") != "" {
		if devID, err = intQueryParam(ctx, "developer"); err != nil {
			return err
		}
	}

	breakdown, err := api.svc.MilestoneBreakdown(ctx.Request().Context(), id, devID)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, breakdown)
}

func (api *gradingApi) pointPool(ctx echo.Context) error {
	id, err := intParam(ctx, "id")
	if err != nil {
		return err
	}
	ranked, err := api.svc.CoursePointPool(ctx.Request().Context(), id)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, ranked)
}

func (api *gradingApi) setGraphInterval(ctx echo.Context) error {
	id, err := intParam(ctx, "id")
	if err != nil {
		return err
	}
	var data grading.NewGraphInterval
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewGraphInterval")
	}

	gi, err := api.svc.SetGraphInterval(ctx.Request().Context(), id, data)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, gi)
}

func intQueryParam(ctx echo.Context, name string) (int, error) {
	v, err := strconv.Atoi(ctx.QueryParam(name))
	if err != nil || v <= 0 {
		return 0, echo.NewHTTPError(http.StatusBadRequest, "invalid "+name)
	}
	return v, nil
}
