package echoapi

import (
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/kazi/core"
)

type pushApi struct {
	repo core.PushSubscriptionRepository
}

func registerPushAPI(g *echo.Group, jwt echo.MiddlewareFunc, repo core.PushSubscriptionRepository) {
	api := pushApi{repo: repo}

	pg := g.Group("/push-subscriptions", jwt)
	pg.POST("", api.subscribe)
	pg.DELETE("/:id", api.unsubscribe)
}

func (api *pushApi) subscribe(ctx echo.Context) error {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return err
	}
	var data PushSubscriptionRequest
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to PushSubscriptionRequest")
	}
	if err = data.Validate(); err != nil {
		return err
	}

	developerID, _ := strconv.Atoi(claims.Subject)
	sub, err := api.repo.CreatePushSubscription(ctx.Request().Context(), core.PushSubscription{
		ID:          uuid.New().String(),
		DeveloperID: developerID,
		Endpoint:    data.Endpoint,
		P256dh:      data.Keys.P256dh,
		Auth:        data.Keys.Auth,
		CreatedAt:   time.Now().UTC(),
	})
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusCreated, sub)
}

func (api *pushApi) unsubscribe(ctx echo.Context) error {
	if _, err := uuid.Parse(ctx.Param("id")); err != nil {
		return errInvalidID
	}
	if err := api.repo.DeletePushSubscription(ctx.Request().Context(), ctx.Param("id")); err != nil {
		return err
	}
	return ctx.NoContent(http.StatusNoContent)
}
