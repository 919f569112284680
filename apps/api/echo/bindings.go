package echoapi

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/trezcool/kazi/core"
	"github.com/trezcool/kazi/core/task"
)

var errInvalidID = echo.NewHTTPError(http.StatusBadRequest, "invalid id")

type (
	VoteRequest struct {
		Phase    task.Phase    `json:"phase" validate:"required"`
		Decision task.Decision `json:"decision" validate:"required"`
	}

	ForceStatusRequest struct {
		Status task.Status `json:"status" validate:"required"`
	}

	AddMemberRequest struct {
		DeveloperID int `json:"developer_id" validate:"required"`
	}

	PushSubscriptionRequest struct {
		Endpoint string `json:"endpoint" validate:"required,url"`
		Keys     struct {
			P256dh string `json:"p256dh" validate:"required"`
			Auth   string `json:"auth" validate:"required"`
		} `json:"keys"`
	}

	VoteResponse struct {
		task.VoteResult
		StatusLabel string `json:"status_label"`
	}
)

func (r *VoteRequest) Validate() error             { return core.Validate.Struct(r) }
func (r *ForceStatusRequest) Validate() error      { return core.Validate.Struct(r) }
func (r *AddMemberRequest) Validate() error        { return core.Validate.Struct(r) }
func (r *PushSubscriptionRequest) Validate() error { return core.Validate.Struct(r) }

func intParam(ctx echo.Context, name string) (int, error) {
	id, err := strconv.Atoi(ctx.Param(name))
	if err != nil || id <= 0 {
		return 0, errInvalidID
	}
	return id, nil
}
