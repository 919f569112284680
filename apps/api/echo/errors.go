package echoapi

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/pkg/errors"

	"github.com/trezcool/kazi/core"
	"github.com/trezcool/kazi/core/course"
	"github.com/trezcool/kazi/core/grading"
	"github.com/trezcool/kazi/core/task"
)

var (
	errUnauthorized  = echo.NewHTTPError(http.StatusUnauthorized, "not authenticated")
	errHttpForbidden = echo.NewHTTPError(http.StatusForbidden, "permission denied")
)

// newAppHTTPErrorHandler returns a custom echo.HTTPErrorHandler that maps
// domain errors to distinguishable statuses, so a client can tell why an
// action was refused, not just that it failed.
// signalShutdown is called whenever a core.shutdown error is caught.
func newAppHTTPErrorHandler(logger core.Logger, signalShutdown func()) echo.HTTPErrorHandler {
	return func(err error, ctx echo.Context) {
		var code int
		var message interface{}

		switch origErr := errors.Cause(err); origErr {
		case task.ErrNotFound, course.ErrNotFound, grading.ErrNotFound:
			code = http.StatusNotFound
			message = origErr.Error()
		case task.ErrDuplicateVote:
			code = http.StatusConflict
			message = origErr.Error()
		case task.ErrNotAuthorized, task.ErrNotAssignee:
			code = http.StatusForbidden
			message = origErr.Error()
		case task.ErrInvalidTransition, task.ErrInvalidPhaseForStatus,
			task.ErrMissingFinalComment, task.ErrInvalidTarget,
			course.ErrAlreadyMember, course.ErrMemberNotFound, course.ErrNoMilestone:
			code = http.StatusUnprocessableEntity
			message = origErr.Error()
		default:
			code, message = classify(err, origErr, ctx, logger, signalShutdown)
		}

		if ctx.Echo().Debug {
			message = err.Error()
		}
		if m, ok := message.(string); ok {
			message = echo.Map{"error": m}
		}

		// Send response
		if !ctx.Response().Committed {
			if ctx.Request().Method == http.MethodHead { // Issue #608
				err = ctx.NoContent(code)
			} else {
				err = ctx.JSON(code, message)
			}
			if err != nil {
				ctx.Echo().Logger.Error(err)
			}
		}
	}
}

func classify(err, origErr error, ctx echo.Context, logger core.Logger, signalShutdown func()) (int, interface{}) {
	switch typErr := origErr.(type) {
	case *echo.HTTPError:
		if typErr == middleware.ErrJWTMissing {
			return http.StatusUnauthorized, typErr.Message
		}
		if typErr.Internal != nil {
			if herr, ok := typErr.Internal.(*echo.HTTPError); ok {
				typErr = herr
			}
		}
		return typErr.Code, typErr.Message

	case validator.ValidationErrors:
		fldErrs := make(map[string]string, len(typErr))
		for _, vErr := range typErr {
			fldErrs[vErr.Field()] = vErr.Translate(core.Translator)
		}
		return http.StatusBadRequest, fldErrs

	case *core.ValidationError:
		if typErr.Fields != nil {
			fldErrs := make(map[string]string, len(typErr.Fields))
			for _, fErr := range typErr.Fields {
				fldErrs[fErr.Field] = fErr.Error
			}
			return http.StatusBadRequest, fldErrs
		}
		return http.StatusBadRequest, typErr.Error()

	default: // any other error is a server error
		msg := http.StatusText(http.StatusInternalServerError)
		if claims, cErr := getContextClaims(ctx); cErr == nil {
			logger.Error(msg, errors.Wrap(err, msg), claims.developer())
		} else {
			logger.Error(msg, errors.Wrap(err, msg))
		}

		// shutting down...
		if core.IsShutdown(err) {
			signalShutdown()
		}
		return http.StatusInternalServerError, msg
	}
}
