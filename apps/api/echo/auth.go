package echoapi

import (
	"strconv"

	"github.com/dgrijalva/jwt-go"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/trezcool/kazi/core"
	"github.com/trezcool/kazi/core/course"
	"github.com/trezcool/kazi/core/task"
)

// Tokens are issued by the university's identity portal; this API only
// verifies them and maps the claims to a caller identity.

const contextTokenKey = "actorToken"

// Claims represents the authorization claims transmitted via a JWT.
type Claims struct {
	jwt.StandardClaims
	Name         string `json:"name,omitempty"`
	Email        string `json:"email,omitempty"`
	IsSupervisor bool   `json:"is_supervisor,omitempty"`
}

func newJWTConfig(conf *core.Config) middleware.JWTConfig {
	return middleware.JWTConfig{
		SigningKey:    []byte(conf.SecretKey),
		SigningMethod: middleware.AlgorithmHS256,
		ContextKey:    contextTokenKey,
		Claims:        new(Claims),
	}
}

func (c Claims) actor() task.Actor {
	id, _ := strconv.Atoi(c.Subject)
	return task.Actor{
		ID:           id,
		Name:         c.Name,
		IsSupervisor: c.IsSupervisor,
	}
}

func (c Claims) developer() course.Developer {
	id, _ := strconv.Atoi(c.Subject)
	return course.Developer{ID: id, Name: c.Name, Email: c.Email}
}

func getContextClaims(ctx echo.Context) (Claims, error) {
	if token, ok := ctx.Get(contextTokenKey).(*jwt.Token); ok {
		if claims, ok := token.Claims.(*Claims); ok {
			return *claims, nil
		}
	}
	return Claims{}, errUnauthorized
}

func getContextActor(ctx echo.Context) (task.Actor, error) {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return task.Actor{}, err
	}
	return claims.actor(), nil
}

// supervisorMiddleware rejects callers without the supervisor claim.
func supervisorMiddleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			claims, err := getContextClaims(ctx)
			if err != nil {
				return err
			}
			if !claims.IsSupervisor {
				return errHttpForbidden
			}
			return next(ctx)
		}
	}
}
