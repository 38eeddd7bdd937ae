package handlers

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"uk.co.dudmesh.bloggr/internal/model"
	"uk.co.dudmesh.bloggr/internal/store"
)

// userKey holds the signed-in user on the underlying echo context, which is
// what the error handler receives.
const userKey = "bloggr.user"

// Context carries the state of a single request: its database handle and
// the signed-in user, nil for anonymous requests.
type Context struct {
	echo.Context
	DB   *store.Handle
	User *model.User
}

func scope(c echo.Context) *Context {
	if cc, ok := c.(*Context); ok {
		return cc
	}
	panic("handlers: request scope middleware not installed")
}

// RequestScope gives each request its own database handle and closes it when
// the request finishes.
func RequestScope(db *store.Database) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			cc := &Context{Context: c, DB: db.Request()}
			defer func() {
				if err := cc.DB.Close(); err != nil {
					logErrorf(c, "closing connection: %+v", err)
				}
			}()
			return next(cc)
		}
	}
}

// LoadUser resolves the session's user id. Requests without one stay
// anonymous and never touch the database; ids that no longer resolve clear
// the session.
func LoadUser(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		cc := scope(c)

		id, ok := sessionUserID(c)
		if !ok {
			return next(cc)
		}

		user, err := cc.DB.UserByID(c.Request().Context(), id)
		switch {
		case errors.Is(err, model.ErrorUserNotFound):
			if err := clearSession(c); err != nil {
				return err
			}
		case err != nil:
			return err
		default:
			cc.User = user
			c.Set(userKey, user)
		}
		return next(cc)
	}
}

func LoginRequired(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		if scope(c).User == nil {
			return c.Redirect(http.StatusFound, "/auth/login")
		}
		return next(c)
	}
}

func logErrorf(c echo.Context, format string, args ...interface{}) {
	id := c.Response().Header().Get(echo.HeaderXRequestID)
	c.Logger().Errorf("[%s] "+format, append([]interface{}{id}, args...)...)
}
