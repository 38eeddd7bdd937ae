package handlers

import (
	"errors"
	"net/http"
	"net/url"

	"github.com/labstack/echo/v4"

	"uk.co.dudmesh.bloggr/internal/model"
)

// Page is the data every view is rendered with.
type Page struct {
	Title   string
	User    *model.User
	Flashes []string
	Form    url.Values
	Posts   []model.Post
	Post    *model.Post
	Message string
}

// render fills in the signed-in user and pending flashes. Flashes already on
// p are shown after the queued ones.
func render(c echo.Context, status int, name string, p *Page) error {
	flashes, err := popFlashes(c)
	if err != nil {
		return err
	}
	p.User = scope(c).User
	p.Flashes = append(flashes, p.Flashes...)
	return c.Render(status, name, p)
}

// renderForm re-displays a submitted form with message.
func renderForm(c echo.Context, name, title, message string) error {
	form, err := c.FormParams()
	if err != nil {
		return err
	}
	return render(c, http.StatusOK, name, &Page{Title: title, Form: form, Flashes: []string{message}})
}

func redirect(c echo.Context, path string, flashes ...string) error {
	for _, f := range flashes {
		if err := addFlash(c, f); err != nil {
			return err
		}
	}
	return c.Redirect(http.StatusFound, path)
}

// ErrorHandler renders failures as an error page. Not-found and forbidden
// errors from the services keep their meaning; anything else is logged and
// shown as a 500.
func ErrorHandler(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}

	code := http.StatusInternalServerError
	var httpErr *echo.HTTPError
	switch {
	case errors.As(err, &httpErr):
		code = httpErr.Code
	case errors.Is(err, model.ErrorPostNotFound), errors.Is(err, model.ErrorUserNotFound):
		code = http.StatusNotFound
	case errors.Is(err, model.ErrorForbidden):
		code = http.StatusForbidden
	}
	if code >= http.StatusInternalServerError {
		logErrorf(c, "%s %s: %+v", c.Request().Method, c.Request().URL.Path, err)
	}

	p := &Page{Title: http.StatusText(code), Message: errorMessage(code)}
	if user, ok := c.Get(userKey).(*model.User); ok {
		p.User = user
	}
	if c.Request().Method == http.MethodHead {
		err = c.NoContent(code)
	} else {
		err = c.Render(code, "error.html", p)
	}
	if err != nil {
		logErrorf(c, "rendering error page: %+v", err)
	}
}

func errorMessage(code int) string {
	switch code {
	case http.StatusNotFound:
		return "The page you asked for does not exist."
	case http.StatusForbidden:
		return "You are not allowed to do that."
	case http.StatusMethodNotAllowed:
		return "That method is not allowed here."
	default:
		return "Something went wrong on our side."
	}
}
