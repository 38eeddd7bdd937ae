package handlers

import (
	"fmt"
	"net/http"

	"github.com/gorilla/sessions"
	"github.com/labstack/echo-contrib/session"
	"github.com/labstack/echo/v4"

	"uk.co.dudmesh.bloggr/internal/boot"
	"uk.co.dudmesh.bloggr/internal/model"
)

const (
	SessionName = "bloggr"
	userIDKey   = "user_id"
	stateKey    = "oauth_state"
)

// NewSessionStore returns a cookie store signed with the application secret.
// Cookies last for the browser session.
func NewSessionStore(config *boot.Config) sessions.Store {
	store := sessions.NewCookieStore([]byte(config.SecretKey))
	store.Options = &sessions.Options{
		Path:     "/",
		HttpOnly: true,
		Secure:   config.Server.SecureCookies,
		SameSite: http.SameSiteLaxMode,
	}
	return store
}

// getSession returns the request's session. A cookie that fails to verify
// yields a fresh, empty session.
func getSession(c echo.Context) (*sessions.Session, error) {
	sess, err := session.Get(SessionName, c)
	if sess == nil {
		return nil, fmt.Errorf("loading session: %w", err)
	}
	return sess, nil
}

func saveSession(c echo.Context, sess *sessions.Session) error {
	if err := sess.Save(c.Request(), c.Response()); err != nil {
		return fmt.Errorf("saving session: %w", err)
	}
	return nil
}

func sessionUserID(c echo.Context) (model.UserID, bool) {
	sess, err := getSession(c)
	if err != nil {
		return 0, false
	}
	id, ok := sess.Values[userIDKey].(int64)
	return model.UserID(id), ok
}

// setSessionUser drops everything in the session before recording user, so
// nothing from an earlier visitor survives a login.
func setSessionUser(c echo.Context, user *model.User) error {
	sess, err := getSession(c)
	if err != nil {
		return err
	}
	sess.Values = map[interface{}]interface{}{userIDKey: int64(user.ID)}
	return saveSession(c, sess)
}

func clearSession(c echo.Context) error {
	sess, err := getSession(c)
	if err != nil {
		return err
	}
	sess.Values = map[interface{}]interface{}{}
	return saveSession(c, sess)
}

func addFlash(c echo.Context, message string) error {
	sess, err := getSession(c)
	if err != nil {
		return err
	}
	sess.AddFlash(message)
	return saveSession(c, sess)
}

func popFlashes(c echo.Context) ([]string, error) {
	sess, err := getSession(c)
	if err != nil {
		return nil, err
	}
	flashes := sess.Flashes()
	if len(flashes) == 0 {
		return nil, nil
	}

	messages := make([]string, 0, len(flashes))
	for _, f := range flashes {
		if s, ok := f.(string); ok {
			messages = append(messages, s)
		}
	}
	return messages, saveSession(c, sess)
}

// takeState returns and forgets the pending OAuth state.
func takeState(c echo.Context) (string, error) {
	sess, err := getSession(c)
	if err != nil {
		return "", err
	}
	state, _ := sess.Values[stateKey].(string)
	delete(sess.Values, stateKey)
	return state, saveSession(c, sess)
}

func putState(c echo.Context, state string) error {
	sess, err := getSession(c)
	if err != nil {
		return err
	}
	sess.Values[stateKey] = state
	return saveSession(c, sess)
}
