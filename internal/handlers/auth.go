package handlers

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"uk.co.dudmesh.bloggr/internal/mailer"
	"uk.co.dudmesh.bloggr/internal/model"
	"uk.co.dudmesh.bloggr/internal/service/federated"
	usersvc "uk.co.dudmesh.bloggr/internal/service/user"
)

const (
	msgRegistered        = "Registration successful! Please log in."
	msgInvalidLogin      = "Incorrect username, email or password."
	msgNotLoggedIn       = "You are not logged in"
	msgIncorrectPassword = "Incorrect password!"
	msgPasswordChanged   = "Password changed successfully!"
	msgResetSent         = "If that email exists, a reset link has been sent."
	msgResetInvalid      = "The password reset link is invalid or has expired!"
	msgPasswordReset     = "Your password has been reset!"
	msgLoginError        = "Error occurred during login"
	msgGoogleCancelled   = "Google authorization was cancelled or failed. Please try again."
	msgInvalidEmail      = "Invalid Email"
	msgGoogleError       = "Error occurred during Google login"
)

type UserService interface {
	Register(ctx context.Context, store usersvc.Store, params *model.CreateUserParams) (*model.User, error)
	Authenticate(ctx context.Context, store usersvc.Store, identifier, password string) (*model.User, error)
	ChangePassword(ctx context.Context, store usersvc.Store, current *model.User, currentPassword, newPassword string) error
	ForgotPassword(ctx context.Context, store usersvc.Store, email string) (string, bool, error)
	CheckResetToken(token string) (string, error)
	ResetPassword(ctx context.Context, store usersvc.Store, token, newPassword string) error
	LinkFederated(ctx context.Context, store usersvc.Store, identity *model.Identity) (*model.User, bool, error)
}

type IdentityProvider interface {
	AuthCodeURL(ctx context.Context, state string) (string, error)
	Identify(ctx context.Context, code string) (*model.Identity, error)
}

type Notifier interface {
	Welcome(ctx context.Context, email, username string) error
	PasswordReset(ctx context.Context, email, token string) error
}

type Dispatcher interface {
	Submit(name string, job mailer.Job) bool
}

// Mail sends welcome messages in the background and reset messages inline.
type Mail struct {
	Notifier   Notifier
	Dispatcher Dispatcher
}

func (m *Mail) welcome(user *model.User) {
	email, username := user.Email, user.Username
	m.Dispatcher.Submit("welcome email", func(ctx context.Context) error {
		return m.Notifier.Welcome(ctx, email, username)
	})
}

func Register(users UserService, mail *Mail) echo.HandlerFunc {
	return func(c echo.Context) error {
		if c.Request().Method == http.MethodGet {
			return render(c, http.StatusOK, "register.html", &Page{Title: "Register"})
		}

		cc := scope(c)
		params := &model.CreateUserParams{}
		if err := c.Bind(params); err != nil {
			return err
		}

		user, err := users.Register(c.Request().Context(), cc.DB, params)
		var validationErr *model.ValidationError
		switch {
		case errors.As(err, &validationErr):
			return renderForm(c, "register.html", "Register", validationErr.Error())
		case errors.Is(err, model.ErrorDuplicateUser):
			return renderForm(c, "register.html", "Register", fmt.Sprintf("User %s is already registered.", params.Username))
		case err != nil:
			return err
		}

		mail.welcome(user)
		return redirect(c, "/auth/login", msgRegistered)
	}
}

func Login(users UserService) echo.HandlerFunc {
	return func(c echo.Context) error {
		if c.Request().Method == http.MethodGet {
			return render(c, http.StatusOK, "login.html", &Page{Title: "Log In"})
		}

		cc := scope(c)
		user, err := users.Authenticate(c.Request().Context(), cc.DB, c.FormValue("username_or_email"), c.FormValue("password"))
		countLogin(methodPassword, err)
		switch {
		case errors.Is(err, model.ErrorInvalidCredentials):
			return renderForm(c, "login.html", "Log In", msgInvalidLogin)
		case err != nil:
			return err
		}

		if err := setSessionUser(c, user); err != nil {
			return err
		}
		return c.Redirect(http.StatusFound, "/")
	}
}

// LoginGoogle sends the browser to the provider. Any failure building the
// redirect lands back on the login page.
func LoginGoogle(provider IdentityProvider) echo.HandlerFunc {
	return func(c echo.Context) error {
		state := uuid.NewString()
		authURL, err := provider.AuthCodeURL(c.Request().Context(), state)
		if err == nil {
			err = putState(c, state)
		}
		if err != nil {
			logErrorf(c, "starting google login: %+v", err)
			return redirect(c, "/auth/login", msgLoginError)
		}
		return c.Redirect(http.StatusFound, authURL)
	}
}

// AuthorizeGoogle completes the provider callback. Every failure degrades to
// a redirect to the login page with a message that hides provider details.
func AuthorizeGoogle(users UserService, provider IdentityProvider, mail *Mail) echo.HandlerFunc {
	return func(c echo.Context) error {
		user, err := federatedLogin(c, users, provider, mail)
		if err == nil {
			err = setSessionUser(c, user)
		}
		countLogin(methodGoogle, err)

		switch {
		case err == nil:
			return c.Redirect(http.StatusFound, "/")
		case federated.IsCancelled(err):
			return redirect(c, "/auth/login", msgGoogleCancelled)
		case errors.Is(err, model.ErrorInvalidEmail):
			return redirect(c, "/auth/login", msgInvalidEmail)
		default:
			logErrorf(c, "google authorization: %+v", err)
			return redirect(c, "/auth/login", msgGoogleError)
		}
	}
}

func federatedLogin(c echo.Context, users UserService, provider IdentityProvider, mail *Mail) (*model.User, error) {
	ctx := c.Request().Context()

	expected, err := takeState(c)
	if err != nil {
		return nil, err
	}
	if c.QueryParam("error") != "" {
		return nil, model.ErrorAuthorizationCancelled
	}
	if expected == "" || c.QueryParam("state") != expected {
		return nil, fmt.Errorf("%w: state mismatch", model.ErrorUpstreamProvider)
	}

	identity, err := provider.Identify(ctx, c.QueryParam("code"))
	if err != nil {
		return nil, err
	}

	user, created, err := users.LinkFederated(ctx, scope(c).DB, identity)
	if err != nil {
		return nil, err
	}
	if created {
		mail.welcome(user)
	}
	return user, nil
}

func Logout() echo.HandlerFunc {
	return func(c echo.Context) error {
		if err := clearSession(c); err != nil {
			return err
		}
		return c.Redirect(http.StatusFound, "/")
	}
}

func ChangePassword(users UserService) echo.HandlerFunc {
	return func(c echo.Context) error {
		cc := scope(c)
		if cc.User == nil {
			return redirect(c, "/auth/login", msgNotLoggedIn)
		}
		if c.Request().Method == http.MethodGet {
			return render(c, http.StatusOK, "change_password.html", &Page{Title: "Change Password"})
		}

		err := users.ChangePassword(c.Request().Context(), cc.DB, cc.User, c.FormValue("current_password"), c.FormValue("new_password"))
		var validationErr *model.ValidationError
		switch {
		case errors.Is(err, model.ErrorNotAuthenticated):
			return redirect(c, "/auth/login", msgNotLoggedIn)
		case errors.Is(err, model.ErrorIncorrectPassword):
			return renderForm(c, "change_password.html", "Change Password", msgIncorrectPassword)
		case errors.As(err, &validationErr):
			return renderForm(c, "change_password.html", "Change Password", validationErr.Error())
		case err != nil:
			return err
		}

		return redirect(c, "/auth/login", msgPasswordChanged)
	}
}

// ForgotPassword answers the same way whether or not the address is known.
// The reset email is sent before responding; delivery failures are only
// logged.
func ForgotPassword(users UserService, mail *Mail) echo.HandlerFunc {
	return func(c echo.Context) error {
		cc := scope(c)
		if cc.User != nil {
			return c.Redirect(http.StatusFound, "/")
		}
		if c.Request().Method == http.MethodGet {
			return render(c, http.StatusOK, "forgot_password.html", &Page{Title: "Forgot Password"})
		}

		ctx := c.Request().Context()
		email := c.FormValue("email")
		token, found, err := users.ForgotPassword(ctx, cc.DB, email)
		switch {
		case err != nil:
			logErrorf(c, "issuing reset token: %+v", err)
		case found:
			if err := mail.Notifier.PasswordReset(ctx, email, token); err != nil {
				logErrorf(c, "sending reset email: %+v", err)
			}
		}

		return redirect(c, "/", msgResetSent)
	}
}

func ResetPassword(users UserService) echo.HandlerFunc {
	return func(c echo.Context) error {
		cc := scope(c)
		token := c.Param("token")
		if _, err := users.CheckResetToken(token); err != nil {
			return redirect(c, "/auth/forgot_password", msgResetInvalid)
		}
		if c.Request().Method == http.MethodGet {
			return render(c, http.StatusOK, "reset_password.html", &Page{Title: "Reset Password"})
		}

		err := users.ResetPassword(c.Request().Context(), cc.DB, token, c.FormValue("new_password"))
		var validationErr *model.ValidationError
		switch {
		case errors.Is(err, model.ErrorTokenExpiredOrInvalid):
			return redirect(c, "/auth/forgot_password", msgResetInvalid)
		case errors.As(err, &validationErr):
			return renderForm(c, "reset_password.html", "Reset Password", validationErr.Error())
		case err != nil:
			return err
		}

		return redirect(c, "/auth/login", msgPasswordReset)
	}
}

func ProfilePage() echo.HandlerFunc {
	return func(c echo.Context) error {
		return render(c, http.StatusOK, "profile_page.html", &Page{Title: "Profile"})
	}
}
