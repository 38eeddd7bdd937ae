// Package server assembles the echo application: middleware in order, then
// routes.
package server

import (
	"net/http"

	"github.com/gorilla/sessions"
	"github.com/labstack/echo-contrib/echoprometheus"
	"github.com/labstack/echo-contrib/session"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/labstack/gommon/log"
	"github.com/nrednav/cuid2"

	"uk.co.dudmesh.bloggr/internal/handlers"
	"uk.co.dudmesh.bloggr/internal/store"
	"uk.co.dudmesh.bloggr/ui"
)

type Services struct {
	DB       *store.Database
	Sessions sessions.Store
	Renderer echo.Renderer
	Users    handlers.UserService
	Posts    handlers.PostService
	Provider handlers.IdentityProvider
	Mail     *handlers.Mail
	// Metrics enables request metrics. The collectors register globally, so
	// only one server per process may set it.
	Metrics bool
}

var formMethods = []string{http.MethodGet, http.MethodPost}

func New(s *Services) *echo.Echo {
	server := echo.New()
	server.HideBanner = true
	server.Logger.SetLevel(log.INFO)
	server.Renderer = s.Renderer
	server.HTTPErrorHandler = handlers.ErrorHandler

	server.Use(middleware.Recover())
	server.Use(middleware.RequestIDWithConfig(middleware.RequestIDConfig{
		Generator: func() string {
			return cuid2.Generate()
		},
	}))
	if s.Metrics {
		server.Use(echoprometheus.NewMiddleware("bloggr"))
	}
	server.Use(middleware.BodyLimit("1M"))
	server.Use(session.Middleware(s.Sessions))
	server.Use(handlers.RequestScope(s.DB))
	server.Use(handlers.LoadUser)

	server.StaticFS("/static", echo.MustSubFS(ui.Files, "static"))

	server.GET("/", handlers.Index(s.Posts))
	server.Match(formMethods, "/create", handlers.CreatePost(s.Posts), handlers.LoginRequired)
	server.GET("/:id/detailed_view", handlers.PostDetail(s.Posts))
	server.Match(formMethods, "/:id/update", handlers.UpdatePost(s.Posts), handlers.LoginRequired)
	server.POST("/:id/delete", handlers.DeletePost(s.Posts), handlers.LoginRequired)
	server.POST("/:id/like", handlers.LikePost(s.Posts), handlers.LoginRequired)
	server.POST("/:id/unlike", handlers.UnlikePost(s.Posts), handlers.LoginRequired)

	auth := server.Group("/auth")
	auth.Match(formMethods, "/register", handlers.Register(s.Users, s.Mail))
	auth.Match(formMethods, "/login", handlers.Login(s.Users))
	auth.GET("/login/google", handlers.LoginGoogle(s.Provider))
	auth.GET("/authorize/google", handlers.AuthorizeGoogle(s.Users, s.Provider, s.Mail))
	auth.GET("/logout", handlers.Logout())
	auth.Match(formMethods, "/change_password", handlers.ChangePassword(s.Users))
	auth.Match(formMethods, "/forgot_password", handlers.ForgotPassword(s.Users, s.Mail))
	auth.Match(formMethods, "/reset_password/:token", handlers.ResetPassword(s.Users))
	auth.GET("/profile_page", handlers.ProfilePage(), handlers.LoginRequired)

	return server
}
