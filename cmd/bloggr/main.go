package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"time"

	"github.com/labstack/echo-contrib/echoprometheus"
	"github.com/labstack/echo/v4"
	"github.com/labstack/gommon/log"

	"uk.co.dudmesh.bloggr/internal/boot"
	"uk.co.dudmesh.bloggr/internal/handlers"
	"uk.co.dudmesh.bloggr/internal/mailer"
	"uk.co.dudmesh.bloggr/internal/server"
	"uk.co.dudmesh.bloggr/internal/service/federated"
	"uk.co.dudmesh.bloggr/internal/service/post"
	"uk.co.dudmesh.bloggr/internal/service/user"
	"uk.co.dudmesh.bloggr/internal/store"
	"uk.co.dudmesh.bloggr/internal/token"
	"uk.co.dudmesh.bloggr/ui"
)

const usage = `usage: bloggr [command]

commands:
  serve     run the web server (default)
  init-db   clear existing data and create new tables`

func main() {
	config, err := boot.Load()
	if err != nil {
		log.Fatalf("boot: %+v", err)
	}

	command := "serve"
	if len(os.Args) > 1 {
		command = os.Args[1]
	}

	switch command {
	case "serve":
		serve(config)
	case "init-db":
		if err := initDB(config); err != nil {
			log.Fatalf("init-db: %+v", err)
		}
		fmt.Println("Initialized the database.")
	default:
		fmt.Fprintln(os.Stderr, usage)
		os.Exit(2)
	}
}

func initDB(config *boot.Config) error {
	db, err := store.Open(config.Database)
	if err != nil {
		return err
	}
	defer db.Close()
	return db.Init(context.Background())
}

func serve(config *boot.Config) {
	db, err := store.Open(config.Database)
	if err != nil {
		log.Fatalf("store: %+v", err)
	}
	defer db.Close()

	t, err := ui.NewTemplate(config.TemplateDir)
	if err != nil {
		log.Fatalf("templates: %+v", err)
	}
	defer t.Close()

	logger := log.New("bloggr")
	logger.SetLevel(log.INFO)
	if config.IsDevelopment() {
		if err := t.Watch(logger); err != nil {
			log.Fatalf("watcher: %+v", err)
		}
	}

	dispatcher := mailer.NewDispatcher(config.Mail.Workers, config.Mail.QueueSize, logger)
	notifier := mailer.NewNotifier(mailer.NewSMTPSender(config), t, config)

	app := server.New(&server.Services{
		DB:       db,
		Sessions: handlers.NewSessionStore(config),
		Renderer: t,
		Users:    user.New(token.NewSigner(config.SecretKey)),
		Posts:    post.New(),
		Provider: federated.New(federated.Config{
			ClientID:     config.Google.ClientID,
			ClientSecret: config.Google.ClientSecret,
			DiscoveryURL: config.Google.DiscoveryURL,
			RedirectURL:  config.URL("/auth/authorize/google"),
		}),
		Mail:    &handlers.Mail{Notifier: notifier, Dispatcher: dispatcher},
		Metrics: true,
	})

	go func() {
		metrics := echo.New()
		metrics.HideBanner = true
		metrics.GET("/metrics", echoprometheus.NewHandler())
		if err := metrics.Start(config.MetricsAddr()); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal(err)
		}
	}()

	go func() {
		if err := app.Start(config.ListenAddr()); err != nil && err != http.ErrServerClosed {
			app.Logger.Fatal("shutting down the server")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt)
	<-quit
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := app.Shutdown(ctx); err != nil {
		app.Logger.Error(err)
	}
	if err := dispatcher.Close(ctx); err != nil {
		app.Logger.Errorf("mail: %+v", err)
	}
}
