package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/asaskevich/EventBus"
	"github.com/kelseyhightower/envconfig"
	"github.com/m-barthelemy/placeshare/database"
	"github.com/m-barthelemy/placeshare/models"
	"github.com/m-barthelemy/placeshare/routes"
	"github.com/m-barthelemy/placeshare/services"
	log "github.com/sirupsen/logrus"
	"github.com/zeebo/errs"
)

func main() {
	var config models.Config
	config = config.New()

	err := envconfig.Process("", &config)
	if err != nil {
		log.Fatal(err.Error())
	}
	log.SetFormatter(&log.TextFormatter{FullTimestamp: true})
	if config.Debug {
		log.SetLevel(log.DebugLevel)
	}
	if err := config.Verify(); err != nil {
		log.Fatalf("Invalid configuration: %s", err.Error())
	}

	db, err := database.Open(&config)
	if err != nil {
		log.Fatalf("Failed to connect to database: %s", err)
	}
	if err := database.Migrate(db); err != nil {
		log.Fatalf("Failed to run database migrations: %s", err)
	}

	media, err := services.NewMinioMediaStore(&config)
	if err != nil {
		log.Fatalf("Could not create media store client: %s", err.Error())
	}
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	if err := media.EnsureBucket(ctx); err != nil {
		log.Fatalf("Media bucket %s is not usable: %s", config.MediaBucket, err.Error())
	}
	cancel()

	bus := EventBus.New()
	push, err := services.NewPushManager(db, &config, services.NewWebPushTransport(&config))
	if err != nil {
		log.Fatalf("Could not create push manager: %s", err.Error())
	}
	notifications := services.NewNotificationsManager(db, &config, push, bus)
	follows := services.NewFollowManager(db, &config, notifications)
	managers := routes.Managers{
		Users:         services.NewUserManager(db, &config, media, follows),
		Places:        services.NewPlaceManager(db, &config, services.NewGoogleGeocoder(&config), media, bus),
		Follows:       follows,
		Notifications: notifications,
		Push:          push,
	}

	appCtx, stopApp := context.WithCancel(context.Background())
	server := startServer(&config, routes.New(appCtx, &config, managers))

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop
	log.Info("Shutting down...")
	stopApp()

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancelShutdown()
	shutdownErr := server.Shutdown(shutdownCtx)
	bus.WaitAsync()
	if err := errs.Combine(shutdownErr, database.Close(db)); err != nil {
		log.Errorf("Unclean shutdown: %s", err.Error())
		os.Exit(1)
	}
}
