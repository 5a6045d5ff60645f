package main

import (
	"context"
	"os"

	"github.com/hibiken/asynq"
	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"

	"yt-announcer/internal/config"
	"yt-announcer/internal/db"
	"yt-announcer/internal/hub"
	"yt-announcer/internal/renewal"
	"yt-announcer/internal/worker"
	"yt-announcer/pkg/tasks"
)

// CommitSHA is set at build time via ldflags
var CommitSHA = "unknown"

func main() {
	err := godotenv.Load()
	if err != nil {
		logrus.Info("no .env file loaded")
	}

	cfg, err := config.Load(os.Getenv("CONFIG_FILE"))
	if err != nil {
		logrus.WithError(err).Fatal("could not load config")
	}
	if err := cfg.SetupLogging(); err != nil {
		logrus.WithError(err).Fatal("could not configure logging")
	}
	if err := cfg.Validate(); err != nil {
		logrus.WithError(err).Fatal("invalid config")
	}

	store, err := db.Open(context.Background(), cfg.DatabaseURL)
	if err != nil {
		logrus.WithError(err).Fatal("could not open database")
	}
	defer store.Close()

	srv := asynq.NewServer(
		asynq.RedisClientOpt{Addr: cfg.RedisAddr},
		asynq.Config{
			// Renewals are a handful of hub requests per day.
			Concurrency: 1,
			Queues: map[string]int{
				"default": 1,
			},
			Logger: logrus.StandardLogger(),
		},
	)

	hubClient := hub.NewClient(cfg.HubURL, cfg.CallbackURL(), cfg.YoutubeVerifyToken, cfg.SubscribeTimeout)
	renewer := renewal.New(store, hubClient, cfg.RenewalMargin, cfg.DefaultTopic())
	taskHandler := worker.NewTaskHandler(renewer)

	mux := asynq.NewServeMux()
	mux.HandleFunc(tasks.TypeSweepLeases, taskHandler.HandleSweepLeasesTask)
	mux.HandleFunc(tasks.TypeRenewLease, taskHandler.HandleRenewLeaseTask)

	logrus.WithField("commit", CommitSHA).Info("worker starting")
	if err := srv.Run(mux); err != nil {
		logrus.WithError(err).Fatal("could not run server")
	}
}
