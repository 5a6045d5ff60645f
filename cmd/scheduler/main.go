package main

import (
	"os"

	"github.com/hibiken/asynq"
	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"

	"yt-announcer/internal/config"
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
	if err := cfg.ValidateScheduler(); err != nil {
		logrus.WithError(err).Fatal("invalid config")
	}

	scheduler := asynq.NewScheduler(
		asynq.RedisClientOpt{Addr: cfg.RedisAddr},
		&asynq.SchedulerOpts{Logger: logrus.StandardLogger()},
	)

	task, err := tasks.NewSweepLeasesTask()
	if err != nil {
		logrus.WithError(err).Fatal("could not create task")
	}

	cronspec := "@every " + cfg.RenewalInterval.String()
	if _, err := scheduler.Register(cronspec, task); err != nil {
		logrus.WithError(err).Fatal("could not register task")
	}

	logrus.WithFields(logrus.Fields{"commit": CommitSHA, "schedule": cronspec}).Info("scheduler starting")
	if err := scheduler.Run(); err != nil {
		logrus.WithError(err).Fatal("could not run scheduler")
	}
}
