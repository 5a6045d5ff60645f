package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"github.com/hibiken/asynq"
	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"

	"yt-announcer/internal/announce"
	"yt-announcer/internal/compose"
	"yt-announcer/internal/config"
	"yt-announcer/internal/db"
	"yt-announcer/internal/handlers"
	"yt-announcer/internal/intake"
	"yt-announcer/internal/middleware"
	"yt-announcer/internal/publisher"
	"yt-announcer/internal/relay"
	"yt-announcer/internal/twitterauth"
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

	ctx := context.Background()
	store, err := db.Open(ctx, cfg.DatabaseURL)
	if err != nil {
		logrus.WithError(err).Fatal("could not open database")
	}
	defer store.Close()

	if err := bootstrap(ctx, store, cfg.DefaultIdentity); err != nil {
		logrus.WithError(err).Fatal("could not bootstrap database")
	}

	client := asynq.NewClient(asynq.RedisClientOpt{Addr: cfg.RedisAddr})
	defer client.Close()

	composer := compose.New(store)
	orchestrator := announce.New(store, composer, store, publisher.NewTwitter(cfg.TwitterAPIKey, cfg.TwitterAPIKeySecret), cfg.PublishTimeout)
	svc := relay.New(
		relay.Config{Identity: cfg.DefaultIdentity, VerifyToken: cfg.YoutubeVerifyToken},
		store,
		intake.New(cfg.StalenessThreshold),
		composer,
		orchestrator,
		client,
	)

	var flow handlers.OAuthFlow
	if cfg.TwitterAPIKey != "" && cfg.TwitterAPIKeySecret != "" {
		flow = twitterauth.NewFlow(cfg.TwitterAPIKey, cfg.TwitterAPIKeySecret, cfg.TwitterCallbackURL(), cfg.DefaultIdentity, twitterauth.TwitterEndpoints, store)
	} else {
		logrus.Warn("twitter api key not configured; /twitter login disabled")
	}

	limiter := middleware.NewRateLimiterMiddleware(rate.Limit(cfg.RateLimit), cfg.RateBurst)
	r := newRouter(handlers.New(svc, flow), cfg.AdminToken, limiter)

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logrus.WithFields(logrus.Fields{"port": cfg.Port, "commit": CommitSHA}).Info("starting server")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logrus.WithError(err).Fatal("could not start server")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logrus.Info("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logrus.WithError(err).Error("server forced to shutdown")
	}
}

// bootstrap brings the schema up to date and makes sure the default
// identity has a record for verifications to land on.
func bootstrap(ctx context.Context, store *db.Store, identity string) error {
	if err := store.Migrate(ctx); err != nil {
		return err
	}
	return store.EnsureSubscription(ctx, identity)
}

func newRouter(h *handlers.Handlers, adminToken string, limiter *middleware.RateLimiterMiddleware) *mux.Router {
	r := mux.NewRouter()

	r.HandleFunc("/", h.Health).Methods(http.MethodGet)
	r.HandleFunc(config.HookPath, h.VerifyHook).Methods(http.MethodGet)
	r.HandleFunc(config.HookPath, h.ReceiveHook).Methods(http.MethodPost)
	// the callback is only honoured for request tokens issued by an
	// admin-authorized start
	r.Handle("/twitter", middleware.AdminAuthOrQuery(adminToken)(http.HandlerFunc(h.StartTwitterAuth))).Methods(http.MethodGet)
	r.HandleFunc("/twitter/callback", h.TwitterCallback).Methods(http.MethodGet)

	admin := r.PathPrefix("/identities/{identity}").Subrouter()
	admin.Use(middleware.AdminAuth(adminToken))
	admin.Use(limiter.Middleware)
	admin.HandleFunc("/template", h.PutTemplate).Methods(http.MethodPut)
	admin.HandleFunc("/preview", h.GetPreview).Methods(http.MethodGet)
	admin.HandleFunc("/resubscribe", h.PostResubscribe).Methods(http.MethodPost)

	return r
}
