package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	httpadapter "cybergrid/internal/adapters/http"
	"cybergrid/internal/adapters/memory"
	pg "cybergrid/internal/adapters/postgres"
	"cybergrid/internal/adapters/recaptcha"
	"cybergrid/internal/config"
	"cybergrid/internal/ports"
	"cybergrid/internal/services/checker"
	"cybergrid/internal/services/classifier"
	"cybergrid/internal/services/gate"
	"cybergrid/internal/services/theme"
	"cybergrid/internal/session"
	checkworker "cybergrid/internal/workers/checkrunner"
)

func main() {
	log := logrus.New()
	cfg, err := config.Load()
	if err != nil {
		if errors.Is(err, config.ErrInvalid) {
			log.WithError(err).Fatal("configuration")
		}
		log.WithError(err).Warn("configuration")
	}
	if level, err := logrus.ParseLevel(cfg.LogLevel); err == nil {
		log.SetLevel(level)
	}
	if cfg.Development() {
		log.Warn("APP_ENV=development: verification bypass is enabled")
	} else {
		log.SetFormatter(&logrus.JSONFormatter{})
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Preferences live in Postgres when configured, otherwise in process.
	var preferences httpadapter.PreferenceStores
	if cfg.DatabaseURL != "" {
		db, err := pg.Connect(ctx, cfg.DatabaseURL)
		if err != nil {
			log.WithError(err).Fatal("db connect")
		}
		defer db.Close()
		if err := db.Migrate(ctx); err != nil {
			log.WithError(err).Fatal("db migrate")
		}
		preferences = func(id uuid.UUID) ports.KeyValueStore { return db.Preferences(id) }
	} else {
		kv := memory.NewKV()
		preferences = func(id uuid.UUID) ports.KeyValueStore { return kv.Scoped(id.String()) }
		log.Info("DATABASE_URL not set; theme preferences kept in memory")
	}

	checks := memory.NewChecks(nil)
	queue := memory.NewQueue(cfg.CheckWorkers * 16)
	processor := checkworker.SimulatedProcessor{
		Checks:     checks,
		Classifier: classifier.NewRandom(),
		Delay:      cfg.AnalysisDelay,
	}

	policy := gate.Policy{MaxAttempts: cfg.ChallengeMaxAttempts, Delay: cfg.ChallengeRetryDelay}
	newGate := func() *gate.Gate {
		return gate.New(policy, gate.WithLogger(log), gate.WithBypass(cfg.Development()))
	}
	sessions := session.NewStore(cfg.SessionTTL, nil, newGate, func(ctx context.Context, s *session.Session) {
		if err := checks.DropSession(ctx, s.ID); err != nil {
			log.WithError(err).WithField("session_id", s.ID).Warn("drop session checks")
		}
	}, log)

	var verifier ports.TokenVerifier = recaptcha.AcceptNonEmpty{}
	if cfg.RecaptchaSecret != "" {
		verifier = recaptcha.NewSiteVerifier(cfg.RecaptchaSecret, &http.Client{Timeout: 10 * time.Second})
	}

	srv, err := httpadapter.New(httpadapter.Options{
		Sessions:    sessions,
		Checker:     checker.New(checks, queue, validator.New(), nil),
		Processor:   processor,
		Theme:       theme.New(),
		Preferences: preferences,
		Verifier:    verifier,
		SiteKey:     cfg.RecaptchaSiteKey,
		Development: cfg.Development(),
		Log:         log,
	})
	if err != nil {
		log.WithError(err).Fatal("build http server")
	}
	httpServer := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           srv.Routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.WithFields(logrus.Fields{"addr": cfg.ListenAddr, "env": cfg.Env}).Info("listening")
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		log.WithField("workers", cfg.CheckWorkers).Info("check workers started")
		checkworker.Run(gctx, queue, processor, cfg.CheckWorkers, log)
		return nil
	})
	g.Go(func() error {
		sessions.RunSweeper(gctx, cfg.SessionTTL/2)
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		err := httpServer.Shutdown(shutdownCtx)
		queue.Close()
		return err
	})

	if err := g.Wait(); err != nil {
		log.WithError(err).Error("server stopped")
		os.Exit(1)
	}
}
