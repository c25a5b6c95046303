package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"love-sync-backend/internal/config"
	"love-sync-backend/internal/database"
	"love-sync-backend/internal/events"
	"love-sync-backend/internal/handlers"
	"love-sync-backend/internal/metrics"
	"love-sync-backend/internal/middleware"
	"love-sync-backend/internal/notify"
	"love-sync-backend/internal/repository"
	"love-sync-backend/internal/services"
	"love-sync-backend/internal/worker"

	"github.com/jonboulle/clockwork"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/rs/zerolog/log"
)

// ServeCmd runs the HTTP API, the realtime hub and the unlock announcer
type ServeCmd struct {
	Migrate bool `help:"Apply migrations before serving (postgres only)." default:"true" negatable:""`
}

type stores struct {
	users    repository.UserStore
	pairs    repository.PairStore
	photos   repository.PhotoStore
	orders   repository.OrderStore
	sessions repository.SessionStore
	games    repository.GameStore
	close    func()
}

func (c *ServeCmd) openStores(ctx context.Context, cfg *config.Config) (*stores, error) {
	if cfg.Database.Driver == "memory" {
		log.Warn().Msg("Using in-memory storage, data is lost on restart")
		return &stores{
			users:    repository.NewMemoryUserStore(),
			pairs:    repository.NewMemoryPairStore(),
			photos:   repository.NewMemoryPhotoStore(),
			orders:   repository.NewMemoryOrderStore(),
			sessions: repository.NewMemorySessionStore(),
			games:    repository.NewMemoryGameStore(),
			close:    func() {},
		}, nil
	}

	if c.Migrate {
		if err := database.RunMigrations(cfg.Database.URL()); err != nil {
			return nil, err
		}
	}

	// Connect to database
	db, err := database.Connect(ctx, cfg.Database.DSN())
	if err != nil {
		return nil, err
	}
	log.Info().Msg("Database connection established")

	return &stores{
		users:    repository.NewUserRepository(db),
		pairs:    repository.NewPairRepository(db),
		photos:   repository.NewPhotoRepository(db),
		orders:   repository.NewOrderRepository(db),
		sessions: repository.NewSessionRepository(db),
		games:    repository.NewGameRepository(db),
		close:    db.Close,
	}, nil
}

func openBus(cfg *config.Config) (events.Bus, error) {
	if cfg.NATS.URL == "" {
		return events.NewLocalBus(), nil
	}
	natsCfg := events.DefaultNATSConfig()
	natsCfg.URL = cfg.NATS.URL
	if cfg.NATS.SubjectPrefix != "" {
		natsCfg.SubjectPrefix = cfg.NATS.SubjectPrefix
	}
	bus, err := events.NewNATSBus(natsCfg)
	if err != nil {
		return nil, err
	}
	log.Info().Str("url", cfg.NATS.URL).Str("prefix", natsCfg.SubjectPrefix).Msg("Session events go through NATS")
	return bus, nil
}

func openNotifier(cfg *config.Config) (notify.Notifier, error) {
	if cfg.APNs.KeyFile == "" {
		log.Warn().Msg("APNs is not configured, push notifications are only logged")
		return notify.LogNotifier{}, nil
	}
	apns, err := notify.NewAPNs(notify.APNsConfig{
		KeyFile:    cfg.APNs.KeyFile,
		KeyID:      cfg.APNs.KeyID,
		TeamID:     cfg.APNs.TeamID,
		Topic:      cfg.APNs.Topic,
		Production: cfg.APNs.Production,
	})
	if err != nil {
		return nil, err
	}
	log.Info().Str("topic", cfg.APNs.Topic).Bool("production", cfg.APNs.Production).Msg("APNs push enabled")
	return apns, nil
}

func openGateway(cfg *config.Config) services.Gateway {
	if cfg.Payment.Provider == "razorpay" {
		return services.NewRazorpayGateway(cfg.Payment.BaseURL, cfg.Payment.KeyID, cfg.Payment.KeySecret)
	}
	log.Warn().Str("provider", cfg.Payment.Provider).Msg("Using the local payment gateway, orders are not charged")
	return services.LocalGateway{}
}

func (c *ServeCmd) Run(cfg *config.Config) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	clock := clockwork.NewRealClock()

	calendar, err := loadCalendar(cfg)
	if err != nil {
		return err
	}

	st, err := c.openStores(ctx, cfg)
	if err != nil {
		return err
	}
	defer st.close()

	bus, err := openBus(cfg)
	if err != nil {
		return err
	}
	defer bus.Close()

	notifier, err := openNotifier(cfg)
	if err != nil {
		return err
	}

	s3cfg := services.S3Config{
		Region:    cfg.AWS.Region,
		Bucket:    cfg.AWS.S3Bucket,
		AccessKey: cfg.AWS.AccessKey,
		SecretKey: cfg.AWS.SecretKey,
		Endpoint:  cfg.AWS.Endpoint,
	}
	presigner, err := services.NewS3Presigner(ctx, s3cfg)
	if err != nil {
		return fmt.Errorf("failed to create S3 presigner: %w", err)
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	recorder := metrics.NewCollector(reg)

	// Initialize services
	userService := services.NewUserService(st.users, st.pairs, cfg.JWT.Secret, clock)
	pairService := services.NewPairService(st.pairs, st.users, clock)
	sessionService := services.NewSessionService(st.sessions, st.users, calendar, bus, notifier, recorder, clock, services.SessionConfig{
		CountdownLead: cfg.Sessions.CountdownLead,
		SnapWindow:    cfg.Sessions.SnapWindow,
		SnapSkew:      cfg.Sessions.SnapSkew,
		ShareBaseURL:  cfg.Sessions.ShareBaseURL,
	})
	paymentService := services.NewPaymentService(st.orders, st.pairs, st.users, sessionService, openGateway(cfg), recorder, clock, services.PaymentConfig{
		KeyID:          cfg.Payment.KeyID,
		KeySecret:      cfg.Payment.KeySecret,
		Currency:       cfg.Payment.Currency,
		ProposalAmount: cfg.Payment.ProposalAmount,
		CoupleAmount:   cfg.Payment.CoupleAmount,
	})
	photoService := services.NewPhotoService(st.photos, st.pairs, presigner, s3cfg, clock)
	memoryService := services.NewMemoryGameService(st.games, st.users, photoService, calendar, notifier, recorder, clock, cfg.Sessions.ShareBaseURL)

	wsHub := services.NewWSHub(pairService)
	if err := wsHub.Listen(bus); err != nil {
		return fmt.Errorf("failed to subscribe hub to session events: %w", err)
	}
	defer wsHub.Close()

	limiter := middleware.NewRateLimiter(middleware.PerMinute(cfg.RateLimit.RequestsPerMinute, cfg.RateLimit.Burst))
	defer limiter.Stop()

	router := handlers.NewRouter(handlers.RouterDeps{
		Users:          userService,
		Pairs:          pairService,
		Sessions:       sessionService,
		Calendar:       services.NewCalendarService(calendar, clock),
		Payments:       paymentService,
		Photos:         photoService,
		Memories:       memoryService,
		Hub:            wsHub,
		Limiter:        limiter,
		Gatherer:       reg,
		AllowedOrigins: cfg.Server.AllowedOrigins,
		Logger:         log.Logger,
	})

	announcer := worker.NewAnnouncer(calendar, st.users, notifier, recorder, clock, worker.AnnouncerConfig{
		AnnounceWindow: cfg.Sessions.AnnounceWindow,
	})
	workerDone := make(chan struct{})
	go func() {
		defer close(workerDone)
		if err := announcer.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			log.Error().Err(err).Msg("Unlock announcer stopped")
		}
	}()

	// Create HTTP server
	srv := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		log.Info().
			Str("host", cfg.Server.Host).
			Int("port", cfg.Server.Port).
			Str("database", cfg.Database.Driver).
			Msg("Starting server")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
	}()

	// Wait for interrupt signal for graceful shutdown
	select {
	case <-ctx.Done():
	case err := <-serveErr:
		return fmt.Errorf("server failed: %w", err)
	}

	log.Info().Msg("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	// hijacked WebSocket connections are not tracked by Shutdown
	wsHub.Close()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}
	<-workerDone

	log.Info().Msg("Server exited")
	return nil
}
