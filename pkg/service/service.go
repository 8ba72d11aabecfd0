package service

import (
	"context"
	"fmt"
	"net/http"
	"time"

	goredis "github.com/go-redis/redis/v8"
	"github.com/sirupsen/logrus"

	"autopilot-assistant/pkg/ai"
	"autopilot-assistant/pkg/commands"
	"autopilot-assistant/pkg/config"
	"autopilot-assistant/pkg/engine"
	"autopilot-assistant/pkg/handlers"
	"autopilot-assistant/pkg/metrics"
	"autopilot-assistant/pkg/server"
	"autopilot-assistant/pkg/settings"
	"autopilot-assistant/pkg/store"
	"autopilot-assistant/pkg/sweeper"
	"autopilot-assistant/pkg/telegram"
)

// Service wires the stores, the engine, the transports and the sweeper into
// one lifecycle.
type Service struct {
	config     *config.Config
	logger     *logrus.Logger
	settings   *settings.Service
	dispatcher *engine.Dispatcher
	poller     *telegram.Poller
	sweeper    *sweeper.Sweeper
	server     *http.Server
	cancel     context.CancelFunc
}

func New(rdb *goredis.Client, cfg *config.Config, logger *logrus.Logger, m *metrics.Metrics) *Service {
	settingsStore := store.NewRedisSettings(rdb, logger, m, cfg.SettingsTTL())
	conversations := store.NewRedisConversations(rdb, logger, m)

	settingsSvc := settings.NewService(settingsStore, logger)
	assistant := ai.NewOpenAI(cfg.OpenAIBaseURL, cfg.OpenAIKey, cfg.OpenAIModel, cfg.HistoryWindow, logger, m)
	tg := telegram.NewClient(cfg.TelegramAPIBase, cfg.TelegramToken, logger)

	eng := engine.New(engine.Options{
		Conversations: conversations,
		Settings:      settingsSvc,
		Assistant:     assistant,
		Messenger:     tg,
		Commands:      commands.NewRouter(settingsSvc, tg, logger),
		Logger:        logger,
		Metrics:       m,
		CallTimeout:   cfg.ExternalCallTimeout(),
	})

	dispatcher := engine.NewDispatcher(eng, logger, m, cfg.MaxConcurrentContacts)
	handler := handlers.NewHandler(dispatcher, settingsSvc, logger, cfg.InstanceID)

	var poller *telegram.Poller
	if cfg.TelegramToken != "" {
		poller = telegram.NewPoller(tg, settingsSvc, dispatcher, logger, cfg.TelegramPollTimeoutS)
	}

	return &Service{
		config:     cfg,
		logger:     logger,
		settings:   settingsSvc,
		dispatcher: dispatcher,
		poller:     poller,
		sweeper:    sweeper.New(conversations, logger, m, cfg.RetentionAge(), cfg.SweepInterval()),
		server:     server.NewHTTPServer(cfg, handler, logger),
	}
}

func (s *Service) Start(ctx context.Context) error {
	s.logger.Info("Starting assistant service")

	runCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel

	for _, seed := range s.config.OwnerSeeds {
		if err := s.settings.EnsureOwner(runCtx, seed.OwnerID, seed.Username); err != nil {
			cancel()
			return fmt.Errorf("failed to seed owner %s: %w", seed.OwnerID, err)
		}
	}

	s.dispatcher.Start(runCtx)
	go s.sweeper.Run(runCtx)

	if s.poller != nil {
		go s.poller.Run(runCtx)
	} else {
		s.logger.Warn("No Telegram token configured, running with HTTP ingest only")
	}

	go func() {
		s.logger.WithField("port", s.config.Port).Info("Starting HTTP server")
		if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			s.logger.WithError(err).Fatal("HTTP server failed")
		}
	}()

	s.logger.WithField("instance_id", s.config.InstanceID).Info("Assistant service started successfully")
	return nil
}

func (s *Service) Stop(ctx context.Context) error {
	s.logger.Info("Stopping assistant service")

	if s.cancel != nil {
		s.cancel()
	}
	s.dispatcher.Stop()

	if s.server != nil {
		shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
		defer cancel()

		if err := s.server.Shutdown(shutdownCtx); err != nil {
			s.logger.WithError(err).Error("Failed to shutdown HTTP server gracefully")
			return err
		}
	}

	s.logger.Info("Assistant service stopped")
	return nil
}
