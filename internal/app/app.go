package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/benbjohnson/clock"
	"go.uber.org/multierr"
	"golang.org/x/sync/errgroup"

	"camwatch/internal/config"
	"camwatch/internal/dto"
	"camwatch/internal/handler"
	"camwatch/internal/logger"
	"camwatch/internal/repository/sqlite"
	"camwatch/internal/routes"
	"camwatch/internal/service/ai"
	"camwatch/internal/service/alert"
	"camwatch/internal/service/dedup"
	"camwatch/internal/service/events"
	"camwatch/internal/service/filter"
	"camwatch/internal/service/history"
	"camwatch/internal/service/ignore"
	"camwatch/internal/service/ingest"
	"camwatch/internal/service/live"
	"camwatch/internal/service/manager"
	"camwatch/internal/service/scheduler"
	"camwatch/internal/service/websocket"
	"camwatch/internal/storage"
)

const (
	viewerBuffer  = 64
	alertBuffer   = 64
	liveFrameRate = 100 * time.Millisecond
	shutdownWait  = 5 * time.Second
)

type App struct {
	config *config.Config
	logger *logger.Logger
	clock  clock.Clock
	db     *sqlite.DB

	detectors []*ai.DetectorService
	registry  *ingest.Registry
	images    *storage.Store
	history   *history.Store
	ignores   *ignore.List
	settings  *filter.Holder
	bus       *events.Bus
	hub       *websocket.HubService
	views     *live.Views
	sink      alert.Sink
	alerter   *alert.Alerter
	manager   *manager.Manager
	scheduler *scheduler.Scheduler
}

// NewApp loads the configuration and builds every component. Persistent state
// (history, ignore list) is loaded before NewApp returns.
func NewApp() (*App, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}

	log, err := logger.NewLogger(cfg.LogDirectory, cfg.Debug)
	if err != nil {
		return nil, err
	}

	a := &App{config: cfg, logger: log, clock: clock.New()}
	if err := a.build(); err != nil {
		a.Close()
		return nil, err
	}
	return a, nil
}

func (a *App) build() error {
	cfg, log := a.config, a.logger

	db, err := sqlite.New(cfg.DatabasePath)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	a.db = db

	a.images, err = storage.NewStore(cfg.ImageDirectory)
	if err != nil {
		return fmt.Errorf("failed to open image directory: %w", err)
	}

	a.history = history.NewStore(cfg.MaxHistoryEntries, sqlite.NewHistoryRepository(db), a.images, log)
	if err := a.history.Load(); err != nil {
		log.Warning("History loaded with errors: %v", err)
	}
	a.ignores = ignore.NewList(cfg.OverlapThreshold, sqlite.NewIgnoreRepository(db), a.clock, log)
	if err := a.ignores.Load(); err != nil {
		return fmt.Errorf("failed to load ignore list: %w", err)
	}

	a.registry = ingest.NewRegistry(a.clock, cfg.FeedTimeout, log)
	for _, s := range cfg.Streams {
		a.registry.Add(s.ID, s.Label)
	}

	models := make([]scheduler.Model, 0, cfg.ProcessingWorkers)
	for i := 0; i < cfg.ProcessingWorkers; i++ {
		ds := ai.NewDetectorService(cfg.ModelPath, cfg.ConfigPath, log.With(fmt.Sprintf("detector-%d", i)))
		a.detectors = append(a.detectors, ds)
		models = append(models, ds)
	}
	a.scheduler = scheduler.New(a.registry, models, cfg.IdlePollInterval, log)

	a.settings = filter.NewHolder(filter.NewSettings(cfg.Interests, cfg.MinDetectionArea))
	engine := dedup.NewEngine(dedup.Config{
		Window:           cfg.CooldownWindow,
		OverlapThreshold: cfg.OverlapThreshold,
	}, a.clock, a.ignores)

	a.bus = events.NewBus()
	a.hub = websocket.NewHubService(log)
	a.views = live.NewViews(a.registry, liveFrameRate)

	if cfg.MQTTBroker != "" {
		a.sink = alert.NewMQTTSink(cfg.MQTTBroker, cfg.MQTTClientID, cfg.MQTTTopicPrefix, log)
	} else {
		a.sink = alert.NewLogSink(log)
	}
	a.alerter = alert.NewAlerter(a.sink, a.settings, cfg.Streams, log)

	a.manager = manager.New(manager.Options{
		Settings:  a.settings,
		Engine:    engine,
		History:   a.history,
		Ignores:   a.ignores,
		Bus:       a.bus,
		Annotator: ai.NewAnnotator(),
		View:      a.views,
		Clock:     a.clock,
	}, log)
	return nil
}

// Stats collects the runtime counters of every component.
func (a *App) Stats() dto.StatsData {
	return dto.StatsData{
		Streams:    a.registry.Statuses(),
		Pipeline:   a.manager.Stats(),
		Inference:  a.scheduler.Stats(),
		Events:     a.bus.Stats(),
		Alerts:     a.alerter.Stats(),
		History:    a.history.Count(),
		HistoryMax: a.history.Max(),
		Ignores:    len(a.ignores.All()),
		Viewers:    a.hub.GetClientCount(),
	}
}

// Run starts ingestion, inference, the pipeline, the notification sinks and
// the HTTP server, and blocks until ctx is done or one of them fails.
func (a *App) Run(ctx context.Context) error {
	cfg, log := a.config, a.logger

	viewerEvents, err := a.bus.Subscribe("viewers", viewerBuffer)
	if err != nil {
		return err
	}
	alertEvents, err := a.bus.Subscribe("alerts", alertBuffer)
	if err != nil {
		return err
	}

	if mqttSink, ok := a.sink.(*alert.MQTTSink); ok {
		if err := mqttSink.Connect(ctx); err != nil {
			log.Warning("MQTT broker not reachable yet, retrying in background: %v", err)
		}
	}

	router := routes.SetupRoutes(routes.Services{
		Config:   cfg,
		Logger:   log,
		Registry: a.registry,
		Manager:  a.manager,
		History:  a.history,
		Images:   a.images,
		Ignores:  a.ignores,
		Settings: a.settings,
		Views:    a.views,
		Hub:      a.hub,
		Stats:    a.Stats,
	})
	server := &http.Server{Addr: fmt.Sprintf(":%d", cfg.Port), Handler: router}

	g, ctx := errgroup.WithContext(ctx)

	for _, s := range cfg.Streams {
		if s.URL == "" {
			continue
		}
		ing, _ := a.registry.Get(s.ID)
		dec := ingest.NewCaptureDecoder(s.URL, a.clock)
		g.Go(func() error { return ing.Run(ctx, dec) })
	}

	g.Go(func() error { return a.scheduler.Run(ctx) })
	g.Go(func() error { return a.manager.Run(ctx, a.scheduler.Batches()) })
	g.Go(func() error { return a.hub.Run(ctx, viewerEvents) })
	g.Go(func() error { return a.alerter.Run(ctx, alertEvents) })
	g.Go(func() error { return a.views.Run(ctx) })

	g.Go(func() error {
		if err := handler.UDPCameraHandler(ctx, a.registry, cfg, log.With("udp")); err != nil {
			log.Error("UDP camera handler disabled: %v", err)
		}
		return nil
	})

	if cfg.StreamsFile != "" {
		g.Go(func() error {
			return config.Watch(ctx, cfg.StreamsFile, cfg.DefaultMinConfidence,
				func(interests []config.Interest) {
					a.settings.ReplaceInterests(interests)
					log.Info("Reloaded %d interests from %s", len(interests), cfg.StreamsFile)
				},
				func(err error) {
					log.Warning("Ignoring invalid definitions file: %v", err)
				})
		})
	}

	g.Go(func() error {
		log.Info("🚀 Camwatch server")
		log.Info("📍 URL: http://localhost:%d", cfg.Port)
		log.Info("📁 Images: %s", cfg.ImageDirectory)
		log.Info("🤖 AI Model: %s", cfg.ModelPath)
		if err := server.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		a.registry.StopAll()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownWait)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})

	return g.Wait()
}

// Close releases every resource held by the app.
func (a *App) Close() error {
	var err error
	if a.bus != nil {
		err = multierr.Append(err, a.bus.Close())
	}
	if a.sink != nil {
		err = multierr.Append(err, a.sink.Close())
	}
	for _, d := range a.detectors {
		err = multierr.Append(err, d.Close())
	}
	if a.db != nil {
		err = multierr.Append(err, a.db.Close())
	}
	return multierr.Append(err, a.logger.Close())
}
