/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

// Package server wires configuration, storage, the playback engine and
// the HTTP surface into one process.
package server

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/friendsincode/segue/internal/api"
	"github.com/friendsincode/segue/internal/backend"
	"github.com/friendsincode/segue/internal/config"
	"github.com/friendsincode/segue/internal/db"
	"github.com/friendsincode/segue/internal/engine"
	"github.com/friendsincode/segue/internal/logbuffer"
	"github.com/friendsincode/segue/internal/models"
	"github.com/friendsincode/segue/internal/queue"
	"github.com/friendsincode/segue/internal/telemetry"
)

// Server bundles HTTP and supporting services.
type Server struct {
	cfg        *config.Config
	logger     zerolog.Logger
	router        chi.Router
	httpServer    *http.Server
	metricsServer *http.Server
	closers       []func() error

	db        *gorm.DB
	logBuffer *logbuffer.Buffer
	eng       *engine.Engine
	queue     *queue.Queue
	api       *api.API

	bgCancel context.CancelFunc
	bgWG     sync.WaitGroup
}

// New builds the server and its dependencies. The backend factory is
// injectable so tests can run without an audio device.
func New(cfg *config.Config, logBuf *logbuffer.Buffer, logger zerolog.Logger) (*Server, error) {
	factory, err := backend.NewBeepFactory(logger)
	if err != nil {
		return nil, err
	}
	return NewWithFactory(cfg, logBuf, factory, logger)
}

// NewWithFactory builds the server around the given backend factory.
func NewWithFactory(cfg *config.Config, logBuf *logbuffer.Buffer, factory backend.Factory, logger zerolog.Logger) (*Server, error) {
	router := chi.NewRouter()
	router.Use(middleware.RequestID)
	router.Use(middleware.RealIP)
	router.Use(middleware.Recoverer)
	router.Use(telemetry.RequestLogger(logger))
	router.Use(telemetry.MetricsMiddleware)
	// Skip timeout for WebSocket connections, which are long-lived.
	router.Use(func(next http.Handler) http.Handler {
		timeout := middleware.Timeout(60 * time.Second)
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Header.Get("Upgrade") == "websocket" {
				next.ServeHTTP(w, r)
				return
			}
			timeout(next).ServeHTTP(w, r)
		})
	})

	s := &Server{
		cfg:       cfg,
		logger:    logger.With().Str("component", "server").Logger(),
		router:    router,
		logBuffer: logBuf,
	}

	if err := s.initDependencies(factory); err != nil {
		_ = s.Close()
		return nil, err
	}

	s.configureRoutes()
	s.startBackgroundWorkers()

	s.httpServer = &http.Server{
		Addr:              cfg.HTTPAddr(),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	// Metrics get their own listener so the scrape endpoint can stay
	// off the public control surface. An empty bind disables it.
	if cfg.MetricsBind != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", telemetry.Handler())
		s.metricsServer = &http.Server{
			Addr:              cfg.MetricsBind,
			Handler:           mux,
			ReadHeaderTimeout: 10 * time.Second,
		}
	}
	return s, nil
}

func (s *Server) initDependencies(factory backend.Factory) error {
	database, err := db.Connect(s.cfg)
	if err != nil {
		return err
	}
	s.db = database
	s.DeferClose(func() error { return db.Close(database) })

	if err := db.Migrate(database); err != nil {
		return err
	}
	if err := db.RegisterCallbacks(database); err != nil {
		return err
	}

	opts := engine.Options{
		Volume: s.cfg.Volume,
		Crossfade: engine.CrossfadeConfig{
			Enabled:         s.cfg.CrossfadeEnabled,
			DurationSeconds: s.cfg.CrossfadeDuration,
		},
		Logger: s.logger,
	}

	// Persisted preferences win over the static configuration.
	settings, err := db.LoadPlayerSettings(database)
	if err != nil {
		return err
	}
	if settings != nil {
		opts.Volume = settings.Volume
		opts.Crossfade = engine.CrossfadeConfig{
			Enabled:         settings.CrossfadeEnabled,
			DurationSeconds: settings.CrossfadeDuration,
		}
	}

	eng, err := engine.New(factory, opts)
	if err != nil {
		return err
	}
	s.eng = eng
	s.DeferClose(eng.Close)

	unobserve := telemetry.ObserveEngine(eng)
	s.DeferClose(func() error { unobserve(); return nil })

	device := s.cfg.AudioDevice
	subtitles := s.cfg.Subtitles
	if settings != nil {
		device = settings.AudioDevice
		subtitles = settings.Subtitles
	}
	if device != "" {
		if err := eng.SetAudioDevice(device); err != nil {
			s.logger.Warn().Err(err).Str("device", device).Msg("configured audio device unavailable")
		}
	}
	eng.ToggleSubtitles(subtitles)

	s.queue = queue.New(database, eng, s.cfg.MediaRoot, s.logger)
	s.DeferClose(func() error { s.queue.Close(); return nil })

	s.api = api.New(eng, s.queue, s.logBuffer, s.logger)
	return nil
}

func (s *Server) configureRoutes() {
	s.router.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	s.api.Routes(s.router)
}

// HTTPServer returns the configured HTTP server for the caller to run.
func (s *Server) HTTPServer() *http.Server {
	return s.httpServer
}

// MetricsServer returns the scrape listener, or nil when the metrics
// bind is disabled.
func (s *Server) MetricsServer() *http.Server {
	return s.metricsServer
}

// Engine exposes the playback engine, mainly for tests.
func (s *Server) Engine() *engine.Engine {
	return s.eng
}

// Queue exposes the play queue.
func (s *Server) Queue() *queue.Queue {
	return s.queue
}

// Close releases owned resources in reverse order.
func (s *Server) Close() error {
	s.stopBackgroundWorkers()
	s.persistSettings()
	var firstErr error
	for i := len(s.closers) - 1; i >= 0; i-- {
		if err := s.closers[i](); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	s.closers = nil
	return firstErr
}

// DeferClose registers a cleanup hook.
func (s *Server) DeferClose(fn func() error) {
	s.closers = append(s.closers, fn)
}

func (s *Server) startBackgroundWorkers() {
	ctx, cancel := context.WithCancel(context.Background())
	s.bgCancel = cancel

	s.bgWG.Add(1)
	go func() {
		defer s.bgWG.Done()
		ticker := time.NewTicker(30 * time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				db.UpdateConnectionMetrics(s.db)
				s.persistSettings()
			}
		}
	}()
}

func (s *Server) stopBackgroundWorkers() {
	if s.bgCancel != nil {
		s.bgCancel()
		s.bgCancel = nil
	}
	s.bgWG.Wait()
}

// persistSettings snapshots playback preferences so they survive a
// restart.
func (s *Server) persistSettings() {
	if s.eng == nil || s.db == nil {
		return
	}
	st := s.eng.Status()
	err := db.SavePlayerSettings(s.db, &models.PlayerSettings{
		Volume:            st.Volume,
		CrossfadeEnabled:  st.Crossfade.Enabled,
		CrossfadeDuration: st.Crossfade.DurationSeconds,
		AudioDevice:       st.Device,
		Subtitles:         st.Subtitles,
	})
	if err != nil {
		s.logger.Error().Err(err).Msg("persist player settings")
	}
}
