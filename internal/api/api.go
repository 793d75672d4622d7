/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

// Package api exposes the player's HTTP control surface.
package api

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/friendsincode/segue/internal/engine"
	"github.com/friendsincode/segue/internal/logbuffer"
	"github.com/friendsincode/segue/internal/queue"
	"github.com/friendsincode/segue/internal/version"
)

// API bundles the handlers and their dependencies.
type API struct {
	logger zerolog.Logger
	eng    *engine.Engine
	queue  *queue.Queue
	logBuf *logbuffer.Buffer
}

// New builds the API surface.
func New(eng *engine.Engine, q *queue.Queue, logBuf *logbuffer.Buffer, logger zerolog.Logger) *API {
	return &API{
		logger: logger.With().Str("component", "api").Logger(),
		eng:    eng,
		queue:  q,
		logBuf: logBuf,
	}
}

// Routes mounts all endpoints on the given router.
func (a *API) Routes(r chi.Router) {
	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/health", a.handleHealth)
		r.Get("/version", a.handleVersion)

		r.Route("/player", func(r chi.Router) {
			r.Get("/status", a.handleStatus)
			r.Get("/spectrum", a.handleSpectrum)
			r.Get("/devices", a.handleDevices)
			r.Get("/events", a.handleEvents)

			r.Post("/play", a.handlePlay)
			r.Post("/pause", a.handlePause)
			r.Post("/resume", a.handleResume)
			r.Post("/stop", a.handleStop)
			r.Post("/seek", a.handleSeek)
			r.Post("/volume", a.handleVolume)
			r.Post("/device", a.handleDevice)
			r.Post("/subtitles", a.handleSubtitles)
			r.Post("/crossfade", a.handleCrossfade)
			r.Post("/preload", a.handlePreload)
		})

		r.Route("/queue", func(r chi.Router) {
			r.Get("/", a.handleQueueList)
			r.Post("/", a.handleQueueAdd)
			r.Delete("/{entryID}", a.handleQueueRemove)
			r.Post("/start", a.handleQueueStart)
			r.Post("/skip", a.handleQueueSkip)
			r.Post("/clear", a.handleQueueClear)
		})

		r.Route("/logs", func(r chi.Router) {
			r.Get("/", a.handleLogs)
			r.Get("/components", a.handleLogComponents)
			r.Get("/stats", a.handleLogStats)
		})
	})
}

func (a *API) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status": "ok",
		"state":  string(a.eng.State()),
	})
}

func (a *API) handleVersion(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"version": version.Version,
		"commit":  version.Commit,
	})
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, code string) {
	writeJSON(w, status, map[string]string{"error": code})
}
