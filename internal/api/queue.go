/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"gorm.io/gorm"

	"github.com/friendsincode/segue/internal/models"
	"github.com/friendsincode/segue/internal/queue"
)

// Queue API handlers

func (a *API) handleQueueList(w http.ResponseWriter, r *http.Request) {
	entries, err := a.queue.Entries()
	if err != nil {
		a.logger.Error().Err(err).Msg("list queue failed")
		writeError(w, http.StatusInternalServerError, "list_queue_failed")
		return
	}
	result := make([]map[string]any, len(entries))
	for i, e := range entries {
		result[i] = serializeQueueEntry(e)
	}
	writeJSON(w, http.StatusOK, result)
}

func (a *API) handleQueueAdd(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Path string `json:"path"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Path == "" {
		writeError(w, http.StatusBadRequest, "path_required")
		return
	}
	entry, err := a.queue.Add(req.Path)
	if err != nil {
		if errors.Is(err, queue.ErrOutsideMediaRoot) {
			writeError(w, http.StatusUnprocessableEntity, "path_outside_media_root")
			return
		}
		a.logger.Error().Err(err).Str("path", req.Path).Msg("queue add failed")
		writeError(w, http.StatusUnprocessableEntity, "queue_add_failed")
		return
	}
	writeJSON(w, http.StatusCreated, serializeQueueEntry(*entry))
}

func (a *API) handleQueueRemove(w http.ResponseWriter, r *http.Request) {
	entryID := chi.URLParam(r, "entryID")
	if entryID == "" {
		writeError(w, http.StatusBadRequest, "entry_id_required")
		return
	}
	if err := a.queue.Remove(entryID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			writeError(w, http.StatusNotFound, "entry_not_found")
			return
		}
		a.logger.Error().Err(err).Str("entry_id", entryID).Msg("queue remove failed")
		writeError(w, http.StatusInternalServerError, "queue_remove_failed")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"removed": entryID})
}

func (a *API) handleQueueStart(w http.ResponseWriter, r *http.Request) {
	if err := a.queue.Start(); err != nil {
		if errors.Is(err, queue.ErrEmptyQueue) {
			writeError(w, http.StatusConflict, "queue_empty")
			return
		}
		a.logger.Error().Err(err).Msg("queue start failed")
		writeError(w, http.StatusInternalServerError, "queue_start_failed")
		return
	}
	writeJSON(w, http.StatusAccepted, a.statusPayload())
}

func (a *API) handleQueueSkip(w http.ResponseWriter, r *http.Request) {
	if err := a.queue.Skip(); err != nil {
		if errors.Is(err, queue.ErrEmptyQueue) {
			writeError(w, http.StatusConflict, "queue_empty")
			return
		}
		a.logger.Error().Err(err).Msg("queue skip failed")
		writeError(w, http.StatusInternalServerError, "queue_skip_failed")
		return
	}
	writeJSON(w, http.StatusAccepted, a.statusPayload())
}

func (a *API) handleQueueClear(w http.ResponseWriter, r *http.Request) {
	if err := a.queue.Clear(); err != nil {
		a.logger.Error().Err(err).Msg("queue clear failed")
		writeError(w, http.StatusInternalServerError, "queue_clear_failed")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"state": "cleared"})
}

func serializeQueueEntry(e models.QueueEntry) map[string]any {
	return map[string]any{
		"id":       e.ID,
		"position": e.Position,
		"path":     e.Path,
		"title":    e.Title,
		"artist":   e.Artist,
		"kind":     string(e.Kind),
		"status":   string(e.Status),
		"error":    e.Error,
	}
}
