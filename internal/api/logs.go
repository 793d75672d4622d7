/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/friendsincode/segue/internal/logbuffer"
)

// Log API handlers

func (a *API) handleLogs(w http.ResponseWriter, r *http.Request) {
	params := logbuffer.QueryParams{
		Level:      r.URL.Query().Get("level"),
		Component:  r.URL.Query().Get("component"),
		Search:     r.URL.Query().Get("search"),
		Descending: r.URL.Query().Get("order") != "asc",
	}
	if limit := r.URL.Query().Get("limit"); limit != "" {
		if parsed, err := strconv.Atoi(limit); err == nil && parsed > 0 {
			params.Limit = parsed
		}
	}
	if params.Limit == 0 {
		params.Limit = 200
	}
	if since := r.URL.Query().Get("since"); since != "" {
		if t, err := time.Parse(time.RFC3339, since); err == nil {
			params.Since = t
		}
	}
	writeJSON(w, http.StatusOK, a.logBuf.Query(params))
}

func (a *API) handleLogComponents(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"components": a.logBuf.GetComponents()})
}

func (a *API) handleLogStats(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, a.logBuf.Stats())
}
