/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/friendsincode/segue/internal/backend"
	"github.com/friendsincode/segue/internal/engine"
)

// Player API handlers

type playRequest struct {
	Path   string `json:"path"`
	Title  string `json:"title,omitempty"`
	Artist string `json:"artist,omitempty"`
	Type   string `json:"type,omitempty"` // audio (default) or video
}

func (a *API) handlePlay(w http.ResponseWriter, r *http.Request) {
	var req playRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Path == "" {
		writeError(w, http.StatusBadRequest, "path_required")
		return
	}

	track := trackFromRequest(req)
	if err := a.eng.Play(track); err != nil {
		a.logger.Error().Err(err).Str("path", req.Path).Msg("play failed")
		writeError(w, http.StatusUnprocessableEntity, "play_failed")
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]string{"track_id": track.ID})
}

func (a *API) handlePreload(w http.ResponseWriter, r *http.Request) {
	var req playRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Path == "" {
		writeError(w, http.StatusBadRequest, "path_required")
		return
	}

	track := trackFromRequest(req)
	if err := a.eng.PreloadNextAsync(track); err != nil {
		switch {
		case errors.Is(err, engine.ErrStandbyBusy):
			writeError(w, http.StatusConflict, "standby_busy")
		default:
			a.logger.Error().Err(err).Str("path", req.Path).Msg("preload failed")
			writeError(w, http.StatusUnprocessableEntity, "preload_failed")
		}
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]string{"track_id": track.ID})
}

func (a *API) handlePause(w http.ResponseWriter, r *http.Request) {
	a.eng.Pause()
	writeJSON(w, http.StatusOK, map[string]string{"state": string(a.eng.State())})
}

func (a *API) handleResume(w http.ResponseWriter, r *http.Request) {
	a.eng.Resume()
	writeJSON(w, http.StatusOK, map[string]string{"state": string(a.eng.State())})
}

func (a *API) handleStop(w http.ResponseWriter, r *http.Request) {
	a.eng.Stop()
	writeJSON(w, http.StatusOK, map[string]string{"state": string(a.eng.State())})
}

func (a *API) handleSeek(w http.ResponseWriter, r *http.Request) {
	var req struct {
		PositionSeconds float64 `json:"position_seconds"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_body")
		return
	}
	if err := a.eng.Seek(time.Duration(req.PositionSeconds * float64(time.Second))); err != nil {
		writeError(w, http.StatusUnprocessableEntity, "seek_failed")
		return
	}
	writeJSON(w, http.StatusOK, a.statusPayload())
}

func (a *API) handleVolume(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Level float64 `json:"level"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_body")
		return
	}
	a.eng.SetVolume(req.Level)
	writeJSON(w, http.StatusOK, a.statusPayload())
}

func (a *API) handleDevice(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Device string `json:"device"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Device == "" {
		writeError(w, http.StatusBadRequest, "device_required")
		return
	}
	if err := a.eng.SetAudioDevice(req.Device); err != nil {
		if errors.Is(err, backend.ErrUnknownDevice) {
			writeError(w, http.StatusUnprocessableEntity, "unknown_device")
			return
		}
		a.logger.Error().Err(err).Str("device", req.Device).Msg("device change failed")
		writeError(w, http.StatusInternalServerError, "device_change_failed")
		return
	}
	writeJSON(w, http.StatusOK, a.statusPayload())
}

func (a *API) handleSubtitles(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Enabled bool `json:"enabled"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_body")
		return
	}
	a.eng.ToggleSubtitles(req.Enabled)
	writeJSON(w, http.StatusOK, a.statusPayload())
}

func (a *API) handleCrossfade(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Enabled         bool `json:"enabled"`
		DurationSeconds int  `json:"duration_seconds"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_body")
		return
	}
	if err := a.eng.EnableCrossfade(req.Enabled, req.DurationSeconds); err != nil {
		writeError(w, http.StatusUnprocessableEntity, "invalid_crossfade_duration")
		return
	}
	writeJSON(w, http.StatusOK, a.statusPayload())
}

func (a *API) handleStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, a.statusPayload())
}

func (a *API) handleSpectrum(w http.ResponseWriter, r *http.Request) {
	mags := a.eng.GetAudioSpectrum()
	if mags == nil {
		writeError(w, http.StatusNotFound, "no_track_loaded")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"magnitudes": mags})
}

func (a *API) handleDevices(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"devices": a.eng.Devices()})
}

func (a *API) statusPayload() map[string]any {
	st := a.eng.Status()
	payload := map[string]any{
		"state":            string(st.State),
		"position_seconds": st.Position.Seconds(),
		"duration_seconds": st.Duration.Seconds(),
		"volume":           st.Volume,
		"device":           st.Device,
		"subtitles":        st.Subtitles,
		"crossfading":      st.Crossfading,
		"crossfade": map[string]any{
			"enabled":          st.Crossfade.Enabled,
			"duration_seconds": st.Crossfade.DurationSeconds,
		},
		"standby_ready": st.StandbyReady,
	}
	if st.Track != nil {
		payload["track"] = trackPayload(st.Track)
	}
	if st.StandbyTrack != nil {
		payload["standby_track"] = trackPayload(st.StandbyTrack)
	}
	return payload
}

func trackPayload(t *engine.Track) map[string]any {
	return map[string]any{
		"id":     t.ID,
		"path":   t.Path,
		"title":  t.Title,
		"artist": t.Artist,
		"type":   string(t.Type),
	}
}

func trackFromRequest(req playRequest) *engine.Track {
	mt := engine.MediaAudio
	if req.Type == string(engine.MediaVideo) {
		mt = engine.MediaVideo
	}
	return &engine.Track{
		ID:     uuid.NewString(),
		Path:   req.Path,
		Title:  req.Title,
		Artist: req.Artist,
		Type:   mt,
	}
}
