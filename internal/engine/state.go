/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package engine

import "time"

// State is the single engine-wide playback state. It reflects the
// active slot's condition, except Crossfading, which is cross-cutting
// and temporarily suppresses ordinary transitions.
type State string

const (
	StateIdle        State = "idle"
	StateLoading     State = "loading"
	StatePlaying     State = "playing"
	StatePaused      State = "paused"
	StateBuffering   State = "buffering"
	StateCrossfading State = "crossfading"
	StateStopped     State = "stopped"
	StateError       State = "error"
)

// MediaType distinguishes audio-only from audio+video resources.
type MediaType string

const (
	MediaAudio MediaType = "audio"
	MediaVideo MediaType = "video"
)

// Track identifies a playable resource. It is immutable once handed to
// the engine and owned by the caller; slots hold a reference while the
// track is loaded.
type Track struct {
	ID       string
	Path     string
	Title    string
	Artist   string
	Type     MediaType
	Duration time.Duration // hint only; the backend reports the real value
}

// Status is a consistent snapshot of the engine for status endpoints.
type Status struct {
	State        State
	Track        *Track
	Position     time.Duration
	Duration     time.Duration
	Volume       float64
	Device       string
	Subtitles    bool
	Crossfade    CrossfadeConfig
	Crossfading  bool
	StandbyTrack *Track
	StandbyReady bool
}
