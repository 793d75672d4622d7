/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package models

import (
	"time"
)

// QueueStatus tracks an entry's lifecycle through the queue.
type QueueStatus string

const (
	QueuePending QueueStatus = "pending"
	QueuePlaying QueueStatus = "playing"
	QueuePlayed  QueueStatus = "played"
	QueueFailed  QueueStatus = "failed"
)

// MediaKind distinguishes audio-only from audio+video resources.
type MediaKind string

const (
	MediaKindAudio MediaKind = "audio"
	MediaKindVideo MediaKind = "video"
)

// QueueEntry is one track in the play queue. Position orders the
// queue; status records what happened to the entry.
type QueueEntry struct {
	ID        string `gorm:"type:uuid;primaryKey"`
	Position  int    `gorm:"index"`
	Path      string
	Title     string
	Artist    string
	Kind      MediaKind   `gorm:"type:varchar(8)"`
	Status    QueueStatus `gorm:"type:varchar(16);index"`
	Error     string      `gorm:"type:text"`
	Duration  time.Duration
	CreatedAt time.Time
	UpdatedAt time.Time
}

// PlayHistory records tracks that finished playing, naturally or via
// crossfade handoff.
type PlayHistory struct {
	ID       string `gorm:"type:uuid;primaryKey"`
	Path     string
	Title    string
	Artist   string
	PlayedAt time.Time `gorm:"index"`
}

// PlayerSettings persists playback preferences across restarts. A
// single row keyed by ID=1.
type PlayerSettings struct {
	ID                int `gorm:"primaryKey"`
	Volume            float64
	CrossfadeEnabled  bool
	CrossfadeDuration int
	AudioDevice       string
	Subtitles         bool
	UpdatedAt         time.Time
}
