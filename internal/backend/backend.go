/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

// Package backend abstracts a single decode/render unit. The playback
// engine owns exactly two Instances and never exposes them to callers.
package backend

import (
	"errors"
	"time"
)

var (
	// ErrNotSeekable indicates the loaded media cannot seek.
	ErrNotSeekable = errors.New("media not seekable")

	// ErrUnknownDevice indicates the requested output device does not exist.
	ErrUnknownDevice = errors.New("unknown audio device")

	// ErrClosed indicates the instance has been disposed.
	ErrClosed = errors.New("backend instance closed")

	// ErrUnsupportedFormat indicates the media container is not decodable.
	ErrUnsupportedFormat = errors.New("unsupported media format")
)

// Callbacks are delivered from goroutines owned by the backend, never
// synchronously from an Instance method call. The engine serializes
// them through its own lock.
type Callbacks struct {
	// OnReady fires once a Load has opened and decoded the resource.
	OnReady func()
	// OnPosition fires periodically while the instance is rolling.
	OnPosition func(pos, dur time.Duration)
	// OnEnd fires when the stream reaches its natural end.
	OnEnd func()
	// OnError fires on a fatal decode/render failure.
	OnError func(err error)
	// OnBuffering fires when the instance stalls waiting for data and
	// again when it recovers.
	OnBuffering func(stalled bool)
}

// Instance is one decode/render unit. Load is asynchronous: it returns
// once the request is accepted and readiness arrives via OnReady or
// OnError. All other methods are non-blocking. Stop and Close are
// idempotent and never fail on an already-stopped instance.
type Instance interface {
	Load(path string) error
	Start() error
	Pause() error
	Resume() error
	Stop() error
	Seek(pos time.Duration) error
	SetVolume(v float64) error
	SetDevice(id string) error
	SetSubtitles(enabled bool) error
	Position() time.Duration
	Duration() time.Duration
	Spectrum() []float64
	Devices() []string
	Close() error
}

// Factory creates a fresh Instance wired to the given callbacks.
type Factory func(cb Callbacks) (Instance, error)
