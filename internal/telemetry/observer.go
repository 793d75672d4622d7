/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package telemetry

import (
	"github.com/friendsincode/segue/internal/engine"
)

var playbackStates = []engine.State{
	engine.StateIdle,
	engine.StateLoading,
	engine.StatePlaying,
	engine.StatePaused,
	engine.StateBuffering,
	engine.StateCrossfading,
	engine.StateStopped,
	engine.StateError,
}

// ObserveEngine subscribes playback metrics to engine events and
// returns the unsubscribe function.
func ObserveEngine(e *engine.Engine) func() {
	setPlaybackState(e.State())
	return e.Subscribe(func(ev engine.Event) {
		switch ev.Type {
		case engine.EventStateChanged:
			setPlaybackState(ev.NewState)
			if ev.OldState == engine.StateCrossfading && ev.NewState == engine.StatePlaying {
				CrossfadesTotal.Inc()
			}
		case engine.EventMediaEnded:
			TracksPlayedTotal.Inc()
		case engine.EventPlaybackError:
			PlaybackErrorsTotal.Inc()
		}
	})
}

func setPlaybackState(current engine.State) {
	for _, s := range playbackStates {
		v := 0.0
		if s == current {
			v = 1.0
		}
		PlaybackState.WithLabelValues(string(s)).Set(v)
	}
}
