/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package engine

import (
	"time"
)

// fadeTickPeriod is the FadeScheduler interval during a crossfade.
const fadeTickPeriod = 50 * time.Millisecond

// CrossfadeConfig controls automatic transitions. DurationSeconds is
// valid in [1,20]; updates failing validation leave the previous value
// intact.
type CrossfadeConfig struct {
	Enabled         bool `json:"enabled" yaml:"enabled"`
	DurationSeconds int  `json:"duration_seconds" yaml:"duration_seconds"`
}

func (c CrossfadeConfig) duration() time.Duration {
	return time.Duration(c.DurationSeconds) * time.Second
}

// validCrossfadeDuration reports whether d is an acceptable fade length.
func validCrossfadeDuration(d int) bool {
	return d >= 1 && d <= 20
}

// fadeFraction maps wall-clock elapsed to [0,1].
func fadeFraction(elapsed, duration time.Duration) float64 {
	if duration <= 0 {
		return 1
	}
	f := float64(elapsed) / float64(duration)
	if f < 0 {
		return 0
	}
	if f > 1 {
		return 1
	}
	return f
}

// shouldTriggerLocked evaluates the crossfade trigger on a position
// update from the active backend. The isCrossfading re-entrancy guard
// is checked first: a second fade never starts while one is active.
func (e *Engine) shouldTriggerLocked(pos, dur time.Duration) bool {
	if e.fading || e.state != StatePlaying {
		return false
	}
	if !e.xfade.Enabled || dur <= 0 {
		return false
	}
	if !e.slots[1-e.active].ready {
		return false
	}
	return pos >= dur-e.xfade.duration()
}

// beginFadeLocked starts the dual-volume fade: the standby backend is
// unmuted at volume zero and the scheduler begins delivering ticks.
func (e *Engine) beginFadeLocked() {
	stb := e.slots[1-e.active]

	e.fading = true
	e.fadeDuration = e.xfade.duration()

	_ = stb.backend.SetVolume(0)
	if err := stb.backend.Start(); err != nil {
		// Standby refused to roll: abort before any volume moved.
		e.fading = false
		e.discardStandbyLocked(err)
		return
	}

	e.setStateLocked(StateCrossfading)
	e.logger.Debug().
		Str("from", trackPath(e.slots[e.active].track)).
		Str("to", trackPath(stb.track)).
		Dur("duration", e.fadeDuration).
		Msg("crossfade started")

	e.sched.Start(fadeTickPeriod, e.fadeTick)
}

// fadeTick runs on the scheduler goroutine. Stop always wins: a tick
// that observes no active fade is a no-op.
func (e *Engine) fadeTick(elapsed time.Duration) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if !e.fading || e.closed {
		return
	}
	if e.state == StatePaused {
		// Volumes stay frozen at their last computed values.
		return
	}

	f := fadeFraction(elapsed, e.fadeDuration)
	act := e.slots[e.active]
	stb := e.slots[1-e.active]

	// Recomputed from the live nominal each tick, so a mid-fade
	// SetVolume keeps activeVol+standbyVol equal to the new nominal.
	_ = act.backend.SetVolume(e.nominal * (1 - f))
	_ = stb.backend.SetVolume(e.nominal * f)

	if f >= 1 {
		e.completeFadeLocked()
	}
}

// completeFadeLocked performs the slot swap: a single flip of the
// active index, never a move of backend objects. The retired slot is
// stopped, cleared and becomes the empty standby.
func (e *Engine) completeFadeLocked() {
	e.sched.Stop()

	old := e.slots[e.active]
	e.active = 1 - e.active
	now := e.slots[e.active]

	_ = now.backend.SetVolume(e.nominal)
	_ = now.backend.SetSubtitles(e.subtitles)

	endedTrack := old.track
	_ = old.backend.Stop()
	old.clear()

	e.fading = false
	e.setStateLocked(StatePlaying)
	// Queued after the StateChanged above; delivery order is queue order.
	e.emitLocked(Event{Type: EventMediaEnded, Track: endedTrack})

	e.logger.Info().
		Str("ended", trackPath(endedTrack)).
		Str("now_playing", trackPath(now.track)).
		Msg("crossfade complete")
}

// abortFadeLocked cancels an in-progress fade without a swap. The
// active slot returns to nominal volume; the standby contents are
// discarded. cause is non-nil only for standby failures, in which case
// exactly one PlaybackError naming the failed candidate is raised —
// the active track is never reported as errored by a standby failure.
func (e *Engine) abortFadeLocked(cause error) {
	if !e.fading {
		return
	}
	e.sched.Stop()
	e.fading = false

	_ = e.slots[e.active].backend.SetVolume(e.nominal)
	e.discardStandbyLocked(cause)

	if e.state == StateCrossfading {
		e.setStateLocked(StatePlaying)
	}
}

// discardStandbyLocked stops and clears the standby slot. Cleanup here
// can run from an error callback, so it must be idempotent and must
// not fail.
func (e *Engine) discardStandbyLocked(cause error) {
	stb := e.slots[1-e.active]
	failed := stb.track
	_ = stb.backend.Stop()
	stb.clear()
	stb.lastErr = cause

	if cause != nil && failed != nil {
		e.emitLocked(Event{Type: EventPlaybackError, Track: failed, Message: cause.Error()})
	}
}

func trackPath(t *Track) string {
	if t == nil {
		return ""
	}
	return t.Path
}
