/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package engine

import "time"

// EventType enumerates engine event categories.
type EventType string

const (
	EventStateChanged  EventType = "state_changed"
	EventTimeChanged   EventType = "time_changed"
	EventMediaEnded    EventType = "media_ended"
	EventPlaybackError EventType = "playback_error"
)

// Event carries one engine notification. Fields are populated per type:
// StateChanged uses OldState/NewState, TimeChanged uses
// Position/Duration, MediaEnded uses Track, PlaybackError uses Track
// and Message.
type Event struct {
	Type     EventType     `json:"type"`
	OldState State         `json:"old_state,omitempty"`
	NewState State         `json:"new_state,omitempty"`
	Position time.Duration `json:"position,omitempty"`
	Duration time.Duration `json:"duration,omitempty"`
	Track    *Track        `json:"track,omitempty"`
	Message  string        `json:"message,omitempty"`
}

// Listener receives engine events. Listeners run on the engine's
// dispatcher goroutine, in transition order, with no engine lock held,
// so they may call back into the engine.
type Listener func(Event)

// Subscribe registers a listener and returns its unsubscribe function.
// Dependent components subscribe at construction and unsubscribe at
// teardown; there is no process-global bus.
func (e *Engine) Subscribe(fn Listener) (unsubscribe func()) {
	e.mu.Lock()
	id := e.nextListener
	e.nextListener++
	e.listeners[id] = fn
	e.mu.Unlock()

	return func() {
		e.mu.Lock()
		delete(e.listeners, id)
		e.mu.Unlock()
	}
}

// emitLocked queues an event for delivery. Caller holds e.mu; queue
// order under the lock is delivery order, which is what makes
// MediaEnded always follow the StateChanged that produced it.
func (e *Engine) emitLocked(ev Event) {
	e.pending = append(e.pending, ev)
	e.cond.Signal()
}

// dispatchLoop drains the ordered event queue and fans events out to
// listeners. Runs until Close; drains remaining events before exit.
func (e *Engine) dispatchLoop() {
	defer e.wg.Done()
	for {
		e.mu.Lock()
		for len(e.pending) == 0 && !e.closed {
			e.cond.Wait()
		}
		if len(e.pending) == 0 && e.closed {
			e.mu.Unlock()
			return
		}
		batch := e.pending
		e.pending = nil
		listeners := make([]Listener, 0, len(e.listeners))
		for _, fn := range e.listeners {
			listeners = append(listeners, fn)
		}
		e.mu.Unlock()

		for _, ev := range batch {
			for _, fn := range listeners {
				fn(ev)
			}
		}
	}
}
