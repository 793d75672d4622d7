/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

// Package engine drives gapless, crossfaded playback across two
// backend instances. One slot is audible (active) while the other
// silently preloads the upcoming track (standby); at the trigger point
// a timed dual-volume fade hands audibility over and the slot roles
// swap atomically. A broken upcoming track never disturbs what is
// currently audible.
package engine

import (
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/friendsincode/segue/internal/backend"
)

// defaultCrossfadeSeconds applies when the configuration source leaves
// the fade length unset.
const defaultCrossfadeSeconds = 5

// slot is one of two symmetric resource holders. The backend instance
// belongs to the engine exclusively; callers never touch it.
type slot struct {
	backend backend.Instance
	track   *Track
	ready   bool
	lastErr error
}

func (s *slot) clear() {
	s.track = nil
	s.ready = false
	s.lastErr = nil
}

// Options supplies initial settings from the configuration source.
// Later changes arrive only via the command surface.
type Options struct {
	Volume    float64
	Crossfade CrossfadeConfig
	Device    string
	Scheduler FadeScheduler // nil selects the wall-clock ticker
	Logger    zerolog.Logger
}

// Engine is the playback core. It is a process-wide singleton created
// once at startup and torn down once at shutdown. Every entry point —
// command methods, backend callbacks, fade ticks — serializes through
// one mutex; no mutable field is touched outside it.
type Engine struct {
	logger zerolog.Logger
	sched  FadeScheduler

	mu           sync.Mutex
	cond         *sync.Cond
	slots        [2]*slot
	active       int
	state        State
	nominal      float64
	xfade        CrossfadeConfig
	fading       bool
	fadeDuration time.Duration
	device       string
	subtitles    bool

	pending      []Event
	listeners    map[int]Listener
	nextListener int
	closed       bool
	wg           sync.WaitGroup
}

// New builds the engine and its two backend instances.
func New(factory backend.Factory, opts Options) (*Engine, error) {
	if opts.Crossfade.DurationSeconds == 0 {
		opts.Crossfade.DurationSeconds = defaultCrossfadeSeconds
	}
	if !validCrossfadeDuration(opts.Crossfade.DurationSeconds) {
		return nil, ErrInvalidCrossfadeDuration
	}

	sched := opts.Scheduler
	if sched == nil {
		sched = NewTickerScheduler()
	}

	e := &Engine{
		logger:    opts.Logger.With().Str("component", "engine").Logger(),
		sched:     sched,
		state:     StateIdle,
		nominal:   clamp01(opts.Volume),
		xfade:     opts.Crossfade,
		listeners: make(map[int]Listener),
	}
	e.cond = sync.NewCond(&e.mu)

	// On any constructor failure the instances built so far must be
	// released; nothing else owns them yet.
	releaseSlots := func() {
		for _, s := range e.slots {
			if s != nil {
				_ = s.backend.Close()
			}
		}
	}

	for i := 0; i < 2; i++ {
		i := i
		inst, err := factory(backend.Callbacks{
			OnReady:     func() { e.onReady(i) },
			OnPosition:  func(pos, dur time.Duration) { e.onPosition(i, pos, dur) },
			OnEnd:       func() { e.onEnd(i) },
			OnError:     func(err error) { e.onBackendError(i, err) },
			OnBuffering: func(stalled bool) { e.onBuffering(i, stalled) },
		})
		if err != nil {
			releaseSlots()
			return nil, fmt.Errorf("create backend instance: %w", err)
		}
		e.slots[i] = &slot{backend: inst}
	}

	if opts.Device != "" {
		if err := e.SetAudioDevice(opts.Device); err != nil {
			releaseSlots()
			return nil, err
		}
	}

	e.wg.Add(1)
	go e.dispatchLoop()
	return e, nil
}

// Play cancels any in-progress crossfade, clears both slots, and loads
// track into the active slot. Loading is handed off to the backend;
// readiness arrives asynchronously and moves Loading to Playing.
func (e *Engine) Play(track *Track) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return ErrEngineClosed
	}

	if e.fading {
		// Caller-initiated, not a standby failure: no error event,
		// no MediaEnded for the discarded active track.
		e.sched.Stop()
		e.fading = false
	}
	for _, s := range e.slots {
		_ = s.backend.Stop()
		s.clear()
	}

	act := e.slots[e.active]
	act.track = track
	e.setStateLocked(StateLoading)

	if err := e.loadSlotLocked(act, track); err != nil {
		e.setStateLocked(StateError)
		return fmt.Errorf("%w: %v", ErrLoadRejected, err)
	}
	return nil
}

// loadSlotLocked submits a load request and normalizes the immediate
// rejection path: the slot is cleared and exactly one PlaybackError is
// raised for the candidate.
func (e *Engine) loadSlotLocked(s *slot, track *Track) error {
	if err := s.backend.Load(track.Path); err != nil {
		s.clear()
		s.lastErr = err
		e.emitLocked(Event{Type: EventPlaybackError, Track: track, Message: err.Error()})
		return err
	}
	return nil
}

// Pause is valid from Playing or mid-crossfade; a no-op otherwise.
// Pausing mid-fade suspends the fade's wall-clock accumulation and
// freezes both slot volumes at their last computed values.
func (e *Engine) Pause() {
	e.mu.Lock()
	defer e.mu.Unlock()
	switch e.state {
	case StatePlaying:
		_ = e.slots[e.active].backend.Pause()
		e.setStateLocked(StatePaused)
	case StateCrossfading:
		e.sched.Pause()
		_ = e.slots[e.active].backend.Pause()
		_ = e.slots[1-e.active].backend.Pause()
		e.setStateLocked(StatePaused)
	}
}

// Resume is valid only from Paused; a no-op otherwise. A suspended
// fade resumes from the same fraction, not from scratch.
func (e *Engine) Resume() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.state != StatePaused {
		return
	}
	if e.fading {
		_ = e.slots[e.active].backend.Resume()
		_ = e.slots[1-e.active].backend.Resume()
		e.setStateLocked(StateCrossfading)
		e.sched.Resume()
		return
	}
	_ = e.slots[e.active].backend.Resume()
	e.setStateLocked(StatePlaying)
}

// Stop is idempotent: both slots are cleared and the engine returns to
// Idle regardless of current state. An in-flight fade is aborted
// without a swap and without MediaEnded, since the stop was
// caller-initiated rather than natural completion.
func (e *Engine) Stop() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.fading {
		e.sched.Stop()
		e.fading = false
	}
	for _, s := range e.slots {
		_ = s.backend.Stop()
		s.clear()
	}
	e.setStateLocked(StateIdle)
}

// Seek clamps position into [0, duration]. An unsupported seek is
// ignored, not an error.
func (e *Engine) Seek(pos time.Duration) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	act := e.slots[e.active]
	if act.track == nil {
		return nil
	}
	dur := act.backend.Duration()
	if pos < 0 {
		pos = 0
	}
	if dur > 0 && pos > dur {
		pos = dur
	}
	if err := act.backend.Seek(pos); err != nil {
		// Not seekable: silently ignored per the command contract.
		e.logger.Debug().Err(err).Msg("seek ignored")
	}
	return nil
}

// SetVolume clamps level into [0,1] and stores it as the nominal
// volume. During a crossfade the next fade tick recomputes both slot
// volumes from the new nominal, preserving activeVol+standbyVol ≈
// nominal continuity.
func (e *Engine) SetVolume(level float64) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.nominal = clamp01(level)
	if !e.fading && e.slots[e.active].track != nil {
		_ = e.slots[e.active].backend.SetVolume(e.nominal)
	}
}

// SetAudioDevice validates the device and re-routes both slots, so a
// mid-fade device change cannot cause a channel flip. On failure the
// previous device is retained.
func (e *Engine) SetAudioDevice(id string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	known := false
	for _, d := range e.slots[e.active].backend.Devices() {
		if d == id {
			known = true
			break
		}
	}
	if !known {
		return fmt.Errorf("%w: %s", backend.ErrUnknownDevice, id)
	}
	for _, s := range e.slots {
		if err := s.backend.SetDevice(id); err != nil {
			return err
		}
	}
	e.device = id
	return nil
}

// ToggleSubtitles stores a sticky preference applied to whichever slot
// is active, including the new active slot after a swap.
func (e *Engine) ToggleSubtitles(enabled bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.subtitles = enabled
	if e.slots[e.active].track != nil {
		_ = e.slots[e.active].backend.SetSubtitles(enabled)
	}
}

// EnableCrossfade validates durationSeconds ∈ [1,20]. Invalid input is
// rejected and the previous configuration is unchanged — no partial
// apply.
func (e *Engine) EnableCrossfade(enabled bool, durationSeconds int) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if !validCrossfadeDuration(durationSeconds) {
		return ErrInvalidCrossfadeDuration
	}
	e.xfade = CrossfadeConfig{Enabled: enabled, DurationSeconds: durationSeconds}
	return nil
}

// PreloadNextAsync loads track into the standby slot without audible
// output. Success marks the slot ready for the next crossfade. Failure
// raises one PlaybackError naming only the candidate and leaves the
// active slot completely unaffected.
func (e *Engine) PreloadNextAsync(track *Track) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return ErrEngineClosed
	}
	if e.fading {
		return ErrStandbyBusy
	}
	stb := e.slots[1-e.active]
	_ = stb.backend.Stop()
	stb.clear()
	stb.track = track
	_ = stb.backend.SetVolume(0)
	if err := e.loadSlotLocked(stb, track); err != nil {
		return fmt.Errorf("%w: %v", ErrLoadRejected, err)
	}
	return nil
}

// GetAudioSpectrum returns a snapshot of current frequency magnitudes
// from the active slot, or nil when no track is loaded or the backend
// lacks spectrum support. Non-blocking and safe from any goroutine.
func (e *Engine) GetAudioSpectrum() []float64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	act := e.slots[e.active]
	if act.track == nil {
		return nil
	}
	return act.backend.Spectrum()
}

// Devices lists the output devices known to the backend.
func (e *Engine) Devices() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.slots[e.active].backend.Devices()
}

// State returns the engine-wide playback state.
func (e *Engine) State() State {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state
}

// Status returns a consistent snapshot for status surfaces.
func (e *Engine) Status() Status {
	e.mu.Lock()
	defer e.mu.Unlock()
	act := e.slots[e.active]
	stb := e.slots[1-e.active]
	st := Status{
		State:        e.state,
		Track:        act.track,
		Volume:       e.nominal,
		Device:       e.device,
		Subtitles:    e.subtitles,
		Crossfade:    e.xfade,
		Crossfading:  e.fading,
		StandbyTrack: stb.track,
		StandbyReady: stb.ready,
	}
	if act.track != nil {
		st.Position = act.backend.Position()
		st.Duration = act.backend.Duration()
	}
	return st
}

// Close tears the engine down, releasing both backend instances. Safe
// to call once at shutdown; subsequent commands fail with
// ErrEngineClosed.
func (e *Engine) Close() error {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return nil
	}
	if e.fading {
		e.sched.Stop()
		e.fading = false
	}
	for _, s := range e.slots {
		_ = s.backend.Stop()
		s.clear()
	}
	e.closed = true
	e.cond.Broadcast()
	e.mu.Unlock()

	e.wg.Wait()
	for _, s := range e.slots {
		_ = s.backend.Close()
	}
	return nil
}

// setStateLocked transitions the engine-wide state and queues the
// StateChanged event. Idempotent: equal states emit nothing, which is
// what makes a double Stop produce no duplicate events.
func (e *Engine) setStateLocked(next State) {
	if e.state == next {
		return
	}
	old := e.state
	e.state = next
	e.emitLocked(Event{Type: EventStateChanged, OldState: old, NewState: next})
}

// onReady runs when slot i finishes loading.
func (e *Engine) onReady(i int) {
	e.mu.Lock()
	defer e.mu.Unlock()
	s := e.slots[i]
	if e.closed || s.track == nil {
		return
	}
	if i == e.active {
		if e.state != StateLoading {
			return
		}
		s.ready = true
		_ = s.backend.SetVolume(e.nominal)
		_ = s.backend.SetSubtitles(e.subtitles)
		_ = s.backend.Start()
		e.setStateLocked(StatePlaying)
		return
	}
	// Standby: held ready and silent until the fade begins.
	s.ready = true
	_ = s.backend.SetVolume(0)
}

// onPosition runs on every position update from slot i's backend.
// Updates from the standby slot carry no engine-visible time.
func (e *Engine) onPosition(i int, pos, dur time.Duration) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed || i != e.active || e.slots[i].track == nil {
		return
	}
	e.emitLocked(Event{Type: EventTimeChanged, Position: pos, Duration: dur})
	if e.shouldTriggerLocked(pos, dur) {
		e.beginFadeLocked()
	}
}

// onEnd runs when slot i's stream reaches its natural end.
func (e *Engine) onEnd(i int) {
	e.mu.Lock()
	defer e.mu.Unlock()
	s := e.slots[i]
	if e.closed || s.track == nil {
		return
	}
	if i != e.active {
		// A silent standby ran out before the fade consumed it.
		e.discardStandbyLocked(nil)
		return
	}
	if e.fading {
		// The outgoing track ran dry before the fade finished; finish
		// the handoff now.
		e.completeFadeLocked()
		return
	}
	ended := s.track
	_ = s.backend.Stop()
	s.clear()
	e.setStateLocked(StateStopped)
	e.emitLocked(Event{Type: EventMediaEnded, Track: ended})
}

// onBackendError runs on a fatal error from slot i's backend. Standby
// failures are isolated; active failures force Error and require a new
// Play.
func (e *Engine) onBackendError(i int, err error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	s := e.slots[i]
	if e.closed || s.track == nil {
		return
	}

	if i != e.active {
		if e.fading {
			e.abortFadeLocked(err)
			return
		}
		e.discardStandbyLocked(err)
		return
	}

	if e.fading {
		e.sched.Stop()
		e.fading = false
	}
	failed := s.track
	_ = s.backend.Stop()
	s.clear()
	s.lastErr = err
	e.setStateLocked(StateError)
	e.emitLocked(Event{Type: EventPlaybackError, Track: failed, Message: err.Error()})
}

// onBuffering tracks active-slot stalls.
func (e *Engine) onBuffering(i int, stalled bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed || i != e.active {
		return
	}
	if stalled && e.state == StatePlaying {
		e.setStateLocked(StateBuffering)
	} else if !stalled && e.state == StateBuffering {
		e.setStateLocked(StatePlaying)
	}
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
