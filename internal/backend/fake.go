/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package backend

import (
	"sync"
	"time"
)

// Fake is a scriptable in-memory Instance. It produces no output and
// never acts on its own: tests (and dry-run tooling) drive readiness,
// position, end and error signals explicitly, which keeps engine
// behavior deterministic.
type Fake struct {
	mu        sync.Mutex
	cb        Callbacks
	closed    bool
	path      string
	loading   bool
	loaded    bool
	playing   bool
	paused    bool
	volume    float64
	device    string
	subtitles bool
	pos       time.Duration
	dur       time.Duration
	spectrum  []float64
	devices   []string

	// LoadErr, when set, makes the next Load call fail immediately
	// instead of waiting for CompleteLoad/FailLoad.
	LoadErr error
	// SeekErr is returned from Seek when set (e.g. ErrNotSeekable).
	SeekErr error
}

// FakeFactory hands out Fakes and remembers them in creation order so
// tests can reach the two engine slots.
type FakeFactory struct {
	mu        sync.Mutex
	instances []*Fake
}

func NewFakeFactory() *FakeFactory {
	return &FakeFactory{}
}

// Factory returns a backend.Factory producing fakes from this factory.
func (f *FakeFactory) Factory() Factory {
	return func(cb Callbacks) (Instance, error) {
		inst := &Fake{
			cb:      cb,
			volume:  1.0,
			device:  "default",
			devices: []string{"default", "headphones"},
		}
		f.mu.Lock()
		f.instances = append(f.instances, inst)
		f.mu.Unlock()
		return inst, nil
	}
}

// Instance returns the i-th created fake.
func (f *FakeFactory) Instance(i int) *Fake {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.instances[i]
}

func (f *Fake) Load(path string) error {
	f.mu.Lock()
	if f.closed {
		f.mu.Unlock()
		return ErrClosed
	}
	if err := f.LoadErr; err != nil {
		f.mu.Unlock()
		return err
	}
	f.path = path
	f.loading = true
	f.loaded = false
	f.playing = false
	f.paused = false
	f.pos = 0
	f.mu.Unlock()
	return nil
}

// CompleteLoad finishes a pending Load with the given duration and
// fires OnReady. Must not be called while the engine lock is held.
func (f *Fake) CompleteLoad(dur time.Duration) {
	f.mu.Lock()
	f.loading = false
	f.loaded = true
	f.dur = dur
	cb := f.cb
	f.mu.Unlock()
	if cb.OnReady != nil {
		cb.OnReady()
	}
}

// FailLoad fails a pending Load and fires OnError.
func (f *Fake) FailLoad(err error) {
	f.mu.Lock()
	f.loading = false
	f.loaded = false
	cb := f.cb
	f.mu.Unlock()
	if cb.OnError != nil {
		cb.OnError(err)
	}
}

// EmitPosition delivers a position callback as the backend's internal
// thread would.
func (f *Fake) EmitPosition(pos time.Duration) {
	f.mu.Lock()
	f.pos = pos
	dur := f.dur
	cb := f.cb
	f.mu.Unlock()
	if cb.OnPosition != nil {
		cb.OnPosition(pos, dur)
	}
}

// EmitEnd delivers a natural end-of-stream callback.
func (f *Fake) EmitEnd() {
	f.mu.Lock()
	cb := f.cb
	f.mu.Unlock()
	if cb.OnEnd != nil {
		cb.OnEnd()
	}
}

// EmitError delivers a fatal backend error callback.
func (f *Fake) EmitError(err error) {
	f.mu.Lock()
	cb := f.cb
	f.mu.Unlock()
	if cb.OnError != nil {
		cb.OnError(err)
	}
}

// EmitBuffering delivers a buffering stall/recovery callback.
func (f *Fake) EmitBuffering(stalled bool) {
	f.mu.Lock()
	cb := f.cb
	f.mu.Unlock()
	if cb.OnBuffering != nil {
		cb.OnBuffering(stalled)
	}
}

func (f *Fake) Start() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.playing = true
	f.paused = false
	return nil
}

func (f *Fake) Pause() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.paused = true
	f.playing = false
	return nil
}

func (f *Fake) Resume() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.paused = false
	f.playing = true
	return nil
}

func (f *Fake) Stop() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.playing = false
	f.paused = false
	f.loaded = false
	f.loading = false
	f.path = ""
	f.pos = 0
	f.dur = 0
	return nil
}

func (f *Fake) Seek(pos time.Duration) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.SeekErr; err != nil {
		return err
	}
	f.pos = pos
	return nil
}

func (f *Fake) SetVolume(v float64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.volume = v
	return nil
}

func (f *Fake) SetDevice(id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, d := range f.devices {
		if d == id {
			f.device = id
			return nil
		}
	}
	return ErrUnknownDevice
}

func (f *Fake) SetSubtitles(enabled bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.subtitles = enabled
	return nil
}

func (f *Fake) Position() time.Duration {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.pos
}

func (f *Fake) Duration() time.Duration {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.dur
}

// SetSpectrum scripts the snapshot returned from Spectrum.
func (f *Fake) SetSpectrum(s []float64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.spectrum = s
}

func (f *Fake) Spectrum() []float64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.loaded {
		return nil
	}
	out := make([]float64, len(f.spectrum))
	copy(out, f.spectrum)
	return out
}

func (f *Fake) Devices() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, len(f.devices))
	copy(out, f.devices)
	return out
}

func (f *Fake) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	return nil
}

// Inspection helpers for tests.

func (f *Fake) Closed() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closed
}

func (f *Fake) Volume() float64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.volume
}

func (f *Fake) Playing() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.playing
}

func (f *Fake) Paused() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.paused
}

func (f *Fake) LoadedPath() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.path
}

func (f *Fake) Device() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.device
}

func (f *Fake) Subtitles() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.subtitles
}
