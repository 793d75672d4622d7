/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package backend

import (
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/faiface/beep"
	"github.com/faiface/beep/effects"
	"github.com/faiface/beep/flac"
	"github.com/faiface/beep/mp3"
	"github.com/faiface/beep/speaker"
	"github.com/faiface/beep/wav"
	"github.com/rs/zerolog"
)

// mixRate is the shared output sample rate. Both engine instances mix
// into one speaker; sources at other rates are resampled.
const mixRate beep.SampleRate = 44100

const positionPollInterval = 200 * time.Millisecond

var speakerOnce sync.Once
var speakerErr error

func initSpeaker() error {
	speakerOnce.Do(func() {
		speakerErr = speaker.Init(mixRate, mixRate.N(time.Second/10))
	})
	return speakerErr
}

// NewBeepFactory initializes the shared speaker and returns a Factory
// producing beep-based instances.
func NewBeepFactory(logger zerolog.Logger) (Factory, error) {
	if err := initSpeaker(); err != nil {
		return nil, fmt.Errorf("init speaker: %w", err)
	}
	return func(cb Callbacks) (Instance, error) {
		return newBeepInstance(cb, logger), nil
	}, nil
}

// gate sits outermost in the streamer chain. Marking it done makes the
// speaker mixer drop the chain without clearing the other instance.
// Mutated only under speaker.Lock.
type gate struct {
	inner beep.Streamer
	done  bool
}

func (g *gate) Stream(samples [][2]float64) (int, bool) {
	if g.done || g.inner == nil {
		return 0, false
	}
	return g.inner.Stream(samples)
}

func (g *gate) Err() error { return nil }

type beepInstance struct {
	cb     Callbacks
	logger zerolog.Logger

	mu        sync.Mutex
	gen       int
	closed    bool
	path      string
	stream    beep.StreamSeekCloser
	format    beep.Format
	ctrl      *beep.Ctrl
	vol       *effects.Volume
	gate      *gate
	tap       *spectrumTap
	playing   bool
	linVol    float64
	device    string
	subtitles bool

	endCh chan int
	quit  chan struct{}
	wg    sync.WaitGroup
}

func newBeepInstance(cb Callbacks, logger zerolog.Logger) *beepInstance {
	b := &beepInstance{
		cb:     cb,
		logger: logger.With().Str("component", "beep-backend").Logger(),
		linVol: 1.0,
		device: "default",
		endCh:  make(chan int, 1),
		quit:   make(chan struct{}),
	}
	b.wg.Add(1)
	go b.pollLoop()
	return b
}

// Load accepts the request and decodes asynchronously. Readiness is
// signaled via OnReady, failure via OnError.
func (b *beepInstance) Load(path string) error {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return ErrClosed
	}
	b.stopLocked()
	b.gen++
	gen := b.gen
	b.path = path
	b.mu.Unlock()

	go b.decode(gen, path)
	return nil
}

func (b *beepInstance) decode(gen int, path string) {
	f, err := os.Open(path)
	if err != nil {
		b.failLoad(gen, fmt.Errorf("open media: %w", err))
		return
	}

	var stream beep.StreamSeekCloser
	var format beep.Format
	switch strings.ToLower(filepath.Ext(path)) {
	case ".mp3":
		stream, format, err = mp3.Decode(f)
	case ".wav":
		stream, format, err = wav.Decode(f)
	case ".flac":
		stream, format, err = flac.Decode(f)
	default:
		err = fmt.Errorf("%w: %s", ErrUnsupportedFormat, filepath.Ext(path))
	}
	if err != nil {
		_ = f.Close()
		b.failLoad(gen, err)
		return
	}

	b.mu.Lock()
	if b.closed || gen != b.gen {
		b.mu.Unlock()
		_ = stream.Close()
		return
	}

	var chain beep.Streamer = beep.Seq(stream, beep.Callback(func() {
		// Runs on the speaker goroutine; hand off to the poll loop.
		select {
		case b.endCh <- gen:
		default:
		}
	}))
	if format.SampleRate != mixRate {
		chain = beep.Resample(4, format.SampleRate, mixRate, chain)
	}
	tap := newSpectrumTap(chain)
	ctrl := &beep.Ctrl{Streamer: tap, Paused: true}
	vol := &effects.Volume{Streamer: ctrl, Base: 2}
	applyVolume(vol, b.linVol)
	g := &gate{inner: vol}

	b.stream = stream
	b.format = format
	b.ctrl = ctrl
	b.vol = vol
	b.gate = g
	b.tap = tap
	b.playing = false
	cb := b.cb
	b.mu.Unlock()

	// Held silent and paused in the mixer until Start.
	speaker.Play(g)

	b.logger.Debug().Str("path", path).Int("sample_rate", int(format.SampleRate)).Msg("media decoded")
	if cb.OnReady != nil {
		cb.OnReady()
	}
}

func (b *beepInstance) failLoad(gen int, err error) {
	b.mu.Lock()
	stale := b.closed || gen != b.gen
	cb := b.cb
	b.mu.Unlock()
	if stale {
		return
	}
	b.logger.Debug().Err(err).Msg("decode failed")
	if cb.OnError != nil {
		cb.OnError(err)
	}
}

func (b *beepInstance) Start() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return ErrClosed
	}
	if b.ctrl == nil {
		return fmt.Errorf("no media loaded")
	}
	speaker.Lock()
	b.ctrl.Paused = false
	speaker.Unlock()
	b.playing = true
	return nil
}

func (b *beepInstance) Pause() error {
	return b.setPaused(true)
}

func (b *beepInstance) Resume() error {
	return b.setPaused(false)
}

func (b *beepInstance) setPaused(paused bool) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return ErrClosed
	}
	if b.ctrl == nil {
		return nil
	}
	speaker.Lock()
	b.ctrl.Paused = paused
	speaker.Unlock()
	b.playing = !paused
	return nil
}

func (b *beepInstance) Stop() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.stopLocked()
	return nil
}

// stopLocked detaches the chain from the mixer and releases the stream.
// Safe to call from failure paths and on an already-stopped instance.
func (b *beepInstance) stopLocked() {
	if b.gate != nil {
		speaker.Lock()
		b.gate.done = true
		speaker.Unlock()
	}
	if b.stream != nil {
		_ = b.stream.Close()
	}
	b.stream = nil
	b.ctrl = nil
	b.vol = nil
	b.gate = nil
	b.tap = nil
	b.playing = false
	b.path = ""
}

func (b *beepInstance) Seek(pos time.Duration) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return ErrClosed
	}
	if b.stream == nil {
		return nil
	}
	n := b.format.SampleRate.N(pos)
	speaker.Lock()
	err := b.stream.Seek(n)
	speaker.Unlock()
	if err != nil {
		return fmt.Errorf("seek: %w", err)
	}
	return nil
}

func applyVolume(vol *effects.Volume, lin float64) {
	if lin <= 1e-3 {
		vol.Silent = true
		return
	}
	vol.Silent = false
	vol.Volume = math.Log2(lin)
}

func (b *beepInstance) SetVolume(v float64) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return ErrClosed
	}
	b.linVol = v
	if b.vol != nil {
		speaker.Lock()
		applyVolume(b.vol, v)
		speaker.Unlock()
	}
	return nil
}

func (b *beepInstance) SetDevice(id string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if id != "default" {
		return fmt.Errorf("%w: %s", ErrUnknownDevice, id)
	}
	b.device = id
	return nil
}

// SetSubtitles is a stored no-op for audio media; the flag is part of
// the Instance contract so video-capable backends can honor it.
func (b *beepInstance) SetSubtitles(enabled bool) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.subtitles = enabled
	return nil
}

func (b *beepInstance) Position() time.Duration {
	b.mu.Lock()
	stream := b.stream
	format := b.format
	b.mu.Unlock()
	if stream == nil {
		return 0
	}
	speaker.Lock()
	n := stream.Position()
	speaker.Unlock()
	return format.SampleRate.D(n)
}

func (b *beepInstance) Duration() time.Duration {
	b.mu.Lock()
	stream := b.stream
	format := b.format
	b.mu.Unlock()
	if stream == nil {
		return 0
	}
	speaker.Lock()
	n := stream.Len()
	speaker.Unlock()
	return format.SampleRate.D(n)
}

func (b *beepInstance) Spectrum() []float64 {
	b.mu.Lock()
	tap := b.tap
	b.mu.Unlock()
	if tap == nil {
		return nil
	}
	return tap.Magnitudes()
}

func (b *beepInstance) Devices() []string {
	return []string{"default"}
}

func (b *beepInstance) Close() error {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return nil
	}
	b.closed = true
	b.stopLocked()
	b.mu.Unlock()
	close(b.quit)
	b.wg.Wait()
	return nil
}

// pollLoop reports position while rolling and forwards end-of-stream
// signals off the speaker goroutine. Callbacks are invoked without
// holding the instance mutex.
func (b *beepInstance) pollLoop() {
	defer b.wg.Done()
	ticker := time.NewTicker(positionPollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-b.quit:
			return
		case gen := <-b.endCh:
			b.mu.Lock()
			stale := b.closed || gen != b.gen
			cb := b.cb
			b.mu.Unlock()
			if !stale && cb.OnEnd != nil {
				cb.OnEnd()
			}
		case <-ticker.C:
			b.mu.Lock()
			rolling := !b.closed && b.playing && b.stream != nil
			cb := b.cb
			b.mu.Unlock()
			if rolling && cb.OnPosition != nil {
				cb.OnPosition(b.Position(), b.Duration())
			}
		}
	}
}
