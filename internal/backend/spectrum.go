/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package backend

import (
	"math"

	"github.com/faiface/beep"
	"github.com/faiface/beep/speaker"
	"github.com/mjibson/go-dsp/fft"
)

// fftSize is the analysis window. Magnitudes covers the first half of
// the window, DC through Nyquist.
const fftSize = 1024

// spectrumTap passes samples through unchanged while keeping the most
// recent window in a ring buffer for frequency analysis. The ring is
// written on the speaker goroutine and snapshotted under speaker.Lock.
type spectrumTap struct {
	inner beep.Streamer
	ring  [fftSize]float64
	head  int
}

func newSpectrumTap(inner beep.Streamer) *spectrumTap {
	return &spectrumTap{inner: inner}
}

func (t *spectrumTap) Stream(samples [][2]float64) (int, bool) {
	n, ok := t.inner.Stream(samples)
	for i := 0; i < n; i++ {
		// Mono mixdown.
		t.ring[t.head] = (samples[i][0] + samples[i][1]) / 2
		t.head = (t.head + 1) % fftSize
	}
	return n, ok
}

func (t *spectrumTap) Err() error { return t.inner.Err() }

// Magnitudes returns frequency magnitudes for the most recent window.
// Non-blocking apart from the brief ring snapshot.
func (t *spectrumTap) Magnitudes() []float64 {
	window := make([]float64, fftSize)
	speaker.Lock()
	head := t.head
	for i := 0; i < fftSize; i++ {
		window[i] = t.ring[(head+i)%fftSize]
	}
	speaker.Unlock()
	return magnitudes(window)
}

// magnitudes runs a real FFT over the window and returns the first
// half of the magnitude spectrum.
func magnitudes(window []float64) []float64 {
	coeffs := fft.FFTReal(window)
	out := make([]float64, len(window)/2)
	for i := range out {
		out[i] = math.Sqrt(real(coeffs[i])*real(coeffs[i]) + imag(coeffs[i])*imag(coeffs[i]))
	}
	return out
}
