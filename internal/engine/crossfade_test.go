/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package engine

import (
	"errors"
	"math"
	"testing"
	"time"
)

// fadeRig sets up the standard two-track situation: A playing on slot
// 0 with crossfade enabled, B preloaded and ready on slot 1.
func fadeRig(t *testing.T, nominal float64, fadeSeconds int) (*testRig, *Track, *Track) {
	t.Helper()
	rig := newTestRig(t, Options{Volume: nominal})
	if err := rig.eng.EnableCrossfade(true, fadeSeconds); err != nil {
		t.Fatalf("EnableCrossfade failed: %v", err)
	}
	trkA := audioTrack("/media/a.mp3")
	trkB := audioTrack("/media/b.mp3")
	rig.startPlaying(t, trkA, 200*time.Second)
	rig.preloadReady(t, trkB, 180*time.Second)
	return rig, trkA, trkB
}

func TestCrossfadeFullScenario(t *testing.T) {
	rig, trkA, trkB := fadeRig(t, 1.0, 5)
	fakeA := rig.factory.Instance(0)
	fakeB := rig.factory.Instance(1)

	// Well before the trigger point nothing happens.
	fakeA.EmitPosition(100 * time.Second)
	if rig.eng.State() != StatePlaying {
		t.Fatalf("state at 100s = %s, want %s", rig.eng.State(), StatePlaying)
	}
	if fakeB.Playing() {
		t.Fatal("standby started before the trigger point")
	}

	// duration 200s, fade 5s: position 195s crosses the threshold.
	fakeA.EmitPosition(195 * time.Second)
	if got := rig.eng.State(); got != StateCrossfading {
		t.Fatalf("state at 195s = %s, want %s", got, StateCrossfading)
	}
	if !fakeB.Playing() {
		t.Fatal("standby backend not started at fade begin")
	}
	if got := fakeB.Volume(); got != 0 {
		t.Errorf("standby volume at fade begin = %v, want 0", got)
	}

	// Ticks: active volume non-increasing, standby non-decreasing, sum
	// stays at nominal.
	prevAct, prevStb := fakeA.Volume(), fakeB.Volume()
	for _, ms := range []int{500, 1000, 2000, 3000, 4000, 4500} {
		rig.sched.Tick(time.Duration(ms) * time.Millisecond)
		a, b := fakeA.Volume(), fakeB.Volume()
		if a > prevAct+1e-9 {
			t.Errorf("at %dms active volume rose: %v -> %v", ms, prevAct, a)
		}
		if b < prevStb-1e-9 {
			t.Errorf("at %dms standby volume fell: %v -> %v", ms, prevStb, b)
		}
		if sum := a + b; math.Abs(sum-1.0) > 1e-9 {
			t.Errorf("at %dms volume sum = %v, want 1.0", ms, sum)
		}
		prevAct, prevStb = a, b
	}

	// Elapsed reaches the fade duration: swap.
	rig.sched.Tick(5 * time.Second)

	st := rig.eng.Status()
	if st.State != StatePlaying {
		t.Errorf("state after swap = %s, want %s", st.State, StatePlaying)
	}
	if st.Track != trkB {
		t.Errorf("active track after swap = %v, want %v", st.Track, trkB)
	}
	if st.StandbyTrack != nil || st.StandbyReady {
		t.Errorf("retired slot not cleared: %+v", st)
	}
	if got := fakeB.Volume(); got != 1.0 {
		t.Errorf("new active volume = %v, want nominal 1.0", got)
	}
	if fakeA.Playing() {
		t.Error("retired backend still playing")
	}
	if rig.sched.Running() {
		t.Error("fade scheduler still running after completion")
	}

	waitFor(t, "media ended event", func() bool {
		return rig.rec.count(EventMediaEnded) >= 1
	})
	time.Sleep(20 * time.Millisecond)
	if got := rig.rec.count(EventMediaEnded); got != 1 {
		t.Errorf("MediaEnded count = %d, want exactly 1", got)
	}
	evs := rig.rec.snapshot()
	playIdx, endIdx := -1, -1
	for i, ev := range evs {
		if ev.Type == EventStateChanged && ev.OldState == StateCrossfading && ev.NewState == StatePlaying {
			playIdx = i
		}
		if ev.Type == EventMediaEnded {
			endIdx = i
			if ev.Track != trkA {
				t.Errorf("MediaEnded names %v, want outgoing %v", ev.Track, trkA)
			}
		}
	}
	if playIdx < 0 || endIdx < 0 || endIdx < playIdx {
		t.Errorf("event order playIdx=%d endIdx=%d, want StateChanged(playing) before MediaEnded", playIdx, endIdx)
	}
}

func TestCrossfadeVolumeFollowsLiveNominal(t *testing.T) {
	rig, _, _ := fadeRig(t, 0.8, 5)
	fakeA := rig.factory.Instance(0)
	fakeB := rig.factory.Instance(1)

	fakeA.EmitPosition(195 * time.Second)
	rig.sched.Tick(2 * time.Second) // fraction 0.4
	if a := fakeA.Volume(); math.Abs(a-0.48) > 1e-9 {
		t.Errorf("active volume at f=0.4 = %v, want 0.48", a)
	}

	rig.eng.SetVolume(0.5)
	rig.sched.Tick(2 * time.Second) // same fraction, new nominal
	if a := fakeA.Volume(); math.Abs(a-0.3) > 1e-9 {
		t.Errorf("active volume after SetVolume(0.5) = %v, want 0.3", a)
	}
	if b := fakeB.Volume(); math.Abs(b-0.2) > 1e-9 {
		t.Errorf("standby volume after SetVolume(0.5) = %v, want 0.2", b)
	}
}

func TestCrossfadeTriggerGuards(t *testing.T) {
	t.Run("disabled", func(t *testing.T) {
		rig := newTestRig(t, Options{Volume: 1})
		rig.startPlaying(t, audioTrack("/media/a.mp3"), 200*time.Second)
		rig.preloadReady(t, audioTrack("/media/b.mp3"), 180*time.Second)

		rig.factory.Instance(0).EmitPosition(199 * time.Second)
		if got := rig.eng.State(); got != StatePlaying {
			t.Errorf("state = %s, want %s with crossfade disabled", got, StatePlaying)
		}
	})

	t.Run("standby not ready", func(t *testing.T) {
		rig := newTestRig(t, Options{Volume: 1})
		if err := rig.eng.EnableCrossfade(true, 5); err != nil {
			t.Fatal(err)
		}
		rig.startPlaying(t, audioTrack("/media/a.mp3"), 200*time.Second)
		if err := rig.eng.PreloadNextAsync(audioTrack("/media/b.mp3")); err != nil {
			t.Fatal(err)
		}
		// Load still pending: no CompleteLoad.
		rig.factory.Instance(0).EmitPosition(199 * time.Second)
		if got := rig.eng.State(); got != StatePlaying {
			t.Errorf("state = %s, want %s with standby still loading", got, StatePlaying)
		}
	})

	t.Run("no retrigger while fading", func(t *testing.T) {
		rig, _, _ := fadeRig(t, 1.0, 5)
		fakeA := rig.factory.Instance(0)
		fakeA.EmitPosition(195 * time.Second)
		fakeA.EmitPosition(196 * time.Second)
		fakeA.EmitPosition(197 * time.Second)
		if got := rig.sched.Starts(); got != 1 {
			t.Errorf("scheduler starts = %d, want 1", got)
		}
	})
}

func TestStopWinsOverConcurrentTick(t *testing.T) {
	rig, _, _ := fadeRig(t, 1.0, 5)
	fakeA := rig.factory.Instance(0)
	fakeB := rig.factory.Instance(1)

	fakeA.EmitPosition(195 * time.Second)
	rig.sched.Tick(1 * time.Second)

	rig.eng.Stop()

	// A straggler tick that raced the stop must be a no-op.
	rig.eng.fadeTick(2 * time.Second)

	if got := rig.eng.State(); got != StateIdle {
		t.Errorf("state = %s, want %s", got, StateIdle)
	}
	if fakeA.Playing() || fakeB.Playing() {
		t.Error("backend still playing after Stop")
	}
	time.Sleep(20 * time.Millisecond)
	if got := rig.rec.count(EventMediaEnded); got != 0 {
		t.Errorf("MediaEnded count = %d, want 0 for aborted fade", got)
	}
}

func TestPauseSuspendsFade(t *testing.T) {
	rig, _, _ := fadeRig(t, 1.0, 5)
	fakeA := rig.factory.Instance(0)
	fakeB := rig.factory.Instance(1)

	fakeA.EmitPosition(195 * time.Second)
	rig.sched.Tick(2 * time.Second)
	volA, volB := fakeA.Volume(), fakeB.Volume()

	rig.eng.Pause()
	if got := rig.eng.State(); got != StatePaused {
		t.Fatalf("state = %s, want %s", got, StatePaused)
	}
	if !fakeA.Paused() || !fakeB.Paused() {
		t.Error("both slots should be paused mid-fade")
	}

	// The production scheduler would not tick while paused; even a
	// delivered tick must leave volumes frozen.
	rig.eng.fadeTick(4 * time.Second)
	if fakeA.Volume() != volA || fakeB.Volume() != volB {
		t.Errorf("volumes moved while paused: %v/%v -> %v/%v", volA, volB, fakeA.Volume(), fakeB.Volume())
	}

	rig.eng.Resume()
	if got := rig.eng.State(); got != StateCrossfading {
		t.Errorf("state after Resume = %s, want %s", got, StateCrossfading)
	}
	if !fakeA.Playing() || !fakeB.Playing() {
		t.Error("both slots should be rolling again after Resume")
	}

	// Fade continues from the same fraction, not from scratch: the
	// scheduler resumed rather than restarted.
	if got := rig.sched.Starts(); got != 1 {
		t.Errorf("scheduler starts = %d, want 1", got)
	}
	rig.sched.Tick(5 * time.Second)
	if got := rig.eng.State(); got != StatePlaying {
		t.Errorf("state after fade completion = %s, want %s", got, StatePlaying)
	}
}

func TestStandbyErrorMidFadeAborts(t *testing.T) {
	rig, trkA, trkB := fadeRig(t, 0.8, 5)
	fakeA := rig.factory.Instance(0)
	fakeB := rig.factory.Instance(1)

	fakeA.EmitPosition(195 * time.Second)
	rig.sched.Tick(2 * time.Second)

	fakeB.EmitError(errors.New("decode failed"))

	st := rig.eng.Status()
	if st.State != StatePlaying {
		t.Errorf("state = %s, want %s after abort", st.State, StatePlaying)
	}
	if st.Track != trkA {
		t.Errorf("active track = %v, want %v", st.Track, trkA)
	}
	if st.StandbyTrack != nil {
		t.Errorf("standby not discarded: %v", st.StandbyTrack)
	}
	if got := fakeA.Volume(); got != 0.8 {
		t.Errorf("active volume restored to %v, want nominal 0.8", got)
	}
	if rig.sched.Running() {
		t.Error("fade scheduler still running after abort")
	}

	waitFor(t, "playback error event", func() bool {
		return rig.rec.count(EventPlaybackError) == 1
	})
	for _, ev := range rig.rec.snapshot() {
		if ev.Type == EventPlaybackError && ev.Track != trkB {
			t.Errorf("PlaybackError names %v, want failed candidate %v", ev.Track, trkB)
		}
		if ev.Type == EventMediaEnded {
			t.Error("aborted fade must not emit MediaEnded")
		}
	}
}

func TestActiveEndMidFadeCompletesHandoff(t *testing.T) {
	rig, trkA, trkB := fadeRig(t, 1.0, 5)
	fakeA := rig.factory.Instance(0)

	fakeA.EmitPosition(195 * time.Second)
	rig.sched.Tick(3 * time.Second)

	// The outgoing stream runs dry before the fade timer finishes.
	fakeA.EmitEnd()

	st := rig.eng.Status()
	if st.State != StatePlaying {
		t.Errorf("state = %s, want %s", st.State, StatePlaying)
	}
	if st.Track != trkB {
		t.Errorf("active track = %v, want %v after early handoff", st.Track, trkB)
	}
	waitFor(t, "media ended event", func() bool {
		return rig.rec.count(EventMediaEnded) == 1
	})
	for _, ev := range rig.rec.snapshot() {
		if ev.Type == EventMediaEnded && ev.Track != trkA {
			t.Errorf("MediaEnded names %v, want %v", ev.Track, trkA)
		}
	}
}

func TestPreloadRejectedWhileFading(t *testing.T) {
	rig, _, _ := fadeRig(t, 1.0, 5)
	rig.factory.Instance(0).EmitPosition(195 * time.Second)

	err := rig.eng.PreloadNextAsync(audioTrack("/media/c.mp3"))
	if !errors.Is(err, ErrStandbyBusy) {
		t.Errorf("PreloadNextAsync mid-fade = %v, want ErrStandbyBusy", err)
	}
}

func TestPlayDuringFadeCancelsSilently(t *testing.T) {
	rig, _, _ := fadeRig(t, 1.0, 5)
	rig.factory.Instance(0).EmitPosition(195 * time.Second)

	trkC := audioTrack("/media/c.mp3")
	if err := rig.eng.Play(trkC); err != nil {
		t.Fatalf("Play mid-fade failed: %v", err)
	}
	rig.factory.Instance(0).CompleteLoad(120 * time.Second)

	st := rig.eng.Status()
	if st.State != StatePlaying || st.Track != trkC {
		t.Errorf("status after Play mid-fade = %+v, want playing %v", st, trkC)
	}
	time.Sleep(20 * time.Millisecond)
	if got := rig.rec.count(EventMediaEnded); got != 0 {
		t.Errorf("MediaEnded count = %d, want 0 for caller-initiated replacement", got)
	}
	if got := rig.rec.count(EventPlaybackError); got != 0 {
		t.Errorf("PlaybackError count = %d, want 0", got)
	}
}

func TestSubtitlePreferenceSurvivesSwap(t *testing.T) {
	rig, _, _ := fadeRig(t, 1.0, 5)
	rig.eng.ToggleSubtitles(true)

	rig.factory.Instance(0).EmitPosition(195 * time.Second)
	rig.sched.Tick(5 * time.Second)

	if !rig.factory.Instance(1).Subtitles() {
		t.Error("subtitle preference not applied to new active slot after swap")
	}
}

func TestFadeFraction(t *testing.T) {
	tests := []struct {
		elapsed  time.Duration
		duration time.Duration
		want     float64
	}{
		{0, 5 * time.Second, 0},
		{2500 * time.Millisecond, 5 * time.Second, 0.5},
		{5 * time.Second, 5 * time.Second, 1},
		{7 * time.Second, 5 * time.Second, 1},
		{-1 * time.Second, 5 * time.Second, 0},
		{1 * time.Second, 0, 1},
	}
	for _, tt := range tests {
		if got := fadeFraction(tt.elapsed, tt.duration); math.Abs(got-tt.want) > 1e-9 {
			t.Errorf("fadeFraction(%v, %v) = %v, want %v", tt.elapsed, tt.duration, got, tt.want)
		}
	}
}

func TestStandbyUnreadyNeverFades(t *testing.T) {
	rig := newTestRig(t, Options{Volume: 1})
	if err := rig.eng.EnableCrossfade(true, 5); err != nil {
		t.Fatal(err)
	}
	rig.startPlaying(t, audioTrack("/media/a.mp3"), 200*time.Second)
	rig.preloadReady(t, audioTrack("/media/b.mp3"), 180*time.Second)

	// The preloaded standby runs out (or is otherwise discarded) before
	// the trigger point: readiness is gone and no fade may start.
	rig.factory.Instance(1).EmitEnd()

	rig.factory.Instance(0).EmitPosition(195 * time.Second)
	if got := rig.eng.State(); got != StatePlaying {
		t.Errorf("state = %s, want %s when standby unready", got, StatePlaying)
	}
	if got := rig.sched.Starts(); got != 0 {
		t.Errorf("scheduler starts = %d, want 0", got)
	}
}
