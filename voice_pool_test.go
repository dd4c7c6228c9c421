package main

import (
	"errors"
	"io"
	"log/slog"
	"math/rand"
	"sync"
	"sync/atomic"
	"testing"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type testRig struct {
	env   *EnvelopeHandle
	chain *EffectsChain
	pool  *VoicePool
	buf   []float32
}

func newTestRig(t *testing.T, divisions int) *testRig {
	t.Helper()
	r := &testRig{
		env:   NewEnvelopeHandle(DefaultEnvelope()),
		chain: NewEffectsChain(testSampleRate, 512),
		buf:   make([]float32, 512),
	}
	r.pool = NewVoicePool(r.chain, r.env, testSampleRate, quietLogger())
	if err := r.pool.Rebuild(DefaultTuning(divisions), WaveSine); err != nil {
		t.Fatalf("initial rebuild: %v", err)
	}
	return r
}

// pump renders n blocks through the chain and returns the last one's peak.
func (r *testRig) pump(n int) float32 {
	var p float32
	for range n {
		r.chain.Process(r.buf)
		p = peak(r.buf)
	}
	return p
}

func TestVoicePool_RebuildBindsEveryKey(t *testing.T) {
	r := newTestRig(t, 60)
	steps := r.pool.Steps()
	if len(steps) != 60 {
		t.Fatalf("expected 60 steps, got %d", len(steps))
	}
	for _, s := range steps {
		v, ok := r.pool.Voice(s.Key)
		if !ok {
			t.Fatalf("key %q has no voice", s.Key)
		}
		if v.Frequency() != s.Frequency {
			t.Fatalf("key %q voice at %v, step at %v", s.Key, v.Frequency(), s.Frequency)
		}
	}
	step, ok := r.pool.Lookup('T')
	if !ok || step.Index != 30 || !approxEqual(step.Frequency, 622.25, 0.01) {
		t.Fatalf("step 30 lookup: %+v %v", step, ok)
	}
}

func TestVoicePool_RebuildIdempotent(t *testing.T) {
	r := newTestRig(t, 19)
	before := r.pool.Steps()
	if err := r.pool.Rebuild(DefaultTuning(19), WaveSine); err != nil {
		t.Fatal(err)
	}
	after := r.pool.Steps()
	if len(before) != len(after) {
		t.Fatalf("step count changed: %d -> %d", len(before), len(after))
	}
	for i := range before {
		if before[i] != after[i] {
			t.Fatalf("step %d changed: %+v -> %+v", i, before[i], after[i])
		}
	}
}

func TestVoicePool_InvalidRebuildKeepsOldSet(t *testing.T) {
	r := newTestRig(t, 12)
	gen := r.pool.Generation()
	for _, n := range []int{0, 61} {
		err := r.pool.Rebuild(DefaultTuning(n), WaveSine)
		if !errors.Is(err, ErrInvalidTuning) {
			t.Fatalf("%d divisions: expected ErrInvalidTuning, got %v", n, err)
		}
	}
	if err := r.pool.Rebuild(DefaultTuning(12), waveCount); err == nil {
		t.Fatal("expected an error for an unknown waveform")
	}
	if r.pool.Generation() != gen {
		t.Fatal("failed rebuild must not replace the voice set")
	}
	if tu, _ := r.pool.Tuning(); tu.Divisions != 12 {
		t.Fatalf("tuning changed to %d", tu.Divisions)
	}
	if !r.pool.Dispatch('q', KeyPress) {
		t.Fatal("old voice set should still play")
	}
}

func TestVoicePool_UnmappedKey(t *testing.T) {
	r := newTestRig(t, 12)
	if r.pool.Dispatch('z', KeyPress) {
		t.Fatal("'z' is outside 12-EDO and must be ignored")
	}
	if r.pool.Dispatch('!', KeyPress) {
		t.Fatal("'!' is outside the layout and must be ignored")
	}
	if n := r.pool.Sounding(); n != 0 {
		t.Fatalf("no voice should sound, got %d", n)
	}
}

func TestVoicePool_PressRelease(t *testing.T) {
	r := newTestRig(t, 12)
	r.pool.Dispatch('w', KeyPress)
	if p := r.pump(4); p == 0 {
		t.Fatal("pressed key should be audible")
	}
	if r.pool.Sounding() != 1 {
		t.Fatalf("expected one sounding voice, got %d", r.pool.Sounding())
	}
	r.pool.Dispatch('w', KeyRelease)
	r.pump(4)
	v, _ := r.pool.Voice('w')
	if v.State() != VoiceIdle || v.Ringing() {
		t.Fatal("released voice should end idle and silent")
	}
}

func TestVoicePool_RebuildReleasesOldVoices(t *testing.T) {
	r := newTestRig(t, 12)
	r.pool.Dispatch('q', KeyPress)
	r.pump(2)
	old, _ := r.pool.Voice('q')

	if err := r.pool.Rebuild(DefaultTuning(31), WaveSaw); err != nil {
		t.Fatal(err)
	}
	if old.State() != VoiceIdle {
		t.Fatal("old voice must be stopped by the rebuild")
	}
	if r.pool.PendingTails() != 1 {
		t.Fatalf("expected one tail, got %d", r.pool.PendingTails())
	}
	if nv, _ := r.pool.Voice('q'); nv == old || nv.Waveform() != WaveSaw {
		t.Fatal("key should be bound to a fresh voice with the new waveform")
	}

	r.pump(4)
	if old.Ringing() {
		t.Fatal("old voice should have finished its release")
	}
	if n := r.pool.Reap(); n != 1 {
		t.Fatalf("expected one reaped tail, got %d", n)
	}
	if r.pool.PendingTails() != 0 {
		t.Fatal("tails should be empty after reap")
	}
}

func TestVoicePool_PressOnRetiredArenaIsUndone(t *testing.T) {
	r := newTestRig(t, 12)
	old := r.pool.arena.Load()
	stale := old.byKey['q']

	if err := r.pool.Rebuild(DefaultTuning(12), WaveSaw); err != nil {
		t.Fatal(err)
	}
	// A dispatch that loaded the old arena before the swap.
	old.press(stale)
	if stale.State() != VoiceIdle {
		t.Fatal("press on a retired arena must be undone")
	}

	r.pump(4)
	if !old.drained() {
		t.Fatal("retired arena should drain after the undone press")
	}
	if n := r.pool.Reap(); n != 1 {
		t.Fatalf("expected one reaped tail, got %d", n)
	}

	live := r.pool.arena.Load()
	v := live.byKey['q']
	live.press(v)
	if v.State() != VoiceSounding {
		t.Fatal("press on the live arena must sound")
	}
}

func TestVoicePool_RebuildImmediateKills(t *testing.T) {
	r := newTestRig(t, 12)
	r.pool.Dispatch('q', KeyPress)
	r.pump(2)
	old, _ := r.pool.Voice('q')

	if err := r.pool.RebuildImmediate(DefaultTuning(12), WaveSine); err != nil {
		t.Fatal(err)
	}
	if r.pool.PendingTails() != 0 {
		t.Fatal("immediate rebuild keeps no tails")
	}
	if p := r.pump(1); p != 0 {
		t.Fatalf("expected silence after immediate rebuild, got %v", p)
	}
	if old.Ringing() {
		t.Fatal("old voice should be silenced without a tail")
	}
}

func TestVoicePool_ReleaseAll(t *testing.T) {
	r := newTestRig(t, 12)
	for _, k := range "qwer" {
		r.pool.Dispatch(KeyID(k), KeyPress)
	}
	if r.pool.Sounding() != 4 {
		t.Fatalf("expected 4 sounding voices, got %d", r.pool.Sounding())
	}
	r.pool.ReleaseAll()
	if r.pool.Sounding() != 0 {
		t.Fatal("ReleaseAll should close every gate")
	}
}

// Key dispatch, rebuilds and rendering all at once. Run with -race.
func TestVoicePool_ConcurrentDispatchRebuildRender(t *testing.T) {
	r := newTestRig(t, 60)
	var stop atomic.Bool
	var render, producers sync.WaitGroup

	render.Go(func() {
		for !stop.Load() {
			r.chain.Process(r.buf)
		}
	})
	for g := range 3 {
		producers.Go(func() {
			rng := rand.New(rand.NewSource(int64(g)))
			for range 5000 {
				k := KeyID(referenceLayout[rng.Intn(len(referenceLayout))])
				r.pool.Dispatch(k, KeyPress)
				r.pool.Dispatch(k, KeyRelease)
			}
		})
	}
	producers.Go(func() {
		for i := range 200 {
			n := 1 + i%MAX_DIVISIONS
			if err := r.pool.Rebuild(DefaultTuning(n), Waveform(i%int(waveCount))); err != nil {
				t.Errorf("rebuild %d: %v", n, err)
				return
			}
			r.pool.Reap()
		}
	})

	producers.Wait()
	stop.Store(true)
	render.Wait()

	if r.pool.Sounding() != 0 {
		t.Fatalf("every press was released, yet %d voices sound", r.pool.Sounding())
	}
	for _, x := range r.buf {
		if x != x {
			t.Fatal("NaN in output")
		}
	}
}
