package main

import (
	"math"
	"testing"
)

type constSource struct{ v float32 }

func (c constSource) Mix(out []float32) {
	for i := range out {
		out[i] = c.v
	}
}

type impulseSource struct{ fired bool }

func (s *impulseSource) Mix(out []float32) {
	clear(out)
	if !s.fired && len(out) > 0 {
		out[0] = 1
		s.fired = true
	}
}

func TestEffectsChain_NeutralPassThrough(t *testing.T) {
	c := NewEffectsChain(testSampleRate, 256)
	c.ReattachInput(constSource{0.05})
	out := make([]float32, 1024)
	c.Process(out)
	for i, x := range out {
		if x != 0.05 {
			t.Fatalf("sample %d: expected 0.05 untouched, got %v", i, x)
		}
	}
}

func TestEffectsChain_NoInputIsSilent(t *testing.T) {
	c := NewEffectsChain(testSampleRate, 256)
	out := make([]float32, 512)
	c.Process(out)
	if peak(out) != 0 {
		t.Fatal("chain with no input should be silent")
	}
	c.ReattachInput(constSource{0.05})
	c.ReattachInput(nil)
	c.Process(out)
	if peak(out) != 0 || c.Input() != nil {
		t.Fatal("detached chain should be silent")
	}
}

func TestEffectsChain_CompressorTamesLoudInput(t *testing.T) {
	c := NewEffectsChain(testSampleRate, 512)
	c.ReattachInput(constSource{0.9})
	out := make([]float32, 4096)
	c.Process(out)
	if last := out[len(out)-1]; last >= 0.5 || last <= 0 {
		t.Fatalf("expected gain reduction on a 0.9 input, got %v", last)
	}
}

func TestEffectsChain_ClampAndFinite(t *testing.T) {
	c := NewEffectsChain(testSampleRate, 512)
	c.SetDrive(1)
	c.SetReverbMix(1)
	c.ReattachInput(constSource{5})
	out := make([]float32, 8192)
	c.Process(out)
	for i, x := range out {
		if math.IsNaN(float64(x)) || x > 1 || x < -1 {
			t.Fatalf("sample %d out of range: %v", i, x)
		}
	}
}

func TestEffectsChain_ParameterClamping(t *testing.T) {
	c := NewEffectsChain(testSampleRate, 0)
	c.SetDrive(3)
	c.SetReverbMix(-1)
	if c.Drive() != 1 || c.ReverbMix() != 0 {
		t.Fatalf("expected clamped params, got drive %v mix %v", c.Drive(), c.ReverbMix())
	}
	c.SetDrive(math.NaN())
	if c.Drive() != 0 {
		t.Fatalf("NaN drive should clamp to 0, got %v", c.Drive())
	}
}

func TestEffectsChain_ReverbTailSurvivesReattach(t *testing.T) {
	c := NewEffectsChain(testSampleRate, 512)
	c.SetReverbMix(1)
	c.ReattachInput(&impulseSource{})
	out := make([]float32, 512)
	c.Process(out)

	c.ReattachInput(constSource{0})
	var tail float32
	for range 8 {
		c.Process(out)
		tail = max(tail, peak(out))
	}
	if tail == 0 {
		t.Fatal("reverb tail should keep ringing after the input is swapped")
	}
}

func TestEffectsChain_DistortionAddsHarmonics(t *testing.T) {
	clean := NewEffectsChain(testSampleRate, 512)
	dirty := NewEffectsChain(testSampleRate, 512)
	dirty.SetDrive(0.8)
	src := constSource{0.05}
	clean.ReattachInput(src)
	dirty.ReattachInput(src)
	a := make([]float32, 512)
	b := make([]float32, 512)
	clean.Process(a)
	dirty.Process(b)
	if b[len(b)-1] <= a[len(a)-1] {
		t.Fatalf("drive should push a quiet signal up the shaper: clean %v, driven %v", a[len(a)-1], b[len(b)-1])
	}
}

func TestEffectsChain_FMReplacesVoiceSum(t *testing.T) {
	c := NewEffectsChain(testSampleRate, 512)
	c.ReattachInput(constSource{0})
	c.SetFM(true)
	out := make([]float32, 2048)
	c.Process(out)
	if p := peak(out); p == 0 || p > FM_LEVEL+1e-3 {
		t.Fatalf("FM path peak %v outside (0, %v]", p, FM_LEVEL)
	}
	c.SetFM(false)
	c.Process(out)
	if p := peak(out); p != 0 {
		t.Fatalf("voice path with silent input should be silent, got %v", p)
	}
}

func TestEffectsChain_SettingsSurviveRebuild(t *testing.T) {
	r := newTestRig(t, 12)
	r.chain.SetDrive(0.5)
	r.chain.SetReverbMix(0.25)
	if err := r.pool.Rebuild(DefaultTuning(31), WaveSquare); err != nil {
		t.Fatal(err)
	}
	if r.chain.Drive() != 0.5 || r.chain.ReverbMix() != 0.25 {
		t.Fatalf("effect settings lost across rebuild: drive %v mix %v", r.chain.Drive(), r.chain.ReverbMix())
	}
	if r.chain.Input() == nil {
		t.Fatal("new voice set should be attached")
	}
}
