package main

import (
	"errors"
	"math"
	"testing"
)

const testSampleRate = 44100.0

func renderVoice(v *Voice, n int) []float32 {
	out := make([]float32, n)
	p := v.params.Load()
	v.render(out, &p, 1/testSampleRate)
	return out
}

func peak(buf []float32) float32 {
	var m float32
	for _, x := range buf {
		if a := float32(math.Abs(float64(x))); a > m {
			m = a
		}
	}
	return m
}

func newTestVoice(w Waveform) *Voice {
	return NewVoice(w, 440, testSampleRate, NewEnvelopeHandle(DefaultEnvelope()))
}

func TestVoice_StartStop(t *testing.T) {
	v := newTestVoice(WaveSine)
	if v.State() != VoiceIdle || v.Ringing() {
		t.Fatal("new voice must be idle and silent")
	}
	if p := peak(renderVoice(v, 256)); p != 0 {
		t.Fatalf("idle voice produced %v", p)
	}

	v.Start()
	if v.State() != VoiceSounding {
		t.Fatal("expected Sounding after Start")
	}
	out := renderVoice(v, 2048)
	if p := peak(out); p == 0 || p > DEFAULT_LEVEL+1e-3 {
		t.Fatalf("sounding voice peak %v outside (0, %v]", p, DEFAULT_LEVEL)
	}

	v.Stop()
	if v.State() != VoiceIdle {
		t.Fatal("expected Idle right after Stop")
	}
	if !v.Ringing() {
		t.Fatal("release tail should still be ringing before the next render")
	}
	renderVoice(v, 2048) // 10 ms release fits in one block
	if v.Ringing() {
		t.Fatal("voice should be silent once the release has run")
	}
	if p := peak(renderVoice(v, 256)); p != 0 {
		t.Fatalf("finished voice produced %v", p)
	}
}

func TestVoice_StopIsIdempotent(t *testing.T) {
	v := newTestVoice(WaveSquare)
	v.Stop()
	v.Stop()
	if v.State() != VoiceIdle || v.Ringing() {
		t.Fatal("stopping an idle voice must be a no-op")
	}
}

func TestVoice_PendingTriggerKeepsRinging(t *testing.T) {
	v := newTestVoice(WaveSine)
	renderVoice(v, 256)

	// Start lands after the renderer read the trigger counter but before it
	// published the idle state.
	v.triggers.Add(1)
	v.settle()
	if !v.Ringing() {
		t.Fatal("a trigger the renderer has not seen must keep the voice ringing")
	}

	v.gate.Store(true)
	renderVoice(v, 256)
	v.Stop()
	renderVoice(v, 2048)
	if v.Ringing() {
		t.Fatal("voice should go silent once the trigger has played out")
	}
}

func TestVoice_TapWithinOneBlock(t *testing.T) {
	v := newTestVoice(WaveSaw)
	v.Start()
	v.Stop()
	if p := peak(renderVoice(v, 512)); p == 0 {
		t.Fatal("a press released before the next block must still sound")
	}
	renderVoice(v, 2048)
	if v.Ringing() {
		t.Fatal("tap should have released after its first block")
	}
}

func TestVoice_Retrigger(t *testing.T) {
	v := newTestVoice(WaveTriangle)
	v.Start()
	renderVoice(v, 1024)
	v.Stop()
	v.Start()
	renderVoice(v, 1024)
	if v.State() != VoiceSounding || !v.Ringing() {
		t.Fatal("restart during release should sound again")
	}
	if v.env.stage == envRelease || v.env.stage == envIdle {
		t.Fatalf("expected the envelope to restart, got %s", v.env.stage)
	}
}

func TestVoice_Kill(t *testing.T) {
	v := newTestVoice(WaveSine)
	v.Start()
	renderVoice(v, 512)
	v.Kill()
	if p := peak(renderVoice(v, 512)); p != 0 {
		t.Fatalf("killed voice produced %v", p)
	}
	if v.Ringing() || v.State() != VoiceIdle {
		t.Fatal("killed voice must be idle and silent")
	}
}

func TestVoice_TimbreLockedWhileSounding(t *testing.T) {
	v := newTestVoice(WaveSine)
	v.Start()
	if err := v.SetWaveform(WaveSaw); !errors.Is(err, ErrVoiceSounding) {
		t.Fatalf("expected ErrVoiceSounding, got %v", err)
	}
	if err := v.SetFrequency(220); !errors.Is(err, ErrVoiceSounding) {
		t.Fatalf("expected ErrVoiceSounding, got %v", err)
	}
	v.Stop()
	if err := v.SetWaveform(WaveSaw); err != nil {
		t.Fatalf("idle voice should accept a waveform: %v", err)
	}
	if err := v.SetFrequency(220); err != nil {
		t.Fatalf("idle voice should accept a frequency: %v", err)
	}
	if v.Waveform() != WaveSaw || v.Frequency() != 220 {
		t.Fatalf("got %s at %v", v.Waveform(), v.Frequency())
	}
	if err := v.SetFrequency(0); err == nil {
		t.Fatal("expected an error for a zero frequency")
	}
	if err := v.SetWaveform(waveCount); err == nil {
		t.Fatal("expected an error for an unknown waveform")
	}
}

func TestVoice_EnvelopeIsLive(t *testing.T) {
	h := NewEnvelopeHandle(DefaultEnvelope())
	v := NewVoice(WaveSine, 440, testSampleRate, h)
	v.Start()
	renderVoice(v, 4096)
	h.Update(func(p *EnvelopeParams) { p.Sustain = 0.25 })
	out := renderVoice(v, 4096)
	if p := peak(out); p > 0.25*DEFAULT_LEVEL+1e-3 {
		t.Fatalf("sustain edit not picked up by a sounding voice, peak %v", p)
	}
}

func TestWaveforms_Range(t *testing.T) {
	for _, w := range Waveforms() {
		osc := waveformOsc[w]
		dt := float32(440 / testSampleRate)
		var lo, hi float32
		for i := range 1000 {
			y := osc(float32(i)/1000, dt)
			lo, hi = min(lo, y), max(hi, y)
		}
		if hi > 1.01 || lo < -1.01 || hi < 0.9 || lo > -0.9 {
			t.Fatalf("%s: range [%v, %v]", w, lo, hi)
		}
	}
}

func TestParseWaveform(t *testing.T) {
	tests := map[string]Waveform{
		"Sine": WaveSine, "sine": WaveSine, "SQUARE": WaveSquare,
		"triangle": WaveTriangle, "tri": WaveTriangle, "Saw": WaveSaw, "sawtooth": WaveSaw,
	}
	for in, want := range tests {
		got, err := ParseWaveform(in)
		if err != nil || got != want {
			t.Fatalf("ParseWaveform(%q) = %s, %v", in, got, err)
		}
	}
	if _, err := ParseWaveform("noise"); err == nil {
		t.Fatal("expected an error for an unknown waveform")
	}
}
