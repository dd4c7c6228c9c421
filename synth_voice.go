// synth_voice.go - One oscillator plus one envelope, bound to a scale step

/*
 ██▓ ███▄    █ ▄▄▄█████▓ █    ██  ██▓▄▄▄█████▓ ██▓ ▒█████   ███▄    █    ▓█████  ███▄    █   ▄████  ██▓ ███▄    █ ▓█████
▓██▒ ██ ▀█   █ ▓  ██▒ ▓▒ ██  ▓██▒▓██▒▓  ██▒ ▓▒▓██▒▒██▒  ██▒ ██ ▀█   █    ▓█   ▀  ██ ▀█   █  ██▒ ▀█▒▓██▒ ██ ▀█   █ ▓█   ▀
▒██▒▓██  ▀█ ██▒▒ ▓██░ ▒░▓██  ▒██░▒██▒▒ ▓██░ ▒░▒██▒▒██░  ██▒▓██  ▀█ ██▒   ▒███   ▓██  ▀█ ██▒▒██░▄▄▄░▒██▒▓██  ▀█ ██▒▒███
░██░▓██▒  ▐▌██▒░ ▓██▓ ░ ▓▓█  ░██░░██░░ ▓██▓ ░ ░██░▒██   ██░▓██▒  ▐▌██▒   ▒▓█  ▄ ▓██▒  ▐▌██▒░▓█  ██▓░██░▓██▒  ▐▌██▒▒▓█  ▄
░██░▒██░   ▓██░  ▒██▒ ░ ▒▒█████▓ ░██░  ▒██▒ ░ ░██░░ ████▓▒░▒██░   ▓██░   ░▒████▒▒██░   ▓██░░▒▓███▀▒░██░▒██░   ▓██░░▒████▒
░▓  ░ ▒░   ▒ ▒   ▒ ░░   ░▒▓▒ ▒ ▒ ░▓    ▒ ░░   ░▓  ░ ▒░▒░▒░ ░ ▒░   ▒ ▒    ░░ ▒░ ░░ ▒░   ▒ ▒  ░▒   ▒ ░▓  ░ ▒░   ▒ ▒ ░░ ▒░ ░
 ▒ ░░ ░░   ░ ▒░    ░    ░░▒░ ░ ░  ▒ ░    ░     ▒ ░  ░ ▒ ▒░ ░ ░░   ░ ▒░    ░ ░  ░░ ░░   ░ ▒░  ░   ░  ▒ ░░ ░░   ░ ▒░ ░ ░  ░
 ▒ ░   ░   ░ ░   ░       ░░░ ░ ░  ▒ ░  ░       ▒ ░░ ░ ░ ▒     ░   ░ ░       ░      ░   ░ ░ ░ ░   ░  ▒ ░   ░   ░ ░    ░
 ░           ░             ░      ░            ░      ░ ░           ░       ░  ░         ░       ░  ░           ░    ░  ░

(c) 2024 - 2026 Zayn Otley
https://github.com/IntuitionAmiga/IntuitionEngine
License: GPLv3 or later
*/

package main

import (
	"errors"
	"sync/atomic"
)

type VoiceState uint8

const (
	VoiceIdle VoiceState = iota
	VoiceSounding
)

func (s VoiceState) String() string {
	if s == VoiceSounding {
		return "Sounding"
	}
	return "Idle"
}

var ErrVoiceSounding = errors.New("voice is sounding; rebuild required to change timbre or pitch")

// Voice is shared between two contexts. Start/Stop/Kill run on the key
// context and only touch atomics; render runs on the audio context and owns
// the oscillator and envelope state.
type Voice struct {
	// Control side
	gate     atomic.Bool
	triggers atomic.Uint32
	kills    atomic.Uint32
	ringing  atomic.Bool

	// Render side
	seenTriggers uint32
	seenKills    uint32
	phase        float32
	dt           float32
	env          envelope
	osc          oscFunc

	// Fixed between rebuilds
	waveform   Waveform
	frequency  float64
	sampleRate float64
	params     *EnvelopeHandle
}

func NewVoice(w Waveform, freq, sampleRate float64, params *EnvelopeHandle) *Voice {
	v := &Voice{sampleRate: sampleRate, params: params}
	v.waveform = w
	v.osc = waveformOsc[w]
	v.frequency = freq
	v.dt = float32(freq / sampleRate)
	return v
}

// Start opens the gate and (re)starts the envelope from its attack segment.
func (v *Voice) Start() {
	v.gate.Store(true)
	v.triggers.Add(1)
	v.ringing.Store(true)
}

// Stop closes the gate. The release tail keeps rendering afterwards.
func (v *Voice) Stop() {
	v.gate.Store(false)
}

// Kill silences the voice at the next block without a release tail.
func (v *Voice) Kill() {
	v.gate.Store(false)
	v.kills.Add(1)
	v.ringing.Store(false)
}

func (v *Voice) State() VoiceState {
	if v.gate.Load() {
		return VoiceSounding
	}
	return VoiceIdle
}

// Ringing reports whether the voice still contributes audio, including its
// release tail.
func (v *Voice) Ringing() bool { return v.ringing.Load() }

func (v *Voice) Frequency() float64 { return v.frequency }
func (v *Voice) Waveform() Waveform { return v.waveform }

func (v *Voice) SetWaveform(w Waveform) error {
	if !w.Valid() {
		return errors.New("invalid waveform " + w.String())
	}
	if v.gate.Load() {
		return ErrVoiceSounding
	}
	v.waveform = w
	v.osc = waveformOsc[w]
	return nil
}

func (v *Voice) SetFrequency(hz float64) error {
	if hz <= 0 {
		return errors.New("frequency must be positive")
	}
	if v.gate.Load() {
		return ErrVoiceSounding
	}
	v.frequency = hz
	v.dt = float32(hz / v.sampleRate)
	return nil
}

// render adds this voice's next len(out) samples into out.
func (v *Voice) render(out []float32, p *EnvelopeParams, perSample float32) {
	if k := v.kills.Load(); k != v.seenKills {
		v.seenKills = k
		v.env.kill()
	}
	triggered := false
	if t := v.triggers.Load(); t != v.seenTriggers {
		v.seenTriggers = t
		v.env.trigger()
		triggered = true
	}
	// A press and release landing in the same block still gets one block
	// of sound before the release starts.
	if !triggered && !v.gate.Load() && v.env.stage != envRelease {
		v.env.release()
	}
	if v.env.stage == envIdle {
		v.settle()
		return
	}

	gain := float32(p.Level)
	osc := v.osc
	phase, dt := v.phase, v.dt
	for i := range out {
		level := v.env.step(p, perSample)
		out[i] += osc(phase, dt) * level * gain
		phase += dt
		if phase >= 1 {
			phase -= 1
		}
	}
	v.phase = phase

	if triggered && !v.gate.Load() {
		v.env.release()
	}
	v.settle()
}

// settle publishes whether the voice still sounds. A trigger that arrived
// after this block read the counter keeps it ringing: Start bumps triggers
// before setting ringing, so re-reading after the clear cannot miss it.
func (v *Voice) settle() {
	if v.env.stage != envIdle {
		v.ringing.Store(true)
		return
	}
	v.ringing.Store(false)
	if v.triggers.Load() != v.seenTriggers {
		v.ringing.Store(true)
	}
}
