// synth_envelope.go - Shared ADSR parameters and per-voice envelope generator

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

import "sync/atomic"

const (
	DEFAULT_ATTACK  = 0.01
	DEFAULT_DECAY   = 0.01
	DEFAULT_SUSTAIN = 0.707
	DEFAULT_RELEASE = 0.01
	DEFAULT_LEVEL   = 0.2

	MAX_ENV_TIME = 10.0 // Seconds, top of the slider range
	envSilence   = 1e-5 // Below this a releasing voice is considered done
	minEnvTime   = 1e-4 // Shorter segments are treated as instantaneous
)

// EnvelopeParams is immutable once published through an EnvelopeHandle.
// Times are seconds, Sustain is a 0..1 level, Level the output gain.
type EnvelopeParams struct {
	Attack  float64
	Decay   float64
	Sustain float64
	Release float64
	Level   float64
}

func DefaultEnvelope() EnvelopeParams {
	return EnvelopeParams{
		Attack:  DEFAULT_ATTACK,
		Decay:   DEFAULT_DECAY,
		Sustain: DEFAULT_SUSTAIN,
		Release: DEFAULT_RELEASE,
		Level:   DEFAULT_LEVEL,
	}
}

// EnvelopeHandle publishes the parameter record every voice of a pool reads.
// Writers replace the whole record; readers never see a half-edited one.
type EnvelopeHandle struct {
	p atomic.Pointer[EnvelopeParams]
}

func NewEnvelopeHandle(p EnvelopeParams) *EnvelopeHandle {
	h := &EnvelopeHandle{}
	h.Store(p)
	return h
}

func (h *EnvelopeHandle) Load() EnvelopeParams {
	if p := h.p.Load(); p != nil {
		return *p
	}
	return DefaultEnvelope()
}

func (h *EnvelopeHandle) Store(p EnvelopeParams) {
	h.p.Store(&p)
}

// Update applies fn to a copy of the current record and publishes it.
// Concurrent writers must be serialised by the caller.
func (h *EnvelopeHandle) Update(fn func(*EnvelopeParams)) EnvelopeParams {
	p := h.Load()
	fn(&p)
	h.Store(p)
	return p
}

type envStage uint8

const (
	envIdle envStage = iota
	envAttack
	envDecay
	envSustain
	envRelease
)

func (s envStage) String() string {
	switch s {
	case envAttack:
		return "attack"
	case envDecay:
		return "decay"
	case envSustain:
		return "sustain"
	case envRelease:
		return "release"
	}
	return "idle"
}

// envelope is owned by the render context; only its voice touches it.
type envelope struct {
	stage       envStage
	level       float32
	releaseFrom float32
}

func (e *envelope) trigger() {
	e.stage = envAttack
}

func (e *envelope) release() {
	if e.stage == envIdle {
		return
	}
	e.stage = envRelease
	e.releaseFrom = e.level
}

func (e *envelope) kill() {
	e.stage = envIdle
	e.level = 0
}

// step advances one sample. perSample is 1/sampleRate.
func (e *envelope) step(p *EnvelopeParams, perSample float32) float32 {
	sustain := clamp32(float32(p.Sustain), 0, 1)

	switch e.stage {
	case envIdle:
		return 0

	case envAttack:
		if p.Attack < minEnvTime {
			e.level = 1
		} else {
			e.level += perSample / float32(p.Attack)
		}
		if e.level >= 1 {
			e.level = 1
			e.stage = envDecay
		}

	case envDecay:
		if p.Decay < minEnvTime {
			e.level = sustain
		} else {
			e.level -= (1 - sustain) * perSample / float32(p.Decay)
		}
		if e.level <= sustain {
			e.level = sustain
			e.stage = envSustain
		}

	case envSustain:
		e.level = sustain

	case envRelease:
		if p.Release < minEnvTime {
			e.level = 0
		} else {
			e.level -= e.releaseFrom * perSample / float32(p.Release)
		}
		if e.level <= envSilence {
			e.level = 0
			e.stage = envIdle
		}
	}
	return e.level
}

func clamp32(x, lo, hi float32) float32 {
	if x < lo {
		return lo
	}
	if x > hi {
		return hi
	}
	return x
}
