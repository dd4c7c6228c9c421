// voice_pool.go - Voice sets per tuning generation, key dispatch and rebuilds

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
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
)

type KeyAction uint8

const (
	KeyPress KeyAction = iota
	KeyRelease
)

func (a KeyAction) String() string {
	if a == KeyRelease {
		return "release"
	}
	return "press"
}

// MixSource fills a block with the summed output of a voice set.
// Mix runs on the audio context and must not block or allocate.
type MixSource interface {
	Mix(out []float32)
}

// InputAttacher is the downstream end a pool splices its voice sum into.
type InputAttacher interface {
	ReattachInput(src MixSource)
}

// voiceArena is one generation's voice set. Everything except the atomics
// is immutable after construction.
type voiceArena struct {
	generation uint64
	tuning     Tuning
	waveform   Waveform
	steps      []ScaleStep
	voices     []*Voice
	byKey      map[KeyID]*Voice
	retired    atomic.Bool
}

func newVoiceArena(gen uint64, t Tuning, w Waveform, steps []ScaleStep, sampleRate float64, params *EnvelopeHandle) *voiceArena {
	a := &voiceArena{
		generation: gen,
		tuning:     t,
		waveform:   w,
		steps:      steps,
		voices:     make([]*Voice, len(steps)),
		byKey:      make(map[KeyID]*Voice, len(steps)),
	}
	for i, s := range steps {
		v := NewVoice(w, s.Frequency, sampleRate, params)
		a.voices[i] = v
		a.byKey[s.Key] = v
	}
	return a
}

func (a *voiceArena) render(out []float32, p *EnvelopeParams, perSample float32) {
	for _, v := range a.voices {
		v.render(out, p, perSample)
	}
}

// drained reports a retired arena whose release tails have all finished.
func (a *voiceArena) drained() bool {
	if !a.retired.Load() {
		return false
	}
	for _, v := range a.voices {
		if v.Ringing() {
			return false
		}
	}
	return true
}

// press starts v unless a has been retired meanwhile. A press that lost
// the race with Rebuild is undone rather than left as a stuck tail.
func (a *voiceArena) press(v *Voice) {
	v.Start()
	if a.retired.Load() {
		v.Stop()
	}
}

func (a *voiceArena) stopAll(immediate bool) {
	for _, v := range a.voices {
		if immediate {
			v.Kill()
		} else {
			v.Stop()
		}
	}
}

// voiceMix is the immutable snapshot handed to the effects chain: the live
// arena plus any retired arenas still ringing out.
type voiceMix struct {
	live      *voiceArena
	tails     []*voiceArena
	params    *EnvelopeHandle
	perSample float32
}

func (m *voiceMix) Mix(out []float32) {
	clear(out)
	p := m.params.Load()
	if m.live != nil {
		m.live.render(out, &p, m.perSample)
	}
	for _, t := range m.tails {
		t.render(out, &p, m.perSample)
	}
}

type VoicePool struct {
	arena atomic.Pointer[voiceArena]

	mu         sync.Mutex // Serialises Rebuild, Reap and ReleaseAll
	tails      []*voiceArena
	generation uint64

	out        InputAttacher
	params     *EnvelopeHandle
	sampleRate float64
	logger     *slog.Logger
}

func NewVoicePool(out InputAttacher, params *EnvelopeHandle, sampleRate float64, logger *slog.Logger) *VoicePool {
	if logger == nil {
		logger = slog.Default()
	}
	return &VoicePool{
		out:        out,
		params:     params,
		sampleRate: sampleRate,
		logger:     logger,
	}
}

// Rebuild replaces the live voice set with one voice per step of t. The
// tuning is validated first; on error the previous set stays in place.
// Old voices are released and ring out in the background.
func (p *VoicePool) Rebuild(t Tuning, w Waveform) error {
	return p.rebuild(t, w, false)
}

// RebuildImmediate is Rebuild with the old voices silenced instead of
// released, and pending tails dropped.
func (p *VoicePool) RebuildImmediate(t Tuning, w Waveform) error {
	return p.rebuild(t, w, true)
}

func (p *VoicePool) rebuild(t Tuning, w Waveform, immediate bool) error {
	if !w.Valid() {
		return fmt.Errorf("rebuild: invalid waveform %s", w)
	}
	steps, err := ComputeScale(t)
	if err != nil {
		return err
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	p.generation++
	next := newVoiceArena(p.generation, t, w, steps, p.sampleRate, p.params)
	old := p.arena.Load()

	tails := p.pruneTailsLocked()
	if immediate {
		for _, a := range tails {
			a.stopAll(true)
		}
		tails = nil
	}
	if old != nil && !immediate {
		tails = append(tails, old)
	}

	// Downstream first: a key routed to the new arena before the chain
	// picks it up is simply heard one block later.
	p.attachLocked(next, tails)
	p.arena.Store(next)
	if old != nil {
		old.retired.Store(true)
		old.stopAll(immediate)
	}
	p.tails = tails

	p.logger.Debug("voice pool rebuilt",
		"generation", next.generation,
		"tuning", t.String(),
		"waveform", w.String(),
		"tails", len(tails),
		"immediate", immediate)
	return nil
}

func (p *VoicePool) attachLocked(live *voiceArena, tails []*voiceArena) {
	if p.out == nil {
		return
	}
	p.out.ReattachInput(&voiceMix{
		live:      live,
		tails:     tails,
		params:    p.params,
		perSample: float32(1 / p.sampleRate),
	})
}

func (p *VoicePool) pruneTailsLocked() []*voiceArena {
	kept := make([]*voiceArena, 0, len(p.tails)+1)
	for _, a := range p.tails {
		if !a.drained() {
			kept = append(kept, a)
		}
	}
	return kept
}

// Reap drops retired arenas whose tails have finished. Returns how many
// were dropped.
func (p *VoicePool) Reap() int {
	p.mu.Lock()
	defer p.mu.Unlock()

	kept := p.pruneTailsLocked()
	dropped := len(p.tails) - len(kept)
	if dropped == 0 {
		return 0
	}
	p.tails = kept
	if live := p.arena.Load(); live != nil {
		p.attachLocked(live, kept)
	}
	p.logger.Debug("reaped voice tails", "dropped", dropped, "remaining", len(kept))
	return dropped
}

// ReleaseAll stops every live voice, as on shutdown.
func (p *VoicePool) ReleaseAll() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if a := p.arena.Load(); a != nil {
		a.stopAll(false)
	}
}

// Dispatch routes a key action to its voice. Keys outside the current scale
// are inactive, not an error. Reports whether a voice was found.
func (p *VoicePool) Dispatch(key KeyID, action KeyAction) bool {
	a := p.arena.Load()
	if a == nil {
		return false
	}
	v, ok := a.byKey[key]
	if !ok {
		p.logger.Debug("unmapped key", "key", key.String(), "action", action.String(), "divisions", a.tuning.Divisions)
		return false
	}
	switch action {
	case KeyPress:
		a.press(v)
	case KeyRelease:
		v.Stop()
	}
	return true
}

func (p *VoicePool) Voice(key KeyID) (*Voice, bool) {
	a := p.arena.Load()
	if a == nil {
		return nil, false
	}
	v, ok := a.byKey[key]
	return v, ok
}

func (p *VoicePool) Lookup(key KeyID) (ScaleStep, bool) {
	a := p.arena.Load()
	if a == nil {
		return ScaleStep{}, false
	}
	i, ok := KeyIndex(a.tuning.Divisions, key)
	if !ok {
		return ScaleStep{}, false
	}
	return a.steps[i], true
}

func (p *VoicePool) Steps() []ScaleStep {
	a := p.arena.Load()
	if a == nil {
		return nil
	}
	out := make([]ScaleStep, len(a.steps))
	copy(out, a.steps)
	return out
}

func (p *VoicePool) Tuning() (Tuning, bool) {
	a := p.arena.Load()
	if a == nil {
		return Tuning{}, false
	}
	return a.tuning, true
}

func (p *VoicePool) Waveform() Waveform {
	if a := p.arena.Load(); a != nil {
		return a.waveform
	}
	return WaveSine
}

func (p *VoicePool) Generation() uint64 {
	if a := p.arena.Load(); a != nil {
		return a.generation
	}
	return 0
}

func (p *VoicePool) PendingTails() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.tails)
}

// Sounding counts live voices with an open gate.
func (p *VoicePool) Sounding() int {
	a := p.arena.Load()
	if a == nil {
		return 0
	}
	n := 0
	for _, v := range a.voices {
		if v.State() == VoiceSounding {
			n++
		}
	}
	return n
}
