// effects_chain.go - Voice sum -> distortion -> reverb -> compressor, plus the FM branch

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
	"math"
	"sync/atomic"
)

const (
	DEFAULT_BLOCK_SIZE = 512

	DISTORTION_SLOPE = 0.8  // Post-shaper low-pass amount at full drive
	DISTORTION_GAIN  = 15.0 // Shaper pre-gain at full drive

	REVERB_SIZE        = 0.8
	REVERB_DAMP        = 0.7
	REVERB_PRE_DELAY   = 0.008 // Seconds
	REVERB_ATTENUATION = 0.3
	reverbRefRate      = 44100.0

	COMP_RATIO     = 4.0
	COMP_THRESHOLD = -20.0 // dBFS
	COMP_ATTACK    = 0.01  // Seconds
	COMP_RELEASE   = 0.1   // Seconds

	FM_MAX_FREQ      = 9000.0
	DEFAULT_FM_FREQ  = 100.0
	DEFAULT_FM_INDEX = 1.0
	FM_LEVEL         = 0.2
)

// Comb and allpass lengths at 44.1 kHz; prime-ish so echoes don't line up.
var (
	reverbCombDelays    = [4]int{1687, 1601, 2053, 2251}
	reverbCombScale     = [4]float32{0.97, 0.95, 0.93, 0.91}
	reverbAllpassDelays = [2]int{389, 307}
)

const reverbAllpassCoef = 0.5

// atomicFloat32 is a single-writer parameter slot the render path reads
// without locking.
type atomicFloat32 struct {
	bits atomic.Uint32
}

func (a *atomicFloat32) Load() float32   { return math.Float32frombits(a.bits.Load()) }
func (a *atomicFloat32) Store(v float32) { a.bits.Store(math.Float32bits(v)) }

type mixInput struct {
	src MixSource
}

type EffectsChain struct {
	// Parameters (control context writes, render context reads)
	drive     atomicFloat32
	reverbMix atomicFloat32
	fmEnabled atomic.Bool
	fmFreq    atomicFloat32
	fmIndex   atomicFloat32
	fmCarrier atomicFloat32
	input     atomic.Pointer[mixInput]

	// Render state
	sampleRate float32
	scratch    []float32
	dist       distortion
	reverb     reverb
	comp       compressor
	fm         fmSource
}

func NewEffectsChain(sampleRate float64, blockSize int) *EffectsChain {
	if blockSize <= 0 {
		blockSize = DEFAULT_BLOCK_SIZE
	}
	c := &EffectsChain{
		sampleRate: float32(sampleRate),
		scratch:    make([]float32, blockSize),
	}
	c.reverb.init(sampleRate)
	c.comp.init(sampleRate)
	c.fmFreq.Store(DEFAULT_FM_FREQ)
	c.fmIndex.Store(DEFAULT_FM_INDEX)
	c.fmCarrier.Store(DEFAULT_REF_FREQ)
	return c
}

// ReattachInput splices in a new voice sum. Effect parameters and the
// reverb's internal state carry over.
func (c *EffectsChain) ReattachInput(src MixSource) {
	if src == nil {
		c.input.Store(nil)
		return
	}
	c.input.Store(&mixInput{src: src})
}

func (c *EffectsChain) Input() MixSource {
	if in := c.input.Load(); in != nil {
		return in.src
	}
	return nil
}

func (c *EffectsChain) SetDrive(d float64)     { c.drive.Store(float32(clampUnit(d))) }
func (c *EffectsChain) SetReverbMix(m float64) { c.reverbMix.Store(float32(clampUnit(m))) }
func (c *EffectsChain) SetFM(enabled bool)     { c.fmEnabled.Store(enabled) }
func (c *EffectsChain) SetFMFreq(hz float64)   { c.fmFreq.Store(float32(hz)) }
func (c *EffectsChain) SetFMIndex(i float64)   { c.fmIndex.Store(float32(i)) }
func (c *EffectsChain) SetFMCarrier(hz float64) {
	c.fmCarrier.Store(float32(hz))
}

func (c *EffectsChain) Drive() float64     { return float64(c.drive.Load()) }
func (c *EffectsChain) ReverbMix() float64 { return float64(c.reverbMix.Load()) }
func (c *EffectsChain) FMEnabled() bool    { return c.fmEnabled.Load() }
func (c *EffectsChain) FMFreq() float64    { return float64(c.fmFreq.Load()) }
func (c *EffectsChain) FMIndex() float64   { return float64(c.fmIndex.Load()) }

// Process fills out with the next block of output samples in [-1, 1].
// Called from the audio context only.
func (c *EffectsChain) Process(out []float32) {
	for len(out) > 0 {
		n := min(len(out), len(c.scratch))
		c.processBlock(out[:n])
		out = out[n:]
	}
}

func (c *EffectsChain) processBlock(out []float32) {
	buf := c.scratch[:len(out)]
	drive := c.drive.Load()
	wetMix := c.reverbMix.Load()
	fm := c.fmEnabled.Load()

	if fm {
		c.fm.render(buf, c.fmCarrier.Load(), c.fmFreq.Load(), c.fmIndex.Load(), c.sampleRate)
	} else if in := c.input.Load(); in != nil {
		in.src.Mix(buf)
	} else {
		clear(buf)
	}

	for i, x := range buf {
		x = c.dist.process(x, drive)
		wet := c.reverb.process(x)
		x = x*(1-wetMix) + wet*wetMix
		if !fm {
			x = c.comp.process(x)
		}
		out[i] = clamp32(x, -1, 1)
	}
}

func clampUnit(x float64) float64 {
	if math.IsNaN(x) || x < 0 {
		return 0
	}
	if x > 1 {
		return 1
	}
	return x
}

// distortion is a normalised tanh waveshaper followed by a one-pole
// low-pass that darkens as drive rises.
type distortion struct {
	lp float32
}

func (d *distortion) process(x, drive float32) float32 {
	if drive <= 0 {
		d.lp = x
		return x
	}
	g := 1 + DISTORTION_GAIN*drive
	y := fastTanh(x*g) / fastTanh(g)
	a := DISTORTION_SLOPE * drive
	d.lp = y*(1-a) + d.lp*a
	return d.lp
}

type combFilter struct {
	buffer []float32
	pos    int
	store  float32
}

type reverb struct {
	feedback   [4]float32
	damp       float32
	combs      [4]combFilter
	allpass    [2][]float32
	allpassPos [2]int
	preDelay   []float32
	preDelayAt int
}

func (r *reverb) init(sampleRate float64) {
	scale := sampleRate / reverbRefRate
	for i := range r.combs {
		r.combs[i].buffer = make([]float32, max(1, int(float64(reverbCombDelays[i])*scale)))
		r.feedback[i] = float32(0.7+0.28*REVERB_SIZE) * reverbCombScale[i] / reverbCombScale[0]
	}
	for i := range r.allpass {
		r.allpass[i] = make([]float32, max(1, int(float64(reverbAllpassDelays[i])*scale)))
	}
	r.damp = REVERB_DAMP * 0.4
	r.preDelay = make([]float32, max(1, int(REVERB_PRE_DELAY*sampleRate)))
}

// process returns the wet signal only.
func (r *reverb) process(x float32) float32 {
	delayed := r.preDelay[r.preDelayAt]
	r.preDelay[r.preDelayAt] = x
	r.preDelayAt++
	if r.preDelayAt == len(r.preDelay) {
		r.preDelayAt = 0
	}

	var out float32
	for i := range r.combs {
		c := &r.combs[i]
		y := c.buffer[c.pos]
		c.store = y*(1-r.damp) + c.store*r.damp
		c.buffer[c.pos] = delayed + c.store*r.feedback[i]
		c.pos++
		if c.pos == len(c.buffer) {
			c.pos = 0
		}
		out += y
	}

	for i := range r.allpass {
		buf := r.allpass[i]
		pos := r.allpassPos[i]
		d := buf[pos]
		buf[pos] = out + d*reverbAllpassCoef
		out = d - out
		pos++
		if pos == len(buf) {
			pos = 0
		}
		r.allpassPos[i] = pos
	}
	return out * REVERB_ATTENUATION
}

// compressor is a feed-forward peak compressor with fixed ratio.
type compressor struct {
	env       float32
	attack    float32
	release   float32
	threshold float32
}

func (c *compressor) init(sampleRate float64) {
	c.attack = float32(math.Exp(-1 / (COMP_ATTACK * sampleRate)))
	c.release = float32(math.Exp(-1 / (COMP_RELEASE * sampleRate)))
	c.threshold = float32(math.Pow(10, COMP_THRESHOLD/20))
}

func (c *compressor) process(x float32) float32 {
	a := x
	if a < 0 {
		a = -a
	}
	coef := c.release
	if a > c.env {
		coef = c.attack
	}
	c.env = a + (c.env-a)*coef
	if c.env <= c.threshold {
		return x
	}
	// Above threshold the level grows at 1/ratio of the input rate.
	over := c.env / c.threshold
	gain := float32(math.Pow(float64(over), 1/COMP_RATIO-1))
	return x * gain
}

// fmSource is a two-operator sine FM voice.
type fmSource struct {
	carrierPhase float32
	modPhase     float32
}

func (f *fmSource) render(out []float32, carrier, modFreq, index, sampleRate float32) {
	modDt := modFreq / sampleRate
	for i := range out {
		mod := fastSinCycle(f.modPhase)
		inst := carrier + index*modFreq*mod
		out[i] = fastSinCycle(f.carrierPhase) * FM_LEVEL
		f.carrierPhase += inst / sampleRate
		f.carrierPhase -= float32(math.Floor(float64(f.carrierPhase)))
		f.modPhase += modDt
		if f.modPhase >= 1 {
			f.modPhase -= 1
		}
	}
}
