// parameter_bus.go - Validated relay of control panel edits into the live engine

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
	"fmt"
	"math"
	"sort"
	"sync"
)

const (
	UI_MIN = 0.0
	UI_MAX = 100.0

	// Envelope time sliders follow y = max·(base^t − 1)/(base − 1), t = raw/100.
	EXP_CURVE_BASE = 1000.0
)

const (
	ParamAttack    = "attack"
	ParamDecay     = "decay"
	ParamSustain   = "sustain"
	ParamRelease   = "release"
	ParamDrive     = "drive"
	ParamReverbMix = "reverb"
	ParamFMFreq    = "fm_freq"
	ParamFMIndex   = "fm_index"
)

var ErrParameterRange = errors.New("parameter out of range")

type ParameterRangeError struct {
	Param    string
	Value    float64
	Min, Max float64
}

func (e *ParameterRangeError) Error() string {
	return fmt.Sprintf("%s: value %v outside [%v, %v]", e.Param, e.Value, e.Min, e.Max)
}

func (e *ParameterRangeError) Is(target error) bool { return target == ErrParameterRange }

// ExpRescale maps x in [x1, x2] onto [y1, y2] along an exponential curve.
func ExpRescale(x, x1, x2, y1, y2 float64) float64 {
	t := (x - x1) / (x2 - x1)
	return y1 + (y2-y1)*(math.Pow(EXP_CURVE_BASE, t)-1)/(EXP_CURVE_BASE-1)
}

// InverseExpRescale is the inverse of ExpRescale.
func InverseExpRescale(y, x1, x2, y1, y2 float64) float64 {
	u := (y - y1) / (y2 - y1)
	t := math.Log(1+u*(EXP_CURVE_BASE-1)) / math.Log(EXP_CURVE_BASE)
	return x1 + t*(x2-x1)
}

func envTimeFromUI(raw float64) float64 {
	return ExpRescale(raw, UI_MIN, UI_MAX, 0, MAX_ENV_TIME)
}

func envTimeToUI(sec float64) float64 {
	return InverseExpRescale(sec, UI_MIN, UI_MAX, 0, MAX_ENV_TIME)
}

type paramSpec struct {
	label    string
	min, max float64
	apply    func(b *ParameterBus, raw float64)
	format   func(raw float64) string
}

var paramSpecs = map[string]paramSpec{
	ParamAttack: {
		label: "Attack", min: UI_MIN, max: UI_MAX,
		apply: func(b *ParameterBus, raw float64) {
			b.env.Update(func(p *EnvelopeParams) { p.Attack = envTimeFromUI(raw) })
		},
		format: formatEnvTime,
	},
	ParamDecay: {
		label: "Decay", min: UI_MIN, max: UI_MAX,
		apply: func(b *ParameterBus, raw float64) {
			b.env.Update(func(p *EnvelopeParams) { p.Decay = envTimeFromUI(raw) })
		},
		format: formatEnvTime,
	},
	ParamSustain: {
		label: "Sustain", min: UI_MIN, max: UI_MAX,
		apply: func(b *ParameterBus, raw float64) {
			b.env.Update(func(p *EnvelopeParams) { p.Sustain = raw / UI_MAX })
		},
		format: formatInt,
	},
	ParamRelease: {
		label: "Release", min: UI_MIN, max: UI_MAX,
		apply: func(b *ParameterBus, raw float64) {
			b.env.Update(func(p *EnvelopeParams) { p.Release = envTimeFromUI(raw) })
		},
		format: formatEnvTime,
	},
	ParamDrive: {
		label: "Distortion", min: UI_MIN, max: UI_MAX,
		apply:  func(b *ParameterBus, raw float64) { b.fx.SetDrive(raw / UI_MAX) },
		format: formatInt,
	},
	ParamReverbMix: {
		label: "Reverb", min: UI_MIN, max: UI_MAX,
		apply:  func(b *ParameterBus, raw float64) { b.fx.SetReverbMix(raw / UI_MAX) },
		format: formatInt,
	},
	ParamFMFreq: {
		label: "FM Freq", min: 0, max: FM_MAX_FREQ,
		apply:  func(b *ParameterBus, raw float64) { b.fx.SetFMFreq(raw) },
		format: formatInt,
	},
	ParamFMIndex: {
		label: "FM Index", min: UI_MIN, max: UI_MAX,
		apply:  func(b *ParameterBus, raw float64) { b.fx.SetFMIndex(raw) },
		format: formatInt,
	},
}

func formatInt(raw float64) string { return fmt.Sprintf("%d", int(math.Round(raw))) }

func formatEnvTime(raw float64) string { return fmt.Sprintf("%.3f s", envTimeFromUI(raw)) }

// ParameterBus validates raw UI values and publishes them to the shared
// envelope record and the effects chain. Setters may be called from any
// goroutine; the render path only ever sees whole values.
type ParameterBus struct {
	mu  sync.Mutex
	raw map[string]float64
	env *EnvelopeHandle
	fx  *EffectsChain
}

func NewParameterBus(env *EnvelopeHandle, fx *EffectsChain) *ParameterBus {
	p := env.Load()
	return &ParameterBus{
		env: env,
		fx:  fx,
		raw: map[string]float64{
			ParamAttack:    envTimeToUI(p.Attack),
			ParamDecay:     envTimeToUI(p.Decay),
			ParamSustain:   p.Sustain * UI_MAX,
			ParamRelease:   envTimeToUI(p.Release),
			ParamDrive:     fx.Drive() * UI_MAX,
			ParamReverbMix: fx.ReverbMix() * UI_MAX,
			ParamFMFreq:    fx.FMFreq(),
			ParamFMIndex:   fx.FMIndex(),
		},
	}
}

// Set applies a raw control value by parameter name.
func (b *ParameterBus) Set(name string, raw float64) error {
	spec, ok := paramSpecs[name]
	if !ok {
		return fmt.Errorf("unknown parameter %q", name)
	}
	if math.IsNaN(raw) || raw < spec.min || raw > spec.max {
		return &ParameterRangeError{Param: name, Value: raw, Min: spec.min, Max: spec.max}
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	spec.apply(b, raw)
	b.raw[name] = raw
	return nil
}

func (b *ParameterBus) SetAttack(raw float64) error    { return b.Set(ParamAttack, raw) }
func (b *ParameterBus) SetDecay(raw float64) error     { return b.Set(ParamDecay, raw) }
func (b *ParameterBus) SetSustain(raw float64) error   { return b.Set(ParamSustain, raw) }
func (b *ParameterBus) SetRelease(raw float64) error   { return b.Set(ParamRelease, raw) }
func (b *ParameterBus) SetDrive(raw float64) error     { return b.Set(ParamDrive, raw) }
func (b *ParameterBus) SetReverbMix(raw float64) error { return b.Set(ParamReverbMix, raw) }
func (b *ParameterBus) SetFMFreq(hz float64) error     { return b.Set(ParamFMFreq, hz) }
func (b *ParameterBus) SetFMIndex(raw float64) error   { return b.Set(ParamFMIndex, raw) }

// Raw returns the last accepted UI value for name.
func (b *ParameterBus) Raw(name string) (float64, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	v, ok := b.raw[name]
	return v, ok
}

func (b *ParameterBus) Envelope() EnvelopeParams { return b.env.Load() }

// Label is the panel display string for a parameter, e.g. "Reverb: 50".
func (b *ParameterBus) Label(name string) string {
	spec, ok := paramSpecs[name]
	if !ok {
		return ""
	}
	raw, _ := b.Raw(name)
	return spec.label + ": " + spec.format(raw)
}

func ParameterNames() []string {
	names := make([]string, 0, len(paramSpecs))
	for n := range paramSpecs {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}
