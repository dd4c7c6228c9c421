// synth_waveform.go - Closed set of oscillator waveforms

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
	"strings"
)

type Waveform uint8

const (
	WaveSine Waveform = iota
	WaveSquare
	WaveTriangle
	WaveSaw
	waveCount
)

// waveformNames is ordered as the panel's waveform selector.
var waveformNames = [waveCount]string{"Sine", "Square", "Triangle", "Saw"}

// oscFunc renders one sample at phase t in [0, 1) with increment dt.
type oscFunc func(t, dt float32) float32

var waveformOsc = [waveCount]oscFunc{
	WaveSine:     oscSine,
	WaveSquare:   oscSquare,
	WaveTriangle: oscTriangle,
	WaveSaw:      oscSaw,
}

func (w Waveform) String() string {
	if w < waveCount {
		return waveformNames[w]
	}
	return fmt.Sprintf("Waveform(%d)", uint8(w))
}

func (w Waveform) Valid() bool { return w < waveCount }

func ParseWaveform(s string) (Waveform, error) {
	for i, name := range waveformNames {
		if strings.EqualFold(s, name) {
			return Waveform(i), nil
		}
	}
	switch strings.ToLower(s) {
	case "sawtooth":
		return WaveSaw, nil
	case "tri":
		return WaveTriangle, nil
	case "sq":
		return WaveSquare, nil
	}
	return 0, fmt.Errorf("unknown waveform %q (want sine, square, triangle or saw)", s)
}

func Waveforms() []Waveform {
	out := make([]Waveform, waveCount)
	for i := range out {
		out[i] = Waveform(i)
	}
	return out
}

func oscSine(t, _ float32) float32 {
	return fastSinCycle(t)
}

func oscSquare(t, dt float32) float32 {
	y := float32(-1)
	if t < 0.5 {
		y = 1
	}
	y += polyBLEP32(t, dt)
	t2 := t + 0.5
	if t2 >= 1 {
		t2 -= 1
	}
	return y - polyBLEP32(t2, dt)
}

func oscTriangle(t, _ float32) float32 {
	if t < 0.5 {
		return 4*t - 1
	}
	return 3 - 4*t
}

func oscSaw(t, dt float32) float32 {
	return 2*t - 1 - polyBLEP32(t, dt)
}
