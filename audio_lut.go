// audio_lut.go - Lookup tables and band-limiting helpers for the oscillator bank

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

import "math"

const (
	sinLUTSize  = 8192
	sinLUTMask  = sinLUTSize - 1
	tanhLUTSize = 4096
	tanhLUTMin  = float32(-4.0)
	tanhLUTMax  = float32(4.0)
)

// Phase is kept normalised to [0, 1) by the oscillators, so the sine table
// is indexed by cycle fraction rather than radians.
const (
	sinLUTScale  = float32(sinLUTSize)
	tanhLUTScale = float32(tanhLUTSize-1) / (tanhLUTMax - tanhLUTMin)
)

var sinLUT [sinLUTSize + 1]float32

var tanhLUT [tanhLUTSize]float32

func init() {
	for i := 0; i <= sinLUTSize; i++ {
		sinLUT[i] = float32(math.Sin(float64(i) * 2 * math.Pi / sinLUTSize))
	}
	for i := 0; i < tanhLUTSize; i++ {
		x := float64(tanhLUTMin) + float64(i)*float64(tanhLUTMax-tanhLUTMin)/float64(tanhLUTSize-1)
		tanhLUT[i] = float32(math.Tanh(x))
	}
}

// fastSinCycle returns sin(2π·t) for t in [0, 1) with linear interpolation.
//
//go:nosplit
func fastSinCycle(t float32) float32 {
	if t < 0 || t >= 1 {
		t -= float32(math.Floor(float64(t)))
	}
	indexF := t * sinLUTScale
	index := int(indexF)
	frac := indexF - float32(index)
	index &= sinLUTMask
	return sinLUT[index] + frac*(sinLUT[index+1]-sinLUT[index])
}

// fastTanh saturates outside [-4, 4].
//
//go:nosplit
func fastTanh(x float32) float32 {
	if x <= tanhLUTMin {
		return -1.0
	}
	if x >= tanhLUTMax {
		return 1.0
	}
	indexF := (x - tanhLUTMin) * tanhLUTScale
	index := int(indexF)
	if index >= tanhLUTSize-1 {
		return tanhLUT[tanhLUTSize-1]
	}
	frac := indexF - float32(index)
	return tanhLUT[index] + frac*(tanhLUT[index+1]-tanhLUT[index])
}

// polyBLEP32 is the polynomial band-limited step residual.
// t is the phase in [0, 1), dt the per-sample phase increment.
//
//go:nosplit
func polyBLEP32(t, dt float32) float32 {
	if t < dt {
		t /= dt
		return t + t - t*t - 1.0
	} else if t > 1.0-dt {
		t = (t - 1.0) / dt
		return t*t + t + t + 1.0
	}
	return 0.0
}
