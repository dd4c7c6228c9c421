// edo_scale.go - Equal division of the octave: frequencies and key assignment

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
	"strings"
)

// referenceLayout is the ordered key alphabet scale steps are bound to.
// Step i of any tuning always lands on referenceLayout[i].
const referenceLayout = "qwertyuiopasdfghjklzxcvbnm" +
	"QWERTYUIOPASDFGHJKLZXCVBNM" +
	"12345678"

const (
	MIN_DIVISIONS      = 1
	MAX_DIVISIONS      = len(referenceLayout)
	DEFAULT_REF_FREQ   = 440.0
	DEFAULT_DIVISIONS  = 60 // Starting EDO
	KEY_LABEL_COLUMNS  = 4
	keyLabelFreqFormat = "%.2f"
)

// KeyID identifies a physical key by the character it produces.
type KeyID rune

func (k KeyID) String() string { return string(rune(k)) }

// Tuning describes an EDO scale anchored at ReferenceFreq on step ReferenceIndex.
type Tuning struct {
	Divisions      int
	ReferenceFreq  float64
	ReferenceIndex int
}

func DefaultTuning(divisions int) Tuning {
	return Tuning{Divisions: divisions, ReferenceFreq: DEFAULT_REF_FREQ}
}

func (t Tuning) String() string {
	return fmt.Sprintf("%d-EDO @ %.2f Hz (step %d)", t.Divisions, t.ReferenceFreq, t.ReferenceIndex)
}

type ScaleStep struct {
	Index     int
	Key       KeyID
	Frequency float64
}

var ErrInvalidTuning = errors.New("invalid tuning")

type InvalidTuningError struct {
	Tuning Tuning
	Reason string
}

func (e *InvalidTuningError) Error() string {
	return fmt.Sprintf("invalid tuning %d-EDO: %s", e.Tuning.Divisions, e.Reason)
}

func (e *InvalidTuningError) Is(target error) bool { return target == ErrInvalidTuning }

// Validate reports why t cannot be played on the reference layout.
func (t Tuning) Validate() error {
	switch {
	case t.Divisions < MIN_DIVISIONS:
		return &InvalidTuningError{t, fmt.Sprintf("divisions must be at least %d", MIN_DIVISIONS)}
	case t.Divisions > MAX_DIVISIONS:
		return &InvalidTuningError{t, fmt.Sprintf("only %d keys available", MAX_DIVISIONS)}
	case math.IsNaN(t.ReferenceFreq) || math.IsInf(t.ReferenceFreq, 0) || t.ReferenceFreq <= 0:
		return &InvalidTuningError{t, fmt.Sprintf("reference frequency %v is not positive", t.ReferenceFreq)}
	case t.ReferenceIndex < 0 || t.ReferenceIndex >= t.Divisions:
		return &InvalidTuningError{t, fmt.Sprintf("reference index %d outside scale", t.ReferenceIndex)}
	}
	return nil
}

// ComputeScale returns one step per division, strictly ascending in pitch
// and spanning less than an octave above step 0.
func ComputeScale(t Tuning) ([]ScaleStep, error) {
	if err := t.Validate(); err != nil {
		return nil, err
	}
	steps := make([]ScaleStep, t.Divisions)
	n := float64(t.Divisions)
	for i := range steps {
		steps[i] = ScaleStep{
			Index:     i,
			Key:       KeyID(referenceLayout[i]),
			Frequency: t.ReferenceFreq * math.Exp2(float64(i-t.ReferenceIndex)/n),
		}
	}
	return steps, nil
}

// KeyIndex resolves key to its scale step under a tuning with the given
// number of divisions. Keys beyond the scale are reported as unmapped.
func KeyIndex(divisions int, key KeyID) (int, bool) {
	if key < 0 || key > 0x7F {
		return 0, false
	}
	i := strings.IndexByte(referenceLayout, byte(key))
	if i < 0 || i >= divisions {
		return 0, false
	}
	return i, true
}

func formatKeyLabel(s ScaleStep) string {
	return fmt.Sprintf("Key: %s Freq: "+keyLabelFreqFormat, s.Key, s.Frequency)
}

// FormatKeyLabels splits the mapping into columns of equal length for the
// panel; whatever does not divide evenly goes to the last column.
func FormatKeyLabels(steps []ScaleStep, columns int) []string {
	if columns < 1 {
		columns = 1
	}
	out := make([]string, columns)
	per := len(steps) / columns
	for c := 0; c < columns; c++ {
		lo := c * per
		hi := lo + per
		if c == columns-1 {
			hi = len(steps)
		}
		lines := make([]string, 0, hi-lo)
		for _, s := range steps[lo:hi] {
			lines = append(lines, formatKeyLabel(s))
		}
		out[c] = strings.Join(lines, "\n")
	}
	return out
}

// FormatKeyTable renders the whole mapping one step per line.
func FormatKeyTable(steps []ScaleStep) string {
	var b strings.Builder
	for _, s := range steps {
		fmt.Fprintf(&b, "%2d  %s  "+keyLabelFreqFormat+"\n", s.Index, s.Key, s.Frequency)
	}
	return b.String()
}
