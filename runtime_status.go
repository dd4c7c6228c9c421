package main

import (
	"fmt"
	"sort"
	"strings"
	"sync"
)

// EngineStatus is a point-in-time view of the engine for the panel and
// scripts.
type EngineStatus struct {
	Tuning       Tuning
	Waveform     Waveform
	FMEnabled    bool
	Generation   uint64
	Sounding     int
	PendingTails int
	LastPlayed   string
	Dispatched   uint64
	Dropped      uint64
	Params       map[string]string
	AudioStarted bool
}

// Lines renders the status for a text panel, parameters in name order.
func (s EngineStatus) Lines() []string {
	mode := s.Waveform.String()
	if s.FMEnabled {
		mode = "FM"
	}
	lines := []string{
		fmt.Sprintf("%d-EDO  ref %.2f Hz  %s", s.Tuning.Divisions, s.Tuning.ReferenceFreq, mode),
		s.LastPlayed,
		fmt.Sprintf("Voices: %d sounding, %d tails", s.Sounding, s.PendingTails),
	}
	names := make([]string, 0, len(s.Params))
	for n := range s.Params {
		names = append(names, n)
	}
	sort.Strings(names)
	var b strings.Builder
	for i, n := range names {
		if i > 0 {
			b.WriteString("  ")
		}
		b.WriteString(s.Params[n])
		if i%4 == 3 {
			lines = append(lines, b.String())
			b.Reset()
		}
	}
	if b.Len() > 0 {
		lines = append(lines, b.String())
	}
	return lines
}

type runtimeStatusStore struct {
	mu   sync.RWMutex
	snap EngineStatus
}

func (s *runtimeStatusStore) publish(st EngineStatus) {
	s.mu.Lock()
	s.snap = st
	s.mu.Unlock()
}

func (s *runtimeStatusStore) snapshot() EngineStatus {
	s.mu.RLock()
	snap := s.snap
	s.mu.RUnlock()
	return snap
}
