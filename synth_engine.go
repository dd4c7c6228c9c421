// synth_engine.go - Wiring of voice pool, effects, parameters, keys and audio output

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
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
)

const (
	DEFAULT_REAP_INTERVAL = 250 * time.Millisecond
	keyEventQueue         = 256
)

type EngineConfig struct {
	SampleRate    int
	BufferSize    int
	Divisions     int
	ReferenceFreq float64
	Waveform      Waveform
	ReapInterval  time.Duration
	Logger        *slog.Logger
}

func DefaultEngineConfig() EngineConfig {
	return EngineConfig{
		SampleRate:    DEFAULT_SAMPLE_RATE,
		BufferSize:    DEFAULT_BUFFER_SIZE,
		Divisions:     DEFAULT_DIVISIONS,
		ReferenceFreq: DEFAULT_REF_FREQ,
		Waveform:      WaveSine,
		ReapInterval:  DEFAULT_REAP_INTERVAL,
	}
}

var ErrEngineStopped = errors.New("engine stopped")

type Engine struct {
	cfg    EngineConfig
	logger *slog.Logger

	out    AudioOutput
	env    *EnvelopeHandle
	chain  *EffectsChain
	pool   *VoicePool
	bus    *ParameterBus
	router *KeyRouter
	status runtimeStatusStore
	events chan KeyEvent

	mu       sync.Mutex // Serialises topology changes
	tuning   Tuning
	waveform Waveform

	runMu  sync.Mutex
	cancel context.CancelFunc
	group  *errgroup.Group
	ctx    context.Context
}

func NewEngine(cfg EngineConfig, out AudioOutput) (*Engine, error) {
	def := DefaultEngineConfig()
	if cfg.SampleRate <= 0 {
		cfg.SampleRate = def.SampleRate
	}
	if cfg.BufferSize <= 0 {
		cfg.BufferSize = def.BufferSize
	}
	if cfg.ReapInterval <= 0 {
		cfg.ReapInterval = def.ReapInterval
	}
	if cfg.ReferenceFreq == 0 {
		cfg.ReferenceFreq = def.ReferenceFreq
	}
	if cfg.Divisions == 0 {
		cfg.Divisions = def.Divisions
	}
	if !cfg.Waveform.Valid() {
		return nil, fmt.Errorf("engine: invalid waveform %s", cfg.Waveform)
	}
	tuning := Tuning{Divisions: cfg.Divisions, ReferenceFreq: cfg.ReferenceFreq}
	if err := tuning.Validate(); err != nil {
		return nil, fmt.Errorf("engine: %w", err)
	}
	if out == nil {
		return nil, fmt.Errorf("engine: %w: no output", ErrAudioUnavailable)
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	e := &Engine{
		cfg:      cfg,
		logger:   logger,
		out:      out,
		env:      NewEnvelopeHandle(DefaultEnvelope()),
		chain:    NewEffectsChain(float64(cfg.SampleRate), cfg.BufferSize),
		events:   make(chan KeyEvent, keyEventQueue),
		tuning:   tuning,
		waveform: cfg.Waveform,
	}
	e.chain.SetFMCarrier(tuning.ReferenceFreq)
	e.pool = NewVoicePool(e.chain, e.env, float64(cfg.SampleRate), logger)
	e.bus = NewParameterBus(e.env, e.chain)
	e.router = NewKeyRouter(e.pool, logger)
	return e, nil
}

// Start builds the initial voice set, opens the audio output and launches
// the key router and the tail reaper. Key sources are merged into the
// router's queue in arrival order.
func (e *Engine) Start(ctx context.Context, sources ...KeySource) error {
	e.runMu.Lock()
	defer e.runMu.Unlock()
	if e.group != nil {
		return errors.New("engine already started")
	}

	e.mu.Lock()
	err := e.pool.Rebuild(e.tuning, e.waveform)
	e.mu.Unlock()
	if err != nil {
		return fmt.Errorf("engine: initial voice set: %w", err)
	}

	e.out.SetupPlayer(e.chain)
	if err := e.out.Start(); err != nil {
		return fmt.Errorf("engine: %w", err)
	}

	ctx, cancel := context.WithCancel(ctx)
	g, gctx := errgroup.WithContext(ctx)
	e.cancel = cancel
	e.group = g
	e.ctx = gctx

	g.Go(func() error { return e.router.Run(gctx, e.events) })
	g.Go(func() error { return e.reapLoop(gctx) })
	for _, src := range sources {
		g.Go(func() error { return e.forward(gctx, src.Events()) })
	}

	e.publishStatus()
	e.logger.Info("engine started",
		"tuning", e.tuning.String(),
		"waveform", e.waveform.String(),
		"sample_rate", e.cfg.SampleRate,
		"sources", len(sources))
	return nil
}

func (e *Engine) forward(ctx context.Context, in <-chan KeyEvent) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-in:
			if !ok {
				return nil
			}
			select {
			case e.events <- ev:
			case <-ctx.Done():
				return nil
			}
		}
	}
}

func (e *Engine) reapLoop(ctx context.Context) error {
	ticker := time.NewTicker(e.cfg.ReapInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			e.pool.Reap()
			e.publishStatus()
		}
	}
}

// Submit queues one key event for the router.
func (e *Engine) Submit(ctx context.Context, ev KeyEvent) error {
	e.runMu.Lock()
	gctx := e.ctx
	e.runMu.Unlock()
	if gctx == nil {
		return ErrEngineStopped
	}
	select {
	case e.events <- ev:
		return nil
	case <-gctx.Done():
		return ErrEngineStopped
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Stop ends key ingestion, waits for the router to finish its current
// dispatch, releases all voices and closes the audio output.
func (e *Engine) Stop() error {
	e.runMu.Lock()
	defer e.runMu.Unlock()
	if e.group == nil {
		return nil
	}
	e.cancel()
	err := e.group.Wait()
	e.group = nil
	e.ctx = nil
	e.pool.ReleaseAll()
	e.out.Close()
	e.logger.Info("engine stopped")
	return err
}

// Done is closed once the engine's context ends, e.g. when Stop is called
// or the parent context is cancelled.
func (e *Engine) Done() <-chan struct{} {
	e.runMu.Lock()
	defer e.runMu.Unlock()
	if e.ctx == nil {
		ch := make(chan struct{})
		close(ch)
		return ch
	}
	return e.ctx.Done()
}

// SetTuning rebuilds the voice set for n divisions at the current reference.
func (e *Engine) SetTuning(n int) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	t := e.tuning
	t.Divisions = n
	if t.ReferenceIndex >= n {
		t.ReferenceIndex = 0
	}
	return e.applyLocked(t, e.waveform, e.chain.FMEnabled())
}

func (e *Engine) SetReference(hz float64) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	t := e.tuning
	t.ReferenceFreq = hz
	if err := e.applyLocked(t, e.waveform, e.chain.FMEnabled()); err != nil {
		return err
	}
	e.chain.SetFMCarrier(hz)
	return nil
}

// SetWaveform rebuilds every voice with the new timbre. Envelope settings
// carry over because all generations share one parameter record.
func (e *Engine) SetWaveform(w Waveform) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if !w.Valid() {
		return fmt.Errorf("set waveform: invalid waveform %s", w)
	}
	return e.applyLocked(e.tuning, w, e.chain.FMEnabled())
}

// SetFMEnabled switches between the voice sum and the FM source. Either way
// the current voices are silenced and a fresh set is built.
func (e *Engine) SetFMEnabled(enabled bool) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.pool.RebuildImmediate(e.tuning, e.waveform); err != nil {
		return err
	}
	e.chain.SetFMCarrier(e.tuning.ReferenceFreq)
	e.chain.SetFM(enabled)
	e.logger.Info("fm mode", "enabled", enabled)
	return nil
}

func (e *Engine) applyLocked(t Tuning, w Waveform, immediate bool) error {
	var err error
	if immediate {
		err = e.pool.RebuildImmediate(t, w)
	} else {
		err = e.pool.Rebuild(t, w)
	}
	if err != nil {
		e.logger.Warn("rebuild rejected", "err", err)
		return err
	}
	e.tuning = t
	e.waveform = w
	e.logger.Info("voice set rebuilt", "tuning", t.String(), "waveform", w.String())
	return nil
}

func (e *Engine) Tuning() Tuning {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.tuning
}

func (e *Engine) Waveform() Waveform {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.waveform
}

func (e *Engine) Params() *ParameterBus { return e.bus }
func (e *Engine) Chain() *EffectsChain  { return e.chain }
func (e *Engine) Pool() *VoicePool      { return e.pool }
func (e *Engine) Router() *KeyRouter    { return e.router }

// KeyLabels returns the current key map split into display columns.
func (e *Engine) KeyLabels() []string {
	return FormatKeyLabels(e.pool.Steps(), KEY_LABEL_COLUMNS)
}

func (e *Engine) KeyTable() string {
	return FormatKeyTable(e.pool.Steps())
}

func (e *Engine) Status() EngineStatus {
	e.mu.Lock()
	t, w := e.tuning, e.waveform
	e.mu.Unlock()

	params := make(map[string]string, len(paramSpecs))
	for _, name := range ParameterNames() {
		params[name] = e.bus.Label(name)
	}
	return EngineStatus{
		Tuning:       t,
		Waveform:     w,
		FMEnabled:    e.chain.FMEnabled(),
		Generation:   e.pool.Generation(),
		Sounding:     e.pool.Sounding(),
		PendingTails: e.pool.PendingTails(),
		LastPlayed:   e.router.LastPlayedLabel(),
		Dispatched:   e.router.Dispatched(),
		Dropped:      e.router.Dropped(),
		Params:       params,
		AudioStarted: e.out.IsStarted(),
	}
}

func (e *Engine) publishStatus() {
	e.status.publish(e.Status())
}

// StatusSnapshot is the last published status; cheap enough to call per frame.
func (e *Engine) StatusSnapshot() EngineStatus {
	return e.status.snapshot()
}
