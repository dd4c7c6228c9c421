//go:build !headless

// audio_backend_oto.go - OTO v3 audio output implementation

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
	"sync"
	"sync/atomic"
	"time"
	"unsafe"

	"github.com/ebitengine/oto/v3"
)

func init() {
	compiledFeatures = append(compiledFeatures, "audio:oto")
}

type OtoPlayer struct {
	ctx       *oto.Context
	player    *oto.Player
	src       atomic.Pointer[blockSource] // Atomic for lock-free Read()
	sampleBuf []float32                   // Pre-allocated sample buffer
	started   bool
	mutex     sync.Mutex // Only for setup/control operations
}

func NewAudioOutput(sampleRate, bufferSize int) (AudioOutput, error) {
	return NewOtoPlayer(sampleRate, bufferSize)
}

func NewOtoPlayer(sampleRate, bufferSize int) (*OtoPlayer, error) {
	if bufferSize <= 0 {
		bufferSize = DEFAULT_BUFFER_SIZE
	}
	op := &oto.NewContextOptions{
		SampleRate:   sampleRate,
		ChannelCount: 1,
		Format:       oto.FormatFloat32LE,
		BufferSize:   time.Duration(bufferSize) * time.Second / time.Duration(sampleRate),
	}

	ctx, ready, err := oto.NewContext(op)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrAudioUnavailable, err)
	}
	<-ready

	return &OtoPlayer{
		ctx:       ctx,
		sampleBuf: make([]float32, bufferSize),
	}, nil
}

func (op *OtoPlayer) SetupPlayer(src BlockRenderer) {
	op.mutex.Lock()
	defer op.mutex.Unlock()

	op.src.Store(&blockSource{r: src})
	if op.player == nil {
		op.player = op.ctx.NewPlayer(op)
	}
}

func (op *OtoPlayer) Read(p []byte) (n int, err error) {
	// Load renderer atomically - no lock needed for the hot path
	src := op.src.Load()
	numSamples := len(p) / 4
	if src == nil || numSamples == 0 {
		clear(p)
		return len(p), nil
	}

	// Grows only if the device asks for more than the configured buffer
	if len(op.sampleBuf) < numSamples {
		op.sampleBuf = make([]float32, numSamples)
	}
	samples := op.sampleBuf[:numSamples]
	src.r.Process(samples)

	copied := copy(p, unsafe.Slice((*byte)(unsafe.Pointer(&samples[0])), numSamples*4))
	clear(p[copied:])
	return len(p), nil
}

func (op *OtoPlayer) Start() error {
	op.mutex.Lock()
	defer op.mutex.Unlock()

	if op.player == nil {
		return fmt.Errorf("%w: player not set up", ErrAudioUnavailable)
	}
	if !op.started {
		op.player.Play()
		op.started = true
	}
	return nil
}

func (op *OtoPlayer) Close() {
	op.mutex.Lock()
	defer op.mutex.Unlock()

	if op.player != nil {
		op.player.Pause()
		if err := op.player.Close(); err != nil {
			fmt.Printf("audio: closing player: %v\n", err)
		}
		op.player = nil
	}
	op.started = false
}

func (op *OtoPlayer) IsStarted() bool {
	op.mutex.Lock()
	defer op.mutex.Unlock()
	return op.started
}
