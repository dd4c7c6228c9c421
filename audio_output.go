// audio_output.go - Audio sink contract and the device-less output

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
	"sync"
	"sync/atomic"
	"time"
)

const (
	DEFAULT_SAMPLE_RATE = 44100
	DEFAULT_BUFFER_SIZE = 1024 // Samples per device pull
)

var ErrAudioUnavailable = errors.New("audio output unavailable")

// BlockRenderer produces the next block of mono float32 samples.
type BlockRenderer interface {
	Process(out []float32)
}

// AudioOutput pulls blocks from a renderer on its own schedule.
type AudioOutput interface {
	SetupPlayer(src BlockRenderer)
	Start() error
	Close()
	IsStarted() bool
}

// NullOutput drives a renderer at real-time pace without a device. Used
// for headless builds and tests.
type NullOutput struct {
	src        atomic.Pointer[blockSource]
	sampleRate int
	buf        []float32
	blocks     atomic.Uint64

	mutex   sync.Mutex
	started bool
	stopCh  chan struct{}
	done    chan struct{}
}

type blockSource struct {
	r BlockRenderer
}

func NewNullOutput(sampleRate, bufferSize int) *NullOutput {
	if sampleRate <= 0 {
		sampleRate = DEFAULT_SAMPLE_RATE
	}
	if bufferSize <= 0 {
		bufferSize = DEFAULT_BUFFER_SIZE
	}
	return &NullOutput{sampleRate: sampleRate, buf: make([]float32, bufferSize)}
}

func (n *NullOutput) SetupPlayer(src BlockRenderer) {
	n.src.Store(&blockSource{r: src})
}

// Pull renders one block synchronously and returns it. The slice is reused.
func (n *NullOutput) Pull() []float32 {
	if s := n.src.Load(); s != nil {
		s.r.Process(n.buf)
	} else {
		clear(n.buf)
	}
	n.blocks.Add(1)
	return n.buf
}

func (n *NullOutput) Blocks() uint64 { return n.blocks.Load() }

func (n *NullOutput) Start() error {
	n.mutex.Lock()
	defer n.mutex.Unlock()
	if n.started {
		return nil
	}
	n.stopCh = make(chan struct{})
	n.done = make(chan struct{})
	n.started = true
	go n.loop(n.stopCh, n.done)
	return nil
}

func (n *NullOutput) loop(stopCh, done chan struct{}) {
	defer close(done)
	period := time.Duration(len(n.buf)) * time.Second / time.Duration(n.sampleRate)
	ticker := time.NewTicker(period)
	defer ticker.Stop()
	for {
		select {
		case <-stopCh:
			return
		case <-ticker.C:
			n.Pull()
		}
	}
}

func (n *NullOutput) Close() {
	n.mutex.Lock()
	if !n.started {
		n.mutex.Unlock()
		return
	}
	n.started = false
	close(n.stopCh)
	done := n.done
	n.mutex.Unlock()
	<-done
}

func (n *NullOutput) IsStarted() bool {
	n.mutex.Lock()
	defer n.mutex.Unlock()
	return n.started
}
