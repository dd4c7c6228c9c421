//go:build !headless

// keyboard_ebiten.go - Window key source, control hot-keys and key map display

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
	"image/color"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/hajimehoshi/ebiten/v2"
	"github.com/hajimehoshi/ebiten/v2/ebitenutil"
	"github.com/hajimehoshi/ebiten/v2/inpututil"
	"github.com/hajimehoshi/ebiten/v2/text"
	"golang.design/x/clipboard"
	"golang.org/x/image/font/basicfont"
)

func init() {
	compiledFeatures = append(compiledFeatures, "input:ebiten")
}

const (
	WINDOW_WIDTH  = 960
	WINDOW_HEIGHT = 600

	panelLineHeight = 15
	noticeDuration  = 2 * time.Second
)

var (
	letterKeys = [26]ebiten.Key{
		ebiten.KeyA, ebiten.KeyB, ebiten.KeyC, ebiten.KeyD, ebiten.KeyE, ebiten.KeyF,
		ebiten.KeyG, ebiten.KeyH, ebiten.KeyI, ebiten.KeyJ, ebiten.KeyK, ebiten.KeyL,
		ebiten.KeyM, ebiten.KeyN, ebiten.KeyO, ebiten.KeyP, ebiten.KeyQ, ebiten.KeyR,
		ebiten.KeyS, ebiten.KeyT, ebiten.KeyU, ebiten.KeyV, ebiten.KeyW, ebiten.KeyX,
		ebiten.KeyY, ebiten.KeyZ,
	}
	digitKeys = [10]ebiten.Key{
		ebiten.KeyDigit0, ebiten.KeyDigit1, ebiten.KeyDigit2, ebiten.KeyDigit3, ebiten.KeyDigit4,
		ebiten.KeyDigit5, ebiten.KeyDigit6, ebiten.KeyDigit7, ebiten.KeyDigit8, ebiten.KeyDigit9,
	}
	waveformHotKeys = map[ebiten.Key]Waveform{
		ebiten.KeyF1: WaveSine,
		ebiten.KeyF2: WaveSquare,
		ebiten.KeyF3: WaveTriangle,
		ebiten.KeyF4: WaveSaw,
	}
)

// keyRune maps a physical key to the character it types on a US layout.
// Shift only affects letters; the shifted digit row yields no note key.
func keyRune(k ebiten.Key, shift bool) (rune, bool) {
	for i, lk := range letterKeys {
		if lk == k {
			if shift {
				return rune('A' + i), true
			}
			return rune('a' + i), true
		}
	}
	if shift {
		return 0, false
	}
	for i, dk := range digitKeys {
		if dk == k {
			return rune('0' + i), true
		}
	}
	return 0, false
}

// SynthWindow is the on-screen panel. Its Update runs on the ebiten
// goroutine, which owns held and the scratch slices.
type SynthWindow struct {
	engine *Engine
	events chan KeyEvent
	held   map[ebiten.Key]KeyID

	pressed  []ebiten.Key
	released []ebiten.Key

	labelGen uint64
	labels   []string

	clipboardOnce sync.Once
	clipboardOK   bool

	notice      string
	noticeUntil time.Time

	// Releases that found the queue full; retried every frame.
	pendingReleases []KeyEvent

	quit      atomic.Bool
	closeOnce sync.Once
	overflow  atomic.Uint64
}

func NewSynthWindow(engine *Engine) *SynthWindow {
	return &SynthWindow{
		engine: engine,
		events: make(chan KeyEvent, keyEventQueue),
		held:   make(map[ebiten.Key]KeyID),
	}
}

func (w *SynthWindow) Events() <-chan KeyEvent { return w.events }

// Close asks the window to terminate at its next frame.
func (w *SynthWindow) Close() { w.quit.Store(true) }

// Run opens the window and blocks until it closes. Must be called from the
// main goroutine.
func (w *SynthWindow) Run() error {
	defer w.closeOnce.Do(func() { close(w.events) })
	ebiten.SetWindowSize(WINDOW_WIDTH, WINDOW_HEIGHT)
	ebiten.SetWindowTitle(fmt.Sprintf("edosynth %s", Version))
	ebiten.SetWindowResizable(true)
	ebiten.SetRunnableOnUnfocused(true)
	ebiten.SetWindowClosingHandled(true)
	if err := ebiten.RunGame(w); err != nil {
		return fmt.Errorf("window: %w", err)
	}
	return nil
}

// emit queues ev without blocking the frame. A press that finds the queue
// full is dropped; a release is held back so no note is left sounding.
func (w *SynthWindow) emit(ev KeyEvent) {
	if ev.Action == KeyRelease && len(w.pendingReleases) > 0 {
		w.pendingReleases = append(w.pendingReleases, ev)
		return
	}
	select {
	case w.events <- ev:
	default:
		if ev.Action == KeyRelease {
			w.pendingReleases = append(w.pendingReleases, ev)
			return
		}
		w.overflow.Add(1)
	}
}

// flushReleases delivers held-back releases in order. With wait set it
// blocks until they are queued or the engine stops.
func (w *SynthWindow) flushReleases(wait bool) {
	for len(w.pendingReleases) > 0 {
		ev := w.pendingReleases[0]
		if wait {
			select {
			case w.events <- ev:
			case <-w.engine.Done():
				w.pendingReleases = w.pendingReleases[:0]
				return
			}
		} else {
			select {
			case w.events <- ev:
			default:
				return
			}
		}
		w.pendingReleases = w.pendingReleases[1:]
	}
}

func (w *SynthWindow) Update() error {
	if ebiten.IsWindowBeingClosed() || w.quit.Load() {
		w.releaseHeld()
		w.flushReleases(true)
		return ebiten.Termination
	}
	select {
	case <-w.engine.Done():
		return ebiten.Termination
	default:
	}
	w.flushReleases(false)

	ctrl := ebiten.IsKeyPressed(ebiten.KeyControlLeft) || ebiten.IsKeyPressed(ebiten.KeyControlRight)
	shift := ebiten.IsKeyPressed(ebiten.KeyShiftLeft) || ebiten.IsKeyPressed(ebiten.KeyShiftRight)

	if inpututil.IsKeyJustPressed(ebiten.KeyEscape) {
		w.quit.Store(true)
		return nil
	}
	w.handleHotKeys(ctrl)

	// Releases first so a key re-struck within one frame still retriggers.
	w.released = inpututil.AppendJustReleasedKeys(w.released[:0])
	for _, k := range w.released {
		if id, ok := w.held[k]; ok {
			delete(w.held, k)
			w.emit(Release(id))
		}
	}
	if ctrl {
		return nil
	}
	w.pressed = inpututil.AppendJustPressedKeys(w.pressed[:0])
	for _, k := range w.pressed {
		r, ok := keyRune(k, shift)
		if !ok {
			continue
		}
		// The release must go to the step that was struck, even if shift
		// changes while the key is down.
		id := KeyID(r)
		w.held[k] = id
		w.emit(Press(id))
	}
	return nil
}

func (w *SynthWindow) releaseHeld() {
	for k, id := range w.held {
		delete(w.held, k)
		w.emit(Release(id))
	}
}

func (w *SynthWindow) handleHotKeys(ctrl bool) {
	if ctrl && inpututil.IsKeyJustPressed(ebiten.KeyC) {
		w.copyKeyTable()
		return
	}
	for k, wf := range waveformHotKeys {
		if inpututil.IsKeyJustPressed(k) {
			w.report(w.engine.SetWaveform(wf), "Waveform: "+wf.String())
		}
	}
	if inpututil.IsKeyJustPressed(ebiten.KeyF5) {
		on := !w.engine.Chain().FMEnabled()
		w.report(w.engine.SetFMEnabled(on), fmt.Sprintf("FM: %v", on))
	}
	step := 0
	if inpututil.IsKeyJustPressed(ebiten.KeyArrowUp) {
		step = 1
	}
	if inpututil.IsKeyJustPressed(ebiten.KeyArrowDown) {
		step = -1
	}
	if step != 0 {
		n := w.engine.Tuning().Divisions + step
		w.report(w.engine.SetTuning(n), fmt.Sprintf("EDO: %d", n))
	}
}

func (w *SynthWindow) report(err error, ok string) {
	if err != nil {
		w.setNotice(err.Error())
		return
	}
	w.setNotice(ok)
}

func (w *SynthWindow) setNotice(s string) {
	w.notice = s
	w.noticeUntil = time.Now().Add(noticeDuration)
}

func (w *SynthWindow) copyKeyTable() {
	w.clipboardOnce.Do(func() {
		w.clipboardOK = clipboard.Init() == nil
	})
	if !w.clipboardOK {
		w.setNotice("clipboard unavailable")
		return
	}
	clipboard.Write(clipboard.FmtText, []byte(w.engine.KeyTable()))
	w.setNotice("key table copied")
}

func (w *SynthWindow) Draw(screen *ebiten.Image) {
	screen.Fill(color.RGBA{16, 16, 24, 255})
	face := basicfont.Face7x13
	textColor := color.RGBA{220, 220, 220, 255}
	dimColor := color.RGBA{150, 150, 150, 255}

	status := w.engine.StatusSnapshot()
	y := 18
	for _, line := range status.Lines() {
		text.Draw(screen, line, face, 8, y, textColor)
		y += panelLineHeight
	}

	if gen := w.engine.Pool().Generation(); gen != w.labelGen || w.labels == nil {
		w.labelGen = gen
		w.labels = w.engine.KeyLabels()
	}
	top := y + 8
	ebitenutil.DrawRect(screen, 0, float64(top-13), WINDOW_WIDTH, 1, dimColor)
	colWidth := WINDOW_WIDTH / KEY_LABEL_COLUMNS
	for c, col := range w.labels {
		for i, line := range strings.Split(col, "\n") {
			if line == "" {
				continue
			}
			text.Draw(screen, line, face, 8+c*colWidth, top+i*panelLineHeight, textColor)
		}
	}

	legend := "F1-F4 Wave  F5 FM  Up/Down EDO  Ctrl+C Copy keys  Esc Quit"
	ebitenutil.DrawRect(screen, 0, WINDOW_HEIGHT-22, WINDOW_WIDTH, 22, color.RGBA{0, 0, 0, 180})
	text.Draw(screen, legend, face, 8, WINDOW_HEIGHT-7, dimColor)
	if w.notice != "" && time.Now().Before(w.noticeUntil) {
		nx := max(WINDOW_WIDTH-text.BoundString(face, w.notice).Dx()-8, 8)
		text.Draw(screen, w.notice, face, nx, WINDOW_HEIGHT-7, color.RGBA{0, 220, 90, 255})
	}
}

func (w *SynthWindow) Layout(_, _ int) (int, int) {
	return WINDOW_WIDTH, WINDOW_HEIGHT
}

func windowAvailable() bool { return true }

func runWindow(engine *Engine) (KeySource, func() error) {
	w := NewSynthWindow(engine)
	return w, w.Run
}
