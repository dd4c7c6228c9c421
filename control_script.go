// control_script.go - Lua control surface: panel edits, topology changes and key events from a script

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
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	lua "github.com/yuin/gopher-lua"
)

// ControlScript exposes the engine's control panel to Lua. A script runs
// on its own goroutine and drives the engine through the same entry points
// as the window: ParameterBus setters, topology ops and Submit for keys.
type ControlScript struct {
	engine *Engine
	out    io.Writer
	logger *slog.Logger
	L      *lua.LState
	ctx    context.Context
}

func NewControlScript(engine *Engine, out io.Writer, logger *slog.Logger) *ControlScript {
	if logger == nil {
		logger = slog.Default()
	}
	s := &ControlScript{
		engine: engine,
		out:    out,
		logger: logger,
		L:      lua.NewState(),
		ctx:    context.Background(),
	}
	s.register()
	return s
}

func (s *ControlScript) Close() { s.L.Close() }

func (s *ControlScript) RunString(ctx context.Context, src string) error {
	s.bind(ctx)
	if err := s.L.DoString(src); err != nil {
		return fmt.Errorf("script: %w", err)
	}
	return nil
}

func (s *ControlScript) RunFile(ctx context.Context, path string) error {
	s.bind(ctx)
	s.logger.Info("running control script", "path", path)
	if err := s.L.DoFile(path); err != nil {
		return fmt.Errorf("script %s: %w", path, err)
	}
	return nil
}

func (s *ControlScript) bind(ctx context.Context) {
	s.ctx = ctx
	s.L.SetContext(ctx)
}

func (s *ControlScript) register() {
	params := map[string]string{
		"attack":   ParamAttack,
		"decay":    ParamDecay,
		"sustain":  ParamSustain,
		"release":  ParamRelease,
		"drive":    ParamDrive,
		"reverb":   ParamReverbMix,
		"fm_freq":  ParamFMFreq,
		"fm_index": ParamFMIndex,
	}
	for fn, name := range params {
		s.L.SetGlobal(fn, s.L.NewFunction(s.paramSetter(name)))
	}
	s.L.SetGlobal("edo", s.L.NewFunction(s.luaEDO))
	s.L.SetGlobal("ref", s.L.NewFunction(s.luaRef))
	s.L.SetGlobal("wave", s.L.NewFunction(s.luaWave))
	s.L.SetGlobal("fm", s.L.NewFunction(s.luaFM))
	s.L.SetGlobal("press", s.L.NewFunction(s.keyFunc(KeyPress)))
	s.L.SetGlobal("release_key", s.L.NewFunction(s.keyFunc(KeyRelease)))
	s.L.SetGlobal("tap", s.L.NewFunction(s.luaTap))
	s.L.SetGlobal("sleep", s.L.NewFunction(s.luaSleep))
	s.L.SetGlobal("freq", s.L.NewFunction(s.luaFreq))
	s.L.SetGlobal("label", s.L.NewFunction(s.luaLabel))
	s.L.SetGlobal("keys", s.L.NewFunction(s.luaKeys))
	s.L.SetGlobal("log", s.L.NewFunction(s.luaLog))
}

// paramSetter reads one raw panel value. With no argument it returns the
// current value instead.
func (s *ControlScript) paramSetter(name string) lua.LGFunction {
	return func(L *lua.LState) int {
		if L.GetTop() == 0 {
			v, _ := s.engine.Params().Raw(name)
			L.Push(lua.LNumber(v))
			return 1
		}
		v := float64(L.CheckNumber(1))
		if err := s.engine.Params().Set(name, v); err != nil {
			L.RaiseError("%v", err)
		}
		return 0
	}
}

func (s *ControlScript) luaEDO(L *lua.LState) int {
	if L.GetTop() == 0 {
		L.Push(lua.LNumber(s.engine.Tuning().Divisions))
		return 1
	}
	if err := s.engine.SetTuning(L.CheckInt(1)); err != nil {
		L.RaiseError("%v", err)
	}
	return 0
}

func (s *ControlScript) luaRef(L *lua.LState) int {
	if L.GetTop() == 0 {
		L.Push(lua.LNumber(s.engine.Tuning().ReferenceFreq))
		return 1
	}
	if err := s.engine.SetReference(float64(L.CheckNumber(1))); err != nil {
		L.RaiseError("%v", err)
	}
	return 0
}

func (s *ControlScript) luaWave(L *lua.LState) int {
	if L.GetTop() == 0 {
		L.Push(lua.LString(s.engine.Waveform().String()))
		return 1
	}
	w, err := ParseWaveform(L.CheckString(1))
	if err != nil {
		L.ArgError(1, err.Error())
		return 0
	}
	if err := s.engine.SetWaveform(w); err != nil {
		L.RaiseError("%v", err)
	}
	return 0
}

func (s *ControlScript) luaFM(L *lua.LState) int {
	if L.GetTop() == 0 {
		L.Push(lua.LBool(s.engine.Chain().FMEnabled()))
		return 1
	}
	if err := s.engine.SetFMEnabled(L.CheckBool(1)); err != nil {
		L.RaiseError("%v", err)
	}
	return 0
}

func checkKey(L *lua.LState, n int) KeyID {
	str := L.CheckString(n)
	if len(str) != 1 {
		L.ArgError(n, "expected a single key character")
	}
	return KeyID(str[0])
}

func (s *ControlScript) keyFunc(action KeyAction) lua.LGFunction {
	return func(L *lua.LState) int {
		k := checkKey(L, 1)
		if err := s.engine.Submit(s.ctx, KeyEvent{Key: k, Action: action}); err != nil {
			L.RaiseError("%v", err)
		}
		return 0
	}
}

// tap(key, seconds) presses, holds and releases a key.
func (s *ControlScript) luaTap(L *lua.LState) int {
	k := checkKey(L, 1)
	hold := float64(L.OptNumber(2, 0.25))
	if err := s.engine.Submit(s.ctx, Press(k)); err != nil {
		L.RaiseError("%v", err)
	}
	s.sleep(L, hold)
	if err := s.engine.Submit(s.ctx, Release(k)); err != nil {
		L.RaiseError("%v", err)
	}
	return 0
}

func (s *ControlScript) luaSleep(L *lua.LState) int {
	s.sleep(L, float64(L.CheckNumber(1)))
	return 0
}

func (s *ControlScript) sleep(L *lua.LState, seconds float64) {
	if seconds <= 0 {
		return
	}
	t := time.NewTimer(time.Duration(seconds * float64(time.Second)))
	defer t.Stop()
	select {
	case <-t.C:
	case <-s.ctx.Done():
		L.RaiseError("sleep interrupted: %v", s.ctx.Err())
	}
}

// freq(key) returns the frequency a key plays under the current tuning, or
// nil for an unmapped key.
func (s *ControlScript) luaFreq(L *lua.LState) int {
	step, ok := s.engine.Pool().Lookup(checkKey(L, 1))
	if !ok {
		L.Push(lua.LNil)
		return 1
	}
	L.Push(lua.LNumber(step.Frequency))
	return 1
}

func (s *ControlScript) luaLabel(L *lua.LState) int {
	L.Push(lua.LString(s.engine.Params().Label(L.CheckString(1))))
	return 1
}

func (s *ControlScript) luaKeys(L *lua.LState) int {
	L.Push(lua.LString(s.engine.KeyTable()))
	return 1
}

func (s *ControlScript) luaLog(L *lua.LState) int {
	parts := make([]string, 0, L.GetTop())
	for i := 1; i <= L.GetTop(); i++ {
		parts = append(parts, L.ToStringMeta(L.Get(i)).String())
	}
	if s.out != nil {
		fmt.Fprintln(s.out, strings.Join(parts, " "))
	}
	return 0
}
