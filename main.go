// main.go - Entry point for edosynth, the microtonal EDO keyboard synthesizer

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
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"
)

// Version is set at build time with -ldflags "-X main.Version=...".
var Version = "dev"

func boilerPlate() {
	fmt.Println("\n\033[38;2;255;20;147m ██▓ ███▄    █ ▄▄▄█████▓ █    ██  ██▓▄▄▄█████▓ ██▓ ▒█████   ███▄    █    ▓█████  ███▄    █   ▄████  ██▓ ███▄    █ ▓█████\033[0m\n\033[38;2;255;50;147m▓██▒ ██ ▀█   █ ▓  ██▒ ▓▒ ██  ▓██▒▓██▒▓  ██▒ ▓▒▓██▒▒██▒  ██▒ ██ ▀█   █    ▓█   ▀  ██ ▀█   █  ██▒ ▀█▒▓██▒ ██ ▀█   █ ▓█   ▀\033[0m\n\033[38;2;255;80;147m▒██▒▓██  ▀█ ██▒▒ ▓██░ ▒░▓██  ▒██░▒██▒▒ ▓██░ ▒░▒██▒▒██░  ██▒▓██  ▀█ ██▒   ▒███   ▓██  ▀█ ██▒▒██░▄▄▄░▒██▒▓██  ▀█ ██▒▒███\033[0m\n\033[38;2;255;110;147m░██░▓██▒  ▐▌██▒░ ▓██▓ ░ ▓▓█  ░██░░██░░ ▓██▓ ░ ░██░▒██   ██░▓██▒  ▐▌██▒   ▒▓█  ▄ ▓██▒  ▐▌██▒░▓█  ██▓░██░▓██▒  ▐▌██▒▒▓█  ▄\033[0m\n\033[38;2;255;140;147m░██░▒██░   ▓██░  ▒██▒ ░ ▒▒█████▓ ░██░  ▒██▒ ░ ░██░░ ████▓▒░▒██░   ▓██░   ░▒████▒▒██░   ▓██░░▒▓███▀▒░██░▒██░   ▓██░░▒████▒\033[0m\n\033[38;2;255;170;147m░▓  ░ ▒░   ▒ ▒   ▒ ░░   ░▒▓▒ ▒ ▒ ░▓    ▒ ░░   ░▓  ░ ▒░▒░▒░ ░ ▒░   ▒ ▒    ░░ ▒░ ░░ ▒░   ▒ ▒  ░▒   ▒ ░▓  ░ ▒░   ▒ ▒ ░░ ▒░ ░\033[0m\n\033[38;2;255;200;147m ▒ ░░ ░░   ░ ▒░    ░    ░░▒░ ░ ░  ▒ ░    ░     ▒ ░  ░ ▒ ▒░ ░ ░░   ░ ▒░    ░ ░  ░░ ░░   ░ ▒░  ░   ░  ▒ ░░ ░░   ░ ▒░ ░ ░  ░\033[0m\n\033[38;2;255;230;147m ▒ ░   ░   ░ ░   ░       ░░░ ░ ░  ▒ ░  ░       ▒ ░░ ░ ░ ▒     ░   ░ ░       ░      ░   ░ ░ ░ ░   ░  ▒ ░   ░   ░ ░    ░\033[0m\n\033[38;2;255;255;147m ░           ░             ░      ░            ░      ░ ░           ░       ░  ░         ░       ░  ░           ░    ░  ░\033[0m")
	fmt.Println("\nA microtonal keyboard synthesizer: any equal division of the octave from 1 to 60.")
	fmt.Println("(c) 2024 - 2026 Zayn Otley")
	fmt.Println("https://github.com/IntuitionAmiga/IntuitionEngine")
	fmt.Println("License: GPLv3 or later")
}

type options struct {
	divisions  int
	reference  float64
	wave       string
	sampleRate int
	bufferSize int
	terminal   bool
	script     string
	logLevel   string
	features   bool
	hold       time.Duration
}

func parseOptions(args []string, output io.Writer) (options, error) {
	var o options
	flagSet := flag.NewFlagSet("edosynth", flag.ContinueOnError)
	flagSet.SetOutput(io.Discard)
	flagSet.IntVar(&o.divisions, "edo", DEFAULT_DIVISIONS, fmt.Sprintf("Divisions of the octave (%d-%d)", MIN_DIVISIONS, MAX_DIVISIONS))
	flagSet.Float64Var(&o.reference, "ref", DEFAULT_REF_FREQ, "Frequency of the first key in Hz")
	flagSet.StringVar(&o.wave, "wave", WaveSine.String(), "Waveform: Sine, Square, Triangle or Saw")
	flagSet.IntVar(&o.sampleRate, "rate", DEFAULT_SAMPLE_RATE, "Output sample rate")
	flagSet.IntVar(&o.bufferSize, "buffer", DEFAULT_BUFFER_SIZE, "Samples per audio block")
	flagSet.BoolVar(&o.terminal, "terminal", false, "Read keys from the terminal instead of a window")
	flagSet.StringVar(&o.script, "script", "", "Run a Lua control script instead of live input")
	flagSet.StringVar(&o.logLevel, "log-level", "info", "Log level: debug, info, warn or error")
	flagSet.BoolVar(&o.features, "features", false, "Print compiled features and exit")
	flagSet.DurationVar(&o.hold, "hold", DEFAULT_HOLD_TIMEOUT, "Terminal mode: release a key after this long without auto-repeat")

	flagSet.Usage = func() {
		flagSet.SetOutput(output)
		fmt.Fprintln(output, "Usage: ./edosynth [-edo 60] [-ref 440] [-wave Sine] [-terminal] [-script file.lua]")
		flagSet.PrintDefaults()
	}
	if err := flagSet.Parse(args); err != nil {
		return o, err
	}
	if flagSet.NArg() > 0 {
		return o, fmt.Errorf("unexpected arguments: %v", flagSet.Args())
	}
	return o, nil
}

func (o options) engineConfig(logger *slog.Logger) (EngineConfig, error) {
	w, err := ParseWaveform(o.wave)
	if err != nil {
		return EngineConfig{}, err
	}
	cfg := DefaultEngineConfig()
	cfg.Divisions = o.divisions
	cfg.ReferenceFreq = o.reference
	cfg.Waveform = w
	cfg.SampleRate = o.sampleRate
	cfg.BufferSize = o.bufferSize
	cfg.Logger = logger
	return cfg, nil
}

func newLogger(level string, w io.Writer) (*slog.Logger, error) {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		return nil, fmt.Errorf("log level: %w", err)
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: lvl})), nil
}

func main() {
	boilerPlate()

	opts, err := parseOptions(os.Args[1:], os.Stdout)
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			os.Exit(0)
		}
		fmt.Printf("Error: %v\n", err)
		os.Exit(1)
	}
	if opts.features {
		printFeatures()
		return
	}

	logger, err := newLogger(opts.logLevel, os.Stderr)
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		os.Exit(1)
	}
	slog.SetDefault(logger)

	cfg, err := opts.engineConfig(logger)
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		os.Exit(1)
	}

	out, err := NewAudioOutput(cfg.SampleRate, cfg.BufferSize)
	if err != nil {
		fmt.Printf("Failed to initialize sound: %v\n", err)
		os.Exit(1)
	}
	engine, err := NewEngine(cfg, out)
	if err != nil {
		out.Close()
		fmt.Printf("Error: %v\n", err)
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx, engine, opts, logger); err != nil {
		fmt.Printf("Error: %v\n", err)
		os.Exit(1)
	}
}

// run starts the engine with the selected input and blocks until that
// input ends or ctx is cancelled.
func run(ctx context.Context, engine *Engine, opts options, logger *slog.Logger) error {
	defer func() {
		if err := engine.Stop(); err != nil {
			logger.Error("engine shutdown", "err", err)
		}
	}()

	switch {
	case opts.script != "":
		if err := engine.Start(ctx); err != nil {
			return err
		}
		script := NewControlScript(engine, os.Stdout, logger)
		defer script.Close()
		return script.RunFile(ctx, opts.script)

	case opts.terminal || !windowAvailable():
		keys := NewTerminalKeys(opts.hold)
		host := NewTerminalHost(keys)
		if err := engine.Start(ctx, keys); err != nil {
			return err
		}
		if err := host.Start(); err != nil {
			return err
		}
		defer host.Stop()
		fmt.Print(engine.KeyTable())
		fmt.Print("Press keys to play, Esc to quit.\r\n")
		select {
		case <-keys.Quit():
		case <-ctx.Done():
		}
		return nil

	default:
		src, runUI := runWindow(engine)
		if err := engine.Start(ctx, src); err != nil {
			return err
		}
		return runUI()
	}
}
