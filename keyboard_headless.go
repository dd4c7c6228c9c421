//go:build headless

package main

func windowAvailable() bool { return false }

func runWindow(engine *Engine) (KeySource, func() error) {
	return nil, nil
}
