//go:build headless

package main

func init() {
	compiledFeatures = append(compiledFeatures, "audio:headless")
}

func NewAudioOutput(sampleRate, bufferSize int) (AudioOutput, error) {
	return NewNullOutput(sampleRate, bufferSize), nil
}
