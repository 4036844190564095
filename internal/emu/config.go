package emu

// Config contains settings that affect emulation behavior but not its
// correctness: tracing, pacing, and the host audio sample rate.
type Config struct {
	Trace      bool // log the cartridge header on LoadROM (via stdlib log)
	LimitFPS   bool // not read by Machine; RunFrame never throttles
	SampleRate int  // host audio sample rate for AudioFill; 0 defaults to 48000
}

// Defaults returns a Config with the common library-use settings.
func Defaults() Config {
	return Config{SampleRate: 48000}
}
