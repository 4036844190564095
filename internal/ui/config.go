package ui

// Config holds the ebiten host's window and audio settings. It is
// separate from emu.Config: nothing here affects emulation correctness,
// only how the machine is presented.
type Config struct {
	Title   string // window title
	Scale   int    // integer upscaling factor
	ROMsDir string // directory to browse for ROMs

	AudioBufferMs int // host audio player buffer size in ms
}

// Defaults fills missing fields with reasonable defaults.
func (c *Config) Defaults() {
	if c.Title == "" {
		c.Title = "gbemu"
	}
	if c.Scale <= 0 {
		c.Scale = 3
	}
	if c.ROMsDir == "" {
		c.ROMsDir = "roms"
	}
	if c.AudioBufferMs <= 0 {
		c.AudioBufferMs = 40
	}
}
