// Package emu wires the cartridge, bus, CPU, PPU, APU, timer, interrupt
// controller, and joypad into the frame-paced scheduler the rest of the
// module (internal/ui, cmd/gbemu, cmd/cpurunner) drives.
package emu

import (
	"fmt"
	"io"
	"log"
	"os"

	"github.com/FabianRolfMatthiasNoll/GameBoyEmulator/internal/bus"
	"github.com/FabianRolfMatthiasNoll/GameBoyEmulator/internal/cart"
	"github.com/FabianRolfMatthiasNoll/GameBoyEmulator/internal/cpu"
	"github.com/FabianRolfMatthiasNoll/GameBoyEmulator/internal/joypad"
)

// frameCycles is the number of T-cycles in one 154-scanline DMG frame
// (456 dots/line * 154 lines).
const frameCycles = 70224

// Button identifies a physical input, aliasing internal/joypad's enum so
// callers never need to import that package directly.
type Button = joypad.Button

const (
	ButtonRight  = joypad.Right
	ButtonLeft   = joypad.Left
	ButtonUp     = joypad.Up
	ButtonDown   = joypad.Down
	ButtonA      = joypad.A
	ButtonB      = joypad.B
	ButtonSelect = joypad.Select
	ButtonStart  = joypad.Start
)

// Machine is the complete emulated DMG-01: cartridge through host-facing
// video/audio/input surface.
type Machine struct {
	cfg Config

	bus *bus.Bus
	cpu *cpu.CPU

	pendingBootROM []byte
	muted          bool
}

// New constructs a Machine with no cartridge loaded; call LoadROM before
// RunFrame.
func New(cfg Config) *Machine {
	if cfg.SampleRate <= 0 {
		cfg.SampleRate = 48000
	}
	return &Machine{cfg: cfg}
}

// LoadROM parses and wires a cartridge image, resetting the CPU to the
// standard DMG post-boot state (or to address 0 running a previously set
// boot ROM, if any).
func (m *Machine) LoadROM(rom []byte) error {
	if len(rom) < 0x150 {
		return fmt.Errorf("load ROM: image too small to contain a header (%d bytes)", len(rom))
	}
	c := cart.NewCartridge(rom)
	b := bus.NewWithCartridgeAndSampleRate(c, m.cfg.SampleRate)
	m.bus = b
	m.cpu = cpu.New(b)

	if len(m.pendingBootROM) >= 0x100 {
		b.SetBootROM(m.pendingBootROM)
		m.cpu.SetPC(0x0000)
	} else {
		m.cpu.ResetNoBoot()
		m.cpu.SetPC(0x0100)
		// Post-boot I/O state: LCD and BG on, DMG palettes.
		b.Write(0xFF40, 0x91)
		b.Write(0xFF47, 0xFC)
		b.Write(0xFF48, 0xFF)
		b.Write(0xFF49, 0xFF)
	}
	b.APU().SetMuted(m.muted)

	if m.cfg.Trace {
		h, err := cart.ParseHeader(rom)
		if err == nil {
			log.Printf("emu: loaded %q cart=%#02x rom=%dB ram=%dB", h.Title, h.CartType, h.ROMSizeBytes, h.RAMSizeBytes)
		}
	}
	return nil
}

// LoadROMFromFile is a convenience wrapper for CLI use.
func (m *Machine) LoadROMFromFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read ROM %s: %w", path, err)
	}
	return m.LoadROM(data)
}

// RunFrame executes exactly one 70224 T-cycle frame: fetch-decode-execute
// on the CPU, which ticks timer/PPU/APU/OAM-DMA and services interrupts as
// it goes, until the frame's full cycle budget has elapsed.
func (m *Machine) RunFrame() {
	if m.cpu == nil {
		return
	}
	total := 0
	for total < frameCycles {
		total += m.cpu.Step()
	}
}

// VideoBuffer returns the current 160x144 ARGB8888 framebuffer (R,G,B,A
// byte order in memory, matching typical little-endian ImageData consumers).
func (m *Machine) VideoBuffer() []byte {
	if m.bus == nil {
		return nil
	}
	return m.bus.PPU().Framebuffer()
}

// AudioFill copies up to len(buf) mono float32 samples in [-1,1] into buf,
// returning how many were written.
func (m *Machine) AudioFill(buf []float32) int {
	if m.bus == nil {
		return 0
	}
	return m.bus.APU().AudioFill(buf)
}

// SetButton sets a single button's pressed state.
func (m *Machine) SetButton(id Button, pressed bool) {
	if m.bus == nil {
		return
	}
	m.bus.SetButton(id, pressed)
}

// SetAudioMute silences AudioFill output without stopping sound generation.
func (m *Machine) SetAudioMute(muted bool) {
	m.muted = muted
	if m.bus != nil {
		m.bus.APU().SetMuted(muted)
	}
}

// SaveBattery returns the cartridge's battery-backed RAM, if any.
func (m *Machine) SaveBattery() ([]byte, bool) {
	if m.bus == nil {
		return nil, false
	}
	bb, ok := m.bus.Cart().(cart.BatteryBacked)
	if !ok {
		return nil, false
	}
	return bb.SaveRAM(), true
}

// LoadBattery restores previously saved battery RAM, if the cartridge
// supports it. Returns false if there is no cartridge loaded or it has no
// battery-backed RAM.
func (m *Machine) LoadBattery(data []byte) bool {
	if m.bus == nil {
		return false
	}
	bb, ok := m.bus.Cart().(cart.BatteryBacked)
	if !ok {
		return false
	}
	bb.LoadRAM(data)
	return true
}

// SetSerialWriter attaches a sink for bytes written to the serial port,
// used by test-ROM harnesses that report pass/fail over serial.
func (m *Machine) SetSerialWriter(w io.Writer) {
	if m.bus != nil {
		m.bus.SetSerialWriter(w)
	}
}

// SetBootROM stages a boot ROM image to run from address 0 on the next
// LoadROM call. Clearing is not supported; pass a valid 256-byte image.
func (m *Machine) SetBootROM(data []byte) {
	m.pendingBootROM = data
	if m.bus != nil && len(data) >= 0x100 {
		m.bus.SetBootROM(data)
		m.cpu.SetPC(0x0000)
	}
}
