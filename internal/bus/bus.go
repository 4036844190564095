package bus

import (
	"io"

	"github.com/FabianRolfMatthiasNoll/GameBoyEmulator/internal/apu"
	"github.com/FabianRolfMatthiasNoll/GameBoyEmulator/internal/cart"
	"github.com/FabianRolfMatthiasNoll/GameBoyEmulator/internal/irq"
	"github.com/FabianRolfMatthiasNoll/GameBoyEmulator/internal/joypad"
	"github.com/FabianRolfMatthiasNoll/GameBoyEmulator/internal/ppu"
	"github.com/FabianRolfMatthiasNoll/GameBoyEmulator/internal/timer"
)

// Bus wires CPU-visible address space to cartridge, WRAM, HRAM, and IO.
type Bus struct {
	cart cart.Cartridge

	// Work RAM (WRAM) 8 KiB at 0xC000-0xDFFF; Echo 0xE000-0xFDFF mirrors C000-DDFF.
	wram [0x2000]byte

	// High RAM (HRAM) 0xFF80-0xFFFE (127 bytes)
	hram [0x7F]byte

	ppu  *ppu.PPU
	irq  *irq.Controller
	tmr  *timer.Timer
	joyp *joypad.Joypad
	apu  *apu.APU

	// Serial
	sb byte      // FF01 data
	sc byte      // FF02 control (bit7 start, bit0 clock source; immediate external)
	sw io.Writer // sink for serial output (optional)

	// OAM DMA state
	dma       byte // FF46
	dmaActive bool
	dmaSrc    uint16
	dmaIndex  int

	// Boot ROM support
	bootROM     []byte
	bootEnabled bool
}

// New constructs a Bus with the cartridge type selected from the ROM header
// (see cart.NewCartridge), at the default 48kHz audio sample rate.
func New(rom []byte) *Bus {
	return NewWithCartridgeAndSampleRate(cart.NewCartridge(rom), 48000)
}

// NewWithCartridge wires a provided cartridge implementation.
func NewWithCartridge(c cart.Cartridge) *Bus {
	return NewWithCartridgeAndSampleRate(c, 48000)
}

// NewWithCartridgeAndSampleRate wires a provided cartridge implementation
// and sizes the APU's output ring buffer for the given host sample rate.
func NewWithCartridgeAndSampleRate(c cart.Cartridge, sampleRate int) *Bus {
	b := &Bus{cart: c}
	b.irq = irq.New()
	b.tmr = timer.New(b.irq)
	b.joyp = joypad.New(b.irq)
	// PPU requests IF bits by index (0:VBlank, 1:STAT), matching irq.Bit order.
	b.ppu = ppu.New(func(bit int) { b.irq.Request(irq.Bit(bit)) })
	b.apu = apu.New(sampleRate)
	return b
}

// PPU returns the internal PPU for rendering/audio-sync helpers.
func (b *Bus) PPU() *ppu.PPU { return b.ppu }

// APU returns the internal APU for audio pull/mute helpers.
func (b *Bus) APU() *apu.APU { return b.apu }

// Cart returns the underlying cartridge for optional battery operations.
func (b *Bus) Cart() cart.Cartridge { return b.cart }

// IRQ returns the interrupt controller, for the CPU to poll/service.
func (b *Bus) IRQ() *irq.Controller { return b.irq }

func (b *Bus) Read(addr uint16) byte {
	switch {
	case addr < 0x8000:
		if b.bootEnabled && addr < 0x0100 && len(b.bootROM) >= 0x100 {
			return b.bootROM[addr]
		}
		return b.cart.Read(addr)
	case addr >= 0x8000 && addr <= 0x9FFF:
		return b.ppu.CPURead(addr)
	case addr >= 0xA000 && addr <= 0xBFFF:
		return b.cart.Read(addr)

	case addr >= 0xC000 && addr <= 0xDFFF:
		return b.wram[addr-0xC000]

	case addr >= 0xE000 && addr <= 0xFDFF:
		mirror := addr - 0x2000
		return b.wram[mirror-0xC000]

	case addr >= 0xFE00 && addr <= 0xFE9F:
		if b.dmaActive {
			return 0xFF
		}
		return b.ppu.CPURead(addr)

	case addr >= 0xFF80 && addr <= 0xFFFE:
		return b.hram[addr-0xFF80]

	case addr == 0xFF00:
		return b.joyp.Read()

	case addr == 0xFF04:
		return b.tmr.ReadDIV()
	case addr == 0xFF05:
		return b.tmr.ReadTIMA()
	case addr == 0xFF06:
		return b.tmr.ReadTMA()
	case addr == 0xFF07:
		return b.tmr.ReadTAC()

	case addr == 0xFF01:
		return b.sb
	case addr == 0xFF02:
		return 0x7E | (b.sc & 0x81)

	case addr >= 0xFF10 && addr <= 0xFF26:
		return b.apu.CPURead(addr)
	case addr >= 0xFF30 && addr <= 0xFF3F:
		return b.apu.CPURead(addr)

	case addr == 0xFF40, addr == 0xFF41, addr == 0xFF42, addr == 0xFF43,
		addr == 0xFF44, addr == 0xFF45,
		addr == 0xFF47, addr == 0xFF48, addr == 0xFF49,
		addr == 0xFF4A, addr == 0xFF4B:
		return b.ppu.CPURead(addr)
	case addr == 0xFF46:
		return b.dma

	case addr == 0xFF50:
		return 0xFF

	case addr == 0xFF0F:
		return b.irq.ReadIF()
	case addr == 0xFFFF:
		return b.irq.ReadIE()
	}
	return 0xFF
}

func (b *Bus) Write(addr uint16, value byte) {
	switch {
	case addr < 0x8000:
		b.cart.Write(addr, value)
		return
	case addr >= 0x8000 && addr <= 0x9FFF:
		b.ppu.CPUWrite(addr, value)
		return
	case addr >= 0xA000 && addr <= 0xBFFF:
		b.cart.Write(addr, value)
		return

	case addr >= 0xC000 && addr <= 0xDFFF:
		b.wram[addr-0xC000] = value
		return

	case addr >= 0xE000 && addr <= 0xFDFF:
		mirror := addr - 0x2000
		if mirror >= 0xC000 && mirror <= 0xDDFF {
			b.wram[mirror-0xC000] = value
		}
		return

	case addr >= 0xFE00 && addr <= 0xFE9F:
		if b.dmaActive {
			return
		}
		b.ppu.CPUWrite(addr, value)
		return

	case addr >= 0xFF80 && addr <= 0xFFFE:
		b.hram[addr-0xFF80] = value
		return

	case addr == 0xFF00:
		b.joyp.Write(value)
		return

	case addr == 0xFF04:
		b.tmr.WriteDIV(value)
		return
	case addr == 0xFF05:
		b.tmr.WriteTIMA(value)
		return
	case addr == 0xFF06:
		b.tmr.WriteTMA(value)
		return
	case addr == 0xFF07:
		b.tmr.WriteTAC(value)
		return

	case addr == 0xFF01:
		b.sb = value
		return
	case addr == 0xFF02:
		b.sc = value & 0x81
		if b.sc&0x80 != 0 {
			if b.sw != nil {
				_, _ = b.sw.Write([]byte{b.sb})
			}
			b.irq.Request(irq.Serial)
			b.sc &^= 0x80
		}
		return

	case addr >= 0xFF10 && addr <= 0xFF26:
		b.apu.CPUWrite(addr, value)
		return
	case addr >= 0xFF30 && addr <= 0xFF3F:
		b.apu.CPUWrite(addr, value)
		return

	case addr == 0xFF40, addr == 0xFF41, addr == 0xFF42, addr == 0xFF43,
		addr == 0xFF44, addr == 0xFF45,
		addr == 0xFF47, addr == 0xFF48, addr == 0xFF49,
		addr == 0xFF4A, addr == 0xFF4B:
		b.ppu.CPUWrite(addr, value)
		return
	case addr == 0xFF46:
		// OAM DMA: 160-byte transfer from value*0x100 to FE00, 1 byte per cycle.
		b.dma = value
		b.dmaActive = true
		b.dmaSrc = uint16(value) << 8
		b.dmaIndex = 0
		return

	case addr == 0xFF50:
		if value != 0x00 {
			b.bootEnabled = false
		}
		return

	case addr == 0xFF0F:
		b.irq.WriteIF(value)
		return
	case addr == 0xFFFF:
		b.irq.WriteIE(value)
		return
	}
}

// Joypad button bitmasks for SetJoypadState. Bits set mean "pressed".
const (
	JoypRight     = 1 << 0
	JoypLeft      = 1 << 1
	JoypUp        = 1 << 2
	JoypDown      = 1 << 3
	JoypA         = 1 << 4
	JoypB         = 1 << 5
	JoypSelectBtn = 1 << 6
	JoypStart     = 1 << 7
)

var joypMaskToButton = [8]joypad.Button{
	joypad.Right, joypad.Left, joypad.Up, joypad.Down,
	joypad.A, joypad.B, joypad.Select, joypad.Start,
}

// SetJoypadState sets which buttons are currently pressed, using a mask of
// the Joyp* constants above (set bits mean pressed).
func (b *Bus) SetJoypadState(mask byte) {
	for i, btn := range joypMaskToButton {
		b.joyp.SetButton(btn, mask&(1<<uint(i)) != 0)
	}
}

// SetButton sets a single button's pressed state directly.
func (b *Bus) SetButton(btn joypad.Button, pressed bool) {
	b.joyp.SetButton(btn, pressed)
}

// SetSerialWriter sets a sink that receives bytes written via the serial port.
func (b *Bus) SetSerialWriter(w io.Writer) { b.sw = w }

// SetBootROM loads a DMG boot ROM to be mapped at 0x0000-0x00FF until disabled via 0xFF50 write.
func (b *Bus) SetBootROM(data []byte) {
	b.bootROM = nil
	b.bootEnabled = false
	if len(data) >= 0x100 {
		b.bootROM = make([]byte, 0x100)
		copy(b.bootROM, data[:0x100])
		b.bootEnabled = true
	}
}

// Tick advances the timer, PPU, and OAM DMA by the given number of T-cycles.
func (b *Bus) Tick(cycles int) {
	if cycles <= 0 {
		return
	}
	b.tmr.Tick(cycles)
	b.apu.Tick(cycles)
	for i := 0; i < cycles; i++ {
		b.ppu.Tick(1)
		if b.dmaActive {
			if b.dmaIndex < 0xA0 {
				v := b.Read(b.dmaSrc + uint16(b.dmaIndex))
				b.ppu.OAMWriteDirect(byte(b.dmaIndex), v)
				b.dmaIndex++
			}
			if b.dmaIndex >= 0xA0 {
				b.dmaActive = false
			}
		}
	}
}
