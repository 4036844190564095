package ppu

// InterruptRequester is a callback signature to request IF bits (0:VBlank, 1:STAT, etc.).
type InterruptRequester func(bit int)

// LineRegs is a snapshot of the registers that affect rendering, captured at
// the moment a scanline enters mode 3 (OAM/VRAM locked, pixel transfer
// starts). Real hardware effectively latches these per line; capturing them
// here lets rendering at mode-0 entry stay faithful to whatever values were
// live when the line was actually fetched, even if the CPU changes SCX/SCY/
// palettes again before the next line.
type LineRegs struct {
	LCDC, SCX, SCY, BGP, OBP0, OBP1, WX, WY byte
	WinLine                                 byte // window-line counter value for this scanline, if the window was drawn on it
}

// PPU models VRAM/OAM, LCDC/STAT regs, LY/LYC, dot-based timing, and full
// BG/window/sprite scanline rendering into a 160x144 framebuffer.
type PPU struct {
	// memory
	vram [0x2000]byte // 0x8000–0x9FFF
	oam  [0xA0]byte   // 0xFE00–0xFE9F

	// regs
	lcdc byte // FF40
	stat byte // FF41 (mode bits 0-1, coincidence flag bit2, enables bits3-6)
	scy  byte // FF42
	scx  byte // FF43
	ly   byte // FF44
	lyc  byte // FF45
	bgp  byte // FF47
	obp0 byte // FF48
	obp1 byte // FF49
	wy   byte // FF4A
	wx   byte // FF4B

	dot int // dots within current line [0..455]

	req InterruptRequester

	lineRegs [144]LineRegs

	winLineActive bool
	winLine       int

	statLine bool // current level of the combined, edge-triggered STAT line

	framebuffer [160 * 144 * 4]byte // R,G,B,A per pixel

	frameReady bool
}

// dmgShade maps a 2-bit color index (0..3, already passed through a
// palette register) to an R,G,B,A shade. Index 0 is lightest, 3 is darkest.
var dmgShade = [4][4]byte{
	{0xE0, 0xF8, 0xD0, 0xFF},
	{0x88, 0xC0, 0x70, 0xFF},
	{0x34, 0x68, 0x56, 0xFF},
	{0x08, 0x18, 0x20, 0xFF},
}

func New(req InterruptRequester) *PPU { return &PPU{req: req} }

// Read implements VRAMReader against this PPU's own VRAM, for the
// fetcher/scanline helpers, bypassing the CPU-facing mode-3/OAM lockouts
// (the renderer itself runs "outside" CPU bus contention).
func (p *PPU) Read(addr uint16) byte {
	if addr >= 0x8000 && addr <= 0x9FFF {
		return p.vram[addr-0x8000]
	}
	return 0xFF
}

// CPURead returns bytes for VRAM, OAM, and PPU IO registers. Returns 0xFF for others.
func (p *PPU) CPURead(addr uint16) byte {
	switch {
	case addr >= 0x8000 && addr <= 0x9FFF:
		if (p.stat & 0x03) == 3 {
			return 0xFF
		}
		return p.vram[addr-0x8000]
	case addr >= 0xFE00 && addr <= 0xFE9F:
		m := p.stat & 0x03
		if m == 2 || m == 3 {
			return 0xFF
		}
		return p.oam[addr-0xFE00]
	case addr == 0xFF40:
		return p.lcdc
	case addr == 0xFF41:
		return 0x80 | (p.stat & 0x7F)
	case addr == 0xFF42:
		return p.scy
	case addr == 0xFF43:
		return p.scx
	case addr == 0xFF44:
		return p.ly
	case addr == 0xFF45:
		return p.lyc
	case addr == 0xFF47:
		return p.bgp
	case addr == 0xFF48:
		return p.obp0
	case addr == 0xFF49:
		return p.obp1
	case addr == 0xFF4A:
		return p.wy
	case addr == 0xFF4B:
		return p.wx
	default:
		return 0xFF
	}
}

// OAMWriteDirect bypasses mode-based lockout; used by OAM DMA.
func (p *PPU) OAMWriteDirect(offset byte, value byte) { p.oam[offset] = value }

// OAMReadDirect reads OAM bypassing mode-based lockout.
func (p *PPU) OAMReadDirect(offset byte) byte { return p.oam[offset] }

// CPUWrite handles writes to VRAM, OAM, and PPU IO regs. Others are ignored here.
func (p *PPU) CPUWrite(addr uint16, value byte) {
	switch {
	case addr >= 0x8000 && addr <= 0x9FFF:
		if (p.stat & 0x03) == 3 {
			return
		}
		p.vram[addr-0x8000] = value
	case addr >= 0xFE00 && addr <= 0xFE9F:
		m := p.stat & 0x03
		if m == 2 || m == 3 {
			return
		}
		p.oam[addr-0xFE00] = value
	case addr == 0xFF40:
		prev := p.lcdc
		p.lcdc = value
		if (p.lcdc&0x80) == 0 && (prev&0x80) != 0 {
			// Turning LCD off resets LY/mode/window-line and blanks the screen.
			p.ly = 0
			p.dot = 0
			p.winLineActive = false
			p.winLine = 0
			p.setMode(0)
			p.clearFramebuffer()
		} else if (p.lcdc&0x80) != 0 && (prev&0x80) == 0 {
			p.ly = 0
			p.dot = 0
			p.winLineActive = false
			p.winLine = 0
			p.setMode(2)
		}
		p.updateLYC()
	case addr == 0xFF41:
		p.stat = (p.stat & 0x07) | (value & 0x78)
		p.updateStatLine()
	case addr == 0xFF42:
		p.scy = value
	case addr == 0xFF43:
		p.scx = value
	case addr == 0xFF44:
		p.ly = 0
		p.dot = 0
		p.updateLYC()
		if (p.lcdc & 0x80) != 0 {
			p.setMode(2)
		}
	case addr == 0xFF45:
		p.lyc = value
		p.updateLYC()
	case addr == 0xFF47:
		p.bgp = value
	case addr == 0xFF48:
		p.obp0 = value
	case addr == 0xFF49:
		p.obp1 = value
	case addr == 0xFF4A:
		p.wy = value
	case addr == 0xFF4B:
		p.wx = value
	}
}

// Tick advances PPU state by the given number of dots (T-cycles).
func (p *PPU) Tick(cycles int) {
	for i := 0; i < cycles; i++ {
		p.tickOne()
	}
}

func (p *PPU) tickOne() {
	if (p.lcdc & 0x80) == 0 { // LCD off
		return
	}
	p.dot++

	var mode byte
	if p.ly >= 144 {
		mode = 1
	} else {
		switch {
		case p.dot < 80:
			mode = 2
		case p.dot < 80+172:
			mode = 3
			if p.dot == 80 {
				p.captureLineRegs()
			}
		default:
			mode = 0
			if p.dot == 80+172 {
				p.renderScanline(p.ly)
			}
		}
	}
	p.setMode(mode)

	if p.dot >= 456 {
		p.dot = 0
		p.ly++
		if p.ly == 144 {
			p.frameReady = true
			if p.req != nil {
				p.req(0) // VBlank IF, unconditional
			}
		} else if p.ly > 153 {
			p.ly = 0
			p.winLineActive = false
			p.winLine = 0
		}
		p.updateLYC()
		if p.ly >= 144 {
			p.setMode(1)
		} else {
			p.setMode(2)
		}
	}
}

func (p *PPU) setMode(mode byte) {
	p.stat = (p.stat &^ 0x03) | (mode & 0x03)
	p.updateStatLine()
}

func (p *PPU) updateLYC() {
	if p.ly == p.lyc {
		p.stat |= 1 << 2
	} else {
		p.stat &^= 1 << 2
	}
	p.updateStatLine()
}

// updateStatLine recomputes the unified, OR'd STAT interrupt condition and
// requests the STAT interrupt only on a false->true (rising) transition,
// matching real hardware's single-line "STAT IRQ glitch" behavior instead of
// firing once per contributing condition.
func (p *PPU) updateStatLine() {
	mode := p.stat & 0x03
	lyc := p.stat&(1<<2) != 0
	level := (mode == 0 && p.stat&(1<<3) != 0) ||
		(mode == 2 && p.stat&(1<<5) != 0) ||
		(mode == 1 && p.stat&(1<<4) != 0) ||
		(lyc && p.stat&(1<<6) != 0)
	if level && !p.statLine {
		if p.req != nil {
			p.req(1)
		}
	}
	p.statLine = level
}

func (p *PPU) captureLineRegs() {
	ly := p.ly
	windowVisible := p.lcdc&0x20 != 0 && ly >= p.wy && p.wx <= 166
	if windowVisible {
		if !p.winLineActive {
			p.winLineActive = true
			p.winLine = 0
		} else {
			p.winLine++
		}
	}
	lr := LineRegs{
		LCDC: p.lcdc, SCX: p.scx, SCY: p.scy,
		BGP: p.bgp, OBP0: p.obp0, OBP1: p.obp1,
		WX: p.wx, WY: p.wy,
	}
	if windowVisible {
		lr.WinLine = byte(p.winLine)
	}
	p.lineRegs[ly] = lr
}

// LineRegs returns the captured register snapshot for scanline y.
func (p *PPU) LineRegs(y int) LineRegs {
	if y < 0 || y >= 144 {
		return LineRegs{}
	}
	return p.lineRegs[y]
}

func (p *PPU) clearFramebuffer() {
	shade := dmgShade[0]
	for i := 0; i < 160*144; i++ {
		copy(p.framebuffer[i*4:i*4+4], shade[:])
	}
}

// renderScanline composites BG, window, and sprites for line ly into the
// framebuffer, using the registers captured at this line's mode-3 entry.
func (p *PPU) renderScanline(ly byte) {
	lr := p.lineRegs[ly]

	var bgci [160]byte
	if lr.LCDC&0x01 != 0 {
		mapBase := uint16(0x9800)
		if lr.LCDC&0x08 != 0 {
			mapBase = 0x9C00
		}
		tileData8000 := lr.LCDC&0x10 != 0
		bgci = RenderBGScanlineUsingFetcher(p, mapBase, tileData8000, lr.SCX, lr.SCY, ly)
	}

	windowDrawn := lr.LCDC&0x20 != 0 && ly >= lr.WY && lr.WX <= 166
	if windowDrawn && lr.LCDC&0x01 != 0 {
		mapBase := uint16(0x9800)
		if lr.LCDC&0x40 != 0 {
			mapBase = 0x9C00
		}
		tileData8000 := lr.LCDC&0x10 != 0
		wxStart := int(lr.WX) - 7
		winOut := RenderWindowScanlineUsingFetcher(p, mapBase, tileData8000, wxStart, lr.WinLine)
		start := wxStart
		if start < 0 {
			start = 0
		}
		for x := start; x < 160; x++ {
			bgci[x] = winOut[x]
		}
	}

	var palette [160]byte
	for x := 0; x < 160; x++ {
		palette[x] = applyPalette(lr.BGP, bgci[x])
	}

	if lr.LCDC&0x02 != 0 {
		tall := lr.LCDC&0x04 != 0
		sprites := ScanOAMLine(p.oam[:], ly, tall)
		spriteCI, spritePal := ComposeSpriteLineIndexed(p, sprites, ly, bgci, tall)
		for x := 0; x < 160; x++ {
			if spriteCI[x] != 0 {
				obp := lr.OBP0
				if spritePal[x] == 1 {
					obp = lr.OBP1
				}
				palette[x] = applyPalette(obp, spriteCI[x])
			}
		}
	}

	base := int(ly) * 160 * 4
	for x := 0; x < 160; x++ {
		shade := dmgShade[palette[x]&0x03]
		copy(p.framebuffer[base+x*4:base+x*4+4], shade[:])
	}
}

func applyPalette(pal byte, ci byte) byte {
	return (pal >> (ci * 2)) & 0x03
}

// Framebuffer returns the 160x144 R,G,B,A pixel buffer, updated a scanline
// at a time as each line reaches HBlank.
func (p *PPU) Framebuffer() []byte { return p.framebuffer[:] }

// FrameReady reports and clears the one-shot "a VBlank just started" latch,
// which marks that the frame's framebuffer is complete.
func (p *PPU) FrameReady() bool {
	r := p.frameReady
	p.frameReady = false
	return r
}

// Expose palettes and scroll for renderer convenience (optional helpers)
func (p *PPU) BGP() byte  { return p.bgp }
func (p *PPU) OBP0() byte { return p.obp0 }
func (p *PPU) OBP1() byte { return p.obp1 }
func (p *PPU) LCDC() byte { return p.lcdc }
func (p *PPU) SCY() byte  { return p.scy }
func (p *PPU) SCX() byte  { return p.scx }
func (p *PPU) WY() byte   { return p.wy }
func (p *PPU) WX() byte   { return p.wx }
