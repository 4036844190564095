package ppu

// Sprite is a decoded OAM entry, already adjusted to screen-space
// coordinates (X/Y are the sprite's top-left screen pixel, not the raw
// OAM-encoded +8/+16 offsets) so composition logic doesn't need to know
// about the OAM encoding quirk.
type Sprite struct {
	X, Y     int
	Tile     byte
	Attr     byte
	OAMIndex int
}

const (
	attrPriority = 0x80 // 1 = behind BG colors 1-3
	attrYFlip    = 0x40
	attrXFlip    = 0x20
	attrPalette  = 0x10 // 0 = OBP0, 1 = OBP1
)

// ScanOAMLine finds up to 10 sprites (in OAM order, the real hardware limit)
// that intersect scanline ly, with Y already converted to screen-space.
func ScanOAMLine(oam []byte, ly byte, tall bool) []Sprite {
	height := 8
	if tall {
		height = 16
	}
	var out []Sprite
	for i := 0; i < 40 && len(out) < 10; i++ {
		base := i * 4
		oamY := int(oam[base+0]) - 16
		oamX := int(oam[base+1]) - 8
		tile := oam[base+2]
		attr := oam[base+3]
		if int(ly) < oamY || int(ly) >= oamY+height {
			continue
		}
		out = append(out, Sprite{X: oamX, Y: oamY, Tile: tile, Attr: attr, OAMIndex: i})
	}
	return out
}

// ComposeSpriteLine renders sprite pixels for scanline `line` into a 160-wide
// color-index row, honoring X-priority (lowest X wins, ties broken by OAM
// index), X/Y flips, and OBJ-to-BG priority (transparent over BG colors 1-3
// when Attr bit 7 is set and the BG pixel is non-zero).
func ComposeSpriteLine(mem VRAMReader, sprites []Sprite, line byte, bgci [160]byte, tall bool) [160]byte {
	out, _ := ComposeSpriteLineIndexed(mem, sprites, line, bgci, tall)
	return out
}

// ComposeSpriteLineIndexed is like ComposeSpriteLine but also returns, per
// pixel, which OBJ palette (0=OBP0, 1=OBP1) the winning sprite selected.
func ComposeSpriteLineIndexed(mem VRAMReader, sprites []Sprite, line byte, bgci [160]byte, tall bool) (ci [160]byte, pal [160]byte) {
	height := 8
	if tall {
		height = 16
	}
	winnerX := [160]int{}
	for i := range winnerX {
		winnerX[i] = 1 << 30
	}
	winnerOAM := [160]int{}
	for i := range winnerOAM {
		winnerOAM[i] = 1 << 30
	}

	for _, s := range sprites {
		row := int(line) - s.Y
		if row < 0 || row >= height {
			continue
		}
		if s.Attr&attrYFlip != 0 {
			row = height - 1 - row
		}
		tile := s.Tile
		if tall {
			tile &^= 0x01
			if row >= 8 {
				tile |= 0x01
				row -= 8
			}
		}
		base := uint16(0x8000) + uint16(tile)*16 + uint16(row)*2
		lo := mem.Read(base)
		hi := mem.Read(base + 1)
		for px := 0; px < 8; px++ {
			x := s.X + px
			if x < 0 || x >= 160 {
				continue
			}
			bit := px
			if s.Attr&attrXFlip == 0 {
				bit = 7 - px
			}
			color := ((hi>>uint(bit))&1)<<1 | ((lo >> uint(bit)) & 1)
			if color == 0 {
				continue
			}
			if s.Attr&attrPriority != 0 && bgci[x] != 0 {
				continue
			}
			if s.X > winnerX[x] || (s.X == winnerX[x] && s.OAMIndex >= winnerOAM[x]) {
				continue
			}
			winnerX[x] = s.X
			winnerOAM[x] = s.OAMIndex
			ci[x] = color
			if s.Attr&attrPalette != 0 {
				pal[x] = 1
			} else {
				pal[x] = 0
			}
		}
	}
	return ci, pal
}
