package cart

import "testing"

func TestNewCartridge_DispatchesMBC5(t *testing.T) {
	rom := buildROM("MBC5GAME", 0x19, 0x01, 0x00, 64*1024) // 0x19 = MBC5
	c := NewCartridge(rom)
	if _, ok := c.(*MBC5); !ok {
		t.Fatalf("NewCartridge for cart type 0x19 got %T, want *MBC5", c)
	}
}

func TestMBC5_ROMBanking(t *testing.T) {
	// Build an 8MB ROM (512 banks) tagging each bank with its number (low
	// byte first, then the high byte), so banks past the 8-bit boundary
	// exercise the 9th bit.
	rom := make([]byte, 8*1024*1024)
	for bank := 0; bank < 512; bank++ {
		rom[bank*0x4000] = byte(bank)
		rom[bank*0x4000+1] = byte(bank >> 8)
	}
	m := NewMBC5(rom, 0)

	// Switchable bank defaults to 1.
	if got := m.Read(0x4000); got != 0x01 {
		t.Fatalf("default bank read got %02X want 01", got)
	}

	// Select bank 0x42 via the low-8-bits register.
	m.Write(0x2000, 0x42)
	if got := m.Read(0x4000); got != 0x42 {
		t.Fatalf("bank 0x42 read got %02X want 42", got)
	}

	// Unlike MBC1, bank 0 is directly selectable in the switchable window.
	m.Write(0x2000, 0x00)
	if got := m.Read(0x4000); got != 0x00 {
		t.Fatalf("bank 0 read got %02X want 00", got)
	}

	// Set the 9th bank bit and a low byte to reach bank 0x142.
	m.Write(0x2000, 0x42)
	m.Write(0x3000, 0x01)
	if got := m.Read(0x4000); got != 0x42 {
		t.Fatalf("bank 0x142 low tag got %02X want 42", got)
	}
	if got := m.Read(0x4001); got != 0x01 {
		t.Fatalf("bank 0x142 high tag got %02X want 01", got)
	}
}

func TestMBC5_RAMBanking(t *testing.T) {
	rom := make([]byte, 4*1024*1024)
	m := NewMBC5(rom, 4*8*1024) // 4 RAM banks

	// RAM reads as 0xFF while disabled.
	if got := m.Read(0xA000); got != 0xFF {
		t.Fatalf("disabled RAM read got %02X want FF", got)
	}

	m.Write(0x0000, 0x0A) // enable RAM
	m.Write(0x4000, 0x03) // select RAM bank 3
	m.Write(0xA000, 0x55)
	if got := m.Read(0xA000); got != 0x55 {
		t.Fatalf("RAM bank 3 RW failed: got %02X", got)
	}

	// A different bank doesn't see the same byte.
	m.Write(0x4000, 0x00)
	if got := m.Read(0xA000); got == 0x55 {
		t.Fatalf("RAM bank 0 unexpectedly aliases bank 3's data")
	}
}

func TestMBC5_SaveLoadRAM(t *testing.T) {
	rom := make([]byte, 4*1024*1024)
	m := NewMBC5(rom, 8*1024)
	m.Write(0x0000, 0x0A)
	m.Write(0xA000, 0xAB)

	saved := m.SaveRAM()
	if len(saved) != 8*1024 || saved[0] != 0xAB {
		t.Fatalf("SaveRAM got len=%d first=%02X", len(saved), saved[0])
	}

	m2 := NewMBC5(rom, 8*1024)
	m2.Write(0x0000, 0x0A)
	m2.LoadRAM(saved)
	if got := m2.Read(0xA000); got != 0xAB {
		t.Fatalf("LoadRAM did not restore byte: got %02X want AB", got)
	}
}
