package apu

import "testing"

func TestCh1DACOffDisablesChannelImmediately(t *testing.T) {
	a := New(48000)
	a.CPUWrite(0xFF12, 0xF0) // vol=15, dir down, but upper 5 bits non-zero -> DAC on
	a.CPUWrite(0xFF14, 0x80) // trigger
	if !a.ch1.enabled {
		t.Fatalf("CH1 not enabled after trigger with DAC on")
	}
	a.CPUWrite(0xFF12, 0x00) // upper 5 bits zero -> DAC off
	if a.ch1.enabled {
		t.Fatalf("CH1 still enabled after NR12 DAC-off write")
	}
	if a.ch1.dacOn {
		t.Fatalf("dacOn still true after NR12 DAC-off write")
	}
}

func TestCh1TriggerWithDACOffStaysDisabled(t *testing.T) {
	a := New(48000)
	a.CPUWrite(0xFF12, 0x07) // vol=0, dir down, period 7 -> upper 5 bits zero -> DAC off
	a.CPUWrite(0xFF14, 0x80) // trigger
	if a.ch1.enabled {
		t.Fatalf("CH1 enabled on trigger despite DAC off")
	}
}

func TestCh2EnvelopeDirectionFromNR22(t *testing.T) {
	a := New(48000)
	a.CPUWrite(0xFF17, 0xF8) // vol=15, dir up, period 0 -> DAC on
	if !a.ch2.dacOn {
		t.Fatalf("expected dacOn after NR22 with non-zero upper 5 bits")
	}
	if a.ch2.envDir != 1 {
		t.Fatalf("expected envDir +1, got %d", a.ch2.envDir)
	}
}

func TestCh4DACRuleMatchesNR42(t *testing.T) {
	a := New(48000)
	a.CPUWrite(0xFF21, 0x00) // vol=0, dir down, period 0 -> all bits zero -> DAC off
	a.CPUWrite(0xFF23, 0x80) // trigger
	if a.ch4.enabled {
		t.Fatalf("CH4 enabled on trigger despite DAC off")
	}
	a.CPUWrite(0xFF21, 0x08) // vol=0, dir up -> upper 5 bits non-zero -> DAC on
	a.CPUWrite(0xFF23, 0x80)
	if !a.ch4.enabled {
		t.Fatalf("CH4 not enabled on trigger with DAC on")
	}
}

func TestLengthCounterDisablesChannel(t *testing.T) {
	a := New(48000)
	a.CPUWrite(0xFF12, 0xF0) // DAC on
	a.CPUWrite(0xFF11, 0x3F) // length = 64 - 63 = 1
	a.CPUWrite(0xFF14, 0xC0) // trigger + length enable
	if !a.ch1.enabled {
		t.Fatalf("CH1 not enabled after trigger")
	}
	// The first frame-sequencer step (odd) does not clock length; only even
	// steps do, so one full step period isn't enough to trigger it yet.
	a.Tick(cpuHz / 512)
	if !a.ch1.enabled {
		t.Fatalf("CH1 should still be enabled before the first length clock")
	}
	a.Tick(cpuHz / 256)
	if a.ch1.enabled {
		t.Fatalf("CH1 did not disable after length counter expired")
	}
}

func TestSweepOverflowDisablesCh1(t *testing.T) {
	a := New(48000)
	a.CPUWrite(0xFF10, 0x71) // period=7, negate=0, shift=1 (increasing sweep)
	a.CPUWrite(0xFF12, 0xF0) // DAC on
	a.CPUWrite(0xFF13, 0x00)
	a.CPUWrite(0xFF14, 0x82) // freq=0x200, well below overflow + trigger
	if !a.ch1.enabled {
		t.Fatalf("CH1 not enabled on trigger")
	}
	// Each sweep step multiplies the frequency by 1.5; starting at 0x200 this
	// overflows the 11-bit frequency within a handful of 7/128s periods.
	a.Tick(cpuHz) // 1 second, comfortably more than enough sweep periods
	if a.ch1.enabled {
		t.Fatalf("expected CH1 disabled after sweep overflow")
	}
}

func TestAudioFillReturnsMonoSamplesInRange(t *testing.T) {
	a := New(48000)
	a.CPUWrite(0xFF12, 0xF0) // DAC on
	a.CPUWrite(0xFF11, 0x80) // duty 50%
	a.CPUWrite(0xFF13, 0x00)
	a.CPUWrite(0xFF14, 0x87) // near-max frequency + trigger
	a.CPUWrite(0xFF25, 0xFF) // route all channels to both sides
	a.CPUWrite(0xFF24, 0x77) // full master volume

	a.Tick(cpuHz / 10) // generate a chunk of samples

	buf := make([]float32, 256)
	n := a.AudioFill(buf)
	if n == 0 {
		t.Fatalf("expected AudioFill to return samples, got 0")
	}
	for i := 0; i < n; i++ {
		if buf[i] > 1 || buf[i] < -1 {
			t.Fatalf("sample %d out of range: %v", i, buf[i])
		}
	}
}

func TestAudioFillMutedProducesSilence(t *testing.T) {
	a := New(48000)
	a.SetMuted(true)
	a.CPUWrite(0xFF12, 0xF0)
	a.CPUWrite(0xFF11, 0x80)
	a.CPUWrite(0xFF14, 0x87)

	a.Tick(cpuHz / 10)

	buf := make([]float32, 256)
	n := a.AudioFill(buf)
	if n == 0 {
		t.Fatalf("expected samples even while muted")
	}
	for i := 0; i < n; i++ {
		if buf[i] != 0 {
			t.Fatalf("expected silence while muted, got %v at %d", buf[i], i)
		}
	}
}

func TestNR52PowerOffResetsRegisters(t *testing.T) {
	a := New(48000)
	a.CPUWrite(0xFF12, 0xF0)
	a.CPUWrite(0xFF14, 0x87)
	a.CPUWrite(0xFF26, 0x00) // power off
	if a.enabled {
		t.Fatalf("expected APU disabled after NR52 power-off write")
	}
	if a.ch1.enabled {
		t.Fatalf("expected CH1 reset to disabled on power-off")
	}
	a.CPUWrite(0xFF26, 0x80) // power back on
	if !a.enabled {
		t.Fatalf("expected APU enabled after NR52 power-on write")
	}
}

func TestWaveChannelVolumeShift(t *testing.T) {
	a := New(48000)
	a.CPUWrite(0xFF1A, 0x80) // DAC on
	for i := uint16(0); i < 16; i++ {
		a.CPUWrite(0xFF30+i, 0xFF)
	}
	a.CPUWrite(0xFF1C, 0x20) // volCode=1 (100%)
	a.CPUWrite(0xFF1D, 0x00)
	a.CPUWrite(0xFF1E, 0x87) // trigger
	if !a.ch3.enabled {
		t.Fatalf("CH3 not enabled after trigger with DAC on")
	}
	if a.ch3.volCode != 1 {
		t.Fatalf("NR32=0x20 should select volCode 1 (no shift), got %d", a.ch3.volCode)
	}
}
