package ppu

import (
	"testing"

	"nescore/internal/cartridge"
	"nescore/internal/memory"
)

type fakeCart struct {
	chr [0x2000]uint8
}

func (f *fakeCart) CPURead(address uint16) uint8          { return 0 }
func (f *fakeCart) CPUWrite(address uint16, value uint8)  {}
func (f *fakeCart) PPURead(address uint16) uint8          { return f.chr[address] }
func (f *fakeCart) PPUWrite(address uint16, value uint8)  { f.chr[address] = value }

func newTestPPU() *PPU {
	p := New()
	p.Reset()
	p.SetMemory(memory.NewPPUMemory(&fakeCart{}, cartridge.MirrorHorizontal))
	return p
}

// Reading PPUSTATUS clears the vblank flag and resets the shared write
// toggle used by PPUSCROLL/PPUADDR.
func TestPPUStatusReadClearsVBlankAndToggle(t *testing.T) {
	p := newTestPPU()

	p.WriteRegister(0x2006, 0x21) // first write sets the toggle
	p.ppuStatus |= 0x80           // simulate vblank having started

	status := p.ReadRegister(0x2002)
	if status&0x80 == 0 {
		t.Error("status read should report vblank set before clearing it")
	}
	if p.ppuStatus&0x80 != 0 {
		t.Error("vblank flag should be cleared after reading $2002")
	}
	if p.w {
		t.Error("write toggle should be reset after reading $2002")
	}
}

// PPUADDR's two-write protocol sets the VRAM address high byte first, low
// byte second.
func TestPPUAddrTwoWriteProtocol(t *testing.T) {
	p := newTestPPU()

	p.WriteRegister(0x2006, 0x20) // high byte
	p.WriteRegister(0x2006, 0x05) // low byte

	if p.v != 0x2005 {
		t.Errorf("v = %#04x, want 0x2005", p.v)
	}
}

// PPUDATA reads below the palette range are buffered one access behind;
// palette reads are unbuffered (return the palette byte immediately).
func TestPPUDataBufferedRead(t *testing.T) {
	p := newTestPPU()

	p.WriteRegister(0x2006, 0x20)
	p.WriteRegister(0x2006, 0x00)
	p.WriteRegister(0x2007, 0xAB) // nametable[0] = 0xAB, v -> 0x2001

	p.WriteRegister(0x2006, 0x20)
	p.WriteRegister(0x2006, 0x00)
	first := p.ReadRegister(0x2007) // returns stale buffer, not 0xAB yet
	second := p.ReadRegister(0x2007)
	if second == first && first == 0xAB {
		t.Error("PPUDATA read below $3F00 should be buffered one access behind")
	}
}

func TestPPUDataPaletteReadIsUnbuffered(t *testing.T) {
	p := newTestPPU()

	p.WriteRegister(0x2006, 0x3F)
	p.WriteRegister(0x2006, 0x05)
	p.WriteRegister(0x2007, 0x15) // palette[5] = 0x15

	p.WriteRegister(0x2006, 0x3F)
	p.WriteRegister(0x2006, 0x05)
	if got := p.ReadRegister(0x2007); got != 0x15 {
		t.Errorf("palette read = %#02x, want 0x15 (unbuffered)", got)
	}
}

// PPUCTRL bit 2 selects a +32 VRAM address increment instead of +1.
func TestPPUDataIncrementSelectedByPPUCTRL(t *testing.T) {
	p := newTestPPU()
	p.WriteRegister(0x2000, 0x04) // increment by 32

	p.WriteRegister(0x2006, 0x20)
	p.WriteRegister(0x2006, 0x00)
	p.WriteRegister(0x2007, 0x01)

	if p.v != 0x2000+32 {
		t.Errorf("v after write = %#04x, want %#04x", p.v, 0x2000+32)
	}
}

// OAMADDR/OAMDATA: writes go to the current OAM slot and auto-increment;
// reads do not.
func TestOAMAddrDataReadWrite(t *testing.T) {
	p := newTestPPU()

	p.WriteRegister(0x2003, 0x05) // OAMADDR = 5
	p.WriteRegister(0x2004, 0x77) // OAM[5] = 0x77, OAMADDR -> 6
	p.WriteRegister(0x2003, 0x05)
	if got := p.ReadRegister(0x2004); got != 0x77 {
		t.Errorf("OAM[5] = %#02x, want 0x77", got)
	}
	if got := p.ReadRegister(0x2004); got != 0x77 {
		t.Error("OAMDATA reads should not advance OAMADDR")
	}
}

// Entering vblank (scanline 241, cycle 1) sets the status flag and, if
// PPUCTRL's NMI-enable bit is set, fires the NMI callback exactly once.
func TestVBlankFiresNMIWhenEnabled(t *testing.T) {
	p := newTestPPU()
	nmiCount := 0
	p.SetNMICallback(func() { nmiCount++ })
	p.ReadRegister(0x2002)        // clear the power-up vblank flag so enabling NMI does not fire at once
	p.WriteRegister(0x2000, 0x80) // enable NMI on vblank

	p.scanline, p.cycle = 240, 340
	p.Step() // rolls over to scanline 241, cycle 0
	p.Step() // scanline 241, cycle 1: vblank starts here

	if !p.IsVBlank() {
		t.Error("vblank flag should be set after reaching scanline 241")
	}
	if nmiCount != 1 {
		t.Errorf("NMI fired %d times, want 1", nmiCount)
	}
}

func TestVBlankDoesNotFireNMIWhenDisabled(t *testing.T) {
	p := newTestPPU()
	nmiCount := 0
	p.SetNMICallback(func() { nmiCount++ })

	p.scanline, p.cycle = 240, 340
	p.Step()
	p.Step()

	if nmiCount != 0 {
		t.Errorf("NMI fired %d times with NMI-enable clear, want 0", nmiCount)
	}
}

func TestNESColorToRGBOutOfRangeIsZero(t *testing.T) {
	if got := NESColorToRGB(200); got != 0 {
		t.Errorf("NESColorToRGB(200) = %#06x, want 0 (out of range)", got)
	}
}

// DecodePatternTable produces a 128x128 debug texture regardless of CHR
// content, the minimal framebuffer-adjacent driver entry point this core
// exposes for pattern-table inspection.
func TestDecodePatternTableProducesFullSizeImage(t *testing.T) {
	p := newTestPPU()
	img := p.DecodePatternTable(0)

	bounds := img.Bounds()
	if bounds.Dx() != 128 || bounds.Dy() != 128 {
		t.Errorf("pattern table image size = %dx%d, want 128x128", bounds.Dx(), bounds.Dy())
	}
}
