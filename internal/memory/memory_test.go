package memory

import (
	"testing"

	"nescore/internal/cartridge"
)

type fakePPU struct {
	lastReadAddr  uint16
	lastWriteAddr uint16
	lastWriteVal  uint8
	readValue     uint8
}

func (f *fakePPU) ReadRegister(address uint16) uint8 {
	f.lastReadAddr = address
	return f.readValue
}

func (f *fakePPU) WriteRegister(address uint16, value uint8) {
	f.lastWriteAddr = address
	f.lastWriteVal = value
}

type fakeInput struct {
	lastReadAddr  uint16
	lastWriteAddr uint16
	lastWriteVal  uint8
	readValue     uint8
}

func (f *fakeInput) Read(address uint16) uint8 {
	f.lastReadAddr = address
	return f.readValue
}

func (f *fakeInput) Write(address uint16, value uint8) {
	f.lastWriteAddr = address
	f.lastWriteVal = value
}

type fakeCart struct {
	prgRAM  [0x2000]uint8
	prgROM  [0x8000]uint8
	chrRead uint8
}

func (f *fakeCart) CPURead(address uint16) uint8 {
	if address >= 0x6000 && address < 0x8000 {
		return f.prgRAM[address-0x6000]
	}
	return f.prgROM[address-0x8000]
}

func (f *fakeCart) CPUWrite(address uint16, value uint8) {
	if address >= 0x6000 && address < 0x8000 {
		f.prgRAM[address-0x6000] = value
	}
}

func (f *fakeCart) PPURead(address uint16) uint8  { return f.chrRead }
func (f *fakeCart) PPUWrite(address uint16, value uint8) {}

// Power-up RAM is a fixed, non-uniform pattern rather than all zero, so
// tests written against uninitialized-memory quirks are reproducible.
func TestPowerUpRAMIsNotUniform(t *testing.T) {
	m := New(&fakePPU{}, &fakeCart{})

	allSame := true
	first := m.ram[0]
	for _, v := range m.ram {
		if v != first {
			allSame = false
			break
		}
	}
	if allSame {
		t.Error("power-up RAM is uniform, want the hardware-observed non-uniform pattern")
	}
}

// Internal 2KB RAM mirrors four times across 0x0000-0x1FFF.
func TestRAMMirroring(t *testing.T) {
	m := New(&fakePPU{}, &fakeCart{})

	m.Write(0x0123, 0xAB)
	if got := m.Read(0x0923); got != 0xAB { // 0x0123 + 0x0800
		t.Errorf("Read(0x0923) = %#02x, want 0xab (mirrors 0x0123)", got)
	}
}

// 0x2000-0x3FFF dispatches to the PPU's register window, mirrored every 8
// bytes (always normalized back down to the 0x2000-0x2007 range).
func TestPPURegisterAddressesAreNormalized(t *testing.T) {
	ppu := &fakePPU{}
	m := New(ppu, &fakeCart{})

	m.Write(0x3FF9, 0x77) // mirrors 0x2001 (0x3FF9 & 0x0007 == 1)
	if ppu.lastWriteAddr != 0x2001 {
		t.Errorf("forwarded address = %#04x, want 0x2001", ppu.lastWriteAddr)
	}
	if ppu.lastWriteVal != 0x77 {
		t.Errorf("forwarded value = %#02x, want 0x77", ppu.lastWriteVal)
	}

	ppu.readValue = 0x99
	if got := m.Read(0x200A); got != 0x99 { // mirrors 0x2002
		t.Errorf("Read(0x200a) = %#02x, want 0x99", got)
	}
	if ppu.lastReadAddr != 0x2002 {
		t.Errorf("forwarded read address = %#04x, want 0x2002", ppu.lastReadAddr)
	}
}

// 0x4016/0x4017 forward to the attached input system; other 0x4000-0x401F
// addresses (APU registers, not emulated) read back as open bus.
func TestInputPortDispatch(t *testing.T) {
	input := &fakeInput{readValue: 0x5A}
	m := New(&fakePPU{}, &fakeCart{})
	m.SetInputSystem(input)

	m.Write(0x4016, 0x01)
	if input.lastWriteAddr != 0x4016 || input.lastWriteVal != 0x01 {
		t.Errorf("input write not forwarded: addr=%#04x val=%#02x", input.lastWriteAddr, input.lastWriteVal)
	}
	if got := m.Read(0x4017); got != 0x5A {
		t.Errorf("Read(0x4017) = %#02x, want 0x5a", got)
	}
}

func TestUnmappedAPURegisterReturnsOpenBus(t *testing.T) {
	m := New(&fakePPU{}, &fakeCart{})

	m.Read(0x1234) // prime open bus with a known RAM value
	want := m.ram[0x1234&0x07FF]
	if got := m.Read(0x4010); got != want {
		t.Errorf("Read(0x4010) = %#02x, want open-bus value %#02x", got, want)
	}
}

// Writing $4014 invokes the DMA callback with the source page, instead of
// the immediate fallback transfer, whenever a callback is registered (the
// bus always registers one so it can apply the odd/even cycle stall).
func TestOAMDMAWriteInvokesCallback(t *testing.T) {
	m := New(&fakePPU{}, &fakeCart{})

	var gotPage uint8
	called := false
	m.SetDMACallback(func(page uint8) {
		called = true
		gotPage = page
	})

	m.Write(0x4014, 0x03)
	if !called {
		t.Fatal("DMA callback was not invoked")
	}
	if gotPage != 0x03 {
		t.Errorf("callback page = %#02x, want 0x03", gotPage)
	}
}

// Without a registered callback, $4014 performs the DMA transfer
// immediately via the fallback path.
func TestOAMDMAFallbackTransfersImmediately(t *testing.T) {
	ppu := &fakePPU{}
	m := New(ppu, &fakeCart{})

	m.Write(0x0200, 0x42)
	m.Write(0x4014, 0x02)

	if ppu.lastWriteAddr != 0x2004 {
		t.Errorf("fallback DMA should write through $2004, last write was %#04x", ppu.lastWriteAddr)
	}
}

// 0x6000-0x7FFF is cartridge PRG RAM; 0x8000 and above is PRG ROM.
func TestCartridgeWindowsDispatchToCartridge(t *testing.T) {
	cart := &fakeCart{}
	m := New(&fakePPU{}, cart)

	m.Write(0x6100, 0x55)
	if got := m.Read(0x6100); got != 0x55 {
		t.Errorf("PRG RAM read = %#02x, want 0x55", got)
	}

	cart.prgROM[0] = 0xEE
	if got := m.Read(0x8000); got != 0xEE {
		t.Errorf("PRG ROM read = %#02x, want 0xee", got)
	}
}

func TestCartridgeExpansionAreaIsOpenBus(t *testing.T) {
	m := New(&fakePPU{}, &fakeCart{})

	m.Read(0x1111) // prime open bus
	want := m.ram[0x1111&0x07FF]
	if got := m.Read(0x4800); got != want {
		t.Errorf("Read(0x4800) = %#02x, want open-bus value %#02x", got, want)
	}
}

// PPUMemory nametable mirroring: horizontal mirroring maps nametables 0/1
// to the first 1KB and 2/3 to the second.
func TestPPUMemoryHorizontalMirroring(t *testing.T) {
	pm := NewPPUMemory(&fakeCart{}, cartridge.MirrorHorizontal)

	pm.Write(0x2000, 0xAA) // nametable 0
	if got := pm.Read(0x2400); got != 0xAA { // nametable 1, same offset, should mirror
		t.Errorf("Read(0x2400) = %#02x, want 0xaa (horizontal mirrors nametable 0)", got)
	}
	if got := pm.Read(0x2800); got == 0xAA { // nametable 2 is the other physical page
		t.Error("nametable 2 should not mirror nametable 0 under horizontal mirroring")
	}
}

func TestPPUMemoryVerticalMirroring(t *testing.T) {
	pm := NewPPUMemory(&fakeCart{}, cartridge.MirrorVertical)

	pm.Write(0x2000, 0x33) // nametable 0
	if got := pm.Read(0x2800); got != 0x33 { // nametable 2, same offset, should mirror
		t.Errorf("Read(0x2800) = %#02x, want 0x33 (vertical mirrors nametable 0)", got)
	}
}

// The mirrored nametable range 0x3000-0x3EFF re-reads 0x2000-0x2EFF.
func TestPPUMemoryNametableMirrorRange(t *testing.T) {
	pm := NewPPUMemory(&fakeCart{}, cartridge.MirrorHorizontal)

	pm.Write(0x2005, 0x11)
	if got := pm.Read(0x3005); got != 0x11 {
		t.Errorf("Read(0x3005) = %#02x, want 0x11 (mirrors 0x2005)", got)
	}
}

// Palette entries 0x10/0x14/0x18/0x1C mirror their sprite-palette-background
// counterparts at 0x00/0x04/0x08/0x0C.
func TestPPUMemoryPaletteBackgroundMirroring(t *testing.T) {
	pm := NewPPUMemory(&fakeCart{}, cartridge.MirrorHorizontal)

	pm.Write(0x3F00, 0x0D)
	if got := pm.Read(0x3F10); got != 0x0D {
		t.Errorf("Read(0x3f10) = %#02x, want 0x0d (mirrors 0x3f00)", got)
	}
}
