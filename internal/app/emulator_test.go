package app

import (
	"bytes"
	"testing"

	"nescore/internal/bus"
	"nescore/internal/cartridge"
)

const validINESMagic = "NES\x1A"

func buildNROM() []byte {
	header := make([]byte, 16)
	copy(header[0:4], validINESMagic)
	header[4] = 1 // 16KB PRG
	header[5] = 1 // 8KB CHR

	prg := make([]byte, 16*1024)
	rom := append(header, prg...)
	rom = append(rom, make([]byte, 8*1024)...)
	return rom
}

func newTestEmulator(t *testing.T) *Emulator {
	t.Helper()
	cart, err := cartridge.Load(bytes.NewReader(buildNROM()))
	if err != nil {
		t.Fatalf("cartridge.Load failed: %v", err)
	}
	b := bus.New()
	b.LoadCartridge(cart)
	return NewEmulator(b, NewConfig())
}

func TestNewEmulatorStartsStoppedWithZeroedFrame(t *testing.T) {
	e := newTestEmulator(t)

	if e.IsRunning() {
		t.Error("a freshly constructed emulator should not be running")
	}
	for i, v := range e.GetFrameBuffer() {
		if v != 0 {
			t.Fatalf("frame buffer[%d] = %#08x, want 0 before first frame", i, v)
			break
		}
	}
}

// Update is a no-op while stopped, and StepFrame advances the bus by
// exactly one frame's worth of CPU cycles once started.
func TestUpdateNoOpUntilStarted(t *testing.T) {
	e := newTestEmulator(t)

	if err := e.Update(); err != nil {
		t.Fatalf("Update while stopped returned an error: %v", err)
	}
	if e.GetFrameCount() != 0 {
		t.Errorf("frame count = %d, want 0 while stopped", e.GetFrameCount())
	}

	e.Start()
	if err := e.Update(); err != nil {
		t.Fatalf("Update failed: %v", err)
	}
	if e.GetFrameCount() != 1 {
		t.Errorf("frame count = %d, want 1 after one Update", e.GetFrameCount())
	}
	if e.GetCycleCount() == 0 {
		t.Error("cycle count should advance after a frame runs")
	}
}

func TestStepFrameAdvancesExactlyOneFramesCycles(t *testing.T) {
	e := newTestEmulator(t)
	e.SetCyclesPerFrame(100)

	if err := e.StepFrame(); err != nil {
		t.Fatalf("StepFrame failed: %v", err)
	}
	if e.GetCycleCount() != 100 {
		t.Errorf("cycle count = %d, want exactly 100", e.GetCycleCount())
	}
}

func TestResetZeroesFrameBufferAndCounters(t *testing.T) {
	e := newTestEmulator(t)
	e.Start()
	e.SetCyclesPerFrame(100)
	e.StepFrame()
	e.StepFrame()

	e.Reset()
	if e.GetFrameCount() != 0 {
		t.Errorf("frame count after Reset = %d, want 0", e.GetFrameCount())
	}
	for _, v := range e.GetFrameBuffer() {
		if v != 0 {
			t.Fatal("frame buffer should be zeroed after Reset")
		}
	}
}

func TestGetEmulationSpeedZeroBeforeAnyFrame(t *testing.T) {
	e := newTestEmulator(t)
	if got := e.GetEmulationSpeed(); got != 0.0 {
		t.Errorf("emulation speed before any frame = %v, want 0", got)
	}
}

func TestCleanupStopsAndClearsFrameBuffer(t *testing.T) {
	e := newTestEmulator(t)
	e.Start()

	if err := e.Cleanup(); err != nil {
		t.Fatalf("Cleanup failed: %v", err)
	}
	if e.IsRunning() {
		t.Error("Cleanup should stop the emulator")
	}
	if e.GetFrameBuffer() != nil {
		t.Error("Cleanup should release the frame buffer")
	}
}
