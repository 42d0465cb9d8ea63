// Package bus wires the CPU, PPU, cartridge and input system together and
// drives them forward in lockstep, one CPU cycle at a time.
package bus

import (
	"nescore/internal/cartridge"
	"nescore/internal/cpu"
	"nescore/internal/input"
	"nescore/internal/memory"
	"nescore/internal/ppu"
)

// Bus owns every emulated component and is the single place system timing
// is coordinated: the CPU advances one cycle at a time, the PPU runs three
// sub-cycles per CPU cycle, and OAM DMA stalls the CPU for 513 or 514
// cycles depending on parity at the moment it is triggered.
type Bus struct {
	CPU    *cpu.CPU
	PPU    *ppu.PPU
	Memory *memory.Memory
	Input  *input.InputState

	totalCycles uint64
	ppuCycles   uint64
	frameCount  uint64

	dmaSuspendCycles uint64
	dmaInProgress    bool
	nmiPending       bool

	cyclesPerFrame uint64 // 89342 PPU cycles, NTSC

	executionLog   []ExecutionEvent
	loggingEnabled bool
}

// New creates a bus with no cartridge loaded; LoadCartridge must be called
// before Reset/Step will do anything meaningful.
func New() *Bus {
	b := &Bus{
		PPU:            ppu.New(),
		Input:          input.NewInputState(),
		cyclesPerFrame: 89342,
	}

	b.Memory = memory.New(b.PPU, nil)
	b.Memory.SetInputSystem(b.Input)
	b.CPU = cpu.New(b.Memory)

	b.PPU.SetNMICallback(b.triggerNMI)
	b.PPU.SetFrameCompleteCallback(b.handleFrameComplete)
	b.Memory.SetDMACallback(b.TriggerOAMDMA)

	b.Reset()
	return b
}

// Reset resets every component and system-level timing state.
func (b *Bus) Reset() {
	b.CPU.Reset()
	b.PPU.Reset()
	b.Input.Reset()

	b.totalCycles = 0
	b.ppuCycles = 0
	b.frameCount = 0
	b.dmaSuspendCycles = 0
	b.dmaInProgress = false
	b.nmiPending = false

	b.PPU.SetFrameCount(0)

	b.executionLog = nil
	b.loggingEnabled = false
}

func (b *Bus) triggerNMI() {
	b.nmiPending = true
}

func (b *Bus) handleFrameComplete() {
	b.frameCount = b.PPU.GetFrameCount()
}

// Step advances the system by exactly one CPU cycle: the PPU runs three
// sub-cycles for every CPU cycle (the NES's fixed 3:1 clock ratio), and an
// in-progress OAM DMA holds the CPU idle instead of executing.
func (b *Bus) Step() {
	prePC := b.CPU.PC
	preOpcode := b.Memory.Read(prePC)
	preFrameCount := b.frameCount

	if b.dmaSuspendCycles > 0 {
		b.dmaSuspendCycles--
		if b.dmaSuspendCycles == 0 {
			b.dmaInProgress = false
		}
	} else {
		if b.nmiPending {
			b.CPU.TriggerNMI()
			b.nmiPending = false
		}
		b.CPU.Cycle()
	}

	for i := 0; i < 3; i++ {
		b.PPU.Step()
		b.ppuCycles++
	}

	b.totalCycles++

	if b.loggingEnabled {
		b.executionLog = append(b.executionLog, ExecutionEvent{
			StepNumber:    len(b.executionLog) + 1,
			CPUCycles:     b.totalCycles,
			PPUCycles:     b.ppuCycles,
			FrameCount:    b.frameCount,
			DMAActive:     b.dmaInProgress,
			NMIProcessed:  b.frameCount > preFrameCount,
			PCValue:       prePC,
			InstructionOp: preOpcode,
		})
	}
}

// TriggerOAMDMA starts an OAM DMA transfer from CPU page sourcePage. The
// CPU stalls for 513 cycles, or 514 if triggered on an odd CPU cycle; the
// 256-byte copy itself happens immediately since the source bytes cannot
// change mid-transfer from the CPU's (stalled) point of view.
func (b *Bus) TriggerOAMDMA(sourcePage uint8) {
	if b.dmaInProgress {
		return
	}

	dmaCycles := uint64(513)
	if b.totalCycles%2 == 1 {
		dmaCycles = 514
	}

	b.dmaInProgress = true
	b.dmaSuspendCycles = dmaCycles

	// Each byte is written through OAMDATA ($2004), not poked into OAM
	// directly, so a starting OAMADDR set via $2003 before the DMA trigger
	// is honored and the 256-byte run wraps through it rather than always
	// clobbering OAM from index 0.
	sourceAddress := uint16(sourcePage) << 8
	for i := 0; i < 256; i++ {
		data := b.Memory.Read(sourceAddress + uint16(i))
		b.Memory.Write(0x2004, data)
	}
}

// LoadCartridge installs a cartridge, rebuilding the CPU/PPU memory views
// around it and resetting the CPU to read its start vector.
func (b *Bus) LoadCartridge(cart *cartridge.Cartridge) {
	b.Memory = memory.New(b.PPU, cart)
	b.Memory.SetInputSystem(b.Input)
	b.CPU = cpu.New(b.Memory)

	ppuMemory := memory.NewPPUMemory(cart, cart.Mirroring)
	b.PPU.SetMemory(ppuMemory)

	b.PPU.SetNMICallback(b.triggerNMI)
	b.Memory.SetDMACallback(b.TriggerOAMDMA)

	b.CPU.Reset()
}

// Run runs the emulator for the given number of frames.
func (b *Bus) Run(frames int) {
	target := b.frameCount + uint64(frames)
	for b.frameCount < target {
		b.Step()
	}
}

// RunCycles runs the emulator for the given number of CPU cycles.
func (b *Bus) RunCycles(cycles uint64) {
	target := b.totalCycles + cycles
	for b.totalCycles < target {
		b.Step()
	}
}

// Frame runs exactly one NTSC frame's worth of CPU cycles (29781).
func (b *Bus) Frame() {
	target := b.totalCycles + 29781
	for b.totalCycles < target {
		b.Step()
	}
}

// GetFrameBuffer returns the PPU's current frame buffer.
func (b *Bus) GetFrameBuffer() []uint32 {
	fb := b.PPU.GetFrameBuffer()
	return fb[:]
}

// GetCycleCount returns the total number of CPU cycles executed.
func (b *Bus) GetCycleCount() uint64 {
	return b.totalCycles
}

// GetFrameCount returns the number of frames completed.
func (b *Bus) GetFrameCount() uint64 {
	return b.frameCount
}

// IsDMAInProgress reports whether an OAM DMA transfer is currently
// stalling the CPU.
func (b *Bus) IsDMAInProgress() bool {
	return b.dmaInProgress
}

func (b *Bus) isRenderingEnabled() bool {
	mask := b.PPU.ReadRegister(0x2001)
	return (mask & 0x18) != 0
}

// SetControllerButton sets a single button's state on controller 1 or 2.
func (b *Bus) SetControllerButton(controller int, button input.Button, pressed bool) {
	switch controller {
	case 0, 1:
		b.Input.Controller1.SetButton(button, pressed)
	case 2:
		b.Input.Controller2.SetButton(button, pressed)
	}
}

// SetControllerButtons sets all eight button states at once.
func (b *Bus) SetControllerButtons(controller int, buttons [8]bool) {
	switch controller {
	case 0, 1:
		b.Input.SetButtons1(buttons)
	case 2:
		b.Input.SetButtons2(buttons)
	}
}

// GetInputState returns the bus's input state for direct access.
func (b *Bus) GetInputState() *input.InputState {
	return b.Input
}

// ExecutionEvent is one recorded Step() for integration-test assertions.
type ExecutionEvent struct {
	StepNumber    int
	CPUCycles     uint64
	PPUCycles     uint64
	FrameCount    uint64
	DMAActive     bool
	NMIProcessed  bool
	PCValue       uint16
	InstructionOp uint8
}

// GetExecutionLog returns the recorded execution log.
func (b *Bus) GetExecutionLog() []ExecutionEvent {
	return b.executionLog
}

// EnableExecutionLogging turns on per-Step() event recording.
func (b *Bus) EnableExecutionLogging() {
	b.loggingEnabled = true
}

// DisableExecutionLogging turns off per-Step() event recording.
func (b *Bus) DisableExecutionLogging() {
	b.loggingEnabled = false
}

// ClearExecutionLog discards recorded execution events.
func (b *Bus) ClearExecutionLog() {
	b.executionLog = nil
}

// CPUState is a snapshot of CPU registers and flags for test assertions.
type CPUState struct {
	PC      uint16
	A, X, Y uint8
	SP      uint8
	Cycles  uint64
	Flags   CPUFlags
}

// CPUFlags is a snapshot of the CPU's status flags.
type CPUFlags struct {
	N, V, B, D, I, Z, C bool
}

// GetCPUState returns a snapshot of the current CPU state.
func (b *Bus) GetCPUState() CPUState {
	return CPUState{
		PC:     b.CPU.PC,
		A:      b.CPU.A,
		X:      b.CPU.X,
		Y:      b.CPU.Y,
		SP:     b.CPU.SP,
		Cycles: b.totalCycles,
		Flags: CPUFlags{
			N: b.CPU.N,
			V: b.CPU.V,
			B: b.CPU.B,
			D: b.CPU.D,
			I: b.CPU.I,
			Z: b.CPU.Z,
			C: b.CPU.C,
		},
	}
}

// PPUState is a snapshot of PPU timing state for test assertions.
type PPUState struct {
	Scanline    int
	Cycle       int
	FrameCount  uint64
	VBlankFlag  bool
	RenderingOn bool
}

// GetPPUState returns a snapshot of the current PPU timing state.
func (b *Bus) GetPPUState() PPUState {
	scanline := int((b.ppuCycles % b.cyclesPerFrame) / 341)
	cycle := int((b.ppuCycles % b.cyclesPerFrame) % 341)

	return PPUState{
		Scanline:    scanline,
		Cycle:       cycle,
		FrameCount:  b.frameCount,
		VBlankFlag:  (b.PPU.ReadRegister(0x2002) & 0x80) != 0,
		RenderingOn: b.isRenderingEnabled(),
	}
}

// EnableCPUDebug turns on CPU instruction tracing and loop detection, used
// by app.ApplyDebugSettings (cmd/gones's -debug flag).
func (b *Bus) EnableCPUDebug(enable bool) {
	b.CPU.EnableDebugLogging(enable)
	b.CPU.EnableLoopDetection(enable)
}
