// Package memory implements the NES's CPU and PPU address spaces.
package memory

import "nescore/internal/cartridge"

// Memory is the CPU's view of the system: internal RAM, PPU register
// window, controller ports, and the cartridge.
type Memory struct {
	ram [0x800]uint8

	ppuRegisters PPUInterface
	inputSystem  InputInterface
	cartridge    CartridgeInterface

	dmaCallback func(uint8)

	// openBusValue is the last value that crossed the bus; unmapped reads
	// return it, mimicking the capacitance-lingering behavior of real
	// hardware open bus.
	openBusValue uint8
}

// PPUMemory is the PPU's own 14-bit address space: pattern tables (via the
// cartridge), nametables with mirroring, and palette RAM.
type PPUMemory struct {
	vram       [0x1000]uint8
	paletteRAM [32]uint8
	cartridge  CartridgeInterface
	mirroring  cartridge.Mirroring
}

// PPUInterface is the CPU-facing register window the PPU exposes at
// 0x2000-0x2007 (mirrored every 8 bytes).
type PPUInterface interface {
	ReadRegister(address uint16) uint8
	WriteRegister(address uint16, value uint8)
}

// InputInterface is the controller port window at 0x4016/0x4017.
type InputInterface interface {
	Read(address uint16) uint8
	Write(address uint16, value uint8)
}

// CartridgeInterface is the capability set a mapper exposes to the bus.
type CartridgeInterface interface {
	CPURead(address uint16) uint8
	CPUWrite(address uint16, value uint8)
	PPURead(address uint16) uint8
	PPUWrite(address uint16, value uint8)
}

// New creates a Memory with the given PPU register window and cartridge.
func New(ppu PPUInterface, cart CartridgeInterface) *Memory {
	mem := &Memory{
		ppuRegisters: ppu,
		cartridge:    cart,
	}
	mem.initializePowerUpRAM()
	return mem
}

// SetInputSystem attaches the controller-port handler.
func (m *Memory) SetInputSystem(input InputInterface) {
	m.inputSystem = input
}

// SetDMACallback sets the function invoked when the CPU writes to 0x4014.
func (m *Memory) SetDMACallback(callback func(uint8)) {
	m.dmaCallback = callback
}

// initializePowerUpRAM fills RAM with a fixed, hardware-observed
// non-uniform pattern rather than zeroing it — real 2A03 RAM powers up in
// a semi-random state, and some software (and test ROMs checking for
// uninitialized-memory bugs) depends on it not being all zero.
func (m *Memory) initializePowerUpRAM() {
	for i := 0; i < 0x800; i++ {
		switch {
		case i < 0x100:
			if i%2 == 0 {
				m.ram[i] = 0x00
			} else {
				m.ram[i] = 0xFF
			}
		case i < 0x200:
			if i%16 < 2 {
				m.ram[i] = 0xFF
			} else {
				m.ram[i] = 0x00
			}
		case i < 0x300:
			if (i/8)%2 == (i%8)/4 {
				m.ram[i] = 0xAA
			} else {
				m.ram[i] = 0x55
			}
		case i < 0x400:
			if i%8 == 0 {
				m.ram[i] = 0x00
			} else {
				m.ram[i] = 0xFF
			}
		default:
			switch i % 4 {
			case 0:
				m.ram[i] = 0x00
			case 1:
				m.ram[i] = 0xFF
			case 2:
				m.ram[i] = 0xAA
			case 3:
				m.ram[i] = 0x55
			}
		}
	}
}

// Read reads a byte from the CPU's address space.
func (m *Memory) Read(address uint16) uint8 {
	var value uint8

	switch {
	case address < 0x2000:
		value = m.ram[address&0x07FF]

	case address < 0x4000:
		value = m.ppuRegisters.ReadRegister(0x2000 + (address & 0x0007))

	case address < 0x4020:
		switch address {
		case 0x4016, 0x4017:
			if m.inputSystem != nil {
				value = m.inputSystem.Read(address)
			}
		default:
			// APU registers and unused test-mode registers: no APU core
			// in this build, so these read back as open bus.
			value = m.openBusValue
		}

	case address >= 0x6000 && address < 0x8000:
		if m.cartridge != nil {
			value = m.cartridge.CPURead(address)
		} else {
			value = m.openBusValue
		}

	case address < 0x8000:
		// Cartridge expansion area, unmapped on NROM.
		value = m.openBusValue

	default:
		if m.cartridge != nil {
			value = m.cartridge.CPURead(address)
		} else {
			value = m.openBusValue
		}
	}

	m.openBusValue = value
	return value
}

// Write writes a byte to the CPU's address space.
func (m *Memory) Write(address uint16, value uint8) {
	switch {
	case address < 0x2000:
		m.ram[address&0x07FF] = value

	case address < 0x4000:
		m.ppuRegisters.WriteRegister(0x2000+(address&0x0007), value)

	case address < 0x4020:
		switch address {
		case 0x4014:
			if m.dmaCallback != nil {
				m.dmaCallback(value)
			} else {
				m.performOAMDMA(value)
			}
		case 0x4016:
			if m.inputSystem != nil {
				m.inputSystem.Write(address, value)
			}
		default:
			// APU registers and test-mode registers: ignored, no APU core.
		}

	case address >= 0x6000 && address < 0x8000:
		if m.cartridge != nil {
			m.cartridge.CPUWrite(address, value)
		}

	case address < 0x8000:
		// Cartridge expansion area, unmapped on NROM: writes ignored.

	default:
		if m.cartridge != nil {
			m.cartridge.CPUWrite(address, value)
		}
	}
}

// performOAMDMA is the fallback path when no DMA callback is wired: it
// performs the transfer immediately rather than stalling the CPU. The bus
// normally overrides this via SetDMACallback to get the correct odd/even
// cycle stall.
func (m *Memory) performOAMDMA(page uint8) {
	base := uint16(page) << 8
	for i := uint16(0); i < 256; i++ {
		value := m.Read(base + i)
		m.ppuRegisters.WriteRegister(0x2004, value)
	}
}

// NewPPUMemory creates the PPU's own memory space bound to a cartridge and
// its mirroring mode.
func NewPPUMemory(cart CartridgeInterface, mirroring cartridge.Mirroring) *PPUMemory {
	mem := &PPUMemory{
		cartridge: cart,
		mirroring: mirroring,
	}
	for i := 0; i < 32; i += 4 {
		mem.paletteRAM[i] = 0x0F // background color entries power up black
	}
	return mem
}

// Read reads from the PPU's 14-bit address space.
func (pm *PPUMemory) Read(address uint16) uint8 {
	address &= 0x3FFF

	switch {
	case address < 0x2000:
		return pm.cartridge.PPURead(address)
	case address < 0x3000:
		return pm.readNametable(address)
	case address < 0x3F00:
		return pm.readNametable(address - 0x1000)
	default:
		return pm.readPalette(address)
	}
}

// Write writes to the PPU's 14-bit address space.
func (pm *PPUMemory) Write(address uint16, value uint8) {
	address &= 0x3FFF

	switch {
	case address < 0x2000:
		pm.cartridge.PPUWrite(address, value)
	case address < 0x3000:
		pm.writeNametable(address, value)
	case address < 0x3F00:
		pm.writeNametable(address-0x1000, value)
	default:
		pm.writePalette(address, value)
	}
}

func (pm *PPUMemory) readNametable(address uint16) uint8 {
	return pm.vram[pm.getNametableIndex(address)]
}

func (pm *PPUMemory) writeNametable(address uint16, value uint8) {
	pm.vram[pm.getNametableIndex(address)] = value
}

// getNametableIndex maps a $2000-$2FFF address into the 4KB VRAM array
// according to the cartridge's mirroring mode. NROM only ever selects
// Horizontal, Vertical or FourScreen (the last requires the cartridge to
// supply its own 4KB of nametable RAM, which this core does not emulate —
// FourScreen boards fall back to occupying all 4KB of this VRAM directly).
func (pm *PPUMemory) getNametableIndex(address uint16) uint16 {
	address &= 0x0FFF
	nametable := (address >> 10) & 3
	offset := address & 0x3FF

	switch pm.mirroring {
	case cartridge.MirrorHorizontal:
		if nametable >= 2 {
			return 0x400 + offset
		}
		return offset

	case cartridge.MirrorVertical:
		if nametable == 1 || nametable == 3 {
			return 0x400 + offset
		}
		return offset

	case cartridge.MirrorFourScreen:
		return nametable*0x400 + offset

	default:
		return offset
	}
}

func (pm *PPUMemory) readPalette(address uint16) uint8 {
	index := (address - 0x3F00) & 0x1F
	if index == 0x10 || index == 0x14 || index == 0x18 || index == 0x1C {
		index &= 0x0F
	}
	return pm.paletteRAM[index]
}

func (pm *PPUMemory) writePalette(address uint16, value uint8) {
	index := (address - 0x3F00) & 0x1F
	if index == 0x10 || index == 0x14 || index == 0x18 || index == 0x1C {
		index &= 0x0F
	}
	pm.paletteRAM[index] = value
}
