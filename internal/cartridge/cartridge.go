// Package cartridge implements ROM loading and the NROM cartridge mapper.
package cartridge

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"
)

// Mirroring selects how the PPU's two nametable pages are mapped into the
// 0x2000-0x2FFF window.
type Mirroring uint8

const (
	MirrorHorizontal Mirroring = iota
	MirrorVertical
	MirrorFourScreen
)

func (m Mirroring) String() string {
	switch m {
	case MirrorHorizontal:
		return "horizontal"
	case MirrorVertical:
		return "vertical"
	case MirrorFourScreen:
		return "four-screen"
	default:
		return "unknown"
	}
}

// Mapper is the capability set a cartridge mapper exposes to the rest of
// the system. The CPU side and PPU side are kept separate because they are
// driven by different borrowers of the bus (see spec §9).
type Mapper interface {
	CPURead(addr uint16) uint8
	CPUWrite(addr uint16, value uint8)
	PPURead(addr uint16) uint8
	PPUWrite(addr uint16, value uint8)
}

// iNES header, 16 bytes, little-endian.
type header struct {
	Magic      [4]uint8
	PRGROMSize uint8
	CHRROMSize uint8
	Flags6     uint8
	Flags7     uint8
	PRGRAMSize uint8
	TVSystem1  uint8
	TVSystem2  uint8
	Padding    [5]uint8
}

// Cartridge is the canonical ROM record described in spec §6, plus the
// mutable storage a mapper addresses.
type Cartridge struct {
	PRGROM  []uint8
	CHRROM  []uint8
	Trainer []uint8

	Mirroring    Mirroring
	HasBattery   bool
	MapperNumber uint8
	chrIsRAM     bool

	prgRAM [0x2000]uint8 // 8KB PRG RAM window at 0x6000-0x7FFF

	mapper Mapper
}

// Load parses an iNES ROM image from r and constructs a Cartridge with its
// mapper wired up.
func Load(r io.Reader) (*Cartridge, error) {
	var h header
	if err := binary.Read(r, binary.LittleEndian, &h); err != nil {
		return nil, fmt.Errorf("cartridge: reading header: %w", err)
	}

	if string(h.Magic[:]) != "NES\x1A" {
		return nil, errors.New("cartridge: not an iNES file")
	}
	if h.PRGROMSize == 0 {
		return nil, errors.New("cartridge: PRG ROM size is zero")
	}

	c := &Cartridge{
		MapperNumber: (h.Flags6 >> 4) | (h.Flags7 & 0xF0),
		HasBattery:   h.Flags6&0x02 != 0,
	}

	switch {
	case h.Flags6&0x08 != 0:
		c.Mirroring = MirrorFourScreen
	case h.Flags6&0x01 != 0:
		c.Mirroring = MirrorVertical
	default:
		c.Mirroring = MirrorHorizontal
	}

	if h.Flags6&0x04 != 0 {
		c.Trainer = make([]uint8, 512)
		if _, err := io.ReadFull(r, c.Trainer); err != nil {
			return nil, fmt.Errorf("cartridge: reading trainer: %w", err)
		}
	}

	c.PRGROM = make([]uint8, int(h.PRGROMSize)*16*1024)
	if _, err := io.ReadFull(r, c.PRGROM); err != nil {
		return nil, fmt.Errorf("cartridge: reading PRG ROM: %w", err)
	}

	if h.CHRROMSize > 0 {
		c.CHRROM = make([]uint8, int(h.CHRROMSize)*8*1024)
		if _, err := io.ReadFull(r, c.CHRROM); err != nil {
			return nil, fmt.Errorf("cartridge: reading CHR ROM: %w", err)
		}
	} else {
		// CHR RAM: no data on the image, 8KB of writable tile storage.
		c.CHRROM = make([]uint8, 8*1024)
		c.chrIsRAM = true
	}

	m, err := newMapper(c.MapperNumber, c)
	if err != nil {
		return nil, err
	}
	c.mapper = m

	return c, nil
}

// LoadFile is a convenience wrapper around Load for on-disk ROM images.
func LoadFile(path string) (*Cartridge, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return Load(f)
}

func newMapper(id uint8, c *Cartridge) (Mapper, error) {
	switch id {
	case 0:
		return newNROM(c), nil
	default:
		return nil, fmt.Errorf("cartridge: unsupported mapper number %d", id)
	}
}

func (c *Cartridge) CPURead(addr uint16) uint8     { return c.mapper.CPURead(addr) }
func (c *Cartridge) CPUWrite(addr uint16, v uint8) { c.mapper.CPUWrite(addr, v) }
func (c *Cartridge) PPURead(addr uint16) uint8     { return c.mapper.PPURead(addr) }
func (c *Cartridge) PPUWrite(addr uint16, v uint8) { c.mapper.PPUWrite(addr, v) }
