// Package ppu implements the Picture Processing Unit (2C02) register
// interface and a best-effort background/sprite renderer.
package ppu

import (
	"image"
	"image/color"

	"nescore/internal/memory"
)

// PPU is the NES's 2C02 graphics chip as seen from two sides: the CPU's
// register window at $2000-$2007, and its own internal pixel pipeline.
type PPU struct {
	ppuCtrl   uint8
	ppuMask   uint8
	ppuStatus uint8
	oamAddr   uint8

	v uint16 // current VRAM address (15 bits)
	t uint16 // temporary VRAM address / address latch (15 bits)
	x uint8  // fine X scroll (3 bits)
	w bool   // write toggle, shared by PPUSCROLL and PPUADDR

	memory *memory.PPUMemory

	scanline   int
	cycle      int
	frameCount uint64
	oddFrame   bool
	readBuffer uint8

	oam              [256]uint8
	secondaryOAM     [32]uint8
	spriteIndexes    [8]uint8
	spriteCount      uint8
	sprite0Hit       bool
	spriteOverflow   bool
	sprite0OnScanline bool
	lastEvalScanline int

	frameBuffer [256 * 240]uint32

	nmiCallback           func()
	frameCompleteCallback func()

	backgroundEnabled bool
	spritesEnabled    bool
	renderingEnabled  bool

	cycleCount uint64
}

// New creates a PPU parked at the pre-render scanline.
func New() *PPU {
	return &PPU{scanline: -1}
}

// Reset returns the PPU to its power-up state.
func (p *PPU) Reset() {
	p.ppuCtrl = 0
	p.ppuMask = 0
	p.ppuStatus = 0xA0
	p.oamAddr = 0

	p.v, p.t, p.x, p.w = 0, 0, 0, false

	p.scanline = -1
	p.cycle = 0
	p.frameCount = 0
	p.oddFrame = false
	p.readBuffer = 0

	p.spriteCount = 0
	p.sprite0Hit = false
	p.spriteOverflow = false

	p.backgroundEnabled = false
	p.spritesEnabled = false
	p.renderingEnabled = false

	p.cycleCount = 0
	p.lastEvalScanline = -999

	for i := range p.oam {
		p.oam[i] = 0
	}
	for i := range p.frameBuffer {
		p.frameBuffer[i] = 0
	}
}

// SetMemory attaches the PPU's own memory space (pattern tables via
// cartridge, nametables, palette RAM).
func (p *PPU) SetMemory(m *memory.PPUMemory) {
	p.memory = m
}

// SetNMICallback sets the function invoked when vblank NMI should fire.
func (p *PPU) SetNMICallback(callback func()) {
	p.nmiCallback = callback
}

// SetFrameCompleteCallback sets the function invoked once per completed frame.
func (p *PPU) SetFrameCompleteCallback(callback func()) {
	p.frameCompleteCallback = callback
}

// ReadRegister services a CPU read of $2000-$2007 (mirrored every 8 bytes
// by the caller).
func (p *PPU) ReadRegister(address uint16) uint8 {
	switch address {
	case 0x2000, 0x2001, 0x2003, 0x2005, 0x2006:
		// Write-only registers: open bus, low 5 bits from status.
		return p.ppuStatus & 0x1F
	case 0x2002:
		status := p.ppuStatus
		p.ppuStatus &= 0x3F // clear VBL (bit 7) and sprite 0 hit (bit 6)
		p.sprite0Hit = false
		p.w = false
		return status
	case 0x2004:
		return p.oam[p.oamAddr]
	case 0x2007:
		return p.readPPUData()
	default:
		return 0
	}
}

// WriteRegister services a CPU write to $2000-$2007.
func (p *PPU) WriteRegister(address uint16, value uint8) {
	switch address {
	case 0x2000:
		p.ppuCtrl = value
		p.t = (p.t & 0xF3FF) | ((uint16(value) & 0x03) << 10)
		p.updateRenderingFlags()
		p.checkNMI()
	case 0x2001:
		p.ppuMask = value
		p.updateRenderingFlags()
	case 0x2002:
		// read-only
	case 0x2003:
		p.oamAddr = value
	case 0x2004:
		p.oam[p.oamAddr] = value
		p.oamAddr++
	case 0x2005:
		p.writePPUScroll(value)
	case 0x2006:
		p.writePPUAddr(value)
	case 0x2007:
		p.writePPUData(value)
	}
}

// Step advances the PPU by one PPU cycle (one third of a CPU cycle).
func (p *PPU) Step() {
	p.cycleCount++

	p.cycle++
	if p.cycle > 340 {
		p.cycle = 0
		p.scanline++
		if p.scanline > 260 {
			p.scanline = -1
			p.frameCount++
			p.oddFrame = !p.oddFrame
			if p.frameCompleteCallback != nil {
				p.frameCompleteCallback()
			}
		}
	}

	if p.scanline == 241 && p.cycle == 1 {
		p.ppuStatus |= 0x80
		p.ppuStatus &= 0x9F // clear sprite 0 hit / overflow, keep VBL
		p.sprite0Hit = false
		p.spriteOverflow = false
		if p.ppuCtrl&0x80 != 0 && p.nmiCallback != nil {
			p.nmiCallback()
		}
	}

	if p.scanline == -1 && p.cycle == 1 {
		p.ppuStatus &= 0x7F
	}

	if p.scanline == 0 && p.cycle == 0 && p.renderingEnabled {
		p.v = p.t
	}

	if p.scanline >= -1 && p.scanline < 240 {
		p.renderCycle()
	}
}

func (p *PPU) renderCycle() {
	if p.scanline < -1 || p.scanline >= 240 {
		return
	}

	if p.spritesEnabled && p.scanline >= 0 && p.scanline < 240 && p.cycle == 1 {
		if p.lastEvalScanline != p.scanline {
			p.evaluateSprites()
		}
	}

	// Sprite-0-hit detection starts one cycle later than pixel output on
	// real hardware; cycle 2 is pixel 0.
	if p.scanline < 0 || p.scanline >= 240 || p.cycle < 2 || p.cycle > 257 {
		return
	}
	if p.memory == nil || (!p.backgroundEnabled && !p.spritesEnabled) {
		return
	}

	pixelX := p.cycle - 2
	pixelY := p.scanline

	background := SpritePixel{transparent: true}
	sprite := SpritePixel{transparent: true}

	if p.backgroundEnabled {
		background = p.renderBackgroundPixel(pixelX, pixelY)
	}
	if p.spritesEnabled {
		sprite = p.renderSpritePixel(pixelX, pixelY)
	}

	p.frameBuffer[pixelY*256+pixelX] = p.compositeFinalPixel(background, sprite)
}

// SpritePixel is one rendered background or sprite pixel, carried through
// compositing so priority/transparency rules can be applied uniformly.
type SpritePixel struct {
	colorIndex   uint8
	paletteIndex uint8
	rgbColor     uint32
	spriteIndex  int8
	priority     bool
	transparent  bool
}

// evaluateSprites finds the (up to 8) sprites visible on the upcoming
// scanline, setting the overflow flag if a 9th is found.
func (p *PPU) evaluateSprites() {
	p.lastEvalScanline = p.scanline

	p.spriteCount = 0
	p.spriteOverflow = false
	p.sprite0OnScanline = false

	for i := range p.secondaryOAM {
		p.secondaryOAM[i] = 0xFF
	}
	for i := range p.spriteIndexes {
		p.spriteIndexes[i] = 0xFF
	}

	spriteHeight := 8
	if p.ppuCtrl&0x20 != 0 {
		spriteHeight = 16
	}

	found := 0
	for spriteIndex := 0; spriteIndex < 64; spriteIndex++ {
		oamIndex := spriteIndex * 4
		sY := int(p.oam[oamIndex])
		tileIndex := p.oam[oamIndex+1]
		attributes := p.oam[oamIndex+2]
		sX := p.oam[oamIndex+3]

		if p.scanline < sY+1 || p.scanline >= sY+1+spriteHeight {
			continue
		}

		if found < 8 {
			idx := found * 4
			p.secondaryOAM[idx] = uint8(sY)
			p.secondaryOAM[idx+1] = tileIndex
			p.secondaryOAM[idx+2] = attributes
			p.secondaryOAM[idx+3] = sX
			p.spriteIndexes[found] = uint8(spriteIndex)
			if spriteIndex == 0 {
				p.sprite0OnScanline = true
			}
			found++
		} else {
			p.spriteOverflow = true
			p.ppuStatus |= 0x20
			break
		}
	}

	p.spriteCount = uint8(found)
}

// renderBackgroundPixel samples the nametable/attribute/pattern-table
// chain at a world-space pixel derived from the current scroll registers.
func (p *PPU) renderBackgroundPixel(pixelX, pixelY int) SpritePixel {
	var scrollX, scrollY, nametable int
	if p.t != 0 || p.x != 0 {
		scrollX = int(p.t&0x001F)<<3 + int(p.x)
		scrollY = int((p.t>>5)&0x001F)<<3 + int((p.t>>12)&0x0007)
		nametable = int((p.t >> 10) & 0x0003)
	}

	worldX := pixelX + scrollX
	worldY := pixelY + scrollY

	if worldX < -256 || worldX >= 768 {
		if worldX < -256 {
			worldX = -256
		} else {
			worldX = 767
		}
	}
	if worldY < -240 || worldY >= 720 {
		if worldY < -240 {
			worldY = -240
		} else {
			worldY = 719
		}
	}

	if worldX < 0 {
		nametable ^= 1
		worldX += 256
	}
	if worldX >= 256 {
		nametable ^= 1
		worldX -= 256
	}
	if worldY < 0 {
		nametable ^= 2
		worldY += 240
	}
	if worldY >= 240 {
		nametable ^= 2
		worldY -= 240
	}

	tileX := worldX >> 3
	tileY := worldY >> 3
	pixelInTileX := worldX & 7
	pixelInTileY := worldY & 7

	if tileX < 0 || tileX >= 32 || tileY < 0 || tileY >= 30 {
		return SpritePixel{transparent: true}
	}

	nametableAddr := 0x2000 | (uint16(nametable&3) << 10) | uint16(tileY*32+tileX)
	tileID := p.memory.Read(nametableAddr)

	attributeAddr := 0x23C0 | (uint16(nametable&3) << 10) | uint16((tileY>>2)*8+(tileX>>2))
	attributeByte := p.memory.Read(attributeAddr)

	blockID := ((tileX & 3) >> 1) + ((tileY & 3) >> 1) * 2
	paletteIndex := (attributeByte >> (blockID << 1)) & 0x03

	var patternTableBase uint16
	if p.ppuCtrl&0x10 != 0 {
		patternTableBase = 0x1000
	}

	patternAddr := patternTableBase + uint16(tileID)*16 + uint16(pixelInTileY)
	patternLow := p.memory.Read(patternAddr)
	patternHigh := p.memory.Read(patternAddr + 0x08)

	bitShift := 7 - pixelInTileX
	bit0 := (patternLow >> bitShift) & 1
	bit1 := (patternHigh >> bitShift) & 1
	colorIndex := (bit1 << 1) | bit0

	var paletteAddr uint16
	if colorIndex == 0 {
		paletteAddr = 0x3F00
	} else {
		paletteAddr = 0x3F00 + uint16(paletteIndex)*4 + uint16(colorIndex)
	}

	nesColorIndex := p.memory.Read(paletteAddr)

	return SpritePixel{
		colorIndex:   colorIndex,
		paletteIndex: paletteIndex,
		rgbColor:     p.NESColorToRGB(nesColorIndex),
		spriteIndex:  -1,
		transparent:  colorIndex == 0,
	}
}

// renderSpritePixel returns the highest-priority (lowest OAM index)
// non-transparent sprite pixel at the given screen coordinate, if any.
func (p *PPU) renderSpritePixel(pixelX, pixelY int) SpritePixel {
	spriteHeight := 8
	if p.ppuCtrl&0x20 != 0 {
		spriteHeight = 16
	}

	for i := 0; i < int(p.spriteCount); i++ {
		idx := i * 4
		sY := int(p.secondaryOAM[idx])
		tileIndex := p.secondaryOAM[idx+1]
		attributes := p.secondaryOAM[idx+2]
		sX := int(p.secondaryOAM[idx+3])

		if pixelX < sX || pixelX >= sX+8 || pixelY < sY+1 || pixelY >= sY+1+spriteHeight {
			continue
		}

		spritePixelX := pixelX - sX
		spritePixelY := pixelY - (sY + 1)
		if spritePixelX < 0 || spritePixelX >= 8 || spritePixelY < 0 || spritePixelY >= spriteHeight {
			continue
		}

		if attributes&0x40 != 0 {
			spritePixelX = 7 - spritePixelX
		}
		if attributes&0x80 != 0 {
			spritePixelY = spriteHeight - 1 - spritePixelY
		}

		colorIndex := p.getSpritePixelColor(tileIndex, spritePixelX, spritePixelY)
		if colorIndex == 0 {
			continue
		}

		if p.isOriginalSprite0(i) && !p.sprite0Hit {
			p.checkSprite0Hit(pixelX, pixelY, colorIndex)
		}

		paletteIndex := attributes & 0x03
		paletteAddr := 0x3F10 + uint16(paletteIndex)*4 + uint16(colorIndex)
		nesColorIndex := p.memory.Read(paletteAddr)

		return SpritePixel{
			colorIndex:   colorIndex,
			paletteIndex: paletteIndex,
			rgbColor:     p.NESColorToRGB(nesColorIndex),
			spriteIndex:  int8(i),
			priority:     (attributes & 0x20) != 0,
		}
	}

	return SpritePixel{spriteIndex: -1, transparent: true}
}

func (p *PPU) getSpritePixelColor(tileIndex uint8, pixelX, pixelY int) uint8 {
	if pixelX < 0 || pixelX >= 8 || pixelY < 0 || pixelY >= 16 {
		return 0
	}

	var patternTableBase uint16
	if p.ppuCtrl&0x20 == 0 {
		if p.ppuCtrl&0x08 != 0 {
			patternTableBase = 0x1000
		}
	} else {
		if tileIndex&0x01 != 0 {
			patternTableBase = 0x1000
		}
		tileIndex &= 0xFE
		if pixelY >= 8 {
			tileIndex++
			pixelY -= 8
		}
	}

	patternAddr := patternTableBase + uint16(tileIndex)*16 + uint16(pixelY)
	if patternAddr >= 0x2000 || patternAddr+0x08 >= 0x2000 {
		return 0
	}

	patternLow := p.memory.Read(patternAddr)
	patternHigh := p.memory.Read(patternAddr + 0x08)

	bitShift := 7 - pixelX
	bit0 := (patternLow >> bitShift) & 1
	bit1 := (patternHigh >> bitShift) & 1
	return (bit1 << 1) | bit0
}

func (p *PPU) isOriginalSprite0(secondaryIndex int) bool {
	if secondaryIndex >= int(p.spriteCount) {
		return false
	}
	return p.spriteIndexes[secondaryIndex] == 0
}

// checkSprite0Hit implements the sprite-0-hit flag: it latches once per
// frame, the first time sprite 0 and an opaque background pixel coincide,
// excluding the leftmost 8 pixels under clipping and the rightmost column.
func (p *PPU) checkSprite0Hit(pixelX, pixelY int, spriteColorIndex uint8) {
	if p.sprite0Hit || !p.backgroundEnabled || !p.spritesEnabled {
		return
	}
	if pixelX < 0 || pixelX >= 255 || pixelY < 0 || pixelY >= 240 {
		return
	}
	if pixelX < 8 && (p.ppuMask&0x02 == 0 || p.ppuMask&0x04 == 0) {
		return
	}
	if spriteColorIndex == 0 || spriteColorIndex > 3 {
		return
	}

	background := p.renderBackgroundPixel(pixelX, pixelY)
	if !background.transparent && background.colorIndex != 0 {
		p.sprite0Hit = true
		p.ppuStatus |= 0x40
	}
}

// compositeFinalPixel applies sprite-vs-background priority: a sprite with
// its priority bit set renders behind an opaque background pixel.
func (p *PPU) compositeFinalPixel(background, sprite SpritePixel) uint32 {
	if sprite.transparent {
		if background.transparent {
			return p.NESColorToRGB(p.memory.Read(0x3F00))
		}
		return background.rgbColor
	}
	if background.transparent {
		return sprite.rgbColor
	}
	if sprite.priority && p.backgroundEnabled {
		return background.rgbColor
	}
	return sprite.rgbColor
}

func (p *PPU) updateRenderingFlags() {
	p.backgroundEnabled = (p.ppuMask & 0x08) != 0
	p.spritesEnabled = (p.ppuMask & 0x10) != 0
	p.renderingEnabled = p.backgroundEnabled || p.spritesEnabled
}

func (p *PPU) checkNMI() {
	if (p.ppuCtrl&0x80 != 0) && (p.ppuStatus&0x80 != 0) && p.nmiCallback != nil {
		p.nmiCallback()
	}
}

// writePPUScroll handles the two-write PPUSCROLL protocol ($2005).
func (p *PPU) writePPUScroll(value uint8) {
	if !p.w {
		p.t = (p.t & 0xFFE0) | (uint16(value) >> 3)
		p.x = value & 0x07
		p.w = true
	} else {
		p.t = (p.t & 0x8FFF) | ((uint16(value) & 0x07) << 12)
		p.t = (p.t & 0xFC1F) | ((uint16(value) & 0xF8) << 2)
		p.w = false
	}
}

// writePPUAddr handles the two-write PPUADDR protocol ($2006), sharing the
// write-toggle with PPUSCROLL.
func (p *PPU) writePPUAddr(value uint8) {
	if !p.w {
		p.t = (p.t & 0x80FF) | ((uint16(value) & 0x3F) << 8)
		p.w = true
	} else {
		p.t = (p.t & 0xFF00) | uint16(value)
		p.v = p.t
		p.w = false
	}
}

// readPPUData handles PPUDATA reads ($2007): palette reads are
// unbuffered, everything else reads through a one-access-delayed buffer.
func (p *PPU) readPPUData() uint8 {
	var data uint8

	if p.memory == nil {
		data = 0
	} else if p.v >= 0x3F00 {
		data = p.memory.Read(p.v)
		p.readBuffer = p.memory.Read(p.v & 0x2FFF)
	} else {
		data = p.readBuffer
		p.readBuffer = p.memory.Read(p.v)
	}

	p.advanceVRAMAddress()
	return data
}

// writePPUData handles PPUDATA writes ($2007).
func (p *PPU) writePPUData(value uint8) {
	if p.memory != nil {
		p.memory.Write(p.v, value)
	}
	p.advanceVRAMAddress()
}

func (p *PPU) advanceVRAMAddress() {
	if p.ppuCtrl&0x04 != 0 {
		p.v += 32
	} else {
		p.v++
	}
	p.v &= 0x3FFF
}

// GetFrameBuffer returns the current RGB frame buffer (256x240, row-major).
func (p *PPU) GetFrameBuffer() [256 * 240]uint32 {
	return p.frameBuffer
}

// GetFrameCount returns the number of frames completed.
func (p *PPU) GetFrameCount() uint64 {
	return p.frameCount
}

// SetFrameCount sets the frame counter, used to resynchronize with the bus.
func (p *PPU) SetFrameCount(count uint64) {
	p.frameCount = count
}

// GetScanline returns the current scanline (-1 for pre-render).
func (p *PPU) GetScanline() int {
	return p.scanline
}

// GetCycle returns the current PPU cycle within the scanline.
func (p *PPU) GetCycle() int {
	return p.cycle
}

// IsRenderingEnabled reports whether background or sprite rendering is on.
func (p *PPU) IsRenderingEnabled() bool {
	return p.renderingEnabled
}

// IsVBlank reports whether the vblank flag is currently set.
func (p *PPU) IsVBlank() bool {
	return (p.ppuStatus & 0x80) != 0
}

// GetCycleCount returns the total number of PPU cycles run.
func (p *PPU) GetCycleCount() uint64 {
	return p.cycleCount
}

// ClearFrameBuffer fills the frame buffer with a single color.
func (p *PPU) ClearFrameBuffer(colorValue uint32) {
	for i := range p.frameBuffer {
		p.frameBuffer[i] = colorValue
	}
}

// nesColorPalette is the 2C02's fixed 64-entry NTSC color table.
var nesColorPalette = [64]uint32{
	0xFF666666, 0xFF002A88, 0xFF1412A7, 0xFF3B00A4, 0xFF5C007E, 0xFF6E0040, 0xFF6C0600, 0xFF561D00,
	0xFF333500, 0xFF0B4800, 0xFF005200, 0xFF004F08, 0xFF00404D, 0xFF000000, 0xFF000000, 0xFF000000,
	0xFFADADAD, 0xFF155FD9, 0xFF4240FF, 0xFF7527FE, 0xFFA01ACC, 0xFFB71E7B, 0xFFB53120, 0xFF994E00,
	0xFF6B6D00, 0xFF388700, 0xFF0C9300, 0xFF008F32, 0xFF007C8D, 0xFF000000, 0xFF000000, 0xFF000000,
	0xFFFFFEFF, 0xFF64B0FF, 0xFF9290FF, 0xFFC676FF, 0xFFF36AFF, 0xFFFE6ECC, 0xFFFE8170, 0xFFEA9E22,
	0xFFBCBE00, 0xFF88D800, 0xFF5CE430, 0xFF45E082, 0xFF48CDDE, 0xFF4F4F4F, 0xFF000000, 0xFF000000,
	0xFFFFFEFF, 0xFFC0DFFF, 0xFFD3D2FF, 0xFFE8C8FF, 0xFFFBC2FF, 0xFFFEC4EA, 0xFFFECCC5, 0xFFF7D8A5,
	0xFFE4E594, 0xFFCFF29B, 0xFFBEFBB3, 0xFFB8F8D8, 0xFFB8F8F8, 0xFF000000, 0xFF000000, 0xFF000000,
}

// NESColorToRGB converts a 6-bit NES color index to a packed 0x00RRGGBB value.
func NESColorToRGB(colorIndex uint8) uint32 {
	if colorIndex >= 64 {
		return 0
	}
	return nesColorPalette[colorIndex] & 0x00FFFFFF
}

// NESColorToRGB is the method form, for call sites holding a *PPU.
func (p *PPU) NESColorToRGB(colorIndex uint8) uint32 {
	return NESColorToRGB(colorIndex)
}

// DecodePatternTable renders one 4KB CHR pattern table (table 0 or 1) into
// a 128x128 debug texture, 16x16 tiles of 8x8 pixels each. Tiles are
// decoded at raw 2bpp color index (0-3), shaded as grayscale, since a
// pattern table has no palette of its own until combined with a nametable
// attribute byte — this view exists to let a driver or debugger inspect
// raw CHR data, not to render an in-game frame.
func (p *PPU) DecodePatternTable(table int) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, 128, 128))
	if p.memory == nil {
		return img
	}

	base := uint16(table&1) * 0x1000
	shades := [4]uint8{0x00, 0x55, 0xAA, 0xFF}

	for tileIndex := 0; tileIndex < 256; tileIndex++ {
		tileAddr := base + uint16(tileIndex)*16
		tileX := (tileIndex % 16) * 8
		tileY := (tileIndex / 16) * 8

		for row := 0; row < 8; row++ {
			low := p.memory.Read(tileAddr + uint16(row))
			high := p.memory.Read(tileAddr + 8 + uint16(row))

			for col := 0; col < 8; col++ {
				bit := 7 - col
				colorIndex := ((high >> bit) & 1 << 1) | ((low >> bit) & 1)
				shade := shades[colorIndex]
				img.Set(tileX+col, tileY+row, color.RGBA{R: shade, G: shade, B: shade, A: 0xFF})
			}
		}
	}

	return img
}
