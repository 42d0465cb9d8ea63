// Package main implements nesdbg, an interactive terminal debugger for the
// CPU core: a hex dump of memory around the program counter, a register/
// flag view, and a struct-dump of the decoded instruction under PC. Space
// or 'j' single-steps one instruction; 'q' quits.
package main

import (
	"fmt"
	"os"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/davecgh/go-spew/spew"

	"nescore/internal/bus"
	"nescore/internal/cartridge"
)

func main() {
	if len(os.Args) < 2 {
		fmt.Println("usage: nesdbg <rom-file>")
		os.Exit(1)
	}

	romPath := os.Args[1]
	cart, err := cartridge.LoadFile(romPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load cartridge: %v\n", err)
		os.Exit(1)
	}

	b := bus.New()
	b.LoadCartridge(cart)

	m, err := tea.NewProgram(model{bus: b}).Run()
	if err != nil {
		fmt.Fprintf(os.Stderr, "debugger error: %v\n", err)
		os.Exit(1)
	}

	if final, ok := m.(model); ok && final.err != nil {
		fmt.Println("Error:", final.err)
	}
}

type model struct {
	bus    *bus.Bus
	prevPC uint16
	err    error
}

func (m model) Init() tea.Cmd {
	return nil
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			return m, tea.Quit

		case " ", "j":
			m.prevPC = m.bus.CPU.PC
			stepInstruction(m.bus)
		}
	}
	return m, nil
}

// stepInstruction advances the bus one full CPU cycle, then keeps stepping
// until the CPU has retired the cycles owed by that instruction, landing on
// an instruction boundary.
func stepInstruction(b *bus.Bus) {
	b.Step()
	for b.CPU.PendingCycles > 0 {
		b.Step()
	}
}

func (m model) renderPage(start uint16) string {
	s := fmt.Sprintf("%04x | ", start)
	for i := 0; i < 16; i++ {
		addr := start + uint16(i)
		value := m.bus.Memory.Read(addr)
		if addr == m.bus.CPU.PC {
			s += fmt.Sprintf("[%02x] ", value)
		} else {
			s += fmt.Sprintf(" %02x  ", value)
		}
	}
	return s
}

func (m model) pageTable() string {
	header := "addr | "
	for b := 0; b < 16; b++ {
		header += fmt.Sprintf("  %01x  ", b)
	}

	pc := m.bus.CPU.PC
	base := pc - (pc % 16)

	rows := []string{header}
	for i := -2; i <= 2; i++ {
		rows = append(rows, m.renderPage(base+uint16(i*16)))
	}
	return strings.Join(rows, "\n")
}

func (m model) status() string {
	cpu := m.bus.CPU
	var flags string
	for _, flag := range []bool{cpu.N, cpu.V, true, cpu.B, cpu.D, cpu.I, cpu.Z, cpu.C} {
		if flag {
			flags += "/ "
		} else {
			flags += "  "
		}
	}

	return fmt.Sprintf(`
PC: %04x (was %04x)
 A: %02x
 X: %02x
 Y: %02x
SP: %02x
Cycles: %d
N V _ B D I Z C
`,
		cpu.PC, m.prevPC,
		cpu.A, cpu.X, cpu.Y, cpu.SP,
		cpu.TotalCycles(),
	) + flags
}

func (m model) View() string {
	opcode := m.bus.Memory.Read(m.bus.CPU.PC)
	instruction := m.bus.CPU.LookupInstruction(opcode)

	return lipgloss.JoinVertical(
		lipgloss.Left,
		lipgloss.JoinHorizontal(
			lipgloss.Top,
			m.pageTable(),
			m.status(),
		),
		"",
		spew.Sdump(instruction),
		"space/j: step   q: quit",
	)
}
