package input

import "testing"

func TestSetButtonsOrder(t *testing.T) {
	c := New()
	c.SetButtons([8]bool{true, false, false, true, false, false, false, true})

	if !c.IsPressed(ButtonA) {
		t.Error("A should be pressed")
	}
	if c.IsPressed(ButtonB) {
		t.Error("B should not be pressed")
	}
	if !c.IsPressed(ButtonStart) {
		t.Error("Start should be pressed")
	}
	if !c.IsPressed(ButtonRight) {
		t.Error("Right should be pressed")
	}
}

// Strobing high latches button state continuously and pins the shift
// register to bit 0 (button A) for every read.
func TestStrobeHighPinsReadToButtonA(t *testing.T) {
	c := New()
	c.SetButton(ButtonA, true)
	c.SetButton(ButtonB, true)
	c.Write(1) // strobe high

	for i := 0; i < 3; i++ {
		if got := c.Read(); got != 1 {
			t.Errorf("read %d while strobed high = %d, want 1 (A)", i, got)
		}
	}
}

// On the strobe's falling edge the shift register freezes the current
// button snapshot and reads shift out A, B, Select, Start, Up, Down, Left,
// Right in that order, then 0s past the 8th bit.
func TestShiftRegisterOrderAndOverrun(t *testing.T) {
	c := New()
	c.SetButtons([8]bool{true, false, true, false, false, false, false, false}) // A, Select
	c.Write(1)
	c.Write(0) // falling edge: snapshot and shift register freeze

	want := []uint8{1, 0, 1, 0, 0, 0, 0, 0}
	for i, w := range want {
		if got := c.Read(); got != w {
			t.Errorf("bit %d = %d, want %d", i, got, w)
		}
	}

	// Reads past the 8th bit return 0.
	for i := 0; i < 3; i++ {
		if got := c.Read(); got != 0 {
			t.Errorf("overrun read %d = %d, want 0", i, got)
		}
	}
}

func TestResetClearsState(t *testing.T) {
	c := New()
	c.SetButton(ButtonA, true)
	c.Write(1)
	c.Write(0)
	c.Read()

	c.Reset()

	if c.IsPressed(ButtonA) {
		t.Error("button state should be cleared after Reset")
	}
	if c.GetBitPosition() != 0 {
		t.Errorf("bit position = %d, want 0 after Reset", c.GetBitPosition())
	}
}

// $4017's upper bits read back with bit 6 set, mimicking the second port's
// open-bus capacitance on real hardware.
func TestController2OpenBusBit(t *testing.T) {
	is := NewInputState()
	if got := is.Read(0x4017); got&0x40 == 0 {
		t.Errorf("Read(0x4017) = %#02x, want bit 6 set", got)
	}
}

// The strobe line at $4016 is shared: writing it latches both controllers
// together even though each shifts out independently on its own port.
func TestSharedStrobeLatchesBothControllers(t *testing.T) {
	is := NewInputState()
	is.Controller1.SetButton(ButtonA, true)
	is.Controller2.SetButton(ButtonB, true)

	is.Write(0x4016, 1)
	is.Write(0x4016, 0)

	if got := is.Read(0x4016); got != 1 {
		t.Errorf("controller 1 first bit = %d, want 1 (A)", got)
	}
	if got := is.Read(0x4017) & 1; got != 0 {
		t.Errorf("controller 2 first bit = %d, want 0 (A not pressed)", got)
	}
	if got := is.Read(0x4017) & 1; got != 1 {
		t.Errorf("controller 2 second bit = %d, want 1 (B)", got)
	}
}
