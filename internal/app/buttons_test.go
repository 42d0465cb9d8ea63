package app

import (
	"testing"

	"nescore/internal/graphics"
	"nescore/internal/input"
)

func TestSnapshotButtonsOrder(t *testing.T) {
	c := input.New()
	c.SetButton(input.A, true)
	c.SetButton(input.Right, true)

	snap := snapshotButtons(c)
	want := [8]bool{true, false, false, false, false, false, false, true}
	if snap != want {
		t.Errorf("snapshotButtons = %v, want %v", snap, want)
	}
}

func TestButtonIndex(t *testing.T) {
	cases := []struct {
		button input.Button
		want   int
	}{
		{input.A, 0}, {input.B, 1}, {input.Select, 2}, {input.Start, 3},
		{input.Up, 4}, {input.Down, 5}, {input.Left, 6}, {input.Right, 7},
	}
	for _, tt := range cases {
		if got := buttonIndex(tt.button); got != tt.want {
			t.Errorf("buttonIndex(%v) = %d, want %d", tt.button, got, tt.want)
		}
	}
	if got := buttonIndex(input.Button(0)); got != -1 {
		t.Errorf("buttonIndex(unknown) = %d, want -1", got)
	}
}

func TestGraphicsButtonToInputButton(t *testing.T) {
	if got := graphicsButtonToInputButton(graphics.ButtonStart); got != input.Start {
		t.Errorf("ButtonStart -> %v, want input.Start", got)
	}
	// Unrecognized buttons fall back to A rather than panicking.
	if got := graphicsButtonToInputButton(graphics.Button(255)); got != input.A {
		t.Errorf("unknown button -> %v, want input.A fallback", got)
	}
}

func TestIs2PButton(t *testing.T) {
	if !is2PButton(graphics.Button2A) {
		t.Error("Button2A should be a player-2 button")
	}
	if is2PButton(graphics.ButtonA) {
		t.Error("ButtonA should not be a player-2 button")
	}
}

func TestGet2PButtonIndex(t *testing.T) {
	if got := get2PButtonIndex(graphics.Button2B); got != 1 {
		t.Errorf("Button2B index = %d, want 1", got)
	}
}
