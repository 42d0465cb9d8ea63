package app

import (
	"path/filepath"
	"testing"
)

func TestNewConfigDefaults(t *testing.T) {
	c := NewConfig()

	if c.Window.Width != 800 || c.Window.Height != 600 {
		t.Errorf("window size = %dx%d, want 800x600", c.Window.Width, c.Window.Height)
	}
	if c.Video.Backend != "ebitengine" {
		t.Errorf("default backend = %q, want ebitengine", c.Video.Backend)
	}
	if c.IsLoaded() {
		t.Error("a freshly constructed config should not report loaded")
	}
}

func TestGetWindowResolutionScalesNESResolution(t *testing.T) {
	c := NewConfig()
	c.Window.Scale = 3

	w, h := c.GetWindowResolution()
	if w != 256*3 || h != 240*3 {
		t.Errorf("window resolution = %dx%d, want %dx%d", w, h, 256*3, 240*3)
	}
}

func TestGetAspectRatio(t *testing.T) {
	c := NewConfig()

	c.Video.AspectRatio = "16:9"
	if got := c.GetAspectRatio(); got != float32(16.0/9.0) {
		t.Errorf("16:9 aspect ratio = %v, want %v", got, float32(16.0/9.0))
	}

	c.Video.AspectRatio = "unknown"
	if got := c.GetAspectRatio(); got != float32(4.0/3.0) {
		t.Errorf("unknown aspect ratio should default to 4:3, got %v", got)
	}
}

// LoadFromFile on a path that does not exist writes out a default config
// instead of failing, so first-run startup never needs a pre-seeded file.
func TestLoadFromFileCreatesDefaultWhenMissing(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.json")

	c := NewConfig()
	if err := c.LoadFromFile(path); err != nil {
		t.Fatalf("LoadFromFile on a missing path should create a default, got error: %v", err)
	}

	reloaded := NewConfig()
	if err := reloaded.LoadFromFile(path); err != nil {
		t.Fatalf("LoadFromFile on the now-existing path failed: %v", err)
	}
	if !reloaded.IsLoaded() {
		t.Error("config loaded from an existing file should report loaded")
	}
	if reloaded.Window.Width != 800 {
		t.Errorf("reloaded window width = %d, want 800 (default)", reloaded.Window.Width)
	}
}

// validate() clamps out-of-range values back to sane defaults instead of
// rejecting the whole file.
func TestValidateClampsOutOfRangeValues(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.json")

	c := NewConfig()
	c.Video.Brightness = 10.0
	c.Emulation.FrameRate = -1
	if err := c.SaveToFile(path); err != nil {
		t.Fatalf("SaveToFile failed: %v", err)
	}

	loaded := NewConfig()
	if err := loaded.LoadFromFile(path); err != nil {
		t.Fatalf("LoadFromFile failed: %v", err)
	}
	if loaded.Video.Brightness != 1.0 {
		t.Errorf("out-of-range brightness = %v, want clamped to 1.0", loaded.Video.Brightness)
	}
	if loaded.Emulation.FrameRate != 60.0 {
		t.Errorf("non-positive frame rate = %v, want clamped to 60.0", loaded.Emulation.FrameRate)
	}
}

func TestCloneIsIndependentCopy(t *testing.T) {
	c := NewConfig()
	clone := c.Clone()

	clone.Window.Width = 1920
	if c.Window.Width == 1920 {
		t.Error("mutating the clone should not affect the original")
	}
}
