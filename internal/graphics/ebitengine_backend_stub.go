//go:build headless
// +build headless

package graphics

import "fmt"

// EbitengineBackend stub for headless builds
type EbitengineBackend struct{}

// EbitengineWindow stub for headless builds  
type EbitengineWindow struct{}

// NewEbitengineBackend creates a stub backend for headless builds
func NewEbitengineBackend() Backend {
	return &EbitengineBackend{}
}

// Stub implementations for EbitengineBackend
func (b *EbitengineBackend) Initialize(config Config) error {
	return fmt.Errorf("Ebitengine backend not available in headless build")
}

func (b *EbitengineBackend) CreateWindow(title string, width, height int) (Window, error) {
	return nil, fmt.Errorf("Ebitengine backend not available in headless build")
}

func (b *EbitengineBackend) Cleanup() error {
	return nil
}

func (b *EbitengineBackend) IsHeadless() bool {
	return true
}

func (b *EbitengineBackend) GetName() string {
	return "Ebitengine-Stub"
}

// Stub implementations for EbitengineWindow
func (w *EbitengineWindow) SetTitle(title string) {}
func (w *EbitengineWindow) GetSize() (width, height int) { return 0, 0 }
func (w *EbitengineWindow) ShouldClose() bool { return true }
func (w *EbitengineWindow) SwapBuffers() {}
func (w *EbitengineWindow) PollEvents() []InputEvent { return nil }
func (w *EbitengineWindow) RenderFrame(frameBuffer [256 * 240]uint32) error {
	return fmt.Errorf("Ebitengine backend not available in headless build")
}
func (w *EbitengineWindow) Cleanup() error { return nil }
func (w *EbitengineWindow) Run() error {
	return fmt.Errorf("Ebitengine backend not available in headless build")
}
func (w *EbitengineWindow) SetEmulatorUpdateFunc(updateFunc func() error) {}

// SDL2Backend stub for headless builds
type SDL2Backend struct{}

// SDL2Window stub for headless builds
type SDL2Window struct{}

// NewSDL2Backend creates a stub backend for headless builds
func NewSDL2Backend() Backend {
	return &SDL2Backend{}
}

func (b *SDL2Backend) Initialize(config Config) error {
	return fmt.Errorf("SDL2 backend not available in headless build")
}

func (b *SDL2Backend) CreateWindow(title string, width, height int) (Window, error) {
	return nil, fmt.Errorf("SDL2 backend not available in headless build")
}

func (b *SDL2Backend) Cleanup() error { return nil }
func (b *SDL2Backend) IsHeadless() bool { return true }
func (b *SDL2Backend) GetName() string { return "SDL2-Stub" }

func (w *SDL2Window) SetTitle(title string)                              {}
func (w *SDL2Window) GetSize() (width, height int)                       { return 0, 0 }
func (w *SDL2Window) ShouldClose() bool                                  { return true }
func (w *SDL2Window) SwapBuffers()                                       {}
func (w *SDL2Window) PollEvents() []InputEvent                           { return nil }
func (w *SDL2Window) RenderFrame(frameBuffer [256 * 240]uint32) error {
	return fmt.Errorf("SDL2 backend not available in headless build")
}
func (w *SDL2Window) Cleanup() error { return nil }
func (w *SDL2Window) Run() error {
	return fmt.Errorf("SDL2 backend not available in headless build")
}
func (w *SDL2Window) SetEmulatorUpdateFunc(updateFunc func() error) {}