//go:build !headless
// +build !headless

package graphics

import (
	"fmt"
	"unsafe"

	"github.com/veandco/go-sdl2/sdl"
)

// SDL2Backend implements the Backend interface using go-sdl2.
type SDL2Backend struct {
	initialized bool
	config      Config
}

// SDL2Window implements the Window interface for SDL2.
type SDL2Window struct {
	backend  *SDL2Backend
	title    string
	width    int
	height   int
	window   *sdl.Window
	renderer *sdl.Renderer
	texture  *sdl.Texture
	running  bool
	pixels   []byte

	emulatorUpdateFunc func() error
}

// NewSDL2Backend creates a new SDL2 graphics backend.
func NewSDL2Backend() Backend {
	return &SDL2Backend{}
}

// Initialize initializes SDL2's video subsystem.
func (b *SDL2Backend) Initialize(config Config) error {
	if b.initialized {
		return fmt.Errorf("SDL2 backend already initialized")
	}

	if config.Headless {
		return fmt.Errorf("SDL2 backend does not support headless mode")
	}

	if err := sdl.Init(sdl.INIT_VIDEO); err != nil {
		return fmt.Errorf("failed to initialize SDL2: %v", err)
	}

	b.config = config
	b.initialized = true
	return nil
}

// CreateWindow creates an SDL2 window, renderer, and streaming texture sized
// for the NES's native 256x240 resolution.
func (b *SDL2Backend) CreateWindow(title string, width, height int) (Window, error) {
	if !b.initialized {
		return nil, fmt.Errorf("backend not initialized")
	}

	flags := uint32(sdl.WINDOW_SHOWN)
	if b.config.Fullscreen {
		flags |= sdl.WINDOW_FULLSCREEN_DESKTOP
	}

	sdlWindow, err := sdl.CreateWindow(
		title,
		sdl.WINDOWPOS_UNDEFINED,
		sdl.WINDOWPOS_UNDEFINED,
		int32(width),
		int32(height),
		flags,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create window: %v", err)
	}

	rendererFlags := uint32(sdl.RENDERER_ACCELERATED)
	if b.config.VSync {
		rendererFlags |= sdl.RENDERER_PRESENTVSYNC
	}

	renderer, err := sdl.CreateRenderer(sdlWindow, -1, rendererFlags)
	if err != nil {
		sdlWindow.Destroy()
		return nil, fmt.Errorf("failed to create renderer: %v", err)
	}

	texture, err := renderer.CreateTexture(
		sdl.PIXELFORMAT_RGB24,
		sdl.TEXTUREACCESS_STREAMING,
		256, 240,
	)
	if err != nil {
		renderer.Destroy()
		sdlWindow.Destroy()
		return nil, fmt.Errorf("failed to create texture: %v", err)
	}

	win := &SDL2Window{
		backend:  b,
		title:    title,
		width:    width,
		height:   height,
		window:   sdlWindow,
		renderer: renderer,
		texture:  texture,
		running:  true,
		pixels:   make([]byte, 256*240*3),
	}

	return win, nil
}

// Cleanup shuts down SDL2.
func (b *SDL2Backend) Cleanup() error {
	if b.initialized {
		sdl.Quit()
		b.initialized = false
	}
	return nil
}

// IsHeadless always returns false for the SDL2 backend.
func (b *SDL2Backend) IsHeadless() bool {
	return false
}

// GetName returns the backend name.
func (b *SDL2Backend) GetName() string {
	return "SDL2"
}

// SDL2Window implementation

// SetTitle sets the window title.
func (w *SDL2Window) SetTitle(title string) {
	w.title = title
	w.window.SetTitle(title)
}

// GetSize returns window dimensions.
func (w *SDL2Window) GetSize() (width, height int) {
	return w.width, w.height
}

// ShouldClose returns true once a quit event has been observed.
func (w *SDL2Window) ShouldClose() bool {
	return !w.running
}

// SwapBuffers presents the renderer's back buffer.
func (w *SDL2Window) SwapBuffers() {
	w.renderer.Present()
}

// PollEvents drains the SDL2 event queue and translates it into InputEvents.
func (w *SDL2Window) PollEvents() []InputEvent {
	var events []InputEvent

	for sdlEvent := sdl.PollEvent(); sdlEvent != nil; sdlEvent = sdl.PollEvent() {
		switch e := sdlEvent.(type) {
		case *sdl.QuitEvent:
			w.running = false
			events = append(events, InputEvent{Type: InputEventTypeQuit, Pressed: true})

		case *sdl.KeyboardEvent:
			pressed := e.Type == sdl.KEYDOWN

			if key, ok := sdlKeyMappings[e.Keysym.Sym]; ok {
				events = append(events, InputEvent{Type: InputEventTypeKey, Key: key, Pressed: pressed})

				if button, ok := sdlButtonMappings[key]; ok {
					events = append(events, InputEvent{Type: InputEventTypeButton, Button: button, Pressed: pressed})
				}
			}

			if pressed && e.Keysym.Sym == sdl.K_ESCAPE {
				events = append(events, InputEvent{Type: InputEventTypeQuit, Pressed: true})
			}
		}
	}

	return events
}

// RenderFrame converts a NES frame buffer to RGB24 and uploads it to the
// streaming texture, then copies it to the renderer scaled to fill the
// window.
func (w *SDL2Window) RenderFrame(frameBuffer [256 * 240]uint32) error {
	for i := 0; i < 256*240; i++ {
		pixel := frameBuffer[i]
		w.pixels[i*3+0] = uint8((pixel >> 16) & 0xFF)
		w.pixels[i*3+1] = uint8((pixel >> 8) & 0xFF)
		w.pixels[i*3+2] = uint8(pixel & 0xFF)
	}

	if err := w.texture.Update(nil, unsafe.Pointer(&w.pixels[0]), 256*3); err != nil {
		return fmt.Errorf("failed to update texture: %v", err)
	}

	w.renderer.Clear()
	w.renderer.Copy(w.texture, nil, nil)
	return nil
}

// Cleanup destroys the texture, renderer, and window.
func (w *SDL2Window) Cleanup() error {
	w.running = false
	if w.texture != nil {
		w.texture.Destroy()
	}
	if w.renderer != nil {
		w.renderer.Destroy()
	}
	if w.window != nil {
		w.window.Destroy()
	}
	return nil
}

// Run drives a simple poll/update/render loop until the window closes. The
// application's generic (non-Ebitengine) main loop does not call it; that
// loop polls and renders through the Window interface itself.
func (w *SDL2Window) Run() error {
	for w.running {
		events := w.PollEvents()
		for _, event := range events {
			if event.Type == InputEventTypeQuit {
				w.running = false
			}
		}

		if w.emulatorUpdateFunc != nil {
			if err := w.emulatorUpdateFunc(); err != nil {
				return err
			}
		}

		w.SwapBuffers()
		sdl.Delay(16)
	}

	return nil
}

// SetEmulatorUpdateFunc sets the per-frame emulator update callback.
func (w *SDL2Window) SetEmulatorUpdateFunc(updateFunc func() error) {
	w.emulatorUpdateFunc = updateFunc
}

var sdlKeyMappings = map[sdl.Keycode]Key{
	sdl.K_ESCAPE:    KeyEscape,
	sdl.K_RETURN:    KeyEnter,
	sdl.K_SPACE:     KeySpace,
	sdl.K_UP:        KeyUp,
	sdl.K_DOWN:      KeyDown,
	sdl.K_LEFT:      KeyLeft,
	sdl.K_RIGHT:     KeyRight,
	sdl.K_w:         KeyW,
	sdl.K_a:         KeyA,
	sdl.K_s:         KeyS,
	sdl.K_d:         KeyD,
	sdl.K_j:         KeyJ,
	sdl.K_k:         KeyK,
	sdl.K_x:         KeyX,
	sdl.K_z:         KeyZ,
	sdl.K_1:         Key1,
	sdl.K_2:         Key2,
	sdl.K_3:         Key3,
	sdl.K_4:         Key4,
	sdl.K_5:         Key5,
	sdl.K_6:         Key6,
	sdl.K_7:         Key7,
	sdl.K_8:         Key8,
}

var sdlButtonMappings = map[Key]Button{
	KeyUp:    ButtonUp,
	KeyDown:  ButtonDown,
	KeyLeft:  ButtonLeft,
	KeyRight: ButtonRight,
	KeyW:     ButtonUp,
	KeyS:     ButtonDown,
	KeyA:     ButtonLeft,
	KeyD:     ButtonRight,
	KeyJ:     ButtonA,
	KeyK:     ButtonB,
	KeyEnter: ButtonStart,
	KeySpace: ButtonSelect,
	Key1:     Button2Up,
	Key2:     Button2Down,
	Key3:     Button2Left,
	Key4:     Button2Right,
	Key5:     Button2A,
	Key6:     Button2B,
	Key7:     Button2Start,
	Key8:     Button2Select,
}
