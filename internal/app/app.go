// Package app implements the main NES emulator application with GUI support.
package app

import (
	"errors"
	"fmt"
	"log"
	"path/filepath"
	"time"

	"nescore/internal/bus"
	"nescore/internal/cartridge"
	"nescore/internal/graphics"
	"nescore/internal/input"
)

// Application ties together the bus, a graphics backend, and input
// handling into a runnable program.
type Application struct {
	bus *bus.Bus

	graphicsBackend graphics.Backend
	window          graphics.Window
	videoProcessor  *graphics.VideoProcessor

	config   *Config
	emulator *Emulator

	running     bool
	paused      bool
	initialized bool
	headless    bool

	frameCount          uint64
	startTime           time.Time
	lastFPSTime         time.Time
	frameCountAtLastFPS uint64
	currentFPS          float64

	romPath   string
	cartridge *cartridge.Cartridge

	lastESCTime time.Time

	lastController1State  [8]bool
	lastController2State  [8]bool
	inputStateInitialized bool
}

// ApplicationError represents application-specific errors.
type ApplicationError struct {
	Component string
	Operation string
	Err       error
}

func (e *ApplicationError) Error() string {
	return fmt.Sprintf("application %s error during %s: %v", e.Component, e.Operation, e.Err)
}

// NewApplication creates a new NES emulator application.
func NewApplication(configPath string) (*Application, error) {
	return NewApplicationWithMode(configPath, false)
}

// NewApplicationWithMode creates a new application, optionally in headless
// mode (no window, no graphics backend beyond a frame-buffer sink).
func NewApplicationWithMode(configPath string, headless bool) (*Application, error) {
	app := &Application{
		config:      NewConfig(),
		running:     false,
		paused:      false,
		initialized: false,
		headless:    headless,
		startTime:   time.Now(),
		lastFPSTime: time.Now(),
	}

	if configPath != "" {
		if err := app.config.LoadFromFile(configPath); err != nil {
			log.Printf("could not load config from %s, using defaults: %v", configPath, err)
		}
	}

	if err := app.initializeComponents(headless); err != nil {
		return nil, &ApplicationError{
			Component: "initialization",
			Operation: "component setup",
			Err:       err,
		}
	}

	return app, nil
}

func (app *Application) initializeComponents(headless bool) error {
	app.bus = bus.New()

	if err := app.initializeGraphicsBackend(headless); err != nil {
		return fmt.Errorf("failed to initialize graphics backend: %v", err)
	}

	app.emulator = NewEmulator(app.bus, app.config)
	app.initialized = true
	return nil
}

func (app *Application) initializeGraphicsBackend(headless bool) error {
	var backendType graphics.BackendType
	if headless {
		backendType = graphics.BackendHeadless
	} else {
		switch app.config.Video.Backend {
		case "ebitengine":
			backendType = graphics.BackendEbitengine
		case "sdl2":
			backendType = graphics.BackendSDL2
		case "headless":
			backendType = graphics.BackendHeadless
		default:
			backendType = graphics.BackendEbitengine
		}
	}

	var err error
	app.graphicsBackend, err = graphics.CreateBackend(backendType)
	if err != nil {
		return fmt.Errorf("failed to create graphics backend: %v", err)
	}

	graphicsConfig := graphics.Config{
		WindowTitle:  "gones - Go NES Emulator",
		WindowWidth:  app.config.Window.Width,
		WindowHeight: app.config.Window.Height,
		Fullscreen:   app.config.Window.Fullscreen,
		VSync:        app.config.Video.VSync,
		Filter:       app.config.Video.Filter,
		AspectRatio:  app.config.Video.AspectRatio,
		Headless:     headless,
		Debug:        app.config.Debug.EnableLogging,
	}

	if err := app.graphicsBackend.Initialize(graphicsConfig); err != nil {
		if backendType != graphics.BackendHeadless {
			log.Printf("%s backend failed (%v), falling back to headless mode", backendType, err)
			app.graphicsBackend, err = graphics.CreateBackend(graphics.BackendHeadless)
			if err != nil {
				return fmt.Errorf("failed to create fallback headless backend: %v", err)
			}
			graphicsConfig.Headless = true
			if err := app.graphicsBackend.Initialize(graphicsConfig); err != nil {
				return fmt.Errorf("failed to initialize fallback headless backend: %v", err)
			}
		} else {
			return fmt.Errorf("failed to initialize graphics backend: %v", err)
		}
	}

	if !headless && !app.graphicsBackend.IsHeadless() {
		app.window, err = app.graphicsBackend.CreateWindow(
			graphicsConfig.WindowTitle,
			graphicsConfig.WindowWidth,
			graphicsConfig.WindowHeight,
		)
		if err != nil {
			return fmt.Errorf("failed to create window: %v", err)
		}
	}

	app.videoProcessor = graphics.NewVideoProcessor(
		app.config.Video.Brightness,
		app.config.Video.Contrast,
		app.config.Video.Saturation,
	)

	return nil
}

// LoadROM loads a ROM file into the emulator.
func (app *Application) LoadROM(romPath string) error {
	if !app.initialized {
		return errors.New("application not initialized")
	}

	cart, err := cartridge.LoadFile(romPath)
	if err != nil {
		return &ApplicationError{Component: "cartridge", Operation: "load ROM", Err: err}
	}

	app.cartridge = cart
	app.romPath = romPath

	app.bus.LoadCartridge(cart)
	app.bus.Reset()

	if app.window != nil {
		app.window.SetTitle(fmt.Sprintf("gones - %s", filepath.Base(romPath)))
	}

	app.emulator.Start()
	return nil
}

// Run starts the main application loop.
func (app *Application) Run() error {
	if !app.initialized {
		return errors.New("application not initialized")
	}

	app.running = true
	app.startTime = time.Now()
	app.lastFPSTime = time.Now()

	if app.graphicsBackend.GetName() == "Ebitengine" && app.window != nil {
		if ebitengineWindow, ok := graphics.AsEbitengineWindow(app.window); ok {
			ebitengineWindow.SetEmulatorUpdateFunc(func() error {
				if err := app.processInput(); err != nil && app.config.Debug.EnableLogging {
					log.Printf("input processing error: %v", err)
				}
				if err := app.updateEmulator(); err != nil {
					return err
				}
				if err := app.render(); err != nil {
					return err
				}
				app.updateFPS()

				if app.window != nil && app.window.ShouldClose() {
					app.Stop()
				}
				return nil
			})
			return ebitengineWindow.Run()
		}
	}

	for app.running {
		if err := app.processInput(); err != nil && app.config.Debug.EnableLogging {
			log.Printf("input processing error: %v", err)
		}

		if err := app.updateEmulator(); err != nil && app.config.Debug.EnableLogging {
			log.Printf("emulator update error: %v", err)
		}

		if err := app.render(); err != nil && app.config.Debug.EnableLogging {
			log.Printf("render error: %v", err)
		}

		app.updateFPS()

		if app.window != nil && app.window.ShouldClose() {
			app.Stop()
		}

		time.Sleep(16 * time.Millisecond) // ~60 FPS
	}

	return nil
}

func (app *Application) updateEmulator() error {
	if !app.paused && app.cartridge != nil {
		return app.emulator.Update()
	}
	return nil
}

func (app *Application) processInput() error {
	if app.window == nil {
		return nil
	}

	events := app.window.PollEvents()
	if len(events) == 0 {
		return nil
	}

	var controller1Changed, controller2Changed bool
	controller1Buttons := app.lastController1State
	controller2Buttons := app.lastController2State

	if !app.inputStateInitialized && app.bus != nil && app.cartridge != nil {
		if inputState := app.bus.GetInputState(); inputState != nil {
			if inputState.Controller1 != nil {
				controller1Buttons = snapshotButtons(inputState.Controller1)
				app.lastController1State = controller1Buttons
			}
			if inputState.Controller2 != nil {
				controller2Buttons = snapshotButtons(inputState.Controller2)
				app.lastController2State = controller2Buttons
			}
		}
		app.inputStateInitialized = true
	}

	for _, event := range events {
		switch event.Type {
		case graphics.InputEventTypeQuit:
			app.Stop()
			return nil

		case graphics.InputEventTypeButton:
			if app.handleSpecialInput(event) {
				continue
			}
			if app.cartridge == nil {
				continue
			}
			if is2PButton(event.Button) {
				if idx := get2PButtonIndex(event.Button); idx >= 0 {
					controller2Buttons[idx] = event.Pressed
					controller2Changed = true
				}
			} else if idx := buttonIndex(graphicsButtonToInputButton(event.Button)); idx >= 0 {
				controller1Buttons[idx] = event.Pressed
				controller1Changed = true
			}
		}
	}

	if controller1Changed && app.bus != nil && app.cartridge != nil && controller1Buttons != app.lastController1State {
		app.bus.SetControllerButtons(0, controller1Buttons)
		app.lastController1State = controller1Buttons
	}

	if controller2Changed && app.bus != nil && app.cartridge != nil && controller2Buttons != app.lastController2State {
		app.bus.SetControllerButtons(2, controller2Buttons)
		app.lastController2State = controller2Buttons
	}

	return nil
}

func snapshotButtons(c *input.Controller) [8]bool {
	return [8]bool{
		c.IsPressed(input.A), c.IsPressed(input.B),
		c.IsPressed(input.Select), c.IsPressed(input.Start),
		c.IsPressed(input.Up), c.IsPressed(input.Down),
		c.IsPressed(input.Left), c.IsPressed(input.Right),
	}
}

func buttonIndex(button input.Button) int {
	switch button {
	case input.A:
		return 0
	case input.B:
		return 1
	case input.Select:
		return 2
	case input.Start:
		return 3
	case input.Up:
		return 4
	case input.Down:
		return 5
	case input.Left:
		return 6
	case input.Right:
		return 7
	default:
		return -1
	}
}

// handleSpecialInput handles input combinations the application reserves
// for itself rather than forwarding to the controller (quit confirmation).
func (app *Application) handleSpecialInput(event graphics.InputEvent) bool {
	if !event.Pressed {
		return false
	}

	if event.Type == graphics.InputEventTypeKey && event.Key == graphics.KeyEscape {
		now := time.Now()
		if !app.lastESCTime.IsZero() && now.Sub(app.lastESCTime) < 3*time.Second {
			app.Stop()
			return true
		}
		app.lastESCTime = now
		return true
	}

	if event.Type == graphics.InputEventTypeKey && event.Key != graphics.KeyEscape {
		app.lastESCTime = time.Time{}
	}

	return false
}

func graphicsButtonToInputButton(gButton graphics.Button) input.Button {
	switch gButton {
	case graphics.ButtonA:
		return input.A
	case graphics.ButtonB:
		return input.B
	case graphics.ButtonSelect:
		return input.Select
	case graphics.ButtonStart:
		return input.Start
	case graphics.ButtonUp:
		return input.Up
	case graphics.ButtonDown:
		return input.Down
	case graphics.ButtonLeft:
		return input.Left
	case graphics.ButtonRight:
		return input.Right
	default:
		return input.A
	}
}

func is2PButton(gButton graphics.Button) bool {
	switch gButton {
	case graphics.Button2A, graphics.Button2B, graphics.Button2Select, graphics.Button2Start,
		graphics.Button2Up, graphics.Button2Down, graphics.Button2Left, graphics.Button2Right:
		return true
	default:
		return false
	}
}

func get2PButtonIndex(gButton graphics.Button) int {
	switch gButton {
	case graphics.Button2A:
		return 0
	case graphics.Button2B:
		return 1
	case graphics.Button2Select:
		return 2
	case graphics.Button2Start:
		return 3
	case graphics.Button2Up:
		return 4
	case graphics.Button2Down:
		return 5
	case graphics.Button2Left:
		return 6
	case graphics.Button2Right:
		return 7
	default:
		return -1
	}
}

// SetControllerButtons sets all button states at once.
func (app *Application) SetControllerButtons(controller int, buttons [8]bool) {
	if app.bus != nil {
		app.bus.SetControllerButtons(controller, buttons)
	}
}

// GetBus returns the bus for direct access (cmd/gones headless mode).
func (app *Application) GetBus() *bus.Bus {
	return app.bus
}

func (app *Application) render() error {
	if app.window == nil {
		return nil
	}

	if app.cartridge != nil {
		frameBufferSlice := app.bus.GetFrameBuffer()
		if app.videoProcessor != nil {
			frameBufferSlice = app.videoProcessor.ProcessFrame(frameBufferSlice)
		}

		var frameBuffer [256 * 240]uint32
		copy(frameBuffer[:], frameBufferSlice)
		if err := app.window.RenderFrame(frameBuffer); err != nil {
			return fmt.Errorf("failed to render NES frame: %v", err)
		}
	}

	app.window.SwapBuffers()
	return nil
}

func (app *Application) updateFPS() {
	app.frameCount++
	now := time.Now()
	if now.Sub(app.lastFPSTime) >= time.Second {
		elapsed := now.Sub(app.lastFPSTime).Seconds()
		app.currentFPS = float64(app.frameCount-app.frameCountAtLastFPS) / elapsed
		app.lastFPSTime = now
		app.frameCountAtLastFPS = app.frameCount
	}
}

// Stop stops the application.
func (app *Application) Stop() {
	app.running = false
}

// Pause pauses the emulator.
func (app *Application) Pause() {
	app.paused = true
}

// Resume resumes the emulator.
func (app *Application) Resume() {
	app.paused = false
}

// TogglePause toggles pause state.
func (app *Application) TogglePause() {
	app.paused = !app.paused
}

// Reset resets the emulator.
func (app *Application) Reset() {
	if app.bus != nil {
		app.bus.Reset()
	}
}

// IsRunning returns whether the application is running.
func (app *Application) IsRunning() bool {
	return app.running
}

// IsPaused returns whether the emulator is paused.
func (app *Application) IsPaused() bool {
	return app.paused
}

// GetFPS returns the current FPS.
func (app *Application) GetFPS() float64 {
	return app.currentFPS
}

// GetFrameCount returns the total frame count.
func (app *Application) GetFrameCount() uint64 {
	return app.frameCount
}

// GetUptime returns the application uptime.
func (app *Application) GetUptime() time.Duration {
	return time.Since(app.startTime)
}

// GetROMPath returns the currently loaded ROM path.
func (app *Application) GetROMPath() string {
	return app.romPath
}

// GetConfig returns the application configuration.
func (app *Application) GetConfig() *Config {
	return app.config
}

// ApplyDebugSettings applies debug settings to the CPU tracer, used by
// cmd/gones's -debug flag.
func (app *Application) ApplyDebugSettings() {
	if app.config == nil || app.bus == nil {
		return
	}
	app.bus.EnableCPUDebug(app.config.Debug.CPUTracing)
}

// Cleanup releases all resources and shuts down the application.
func (app *Application) Cleanup() error {
	var lastErr error

	if app.emulator != nil {
		if err := app.emulator.Cleanup(); err != nil {
			lastErr = err
			log.Printf("emulator cleanup error: %v", err)
		}
	}

	if app.window != nil {
		if err := app.window.Cleanup(); err != nil {
			lastErr = err
			log.Printf("window cleanup error: %v", err)
		}
	}

	if app.graphicsBackend != nil {
		if err := app.graphicsBackend.Cleanup(); err != nil {
			lastErr = err
			log.Printf("graphics backend cleanup error: %v", err)
		}
	}

	app.initialized = false
	return lastErr
}
