package render

import (
	"io"
	"time"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

// FrameBufferProperties is what the application asks of the window's
// framebuffer. It is owned by the caller and only read here.
type FrameBufferProperties struct {
	ColorBits    int  `yaml:"color_bits"`
	AlphaBits    int  `yaml:"alpha_bits"`
	DepthBits    int  `yaml:"depth_bits"`
	StencilBits  int  `yaml:"stencil_bits"`
	MultiSamples int  `yaml:"multisamples"`
	BackBuffers  int  `yaml:"back_buffers"`
	SRGBColor    bool `yaml:"srgb_color"`
}

// WindowProperties describes the OS window. The controller reads the initial
// size; the platform collaborator consumes the rest.
type WindowProperties struct {
	Title       string `yaml:"title"`
	Width       int    `yaml:"width"`
	Height      int    `yaml:"height"`
	Fullscreen  bool   `yaml:"fullscreen"`
	Undecorated bool   `yaml:"undecorated"`
}

// DisplayConfig holds the presentation knobs that are not framebuffer
// properties.
type DisplayConfig struct {
	SyncVideo      bool          `yaml:"sync_video"`
	AcquireTimeout time.Duration `yaml:"acquire_timeout"`
	FlipTimeout    time.Duration `yaml:"flip_timeout"`
	PreserveDepth  bool          `yaml:"preserve_depth"`
	ClearColor     [4]float32    `yaml:"clear_color"`
	ClearDepth     float32       `yaml:"clear_depth"`
	ClearStencil   uint32        `yaml:"clear_stencil"`
}

// Config is the on-disk configuration document.
type Config struct {
	FrameBuffer FrameBufferProperties `yaml:"framebuffer"`
	Window      WindowProperties      `yaml:"window"`
	Display     DisplayConfig         `yaml:"display"`
}

const (
	DefaultAcquireTimeout = time.Second
	DefaultFlipTimeout    = time.Second
)

func DefaultFrameBufferProperties() FrameBufferProperties {
	return FrameBufferProperties{
		ColorBits:   24,
		AlphaBits:   8,
		DepthBits:   24,
		BackBuffers: 1,
	}
}

func DefaultConfig() Config {
	return Config{
		FrameBuffer: DefaultFrameBufferProperties(),
		Window: WindowProperties{
			Title:  "vkdisplay",
			Width:  800,
			Height: 600,
		},
		Display: DisplayConfig{
			SyncVideo:      true,
			AcquireTimeout: DefaultAcquireTimeout,
			FlipTimeout:    DefaultFlipTimeout,
			ClearDepth:     1,
		},
	}
}

// LoadConfig decodes a YAML document on top of DefaultConfig. Unknown keys
// are rejected.
func LoadConfig(r io.Reader) (Config, error) {
	cfg := DefaultConfig()
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil && err != io.EOF {
		return Config{}, errors.Wrap(err, "decode display config")
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate rejects values no device could satisfy.
func (c Config) Validate() error {
	fb := c.FrameBuffer
	switch {
	case fb.ColorBits < 0, fb.AlphaBits < 0, fb.DepthBits < 0, fb.StencilBits < 0:
		return errors.New("framebuffer bit depths must not be negative")
	case fb.MultiSamples < 0 || fb.MultiSamples > 64:
		return errors.Errorf("framebuffer multisamples %d out of range", fb.MultiSamples)
	case fb.BackBuffers < 0:
		return errors.Errorf("framebuffer back buffers %d out of range", fb.BackBuffers)
	case c.Window.Width < 0 || c.Window.Height < 0:
		return errors.Errorf("window size %dx%d is negative", c.Window.Width, c.Window.Height)
	case c.Display.AcquireTimeout < 0 || c.Display.FlipTimeout < 0:
		return errors.New("display timeouts must not be negative")
	}
	return nil
}

// Options turns the display section into window options.
func (c Config) Options() []Option {
	d := c.Display
	opts := []Option{
		WithSyncVideo(d.SyncVideo),
		WithPreserveDepth(d.PreserveDepth),
		WithClearColor(d.ClearColor[0], d.ClearColor[1], d.ClearColor[2], d.ClearColor[3]),
		WithClearDepth(d.ClearDepth),
		WithClearStencil(d.ClearStencil),
	}
	if d.AcquireTimeout > 0 {
		opts = append(opts, WithAcquireTimeout(d.AcquireTimeout))
	}
	if d.FlipTimeout > 0 {
		opts = append(opts, WithFlipTimeout(d.FlipTimeout))
	}
	return opts
}
