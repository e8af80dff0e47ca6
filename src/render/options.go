package render

import (
	"log/slog"
	"time"

	"github.com/vulkan-go/vulkan"
)

// Option configures a Window during creation.
//
// Example:
//
//	w := render.NewWindow(dev, native, fbProps, winProps,
//	    render.WithSyncVideo(false),
//	    render.WithAcquireTimeout(100*time.Millisecond))
type Option func(*options)

type options struct {
	logger           *slog.Logger
	acquireTimeout   time.Duration
	flipTimeout      time.Duration
	preferredFormats []vulkan.SurfaceFormat
	syncVideo        bool
	preserveDepth    bool
	clearColor       [4]float32
	clearDepth       float32
	clearStencil     uint32
	clearActive      ClearMask
}

func defaultOptions() options {
	return options{
		acquireTimeout: DefaultAcquireTimeout,
		flipTimeout:    DefaultFlipTimeout,
		syncVideo:      true,
		clearDepth:     1,
		clearActive:    ClearColor | ClearDepth | ClearStencil,
	}
}

// WithLogger sets the window's logger. Without it the package logger is used.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) {
		o.logger = l
	}
}

// WithAcquireTimeout bounds how long BeginFrame waits for an image. A timeout
// is handled like an out-of-date swapchain.
func WithAcquireTimeout(d time.Duration) Option {
	return func(o *options) {
		o.acquireTimeout = d
	}
}

// WithFlipTimeout bounds how long EndFlip and teardown wait for the in-flight
// frame.
func WithFlipTimeout(d time.Duration) Option {
	return func(o *options) {
		o.flipTimeout = d
	}
}

// WithPreferredFormats puts formats ahead of the defaults derived from the
// framebuffer properties. A zero ColorSpace matches sRGB-nonlinear.
func WithPreferredFormats(formats ...vulkan.SurfaceFormat) Option {
	return func(o *options) {
		o.preferredFormats = append(o.preferredFormats[:0:0], formats...)
	}
}

// WithSyncVideo selects vertical-sync-aligned present modes first (default).
func WithSyncVideo(sync bool) Option {
	return func(o *options) {
		o.syncVideo = sync
	}
}

// WithPreserveDepth stores the depth-stencil attachment at the end of the
// render pass instead of discarding it.
func WithPreserveDepth(preserve bool) Option {
	return func(o *options) {
		o.preserveDepth = preserve
	}
}

func WithClearColor(r, g, b, a float32) Option {
	return func(o *options) {
		o.clearColor = [4]float32{r, g, b, a}
	}
}

func WithClearDepth(depth float32) Option {
	return func(o *options) {
		o.clearDepth = depth
	}
}

func WithClearStencil(stencil uint32) Option {
	return func(o *options) {
		o.clearStencil = stencil
	}
}

// WithClearActive selects which buffers Clear touches.
func WithClearActive(mask ClearMask) Option {
	return func(o *options) {
		o.clearActive = mask
	}
}
