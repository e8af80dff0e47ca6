package render

import (
	"fmt"

	"github.com/pkg/errors"
	"github.com/vulkan-go/vulkan"
)

var (
	// ErrSurfaceUnsupported means the device and window cannot present at all.
	ErrSurfaceUnsupported = errors.New("surface unsupported")
	// ErrSwapchainCreationFailed is returned when the device refuses a swapchain.
	ErrSwapchainCreationFailed = errors.New("swapchain creation failed")
	// ErrSwapchainOutOfDate means the surface no longer matches the swapchain.
	ErrSwapchainOutOfDate = errors.New("swapchain out of date")
	// ErrSwapchainSuboptimal means the image was presented but the swapchain
	// should be rebuilt.
	ErrSwapchainSuboptimal = errors.New("swapchain suboptimal")
	// ErrSurfaceLost means the surface is gone and the window must close.
	ErrSurfaceLost = errors.New("surface lost")

	// ErrZeroExtent wraps ErrSwapchainCreationFailed when the window has no
	// area. It suspends rendering rather than failing.
	ErrZeroExtent = fmt.Errorf("%w: zero extent", ErrSwapchainCreationFailed)
)

// NewError converts a Vulkan result into an error carrying a stack trace.
// Results belonging to the presentation taxonomy map onto the package
// sentinels so callers can test them with errors.Is.
func NewError(retVal vulkan.Result) error {
	if !IsError(retVal) {
		return nil
	}
	var cause error
	switch retVal {
	case vulkan.ErrorOutOfDate, vulkan.Timeout, vulkan.NotReady:
		cause = ErrSwapchainOutOfDate
	case vulkan.Suboptimal:
		cause = ErrSwapchainSuboptimal
	case vulkan.ErrorSurfaceLost:
		cause = ErrSurfaceLost
	case vulkan.ErrorNativeWindowInUse, vulkan.ErrorIncompatibleDisplay:
		cause = ErrSurfaceUnsupported
	default:
		return errors.WithStack(fmt.Errorf("vulkan error: %w (%d)", vulkan.Error(retVal), retVal))
	}
	return errors.WithStack(fmt.Errorf("%w: vulkan result %d", cause, retVal))
}

// IsError reports whether retVal is anything but success.
func IsError(retVal vulkan.Result) bool {
	return retVal != vulkan.Success
}

// IsFatal reports whether err leaves the window unusable.
func IsFatal(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrZeroExtent) {
		return false
	}
	return !errors.Is(err, ErrSwapchainOutOfDate) && !errors.Is(err, ErrSwapchainSuboptimal)
}

// OrPanic runs finalizers and panics when err is set.
func OrPanic(err error, finalizers ...func()) {
	if err == nil {
		return
	}
	for _, fn := range finalizers {
		fn()
	}
	panic(err)
}

// CheckError recovers a panic raised by OrPanic into *err. Use it deferred.
func CheckError(err *error) {
	if v := recover(); v != nil {
		if e, ok := v.(error); ok {
			*err = e
			return
		}
		*err = fmt.Errorf("%+v", v)
	}
}
