package render

import (
	"fmt"

	"github.com/pkg/errors"
)

// Surface is a native window bound to a device as a presentable surface.
// It is either fully bound or not created at all.
type Surface struct {
	dev     Device
	handle  SurfaceHandle
	support *SurfaceSupport
}

// BindSurface creates the surface for win and enumerates what dev supports on
// it. It fails with ErrSurfaceUnsupported when the pair cannot present.
func BindSurface(dev Device, win NativeWindow) (*Surface, error) {
	handle, err := dev.CreateSurface(win)
	if err != nil {
		return nil, errors.WithStack(fmt.Errorf("%w: create surface: %w", ErrSurfaceUnsupported, err))
	}
	s := &Surface{dev: dev, handle: handle}
	if err := s.Refresh(); err != nil {
		s.Close()
		return nil, err
	}
	return s, nil
}

// Refresh re-queries capabilities, formats and present modes. The current
// extent changes with the window, so it runs before every swapchain build.
func (s *Surface) Refresh() error {
	support, err := s.dev.QuerySurface(s.handle)
	if err != nil {
		return errors.Wrap(err, "query surface")
	}
	switch {
	case !support.CanPresent:
		return errors.Wrap(ErrSurfaceUnsupported, "no queue can present to the surface")
	case len(support.Formats) == 0:
		return errors.Wrap(ErrSurfaceUnsupported, "surface reports no formats")
	case len(support.PresentModes) == 0:
		return errors.Wrap(ErrSurfaceUnsupported, "surface reports no present modes")
	}
	s.support = support
	return nil
}

// Support returns what the last Refresh found.
func (s *Surface) Support() *SurfaceSupport {
	return s.support
}

func (s *Surface) Handle() SurfaceHandle {
	return s.handle
}

// Close releases the surface. The swapchain built on it must already be
// destroyed.
func (s *Surface) Close() {
	if s.handle != nil {
		s.handle.Destroy()
		s.handle = nil
	}
	s.support = nil
}
