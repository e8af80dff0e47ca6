package render

import (
	"time"

	"github.com/pkg/errors"
	"github.com/vulkan-go/vulkan"
)

// FrameSync is the single synchronization pair of a window. There is one per
// window, not one per image, so at most one frame can be in flight.
type FrameSync struct {
	dev            Device
	imageAvailable SemaphoreHandle
	renderComplete SemaphoreHandle
	// frameDone is signaled by the submit that signals renderComplete. It is
	// created signaled so the first frame does not wait.
	frameDone FenceHandle
}

func NewFrameSync(dev Device) (_ *FrameSync, err error) {
	s := &FrameSync{dev: dev}
	defer func() {
		if err != nil {
			s.Destroy()
		}
	}()
	if s.imageAvailable, err = dev.CreateSemaphore(); err != nil {
		return nil, errors.Wrap(err, "create image-available semaphore")
	}
	if s.renderComplete, err = dev.CreateSemaphore(); err != nil {
		return nil, errors.Wrap(err, "create render-complete semaphore")
	}
	if s.frameDone, err = dev.CreateFence(true); err != nil {
		return nil, errors.Wrap(err, "create frame fence")
	}
	return s, nil
}

// Acquire asks for the next image and arranges for imageAvailable to be
// signaled once the display is done with it. suboptimal reports that the
// image is usable but the swapchain should be rebuilt.
func (s *FrameSync) Acquire(sc *Swapchain, timeout time.Duration) (index uint32, suboptimal bool, err error) {
	idx, res := s.dev.AcquireNextImage(sc.handle, timeout, s.imageAvailable)
	switch res {
	case vulkan.Success:
	case vulkan.Suboptimal:
		suboptimal = true
	default:
		return 0, false, NewError(res)
	}
	if int(idx) >= len(sc.buffers) {
		return 0, false, errors.Wrapf(ErrSwapchainOutOfDate, "acquired image %d of %d", idx, len(sc.buffers))
	}
	return idx, suboptimal, nil
}

// Submit runs cmd once imageAvailable is signaled and signals renderComplete
// and the frame fence when it finishes.
func (s *FrameSync) Submit(cmd CommandBuffer) error {
	if err := s.frameDone.Reset(); err != nil {
		return errors.Wrap(err, "reset frame fence")
	}
	return s.dev.Submit(cmd, s.imageAvailable, s.renderComplete, s.frameDone)
}

// Present queues the image for display once renderComplete is signaled.
// ErrSwapchainSuboptimal still means the image was shown.
func (s *FrameSync) Present(sc *Swapchain, index uint32) error {
	return NewError(s.dev.Present(sc.handle, index, s.renderComplete))
}

// Ready polls the frame fence.
func (s *FrameSync) Ready() bool {
	return s.frameDone.Signaled()
}

// Wait blocks until the last submitted frame completes or timeout elapses.
func (s *FrameSync) Wait(timeout time.Duration) (bool, error) {
	done, err := s.frameDone.Wait(timeout)
	if err != nil {
		return false, errors.Wrap(err, "wait for frame")
	}
	return done, nil
}

func (s *FrameSync) Destroy() {
	if s.frameDone != nil {
		s.frameDone.Destroy()
		s.frameDone = nil
	}
	if s.renderComplete != nil {
		s.renderComplete.Destroy()
		s.renderComplete = nil
	}
	if s.imageAvailable != nil {
		s.imageAvailable.Destroy()
		s.imageAvailable = nil
	}
}
