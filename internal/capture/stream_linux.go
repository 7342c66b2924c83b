//go:build linux

package capture

import (
	"bytes"
	"errors"
	"fmt"
	"time"

	"github.com/vladimirvivien/go4vl/device"
	vl "github.com/vladimirvivien/go4vl/v4l2"
	"golang.org/x/sys/unix"
)

var errReadTimeout = errors.New("frame read timed out")

// stream is the buffer queue of a started capture. next returns an empty
// payload for buffers the driver flagged as errored.
type stream interface {
	next(timeout time.Duration) ([]byte, error)
	stop() error
}

// mmapStream drives the memory-mapped buffer queue directly. go4vl's own
// stream loop panics on dequeue errors, which is what an unplugged camera
// produces.
type mmapStream struct {
	dev     *device.Device
	fd      uintptr
	buffers [][]byte
}

func startMMAP(dev *device.Device) (*mmapStream, error) {
	req, err := vl.InitBuffers(dev)
	if err != nil {
		return nil, err
	}

	s := &mmapStream{dev: dev, fd: dev.Fd()}
	for i := range req.Count {
		buf, err := vl.GetBuffer(dev, i)
		if err != nil {
			s.release()
			return nil, err
		}
		data, err := unix.Mmap(int(s.fd), int64(buf.Info.Offset), int(buf.Length), unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED)
		if err != nil {
			s.release()
			return nil, fmt.Errorf("map buffer %d: %w", i, err)
		}
		s.buffers = append(s.buffers, data)
	}

	for i := range s.buffers {
		if err := s.queue(uint32(i)); err != nil {
			s.release()
			return nil, err
		}
	}
	if err := vl.StreamOn(dev); err != nil {
		s.release()
		return nil, err
	}
	return s, nil
}

func (s *mmapStream) queue(index uint32) error {
	_, err := vl.QueueBuffer(s.fd, s.dev.MemIOType(), s.dev.BufferType(), index)
	return err
}

func (s *mmapStream) next(timeout time.Duration) ([]byte, error) {
	deadline := time.Now().Add(timeout)
	fds := []unix.PollFd{{Fd: int32(s.fd), Events: unix.POLLIN}}

	for {
		remaining := time.Until(deadline)
		if remaining <= 0 {
			return nil, errReadTimeout
		}
		n, err := unix.Poll(fds, int(remaining.Milliseconds())+1)
		if errors.Is(err, unix.EINTR) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("poll: %w", err)
		}
		if n == 0 {
			return nil, errReadTimeout
		}
		if fds[0].Revents&unix.POLLIN == 0 {
			return nil, fmt.Errorf("poll: revents 0x%x", fds[0].Revents)
		}

		buf, err := vl.DequeueBuffer(s.fd, s.dev.MemIOType(), s.dev.BufferType())
		if errors.Is(err, unix.EAGAIN) {
			continue
		}
		if err != nil {
			return nil, err
		}

		var data []byte
		if buf.Flags&vl.BufFlagError == 0 && int(buf.Index) < len(s.buffers) {
			mapped := s.buffers[buf.Index]
			data = bytes.Clone(mapped[:min(int(buf.BytesUsed), len(mapped))])
		}
		if err := s.queue(buf.Index); err != nil {
			return nil, err
		}
		return data, nil
	}
}

func (s *mmapStream) stop() error {
	err := vl.StreamOff(s.dev)
	return errors.Join(err, s.release())
}

// release unmaps the buffers and frees them in the driver so the pixel format
// can change.
func (s *mmapStream) release() error {
	var errs []error
	for _, b := range s.buffers {
		if err := unix.Munmap(b); err != nil {
			errs = append(errs, fmt.Errorf("unmap buffer: %w", err))
		}
	}
	s.buffers = nil
	if _, err := vl.ResetBuffers(s.dev); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}
