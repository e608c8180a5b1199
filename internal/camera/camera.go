// Package camera wraps a local video capture device.
package camera

import (
	"errors"
	"fmt"

	"gocv.io/x/gocv"

	"github.com/kozaktomas/face-attendance/internal/frame"
)

var (
	ErrOpenFailed = errors.New("failed to access camera")
	ErrReadFailed = errors.New("failed to read frame")
)

// Device is an open capture device. It is not safe for concurrent use.
type Device struct {
	index   int
	capture *gocv.VideoCapture
	mat     gocv.Mat
}

// Open opens the capture device with the given index.
func Open(index int) (*Device, error) {
	capture, err := gocv.OpenVideoCapture(index)
	if err != nil {
		return nil, fmt.Errorf("%w %d: %w", ErrOpenFailed, index, err)
	}
	if !capture.IsOpened() {
		_ = capture.Close()
		return nil, fmt.Errorf("%w %d", ErrOpenFailed, index)
	}
	return &Device{index: index, capture: capture, mat: gocv.NewMat()}, nil
}

// Read grabs the next frame. The returned frame owns its pixel data.
func (d *Device) Read() (frame.Frame, error) {
	if ok := d.capture.Read(&d.mat); !ok || d.mat.Empty() {
		return frame.Frame{}, fmt.Errorf("%w from camera %d", ErrReadFailed, d.index)
	}
	if d.mat.Type() != gocv.MatTypeCV8UC3 {
		return frame.Frame{}, fmt.Errorf("%w: unexpected mat type %v", ErrReadFailed, d.mat.Type())
	}

	// the mat is reused for the next read, so copy its buffer out
	data, err := d.mat.DataPtrUint8()
	if err != nil {
		return frame.Frame{}, fmt.Errorf("%w: %w", ErrReadFailed, err)
	}
	buf := make([]byte, len(data))
	copy(buf, data)

	return frame.Frame{
		Data:   buf,
		Width:  d.mat.Cols(),
		Height: d.mat.Rows(),
		Layout: frame.LayoutBGR,
	}, nil
}

// Close releases the device. Safe to call more than once.
func (d *Device) Close() error {
	if d.capture == nil {
		return nil
	}
	_ = d.mat.Close()
	err := d.capture.Close()
	d.capture = nil
	return err
}
