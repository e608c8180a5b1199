// Package frame holds raw camera frames, the per-frame face embedder and the
// annotation drawn on top of live frames.
package frame

import (
	"errors"
	"fmt"
	"image"
)

// Layout is the byte order of a packed 3-channel pixel.
type Layout int

const (
	LayoutBGR Layout = iota // camera native order
	LayoutRGB
)

func (l Layout) String() string {
	switch l {
	case LayoutBGR:
		return "BGR"
	case LayoutRGB:
		return "RGB"
	default:
		return fmt.Sprintf("Layout(%d)", int(l))
	}
}

var ErrInvalidFrame = errors.New("invalid frame")

// Frame is one packed 8-bit 3-channel image as delivered by a capture device.
type Frame struct {
	Data   []byte
	Width  int
	Height int
	Layout Layout
}

// Validate checks that Data holds exactly Width*Height pixels.
func (f Frame) Validate() error {
	if f.Width <= 0 || f.Height <= 0 {
		return fmt.Errorf("%w: %dx%d", ErrInvalidFrame, f.Width, f.Height)
	}
	if len(f.Data) != f.Width*f.Height*3 {
		return fmt.Errorf("%w: %d bytes for %dx%d", ErrInvalidFrame, len(f.Data), f.Width, f.Height)
	}
	return nil
}

// ToRGBA converts the frame into an RGBA image, swapping channels for BGR input.
func (f Frame) ToRGBA() (*image.RGBA, error) {
	if err := f.Validate(); err != nil {
		return nil, err
	}

	img := image.NewRGBA(image.Rect(0, 0, f.Width, f.Height))
	r, b := 0, 2
	if f.Layout == LayoutBGR {
		r, b = 2, 0
	}
	for i, j := 0, 0; i < len(f.Data); i, j = i+3, j+4 {
		img.Pix[j] = f.Data[i+r]
		img.Pix[j+1] = f.Data[i+1]
		img.Pix[j+2] = f.Data[i+b]
		img.Pix[j+3] = 0xFF
	}
	return img, nil
}

// FromImage packs img into a frame with the given layout.
func FromImage(img image.Image, layout Layout) Frame {
	b := img.Bounds()
	f := Frame{
		Data:   make([]byte, 0, b.Dx()*b.Dy()*3),
		Width:  b.Dx(),
		Height: b.Dy(),
		Layout: layout,
	}
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			cr, cg, cb, _ := img.At(x, y).RGBA()
			if layout == LayoutBGR {
				f.Data = append(f.Data, byte(cb>>8), byte(cg>>8), byte(cr>>8))
			} else {
				f.Data = append(f.Data, byte(cr>>8), byte(cg>>8), byte(cb>>8))
			}
		}
	}
	return f
}
