package camera

import (
	"fmt"
	"image"

	"gocv.io/x/gocv"
)

// Window is a local preview window. It must be used from a single goroutine.
type Window struct {
	win *gocv.Window
}

func NewWindow(title string) *Window {
	return &Window{win: gocv.NewWindow(title)}
}

// Show draws img and polls the keyboard briefly. It returns the key pressed,
// or -1 when none was.
func (w *Window) Show(img image.Image) (int, error) {
	mat, err := gocv.ImageToMatRGB(img)
	if err != nil {
		return -1, fmt.Errorf("convert preview frame: %w", err)
	}
	defer mat.Close()

	w.win.IMShow(mat)
	return w.win.WaitKey(1), nil
}

func (w *Window) Close() error {
	return w.win.Close()
}
