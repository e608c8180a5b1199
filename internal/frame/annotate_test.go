package frame

import (
	"image"
	"image/color"
	"testing"

	"github.com/kozaktomas/face-attendance/internal/facematch"
)

func blank(w, h int) *image.RGBA {
	return image.NewRGBA(image.Rect(0, 0, w, h))
}

func TestAnnotate_MatchedAndUnknown(t *testing.T) {
	img := blank(200, 100)

	Annotate(img, []Labeled{
		{Box: image.Rect(10, 10, 80, 90), Identity: "alice"},
		{Box: image.Rect(110, 10, 180, 90), Identity: facematch.Unknown},
	})

	if got := img.RGBAAt(10, 10); got != matchedColor {
		t.Errorf("expected matched box corner, got %v", got)
	}
	if got := img.RGBAAt(110, 10); got != unmatchedColor {
		t.Errorf("expected unmatched box corner, got %v", got)
	}
	// name plate fills the bottom of a matched box only
	if got := img.RGBAAt(40, 85); got == (color.RGBA{}) {
		t.Error("expected label plate inside matched box")
	}
	if got := img.RGBAAt(140, 85); got != (color.RGBA{}) {
		t.Errorf("expected no label inside unknown box, got %v", got)
	}
}

func TestAnnotate_BoxOutsideFrame(t *testing.T) {
	img := blank(50, 50)

	Annotate(img, []Labeled{{Box: image.Rect(100, 100, 150, 150), Identity: "bob"}})

	for i := range img.Pix {
		if img.Pix[i] != 0 {
			t.Fatal("expected untouched image for box outside the frame")
		}
	}
}

func TestAnnotate_PartiallyOutside(t *testing.T) {
	img := blank(50, 50)

	Annotate(img, []Labeled{{Box: image.Rect(-20, -20, 30, 30)}})

	if got := img.RGBAAt(0, 0); got != unmatchedColor {
		t.Errorf("expected clipped box drawn at origin, got %v", got)
	}
}
