package imageutil

import (
	"bytes"
	"image"
	"image/color"
	"image/png"
	"testing"
)

func solid(w, h int, c color.Color) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := range h {
		for x := range w {
			img.Set(x, y, c)
		}
	}
	return img
}

func TestDecode_PNG(t *testing.T) {
	var buf bytes.Buffer
	if err := png.Encode(&buf, solid(4, 3, color.White)); err != nil {
		t.Fatalf("encode: %v", err)
	}

	img, format, err := Decode(buf.Bytes())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if format != "png" {
		t.Errorf("expected png format, got %s", format)
	}
	if img.Bounds().Dx() != 4 || img.Bounds().Dy() != 3 {
		t.Errorf("unexpected bounds %v", img.Bounds())
	}
}

func TestDecode_Invalid(t *testing.T) {
	if _, _, err := Decode([]byte("not an image")); err == nil {
		t.Error("expected error for invalid data")
	}
}

func TestFitWithin(t *testing.T) {
	tests := []struct {
		name    string
		w, h    int
		maxSide int
		wantW   int
		wantH   int
	}{
		{"landscape", 400, 200, 100, 100, 50},
		{"portrait", 200, 400, 100, 50, 100},
		{"already small", 80, 60, 100, 80, 60},
		{"disabled", 400, 200, 0, 400, 200},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := FitWithin(solid(tt.w, tt.h, color.Black), tt.maxSide)
			if result.Bounds().Dx() != tt.wantW || result.Bounds().Dy() != tt.wantH {
				t.Errorf("FitWithin = %dx%d, want %dx%d", result.Bounds().Dx(), result.Bounds().Dy(), tt.wantW, tt.wantH)
			}
		})
	}
}

func TestToRGBA_Offset(t *testing.T) {
	src := solid(10, 10, color.White).SubImage(image.Rect(5, 5, 10, 10))

	result := ToRGBA(src)

	if result.Bounds() != image.Rect(0, 0, 5, 5) {
		t.Errorf("expected origin-anchored bounds, got %v", result.Bounds())
	}
}

func TestEncodeJPEG_RoundTrip(t *testing.T) {
	data, err := EncodeJPEG(solid(8, 8, color.White), 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if DetectMIMEType(data) != "image/jpeg" {
		t.Errorf("expected image/jpeg, got %s", DetectMIMEType(data))
	}
}

func TestDetectMIMEType(t *testing.T) {
	tests := []struct {
		name     string
		data     []byte
		expected string
	}{
		{"jpeg", []byte{0xFF, 0xD8, 0xFF, 0xE0, 0, 0, 0, 0}, "image/jpeg"},
		{"png", []byte{0x89, 0x50, 0x4E, 0x47, 0x0D, 0x0A, 0x1A, 0x0A}, "image/png"},
		{"gif", []byte("GIF89a\x00\x00"), "image/gif"},
		{"bmp", []byte("BM\x00\x00\x00\x00\x00\x00"), "image/bmp"},
		{"short", []byte{0xFF}, "application/octet-stream"},
		{"unknown", []byte("plaintext"), "application/octet-stream"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if result := DetectMIMEType(tt.data); result != tt.expected {
				t.Errorf("DetectMIMEType() = %s, want %s", result, tt.expected)
			}
		})
	}
}
