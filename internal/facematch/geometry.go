package facematch

import "image"

// RectFromCorners converts an [x1, y1, x2, y2] pixel box to a rectangle.
// Returns the empty rectangle for malformed input.
func RectFromCorners(bbox []float64) image.Rectangle {
	if len(bbox) != 4 {
		return image.Rectangle{}
	}
	return image.Rect(int(bbox[0]), int(bbox[1]), int(bbox[2]), int(bbox[3]))
}

// ClampRect keeps a detection box inside the frame bounds. Detectors may
// report boxes that extend past the image edge for faces near the border.
func ClampRect(r, bounds image.Rectangle) image.Rectangle {
	return r.Canon().Intersect(bounds)
}
