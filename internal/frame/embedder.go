package frame

import (
	"context"
	"image"
	"iter"
	"slices"

	"github.com/sirupsen/logrus"

	"github.com/kozaktomas/face-attendance/internal/embedder"
	"github.com/kozaktomas/face-attendance/internal/facematch"
)

// Embedder runs face detection on live frames.
type Embedder struct {
	detector embedder.Embedder
	log      logrus.FieldLogger
}

func NewEmbedder(detector embedder.Embedder, log logrus.FieldLogger) *Embedder {
	return &Embedder{detector: detector, log: log}
}

// Embed converts the frame to RGB once and returns that image together with
// the faces found on it. The returned image is the one to annotate. A failed
// detection is logged and yields no observations so the stream keeps going.
func (e *Embedder) Embed(ctx context.Context, f Frame) (*image.RGBA, iter.Seq[facematch.Observation], error) {
	img, err := f.ToRGBA()
	if err != nil {
		return nil, nil, err
	}

	observations, err := e.detector.DetectAndEmbed(ctx, img)
	if err != nil {
		e.log.WithError(err).Warn("face detection failed, treating frame as empty")
		observations = nil
	}
	return img, slices.Values(observations), nil
}
