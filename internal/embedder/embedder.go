// Package embedder turns images into face observations (box + embedding).
package embedder

import (
	"context"
	"fmt"
	"image"
	"io"

	"github.com/kozaktomas/face-attendance/internal/config"
	"github.com/kozaktomas/face-attendance/internal/facematch"
)

// Backend names accepted by New.
const (
	BackendDlib = "dlib"
	BackendHTTP = "http"
)

// Embedder detects faces in an image and returns one observation per face,
// in detector order. No faces is an empty slice, not an error.
type Embedder interface {
	DetectAndEmbed(ctx context.Context, img image.Image) ([]facematch.Observation, error)
}

// Service is an Embedder holding resources that must be released.
type Service interface {
	Embedder
	io.Closer
}

// New creates the embedder selected by configuration.
func New(cfg config.EmbedderConfig, modelsDir string) (Service, error) {
	switch cfg.Backend {
	case BackendDlib, "":
		return NewDlib(modelsDir)
	case BackendHTTP:
		return NewHTTP(cfg.URL), nil
	default:
		return nil, fmt.Errorf("unknown embedder backend %q", cfg.Backend)
	}
}
