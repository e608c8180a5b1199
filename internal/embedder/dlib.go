package embedder

import (
	"context"
	"fmt"
	"image"
	"sync"

	face "github.com/Kagami/go-face"

	"github.com/kozaktomas/face-attendance/internal/facematch"
	"github.com/kozaktomas/face-attendance/internal/imageutil"
)

// Dlib computes 128-d descriptors with dlib's ResNet face model. The model
// directory must hold shape_predictor_5_face_landmarks.dat,
// dlib_face_recognition_resnet_model_v1.dat and mmod_human_face_detector.dat.
type Dlib struct {
	rec *face.Recognizer
	mu  sync.Mutex // the recognizer is not safe for concurrent use
}

// NewDlib loads the dlib models from modelsDir.
func NewDlib(modelsDir string) (*Dlib, error) {
	rec, err := face.NewRecognizer(modelsDir)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize recognizer: %w", err)
	}
	return &Dlib{rec: rec}, nil
}

// DetectAndEmbed encodes the image as JPEG, which is what the recognizer consumes.
func (d *Dlib) DetectAndEmbed(ctx context.Context, img image.Image) ([]facematch.Observation, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	data, err := imageutil.EncodeJPEG(img, imageutil.DefaultJPEGQuality)
	if err != nil {
		return nil, err
	}

	d.mu.Lock()
	faces, err := d.rec.Recognize(data)
	d.mu.Unlock()
	if err != nil {
		return nil, fmt.Errorf("failed to recognize faces: %w", err)
	}

	bounds := img.Bounds()
	observations := make([]facematch.Observation, 0, len(faces))
	for _, f := range faces {
		emb := make(facematch.Embedding, len(f.Descriptor))
		copy(emb, f.Descriptor[:])
		observations = append(observations, facematch.Observation{
			Box:       facematch.ClampRect(f.Rectangle.Add(bounds.Min), bounds),
			Embedding: emb,
		})
	}
	return observations, nil
}

func (d *Dlib) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.rec.Close()
	return nil
}
