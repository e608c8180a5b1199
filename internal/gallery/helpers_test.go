package gallery

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/kozaktomas/face-attendance/internal/database/postgres"
	"github.com/kozaktomas/face-attendance/internal/facematch"
)

// colorEmbedder treats the top-left pixel as the face embedding, black means no face.
type colorEmbedder struct {
	mu    sync.Mutex
	calls int
}

func (c *colorEmbedder) DetectAndEmbed(_ context.Context, img image.Image) ([]facematch.Observation, error) {
	c.mu.Lock()
	c.calls++
	c.mu.Unlock()

	r, g, b, _ := img.At(img.Bounds().Min.X, img.Bounds().Min.Y).RGBA()
	if r == 0 && g == 0 && b == 0 {
		return nil, nil
	}
	emb := facematch.Embedding{float32(r >> 8), float32(g >> 8), float32(b >> 8)}
	return []facematch.Observation{
		{Box: img.Bounds(), Embedding: emb},
		{Box: img.Bounds(), Embedding: facematch.Embedding{0, 0, 0}},
	}, nil
}

func pngBytes(t *testing.T, c color.Color) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 4, 4))
	for y := range 4 {
		for x := range 4 {
			img.Set(x, y, c)
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("encode png: %v", err)
	}
	return buf.Bytes()
}

func writeFile(t *testing.T, root, rel string, data []byte) {
	t.Helper()
	p := filepath.Join(root, filepath.FromSlash(rel))
	if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(p, data, 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
}

type memoryCache struct {
	mu      sync.Mutex
	entries map[string]postgres.StoredEmbedding
}

func newMemoryCache() *memoryCache {
	return &memoryCache{entries: make(map[string]postgres.StoredEmbedding)}
}

func (m *memoryCache) Get(_ context.Context, path, model string) (*postgres.StoredEmbedding, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.entries[model+"|"+path]
	if !ok {
		return nil, nil
	}
	return &e, nil
}

func (m *memoryCache) Save(_ context.Context, emb postgres.StoredEmbedding) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries[emb.Model+"|"+emb.Path] = emb
	return nil
}
