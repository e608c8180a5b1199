package gallery

import (
	"context"
	"errors"
	"image"
	"image/color"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kozaktomas/face-attendance/internal/facematch"
	"github.com/kozaktomas/face-attendance/internal/logging"
)

func enrollmentTree(t *testing.T) string {
	t.Helper()
	root := t.TempDir()
	writeFile(t, root, "alice/1.png", pngBytes(t, color.RGBA{R: 10, G: 20, B: 30, A: 255}))
	writeFile(t, root, "alice/2.png", pngBytes(t, color.Black))
	writeFile(t, root, "bob/1.png", pngBytes(t, color.RGBA{R: 200, G: 100, B: 50, A: 255}))
	writeFile(t, root, "bob/broken.jpg", []byte("not a jpeg"))
	writeFile(t, root, "carol/only-black.png", pngBytes(t, color.Black))
	return root
}

func TestLoader_Load(t *testing.T) {
	var progress []int
	l := &Loader{
		Embedder:   &colorEmbedder{},
		Model:      "test",
		OnProgress: func(done, total int) { progress = append(progress, done) },
		Log:        logging.Discard(),
	}

	g, stats, err := l.Load(context.Background(), NewDirSource(enrollmentTree(t)))

	require.NoError(t, err)
	require.Len(t, g, 2)
	assert.Equal(t, facematch.Identity("alice"), g[0].Identity)
	assert.Equal(t, facematch.Embedding{10, 20, 30}, g[0].Embedding, "first face of the image is used")
	assert.Equal(t, "alice/1.png", g[0].Source)
	assert.Equal(t, facematch.Identity("bob"), g[1].Identity)

	assert.Equal(t, Stats{Groups: 3, Images: 5, Entries: 2, NoFace: 2, Failed: 1}, stats)
	assert.Equal(t, []int{1, 2, 3, 4, 5}, progress)
}

func TestLoader_EmptyTree(t *testing.T) {
	l := &Loader{Embedder: &colorEmbedder{}, Log: logging.Discard()}

	g, stats, err := l.Load(context.Background(), NewDirSource(t.TempDir()))

	require.NoError(t, err)
	assert.Empty(t, g)
	assert.Equal(t, 0, stats.Images)
}

func TestLoader_UsesCache(t *testing.T) {
	root := enrollmentTree(t)
	cache := newMemoryCache()
	emb := &colorEmbedder{}
	l := &Loader{Embedder: emb, Model: "test", Cache: cache, Log: logging.Discard()}

	first, _, err := l.Load(context.Background(), NewDirSource(root))
	require.NoError(t, err)
	callsAfterFirst := emb.calls

	second, stats, err := l.Load(context.Background(), NewDirSource(root))
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, callsAfterFirst, emb.calls, "cached images are not embedded again")
	assert.Equal(t, 4, stats.CacheHit, "undecodable images are not cached")
	assert.Equal(t, 2, stats.NoFace)
}

func TestLoader_CacheInvalidatedByChange(t *testing.T) {
	root := enrollmentTree(t)
	cache := newMemoryCache()
	emb := &colorEmbedder{}
	l := &Loader{Embedder: emb, Model: "test", Cache: cache, Log: logging.Discard()}

	_, _, err := l.Load(context.Background(), NewDirSource(root))
	require.NoError(t, err)

	// trailing byte changes the size even when mtime granularity is coarse
	writeFile(t, root, "carol/only-black.png", append(pngBytes(t, color.RGBA{R: 1, G: 2, B: 3, A: 255}), 0))

	g, _, err := l.Load(context.Background(), NewDirSource(root))
	require.NoError(t, err)
	assert.Len(t, g, 3)
}

type failingEmbedder struct{}

func (failingEmbedder) DetectAndEmbed(context.Context, image.Image) ([]facematch.Observation, error) {
	return nil, errors.New("service unavailable")
}

func TestLoader_EmbedderErrorAborts(t *testing.T) {
	l := &Loader{Embedder: failingEmbedder{}, Log: logging.Discard()}

	_, _, err := l.Load(context.Background(), NewDirSource(enrollmentTree(t)))

	require.Error(t, err)
	assert.Contains(t, err.Error(), "service unavailable")
}

func TestLoader_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	l := &Loader{Embedder: &colorEmbedder{}, Log: logging.Discard()}

	_, _, err := l.Load(ctx, NewDirSource(enrollmentTree(t)))

	assert.ErrorIs(t, err, context.Canceled)
}
