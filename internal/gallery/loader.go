package gallery

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/kozaktomas/face-attendance/internal/database/postgres"
	"github.com/kozaktomas/face-attendance/internal/embedder"
	"github.com/kozaktomas/face-attendance/internal/facematch"
	"github.com/kozaktomas/face-attendance/internal/imageutil"
)

// Source yields enrollment groups and image bytes.
type Source interface {
	Groups() ([]Group, error)
	ReadFile(rel string) ([]byte, error)
}

// Cache stores per-image embedding results between loads. It is satisfied
// by *postgres.EmbeddingRepository.
type Cache interface {
	Get(ctx context.Context, path, model string) (*postgres.StoredEmbedding, error)
	Save(ctx context.Context, emb postgres.StoredEmbedding) error
}

// Stats summarises a load.
type Stats struct {
	Groups   int `json:"identities"`
	Images   int `json:"images"`
	Entries  int `json:"entries"`
	NoFace   int `json:"no_face"` // images without a detectable face
	Failed   int `json:"failed"`  // images that could not be decoded
	CacheHit int `json:"cache_hits"`
}

// Loader turns enrollment groups into a gallery.
type Loader struct {
	Embedder     embedder.Embedder
	Model        string // cache namespace, usually the embedder backend
	MaxImageSide int
	Cache        Cache // optional
	OnProgress   func(done, total int)
	Log          logrus.FieldLogger
}

// Load embeds every image and keeps the first face found in each. Images
// without a face and images that fail to decode are skipped. Embedder errors
// abort the load since they affect every image.
func (l *Loader) Load(ctx context.Context, src Source) (facematch.Gallery, Stats, error) {
	groups, err := src.Groups()
	if err != nil {
		return nil, Stats{}, err
	}

	var stats Stats
	stats.Groups = len(groups)
	for _, g := range groups {
		stats.Images += len(g.Images)
	}

	var gallery facematch.Gallery
	done := 0
	for _, g := range groups {
		for _, img := range g.Images {
			if err := ctx.Err(); err != nil {
				return nil, stats, err
			}

			emb, hit, err := l.embedImage(ctx, src, g.Identity, img)
			done++
			if l.OnProgress != nil {
				l.OnProgress(done, stats.Images)
			}
			if hit {
				stats.CacheHit++
			}

			switch {
			case errors.Is(err, errUndecodable):
				stats.Failed++
				continue
			case err != nil:
				return nil, stats, fmt.Errorf("embed %s: %w", img.Rel, err)
			case emb == nil:
				stats.NoFace++
				continue
			}

			gallery = append(gallery, facematch.GalleryEntry{
				Identity:  g.Identity,
				Embedding: emb,
				Source:    img.Rel,
			})
		}
	}

	stats.Entries = len(gallery)
	return gallery, stats, nil
}

var errUndecodable = errors.New("undecodable image")

// sameVersion compares at microsecond precision, which is what PostgreSQL keeps.
func sameVersion(cached *postgres.StoredEmbedding, img Image) bool {
	mod := time.Unix(0, img.Mod).Truncate(time.Microsecond)
	return cached.Size == img.Size && cached.ModTime.Truncate(time.Microsecond).Equal(mod)
}

// embedImage returns the first face embedding of an image, nil when the image has no face.
func (l *Loader) embedImage(ctx context.Context, src Source, id facematch.Identity, img Image) (facematch.Embedding, bool, error) {
	log := l.log().WithField("image", img.Rel)

	if l.Cache != nil {
		cached, err := l.Cache.Get(ctx, img.Rel, l.Model)
		if err != nil {
			log.WithError(err).Warn("embedding cache lookup failed")
		} else if cached != nil && sameVersion(cached, img) {
			if !cached.HasFace {
				return nil, true, nil
			}
			return facematch.Embedding(cached.Embedding), true, nil
		}
	}

	data, err := src.ReadFile(img.Rel)
	if err != nil {
		return nil, false, err
	}
	decoded, _, err := imageutil.Decode(data)
	if err != nil {
		log.WithError(err).Warn("skipping enrollment image")
		return nil, false, errUndecodable
	}

	observations, err := l.Embedder.DetectAndEmbed(ctx, imageutil.FitWithin(decoded, l.MaxImageSide))
	if err != nil {
		return nil, false, err
	}

	var emb facematch.Embedding
	if len(observations) > 0 {
		emb = observations[0].Embedding
	} else {
		log.Debug("no face found in enrollment image")
	}

	if l.Cache != nil {
		err := l.Cache.Save(ctx, postgres.StoredEmbedding{
			Path:      img.Rel,
			Model:     l.Model,
			Size:      img.Size,
			ModTime:   time.Unix(0, img.Mod),
			Identity:  string(id),
			HasFace:   emb != nil,
			Embedding: emb,
		})
		if err != nil {
			log.WithError(err).Warn("embedding cache store failed")
		}
	}
	return emb, false, nil
}

func (l *Loader) log() logrus.FieldLogger {
	if l.Log == nil {
		return logrus.StandardLogger()
	}
	return l.Log
}
