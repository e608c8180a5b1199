package gallery

import (
	"context"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/kozaktomas/face-attendance/internal/facematch"
)

// Provider keeps the last loaded gallery and reloads it when the enrollment
// tree has changed. Galleries handed out are never mutated.
type Provider struct {
	source  Source
	loader  *Loader
	watcher *Watcher // optional, nil means reload on Invalidate only

	mu      sync.Mutex
	gallery facematch.Gallery
	stats   Stats
	loaded  bool
	dirty   bool
	log     logrus.FieldLogger
}

func NewProvider(source Source, loader *Loader, watcher *Watcher, log logrus.FieldLogger) *Provider {
	return &Provider{source: source, loader: loader, watcher: watcher, log: log}
}

// Current returns the gallery, loading it on first use or when stale.
func (p *Provider) Current(ctx context.Context) (facematch.Gallery, Stats, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	stale := p.dirty || (p.watcher != nil && p.watcher.Stale())
	if p.loaded && !stale {
		return p.gallery, p.stats, nil
	}

	if p.watcher != nil {
		p.watcher.MarkFresh()
	}
	g, stats, err := p.loader.Load(ctx, p.source)
	if err != nil {
		// the watcher was already reset, keep the change pending for the next call
		p.dirty = true
		return nil, stats, err
	}
	p.gallery, p.stats, p.loaded, p.dirty = g, stats, true, false

	p.log.WithFields(logrus.Fields{
		"identities": stats.Groups,
		"images":     stats.Images,
		"entries":    stats.Entries,
		"no_face":    stats.NoFace,
		"failed":     stats.Failed,
		"cache_hits": stats.CacheHit,
	}).Info("gallery loaded")
	return g, stats, nil
}

// Invalidate forces a reload on the next Current call.
func (p *Provider) Invalidate() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.dirty = true
}
