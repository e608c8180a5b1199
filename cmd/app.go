package cmd

import (
	"context"
	"errors"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/kozaktomas/face-attendance/internal/camera"
	"github.com/kozaktomas/face-attendance/internal/config"
	"github.com/kozaktomas/face-attendance/internal/database/postgres"
	"github.com/kozaktomas/face-attendance/internal/embedder"
	"github.com/kozaktomas/face-attendance/internal/facematch"
	"github.com/kozaktomas/face-attendance/internal/frame"
	"github.com/kozaktomas/face-attendance/internal/gallery"
	"github.com/kozaktomas/face-attendance/internal/ledger"
	"github.com/kozaktomas/face-attendance/internal/logging"
	"github.com/kozaktomas/face-attendance/internal/stream"
)

// app wires configuration into the services a command needs. Pieces are
// opened on demand and released together by Close.
type app struct {
	cfg *config.Config
	log *logrus.Entry

	embedder embedder.Service
	pool     *postgres.Pool
	ledger   ledger.Ledger
	closers  []func() error
}

func newApp(cfg *config.Config) *app {
	return &app{cfg: cfg, log: logging.Component("app")}
}

// applyThreshold overrides the configured threshold when the flag is set.
func (a *app) applyThreshold(threshold float64) error {
	if threshold == 0 {
		return nil
	}
	if threshold < 0 {
		return fmt.Errorf("threshold must be positive, got %v", threshold)
	}
	a.cfg.Match.Threshold = threshold
	return nil
}

func (a *app) openEmbedder() (embedder.Service, error) {
	if a.embedder != nil {
		return a.embedder, nil
	}
	e, err := embedder.New(a.cfg.Embedder, a.cfg.Gallery.ModelsDir)
	if err != nil {
		return nil, fmt.Errorf("failed to create %s embedder: %w", a.cfg.Embedder.Backend, err)
	}
	a.embedder = e
	a.closers = append(a.closers, e.Close)
	return e, nil
}

// openPool connects to PostgreSQL when DATABASE_URL is set. A nil pool
// without error means no database is configured.
func (a *app) openPool(ctx context.Context) (*postgres.Pool, error) {
	if a.pool != nil || a.cfg.Database.URL == "" {
		return a.pool, nil
	}
	pool, err := postgres.Open(ctx, &a.cfg.Database)
	if err != nil {
		return nil, err
	}
	a.pool = pool
	a.closers = append(a.closers, pool.Close)
	return pool, nil
}

func (a *app) openLedger(ctx context.Context) (ledger.Ledger, error) {
	if a.ledger != nil {
		return a.ledger, nil
	}
	l, err := ledger.Open(ctx, a.cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s ledger: %w", a.cfg.Ledger.Backend, err)
	}
	a.ledger = l
	a.closers = append(a.closers, l.Close)
	return l, nil
}

// newLoader builds a gallery loader, caching embeddings in PostgreSQL when
// a database is configured.
func (a *app) newLoader(ctx context.Context) (*gallery.Loader, error) {
	e, err := a.openEmbedder()
	if err != nil {
		return nil, err
	}
	loader := &gallery.Loader{
		Embedder:     e,
		Model:        a.cfg.Embedder.Backend,
		MaxImageSide: a.cfg.Gallery.MaxImageSide,
		Log:          logging.Component("gallery"),
	}

	pool, err := a.openPool(ctx)
	if err != nil {
		a.log.WithError(err).Warn("embedding cache disabled")
		return loader, nil
	}
	if pool != nil {
		loader.Cache = postgres.NewEmbeddingRepository(pool)
	}
	return loader, nil
}

// newProvider builds the gallery provider. With watch set, the enrollment
// tree is watched until ctx is done and edits trigger a reload.
func (a *app) newProvider(ctx context.Context, watch bool) (*gallery.Provider, error) {
	loader, err := a.newLoader(ctx)
	if err != nil {
		return nil, err
	}

	var watcher *gallery.Watcher
	if watch {
		watcher, err = gallery.NewWatcher(a.cfg.Gallery.Dir, logging.Component("watcher"))
		if err != nil {
			a.log.WithError(err).Warn("gallery watcher disabled, use reload after editing the gallery")
			watcher = nil
		} else {
			go watcher.Run(ctx)
		}
	}

	return gallery.NewProvider(gallery.NewDirSource(a.cfg.Gallery.Dir), loader, watcher, logging.Component("gallery")), nil
}

// newLoop builds the stream loop over the configured camera.
func (a *app) newLoop(ctx context.Context) (*stream.Loop, error) {
	e, err := a.openEmbedder()
	if err != nil {
		return nil, err
	}
	rec, err := a.openLedger(ctx)
	if err != nil {
		return nil, err
	}

	index := a.cfg.Camera.Index
	return &stream.Loop{
		Open: func() (stream.Device, error) {
			d, err := camera.Open(index)
			if err != nil {
				return nil, err
			}
			return d, nil
		},
		Embedder: frame.NewEmbedder(e, logging.Component("frame")),
		Recorder: rec,
		Matcher:  facematch.NewMatcher(a.cfg.Match.Threshold),
		Index:    a.cfg.Match.Index,
		Log:      logging.Component("stream"),
	}, nil
}

// Close releases everything opened, newest first.
func (a *app) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}
