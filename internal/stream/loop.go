// Package stream runs a live attendance session: read a frame, find faces,
// match them, record first sightings and hand the annotated frame to a sink.
package stream

import (
	"context"
	"errors"
	"fmt"
	"image"
	"io"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/kozaktomas/face-attendance/internal/facematch"
	"github.com/kozaktomas/face-attendance/internal/frame"
	"github.com/kozaktomas/face-attendance/internal/gallery"
	"github.com/kozaktomas/face-attendance/internal/ledger"
	"github.com/kozaktomas/face-attendance/internal/session"
)

var (
	// ErrDevice wraps failures to open or read the capture device.
	ErrDevice = errors.New("capture device error")

	// ErrRecord wraps ledger failures. The session ends so marks are not lost silently.
	ErrRecord = errors.New("attendance record error")
)

// Device is a frame source. Read blocks until the next frame is available.
type Device interface {
	Read() (frame.Frame, error)
	io.Closer
}

// Opener acquires the device. It is called once per session.
type Opener func() (Device, error)

// Output is everything produced for one frame.
type Output struct {
	Seq    uint64
	Frame  *image.RGBA
	Faces  []frame.Labeled
	Marked []ledger.Event
}

// Sink receives outputs in frame order on the loop goroutine.
type Sink interface {
	Emit(out Output)
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(Output)

func (f SinkFunc) Emit(out Output) { f(out) }

// Summary describes a finished session.
type Summary struct {
	SessionID string
	Frames    uint64
	Marked    []facematch.Identity
}

// Loop drives one session at a time. It is not safe for concurrent Run calls.
type Loop struct {
	Open     Opener
	Embedder *frame.Embedder
	Recorder ledger.Recorder
	Matcher  *facematch.Matcher
	Index    string
	Now      func() time.Time
	Log      logrus.FieldLogger
}

// Run processes frames until ctx is cancelled, sess is stopped or the device
// fails. Stop requests are honoured between frames; a frame that has started
// is finished and emitted. The device is closed on every return path once opened.
func (l *Loop) Run(ctx context.Context, sess *session.Context, sink Sink) (Summary, error) {
	sum := Summary{SessionID: sess.ID}
	if len(sess.Gallery) == 0 {
		return sum, session.ErrEmptyGallery
	}

	idx, err := gallery.NewIndex(l.Index, sess.Gallery, l.Matcher)
	if err != nil {
		return sum, err
	}

	log := l.Log.WithField("session", sess.ID)

	dev, err := l.Open()
	if err != nil {
		sess.Stop()
		return sum, fmt.Errorf("%w: %w", ErrDevice, err)
	}
	defer func() {
		if err := dev.Close(); err != nil {
			log.WithError(err).Warn("closing capture device")
		}
	}()

	log.WithField("gallery", idx.Len()).Info("session started")

	for ctx.Err() == nil && sess.Active() {
		f, err := dev.Read()
		if err != nil {
			sess.Stop()
			sum.Marked = sess.Dedup.Marked()
			return sum, fmt.Errorf("%w: %w", ErrDevice, err)
		}

		out, err := l.process(context.WithoutCancel(ctx), sess, idx, f)
		if errors.Is(err, frame.ErrInvalidFrame) {
			sess.Stop()
			sum.Marked = sess.Dedup.Marked()
			return sum, fmt.Errorf("%w: %w", ErrDevice, err)
		}

		sum.Frames++
		out.Seq = sum.Frames
		sink.Emit(out)

		if err != nil {
			sess.Stop()
			sum.Marked = sess.Dedup.Marked()
			return sum, err
		}
	}

	sess.Stop()
	sum.Marked = sess.Dedup.Marked()
	log.WithFields(logrus.Fields{
		"frames": sum.Frames,
		"marked": len(sum.Marked),
	}).Info("session stopped")
	return sum, nil
}

// process handles a single frame. A ledger error is returned together with
// the output built so far so the frame can still be shown.
func (l *Loop) process(ctx context.Context, sess *session.Context, idx gallery.Index, f frame.Frame) (Output, error) {
	img, observations, err := l.Embedder.Embed(ctx, f)
	if err != nil {
		return Output{}, err
	}

	var out Output
	var recordErr error
	for obs := range observations {
		res := idx.Match(obs.Embedding)
		out.Faces = append(out.Faces, frame.Labeled{
			Box:      obs.Box,
			Identity: res.Identity,
			Distance: res.Distance,
		})

		if recordErr != nil || !sess.Dedup.ShouldRecord(res.Identity) {
			continue
		}
		e, err := ledger.Mark(ctx, l.Recorder, res.Identity, sess.ID, l.Now)
		if err != nil {
			recordErr = fmt.Errorf("%w: %w", ErrRecord, err)
			continue
		}
		l.Log.WithFields(logrus.Fields{
			"session":  sess.ID,
			"identity": res.Identity,
			"distance": res.Distance,
		}).Info("attendance marked")
		out.Marked = append(out.Marked, e)
	}

	frame.Annotate(img, out.Faces)
	out.Frame = img
	return out, recordErr
}

// Tee fans an output out to several sinks in order. Nil sinks are skipped.
func Tee(sinks ...Sink) Sink {
	return SinkFunc(func(out Output) {
		for _, s := range sinks {
			if s != nil {
				s.Emit(out)
			}
		}
	})
}
