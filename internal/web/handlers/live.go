package handlers

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/kozaktomas/face-attendance/internal/facematch"
	"github.com/kozaktomas/face-attendance/internal/gallery"
	"github.com/kozaktomas/face-attendance/internal/session"
	"github.com/kozaktomas/face-attendance/internal/stream"
	"github.com/kozaktomas/face-attendance/internal/web/middleware"
)

// ErrSessionActive is returned when a live session is already using the camera.
var ErrSessionActive = errors.New("a live session is already running")

const (
	msgNoKnownFaces = "No known faces found. Please upload some first."
	msgCameraFailed = "Failed to access camera"
	stopWait        = 5 * time.Second
)

// GalleryProvider hands out the current gallery.
type GalleryProvider interface {
	Current(ctx context.Context) (facematch.Gallery, gallery.Stats, error)
	Invalidate()
}

// LoopRunner runs one live session to completion.
type LoopRunner interface {
	Run(ctx context.Context, sess *session.Context, sink stream.Sink) (stream.Summary, error)
}

// LiveStatus describes the running or the last finished session.
type LiveStatus struct {
	Running   bool                 `json:"running"`
	SessionID string               `json:"session_id,omitempty"`
	StartedAt *time.Time           `json:"started_at,omitempty"`
	Frames    uint64               `json:"frames"`
	Marked    []facematch.Identity `json:"marked"`
	Error     string               `json:"error,omitempty"`
}

type liveRun struct {
	sess   *session.Context
	cancel context.CancelFunc
	done   chan struct{}
	frames atomic.Uint64
}

// LiveHandler owns the camera: at most one session runs at a time.
type LiveHandler struct {
	EventBroadcaster

	provider GalleryProvider
	runner   LoopRunner
	frames   *FrameHub
	notifier stream.Sink
	log      logrus.FieldLogger

	mu       sync.Mutex
	run      *liveRun
	starting bool // a Begin is loading the gallery
	last     LiveStatus
}

// NewLiveHandler creates the live session handler. notifier may be a nil interface.
func NewLiveHandler(provider GalleryProvider, runner LoopRunner, frames *FrameHub, notifier stream.Sink, log logrus.FieldLogger) *LiveHandler {
	if frames == nil {
		frames = NewFrameHub(log)
	}
	return &LiveHandler{
		provider: provider,
		runner:   runner,
		frames:   frames,
		notifier: notifier,
		log:      log,
		last:     LiveStatus{Marked: []facematch.Identity{}},
	}
}

// Begin starts a session over the current gallery. The gallery is loaded
// without holding the handler lock, a concurrent Begin gets ErrSessionActive.
func (h *LiveHandler) Begin(ctx context.Context, authenticated bool) (LiveStatus, error) {
	h.mu.Lock()
	if h.run != nil || h.starting {
		status := h.statusLocked()
		h.mu.Unlock()
		return status, ErrSessionActive
	}
	h.starting = true
	h.mu.Unlock()

	sess, err := h.prepare(ctx, authenticated)

	h.mu.Lock()
	defer h.mu.Unlock()
	h.starting = false
	if err != nil {
		return LiveStatus{}, err
	}

	runCtx, cancel := context.WithCancel(context.Background())
	run := &liveRun{sess: sess, cancel: cancel, done: make(chan struct{})}
	h.run = run

	status := h.statusLocked()
	h.SendEvent(Event{Type: EventStarted, Data: status})

	go h.execute(runCtx, run)
	return status, nil
}

func (h *LiveHandler) prepare(ctx context.Context, authenticated bool) (*session.Context, error) {
	g, _, err := h.provider.Current(ctx)
	if err != nil {
		return nil, err
	}
	return session.Start(g, authenticated)
}

func (h *LiveHandler) execute(ctx context.Context, run *liveRun) {
	defer close(run.done)
	defer run.cancel()

	counter := stream.SinkFunc(func(out stream.Output) {
		run.frames.Store(out.Seq)
		for _, e := range out.Marked {
			h.SendEvent(Event{Type: EventMarked, Message: "Marked attendance for " + string(e.Identity), Data: e})
		}
	})
	sum, err := h.runner.Run(ctx, run.sess, stream.Tee(counter, h.frames, h.notifier))

	final := LiveStatus{
		SessionID: run.sess.ID,
		StartedAt: &run.sess.StartedAt,
		Frames:    sum.Frames,
		Marked:    sum.Marked,
	}
	if final.Marked == nil {
		final.Marked = []facematch.Identity{}
	}
	if err != nil {
		final.Error = userMessage(err)
		h.log.WithError(err).WithField("session", run.sess.ID).Error("live session failed")
	}

	h.mu.Lock()
	h.run = nil
	h.last = final
	h.mu.Unlock()

	if err != nil {
		h.SendEvent(Event{Type: EventError, Message: final.Error})
	}
	h.SendEvent(Event{Type: EventStopped, Data: final})
}

// userMessage maps session errors to what the operator is shown.
func userMessage(err error) string {
	switch {
	case errors.Is(err, stream.ErrDevice):
		return msgCameraFailed
	case errors.Is(err, session.ErrEmptyGallery):
		return msgNoKnownFaces
	case errors.Is(err, stream.ErrRecord):
		return "Failed to record attendance"
	default:
		return err.Error()
	}
}

// End asks the running session to stop after its current frame and waits
// up to timeout for it to finish. It reports false when nothing was running.
func (h *LiveHandler) End(timeout time.Duration) (LiveStatus, bool) {
	h.mu.Lock()
	run := h.run
	h.mu.Unlock()
	if run == nil {
		return h.Snapshot(), false
	}

	run.sess.Stop()
	select {
	case <-run.done:
	case <-time.After(timeout):
	}
	return h.Snapshot(), true
}

// Shutdown stops a running session and waits for the device to be released.
func (h *LiveHandler) Shutdown(ctx context.Context) {
	h.mu.Lock()
	run := h.run
	h.mu.Unlock()
	if run == nil {
		return
	}
	run.sess.Stop()
	run.cancel()
	select {
	case <-run.done:
	case <-ctx.Done():
	}
}

// Snapshot returns the current status.
func (h *LiveHandler) Snapshot() LiveStatus {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.statusLocked()
}

func (h *LiveHandler) statusLocked() LiveStatus {
	if h.run == nil {
		return h.last
	}
	return LiveStatus{
		Running:   true,
		SessionID: h.run.sess.ID,
		StartedAt: &h.run.sess.StartedAt,
		Frames:    h.run.frames.Load(),
		Marked:    h.run.sess.Dedup.Marked(),
	}
}

// Start handles POST /live/start.
func (h *LiveHandler) Start(w http.ResponseWriter, r *http.Request) {
	authenticated := middleware.GetSessionFromContext(r.Context()) != nil

	status, err := h.Begin(r.Context(), authenticated)
	switch {
	case errors.Is(err, ErrSessionActive):
		respondError(w, http.StatusConflict, err.Error())
	case errors.Is(err, session.ErrEmptyGallery):
		respondError(w, http.StatusConflict, msgNoKnownFaces)
	case err != nil:
		h.log.WithError(err).Error("loading gallery for live session")
		respondError(w, http.StatusInternalServerError, "failed to load gallery")
	default:
		respondJSON(w, http.StatusAccepted, status)
	}
}

// Stop handles POST /live/stop.
func (h *LiveHandler) Stop(w http.ResponseWriter, r *http.Request) {
	status, ok := h.End(stopWait)
	if !ok {
		respondError(w, http.StatusConflict, "no live session is running")
		return
	}
	respondJSON(w, http.StatusOK, status)
}

// Status handles GET /live.
func (h *LiveHandler) Status(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, h.Snapshot())
}

// Events handles GET /live/events as a server-sent event stream.
func (h *LiveHandler) Events(w http.ResponseWriter, r *http.Request) {
	streamEvents(w, r, &h.EventBroadcaster, h.Snapshot())
}

// Frames handles GET /live/frames as a websocket of annotated JPEG frames.
func (h *LiveHandler) Frames(w http.ResponseWriter, r *http.Request) {
	h.frames.ServeWS(w, r)
}
