package handlers

import (
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"github.com/kozaktomas/face-attendance/internal/constants"
	"github.com/kozaktomas/face-attendance/internal/imageutil"
	"github.com/kozaktomas/face-attendance/internal/stream"
)

const (
	wsWriteTimeout = 5 * time.Second
	wsPingInterval = 30 * time.Second
	wsPongWait     = wsPingInterval + 10*time.Second
)

// FrameHub is the display sink of the live session. Annotated frames are
// JPEG encoded once and pushed to every websocket viewer.
type FrameHub struct {
	upgrader websocket.Upgrader
	log      logrus.FieldLogger

	mu   sync.Mutex
	subs map[chan []byte]struct{}
}

func NewFrameHub(log logrus.FieldLogger) *FrameHub {
	return &FrameHub{
		upgrader: websocket.Upgrader{ReadBufferSize: 1024, WriteBufferSize: 64 * 1024},
		log:      log,
		subs:     make(map[chan []byte]struct{}),
	}
}

// Emit implements stream.Sink. Frames are skipped while nobody watches.
func (h *FrameHub) Emit(out stream.Output) {
	if out.Frame == nil || h.viewers() == 0 {
		return
	}
	data, err := imageutil.EncodeJPEG(out.Frame, constants.FrameJPEGQuality)
	if err != nil {
		h.log.WithError(err).Warn("encode live frame")
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	for ch := range h.subs {
		// Replace the oldest pending frame instead of blocking the loop.
		select {
		case ch <- data:
		default:
			select {
			case <-ch:
			default:
			}
			select {
			case ch <- data:
			default:
			}
		}
	}
}

func (h *FrameHub) viewers() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs)
}

// Subscribe registers a viewer. The returned func unsubscribes it.
func (h *FrameHub) Subscribe() (<-chan []byte, func()) {
	ch := make(chan []byte, constants.FrameChannelBuffer)
	h.mu.Lock()
	h.subs[ch] = struct{}{}
	h.mu.Unlock()

	return ch, func() {
		h.mu.Lock()
		delete(h.subs, ch)
		h.mu.Unlock()
	}
}

// ServeWS upgrades the request and streams frames as binary JPEG messages.
func (h *FrameHub) ServeWS(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.WithError(err).Debug("websocket upgrade failed")
		return
	}
	defer conn.Close()

	frames, unsubscribe := h.Subscribe()
	defer unsubscribe()

	// Viewers never send data; reading only detects the close.
	closed := make(chan struct{})
	conn.SetReadLimit(512)
	_ = conn.SetReadDeadline(time.Now().Add(wsPongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(wsPongWait))
	})
	go func() {
		defer close(closed)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ticker := time.NewTicker(wsPingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-closed:
			return
		case <-r.Context().Done():
			return
		case data := <-frames:
			_ = conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
			if err := conn.WriteMessage(websocket.BinaryMessage, data); err != nil {
				return
			}
		case <-ticker.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(wsWriteTimeout)); err != nil {
				return
			}
		}
	}
}
