package handlers

import (
	"image"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kozaktomas/face-attendance/internal/constants"
	"github.com/kozaktomas/face-attendance/internal/stream"
)

func frameOutput() stream.Output {
	return stream.Output{Frame: image.NewRGBA(image.Rect(0, 0, 8, 8))}
}

func TestFrameHub_EmitWithoutViewers(t *testing.T) {
	hub := NewFrameHub(testLog)

	hub.Emit(frameOutput())

	assert.Equal(t, 0, hub.viewers())
}

func TestFrameHub_DropsOldestFrame(t *testing.T) {
	hub := NewFrameHub(testLog)
	frames, unsubscribe := hub.Subscribe()

	for range constants.FrameChannelBuffer + 3 {
		hub.Emit(frameOutput())
	}

	assert.Len(t, frames, constants.FrameChannelBuffer)
	data := <-frames
	assert.Equal(t, []byte{0xFF, 0xD8}, data[:2], "expected JPEG")

	unsubscribe()
	assert.Equal(t, 0, hub.viewers())
}

func TestFrameHub_ServeWS(t *testing.T) {
	hub := NewFrameHub(testLog)
	server := httptest.NewServer(http.HandlerFunc(hub.ServeWS))
	defer server.Close()

	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(server.URL, "http"), nil)
	require.NoError(t, err)
	defer conn.Close()

	require.Eventually(t, func() bool { return hub.viewers() == 1 }, 2*time.Second, 5*time.Millisecond)
	hub.Emit(frameOutput())

	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	kind, data, err := conn.ReadMessage()
	require.NoError(t, err)
	assert.Equal(t, websocket.BinaryMessage, kind)
	assert.Equal(t, []byte{0xFF, 0xD8}, data[:2])

	conn.Close()
	assert.Eventually(t, func() bool { return hub.viewers() == 0 }, 2*time.Second, 5*time.Millisecond)
}
