// Package constants provides shared constants used across the codebase.
package constants

// Live session constants
const (
	// EventChannelBuffer is the buffer size for SSE listener channels
	EventChannelBuffer = 100

	// FrameChannelBuffer is how many encoded frames a slow websocket viewer may lag behind
	FrameChannelBuffer = 2

	// FrameJPEGQuality is the JPEG quality of frames pushed to viewers
	FrameJPEGQuality = 75
)

// HTTP constants
const (
	// MaxUploadSize is the maximum enrollment upload size in bytes (32MB)
	MaxUploadSize = 32 << 20

	// DefaultAttendanceLimit caps the attendance listing when no limit is given
	DefaultAttendanceLimit = 1000
)
