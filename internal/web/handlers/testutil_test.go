package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"io/fs"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/kozaktomas/face-attendance/internal/facematch"
	"github.com/kozaktomas/face-attendance/internal/gallery"
	"github.com/kozaktomas/face-attendance/internal/ledger"
	"github.com/kozaktomas/face-attendance/internal/logging"
	"github.com/kozaktomas/face-attendance/internal/session"
	"github.com/kozaktomas/face-attendance/internal/stream"
	"github.com/kozaktomas/face-attendance/internal/web/middleware"
)

// newTestSessionManager creates a session manager stopped at test end.
func newTestSessionManager(t *testing.T) *middleware.SessionManager {
	t.Helper()
	sm := middleware.NewSessionManager("test-secret")
	t.Cleanup(sm.Stop)
	return sm
}

// loginCookie creates a session and returns its signed cookie.
func loginCookie(t *testing.T, sm *middleware.SessionManager) (*middleware.Session, *http.Cookie) {
	t.Helper()
	session, err := sm.CreateSession("admin")
	if err != nil {
		t.Fatalf("CreateSession: %v", err)
	}
	w := httptest.NewRecorder()
	sm.SetSessionCookie(w, httptest.NewRequest("GET", "/", nil), session)
	cookies := w.Result().Cookies()
	if len(cookies) == 0 {
		t.Fatal("no session cookie")
	}
	return session, cookies[0]
}

// requestWithChiParams creates a request with chi URL parameters
func requestWithChiParams(r *http.Request, params map[string]string) *http.Request {
	rctx := chi.NewRouteContext()
	for key, value := range params {
		rctx.URLParams.Add(key, value)
	}
	return r.WithContext(context.WithValue(r.Context(), chi.RouteCtxKey, rctx))
}

// parseJSONResponse parses a JSON response body into the target type
func parseJSONResponse(t *testing.T, recorder *httptest.ResponseRecorder, target any) {
	t.Helper()
	if err := json.Unmarshal(recorder.Body.Bytes(), target); err != nil {
		t.Fatalf("failed to parse JSON response: %v\nBody: %s", err, recorder.Body.String())
	}
}

// assertStatusCode checks if the response has the expected status code
func assertStatusCode(t *testing.T, recorder *httptest.ResponseRecorder, expected int) {
	t.Helper()
	if recorder.Code != expected {
		t.Errorf("expected status %d, got %d\nBody: %s", expected, recorder.Code, recorder.Body.String())
	}
}

// assertContentType checks if the response has the expected content type
func assertContentType(t *testing.T, recorder *httptest.ResponseRecorder, expected string) {
	t.Helper()
	ct := recorder.Header().Get("Content-Type")
	if ct != expected {
		t.Errorf("expected Content-Type '%s', got '%s'", expected, ct)
	}
}

// assertJSONError checks if the response is a JSON error with the expected message
func assertJSONError(t *testing.T, recorder *httptest.ResponseRecorder, expectedMessage string) {
	t.Helper()
	var result map[string]any
	if err := json.Unmarshal(recorder.Body.Bytes(), &result); err != nil {
		t.Fatalf("failed to parse error response: %v\nBody: %s", err, recorder.Body.String())
	}
	if result["error"] != expectedMessage {
		t.Errorf("expected error '%s', got '%v'", expectedMessage, result["error"])
	}
}

// fakeProvider serves a fixed gallery.
type fakeProvider struct {
	mu          sync.Mutex
	gallery     facematch.Gallery
	err         error
	invalidated int
}

func (p *fakeProvider) Current(context.Context) (facematch.Gallery, gallery.Stats, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.gallery, gallery.Stats{Entries: len(p.gallery)}, p.err
}

func (p *fakeProvider) Invalidate() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.invalidated++
}

// slowProvider blocks in Current until release is closed.
type slowProvider struct {
	fakeProvider
	loading chan struct{}
	release chan struct{}
}

func newSlowProvider(g facematch.Gallery) *slowProvider {
	return &slowProvider{
		fakeProvider: fakeProvider{gallery: g},
		loading:      make(chan struct{}, 1),
		release:      make(chan struct{}),
	}
}

func (p *slowProvider) Current(ctx context.Context) (facematch.Gallery, gallery.Stats, error) {
	p.loading <- struct{}{}
	<-p.release
	return p.fakeProvider.Current(ctx)
}

func twoPeople() facematch.Gallery {
	return facematch.Gallery{
		{Identity: "alice", Embedding: facematch.Embedding{0, 0}},
		{Identity: "alice", Embedding: facematch.Embedding{0, 0.1}},
		{Identity: "bob", Embedding: facematch.Embedding{1, 1}},
	}
}

// scriptedRunner plays back a fixed list of outputs, then waits for stop.
type scriptedRunner struct {
	outputs []stream.Output
	err     error
	started chan *session.Context
}

func (s *scriptedRunner) Run(ctx context.Context, sess *session.Context, sink stream.Sink) (stream.Summary, error) {
	if s.started != nil {
		s.started <- sess
	}
	sum := stream.Summary{SessionID: sess.ID}
	for _, out := range s.outputs {
		for _, e := range out.Marked {
			sess.Dedup.ShouldRecord(e.Identity)
		}
		sum.Frames++
		out.Seq = sum.Frames
		sink.Emit(out)
	}
	if s.err != nil {
		sess.Stop()
		sum.Marked = sess.Dedup.Marked()
		return sum, s.err
	}
	for sess.Active() && ctx.Err() == nil {
		time.Sleep(time.Millisecond)
	}
	sess.Stop()
	sum.Marked = sess.Dedup.Marked()
	return sum, nil
}

// memoryLedger is an in-memory ledger.Reader.
type memoryLedger struct {
	events []ledger.Event
	err    error
}

func (m *memoryLedger) ReadAll(context.Context) ([]ledger.Event, error) {
	return m.events, m.err
}

// memoryStore records saves and removals.
type memoryStore struct {
	saved   map[string][]string
	removed []string
}

func newMemoryStore() *memoryStore {
	return &memoryStore{saved: make(map[string][]string)}
}

func (s *memoryStore) Save(name, filename string, data []byte) (string, error) {
	if name == "../" {
		return "", gallery.ErrInvalidIdentity
	}
	if _, _, err := image.Decode(bytes.NewReader(data)); err != nil {
		return "", gallery.ErrInvalidImage
	}
	s.saved[name] = append(s.saved[name], filename)
	return name + "/" + filename, nil
}

func (s *memoryStore) Remove(name string) error {
	switch name {
	case "../":
		return gallery.ErrInvalidIdentity
	case "ghost":
		return fmt.Errorf("identity ghost: %w", fs.ErrNotExist)
	}
	s.removed = append(s.removed, name)
	return nil
}

func pngBytes(t *testing.T) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 4, 4))
	img.Set(1, 1, color.RGBA{R: 200, A: 255})
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

// multipartRequest builds an upload request with a name and files.
func multipartRequest(t *testing.T, name string, files map[string][]byte) *http.Request {
	t.Helper()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	if name != "" {
		_ = mw.WriteField("name", name)
	}
	for filename, data := range files {
		fw, err := mw.CreateFormFile("files", filename)
		if err != nil {
			t.Fatal(err)
		}
		_, _ = fw.Write(data)
	}
	if err := mw.Close(); err != nil {
		t.Fatal(err)
	}
	req := httptest.NewRequest(http.MethodPost, "/api/v1/faces", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

var testLog = logging.Discard()
