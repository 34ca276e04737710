package server

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"image"
	"image/png"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/manav03panchal/couponvault/internal/config"
	"github.com/manav03panchal/couponvault/internal/errors"
	"github.com/manav03panchal/couponvault/internal/health"
	"github.com/manav03panchal/couponvault/internal/metrics"
	"github.com/manav03panchal/couponvault/internal/vision"
)

type fakeVision struct {
	ext        vision.Extraction
	err        error
	configured bool
	got        vision.Image
}

func (f *fakeVision) Extract(_ context.Context, img vision.Image) (vision.Extraction, error) {
	f.got = img
	return f.ext, f.err
}

func (f *fakeVision) Configured() bool { return f.configured }

func testImage(t *testing.T) string {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, image.NewRGBA(image.Rect(0, 0, 8, 8))))
	return "data:image/png;base64," + base64.StdEncoding.EncodeToString(buf.Bytes())
}

func newTestServer(v *fakeVision, opts ...Option) *Server {
	opts = append([]Option{
		WithConfig(config.ServerConfig{MaxBodyBytes: 1 << 20}),
		WithMetrics(metrics.New()),
	}, opts...)
	return New(v, opts...)
}

func post(t *testing.T, s *Server, body string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/process-image", strings.NewReader(body))
	s.Handler().ServeHTTP(rec, req)
	return rec
}

func imageBody(data string) string {
	b, _ := json.Marshal(map[string]string{"imageData": data})
	return string(b)
}

func errorOf(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var resp errorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	return resp.Error
}

func TestProcessImageSuccess(t *testing.T) {
	v := &fakeVision{configured: true, ext: vision.Extraction{Code: "SAVE10", Store: "Acme"}}
	rec := post(t, newTestServer(v), imageBody(testImage(t)))

	require.Equal(t, http.StatusOK, rec.Code)
	var ext vision.Extraction
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &ext))
	assert.Equal(t, "SAVE10", ext.Code)
	assert.Equal(t, vision.MediaTypeJPEG, v.got.MediaType)
	assert.Equal(t, 8, v.got.Width)
}

func TestProcessImageBadRequests(t *testing.T) {
	v := &fakeVision{configured: true}
	s := newTestServer(v)

	tests := []struct {
		name string
		body string
		want string
	}{
		{"malformed json", "{", "Invalid request body"},
		{"missing image", `{}`, "No image data provided"},
		{"invalid base64", imageBody("data:image/png;base64,@@@"), "Invalid base64 image data"},
		{"not an image", imageBody(base64.StdEncoding.EncodeToString([]byte("hello"))), "Invalid image data"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := post(t, s, tt.body)
			assert.Equal(t, http.StatusBadRequest, rec.Code)
			assert.Equal(t, tt.want, errorOf(t, rec))
		})
	}
}

func TestProcessImageMissingKey(t *testing.T) {
	rec := post(t, newTestServer(&fakeVision{}), imageBody(testImage(t)))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, "API key not configured", errorOf(t, rec))
}

func TestProcessImageUpstreamFailure(t *testing.T) {
	v := &fakeVision{configured: true, err: &errors.ExternalServiceError{
		Service: "anthropic", Message: "extraction failed", StatusCode: 500,
	}}
	rec := post(t, newTestServer(v), imageBody(testImage(t)))
	assert.Equal(t, http.StatusBadGateway, rec.Code)
	assert.Equal(t, "extraction failed", errorOf(t, rec))
}

func TestProcessImageBodyLimit(t *testing.T) {
	s := newTestServer(&fakeVision{configured: true}, WithConfig(config.ServerConfig{MaxBodyBytes: 64}))
	rec := post(t, s, imageBody(strings.Repeat("A", 256)))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHealthAndMetrics(t *testing.T) {
	m := metrics.New()
	h := health.NewChecker("test")
	s := newTestServer(&fakeVision{configured: true}, WithMetrics(m), WithHealth(h))

	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"version":"test"`)

	rec = httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "couponvault_http_requests_total")
	assert.Contains(t, rec.Body.String(), `route="/healthz"`)
}

func TestServeShutsDownOnCancel(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	s := newTestServer(&fakeVision{configured: true})
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Serve(ctx, ln) }()

	require.Eventually(t, func() bool {
		res, err := http.Get("http://" + ln.Addr().String() + "/healthz")
		if err != nil {
			return false
		}
		res.Body.Close()
		return res.StatusCode == http.StatusOK
	}, 2*time.Second, 20*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not stop")
	}
}

// blockingVision holds Extract open until release is closed.
type blockingVision struct {
	started chan struct{}
	release chan struct{}
}

func (b *blockingVision) Extract(ctx context.Context, _ vision.Image) (vision.Extraction, error) {
	close(b.started)
	select {
	case <-b.release:
		return vision.Extraction{Code: "LATE10"}, nil
	case <-ctx.Done():
		return vision.Extraction{}, ctx.Err()
	}
}

func (b *blockingVision) Configured() bool { return true }

func TestServeDrainsInFlightRequests(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	v := &blockingVision{started: make(chan struct{}), release: make(chan struct{})}
	s := New(v, WithConfig(config.ServerConfig{MaxBodyBytes: 1 << 20, ShutdownTimeout: 5 * time.Second}),
		WithMetrics(metrics.New()))
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Serve(ctx, ln) }()

	status := make(chan int, 1)
	go func() {
		url := "http://" + ln.Addr().String() + "/api/process-image"
		res, err := http.Post(url, "application/json", strings.NewReader(imageBody(testImage(t))))
		if err != nil {
			status <- 0
			return
		}
		res.Body.Close()
		status <- res.StatusCode
	}()

	select {
	case <-v.started:
	case <-time.After(5 * time.Second):
		t.Fatal("request never reached the vision client")
	}
	cancel()
	time.Sleep(50 * time.Millisecond)
	close(v.release)

	assert.Equal(t, http.StatusOK, <-status)
	assert.NoError(t, <-done)
}
