package vision

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"image"
	"image/color"
	"image/png"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/manav03panchal/couponvault/internal/config"
	"github.com/manav03panchal/couponvault/internal/errors"
	"github.com/manav03panchal/couponvault/internal/metrics"
	"github.com/manav03panchal/couponvault/internal/model"
)

func pngBytes(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for x := 0; x < w; x++ {
		img.Set(x, 0, color.RGBA{R: 200, A: 255})
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func reply(text string) string {
	b, _ := json.Marshal(map[string]any{
		"content": []map[string]string{{"type": "text", "text": text}},
	})
	return string(b)
}

func newTestClient(t *testing.T, handler http.HandlerFunc) (*AnthropicClient, *metrics.Metrics) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	m := metrics.New()
	c := NewAnthropicClient(config.VisionConfig{APIKey: "sk-test", BaseURL: srv.URL}, WithMetrics(m))
	return c, m
}

// =============================================================================
// Image preparation
// =============================================================================

func TestStripDataURI(t *testing.T) {
	assert.Equal(t, "QUJD", StripDataURI("data:image/png;base64,QUJD"))
	assert.Equal(t, "QUJD", StripDataURI("  QUJD "))
}

func TestIsValidBase64(t *testing.T) {
	assert.True(t, IsValidBase64("QUJD"))
	assert.False(t, IsValidBase64(""))
	assert.False(t, IsValidBase64("not base64!"))
	assert.False(t, IsValidBase64("QUJ"))
}

func TestDecodeImageDataRejectsBadInput(t *testing.T) {
	for _, in := range []string{"", "data:image/png;base64,", "%%%"} {
		_, err := DecodeImageData(in)
		assert.ErrorIs(t, err, errors.ErrInvalidImage, in)
	}
}

func TestPrepareImageDownscales(t *testing.T) {
	raw := pngBytes(t, 400, 100)
	uri := "data:image/png;base64," + base64.StdEncoding.EncodeToString(raw)

	img, err := PrepareImage(uri, 200)
	require.NoError(t, err)
	assert.Equal(t, MediaTypeJPEG, img.MediaType)
	assert.Equal(t, 200, img.Width)
	assert.Equal(t, 50, img.Height)

	cfg, format, err := image.DecodeConfig(bytes.NewReader(img.Data))
	require.NoError(t, err)
	assert.Equal(t, "jpeg", format)
	assert.Equal(t, 200, cfg.Width)
}

func TestPrepareImageKeepsSmallImages(t *testing.T) {
	img, err := PrepareImageBytes(pngBytes(t, 30, 60), 1568)
	require.NoError(t, err)
	assert.Equal(t, 30, img.Width)
	assert.Equal(t, 60, img.Height)
}

func TestPrepareImageRejectsNonImage(t *testing.T) {
	_, err := PrepareImageBytes([]byte("plain text"), 100)
	assert.ErrorIs(t, err, errors.ErrInvalidImage)
}

// =============================================================================
// Reply parsing
// =============================================================================

func TestParseReply(t *testing.T) {
	ext, err := ParseReply("Here you go:\n```json\n{\"code\": \" SAVE10 \", \"discount\": \"10%\", \"store\": \"Acme\", \"expiryDate\": \"2026-12-31\"}\n```")
	require.NoError(t, err)
	assert.Equal(t, Extraction{Code: "SAVE10", Discount: "10%", Store: "Acme", ExpiryDate: "2026-12-31"}, ext)
}

func TestParseReplyFailures(t *testing.T) {
	for _, text := range []string{
		"I could not read this image.",
		"{\"code\": ",
		`{"code": "", "discount": "", "store": "", "expiryDate": ""}`,
	} {
		_, err := ParseReply(text)
		assert.ErrorIs(t, err, errors.ErrExtractionFailed, text)
	}
}

func TestExtractionApply(t *testing.T) {
	c := model.Coupon{Store: "Mine", Code: ""}
	Extraction{Code: "X1", Store: "Theirs", Discount: "5%"}.Apply(&c)

	assert.Equal(t, "Mine", c.Store)
	assert.Equal(t, "X1", c.Code)
	assert.Equal(t, "5%", c.Discount)
	assert.Empty(t, c.ExpiryDate)
}

// =============================================================================
// Client
// =============================================================================

func TestExtractSendsMessagesRequest(t *testing.T) {
	var got map[string]any
	c, m := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/messages", r.URL.Path)
		assert.Equal(t, "sk-test", r.Header.Get("x-api-key"))
		assert.Equal(t, APIVersion, r.Header.Get("anthropic-version"))
		body, _ := io.ReadAll(r.Body)
		assert.NoError(t, json.Unmarshal(body, &got))
		_, _ = io.WriteString(w, reply(`{"code":"SAVE10","discount":"10%","store":"Acme","expiryDate":"No Expiry"}`))
	})

	ext, err := c.Extract(context.Background(), Image{Data: []byte{1, 2, 3}, MediaType: MediaTypeJPEG})
	require.NoError(t, err)
	assert.Equal(t, "SAVE10", ext.Code)
	assert.Equal(t, model.NoExpiry, ext.ExpiryDate)

	assert.Equal(t, "claude-3-haiku-20240307", got["model"])
	assert.EqualValues(t, 1000, got["max_tokens"])
	content := got["messages"].([]any)[0].(map[string]any)["content"].([]any)
	assert.Equal(t, Prompt, content[0].(map[string]any)["text"])
	src := content[1].(map[string]any)["source"].(map[string]any)
	assert.Equal(t, "base64", src["type"])
	assert.Equal(t, "AQID", src["data"])

	n, err := testutil.GatherAndCount(m.Registry(), "couponvault_extractions_total")
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestExtractMissingAPIKey(t *testing.T) {
	c := NewAnthropicClient(config.VisionConfig{}, WithMetrics(metrics.New()))
	assert.False(t, c.Configured())

	_, err := c.Extract(context.Background(), Image{Data: []byte{1}})
	assert.ErrorIs(t, err, errors.ErrMissingAPIKey)
}

func TestExtractFailuresCollapse(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		body    string
		wantSts int
	}{
		{"server error", http.StatusInternalServerError, `{"error":{"message":"overloaded"}}`, 500},
		{"unauthorized", http.StatusUnauthorized, `{"error":{"message":"bad key"}}`, 401},
		{"empty content", http.StatusOK, `{"content":[]}`, 200},
		{"nothing recognized", http.StatusOK, reply(`{"code":"","discount":"","store":"","expiryDate":""}`), 200},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = io.WriteString(w, tt.body)
			})

			_, err := c.Extract(context.Background(), Image{Data: []byte{1}})
			ee, ok := errors.AsExternalServiceError(err)
			require.True(t, ok, "got %v", err)
			assert.Equal(t, ServiceName, ee.Service)
			assert.Equal(t, "extraction failed", ee.Message)
			assert.Equal(t, tt.wantSts, ee.StatusCode)
		})
	}
}

func TestExtractTransportFailure(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	c := NewAnthropicClient(config.VisionConfig{APIKey: "k", BaseURL: url}, WithMetrics(metrics.New()))
	_, err := c.Extract(context.Background(), Image{Data: []byte{1}})
	_, ok := errors.AsExternalServiceError(err)
	assert.True(t, ok)
}
