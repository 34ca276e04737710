// Package vision extracts coupon fields from photos through the Anthropic
// Messages API.
package vision

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/tidwall/gjson"

	"github.com/manav03panchal/couponvault/internal/config"
	"github.com/manav03panchal/couponvault/internal/errors"
	"github.com/manav03panchal/couponvault/internal/logging"
	"github.com/manav03panchal/couponvault/internal/metrics"
)

// ServiceName identifies the vision provider in errors.
const ServiceName = "anthropic"

// APIVersion is sent as the anthropic-version header.
const APIVersion = "2023-06-01"

// Prompt asks the model for the coupon fields as a JSON object.
const Prompt = "Analyze this image of a coupon or store logo. Extract the coupon code, " +
	"discount value, store name, and expiry date if present. Return the information in " +
	"JSON format with 'code', 'discount', 'store', and 'expiryDate' fields. If you can't " +
	"find any of these, leave the respective field empty. For the expiry date, use the " +
	"format 'YYYY-MM-DD' if possible, or 'No Expiry' if there's no expiration date."

// Client extracts coupon fields from an image.
type Client interface {
	Extract(ctx context.Context, img Image) (Extraction, error)
}

// AnthropicClient calls the Messages API with a single image block.
type AnthropicClient struct {
	cfg        config.VisionConfig
	httpClient *http.Client
	metrics    *metrics.Metrics
}

// Option configures an AnthropicClient.
type Option func(*AnthropicClient)

// WithHTTPClient overrides the HTTP client. The configured timeout is not applied.
func WithHTTPClient(c *http.Client) Option {
	return func(a *AnthropicClient) { a.httpClient = c }
}

// WithMetrics overrides metrics.Default.
func WithMetrics(m *metrics.Metrics) Option {
	return func(a *AnthropicClient) { a.metrics = m }
}

// NewAnthropicClient creates a client from cfg. Blank settings fall back to
// the runtime defaults.
func NewAnthropicClient(cfg config.VisionConfig, opts ...Option) *AnthropicClient {
	def := config.DefaultRuntimeConfig().Vision
	if strings.TrimSpace(cfg.BaseURL) == "" {
		cfg.BaseURL = def.BaseURL
	}
	if strings.TrimSpace(cfg.Model) == "" {
		cfg.Model = def.Model
	}
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = def.MaxTokens
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = def.Timeout
	}

	a := &AnthropicClient{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: cfg.Timeout},
		metrics:    metrics.Default,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// NewClient creates a client from config.Global.Vision.
func NewClient(opts ...Option) *AnthropicClient {
	return NewAnthropicClient(config.Global.Vision, opts...)
}

// Configured reports whether an API key is set.
func (a *AnthropicClient) Configured() bool {
	return strings.TrimSpace(a.cfg.APIKey) != ""
}

// Extract sends img with Prompt and decodes the fields from the reply.
// A missing API key returns errors.ErrMissingAPIKey; every other failure is an
// *errors.ExternalServiceError whose Message is safe to show to clients.
func (a *AnthropicClient) Extract(ctx context.Context, img Image) (Extraction, error) {
	start := time.Now()
	ext, err := a.extract(ctx, img)
	a.metrics.RecordExtraction(err)

	if err != nil {
		logging.WarnContext(ctx, "image extraction failed",
			logging.KeyDuration, time.Since(start), logging.KeyError, err)
		return Extraction{}, err
	}
	logging.DebugContext(ctx, "image extraction finished", logging.KeyDuration, time.Since(start))
	return ext, nil
}

func (a *AnthropicClient) extract(ctx context.Context, img Image) (Extraction, error) {
	if !a.Configured() {
		return Extraction{}, errors.ErrMissingAPIKey
	}
	if len(img.Data) == 0 {
		return Extraction{}, errors.ErrInvalidImage
	}

	body, err := json.Marshal(a.request(img))
	if err != nil {
		return Extraction{}, failed(0, fmt.Errorf("marshal request: %w", err))
	}
	url := strings.TrimRight(a.cfg.BaseURL, "/") + "/v1/messages"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return Extraction{}, failed(0, fmt.Errorf("build request: %w", err))
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-api-key", a.cfg.APIKey)
	req.Header.Set("anthropic-version", APIVersion)

	res, err := a.httpClient.Do(req)
	if err != nil {
		return Extraction{}, failed(0, fmt.Errorf("request failed: %w", err))
	}
	defer res.Body.Close()

	payload, err := io.ReadAll(io.LimitReader(res.Body, 1<<20))
	if err != nil {
		return Extraction{}, failed(res.StatusCode, fmt.Errorf("read response: %w", err))
	}
	if res.StatusCode < 200 || res.StatusCode >= 300 {
		detail := gjson.GetBytes(payload, "error.message").String()
		if detail == "" {
			detail = strings.TrimSpace(string(payload))
		}
		return Extraction{}, failed(res.StatusCode, fmt.Errorf("status %d: %s", res.StatusCode, detail))
	}

	text := gjson.GetBytes(payload, "content.0.text").String()
	if strings.TrimSpace(text) == "" {
		return Extraction{}, failed(res.StatusCode, fmt.Errorf("%w: empty reply", errors.ErrExtractionFailed))
	}
	ext, err := ParseReply(text)
	if err != nil {
		return Extraction{}, failed(res.StatusCode, err)
	}
	return ext, nil
}

type messageRequest struct {
	Model     string    `json:"model"`
	MaxTokens int       `json:"max_tokens"`
	Messages  []message `json:"messages"`
}

type message struct {
	Role    string         `json:"role"`
	Content []contentBlock `json:"content"`
}

type contentBlock struct {
	Type   string       `json:"type"`
	Text   string       `json:"text,omitempty"`
	Source *imageSource `json:"source,omitempty"`
}

type imageSource struct {
	Type      string `json:"type"`
	MediaType string `json:"media_type"`
	Data      string `json:"data"`
}

func (a *AnthropicClient) request(img Image) messageRequest {
	mediaType := img.MediaType
	if mediaType == "" {
		mediaType = MediaTypeJPEG
	}
	return messageRequest{
		Model:     a.cfg.Model,
		MaxTokens: a.cfg.MaxTokens,
		Messages: []message{{
			Role: "user",
			Content: []contentBlock{
				{Type: "text", Text: Prompt},
				{Type: "image", Source: &imageSource{Type: "base64", MediaType: mediaType, Data: img.Base64()}},
			},
		}},
	}
}

// ParseReply pulls the JSON object out of the model's reply text, which may
// wrap it in prose or a code fence.
func ParseReply(text string) (Extraction, error) {
	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start < 0 || end < start {
		return Extraction{}, fmt.Errorf("%w: no JSON object in reply", errors.ErrExtractionFailed)
	}
	obj := text[start : end+1]
	if !gjson.Valid(obj) {
		return Extraction{}, fmt.Errorf("%w: malformed JSON in reply", errors.ErrExtractionFailed)
	}

	fields := gjson.GetMany(obj, "code", "discount", "store", "expiryDate")
	ext := Extraction{
		Code:       fields[0].String(),
		Discount:   fields[1].String(),
		Store:      fields[2].String(),
		ExpiryDate: fields[3].String(),
	}.trimmed()
	if ext.Empty() {
		return Extraction{}, fmt.Errorf("%w: no fields recognized", errors.ErrExtractionFailed)
	}
	return ext, nil
}

func failed(status int, cause error) error {
	return &errors.ExternalServiceError{
		Service:    ServiceName,
		Message:    "extraction failed",
		StatusCode: status,
		Cause:      cause,
	}
}
