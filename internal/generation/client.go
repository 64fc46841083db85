package generation

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
)

const maxResponseBytes = 1 << 20

// Request identifies the CV the generation service should produce.
type Request struct {
	CVName         string `json:"cv_name"`
	CVID           string `json:"cv_id,omitempty"`
	JobDescription string `json:"job_description,omitempty"`
}

// Result is the generation service reply. Status is the HTTP status code.
type Result struct {
	Success bool   `json:"success"`
	PDFURL  string `json:"pdfUrl,omitempty"`
	Message string `json:"message,omitempty"`
	Status  int    `json:"-"`
}

// Service is the remote generator. Non-success replies are returned as a
// Result; the error is reserved for transport failures.
type Service interface {
	GenerateCV(ctx context.Context, token string, req Request) (Result, error)
	GenerateProfile(ctx context.Context, token string) (json.RawMessage, error)
}

// HTTPClient calls the generation service over HTTP.
type HTTPClient struct {
	BaseURL    string
	HTTPClient *http.Client
}

// NewHTTPClient constructs an HTTPClient with the given request timeout.
func NewHTTPClient(baseURL string, timeout time.Duration) *HTTPClient {
	if timeout <= 0 {
		timeout = 3 * time.Minute
	}
	return &HTTPClient{
		BaseURL:    strings.TrimRight(baseURL, "/"),
		HTTPClient: &http.Client{Timeout: timeout},
	}
}

// GenerateCV posts to /api/generate-cv.
func (c *HTTPClient) GenerateCV(ctx context.Context, token string, req Request) (Result, error) {
	body, status, err := c.post(ctx, "/api/generate-cv", token, req)
	if err != nil {
		return Result{}, err
	}

	var res Result
	if len(bytes.TrimSpace(body)) > 0 {
		if err := json.Unmarshal(body, &res); err != nil && status < 300 {
			return Result{}, fmt.Errorf("generation response parse: %w", err)
		}
	}
	res.Status = status
	if status < 200 || status >= 300 {
		res.Success = false
		if res.Message == "" {
			res.Message = http.StatusText(status)
		}
	}
	return res, nil
}

// GenerateProfile posts to /api/v2/generate-profile and returns the profile
// document produced from the owner's uploaded sources.
func (c *HTTPClient) GenerateProfile(ctx context.Context, token string) (json.RawMessage, error) {
	body, status, err := c.post(ctx, "/api/v2/generate-profile", token, struct{}{})
	if err != nil {
		return nil, err
	}
	var envelope struct {
		Success *bool           `json:"success"`
		Message string          `json:"message"`
		Profile json.RawMessage `json:"profile"`
	}
	_ = json.Unmarshal(body, &envelope)
	if status < 200 || status >= 300 || (envelope.Success != nil && !*envelope.Success) {
		msg := envelope.Message
		if msg == "" {
			msg = http.StatusText(status)
		}
		return nil, ServiceError(msg, status)
	}
	if len(envelope.Profile) > 0 {
		return envelope.Profile, nil
	}
	if !json.Valid(body) {
		return nil, fmt.Errorf("generation profile response is not json")
	}
	return json.RawMessage(body), nil
}

func (c *HTTPClient) post(ctx context.Context, path, token string, payload any) ([]byte, int, error) {
	if c.BaseURL == "" {
		return nil, 0, errors.New("generation service url is not configured")
	}
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, 0, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+path, bytes.NewReader(raw))
	if err != nil {
		return nil, 0, err
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Content-Type", "application/json")
	otel.GetTextMapPropagator().Inject(ctx, propagation.HeaderCarrier(req.Header))

	resp, err := c.httpClient().Do(req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || strings.Contains(err.Error(), "Client.Timeout") {
			return nil, 0, fmt.Errorf("generation request timeout: %w", err)
		}
		return nil, 0, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, resp.StatusCode, err
	}
	return body, resp.StatusCode, nil
}

func (c *HTTPClient) httpClient() *http.Client {
	if c.HTTPClient != nil {
		return c.HTTPClient
	}
	return http.DefaultClient
}

// Unconfigured rejects every call. It stands in when no generation service
// URL is set so the rest of the API stays usable.
type Unconfigured struct{}

func (Unconfigured) GenerateCV(context.Context, string, Request) (Result, error) {
	return Result{Success: false, Message: "generation service is not configured", Status: http.StatusServiceUnavailable}, nil
}

func (Unconfigured) GenerateProfile(context.Context, string) (json.RawMessage, error) {
	return nil, ServiceError("generation service is not configured", http.StatusServiceUnavailable)
}

var (
	_ Service = (*HTTPClient)(nil)
	_ Service = Unconfigured{}
)
