package transform

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"strings"
	"time"

	"github.com/gabriel-vasile/mimetype"
)

type Mode string

const (
	ModeEnhance Mode = "enhance"
	ModeUpscale Mode = "upscale"
)

func ParseMode(s string) (Mode, error) {
	switch m := Mode(strings.ToLower(s)); m {
	case ModeEnhance, ModeUpscale:
		return m, nil
	}
	return "", fmt.Errorf("unknown transformation mode %q", s)
}

// Result is the transformed image returned by the service.
type Result struct {
	Data        []byte
	ContentType string
}

// StatusError is a non-2xx answer from the transformation service.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("transformation service returned status %d, body: %s", e.StatusCode, e.Body)
}

// Retryable reports whether the same request might succeed later.
func (e *StatusError) Retryable() bool {
	return e.StatusCode >= 500 || e.StatusCode == http.StatusTooManyRequests
}

type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	backoffs   []time.Duration
}

func NewClient(baseURL, apiKey string) *Client {
	return &Client{
		baseURL: baseURL,
		apiKey:  apiKey,
		httpClient: &http.Client{
			Timeout: 120 * time.Second,
		},
		backoffs: []time.Duration{1 * time.Second, 2 * time.Second, 4 * time.Second},
	}
}

// WithBackoffs replaces the waits between retries.
func (c *Client) WithBackoffs(backoffs ...time.Duration) *Client {
	c.backoffs = backoffs
	return c
}

// Transform uploads image and returns the processed result. Network errors
// and 5xx/429 answers are retried; other failures return immediately.
func (c *Client) Transform(ctx context.Context, image []byte, contentType string, mode Mode, options map[string]string) (*Result, error) {
	if len(image) == 0 {
		return nil, errors.New("empty image payload")
	}

	var result *Result
	err := c.RetryWithBackoff(ctx, func() error {
		r, err := c.transformOnce(ctx, image, contentType, mode, options)
		if err != nil {
			return err
		}
		result = r
		return nil
	}, len(c.backoffs)+1)
	if err != nil {
		return nil, err
	}
	return result, nil
}

func (c *Client) transformOnce(ctx context.Context, image []byte, contentType string, mode Mode, options map[string]string) (*Result, error) {
	var body bytes.Buffer
	w := multipart.NewWriter(&body)

	header := make(textproto.MIMEHeader)
	header.Set("Content-Disposition", `form-data; name="image"; filename="image"`)
	header.Set("Content-Type", contentType)
	part, err := w.CreatePart(header)
	if err != nil {
		return nil, fmt.Errorf("failed to create image part: %w", err)
	}
	if _, err := part.Write(image); err != nil {
		return nil, fmt.Errorf("failed to write image part: %w", err)
	}
	for k, v := range options {
		if err := w.WriteField(k, v); err != nil {
			return nil, fmt.Errorf("failed to write option %s: %w", k, err)
		}
	}
	if err := w.Close(); err != nil {
		return nil, fmt.Errorf("failed to finish multipart body: %w", err)
	}

	url := strings.TrimSuffix(c.baseURL, "/") + "/transform/" + string(mode)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, &body)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("x-api-key", c.apiKey)
	req.Header.Set("Content-Type", w.FormDataContentType())

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to execute request: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, &StatusError{StatusCode: resp.StatusCode, Body: string(data)}
	}
	if len(data) == 0 {
		return nil, errors.New("transformation service returned an empty image")
	}

	ct := resp.Header.Get("Content-Type")
	if ct == "" || ct == "application/octet-stream" {
		ct = mimetype.Detect(data).String()
	}
	return &Result{Data: data, ContentType: ct}, nil
}

// RetryWithBackoff runs fn up to maxRetries times, sleeping between attempts.
// It stops early on context cancellation and on non-retryable status errors.
func (c *Client) RetryWithBackoff(ctx context.Context, fn func() error, maxRetries int) error {
	var lastErr error
	for i := 0; i < maxRetries; i++ {
		err := fn()
		if err == nil {
			return nil
		}
		lastErr = err

		var se *StatusError
		if errors.As(err, &se) && !se.Retryable() {
			return err
		}
		if i == maxRetries-1 {
			break
		}

		if i < len(c.backoffs) {
			select {
			case <-ctx.Done():
				return fmt.Errorf("transformation cancelled: %w", ctx.Err())
			case <-time.After(c.backoffs[i]):
			}
		}
	}

	return fmt.Errorf("failed after %d retries: %w", maxRetries, lastErr)
}
