// Package apiclient submits queue items to the image-studio API.
package apiclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"strings"
	"time"

	"image-studio-backend/internal/gate"
	"image-studio-backend/internal/models"
	"image-studio-backend/internal/queue"
)

// RefusalError is an entitlement refusal returned by the server.
type RefusalError struct {
	Outcome gate.Outcome
	Message string
}

func (e *RefusalError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("%s: %s", e.Outcome, e.Message)
	}
	return string(e.Outcome)
}

// Is lets a quota refusal match queue.ErrQuotaExceeded so the queue stops the batch.
func (e *RefusalError) Is(target error) bool {
	return target == queue.ErrQuotaExceeded && e.Outcome == gate.QuotaExceeded
}

type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
}

// NewClient returns a client for baseURL. token is the caller's bearer token;
// an empty token submits as an anonymous lead.
func NewClient(baseURL, token string) *Client {
	return &Client{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		token:   token,
		httpClient: &http.Client{
			Timeout: 180 * time.Second,
		},
	}
}

// Submit posts one item to the submission endpoint and returns its result reference.
func (c *Client) Submit(ctx context.Context, item queue.Item, opts queue.Options) (string, error) {
	mode := opts.Mode
	if mode == "" {
		mode = "enhance"
	}

	var body bytes.Buffer
	w := multipart.NewWriter(&body)

	header := make(textproto.MIMEHeader)
	header.Set("Content-Disposition", fmt.Sprintf(`form-data; name="image"; filename=%q`, item.Name))
	header.Set("Content-Type", item.ContentType)
	part, err := w.CreatePart(header)
	if err != nil {
		return "", fmt.Errorf("failed to create image part: %w", err)
	}
	if _, err := part.Write(item.Payload); err != nil {
		return "", fmt.Errorf("failed to write image part: %w", err)
	}
	for k, v := range opts.Params {
		if err := w.WriteField(k, v); err != nil {
			return "", fmt.Errorf("failed to write option %s: %w", k, err)
		}
	}
	if err := w.Close(); err != nil {
		return "", fmt.Errorf("failed to finish multipart body: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/v1/transform/"+mode, &body)
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", w.FormDataContentType())
	c.authorize(req)

	var out models.SubmitResponse
	if err := c.do(req, &out); err != nil {
		return "", err
	}
	return out.ResultRef, nil
}

// Usage fetches the caller's current counters and gate outcome.
func (c *Client) Usage(ctx context.Context) (*models.UsageResponse, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/api/v1/usage", nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	c.authorize(req)

	var out models.UsageResponse
	if err := c.do(req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// RegisterEmail attaches an email address to the caller's anonymous lead.
func (c *Client) RegisterEmail(ctx context.Context, email string) error {
	payload, err := json.Marshal(models.RegisterEmailRequest{Email: email})
	if err != nil {
		return fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/v1/leads/email", bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	c.authorize(req)

	return c.do(req, nil)
}

func (c *Client) authorize(req *http.Request) {
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
}

func (c *Client) do(req *http.Request, out interface{}) error {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to execute request: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response body: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return decodeError(resp.StatusCode, data)
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("failed to decode response: %w, body: %s", err, string(data))
	}
	return nil
}

func decodeError(status int, data []byte) error {
	var er models.ErrorResponse
	if json.Unmarshal(data, &er) == nil {
		if outcome, ok := gate.ParseOutcome(er.Reason); ok && !outcome.Allowed() {
			return &RefusalError{Outcome: outcome, Message: er.Message}
		}
		if er.Error != "" {
			return fmt.Errorf("request failed: status %d: %s", status, strings.TrimSpace(er.Error+" "+er.Message))
		}
	}
	return fmt.Errorf("request failed: status %d, body: %s", status, string(data))
}

// IsRefusal reports whether err is an entitlement refusal with the given outcome.
func IsRefusal(err error, outcome gate.Outcome) bool {
	var re *RefusalError
	return errors.As(err, &re) && re.Outcome == outcome
}
