package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"net/http"
	"time"

	"github.com/marketforge/marketforge/internal/session"
)

const (
	imageMaxRetries   = 3
	imageInitialDelay = 1 * time.Second
)

// ImageClient calls a generative-image API to produce customer avatars. Two
// instances with different models form the primary/fallback pair the
// pipeline degrades across.
type ImageClient struct {
	apiKey  string
	baseURL string
	model   string
	client  *http.Client
}

type imageRequest struct {
	Model      string   `json:"model"`
	Answers    []string `json:"answers"`
	CoreDesire string   `json:"core_desire,omitempty"`
	SixS       string   `json:"six_s,omitempty"`
	Gender     string   `json:"gender"`
}

type imageResponse struct {
	ID          string         `json:"id"`
	Name        string         `json:"name"`
	ImageURL    string         `json:"image_url"`
	Description string         `json:"description"`
	Profile     map[string]any `json:"profile"`
}

type apiError struct {
	Error struct {
		Message string `json:"message"`
		Type    string `json:"type"`
		Code    string `json:"code"`
	} `json:"error"`
}

// NewImageClient creates an avatar image client for the given model.
func NewImageClient(apiKey, baseURL, model string) *ImageClient {
	return &ImageClient{
		apiKey:  apiKey,
		baseURL: baseURL,
		model:   model,
		client:  &http.Client{},
	}
}

// Name identifies the backend (its model name) in combined error reports.
func (c *ImageClient) Name() string { return c.model }

// Generate produces one avatar. Rate-limit responses surface immediately as
// ErrRateLimited so the caller can switch backends; server errors are retried
// with exponential backoff.
func (c *ImageClient) Generate(ctx context.Context, req AvatarRequest) (*session.Avatar, error) {
	if c.apiKey == "" {
		return nil, fmt.Errorf("image API key not set")
	}

	payload := imageRequest{
		Model:   c.model,
		Answers: req.Answers,
		Gender:  req.Gender,
	}
	if req.CoreDesire != nil {
		payload.CoreDesire = *req.CoreDesire
	}
	if req.SixS != nil {
		payload.SixS = *req.SixS
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	var lastErr error
	for attempt := 0; attempt < imageMaxRetries; attempt++ {
		if attempt > 0 {
			delay := time.Duration(math.Pow(2, float64(attempt))) * imageInitialDelay
			select {
			case <-time.After(delay):
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		}

		httpReq, err := http.NewRequestWithContext(ctx, "POST", c.baseURL+"/v1/avatars", bytes.NewReader(body))
		if err != nil {
			return nil, fmt.Errorf("failed to create request: %w", err)
		}
		httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)
		httpReq.Header.Set("Content-Type", "application/json")

		resp, err := c.client.Do(httpReq)
		if err != nil {
			lastErr = fmt.Errorf("HTTP request failed: %w", err)
			continue
		}

		respBody, err := io.ReadAll(resp.Body)
		resp.Body.Close()
		if err != nil {
			lastErr = fmt.Errorf("failed to read response body: %w", err)
			continue
		}

		if resp.StatusCode != http.StatusOK {
			msg := string(respBody)
			var apiErr apiError
			if json.Unmarshal(respBody, &apiErr) == nil && apiErr.Error.Message != "" {
				msg = apiErr.Error.Message
			}

			if resp.StatusCode == http.StatusTooManyRequests {
				return nil, fmt.Errorf("%s (%d): %s: %w", c.model, resp.StatusCode, msg, ErrRateLimited)
			}
			lastErr = fmt.Errorf("image API error (%d): %s", resp.StatusCode, msg)
			if resp.StatusCode >= 500 {
				continue
			}
			return nil, lastErr
		}

		var imageResp imageResponse
		if err := json.Unmarshal(respBody, &imageResp); err != nil {
			return nil, fmt.Errorf("failed to decode response: %w", err)
		}

		avatar := &session.Avatar{
			ID:          imageResp.ID,
			SessionID:   req.SessionID,
			Gender:      req.Gender,
			Name:        imageResp.Name,
			ImageURL:    imageResp.ImageURL,
			Description: imageResp.Description,
			Profile:     imageResp.Profile,
			Model:       c.model,
			CreatedAt:   time.Now().UTC(),
		}
		return avatar, nil
	}

	return nil, fmt.Errorf("max retries (%d) exceeded: %w", imageMaxRetries, lastErr)
}
