package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/marketforge/marketforge/internal/session"
)

// TextClient calls a generative-text API to produce marketing statements.
type TextClient struct {
	apiKey  string
	baseURL string
	client  *http.Client
}

type statementsRequest struct {
	Answers    []string       `json:"answers"`
	CoreDesire string         `json:"core_desire,omitempty"`
	SixS       string         `json:"six_s,omitempty"`
	Avatar     map[string]any `json:"avatar"`
}

type statementsResponse struct {
	ID         string   `json:"id"`
	Statements []string `json:"statements"`
	Summary    string   `json:"summary"`
}

// NewTextClient creates a marketing statement client.
func NewTextClient(apiKey, baseURL string) *TextClient {
	return &TextClient{
		apiKey:  apiKey,
		baseURL: baseURL,
		client:  &http.Client{},
	}
}

// Write generates marketing statements for the given avatar. Errors propagate
// to the caller, which owns the retry decision.
func (c *TextClient) Write(ctx context.Context, req StatementRequest) (*session.Statements, error) {
	if c.apiKey == "" {
		return nil, fmt.Errorf("text API key not set")
	}
	if req.Avatar == nil {
		return nil, fmt.Errorf("statement generation requires an avatar")
	}

	payload := statementsRequest{
		Answers: req.Answers,
		Avatar: map[string]any{
			"name":        req.Avatar.Name,
			"gender":      req.Avatar.Gender,
			"description": req.Avatar.Description,
		},
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

	httpReq, err := http.NewRequestWithContext(ctx, "POST", c.baseURL+"/v1/statements", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("HTTP request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		msg := string(respBody)
		var apiErr apiError
		if json.Unmarshal(respBody, &apiErr) == nil && apiErr.Error.Message != "" {
			msg = apiErr.Error.Message
		}
		if resp.StatusCode == http.StatusTooManyRequests {
			return nil, fmt.Errorf("text API (%d): %s: %w", resp.StatusCode, msg, ErrRateLimited)
		}
		return nil, fmt.Errorf("text API error (%d): %s", resp.StatusCode, msg)
	}

	var stResp statementsResponse
	if err := json.Unmarshal(respBody, &stResp); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}

	return &session.Statements{
		ID:        stResp.ID,
		SessionID: req.Avatar.SessionID,
		AvatarID:  req.Avatar.ID,
		Items:     stResp.Statements,
		Summary:   stResp.Summary,
		CreatedAt: time.Now().UTC(),
	}, nil
}
