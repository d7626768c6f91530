package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log"
	"net/http"
)

// fallbackSuggestions is the hardcoded per-question fallback returned when
// the suggestion backend is unavailable.
var fallbackSuggestions = map[int][]string{
	0: {
		"I run an online coaching business",
		"I sell handmade products through my own shop",
		"I offer consulting services to small businesses",
	},
	1: {
		"Helping clients get real results faster",
		"Saving customers time on things they dread doing",
		"Giving people confidence in a skill they struggle with",
	},
	2: {
		"Busy professional women in their 30s and 40s",
		"Male entrepreneurs building their first business",
		"Both men and women starting a side business",
	},
	3: {
		"They feel stuck and don't know the next step",
		"They have tried other solutions that didn't work",
		"They are overwhelmed by conflicting advice",
	},
}

// defaultSuggestions covers questions without a dedicated fallback list.
var defaultSuggestions = []string{
	"Describe it in your own words",
	"Think about your best customer so far",
	"What would you tell a friend who asked?",
}

// SuggestClient calls a generative-text endpoint for answer suggestions,
// degrading to the local fallback list on any failure.
type SuggestClient struct {
	apiKey  string
	baseURL string
	client  *http.Client
}

type suggestRequest struct {
	QuestionIndex int      `json:"question_index"`
	PriorAnswers  []string `json:"prior_answers"`
}

type suggestResponse struct {
	Suggestions []string `json:"suggestions"`
}

// NewSuggestClient creates a suggestion client.
func NewSuggestClient(apiKey, baseURL string) *SuggestClient {
	return &SuggestClient{
		apiKey:  apiKey,
		baseURL: baseURL,
		client:  &http.Client{},
	}
}

// Suggest returns answer suggestions for a question. It never returns an
// empty result: any backend failure falls back to the local list.
func (c *SuggestClient) Suggest(ctx context.Context, questionIndex int, priorAnswers []string) []string {
	suggestions, err := c.fetch(ctx, questionIndex, priorAnswers)
	if err != nil || len(suggestions) == 0 {
		if err != nil {
			log.Printf("Warning: suggestion fetch failed: %v\n", err)
		}
		return Fallback(questionIndex)
	}
	return suggestions
}

func (c *SuggestClient) fetch(ctx context.Context, questionIndex int, priorAnswers []string) ([]string, error) {
	body, err := json.Marshal(suggestRequest{
		QuestionIndex: questionIndex,
		PriorAnswers:  priorAnswers,
	})
	if err != nil {
		return nil, err
	}

	httpReq, err := http.NewRequestWithContext(ctx, "POST", c.baseURL+"/v1/suggestions", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(httpReq)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		return nil, &statusError{code: resp.StatusCode, body: string(respBody)}
	}

	var suggestResp suggestResponse
	if err := json.Unmarshal(respBody, &suggestResp); err != nil {
		return nil, err
	}
	return suggestResp.Suggestions, nil
}

type statusError struct {
	code int
	body string
}

func (e *statusError) Error() string {
	return "suggestion API error (" + http.StatusText(e.code) + "): " + e.body
}

// Fallback returns the local suggestion list for a question.
func Fallback(questionIndex int) []string {
	if s, ok := fallbackSuggestions[questionIndex]; ok {
		return append([]string(nil), s...)
	}
	return append([]string(nil), defaultSuggestions...)
}
