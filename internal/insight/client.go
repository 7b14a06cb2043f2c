package insight

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/derivinsight/sentinel/internal/models"
)

// Answer is the structured result of asking the NL2SQL engine one
// natural-language question.
type Answer struct {
	SQL            string       `json:"sql"`
	Results        []models.Row `json:"results"`
	Insight        string       `json:"insight"`
	Recommendation string       `json:"recommendation"`
	Visualization  any          `json:"visualization,omitempty"`
}

// Engine answers natural-language investigation questions against the
// dataset. The concrete implementation is an external service; it may
// fail, and callers isolate that failure to the asking mission.
type Engine interface {
	Answer(ctx context.Context, question, domain string) (*Answer, error)
}

// Client is the HTTP client for the answer engine.
type Client struct {
	url        string
	httpClient *http.Client
}

// NewClient creates an answer engine client against the given endpoint.
func NewClient(url string, timeout time.Duration) *Client {
	return &Client{
		url: url,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

type answerRequest struct {
	Question string `json:"question"`
	Domain   string `json:"domain"`
}

// Answer posts the question and decodes the structured result.
func (c *Client) Answer(ctx context.Context, question, domain string) (*Answer, error) {
	body, err := json.Marshal(answerRequest{Question: question, Domain: domain})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal question: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("answer engine unreachable: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("answer engine returned status %d", resp.StatusCode)
	}

	var answer Answer
	if err := json.NewDecoder(resp.Body).Decode(&answer); err != nil {
		return nil, fmt.Errorf("failed to decode answer: %w", err)
	}

	return &answer, nil
}
