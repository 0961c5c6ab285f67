package model

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/narravox/narravox/internal/config"
	"github.com/narravox/narravox/internal/frame"
)

// serverBackend targets a served, batched inference engine over HTTP. Such
// engines schedule concurrent requests internally, so no client-side
// serialization is needed.
type serverBackend struct {
	endpoint string
	markers  frame.Markers
	client   *http.Client
}

type serverRequest struct {
	Prompt            string  `json:"prompt"`
	Seed              int64   `json:"seed"`
	Temperature       float64 `json:"temperature"`
	TopP              float64 `json:"top_p"`
	MaxTokens         int     `json:"max_tokens"`
	RepetitionPenalty float64 `json:"repetition_penalty,omitempty"`
	StopTokenIDs      []int   `json:"stop_token_ids,omitempty"`
}

type serverResponse struct {
	Tokens []int  `json:"tokens"`
	Error  string `json:"error,omitempty"`
}

func NewServerBackend(cfg config.ModelConfig) Backend {
	return &serverBackend{
		endpoint: cfg.Endpoint,
		markers:  markersFromConfig(cfg.Markers),
		client:   http.DefaultClient,
	}
}

func (s *serverBackend) Generate(ctx context.Context, req Request) ([]int, error) {
	payload := serverRequest{
		Prompt:            PromptPayload(req.Voice, req.Text),
		Seed:              req.Seed,
		Temperature:       req.Sampling.Temperature,
		TopP:              req.Sampling.TopP,
		MaxTokens:         req.Sampling.MaxTokens,
		RepetitionPenalty: req.Sampling.RepetitionPenalty,
		StopTokenIDs:      []int{s.markers.CodeEnd},
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, s.endpoint+"/v1/generate", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("model server request: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return nil, fmt.Errorf("model server returned status %s", resp.Status)
	}

	var decoded serverResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return nil, fmt.Errorf("decode model server response: %w", err)
	}
	if decoded.Error != "" {
		return nil, fmt.Errorf("model server: %s", decoded.Error)
	}
	return decoded.Tokens, nil
}

func (s *serverBackend) Markers() frame.Markers { return s.markers }

func (s *serverBackend) SingleFlight() bool { return false }

func (s *serverBackend) Reset(context.Context) error { return nil }

func (s *serverBackend) Close() error { return nil }
