package model

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sync/atomic"
)

// RemoteEngine delegates inference to an HTTP model service that accepts
// {"features": [...]} on POST /predict and answers with {"labels": [...]} or
// {"scores": [...]}.
type RemoteEngine struct {
	url      *url.URL
	client   *http.Client
	Metadata Metadata
	closed   atomic.Bool
}

type remoteRequest struct {
	Features []float32 `json:"features"`
}

type remoteResponse struct {
	Labels []int     `json:"labels,omitempty"`
	Scores []float32 `json:"scores,omitempty"`
}

func NewRemoteEngine(baseURL string, client *http.Client, metadata Metadata) (*RemoteEngine, error) {
	if err := metadata.Validate(); err != nil {
		return nil, err
	}

	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid inference url: %w", err)
	}
	if u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("invalid inference url %q: scheme and host required", baseURL)
	}

	if client == nil {
		client = http.DefaultClient
	}

	return &RemoteEngine{url: u, client: client, Metadata: metadata}, nil
}

func (r *RemoteEngine) Infer(features []float32) (*RawPrediction, error) {
	if r.closed.Load() {
		return nil, &InferenceError{Op: "infer", Err: ErrClosed}
	}
	if err := checkInput(features, r.Metadata.InputSize()); err != nil {
		return nil, err
	}

	body, err := json.Marshal(remoteRequest{Features: features})
	if err != nil {
		return nil, &InferenceError{Op: "encode", Err: err}
	}

	request, err := http.NewRequest(http.MethodPost, r.url.JoinPath("/predict").String(), bytes.NewReader(body))
	if err != nil {
		return nil, &InferenceError{Op: "request", Err: err}
	}
	request.Header.Set("Content-Type", "application/json")

	response, err := r.client.Do(request)
	if err != nil {
		return nil, &InferenceError{Op: "send", Err: err}
	}
	defer response.Body.Close()

	if response.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(response.Body, 512))
		return nil, &InferenceError{
			Op:  "send",
			Err: fmt.Errorf("server response status code: %d, body: %s", response.StatusCode, msg),
		}
	}

	var resp remoteResponse
	if err := json.NewDecoder(response.Body).Decode(&resp); err != nil {
		return nil, &InferenceError{Op: "decode", Err: err}
	}

	prediction := &RawPrediction{Labels: resp.Labels, Scores: resp.Scores}
	if err := finishPrediction(prediction, r.Metadata); err != nil {
		return nil, err
	}
	return prediction, nil
}

// CheckHealth probes GET /health on the model service.
func (r *RemoteEngine) CheckHealth(ctx context.Context) error {
	request, err := http.NewRequestWithContext(ctx, http.MethodGet, r.url.JoinPath("/health").String(), nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}

	response, err := r.client.Do(request)
	if err != nil {
		return fmt.Errorf("send request: %w", err)
	}
	defer response.Body.Close()

	if response.StatusCode != http.StatusOK {
		return fmt.Errorf("ml service unhealthy: %d", response.StatusCode)
	}
	return nil
}

func (r *RemoteEngine) Close() error {
	if r.closed.Swap(true) {
		return nil
	}
	r.client.CloseIdleConnections()
	return nil
}
