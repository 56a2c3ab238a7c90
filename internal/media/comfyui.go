// Package media implements the ComfyUI-backed video generation client.
//
// The server exposes a queue-and-poll surface: a workflow is POSTed to
// /prompt, which returns a prompt id, and /history/{id} is polled until the
// job's outputs appear. Video synthesis is slow, so callers are expected to
// bound calls with a generous context deadline.
package media

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/playcat/catconsult/internal/flow"
)

const (
	DefaultBaseURL      = "http://localhost:8188"
	DefaultPollInterval = 2 * time.Second
)

// Opts holds configuration for the ComfyUI client.
type Opts struct {
	BaseURL      string
	HTTPClient   *http.Client
	PollInterval time.Duration
}

// Option configures the ComfyUI client.
type Option func(*Opts)

// WithBaseURL points the client at a ComfyUI server.
func WithBaseURL(baseURL string) Option {
	return func(o *Opts) { o.BaseURL = baseURL }
}

// WithHTTPClient substitutes the HTTP client, mainly for tests.
func WithHTTPClient(c *http.Client) Option {
	return func(o *Opts) { o.HTTPClient = c }
}

// WithPollInterval sets how often job history is polled.
func WithPollInterval(d time.Duration) Option {
	return func(o *Opts) { o.PollInterval = d }
}

// Client talks to one ComfyUI server. It implements flow.MediaGenerator.
type Client struct {
	baseURL      string
	httpClient   *http.Client
	pollInterval time.Duration
	clientID     string
}

// NewClient creates a ComfyUI client.
func NewClient(opts ...Option) *Client {
	cfg := Opts{BaseURL: DefaultBaseURL, PollInterval: DefaultPollInterval}
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = &http.Client{}
	}
	return &Client{
		baseURL:      strings.TrimRight(cfg.BaseURL, "/"),
		httpClient:   cfg.HTTPClient,
		pollInterval: cfg.PollInterval,
		clientID:     uuid.NewString(),
	}
}

// GenerateCatVideo queues the combined image+video+audio workflow and waits
// for the outputs. The context deadline bounds the whole operation.
func (c *Client) GenerateCatVideo(ctx context.Context, req flow.VideoRequest) (*flow.VideoJob, error) {
	promptID, err := c.queuePrompt(ctx, buildVideoWorkflow(req))
	if err != nil {
		return nil, fmt.Errorf("failed to queue video workflow: %w", err)
	}
	slog.Info("media.GenerateCatVideo: workflow queued", "promptID", promptID)

	outputs, err := c.waitForCompletion(ctx, promptID)
	if err != nil {
		return nil, fmt.Errorf("video workflow %s did not complete: %w", promptID, err)
	}

	job := &flow.VideoJob{JobID: promptID}
	for _, node := range outputs {
		for _, img := range node.Images {
			if job.ImageURL == "" {
				job.ImageURL = c.viewURL(img)
			}
		}
		for _, vid := range node.Videos {
			if job.VideoURL == "" {
				job.VideoURL = c.viewURL(vid)
			}
		}
		for _, gif := range node.Gifs {
			if job.VideoURL == "" {
				job.VideoURL = c.viewURL(gif)
			}
		}
	}
	if job.VideoURL == "" && job.ImageURL == "" {
		return nil, fmt.Errorf("video workflow %s produced no outputs", promptID)
	}

	slog.Info("media.GenerateCatVideo: workflow complete", "promptID", promptID, "videoURL", job.VideoURL)
	return job, nil
}

// buildVideoWorkflow lays the prompts into the workflow graph the server
// executes: an image stage fed by the scene prompt, a video stage animating
// it, and an audio stage layered over the result.
func buildVideoWorkflow(req flow.VideoRequest) map[string]interface{} {
	return map[string]interface{}{
		"image_generation": map[string]interface{}{
			"class_type": "TextToImage",
			"inputs": map[string]interface{}{
				"text": req.ImagePrompt,
			},
		},
		"video_generation": map[string]interface{}{
			"class_type": "ImageToVideo",
			"inputs": map[string]interface{}{
				"positive": req.VideoPositive,
				"negative": req.VideoNegative,
				"duration": req.Duration,
				"source":   []interface{}{"image_generation", 0},
			},
		},
		"audio_generation": map[string]interface{}{
			"class_type": "VideoAudio",
			"inputs": map[string]interface{}{
				"positive": req.AudioPositive,
				"negative": req.AudioNegative,
				"source":   []interface{}{"video_generation", 0},
			},
		},
	}
}

// queueRequest is the body POSTed to /prompt.
type queueRequest struct {
	Prompt   map[string]interface{} `json:"prompt"`
	ClientID string                 `json:"client_id"`
}

type queueResponse struct {
	PromptID string `json:"prompt_id"`
}

func (c *Client) queuePrompt(ctx context.Context, workflow map[string]interface{}) (string, error) {
	body, err := json.Marshal(queueRequest{Prompt: workflow, ClientID: c.clientID})
	if err != nil {
		return "", fmt.Errorf("failed to marshal workflow: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/prompt", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("failed to create queue request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("queue request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		data, _ := io.ReadAll(resp.Body)
		return "", fmt.Errorf("queue request returned status %d: %s", resp.StatusCode, strings.TrimSpace(string(data)))
	}

	var queued queueResponse
	if err := json.NewDecoder(resp.Body).Decode(&queued); err != nil {
		return "", fmt.Errorf("failed to decode queue response: %w", err)
	}
	if queued.PromptID == "" {
		return "", fmt.Errorf("queue response carried no prompt id")
	}
	return queued.PromptID, nil
}

// outputFile is one artifact produced by a workflow node.
type outputFile struct {
	Filename  string `json:"filename"`
	Subfolder string `json:"subfolder"`
	Type      string `json:"type"`
}

// nodeOutputs groups the artifacts of one node in the history payload.
type nodeOutputs struct {
	Images []outputFile `json:"images,omitempty"`
	Videos []outputFile `json:"videos,omitempty"`
	Gifs   []outputFile `json:"gifs,omitempty"`
}

type historyEntry struct {
	Outputs map[string]nodeOutputs `json:"outputs"`
}

// waitForCompletion polls /history/{id} until the job shows up or the
// context expires.
func (c *Client) waitForCompletion(ctx context.Context, promptID string) (map[string]nodeOutputs, error) {
	ticker := time.NewTicker(c.pollInterval)
	defer ticker.Stop()

	for {
		entry, done, err := c.fetchHistory(ctx, promptID)
		if err != nil {
			return nil, err
		}
		if done {
			return entry.Outputs, nil
		}

		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("gave up waiting for job: %w", ctx.Err())
		case <-ticker.C:
		}
	}
}

func (c *Client) fetchHistory(ctx context.Context, promptID string) (historyEntry, bool, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/history/"+promptID, nil)
	if err != nil {
		return historyEntry{}, false, fmt.Errorf("failed to create history request: %w", err)
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return historyEntry{}, false, fmt.Errorf("history request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return historyEntry{}, false, fmt.Errorf("history request returned status %d", resp.StatusCode)
	}

	// The history payload is keyed by prompt id; absence means the job is
	// still running.
	var history map[string]historyEntry
	if err := json.NewDecoder(resp.Body).Decode(&history); err != nil {
		return historyEntry{}, false, fmt.Errorf("failed to decode history response: %w", err)
	}
	entry, ok := history[promptID]
	return entry, ok, nil
}

// viewURL builds the download URL for one output artifact.
func (c *Client) viewURL(f outputFile) string {
	q := url.Values{}
	q.Set("filename", f.Filename)
	q.Set("subfolder", f.Subfolder)
	q.Set("type", f.Type)
	return c.baseURL + "/view?" + q.Encode()
}
