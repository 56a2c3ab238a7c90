package media

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/playcat/catconsult/internal/flow"
)

func testRequest() flow.VideoRequest {
	return flow.VideoRequest{
		ImagePrompt:   "A beautiful cat",
		VideoPositive: "climbing motion",
		VideoNegative: "static",
		AudioPositive: "occasional satisfied purr",
		AudioNegative: "harsh noise",
		Duration:      5.0,
	}
}

func TestGenerateCatVideo(t *testing.T) {
	var polls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.Method == http.MethodPost && r.URL.Path == "/prompt":
			var body struct {
				Prompt   map[string]interface{} `json:"prompt"`
				ClientID string                 `json:"client_id"`
			}
			if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
				t.Errorf("bad queue body: %v", err)
			}
			if body.ClientID == "" {
				t.Error("queue request must carry a client id")
			}
			if _, ok := body.Prompt["video_generation"]; !ok {
				t.Error("workflow missing video stage")
			}
			json.NewEncoder(w).Encode(map[string]string{"prompt_id": "p-123"})

		case r.Method == http.MethodGet && r.URL.Path == "/history/p-123":
			// First poll: still running. Second: done.
			if polls.Add(1) < 2 {
				w.Write([]byte("{}"))
				return
			}
			json.NewEncoder(w).Encode(map[string]interface{}{
				"p-123": map[string]interface{}{
					"outputs": map[string]interface{}{
						"image_generation": map[string]interface{}{
							"images": []map[string]string{{"filename": "cat.png", "type": "output"}},
						},
						"audio_generation": map[string]interface{}{
							"videos": []map[string]string{{"filename": "cat.mp4", "type": "output"}},
						},
					},
				},
			})

		default:
			http.NotFound(w, r)
		}
	}))
	defer server.Close()

	client := NewClient(WithBaseURL(server.URL), WithPollInterval(time.Millisecond))
	job, err := client.GenerateCatVideo(context.Background(), testRequest())
	if err != nil {
		t.Fatalf("GenerateCatVideo failed: %v", err)
	}

	if job.JobID != "p-123" {
		t.Errorf("unexpected job id %q", job.JobID)
	}
	if !strings.Contains(job.ImageURL, "filename=cat.png") {
		t.Errorf("unexpected image URL %q", job.ImageURL)
	}
	if !strings.Contains(job.VideoURL, "filename=cat.mp4") {
		t.Errorf("unexpected video URL %q", job.VideoURL)
	}
	if polls.Load() < 2 {
		t.Errorf("expected at least two history polls, got %d", polls.Load())
	}
}

func TestGenerateCatVideo_QueueFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "workflow invalid", http.StatusBadRequest)
	}))
	defer server.Close()

	client := NewClient(WithBaseURL(server.URL))
	if _, err := client.GenerateCatVideo(context.Background(), testRequest()); err == nil {
		t.Error("expected error when the queue endpoint rejects the workflow")
	}
}

func TestGenerateCatVideo_ContextDeadline(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost {
			json.NewEncoder(w).Encode(map[string]string{"prompt_id": "p-slow"})
			return
		}
		// Job never completes.
		w.Write([]byte("{}"))
	}))
	defer server.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()

	client := NewClient(WithBaseURL(server.URL), WithPollInterval(5*time.Millisecond))
	if _, err := client.GenerateCatVideo(ctx, testRequest()); err == nil {
		t.Error("expected timeout error for a job that never completes")
	}
}

func TestGenerateCatVideo_NoOutputs(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost {
			json.NewEncoder(w).Encode(map[string]string{"prompt_id": "p-empty"})
			return
		}
		json.NewEncoder(w).Encode(map[string]interface{}{
			"p-empty": map[string]interface{}{"outputs": map[string]interface{}{}},
		})
	}))
	defer server.Close()

	client := NewClient(WithBaseURL(server.URL), WithPollInterval(time.Millisecond))
	if _, err := client.GenerateCatVideo(context.Background(), testRequest()); err == nil {
		t.Error("expected error when the completed job has no outputs")
	}
}
