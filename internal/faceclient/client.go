package faceclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"rollbook/internal/facematch"
)

// Embedding is a face descriptor computed by the face service.
type Embedding struct {
	Descriptor    facematch.Descriptor
	Score         float64
	FacesDetected int
}

// Client calls the face recognition microservice that turns a photo URL
// into a descriptor.
type Client struct {
	BaseURL string
	HTTP    *http.Client
}

// New creates a client with configurable timeout.
func New(baseURL string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 30 * time.Second // Face processing can take time
	}
	return &Client{
		BaseURL: strings.TrimRight(baseURL, "/"),
		HTTP:    &http.Client{Timeout: timeout},
	}
}

// Embed requests a descriptor for the single face in the image at imageURL.
func (c *Client) Embed(ctx context.Context, imageURL string) (Embedding, error) {
	if imageURL == "" {
		return Embedding{}, fmt.Errorf("image url required")
	}

	body, _ := json.Marshal(map[string]string{"image_url": imageURL})
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+"/embed", bytes.NewReader(body))
	if err != nil {
		return Embedding{}, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.HTTP.Do(req)
	if err != nil {
		return Embedding{}, fmt.Errorf("face service request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		bodyBytes, _ := io.ReadAll(resp.Body)
		return Embedding{}, fmt.Errorf("face service error %s: %s", resp.Status, string(bodyBytes))
	}

	var out struct {
		Embedding     []float64 `json:"embedding"`
		Score         float64   `json:"score"`
		FacesDetected int       `json:"faces_detected"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return Embedding{}, fmt.Errorf("failed to decode response: %w", err)
	}
	if len(out.Embedding) == 0 || out.FacesDetected == 0 {
		return Embedding{}, fmt.Errorf("no face detected in image")
	}
	if out.FacesDetected > 1 {
		return Embedding{}, fmt.Errorf("expected one face, found %d", out.FacesDetected)
	}

	d := facematch.Descriptor(out.Embedding)
	if err := d.Validate(); err != nil {
		return Embedding{}, fmt.Errorf("face service returned bad embedding: %w", err)
	}
	return Embedding{Descriptor: d, Score: out.Score, FacesDetected: out.FacesDetected}, nil
}

// Health checks if the face service is available.
func (c *Client) Health(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.BaseURL+"/health", nil)
	if err != nil {
		return err
	}

	resp, err := c.HTTP.Do(req)
	if err != nil {
		return fmt.Errorf("face service unavailable: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return fmt.Errorf("face service unhealthy: %s", resp.Status)
	}
	return nil
}
