// Package fal generates images through the fal.ai synchronous run API.
package fal

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/tidwall/gjson"

	"github.com/ntclick/ai-research-roma/pkg/capability"
	"github.com/ntclick/ai-research-roma/pkg/roma"
)

const serviceName = "fal.ai"

// ErrNoAPIKey is returned when no fal.ai key is configured.
var ErrNoAPIKey = errors.New("fal.ai API key not available")

//nolint:gochecknoglobals // read-only
var modelLabels = map[string]string{
	"fal-ai/flux/dev":     "FLUX.1 [dev]",
	"fal-ai/flux/schnell": "FLUX.1 [schnell]",
	"fal-ai/flux-pro":     "FLUX.1 [pro]",
}

type request struct {
	Prompt              string  `json:"prompt"`
	ImageSize           string  `json:"image_size"`
	NumInferenceSteps   int     `json:"num_inference_steps"`
	GuidanceScale       float64 `json:"guidance_scale"`
	NumImages           int     `json:"num_images"`
	EnableSafetyChecker bool    `json:"enable_safety_checker"`
	OutputFormat        string  `json:"output_format"`
}

// Client calls POST {base}/{model}.
type Client struct {
	baseURL string
	model   string
	apiKey  string
	http    *http.Client
}

// New creates a client.
func New(baseURL, model, apiKey string, timeout time.Duration) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		model:   strings.Trim(model, "/"),
		apiKey:  apiKey,
		http:    capability.NewHTTPClient(timeout),
	}
}

// ModelLabel returns the display name for the configured model.
func (c *Client) ModelLabel() string {
	if label, ok := modelLabels[c.model]; ok {
		return label
	}
	return c.model
}

// GenerateImage implements roma.ImageGenerator.
func (c *Client) GenerateImage(ctx context.Context, prompt string) (roma.Image, error) {
	if c.apiKey == "" {
		return roma.Image{}, ErrNoAPIKey
	}

	body, err := json.Marshal(request{
		Prompt:              prompt,
		ImageSize:           "landscape_4_3",
		NumInferenceSteps:   28,
		GuidanceScale:       3.5,
		NumImages:           1,
		EnableSafetyChecker: true,
		OutputFormat:        "jpeg",
	})
	if err != nil {
		return roma.Image{}, fmt.Errorf("failed to encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/"+c.model, bytes.NewReader(body))
	if err != nil {
		return roma.Image{}, fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Authorization", "Key "+c.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return roma.Image{}, fmt.Errorf("%s request failed: %w", serviceName, err)
	}
	defer resp.Body.Close()

	if err := capability.CheckResponse(serviceName, resp); err != nil {
		return roma.Image{}, err
	}

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return roma.Image{}, fmt.Errorf("failed to read %s response: %w", serviceName, err)
	}

	if !gjson.ValidBytes(raw) {
		return roma.Image{}, fmt.Errorf("%s returned invalid JSON", serviceName)
	}

	// A filtered prompt comes back as 200 with no images.
	first := gjson.GetBytes(raw, "images.0")
	if first.Get("url").String() == "" {
		return roma.Image{}, nil
	}

	return roma.Image{
		URL:    first.Get("url").String(),
		Width:  int(first.Get("width").Int()),
		Height: int(first.Get("height").Int()),
		Model:  c.ModelLabel(),
	}, nil
}
