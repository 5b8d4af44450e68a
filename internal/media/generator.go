// Package media implements generate_image's two collaborators: an
// OpenAI-compatible image generation client (internal/tools.ImageGenerator)
// and an S3-backed durable store (internal/tools.MediaSink), following
// the teacher's internal/tools/create_image.go request/response shape
// and internal/tools.MediaSink contract respectively.
package media

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// Generator calls an OpenAI-compatible chat-completions endpoint with
// image modalities enabled, the same request shape the teacher's
// CreateImageTool.callImageGenAPI uses against OpenRouter/OpenAI.
type Generator struct {
	apiKey      string
	apiBase     string
	model       string
	aspectRatio string
	client      *http.Client
}

type GeneratorOption func(*Generator)

func WithAspectRatio(ratio string) GeneratorOption {
	return func(g *Generator) { g.aspectRatio = ratio }
}

func WithHTTPClient(c *http.Client) GeneratorOption {
	return func(g *Generator) { g.client = c }
}

func NewGenerator(apiKey, apiBase, model string, opts ...GeneratorOption) *Generator {
	g := &Generator{
		apiKey:  apiKey,
		apiBase: apiBase,
		model:   model,
		client:  &http.Client{Timeout: 120 * time.Second},
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// GenerateImage implements internal/tools.ImageGenerator.
func (g *Generator) GenerateImage(ctx context.Context, prompt string) ([]byte, string, error) {
	body := map[string]interface{}{
		"model": g.model,
		"messages": []map[string]interface{}{
			{"role": "user", "content": prompt},
		},
		"modalities": []string{"image", "text"},
	}
	if g.aspectRatio != "" && g.aspectRatio != "1:1" {
		body["image_config"] = map[string]interface{}{"aspect_ratio": g.aspectRatio}
	}

	jsonBody, err := json.Marshal(body)
	if err != nil {
		return nil, "", fmt.Errorf("marshal request: %w", err)
	}

	url := strings.TrimRight(g.apiBase, "/") + "/chat/completions"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(jsonBody))
	if err != nil {
		return nil, "", fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+g.apiKey)

	resp, err := g.client.Do(req)
	if err != nil {
		return nil, "", fmt.Errorf("http request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, "", fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, "", fmt.Errorf("image generation API error %d: %s", resp.StatusCode, truncate(respBody, 500))
	}

	return parseImageResponse(respBody)
}

func parseImageResponse(respBody []byte) ([]byte, string, error) {
	var resp struct {
		Choices []struct {
			Message struct {
				Content interface{} `json:"content"`
				Images  []struct {
					ImageURL struct {
						URL string `json:"url"`
					} `json:"image_url"`
				} `json:"images"`
			} `json:"message"`
		} `json:"choices"`
	}
	if err := json.Unmarshal(respBody, &resp); err != nil {
		return nil, "", fmt.Errorf("parse response: %w", err)
	}
	if len(resp.Choices) == 0 {
		return nil, "", fmt.Errorf("no choices in response")
	}

	msg := resp.Choices[0].Message
	for _, img := range msg.Images {
		if data, mime, err := decodeDataURL(img.ImageURL.URL); err == nil {
			return data, mime, nil
		}
	}
	if parts, ok := msg.Content.([]interface{}); ok {
		for _, part := range parts {
			m, ok := part.(map[string]interface{})
			if !ok || m["type"] != "image_url" {
				continue
			}
			imgURL, ok := m["image_url"].(map[string]interface{})
			if !ok {
				continue
			}
			url, ok := imgURL["url"].(string)
			if !ok {
				continue
			}
			if data, mime, err := decodeDataURL(url); err == nil {
				return data, mime, nil
			}
		}
	}
	return nil, "", fmt.Errorf("no image data found in response")
}

func decodeDataURL(dataURL string) ([]byte, string, error) {
	idx := strings.Index(dataURL, ";base64,")
	if idx < 0 {
		return nil, "", fmt.Errorf("not a base64 data URL")
	}
	mime := strings.TrimPrefix(dataURL[:idx], "data:")
	if mime == "" {
		mime = "image/png"
	}
	data, err := base64.StdEncoding.DecodeString(dataURL[idx+8:])
	return data, mime, err
}

func truncate(b []byte, n int) string {
	if len(b) <= n {
		return string(b)
	}
	return string(b[:n]) + "..."
}
