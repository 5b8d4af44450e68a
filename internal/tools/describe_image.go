package tools

import (
	"context"
	"encoding/base64"
	"fmt"
	"io"
	"net/http"

	"github.com/nextlevelbuilder/socialagent/internal/providers"
)

// DescribeImageTool implements describe_image: fetch an image by URL
// and ask a vision-capable model to describe it, so the AI decision
// service can reason about image content it can't directly see in the
// text payload.
type DescribeImageTool struct {
	provider providers.Provider
	client   *http.Client
}

func NewDescribeImageTool(p providers.Provider) *DescribeImageTool {
	return &DescribeImageTool{provider: p, client: &http.Client{}}
}

func (t *DescribeImageTool) Name() string { return "describe_image" }
func (t *DescribeImageTool) Description() string {
	return "Describe the contents of an image given its URL."
}
func (t *DescribeImageTool) Parameters() map[string]interface{} {
	return map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"image_url": map[string]interface{}{
				"type":        "string",
				"description": "URL of the image to describe.",
			},
			"question": map[string]interface{}{
				"type":        "string",
				"description": "Optional specific question about the image.",
			},
		},
		"required": []string{"image_url"},
	}
}

func (t *DescribeImageTool) Execute(ctx context.Context, args map[string]interface{}) *Result {
	imageURL, _ := args["image_url"].(string)
	if imageURL == "" {
		return ErrorResult("image_url is required")
	}
	question, _ := args["question"].(string)
	if question == "" {
		question = "Describe this image in one or two sentences."
	}

	data, mimeType, err := t.fetchImage(ctx, imageURL)
	if err != nil {
		return ErrorResult(fmt.Sprintf("fetch image failed: %v", err)).WithError(err)
	}

	resp, err := t.provider.Chat(ctx, providers.ChatRequest{
		Messages: []providers.Message{
			{
				Role:    "user",
				Content: question,
				Images:  []providers.ImageContent{{MimeType: mimeType, Data: base64.StdEncoding.EncodeToString(data)}},
			},
		},
	})
	if err != nil {
		return ErrorResult(fmt.Sprintf("describe_image failed: %v", err)).WithError(err)
	}

	result := NewResult(resp.Content)
	result.Usage = resp.Usage
	result.Provider = t.provider.Name()
	return result
}

func (t *DescribeImageTool) fetchImage(ctx context.Context, url string) ([]byte, string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, "", err
	}
	resp, err := t.client.Do(req)
	if err != nil {
		return nil, "", err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 400 {
		return nil, "", fmt.Errorf("image fetch returned %d", resp.StatusCode)
	}
	data, err := io.ReadAll(io.LimitReader(resp.Body, 20<<20))
	if err != nil {
		return nil, "", err
	}
	mimeType := resp.Header.Get("Content-Type")
	if mimeType == "" {
		mimeType = "image/jpeg"
	}
	return data, mimeType, nil
}
