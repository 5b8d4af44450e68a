package tools

import (
	"context"
	"fmt"

	"github.com/nextlevelbuilder/socialagent/internal/worldstate"
)

// ImageGenerator produces image bytes from a text prompt. Concrete
// providers (e.g. an OpenAI images endpoint) implement this narrow
// contract so the tool itself stays provider-agnostic, matching the
// teacher's create_image.go's credentialProvider narrowing.
type ImageGenerator interface {
	GenerateImage(ctx context.Context, prompt string) (data []byte, mimeType string, err error)
}

// MediaSink persists a GeneratedMediaRef and makes its bytes durable,
// implemented by internal/media.
type MediaSink interface {
	Store(ctx context.Context, ref *worldstate.GeneratedMediaRef, data []byte) (storageURL string, err error)
}

// GenerateImageTool implements generate_image: it calls the configured
// ImageGenerator, normalizes and uploads the result via MediaSink, and
// returns the new media ID so a following send_social_post/
// send_chat_message action can reference it via media_id.
type GenerateImageTool struct {
	gen  ImageGenerator
	sink MediaSink
	next func() string // ID generator, injected for testability
}

func NewGenerateImageTool(gen ImageGenerator, sink MediaSink, idFn func() string) *GenerateImageTool {
	return &GenerateImageTool{gen: gen, sink: sink, next: idFn}
}

func (t *GenerateImageTool) Name() string { return "generate_image" }

func (t *GenerateImageTool) Description() string {
	return "Generate an image from a text prompt. Returns a media_id usable by send_social_post or send_chat_message."
}

func (t *GenerateImageTool) Parameters() map[string]interface{} {
	return map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"prompt": map[string]interface{}{
				"type":        "string",
				"description": "Description of the image to generate.",
			},
		},
		"required": []string{"prompt"},
	}
}

func (t *GenerateImageTool) Execute(ctx context.Context, args map[string]interface{}) *Result {
	prompt, _ := args["prompt"].(string)
	if prompt == "" {
		return ErrorResult("prompt is required")
	}

	data, mimeType, err := t.gen.GenerateImage(ctx, prompt)
	if err != nil {
		return ErrorResult(fmt.Sprintf("image generation failed: %v", err)).WithError(err)
	}

	ref := &worldstate.GeneratedMediaRef{
		ID:       t.next(),
		Prompt:   prompt,
		MimeType: mimeType,
	}
	storageURL, err := t.sink.Store(ctx, ref, data)
	if err != nil {
		return ErrorResult(fmt.Sprintf("media upload failed: %v", err)).WithError(err)
	}
	ref.StorageURL = storageURL

	return NewResult(fmt.Sprintf("MEDIA:%s generated and uploaded to %s", ref.ID, storageURL))
}
