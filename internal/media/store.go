package media

import (
	"bytes"
	"context"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/nextlevelbuilder/socialagent/internal/worldstate"
)

// Store persists generated media to an S3-compatible bucket and
// implements internal/tools.MediaSink, grounded on
// intelligencedev-manifold's internal/objectstore.S3Store wrapper
// around aws-sdk-go-v2/service/s3.
type Store struct {
	client          *s3.Client
	bucket          string
	aspectRatio     string
	publicURLPrefix string
}

// Config configures the S3-backed media store.
type Config struct {
	Bucket          string
	Region          string
	Endpoint        string // non-empty for S3-compatible services (e.g. MinIO)
	UsePathStyle    bool
	NormalizeAspect string // e.g. "1:1", "16:9"; empty disables normalization
	PublicURLPrefix string // base URL used to build the returned storage URL
}

func NewStore(ctx context.Context, cfg Config) (*Store, error) {
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("media: s3 bucket is required")
	}

	awsOpts := []func(*awsconfig.LoadOptions) error{awsconfig.WithRegion(cfg.Region)}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsOpts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	var s3Opts []func(*s3.Options)
	if cfg.Endpoint != "" {
		s3Opts = append(s3Opts, func(o *s3.Options) { o.BaseEndpoint = aws.String(cfg.Endpoint) })
	}
	if cfg.UsePathStyle {
		s3Opts = append(s3Opts, func(o *s3.Options) { o.UsePathStyle = true })
	}

	return &Store{
		client:          s3.NewFromConfig(awsCfg, s3Opts...),
		bucket:          cfg.Bucket,
		aspectRatio:     cfg.NormalizeAspect,
		publicURLPrefix: strings.TrimRight(cfg.PublicURLPrefix, "/"),
	}, nil
}

// Store implements internal/tools.MediaSink: it normalizes the image's
// aspect ratio when configured, uploads it to S3, and returns a
// durable URL for the generate_image tool to hand back to the model.
func (s *Store) Store(ctx context.Context, ref *worldstate.GeneratedMediaRef, data []byte) (string, error) {
	normalized, err := normalizeAspect(data, ref.MimeType, s.aspectRatio)
	if err != nil {
		// Normalization is best-effort; fall back to the original bytes
		// rather than failing the whole upload over a cosmetic crop.
		normalized = data
	}

	key := fmt.Sprintf("media/%s%s", ref.ID, extensionFor(ref.MimeType))
	_, err = s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(normalized),
		ContentType: aws.String(ref.MimeType),
	})
	if err != nil {
		return "", fmt.Errorf("media: s3 put failed: %w", err)
	}
	if s.publicURLPrefix != "" {
		return s.publicURLPrefix + "/" + key, nil
	}
	return fmt.Sprintf("s3://%s/%s", s.bucket, key), nil
}

func extensionFor(mimeType string) string {
	switch mimeType {
	case "image/png":
		return ".png"
	case "image/jpeg", "image/jpg":
		return ".jpg"
	case "image/webp":
		return ".webp"
	default:
		return ".bin"
	}
}
