package artifact

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/rs/zerolog"
	"taxkit/internal/logger"
	"taxkit/pkg/services"
)

// S3Config holds the settings of an S3-compatible bucket (AWS S3, MinIO, ...).
type S3Config struct {
	Bucket       string
	Prefix       string
	Region       string
	Endpoint     string
	AccessKey    string
	SecretKey    string
	UsePathStyle bool
}

// S3API is the subset of the S3 client used by S3Store.
type S3API interface {
	PutObject(ctx context.Context, in *s3.PutObjectInput, opts ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	GetObject(ctx context.Context, in *s3.GetObjectInput, opts ...func(*s3.Options)) (*s3.GetObjectOutput, error)
}

// S3Store keeps artifacts as objects in one bucket.
type S3Store struct {
	client S3API
	bucket string
	prefix string
	log    zerolog.Logger
}

var _ services.ArtifactStore = (*S3Store)(nil)

// S3Option configures an S3Store.
type S3Option func(*S3Store)

// WithClient replaces the S3 client, e.g. with a fake in tests.
func WithClient(client S3API) S3Option {
	return func(s *S3Store) { s.client = client }
}

// NewS3Store creates a store for cfg. Without static keys the default AWS
// credential chain is used.
func NewS3Store(ctx context.Context, cfg S3Config, opts ...S3Option) (*S3Store, error) {
	const op = "NewS3Store"

	if cfg.Bucket == "" {
		return nil, fmt.Errorf("%s: %w: bucket is required", op, ErrMissingConfig)
	}

	store := &S3Store{
		bucket: cfg.Bucket,
		prefix: strings.Trim(cfg.Prefix, "/"),
		log:    logger.WithComponent("artifact-s3").With().Str("bucket", cfg.Bucket).Logger(),
	}
	for _, opt := range opts {
		opt(store)
	}
	if store.client != nil {
		return store, nil
	}

	region := cfg.Region
	if region == "" {
		region = "eu-central-1"
	}
	loadOpts := []func(*config.LoadOptions) error{config.WithRegion(region)}
	if cfg.AccessKey != "" && cfg.SecretKey != "" {
		loadOpts = append(loadOpts, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, "")))
	}

	awsCfg, err := config.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("%s: failed to create AWS config: %w", op, err)
	}

	store.client = s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		o.UsePathStyle = cfg.UsePathStyle
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
	})

	store.log.Debug().Str("region", region).Str("endpoint", cfg.Endpoint).Msg("S3 artifact store ready")
	return store, nil
}

// Put uploads data to key.
func (s *S3Store) Put(ctx context.Context, key string, data []byte, contentType string) error {
	const op = "Put"

	objectKey, err := s.objectKey(key)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	_, err = s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(objectKey),
		Body:        bytes.NewReader(data),
		ContentType: aws.String(contentType),
	})
	if err != nil {
		s.log.Error().Err(err).Str("key", objectKey).Msg("Failed to upload artifact")
		return fmt.Errorf("%s: failed to upload %s: %w", op, objectKey, err)
	}

	s.log.Debug().Str("key", objectKey).Int("size", len(data)).Msg("Artifact uploaded")
	return nil
}

// Get downloads key. A missing object yields services.ErrNotFound.
func (s *S3Store) Get(ctx context.Context, key string) (io.ReadCloser, error) {
	const op = "Get"

	objectKey, err := s.objectKey(key)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(objectKey),
	})
	if err != nil {
		var noSuchKey *types.NoSuchKey
		if errors.As(err, &noSuchKey) {
			return nil, fmt.Errorf("%s: %s: %w", op, objectKey, services.ErrNotFound)
		}
		return nil, fmt.Errorf("%s: failed to download %s: %w", op, objectKey, err)
	}
	return out.Body, nil
}

func (s *S3Store) objectKey(key string) (string, error) {
	if key == "" || strings.Contains(key, "..") {
		return "", fmt.Errorf("%w: %q", ErrInvalidKey, key)
	}
	if s.prefix == "" {
		return key, nil
	}
	return path.Join(s.prefix, key), nil
}
