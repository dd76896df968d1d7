package main

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"math/rand"
	"os"
	"path"
	"strconv"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"
)

// formatTag marks objects as csvlock containers in remote metadata
const formatTag = "csvlock-v0"

const remoteTimeout = 2 * time.Minute

// retryBaseDelay is the first backoff step; tests shrink it
var retryBaseDelay = time.Second

// RemoteObject represents metadata about a stored encrypted file
type RemoteObject struct {
	Name       string    `json:"name"`
	Size       int64     `json:"size"`
	ModifiedAt time.Time `json:"modified_at"`
}

// RemoteStore holds sealed containers. Blobs are stored verbatim.
type RemoteStore interface {
	Put(ctx context.Context, name string, blob []byte, meta map[string]string) error
	Get(ctx context.Context, name string) ([]byte, map[string]string, error)
	List(ctx context.Context) ([]RemoteObject, error)
	Delete(ctx context.Context, name string) error
}

// validateObjectName rejects names that could escape the store's namespace
func validateObjectName(name string) error {
	switch {
	case name == "":
		return &ValidationError{Field: "name", Message: "cannot be empty"}
	case name == "." || name == "..":
		return &ValidationError{Field: "name", Message: fmt.Sprintf("%q is not a file name", name)}
	case strings.ContainsAny(name, `/\`):
		return &ValidationError{Field: "name", Message: fmt.Sprintf("%q must not contain path separators", name)}
	}
	return nil
}

// isPermanentS3Error reports errors that retrying cannot fix
func isPermanentS3Error(err error) bool {
	var apiErr smithy.APIError
	if !errors.As(err, &apiErr) {
		return false
	}
	switch apiErr.ErrorCode() {
	case "NoSuchKey", "NoSuchBucket", "AccessDenied", "InvalidAccessKeyId", "SignatureDoesNotMatch", "NotFound":
		return true
	}
	return false
}

// retryWithBackoff retries an operation with exponential backoff
func retryWithBackoff(ctx context.Context, maxRetries int, operation func() error) error {
	var lastErr error
	for attempt := 0; attempt < maxRetries; attempt++ {
		err := operation()
		if err == nil {
			return nil
		}
		lastErr = err
		if isPermanentS3Error(err) {
			return err
		}
		if attempt == maxRetries-1 {
			break
		}

		// Exponential backoff with jitter
		backoff := retryBaseDelay << uint(attempt)
		jitter := time.Duration(rand.Int63n(int64(retryBaseDelay) + 1))
		debugLog("attempt %d failed (%v), retrying in %s", attempt+1, err, backoff+jitter)

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(backoff + jitter):
		}
	}
	return fmt.Errorf("operation failed after %d retries: %w", maxRetries, lastErr)
}

// s3API is the subset of the S3 client used by S3Store
type s3API interface {
	PutObject(ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	GetObject(ctx context.Context, in *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	DeleteObject(ctx context.Context, in *s3.DeleteObjectInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectOutput, error)
	HeadObject(ctx context.Context, in *s3.HeadObjectInput, optFns ...func(*s3.Options)) (*s3.HeadObjectOutput, error)
	s3.ListObjectsV2APIClient
}

// S3Store implements RemoteStore using AWS S3
type S3Store struct {
	client s3API
	bucket string
	prefix string
	sse    string
}

func newRemoteStoreFromConfig(cfg *Config) (RemoteStore, error) {
	if err := validateRemoteConfig(cfg); err != nil {
		return nil, err
	}

	switch cfg.Remote.Backend {
	case "s3":
		return newS3Store(context.Background(), cfg.Remote.S3)
	case "local":
		return newLocalStore(cfg.Remote.Local)
	default:
		return nil, fmt.Errorf("unsupported backend: %s", cfg.Remote.Backend)
	}
}

func newS3Store(ctx context.Context, cfg *S3Config) (*S3Store, error) {
	opts := []func(*config.LoadOptions) error{
		config.WithRegion(cfg.Region),
	}

	if cfg.Profile != "" {
		opts = append(opts, config.WithSharedConfigProfile(cfg.Profile))
	}

	// Check for explicit credentials in environment (useful for CI)
	if os.Getenv("AWS_ACCESS_KEY_ID") != "" && os.Getenv("AWS_SECRET_ACCESS_KEY") != "" {
		opts = append(opts, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(
				os.Getenv("AWS_ACCESS_KEY_ID"),
				os.Getenv("AWS_SECRET_ACCESS_KEY"),
				os.Getenv("AWS_SESSION_TOKEN"),
			),
		))
	}

	awsCfg, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("loading AWS config: %w", err)
	}

	debugLog("s3 store: bucket=%s region=%s prefix=%s", cfg.Bucket, cfg.Region, cfg.Prefix)
	return &S3Store{
		client: s3.NewFromConfig(awsCfg),
		bucket: cfg.Bucket,
		prefix: cfg.Prefix,
		sse:    cfg.SSE,
	}, nil
}

func (b *S3Store) key(name string) string {
	return path.Join(b.prefix, name)
}

func (b *S3Store) Put(ctx context.Context, name string, blob []byte, meta map[string]string) error {
	if err := validateObjectName(name); err != nil {
		return err
	}

	metadata := map[string]string{
		"format":     formatTag,
		"created-at": time.Now().UTC().Format(time.RFC3339),
		"size":       strconv.Itoa(len(blob)),
	}
	for k, v := range meta {
		metadata[k] = v
	}

	// Use retry with exponential backoff for network resilience
	return retryWithBackoff(ctx, 3, func() error {
		input := &s3.PutObjectInput{
			Bucket:      aws.String(b.bucket),
			Key:         aws.String(b.key(name)),
			Body:        bytes.NewReader(blob),
			ContentType: aws.String("application/octet-stream"),
			Metadata:    metadata,
		}

		// Apply server-side encryption
		switch b.sse {
		case "AES256":
			input.ServerSideEncryption = types.ServerSideEncryptionAes256
		case "aws:kms":
			input.ServerSideEncryption = types.ServerSideEncryptionAwsKms
		}

		if _, err := b.client.PutObject(ctx, input); err != nil {
			return fmt.Errorf("uploading to S3: %w", err)
		}
		return nil
	})
}

func (b *S3Store) Get(ctx context.Context, name string) ([]byte, map[string]string, error) {
	if err := validateObjectName(name); err != nil {
		return nil, nil, err
	}

	var blob []byte
	var meta map[string]string

	err := retryWithBackoff(ctx, 3, func() error {
		result, err := b.client.GetObject(ctx, &s3.GetObjectInput{
			Bucket: aws.String(b.bucket),
			Key:    aws.String(b.key(name)),
		})
		if err != nil {
			return fmt.Errorf("fetching from S3: %w", err)
		}
		defer func() { _ = result.Body.Close() }()

		blob, err = io.ReadAll(result.Body)
		if err != nil {
			return fmt.Errorf("reading S3 object: %w", err)
		}
		meta = result.Metadata
		return nil
	})
	if err != nil {
		var noKey *types.NoSuchKey
		if errors.As(err, &noKey) {
			return nil, nil, fmt.Errorf("%q not found in s3://%s/%s", name, b.bucket, b.prefix)
		}
		return nil, nil, err
	}

	if meta == nil {
		meta = map[string]string{}
	}
	return blob, meta, nil
}

func (b *S3Store) listPrefix() string {
	if b.prefix == "" || strings.HasSuffix(b.prefix, "/") {
		return b.prefix
	}
	return b.prefix + "/"
}

func (b *S3Store) List(ctx context.Context) ([]RemoteObject, error) {
	prefix := b.listPrefix()

	// Use paginator to handle more than 1000 objects
	paginator := s3.NewListObjectsV2Paginator(b.client, &s3.ListObjectsV2Input{
		Bucket: aws.String(b.bucket),
		Prefix: aws.String(prefix),
	})

	var objects []RemoteObject
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("listing S3 objects: %w", err)
		}

		for _, obj := range page.Contents {
			key := aws.ToString(obj.Key)

			name := strings.TrimPrefix(key, prefix)
			if name == "" || strings.Contains(name, "/") {
				continue // the prefix itself, or a nested key
			}

			objects = append(objects, RemoteObject{
				Name:       name,
				Size:       aws.ToInt64(obj.Size),
				ModifiedAt: aws.ToTime(obj.LastModified),
			})
		}
	}

	return objects, nil
}

func (b *S3Store) Delete(ctx context.Context, name string) error {
	if err := validateObjectName(name); err != nil {
		return err
	}

	// DeleteObject succeeds for missing keys, so check first
	err := retryWithBackoff(ctx, 3, func() error {
		_, err := b.client.HeadObject(ctx, &s3.HeadObjectInput{
			Bucket: aws.String(b.bucket),
			Key:    aws.String(b.key(name)),
		})
		return err
	})
	if err != nil {
		var notFound *types.NotFound
		if errors.As(err, &notFound) {
			return fmt.Errorf("%q not found in s3://%s/%s", name, b.bucket, b.prefix)
		}
		return fmt.Errorf("checking S3 object: %w", err)
	}

	_, err = b.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(b.bucket),
		Key:    aws.String(b.key(name)),
	})
	if err != nil {
		return fmt.Errorf("deleting from S3: %w", err)
	}

	return nil
}

// formatAge returns a human-readable age string
func formatAge(t time.Time) string {
	d := time.Since(t)

	if d < time.Minute {
		return fmt.Sprintf("%ds ago", int(d.Seconds()))
	}
	if d < time.Hour {
		return fmt.Sprintf("%dm ago", int(d.Minutes()))
	}
	if d < 24*time.Hour {
		return fmt.Sprintf("%dh ago", int(d.Hours()))
	}
	return fmt.Sprintf("%dd ago", int(d.Hours()/24))
}
