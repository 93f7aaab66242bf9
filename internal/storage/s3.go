package storage

import (
	"bytes"
	"context"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/google/uuid"
)

// S3Config configuration for the S3/MinIO client
type S3Config struct {
	Endpoint  string
	Region    string
	Bucket    string
	AccessKey string
	SecretKey string
	UseSSL    bool
}

// S3Store stores attachment bytes in an S3-compatible bucket
type S3Store struct {
	client   *s3.Client
	bucket   string
	endpoint string
}

// NewS3Store creates a new object storage client
func NewS3Store(cfg S3Config) (*S3Store, error) {
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("storage bucket is required")
	}

	// Handle case where endpoint already includes protocol
	endpointURL := cfg.Endpoint
	if !strings.HasPrefix(endpointURL, "http://") && !strings.HasPrefix(endpointURL, "https://") {
		protocol := "http"
		if cfg.UseSSL {
			protocol = "https"
		}
		endpointURL = protocol + "://" + endpointURL
	}

	client := s3.New(s3.Options{
		Region: cfg.Region,
		Credentials: credentials.NewStaticCredentialsProvider(
			cfg.AccessKey,
			cfg.SecretKey,
			"",
		),
		BaseEndpoint: aws.String(endpointURL),
		UsePathStyle: true, // Required for MinIO
	})

	return &S3Store{
		client:   client,
		bucket:   cfg.Bucket,
		endpoint: endpointURL,
	}, nil
}

// Save uploads the bytes under a collision-free key and returns the object URL
func (s *S3Store) Save(ctx context.Context, filename string, data []byte, contentType string) (string, error) {
	key := fmt.Sprintf("attachments/%s/%s", uuid.NewString(), sanitizeFilename(filename))

	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(s.bucket),
		Key:           aws.String(key),
		Body:          bytes.NewReader(data),
		ContentType:   aws.String(contentType),
		ContentLength: aws.Int64(int64(len(data))),
	})
	if err != nil {
		return "", fmt.Errorf("failed to store object: %w", err)
	}

	return fmt.Sprintf("%s/%s/%s", s.endpoint, s.bucket, key), nil
}

// sanitizeFilename keeps object keys safe for path-style URLs
func sanitizeFilename(name string) string {
	name = strings.TrimSpace(name)
	if name == "" {
		return "attachment.bin"
	}
	replacer := strings.NewReplacer("/", "_", "\\", "_", "?", "_", "#", "_", " ", "_")
	return replacer.Replace(name)
}
