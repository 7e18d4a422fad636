package r2

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"net/url"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awshttp "github.com/aws/aws-sdk-go-v2/aws/transport/http"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// Config is the object-storage section of the service configuration.
// Endpoint overrides the Cloudflare endpoint derived from AccountID, which
// makes any S3-compatible store usable.
type Config struct {
	AccountID       string `yaml:"account_id"`
	AccessKeyID     string `yaml:"access_key_id"`
	SecretAccessKey string `yaml:"secret_access_key"`
	Endpoint        string `yaml:"endpoint"`
}

// Configured reports whether enough is set to build a client.
func (c Config) Configured() bool {
	return c.AccessKeyID != "" && c.SecretAccessKey != "" && (c.AccountID != "" || c.Endpoint != "")
}

func (c Config) endpoint() string {
	if c.Endpoint != "" {
		return c.Endpoint
	}
	// R2 endpoint format: https://<ACCOUNT_ID>.r2.cloudflarestorage.com
	return fmt.Sprintf("https://%s.r2.cloudflarestorage.com", c.AccountID)
}

// Client reads objects from an S3-compatible bucket.
type Client struct {
	s3Client *s3.Client
}

// Object is an open object body plus the metadata the store reported.
type Object struct {
	Body          io.ReadCloser
	ContentLength int64
	ContentType   string
}

// NewClient returns (nil, nil) when cfg is incomplete, allowing the service
// to run with the object-storage channel disabled.
func NewClient(ctx context.Context, cfg Config) (*Client, error) {
	if !cfg.Configured() {
		log.Println("WARN: Object storage not configured (R2_ACCOUNT_ID or R2_ENDPOINT, R2_ACCESS_KEY_ID, R2_SECRET_ACCESS_KEY). s3:// and r2:// sources are disabled.")
		return nil, nil
	}

	awsCfg, err := config.LoadDefaultConfig(ctx,
		config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, "")),
		config.WithRegion("auto"), // R2 is region-agnostic
		// Retries are handled by the caller's retry policy.
		config.WithRetryMaxAttempts(1),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS SDK config for object storage: %w", err)
	}

	endpoint := cfg.endpoint()
	s3Client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		o.BaseEndpoint = aws.String(endpoint)
		o.UsePathStyle = true
	})

	log.Printf("INFO: Object storage client initialized for endpoint '%s'", endpoint)
	return &Client{s3Client: s3Client}, nil
}

// Open starts reading bucket/key. The caller owns Body.
func (c *Client) Open(ctx context.Context, bucket, key string) (*Object, error) {
	if c == nil || c.s3Client == nil {
		return nil, fmt.Errorf("object storage client not initialized")
	}

	out, err := c.s3Client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get object (bucket: %s, key: %s): %w", bucket, key, err)
	}

	return &Object{
		Body:          out.Body,
		ContentLength: aws.ToInt64(out.ContentLength),
		ContentType:   aws.ToString(out.ContentType),
	}, nil
}

// StatusCode returns the HTTP status behind an SDK error, 0 when the request
// never got a response.
func StatusCode(err error) int {
	var re *awshttp.ResponseError
	if errors.As(err, &re) {
		return re.HTTPStatusCode()
	}
	return 0
}

// ParseObjectURL splits s3://bucket/key and r2://bucket/key references.
func ParseObjectURL(raw string) (bucket, key string, ok bool) {
	u, err := url.Parse(raw)
	if err != nil {
		return "", "", false
	}
	if u.Scheme != "s3" && u.Scheme != "r2" {
		return "", "", false
	}
	key = strings.TrimPrefix(u.Path, "/")
	if u.Host == "" || key == "" {
		return "", "", false
	}
	return u.Host, key, true
}

// IsObjectURL reports whether raw uses an object-storage scheme.
func IsObjectURL(raw string) bool {
	lower := strings.ToLower(raw)
	return strings.HasPrefix(lower, "s3://") || strings.HasPrefix(lower, "r2://")
}
