package gcs

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/angelmondragon/factoring-portal/pkg/config"
	"github.com/angelmondragon/factoring-portal/pkg/logger"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
	storage "google.golang.org/api/storage/v1"
)

const pingTimeout = 5 * time.Second

// Client stores request files in a single bucket.
type Client struct {
	svc           *storage.Service
	defaultBucket string
}

type Pinger interface {
	Ping(ctx context.Context) error
}

// NewClient builds a storage client from GCP credentials. An explicit endpoint
// (emulators, tests) disables authentication.
func NewClient(ctx context.Context, cfg config.GCSConfig, gcp config.GCPConfig, logg *logger.Logger) (*Client, error) {
	if cfg.BucketName == "" {
		return nil, errors.New("gcs bucket name is required")
	}

	opts := []option.ClientOption{option.WithScopes(storage.DevstorageReadWriteScope)}
	switch {
	case cfg.Endpoint != "":
		opts = []option.ClientOption{option.WithEndpoint(cfg.Endpoint), option.WithoutAuthentication()}
	case gcp.CredentialsJSON != "":
		opts = append(opts, option.WithCredentialsJSON([]byte(gcp.CredentialsJSON)))
	case gcp.ApplicationCredentials != "":
		opts = append(opts, option.WithCredentialsFile(gcp.ApplicationCredentials))
	}

	client, err := newWithOptions(ctx, cfg.BucketName, opts...)
	if err != nil {
		return nil, err
	}

	if err := client.Ping(ctx); err != nil {
		return nil, fmt.Errorf("gcs health check failed: %w", err)
	}

	if logg != nil {
		logg.Info(logg.WithField(ctx, "bucket", cfg.BucketName), "gcs client initialized")
	}

	return client, nil
}

func newWithOptions(ctx context.Context, bucket string, opts ...option.ClientOption) (*Client, error) {
	svc, err := storage.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("creating storage service: %w", err)
	}
	return &Client{svc: svc, defaultBucket: bucket}, nil
}

func (c *Client) DefaultBucket() string {
	if c == nil {
		return ""
	}
	return c.defaultBucket
}

func (c *Client) Close() error {
	return nil
}

// Ping lists at most one object (requires storage.objects.list).
func (c *Client) Ping(ctx context.Context) error {
	if c == nil || c.svc == nil {
		return errors.New("gcs client not initialized")
	}
	ctx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()

	if _, err := c.svc.Objects.List(c.defaultBucket).MaxResults(1).Context(ctx).Do(); err != nil {
		return fmt.Errorf("gcs object check failed: %w", err)
	}
	return nil
}

// Upload writes r to object in the default bucket.
func (c *Client) Upload(ctx context.Context, object, contentType string, r io.Reader) error {
	object = strings.TrimPrefix(strings.TrimSpace(object), "/")
	if object == "" {
		return errors.New("object name is required")
	}
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	_, err := c.svc.Objects.
		Insert(c.defaultBucket, &storage.Object{Name: object, ContentType: contentType}).
		Media(r, googleapi.ContentType(contentType)).
		Context(ctx).
		Do()
	if err != nil {
		return fmt.Errorf("uploading %q: %w", object, err)
	}
	return nil
}

// Exists reports whether object is present.
func (c *Client) Exists(ctx context.Context, object string) (bool, error) {
	_, err := c.svc.Objects.Get(c.defaultBucket, object).Context(ctx).Do()
	if err == nil {
		return true, nil
	}
	if isNotFound(err) {
		return false, nil
	}
	return false, fmt.Errorf("stat %q: %w", object, err)
}

// Delete removes object; a missing object is not an error.
func (c *Client) Delete(ctx context.Context, object string) error {
	err := c.svc.Objects.Delete(c.defaultBucket, object).Context(ctx).Do()
	if err == nil || isNotFound(err) {
		return nil
	}
	return fmt.Errorf("deleting %q: %w", object, err)
}

func isNotFound(err error) bool {
	var apiErr *googleapi.Error
	return errors.As(err, &apiErr) && apiErr.Code == http.StatusNotFound
}
