package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/url"
	"path"

	"docquizai/internal/logger"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
)

// R2Options holds the Cloudflare R2 credentials and bucket.
type R2Options struct {
	AccountID       string
	Bucket          string
	AccessKeyID     string
	SecretAccessKey string
	PublicURL       string // optional, e.g. https://pub-xxxxxxxx.r2.dev
}

// R2 stores objects in a Cloudflare R2 bucket through the S3 API.
type R2 struct {
	s3Client   *s3.Client
	bucketName string
	publicURL  string
	log        *logger.Logger
}

func NewR2(ctx context.Context, opts R2Options, log *logger.Logger) (*R2, error) {
	if opts.AccountID == "" || opts.Bucket == "" || opts.AccessKeyID == "" || opts.SecretAccessKey == "" {
		return nil, fmt.Errorf("cloudflare R2 is not fully configured")
	}

	// R2 endpoint format: https://<ACCOUNT_ID>.r2.cloudflarestorage.com
	r2Resolver := aws.EndpointResolverWithOptionsFunc(func(service, region string, options ...interface{}) (aws.Endpoint, error) {
		return aws.Endpoint{
			URL: fmt.Sprintf("https://%s.r2.cloudflarestorage.com", opts.AccountID),
		}, nil
	})

	cfg, err := config.LoadDefaultConfig(ctx,
		config.WithEndpointResolverWithOptions(r2Resolver),
		config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(opts.AccessKeyID, opts.SecretAccessKey, "")),
		config.WithRegion("auto"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS SDK config for R2: %w", err)
	}

	log.Info("R2 storage initialized", "bucket", opts.Bucket)
	return &R2{
		s3Client:   s3.NewFromConfig(cfg),
		bucketName: opts.Bucket,
		publicURL:  opts.PublicURL,
		log:        log.With("component", "r2"),
	}, nil
}

func (r *R2) Put(ctx context.Context, key string, content io.Reader) (string, error) {
	contentType := mime.TypeByExtension(path.Ext(key))
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	_, err := r.s3Client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(r.bucketName),
		Key:         aws.String(key),
		Body:        content,
		ContentType: aws.String(contentType),
	})
	if err != nil {
		return "", fmt.Errorf("failed to upload file to R2 (key: %s): %w", key, err)
	}

	location := "r2://" + r.bucketName + "/" + key
	if r.publicURL != "" {
		baseURL, err := url.Parse(r.publicURL)
		if err != nil {
			r.log.Warn("invalid R2 public base URL", "public_url", r.publicURL, "error", err)
		} else {
			baseURL.Path = path.Join(baseURL.Path, key)
			location = baseURL.String()
		}
	}
	r.log.Debug("object uploaded", "key", key)
	return location, nil
}

func (r *R2) Get(ctx context.Context, key string) (io.ReadCloser, error) {
	out, err := r.s3Client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(r.bucketName),
		Key:    aws.String(key),
	})
	if err != nil {
		var noKey *types.NoSuchKey
		if errors.As(err, &noKey) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, key)
		}
		return nil, fmt.Errorf("failed to download file from R2 (key: %s): %w", key, err)
	}
	return out.Body, nil
}
