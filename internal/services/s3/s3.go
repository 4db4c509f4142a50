// Package s3service stores applicant documents in S3.
package s3service

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"go.uber.org/zap"

	appConfig "rental-application-engine/internal/config"
	"rental-application-engine/internal/utils"
)

// ObjectAPI is the subset of the S3 client used by Service.
type ObjectAPI interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	DeleteObject(ctx context.Context, params *s3.DeleteObjectInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectOutput, error)
}

// Presigner signs download URLs.
type Presigner interface {
	PresignGetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.PresignOptions)) (*PresignedRequest, error)
}

// PresignedRequest is a signed URL.
type PresignedRequest struct {
	URL string
}

type presignClient struct {
	client *s3.PresignClient
}

func (p presignClient) PresignGetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.PresignOptions)) (*PresignedRequest, error) {
	req, err := p.client.PresignGetObject(ctx, params, optFns...)
	if err != nil {
		return nil, err
	}
	return &PresignedRequest{URL: req.URL}, nil
}

// Options configures URL resolution.
type Options struct {
	Bucket        string
	Region        string
	PublicBaseURL string
	Presign       bool
	PresignExpiry time.Duration
}

// Service handles S3 operations
type Service struct {
	client    ObjectAPI
	presigner Presigner
	opts      Options
}

// NewService creates a new S3 service from the application config.
func NewService(ctx context.Context, appCfg *appConfig.Config) (*Service, error) {
	cfg, err := config.LoadDefaultConfig(ctx, config.WithRegion(appCfg.AWSRegion))
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	client := s3.NewFromConfig(cfg)
	return NewServiceWithClient(client, presignClient{client: s3.NewPresignClient(client)}, Options{
		Bucket:        appCfg.S3Bucket,
		Region:        appCfg.AWSRegion,
		PublicBaseURL: appCfg.S3PublicBaseURL,
		Presign:       appCfg.S3PresignURLs,
		PresignExpiry: appCfg.S3PresignExpiry,
	}), nil
}

// NewServiceWithClient creates a service over an existing client.
func NewServiceWithClient(client ObjectAPI, presigner Presigner, opts Options) *Service {
	if opts.PresignExpiry <= 0 {
		opts.PresignExpiry = time.Hour
	}
	return &Service{client: client, presigner: presigner, opts: opts}
}

// UploadObject stores data under key. progress, if set, receives the fraction
// of bytes sent, never decreasing.
func (s *Service) UploadObject(ctx context.Context, key string, data []byte, contentType string, progress func(fraction float64)) error {
	body := newProgressReader(data, progress)
	input := &s3.PutObjectInput{
		Bucket:        aws.String(s.opts.Bucket),
		Key:           aws.String(key),
		Body:          body,
		ContentType:   aws.String(contentType),
		ContentLength: aws.Int64(int64(len(data))),
	}

	if _, err := s.client.PutObject(ctx, input); err != nil {
		utils.GetLogger().Error("Failed to upload file to S3",
			zap.String("bucket", s.opts.Bucket),
			zap.String("key", key),
			zap.Error(err),
		)
		return fmt.Errorf("failed to upload file: %w", err)
	}
	body.finish()

	utils.GetLogger().Info("Uploaded file to S3",
		zap.String("bucket", s.opts.Bucket),
		zap.String("key", key),
		zap.Int("size", len(data)),
	)
	return nil
}

// PublicURL returns a URL the extraction service can fetch.
func (s *Service) PublicURL(ctx context.Context, key string) (string, error) {
	if s.opts.Presign && s.presigner != nil {
		req, err := s.presigner.PresignGetObject(ctx, &s3.GetObjectInput{
			Bucket: aws.String(s.opts.Bucket),
			Key:    aws.String(key),
		}, func(o *s3.PresignOptions) {
			o.Expires = s.opts.PresignExpiry
		})
		if err != nil {
			return "", fmt.Errorf("failed to generate presigned download URL: %w", err)
		}
		return req.URL, nil
	}

	if s.opts.PublicBaseURL != "" {
		return strings.TrimRight(s.opts.PublicBaseURL, "/") + "/" + key, nil
	}
	return fmt.Sprintf("https://%s.s3.%s.amazonaws.com/%s", s.opts.Bucket, s.opts.Region, key), nil
}

// DownloadObject downloads a file from S3
func (s *Service) DownloadObject(ctx context.Context, key string) ([]byte, error) {
	result, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.opts.Bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		utils.GetLogger().Error("Failed to download file from S3",
			zap.String("bucket", s.opts.Bucket),
			zap.String("key", key),
			zap.Error(err),
		)
		return nil, fmt.Errorf("failed to download file: %w", err)
	}
	defer result.Body.Close()

	data, err := io.ReadAll(result.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read file content: %w", err)
	}
	return data, nil
}

// DeleteObject deletes a file from S3
func (s *Service) DeleteObject(ctx context.Context, key string) error {
	_, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.opts.Bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return fmt.Errorf("failed to delete file: %w", err)
	}

	utils.GetLogger().Info("Deleted file from S3",
		zap.String("bucket", s.opts.Bucket),
		zap.String("key", key),
	)
	return nil
}

// KeyFromURL recovers the object key from a URL returned by PublicURL.
func (s *Service) KeyFromURL(url string) (string, bool) {
	if i := strings.Index(url, "?"); i >= 0 {
		url = url[:i]
	}
	prefixes := []string{
		fmt.Sprintf("https://%s.s3.%s.amazonaws.com/", s.opts.Bucket, s.opts.Region),
	}
	if s.opts.PublicBaseURL != "" {
		prefixes = append(prefixes, strings.TrimRight(s.opts.PublicBaseURL, "/")+"/")
	}
	for _, p := range prefixes {
		if strings.HasPrefix(url, p) && len(url) > len(p) {
			return strings.TrimPrefix(url, p), true
		}
	}
	return "", false
}

// progressReader reports read progress. The SDK may seek back to rewind the
// body for retries or checksums; reported progress stays at its maximum.
type progressReader struct {
	mu       sync.Mutex
	r        *bytes.Reader
	total    int64
	max      int64
	progress func(float64)
}

func newProgressReader(data []byte, progress func(float64)) *progressReader {
	return &progressReader{r: bytes.NewReader(data), total: int64(len(data)), progress: progress}
}

func (p *progressReader) Read(b []byte) (int, error) {
	n, err := p.r.Read(b)
	if n > 0 {
		p.advance(p.total - int64(p.r.Len()))
	}
	return n, err
}

func (p *progressReader) Seek(offset int64, whence int) (int64, error) {
	return p.r.Seek(offset, whence)
}

func (p *progressReader) finish() {
	p.advance(p.total)
}

func (p *progressReader) advance(pos int64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.progress == nil || pos <= p.max {
		return
	}
	p.max = pos
	if p.total == 0 {
		p.progress(1)
		return
	}
	p.progress(float64(pos) / float64(p.total))
}
