package storage

import (
	"context"
	"fmt"
	"io"
	"path"
	"sort"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/bmatcuk/doublestar/v4"

	"github.com/nemanja-m/ccrender/internal/render/core"
	"github.com/nemanja-m/ccrender/internal/shared/config"
)

// S3Client is the subset of the S3 API used by S3ArtifactStore.
type S3Client interface {
	manager.UploadAPIClient
	s3.ListObjectsV2APIClient
}

// S3ArtifactStore uploads artifacts into a bucket under an optional key prefix.
type S3ArtifactStore struct {
	client   S3Client
	uploader *manager.Uploader
	bucket   string
	prefix   string
}

// NewS3Client connects to S3 or an S3 compatible endpoint such as MinIO.
func NewS3Client(cfg config.S3StorageConfig) *s3.Client {
	return s3.NewFromConfig(aws.Config{Region: cfg.Region}, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = true
		}
		if cfg.AccessKey != "" {
			o.Credentials = credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, "")
		}
	})
}

func NewS3ArtifactStore(client S3Client, bucket, prefix string, partSize int64) *S3ArtifactStore {
	uploader := manager.NewUploader(client, func(u *manager.Uploader) {
		if partSize >= manager.MinUploadPartSize {
			u.PartSize = partSize
		}
	})
	return &S3ArtifactStore{
		client:   client,
		uploader: uploader,
		bucket:   bucket,
		prefix:   strings.Trim(prefix, "/"),
	}
}

func (s *S3ArtifactStore) key(name string) string {
	if s.prefix == "" {
		return name
	}
	return s.prefix + "/" + name
}

func (s *S3ArtifactStore) Put(ctx context.Context, name string, r io.Reader) (core.Artifact, error) {
	if name == "" || strings.Contains(name, "/") {
		return core.Artifact{}, fmt.Errorf("invalid artifact name %q", name)
	}

	key := s.key(name)
	counter := &countingReader{r: r}
	_, err := s.uploader.Upload(ctx, &s3.PutObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
		Body:   counter,
	})
	if err != nil {
		return core.Artifact{}, fmt.Errorf("upload s3://%s/%s: %w", s.bucket, key, err)
	}

	return core.Artifact{
		Name:     name,
		Location: fmt.Sprintf("s3://%s/%s", s.bucket, key),
		Size:     counter.n,
	}, nil
}

// List returns object names relative to the store prefix that match pattern.
func (s *S3ArtifactStore) List(ctx context.Context, pattern string) ([]string, error) {
	if pattern == "" {
		pattern = "**"
	}
	if !doublestar.ValidatePattern(pattern) {
		return nil, fmt.Errorf("%w: %q", doublestar.ErrBadPattern, pattern)
	}

	input := &s3.ListObjectsV2Input{Bucket: aws.String(s.bucket)}
	if s.prefix != "" {
		input.Prefix = aws.String(s.prefix + "/")
	}

	names := []string{}
	paginator := s3.NewListObjectsV2Paginator(s.client, input)
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("list s3://%s: %w", s.bucket, err)
		}
		for _, obj := range page.Contents {
			name := strings.TrimPrefix(aws.ToString(obj.Key), s.prefix+"/")
			if s.prefix == "" {
				name = aws.ToString(obj.Key)
			}
			if ok, _ := doublestar.Match(pattern, path.Clean(name)); ok {
				names = append(names, name)
			}
		}
	}
	sort.Strings(names)
	return names, nil
}

type countingReader struct {
	r io.Reader
	n int64
}

func (c *countingReader) Read(p []byte) (int, error) {
	n, err := c.r.Read(p)
	c.n += int64(n)
	return n, err
}
