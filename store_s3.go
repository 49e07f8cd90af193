package fitmetrics

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"go.uber.org/zap"
)

// s3Store serves metric files out of an S3 bucket prefix.
type s3Store struct {
	client     *s3.Client
	downloader *manager.Downloader
	presigner  *s3.PresignClient
	bucket     string
	prefix     string
}

func openS3Store(ctx context.Context, config *Config, bucket, prefix string) (*s3Store, error) {
	var loadOptions []func(*awsconfig.LoadOptions) error
	if config.S3.Region != "" {
		loadOptions = append(loadOptions, awsconfig.WithRegion(config.S3.Region))
	}
	if config.S3.AccessKeyID != "" {
		loadOptions = append(loadOptions, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(config.S3.AccessKeyID, config.S3.SecretAccessKey, "")))
	}

	awsConfig, err := awsconfig.LoadDefaultConfig(ctx, loadOptions...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS configuration: %w", err)
	}

	client := s3.NewFromConfig(awsConfig, func(o *s3.Options) {
		if config.S3.Endpoint != "" {
			o.BaseEndpoint = aws.String(config.S3.Endpoint)
			o.UsePathStyle = true
		}
	})

	zlog.Debug("opened S3 store",
		zap.String("bucket", bucket),
		zap.String("prefix", prefix),
		zap.String("endpoint", config.S3.Endpoint))

	return &s3Store{
		client:     client,
		downloader: manager.NewDownloader(client),
		presigner:  s3.NewPresignClient(client),
		bucket:     bucket,
		prefix:     prefix,
	}, nil
}

// fullKey prepends the store prefix to a relative key.
func (s *s3Store) fullKey(key string) string {
	if s.prefix == "" {
		return key
	}
	return s.prefix + "/" + key
}

func (s *s3Store) List(ctx context.Context) ([]Object, error) {
	input := &s3.ListObjectsV2Input{
		Bucket: aws.String(s.bucket),
	}
	if s.prefix != "" {
		input.Prefix = aws.String(s.prefix + "/")
	}

	var objects []Object
	paginator := s3.NewListObjectsV2Paginator(s.client, input)
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to list s3://%s/%s: %w", s.bucket, s.prefix, err)
		}

		for _, object := range page.Contents {
			key := aws.ToString(object.Key)
			if strings.HasSuffix(key, "/") {
				// Directory placeholder objects
				continue
			}
			relKey := key
			if s.prefix != "" {
				relKey = strings.TrimPrefix(key, s.prefix+"/")
			}
			if relKey == "" {
				continue
			}
			objects = append(objects, Object{
				Key:        relKey,
				Size:       aws.ToInt64(object.Size),
				ModifiedAt: aws.ToTime(object.LastModified),
			})
		}
	}

	zlog.Debug("listed S3 objects",
		zap.String("bucket", s.bucket),
		zap.String("prefix", s.prefix),
		zap.Int("count", len(objects)))

	return objects, nil
}

func (s *s3Store) Get(ctx context.Context, key string) (io.ReadCloser, error) {
	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.fullKey(key)),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get s3://%s/%s: %w", s.bucket, s.fullKey(key), err)
	}
	return out.Body, nil
}

func (s *s3Store) Download(ctx context.Context, key, localPath string) error {
	f, err := os.Create(localPath)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", localPath, err)
	}

	_, err = s.downloader.Download(ctx, f, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.fullKey(key)),
	})
	if err != nil {
		f.Close()
		os.Remove(localPath)
		return fmt.Errorf("failed to download s3://%s/%s: %w", s.bucket, s.fullKey(key), err)
	}

	return f.Close()
}

func (s *s3Store) Put(ctx context.Context, key string, r io.Reader) error {
	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.fullKey(key)),
		Body:   r,
	})
	if err != nil {
		return fmt.Errorf("failed to put s3://%s/%s: %w", s.bucket, s.fullKey(key), err)
	}
	return nil
}

func (s *s3Store) PresignUpload(ctx context.Context, key string, expiry time.Duration) (*UploadURL, error) {
	request, err := s.presigner.PresignPutObject(ctx, &s3.PutObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.fullKey(key)),
	}, s3.WithPresignExpires(expiry))
	if err != nil {
		return nil, fmt.Errorf("failed to presign upload for %s: %w", key, err)
	}

	return &UploadURL{
		URL:       request.URL,
		Method:    request.Method,
		ExpiresAt: time.Now().Add(expiry).UTC(),
	}, nil
}
