package mirror

import (
	"context"
	"errors"
	"fmt"
	nethttp "net/http"
	"os"

	"github.com/aws/aws-sdk-go-v2/aws"
	awshttp "github.com/aws/aws-sdk-go-v2/aws/transport/http"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	awscreds "github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/studiopipe/kitsu-fetch/internal/config"
)

// S3Uploader writes objects to one bucket. Single PUTs are used, which
// caps object size at 5 GiB.
type S3Uploader struct {
	client *s3.Client
	bucket string
}

// NewS3Uploader loads the default AWS configuration chain, overridden by
// any region, static keys and endpoint set in cfg. A custom endpoint
// switches to path-style addressing for S3-compatible stores.
func NewS3Uploader(ctx context.Context, cfg config.MirrorConfig, httpClient *nethttp.Client) (*S3Uploader, error) {
	if cfg.Bucket == "" {
		return nil, errors.New("s3 mirror requires a bucket")
	}

	var opts []func(*awsconfig.LoadOptions) error
	if cfg.Region != "" {
		opts = append(opts, awsconfig.WithRegion(cfg.Region))
	}
	if httpClient != nil {
		opts = append(opts, awsconfig.WithHTTPClient(httpClient))
	}
	if cfg.AccessKeyID != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			awscreds.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, "")))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = true
		}
	})
	return &S3Uploader{client: client, bucket: cfg.Bucket}, nil
}

func (u *S3Uploader) Target() string {
	return "s3://" + u.bucket
}

func (u *S3Uploader) Stat(ctx context.Context, key string) (int64, bool, error) {
	resp, err := u.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(u.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		var re *awshttp.ResponseError
		if errors.As(err, &re) && re.HTTPStatusCode() == nethttp.StatusNotFound {
			return 0, false, nil
		}
		return 0, false, err
	}
	return aws.ToInt64(resp.ContentLength), true, nil
}

func (u *S3Uploader) Upload(ctx context.Context, key, localPath string, size int64) error {
	f, err := os.Open(localPath)
	if err != nil {
		return err
	}
	defer f.Close()

	_, err = u.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(u.bucket),
		Key:           aws.String(key),
		Body:          f,
		ContentLength: aws.Int64(size),
	})
	return err
}
