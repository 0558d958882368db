package storage

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"path"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/google/uuid"
)

// filebaseRegion is the only region Filebase accepts.
const filebaseRegion = "us-east-1"

// ObjectAPI is the subset of the S3 client used by Filebase.
type ObjectAPI interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	HeadObject(ctx context.Context, params *s3.HeadObjectInput, optFns ...func(*s3.Options)) (*s3.HeadObjectOutput, error)
}

// Filebase pins files to IPFS through Filebase's S3-compatible API. Objects are
// written under a unique prefix and the CID is read back from the object metadata.
type Filebase struct {
	client      ObjectAPI
	bucket      string
	gatewayHost string
}

// NewFilebase creates an uploader using client for bucket.
func NewFilebase(client ObjectAPI, bucket, gatewayHost string) *Filebase {
	return &Filebase{
		client:      client,
		bucket:      bucket,
		gatewayHost: gatewayHost,
	}
}

// NewFilebaseClient creates an S3 client for the Filebase endpoint.
func NewFilebaseClient(ctx context.Context, endpoint, accessKey, secretKey string) (*s3.Client, error) {
	if accessKey == "" || secretKey == "" {
		return nil, ErrMissingCredential
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx,
		awsconfig.WithRegion(filebaseRegion),
		awsconfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(accessKey, secretKey, "")),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to load storage config: %w", err)
	}

	return s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		o.BaseEndpoint = aws.String(endpoint)
		o.UsePathStyle = true
	}), nil
}

// Upload implements Uploader.
func (f *Filebase) Upload(ctx context.Context, filename string, content io.Reader) (string, error) {
	key := path.Join(uuid.NewString(), filename)

	_, err := f.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket: aws.String(f.bucket),
		Key:    aws.String(key),
		Body:   content,
	})
	if err != nil {
		slog.Error("Error uploading to IPFS", slog.String("filename", filename), slog.Any("err", err))
		return "", fmt.Errorf("failed to upload %s: %w", filename, err)
	}

	head, err := f.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(f.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return "", fmt.Errorf("failed to read metadata of %s: %w", key, err)
	}

	cid := head.Metadata["cid"]
	if cid == "" {
		return "", fmt.Errorf("%w: %s", ErrMissingCID, key)
	}
	return GatewayFileURL(cid, f.gatewayHost, filename), nil
}
