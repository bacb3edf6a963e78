package transport

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/sirupsen/logrus"
)

// S3API is the subset of the S3 client the adapter consumes. It exists so
// tests can substitute a fake without a live bucket.
type S3API interface {
	HeadObject(ctx context.Context, params *s3.HeadObjectInput, optFns ...func(*s3.Options)) (*s3.HeadObjectOutput, error)
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// S3Adapter stores one object per chunk under
// {prefix}/{identifier}/{chunkNumber}. The existence probe is a HeadObject
// whose content length must match the chunk's actual size; transmission is a
// plain PutObject.
type S3Adapter struct {
	api    S3API
	bucket string
	prefix string
}

// NewS3Adapter creates an adapter using the default AWS credential chain.
func NewS3Adapter(ctx context.Context, bucket, prefix string) (*S3Adapter, error) {
	if bucket == "" {
		return nil, fmt.Errorf("s3 adapter: bucket is required")
	}
	cfg, err := awsconfig.LoadDefaultConfig(ctx)
	if err != nil {
		return nil, fmt.Errorf("s3 adapter: load AWS config: %w", err)
	}
	return NewS3AdapterWithClient(s3.NewFromConfig(cfg), bucket, prefix), nil
}

// NewS3AdapterWithClient creates an adapter over an existing client or fake.
func NewS3AdapterWithClient(api S3API, bucket, prefix string) *S3Adapter {
	logrus.WithFields(logrus.Fields{
		"function": "NewS3AdapterWithClient",
		"bucket":   bucket,
		"prefix":   prefix,
	}).Info("S3 transport adapter created")

	return &S3Adapter{
		api:    api,
		bucket: bucket,
		prefix: strings.Trim(prefix, "/"),
	}
}

// key returns the object key for a chunk. The zero-padded number keeps
// chunk objects listable in transmission order.
func (a *S3Adapter) key(meta ChunkMeta) string {
	if a.prefix == "" {
		return fmt.Sprintf("%s/%06d", meta.File.Identifier, meta.Number)
	}
	return fmt.Sprintf("%s/%s/%06d", a.prefix, meta.File.Identifier, meta.Number)
}

// Probe reports whether the chunk object already exists with the expected
// size. A size mismatch is treated as absent so the range is re-transmitted.
func (a *S3Adapter) Probe(ctx context.Context, meta ChunkMeta) (bool, error) {
	out, err := a.api.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(a.bucket),
		Key:    aws.String(a.key(meta)),
	})
	if err != nil {
		var notFound *s3types.NotFound
		if errors.As(err, &notFound) {
			return false, nil
		}
		var noSuchKey *s3types.NoSuchKey
		if errors.As(err, &noSuchKey) {
			return false, nil
		}
		return false, fmt.Errorf("%w: head %s: %v", ErrProbeFailed, a.key(meta), err)
	}

	if out.ContentLength != nil && *out.ContentLength != meta.CurrentSize {
		logrus.WithFields(logrus.Fields{
			"function":   "Probe",
			"key":        a.key(meta),
			"stored":     *out.ContentLength,
			"chunk_size": meta.CurrentSize,
		}).Warn("Stored chunk size mismatch, treating as absent")
		return false, nil
	}

	return true, nil
}

// Send writes the chunk body to its object key.
func (a *S3Adapter) Send(ctx context.Context, meta ChunkMeta, body io.Reader, onProgress func(sent int64)) (*Result, error) {
	_, err := a.api.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(a.bucket),
		Key:           aws.String(a.key(meta)),
		Body:          &countingReader{r: body, onProgress: onProgress},
		ContentLength: aws.Int64(meta.CurrentSize),
	})
	if err != nil {
		return nil, fmt.Errorf("s3 adapter: put chunk %d of %s: %w", meta.Number, meta.File.Identifier, err)
	}

	return &Result{StatusCode: 200}, nil
}
