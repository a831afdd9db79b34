// Package aws wraps the S3 compatible bucket that holds the authoritative
// copy of every media file
package aws

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"
	"github.com/gabriel-vasile/mimetype"
	v "github.com/spf13/viper"
)

// sniffSize is how many leading bytes are fetched to detect a content type
const sniffSize = 3072

// S3 can delete at most 1000 objects in one request
const deleteBatch = 1000

var ErrObjectNotFound = errors.New("object not found")

type S3Client struct {
	C       *s3.Client
	Presign *s3.PresignClient
	Bucket  *string
}

// Options are the connection settings of an S3 compatible bucket.
type Options struct {
	Bucket          string
	Region          string
	Endpoint        string
	AccessKeyID     string
	SecretAccessKey string
}

// NewS3 connects to the bucket configured under storage.* and makes sure it exists.
func NewS3(ctx context.Context) (*S3Client, error) {
	return Connect(ctx, Options{
		Bucket:          v.GetString("storage.bucket"),
		Region:          v.GetString("storage.region"),
		Endpoint:        v.GetString("storage.endpoint"),
		AccessKeyID:     v.GetString("storage.access_key_id"),
		SecretAccessKey: v.GetString("storage.secret_access_key"),
	})
}

// Connect builds a client for any S3 compatible bucket. A custom endpoint
// switches to path style addressing, which MinIO and R2 expect.
func Connect(ctx context.Context, o Options) (*S3Client, error) {
	cfg, err := config.LoadDefaultConfig(ctx,
		config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			o.AccessKeyID,
			o.SecretAccessKey,
			"",
		)),
	)
	if err != nil {
		return nil, err
	}

	bucket := aws.String(o.Bucket)

	client := s3.NewFromConfig(cfg, func(so *s3.Options) {
		so.Region = o.Region
		if o.Endpoint != "" {
			so.BaseEndpoint = aws.String(o.Endpoint)
			so.UsePathStyle = true
		}
	})

	_, err = client.HeadBucket(ctx, &s3.HeadBucketInput{
		Bucket: bucket,
	})
	if err != nil {
		if isNotFound(err) {
			return nil, fmt.Errorf("bucket '%s' does not exist", o.Bucket)
		}

		return nil, fmt.Errorf("failed to check if bucket exists, %w", err)
	}

	return &S3Client{
		C:       client,
		Presign: s3.NewPresignClient(client),
		Bucket:  bucket,
	}, nil
}

func isNotFound(err error) bool {
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.ErrorCode() {
		case "NotFound", "NoSuchKey", "NoSuchBucket":
			return true
		}
	}

	return false
}

// PresignGet returns a time limited URL to read key.
func (s *S3Client) PresignGet(ctx context.Context, key string, lifetime time.Duration) (string, time.Time, error) {
	expires := time.Now().Add(lifetime)

	req, err := s.Presign.PresignGetObject(ctx, &s3.GetObjectInput{
		Bucket: s.Bucket,
		Key:    aws.String(key),
	}, s3.WithPresignExpires(lifetime))
	if err != nil {
		return "", time.Time{}, fmt.Errorf("failed to presign download of %s, %w", key, err)
	}

	return req.URL, expires, nil
}

// PresignPut returns a time limited URL the client sends the bytes of key to,
// together with the headers that were signed into it.
func (s *S3Client) PresignPut(ctx context.Context, key, mime string, lifetime time.Duration) (string, map[string]string, error) {
	req, err := s.Presign.PresignPutObject(ctx, &s3.PutObjectInput{
		Bucket:      s.Bucket,
		Key:         aws.String(key),
		ContentType: aws.String(mime),
	}, s3.WithPresignExpires(lifetime))
	if err != nil {
		return "", nil, fmt.Errorf("failed to presign upload of %s, %w", key, err)
	}

	headers := map[string]string{}
	for k, vals := range req.SignedHeader {
		switch http.CanonicalHeaderKey(k) {
		case "Host", "Content-Length":
			continue
		}

		headers[http.CanonicalHeaderKey(k)] = strings.Join(vals, ",")
	}

	return req.URL, headers, nil
}

// Head returns the stored size of key, or ErrObjectNotFound.
func (s *S3Client) Head(ctx context.Context, key string) (int64, error) {
	out, err := s.C.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: s.Bucket,
		Key:    aws.String(key),
	})
	if err != nil {
		if isNotFound(err) {
			return 0, ErrObjectNotFound
		}

		return 0, fmt.Errorf("failed to head %s, %w", key, err)
	}

	return aws.ToInt64(out.ContentLength), nil
}

// Sniff detects the content type of key from its first bytes.
func (s *S3Client) Sniff(ctx context.Context, key string) (string, error) {
	out, err := s.C.GetObject(ctx, &s3.GetObjectInput{
		Bucket: s.Bucket,
		Key:    aws.String(key),
		Range:  aws.String(fmt.Sprintf("bytes=0-%d", sniffSize-1)),
	})
	if err != nil {
		if isNotFound(err) {
			return "", ErrObjectNotFound
		}

		return "", fmt.Errorf("failed to read head of %s, %w", key, err)
	}
	defer out.Body.Close()

	mt, err := mimetype.DetectReader(io.LimitReader(out.Body, sniffSize))
	if err != nil {
		return "", fmt.Errorf("failed to detect type of %s, %w", key, err)
	}

	return mt.String(), nil
}

// Open streams the whole object. The caller closes the body.
func (s *S3Client) Open(ctx context.Context, key string) (io.ReadCloser, int64, error) {
	out, err := s.C.GetObject(ctx, &s3.GetObjectInput{
		Bucket: s.Bucket,
		Key:    aws.String(key),
	})
	if err != nil {
		if isNotFound(err) {
			return nil, 0, ErrObjectNotFound
		}

		return nil, 0, fmt.Errorf("failed to open %s, %w", key, err)
	}

	return out.Body, aws.ToInt64(out.ContentLength), nil
}

// Delete removes every key, batching requests as needed.
func (s *S3Client) Delete(ctx context.Context, keys ...string) error {
	for start := 0; start < len(keys); start += deleteBatch {
		end := min(start+deleteBatch, len(keys))

		objects := make([]types.ObjectIdentifier, end-start)
		for i, key := range keys[start:end] {
			objects[i] = types.ObjectIdentifier{Key: aws.String(key)}
		}

		out, err := s.C.DeleteObjects(ctx, &s3.DeleteObjectsInput{
			Bucket: s.Bucket,
			Delete: &types.Delete{
				Objects: objects,
				Quiet:   aws.Bool(true),
			},
		})
		if err != nil {
			return fmt.Errorf("failed to delete objects, %w", err)
		}

		if len(out.Errors) > 0 {
			e := out.Errors[0]
			return fmt.Errorf("failed to delete %s, %s", aws.ToString(e.Key), aws.ToString(e.Message))
		}
	}

	return nil
}
