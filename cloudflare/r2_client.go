// Package cloudflare links a Cloudflare R2 bucket as a cloud mirror.
package cloudflare

import (
	"context"
	"fmt"
	"path"
	"strings"
	"time"

	a "filmforge/media-library/aws"
	"filmforge/media-library/internal/cloud"
	"filmforge/media-library/pkg/medialib"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// Links handed out for mirrored objects
const linkLifetime = time.Hour

type R2Client struct {
	*a.S3Client

	uploader *manager.Uploader
}

// NewR2 opens the bucket described by the credentials of a connection:
// account_id, access_key_id, secret_access_key and bucket. An explicit
// endpoint overrides the one derived from the account.
func NewR2(ctx context.Context, creds map[string]string) (cloud.Provider, error) {
	if err := cloud.Require(creds, "access_key_id", "secret_access_key", "bucket"); err != nil {
		return nil, err
	}

	endpoint := creds["endpoint"]
	if endpoint == "" {
		if err := cloud.Require(creds, "account_id"); err != nil {
			return nil, err
		}

		endpoint = fmt.Sprintf("https://%s.r2.cloudflarestorage.com", creds["account_id"])
	}

	c, err := a.Connect(ctx, a.Options{
		Bucket:          creds["bucket"],
		Region:          "auto",
		Endpoint:        endpoint,
		AccessKeyID:     creds["access_key_id"],
		SecretAccessKey: creds["secret_access_key"],
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to r2, %w", err)
	}

	return &R2Client{
		S3Client: c,
		uploader: manager.NewUploader(c.C, func(u *manager.Uploader) {
			u.Concurrency = 5
			u.PartSize = 6 << 20
		}),
	}, nil
}

func (r *R2Client) Name() medialib.Provider {
	return medialib.ProviderR2
}

// Upload stores obj as <folder>/<name>. Syncing the same file again
// overwrites the earlier copy.
func (r *R2Client) Upload(ctx context.Context, folder string, obj cloud.Object) (string, error) {
	key := path.Join(folder, path.Base(obj.Name))

	_, err := r.uploader.Upload(ctx, &s3.PutObjectInput{
		Bucket:        r.Bucket,
		Key:           aws.String(key),
		Body:          obj.Body,
		ContentLength: aws.Int64(obj.Size),
		ContentType:   aws.String(obj.MIME),
	})
	if err != nil {
		return "", fmt.Errorf("failed to upload %s to r2, %w", key, err)
	}

	return key, nil
}

// List returns the objects directly below the folder prefix.
func (r *R2Client) List(ctx context.Context, folder string) ([]medialib.MediaFile, error) {
	prefix := strings.TrimSuffix(folder, "/") + "/"

	p := s3.NewListObjectsV2Paginator(r.C, &s3.ListObjectsV2Input{
		Bucket:    r.Bucket,
		Prefix:    aws.String(prefix),
		Delimiter: aws.String("/"),
	})

	var files []medialib.MediaFile

	for p.HasMorePages() {
		page, err := p.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to list r2 folder %s, %w", folder, err)
		}

		for _, o := range page.Contents {
			key := aws.ToString(o.Key)
			name := path.Base(key)

			f := medialib.MediaFile{
				ID:         key,
				Name:       name,
				Type:       typeOf(name),
				Size:       aws.ToInt64(o.Size),
				Location:   medialib.Cloud(medialib.ProviderR2),
				ProviderID: key,
			}

			if o.LastModified != nil {
				f.CreatedAt = o.LastModified.UTC()
			}

			files = append(files, f)
		}
	}

	return files, nil
}

// URL presigns a read link, R2 buckets are private.
func (r *R2Client) URL(ctx context.Context, id string) (*medialib.SignedURL, error) {
	u, expires, err := r.PresignGet(ctx, id, linkLifetime)
	if err != nil {
		return nil, err
	}

	return &medialib.SignedURL{URL: u, ExpiresAt: expires}, nil
}

// typeOf guesses the media type from the extension, listings carry no
// content type.
func typeOf(name string) medialib.MediaType {
	switch strings.ToLower(path.Ext(name)) {
	case ".png", ".jpg", ".jpeg", ".gif", ".webp", ".avif", ".bmp", ".svg":
		return medialib.MediaImage
	case ".mp4", ".mov", ".webm", ".mkv", ".avi", ".m4v":
		return medialib.MediaVideo
	case ".mp3", ".wav", ".ogg", ".flac", ".m4a", ".aac":
		return medialib.MediaAudio
	default:
		return medialib.MediaOther
	}
}
