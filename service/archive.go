package service

import (
	"context"
	"fmt"
	"io"
	"mime"
	"net/url"
	"path"
	"time"

	"github.com/Kartekeya-Sharma/Contract-Guard/config"
	"github.com/Kartekeya-Sharma/Contract-Guard/model"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// DocumentArchive keeps submitted documents in object storage, one folder
// per tenant and session: <tenant>/<session>/<filename>.
type DocumentArchive struct {
	client  *minio.Client
	bucket  string
	linkTTL time.Duration
}

func NewDocumentArchive(cfg *config.MinioConfig) (*DocumentArchive, error) {
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
		Region: cfg.Region,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create minio client: %w", err)
	}

	return &DocumentArchive{
		client:  client,
		bucket:  cfg.Bucket,
		linkTTL: time.Duration(cfg.ExpireDays) * 24 * time.Hour,
	}, nil
}

func sessionPrefix(tenant, sessionID string) string {
	return path.Join(tenant, sessionID) + "/"
}

// objectName never lets the client-supplied filename leave the session folder.
func objectName(tenant, sessionID, filename string) string {
	name := path.Base(path.Clean("/" + filename))
	if name == "/" {
		name = "document"
	}
	return sessionPrefix(tenant, sessionID) + name
}

// EnsureBucket creates the bucket if it doesn't exist
func (a *DocumentArchive) EnsureBucket(ctx context.Context) error {
	exists, err := a.client.BucketExists(ctx, a.bucket)
	if err != nil {
		return fmt.Errorf("failed to check bucket: %w", err)
	}
	if exists {
		return nil
	}
	if err := a.client.MakeBucket(ctx, a.bucket, minio.MakeBucketOptions{}); err != nil {
		return fmt.Errorf("failed to create bucket: %w", err)
	}
	return nil
}

// Store uploads doc's content into the session folder and returns its key.
func (a *DocumentArchive) Store(ctx context.Context, tenant, sessionID string, doc model.Document, body io.Reader) (string, error) {
	key := objectName(tenant, sessionID, doc.Filename)
	_, err := a.client.PutObject(ctx, a.bucket, key, body, doc.Size, minio.PutObjectOptions{
		ContentType: doc.MediaType,
		UserMetadata: map[string]string{
			"tenant":  tenant,
			"session": sessionID,
		},
	})
	if err != nil {
		return "", fmt.Errorf("failed to archive %s: %w", key, err)
	}
	return key, nil
}

// DownloadURL presigns a GET for key that downloads under the original
// filename.
func (a *DocumentArchive) DownloadURL(ctx context.Context, key string) (string, error) {
	params := url.Values{}
	params.Set("response-content-disposition",
		mime.FormatMediaType("attachment", map[string]string{"filename": path.Base(key)}))

	u, err := a.client.PresignedGetObject(ctx, a.bucket, key, a.linkTTL, params)
	if err != nil {
		return "", fmt.Errorf("failed to generate presigned URL: %w", err)
	}
	return u.String(), nil
}

// RemoveSession deletes everything archived for the session and returns the
// number of objects removed.
func (a *DocumentArchive) RemoveSession(ctx context.Context, tenant, sessionID string) (int, error) {
	removed := 0
	objects := a.client.ListObjects(ctx, a.bucket, minio.ListObjectsOptions{
		Prefix:    sessionPrefix(tenant, sessionID),
		Recursive: true,
	})
	for obj := range objects {
		if obj.Err != nil {
			return removed, fmt.Errorf("failed to list session documents: %w", obj.Err)
		}
		if err := a.client.RemoveObject(ctx, a.bucket, obj.Key, minio.RemoveObjectOptions{}); err != nil {
			return removed, fmt.Errorf("failed to remove %s: %w", obj.Key, err)
		}
		removed++
	}
	// The listing stops silently when ctx ends.
	if err := ctx.Err(); err != nil {
		return removed, fmt.Errorf("failed to list session documents: %w", err)
	}
	return removed, nil
}
