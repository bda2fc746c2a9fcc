package services

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/gofrs/uuid"
	"github.com/m-barthelemy/placeshare/metrics"
	"github.com/m-barthelemy/placeshare/models"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	log "github.com/sirupsen/logrus"
)

const (
	PlaceImagesFolder = "place_images"
	UserImagesFolder  = "user_images"
)

// ImageExtensions maps the accepted image MIME types to their file extension.
var ImageExtensions = map[string]string{
	"image/png":  "png",
	"image/jpeg": "jpeg",
	"image/jpg":  "jpg",
}

// Upload is an image received from a multipart form.
type Upload struct {
	Reader      io.Reader
	ContentType string
	Size        int64
}

// MediaStore hosts uploaded images and serves them from a public path.
type MediaStore interface {
	// Upload stores the image under folder and returns its public path.
	Upload(ctx context.Context, folder string, upload *Upload) (string, error)
	// Delete removes the image stored at the public path returned by Upload.
	Delete(ctx context.Context, path string) error
}

// MinioMediaStore stores images in an S3-compatible bucket.
type MinioMediaStore struct {
	client    *minio.Client
	bucket    string
	publicURL string
}

func NewMinioMediaStore(config *models.Config) (*MinioMediaStore, error) {
	client, err := minio.New(config.MediaEndpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(config.MediaAccessKey, config.MediaSecretKey, ""),
		Secure: config.MediaUseSSL,
	})
	if err != nil {
		return nil, MediaError.Wrap(err)
	}
	return &MinioMediaStore{
		client:    client,
		bucket:    config.MediaBucket,
		publicURL: strings.TrimSuffix(config.MediaPublicURL.String(), "/"),
	}, nil
}

// EnsureBucket creates the configured bucket when it does not exist yet.
func (s *MinioMediaStore) EnsureBucket(ctx context.Context) error {
	exists, err := s.client.BucketExists(ctx, s.bucket)
	if err != nil {
		return MediaError.Wrap(err)
	}
	if exists {
		return nil
	}
	if err := s.client.MakeBucket(ctx, s.bucket, minio.MakeBucketOptions{}); err != nil {
		return MediaError.Wrap(err)
	}
	log.Infof("MediaStore: created bucket %s", s.bucket)
	return nil
}

func (s *MinioMediaStore) Upload(ctx context.Context, folder string, upload *Upload) (string, error) {
	ext, ok := ImageExtensions[upload.ContentType]
	if !ok {
		return "", Unprocessable("Invalid mime type!", nil)
	}
	id, err := uuid.NewV4()
	if err != nil {
		return "", MediaError.Wrap(err)
	}
	key := fmt.Sprintf("%s/%s.%s", folder, id.String(), ext)
	_, err = s.client.PutObject(ctx, s.bucket, key, upload.Reader, upload.Size, minio.PutObjectOptions{ContentType: upload.ContentType})
	if err != nil {
		metrics.MediaOperations.WithLabelValues("upload", "error").Inc()
		return "", MediaError.Wrap(err)
	}
	metrics.MediaOperations.WithLabelValues("upload", "ok").Inc()
	return s.publicURL + "/" + key, nil
}

func (s *MinioMediaStore) Delete(ctx context.Context, path string) error {
	key, err := MediaKey(s.publicURL, path)
	if err != nil {
		return err
	}
	if err := s.client.RemoveObject(ctx, s.bucket, key, minio.RemoveObjectOptions{}); err != nil {
		metrics.MediaOperations.WithLabelValues("delete", "error").Inc()
		return MediaError.Wrap(err)
	}
	metrics.MediaOperations.WithLabelValues("delete", "ok").Inc()
	return nil
}

// MediaKey derives the object key of an image from its public path.
func MediaKey(publicURL string, path string) (string, error) {
	prefix := strings.TrimSuffix(publicURL, "/") + "/"
	if !strings.HasPrefix(path, prefix) || len(path) == len(prefix) {
		return "", MediaError.New("%q is not hosted under %s", path, publicURL)
	}
	return strings.TrimPrefix(path, prefix), nil
}
