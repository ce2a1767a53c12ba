package storage

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/mfenderov/docindex/pkg/models"
)

// Config holds S3/MinIO client configuration.
type Config struct {
	Endpoint        string // "localhost:9000" for MinIO
	Bucket          string // "docindex"
	AccessKeyID     string
	SecretAccessKey string
	UseSSL          bool
}

// Client stores kept images and document records in an S3/MinIO bucket.
//
// Layout:
//
//	documents/<document_id>/images/<image_id>.<ext>
//	documents/<document_id>/record.json
type Client struct {
	minioClient *minio.Client
	bucket      string
}

var _ ImageStore = (*Client)(nil)

// New creates a new S3/MinIO client.
func New(config Config) (*Client, error) {
	if config.Endpoint == "" {
		return nil, fmt.Errorf("endpoint is required")
	}
	if config.Bucket == "" {
		return nil, fmt.Errorf("bucket is required")
	}

	minioClient, err := minio.New(config.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(config.AccessKeyID, config.SecretAccessKey, ""),
		Secure: config.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create minio client: %w", err)
	}

	return &Client{
		minioClient: minioClient,
		bucket:      config.Bucket,
	}, nil
}

// EnsureBucket creates the bucket if it doesn't exist.
func (c *Client) EnsureBucket(ctx context.Context) error {
	exists, err := c.minioClient.BucketExists(ctx, c.bucket)
	if err != nil {
		return fmt.Errorf("failed to check bucket: %w", err)
	}
	if exists {
		return nil
	}

	err = c.minioClient.MakeBucket(ctx, c.bucket, minio.MakeBucketOptions{})
	if err != nil {
		return fmt.Errorf("failed to create bucket: %w", err)
	}
	return nil
}

func imageObjectName(documentID, imageID, ext string) string {
	return path.Join(documentPrefix(documentID), "images", imageFileName(imageID, ext))
}

func recordObjectName(documentID string) string {
	return path.Join(documentPrefix(documentID), "record.json")
}

func documentPrefix(documentID string) string {
	return path.Join("documents", documentID)
}

// PutImage writes an image object and returns its s3:// location.
func (c *Client) PutImage(ctx context.Context, documentID, imageID, ext string, data []byte) (string, error) {
	objectName := imageObjectName(documentID, imageID, ext)

	_, err := c.minioClient.PutObject(ctx, c.bucket, objectName, bytes.NewReader(data), int64(len(data)), minio.PutObjectOptions{
		ContentType: contentType(ext),
	})
	if err != nil {
		return "", fmt.Errorf("failed to put image: %w", err)
	}
	return fmt.Sprintf("s3://%s/%s", c.bucket, objectName), nil
}

// GetImage reads an image object.
func (c *Client) GetImage(ctx context.Context, documentID, imageID, ext string) ([]byte, error) {
	object, err := c.minioClient.GetObject(ctx, c.bucket, imageObjectName(documentID, imageID, ext), minio.GetObjectOptions{})
	if err != nil {
		return nil, fmt.Errorf("failed to get image: %w", err)
	}
	defer object.Close()

	data, err := io.ReadAll(object)
	if err != nil {
		return nil, fmt.Errorf("failed to read image: %w", err)
	}
	return data, nil
}

// ListImages returns the object names of a document's images.
func (c *Client) ListImages(ctx context.Context, documentID string) ([]string, error) {
	imagesPrefix := path.Join(documentPrefix(documentID), "images") + "/"
	var files []string

	objectCh := c.minioClient.ListObjects(ctx, c.bucket, minio.ListObjectsOptions{
		Prefix:    imagesPrefix,
		Recursive: true,
	})

	for object := range objectCh {
		if object.Err != nil {
			return nil, fmt.Errorf("failed to list objects: %w", object.Err)
		}
		// Return just the filename, not the full path
		files = append(files, path.Base(object.Key))
	}

	return files, nil
}

// DownloadImages copies every stored image of a document into dir and
// returns the written file paths.
func (c *Client) DownloadImages(ctx context.Context, documentID, dir string) ([]string, error) {
	names, err := c.ListImages(ctx, documentID)
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create output directory: %w", err)
	}

	var written []string
	for _, name := range names {
		imageID, ext := splitImageName(name)
		data, err := c.GetImage(ctx, documentID, imageID, ext)
		if err != nil {
			return written, fmt.Errorf("image %s: %w", name, err)
		}
		p := filepath.Join(dir, name)
		if err := os.WriteFile(p, data, 0o644); err != nil {
			return written, fmt.Errorf("failed to write image: %w", err)
		}
		written = append(written, p)
	}
	return written, nil
}

// splitImageName is the inverse of imageFileName.
func splitImageName(name string) (imageID, ext string) {
	ext = path.Ext(name)
	return strings.TrimSuffix(name, ext), strings.TrimPrefix(ext, ".")
}

// PutRecord archives the assembled document as JSON next to its images.
func (c *Client) PutRecord(ctx context.Context, doc models.Document) error {
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal record: %w", err)
	}

	_, err = c.minioClient.PutObject(ctx, c.bucket, recordObjectName(doc.DocumentID), bytes.NewReader(data), int64(len(data)), minio.PutObjectOptions{
		ContentType: "application/json",
	})
	if err != nil {
		return fmt.Errorf("failed to put record: %w", err)
	}
	return nil
}

// GetRecord reads an archived document record.
func (c *Client) GetRecord(ctx context.Context, documentID string) (*models.Document, error) {
	object, err := c.minioClient.GetObject(ctx, c.bucket, recordObjectName(documentID), minio.GetObjectOptions{})
	if err != nil {
		return nil, fmt.Errorf("failed to get record: %w", err)
	}
	defer object.Close()

	data, err := io.ReadAll(object)
	if err != nil {
		return nil, fmt.Errorf("failed to read record: %w", err)
	}

	var doc models.Document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to unmarshal record: %w", err)
	}
	return &doc, nil
}

// ListRecords returns the ids of all archived documents.
func (c *Client) ListRecords(ctx context.Context) ([]string, error) {
	var ids []string

	objectCh := c.minioClient.ListObjects(ctx, c.bucket, minio.ListObjectsOptions{
		Prefix:    "documents/",
		Recursive: true,
	})

	for object := range objectCh {
		if object.Err != nil {
			return nil, fmt.Errorf("failed to list objects: %w", object.Err)
		}
		if strings.HasSuffix(object.Key, "/record.json") {
			ids = append(ids, path.Base(path.Dir(object.Key)))
		}
	}

	return ids, nil
}

// Bucket returns the bucket name.
func (c *Client) Bucket() string {
	return c.bucket
}
