// Package storage archives scraped term sheets and completion-log exports in
// an S3-compatible object store.
package storage

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path"
	"strings"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/tradentry/tradentry/pkg/models"
)

// Config holds S3/MinIO client configuration.
type Config struct {
	Endpoint        string // "localhost:9000" for MinIO
	Bucket          string
	AccessKeyID     string
	SecretAccessKey string
	UseSSL          bool
}

// Archive wraps the MinIO/S3 client for term-sheet storage.
type Archive struct {
	minioClient *minio.Client
	bucket      string
}

// New creates a new archive client.
func New(config Config) (*Archive, error) {
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

	return &Archive{
		minioClient: minioClient,
		bucket:      config.Bucket,
	}, nil
}

// EnsureBucket creates the bucket if it doesn't exist.
func (a *Archive) EnsureBucket(ctx context.Context) error {
	exists, err := a.minioClient.BucketExists(ctx, a.bucket)
	if err != nil {
		return fmt.Errorf("failed to check bucket: %w", err)
	}
	if exists {
		return nil
	}

	if err := a.minioClient.MakeBucket(ctx, a.bucket, minio.MakeBucketOptions{}); err != nil {
		return fmt.Errorf("failed to create bucket: %w", err)
	}
	return nil
}

// GroupMetadata describes one scraped trade group.
type GroupMetadata struct {
	TradeGroup string   `json:"trade_group"`
	SourceURL  string   `json:"source_url"`
	Timestamp  string   `json:"timestamp"`
	SheetCount int      `json:"sheet_count"`
	Pages      []string `json:"pages"` // URLs of the archived sheets
}

// PutTermSheet archives one fetched term sheet under the trade group. The
// object name is derived from the sheet URL so re-scrapes overwrite in place.
func (a *Archive) PutTermSheet(ctx context.Context, tradeGroup string, sheet models.TermSheet) error {
	objectName := path.Join("groups", tradeGroup, "sheets", models.TermSheetID(sheet.URL)+".json")

	data, err := json.Marshal(sheet)
	if err != nil {
		return fmt.Errorf("failed to marshal term sheet: %w", err)
	}

	_, err = a.minioClient.PutObject(ctx, a.bucket, objectName, bytes.NewReader(data), int64(len(data)), minio.PutObjectOptions{
		ContentType: "application/json",
	})
	if err != nil {
		return fmt.Errorf("failed to put term sheet: %w", err)
	}
	return nil
}

// GetTermSheet reads an archived term sheet by its id.
func (a *Archive) GetTermSheet(ctx context.Context, tradeGroup, sheetID string) (*models.TermSheet, error) {
	objectName := path.Join("groups", tradeGroup, "sheets", sheetID+".json")

	object, err := a.minioClient.GetObject(ctx, a.bucket, objectName, minio.GetObjectOptions{})
	if err != nil {
		return nil, fmt.Errorf("failed to get term sheet: %w", err)
	}
	defer object.Close()

	data, err := io.ReadAll(object)
	if err != nil {
		return nil, fmt.Errorf("failed to read term sheet: %w", err)
	}

	var sheet models.TermSheet
	if err := json.Unmarshal(data, &sheet); err != nil {
		return nil, fmt.Errorf("failed to unmarshal term sheet: %w", err)
	}
	return &sheet, nil
}

// ListTermSheets returns the ids of all archived sheets for a trade group.
func (a *Archive) ListTermSheets(ctx context.Context, tradeGroup string) ([]string, error) {
	prefix := path.Join("groups", tradeGroup, "sheets") + "/"
	var ids []string

	objectCh := a.minioClient.ListObjects(ctx, a.bucket, minio.ListObjectsOptions{
		Prefix:    prefix,
		Recursive: true,
	})
	for object := range objectCh {
		if object.Err != nil {
			return nil, fmt.Errorf("failed to list term sheets: %w", object.Err)
		}
		if strings.HasSuffix(object.Key, ".json") {
			ids = append(ids, strings.TrimSuffix(path.Base(object.Key), ".json"))
		}
	}
	return ids, nil
}

// PutMetadata writes the group metadata JSON.
func (a *Archive) PutMetadata(ctx context.Context, tradeGroup string, meta GroupMetadata) error {
	objectName := path.Join("groups", tradeGroup, "metadata.json")

	data, err := json.MarshalIndent(meta, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal metadata: %w", err)
	}

	_, err = a.minioClient.PutObject(ctx, a.bucket, objectName, bytes.NewReader(data), int64(len(data)), minio.PutObjectOptions{
		ContentType: "application/json",
	})
	if err != nil {
		return fmt.Errorf("failed to put metadata: %w", err)
	}
	return nil
}

// GetMetadata reads the group metadata.
func (a *Archive) GetMetadata(ctx context.Context, tradeGroup string) (*GroupMetadata, error) {
	objectName := path.Join("groups", tradeGroup, "metadata.json")

	object, err := a.minioClient.GetObject(ctx, a.bucket, objectName, minio.GetObjectOptions{})
	if err != nil {
		return nil, fmt.Errorf("failed to get metadata: %w", err)
	}
	defer object.Close()

	data, err := io.ReadAll(object)
	if err != nil {
		return nil, fmt.Errorf("failed to read metadata: %w", err)
	}

	var meta GroupMetadata
	if err := json.Unmarshal(data, &meta); err != nil {
		return nil, fmt.Errorf("failed to unmarshal metadata: %w", err)
	}
	return &meta, nil
}

// PutCompletionLog uploads a local completion side log so a run's LLM round
// trips can be shared between machines.
func (a *Archive) PutCompletionLog(ctx context.Context, localPath string) error {
	file, err := os.Open(localPath)
	if err != nil {
		return fmt.Errorf("failed to open completion log: %w", err)
	}
	defer file.Close()

	info, err := file.Stat()
	if err != nil {
		return fmt.Errorf("failed to stat completion log: %w", err)
	}

	objectName := path.Join("completions", path.Base(localPath))
	_, err = a.minioClient.PutObject(ctx, a.bucket, objectName, file, info.Size(), minio.PutObjectOptions{
		ContentType: "text/csv",
	})
	if err != nil {
		return fmt.Errorf("failed to put completion log: %w", err)
	}
	return nil
}

// Bucket returns the bucket name.
func (a *Archive) Bucket() string {
	return a.bucket
}
