// Copyright 2026 The switchAILocal Authors. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package archive uploads evaluation reports to S3-compatible object storage.
package archive

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"path"
	"strings"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	log "github.com/sirupsen/logrus"

	"github.com/traylinx/bhasharouter/internal/config"
)

// objectStore is the subset of the minio client used by Archiver.
type objectStore interface {
	BucketExists(ctx context.Context, bucket string) (bool, error)
	MakeBucket(ctx context.Context, bucket string, opts minio.MakeBucketOptions) error
	PutObject(ctx context.Context, bucket, object string, reader io.Reader, size int64, opts minio.PutObjectOptions) (minio.UploadInfo, error)
}

// Archiver writes compressed reports under a bucket prefix.
type Archiver struct {
	client objectStore
	bucket string
	prefix string
	codec  Codec
}

// New connects to the object store described by cfg.
//
// Parameters:
//   - cfg: Endpoint, bucket, credentials and compression
//
// Returns:
//   - *Archiver: The archiver, or nil when archiving is disabled
//   - error: An error if the configuration is invalid
func New(cfg config.ArchiveConfig) (*Archiver, error) {
	if !cfg.Enabled {
		return nil, nil
	}
	codec, err := ParseCodec(cfg.Compression)
	if err != nil {
		return nil, err
	}
	endpoint := strings.TrimSpace(cfg.Endpoint)
	endpoint = strings.TrimPrefix(strings.TrimPrefix(endpoint, "https://"), "http://")
	if endpoint == "" || cfg.Bucket == "" {
		return nil, fmt.Errorf("archive: endpoint and bucket are required")
	}
	client, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("archive: create object storage client: %w", err)
	}
	return newArchiver(client, cfg.Bucket, cfg.Prefix, codec), nil
}

func newArchiver(client objectStore, bucket, prefix string, codec Codec) *Archiver {
	return &Archiver{
		client: client,
		bucket: bucket,
		prefix: strings.Trim(prefix, "/"),
		codec:  codec,
	}
}

// EnsureBucket creates the bucket when it does not exist.
func (a *Archiver) EnsureBucket(ctx context.Context) error {
	exists, err := a.client.BucketExists(ctx, a.bucket)
	if err != nil {
		return fmt.Errorf("archive: check bucket: %w", err)
	}
	if exists {
		return nil
	}
	if err := a.client.MakeBucket(ctx, a.bucket, minio.MakeBucketOptions{}); err != nil {
		return fmt.Errorf("archive: create bucket: %w", err)
	}
	return nil
}

// ObjectKey returns the object key for a report file name.
func (a *Archiver) ObjectKey(name string) string {
	return path.Join(a.prefix, name+a.codec.Extension())
}

// Upload compresses payload and stores it as name. It returns the object key.
func (a *Archiver) Upload(ctx context.Context, name, contentType string, payload []byte) (string, error) {
	body, err := Compress(a.codec, payload)
	if err != nil {
		return "", err
	}
	key := a.ObjectKey(name)
	opts := minio.PutObjectOptions{
		ContentType:     contentType,
		ContentEncoding: a.codec.ContentEncoding(),
	}
	if _, err := a.client.PutObject(ctx, a.bucket, key, bytes.NewReader(body), int64(len(body)), opts); err != nil {
		return "", fmt.Errorf("archive: upload %s: %w", key, err)
	}
	log.WithFields(log.Fields{
		"bucket": a.bucket,
		"key":    key,
		"bytes":  len(body),
	}).Info("evaluation report archived")
	return key, nil
}
