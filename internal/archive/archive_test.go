// Copyright 2026 The switchAILocal Authors. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package archive

import (
	"bytes"
	"context"
	"errors"
	"io"
	"testing"

	"github.com/minio/minio-go/v7"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/traylinx/bhasharouter/internal/config"
)

type fakeObjectStore struct {
	exists  bool
	made    []string
	objects map[string][]byte
	opts    map[string]minio.PutObjectOptions
	putErr  error
}

func newFakeObjectStore() *fakeObjectStore {
	return &fakeObjectStore{objects: map[string][]byte{}, opts: map[string]minio.PutObjectOptions{}}
}

func (f *fakeObjectStore) BucketExists(ctx context.Context, bucket string) (bool, error) {
	return f.exists, nil
}

func (f *fakeObjectStore) MakeBucket(ctx context.Context, bucket string, opts minio.MakeBucketOptions) error {
	f.made = append(f.made, bucket)
	f.exists = true
	return nil
}

func (f *fakeObjectStore) PutObject(ctx context.Context, bucket, object string, reader io.Reader, size int64, opts minio.PutObjectOptions) (minio.UploadInfo, error) {
	if f.putErr != nil {
		return minio.UploadInfo{}, f.putErr
	}
	data, err := io.ReadAll(reader)
	if err != nil {
		return minio.UploadInfo{}, err
	}
	if int64(len(data)) != size {
		return minio.UploadInfo{}, errors.New("size mismatch")
	}
	f.objects[object] = data
	f.opts[object] = opts
	return minio.UploadInfo{Bucket: bucket, Key: object, Size: size}, nil
}

func TestCompressRoundTrip(t *testing.T) {
	payload := bytes.Repeat([]byte(`{"overall_accuracy":0.8,"language":"hinglish"}`), 50)
	for _, codec := range []Codec{CodecNone, CodecGzip, CodecZstd, CodecBrotli} {
		t.Run(string(codec), func(t *testing.T) {
			packed, err := Compress(codec, payload)
			require.NoError(t, err)
			if codec != CodecNone {
				assert.Less(t, len(packed), len(payload))
			}
			unpacked, err := Decompress(codec, packed)
			require.NoError(t, err)
			assert.Equal(t, payload, unpacked)
		})
	}

	_, err := Compress("lz4", payload)
	assert.Error(t, err)
}

func TestParseCodec(t *testing.T) {
	c, err := ParseCodec("")
	require.NoError(t, err)
	assert.Equal(t, CodecGzip, c)

	c, err = ParseCodec("brotli")
	require.NoError(t, err)
	assert.Equal(t, ".br", c.Extension())
	assert.Equal(t, "br", c.ContentEncoding())

	_, err = ParseCodec("snappy")
	assert.Error(t, err)
}

func TestArchiverUpload(t *testing.T) {
	store := newFakeObjectStore()
	a := newArchiver(store, "reports", "/bhasha/runs/", CodecZstd)

	require.NoError(t, a.EnsureBucket(context.Background()))
	require.NoError(t, a.EnsureBucket(context.Background()))
	assert.Equal(t, []string{"reports"}, store.made)

	key, err := a.Upload(context.Background(), "run-1.json", "application/json", []byte(`{"total":5}`))
	require.NoError(t, err)
	assert.Equal(t, "bhasha/runs/run-1.json.zst", key)
	assert.Equal(t, "zstd", store.opts[key].ContentEncoding)

	raw, err := Decompress(CodecZstd, store.objects[key])
	require.NoError(t, err)
	assert.JSONEq(t, `{"total":5}`, string(raw))

	store.putErr = errors.New("bucket is full")
	_, err = a.Upload(context.Background(), "run-2.json", "application/json", []byte(`{}`))
	assert.ErrorContains(t, err, "bucket is full")
}

func TestNewDisabledAndInvalid(t *testing.T) {
	a, err := New(config.ArchiveConfig{})
	require.NoError(t, err)
	assert.Nil(t, a)

	_, err = New(config.ArchiveConfig{Enabled: true, Bucket: "reports"})
	assert.Error(t, err)

	_, err = New(config.ArchiveConfig{Enabled: true, Endpoint: "s3.local:9000", Bucket: "r", Compression: "rar"})
	assert.Error(t, err)

	a, err = New(config.ArchiveConfig{Enabled: true, Endpoint: "http://s3.local:9000", Bucket: "r", Compression: "brotli"})
	require.NoError(t, err)
	assert.Equal(t, "r.json.br", a.ObjectKey("r.json"))
}
