package storage

import (
	"context"
	"io"
	"testing"

	"github.com/netsync/apiserver/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryStorage(t *testing.T) {
	ctx := context.Background()
	backend := NewMemoryStorage("mailbox")
	s := NewStorage(backend)

	require.NoError(t, s.EnsureBucket(ctx))
	require.NoError(t, s.PutBytes(ctx, "mailbox/b@x.com/02.eml", []byte("second"), "message/rfc822"))
	require.NoError(t, s.PutBytes(ctx, "mailbox/a@x.com/01.eml", []byte("first"), "message/rfc822"))
	require.NoError(t, s.PutBytes(ctx, "mailbox/b@x.com/01.eml", []byte("first"), "message/rfc822"))

	keys, err := s.List(ctx, "mailbox/b@x.com/")
	require.NoError(t, err)
	assert.Equal(t, []string{"mailbox/b@x.com/01.eml", "mailbox/b@x.com/02.eml"}, keys)

	rc, err := s.Get(ctx, "mailbox/b@x.com/02.eml")
	require.NoError(t, err)
	data, err := io.ReadAll(rc)
	require.NoError(t, err)
	assert.Equal(t, "second", string(data))

	require.NoError(t, s.Delete(ctx, "mailbox/b@x.com/02.eml"))
	_, err = s.Get(ctx, "mailbox/b@x.com/02.eml")
	assert.ErrorIs(t, err, ErrObjectNotFound)
	assert.Equal(t, "mailbox", s.Bucket())
}

func TestNewMinioClient_Validation(t *testing.T) {
	_, err := NewMinioClient(configWith("", "k", "s", "b"))
	assert.ErrorContains(t, err, "endpoint")
	_, err = NewMinioClient(configWith("localhost:9000", "", "s", "b"))
	assert.ErrorContains(t, err, "access key")
	_, err = NewMinioClient(configWith("localhost:9000", "k", "s", ""))
	assert.ErrorContains(t, err, "bucket")
}

func configWith(endpoint, access, secret, bucket string) config.MinioConfig {
	return config.MinioConfig{Endpoint: endpoint, AccessKey: access, SecretKey: secret, Bucket: bucket}
}

func TestNewFromConfig_Memory(t *testing.T) {
	ctx := context.Background()
	s, err := NewFromConfig(ctx, config.Config{Storage: config.StorageConfig{Driver: config.StorageDriverMemory}})
	require.NoError(t, err)

	require.NoError(t, s.PutBytes(ctx, "mailbox/a@x.com/01.eml", []byte("hello"), "message/rfc822"))
	keys, err := s.List(ctx, "mailbox/")
	require.NoError(t, err)
	assert.Equal(t, []string{"mailbox/a@x.com/01.eml"}, keys)
	assert.Equal(t, "netsync-mailbox", s.Bucket())
}

func TestNewFromConfig_UnknownDriver(t *testing.T) {
	_, err := NewFromConfig(context.Background(), config.Config{Storage: config.StorageConfig{Driver: "ftp"}})
	assert.ErrorContains(t, err, "unsupported storage driver")
}
