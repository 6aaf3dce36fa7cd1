package storage

import (
	"bytes"
	"context"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jheapagent/pkg/config"
)

func TestLocalStorage_RoundTrip(t *testing.T) {
	s, err := NewLocalStorage(t.TempDir())
	require.NoError(t, err)
	ctx := context.Background()

	key := "reports/2026/heap-report.json"
	require.NoError(t, s.Upload(ctx, key, bytes.NewReader([]byte(`{"ok":true}`))))

	exists, err := s.Exists(ctx, key)
	require.NoError(t, err)
	assert.True(t, exists)

	rc, err := s.Download(ctx, key)
	require.NoError(t, err)
	data, err := io.ReadAll(rc)
	require.NoError(t, err)
	require.NoError(t, rc.Close())
	assert.Equal(t, `{"ok":true}`, string(data))

	require.NoError(t, s.Delete(ctx, key))
	exists, err = s.Exists(ctx, key)
	require.NoError(t, err)
	assert.False(t, exists)

	// Deleting again is not an error.
	assert.NoError(t, s.Delete(ctx, key))
}

func TestLocalStorage_UploadFile(t *testing.T) {
	dir := t.TempDir()
	s, err := NewLocalStorage(filepath.Join(dir, "store"))
	require.NoError(t, err)
	ctx := context.Background()

	src := filepath.Join(dir, "report.json")
	require.NoError(t, os.WriteFile(src, []byte("payload"), 0644))

	require.NoError(t, s.UploadFile(ctx, "report.json", src))

	rc, err := s.Download(ctx, "report.json")
	require.NoError(t, err)
	data, _ := io.ReadAll(rc)
	rc.Close()
	assert.Equal(t, "payload", string(data))

	assert.Error(t, s.UploadFile(ctx, "x", filepath.Join(dir, "missing")))
}

func TestLocalStorage_DownloadMissing(t *testing.T) {
	s, err := NewLocalStorage(t.TempDir())
	require.NoError(t, err)

	_, err = s.Download(context.Background(), "nope.json")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "object not found")
}

func TestLocalStorage_GetURL(t *testing.T) {
	dir := t.TempDir()
	s, err := NewLocalStorage(dir)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "a/b.json"), s.GetURL("a/b.json"))
}

func TestLocalStorage_CanceledContext(t *testing.T) {
	s, err := NewLocalStorage(t.TempDir())
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	assert.Error(t, s.Upload(ctx, "k", bytes.NewReader(nil)))
	_, err = s.Download(ctx, "k")
	assert.Error(t, err)
}

func TestNewStorage_Local(t *testing.T) {
	s, err := NewStorage(&config.StorageConfig{
		Type:      "local",
		LocalPath: t.TempDir(),
	})
	require.NoError(t, err)
	assert.IsType(t, &LocalStorage{}, s)
}

func TestNewStorage_COS(t *testing.T) {
	s, err := NewStorage(&config.StorageConfig{
		Type:      "cos",
		Bucket:    "reports-123456",
		Region:    "ap-guangzhou",
		SecretID:  "id",
		SecretKey: "key",
	})
	require.NoError(t, err)
	require.IsType(t, &COSStorage{}, s)

	assert.Equal(t,
		"https://reports-123456.cos.ap-guangzhou.myqcloud.com/r/x.json",
		s.GetURL("r/x.json"))
}

func TestValidateConfig(t *testing.T) {
	tests := []struct {
		name    string
		cfg     *config.StorageConfig
		wantErr string
	}{
		{"nil config", nil, "storage config is nil"},
		{"unsupported type", &config.StorageConfig{Type: "s3"}, "unsupported storage type"},
		{"local without path", &config.StorageConfig{Type: "local"}, "path is required"},
		{"cos without bucket", &config.StorageConfig{Type: "cos", Region: "r", SecretID: "a", SecretKey: "b"}, "bucket is required"},
		{"cos without region", &config.StorageConfig{Type: "cos", Bucket: "b", SecretID: "a", SecretKey: "b"}, "region is required"},
		{"cos without credentials", &config.StorageConfig{Type: "cos", Bucket: "b", Region: "r"}, "credentials are required"},
		{"valid local", &config.StorageConfig{Type: "local", LocalPath: "/tmp/x"}, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateConfig(tt.cfg)
			if tt.wantErr == "" {
				assert.NoError(t, err)
			} else {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
			}
		})
	}
}
