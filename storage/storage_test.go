package storage

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocalDisk(t *testing.T) {
	ctx := context.Background()
	root := t.TempDir()
	disk := NewLocalDisk(root, "/uploads/")

	require.NoError(t, disk.Put(ctx, "products/a.png", strings.NewReader("png"), "image/png"))
	assert.True(t, disk.Exists(ctx, "products/a.png"))
	assert.Equal(t, "/uploads/products/a.png", disk.URL("products/a.png"))

	data, err := os.ReadFile(filepath.Join(root, "products", "a.png"))
	require.NoError(t, err)
	assert.Equal(t, "png", string(data))

	require.NoError(t, disk.Delete(ctx, "products/a.png"))
	assert.False(t, disk.Exists(ctx, "products/a.png"))
	assert.NoError(t, disk.Delete(ctx, "products/a.png"))
}

func TestLocalDiskStaysInsideRoot(t *testing.T) {
	ctx := context.Background()
	root := t.TempDir()
	disk := NewLocalDisk(filepath.Join(root, "uploads"), "/uploads")

	require.NoError(t, disk.Put(ctx, "../escape.txt", strings.NewReader("x"), ""))
	_, err := os.Stat(filepath.Join(root, "escape.txt"))
	assert.True(t, os.IsNotExist(err))
	assert.True(t, disk.Exists(ctx, "escape.txt"))
}

func TestNew(t *testing.T) {
	disk, err := New(context.Background(), Config{Disk: "local", LocalRoot: t.TempDir(), LocalURL: "/uploads"})
	require.NoError(t, err)
	assert.IsType(t, &LocalDisk{}, disk)

	_, err = New(context.Background(), Config{Disk: "ftp"})
	assert.Error(t, err)

	_, err = New(context.Background(), Config{Disk: "s3"})
	assert.ErrorContains(t, err, "bucket")
}

func TestS3URL(t *testing.T) {
	disk, err := NewS3Disk(context.Background(), Config{
		S3Bucket:   "dental",
		S3Region:   "ap-northeast-1",
		S3Key:      "key",
		S3Secret:   "secret",
		S3Endpoint: "http://localhost:9000",
		S3URL:      "http://localhost:9000/dental/",
	})
	require.NoError(t, err)
	assert.Equal(t, "http://localhost:9000/dental/products/a.png", disk.URL("/products/a.png"))

	disk, err = NewS3Disk(context.Background(), Config{S3Bucket: "dental", S3Key: "k", S3Secret: "s"})
	require.NoError(t, err)
	assert.Equal(t, "https://dental.s3.us-east-1.amazonaws.com/a.png", disk.URL("a.png"))
}
