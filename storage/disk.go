// Package storage 存放上傳的商品圖片，支援本機磁碟與S3相容儲存。
package storage

import (
	"context"
	"fmt"
	"io"
)

type Disk interface {
	// Put 寫入檔案，已存在則覆蓋
	Put(ctx context.Context, path string, r io.Reader, contentType string) error
	Delete(ctx context.Context, path string) error
	Exists(ctx context.Context, path string) bool
	// URL 回傳檔案的公開網址
	URL(path string) string
}

type Config struct {
	Disk       string
	LocalRoot  string
	LocalURL   string
	S3Bucket   string
	S3Region   string
	S3Key      string
	S3Secret   string
	S3Endpoint string
	S3URL      string
}

func New(ctx context.Context, config Config) (Disk, error) {
	switch config.Disk {
	case "", "local":
		return NewLocalDisk(config.LocalRoot, config.LocalURL), nil
	case "s3":
		return NewS3Disk(ctx, config)
	default:
		return nil, fmt.Errorf("storage: unsupported disk %q", config.Disk)
	}
}
