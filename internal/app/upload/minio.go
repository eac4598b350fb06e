package upload

import (
	"context"
	"fmt"
	"mime/multipart"

	"threadboard/internal/media"
	"threadboard/internal/providers/minio"
)

type MinioStorage struct {
	provider *minio.MinioProvider
	maxSize  int64
}

func NewMinioStorage(provider *minio.MinioProvider, maxSize int64) *MinioStorage {
	return &MinioStorage{provider: provider, maxSize: maxSize}
}

func (m *MinioStorage) Save(ctx context.Context, file *multipart.FileHeader) (string, error) {
	if err := checkSize(file, m.maxSize); err != nil {
		return "", err
	}

	src, err := file.Open()
	if err != nil {
		return "", fmt.Errorf("failed to open file: %w", err)
	}
	defer src.Close()

	name := StoredName(file.Filename)
	if err := m.provider.PutObject(ctx, name, src, file.Size, media.ContentType(name)); err != nil {
		return "", err
	}
	return name, nil
}

func (m *MinioStorage) Delete(ctx context.Context, name string) error {
	return m.provider.DeleteFile(ctx, name)
}

func (m *MinioStorage) URL(name string) string {
	return m.provider.ObjectURL(name)
}

func (m *MinioStorage) Ping(ctx context.Context) error {
	return m.provider.Ping(ctx)
}
