package upload

import (
	"context"
	"fmt"
	"io"
	"mime/multipart"
	"os"
	"path/filepath"

	"go.uber.org/zap"
)

type DiskStorage struct {
	dir       string
	urlPrefix string
	maxSize   int64
	logger    *zap.Logger
}

func NewDiskStorage(dir, urlPrefix string, maxSize int64, logger *zap.Logger) (*DiskStorage, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create upload directory: %w", err)
	}
	logger.Info("Storing uploads on disk", zap.String("dir", dir))
	return &DiskStorage{dir: dir, urlPrefix: urlPrefix, maxSize: maxSize, logger: logger}, nil
}

func (d *DiskStorage) Save(ctx context.Context, file *multipart.FileHeader) (string, error) {
	if err := checkSize(file, d.maxSize); err != nil {
		return "", err
	}

	src, err := file.Open()
	if err != nil {
		return "", fmt.Errorf("failed to open file: %w", err)
	}
	defer src.Close()

	name := StoredName(file.Filename)
	path := filepath.Join(d.dir, name)
	dst, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return "", fmt.Errorf("failed to create file: %w", err)
	}

	if _, err := io.Copy(dst, src); err != nil {
		dst.Close()
		os.Remove(path)
		return "", fmt.Errorf("failed to write file: %w", err)
	}
	if err := dst.Close(); err != nil {
		os.Remove(path)
		return "", fmt.Errorf("failed to close file: %w", err)
	}

	d.logger.Info("File stored",
		zap.String("filename", file.Filename),
		zap.String("stored_as", name),
		zap.Int64("size", file.Size),
	)
	return name, nil
}

func (d *DiskStorage) Delete(_ context.Context, name string) error {
	if err := os.Remove(filepath.Join(d.dir, filepath.Base(name))); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to delete file: %w", err)
	}
	return nil
}

func (d *DiskStorage) URL(name string) string {
	return d.urlPrefix + "/" + name
}

func (d *DiskStorage) Ping(context.Context) error {
	info, err := os.Stat(d.dir)
	if err != nil {
		return err
	}
	if !info.IsDir() {
		return fmt.Errorf("%s is not a directory", d.dir)
	}
	return nil
}

func (d *DiskStorage) Dir() string {
	return d.dir
}
