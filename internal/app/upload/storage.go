// Package upload persists post attachments and hands the post service the
// final stored filename. The name is all a post keeps of its file.
package upload

import (
	"context"
	"errors"
	"fmt"
	"mime/multipart"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

var ErrTooLarge = errors.New("file too large")

type Storage interface {
	// Save stores the uploaded file under a fresh unique name and returns it.
	Save(ctx context.Context, file *multipart.FileHeader) (string, error)
	Delete(ctx context.Context, name string) error
	// URL is where clients fetch a stored file from.
	URL(name string) string
	Ping(ctx context.Context) error
}

// StoredName is a fresh "<uuid>.<ext>" name for an uploaded file. The
// extension is kept as uploaded so media classification still works;
// anything that is not plain alphanumerics becomes "tmp".
func StoredName(original string) string {
	return fmt.Sprintf("%s.%s", uuid.NewString(), extension(original))
}

func extension(original string) string {
	base := filepath.Base(strings.ReplaceAll(original, "\\", "/"))
	i := strings.LastIndex(base, ".")
	if i < 0 || i == len(base)-1 {
		return "tmp"
	}
	ext := base[i+1:]
	for _, r := range ext {
		if !(r >= 'a' && r <= 'z' || r >= 'A' && r <= 'Z' || r >= '0' && r <= '9') {
			return "tmp"
		}
	}
	return ext
}

func checkSize(file *multipart.FileHeader, maxSize int64) error {
	if maxSize > 0 && file.Size > maxSize {
		return fmt.Errorf("%w: %d bytes exceeds the limit of %d", ErrTooLarge, file.Size, maxSize)
	}
	return nil
}
