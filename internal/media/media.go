// Package media tells clients how to render an attachment from its stored
// filename alone.
package media

import (
	"path/filepath"
	"strings"
)

type Kind string

const (
	Image Kind = "image"
	Video Kind = "video"
	Audio Kind = "audio"
	Other Kind = "other"
)

// Suffixes are matched case-sensitively, as stored.
var suffixes = []struct {
	suffix string
	kind   Kind
}{
	{".jpg", Image},
	{".jpeg", Image},
	{".png", Image},
	{".gif", Image},
	{".webp", Image},
	{".mp4", Video},
	{".webm", Video},
	{".mp3", Audio},
}

func Classify(filename string) Kind {
	for _, s := range suffixes {
		if strings.HasSuffix(filename, s.suffix) {
			return s.kind
		}
	}
	return Other
}

var contentTypes = map[string]string{
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".png":  "image/png",
	".gif":  "image/gif",
	".webp": "image/webp",
	".mp4":  "video/mp4",
	".webm": "video/webm",
	".mp3":  "audio/mpeg",
	".wav":  "audio/wav",
	".pdf":  "application/pdf",
}

// ContentType is the MIME type attachments are stored with.
func ContentType(filename string) string {
	ext := strings.ToLower(filepath.Ext(filename))
	if ct, ok := contentTypes[ext]; ok {
		return ct
	}
	return "application/octet-stream"
}
