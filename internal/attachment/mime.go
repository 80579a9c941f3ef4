// Package attachment resolves the content type of relayed files.
package attachment

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"path"
	"strings"
)

// Generic is the content type used when nothing better is known.
const Generic = "application/octet-stream"

const sniffLen = 512

// MediaType is the coarse class of a file.
type MediaType string

const (
	MediaTypeImage MediaType = "image"
	MediaTypeAudio MediaType = "audio"
	MediaTypeVideo MediaType = "video"
	MediaTypeFile  MediaType = "file"
)

// Classify picks the media type from the declared MIME, falling back to the file extension.
func Classify(name, declared string) MediaType {
	for _, candidate := range []string{NormalizeMime(declared), MimeFromName(name)} {
		switch {
		case strings.HasPrefix(candidate, "image/"):
			return MediaTypeImage
		case strings.HasPrefix(candidate, "audio/"):
			return MediaTypeAudio
		case strings.HasPrefix(candidate, "video/"):
			return MediaTypeVideo
		}
	}
	return MediaTypeFile
}

// NormalizeMime normalizes MIME to lowercase token form.
func NormalizeMime(raw string) string {
	value := strings.ToLower(strings.TrimSpace(raw))
	if value == "" {
		return ""
	}
	if idx := strings.Index(value, ";"); idx >= 0 {
		value = strings.TrimSpace(value[:idx])
	}
	return value
}

// MimeFromName guesses the MIME type from the file extension.
func MimeFromName(name string) string {
	ext := path.Ext(strings.TrimSpace(name))
	if ext == "" {
		return ""
	}
	return NormalizeMime(mime.TypeByExtension(strings.ToLower(ext)))
}

func isGeneric(value string) bool {
	return value == "" || value == Generic
}

// ResolveMime merges the declared MIME with the one observed on the wire.
// Images prefer any image/* value; everything else keeps a specific declared value.
func ResolveMime(mediaType MediaType, declared, observed string) string {
	source := NormalizeMime(declared)
	seen := NormalizeMime(observed)

	if mediaType == MediaTypeImage {
		if strings.HasPrefix(source, "image/") {
			return source
		}
		if strings.HasPrefix(seen, "image/") {
			return seen
		}
	}
	if !isGeneric(source) {
		return source
	}
	if !isGeneric(seen) {
		return seen
	}
	return Generic
}

// Resolve returns the content type for a named file. The extension is the last resort.
func Resolve(name, declared, observed string) string {
	resolved := ResolveMime(Classify(name, declared), declared, observed)
	if resolved == Generic {
		if guessed := MimeFromName(name); guessed != "" {
			return guessed
		}
	}
	return resolved
}

// PrepareReaderAndMime reads a small prefix for MIME sniffing and replays it.
func PrepareReaderAndMime(reader io.Reader, name, declared string) (io.Reader, string, error) {
	if reader == nil {
		return nil, "", errors.New("reader is required")
	}
	header := make([]byte, sniffLen)
	n, err := io.ReadFull(reader, header)
	if err != nil && !errors.Is(err, io.EOF) && !errors.Is(err, io.ErrUnexpectedEOF) {
		return nil, "", fmt.Errorf("read mime sniff bytes: %w", err)
	}
	header = header[:n]
	sniffed := ""
	if n > 0 {
		sniffed = http.DetectContentType(header)
	}
	return io.MultiReader(bytes.NewReader(header), reader), Resolve(name, declared, sniffed), nil
}
