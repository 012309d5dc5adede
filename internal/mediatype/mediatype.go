// Package mediatype determines the media type of a file.
//
// Resolution order: the system MIME registry by extension, then magic-number
// detection over the file header, then the built-in extension table below,
// then application/octet-stream.
package mediatype

import (
	"fmt"
	"mime"
	"os"
	"regexp"
	"strings"

	"github.com/gabriel-vasile/mimetype"
)

// OctetStream is the fallback media type.
const OctetStream = "application/octet-stream"

var extensionPattern = regexp.MustCompile(`^.+[.]([^.]+)$`)

// Types maps lower-case extensions (with leading dot) to media types the
// system registry commonly lacks.
var Types = map[string]string{
	// Images
	".heic": "image/heic",
	".heif": "image/heif",
	".tif":  "image/tiff",
	".tiff": "image/tiff",
	".ico":  "image/x-icon",
	".webp": "image/webp",
	".avif": "image/avif",

	// Video
	".mkv":  "video/x-matroska",
	".avi":  "video/x-msvideo",
	".mov":  "video/quicktime",
	".wmv":  "video/x-ms-wmv",
	".flv":  "video/x-flv",
	".webm": "video/webm",
	".m4v":  "video/x-m4v",
	".mpeg": "video/mpeg",
	".mpg":  "video/mpeg",
	".3gp":  "video/3gpp",

	// Audio
	".flac": "audio/flac",
	".m4a":  "audio/mp4",
	".ogg":  "audio/ogg",
	".opus": "audio/opus",

	// Documents and archives
	".md":   "text/markdown",
	".yaml": "application/yaml",
	".yml":  "application/yaml",
	".7z":   "application/x-7z-compressed",
	".tgz":  "application/gzip",
	".rar":  "application/vnd.rar",
	".wpl":  "application/vnd.ms-wpl",
}

// Extension returns the lower-cased extension of name without the dot.
// Names without an extension, and dot-files such as ".profile", have none.
func Extension(name string) (string, bool) {
	if i := strings.LastIndexAny(name, `/\`); i >= 0 {
		name = name[i+1:]
	}
	m := extensionPattern.FindStringSubmatch(name)
	if m == nil {
		return "", false
	}
	return strings.ToLower(m[1]), true
}

// ByExtension resolves a media type from the file name alone.
func ByExtension(name string) (string, bool) {
	ext, ok := Extension(name)
	if !ok {
		return "", false
	}
	ext = "." + ext
	if t := mime.TypeByExtension(ext); t != "" {
		return essence(t), true
	}
	if t, ok := Types[ext]; ok {
		return t, true
	}
	return "", false
}

// Probe determines the media type of the file at path. An error is returned
// only when the name is inconclusive and the content cannot be read.
func Probe(path string) (string, error) {
	ext, hasExt := Extension(path)
	if hasExt {
		if t := mime.TypeByExtension("." + ext); t != "" {
			return essence(t), nil
		}
	}

	sniffed, err := sniff(path)
	if err != nil {
		return "", err
	}
	if sniffed != OctetStream {
		return sniffed, nil
	}

	if hasExt {
		if t, ok := Types["."+ext]; ok {
			return t, nil
		}
	}
	return OctetStream, nil
}

// sniff detects the media type from the file's leading bytes. Empty files
// carry no signature and are reported as OctetStream.
func sniff(path string) (string, error) {
	info, err := os.Stat(path)
	if err != nil {
		return "", fmt.Errorf("stat for media type probe: %w", err)
	}
	if info.Size() == 0 {
		return OctetStream, nil
	}
	mt, err := mimetype.DetectFile(path)
	if err != nil {
		return "", fmt.Errorf("read for media type probe: %w", err)
	}
	return essence(mt.String()), nil
}

// essence drops media type parameters such as charset.
func essence(t string) string {
	t, _, _ = strings.Cut(t, ";")
	return strings.TrimSpace(t)
}
