// Package storage keeps uploaded images for the lifetime of one request.
package storage

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path"
	"strings"
	"unicode"

	"github.com/google/uuid"
	"golang.org/x/text/unicode/norm"
)

// ErrNotFound is returned by Open when key does not exist.
var ErrNotFound = errors.New("upload not found")

// Store saves uploads and hands back a key used to read and delete them.
type Store interface {
	Save(ctx context.Context, filename string, r io.Reader) (string, error)
	Open(ctx context.Context, key string) (io.ReadCloser, error)
	Delete(ctx context.Context, key string) error
}

// SecureFilename reduces a client supplied filename to a safe ASCII name
// without directory components. It may return an empty string.
func SecureFilename(filename string) string {
	filename = norm.NFKD.String(filename)
	filename = strings.NewReplacer("/", " ", "\\", " ").Replace(filename)

	var sb strings.Builder
	for _, field := range strings.Fields(filename) {
		if sb.Len() > 0 {
			sb.WriteByte('_')
		}
		for _, r := range field {
			if r < unicode.MaxASCII && (r == '.' || r == '_' || r == '-' ||
				unicode.IsLetter(r) || unicode.IsDigit(r)) {
				sb.WriteRune(r)
			}
		}
	}

	return strings.Trim(sb.String(), "._")
}

// uniqueName prefixes the sanitised filename with a UUID so concurrent
// uploads of the same file never collide.
func uniqueName(filename string) string {
	name := SecureFilename(filename)
	if name == "" {
		name = "upload"
	}
	return uuid.New().String() + "_" + name
}

// MimeType returns the image media type for filename's extension.
func MimeType(filename string) string {
	switch strings.ToLower(strings.TrimPrefix(path.Ext(filename), ".")) {
	case "png":
		return "image/png"
	case "gif":
		return "image/gif"
	case "webp":
		return "image/webp"
	default:
		return "image/jpeg"
	}
}

// EncodeToBase64 reads the upload stored under key and returns it base64 encoded.
func EncodeToBase64(ctx context.Context, store Store, key string) (string, error) {
	rc, err := store.Open(ctx, key)
	if err != nil {
		return "", err
	}
	defer func() { _ = rc.Close() }()

	data, err := io.ReadAll(rc)
	if err != nil {
		return "", fmt.Errorf("failed to read upload %s: %w", key, err)
	}
	return base64.StdEncoding.EncodeToString(data), nil
}

// EncodeFile reads a local file, outside of any store, and returns it base64 encoded.
func EncodeFile(path string) (string, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return "", fmt.Errorf("%w: %s", ErrNotFound, path)
	}
	if err != nil {
		return "", fmt.Errorf("failed to read %s: %w", path, err)
	}
	return base64.StdEncoding.EncodeToString(data), nil
}
