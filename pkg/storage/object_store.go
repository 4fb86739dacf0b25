package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"strings"
	"time"
)

// ErrObjectNotFound is returned by Get when the key does not exist.
var ErrObjectNotFound = errors.New("object not found")

// ObjectStore provides access to object storage.
type ObjectStore interface {
	Put(ctx context.Context, key string, r io.Reader, size int64, contentType string) error
	Get(ctx context.Context, key string) (io.ReadCloser, error)
	Delete(ctx context.Context, key string) error
	// PublicURL returns the publicly resolvable location of key.
	PublicURL(key string) string
	// KeyFromURL reverses PublicURL; ok is false for URLs the store does not own.
	KeyFromURL(rawURL string) (key string, ok bool)
}

// ObjectKey builds the key an attachment binary is stored under:
// {caseID}/{unixMillis}-{fileName}.
func ObjectKey(caseID string, at time.Time, fileName string) string {
	return fmt.Sprintf("%s/%d-%s", caseID, at.UnixMilli(), fileName)
}

func escapeKey(key string) string {
	parts := strings.Split(key, "/")
	for i, p := range parts {
		parts[i] = url.PathEscape(p)
	}
	return strings.Join(parts, "/")
}

func unescapeKey(escaped string) (string, bool) {
	parts := strings.Split(escaped, "/")
	for i, p := range parts {
		v, err := url.PathUnescape(p)
		if err != nil {
			return "", false
		}
		parts[i] = v
	}
	key := strings.Join(parts, "/")
	return key, key != ""
}
