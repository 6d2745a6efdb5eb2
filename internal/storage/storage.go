// Package storage keeps uploaded documents and the text derived from them.
package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"

	"github.com/google/uuid"
)

// ErrNotFound is returned by Get when no object exists under the key.
var ErrNotFound = errors.New("object not found")

// Store is a flat key/value object store. Keys use forward slashes.
type Store interface {
	// Put writes the object and returns where it can be reached (a path or a public URL).
	Put(ctx context.Context, key string, content io.Reader) (string, error)
	Get(ctx context.Context, key string) (io.ReadCloser, error)
}

// OriginalKey is where an uploaded document is kept: <quizId>/<position>_<filename>.
func OriginalKey(quizID uuid.UUID, position int, filename string) string {
	return fmt.Sprintf("%s/%d_%s", quizID, position, cleanName(filename))
}

// DerivedKey is where the resolved and normalized text of a document is kept.
func DerivedKey(quizID uuid.UUID, position int, filename string) string {
	name := cleanName(filename)
	base := strings.TrimSuffix(name, path.Ext(name))
	return fmt.Sprintf("%s/derived/%d_%s.txt", quizID, position, base)
}

func cleanName(filename string) string {
	name := path.Base(strings.ReplaceAll(filename, "\\", "/"))
	if name == "." || name == "/" || name == ".." {
		return "document"
	}
	return name
}
