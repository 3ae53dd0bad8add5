// Package blob stores uploaded files and returns their public URLs.
package blob

import (
	"context"
	"errors"
	"fmt"
	"regexp"

	"github.com/google/uuid"
)

// Store puts and removes objects by key.
type Store interface {
	// Put stores data under key and returns its public URL.
	Put(ctx context.Context, key, contentType string, data []byte) (string, error)
	Delete(ctx context.Context, key string) error
	// Key returns the key of an object from its public URL. ok is false
	// for URLs this store did not hand out.
	Key(url string) (key string, ok bool)
}

// DefaultFolder is used when an upload names no folder.
const DefaultFolder = "listings"

var ErrInvalidFolder = errors.New("folder may only contain a-z, 0-9, '_' and '-'")

var folderPattern = regexp.MustCompile(`^[a-z0-9_-]+$`)

// ValidFolder checks an upload folder name. The empty name is valid and
// means DefaultFolder.
func ValidFolder(folder string) error {
	if folder != "" && !folderPattern.MatchString(folder) {
		return ErrInvalidFolder
	}
	return nil
}

// ObjectKey returns a fresh key of the form <folder>/<uuid><ext>.
func ObjectKey(folder, ext string) (string, error) {
	if err := ValidFolder(folder); err != nil {
		return "", err
	}
	if folder == "" {
		folder = DefaultFolder
	}
	return fmt.Sprintf("%s/%s%s", folder, uuid.NewString(), ext), nil
}
