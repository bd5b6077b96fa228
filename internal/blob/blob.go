// Package blob defines the port for bill image storage. Backends return a
// retrievable URL plus a storage id; the id is what allows a later delete
// when the owning record goes away.
package blob

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"khata/internal/core"
)

// MaxUploadBytes is the upload size ceiling.
const MaxUploadBytes = 5 << 20 // 5 MB

var allowedExtensions = map[string]bool{
	".jpg":  true,
	".jpeg": true,
	".png":  true,
	".gif":  true,
	".webp": true,
	".pdf":  true,
}

var (
	ErrTooLarge  = fmt.Errorf("file exceeds %d byte limit", MaxUploadBytes)
	ErrBadFormat = errors.New("unsupported file format (allowed: jpg, jpeg, png, gif, webp, pdf)")
)

// Upload is one incoming bill file.
type Upload struct {
	Filename    string
	ContentType string
	Size        int64
	Content     io.Reader
}

// Store is the blob store port.
type Store interface {
	// Put stores the upload and returns the reference to embed in the
	// owning record.
	Put(ctx context.Context, u Upload) (core.BillImageRef, error)

	// Delete removes a stored blob. Deleting an already-absent blob is
	// not an error.
	Delete(ctx context.Context, storageID string) error
}

// ValidateUpload enforces the size ceiling and the allowed format set.
// Every backend calls it before storing anything.
func ValidateUpload(u Upload) error {
	if u.Size > MaxUploadBytes {
		return ErrTooLarge
	}
	if !allowedExtensions[Extension(u.Filename)] {
		return ErrBadFormat
	}
	return nil
}

// Extension returns the lower-cased filename extension including the dot.
func Extension(filename string) string {
	return strings.ToLower(filepath.Ext(filename))
}
