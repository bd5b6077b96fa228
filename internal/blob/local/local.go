// Package local stores bill images on the local filesystem. The API
// server exposes the data directory at /uploads/, so the returned URL is
// publicBaseURL + /uploads/ + object name.
package local

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"khata/internal/blob"
	"khata/internal/core"
	applog "khata/internal/log"
)

type Store struct {
	dir     string
	baseURL string
	logger  *slog.Logger
}

var _ blob.Store = (*Store)(nil)

func NewStore(dir, publicBaseURL string) (*Store, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create upload directory: %w", err)
	}
	return &Store{
		dir:     dir,
		baseURL: strings.TrimRight(publicBaseURL, "/"),
		logger:  applog.For(applog.ComponentBlob),
	}, nil
}

// Dir returns the directory served at /uploads/.
func (s *Store) Dir() string { return s.dir }

func (s *Store) Put(ctx context.Context, u blob.Upload) (core.BillImageRef, error) {
	if err := blob.ValidateUpload(u); err != nil {
		return core.BillImageRef{}, err
	}

	objectName := uuid.NewString() + blob.Extension(u.Filename)
	path := filepath.Join(s.dir, objectName)

	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0644)
	if err != nil {
		return core.BillImageRef{}, fmt.Errorf("create blob file: %w", err)
	}

	// The declared size is checked above, but the stream is capped too in
	// case the two disagree.
	written, err := io.Copy(f, io.LimitReader(u.Content, blob.MaxUploadBytes+1))
	if closeErr := f.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		os.Remove(path)
		return core.BillImageRef{}, fmt.Errorf("write blob file: %w", err)
	}
	if written > blob.MaxUploadBytes {
		os.Remove(path)
		return core.BillImageRef{}, blob.ErrTooLarge
	}

	s.logger.InfoContext(ctx, "Blob stored",
		applog.FieldStorageID, objectName, "bytes", written)

	return core.BillImageRef{
		URL:       s.baseURL + "/uploads/" + objectName,
		StorageID: objectName,
	}, nil
}

func (s *Store) Delete(ctx context.Context, storageID string) error {
	if storageID == "" {
		return errors.New("empty storage id")
	}
	// Base strips any path components a corrupted id could smuggle in.
	path := filepath.Join(s.dir, filepath.Base(storageID))
	if err := os.Remove(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("remove blob %s: %w", storageID, err)
	}
	s.logger.InfoContext(ctx, "Blob deleted", applog.FieldStorageID, storageID)
	return nil
}
