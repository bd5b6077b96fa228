// Package drive stores bill images in a Google Drive folder. Uploaded
// files are made link-readable so the returned URL renders in the browser
// table without further auth.
package drive

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"strings"

	"google.golang.org/api/drive/v3"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"

	"khata/internal/blob"
	"khata/internal/core"
	applog "khata/internal/log"
)

type Store struct {
	svc      *drive.Service
	folderID string
	logger   *slog.Logger
}

var _ blob.Store = (*Store)(nil)

// NewFromEnv builds a Drive client from service account credentials.
// Credentials come from GOOGLE_SERVICE_ACCOUNT_JSON,
// GOOGLE_SERVICE_ACCOUNT_FILE or GOOGLE_APPLICATION_CREDENTIALS.
func NewFromEnv(ctx context.Context, folderID string) (*Store, error) {
	if folderID == "" {
		return nil, errors.New("missing drive folder id")
	}

	opts := []option.ClientOption{option.WithScopes(drive.DriveFileScope)}

	serviceAccountJSON := strings.TrimSpace(os.Getenv("GOOGLE_SERVICE_ACCOUNT_JSON"))
	serviceAccountFile := strings.TrimSpace(os.Getenv("GOOGLE_SERVICE_ACCOUNT_FILE"))
	if serviceAccountFile == "" && serviceAccountJSON == "" {
		serviceAccountFile = strings.TrimSpace(os.Getenv("GOOGLE_APPLICATION_CREDENTIALS"))
	}
	switch {
	case serviceAccountJSON != "":
		opts = append(opts, option.WithCredentialsJSON([]byte(serviceAccountJSON)))
	case serviceAccountFile != "":
		opts = append(opts, option.WithCredentialsFile(serviceAccountFile))
	default:
		return nil, errors.New("missing Google credentials: set GOOGLE_SERVICE_ACCOUNT_JSON, GOOGLE_SERVICE_ACCOUNT_FILE or GOOGLE_APPLICATION_CREDENTIALS")
	}

	svc, err := drive.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("drive service: %w", err)
	}

	return &Store{
		svc:      svc,
		folderID: folderID,
		logger:   applog.For(applog.ComponentBlob),
	}, nil
}

func (s *Store) Put(ctx context.Context, u blob.Upload) (core.BillImageRef, error) {
	if err := blob.ValidateUpload(u); err != nil {
		return core.BillImageRef{}, err
	}

	meta := &drive.File{
		Name:    u.Filename,
		Parents: []string{s.folderID},
	}
	call := s.svc.Files.Create(meta).
		Media(u.Content, googleapi.ContentType(u.ContentType)).
		Fields("id", "webViewLink", "webContentLink").
		Context(ctx)
	created, err := call.Do()
	if err != nil {
		return core.BillImageRef{}, fmt.Errorf("upload to drive: %w", err)
	}

	// Without this the URL is only readable by the service account.
	perm := &drive.Permission{Type: "anyone", Role: "reader"}
	if _, err := s.svc.Permissions.Create(created.Id, perm).Context(ctx).Do(); err != nil {
		s.logger.WarnContext(ctx, "Failed to set link sharing on uploaded file",
			applog.FieldStorageID, created.Id, applog.FieldError, err)
	}

	url := created.WebContentLink
	if url == "" {
		url = created.WebViewLink
	}

	s.logger.InfoContext(ctx, "Blob stored in Drive",
		applog.FieldStorageID, created.Id, "name", u.Filename)

	return core.BillImageRef{URL: url, StorageID: created.Id}, nil
}

func (s *Store) Delete(ctx context.Context, storageID string) error {
	if storageID == "" {
		return errors.New("empty storage id")
	}
	if err := s.svc.Files.Delete(storageID).Context(ctx).Do(); err != nil {
		var apiErr *googleapi.Error
		if errors.As(err, &apiErr) && apiErr.Code == http.StatusNotFound {
			return nil
		}
		return fmt.Errorf("delete drive file %s: %w", storageID, err)
	}
	s.logger.InfoContext(ctx, "Blob deleted from Drive", applog.FieldStorageID, storageID)
	return nil
}
