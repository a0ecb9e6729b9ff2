package transport

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"golang.org/x/oauth2"
	"google.golang.org/api/drive/v3"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"

	"github.com/evalgen/evalgen/internal/backup"
	"github.com/evalgen/evalgen/internal/model"
)

const (
	driveTarget   = "drive"
	driveQuery    = `name contains "evalgen_backup" and mimeType = "application/json" and trashed = false`
	driveMimeType = "application/json"
)

// Drive keeps snapshots as JSON files in the user's Google Drive.
type Drive struct {
	// FolderID places uploads in a folder. Empty means the drive root.
	FolderID string
	// Endpoint overrides the API base URL.
	Endpoint string
	// HTTPClient is the base client the OAuth transport wraps.
	HTTPClient *http.Client
}

func (d *Drive) Name() string { return driveTarget }

func (d *Drive) service(ctx context.Context, creds Credentials) (*drive.Service, error) {
	if creds.Token == "" {
		return nil, ErrMissingCredentials
	}
	if d.HTTPClient != nil {
		ctx = context.WithValue(ctx, oauth2.HTTPClient, d.HTTPClient)
	}
	ts := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: creds.Token, TokenType: "Bearer"})
	opts := []option.ClientOption{option.WithHTTPClient(oauth2.NewClient(ctx, ts))}
	if d.Endpoint != "" {
		opts = append(opts, option.WithEndpoint(d.Endpoint))
	}
	return drive.NewService(ctx, opts...)
}

// Upload creates a new file named after the snapshot's export date.
func (d *Drive) Upload(ctx context.Context, creds Credentials, data model.BackupData) (string, error) {
	srv, err := d.service(ctx, creds)
	if err != nil {
		return "", fail(driveTarget, "upload", err)
	}
	body, err := backup.Marshal(data)
	if err != nil {
		return "", fail(driveTarget, "upload", err)
	}
	meta := &drive.File{Name: model.BackupFilename(data.Exported()), MimeType: driveMimeType}
	if d.FolderID != "" {
		meta.Parents = []string{d.FolderID}
	}
	f, err := srv.Files.Create(meta).
		Media(bytes.NewReader(body), googleapi.ContentType(driveMimeType)).
		Fields("id", "name").
		Context(ctx).
		Do()
	if err != nil {
		return "", fail(driveTarget, "upload", err)
	}
	slog.Info("snapshot uploaded", "target", driveTarget, "id", f.Id, "name", f.Name)
	return f.Id, nil
}

// List returns snapshot files, newest first.
func (d *Drive) List(ctx context.Context, creds Credentials) ([]Entry, error) {
	srv, err := d.service(ctx, creds)
	if err != nil {
		return nil, fail(driveTarget, "list", err)
	}
	var entries []Entry
	err = srv.Files.List().
		Q(driveQuery).
		Fields("nextPageToken", "files(id,name,createdTime)").
		OrderBy("createdTime desc").
		Pages(ctx, func(page *drive.FileList) error {
			for _, f := range page.Files {
				created, err := time.Parse(time.RFC3339, f.CreatedTime)
				if err != nil {
					return fmt.Errorf("file %s: %w", f.Id, err)
				}
				entries = append(entries, Entry{ID: f.Id, Name: f.Name, CreatedTime: created})
			}
			return nil
		})
	if err != nil {
		return nil, fail(driveTarget, "list", err)
	}
	sortNewestFirst(entries)
	return entries, nil
}

// Download fetches the file content and decodes it in memory.
func (d *Drive) Download(ctx context.Context, creds Credentials, id string) (model.BackupData, error) {
	srv, err := d.service(ctx, creds)
	if err != nil {
		return model.BackupData{}, fail(driveTarget, "download", err)
	}
	resp, err := srv.Files.Get(id).Context(ctx).Download()
	if err != nil {
		return model.BackupData{}, fail(driveTarget, "download", err)
	}
	defer resp.Body.Close()
	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return model.BackupData{}, fail(driveTarget, "download", err)
	}
	return decode(driveTarget, raw)
}
