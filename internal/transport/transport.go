// Package transport moves snapshots to and from remote stores: Google Drive,
// a GitHub repository and a B2 bucket.
//
// Credentials are passed to every call; no transport keeps tokens between
// calls. Failures are reported as *model.TransportError with a generic
// message and the cause available through errors.Unwrap.
package transport

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/evalgen/evalgen/internal/backup"
	"github.com/evalgen/evalgen/internal/model"
)

// ErrMissingCredentials is the cause reported when a call lacks the
// credentials its target needs.
var ErrMissingCredentials = errors.New("missing credentials")

// Credentials authorise one transport call.
type Credentials struct {
	// Token is an OAuth access token for Drive or a personal access token for GitHub.
	Token string
	// KeyID and Key are a B2 application key pair.
	KeyID string
	Key   string
}

// Entry describes a remote snapshot.
type Entry struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	CreatedTime time.Time `json:"createdTime"`
}

// Transport stores and fetches snapshots.
type Transport interface {
	// Name identifies the target in errors and logs.
	Name() string
	// Upload stores the snapshot and returns a locator for it.
	Upload(ctx context.Context, creds Credentials, data model.BackupData) (string, error)
	// List returns the stored snapshots, newest first.
	List(ctx context.Context, creds Credentials) ([]Entry, error)
	// Download fetches and decodes the snapshot with the given id.
	Download(ctx context.Context, creds Credentials, id string) (model.BackupData, error)
}

func fail(target, op string, err error) error {
	return &model.TransportError{Target: target, Op: op, Err: err}
}

// decode parses a downloaded snapshot. Nothing is returned unless the whole
// body decodes.
func decode(target string, raw []byte) (model.BackupData, error) {
	data, err := backup.Unmarshal(raw)
	if err != nil {
		return model.BackupData{}, fail(target, "download", fmt.Errorf("decode snapshot: %w", err))
	}
	return data, nil
}

// sortNewestFirst orders entries by creation time, then by name, both descending.
func sortNewestFirst(entries []Entry) {
	sort.SliceStable(entries, func(i, j int) bool {
		a, b := entries[i], entries[j]
		if !a.CreatedTime.Equal(b.CreatedTime) {
			return a.CreatedTime.After(b.CreatedTime)
		}
		return a.Name > b.Name
	})
}
