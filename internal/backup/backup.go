// Package backup encodes, checks and restores full snapshots of the store.
package backup

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/evalgen/evalgen/internal/model"
)

// ErrAborted is returned by Restore when the confirmation is declined.
var ErrAborted = errors.New("restore aborted")

// requiredKeys must be present and non-null at the top level of a snapshot.
var requiredKeys = []string{"evaluations", "categories"}

// Source produces snapshots.
type Source interface {
	ExportFullBackup(ctx context.Context) (model.BackupData, error)
}

// Restorer replaces all stored data with a snapshot.
type Restorer interface {
	RestoreFromBackup(ctx context.Context, data model.BackupData) error
}

// Confirm is asked before a snapshot overwrites the store. Returning false
// aborts the restore.
type Confirm func(data model.BackupData) bool

// Encode writes the snapshot as indented JSON.
func Encode(w io.Writer, data model.BackupData) error {
	b, err := Marshal(data)
	if err != nil {
		return err
	}
	_, err = w.Write(b)
	return err
}

// Marshal returns the snapshot as indented JSON with a trailing newline.
func Marshal(data model.BackupData) ([]byte, error) {
	if data.Evaluations == nil {
		data.Evaluations = []model.Evaluation{}
	}
	if data.Categories == nil {
		data.Categories = []model.Category{}
	}
	b, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshal backup: %w", err)
	}
	return append(b, '\n'), nil
}

// Decode reads a snapshot and checks its shape. Any problem is reported as
// a *model.ImportFormatError.
func Decode(r io.Reader) (model.BackupData, error) {
	raw, err := io.ReadAll(r)
	if err != nil {
		return model.BackupData{}, &model.ImportFormatError{Err: err}
	}
	return Unmarshal(raw)
}

// Unmarshal parses a snapshot from memory. See Decode.
func Unmarshal(raw []byte) (model.BackupData, error) {
	var data model.BackupData
	var top map[string]json.RawMessage
	if err := json.Unmarshal(raw, &top); err != nil {
		return data, &model.ImportFormatError{Err: err}
	}
	var missing []string
	for _, k := range requiredKeys {
		if v, ok := top[k]; !ok || bytes.Equal(bytes.TrimSpace(v), []byte("null")) {
			missing = append(missing, k)
		}
	}
	if len(missing) > 0 {
		return data, &model.ImportFormatError{Missing: missing}
	}
	if err := json.Unmarshal(raw, &data); err != nil {
		return data, &model.ImportFormatError{Err: err}
	}
	return data, nil
}

// Restore asks confirm and then hands the snapshot to dst. A nil confirm
// restores without asking.
func Restore(ctx context.Context, dst Restorer, data model.BackupData, confirm Confirm) error {
	if data.Evaluations == nil || data.Categories == nil {
		var missing []string
		if data.Evaluations == nil {
			missing = append(missing, "evaluations")
		}
		if data.Categories == nil {
			missing = append(missing, "categories")
		}
		return &model.ImportFormatError{Missing: missing}
	}
	if confirm != nil && !confirm(data) {
		return ErrAborted
	}
	return dst.RestoreFromBackup(ctx, data)
}

// RestoreReader decodes a snapshot from r and restores it.
func RestoreReader(ctx context.Context, dst Restorer, r io.Reader, confirm Confirm) error {
	data, err := Decode(r)
	if err != nil {
		return err
	}
	return Restore(ctx, dst, data, confirm)
}

// WriteFile exports src into dir under the dated snapshot name and returns
// the path written.
func WriteFile(ctx context.Context, src Source, dir string) (string, error) {
	data, err := src.ExportFullBackup(ctx)
	if err != nil {
		return "", err
	}
	b, err := Marshal(data)
	if err != nil {
		return "", err
	}
	path := filepath.Join(dir, model.BackupFilename(data.Exported()))
	if err := os.WriteFile(path, b, 0o644); err != nil {
		return "", fmt.Errorf("write backup: %w", err)
	}
	slog.Info("backup written", "path", path,
		"evaluations", len(data.Evaluations), "categories", len(data.Categories))
	return path, nil
}

// ReadFile decodes the snapshot stored at path.
func ReadFile(path string) (model.BackupData, error) {
	f, err := os.Open(path)
	if err != nil {
		return model.BackupData{}, fmt.Errorf("open backup: %w", err)
	}
	defer f.Close()
	return Decode(f)
}
