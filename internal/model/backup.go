package model

import "time"

// BackupVersion is written into every snapshot.
const BackupVersion = "1.0"

// BackupData is a full snapshot of the persisted state.
type BackupData struct {
	Evaluations []Evaluation `json:"evaluations"`
	Categories  []Category   `json:"categories"`
	ExportDate  int64        `json:"exportDate"`
	Version     string       `json:"version"`
}

// Exported returns ExportDate as a time.
func (b BackupData) Exported() time.Time {
	return time.UnixMilli(b.ExportDate)
}

// BackupFilename is the local and drive snapshot name for the given day.
func BackupFilename(t time.Time) string {
	return "evalgen_backup_" + t.UTC().Format(time.DateOnly) + ".json"
}

// RepositoryBackupFilename is the snapshot name used in repositories.
// Names sort lexicographically by date.
func RepositoryBackupFilename(t time.Time) string {
	return "evaluation_backup_" + t.UTC().Format(time.DateOnly) + ".json"
}
