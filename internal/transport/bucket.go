package transport

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/kurin/blazer/b2"

	"github.com/evalgen/evalgen/internal/backup"
	"github.com/evalgen/evalgen/internal/model"
)

const (
	bucketTarget = "bucket"
	bucketPrefix = "evalgen_backup_"
)

// Bucket keeps snapshots as objects in a Backblaze B2 bucket.
type Bucket struct {
	BucketName string
	// Prefix is prepended to object keys, for example "evalgen/".
	Prefix string
}

func (b *Bucket) Name() string { return bucketTarget }

func (b *Bucket) open(ctx context.Context, creds Credentials) (*b2.Bucket, error) {
	if creds.KeyID == "" || creds.Key == "" {
		return nil, ErrMissingCredentials
	}
	client, err := b2.NewClient(ctx, creds.KeyID, creds.Key)
	if err != nil {
		return nil, fmt.Errorf("create b2 client: %w", err)
	}
	bucket, err := client.Bucket(ctx, b.BucketName)
	if err != nil {
		return nil, fmt.Errorf("get bucket: %w", err)
	}
	return bucket, nil
}

func (b *Bucket) key(data model.BackupData) string {
	return b.Prefix + model.BackupFilename(data.Exported())
}

// Upload writes the snapshot object and returns its download URL.
func (b *Bucket) Upload(ctx context.Context, creds Credentials, data model.BackupData) (string, error) {
	bucket, err := b.open(ctx, creds)
	if err != nil {
		return "", fail(bucketTarget, "upload", err)
	}
	body, err := backup.Marshal(data)
	if err != nil {
		return "", fail(bucketTarget, "upload", err)
	}
	key := b.key(data)
	w := bucket.Object(key).NewWriter(ctx).WithAttrs(&b2.Attrs{ContentType: "application/json"})
	if _, err := io.Copy(w, bytes.NewReader(body)); err != nil {
		w.Close()
		return "", fail(bucketTarget, "upload", fmt.Errorf("write object: %w", err))
	}
	if err := w.Close(); err != nil {
		return "", fail(bucketTarget, "upload", fmt.Errorf("close writer: %w", err))
	}
	slog.Info("snapshot uploaded", "target", bucketTarget, "bucket", b.BucketName, "key", key)
	return bucket.Object(key).URL(), nil
}

// List returns the snapshot objects, newest first.
func (b *Bucket) List(ctx context.Context, creds Credentials) ([]Entry, error) {
	bucket, err := b.open(ctx, creds)
	if err != nil {
		return nil, fail(bucketTarget, "list", err)
	}
	entries := []Entry{}
	iter := bucket.List(ctx, b2.ListPrefix(b.Prefix+bucketPrefix))
	for iter.Next() {
		obj := iter.Object()
		attrs, err := obj.Attrs(ctx)
		if err != nil {
			return nil, fail(bucketTarget, "list", err)
		}
		if !strings.HasSuffix(obj.Name(), ".json") {
			continue
		}
		entries = append(entries, Entry{
			ID:          obj.Name(),
			Name:        strings.TrimPrefix(obj.Name(), b.Prefix),
			CreatedTime: attrs.UploadTimestamp,
		})
	}
	if err := iter.Err(); err != nil {
		return nil, fail(bucketTarget, "list", err)
	}
	sortNewestFirst(entries)
	return entries, nil
}

// Download reads the object with the given key.
func (b *Bucket) Download(ctx context.Context, creds Credentials, id string) (model.BackupData, error) {
	bucket, err := b.open(ctx, creds)
	if err != nil {
		return model.BackupData{}, fail(bucketTarget, "download", err)
	}
	r := bucket.Object(id).NewReader(ctx)
	defer r.Close()
	raw, err := io.ReadAll(r)
	if err != nil {
		return model.BackupData{}, fail(bucketTarget, "download", err)
	}
	return decode(bucketTarget, raw)
}
