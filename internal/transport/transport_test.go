package transport

import (
	"context"
	"errors"
	"reflect"
	"testing"
	"time"

	"github.com/evalgen/evalgen/internal/model"
)

func testSnapshot() model.BackupData {
	return model.BackupData{
		Evaluations: []model.Evaluation{{
			ID: "e1", Title: "Controle", CategoryID: "1", CreatedAt: 1700000000000, TotalPoints: 20,
			Questions: []model.Question{{ID: "q1", SectionTitle: "A", Points: 2, Content: "c", Answer: "a"}},
		}},
		Categories: model.DefaultCategories(),
		ExportDate: time.Date(2024, 3, 9, 12, 0, 0, 0, time.UTC).UnixMilli(),
		Version:    model.BackupVersion,
	}
}

func TestSortNewestFirst(t *testing.T) {
	day := func(d int) time.Time { return time.Date(2024, 3, d, 0, 0, 0, 0, time.UTC) }
	entries := []Entry{
		{Name: "b", CreatedTime: day(1)},
		{Name: "a", CreatedTime: day(3)},
		{Name: "c", CreatedTime: day(1)},
		{Name: "d", CreatedTime: day(2)},
	}
	sortNewestFirst(entries)
	var names []string
	for _, e := range entries {
		names = append(names, e.Name)
	}
	if want := []string{"a", "d", "c", "b"}; !reflect.DeepEqual(names, want) {
		t.Errorf("order = %v, want %v", names, want)
	}
}

func TestMissingCredentials(t *testing.T) {
	ctx := context.Background()
	transports := []Transport{
		&Drive{},
		&GitHub{Repo: "o/r"},
		&Bucket{BucketName: "b"},
	}
	for _, tr := range transports {
		t.Run(tr.Name(), func(t *testing.T) {
			_, err := tr.List(ctx, Credentials{})
			var terr *model.TransportError
			if !errors.As(err, &terr) {
				t.Fatalf("expected TransportError, got %v", err)
			}
			if terr.Target != tr.Name() || terr.Op != "list" {
				t.Errorf("unexpected target/op: %s %s", terr.Target, terr.Op)
			}
			if !errors.Is(err, ErrMissingCredentials) {
				t.Errorf("cause should be ErrMissingCredentials, got %v", errors.Unwrap(err))
			}
			if err.Error() != tr.Name()+" list failed" {
				t.Errorf("message should stay generic: %q", err.Error())
			}
		})
	}
}

func TestGitHubBadRepo(t *testing.T) {
	g := &GitHub{Repo: "norepo"}
	_, err := g.Upload(context.Background(), Credentials{Token: "t"}, testSnapshot())
	var terr *model.TransportError
	if !errors.As(err, &terr) || terr.Op != "upload" {
		t.Fatalf("expected upload TransportError, got %v", err)
	}
}

func TestBucketKey(t *testing.T) {
	b := &Bucket{BucketName: "b", Prefix: "evalgen/"}
	if got := b.key(testSnapshot()); got != "evalgen/evalgen_backup_2024-03-09.json" {
		t.Errorf("key = %q", got)
	}
}
