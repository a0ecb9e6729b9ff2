package store

import (
	"context"
	"errors"
	"reflect"
	"testing"

	"github.com/evalgen/evalgen/internal/model"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := New(":memory:")
	if err != nil {
		t.Fatalf("newTestStore: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func testEvaluation(id, title string, createdAt int64) model.Evaluation {
	return model.Evaluation{
		ID:          id,
		Title:       title,
		CategoryID:  "2",
		CreatedAt:   createdAt,
		Comment:     "Sans calculatrice",
		TotalPoints: 20,
		Questions: []model.Question{
			{ID: id + "-q1", SectionTitle: "A", Points: 2, Content: "<p>x</p>", Answer: "<p>y</p>"},
			{ID: id + "-q2", SectionTitle: "B", Points: 3, Content: "z", Answer: "", StudentTemplate: "<p>__</p>"},
			{ID: id + "-q3", SectionTitle: "A", Points: 1, Content: "w", Answer: "v"},
		},
	}
}

func TestEvaluationCRUD(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	list, err := s.GetEvaluations(ctx)
	if err != nil {
		t.Fatalf("GetEvaluations: %v", err)
	}
	if len(list) != 0 {
		t.Fatalf("expected empty list, got %d", len(list))
	}

	e := testEvaluation("e1", "Controle", 1000)
	if err := s.SaveEvaluation(ctx, e); err != nil {
		t.Fatalf("SaveEvaluation: %v", err)
	}
	got, err := s.GetEvaluation(ctx, "e1")
	if err != nil {
		t.Fatalf("GetEvaluation: %v", err)
	}
	if !reflect.DeepEqual(got, e) {
		t.Errorf("round trip mismatch:\n got %+v\nwant %+v", got, e)
	}

	// Update replaces questions and keeps their new order.
	e.Title = "Controle 2"
	e.Questions = []model.Question{e.Questions[2], e.Questions[0]}
	if err := s.SaveEvaluation(ctx, e); err != nil {
		t.Fatalf("SaveEvaluation update: %v", err)
	}
	got, err = s.GetEvaluation(ctx, "e1")
	if err != nil {
		t.Fatalf("GetEvaluation: %v", err)
	}
	if got.Title != "Controle 2" || len(got.Questions) != 2 || got.Questions[0].ID != "e1-q3" {
		t.Errorf("update not applied: %+v", got)
	}

	// Not found.
	if _, err := s.GetEvaluation(ctx, "missing"); !errors.Is(err, model.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}

	if err := s.DeleteEvaluation(ctx, "e1"); err != nil {
		t.Fatalf("DeleteEvaluation: %v", err)
	}
	if _, err := s.GetEvaluation(ctx, "e1"); !errors.Is(err, model.ErrNotFound) {
		t.Errorf("expected ErrNotFound after delete, got %v", err)
	}
	if err := s.DeleteEvaluation(ctx, "e1"); err != nil {
		t.Errorf("deleting twice should not fail: %v", err)
	}
}

func TestGetEvaluationsNewestFirst(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	for _, e := range []model.Evaluation{
		testEvaluation("old", "Old", 1000),
		testEvaluation("new", "New", 3000),
		testEvaluation("mid", "Mid", 2000),
	} {
		if err := s.SaveEvaluation(ctx, e); err != nil {
			t.Fatalf("SaveEvaluation: %v", err)
		}
	}
	list, err := s.GetEvaluations(ctx)
	if err != nil {
		t.Fatalf("GetEvaluations: %v", err)
	}
	var ids []string
	for _, e := range list {
		ids = append(ids, e.ID)
		if len(e.Questions) != 3 {
			t.Errorf("%s: expected 3 questions, got %d", e.ID, len(e.Questions))
		}
	}
	if want := []string{"new", "mid", "old"}; !reflect.DeepEqual(ids, want) {
		t.Errorf("order = %v, want %v", ids, want)
	}
}

func TestSaveEvaluationValidation(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	e := testEvaluation("e1", "", 1000)
	err := s.SaveEvaluation(ctx, e)
	var verr *model.ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("expected ValidationError, got %v", err)
	}
	if len(verr.Fields) != 1 || verr.Fields[0].Field != "title" {
		t.Errorf("unexpected fields: %+v", verr.Fields)
	}
	if _, err := s.GetEvaluation(ctx, "e1"); !errors.Is(err, model.ErrNotFound) {
		t.Errorf("invalid evaluation must not be written, got %v", err)
	}
}

func TestCategories(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	cats, err := s.GetCategories(ctx)
	if err != nil {
		t.Fatalf("GetCategories: %v", err)
	}
	if !reflect.DeepEqual(cats, model.DefaultCategories()) {
		t.Fatalf("expected default categories, got %+v", cats)
	}

	c := model.Category{ID: "sci", Name: "Sciences", Color: "#ff0000"}
	if err := s.SaveCategory(ctx, c); err != nil {
		t.Fatalf("SaveCategory: %v", err)
	}
	c.Color = "#00ff00"
	if err := s.SaveCategory(ctx, c); err != nil {
		t.Fatalf("SaveCategory update: %v", err)
	}
	cats, err = s.GetCategories(ctx)
	if err != nil {
		t.Fatalf("GetCategories: %v", err)
	}
	if len(cats) != 4 || cats[3] != c {
		t.Errorf("unexpected categories: %+v", cats)
	}

	var verr *model.ValidationError
	if err := s.SaveCategory(ctx, model.Category{ID: "bad", Name: "Bad", Color: "red"}); !errors.As(err, &verr) {
		t.Errorf("expected ValidationError for bad color, got %v", err)
	}
}

func TestDeleteCategoryKeepsEvaluations(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	if _, err := s.GetCategories(ctx); err != nil {
		t.Fatalf("GetCategories: %v", err)
	}
	if err := s.SaveEvaluation(ctx, testEvaluation("e1", "T", 1)); err != nil {
		t.Fatalf("SaveEvaluation: %v", err)
	}
	if err := s.DeleteCategory(ctx, "2"); err != nil {
		t.Fatalf("DeleteCategory: %v", err)
	}
	e, err := s.GetEvaluation(ctx, "e1")
	if err != nil {
		t.Fatalf("GetEvaluation: %v", err)
	}
	if e.CategoryID != "2" {
		t.Errorf("dangling category reference should be kept, got %q", e.CategoryID)
	}
	cats, _ := s.GetCategories(ctx)
	if model.FindCategory(cats, "2") != nil {
		t.Error("category 2 should be gone")
	}
}

func TestBackupRoundTrip(t *testing.T) {
	src := newTestStore(t)
	ctx := context.Background()

	if err := src.SaveCategory(ctx, model.Category{ID: "x", Name: "X", Color: "#123456"}); err != nil {
		t.Fatalf("SaveCategory: %v", err)
	}
	for _, e := range []model.Evaluation{testEvaluation("a", "A", 2), testEvaluation("b", "B", 1)} {
		if err := src.SaveEvaluation(ctx, e); err != nil {
			t.Fatalf("SaveEvaluation: %v", err)
		}
	}
	data, err := src.ExportFullBackup(ctx)
	if err != nil {
		t.Fatalf("ExportFullBackup: %v", err)
	}
	if data.Version != model.BackupVersion || data.ExportDate == 0 {
		t.Errorf("unexpected snapshot header: %q %d", data.Version, data.ExportDate)
	}

	dst := newTestStore(t)
	if err := dst.SaveEvaluation(ctx, testEvaluation("stale", "Stale", 9)); err != nil {
		t.Fatalf("SaveEvaluation: %v", err)
	}
	if err := dst.RestoreFromBackup(ctx, data); err != nil {
		t.Fatalf("RestoreFromBackup: %v", err)
	}
	again, err := dst.ExportFullBackup(ctx)
	if err != nil {
		t.Fatalf("ExportFullBackup: %v", err)
	}
	if !reflect.DeepEqual(again.Evaluations, data.Evaluations) {
		t.Errorf("evaluations differ after restore:\n got %+v\nwant %+v", again.Evaluations, data.Evaluations)
	}
	if !reflect.DeepEqual(again.Categories, data.Categories) {
		t.Errorf("categories differ after restore:\n got %+v\nwant %+v", again.Categories, data.Categories)
	}

	exported, ok, err := dst.LastRestore(ctx)
	if err != nil || !ok {
		t.Fatalf("LastRestore: ok=%v err=%v", ok, err)
	}
	if exported.UnixMilli() != data.ExportDate {
		t.Errorf("LastRestore = %v, want %d", exported, data.ExportDate)
	}
}

func TestRestoreFailureKeepsData(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	if err := s.SaveEvaluation(ctx, testEvaluation("keep", "Keep", 1)); err != nil {
		t.Fatalf("SaveEvaluation: %v", err)
	}
	// A cancelled context aborts the restore before anything is replaced.
	cctx, cancel := context.WithCancel(ctx)
	cancel()
	data := model.BackupData{Evaluations: []model.Evaluation{testEvaluation("new", "New", 2)}}
	err := s.RestoreFromBackup(cctx, data)
	var serr *model.StorageError
	if !errors.As(err, &serr) {
		t.Fatalf("expected StorageError, got %v", err)
	}
	if _, err := s.GetEvaluation(ctx, "keep"); err != nil {
		t.Errorf("existing evaluation lost: %v", err)
	}
	if _, ok, _ := s.LastRestore(ctx); ok {
		t.Error("failed restore must not be recorded")
	}
}

func TestSchemaVersion(t *testing.T) {
	s := newTestStore(t)
	v, err := s.GetMetadata(context.Background(), keySchemaVersion)
	if err != nil {
		t.Fatalf("GetMetadata: %v", err)
	}
	if v != schemaVersion {
		t.Errorf("schema version = %q, want %q", v, schemaVersion)
	}
}
