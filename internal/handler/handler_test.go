package handler

import (
	"archive/zip"
	"bytes"
	"encoding/json"
	"io"
	"mime"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"

	appI18n "github.com/evalgen/evalgen/internal/i18n"
	"github.com/evalgen/evalgen/internal/model"
	"github.com/evalgen/evalgen/internal/store"
)

func newTestRouter(t *testing.T) (http.Handler, *store.Store) {
	t.Helper()
	if err := appI18n.Init("fr"); err != nil {
		t.Fatalf("i18n.Init: %v", err)
	}
	s, err := store.New(":memory:")
	if err != nil {
		t.Fatalf("store.New: %v", err)
	}
	t.Cleanup(func() { s.Close() })

	r := chi.NewRouter()
	r.Use(appI18n.Middleware("fr"))
	New(s, Config{}).Routes(r)
	return r, s
}

func do(t *testing.T, h http.Handler, method, target, body string) *httptest.ResponseRecorder {
	t.Helper()
	var rd io.Reader
	if body != "" {
		rd = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, target, rd)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

const evalJSON = `{
	"title": "Contrôle de lecture",
	"categoryId": "1",
	"comment": "Très bon courage",
	"questions": [
		{"id": "q1", "sectionTitle": "Compréhension", "points": 2, "content": "<p>Qui a mangé ?</p>", "answer": "<p>Le loup</p>"},
		{"id": "q2", "sectionTitle": "", "points": "3", "content": "Pourquoi ?", "answer": "<p>Parce que</p>"}
	]
}`

func createEvaluation(t *testing.T, h http.Handler) model.Evaluation {
	t.Helper()
	rec := do(t, h, http.MethodPost, "/api/evaluations", evalJSON)
	if rec.Code != http.StatusCreated {
		t.Fatalf("create status = %d, body %s", rec.Code, rec.Body)
	}
	var e model.Evaluation
	if err := json.Unmarshal(rec.Body.Bytes(), &e); err != nil {
		t.Fatalf("decode created evaluation: %v", err)
	}
	return e
}

func docxDocument(t *testing.T, data []byte) string {
	t.Helper()
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		t.Fatalf("zip.NewReader: %v", err)
	}
	rc, err := zr.Open("word/document.xml")
	if err != nil {
		t.Fatalf("open document.xml: %v", err)
	}
	defer rc.Close()
	body, err := io.ReadAll(rc)
	if err != nil {
		t.Fatalf("read document.xml: %v", err)
	}
	return string(body)
}

func TestEvaluationLifecycle(t *testing.T) {
	h, _ := newTestRouter(t)

	e := createEvaluation(t, h)
	if e.ID == "" || e.CreatedAt == 0 {
		t.Errorf("defaults not applied: %+v", e)
	}
	if e.TotalPoints != model.DefaultTotalPoints {
		t.Errorf("totalPoints = %d, want %d", e.TotalPoints, model.DefaultTotalPoints)
	}
	if e.Questions[1].Points != 3 {
		t.Errorf("string points should decode leniently, got %d", e.Questions[1].Points)
	}

	rec := do(t, h, http.MethodGet, "/api/evaluations", "")
	var list []model.Evaluation
	if err := json.Unmarshal(rec.Body.Bytes(), &list); err != nil || len(list) != 1 {
		t.Fatalf("list = %s (err %v)", rec.Body, err)
	}

	e.Title = "Contrôle modifié"
	body, _ := json.Marshal(e)
	rec = do(t, h, http.MethodPut, "/api/evaluations/"+e.ID, string(body))
	if rec.Code != http.StatusOK {
		t.Fatalf("update status = %d, body %s", rec.Code, rec.Body)
	}
	rec = do(t, h, http.MethodGet, "/api/evaluations/"+e.ID, "")
	if !strings.Contains(rec.Body.String(), "Contrôle modifié") {
		t.Errorf("update not visible: %s", rec.Body)
	}

	rec = do(t, h, http.MethodDelete, "/api/evaluations/"+e.ID, "")
	if rec.Code != http.StatusNoContent {
		t.Fatalf("delete status = %d", rec.Code)
	}
	rec = do(t, h, http.MethodGet, "/api/evaluations/"+e.ID, "")
	if rec.Code != http.StatusNotFound {
		t.Errorf("get after delete status = %d, want 404", rec.Code)
	}
}

func TestCreateEvaluationValidation(t *testing.T) {
	h, s := newTestRouter(t)

	rec := do(t, h, http.MethodPost, "/api/evaluations", `{"title": ""}`)
	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("status = %d, want 422, body %s", rec.Code, rec.Body)
	}
	var body errorBody
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode error body: %v", err)
	}
	if len(body.Fields) == 0 || body.Fields[0].Field != "title" {
		t.Errorf("expected a title field error, got %+v", body)
	}
	evals, _ := s.GetEvaluations(t.Context())
	if len(evals) != 0 {
		t.Errorf("nothing should be saved, got %d", len(evals))
	}

	rec = do(t, h, http.MethodPost, "/api/evaluations", `{not json`)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("bad JSON status = %d, want 400", rec.Code)
	}
}

func TestCategories(t *testing.T) {
	h, _ := newTestRouter(t)

	rec := do(t, h, http.MethodGet, "/api/categories", "")
	var cats []model.Category
	if err := json.Unmarshal(rec.Body.Bytes(), &cats); err != nil || len(cats) != 3 {
		t.Fatalf("default categories = %s (err %v)", rec.Body, err)
	}

	rec = do(t, h, http.MethodPost, "/api/categories", `{"name": "Sciences", "color": "#00aa00"}`)
	if rec.Code != http.StatusCreated {
		t.Fatalf("create status = %d, body %s", rec.Code, rec.Body)
	}
	var c model.Category
	json.Unmarshal(rec.Body.Bytes(), &c)
	if c.ID == "" {
		t.Error("category id should be generated")
	}

	rec = do(t, h, http.MethodPost, "/api/categories", `{"name": "Bad", "color": "green"}`)
	if rec.Code != http.StatusUnprocessableEntity {
		t.Errorf("bad color status = %d, want 422", rec.Code)
	}

	rec = do(t, h, http.MethodDelete, "/api/categories/"+c.ID, "")
	if rec.Code != http.StatusNoContent {
		t.Errorf("delete status = %d", rec.Code)
	}
}

func TestPreviewAndExport(t *testing.T) {
	h, _ := newTestRouter(t)
	e := createEvaluation(t, h)

	rec := do(t, h, http.MethodGet, "/preview/"+e.ID, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("preview status = %d", rec.Code)
	}
	page := rec.Body.String()
	for _, want := range []string{"Contrôle de lecture", "Très bon courage", "Compréhension (2 pts)", "Sans Titre (3 pts)"} {
		if !strings.Contains(page, want) {
			t.Errorf("preview missing %q", want)
		}
	}
	if strings.Contains(page, "Le loup") {
		t.Error("student preview must not show answers")
	}
	rec = do(t, h, http.MethodGet, "/preview/"+e.ID+"?answers=1", "")
	if !strings.Contains(rec.Body.String(), "Le loup") {
		t.Error("corrected preview should show answers")
	}

	rec = do(t, h, http.MethodGet, "/export/"+e.ID+".pdf", "")
	if rec.Code != http.StatusOK || !bytes.HasPrefix(rec.Body.Bytes(), []byte("%PDF-")) {
		t.Fatalf("pdf export status = %d", rec.Code)
	}
	cd := rec.Header().Get("Content-Disposition")
	if _, params, err := mime.ParseMediaType(cd); err != nil || params["filename"] != "Contrôle_de_lecture.pdf" {
		t.Errorf("Content-Disposition = %q", cd)
	}

	rec = do(t, h, http.MethodGet, "/export/"+e.ID+".docx?answers=1", "")
	if rec.Code != http.StatusOK || !bytes.HasPrefix(rec.Body.Bytes(), []byte("PK")) {
		t.Fatalf("docx export status = %d", rec.Code)
	}
	doc := docxDocument(t, rec.Body.Bytes())
	for _, want := range []string{"CONTRÔLE DE LECTURE", "Très bon courage", "COMPRÉHENSION (2 pts)", "Qui a mangé ?"} {
		if !strings.Contains(doc, want) {
			t.Errorf("docx missing %q", want)
		}
	}

	rec = do(t, h, http.MethodGet, "/export/"+e.ID+".odt", "")
	if rec.Code != http.StatusNotFound {
		t.Errorf("unknown format status = %d, want 404", rec.Code)
	}
	rec = do(t, h, http.MethodGet, "/preview/missing", "")
	if rec.Code != http.StatusNotFound {
		t.Errorf("missing preview status = %d, want 404", rec.Code)
	}
}

func TestBackupEndpoints(t *testing.T) {
	h, s := newTestRouter(t)
	createEvaluation(t, h)

	rec := do(t, h, http.MethodGet, "/api/backup", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("backup status = %d", rec.Code)
	}
	if cd := rec.Header().Get("Content-Disposition"); !strings.Contains(cd, "evalgen_backup_") {
		t.Errorf("Content-Disposition = %q", cd)
	}
	snapshot := rec.Body.String()

	// Wipe and restore in two steps: first the warning, then the confirmed restore.
	empty := `{"evaluations": [], "categories": [], "exportDate": 0, "version": "1.0"}`
	rec = do(t, h, http.MethodPost, "/api/backup?confirm=1", empty)
	if rec.Code != http.StatusNoContent {
		t.Fatalf("restore empty status = %d, body %s", rec.Code, rec.Body)
	}

	rec = do(t, h, http.MethodPost, "/api/backup", snapshot)
	if rec.Code != http.StatusConflict {
		t.Fatalf("unconfirmed restore status = %d, want 409", rec.Code)
	}
	var pending restorePending
	json.Unmarshal(rec.Body.Bytes(), &pending)
	if !strings.Contains(pending.Message, "écrasera") || pending.Evaluations != 1 {
		t.Errorf("unexpected pending body: %+v", pending)
	}
	if evals, _ := s.GetEvaluations(t.Context()); len(evals) != 0 {
		t.Fatal("unconfirmed restore must not write")
	}

	rec = do(t, h, http.MethodPost, "/api/backup?confirm=1", snapshot)
	if rec.Code != http.StatusNoContent {
		t.Fatalf("confirmed restore status = %d, body %s", rec.Code, rec.Body)
	}
	if evals, _ := s.GetEvaluations(t.Context()); len(evals) != 1 {
		t.Errorf("restored evaluations = %d, want 1", len(evals))
	}

	rec = do(t, h, http.MethodPost, "/api/backup?confirm=1", `{"categories": []}`)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("malformed snapshot status = %d, want 400", rec.Code)
	}
	if evals, _ := s.GetEvaluations(t.Context()); len(evals) != 1 {
		t.Error("malformed snapshot must not overwrite data")
	}
}

func TestCrossOriginRejected(t *testing.T) {
	h, _ := newTestRouter(t)

	req := httptest.NewRequest(http.MethodPost, "/api/categories", strings.NewReader(`{"name":"X","color":"#000000"}`))
	req.Header.Set("Origin", "https://evil.example")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusForbidden {
		t.Errorf("status = %d, want 403", rec.Code)
	}

	req = httptest.NewRequest(http.MethodPost, "/api/categories", strings.NewReader(`{"name":"X","color":"#000000"}`))
	req.Header.Set("Origin", "http://"+req.Host)
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusCreated {
		t.Errorf("same-origin status = %d, want 201", rec.Code)
	}
}
