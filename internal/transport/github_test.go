package transport

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"reflect"
	"testing"

	"github.com/evalgen/evalgen/internal/backup"
)

type putRequest struct {
	Message string `json:"message"`
	Content string `json:"content"`
	Branch  string `json:"branch"`
	SHA     string `json:"sha"`
}

func newFakeGitHub(t *testing.T, existingSHA string) (*GitHub, *putRequest) {
	t.Helper()
	raw, err := backup.Marshal(testSnapshot())
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	put := &putRequest{}
	mux := http.NewServeMux()
	const file = "/repos/o/r/contents/backups/evaluation_backup_2024-03-09.json"

	mux.HandleFunc("GET "+file, func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer pat" {
			t.Errorf("unexpected auth header %q", r.Header.Get("Authorization"))
		}
		if r.URL.Query().Get("ref") != "main" {
			t.Errorf("ref = %q, want main", r.URL.Query().Get("ref"))
		}
		if existingSHA == "" {
			w.WriteHeader(http.StatusNotFound)
			io.WriteString(w, `{"message":"Not Found"}`)
			return
		}
		fmt.Fprintf(w, `{"type":"file","name":"evaluation_backup_2024-03-09.json","path":"backups/evaluation_backup_2024-03-09.json","sha":%q,"encoding":"base64","content":%q}`,
			existingSHA, base64.StdEncoding.EncodeToString(raw))
	})
	mux.HandleFunc("PUT "+file, func(w http.ResponseWriter, r *http.Request) {
		if err := json.NewDecoder(r.Body).Decode(put); err != nil {
			t.Errorf("decode put: %v", err)
		}
		w.WriteHeader(http.StatusCreated)
		io.WriteString(w, `{"content":{"html_url":"https://example.test/o/r/blob/main/backups/evaluation_backup_2024-03-09.json"}}`)
	})
	mux.HandleFunc("GET /repos/o/r/contents/backups", func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, `[
			{"type":"file","name":"evaluation_backup_2024-03-01.json","path":"backups/evaluation_backup_2024-03-01.json"},
			{"type":"file","name":"README.md","path":"backups/README.md"},
			{"type":"dir","name":"evaluation_backup_old","path":"backups/evaluation_backup_old"},
			{"type":"file","name":"evaluation_backup_2024-03-09.json","path":"backups/evaluation_backup_2024-03-09.json"}]`)
	})

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return &GitHub{Repo: "o/r", BaseURL: srv.URL, HTTPClient: srv.Client()}, put
}

func TestGitHubUploadCreates(t *testing.T) {
	g, put := newFakeGitHub(t, "")
	url, err := g.Upload(context.Background(), Credentials{Token: "pat"}, testSnapshot())
	if err != nil {
		t.Fatalf("Upload: %v", err)
	}
	if url != "https://example.test/o/r/blob/main/backups/evaluation_backup_2024-03-09.json" {
		t.Errorf("url = %q", url)
	}
	if put.SHA != "" {
		t.Errorf("new file should be created without sha, got %q", put.SHA)
	}
	if put.Message != "Sauvegarde automatique Evaluation - 2024-03-09" || put.Branch != "main" {
		t.Errorf("unexpected commit: %+v", put)
	}
	content, err := base64.StdEncoding.DecodeString(put.Content)
	if err != nil {
		t.Fatalf("content is not base64: %v", err)
	}
	data, err := backup.Unmarshal(content)
	if err != nil {
		t.Fatalf("uploaded content is not a snapshot: %v", err)
	}
	if !reflect.DeepEqual(data, testSnapshot()) {
		t.Error("uploaded snapshot differs")
	}
}

func TestGitHubUploadUpdatesExisting(t *testing.T) {
	g, put := newFakeGitHub(t, "abc123")
	if _, err := g.Upload(context.Background(), Credentials{Token: "pat"}, testSnapshot()); err != nil {
		t.Fatalf("Upload: %v", err)
	}
	if put.SHA != "abc123" {
		t.Errorf("sha = %q, want abc123", put.SHA)
	}
}

func TestGitHubListAndDownload(t *testing.T) {
	g, _ := newFakeGitHub(t, "abc123")
	ctx := context.Background()
	creds := Credentials{Token: "pat"}

	entries, err := g.List(ctx, creds)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	var names []string
	for _, e := range entries {
		names = append(names, e.Name)
	}
	want := []string{"evaluation_backup_2024-03-09.json", "evaluation_backup_2024-03-01.json"}
	if !reflect.DeepEqual(names, want) {
		t.Fatalf("names = %v, want %v", names, want)
	}

	data, err := g.Download(ctx, creds, entries[0].ID)
	if err != nil {
		t.Fatalf("Download: %v", err)
	}
	if !reflect.DeepEqual(data, testSnapshot()) {
		t.Error("downloaded snapshot differs")
	}
}
