package transport

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"path"
	"strings"
	"time"

	"github.com/google/go-github/v66/github"

	"github.com/evalgen/evalgen/internal/backup"
	"github.com/evalgen/evalgen/internal/model"
)

const (
	githubTarget  = "github"
	defaultBranch = "main"
	defaultDir    = "backups"
)

// GitHub keeps snapshots as files in a repository directory. Uploading twice
// on the same day updates the existing file.
type GitHub struct {
	// Repo is "owner/name".
	Repo   string
	Branch string
	// Dir is the directory holding snapshots.
	Dir string
	// BaseURL overrides the API base URL.
	BaseURL string
	// HTTPClient is used for API calls when set.
	HTTPClient *http.Client
}

func (g *GitHub) Name() string { return githubTarget }

func (g *GitHub) client(creds Credentials) (*github.Client, string, string, error) {
	if creds.Token == "" {
		return nil, "", "", ErrMissingCredentials
	}
	owner, repo, ok := strings.Cut(g.Repo, "/")
	if !ok || owner == "" || repo == "" {
		return nil, "", "", fmt.Errorf("repository %q is not owner/name", g.Repo)
	}
	c := github.NewClient(g.HTTPClient).WithAuthToken(creds.Token)
	if g.BaseURL != "" {
		u, err := url.Parse(strings.TrimSuffix(g.BaseURL, "/") + "/")
		if err != nil {
			return nil, "", "", fmt.Errorf("base url: %w", err)
		}
		c.BaseURL = u
	}
	return c, owner, repo, nil
}

func (g *GitHub) branch() string {
	if g.Branch == "" {
		return defaultBranch
	}
	return g.Branch
}

func (g *GitHub) dir() string {
	if g.Dir == "" {
		return defaultDir
	}
	return strings.Trim(g.Dir, "/")
}

// Upload writes the snapshot and returns the file's web URL.
func (g *GitHub) Upload(ctx context.Context, creds Credentials, data model.BackupData) (string, error) {
	c, owner, repo, err := g.client(creds)
	if err != nil {
		return "", fail(githubTarget, "upload", err)
	}
	body, err := backup.Marshal(data)
	if err != nil {
		return "", fail(githubTarget, "upload", err)
	}
	date := data.Exported().UTC().Format(time.DateOnly)
	file := path.Join(g.dir(), model.RepositoryBackupFilename(data.Exported()))
	opts := &github.RepositoryContentFileOptions{
		Message: github.String("Sauvegarde automatique Evaluation - " + date),
		Content: body,
		Branch:  github.String(g.branch()),
	}

	existing, _, _, err := c.Repositories.GetContents(ctx, owner, repo, file,
		&github.RepositoryContentGetOptions{Ref: g.branch()})
	var res *github.RepositoryContentResponse
	switch {
	case err == nil && existing != nil:
		opts.SHA = existing.SHA
		res, _, err = c.Repositories.UpdateFile(ctx, owner, repo, file, opts)
	case err == nil || isNotFound(err):
		res, _, err = c.Repositories.CreateFile(ctx, owner, repo, file, opts)
	}
	if err != nil {
		return "", fail(githubTarget, "upload", err)
	}
	slog.Info("snapshot uploaded", "target", githubTarget, "repo", g.Repo, "path", file)
	return res.GetContent().GetHTMLURL(), nil
}

// List returns the snapshot files in the directory. Names carry the date,
// so they are sorted by name, newest first.
func (g *GitHub) List(ctx context.Context, creds Credentials) ([]Entry, error) {
	c, owner, repo, err := g.client(creds)
	if err != nil {
		return nil, fail(githubTarget, "list", err)
	}
	_, dir, _, err := c.Repositories.GetContents(ctx, owner, repo, g.dir(),
		&github.RepositoryContentGetOptions{Ref: g.branch()})
	if isNotFound(err) {
		return []Entry{}, nil
	}
	if err != nil {
		return nil, fail(githubTarget, "list", err)
	}
	entries := []Entry{}
	for _, item := range dir {
		name := item.GetName()
		if item.GetType() != "file" || !strings.HasPrefix(name, "evaluation_backup_") || !strings.HasSuffix(name, ".json") {
			continue
		}
		e := Entry{ID: item.GetPath(), Name: name}
		if d, err := time.Parse(time.DateOnly, strings.TrimSuffix(strings.TrimPrefix(name, "evaluation_backup_"), ".json")); err == nil {
			e.CreatedTime = d
		}
		entries = append(entries, e)
	}
	sortNewestFirst(entries)
	return entries, nil
}

// Download fetches the file at the given repository path.
func (g *GitHub) Download(ctx context.Context, creds Credentials, id string) (model.BackupData, error) {
	c, owner, repo, err := g.client(creds)
	if err != nil {
		return model.BackupData{}, fail(githubTarget, "download", err)
	}
	file, _, _, err := c.Repositories.GetContents(ctx, owner, repo, id,
		&github.RepositoryContentGetOptions{Ref: g.branch()})
	if err != nil {
		return model.BackupData{}, fail(githubTarget, "download", err)
	}
	if file == nil {
		return model.BackupData{}, fail(githubTarget, "download", fmt.Errorf("%s is a directory", id))
	}
	content, err := file.GetContent()
	if err != nil {
		return model.BackupData{}, fail(githubTarget, "download", err)
	}
	return decode(githubTarget, []byte(content))
}

func isNotFound(err error) bool {
	var gerr *github.ErrorResponse
	return errors.As(err, &gerr) && gerr.Response != nil && gerr.Response.StatusCode == http.StatusNotFound
}
