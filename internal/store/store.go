package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/evalgen/evalgen/internal/model"

	_ "modernc.org/sqlite"
)

// schemaVersion is recorded in the metadata table by migrate.
const schemaVersion = "1"

type Store struct {
	db *sqlx.DB
}

func New(dbPath string) (*Store, error) {
	db, err := sqlx.Open("sqlite", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	// One connection keeps :memory: databases shared and serialises writers.
	db.SetMaxOpenConns(1)
	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("ping database: %w", err)
	}
	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return s, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS categories (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		color TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS evaluations (
		id TEXT PRIMARY KEY,
		title TEXT NOT NULL,
		category_id TEXT NOT NULL DEFAULT '',
		created_at INTEGER NOT NULL,
		comment TEXT NOT NULL DEFAULT '',
		total_points INTEGER NOT NULL DEFAULT 20
	);

	CREATE TABLE IF NOT EXISTS questions (
		evaluation_id TEXT NOT NULL,
		position INTEGER NOT NULL,
		id TEXT NOT NULL,
		section_title TEXT NOT NULL DEFAULT '',
		points INTEGER NOT NULL DEFAULT 0,
		content TEXT NOT NULL DEFAULT '',
		answer TEXT NOT NULL DEFAULT '',
		student_template TEXT NOT NULL DEFAULT '',
		PRIMARY KEY (evaluation_id, position),
		FOREIGN KEY (evaluation_id) REFERENCES evaluations(id) ON DELETE CASCADE
	);

	CREATE TABLE IF NOT EXISTS metadata (
		key TEXT PRIMARY KEY,
		value TEXT NOT NULL
	);
	`
	if _, err := s.db.Exec(schema); err != nil {
		return err
	}
	return setMetadata(context.Background(), s.db, keySchemaVersion, schemaVersion)
}

// questionRow is a question as stored, with its owner and position.
type questionRow struct {
	EvaluationID string `db:"evaluation_id"`
	Position     int    `db:"position"`
	model.Question
}

const (
	selectEvaluations = `SELECT id, title, category_id, created_at, comment, total_points FROM evaluations`
	selectQuestions   = `SELECT evaluation_id, position, id, section_title, points, content, answer, student_template FROM questions`
)

// GetEvaluations returns every evaluation with its questions, newest first.
func (s *Store) GetEvaluations(ctx context.Context) ([]model.Evaluation, error) {
	evals, err := s.evaluations(ctx, s.db)
	if err != nil {
		return nil, &model.StorageError{Op: "list evaluations", Err: err}
	}
	return evals, nil
}

func (s *Store) evaluations(ctx context.Context, q sqlx.QueryerContext) ([]model.Evaluation, error) {
	var evals []model.Evaluation
	if err := sqlx.SelectContext(ctx, q, &evals, selectEvaluations+` ORDER BY created_at DESC, rowid`); err != nil {
		return nil, err
	}
	var rows []questionRow
	if err := sqlx.SelectContext(ctx, q, &rows, selectQuestions+` ORDER BY evaluation_id, position`); err != nil {
		return nil, err
	}
	byEval := make(map[string][]model.Question, len(evals))
	for _, r := range rows {
		byEval[r.EvaluationID] = append(byEval[r.EvaluationID], r.Question)
	}
	for i := range evals {
		evals[i].Questions = byEval[evals[i].ID]
		if evals[i].Questions == nil {
			evals[i].Questions = []model.Question{}
		}
	}
	if evals == nil {
		evals = []model.Evaluation{}
	}
	return evals, nil
}

// GetEvaluation returns one evaluation. It returns model.ErrNotFound when
// the id is unknown.
func (s *Store) GetEvaluation(ctx context.Context, id string) (model.Evaluation, error) {
	var e model.Evaluation
	err := s.db.GetContext(ctx, &e, selectEvaluations+` WHERE id = ?`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return e, model.ErrNotFound
	}
	if err != nil {
		return e, &model.StorageError{Op: "get evaluation", Err: err}
	}
	var rows []questionRow
	if err := s.db.SelectContext(ctx, &rows, selectQuestions+` WHERE evaluation_id = ? ORDER BY position`, id); err != nil {
		return e, &model.StorageError{Op: "get evaluation", Err: err}
	}
	e.Questions = make([]model.Question, 0, len(rows))
	for _, r := range rows {
		e.Questions = append(e.Questions, r.Question)
	}
	return e, nil
}

// SaveEvaluation validates the evaluation and inserts or replaces it along
// with its questions. Nothing is written when validation fails.
func (s *Store) SaveEvaluation(ctx context.Context, e model.Evaluation) error {
	if err := model.Validate(e); err != nil {
		return err
	}
	err := s.inTx(ctx, func(tx *sqlx.Tx) error {
		return putEvaluation(ctx, tx, e)
	})
	if err != nil {
		return &model.StorageError{Op: "save evaluation", Err: err}
	}
	slog.Debug("evaluation saved", "id", e.ID, "questions", len(e.Questions))
	return nil
}

func putEvaluation(ctx context.Context, tx *sqlx.Tx, e model.Evaluation) error {
	_, err := tx.NamedExecContext(ctx,
		`INSERT INTO evaluations (id, title, category_id, created_at, comment, total_points)
		 VALUES (:id, :title, :category_id, :created_at, :comment, :total_points)
		 ON CONFLICT(id) DO UPDATE SET title = excluded.title, category_id = excluded.category_id,
		 created_at = excluded.created_at, comment = excluded.comment, total_points = excluded.total_points`, e)
	if err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM questions WHERE evaluation_id = ?`, e.ID); err != nil {
		return err
	}
	for i, q := range e.Questions {
		row := questionRow{EvaluationID: e.ID, Position: i, Question: q}
		if _, err := tx.NamedExecContext(ctx,
			`INSERT INTO questions (evaluation_id, position, id, section_title, points, content, answer, student_template)
			 VALUES (:evaluation_id, :position, :id, :section_title, :points, :content, :answer, :student_template)`, row); err != nil {
			return err
		}
	}
	return nil
}

// DeleteEvaluation removes an evaluation and its questions. Deleting an
// unknown id is not an error.
func (s *Store) DeleteEvaluation(ctx context.Context, id string) error {
	err := s.inTx(ctx, func(tx *sqlx.Tx) error {
		if _, err := tx.ExecContext(ctx, `DELETE FROM questions WHERE evaluation_id = ?`, id); err != nil {
			return err
		}
		_, err := tx.ExecContext(ctx, `DELETE FROM evaluations WHERE id = ?`, id)
		return err
	})
	if err != nil {
		return &model.StorageError{Op: "delete evaluation", Err: err}
	}
	return nil
}

// GetCategories returns all categories in insertion order. An empty table is
// seeded with the default categories first.
func (s *Store) GetCategories(ctx context.Context) ([]model.Category, error) {
	var cats []model.Category
	if err := s.db.SelectContext(ctx, &cats, `SELECT id, name, color FROM categories ORDER BY rowid`); err != nil {
		return nil, &model.StorageError{Op: "list categories", Err: err}
	}
	if len(cats) > 0 {
		return cats, nil
	}

	cats = model.DefaultCategories()
	err := s.inTx(ctx, func(tx *sqlx.Tx) error {
		for _, c := range cats {
			if err := putCategory(ctx, tx, c); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, &model.StorageError{Op: "seed categories", Err: err}
	}
	slog.Info("seeded default categories", "count", len(cats))
	return cats, nil
}

// SaveCategory validates and inserts or replaces a category.
func (s *Store) SaveCategory(ctx context.Context, c model.Category) error {
	if err := model.Validate(c); err != nil {
		return err
	}
	err := s.inTx(ctx, func(tx *sqlx.Tx) error {
		return putCategory(ctx, tx, c)
	})
	if err != nil {
		return &model.StorageError{Op: "save category", Err: err}
	}
	return nil
}

func putCategory(ctx context.Context, tx *sqlx.Tx, c model.Category) error {
	_, err := tx.NamedExecContext(ctx,
		`INSERT INTO categories (id, name, color) VALUES (:id, :name, :color)
		 ON CONFLICT(id) DO UPDATE SET name = excluded.name, color = excluded.color`, c)
	return err
}

// DeleteCategory removes a category. Evaluations referring to it are kept
// and render with the fallback category.
func (s *Store) DeleteCategory(ctx context.Context, id string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM categories WHERE id = ?`, id); err != nil {
		return &model.StorageError{Op: "delete category", Err: err}
	}
	return nil
}

// ExportFullBackup snapshots every evaluation and category.
func (s *Store) ExportFullBackup(ctx context.Context) (model.BackupData, error) {
	evals, err := s.GetEvaluations(ctx)
	if err != nil {
		return model.BackupData{}, err
	}
	cats, err := s.GetCategories(ctx)
	if err != nil {
		return model.BackupData{}, err
	}
	return model.BackupData{
		Evaluations: evals,
		Categories:  cats,
		ExportDate:  time.Now().UnixMilli(),
		Version:     model.BackupVersion,
	}, nil
}

// RestoreFromBackup replaces all evaluations and categories with the
// snapshot in a single transaction. On error the previous data is intact.
func (s *Store) RestoreFromBackup(ctx context.Context, data model.BackupData) error {
	err := s.inTx(ctx, func(tx *sqlx.Tx) error {
		for _, stmt := range []string{`DELETE FROM questions`, `DELETE FROM evaluations`, `DELETE FROM categories`} {
			if _, err := tx.ExecContext(ctx, stmt); err != nil {
				return err
			}
		}
		for _, c := range data.Categories {
			if err := putCategory(ctx, tx, c); err != nil {
				return fmt.Errorf("category %q: %w", c.ID, err)
			}
		}
		for _, e := range data.Evaluations {
			if err := putEvaluation(ctx, tx, e); err != nil {
				return fmt.Errorf("evaluation %q: %w", e.ID, err)
			}
		}
		return setMetadata(ctx, tx, keyLastRestore, fmt.Sprint(data.ExportDate))
	})
	if err != nil {
		return &model.StorageError{Op: "restore backup", Err: err}
	}
	slog.Info("backup restored",
		"evaluations", len(data.Evaluations), "categories", len(data.Categories),
		"exported", data.Exported().Format(time.DateOnly))
	return nil
}

func (s *Store) inTx(ctx context.Context, fn func(tx *sqlx.Tx) error) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()
	if err := fn(tx); err != nil {
		return err
	}
	return tx.Commit()
}
