package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"mime"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/evalgen/evalgen/internal/backup"
	"github.com/evalgen/evalgen/internal/docx"
	appI18n "github.com/evalgen/evalgen/internal/i18n"
	"github.com/evalgen/evalgen/internal/layout"
	"github.com/evalgen/evalgen/internal/model"
	"github.com/evalgen/evalgen/internal/render"
	"github.com/evalgen/evalgen/internal/store"
)

// maxBodyBytes bounds request bodies; snapshots with pasted images can be large.
const maxBodyBytes = 64 << 20

// Config holds rendering options for the HTTP surface.
type Config struct {
	// HonorScaffold prints student templates in DOCX exports.
	HonorScaffold bool
}

// Handler holds shared dependencies for HTTP handlers.
type Handler struct {
	store  *store.Store
	config Config
}

// New creates a new Handler.
func New(s *store.Store, cfg Config) *Handler {
	return &Handler{store: s, config: cfg}
}

// Routes registers all HTTP routes.
func (h *Handler) Routes(r chi.Router) {
	r.Route("/api", func(r chi.Router) {
		r.Use(sameOrigin)
		r.Get("/evaluations", h.handleListEvaluations)
		r.Post("/evaluations", h.handleCreateEvaluation)
		r.Get("/evaluations/{id}", h.handleGetEvaluation)
		r.Put("/evaluations/{id}", h.handleUpdateEvaluation)
		r.Delete("/evaluations/{id}", h.handleDeleteEvaluation)
		r.Get("/categories", h.handleListCategories)
		r.Post("/categories", h.handleCreateCategory)
		r.Delete("/categories/{id}", h.handleDeleteCategory)
		r.Get("/backup", h.handleExportBackup)
		r.Post("/backup", h.handleRestoreBackup)
	})
	r.Get("/preview/{id}", h.handlePreview)
	r.Get("/export/{id}.{format}", h.handleExport)
}

func (h *Handler) handleListEvaluations(w http.ResponseWriter, r *http.Request) {
	evals, err := h.store.GetEvaluations(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, evals)
}

func (h *Handler) handleCreateEvaluation(w http.ResponseWriter, r *http.Request) {
	cats, err := h.store.GetCategories(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	defaultCategory := ""
	if len(cats) > 0 {
		defaultCategory = cats[0].ID
	}
	e := model.NewEvaluation(defaultCategory)
	if !decodeBody(w, r, &e) {
		return
	}
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if err := h.store.SaveEvaluation(r.Context(), e); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, e)
}

func (h *Handler) handleGetEvaluation(w http.ResponseWriter, r *http.Request) {
	e, err := h.store.GetEvaluation(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, e)
}

func (h *Handler) handleUpdateEvaluation(w http.ResponseWriter, r *http.Request) {
	var e model.Evaluation
	if !decodeBody(w, r, &e) {
		return
	}
	e.ID = chi.URLParam(r, "id")
	if e.CreatedAt == 0 {
		e.CreatedAt = time.Now().UnixMilli()
	}
	if err := h.store.SaveEvaluation(r.Context(), e); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, e)
}

func (h *Handler) handleDeleteEvaluation(w http.ResponseWriter, r *http.Request) {
	if err := h.store.DeleteEvaluation(r.Context(), chi.URLParam(r, "id")); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleListCategories(w http.ResponseWriter, r *http.Request) {
	cats, err := h.store.GetCategories(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, cats)
}

func (h *Handler) handleCreateCategory(w http.ResponseWriter, r *http.Request) {
	c := model.NewCategory("", "")
	if !decodeBody(w, r, &c) {
		return
	}
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	if err := h.store.SaveCategory(r.Context(), c); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, c)
}

func (h *Handler) handleDeleteCategory(w http.ResponseWriter, r *http.Request) {
	if err := h.store.DeleteCategory(r.Context(), chi.URLParam(r, "id")); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// sheet loads an evaluation and builds its render tree in the mode picked by
// the answers query parameter.
func (h *Handler) sheet(r *http.Request) (model.Evaluation, render.Sheet, error) {
	e, err := h.store.GetEvaluation(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		return e, render.Sheet{}, err
	}
	cats, err := h.store.GetCategories(r.Context())
	if err != nil {
		return e, render.Sheet{}, err
	}
	mode := render.ModeFor(r.URL.Query().Get("answers") == "1")
	return e, render.Build(e, cats, mode, appI18n.Labels(r.Context())), nil
}

func (h *Handler) handlePreview(w http.ResponseWriter, r *http.Request) {
	_, s, err := h.sheet(r)
	if err != nil {
		writeError(w, err)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := layout.Page(s).Render(r.Context(), w); err != nil {
		slog.Error("render error", "error", err)
	}
}

func (h *Handler) handleExport(w http.ResponseWriter, r *http.Request) {
	format := chi.URLParam(r, "format")
	if format != "pdf" && format != "docx" {
		http.Error(w, "unsupported format", http.StatusNotFound)
		return
	}
	e, s, err := h.sheet(r)
	if err != nil {
		writeError(w, err)
		return
	}

	name := model.ExportFilename(e.Title, "."+format)
	w.Header().Set("Content-Disposition", attachment(name))
	switch format {
	case "pdf":
		w.Header().Set("Content-Type", "application/pdf")
		err = layout.WritePDF(w, s, layout.PDFOptions{})
	case "docx":
		w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.wordprocessingml.document")
		err = docx.Write(w, s, docx.Options{HonorScaffold: h.config.HonorScaffold})
	}
	if err != nil {
		slog.Error("export error", "format", format, "id", e.ID, "error", err)
	}
}

func (h *Handler) handleExportBackup(w http.ResponseWriter, r *http.Request) {
	data, err := h.store.ExportFullBackup(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Content-Disposition", attachment(model.BackupFilename(data.Exported())))
	if err := backup.Encode(w, data); err != nil {
		slog.Error("backup encode error", "error", err)
	}
}

// restorePending is returned when a valid snapshot awaits confirmation.
type restorePending struct {
	Message     string `json:"message"`
	ExportDate  int64  `json:"exportDate"`
	Evaluations int    `json:"evaluations"`
	Categories  int    `json:"categories"`
}

func (h *Handler) handleRestoreBackup(w http.ResponseWriter, r *http.Request) {
	confirmed := r.URL.Query().Get("confirm") == "1"
	var pending *restorePending
	confirm := func(d model.BackupData) bool {
		if confirmed {
			return true
		}
		pending = &restorePending{
			Message: appI18n.Td(r.Context(), "RestoreWarning", map[string]any{
				"Date": d.Exported().Local().Format("02/01/2006 15:04"),
			}),
			ExportDate:  d.ExportDate,
			Evaluations: len(d.Evaluations),
			Categories:  len(d.Categories),
		}
		return false
	}

	err := backup.RestoreReader(r.Context(), h.store, http.MaxBytesReader(w, r.Body, maxBodyBytes), confirm)
	switch {
	case errors.Is(err, backup.ErrAborted):
		writeJSON(w, http.StatusConflict, pending)
	case err != nil:
		writeError(w, err)
	default:
		w.WriteHeader(http.StatusNoContent)
	}
}

func decodeBody(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(v); err != nil {
		http.Error(w, "invalid JSON body", http.StatusBadRequest)
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("encode response", "error", err)
	}
}

type errorBody struct {
	Error  string             `json:"error"`
	Fields []model.FieldError `json:"fields,omitempty"`
}

// writeError maps the error taxonomy to status codes. Storage and other
// internal failures are logged and answered with a generic message.
func writeError(w http.ResponseWriter, err error) {
	var (
		verr *model.ValidationError
		ferr *model.ImportFormatError
	)
	switch {
	case errors.Is(err, model.ErrNotFound):
		writeJSON(w, http.StatusNotFound, errorBody{Error: "not found"})
	case errors.As(err, &verr):
		writeJSON(w, http.StatusUnprocessableEntity, errorBody{Error: verr.Error(), Fields: verr.Fields})
	case errors.As(err, &ferr):
		writeJSON(w, http.StatusBadRequest, errorBody{Error: ferr.Error()})
	default:
		slog.Error("request failed", "error", err)
		writeJSON(w, http.StatusInternalServerError, errorBody{Error: "internal error"})
	}
}

// attachment builds a Content-Disposition value; non-ASCII names are sent
// in the RFC 2231 extended form.
func attachment(name string) string {
	return mime.FormatMediaType("attachment", map[string]string{"filename": name})
}
