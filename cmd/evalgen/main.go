package main

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"net/http"
	"os"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/evalgen/evalgen/internal/docx"
	"github.com/evalgen/evalgen/internal/handler"
	appI18n "github.com/evalgen/evalgen/internal/i18n"
	"github.com/evalgen/evalgen/internal/layout"
	"github.com/evalgen/evalgen/internal/model"
	"github.com/evalgen/evalgen/internal/render"
	"github.com/evalgen/evalgen/internal/store"
)

func main() {
	// Values from .env act as environment variables for viper.
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		fmt.Fprintln(os.Stderr, "warning: reading .env:", err)
	}
	if err := rootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:          "evalgen",
		Short:        "Compose evaluations and print them as PDF or DOCX",
		SilenceUsage: true,
	}
	pf := root.PersistentFlags()
	pf.String("db", "evalgen.db", "SQLite database path")
	pf.StringP("lang", "l", "fr", "Document language (fr, en)")
	pf.String("log-level", "info", "Log level (debug, info, warn, error)")
	pf.String("log-format", "text", "Log format (text, json)")

	serve := serveCmd()
	root.AddCommand(serve, renderCmd(), backupCmd(), syncCmd(), categoryCmd(), evalCmd())

	// Make "serve" the default when no subcommand is given.
	root.RunE = serve.RunE

	// Register serve flags on root so bare `evalgen --addr ...` still works.
	root.Flags().AddFlagSet(serve.Flags())

	return root
}

func serveCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the local editor API and preview server",
		RunE:  runServe,
	}
	f := cmd.Flags()
	f.StringP("addr", "a", "127.0.0.1:8080", "HTTP listen address")
	f.Bool("honor-scaffold", false, "Print student templates in DOCX exports")
	return cmd
}

func renderCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "render",
		Short: "Render one evaluation to HTML, PDF or DOCX",
		RunE:  runRender,
	}
	f := cmd.Flags()
	f.String("id", "", "Evaluation ID (required)")
	f.StringP("format", "f", "pdf", "Output format (html, pdf, docx)")
	f.Bool("answers", false, "Render the corrected version with model answers")
	f.Bool("honor-scaffold", false, "Print student templates in DOCX exports")
	f.StringP("output", "o", "", "Output file path (- for stdout, default: title-based name)")
	_ = cmd.MarkFlagRequired("id")
	return cmd
}

func setupLogging(cmd *cobra.Command) {
	v := viperForCmd(cmd)

	var logLevel slog.Level
	switch strings.ToLower(v.GetString("log-level")) {
	case "debug":
		logLevel = slog.LevelDebug
	case "warn":
		logLevel = slog.LevelWarn
	case "error":
		logLevel = slog.LevelError
	default:
		logLevel = slog.LevelInfo
	}
	handlerOpts := &slog.HandlerOptions{Level: logLevel}
	var logHandler slog.Handler
	switch strings.ToLower(v.GetString("log-format")) {
	case "json":
		logHandler = slog.NewJSONHandler(os.Stderr, handlerOpts)
	default:
		logHandler = slog.NewTextHandler(os.Stderr, handlerOpts)
	}
	slog.SetDefault(slog.New(logHandler))
}

// viperForCmd binds a command's flags and environment to a fresh viper instance.
func viperForCmd(cmd *cobra.Command) *viper.Viper {
	v := viper.New()
	_ = v.BindPFlags(cmd.Flags())

	v.SetEnvPrefix("EVALGEN")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	v.SetConfigName("evalgen")
	v.AddConfigPath(".")
	v.AddConfigPath("$HOME/.config/evalgen")
	v.AddConfigPath("/etc/evalgen")
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			slog.Warn("error reading config file", "error", err)
		}
	} else {
		slog.Debug("loaded config file", "path", v.ConfigFileUsed())
	}

	return v
}

// setup configures logging and i18n, then opens the database.
func setup(cmd *cobra.Command) (*viper.Viper, *store.Store, error) {
	setupLogging(cmd)
	v := viperForCmd(cmd)

	if err := appI18n.Init(v.GetString("lang")); err != nil {
		return nil, nil, fmt.Errorf("init i18n: %w", err)
	}
	db, err := store.New(v.GetString("db"))
	if err != nil {
		return nil, nil, fmt.Errorf("open database: %w", err)
	}
	return v, db, nil
}

func runServe(cmd *cobra.Command, _ []string) error {
	v, db, err := setup(cmd)
	if err != nil {
		return err
	}
	defer db.Close()

	lang := v.GetString("lang")
	h := handler.New(db, handler.Config{HonorScaffold: v.GetBool("honor-scaffold")})

	r := chi.NewRouter()
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(appI18n.Middleware(lang))
	h.Routes(r)

	addr := v.GetString("addr")
	slog.Info("starting server", "addr", addr, "db", v.GetString("db"), "lang", lang)
	return http.ListenAndServe(addr, r)
}

func runRender(cmd *cobra.Command, _ []string) error {
	v, db, err := setup(cmd)
	if err != nil {
		return err
	}
	defer db.Close()
	ctx := cmd.Context()

	e, err := db.GetEvaluation(ctx, v.GetString("id"))
	if err != nil {
		return fmt.Errorf("load evaluation: %w", err)
	}
	cats, err := db.GetCategories(ctx)
	if err != nil {
		return fmt.Errorf("load categories: %w", err)
	}
	lctx := appI18n.WithLocalizer(ctx, appI18n.NewLocalizer(v.GetString("lang")))
	sheet := render.Build(e, cats, render.ModeFor(v.GetBool("answers")), appI18n.Labels(lctx))

	format := strings.ToLower(v.GetString("format"))
	var write func(io.Writer) error
	switch format {
	case "html":
		write = func(w io.Writer) error { return layout.Page(sheet).Render(lctx, w) }
	case "pdf":
		write = func(w io.Writer) error { return layout.WritePDF(w, sheet, layout.PDFOptions{}) }
	case "docx":
		opts := docx.Options{HonorScaffold: v.GetBool("honor-scaffold")}
		write = func(w io.Writer) error { return docx.Write(w, sheet, opts) }
	default:
		return fmt.Errorf("unknown format %q (want html, pdf or docx)", format)
	}

	outPath := v.GetString("output")
	if outPath == "" {
		outPath = model.ExportFilename(e.Title, "."+format)
	}
	if outPath == "-" {
		return write(os.Stdout)
	}
	f, err := os.Create(outPath)
	if err != nil {
		return fmt.Errorf("create output file: %w", err)
	}
	if err := write(f); err != nil {
		f.Close()
		return fmt.Errorf("render %s: %w", format, err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("close output file: %w", err)
	}
	slog.Info("rendered evaluation", "id", e.ID, "format", format, "mode", sheet.Mode, "path", outPath)
	return nil
}
