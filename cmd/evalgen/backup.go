package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/evalgen/evalgen/internal/backup"
	appI18n "github.com/evalgen/evalgen/internal/i18n"
	"github.com/evalgen/evalgen/internal/model"
	"github.com/evalgen/evalgen/internal/transport"
)

func backupCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "backup",
		Short: "Export or restore a JSON snapshot of all evaluations and categories",
	}

	export := &cobra.Command{
		Use:   "export",
		Short: "Write a snapshot file",
		RunE:  runBackupExport,
	}
	export.Flags().StringP("output", "o", "", "Output file path (- for stdout, default: dated name in the current directory)")

	imp := &cobra.Command{
		Use:   "import",
		Short: "Replace all data with a snapshot file",
		RunE:  runBackupImport,
	}
	imp.Flags().String("file", "", "Snapshot file to restore (required)")
	imp.Flags().BoolP("yes", "y", false, "Restore without asking for confirmation")
	_ = imp.MarkFlagRequired("file")

	status := &cobra.Command{
		Use:   "status",
		Short: "Show the date of the last restored snapshot",
		RunE:  runBackupStatus,
	}

	cmd.AddCommand(export, imp, status)
	return cmd
}

func syncCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sync",
		Short: "Push, list or pull snapshots on Google Drive, GitHub or a B2 bucket",
	}
	pf := cmd.PersistentFlags()
	pf.StringP("target", "t", "drive", "Remote target (drive, github, bucket)")
	pf.String("token", "", "OAuth access token (drive) or personal access token (github)")
	pf.String("drive-folder", "", "Drive folder ID for uploads")
	pf.String("github-repo", "", "GitHub repository as owner/name")
	pf.String("github-branch", "main", "GitHub branch")
	pf.String("github-dir", "backups", "Directory holding snapshots in the repository")
	pf.String("b2-bucket", "", "B2 bucket name")
	pf.String("b2-prefix", "", "B2 object key prefix")
	pf.String("b2-key-id", "", "B2 application key ID")
	pf.String("b2-key", "", "B2 application key")

	push := &cobra.Command{Use: "push", Short: "Upload a snapshot of the database", RunE: runSyncPush}
	list := &cobra.Command{Use: "list", Short: "List remote snapshots, newest first", RunE: runSyncList}
	pull := &cobra.Command{Use: "pull", Short: "Download a remote snapshot and restore it", RunE: runSyncPull}
	pull.Flags().String("id", "", "Snapshot ID to restore (default: newest)")
	pull.Flags().BoolP("yes", "y", false, "Restore without asking for confirmation")

	cmd.AddCommand(push, list, pull)
	return cmd
}

func runBackupExport(cmd *cobra.Command, _ []string) error {
	v, db, err := setup(cmd)
	if err != nil {
		return err
	}
	defer db.Close()
	ctx := cmd.Context()

	outPath := v.GetString("output")
	if outPath == "" {
		path, err := backup.WriteFile(ctx, db, ".")
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), path)
		return nil
	}

	data, err := db.ExportFullBackup(ctx)
	if err != nil {
		return fmt.Errorf("export backup: %w", err)
	}
	var w io.Writer = cmd.OutOrStdout()
	if outPath != "-" {
		f, err := os.Create(outPath)
		if err != nil {
			return fmt.Errorf("create output file: %w", err)
		}
		defer f.Close()
		w = f
	}
	if err := backup.Encode(w, data); err != nil {
		return fmt.Errorf("write output: %w", err)
	}
	return nil
}

func runBackupImport(cmd *cobra.Command, _ []string) error {
	v, db, err := setup(cmd)
	if err != nil {
		return err
	}
	defer db.Close()

	data, err := backup.ReadFile(v.GetString("file"))
	if err != nil {
		return err
	}
	return restore(cmd, v, db, data)
}

func runBackupStatus(cmd *cobra.Command, _ []string) error {
	_, db, err := setup(cmd)
	if err != nil {
		return err
	}
	defer db.Close()

	exported, ok, err := db.LastRestore(cmd.Context())
	if err != nil {
		return err
	}
	if !ok {
		fmt.Fprintln(cmd.OutOrStdout(), "no snapshot restored yet")
		return nil
	}
	fmt.Fprintf(cmd.OutOrStdout(), "last restored snapshot exported %s\n", exported.Local().Format(time.DateTime))
	return nil
}

// restore asks for confirmation on the terminal unless --yes is set.
func restore(cmd *cobra.Command, v *viper.Viper, dst backup.Restorer, data model.BackupData) error {
	ctx := appI18n.WithLocalizer(cmd.Context(), appI18n.NewLocalizer(v.GetString("lang")))
	var confirm backup.Confirm
	if !v.GetBool("yes") {
		confirm = func(d model.BackupData) bool {
			msg := appI18n.Td(ctx, "RestoreWarning", map[string]any{
				"Date": d.Exported().Local().Format("02/01/2006 15:04"),
			})
			return askYesNo(cmd.InOrStdin(), cmd.ErrOrStderr(), msg)
		}
	}
	err := backup.Restore(ctx, dst, data, confirm)
	if errors.Is(err, backup.ErrAborted) {
		fmt.Fprintln(cmd.ErrOrStderr(), "restore cancelled")
		return nil
	}
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "restored %d evaluations and %d categories\n",
		len(data.Evaluations), len(data.Categories))
	return nil
}

func askYesNo(in io.Reader, out io.Writer, prompt string) bool {
	fmt.Fprintf(out, "%s [y/N] ", prompt)
	line, err := bufio.NewReader(in).ReadString('\n')
	if err != nil && line == "" {
		return false
	}
	switch strings.ToLower(strings.TrimSpace(line)) {
	case "y", "yes", "o", "oui":
		return true
	}
	return false
}

// remote builds the transport and credentials selected by the sync flags.
func remote(v *viper.Viper) (transport.Transport, transport.Credentials, error) {
	creds := transport.Credentials{
		Token: v.GetString("token"),
		KeyID: v.GetString("b2-key-id"),
		Key:   v.GetString("b2-key"),
	}
	switch strings.ToLower(v.GetString("target")) {
	case "drive":
		return &transport.Drive{FolderID: v.GetString("drive-folder")}, creds, nil
	case "github":
		return &transport.GitHub{
			Repo:   v.GetString("github-repo"),
			Branch: v.GetString("github-branch"),
			Dir:    v.GetString("github-dir"),
		}, creds, nil
	case "bucket":
		return &transport.Bucket{BucketName: v.GetString("b2-bucket"), Prefix: v.GetString("b2-prefix")}, creds, nil
	}
	return nil, creds, fmt.Errorf("unknown target %q (want drive, github or bucket)", v.GetString("target"))
}

func runSyncPush(cmd *cobra.Command, _ []string) error {
	v, db, err := setup(cmd)
	if err != nil {
		return err
	}
	defer db.Close()
	tr, creds, err := remote(v)
	if err != nil {
		return err
	}
	ctx := cmd.Context()

	data, err := db.ExportFullBackup(ctx)
	if err != nil {
		return fmt.Errorf("export backup: %w", err)
	}
	loc, err := tr.Upload(ctx, creds, data)
	if err != nil {
		logTransportError(err)
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), loc)
	return nil
}

func runSyncList(cmd *cobra.Command, _ []string) error {
	v, db, err := setup(cmd)
	if err != nil {
		return err
	}
	db.Close()
	tr, creds, err := remote(v)
	if err != nil {
		return err
	}

	entries, err := tr.List(cmd.Context(), creds)
	if err != nil {
		logTransportError(err)
		return err
	}
	tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tNAME\tCREATED")
	for _, e := range entries {
		created := "-"
		if !e.CreatedTime.IsZero() {
			created = e.CreatedTime.Local().Format(time.DateTime)
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\n", e.ID, e.Name, created)
	}
	return tw.Flush()
}

func runSyncPull(cmd *cobra.Command, _ []string) error {
	v, db, err := setup(cmd)
	if err != nil {
		return err
	}
	defer db.Close()
	tr, creds, err := remote(v)
	if err != nil {
		return err
	}
	ctx := cmd.Context()

	id := v.GetString("id")
	if id == "" {
		id, err = newest(ctx, tr, creds)
		if err != nil {
			return err
		}
	}
	data, err := tr.Download(ctx, creds, id)
	if err != nil {
		logTransportError(err)
		return err
	}
	slog.Info("snapshot downloaded", "target", tr.Name(), "id", id)
	return restore(cmd, v, db, data)
}

func newest(ctx context.Context, tr transport.Transport, creds transport.Credentials) (string, error) {
	entries, err := tr.List(ctx, creds)
	if err != nil {
		logTransportError(err)
		return "", err
	}
	if len(entries) == 0 {
		return "", fmt.Errorf("no snapshot found on %s", tr.Name())
	}
	return entries[0].ID, nil
}

// logTransportError records the cause that the error message leaves out.
func logTransportError(err error) {
	var terr *model.TransportError
	if errors.As(err, &terr) {
		slog.Error("transport failed", "target", terr.Target, "op", terr.Op, "cause", terr.Err)
	}
}
