package main

import (
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	appI18n "github.com/evalgen/evalgen/internal/i18n"
	"github.com/evalgen/evalgen/internal/model"
)

func categoryCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "category",
		Short: "Manage categories",
	}
	list := &cobra.Command{Use: "list", Short: "List categories", RunE: runCategoryList}
	add := &cobra.Command{Use: "add", Short: "Add a category", RunE: runCategoryAdd}
	add.Flags().String("name", "", "Category name (required)")
	add.Flags().String("color", "#3b82f6", "Banner color as #rrggbb")
	_ = add.MarkFlagRequired("name")
	del := &cobra.Command{
		Use:   "delete ID",
		Short: "Delete a category; its evaluations are kept",
		Args:  cobra.ExactArgs(1),
		RunE:  runCategoryDelete,
	}
	cmd.AddCommand(list, add, del)
	return cmd
}

func evalCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "eval",
		Short: "List or delete evaluations",
	}
	list := &cobra.Command{Use: "list", Short: "List evaluations, newest first", RunE: runEvalList}
	del := &cobra.Command{
		Use:   "delete ID",
		Short: "Delete an evaluation",
		Args:  cobra.ExactArgs(1),
		RunE:  runEvalDelete,
	}
	cmd.AddCommand(list, del)
	return cmd
}

func runCategoryList(cmd *cobra.Command, _ []string) error {
	_, db, err := setup(cmd)
	if err != nil {
		return err
	}
	defer db.Close()

	cats, err := db.GetCategories(cmd.Context())
	if err != nil {
		return err
	}
	tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tNAME\tCOLOR")
	for _, c := range cats {
		fmt.Fprintf(tw, "%s\t%s\t%s\n", c.ID, c.Name, c.Color)
	}
	return tw.Flush()
}

func runCategoryAdd(cmd *cobra.Command, _ []string) error {
	v, db, err := setup(cmd)
	if err != nil {
		return err
	}
	defer db.Close()

	c := model.NewCategory(v.GetString("name"), v.GetString("color"))
	if err := db.SaveCategory(cmd.Context(), c); err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), c.ID)
	return nil
}

func runCategoryDelete(cmd *cobra.Command, args []string) error {
	_, db, err := setup(cmd)
	if err != nil {
		return err
	}
	defer db.Close()
	return db.DeleteCategory(cmd.Context(), args[0])
}

func runEvalList(cmd *cobra.Command, _ []string) error {
	v, db, err := setup(cmd)
	if err != nil {
		return err
	}
	defer db.Close()
	ctx := appI18n.WithLocalizer(cmd.Context(), appI18n.NewLocalizer(v.GetString("lang")))

	evals, err := db.GetEvaluations(ctx)
	if err != nil {
		return err
	}
	cats, err := db.GetCategories(ctx)
	if err != nil {
		return err
	}
	labels := appI18n.Labels(ctx)
	tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tCREATED\tCATEGORY\tTITLE\tQUESTIONS\tPOINTS")
	for _, e := range evals {
		category := labels.General
		if c := model.FindCategory(cats, e.CategoryID); c != nil {
			category = c.Name
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%d/%d\n",
			e.ID, e.Created().Local().Format(time.DateOnly), category, e.Title,
			appI18n.Tp(ctx, "QuestionCount", len(e.Questions)), e.QuestionPoints(), e.TotalPoints)
	}
	return tw.Flush()
}

func runEvalDelete(cmd *cobra.Command, args []string) error {
	_, db, err := setup(cmd)
	if err != nil {
		return err
	}
	defer db.Close()
	return db.DeleteEvaluation(cmd.Context(), args[0])
}
