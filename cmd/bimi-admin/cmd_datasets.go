package main

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"text/tabwriter"

	"github.com/jrsteele09/bimi-admin/api"
	"github.com/jrsteele09/bimi-admin/datasets"
	"github.com/spf13/cobra"
)

var (
	listSearch string
	listStatus string
	listSort   string

	datasetTable       string
	datasetDescription string
	datasetFile        string

	reviewComment string

	columnType        string
	columnDescription string
)

// datasetsCmd groups the dataset management commands
var datasetsCmd = &cobra.Command{
	Use:     "datasets",
	Aliases: []string{"ds"},
	Short:   "List, upload and review datasets",
}

var datasetsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List datasets with optional search, status filter and sort",
	Args:  cobra.NoArgs,
	RunE:  runDatasetsList,
}

var datasetsGetCmd = &cobra.Command{
	Use:   "get <id>",
	Short: "Show one dataset",
	Args:  cobra.ExactArgs(1),
	RunE:  runDatasetsGet,
}

var datasetsUploadCmd = &cobra.Command{
	Use:   "upload <file>",
	Short: "Upload a dataset file (" + strings.Join(datasets.AcceptedExtensions, " ") + ")",
	Args:  cobra.ExactArgs(1),
	RunE:  runDatasetsUpload,
}

var datasetsUpdateCmd = &cobra.Command{
	Use:   "update <id>",
	Short: "Change a dataset's table name, description or file",
	Args:  cobra.ExactArgs(1),
	RunE:  runDatasetsUpdate,
}

var datasetsDeleteCmd = &cobra.Command{
	Use:   "delete <id>",
	Short: "Permanently delete a dataset",
	Args:  cobra.ExactArgs(1),
	RunE:  runDatasetsDelete,
}

var datasetsStatusCmd = &cobra.Command{
	Use:       "status <id> <approved|rejected>",
	Short:     "Approve or reject a dataset",
	Args:      cobra.ExactArgs(2),
	ValidArgs: []string{string(datasets.StatusApproved), string(datasets.StatusRejected)},
	RunE:      runDatasetsStatus,
}

var datasetsColumnsCmd = &cobra.Command{
	Use:   "columns <id>",
	Short: "List a dataset's column metadata",
	Args:  cobra.ExactArgs(1),
	RunE:  runDatasetsColumns,
}

var datasetsAddColumnCmd = &cobra.Command{
	Use:   "add-column <id> <name>",
	Short: "Add column metadata to a dataset",
	Args:  cobra.ExactArgs(2),
	RunE:  runDatasetsAddColumn,
}

func init() {
	datasetsListCmd.Flags().StringVarP(&listSearch, "search", "s", "", "Case-insensitive match on table name or description")
	datasetsListCmd.Flags().StringVar(&listStatus, "status", datasets.StatusAll, "all, pending, approved or rejected")
	datasetsListCmd.Flags().StringVar(&listSort, "sort", string(datasets.SortNewest), "newest, oldest or name")

	datasetsUploadCmd.Flags().StringVarP(&datasetTable, "table", "t", "", "Table name")
	datasetsUploadCmd.Flags().StringVarP(&datasetDescription, "description", "d", "", "Data description")

	datasetsUpdateCmd.Flags().StringVarP(&datasetTable, "table", "t", "", "New table name")
	datasetsUpdateCmd.Flags().StringVarP(&datasetDescription, "description", "d", "", "New data description")
	datasetsUpdateCmd.Flags().StringVarP(&datasetFile, "file", "f", "", "Replacement data file")

	datasetsStatusCmd.Flags().StringVarP(&reviewComment, "comment", "c", "", "Review comment")

	datasetsAddColumnCmd.Flags().StringVar(&columnType, "type", "", "Column data type")
	datasetsAddColumnCmd.Flags().StringVarP(&columnDescription, "description", "d", "", "Column description")

	datasetsCmd.AddCommand(datasetsListCmd)
	datasetsCmd.AddCommand(datasetsGetCmd)
	datasetsCmd.AddCommand(datasetsUploadCmd)
	datasetsCmd.AddCommand(datasetsUpdateCmd)
	datasetsCmd.AddCommand(datasetsDeleteCmd)
	datasetsCmd.AddCommand(datasetsStatusCmd)
	datasetsCmd.AddCommand(datasetsColumnsCmd)
	datasetsCmd.AddCommand(datasetsAddColumnCmd)
}

// failure turns an API error into the message the dashboard would show.
func failure(action string, err error) error {
	return fmt.Errorf("%s: %s", action, api.DetailOf(err))
}

func runDatasetsList(cmd *cobra.Command, args []string) error {
	a, err := openApp()
	if err != nil {
		return err
	}
	defer a.Close()

	all, err := a.Datasets.List(cmd.Context())
	if err != nil {
		return failure("list datasets", err)
	}
	q := datasets.Query{Search: listSearch, Status: listStatus, Sort: datasets.ParseSortOrder(listSort)}
	records := q.Apply(all)

	out := cmd.OutOrStdout()
	if len(records) == 0 {
		fmt.Fprintln(out, "No datasets found.")
		return nil
	}

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tTABLE\tSTATUS\tSIZE\tUPLOADED\tDESCRIPTION")
	for _, r := range records {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\n",
			r.ID, r.TableName, r.Status.Label(), orDash(r.SizeLabel()), uploadedAt(r), truncate(r.DataDescription, 60))
	}
	if err := w.Flush(); err != nil {
		return err
	}

	c := datasets.CountByStatus(all)
	fmt.Fprintf(out, "\n%d total, %d approved, %d pending, %d rejected\n", c.Total, c.Approved, c.Pending, c.Rejected)
	return nil
}

func runDatasetsGet(cmd *cobra.Command, args []string) error {
	a, err := openApp()
	if err != nil {
		return err
	}
	defer a.Close()

	r, err := a.Datasets.Get(cmd.Context(), args[0])
	if err != nil {
		return failure("get dataset", err)
	}
	printRecord(cmd.OutOrStdout(), r)
	return nil
}

func runDatasetsUpload(cmd *cobra.Command, args []string) error {
	a, err := openApp()
	if err != nil {
		return err
	}
	defer a.Close()

	f, err := os.Open(args[0])
	if err != nil {
		return err
	}
	defer f.Close()

	r, err := a.Datasets.Upload(cmd.Context(), datasets.Upload{
		FileName:        filepath.Base(args[0]),
		File:            f,
		TableName:       datasetTable,
		DataDescription: datasetDescription,
	})
	if err != nil {
		return failure("upload dataset", err)
	}
	fmt.Fprintln(cmd.OutOrStdout(), "Dataset uploaded successfully! The data is now available for the Bimi chatbot.")
	printRecord(cmd.OutOrStdout(), r)
	return nil
}

func runDatasetsUpdate(cmd *cobra.Command, args []string) error {
	a, err := openApp()
	if err != nil {
		return err
	}
	defer a.Close()

	patch := datasets.Patch{TableName: datasetTable, DataDescription: datasetDescription}
	if datasetFile != "" {
		f, err := os.Open(datasetFile)
		if err != nil {
			return err
		}
		defer f.Close()
		patch.File = f
		patch.FileName = filepath.Base(datasetFile)
	}

	r, err := a.Datasets.Update(cmd.Context(), args[0], patch)
	if err != nil {
		return failure("update dataset", err)
	}
	printRecord(cmd.OutOrStdout(), r)
	return nil
}

func runDatasetsDelete(cmd *cobra.Command, args []string) error {
	a, err := openApp()
	if err != nil {
		return err
	}
	defer a.Close()

	if err := a.Datasets.Delete(cmd.Context(), args[0]); err != nil {
		return failure("delete dataset", err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Dataset %s deleted.\n", args[0])
	return nil
}

func runDatasetsStatus(cmd *cobra.Command, args []string) error {
	a, err := openApp()
	if err != nil {
		return err
	}
	defer a.Close()

	if !a.Store.Session().Role().CanReview() {
		return fmt.Errorf("only admins can review datasets")
	}
	r, err := a.Datasets.SetStatus(cmd.Context(), args[0], datasets.Review{
		Status:  datasets.Status(strings.ToLower(args[1])),
		Comment: strings.TrimSpace(reviewComment),
	})
	if err != nil {
		return failure("review dataset", err)
	}
	printRecord(cmd.OutOrStdout(), r)
	return nil
}

func runDatasetsColumns(cmd *cobra.Command, args []string) error {
	a, err := openApp()
	if err != nil {
		return err
	}
	defer a.Close()

	cols, err := a.Datasets.Columns(cmd.Context(), args[0])
	if err != nil {
		return failure("list columns", err)
	}
	if len(cols) == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "No column metadata.")
		return nil
	}
	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
	defer w.Flush()
	fmt.Fprintln(w, "NAME\tTYPE\tDESCRIPTION")
	for _, c := range cols {
		fmt.Fprintf(w, "%s\t%s\t%s\n", c.Name, orDash(c.DataType), c.Description)
	}
	return nil
}

func runDatasetsAddColumn(cmd *cobra.Command, args []string) error {
	a, err := openApp()
	if err != nil {
		return err
	}
	defer a.Close()

	col, err := a.Datasets.AddColumn(cmd.Context(), args[0], datasets.Column{
		Name:        args[1],
		DataType:    columnType,
		Description: columnDescription,
	})
	if err != nil {
		return failure("add column", err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Column %s added.\n", col.Name)
	return nil
}

func printRecord(out io.Writer, r datasets.Record) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	defer w.Flush()
	fmt.Fprintf(w, "ID:\t%s\n", r.ID)
	fmt.Fprintf(w, "Table:\t%s\n", r.TableName)
	fmt.Fprintf(w, "Description:\t%s\n", r.DataDescription)
	fmt.Fprintf(w, "Status:\t%s\n", r.Status.Label())
	if r.ReviewComment != "" {
		fmt.Fprintf(w, "Review:\t%s\n", r.ReviewComment)
	}
	if r.FileName != "" {
		fmt.Fprintf(w, "File:\t%s %s\n", r.FileName, r.SizeLabel())
	}
	if r.UploadedBy != "" {
		fmt.Fprintf(w, "Uploaded by:\t%s\n", r.UploadedBy)
	}
	fmt.Fprintf(w, "Uploaded:\t%s\n", uploadedAt(r))
}

func uploadedAt(r datasets.Record) string {
	if r.CreatedAt.IsZero() {
		return "Unknown"
	}
	return r.CreatedAt.Local().Format("2006-01-02 15:04")
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

func truncate(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n-1]) + "…"
}
