package cli

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/JonMunkholm/csvtable/internal/core"
)

var convertCmd = &cobra.Command{
	Use:   "convert IN OUT",
	Short: "Rewrite a file with another delimiter, encoding or column set",
	Long: `convert loads IN and writes it to OUT. Use "-" as OUT to write to stdout.
Output settings default to the profile and configuration; --out-* flags
override them.`,
	Example: `  csvtable convert -d , in.csv --out-delimiter ";" --out-encoding utf-8-bom out.csv
  csvtable convert in.csv - -x internal_note`,
	Args: exactArgs(2),
	RunE: runConvert,
}

var convertOpts struct {
	load loadFlags
	save saveFlags
}

var mergeCmd = &cobra.Command{
	Use:   "merge FILE...",
	Short: "Merge files on key columns",
	Long: `merge loads every FILE and merges them in order. Rows with the same key
are combined, later files winning for overlapping columns; rows with a new
key are appended. Without --key the profile key is used, and without any key
the rows are simply concatenated.`,
	Example: `  csvtable merge -k customer_id jan.csv feb.csv -o q1.csv`,
	Args:    minArgs(1),
	RunE:    runMerge,
}

var mergeOpts struct {
	load   loadFlags
	save   saveFlags
	output string
}

var parquetCmd = &cobra.Command{
	Use:     "parquet IN OUT",
	Short:   "Convert a file to Parquet",
	Example: `  csvtable parquet --infer-types orders.csv orders.parquet`,
	Args:    exactArgs(2),
	RunE:    runParquet,
}

var parquetOpts loadFlags

func init() {
	addLoadFlags(convertCmd, &convertOpts.load)
	addSaveFlags(convertCmd, &convertOpts.save)

	addLoadFlags(mergeCmd, &mergeOpts.load)
	addSaveFlags(mergeCmd, &mergeOpts.save)
	mergeCmd.Flags().StringVarP(&mergeOpts.output, "output", "o", "-", `Output file ("-" for stdout)`)

	addLoadFlags(parquetCmd, &parquetOpts)

	rootCmd.AddCommand(convertCmd, mergeCmd, parquetCmd)
}

func runConvert(cmd *cobra.Command, args []string) error {
	ctx := commandContext(cmd)
	svc, cleanup, err := newService(ctx, false)
	if err != nil {
		return err
	}
	defer cleanup()

	sum, err := svc.LoadFile(ctx, args[0], convertOpts.load.request(cmd))
	if err != nil {
		return err
	}
	return writeTable(ctx, cmd, svc, sum.Table.ID, convertOpts.save.request(cmd), args[1])
}

func runMerge(cmd *cobra.Command, args []string) error {
	ctx := commandContext(cmd)
	svc, cleanup, err := newService(ctx, false)
	if err != nil {
		return err
	}
	defer cleanup()

	req := mergeOpts.load.request(cmd)
	ids := make([]string, 0, len(args))
	for _, path := range args {
		sum, err := svc.LoadFile(ctx, path, req)
		if err != nil {
			return err
		}
		ids = append(ids, sum.Table.ID)
	}

	info, err := svc.Merge(ctx, ids, mergeOpts.load.key)
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.ErrOrStderr(), "%s %d files into %d rows\n", successStyle.Render("merged"), len(ids), info.Rows)
	return writeTable(ctx, cmd, svc, info.ID, mergeOpts.save.request(cmd), mergeOpts.output)
}

func runParquet(cmd *cobra.Command, args []string) error {
	ctx := commandContext(cmd)
	svc, cleanup, err := newService(ctx, false)
	if err != nil {
		return err
	}
	defer cleanup()

	sum, err := svc.LoadFile(ctx, args[0], parquetOpts.request(cmd))
	if err != nil {
		return err
	}
	info, err := svc.ExportParquet(ctx, sum.Table.ID, args[1])
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%s %d rows, %d columns to %s\n",
		successStyle.Render("wrote"), info.Rows, len(info.Columns), args[1])
	return nil
}

// writeTable exports a stored table to path, or to stdout for "-".
func writeTable(ctx context.Context, cmd *cobra.Command, svc *core.Service, id string, req core.SaveRequest, path string) (err error) {
	var w io.Writer = cmd.OutOrStdout()
	if path != "-" {
		f, err := os.Create(path)
		if err != nil {
			return err
		}
		defer func() {
			if cerr := f.Close(); err == nil {
				err = cerr
			}
		}()
		w = f
	}

	res, err := svc.Export(ctx, id, req, w)
	if err != nil {
		return err
	}
	if path != "-" {
		fmt.Fprintf(cmd.ErrOrStderr(), "%s %d lines to %s\n", successStyle.Render("wrote"), res.ProcessedRowCount, path)
	}
	return nil
}
