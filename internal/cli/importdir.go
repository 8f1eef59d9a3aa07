package cli

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/JonMunkholm/csvtable/internal/core"
)

var importDirCmd = &cobra.Command{
	Use:   "import-dir DIR",
	Short: "Load every CSV file of a directory with a profile",
	Long: `import-dir loads each .csv file in DIR using the profile's rules. Rows the
profile excludes are written to "<file> - failed.csv" next to the input, and
each loaded file is moved to DIR/` + core.UploadedDir + `. The loaded tables are
merged on the profile key; --output writes the merged table.`,
	Example: `  csvtable import-dir -p customers ./incoming -o customers.csv`,
	Args:    exactArgs(1),
	RunE:    runImportDir,
}

var importDirOpts struct {
	save   saveFlags
	output string
}

func init() {
	addSaveFlags(importDirCmd, &importDirOpts.save)
	importDirCmd.Flags().StringVarP(&importDirOpts.output, "output", "o", "", `Write the merged table ("-" for stdout)`)
	rootCmd.AddCommand(importDirCmd)
}

func runImportDir(cmd *cobra.Command, args []string) error {
	ctx := commandContext(cmd)
	svc, cleanup, err := newService(ctx, false)
	if err != nil {
		return err
	}
	defer cleanup()

	res, err := svc.ImportDirectory(ctx, args[0], globalFlags.profile)
	if err != nil {
		return err
	}

	printImport(cmd.ErrOrStderr(), res)
	if res.Table == nil || importDirOpts.output == "" {
		return nil
	}
	return writeTable(ctx, cmd, svc, res.Table.ID, importDirOpts.save.request(cmd), importDirOpts.output)
}

func printImport(w io.Writer, res *core.ImportResult) {
	fmt.Fprintf(w, "%s %s\n", titleStyle.Render("import"), res.Dir)
	if len(res.Files) == 0 {
		fmt.Fprintln(w, mutedStyle.Render("  no files to import"))
		return
	}
	for _, f := range res.Files {
		switch {
		case f.Error != "":
			fmt.Fprintf(w, "  %s %s: %s\n", errorStyle.Render("failed"), f.File, f.Error)
		case f.FailedRows > 0:
			fmt.Fprintf(w, "  %s %s: %d rows, %d excluded (see %s)\n",
				warningStyle.Render("loaded"), f.File, f.ProcessedRows, f.FailedRows, f.FailedFile)
		default:
			fmt.Fprintf(w, "  %s %s: %d rows\n", successStyle.Render("loaded"), f.File, f.ProcessedRows)
		}
	}
	if res.Table != nil {
		fmt.Fprintf(w, "  merged: %d rows, %d columns\n", res.Table.Rows, len(res.Table.Columns))
	}
}
