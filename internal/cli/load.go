package cli

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"
	ltable "github.com/charmbracelet/lipgloss/table"
	"github.com/spf13/cobra"

	"github.com/JonMunkholm/csvtable/internal/core"
	"github.com/JonMunkholm/csvtable/internal/table"
)

var loadCmd = &cobra.Command{
	Use:   "load FILE",
	Short: "Load a file and show a summary and preview",
	Example: `  csvtable load customers.csv
  csvtable load -d , -e windows-1252 --rows 5 export.txt`,
	Args: exactArgs(1),
	RunE: runLoad,
}

var loadOpts struct {
	loadFlags
	rows int
}

func init() {
	addLoadFlags(loadCmd, &loadOpts.loadFlags)
	loadCmd.Flags().IntVarP(&loadOpts.rows, "rows", "n", core.DefaultPreviewRows, "Preview rows to show")
	rootCmd.AddCommand(loadCmd)
}

func runLoad(cmd *cobra.Command, args []string) error {
	ctx := commandContext(cmd)
	svc, cleanup, err := newService(ctx, false)
	if err != nil {
		return err
	}
	defer cleanup()

	sum, err := svc.LoadFile(ctx, args[0], loadOpts.request(cmd))
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	printSummary(out, sum)
	if loadOpts.rows <= 0 {
		return nil
	}
	p, err := svc.Preview(sum.Table.ID, loadOpts.rows)
	if err != nil {
		return err
	}
	fmt.Fprintln(out, renderPreview(p))
	if p.Truncated {
		fmt.Fprintln(out, mutedStyle.Render(fmt.Sprintf("showing the first %d of %d rows", len(p.Rows), p.Info.Rows)))
	}
	return nil
}

func printSummary(w io.Writer, sum *core.LoadSummary) {
	fmt.Fprintf(w, "%s %s\n", titleStyle.Render("loaded"), sum.Table.Name)
	fmt.Fprintf(w, "  rows: %d, columns: %d\n", sum.Table.Rows, len(sum.Table.Columns))
	fmt.Fprintf(w, "  lines read: %d, processed: %d, bytes: %d, %d ms\n",
		sum.TotalRows, sum.ProcessedRows, sum.BytesRead, sum.DurationMs)
	if len(sum.Table.Key) > 0 {
		fmt.Fprintf(w, "  key: %s\n", strings.Join(sum.Table.Key, ", "))
	}
}

// renderPreview draws the preview as a bordered table. Typed columns show
// their type under the name.
func renderPreview(p *core.Preview) string {
	headers := make([]string, len(p.Info.Columns))
	for i, c := range p.Info.Columns {
		headers[i] = c.Name
		if c.Type != table.TypeString {
			headers[i] += "\n" + string(c.Type)
		}
	}

	t := ltable.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(mutedStyle).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == ltable.HeaderRow {
				return headerCellStyle
			}
			return cellStyle
		}).
		Headers(headers...).
		Rows(p.Rows...)
	return t.String()
}

// commandContext returns the command's context, or Background for commands
// invoked outside Execute.
func commandContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}
