package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/JonMunkholm/csvtable/internal/export"
)

var pgCmd = &cobra.Command{
	Use:   "pg FILE",
	Short: "Copy a file into a PostgreSQL table",
	Long: `pg loads FILE and copies its rows into a table of the database named by
DATABASE_URL. The table is created when missing, with column types taken
from the loaded table (see --infer-types). The copy runs in a single
transaction.`,
	Example: `  csvtable pg --infer-types -t staging.orders --truncate orders.csv`,
	Args:    exactArgs(1),
	RunE:    runPg,
}

var pgOpts struct {
	load     loadFlags
	table    string
	truncate bool
}

func init() {
	addLoadFlags(pgCmd, &pgOpts.load)
	pgCmd.Flags().StringVarP(&pgOpts.table, "table", "t", "", `Target table, "name" or "schema.name" (required)`)
	pgCmd.Flags().BoolVar(&pgOpts.truncate, "truncate", false, "Empty the target table first")
	pgCmd.MarkFlagRequired("table") //nolint:errcheck
	rootCmd.AddCommand(pgCmd)
}

func runPg(cmd *cobra.Command, args []string) error {
	target := export.Target{Table: pgOpts.table, Truncate: pgOpts.truncate}
	if _, err := target.Identifier(); err != nil {
		return fmt.Errorf("%w: %v", errUsage, err)
	}

	ctx := commandContext(cmd)
	svc, cleanup, err := newService(ctx, true)
	if err != nil {
		return err
	}
	defer cleanup()

	sum, err := svc.LoadFile(ctx, args[0], pgOpts.load.request(cmd))
	if err != nil {
		return err
	}
	n, err := svc.ExportPostgres(ctx, sum.Table.ID, target)
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%s %d rows into %s\n", successStyle.Render("copied"), n, target.Table)
	return nil
}
