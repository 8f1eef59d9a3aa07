package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/JonMunkholm/csvtable/internal/core"
)

// loadFlags are the read options shared by every command that loads files.
type loadFlags struct {
	delimiter  string
	encoding   string
	noHeader   bool
	key        []string
	inferTypes bool
	workers    int
}

func addLoadFlags(cmd *cobra.Command, f *loadFlags) {
	fs := cmd.Flags()
	fs.StringVarP(&f.delimiter, "delimiter", "d", "", `Field delimiter ("\t" for tab)`)
	fs.StringVarP(&f.encoding, "encoding", "e", "", "Text encoding of the input")
	fs.BoolVar(&f.noHeader, "no-header", false, "The first line is data, not column names")
	fs.StringSliceVarP(&f.key, "key", "k", nil, "Key columns")
	fs.BoolVar(&f.inferTypes, "infer-types", false, "Detect int, float, bool and date columns")
	fs.IntVar(&f.workers, "workers", 0, "Parallel row workers")
}

// request builds a load request. Only flags given on the command line
// override the profile and configuration.
func (f *loadFlags) request(cmd *cobra.Command) core.LoadRequest {
	req := core.LoadRequest{
		Profile:   globalFlags.profile,
		Delimiter: f.delimiter,
		Encoding:  f.encoding,
		Key:       f.key,
		Workers:   f.workers,
	}
	if cmd.Flags().Changed("no-header") {
		hasColumns := !f.noHeader
		req.HasColumns = &hasColumns
	}
	if cmd.Flags().Changed("infer-types") {
		req.InferTypes = &f.inferTypes
	}
	return req
}

// saveFlags are the write options of commands producing delimited text.
type saveFlags struct {
	delimiter string
	encoding  string
	noHeader  bool
	exclude   []string
}

func addSaveFlags(cmd *cobra.Command, f *saveFlags) {
	fs := cmd.Flags()
	fs.StringVar(&f.delimiter, "out-delimiter", "", "Output field delimiter (default: input settings)")
	fs.StringVar(&f.encoding, "out-encoding", "", "Output text encoding")
	fs.BoolVar(&f.noHeader, "out-no-header", false, "Omit the header line")
	fs.StringSliceVarP(&f.exclude, "exclude", "x", nil, "Columns to leave out")
}

func (f *saveFlags) request(cmd *cobra.Command) core.SaveRequest {
	req := core.SaveRequest{
		Profile:   globalFlags.profile,
		Delimiter: f.delimiter,
		Encoding:  f.encoding,
		Exclude:   f.exclude,
	}
	if cmd.Flags().Changed("out-no-header") {
		hasColumns := !f.noHeader
		req.HasColumns = &hasColumns
	}
	return req
}

// exactArgs is cobra.ExactArgs reporting a usage error.
func exactArgs(n int) cobra.PositionalArgs {
	return func(cmd *cobra.Command, args []string) error {
		if len(args) != n {
			return fmt.Errorf("%w: %s takes %d argument(s), got %d", errUsage, cmd.Name(), n, len(args))
		}
		return nil
	}
}

func minArgs(n int) cobra.PositionalArgs {
	return func(cmd *cobra.Command, args []string) error {
		if len(args) < n {
			return fmt.Errorf("%w: %s takes at least %d argument(s), got %d", errUsage, cmd.Name(), n, len(args))
		}
		return nil
	}
}
