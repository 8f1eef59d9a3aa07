package csv

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"runtime"
	"strings"

	"github.com/JonMunkholm/csvtable/internal/table"
)

// Newline terminates every line written by SaveWriter.
var Newline = platformNewline()

func platformNewline() string {
	if runtime.GOOS == "windows" {
		return "\r\n"
	}
	return "\n"
}

// SaveOptions configures Save. Start from DefaultSaveOptions.
type SaveOptions struct {
	HasColumns bool
	Delimiter  string
	Log        func(string)

	// ColumnRenamer maps column names to header text.
	ColumnRenamer func(string) string

	// ExcludeColumn drops a column from the output when it returns true.
	ExcludeColumn func(table.Column) bool
}

// DefaultSaveOptions returns options producing a ';'-separated output with
// a header line.
func DefaultSaveOptions() SaveOptions {
	return SaveOptions{
		HasColumns: true,
		Delimiter:  DefaultDelimiter,
	}
}

// SaveResult summarizes a write.
type SaveResult struct {
	Table    *table.Table
	FilePath string

	// TotalRowCount is the number of table rows.
	TotalRowCount int

	// ProcessedRowCount is the number of lines written, header included.
	ProcessedRowCount int
}

// Save renders t as delimited lines without line terminators. A value is
// quoted when it contains the delimiter or a quote. If every column is
// excluded the result is empty.
func Save(t *table.Table, opts SaveOptions) ([]string, error) {
	if opts.Delimiter == "" {
		return nil, ErrEmptyDelimiter
	}
	log := quietLog(opts.Log)
	rename := opts.ColumnRenamer
	if rename == nil {
		rename = func(s string) string { return s }
	}
	if t == nil {
		return nil, nil
	}

	var keep []int
	var header []string
	for i, c := range t.Columns() {
		if opts.ExcludeColumn != nil && opts.ExcludeColumn(c) {
			continue
		}
		keep = append(keep, i)
		header = append(header, quoteField(rename(c.Name), opts.Delimiter))
	}
	if len(keep) == 0 {
		log("no columns left for export, nothing written")
		return nil, nil
	}

	lines := make([]string, 0, t.Len()+1)
	if opts.HasColumns {
		lines = append(lines, strings.Join(header, opts.Delimiter))
	}

	cells := make([]string, len(keep))
	for _, r := range t.Rows() {
		for j, ci := range keep {
			cells[j] = quoteField(table.FormatValue(r[ci]), opts.Delimiter)
		}
		lines = append(lines, strings.Join(cells, opts.Delimiter))
	}

	log(fmt.Sprintf("export prepared '%d' lines from '%d' rows", len(lines), t.Len()))
	return lines, nil
}

// SaveWriter writes t to w: the encoding's preamble, then every line
// followed by Newline.
func SaveWriter(w io.Writer, t *table.Table, enc Encoding, opts SaveOptions) (*SaveResult, error) {
	lines, err := Save(t, opts)
	if err != nil {
		return nil, err
	}

	bw := bufio.NewWriter(w)
	if _, err := bw.Write(enc.Preamble()); err != nil {
		return nil, err
	}
	ew := enc.NewWriter(bw)
	for _, l := range lines {
		if _, err := io.WriteString(ew, l+Newline); err != nil {
			return nil, fmt.Errorf("write line: %w", err)
		}
	}
	if err := ew.Close(); err != nil {
		return nil, err
	}
	if err := bw.Flush(); err != nil {
		return nil, err
	}

	res := &SaveResult{
		Table:             t,
		FilePath:          VirtualName,
		ProcessedRowCount: len(lines),
	}
	if t != nil {
		res.TotalRowCount = t.Len()
	}
	return res, nil
}

// SaveFile writes t to the file at path, replacing it.
func SaveFile(path string, t *table.Table, enc Encoding, opts SaveOptions) (*SaveResult, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, err
	}

	res, err := SaveWriter(f, t, enc, opts)
	if closeErr := f.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		return nil, fmt.Errorf("save %s: %w", path, err)
	}
	res.FilePath = path
	return res, nil
}
