package csv

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/JonMunkholm/csvtable/internal/table"
)

const (
	// VirtualName is the table name and file path of tables not loaded
	// from a file.
	VirtualName = "{virtual}"

	// DefaultDelimiter separates fields when no delimiter is configured.
	DefaultDelimiter = ";"

	// defaultColumnName replaces blank header names.
	defaultColumnName = "column"
)

// ContextCheckInterval is how many rows are processed between context
// cancellation checks. Values below 1 are treated as 1.
var ContextCheckInterval = 100

var (
	ErrNoRows         = errors.New("no rows")
	ErrEmptyDelimiter = errors.New("delimiter is empty")
	ErrFileNotFound   = errors.New("file not found")
	ErrRowRejected    = errors.New("row rejected")
)

// LoadError reports a load failure together with the input line being
// processed. Line is the 0-based index into the supplied lines, or -1 when
// the failure is not tied to a line.
type LoadError struct {
	Line int
	Text string
	Err  error
}

func (e *LoadError) Error() string {
	if e.Line < 0 {
		return fmt.Sprintf("csv: data read error: %v", e.Err)
	}
	return fmt.Sprintf("csv: data read error at line %d %q: %v", e.Line, e.Text, e.Err)
}

func (e *LoadError) Unwrap() error { return e.Err }

// LoadOptions configures Load. Start from DefaultLoadOptions.
type LoadOptions struct {
	// TableName names the resulting table. Empty means VirtualName, or the
	// file's base name for LoadFile.
	TableName string
	FilePath  string

	// HasColumns treats the first non-blank line as the header.
	HasColumns bool
	Delimiter  string

	// Log receives verbose progress messages.
	Log func(string)

	// ColumnRenamer is applied to each lower-cased, trimmed header name.
	ColumnRenamer func(string) string

	// TableValidator runs after the columns are defined. An error aborts
	// the load.
	TableValidator func(*table.Table) error

	// RowFilter excludes a row when it returns true. Excluded rows are
	// logged and skipped.
	RowFilter func(table.Row) bool

	// RowValidator aborts the load when it returns an error. It runs before
	// RowFilter.
	RowValidator func(table.Row) error

	// CountBlankLines makes TotalRowCount include blank lines.
	CountBlankLines bool

	// Workers > 1 splits and validates rows concurrently. Row order is
	// preserved.
	Workers int

	// InferTypes retypes text columns whose values all parse as a
	// narrower type.
	InferTypes bool

	// Key designates key columns on the loaded table.
	Key []string
}

// DefaultLoadOptions returns options for a ';'-separated input with a
// header line.
func DefaultLoadOptions() LoadOptions {
	return LoadOptions{
		HasColumns:      true,
		Delimiter:       DefaultDelimiter,
		CountBlankLines: true,
	}
}

// LoadResult is the outcome of a successful load.
type LoadResult struct {
	Table    *table.Table
	FilePath string

	// TotalRowCount is the number of input lines considered.
	TotalRowCount int

	// ProcessedRowCount is the number of rows kept plus one for the header.
	ProcessedRowCount int

	// BytesRead is set by LoadFile and LoadReader.
	BytesRead int64
}

type numberedLine struct {
	index int
	text  string
}

type rowOutcome struct {
	row      table.Row
	excluded bool
	err      error
}

// Load builds a table from lines.
func Load(ctx context.Context, lines []string, opts LoadOptions) (*LoadResult, error) {
	if opts.Delimiter == "" {
		return nil, ErrEmptyDelimiter
	}
	opts = opts.withDefaults()
	log := opts.Log

	log(fmt.Sprintf("start load. Total lines in lines array: '%d'", len(lines)))

	res := &LoadResult{
		Table:    table.New(opts.TableName),
		FilePath: opts.FilePath,
	}
	defer func() {
		log(fmt.Sprintf("import end. Imported '%d' from '%d' rows.", res.Table.Len(), res.TotalRowCount))
	}()

	retained := make([]numberedLine, 0, len(lines))
	for i, l := range lines {
		if strings.TrimSpace(l) != "" {
			retained = append(retained, numberedLine{index: i, text: l})
		}
	}
	if opts.CountBlankLines {
		res.TotalRowCount = len(lines)
	} else {
		res.TotalRowCount = len(retained)
	}
	if len(retained) == 0 {
		return nil, &LoadError{Line: -1, Err: ErrNoRows}
	}

	fields, err := splitAll(ctx, retained, opts)
	if err != nil {
		return nil, err
	}

	head := retained[0]
	if err := guard(func() error { return defineColumns(res.Table, fields[0], opts) }); err != nil {
		return nil, &LoadError{Line: head.index, Text: head.text, Err: err}
	}
	log(fmt.Sprintf("columns: %s", strings.Join(res.Table.ColumnNames(), ", ")))

	first := 0
	if opts.HasColumns {
		first = 1
	}

	outcomes, err := evaluateRows(ctx, retained[first:], fields[first:], res.Table.ColumnCount(), opts)
	if err != nil {
		return nil, err
	}

	for i, o := range outcomes {
		src := retained[first+i]
		switch {
		case o.err != nil:
			return nil, &LoadError{Line: src.index, Text: src.text, Err: o.err}
		case o.excluded:
			log(fmt.Sprintf("row excluded by filter on line %d: '%s'", src.index, src.text))
		default:
			if err := res.Table.AppendRow(o.row); err != nil {
				return nil, &LoadError{Line: src.index, Text: src.text, Err: err}
			}
		}
	}

	res.ProcessedRowCount = res.Table.Len()
	if opts.HasColumns {
		res.ProcessedRowCount++
	}

	if opts.InferTypes {
		if err := res.Table.InferColumnTypes(); err != nil {
			return nil, &LoadError{Line: -1, Err: err}
		}
	}

	return res, nil
}

// LoadFile loads a table from a file decoded with enc. The table name
// defaults to the file's base name.
func LoadFile(ctx context.Context, path string, enc Encoding, opts LoadOptions) (*LoadResult, error) {
	log := quietLog(opts.Log)

	if _, err := os.Stat(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrFileNotFound, path)
		}
		return nil, err
	}
	log(fmt.Sprintf("file '%s' exists", path))

	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	if opts.TableName == "" {
		opts.TableName = filepath.Base(path)
	}
	opts.FilePath = path
	return LoadReader(ctx, f, enc, opts)
}

// LoadReader loads a table from r decoded with enc.
func LoadReader(ctx context.Context, r io.Reader, enc Encoding, opts LoadOptions) (*LoadResult, error) {
	log := quietLog(opts.Log)

	counter := &countingReader{r: r}
	lines, err := ReadLines(enc.NewReader(counter))
	if err != nil {
		return nil, fmt.Errorf("read lines: %w", err)
	}
	log(fmt.Sprintf("total lines read: '%d' (%d bytes, %s)", len(lines), counter.n, enc))

	opts.Log = func(msg string) { log("load from lines: " + msg) }
	res, err := Load(ctx, lines, opts)
	if err != nil {
		return nil, err
	}
	res.BytesRead = counter.n
	return res, nil
}

// ReadLines splits r into lines. "\n", "\r\n" and "\r" all end a line, and
// a final line terminator does not produce an empty trailing line.
func ReadLines(r io.Reader) ([]string, error) {
	br := bufio.NewReader(r)
	var (
		lines []string
		cur   strings.Builder
	)
	for {
		c, _, err := br.ReadRune()
		if err == io.EOF {
			if cur.Len() > 0 {
				lines = append(lines, cur.String())
			}
			return lines, nil
		}
		if err != nil {
			return nil, err
		}

		switch c {
		case '\r':
			if next, _, err := br.ReadRune(); err == nil && next != '\n' {
				_ = br.UnreadRune()
			}
			fallthrough
		case '\n':
			lines = append(lines, cur.String())
			cur.Reset()
		default:
			cur.WriteRune(c)
		}
	}
}

func (o LoadOptions) withDefaults() LoadOptions {
	if o.TableName == "" {
		o.TableName = VirtualName
	}
	if o.FilePath == "" {
		o.FilePath = VirtualName
	}
	o.Log = quietLog(o.Log)
	if o.ColumnRenamer == nil {
		o.ColumnRenamer = func(s string) string { return s }
	}
	return o
}

// defineColumns creates the table columns from the first line's fields,
// validates the table and applies the key.
func defineColumns(t *table.Table, first []string, opts LoadOptions) error {
	var names []string
	if opts.HasColumns {
		names = headerNames(first, opts.ColumnRenamer)
	} else {
		names = make([]string, len(first))
		for i := range first {
			names[i] = defaultColumnName + "_" + strconv.Itoa(i)
		}
	}

	for _, n := range names {
		if err := t.AddColumn(n, table.TypeString); err != nil {
			return err
		}
	}
	if len(opts.Key) > 0 {
		if err := t.SetKey(opts.Key...); err != nil {
			return err
		}
	}
	if opts.TableValidator != nil {
		if err := opts.TableValidator(t); err != nil {
			return fmt.Errorf("table validation: %w", err)
		}
	}
	return nil
}

// headerNames normalizes header fields. Names occurring more than once get
// their position appended: "a;a" becomes a_0, a_1.
func headerNames(fields []string, rename func(string) string) []string {
	names := make([]string, len(fields))
	counts := make(map[string]int, len(fields))
	for i, f := range fields {
		n := rename(strings.TrimSpace(strings.ToLower(f)))
		if strings.TrimSpace(n) == "" {
			n = defaultColumnName
		}
		names[i] = n
		counts[n]++
	}
	for i, n := range names {
		if counts[n] > 1 {
			names[i] = n + "_" + strconv.Itoa(i)
		}
	}
	return names
}

func splitAll(ctx context.Context, lines []numberedLine, opts LoadOptions) ([][]string, error) {
	fields := make([][]string, len(lines))
	err := forEach(ctx, len(lines), opts.Workers, func(i int) error {
		fields[i] = SplitFields(lines[i].text, opts.Delimiter)
		return nil
	})
	if err != nil {
		return nil, &LoadError{Line: -1, Err: err}
	}
	return fields, nil
}

func evaluateRows(ctx context.Context, lines []numberedLine, fields [][]string, width int, opts LoadOptions) ([]rowOutcome, error) {
	outcomes := make([]rowOutcome, len(lines))
	err := forEach(ctx, len(lines), opts.Workers, func(i int) error {
		outcomes[i] = evaluateRow(fields[i], width, opts)
		return nil
	})
	if err != nil {
		return nil, &LoadError{Line: -1, Err: err}
	}
	return outcomes, nil
}

func evaluateRow(fields []string, width int, opts LoadOptions) (o rowOutcome) {
	row := make(table.Row, width)
	for i := range row {
		if i < len(fields) {
			row[i] = fields[i]
		} else {
			row[i] = ""
		}
	}
	o.row = row

	o.err = guard(func() error {
		if opts.RowValidator != nil {
			if err := opts.RowValidator(row); err != nil {
				return fmt.Errorf("%w: %w", ErrRowRejected, err)
			}
		}
		if opts.RowFilter != nil {
			o.excluded = opts.RowFilter(row)
		}
		return nil
	})
	return o
}

// quietLog wraps a verbose sink so that a panicking sink is ignored.
func quietLog(fn func(string)) func(string) {
	if fn == nil {
		return func(string) {}
	}
	return func(msg string) {
		defer func() { _ = recover() }()
		fn(msg)
	}
}

// guard runs fn, turning a panic into an error.
func guard(fn func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return fn()
}

// forEach calls fn for 0..n-1, checking ctx every ContextCheckInterval
// items. With workers > 1 the range is split into contiguous chunks
// processed concurrently.
func forEach(ctx context.Context, n, workers int, fn func(i int) error) error {
	if workers <= 1 || n < 2*checkInterval() {
		return runRange(ctx, 0, n, fn)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	chunk := (n + workers - 1) / workers
	for lo := 0; lo < n; lo += chunk {
		lo, hi := lo, min(lo+chunk, n)
		g.Go(func() error {
			return runRange(gctx, lo, hi, fn)
		})
	}
	return g.Wait()
}

func runRange(ctx context.Context, lo, hi int, fn func(i int) error) error {
	every := checkInterval()
	for i := lo; i < hi; i++ {
		if (i-lo)%every == 0 {
			if err := ctx.Err(); err != nil {
				return err
			}
		}
		if err := fn(i); err != nil {
			return err
		}
	}
	return nil
}

func checkInterval() int {
	return max(ContextCheckInterval, 1)
}
