package core

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/JonMunkholm/csvtable/internal/config"
	"github.com/JonMunkholm/csvtable/internal/csv"
	"github.com/JonMunkholm/csvtable/internal/table"
)

// LoadOptions layers the CSV configuration, a profile and a request into
// loader options. Later layers win. The returned options carry per-load
// state and must not be shared by concurrent loads.
func LoadOptions(cfg config.CSVConfig, p config.Profile, req LoadRequest) (csv.LoadOptions, csv.Encoding, error) {
	opts := csv.DefaultLoadOptions()
	opts.Delimiter = cfg.DelimiterValue()
	opts.HasColumns = cfg.HasColumns
	opts.CountBlankLines = cfg.CountBlankLines
	opts.InferTypes = cfg.InferTypes
	opts.Workers = cfg.Workers
	encName := cfg.Encoding

	// Profile.
	if p.Delimiter != "" {
		opts.Delimiter = config.ExpandDelimiter(p.Delimiter)
	}
	if p.Encoding != "" {
		encName = p.Encoding
	}
	if p.HasColumns != nil {
		opts.HasColumns = *p.HasColumns
	}
	if p.InferTypes {
		opts.InferTypes = true
	}
	if p.Workers > 0 {
		opts.Workers = p.Workers
	}
	opts.Key = normalizeNames(p.Key)
	applyProfileRules(&opts, p)

	// Request.
	if req.Delimiter != "" {
		opts.Delimiter = config.ExpandDelimiter(req.Delimiter)
	}
	if req.Encoding != "" {
		encName = req.Encoding
	}
	if req.HasColumns != nil {
		opts.HasColumns = *req.HasColumns
	}
	if req.InferTypes != nil {
		opts.InferTypes = *req.InferTypes
	}
	if req.Workers > 0 {
		opts.Workers = req.Workers
	}
	if len(req.Key) > 0 {
		opts.Key = normalizeNames(req.Key)
	}

	enc, err := csv.LookupEncoding(encName)
	if err != nil {
		return csv.LoadOptions{}, csv.Encoding{}, err
	}
	return opts, enc, nil
}

// SaveOptions layers the CSV configuration, a profile and a request into
// writer options.
func SaveOptions(cfg config.CSVConfig, p config.Profile, req SaveRequest) (csv.SaveOptions, csv.Encoding, error) {
	opts := csv.DefaultSaveOptions()
	opts.Delimiter = cfg.DelimiterValue()
	opts.HasColumns = cfg.HasColumns
	encName := cfg.Encoding
	exclude := append([]string(nil), p.Exclude...)

	if p.Delimiter != "" {
		opts.Delimiter = config.ExpandDelimiter(p.Delimiter)
	}
	if p.Encoding != "" {
		encName = p.Encoding
	}
	if p.HasColumns != nil {
		opts.HasColumns = *p.HasColumns
	}

	if req.Delimiter != "" {
		opts.Delimiter = config.ExpandDelimiter(req.Delimiter)
	}
	if req.Encoding != "" {
		encName = req.Encoding
	}
	if req.HasColumns != nil {
		opts.HasColumns = *req.HasColumns
	}
	exclude = append(exclude, req.Exclude...)

	if len(exclude) > 0 {
		drop := make(map[string]bool, len(exclude))
		for _, name := range exclude {
			drop[normalizeName(name)] = true
		}
		opts.ExcludeColumn = func(c table.Column) bool { return drop[c.Name] }
	}

	enc, err := csv.LookupEncoding(encName)
	if err != nil {
		return csv.SaveOptions{}, csv.Encoding{}, err
	}
	return opts, enc, nil
}

// applyProfileRules turns the column rules of a profile into loader
// callbacks. Row callbacks only see cells, so the table validator records
// the positions of the named columns for them.
func applyProfileRules(opts *csv.LoadOptions, p config.Profile) {
	if len(p.Rename) > 0 {
		rename := make(map[string]string, len(p.Rename))
		for from, to := range p.Rename {
			rename[normalizeName(from)] = normalizeName(to)
		}
		opts.ColumnRenamer = func(name string) string {
			if to, ok := rename[name]; ok {
				return to
			}
			return name
		}
	}

	if len(p.Required) == 0 && len(p.SkipEmpty) == 0 && len(p.RejectEmpty) == 0 {
		return
	}

	var skipPos, rejectPos []int
	var rejectNames []string

	opts.TableValidator = func(t *table.Table) error {
		var missing []string
		for _, name := range p.Required {
			if !t.HasColumn(normalizeName(name)) {
				missing = append(missing, normalizeName(name))
			}
		}
		if len(missing) > 0 {
			return fmt.Errorf("missing required %s: %s", pluralColumns(len(missing)), strings.Join(missing, ", "))
		}

		skipPos = positions(t, p.SkipEmpty)
		rejectPos, rejectNames = nil, nil
		for _, name := range p.RejectEmpty {
			if i := t.ColumnIndex(normalizeName(name)); i >= 0 {
				rejectPos = append(rejectPos, i)
				rejectNames = append(rejectNames, normalizeName(name))
			}
		}
		return nil
	}

	if len(p.SkipEmpty) > 0 {
		opts.RowFilter = func(r table.Row) bool {
			for _, i := range skipPos {
				if isEmpty(r[i]) {
					return true
				}
			}
			return false
		}
	}

	if len(p.RejectEmpty) > 0 {
		opts.RowValidator = func(r table.Row) error {
			for k, i := range rejectPos {
				if isEmpty(r[i]) {
					return fmt.Errorf("empty value in column %s", rejectNames[k])
				}
			}
			return nil
		}
	}
}

// ErrColumnType is returned when a cell does not parse as the type its
// profile declares.
var ErrColumnType = errors.New("column type mismatch")

// ApplyTypes converts the columns typed by the profile. Columns missing
// from t are skipped; Required covers presence.
func ApplyTypes(t *table.Table, p config.Profile) error {
	names := make([]string, 0, len(p.Types))
	for name := range p.Types {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		col := normalizeName(name)
		if !t.HasColumn(col) {
			continue
		}
		typ := table.ValueType(normalizeName(p.Types[name]))
		if err := t.ConvertColumn(col, typ); err != nil {
			return fmt.Errorf("%w: %w", ErrColumnType, err)
		}
	}
	return nil
}

func positions(t *table.Table, names []string) []int {
	var out []int
	for _, name := range names {
		if i := t.ColumnIndex(normalizeName(name)); i >= 0 {
			out = append(out, i)
		}
	}
	return out
}

func isEmpty(v any) bool {
	return strings.TrimSpace(table.FormatValue(v)) == ""
}

func normalizeNames(names []string) []string {
	if len(names) == 0 {
		return nil
	}
	out := make([]string, len(names))
	for i, n := range names {
		out[i] = normalizeName(n)
	}
	return out
}

// normalizeName matches the loader's header normalization.
func normalizeName(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

func pluralColumns(n int) string {
	if n == 1 {
		return "column"
	}
	return "columns"
}
