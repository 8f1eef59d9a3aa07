package table

import "errors"

// ErrNoTables is returned by Merge when it is given a nil table list.
var ErrNoTables = errors.New("no tables to merge")

// Merge outer-joins tables into a new table unioned on column name.
//
// Columns appear in first-seen order. A column name declared with more than
// one type across the inputs is widened to TypeString and its values are
// rendered with FormatValue; otherwise the declared type is kept.
//
// Key columns that exist in the merged schema become the result key. Rows
// whose key tuple is already present are coalesced into the existing row:
// every column the source table carries overwrites the stored cell, so the
// last table wins on overlapping non-key columns. Rows with a new key tuple,
// rows with a nil key cell, rows from a table lacking a key column and all
// rows when no key is set are appended. Inputs are never modified.
func Merge(tables []*Table, keyColumns []string) (*Table, error) {
	if tables == nil {
		return nil, ErrNoTables
	}

	result := New("")

	// Union of columns, widening conflicting types.
	var order []string
	types := make(map[string]ValueType)
	for _, t := range tables {
		if t == nil {
			continue
		}
		for _, c := range t.columns {
			prev, seen := types[c.Name]
			switch {
			case !seen:
				order = append(order, c.Name)
				types[c.Name] = c.Type
			case prev != c.Type:
				types[c.Name] = TypeString
			}
		}
	}
	for _, name := range order {
		if err := result.AddColumn(name, types[name]); err != nil {
			return nil, err
		}
	}

	var key []string
	for _, k := range keyColumns {
		if result.HasColumn(k) {
			key = append(key, k)
		}
	}
	if err := result.SetKey(key...); err != nil {
		return nil, err
	}

	keyPos := make([]int, len(key))
	for i, k := range key {
		keyPos[i] = result.ColumnIndex(k)
	}
	byKey := make(map[string]int)

	for _, src := range tables {
		if src == nil {
			continue
		}
		mergeInto(result, src, keyPos, byKey)
	}

	return result, nil
}

// mergeInto copies the rows of src into dst. keyPos holds the positions of
// the key columns in dst; byKey maps key tuples to row positions in dst.
func mergeInto(dst, src *Table, keyPos []int, byKey map[string]int) {
	// srcPos[i] is the position in src of dst column i, or -1.
	srcPos := make([]int, len(dst.columns))
	widen := make([]bool, len(dst.columns))
	for i, c := range dst.columns {
		srcPos[i] = src.ColumnIndex(c.Name)
		if srcPos[i] >= 0 && c.Type == TypeString && src.columns[srcPos[i]].Type != TypeString {
			widen[i] = true
		}
	}

	matchable := len(keyPos) > 0
	for _, p := range keyPos {
		if srcPos[p] < 0 {
			matchable = false
			break
		}
	}

	for _, sr := range src.rows {
		incoming := make(Row, len(dst.columns))
		for i, p := range srcPos {
			if p < 0 {
				continue
			}
			v := sr[p]
			if widen[i] && v != nil {
				v = FormatValue(v)
			}
			incoming[i] = v
		}

		k, ok := "", false
		if matchable {
			k, ok = keyOf(incoming, keyPos)
		}
		if !ok {
			dst.rows = append(dst.rows, incoming)
			continue
		}

		if at, ok := byKey[k]; ok {
			existing := dst.rows[at]
			for i, p := range srcPos {
				if p >= 0 {
					existing[i] = incoming[i]
				}
			}
			continue
		}

		byKey[k] = len(dst.rows)
		dst.rows = append(dst.rows, incoming)
	}
}
