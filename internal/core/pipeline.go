package core

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/JonMunkholm/csvtable/internal/config"
	"github.com/JonMunkholm/csvtable/internal/csv"
	"github.com/JonMunkholm/csvtable/internal/logging"
	"github.com/JonMunkholm/csvtable/internal/table"
)

const (
	// UploadedDir receives files once they are imported.
	UploadedDir = "Uploaded"

	failedSuffix = " - failed.csv"
)

// ImportDirectory loads every .csv file in dir with the named profile,
// writes the rows excluded by the profile to "<name> - failed.csv", moves
// each loaded file into the Uploaded subdirectory and stores the merge of
// all loaded tables on the profile key. A file that fails to load is
// reported and left in place.
func (s *Service) ImportDirectory(ctx context.Context, dir, profileName string) (*ImportResult, error) {
	profile, err := s.registry.Resolve(s.profileName(profileName))
	if err != nil {
		return nil, err
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("reading directory %s: %w", dir, err)
	}

	if err := s.limiter.Acquire(ctx); err != nil {
		return nil, err
	}
	defer s.limiter.Release()

	logger := logging.WithFields(ctx, "dir", dir, "profile", profile.Name)
	session := logging.NewSession("import "+dir, logging.SlogOutput(logger))
	defer session.Close()

	result := &ImportResult{Dir: dir}
	var loaded []*table.Table

	for _, entry := range entries {
		if entry.IsDir() || !strings.EqualFold(filepath.Ext(entry.Name()), ".csv") {
			continue
		}
		if strings.HasSuffix(entry.Name(), failedSuffix) {
			continue
		}
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("operation cancelled: %w", err)
		}

		fr, t := s.importFile(ctx, session, dir, entry.Name(), profile)
		result.Files = append(result.Files, fr)
		if t != nil {
			loaded = append(loaded, t)
		}
	}

	if len(loaded) == 0 {
		session.Add("no file loaded")
		return result, nil
	}

	merged, err := s.mergeTables(session, loaded, normalizeNames(profile.Key))
	if err != nil {
		return nil, err
	}
	merged.Name = filepath.Base(dir)
	info, err := s.store.Put(merged, dir)
	if err != nil {
		return nil, err
	}
	result.Table = &info

	logger.Info("directory imported", "files", len(result.Files), "table_id", info.ID, "rows", info.Rows)
	return result, nil
}

// importFile loads one file. On success the returned table is non-nil.
func (s *Service) importFile(ctx context.Context, session *logging.Session, dir, file string, profile config.Profile) (FileResult, *table.Table) {
	fr := FileResult{File: file}
	path := filepath.Join(dir, file)

	safeFile := filepath.Base(file)
	if safeFile != file || strings.Contains(file, "..") {
		fr.Error = fmt.Sprintf("invalid filename: %q", file)
		return fr, nil
	}

	opts, enc, err := LoadOptions(s.cfg.CSV, profile, LoadRequest{})
	if err != nil {
		fr.Error = err.Error()
		return fr, nil
	}
	opts.Log = session.Sink()

	// Rows are evaluated in input order so the failed file keeps it.
	opts.Workers = 1
	var failed []table.Row
	if filter := opts.RowFilter; filter != nil {
		opts.RowFilter = func(r table.Row) bool {
			if !filter(r) {
				return false
			}
			failed = append(failed, append(table.Row(nil), r...))
			return true
		}
	}

	res, err := csv.LoadFile(ctx, path, enc, opts)
	if err != nil {
		session.AddError(err, file)
		fr.Error = err.Error()
		return fr, nil
	}
	if err := ApplyTypes(res.Table, profile); err != nil {
		session.AddError(err, file)
		fr.Error = err.Error()
		return fr, nil
	}
	fr.TotalRows = res.TotalRowCount
	fr.ProcessedRows = res.ProcessedRowCount
	fr.FailedRows = len(failed)

	if len(failed) > 0 {
		failedPath := filepath.Join(dir, strings.TrimSuffix(safeFile, filepath.Ext(safeFile))+failedSuffix)
		if err := s.writeFailed(failedPath, res.Table, failed, profile); err != nil {
			session.AddError(err, file)
			fr.Error = fmt.Sprintf("failed writing failure file: %v", err)
			return fr, nil
		}
		fr.FailedFile = failedPath
	}

	uploaded := filepath.Join(dir, UploadedDir)
	if err := os.MkdirAll(uploaded, 0o755); err != nil {
		fr.Error = fmt.Sprintf("failed to create %s directory: %v", UploadedDir, err)
		return fr, nil
	}
	if err := os.Rename(path, filepath.Join(uploaded, safeFile)); err != nil {
		fr.Error = fmt.Sprintf("failed moving file %s: %v", safeFile, err)
		return fr, nil
	}

	session.Addf("%s: %d rows kept, %d excluded", file, res.Table.Len(), len(failed))
	return fr, res.Table
}

// writeFailed writes the excluded rows with a leading status column. The
// column is renamed status_1, status_2, ... when the input has its own.
func (s *Service) writeFailed(path string, loaded *table.Table, rows []table.Row, profile config.Profile) error {
	out := table.New(filepath.Base(path))
	if err := out.AddColumn(statusColumn(loaded), table.TypeString); err != nil {
		return err
	}
	for _, c := range loaded.Columns() {
		if err := out.AddColumn(c.Name, table.TypeString); err != nil {
			return err
		}
	}

	for _, r := range rows {
		row := append(table.Row{"excluded by profile"}, r...)
		if err := out.AppendRow(row); err != nil {
			return err
		}
	}

	opts, enc, err := SaveOptions(s.cfg.CSV, profile, SaveRequest{})
	if err != nil {
		return err
	}
	opts.ExcludeColumn = nil
	_, err = csv.SaveFile(path, out, enc, opts)
	return err
}

func statusColumn(t *table.Table) string {
	name := "status"
	for n := 1; t.HasColumn(name); n++ {
		name = "status_" + strconv.Itoa(n)
	}
	return name
}
