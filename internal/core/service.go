package core

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/JonMunkholm/csvtable/internal/config"
	"github.com/JonMunkholm/csvtable/internal/csv"
	"github.com/JonMunkholm/csvtable/internal/export"
	"github.com/JonMunkholm/csvtable/internal/logging"
	"github.com/JonMunkholm/csvtable/internal/table"
)

var (
	ErrFileTooLarge          = errors.New("file too large")
	ErrPostgresNotConfigured = errors.New("postgres export is not configured")
)

// PostgresExporter copies a table into a database table.
type PostgresExporter interface {
	Export(ctx context.Context, t *table.Table, target export.Target) (int64, error)
}

// Service provides the core operations of csvtable.
type Service struct {
	cfg      config.Config
	store    *Store
	registry *Registry
	limiter  *LoadLimiter
	pg       PostgresExporter
	logger   *slog.Logger
}

// NewService creates a Service. registry and pg may be nil; without pg the
// Postgres export fails with ErrPostgresNotConfigured.
func NewService(cfg config.Config, registry *Registry, pg PostgresExporter) *Service {
	if registry == nil {
		registry = &Registry{profiles: map[string]config.Profile{}}
	}
	return &Service{
		cfg:      cfg,
		store:    NewStore(cfg.Store.MaxTables, cfg.Store.TTL),
		registry: registry,
		limiter:  NewLoadLimiter(cfg.CSV.MaxConcurrent, cfg.CSV.MaxWaitTime),
		pg:       pg,
		logger:   slog.Default(),
	}
}

// Start runs the store janitor until ctx is done.
func (s *Service) Start(ctx context.Context) {
	go s.store.StartJanitor(ctx, s.cfg.Store.JanitorInterval)
}

// Shutdown waits for running operations to finish.
func (s *Service) Shutdown(ctx context.Context) error {
	return s.limiter.WaitForDrain(ctx)
}

// Profiles returns the registered profiles.
func (s *Service) Profiles() []config.Profile {
	return s.registry.All()
}

// LimiterStatus reports the load limiter state.
func (s *Service) LimiterStatus() LimiterStatus {
	return s.limiter.Status()
}

// LoadUpload loads a table from r and stores it. size is the declared
// length of r, or -1 when unknown.
func (s *Service) LoadUpload(ctx context.Context, name string, r io.Reader, size int64, req LoadRequest) (*LoadSummary, error) {
	maxSize := s.cfg.CSV.MaxFileSize
	if maxSize > 0 && size > maxSize {
		return nil, fmt.Errorf("%w: %d bytes exceeds %d", ErrFileTooLarge, size, maxSize)
	}
	if maxSize > 0 {
		// One extra byte tells an oversized stream from one exactly at the limit.
		r = io.LimitReader(r, maxSize+1)
	}

	return s.load(ctx, name, req, func(ctx context.Context, opts csv.LoadOptions, enc csv.Encoding) (*csv.LoadResult, error) {
		opts.TableName = name
		opts.FilePath = name
		res, err := csv.LoadReader(ctx, r, enc, opts)
		if err != nil {
			return nil, err
		}
		if maxSize > 0 && res.BytesRead > maxSize {
			return nil, fmt.Errorf("%w: more than %d bytes", ErrFileTooLarge, maxSize)
		}
		return res, nil
	})
}

// LoadFile loads a table from a file and stores it.
func (s *Service) LoadFile(ctx context.Context, path string, req LoadRequest) (*LoadSummary, error) {
	return s.load(ctx, filepath.Base(path), req, func(ctx context.Context, opts csv.LoadOptions, enc csv.Encoding) (*csv.LoadResult, error) {
		if maxSize := s.cfg.CSV.MaxFileSize; maxSize > 0 {
			if fi, err := os.Stat(path); err == nil && fi.Size() > maxSize {
				return nil, fmt.Errorf("%w: %d bytes exceeds %d", ErrFileTooLarge, fi.Size(), maxSize)
			}
		}
		return csv.LoadFile(ctx, path, enc, opts)
	})
}

type loadFunc func(ctx context.Context, opts csv.LoadOptions, enc csv.Encoding) (*csv.LoadResult, error)

func (s *Service) load(ctx context.Context, source string, req LoadRequest, fn loadFunc) (*LoadSummary, error) {
	logger := logging.WithFields(ctx, "source", source, "profile", req.Profile)

	if err := s.limiter.Acquire(ctx); err != nil {
		return nil, err
	}
	defer s.limiter.Release()

	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	session := logging.NewSession("load "+source, logging.SlogOutput(logger))
	defer session.Close()

	profile, err := s.registry.Resolve(s.profileName(req.Profile))
	if err != nil {
		return nil, err
	}
	opts, enc, err := LoadOptions(s.cfg.CSV, profile, req)
	if err != nil {
		return nil, err
	}
	opts.Log = session.Sink()

	start := time.Now()
	res, err := fn(ctx, opts, enc)
	if err != nil {
		session.AddError(err, "load")
		logger.Warn("load failed", "error", err)
		return nil, err
	}
	if err := ApplyTypes(res.Table, profile); err != nil {
		session.AddError(err, "types")
		return nil, err
	}
	session.LogElapsed()

	info, err := s.store.Put(res.Table, source)
	if err != nil {
		return nil, err
	}

	logger.Info("table loaded",
		"table_id", info.ID,
		"rows", info.Rows,
		"columns", len(info.Columns),
		"bytes", res.BytesRead,
	)
	return &LoadSummary{
		Table:         info,
		TotalRows:     res.TotalRowCount,
		ProcessedRows: res.ProcessedRowCount,
		BytesRead:     res.BytesRead,
		DurationMs:    time.Since(start).Milliseconds(),
	}, nil
}

// Get returns a stored table.
func (s *Service) Get(id string) (*table.Table, TableInfo, error) {
	return s.store.Get(id)
}

// List returns every stored table.
func (s *Service) List() []TableInfo {
	return s.store.List()
}

// Delete removes a stored table.
func (s *Service) Delete(id string) error {
	return s.store.Delete(id)
}

// Merge merges stored tables and stores the result. With no keys the key
// of the first table is used.
func (s *Service) Merge(ctx context.Context, ids []string, keys []string) (TableInfo, error) {
	if len(ids) == 0 {
		return TableInfo{}, table.ErrNoTables
	}

	tables := make([]*table.Table, 0, len(ids))
	for _, id := range ids {
		t, _, err := s.store.Get(id)
		if err != nil {
			return TableInfo{}, err
		}
		tables = append(tables, t)
	}

	if err := s.limiter.Acquire(ctx); err != nil {
		return TableInfo{}, err
	}
	defer s.limiter.Release()

	logger := logging.WithFields(ctx, "tables", len(tables))
	session := logging.NewSession("merge", logging.SlogOutput(logger))
	defer session.Close()

	merged, err := s.mergeTables(session, tables, normalizeNames(keys))
	if err != nil {
		return TableInfo{}, err
	}
	info, err := s.store.Put(merged, "merge")
	if err != nil {
		return TableInfo{}, err
	}
	logger.Info("tables merged", "table_id", info.ID, "rows", info.Rows)
	return info, nil
}

func (s *Service) mergeTables(session *logging.Session, tables []*table.Table, keys []string) (*table.Table, error) {
	if len(keys) == 0 && len(tables) > 0 {
		keys = tables[0].Key()
	}
	session.Addf("merging %d tables on key [%s]", len(tables), strings.Join(keys, ", "))

	merged, err := table.Merge(tables, keys)
	if err != nil {
		session.AddError(err, "merge")
		return nil, err
	}
	merged.Name = tables[0].Name
	session.Addf("merged table has %d rows and %d columns", merged.Len(), merged.ColumnCount())
	session.LogElapsed()
	return merged, nil
}

// Export writes a stored table to w as delimited text.
func (s *Service) Export(ctx context.Context, id string, req SaveRequest, w io.Writer) (*csv.SaveResult, error) {
	t, _, err := s.store.Get(id)
	if err != nil {
		return nil, err
	}

	profile, err := s.registry.Resolve(s.profileName(req.Profile))
	if err != nil {
		return nil, err
	}
	opts, enc, err := SaveOptions(s.cfg.CSV, profile, req)
	if err != nil {
		return nil, err
	}

	logger := logging.WithFields(ctx, "table_id", id)
	session := logging.NewSession("export "+t.Name, logging.SlogOutput(logger))
	defer session.Close()
	opts.Log = session.Sink()

	res, err := csv.SaveWriter(w, t, enc, opts)
	if err != nil {
		session.AddError(err, "export")
		return nil, err
	}
	logger.Debug("table exported", "lines", res.ProcessedRowCount, "encoding", enc.Name())
	return res, nil
}

// ExportParquet writes a stored table to a Parquet file.
func (s *Service) ExportParquet(ctx context.Context, id, path string) (*export.ParquetInfo, error) {
	t, _, err := s.store.Get(id)
	if err != nil {
		return nil, err
	}
	if err := s.limiter.Acquire(ctx); err != nil {
		return nil, err
	}
	defer s.limiter.Release()

	if err := export.WriteParquet(path, t); err != nil {
		return nil, err
	}
	info, err := export.ReadParquetInfo(path)
	if err != nil {
		return nil, err
	}
	logging.WithFields(ctx, "table_id", id).Info("parquet written", "path", path, "rows", info.Rows)
	return info, nil
}

// ExportPostgres copies a stored table into a database table.
func (s *Service) ExportPostgres(ctx context.Context, id string, target export.Target) (int64, error) {
	if s.pg == nil {
		return 0, ErrPostgresNotConfigured
	}
	t, _, err := s.store.Get(id)
	if err != nil {
		return 0, err
	}
	if _, err := target.Identifier(); err != nil {
		return 0, err
	}

	if err := s.limiter.Acquire(ctx); err != nil {
		return 0, err
	}
	defer s.limiter.Release()

	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	n, err := s.pg.Export(ctx, t, target)
	if err != nil {
		return 0, err
	}
	logging.WithFields(ctx, "table_id", id).Info("postgres export finished",
		"target", target.Table,
		"rows", n,
		"truncate", target.Truncate,
	)
	return n, nil
}

func (s *Service) profileName(name string) string {
	if name == "" {
		return s.cfg.Profiles.Default
	}
	return name
}

func (s *Service) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.cfg.CSV.Timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, s.cfg.CSV.Timeout)
}
