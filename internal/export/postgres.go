package export

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"regexp"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/JonMunkholm/csvtable/internal/config"
	"github.com/JonMunkholm/csvtable/internal/table"
)

var (
	ErrInvalidTarget = errors.New("invalid target table")
	ErrNoColumns     = errors.New("table has no columns")
)

var identPart = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// Target names the destination of a Postgres export.
type Target struct {
	// Table is "name" or "schema.name".
	Table string `json:"table"`

	// Truncate empties the table before copying.
	Truncate bool `json:"truncate"`
}

// Identifier parses Table into a quoted-identifier-safe form.
func (t Target) Identifier() (pgx.Identifier, error) {
	parts := strings.Split(strings.TrimSpace(t.Table), ".")
	if len(parts) > 2 {
		return nil, fmt.Errorf("%w: %q", ErrInvalidTarget, t.Table)
	}
	for _, p := range parts {
		if !identPart.MatchString(p) {
			return nil, fmt.Errorf("%w: %q", ErrInvalidTarget, t.Table)
		}
	}
	return pgx.Identifier(parts), nil
}

// Postgres copies tables into a PostgreSQL database.
type Postgres struct {
	pool *pgxpool.Pool
}

// NewPostgres wraps an existing pool.
func NewPostgres(pool *pgxpool.Pool) *Postgres {
	return &Postgres{pool: pool}
}

// Connect opens and pings a pool configured from cfg.
func Connect(ctx context.Context, cfg config.DatabaseConfig) (*pgxpool.Pool, error) {
	poolConfig, err := pgxpool.ParseConfig(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("parse database URL: %w", err)
	}
	if cfg.MaxConns > 0 {
		poolConfig.MaxConns = cfg.MaxConns
	}
	poolConfig.MinConns = cfg.MinConns
	if cfg.MaxConnLifetime > 0 {
		poolConfig.MaxConnLifetime = cfg.MaxConnLifetime
	}
	if cfg.MaxConnIdleTime > 0 {
		poolConfig.MaxConnIdleTime = cfg.MaxConnIdleTime
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("connect to database: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if u, err := url.Parse(cfg.URL); err == nil {
		slog.Info("connected to database", "name", strings.TrimPrefix(u.Path, "/"))
	}
	return pool, nil
}

// Export creates the target table if needed and copies every row of t into
// it, all in one transaction. It returns the number of rows copied.
func (p *Postgres) Export(ctx context.Context, t *table.Table, target Target) (int64, error) {
	ident, err := target.Identifier()
	if err != nil {
		return 0, err
	}
	cols := t.Columns()
	if len(cols) == 0 {
		return 0, ErrNoColumns
	}

	tx, err := p.pool.Begin(ctx)
	if err != nil {
		return 0, fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	if _, err := tx.Exec(ctx, CreateTableSQL(ident, cols)); err != nil {
		return 0, fmt.Errorf("create table %s: %w", ident.Sanitize(), err)
	}
	if target.Truncate {
		if _, err := tx.Exec(ctx, "TRUNCATE TABLE "+ident.Sanitize()); err != nil {
			return 0, fmt.Errorf("truncate %s: %w", ident.Sanitize(), err)
		}
	}

	names := make([]string, len(cols))
	for i, c := range cols {
		names[i] = c.Name
	}

	rows := t.Rows()
	n, err := tx.CopyFrom(ctx, ident, names, pgx.CopyFromSlice(len(rows), func(i int) ([]any, error) {
		return pgRow(cols, rows[i])
	}))
	if err != nil {
		return 0, fmt.Errorf("copy into %s: %w", ident.Sanitize(), err)
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, fmt.Errorf("commit: %w", err)
	}
	return n, nil
}

// CreateTableSQL renders the CREATE TABLE IF NOT EXISTS statement for cols.
func CreateTableSQL(ident pgx.Identifier, cols []table.Column) string {
	defs := make([]string, len(cols))
	for i, c := range cols {
		defs[i] = pgx.Identifier{c.Name}.Sanitize() + " " + PgType(c.Type)
	}
	return fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s (%s)", ident.Sanitize(), strings.Join(defs, ", "))
}

// PgType maps a column type to a PostgreSQL type.
func PgType(t table.ValueType) string {
	switch t {
	case table.TypeInt:
		return "bigint"
	case table.TypeFloat:
		return "double precision"
	case table.TypeBool:
		return "boolean"
	case table.TypeDate:
		return "date"
	default:
		return "text"
	}
}

// pgRow converts cells for COPY. Text cells in typed columns are parsed;
// empty text becomes NULL in typed columns.
func pgRow(cols []table.Column, r table.Row) ([]any, error) {
	out := make([]any, len(cols))
	for i, c := range cols {
		v := r[i]
		if s, ok := v.(string); ok && c.Type != table.TypeString {
			parsed, err := table.ParseValue(c.Type, s)
			if err != nil {
				return nil, fmt.Errorf("column %s: %w", c.Name, err)
			}
			v = parsed
		}
		out[i] = v
	}
	return out, nil
}
