package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3" // registers "sqlite3" (cgo)
	_ "modernc.org/sqlite"          // registers "sqlite" (pure Go)

	"policykeeper-hq/policykeeper/pkg/policy"
)

// Driver names accepted by SQLiteConfig.Driver.
const (
	DriverMattn   = "sqlite3"
	DriverModernc = "sqlite"
)

// SQLiteConfig contains configuration for the SQLite storage backend.
type SQLiteConfig struct {
	// Driver is the database/sql driver name: DriverModernc or DriverMattn.
	// Default: DriverModernc
	Driver string

	// Path is the database file path. ":memory:" opens a private in-memory
	// database on a single connection.
	Path string

	// MaxOpenConns is the maximum number of open connections to the database.
	// Default: 10
	MaxOpenConns int

	// MaxIdleConns is the maximum number of idle connections.
	// Default: 5
	MaxIdleConns int

	// WALMode enables Write-Ahead Logging mode for better concurrency.
	// Default: true
	WALMode bool

	// BusyTimeout is the duration to wait when the database is locked.
	// Default: 5 seconds
	BusyTimeout time.Duration
}

// DefaultSQLiteConfig returns the default SQLite configuration.
func DefaultSQLiteConfig() *SQLiteConfig {
	return &SQLiteConfig{
		Driver:       DriverModernc,
		Path:         "data/policies.db",
		MaxOpenConns: 10,
		MaxIdleConns: 5,
		WALMode:      true,
		BusyTimeout:  5 * time.Second,
	}
}

// SQLiteStorage implements policy.Storage using SQLite.
type SQLiteStorage struct {
	db     *sql.DB
	config *SQLiteConfig
	logger *slog.Logger
}

// NewSQLiteStorage opens the database, applies pragmas and creates the
// schema if needed.
func NewSQLiteStorage(config *SQLiteConfig) (*SQLiteStorage, error) {
	if config == nil {
		config = DefaultSQLiteConfig()
	}
	if config.Driver == "" {
		config.Driver = DriverModernc
	}
	if config.Driver != DriverModernc && config.Driver != DriverMattn {
		return nil, policy.NewStorageError("sqlite", "open", fmt.Errorf("unsupported driver %q", config.Driver))
	}

	logger := slog.Default().With("component", "policy.storage.sqlite")

	db, err := sql.Open(config.Driver, dataSourceName(config))
	if err != nil {
		return nil, policy.NewStorageError("sqlite", "open", err)
	}

	if config.Path == ":memory:" {
		// Every connection to :memory: is a separate database.
		db.SetMaxOpenConns(1)
		db.SetMaxIdleConns(1)
		db.SetConnMaxLifetime(0)
	} else {
		db.SetMaxOpenConns(config.MaxOpenConns)
		db.SetMaxIdleConns(config.MaxIdleConns)
	}

	s := &SQLiteStorage{
		db:     db,
		config: config,
		logger: logger,
	}

	if err := s.initialize(); err != nil {
		db.Close()
		return nil, err
	}

	logger.Info("SQLite storage initialized",
		"driver", config.Driver,
		"path", config.Path,
		"wal_mode", config.WALMode,
		"max_open_conns", config.MaxOpenConns,
	)

	return s, nil
}

// dataSourceName carries the busy timeout in the DSN so that every pooled
// connection gets it, not only the one that runs initialize.
func dataSourceName(config *SQLiteConfig) string {
	ms := config.BusyTimeout.Milliseconds()
	if config.Driver == DriverMattn {
		return fmt.Sprintf("%s?_busy_timeout=%d", config.Path, ms)
	}
	return fmt.Sprintf("%s?_pragma=busy_timeout(%d)", config.Path, ms)
}

// initialize enables WAL mode and creates the schema.
func (s *SQLiteStorage) initialize() error {
	if s.config.WALMode {
		if _, err := s.db.Exec("PRAGMA journal_mode=WAL;"); err != nil {
			return policy.NewStorageError("sqlite", "enable_wal", err)
		}
		s.logger.Debug("WAL mode enabled")
	}

	if _, err := s.db.Exec(Schema); err != nil {
		return policy.NewStorageError("sqlite", "create_schema", err)
	}

	if _, err := s.db.Exec(InsertSchemaVersion, SchemaVersion); err != nil {
		return policy.NewStorageError("sqlite", "insert_schema_version", err)
	}

	var version int
	err := s.db.QueryRow(GetSchemaVersion).Scan(&version)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return policy.NewStorageError("sqlite", "get_schema_version", err)
	}
	if version != SchemaVersion {
		return policy.NewStorageError("sqlite", "schema_version_mismatch",
			fmt.Errorf("expected schema version %d, got %d", SchemaVersion, version))
	}

	s.logger.Debug("schema version verified", "version", version)
	return nil
}

// Create inserts p and sets p.ID to the generated identifier.
func (s *SQLiteStorage) Create(ctx context.Context, p *policy.Policy) error {
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO policies (customer_name, policy_type, expiry_date) VALUES (?, ?, ?)`,
		p.CustomerName, string(p.Type), p.ExpiryDate.String(),
	)
	if err != nil {
		return policy.NewStorageError("sqlite", "create", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return policy.NewStorageError("sqlite", "create", err)
	}
	p.ID = id
	return nil
}

// Get returns the policy with the given ID.
func (s *SQLiteStorage) Get(ctx context.Context, id int64) (*policy.Policy, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT policy_id, customer_name, policy_type, expiry_date FROM policies WHERE policy_id = ?`, id)

	p, err := scanPolicy(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, policy.NewNotFoundError(id)
	}
	if err != nil {
		return nil, policy.NewStorageError("sqlite", "get", err)
	}
	return p, nil
}

// List returns policies matching filter in ascending ID order.
func (s *SQLiteStorage) List(ctx context.Context, filter *policy.Filter) ([]*policy.Policy, error) {
	where, args := buildWhere(filter)
	query := `SELECT policy_id, customer_name, policy_type, expiry_date FROM policies` + where + ` ORDER BY policy_id ASC`

	if filter != nil && (filter.Limit > 0 || filter.Offset > 0) {
		limit := filter.Limit
		if limit <= 0 {
			limit = -1
		}
		query += ` LIMIT ? OFFSET ?`
		args = append(args, limit, filter.Offset)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, policy.NewStorageError("sqlite", "list", err)
	}
	defer rows.Close()

	policies := make([]*policy.Policy, 0)
	for rows.Next() {
		p, err := scanPolicy(rows)
		if err != nil {
			return nil, policy.NewStorageError("sqlite", "list", err)
		}
		policies = append(policies, p)
	}
	if err := rows.Err(); err != nil {
		return nil, policy.NewStorageError("sqlite", "list", err)
	}

	return policies, nil
}

// Update overwrites every field of the policy with ID p.ID.
func (s *SQLiteStorage) Update(ctx context.Context, p *policy.Policy) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE policies SET customer_name = ?, policy_type = ?, expiry_date = ? WHERE policy_id = ?`,
		p.CustomerName, string(p.Type), p.ExpiryDate.String(), p.ID,
	)
	if err != nil {
		return policy.NewStorageError("sqlite", "update", err)
	}
	return s.expectOneRow(res, "update", p.ID)
}

// Delete removes the policy with the given ID.
func (s *SQLiteStorage) Delete(ctx context.Context, id int64) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM policies WHERE policy_id = ?`, id)
	if err != nil {
		return policy.NewStorageError("sqlite", "delete", err)
	}
	return s.expectOneRow(res, "delete", id)
}

// Count returns the number of policies matching filter. Limit and Offset
// are ignored.
func (s *SQLiteStorage) Count(ctx context.Context, filter *policy.Filter) (int64, error) {
	where, args := buildWhere(filter)

	var count int64
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM policies`+where, args...).Scan(&count); err != nil {
		return 0, policy.NewStorageError("sqlite", "count", err)
	}
	return count, nil
}

// Ping verifies the database connection.
func (s *SQLiteStorage) Ping(ctx context.Context) error {
	if err := s.db.PingContext(ctx); err != nil {
		return policy.NewStorageError("sqlite", "ping", err)
	}
	return nil
}

// Close closes the database connection.
func (s *SQLiteStorage) Close() error {
	if err := s.db.Close(); err != nil {
		return policy.NewStorageError("sqlite", "close", err)
	}
	s.logger.Info("SQLite storage closed")
	return nil
}

func (s *SQLiteStorage) expectOneRow(res sql.Result, operation string, id int64) error {
	n, err := res.RowsAffected()
	if err != nil {
		return policy.NewStorageError("sqlite", operation, err)
	}
	if n == 0 {
		return policy.NewNotFoundError(id)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanPolicy(row rowScanner) (*policy.Policy, error) {
	var (
		p          policy.Policy
		policyType string
		expiry     string
	)
	if err := row.Scan(&p.ID, &p.CustomerName, &policyType, &expiry); err != nil {
		return nil, err
	}

	date, err := policy.ParseDate(expiry)
	if err != nil {
		return nil, fmt.Errorf("policy %d: %w", p.ID, err)
	}
	p.Type = policy.Type(policyType)
	p.ExpiryDate = date
	return &p, nil
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// buildWhere translates filter into a WHERE clause with positional args.
func buildWhere(filter *policy.Filter) (string, []any) {
	if filter == nil {
		return "", nil
	}

	var (
		clauses []string
		args    []any
	)
	if filter.Type != "" {
		clauses = append(clauses, "policy_type = ?")
		args = append(args, string(filter.Type))
	}
	if filter.Search != "" {
		clauses = append(clauses, `LOWER(customer_name) LIKE ? ESCAPE '\'`)
		args = append(args, "%"+likeEscaper.Replace(strings.ToLower(filter.Search))+"%")
	}
	if filter.ExpiresAfter != nil {
		clauses = append(clauses, "expiry_date >= ?")
		args = append(args, filter.ExpiresAfter.String())
	}
	if filter.ExpiresBefore != nil {
		clauses = append(clauses, "expiry_date <= ?")
		args = append(args, filter.ExpiresBefore.String())
	}

	if len(clauses) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(clauses, " AND "), args
}
