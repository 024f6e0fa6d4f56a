// Package migrate applies on-disk SQL migrations and seed files with
// bookkeeping tables. Seeds run once each; re-running is a no-op.
package migrate

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"
)

const (
	defaultMigrationsTable = "schema_migrations"
	defaultSeedsTable      = "schema_seeds"
)

// Record is one applied migration or seed.
type Record struct {
	Name      string
	AppliedAt time.Time
}

// Manager executes SQL migrations and seed files stored on disk.
type Manager struct {
	db              *sql.DB
	migrationsDir   string
	seedsDir        string
	migrationsTable string
	seedsTable      string
	logf            func(format string, args ...any)
}

// Option configures Manager.
type Option func(*Manager)

// WithTables overrides the bookkeeping table names. Empty values keep
// the defaults.
func WithTables(migrations, seeds string) Option {
	return func(m *Manager) {
		if migrations != "" {
			m.migrationsTable = migrations
		}
		if seeds != "" {
			m.seedsTable = seeds
		}
	}
}

// WithLogf reports each applied file, log.Printf style.
func WithLogf(logf func(format string, args ...any)) Option {
	return func(m *Manager) {
		if logf != nil {
			m.logf = logf
		}
	}
}

// NewManager constructs a Manager.
func NewManager(db *sql.DB, migrationsDir, seedsDir string, opts ...Option) *Manager {
	m := &Manager{
		db:              db,
		migrationsDir:   migrationsDir,
		seedsDir:        seedsDir,
		migrationsTable: defaultMigrationsTable,
		seedsTable:      defaultSeedsTable,
		logf:            func(string, ...any) {},
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Up applies all pending migrations in lexical order.
func (m *Manager) Up(ctx context.Context) error {
	return m.runPending(ctx, m.migrationsDir, ".up.sql", m.migrationsTable, "migration")
}

// Seed applies seed files idempotently. The bootstrap seed inserts the
// singleton system_state row and the first guardian supreme.
func (m *Manager) Seed(ctx context.Context) error {
	return m.runPending(ctx, m.seedsDir, ".sql", m.seedsTable, "seed")
}

// Down rolls back the most recently applied migration.
func (m *Manager) Down(ctx context.Context) error {
	if err := m.ensureTables(ctx); err != nil {
		return err
	}
	applied, err := m.applied(ctx, m.migrationsTable)
	if err != nil {
		return err
	}
	if len(applied) == 0 {
		return errors.New("no migrations applied")
	}
	last := applied[len(applied)-1].Name
	downPath := strings.TrimSuffix(filepath.Join(m.migrationsDir, last), ".up.sql") + ".down.sql"
	if _, err := os.Stat(downPath); err != nil {
		return fmt.Errorf("missing down migration for %s", last)
	}
	if err := m.execFile(ctx, downPath); err != nil {
		return fmt.Errorf("rollback migration %s: %w", last, err)
	}
	_, err = m.db.ExecContext(ctx, fmt.Sprintf(`delete from %s where name = $1`, m.migrationsTable), last)
	if err == nil {
		m.logf("rolled back %s", last)
	}
	return err
}

// Status returns applied migrations in application order.
func (m *Manager) Status(ctx context.Context) ([]Record, error) {
	if err := m.ensureTables(ctx); err != nil {
		return nil, err
	}
	return m.applied(ctx, m.migrationsTable)
}

func (m *Manager) runPending(ctx context.Context, dir, suffix, table, kind string) error {
	if err := m.ensureTables(ctx); err != nil {
		return err
	}
	applied, err := m.applied(ctx, table)
	if err != nil {
		return err
	}
	done := make(map[string]bool, len(applied))
	for _, rec := range applied {
		done[rec.Name] = true
	}
	files, err := collectSQL(dir, suffix)
	if err != nil {
		return err
	}
	for _, f := range files {
		if done[f.Base] {
			continue
		}
		if err := m.execFile(ctx, f.Path); err != nil {
			return fmt.Errorf("apply %s %s: %w", kind, f.Base, err)
		}
		q := fmt.Sprintf(`insert into %s(name, applied_at) values ($1, $2)`, table)
		if _, err := m.db.ExecContext(ctx, q, f.Base, time.Now().UTC()); err != nil {
			return err
		}
		m.logf("applied %s %s", kind, f.Base)
	}
	return nil
}

func (m *Manager) ensureTables(ctx context.Context) error {
	for _, table := range []string{m.migrationsTable, m.seedsTable} {
		ddl := fmt.Sprintf(`
			create table if not exists %s (
				name text primary key,
				applied_at timestamptz not null default now()
			);`, table)
		if _, err := m.db.ExecContext(ctx, ddl); err != nil {
			return err
		}
	}
	return nil
}

// execFile runs every statement in one file inside a single transaction.
func (m *Manager) execFile(ctx context.Context, path string) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	tx, err := m.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()
	for _, stmt := range splitStatements(string(raw)) {
		if strings.TrimSpace(stmt) == "" {
			continue
		}
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return err
		}
	}
	return tx.Commit()
}

func (m *Manager) applied(ctx context.Context, table string) ([]Record, error) {
	rows, err := m.db.QueryContext(ctx, fmt.Sprintf(`select name, applied_at from %s order by applied_at asc, name asc`, table))
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var recs []Record
	for rows.Next() {
		var rec Record
		if err := rows.Scan(&rec.Name, &rec.AppliedAt); err != nil {
			return nil, err
		}
		recs = append(recs, rec)
	}
	return recs, rows.Err()
}

type sqlFile struct {
	Base string
	Path string
}

func collectSQL(dir, suffix string) ([]sqlFile, error) {
	if dir == "" {
		return nil, nil
	}
	var files []sqlFile
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || !strings.HasSuffix(d.Name(), suffix) {
			return nil
		}
		files = append(files, sqlFile{Base: d.Name(), Path: path})
		return nil
	})
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, err
	}
	sort.Slice(files, func(i, j int) bool { return files[i].Base < files[j].Base })
	return files, nil
}

// splitStatements splits on semicolons outside single-quoted strings
// and drops line comments so "--" text cannot hide a terminator.
func splitStatements(input string) []string {
	var stmts []string
	var cur strings.Builder
	inString := false
	lines := strings.Split(input, "\n")
	for _, line := range lines {
		if !inString {
			line = stripLineComment(line)
		}
		for _, r := range line {
			cur.WriteRune(r)
			switch r {
			case '\'':
				inString = !inString
			case ';':
				if !inString {
					stmts = append(stmts, cur.String())
					cur.Reset()
				}
			}
		}
		cur.WriteByte('\n')
	}
	if strings.TrimSpace(cur.String()) != "" {
		stmts = append(stmts, cur.String())
	}
	return stmts
}

func stripLineComment(line string) string {
	inString := false
	for i := 0; i+1 < len(line); i++ {
		switch line[i] {
		case '\'':
			inString = !inString
		case '-':
			if !inString && line[i+1] == '-' {
				return line[:i]
			}
		}
	}
	return line
}
