package storage

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"slices"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.com/dgellow/tglogin-front/internal/log"
)

//go:embed migrations/*.sql
var migrationFS embed.FS

// Ensure SQLiteStorage implements Store
var _ Store = (*SQLiteStorage)(nil)

// SQLiteStorage persists profiles in a SQLite database file.
type SQLiteStorage struct {
	db *sql.DB
}

// NewSQLiteStorage opens (creating if needed) the database at path and
// applies pending migrations. Use ":memory:" for an ephemeral database.
func NewSQLiteStorage(ctx context.Context, path string) (*SQLiteStorage, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("sqlite path is required")
	}

	dsn := path
	if path != ":memory:" {
		dsn = "file:" + path + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"
	}
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("opening sqlite database: %w", err)
	}
	// One writer at a time; also keeps ":memory:" on a single connection.
	db.SetMaxOpenConns(1)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("connecting to sqlite database: %w", err)
	}
	if err := applyMigrations(ctx, db); err != nil {
		_ = db.Close()
		return nil, err
	}

	log.LogInfoWithFields("storage", "SQLite storage ready", map[string]any{
		"path": path,
	})
	return &SQLiteStorage{db: db}, nil
}

// applyMigrations runs each embedded .sql file once, in name order.
func applyMigrations(ctx context.Context, db *sql.DB) error {
	if _, err := db.ExecContext(ctx, `CREATE TABLE IF NOT EXISTS schema_migrations (
    name TEXT PRIMARY KEY,
    applied_at INTEGER NOT NULL
)`); err != nil {
		return fmt.Errorf("ensure migration table: %w", err)
	}

	entries, err := fs.ReadDir(migrationFS, "migrations")
	if err != nil {
		return fmt.Errorf("read migrations dir: %w", err)
	}
	var files []string
	for _, entry := range entries {
		if !entry.IsDir() && strings.HasSuffix(entry.Name(), ".sql") {
			files = append(files, entry.Name())
		}
	}
	slices.Sort(files)

	for _, name := range files {
		var exists int
		err := db.QueryRowContext(ctx, `SELECT 1 FROM schema_migrations WHERE name = ?`, name).Scan(&exists)
		if err == nil {
			continue
		}
		if !errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("check migration %s: %w", name, err)
		}

		content, err := fs.ReadFile(migrationFS, "migrations/"+name)
		if err != nil {
			return fmt.Errorf("read migration %s: %w", name, err)
		}

		tx, err := db.BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("begin migration %s: %w", name, err)
		}
		if _, err := tx.ExecContext(ctx, string(content)); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("apply migration %s: %w", name, err)
		}
		if _, err := tx.ExecContext(ctx, `INSERT INTO schema_migrations (name, applied_at) VALUES (?, ?)`, name, time.Now().Unix()); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("record migration %s: %w", name, err)
		}
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("commit migration %s: %w", name, err)
		}
	}
	return nil
}

// UpsertUser inserts the profile or overwrites display fields of an existing
// row, keeping first_seen.
func (s *SQLiteStorage) UpsertUser(ctx context.Context, p Profile) error {
	_, err := s.db.ExecContext(ctx, `
INSERT INTO users (id, first_name, last_name, username, photo_url, last_auth_date, login_count, first_seen, last_seen)
VALUES (?, ?, ?, ?, ?, ?, 1, ?, ?)
ON CONFLICT (id) DO UPDATE SET
    first_name     = excluded.first_name,
    last_name      = excluded.last_name,
    username       = excluded.username,
    photo_url      = excluded.photo_url,
    last_auth_date = excluded.last_auth_date,
    login_count    = users.login_count + 1,
    last_seen      = excluded.last_seen`,
		p.ID, p.FirstName, p.LastName, p.Username, p.PhotoURL, p.LastAuthDate,
		p.FirstSeen.UnixNano(), p.LastSeen.UnixNano(),
	)
	if err != nil {
		return fmt.Errorf("upserting user %d: %w", p.ID, err)
	}
	return nil
}

const selectProfile = `SELECT id, first_name, last_name, username, photo_url, last_auth_date, login_count, first_seen, last_seen FROM users`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanProfile(row rowScanner) (Profile, error) {
	var p Profile
	var firstSeen, lastSeen int64
	if err := row.Scan(&p.ID, &p.FirstName, &p.LastName, &p.Username, &p.PhotoURL,
		&p.LastAuthDate, &p.LoginCount, &firstSeen, &lastSeen); err != nil {
		return Profile{}, err
	}
	p.FirstSeen = time.Unix(0, firstSeen).UTC()
	p.LastSeen = time.Unix(0, lastSeen).UTC()
	return p, nil
}

// GetUser loads one profile.
func (s *SQLiteStorage) GetUser(ctx context.Context, id int64) (*Profile, error) {
	p, err := scanProfile(s.db.QueryRowContext(ctx, selectProfile+` WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("loading user %d: %w", id, err)
	}
	return &p, nil
}

// ListUsers returns all profiles ordered by id.
func (s *SQLiteStorage) ListUsers(ctx context.Context) ([]Profile, error) {
	rows, err := s.db.QueryContext(ctx, selectProfile+` ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("listing users: %w", err)
	}
	defer rows.Close()

	var users []Profile
	for rows.Next() {
		p, err := scanProfile(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning user: %w", err)
		}
		users = append(users, p)
	}
	return users, rows.Err()
}

func (s *SQLiteStorage) Close() error {
	return s.db.Close()
}
