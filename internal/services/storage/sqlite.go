package storage

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/groupkeeper-tgbot-go/internal/apperrors"
	"github.com/groupkeeper-tgbot-go/internal/models"
	_ "modernc.org/sqlite"
)

//go:embed schema/*.sql
var schemaFS embed.FS

// SQLiteStorage implements Backend on a single SQLite file.
type SQLiteStorage struct {
	sqlDB *sql.DB
}

func toMillis(value time.Time) int64 {
	return value.UTC().UnixMilli()
}

func fromMillis(value int64) time.Time {
	return time.UnixMilli(value).UTC()
}

// OpenSQLite opens the database file and applies the embedded schema.
func OpenSQLite(path string) (*SQLiteStorage, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("storage path is required")
	}
	cleanPath := filepath.Clean(path)
	if dir := filepath.Dir(cleanPath); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create sqlite dir: %w", err)
		}
	}
	dsn := "file:" + cleanPath + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=synchronous(NORMAL)"
	sqlDB, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	// One writer keeps SQLITE_BUSY out of concurrent read-modify-write traffic.
	sqlDB.SetMaxOpenConns(1)
	if err := sqlDB.Ping(); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}
	if err := applySchema(sqlDB); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}
	return &SQLiteStorage{sqlDB: sqlDB}, nil
}

func applySchema(sqlDB *sql.DB) error {
	files, err := fs.Glob(schemaFS, "schema/*.sql")
	if err != nil {
		return err
	}
	sort.Strings(files)
	for _, file := range files {
		content, err := fs.ReadFile(schemaFS, file)
		if err != nil {
			return fmt.Errorf("read %s: %w", file, err)
		}
		for _, stmt := range strings.Split(string(content), ";") {
			if strings.TrimSpace(stmt) == "" {
				continue
			}
			if _, err := sqlDB.Exec(stmt); err != nil {
				return fmt.Errorf("exec %s: %w", file, err)
			}
		}
	}
	return nil
}

// Close closes the SQLite handle.
func (s *SQLiteStorage) Close() error {
	if s == nil || s.sqlDB == nil {
		return nil
	}
	return s.sqlDB.Close()
}

func (s *SQLiteStorage) Ping(ctx context.Context) error {
	return s.sqlDB.PingContext(ctx)
}

func (s *SQLiteStorage) GetDocument(ctx context.Context, key DocKey) ([]byte, error) {
	var body string
	err := s.sqlDB.QueryRowContext(ctx,
		`SELECT body FROM documents WHERE kind = ? AND scope = ? AND id = ?`,
		string(key.Kind), key.Scope, key.ID,
	).Scan(&body)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperrors.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get document %s: %w", key, err)
	}
	return []byte(body), nil
}

func (s *SQLiteStorage) CreateDocument(ctx context.Context, key DocKey, data []byte) (bool, error) {
	now := toMillis(time.Now())
	res, err := s.sqlDB.ExecContext(ctx,
		`INSERT INTO documents (kind, scope, id, body, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?)
		 ON CONFLICT (kind, scope, id) DO NOTHING`,
		string(key.Kind), key.Scope, key.ID, string(data), now, now,
	)
	if err != nil {
		return false, fmt.Errorf("create document %s: %w", key, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

func (s *SQLiteStorage) PutDocument(ctx context.Context, key DocKey, data []byte) error {
	now := toMillis(time.Now())
	_, err := s.sqlDB.ExecContext(ctx,
		`INSERT INTO documents (kind, scope, id, body, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?)
		 ON CONFLICT (kind, scope, id) DO UPDATE SET body = excluded.body, updated_at = excluded.updated_at`,
		string(key.Kind), key.Scope, key.ID, string(data), now, now,
	)
	if err != nil {
		return fmt.Errorf("put document %s: %w", key, err)
	}
	return nil
}

func (s *SQLiteStorage) ListDocuments(ctx context.Context, kind Kind, scope string) ([][]byte, error) {
	rows, err := s.sqlDB.QueryContext(ctx,
		`SELECT body FROM documents WHERE kind = ? AND scope = ? ORDER BY id`,
		string(kind), scope,
	)
	if err != nil {
		return nil, fmt.Errorf("list documents: %w", err)
	}
	defer rows.Close()

	var out [][]byte
	for rows.Next() {
		var body string
		if err := rows.Scan(&body); err != nil {
			return nil, fmt.Errorf("scan document: %w", err)
		}
		out = append(out, []byte(body))
	}
	return out, rows.Err()
}

func (s *SQLiteStorage) CountDocuments(ctx context.Context, kind Kind) (int, error) {
	var n int
	err := s.sqlDB.QueryRowContext(ctx, `SELECT COUNT(*) FROM documents WHERE kind = ?`, string(kind)).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count documents: %w", err)
	}
	return n, nil
}

func (s *SQLiteStorage) AppendWarning(ctx context.Context, w *models.Warning) (int64, error) {
	res, err := s.sqlDB.ExecContext(ctx,
		`INSERT INTO warnings (chat_id, user_id, reason, warned_by, created_at) VALUES (?, ?, ?, ?, ?)`,
		w.ChatID, w.UserID, w.Reason, w.WarnedBy, toMillis(w.CreatedAt),
	)
	if err != nil {
		return 0, fmt.Errorf("insert warning: %w", err)
	}
	return res.LastInsertId()
}

func (s *SQLiteStorage) ListWarnings(ctx context.Context, chatID, userID int64) ([]models.Warning, error) {
	rows, err := s.sqlDB.QueryContext(ctx,
		`SELECT warning_id, chat_id, user_id, reason, warned_by, created_at
		 FROM warnings WHERE chat_id = ? AND user_id = ?
		 ORDER BY created_at DESC, warning_id DESC`,
		chatID, userID,
	)
	if err != nil {
		return nil, fmt.Errorf("list warnings: %w", err)
	}
	defer rows.Close()

	out := []models.Warning{}
	for rows.Next() {
		w, err := scanWarning(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *w)
	}
	return out, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanWarning(row rowScanner) (*models.Warning, error) {
	var (
		w         models.Warning
		createdAt int64
	)
	if err := row.Scan(&w.ID, &w.ChatID, &w.UserID, &w.Reason, &w.WarnedBy, &createdAt); err != nil {
		return nil, err
	}
	w.CreatedAt = fromMillis(createdAt)
	return &w, nil
}

func (s *SQLiteStorage) CountWarnings(ctx context.Context, chatID, userID int64) (int, error) {
	var n int
	err := s.sqlDB.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM warnings WHERE chat_id = ? AND user_id = ?`, chatID, userID,
	).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count warnings: %w", err)
	}
	return n, nil
}

func (s *SQLiteStorage) ClearWarnings(ctx context.Context, chatID, userID int64) (int, error) {
	res, err := s.sqlDB.ExecContext(ctx,
		`DELETE FROM warnings WHERE chat_id = ? AND user_id = ?`, chatID, userID,
	)
	if err != nil {
		return 0, fmt.Errorf("clear warnings: %w", err)
	}
	n, err := res.RowsAffected()
	return int(n), err
}

func (s *SQLiteStorage) GetWarning(ctx context.Context, id int64) (*models.Warning, error) {
	row := s.sqlDB.QueryRowContext(ctx,
		`SELECT warning_id, chat_id, user_id, reason, warned_by, created_at FROM warnings WHERE warning_id = ?`, id,
	)
	w, err := scanWarning(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperrors.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get warning: %w", err)
	}
	return w, nil
}
