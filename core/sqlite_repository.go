package core

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"modernc.org/sqlite"
	sqlite3lib "modernc.org/sqlite/lib"
)

// toMillis normalizes timestamps into millisecond precision for storage.
func toMillis(t time.Time) int64 {
	return t.UTC().UnixMilli()
}

func fromMillis(v int64) time.Time {
	return time.UnixMilli(v).UTC()
}

func isSQLiteUniqueViolation(err error) bool {
	var sqliteErr *sqlite.Error
	if errors.As(err, &sqliteErr) {
		switch sqliteErr.Code() {
		case sqlite3lib.SQLITE_CONSTRAINT_UNIQUE, sqlite3lib.SQLITE_CONSTRAINT_PRIMARYKEY:
			return true
		}
	}
	return strings.Contains(strings.ToLower(err.Error()), "unique constraint failed")
}

// SQLiteUserRepository implements UserRepository over database/sql + modernc sqlite.
type SQLiteUserRepository struct {
	db  *sql.DB
	now func() time.Time
}

func NewSQLiteUserRepository(db *sql.DB) *SQLiteUserRepository {
	return &SQLiteUserRepository{db: db, now: time.Now}
}

func (r *SQLiteUserRepository) Create(ctx context.Context, username, passwordHash string) (int64, error) {
	res, err := r.db.ExecContext(ctx,
		`INSERT INTO users (username, password_hash, created_at) VALUES (?, ?, ?)`,
		username, passwordHash, toMillis(r.now()))
	if err != nil {
		if isSQLiteUniqueViolation(err) {
			return 0, ErrDuplicateUsername
		}
		return 0, err
	}
	return res.LastInsertId()
}

func (r *SQLiteUserRepository) FindByUsername(ctx context.Context, username string) (*UserRecord, error) {
	return r.scanOne(r.db.QueryRowContext(ctx,
		`SELECT id, username, password_hash, created_at FROM users WHERE username = ?`, username))
}

func (r *SQLiteUserRepository) FindByID(ctx context.Context, id int64) (*UserRecord, error) {
	return r.scanOne(r.db.QueryRowContext(ctx,
		`SELECT id, username, password_hash, created_at FROM users WHERE id = ?`, id))
}

func (r *SQLiteUserRepository) scanOne(row *sql.Row) (*UserRecord, error) {
	var (
		u       UserRecord
		created int64
	)
	if err := row.Scan(&u.ID, &u.Username, &u.PasswordHash, &created); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	u.CreatedAt = fromMillis(created)
	return &u, nil
}

func (r *SQLiteUserRepository) Count(ctx context.Context) (int, error) {
	var n int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM users`).Scan(&n); err != nil {
		return 0, err
	}
	return n, nil
}

// SQLitePostRepository implements PostRepository over database/sql + modernc sqlite.
type SQLitePostRepository struct {
	db  *sql.DB
	now func() time.Time
}

func NewSQLitePostRepository(db *sql.DB) *SQLitePostRepository {
	return &SQLitePostRepository{db: db, now: time.Now}
}

func (r *SQLitePostRepository) Create(ctx context.Context, title, body string, authorID int64) (*Post, error) {
	created := fromMillis(toMillis(r.now()))
	res, err := r.db.ExecContext(ctx,
		`INSERT INTO posts (title, body, author_id, created_at) VALUES (?, ?, ?, ?)`,
		title, body, authorID, toMillis(created))
	if err != nil {
		return nil, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, err
	}
	return &Post{ID: id, CreatedAt: created, Title: title, Body: body, AuthorID: authorID}, nil
}

func (r *SQLitePostRepository) Get(ctx context.Context, id int64) (*Post, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT id, created_at, title, body, author_id FROM posts WHERE id = ?`, id)
	p, err := scanSQLitePost(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrPostNotFound
		}
		return nil, err
	}
	return p, nil
}

func (r *SQLitePostRepository) ListByAuthor(ctx context.Context, authorID int64) ([]Post, error) {
	rows, err := r.db.QueryContext(ctx, `
SELECT id, created_at, title, body, author_id
FROM posts
WHERE author_id = ?
ORDER BY created_at DESC, id DESC
`, authorID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	items := []Post{}
	for rows.Next() {
		p, err := scanSQLitePost(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, *p)
	}
	return items, rows.Err()
}

func (r *SQLitePostRepository) Update(ctx context.Context, id int64, title, body string) (*Post, error) {
	res, err := r.db.ExecContext(ctx, `UPDATE posts SET title = ?, body = ? WHERE id = ?`, title, body, id)
	if err != nil {
		return nil, err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return nil, ErrPostNotFound
	}
	return r.Get(ctx, id)
}

func (r *SQLitePostRepository) Delete(ctx context.Context, id int64) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM posts WHERE id = ?`, id)
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrPostNotFound
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSQLitePost(row rowScanner) (*Post, error) {
	var (
		p       Post
		created int64
	)
	if err := row.Scan(&p.ID, &created, &p.Title, &p.Body, &p.AuthorID); err != nil {
		return nil, err
	}
	p.CreatedAt = fromMillis(created)
	return &p, nil
}
