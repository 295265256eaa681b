package core

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Post is an authored text post. Title and Body hold ingestion-sanitized text;
// the repository stores them as given.
type Post struct {
	ID        int64
	CreatedAt time.Time
	Title     string
	Body      string
	AuthorID  int64
}

// PostRepository defines persistence operations for posts.
type PostRepository interface {
	Create(ctx context.Context, title, body string, authorID int64) (*Post, error)
	// Get yields ErrPostNotFound for a missing id.
	Get(ctx context.Context, id int64) (*Post, error)
	// ListByAuthor returns the author's posts, newest first.
	ListByAuthor(ctx context.Context, authorID int64) ([]Post, error)
	// Update replaces title and body; CreatedAt and AuthorID never change.
	Update(ctx context.Context, id int64, title, body string) (*Post, error)
	Delete(ctx context.Context, id int64) error
}

type PgPostRepository struct {
	db *pgxpool.Pool
}

func NewPgPostRepository(db *pgxpool.Pool) *PgPostRepository {
	return &PgPostRepository{db: db}
}

func (r *PgPostRepository) Create(ctx context.Context, title, body string, authorID int64) (*Post, error) {
	const q = `INSERT INTO posts (title, body, author_id) VALUES ($1,$2,$3) RETURNING id, created_at`
	p := Post{Title: title, Body: body, AuthorID: authorID}
	if err := r.db.QueryRow(ctx, q, title, body, authorID).Scan(&p.ID, &p.CreatedAt); err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *PgPostRepository) Get(ctx context.Context, id int64) (*Post, error) {
	const q = `SELECT id, created_at, title, body, author_id FROM posts WHERE id=$1`
	var p Post
	if err := r.db.QueryRow(ctx, q, id).Scan(&p.ID, &p.CreatedAt, &p.Title, &p.Body, &p.AuthorID); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrPostNotFound
		}
		return nil, err
	}
	return &p, nil
}

func (r *PgPostRepository) ListByAuthor(ctx context.Context, authorID int64) ([]Post, error) {
	rows, err := r.db.Query(ctx, `
SELECT id, created_at, title, body, author_id
FROM posts
WHERE author_id=$1
ORDER BY created_at DESC, id DESC
`, authorID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	items := []Post{}
	for rows.Next() {
		var p Post
		if err := rows.Scan(&p.ID, &p.CreatedAt, &p.Title, &p.Body, &p.AuthorID); err != nil {
			return nil, err
		}
		items = append(items, p)
	}
	return items, rows.Err()
}

func (r *PgPostRepository) Update(ctx context.Context, id int64, title, body string) (*Post, error) {
	const q = `UPDATE posts SET title=$1, body=$2 WHERE id=$3 RETURNING id, created_at, author_id`
	p := Post{Title: title, Body: body}
	if err := r.db.QueryRow(ctx, q, title, body, id).Scan(&p.ID, &p.CreatedAt, &p.AuthorID); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrPostNotFound
		}
		return nil, err
	}
	return &p, nil
}

func (r *PgPostRepository) Delete(ctx context.Context, id int64) error {
	const q = `DELETE FROM posts WHERE id=$1`
	tag, err := r.db.Exec(ctx, q, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrPostNotFound
	}
	return nil
}
