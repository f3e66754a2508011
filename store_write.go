package pubsite

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// SaveAuthor upserts an author keyed by username and returns its id.
func (s *Store) SaveAuthor(ctx context.Context, a Author) (int64, error) {
	var id int64
	err := s.db.QueryRowContext(ctx, `
INSERT INTO authors (username, first_name, last_name) VALUES (?, ?, ?)
ON CONFLICT(username) DO UPDATE SET first_name = excluded.first_name, last_name = excluded.last_name
RETURNING id`, a.Username, a.FirstName, a.LastName).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("save author %q: %w", a.Username, err)
	}
	return id, nil
}

// SaveCategory upserts a category keyed by slug and returns its id.
func (s *Store) SaveCategory(ctx context.Context, c Category) (int64, error) {
	var id int64
	err := s.db.QueryRowContext(ctx, `
INSERT INTO categories (name, slug) VALUES (?, ?)
ON CONFLICT(slug) DO UPDATE SET name = excluded.name
RETURNING id`, c.Name, c.Slug).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("save category %q: %w", c.Slug, err)
	}
	return id, nil
}

// SaveTag upserts a tag keyed by slug and returns its id.
func (s *Store) SaveTag(ctx context.Context, t Tag) (int64, error) {
	var id int64
	err := s.db.QueryRowContext(ctx, `
INSERT INTO tags (name, slug) VALUES (?, ?)
ON CONFLICT(slug) DO UPDATE SET name = excluded.name
RETURNING id`, t.Name, t.Slug).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("save tag %q: %w", t.Slug, err)
	}
	return id, nil
}

// SavePost upserts a post keyed by slug and replaces its tag set. Author and
// Category are referenced by ID; Tags by Slug and must already exist.
// A zero CreatedAt is set to the current time on insert.
func (s *Store) SavePost(ctx context.Context, p Post) (id int64, err error) {
	if p.CreatedAt.IsZero() {
		p.CreatedAt = time.Now().UTC()
	}
	var authorID, categoryID sql.NullInt64
	if p.Author != nil {
		authorID = sql.NullInt64{Int64: p.Author.ID, Valid: true}
	}
	if p.Category != nil {
		categoryID = sql.NullInt64{Int64: p.Category.ID, Valid: true}
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	err = tx.QueryRowContext(ctx, `
INSERT INTO posts (title, slug, excerpt, content, is_published, created_at, author_id, category_id)
VALUES (?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT(slug) DO UPDATE SET
    title = excluded.title,
    excerpt = excluded.excerpt,
    content = excluded.content,
    is_published = excluded.is_published,
    author_id = excluded.author_id,
    category_id = excluded.category_id
RETURNING id`,
		p.Title, p.Slug, p.Excerpt, p.Content, p.Published, p.CreatedAt, authorID, categoryID).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("save post %q: %w", p.Slug, err)
	}
	if _, err = tx.ExecContext(ctx, `DELETE FROM post_tags WHERE post_id = ?`, id); err != nil {
		return 0, fmt.Errorf("clear tags of %q: %w", p.Slug, err)
	}
	for _, t := range p.Tags {
		var res sql.Result
		res, err = tx.ExecContext(ctx, `INSERT OR IGNORE INTO post_tags (post_id, tag_id) SELECT ?, id FROM tags WHERE slug = ?`, id, t.Slug)
		if err != nil {
			return 0, fmt.Errorf("tag %q on %q: %w", t.Slug, p.Slug, err)
		}
		var n int64
		if n, err = res.RowsAffected(); err != nil {
			return 0, err
		}
		if n == 0 {
			var exists bool
			if err = tx.QueryRowContext(ctx, `SELECT EXISTS (SELECT 1 FROM tags WHERE slug = ?)`, t.Slug).Scan(&exists); err != nil {
				return 0, err
			}
			if !exists {
				err = fmt.Errorf("tag %q on %q: %w", t.Slug, p.Slug, ErrNotFound)
				return 0, err
			}
		}
	}
	if err = tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit post %q: %w", p.Slug, err)
	}
	return id, nil
}

// SavePage upserts a page keyed by slug and returns its id.
func (s *Store) SavePage(ctx context.Context, p Page) (int64, error) {
	var id int64
	err := s.db.QueryRowContext(ctx, `
INSERT INTO pages (title, slug, body, is_published) VALUES (?, ?, ?, ?)
ON CONFLICT(slug) DO UPDATE SET title = excluded.title, body = excluded.body, is_published = excluded.is_published
RETURNING id`, p.Title, p.Slug, p.Body, p.Published).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("save page %q: %w", p.Slug, err)
	}
	return id, nil
}

// DeletePost removes a post by slug. Deleting a missing slug is not an error.
func (s *Store) DeletePost(ctx context.Context, slug string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM posts WHERE slug = ?`, slug)
	return err
}
