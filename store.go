package pubsite

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/sqlscan"
	"modernc.org/sqlite"
)

// ErrNotFound is returned when a requested record does not exist or is not published.
var ErrNotFound = errors.New("not found")

func init() {
	// SQLite's lower() only folds ASCII; search needs Unicode case folding.
	sqlite.MustRegisterDeterministicScalarFunction("fold", 1, foldFunc)
}

func foldFunc(_ *sqlite.FunctionContext, args []driver.Value) (driver.Value, error) {
	switch v := args[0].(type) {
	case string:
		return strings.ToLower(v), nil
	case []byte:
		return strings.ToLower(string(v)), nil
	case nil:
		return nil, nil
	default:
		return fmt.Sprint(v), nil
	}
}

// PostQuery narrows a published-post read. Zero values mean "no constraint".
type PostQuery struct {
	AuthorID     int64
	CategorySlug string
	TagSlug      string
	Search       string
	Limit        int
	Offset       int
}

// Store wraps a SQLite database and provides content reads and writes.
type Store struct {
	db *sql.DB
}

// NewStore opens (or creates) the SQLite database at path, ensures the data
// directory exists, and applies schema migrations.
func NewStore(ctx context.Context, path string) (*Store, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, err
		}
	}
	db, err := sql.Open("sqlite", buildDSN(path))
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(4)
	db.SetMaxIdleConns(4)
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	if err := ApplyMigrations(ctx, db); err != nil {
		db.Close()
		return nil, err
	}
	return &Store{db: db}, nil
}

// buildDSN sets pragmas per connection: WAL for concurrent readers, a busy
// timeout so writers wait instead of failing with SQLITE_BUSY, and foreign keys.
func buildDSN(path string) string {
	pragmas := "_pragma=busy_timeout(5000)&_pragma=foreign_keys(ON)"
	if path == ":memory:" {
		return "file::memory:?cache=shared&" + pragmas
	}
	return "file:" + path + "?_pragma=journal_mode(WAL)&_pragma=synchronous(NORMAL)&" + pragmas
}

// DB exposes the underlying handle for migrations and diagnostics.
func (s *Store) DB() *sql.DB {
	return s.db
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

type postRow struct {
	ID              int64          `db:"id"`
	Title           string         `db:"title"`
	Slug            string         `db:"slug"`
	Excerpt         string         `db:"excerpt"`
	Content         string         `db:"content"`
	Published       bool           `db:"is_published"`
	CreatedAt       time.Time      `db:"created_at"`
	AuthorID        sql.NullInt64  `db:"author_id"`
	AuthorUsername  sql.NullString `db:"author_username"`
	AuthorFirstName sql.NullString `db:"author_first_name"`
	AuthorLastName  sql.NullString `db:"author_last_name"`
	CategoryID      sql.NullInt64  `db:"category_id"`
	CategoryName    sql.NullString `db:"category_name"`
	CategorySlug    sql.NullString `db:"category_slug"`
}

func (r postRow) post() Post {
	p := Post{
		ID:        r.ID,
		Title:     r.Title,
		Slug:      r.Slug,
		Excerpt:   r.Excerpt,
		Content:   r.Content,
		Published: r.Published,
		CreatedAt: r.CreatedAt,
	}
	if r.AuthorID.Valid {
		p.Author = &Author{
			ID:        r.AuthorID.Int64,
			Username:  r.AuthorUsername.String,
			FirstName: r.AuthorFirstName.String,
			LastName:  r.AuthorLastName.String,
		}
	}
	if r.CategoryID.Valid {
		p.Category = &Category{
			ID:   r.CategoryID.Int64,
			Name: r.CategoryName.String,
			Slug: r.CategorySlug.String,
		}
	}
	return p
}

var postColumns = []string{
	"p.id AS id",
	"p.title AS title",
	"p.slug AS slug",
	"p.excerpt AS excerpt",
	"p.content AS content",
	"p.is_published AS is_published",
	"p.created_at AS created_at",
	"a.id AS author_id",
	"a.username AS author_username",
	"a.first_name AS author_first_name",
	"a.last_name AS author_last_name",
	"c.id AS category_id",
	"c.name AS category_name",
	"c.slug AS category_slug",
}

// publishedPosts builds the shared FROM/WHERE part of every published-post read.
func publishedPosts(q PostQuery, columns ...string) sq.SelectBuilder {
	sb := sq.Select(columns...).
		From("posts p").
		Where(sq.Eq{"p.is_published": 1})
	if q.AuthorID != 0 {
		sb = sb.Where(sq.Eq{"p.author_id": q.AuthorID})
	}
	if q.CategorySlug != "" {
		sb = sb.Where("EXISTS (SELECT 1 FROM categories cf WHERE cf.id = p.category_id AND cf.slug = ?)", q.CategorySlug)
	}
	if q.TagSlug != "" {
		sb = sb.Where("EXISTS (SELECT 1 FROM post_tags pt JOIN tags tf ON tf.id = pt.tag_id WHERE pt.post_id = p.id AND tf.slug = ?)", q.TagSlug)
	}
	if q.Search != "" {
		needle := strings.ToLower(q.Search)
		sb = sb.Where(sq.Or{
			sq.Expr("instr(fold(p.title), ?) > 0", needle),
			sq.Expr("instr(fold(p.excerpt), ?) > 0", needle),
			sq.Expr("instr(fold(p.content), ?) > 0", needle),
		})
	}
	return sb
}

// CountPosts returns how many published posts match q. Limit and Offset are ignored.
func (s *Store) CountPosts(ctx context.Context, q PostQuery) (int, error) {
	query, args, err := publishedPosts(q, "COUNT(*)").ToSql()
	if err != nil {
		return 0, fmt.Errorf("build count query: %w", err)
	}
	var n int
	if err := s.db.QueryRowContext(ctx, query, args...).Scan(&n); err != nil {
		return 0, fmt.Errorf("count posts: %w", err)
	}
	return n, nil
}

// ListPosts returns published posts matching q, newest first, with author,
// category and tags populated.
func (s *Store) ListPosts(ctx context.Context, q PostQuery) ([]Post, error) {
	sb := publishedPosts(q, postColumns...).
		LeftJoin("authors a ON a.id = p.author_id").
		LeftJoin("categories c ON c.id = p.category_id").
		OrderBy("p.id DESC")
	if q.Limit > 0 {
		sb = sb.Limit(uint64(q.Limit))
	}
	if q.Offset > 0 {
		sb = sb.Offset(uint64(q.Offset))
	}
	query, args, err := sb.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build list query: %w", err)
	}
	var rows []postRow
	if err := sqlscan.Select(ctx, s.db, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("list posts: %w", err)
	}
	posts := make([]Post, len(rows))
	for i, r := range rows {
		posts[i] = r.post()
	}
	if err := s.attachTags(ctx, posts); err != nil {
		return nil, err
	}
	return posts, nil
}

// GetPost returns a single published post by slug.
func (s *Store) GetPost(ctx context.Context, slug string) (Post, error) {
	query, args, err := publishedPosts(PostQuery{}, postColumns...).
		LeftJoin("authors a ON a.id = p.author_id").
		LeftJoin("categories c ON c.id = p.category_id").
		Where(sq.Eq{"p.slug": slug}).
		ToSql()
	if err != nil {
		return Post{}, fmt.Errorf("build post query: %w", err)
	}
	var rows []postRow
	if err := sqlscan.Select(ctx, s.db, &rows, query, args...); err != nil {
		return Post{}, fmt.Errorf("get post %q: %w", slug, err)
	}
	if len(rows) == 0 {
		return Post{}, ErrNotFound
	}
	posts := []Post{rows[0].post()}
	if err := s.attachTags(ctx, posts); err != nil {
		return Post{}, err
	}
	return posts[0], nil
}

type postTagRow struct {
	PostID int64  `db:"post_id"`
	ID     int64  `db:"id"`
	Name   string `db:"name"`
	Slug   string `db:"slug"`
}

func (s *Store) attachTags(ctx context.Context, posts []Post) error {
	if len(posts) == 0 {
		return nil
	}
	ids := make([]int64, len(posts))
	index := make(map[int64]int, len(posts))
	for i, p := range posts {
		ids[i] = p.ID
		index[p.ID] = i
	}
	query, args, err := sq.Select("pt.post_id AS post_id", "t.id AS id", "t.name AS name", "t.slug AS slug").
		From("post_tags pt").
		Join("tags t ON t.id = pt.tag_id").
		Where(sq.Eq{"pt.post_id": ids}).
		OrderBy("t.name").
		ToSql()
	if err != nil {
		return fmt.Errorf("build tags query: %w", err)
	}
	var rows []postTagRow
	if err := sqlscan.Select(ctx, s.db, &rows, query, args...); err != nil {
		return fmt.Errorf("load post tags: %w", err)
	}
	for _, r := range rows {
		i := index[r.PostID]
		posts[i].Tags = append(posts[i].Tags, Tag{ID: r.ID, Name: r.Name, Slug: r.Slug})
	}
	return nil
}

// GetAuthor returns an author by id, whether or not they have published posts.
func (s *Store) GetAuthor(ctx context.Context, id int64) (Author, error) {
	var a Author
	err := s.db.QueryRowContext(ctx, `SELECT id, username, first_name, last_name FROM authors WHERE id = ?`, id).
		Scan(&a.ID, &a.Username, &a.FirstName, &a.LastName)
	if errors.Is(err, sql.ErrNoRows) {
		return Author{}, ErrNotFound
	}
	if err != nil {
		return Author{}, fmt.Errorf("get author %d: %w", id, err)
	}
	return a, nil
}

// GetCategory returns a category by slug, whether or not it has published posts.
func (s *Store) GetCategory(ctx context.Context, slug string) (Category, error) {
	var c Category
	err := s.db.QueryRowContext(ctx, `SELECT id, name, slug FROM categories WHERE slug = ?`, slug).
		Scan(&c.ID, &c.Name, &c.Slug)
	if errors.Is(err, sql.ErrNoRows) {
		return Category{}, ErrNotFound
	}
	if err != nil {
		return Category{}, fmt.Errorf("get category %q: %w", slug, err)
	}
	return c, nil
}

// GetTag returns a tag by slug, whether or not it is used by published posts.
func (s *Store) GetTag(ctx context.Context, slug string) (Tag, error) {
	var t Tag
	err := s.db.QueryRowContext(ctx, `SELECT id, name, slug FROM tags WHERE slug = ?`, slug).
		Scan(&t.ID, &t.Name, &t.Slug)
	if errors.Is(err, sql.ErrNoRows) {
		return Tag{}, ErrNotFound
	}
	if err != nil {
		return Tag{}, fmt.Errorf("get tag %q: %w", slug, err)
	}
	return t, nil
}

// GetPage returns a single published page by slug.
func (s *Store) GetPage(ctx context.Context, slug string) (Page, error) {
	var p Page
	err := s.db.QueryRowContext(ctx, `SELECT id, title, slug, body, is_published FROM pages WHERE slug = ? AND is_published = 1`, slug).
		Scan(&p.ID, &p.Title, &p.Slug, &p.Body, &p.Published)
	if errors.Is(err, sql.ErrNoRows) {
		return Page{}, ErrNotFound
	}
	if err != nil {
		return Page{}, fmt.Errorf("get page %q: %w", slug, err)
	}
	return p, nil
}

// ListPages returns all published pages ordered by title.
func (s *Store) ListPages(ctx context.Context) ([]Page, error) {
	var pages []Page
	err := sqlscan.Select(ctx, s.db, &pages,
		`SELECT id, title, slug, body, is_published AS published FROM pages WHERE is_published = 1 ORDER BY title`)
	if err != nil {
		return nil, fmt.Errorf("list pages: %w", err)
	}
	return pages, nil
}

// ListCategories returns categories that have at least one published post.
func (s *Store) ListCategories(ctx context.Context) ([]Category, error) {
	var categories []Category
	err := sqlscan.Select(ctx, s.db, &categories, `
SELECT c.id, c.name, c.slug FROM categories c
WHERE EXISTS (SELECT 1 FROM posts p WHERE p.category_id = c.id AND p.is_published = 1)
ORDER BY c.name`)
	if err != nil {
		return nil, fmt.Errorf("list categories: %w", err)
	}
	return categories, nil
}

// ListTags returns tags attached to at least one published post.
func (s *Store) ListTags(ctx context.Context) ([]Tag, error) {
	var tags []Tag
	err := sqlscan.Select(ctx, s.db, &tags, `
SELECT t.id, t.name, t.slug FROM tags t
WHERE EXISTS (
    SELECT 1 FROM post_tags pt JOIN posts p ON p.id = pt.post_id
    WHERE pt.tag_id = t.id AND p.is_published = 1
)
ORDER BY t.name`)
	if err != nil {
		return nil, fmt.Errorf("list tags: %w", err)
	}
	return tags, nil
}
