package pubsite

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"
)

// ErrEmptySearch is returned for a search with blank text; callers show the home listing instead.
var ErrEmptySearch = errors.New("empty search")

// searchTitleRunes bounds how much of the search text goes into the page title.
const searchTitleRunes = 30

// ContentStore is the published-content repository the Resolver reads from.
// Every method only ever returns published posts and pages.
type ContentStore interface {
	CountPosts(ctx context.Context, q PostQuery) (int, error)
	ListPosts(ctx context.Context, q PostQuery) ([]Post, error)
	GetPost(ctx context.Context, slug string) (Post, error)
	GetPage(ctx context.Context, slug string) (Page, error)
	GetAuthor(ctx context.Context, id int64) (Author, error)
}

// FilterKind selects which posts a listing contains.
type FilterKind int

const (
	FilterHome FilterKind = iota
	FilterAuthor
	FilterCategory
	FilterTag
	FilterSearch
)

func (k FilterKind) String() string {
	switch k {
	case FilterHome:
		return "home"
	case FilterAuthor:
		return "author"
	case FilterCategory:
		return "category"
	case FilterTag:
		return "tag"
	case FilterSearch:
		return "search"
	default:
		return fmt.Sprintf("FilterKind(%d)", int(k))
	}
}

// Filter is a listing request. Only the field matching Kind is read.
type Filter struct {
	Kind     FilterKind
	AuthorID int64
	Slug     string // category or tag slug
	Search   string
}

func HomeFilter() Filter                { return Filter{Kind: FilterHome} }
func AuthorFilter(id int64) Filter      { return Filter{Kind: FilterAuthor, AuthorID: id} }
func CategoryFilter(slug string) Filter { return Filter{Kind: FilterCategory, Slug: slug} }
func TagFilter(slug string) Filter      { return Filter{Kind: FilterTag, Slug: slug} }
func SearchFilter(text string) Filter   { return Filter{Kind: FilterSearch, Search: text} }

// Listing is one resolved page of posts plus its human-readable title.
type Listing struct {
	Filter      Filter
	Title       string
	Posts       []Post
	Pagination  Pagination
	SearchValue string
}

// Resolver turns listing filters and slugs into published content.
type Resolver struct {
	store    ContentStore
	pageSize int
}

// NewResolver creates a Resolver reading from store with the default page size.
func NewResolver(store ContentStore) *Resolver {
	return &Resolver{store: store, pageSize: PageSize}
}

// List resolves one page of the listing described by f. Out-of-range pages are
// clamped. Author listings fail with ErrNotFound when the author does not exist;
// category and tag listings fail with ErrNotFound when no published post matches.
func (r *Resolver) List(ctx context.Context, f Filter, page int) (Listing, error) {
	var q PostQuery
	var title string
	switch f.Kind {
	case FilterHome:
		title = "Home"
	case FilterAuthor:
		author, err := r.store.GetAuthor(ctx, f.AuthorID)
		if err != nil {
			return Listing{}, err
		}
		q.AuthorID = author.ID
		title = "Posts by " + author.DisplayName()
	case FilterCategory:
		q.CategorySlug = f.Slug
	case FilterTag:
		q.TagSlug = f.Slug
	case FilterSearch:
		return r.search(ctx, f)
	default:
		return Listing{}, fmt.Errorf("list: unknown filter %v", f.Kind)
	}

	total, err := r.store.CountPosts(ctx, q)
	if err != nil {
		return Listing{}, err
	}
	p := Paginate(total, r.pageSize, page)
	q.Limit = p.PageSize
	q.Offset = p.Offset()
	posts, err := r.store.ListPosts(ctx, q)
	if err != nil {
		return Listing{}, err
	}

	switch f.Kind {
	case FilterCategory:
		if len(posts) == 0 {
			return Listing{}, ErrNotFound
		}
		title = "Category " + categoryName(posts[0], f.Slug)
	case FilterTag:
		if len(posts) == 0 {
			return Listing{}, ErrNotFound
		}
		title = "Tag " + tagName(posts[0], f.Slug)
	}

	return Listing{
		Filter:     f,
		Title:      title,
		Posts:      posts,
		Pagination: p,
	}, nil
}

// search returns at most one page of matches; it is never paginated further.
func (r *Resolver) search(ctx context.Context, f Filter) (Listing, error) {
	text := strings.TrimSpace(f.Search)
	if text == "" {
		return Listing{}, ErrEmptySearch
	}
	posts, err := r.store.ListPosts(ctx, PostQuery{Search: text, Limit: r.pageSize})
	if err != nil {
		return Listing{}, err
	}
	f.Search = text
	return Listing{
		Filter:      f,
		Title:       "Search " + truncateRunes(text, searchTitleRunes),
		Posts:       posts,
		Pagination:  Paginate(len(posts), r.pageSize, 1),
		SearchValue: text,
	}, nil
}

// Post resolves a published post by slug.
func (r *Resolver) Post(ctx context.Context, slug string) (Post, error) {
	return r.store.GetPost(ctx, slug)
}

// Page resolves a published page by slug.
func (r *Resolver) Page(ctx context.Context, slug string) (Page, error) {
	return r.store.GetPage(ctx, slug)
}

func categoryName(p Post, slug string) string {
	if p.Category != nil && p.Category.Name != "" {
		return p.Category.Name
	}
	return slug
}

func tagName(p Post, slug string) string {
	for _, t := range p.Tags {
		if t.Slug == slug {
			return t.Name
		}
	}
	return slug
}

func truncateRunes(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	return string([]rune(s)[:n])
}
