package pubsite

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := NewStore(context.Background(), filepath.Join(t.TempDir(), "data", "test_blog.db"))
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

// testContent holds the ids created by seedContent.
type testContent struct {
	jane, john int64
	goCat      int64
	newsCat    int64
}

// seedContent creates two authors, two categories, three tags and five posts:
//
//	hello      jane  go    [go, testing]   published
//	draft      jane  go    [go]            unpublished
//	release    john  news  [release]       published
//	café-notes john  -     []              published
//	advanced   jane  go    [go]            published
func seedContent(t *testing.T, s *Store) testContent {
	t.Helper()
	ctx := context.Background()
	var c testContent
	var err error

	c.jane, err = s.SaveAuthor(ctx, Author{Username: "jane", FirstName: "Jane", LastName: "Doe"})
	require.NoError(t, err)
	c.john, err = s.SaveAuthor(ctx, Author{Username: "john"})
	require.NoError(t, err)
	c.goCat, err = s.SaveCategory(ctx, Category{Name: "Go", Slug: "go"})
	require.NoError(t, err)
	c.newsCat, err = s.SaveCategory(ctx, Category{Name: "News", Slug: "news"})
	require.NoError(t, err)
	for _, tag := range []Tag{{Name: "Go", Slug: "go"}, {Name: "Testing", Slug: "testing"}, {Name: "Release", Slug: "release"}} {
		_, err = s.SaveTag(ctx, tag)
		require.NoError(t, err)
	}

	base := time.Date(2024, 1, 1, 9, 0, 0, 0, time.UTC)
	posts := []Post{
		{Title: "Hello Go", Slug: "hello", Excerpt: "first", Content: "Hello from Go.", Published: true,
			Author: &Author{ID: c.jane}, Category: &Category{ID: c.goCat}, Tags: []Tag{{Slug: "go"}, {Slug: "testing"}}},
		{Title: "Draft", Slug: "draft", Content: "secret", Published: false,
			Author: &Author{ID: c.jane}, Category: &Category{ID: c.goCat}, Tags: []Tag{{Slug: "go"}}},
		{Title: "Release 1.0", Slug: "release", Content: "Shipped.", Published: true,
			Author: &Author{ID: c.john}, Category: &Category{ID: c.newsCat}, Tags: []Tag{{Slug: "release"}}},
		{Title: "Café Notes", Slug: "cafe-notes", Excerpt: "ÜBER coffee", Content: "Espresso.", Published: true,
			Author: &Author{ID: c.john}},
		{Title: "Advanced Go", Slug: "advanced", Content: "Generics and more.", Published: true,
			Author: &Author{ID: c.jane}, Category: &Category{ID: c.goCat}, Tags: []Tag{{Slug: "go"}}},
	}
	for i, p := range posts {
		p.CreatedAt = base.Add(time.Duration(i) * 24 * time.Hour)
		_, err = s.SavePost(ctx, p)
		require.NoError(t, err)
	}
	return c
}

func slugs(posts []Post) []string {
	out := make([]string, len(posts))
	for i, p := range posts {
		out[i] = p.Slug
	}
	return out
}

func TestNewStore(t *testing.T) {
	s := setupTestStore(t)
	if s.DB() == nil {
		t.Fatal("db should not be nil")
	}
	v, err := SchemaVersion(context.Background(), s.DB())
	require.NoError(t, err)
	assert.Equal(t, int64(1), v)
}

func TestNewStoreIsIdempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "blog.db")
	s, err := NewStore(context.Background(), path)
	require.NoError(t, err)
	require.NoError(t, s.Close())

	s, err = NewStore(context.Background(), path)
	require.NoError(t, err)
	require.NoError(t, s.Close())
}

func TestSaveAndGetPost(t *testing.T) {
	s := setupTestStore(t)
	c := seedContent(t, s)

	post, err := s.GetPost(context.Background(), "hello")
	require.NoError(t, err)
	assert.Equal(t, "Hello Go", post.Title)
	assert.Equal(t, "first", post.Excerpt)
	assert.True(t, post.Published)
	assert.Equal(t, time.Date(2024, 1, 1, 9, 0, 0, 0, time.UTC), post.CreatedAt.UTC())
	require.NotNil(t, post.Author)
	assert.Equal(t, c.jane, post.Author.ID)
	assert.Equal(t, "Jane Doe", post.Author.DisplayName())
	require.NotNil(t, post.Category)
	assert.Equal(t, "go", post.Category.Slug)
	assert.Equal(t, []Tag{{ID: post.Tags[0].ID, Name: "Go", Slug: "go"}, {ID: post.Tags[1].ID, Name: "Testing", Slug: "testing"}}, post.Tags)
}

func TestSavePostUpdate(t *testing.T) {
	s := setupTestStore(t)
	seedContent(t, s)
	ctx := context.Background()

	before, err := s.GetPost(ctx, "hello")
	require.NoError(t, err)

	id, err := s.SavePost(ctx, Post{Title: "Hello Again", Slug: "hello", Published: true, Tags: []Tag{{Slug: "release"}}})
	require.NoError(t, err)
	assert.Equal(t, before.ID, id)

	after, err := s.GetPost(ctx, "hello")
	require.NoError(t, err)
	assert.Equal(t, "Hello Again", after.Title)
	assert.Nil(t, after.Author)
	assert.Nil(t, after.Category)
	require.Len(t, after.Tags, 1)
	assert.Equal(t, "release", after.Tags[0].Slug)
	assert.Equal(t, before.CreatedAt.UTC(), after.CreatedAt.UTC())
}

func TestSavePostUnknownTag(t *testing.T) {
	s := setupTestStore(t)
	_, err := s.SavePost(context.Background(), Post{Title: "x", Slug: "x", Published: true, Tags: []Tag{{Slug: "missing"}}})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrNotFound))

	_, err = s.GetPost(context.Background(), "x")
	assert.ErrorIs(t, err, ErrNotFound, "failed save must be rolled back")
}

func TestGetPostNotFound(t *testing.T) {
	s := setupTestStore(t)
	_, err := s.GetPost(context.Background(), "nope")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestGetPostUnpublished(t *testing.T) {
	s := setupTestStore(t)
	seedContent(t, s)
	_, err := s.GetPost(context.Background(), "draft")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestListPostsNewestFirst(t *testing.T) {
	s := setupTestStore(t)
	seedContent(t, s)

	posts, err := s.ListPosts(context.Background(), PostQuery{})
	require.NoError(t, err)
	assert.Equal(t, []string{"advanced", "cafe-notes", "release", "hello"}, slugs(posts))

	n, err := s.CountPosts(context.Background(), PostQuery{})
	require.NoError(t, err)
	assert.Equal(t, 4, n)
}

func TestListPostsLimitOffset(t *testing.T) {
	s := setupTestStore(t)
	seedContent(t, s)

	posts, err := s.ListPosts(context.Background(), PostQuery{Limit: 2, Offset: 1})
	require.NoError(t, err)
	assert.Equal(t, []string{"cafe-notes", "release"}, slugs(posts))
}

func TestListPostsFilters(t *testing.T) {
	s := setupTestStore(t)
	c := seedContent(t, s)
	ctx := context.Background()

	tests := []struct {
		name string
		q    PostQuery
		want []string
	}{
		{"author", PostQuery{AuthorID: c.jane}, []string{"advanced", "hello"}},
		{"category", PostQuery{CategorySlug: "go"}, []string{"advanced", "hello"}},
		{"tag", PostQuery{TagSlug: "release"}, []string{"release"}},
		{"unknown category", PostQuery{CategorySlug: "nope"}, []string{}},
		{"search title", PostQuery{Search: "advanced"}, []string{"advanced"}},
		{"search content", PostQuery{Search: "shipped"}, []string{"release"}},
		{"search case folded", PostQuery{Search: "HELLO"}, []string{"hello"}},
		{"search unicode", PostQuery{Search: "über"}, []string{"cafe-notes"}},
		{"search accented", PostQuery{Search: "CAFÉ"}, []string{"cafe-notes"}},
		{"search skips drafts", PostQuery{Search: "secret"}, []string{}},
		{"search literal percent", PostQuery{Search: "%"}, []string{}},
		{"author and tag", PostQuery{AuthorID: c.jane, TagSlug: "testing"}, []string{"hello"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			posts, err := s.ListPosts(ctx, tt.q)
			require.NoError(t, err)
			assert.Equal(t, tt.want, slugs(posts))

			n, err := s.CountPosts(ctx, tt.q)
			require.NoError(t, err)
			assert.Equal(t, len(tt.want), n)
		})
	}
}

func TestListPostsAttachesTagsToEveryPost(t *testing.T) {
	s := setupTestStore(t)
	seedContent(t, s)

	posts, err := s.ListPosts(context.Background(), PostQuery{})
	require.NoError(t, err)
	tags := make(map[string]int)
	for _, p := range posts {
		tags[p.Slug] = len(p.Tags)
	}
	assert.Equal(t, map[string]int{"advanced": 1, "cafe-notes": 0, "release": 1, "hello": 2}, tags)
}

func TestGetAuthor(t *testing.T) {
	s := setupTestStore(t)
	c := seedContent(t, s)

	a, err := s.GetAuthor(context.Background(), c.john)
	require.NoError(t, err)
	assert.Equal(t, "john", a.DisplayName())

	_, err = s.GetAuthor(context.Background(), 999)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestPages(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	_, err := s.SavePage(ctx, Page{Title: "About", Slug: "about", Body: "Hi", Published: true})
	require.NoError(t, err)
	_, err = s.SavePage(ctx, Page{Title: "Hidden", Slug: "hidden", Body: "x"})
	require.NoError(t, err)

	p, err := s.GetPage(ctx, "about")
	require.NoError(t, err)
	assert.Equal(t, "Hi", p.Body)

	_, err = s.GetPage(ctx, "hidden")
	assert.ErrorIs(t, err, ErrNotFound)

	pages, err := s.ListPages(ctx)
	require.NoError(t, err)
	require.Len(t, pages, 1)
	assert.Equal(t, "about", pages[0].Slug)
	assert.True(t, pages[0].Published)
}

func TestListCategoriesAndTags(t *testing.T) {
	s := setupTestStore(t)
	seedContent(t, s)
	ctx := context.Background()
	_, err := s.SaveCategory(ctx, Category{Name: "Empty", Slug: "empty"})
	require.NoError(t, err)

	cats, err := s.ListCategories(ctx)
	require.NoError(t, err)
	names := []string{}
	for _, c := range cats {
		names = append(names, c.Name)
	}
	assert.Equal(t, []string{"Go", "News"}, names)

	tags, err := s.ListTags(ctx)
	require.NoError(t, err)
	names = names[:0]
	for _, tg := range tags {
		names = append(names, tg.Name)
	}
	assert.Equal(t, []string{"Go", "Release", "Testing"}, names)
}

func TestDeletePost(t *testing.T) {
	s := setupTestStore(t)
	seedContent(t, s)
	ctx := context.Background()

	require.NoError(t, s.DeletePost(ctx, "hello"))
	_, err := s.GetPost(ctx, "hello")
	assert.ErrorIs(t, err, ErrNotFound)

	// tags of the deleted post are gone with it
	tags, err := s.ListTags(ctx)
	require.NoError(t, err)
	for _, tg := range tags {
		assert.NotEqual(t, "testing", tg.Slug)
	}
}

func TestDeleteNonexistentPost(t *testing.T) {
	s := setupTestStore(t)
	assert.NoError(t, s.DeletePost(context.Background(), "nope"))
}

func TestListPostsManyPosts(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()
	for i := 1; i <= 25; i++ {
		_, err := s.SavePost(ctx, Post{Title: fmt.Sprintf("Post %d", i), Slug: fmt.Sprintf("post-%d", i), Published: true})
		require.NoError(t, err)
	}
	posts, err := s.ListPosts(ctx, PostQuery{Limit: PageSize, Offset: 18})
	require.NoError(t, err)
	assert.Len(t, posts, 7)
	assert.True(t, strings.HasPrefix(posts[0].Slug, "post-7"))
}

func TestHomeContainsEveryFilteredListing(t *testing.T) {
	s := setupTestStore(t)
	c := seedContent(t, s)
	ctx := context.Background()

	home, err := s.ListPosts(ctx, PostQuery{})
	require.NoError(t, err)
	all := make(map[string]bool)
	for _, p := range home {
		require.True(t, p.Published)
		all[p.Slug] = true
	}

	for _, q := range []PostQuery{
		{AuthorID: c.jane}, {AuthorID: c.john},
		{CategorySlug: "go"}, {CategorySlug: "news"},
		{TagSlug: "go"}, {TagSlug: "testing"}, {TagSlug: "release"},
		{Search: "o"},
	} {
		posts, err := s.ListPosts(ctx, q)
		require.NoError(t, err)
		for _, p := range posts {
			assert.True(t, all[p.Slug], "%+v returned %s which is not on the home listing", q, p.Slug)
		}
	}
}

func TestGetCategoryAndTag(t *testing.T) {
	s := setupTestStore(t)
	seedContent(t, s)
	ctx := context.Background()

	c, err := s.GetCategory(ctx, "news")
	require.NoError(t, err)
	assert.Equal(t, "News", c.Name)
	_, err = s.GetCategory(ctx, "nope")
	assert.ErrorIs(t, err, ErrNotFound)

	tg, err := s.GetTag(ctx, "testing")
	require.NoError(t, err)
	assert.Equal(t, "Testing", tg.Name)
	_, err = s.GetTag(ctx, "nope")
	assert.ErrorIs(t, err, ErrNotFound)
}
