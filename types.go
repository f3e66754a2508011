package pubsite

import (
	"strings"
	"time"
)

// Author owns posts. FirstName/LastName are optional.
type Author struct {
	ID        int64
	Username  string
	FirstName string
	LastName  string
}

// DisplayName returns "First Last" when a first name is set, otherwise the username.
func (a Author) DisplayName() string {
	if a.FirstName != "" {
		return strings.TrimSpace(a.FirstName + " " + a.LastName)
	}
	return a.Username
}

// Category groups posts; a post belongs to at most one.
type Category struct {
	ID   int64
	Name string
	Slug string
}

// Link returns the category listing path.
func (c Category) Link() string {
	return "/category/" + PathEscape(c.Slug) + "/"
}

// Tag labels posts; a post can carry many.
type Tag struct {
	ID   int64
	Name string
	Slug string
}

// Link returns the tag listing path.
func (t Tag) Link() string {
	return "/tag/" + PathEscape(t.Slug) + "/"
}

// Post is the core content type listed and rendered by the site.
type Post struct {
	ID        int64
	Title     string
	Slug      string
	Excerpt   string
	Content   string
	Published bool
	CreatedAt time.Time
	Author    *Author
	Category  *Category
	Tags      []Tag
}

// Link returns the post detail path.
func (p Post) Link() string {
	return "/" + PathEscape(p.Slug) + "/"
}

// AuthorLink returns the author listing path, or "" for posts without an author.
func (p Post) AuthorLink() string {
	if p.Author == nil {
		return ""
	}
	return "/author/" + formatID(p.Author.ID) + "/"
}

// Page is a standalone document, independent of posts.
type Page struct {
	ID        int64
	Title     string
	Slug      string
	Body      string
	Published bool
}

// Link returns the page detail path.
func (p Page) Link() string {
	return "/pages/" + PathEscape(p.Slug) + "/"
}

// PageMeta carries per-page OpenGraph and SEO metadata into the <head> template.
type PageMeta struct {
	Title       string // "<page title> - <site name>"
	Description string
	URL         string // canonical + og:url
	OGType      string // "website" or "article"
}
