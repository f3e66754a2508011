package pubsite

import (
	"context"
	"fmt"
	"io"
	"time"

	"gopkg.in/yaml.v3"
)

// Fixtures is the YAML document accepted by LoadFixtures. Posts reference
// authors by username, and categories and tags by slug. Posts are inserted in
// document order, so the last post is the newest.
type Fixtures struct {
	Authors []struct {
		Username  string `yaml:"username"`
		FirstName string `yaml:"first_name"`
		LastName  string `yaml:"last_name"`
	} `yaml:"authors"`
	Categories []struct {
		Name string `yaml:"name"`
		Slug string `yaml:"slug"`
	} `yaml:"categories"`
	Tags []struct {
		Name string `yaml:"name"`
		Slug string `yaml:"slug"`
	} `yaml:"tags"`
	Posts []struct {
		Title     string    `yaml:"title"`
		Slug      string    `yaml:"slug"`
		Excerpt   string    `yaml:"excerpt"`
		Content   string    `yaml:"content"`
		Published bool      `yaml:"published"`
		CreatedAt time.Time `yaml:"created_at"`
		Author    string    `yaml:"author"`
		Category  string    `yaml:"category"`
		Tags      []string  `yaml:"tags"`
	} `yaml:"posts"`
	Pages []struct {
		Title     string `yaml:"title"`
		Slug      string `yaml:"slug"`
		Body      string `yaml:"body"`
		Published bool   `yaml:"published"`
	} `yaml:"pages"`
}

// FixtureStats counts the records written by LoadFixtures.
type FixtureStats struct {
	Authors    int
	Categories int
	Tags       int
	Posts      int
	Pages      int
}

// LoadFixtures decodes a Fixtures document from r and upserts every record into s.
// Missing slugs are derived from names and titles.
func LoadFixtures(ctx context.Context, s *Store, r io.Reader) (FixtureStats, error) {
	var f Fixtures
	if err := yaml.NewDecoder(r).Decode(&f); err != nil && err != io.EOF {
		return FixtureStats{}, fmt.Errorf("decode fixtures: %w", err)
	}

	var stats FixtureStats
	authors := make(map[string]int64, len(f.Authors))
	for _, a := range f.Authors {
		id, err := s.SaveAuthor(ctx, Author{Username: a.Username, FirstName: a.FirstName, LastName: a.LastName})
		if err != nil {
			return stats, err
		}
		authors[a.Username] = id
		stats.Authors++
	}

	categories := make(map[string]int64, len(f.Categories))
	for _, c := range f.Categories {
		slug := c.Slug
		if slug == "" {
			slug = Slugify(c.Name)
		}
		id, err := s.SaveCategory(ctx, Category{Name: c.Name, Slug: slug})
		if err != nil {
			return stats, err
		}
		categories[slug] = id
		stats.Categories++
	}

	for _, t := range f.Tags {
		slug := t.Slug
		if slug == "" {
			slug = Slugify(t.Name)
		}
		if _, err := s.SaveTag(ctx, Tag{Name: t.Name, Slug: slug}); err != nil {
			return stats, err
		}
		stats.Tags++
	}

	for _, p := range f.Posts {
		post := Post{
			Title:     p.Title,
			Slug:      p.Slug,
			Excerpt:   p.Excerpt,
			Content:   p.Content,
			Published: p.Published,
			CreatedAt: p.CreatedAt,
		}
		if post.Slug == "" {
			post.Slug = Slugify(p.Title)
		}
		if p.Author != "" {
			id, ok := authors[p.Author]
			if !ok {
				return stats, fmt.Errorf("post %q: unknown author %q", post.Slug, p.Author)
			}
			post.Author = &Author{ID: id}
		}
		if p.Category != "" {
			id, ok := categories[p.Category]
			if !ok {
				return stats, fmt.Errorf("post %q: unknown category %q", post.Slug, p.Category)
			}
			post.Category = &Category{ID: id}
		}
		for _, t := range p.Tags {
			post.Tags = append(post.Tags, Tag{Slug: t})
		}
		if _, err := s.SavePost(ctx, post); err != nil {
			return stats, err
		}
		stats.Posts++
	}

	for _, p := range f.Pages {
		page := Page{Title: p.Title, Slug: p.Slug, Body: p.Body, Published: p.Published}
		if page.Slug == "" {
			page.Slug = Slugify(p.Title)
		}
		if _, err := s.SavePage(ctx, page); err != nil {
			return stats, err
		}
		stats.Pages++
	}
	return stats, nil
}
