package pubsite

import (
	"encoding/xml"
	"net/http"

	"github.com/labstack/echo/v4"
)

type sitemapURLSet struct {
	XMLName xml.Name     `xml:"urlset"`
	XMLNS   string       `xml:"xmlns,attr"`
	URLs    []sitemapURL `xml:"url"`
}

type sitemapURL struct {
	Loc     string `xml:"loc"`
	LastMod string `xml:"lastmod,omitempty"`
}

// renderSitemap lists the home page, every published post and page, and the
// category and tag listings that have published posts.
func (a *App) renderSitemap(c echo.Context) error {
	ctx := c.Request().Context()
	posts, err := a.Store.ListPosts(ctx, PostQuery{})
	if err != nil {
		return err
	}
	pages, err := a.Store.ListPages(ctx)
	if err != nil {
		return err
	}
	categories, err := a.Store.ListCategories(ctx)
	if err != nil {
		return err
	}
	tags, err := a.Store.ListTags(ctx)
	if err != nil {
		return err
	}

	base := a.Config.URL
	urls := []sitemapURL{
		{Loc: BuildURL(base)},
	}
	for _, p := range posts {
		urls = append(urls, sitemapURL{
			Loc:     BuildURL(base, p.Slug),
			LastMod: p.CreatedAt.Format("2006-01-02"),
		})
	}
	for _, p := range pages {
		urls = append(urls, sitemapURL{Loc: BuildURL(base, "pages", p.Slug)})
	}
	for _, cat := range categories {
		urls = append(urls, sitemapURL{Loc: BuildURL(base, "category", cat.Slug)})
	}
	for _, t := range tags {
		urls = append(urls, sitemapURL{Loc: BuildURL(base, "tag", t.Slug)})
	}
	sitemap := sitemapURLSet{
		XMLNS: "http://www.sitemaps.org/schemas/sitemap/0.9",
		URLs:  urls,
	}
	c.Response().Header().Set(echo.HeaderContentType, "application/xml; charset=utf-8")
	c.Response().WriteHeader(http.StatusOK)
	c.Response().Write([]byte(xml.Header))
	return xml.NewEncoder(c.Response()).Encode(sitemap)
}
