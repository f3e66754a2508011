package pubsite

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/a-h/templ"
	"github.com/labstack/echo/v4"

	"github.com/eringen/pubsite/markdown"
)

const (
	feedSize     = 20  // newest posts in /feed.xml
	summaryRunes = 160 // meta description and feed summary length
)

func (a *App) handleHome(c echo.Context) error {
	return a.renderListing(c, HomeFilter())
}

func (a *App) handleAuthor(c echo.Context) error {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id < 1 {
		return echo.ErrNotFound
	}
	return a.renderListing(c, AuthorFilter(id))
}

func (a *App) handleCategory(c echo.Context) error {
	return a.renderListing(c, CategoryFilter(c.Param("slug")))
}

func (a *App) handleTag(c echo.Context) error {
	return a.renderListing(c, TagFilter(c.Param("slug")))
}

func (a *App) handleSearch(c echo.Context) error {
	if a.searchLimiter != nil && !a.searchLimiter.Allow(c.RealIP()) {
		return c.String(http.StatusTooManyRequests, "Too many searches. Try again later.")
	}
	var req searchRequest
	if err := c.Bind(&req); err != nil {
		return err
	}
	if err := c.Validate(&req); err != nil {
		return err
	}
	return a.renderListing(c, SearchFilter(req.Search))
}

func (a *App) renderListing(c echo.Context, f Filter) error {
	kind := f.Kind.String()
	listing, err := a.Resolver.List(c.Request().Context(), f, ParsePage(c.QueryParam("page")))
	switch {
	case errors.Is(err, ErrEmptySearch):
		a.metrics.observe(kind, "redirect")
		return c.Redirect(http.StatusFound, "/")
	case errors.Is(err, ErrNotFound):
		a.metrics.observe(kind, "not_found")
		return err
	case err != nil:
		a.metrics.observe(kind, "error")
		return fmt.Errorf("%s listing: %w", kind, err)
	}
	a.metrics.observe(kind, "ok")

	if c.Request().Header.Get("HX-Request") == "true" && c.QueryParam("partial") == "posts" && a.Views.ListingPartial != nil {
		return Render(c, a.Views.ListingPartial(listing))
	}
	return Render(c, a.Views.Listing(listing, a.pageMeta(c, listing.Title, "website")))
}

func (a *App) handlePost(c echo.Context) error {
	post, err := a.Resolver.Post(c.Request().Context(), c.Param("slug"))
	if err != nil {
		a.metrics.observe("post", outcome(err))
		return err
	}
	a.metrics.observe("post", "ok")
	meta := a.pageMeta(c, post.Title, "article")
	if d := postSummary(post); d != "" {
		meta.Description = d
	}
	return Render(c, a.Views.Post(post, meta))
}

func (a *App) handlePage(c echo.Context) error {
	page, err := a.Resolver.Page(c.Request().Context(), c.Param("slug"))
	if err != nil {
		a.metrics.observe("page", outcome(err))
		return err
	}
	a.metrics.observe("page", "ok")
	return Render(c, a.Views.Page(page, a.pageMeta(c, page.Title, "website")))
}

// postSummary is the excerpt, or the start of the content as plain text.
func postSummary(p Post) string {
	if p.Excerpt != "" {
		return p.Excerpt
	}
	return markdown.Excerpt(p.Content, summaryRunes)
}

func outcome(err error) string {
	if errors.Is(err, ErrNotFound) {
		return "not_found"
	}
	return "error"
}

func (a *App) pageMeta(c echo.Context, title, ogType string) PageMeta {
	return PageMeta{
		Title:       FullTitle(title, a.Config.Name),
		Description: a.Config.Description,
		URL:         BuildURL(a.Config.URL, c.Request().URL.Path),
		OGType:      ogType,
	}
}

func (a *App) handleSitemap(c echo.Context) error {
	return a.renderSitemap(c)
}

func (a *App) handleFeed(c echo.Context) error {
	posts, err := a.Store.ListPosts(c.Request().Context(), PostQuery{Limit: feedSize})
	if err != nil {
		return err
	}
	return a.renderRSS(c, posts)
}

// handleRobots generates robots.txt pointing at the sitemap.
func (a *App) handleRobots(c echo.Context) error {
	body := fmt.Sprintf("User-agent: *\nAllow: /\nDisallow: /search/\n\nSitemap: %s/sitemap.xml\n", a.Config.URL)
	return c.String(http.StatusOK, body)
}

func handleHealth(c echo.Context) error {
	return c.String(http.StatusOK, "ok")
}

func (a *App) httpErrorHandler(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}
	he, ok := err.(*echo.HTTPError)
	if errors.Is(err, ErrNotFound) || (ok && he.Code == http.StatusNotFound) {
		a.renderError(c, http.StatusNotFound, a.Views.NotFound)
		return
	}
	code := http.StatusInternalServerError
	if ok {
		code = he.Code
	}
	if code >= 500 {
		a.Logger.Error("server error", "method", c.Request().Method, "uri", c.Request().RequestURI, "err", err)
		a.renderError(c, code, a.Views.ServerError)
		return
	}
	a.Echo.DefaultHTTPErrorHandler(err, c)
}

func (a *App) renderError(c echo.Context, code int, view func() templ.Component) {
	if view == nil {
		_ = c.String(code, http.StatusText(code))
		return
	}
	if err := RenderStatus(c, code, view()); err != nil {
		a.Logger.Error("render error page", "status", code, "err", err)
	}
}
