// Package pubsite is a content-listing blog backend built with Go, Echo, and templ.
// It lists published posts by author, category, tag, or search text, serves
// post and page detail views, and publishes RSS and a sitemap.
//
// Users provide their own templ templates via the ViewFuncs struct,
// and pubsite handles the routing, query resolution, and database reads.
package pubsite

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"net/http"

	"github.com/a-h/templ"
	"github.com/charmbracelet/log"
	"github.com/labstack/echo-contrib/echoprometheus"
	"github.com/labstack/echo/v4"
)

// ViewFuncs holds user-provided templ components that the framework calls
// when rendering pages.
type ViewFuncs struct {
	Listing        func(l Listing, meta PageMeta) templ.Component
	ListingPartial func(l Listing) templ.Component
	Post           func(post Post, meta PageMeta) templ.Component
	Page           func(page Page, meta PageMeta) templ.Component
	NotFound       func() templ.Component
	ServerError    func() templ.Component
}

// App is the central pubsite application. It wires together the store,
// resolver, handlers, middleware, and user-provided templates.
type App struct {
	Config   SiteConfig
	Echo     *echo.Echo
	Store    *Store
	Resolver *Resolver
	Views    ViewFuncs
	Logger   *log.Logger

	searchLimiter *RateLimiter
	metrics       *metrics
	customRoutes  []func(*App)
	staticDir     string
	staticFS      fs.FS
	ownsStore     bool
}

// New creates a new pubsite App with the given configuration and view functions.
func New(cfg SiteConfig, views ViewFuncs, opts ...Option) *App {
	cfg.setDefaults()

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	a := &App{
		Config:    cfg,
		Echo:      e,
		Views:     views,
		staticDir: "public",
	}

	for _, opt := range opts {
		opt(a)
	}
	if a.Logger == nil {
		a.Logger = NewLogger(cfg, nil)
	}
	return a
}

// Init opens the store if none was supplied, then installs middleware and routes.
// Start calls it; tests call it directly and drive a.Echo with httptest.
func (a *App) Init(ctx context.Context) error {
	if a.Store == nil {
		store, err := NewStore(ctx, a.Config.DatabasePath)
		if err != nil {
			return fmt.Errorf("pubsite: init store: %w", err)
		}
		a.Store = store
		a.ownsStore = true
	}
	a.Resolver = NewResolver(a.Store)
	if a.Config.MetricsEnabled {
		a.metrics = newMetrics()
	}
	if a.Config.SearchRateLimit > 0 {
		a.searchLimiter = NewRateLimiter(a.Config.SearchRateLimit, a.Config.SearchRateWindow)
	}

	a.setupMiddleware()
	a.setupRoutes()

	for _, fn := range a.customRoutes {
		fn(a)
	}
	return nil
}

// Start initializes the app and serves HTTP until the server is shut down.
func (a *App) Start(ctx context.Context) error {
	if err := a.Init(ctx); err != nil {
		return err
	}
	a.Logger.Info("listening", "addr", a.Config.Addr, "url", a.Config.URL)
	if err := a.Echo.Start(a.Config.Addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown stops the HTTP server gracefully.
func (a *App) Shutdown(ctx context.Context) error {
	return a.Echo.Shutdown(ctx)
}

func (a *App) setupRoutes() {
	e := a.Echo

	if a.staticFS != nil {
		e.StaticFS("/public", a.staticFS)
	} else {
		e.Static("/public", a.staticDir)
	}
	e.GET("/robots.txt", a.handleRobots)
	e.GET("/healthz", handleHealth)
	if a.Config.MetricsEnabled {
		e.GET("/metrics", echoprometheus.NewHandlerWithConfig(echoprometheus.HandlerConfig{
			Gatherer: a.metrics.registry,
		}))
	}

	e.GET("/sitemap.xml", a.handleSitemap)
	e.GET("/feed.xml", a.handleFeed)

	e.GET("/", a.handleHome)
	e.GET("/author/:id/", a.handleAuthor)
	e.GET("/category/:slug/", a.handleCategory)
	e.GET("/tag/:slug/", a.handleTag)
	e.GET("/search/", a.handleSearch)
	e.GET("/pages/:slug/", a.handlePage)
	e.GET("/:slug/", a.handlePost)
}

// Close releases the store if the App opened it.
func (a *App) Close() error {
	if a.Store != nil && a.ownsStore {
		return a.Store.Close()
	}
	return nil
}
