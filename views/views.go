// Package views is the default pubsite view set. It renders embedded
// html/template files through templ components so it plugs into
// pubsite.ViewFuncs like any templ-generated view package.
package views

import (
	"bytes"
	"context"
	"embed"
	"html/template"
	"io"
	"io/fs"
	"net/url"
	"strconv"

	"github.com/a-h/templ"

	"github.com/eringen/pubsite"
	"github.com/eringen/pubsite/markdown"
)

//go:embed templates/*.html
var templateFS embed.FS

//go:embed static
var staticFS embed.FS

// Static holds the stylesheet the default templates link to. Serve it with
// pubsite.WithStaticFS.
var Static, _ = fs.Sub(staticFS, "static")

// New returns ViewFuncs that render cfg's site name, description and links.
func New(cfg pubsite.SiteConfig) pubsite.ViewFuncs {
	v := &viewSet{cfg: cfg}
	v.tmpl = template.Must(template.New("").Funcs(v.funcs()).ParseFS(templateFS, "templates/*.html"))

	return pubsite.ViewFuncs{
		Listing: func(l pubsite.Listing, meta pubsite.PageMeta) templ.Component {
			return v.component("listing", pageData{Meta: meta, Site: cfg, Listing: l})
		},
		ListingPartial: func(l pubsite.Listing) templ.Component {
			return v.component("posts", pageData{Site: cfg, Listing: l})
		},
		Post: func(post pubsite.Post, meta pubsite.PageMeta) templ.Component {
			return v.component("post", pageData{Meta: meta, Site: cfg, Post: post})
		},
		Page: func(page pubsite.Page, meta pubsite.PageMeta) templ.Component {
			return v.component("page", pageData{Meta: meta, Site: cfg, Page: page})
		},
		NotFound: func() templ.Component {
			return v.component("notfound", pageData{Meta: pubsite.PageMeta{Title: pubsite.FullTitle("Not Found", cfg.Name)}, Site: cfg})
		},
		ServerError: func() templ.Component {
			return v.component("error", pageData{Meta: pubsite.PageMeta{Title: pubsite.FullTitle("Server Error", cfg.Name)}, Site: cfg})
		},
	}
}

type pageData struct {
	Meta    pubsite.PageMeta
	Site    pubsite.SiteConfig
	Listing pubsite.Listing
	Post    pubsite.Post
	Page    pubsite.Page
}

type viewSet struct {
	cfg  pubsite.SiteConfig
	tmpl *template.Template
}

// component renders into a buffer first so a template error never leaves a
// half-written page on the response.
func (v *viewSet) component(name string, data pageData) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		var buf bytes.Buffer
		if err := v.tmpl.ExecuteTemplate(&buf, name, data); err != nil {
			return err
		}
		_, err := w.Write(buf.Bytes())
		return err
	})
}

func (v *viewSet) funcs() template.FuncMap {
	opts := markdown.Options{SiteURL: v.cfg.URL}
	return template.FuncMap{
		"markdown": func(s string) template.HTML { return markdown.ToHTML(s, opts) },
		"jsonld":   func(s string) template.JS { return template.JS(s) },
		"websiteJSONLD": func() string {
			return pubsite.WebsiteJsonLD(v.cfg)
		},
		"postJSONLD": func(p pubsite.Post) string {
			return pubsite.BlogPostingJsonLD(p, v.cfg)
		},
		"pageURL": pageURL,
	}
}

// pageURL links to page n of a listing, keeping the search text.
func pageURL(l pubsite.Listing, n int) string {
	q := url.Values{}
	q.Set("page", strconv.Itoa(n))
	if l.SearchValue != "" {
		q.Set("search", l.SearchValue)
	}
	return "?" + q.Encode()
}
