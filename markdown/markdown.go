// Package markdown renders post and page bodies from Markdown to HTML, with
// chroma highlighting for fenced code blocks.
package markdown

import (
	"context"
	stdhtml "html"
	"html/template"
	"io"
	"net/url"
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/a-h/templ"
	"github.com/alecthomas/chroma/v2"
	chromahtml "github.com/alecthomas/chroma/v2/formatters/html"
	"github.com/alecthomas/chroma/v2/lexers"
	"github.com/alecthomas/chroma/v2/styles"
	md "github.com/gomarkdown/markdown"
	"github.com/gomarkdown/markdown/ast"
	mdhtml "github.com/gomarkdown/markdown/html"
	"github.com/gomarkdown/markdown/parser"
)

// Options controls link handling. Links that start with SiteURL are rewritten
// to site-relative paths and open in the same tab.
type Options struct {
	SiteURL string
}

var (
	reFence     = regexp.MustCompile("(?s)```.*?```")
	reImage     = regexp.MustCompile(`!\[.*?\]\(.*?\)`)
	reLink      = regexp.MustCompile(`\[(.*?)\]\(.*?\)`)
	reEmphasis  = regexp.MustCompile(`(\*{1,3}|_{1,3}|~~)(.+?)(\*{1,3}|_{1,3}|~~)`)
	reHeading   = regexp.MustCompile(`(?m)^#{1,6}\s+`)
	reQuote     = regexp.MustCompile(`(?m)^\s*>\s?`)
	reInline    = regexp.MustCompile("`([^`]*)`")
	reHTMLTag   = regexp.MustCompile(`<[^>]*>`)
	reListStart = regexp.MustCompile(`(?m)^\s*(?:[-*+]|\d+\.)\s+`)
)

// Markdown returns a templ.Component that renders content as HTML.
func Markdown(content string) templ.Component {
	return MarkdownWith(content, Options{})
}

// MarkdownWith is Markdown with explicit link options.
func MarkdownWith(content string, opts Options) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		_, err := io.WriteString(w, string(ToHTML(content, opts)))
		return err
	})
}

// ToHTML renders content to HTML. Raw HTML in the input is dropped.
func ToHTML(content string, opts Options) template.HTML {
	if strings.TrimSpace(content) == "" {
		return ""
	}
	p := parser.NewWithExtensions(parser.CommonExtensions | parser.AutoHeadingIDs)
	doc := p.Parse([]byte(content))
	rewriteNodes(doc, opts)

	hook := &nodeHook{}
	renderer := mdhtml.NewRenderer(mdhtml.RendererOptions{
		Flags:          mdhtml.CommonFlags | mdhtml.SkipHTML,
		RenderNodeHook: hook.render,
	})
	return template.HTML(md.Render(doc, renderer))
}

// Excerpt returns the first maxChars runes of content as plain text, cut at a
// word boundary when one is close to the limit.
func Excerpt(content string, maxChars int) string {
	if maxChars < 1 {
		return ""
	}
	text := PlainText(content)
	if utf8.RuneCountInString(text) <= maxChars {
		return text
	}
	runes := []rune(text)
	cut := maxChars
	for i := maxChars - 1; i >= maxChars*4/5; i-- {
		if unicode.IsSpace(runes[i]) {
			cut = i
			break
		}
	}
	return strings.TrimSpace(string(runes[:cut])) + "..."
}

// PlainText strips Markdown syntax and collapses whitespace.
func PlainText(content string) string {
	text := reFence.ReplaceAllString(content, " ")
	text = reImage.ReplaceAllString(text, " ")
	text = reLink.ReplaceAllString(text, "$1")
	text = reEmphasis.ReplaceAllString(text, "$2")
	text = reHeading.ReplaceAllString(text, "")
	text = reQuote.ReplaceAllString(text, "")
	text = reListStart.ReplaceAllString(text, "")
	text = reInline.ReplaceAllString(text, "$1")
	text = reHTMLTag.ReplaceAllString(text, "")
	return strings.Join(strings.Fields(text), " ")
}

// SafeURL returns u if it is a relative URL or uses an http, https, or mailto
// scheme, and "" otherwise.
func SafeURL(u string) string {
	u = strings.TrimSpace(u)
	if u == "" {
		return ""
	}
	parsed, err := url.Parse(u)
	if err != nil {
		return ""
	}
	switch strings.ToLower(parsed.Scheme) {
	case "", "http", "https", "mailto":
		return u
	}
	return ""
}

func rewriteNodes(doc ast.Node, opts Options) {
	ast.WalkFunc(doc, func(node ast.Node, entering bool) ast.WalkStatus {
		if !entering {
			return ast.GoToNext
		}
		switch n := node.(type) {
		case *ast.Link:
			href, local := localize(SafeURL(string(n.Destination)), opts.SiteURL)
			n.Destination = []byte(href)
			if !local && isAbsolute(href) {
				n.AdditionalAttributes = append(n.AdditionalAttributes, `target="_blank"`, `rel="noopener noreferrer"`)
			}
		case *ast.Image:
			n.Destination = []byte(SafeURL(string(n.Destination)))
		}
		return ast.GoToNext
	})
}

func isAbsolute(href string) bool {
	u, err := url.Parse(href)
	return err == nil && u.IsAbs()
}

func localize(href, siteURL string) (string, bool) {
	if siteURL == "" || !strings.HasPrefix(href, siteURL) {
		return href, false
	}
	u, err := url.Parse(href)
	if err != nil {
		return href, true
	}
	out := u.Path
	if out == "" {
		out = "/"
	}
	if u.RawQuery != "" {
		out += "?" + u.RawQuery
	}
	if u.Fragment != "" {
		out += "#" + u.Fragment
	}
	return out, true
}

// nodeHook overrides rendering of code and images for a single document.
type nodeHook struct {
	images int
}

func (h *nodeHook) render(w io.Writer, node ast.Node, entering bool) (ast.WalkStatus, bool) {
	if !entering {
		return ast.GoToNext, false
	}
	switch n := node.(type) {
	case *ast.Image:
		h.images++
		h.renderImage(w, n)
		return ast.SkipChildren, true
	case *ast.CodeBlock:
		renderCodeBlock(w, n)
		return ast.SkipChildren, true
	case *ast.Code:
		_, _ = io.WriteString(w, `<code class="inline-code">`+stdhtml.EscapeString(string(n.Literal))+`</code>`)
		return ast.SkipChildren, true
	}
	return ast.GoToNext, false
}

// renderImage eagerly fetches the first image of a document and lazy-loads the rest.
func (h *nodeHook) renderImage(w io.Writer, img *ast.Image) {
	load := `loading="lazy"`
	if h.images == 1 {
		load = `fetchpriority="high"`
	}
	var alt strings.Builder
	ast.WalkFunc(img, func(node ast.Node, entering bool) ast.WalkStatus {
		if leaf := node.AsLeaf(); entering && leaf != nil {
			alt.Write(leaf.Literal)
		}
		return ast.GoToNext
	})
	tag := `<img ` + load + ` src="` + stdhtml.EscapeString(string(img.Destination)) + `" alt="` + stdhtml.EscapeString(alt.String()) + `"`
	if len(img.Title) > 0 {
		tag += ` title="` + stdhtml.EscapeString(string(img.Title)) + `"`
	}
	_, _ = io.WriteString(w, tag+` decoding="async">`)
}

func renderCodeBlock(w io.Writer, block *ast.CodeBlock) {
	code := string(block.Literal)
	lang := codeLanguage(block.Info)
	if lang != "" {
		escaped := stdhtml.EscapeString(lang)
		_, _ = io.WriteString(w, `<div class="code-block-wrapper"><span class="code-lang code-lang-`+escaped+`">`+escaped+`</span>`)
		defer func() { _, _ = io.WriteString(w, `</div>`) }()
	}

	iterator, err := pickLexer(lang, code).Tokenise(nil, code)
	if err == nil {
		formatter := chromahtml.New(chromahtml.WithClasses(true))
		if err = formatter.Format(w, styles.Fallback, iterator); err == nil {
			return
		}
	}
	_, _ = io.WriteString(w, `<pre class="chroma"><code>`+stdhtml.EscapeString(code)+`</code></pre>`)
}

func pickLexer(lang, code string) chroma.Lexer {
	if lang != "" {
		if l := lexers.Get(lang); l != nil {
			return l
		}
	}
	if l := lexers.Analyse(code); l != nil {
		return l
	}
	return lexers.Fallback
}

func codeLanguage(info []byte) string {
	fields := strings.Fields(string(info))
	if len(fields) == 0 {
		return ""
	}
	return strings.ToLower(fields[0])
}
