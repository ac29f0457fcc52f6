package httpadapter

import (
	"bytes"
	"embed"
	"encoding/json"
	"fmt"
	"html/template"
	"net/http"

	"github.com/gomarkdown/markdown"
	mdhtml "github.com/gomarkdown/markdown/html"
	"github.com/gomarkdown/markdown/parser"
)

//go:embed templates/*.html content/*.md
var assets embed.FS

type navItem struct {
	Path  string
	Label string
}

var navItems = []navItem{
	{Path: "/", Label: "Home"},
	{Path: "/url-checker", Label: "URL Checker"},
	{Path: "/email-checker", Label: "Email Checker"},
	{Path: "/about", Label: "About"},
}

// pageData is shared by every page rendered inside the shell layout.
type pageData struct {
	Title    string
	Active   string
	Nav      []navItem
	DarkMode bool
	Refresh  bool
	Check    *checkView
	Body     template.HTML
}

type renderer struct {
	pages map[string]*template.Template
	gate  *template.Template
	about template.HTML
}

func newRenderer() (*renderer, error) {
	rd := &renderer{pages: make(map[string]*template.Template)}
	for _, name := range []string{"home", "checker", "about"} {
		t, err := template.ParseFS(assets, "templates/layout.html", "templates/"+name+".html")
		if err != nil {
			return nil, fmt.Errorf("parse %s template: %w", name, err)
		}
		rd.pages[name] = t
	}
	gate, err := template.ParseFS(assets, "templates/verify.html")
	if err != nil {
		return nil, fmt.Errorf("parse verify template: %w", err)
	}
	rd.gate = gate

	md, err := assets.ReadFile("content/about.md")
	if err != nil {
		return nil, err
	}
	rd.about = renderMarkdown(md)
	return rd, nil
}

func renderMarkdown(md []byte) template.HTML {
	p := parser.NewWithExtensions(parser.CommonExtensions | parser.AutoHeadingIDs)
	r := mdhtml.NewRenderer(mdhtml.RendererOptions{Flags: mdhtml.CommonFlags | mdhtml.HrefTargetBlank})
	// content is embedded at build time, never user supplied
	return template.HTML(markdown.ToHTML(md, p, r))
}

func (rd *renderer) page(w http.ResponseWriter, status int, name string, data pageData) error {
	data.Nav = navItems
	var buf bytes.Buffer
	if err := rd.pages[name].ExecuteTemplate(&buf, "layout", data); err != nil {
		return err
	}
	return writeHTML(w, status, buf.Bytes())
}

func (rd *renderer) verification(w http.ResponseWriter, status int, data gateView) error {
	var buf bytes.Buffer
	if err := rd.gate.ExecuteTemplate(&buf, "verify", data); err != nil {
		return err
	}
	return writeHTML(w, status, buf.Bytes())
}

func writeHTML(w http.ResponseWriter, status int, body []byte) error {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(status)
	_, err := w.Write(body)
	return err
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
