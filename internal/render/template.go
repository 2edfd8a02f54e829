// ReviewForge - Customer Review Ingestion and Social Image Rendering
// Copyright 2026 ReviewForge Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/reviewforge/reviewforge

package render

import (
	"embed"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/reviewforge/reviewforge/internal/models"
)

//go:embed templates/*.html
var builtinTemplates embed.FS

// TemplateStore resolves template names to their HTML text. The "default"
// template ships compiled in; additional templates are loaded from an
// optional directory at construction time.
type TemplateStore struct {
	mu        sync.RWMutex
	templates map[string]string
}

// NewTemplateStore loads the built-in templates plus any *.html files found
// in dir (empty dir means built-ins only). A directory template named
// default.html overrides the built-in.
func NewTemplateStore(dir string) (*TemplateStore, error) {
	ts := &TemplateStore{templates: map[string]string{}}

	entries, err := builtinTemplates.ReadDir("templates")
	if err != nil {
		return nil, err
	}
	for _, e := range entries {
		data, err := builtinTemplates.ReadFile("templates/" + e.Name())
		if err != nil {
			return nil, err
		}
		ts.templates[strings.TrimSuffix(e.Name(), ".html")] = string(data)
	}

	if dir != "" {
		matches, err := filepath.Glob(filepath.Join(dir, "*.html"))
		if err != nil {
			return nil, err
		}
		for _, path := range matches {
			data, err := os.ReadFile(path)
			if err != nil {
				return nil, err
			}
			name := strings.TrimSuffix(filepath.Base(path), ".html")
			ts.templates[name] = string(data)
		}
	}

	return ts, nil
}

// Get returns the template text, or a BadRequest error for unknown names.
func (ts *TemplateStore) Get(name string) (string, error) {
	ts.mu.RLock()
	defer ts.mu.RUnlock()
	tmpl, ok := ts.templates[name]
	if !ok {
		return "", models.BadRequest("unknown template: " + name)
	}
	return tmpl, nil
}

// Names lists the available template names, sorted.
func (ts *TemplateStore) Names() []string {
	ts.mu.RLock()
	defer ts.mu.RUnlock()
	out := make([]string, 0, len(ts.templates))
	for name := range ts.templates {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// starGlyph is the filled star repeated per rating point.
const starGlyph = "★"

// placeholder describes one substitution. Non-global placeholders replace
// only their first occurrence, mirroring how the templates are authored;
// later occurrences are left verbatim.
type placeholder struct {
	name   string
	value  string
	global bool
}

// TemplateData carries the resolved values substituted into a template.
// Free-text fields are HTML-escaped during expansion; URL and color fields
// are substituted verbatim after base-URL resolution.
type TemplateData struct {
	CompanyName    string
	CompanyPhone   string
	BrandColor     string
	BrandColorDark string
	LogoURL        string

	ReviewerName string
	Rating       int
	ReviewText   string
	TechName     string
	TechPhotoURL string
	Source       string
}

// Expand substitutes the known placeholder set into the template text in a
// single left-to-right pass. Unknown placeholders are left untouched.
func Expand(tmpl string, d TemplateData) string {
	rating := d.Rating
	if rating < 0 {
		rating = 0
	}
	if rating > 5 {
		rating = 5
	}

	techDisplay := "none"
	if d.TechName != "" && d.TechPhotoURL != "" {
		techDisplay = "flex"
	}
	lowRatingClass := ""
	if rating <= 3 {
		lowRatingClass = "low-rating"
	}

	placeholders := []placeholder{
		{"{{BRAND_COLOR}}", d.BrandColor, true},
		{"{{BRAND_COLOR_DARK}}", d.BrandColorDark, true},
		{"{{COMPANY_NAME}}", escape(d.CompanyName), false},
		{"{{COMPANY_PHONE}}", escape(d.CompanyPhone), false},
		{"{{LOGO_URL}}", d.LogoURL, false},
		{"{{REVIEWER_NAME}}", escape(d.ReviewerName), false},
		{"{{REVIEW_TEXT}}", escape(d.ReviewText), false},
		{"{{STARS}}", strings.Repeat(starGlyph, rating), false},
		{"{{TECH_PHOTO_URL}}", d.TechPhotoURL, false},
		{"{{TECH_NAME}}", escape(d.TechName), false},
		{"{{TECH_DISPLAY}}", techDisplay, true},
		{"{{LOW_RATING_CLASS}}", lowRatingClass, true},
		{"{{PLATFORM_BADGE}}", models.BadgeHTML(d.Source), false},
	}

	byName := make(map[string]*placeholder, len(placeholders))
	for i := range placeholders {
		byName[placeholders[i].name] = &placeholders[i]
	}
	used := map[string]bool{}

	var b strings.Builder
	b.Grow(len(tmpl))
	for i := 0; i < len(tmpl); {
		start := strings.Index(tmpl[i:], "{{")
		if start < 0 {
			b.WriteString(tmpl[i:])
			break
		}
		start += i
		end := strings.Index(tmpl[start:], "}}")
		if end < 0 {
			b.WriteString(tmpl[i:])
			break
		}
		end += start + 2

		b.WriteString(tmpl[i:start])
		token := tmpl[start:end]
		if p, ok := byName[token]; ok && (p.global || !used[token]) {
			b.WriteString(p.value)
			used[token] = true
		} else {
			b.WriteString(token)
		}
		i = end
	}
	return b.String()
}

// escape HTML-entity-escapes the five characters & < > " ' in user text.
func escape(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, c := range s {
		switch c {
		case '&':
			b.WriteString("&amp;")
		case '<':
			b.WriteString("&lt;")
		case '>':
			b.WriteString("&gt;")
		case '"':
			b.WriteString("&quot;")
		case '\'':
			b.WriteString("&#39;")
		default:
			b.WriteRune(c)
		}
	}
	return b.String()
}

// ResolveURL absolutises a relative asset URL against the base. Absolute
// http(s) and data: URLs pass through; an empty base leaves the URL as-is.
func ResolveURL(base, u string) string {
	if u == "" || base == "" {
		return u
	}
	if strings.HasPrefix(u, "http://") || strings.HasPrefix(u, "https://") || strings.HasPrefix(u, "data:") {
		return u
	}
	return strings.TrimRight(base, "/") + "/" + strings.TrimLeft(u, "/")
}
