package mail

import (
	"bytes"
	"embed"
	"fmt"
	htmltemplate "html/template"
	"io/fs"
	"path"
	"strings"
	texttemplate "text/template"
)

//go:embed templates
var templateFS embed.FS

// Rendered holds both bodies of a rendered view. Either may be empty.
type Rendered struct {
	HTML string
	Text string
}

// Renderer resolves dotted view names ("email.confirm_email") to the embedded
// templates/email/confirm_email.{html,txt} pair.
type Renderer struct {
	html map[string]*htmltemplate.Template
	text map[string]*texttemplate.Template
}

// NewRenderer parses every embedded template up front.
func NewRenderer() (*Renderer, error) {
	r := &Renderer{
		html: make(map[string]*htmltemplate.Template),
		text: make(map[string]*texttemplate.Template),
	}

	err := fs.WalkDir(templateFS, "templates", func(p string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return err
		}
		src, err := fs.ReadFile(templateFS, p)
		if err != nil {
			return err
		}

		ext := path.Ext(p)
		view := strings.ReplaceAll(strings.TrimSuffix(strings.TrimPrefix(p, "templates/"), ext), "/", ".")
		switch ext {
		case ".html":
			t, err := htmltemplate.New(view).Option("missingkey=zero").Parse(string(src))
			if err != nil {
				return fmt.Errorf("parse %s: %w", p, err)
			}
			r.html[view] = t
		case ".txt":
			t, err := texttemplate.New(view).Option("missingkey=zero").Parse(string(src))
			if err != nil {
				return fmt.Errorf("parse %s: %w", p, err)
			}
			r.text[view] = t
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("mail templates: %w", err)
	}
	return r, nil
}

// Render executes the named view against data.
func (r *Renderer) Render(view string, data map[string]any) (Rendered, error) {
	ht, hasHTML := r.html[view]
	tt, hasText := r.text[view]
	if !hasHTML && !hasText {
		return Rendered{}, fmt.Errorf("mail view %q not found", view)
	}

	var out Rendered
	if hasHTML {
		var buf bytes.Buffer
		if err := ht.Execute(&buf, data); err != nil {
			return Rendered{}, fmt.Errorf("render %s html: %w", view, err)
		}
		out.HTML = buf.String()
	}
	if hasText {
		var buf bytes.Buffer
		if err := tt.Execute(&buf, data); err != nil {
			return Rendered{}, fmt.Errorf("render %s text: %w", view, err)
		}
		out.Text = buf.String()
	}
	return out, nil
}
