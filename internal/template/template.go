// Package template renders the SQL templates pgaudit ships with.
package template

import (
	"bytes"
	"embed"
	"fmt"
	"io/fs"
	"sort"
	"strings"
	"text/template"

	"github.com/pgschema/pgaudit/internal/util"
)

//go:embed templates/*.sql
var templateFS embed.FS

// Template names
const (
	CreateSchema     = "create_schema.sql"
	DropSchema       = "drop_schema.sql"
	Extension        = "extension.sql"
	GetSetting       = "get_setting.sql"
	JSONBSubtract    = "jsonb_subtract.sql"
	CreateActivity   = "create_activity.sql"
	TriggerInsert    = "trigger_insert.sql"
	TriggerUpdate    = "trigger_update.sql"
	TriggerDelete    = "trigger_delete.sql"
	TransactionTable = "transaction_table.sql"
	ActivityTable    = "activity_table.sql"
)

// Params is the substitution mapping passed to a template
type Params map[string]any

// Error is returned when a template cannot be rendered, most commonly because
// a required variable is missing from Params.
type Error struct {
	Template string
	Err      error
}

func (e *Error) Error() string {
	return fmt.Sprintf("render template %s: %v", e.Template, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

var funcs = template.FuncMap{
	"ident":     util.QuoteIdentifier,
	"qualified": util.QuoteQualified,
	"literal":   util.QuoteLiteral,
}

// Renderer substitutes parameters into named SQL templates
type Renderer struct {
	templates map[string]*template.Template
}

// NewRenderer parses the embedded templates
func NewRenderer() (*Renderer, error) {
	sub, err := fs.Sub(templateFS, "templates")
	if err != nil {
		return nil, err
	}
	return NewRendererFS(sub)
}

// NewRendererFS parses every *.sql file at the root of fsys
func NewRendererFS(fsys fs.FS) (*Renderer, error) {
	names, err := fs.Glob(fsys, "*.sql")
	if err != nil {
		return nil, err
	}

	r := &Renderer{templates: make(map[string]*template.Template, len(names))}
	for _, name := range names {
		content, err := fs.ReadFile(fsys, name)
		if err != nil {
			return nil, fmt.Errorf("failed to read template %s: %w", name, err)
		}
		tmpl, err := template.New(name).
			Funcs(funcs).
			Option("missingkey=error").
			Parse(string(content))
		if err != nil {
			return nil, &Error{Template: name, Err: err}
		}
		r.templates[name] = tmpl
	}
	return r, nil
}

// MustNewRenderer is like NewRenderer but panics on error. The embedded
// templates are parsed in tests, so a failure here is a build defect.
func MustNewRenderer() *Renderer {
	r, err := NewRenderer()
	if err != nil {
		panic(err)
	}
	return r
}

// Render substitutes params into the named template
func (r *Renderer) Render(name string, params Params) (string, error) {
	tmpl, ok := r.templates[name]
	if !ok {
		return "", &Error{Template: name, Err: fmt.Errorf("unknown template")}
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, map[string]any(params)); err != nil {
		return "", &Error{Template: name, Err: err}
	}
	return strings.TrimSpace(buf.String()), nil
}

// Names returns the available template names, sorted
func (r *Renderer) Names() []string {
	names := make([]string, 0, len(r.templates))
	for name := range r.templates {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
