package view

import (
	"bytes"
	"encoding/json"
	"fmt"
	"html/template"
	"io/fs"
	"net/http"
	"path"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/crmdesk/crmdesk/internal/shared"
	"github.com/crmdesk/crmdesk/web"
)

// CurrencySymbol prefixes formatted amounts.
const CurrencySymbol = "R"

// Engine renders HTML pages. Each page is parsed together with the shared
// layouts and partials so pages can define their own blocks.
type Engine struct {
	pages map[string]*template.Template
}

// TemplateData contains values shared across templates.
type TemplateData struct {
	Title         string
	CSRFToken     string
	Flash         *shared.FlashMessage
	CurrentPath   string
	UserName      string
	Authenticated bool
	Data          any
}

var printer = message.NewPrinter(language.English)

// Funcs is the function map available to every template.
func Funcs() template.FuncMap {
	return template.FuncMap{
		"formatDate":  FormatDate,
		"money":       Money,
		"statusClass": StatusClass,
		"hasPrefix":   strings.HasPrefix,
	}
}

// NewEngine parses the embedded templates.
func NewEngine() (*Engine, error) {
	return newEngine(web.Templates)
}

func newEngine(fsys fs.FS) (*Engine, error) {
	base, err := template.New("root").Funcs(Funcs()).ParseFS(fsys, "templates/layouts/*.html", "templates/partials/*.html")
	if err != nil {
		return nil, fmt.Errorf("view: parse layouts: %w", err)
	}
	files, err := fs.Glob(fsys, "templates/pages/*.html")
	if err != nil {
		return nil, err
	}
	pages := make(map[string]*template.Template, len(files))
	for _, file := range files {
		clone, err := base.Clone()
		if err != nil {
			return nil, err
		}
		tpl, err := clone.ParseFS(fsys, file)
		if err != nil {
			return nil, fmt.Errorf("view: parse %s: %w", file, err)
		}
		pages["pages/"+path.Base(file)] = tpl
	}
	return &Engine{pages: pages}, nil
}

// Has reports whether a page template exists.
func (e *Engine) Has(name string) bool {
	if e == nil {
		return false
	}
	_, ok := e.pages[name]
	return ok
}

// Render executes a page into a buffer first so a failing template never
// leaves a half written response behind.
func (e *Engine) Render(w http.ResponseWriter, status int, name string, data TemplateData) error {
	buf, err := e.Execute(name, data)
	if err != nil {
		return err
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	_, err = buf.WriteTo(w)
	return err
}

// Execute renders a page to memory.
func (e *Engine) Execute(name string, data TemplateData) (*bytes.Buffer, error) {
	if e == nil {
		return nil, fmt.Errorf("template engine not initialised")
	}
	tpl, ok := e.pages[name]
	if !ok {
		return nil, fmt.Errorf("view: unknown page %q", name)
	}
	var buf bytes.Buffer
	if err := tpl.ExecuteTemplate(&buf, path.Base(name), data); err != nil {
		return nil, fmt.Errorf("view: render %s: %w", name, err)
	}
	return &buf, nil
}

// StatusClass maps a status label such as "In Progress" to a CSS class.
func StatusClass(status any) string {
	label := strings.TrimSpace(fmt.Sprint(status))
	if label == "" {
		return "status-pending"
	}
	return "status-" + strings.ReplaceAll(strings.ToLower(label), " ", "-")
}

// FormatDate accepts time values and the ISO strings the CRM API returns.
func FormatDate(v any) string {
	switch t := v.(type) {
	case time.Time:
		if t.IsZero() {
			return ""
		}
		return t.Format("02 Jan 2006")
	case string:
		if t == "" {
			return ""
		}
		for _, layout := range []string{time.RFC3339Nano, time.RFC3339, "2006-01-02"} {
			if parsed, err := time.Parse(layout, t); err == nil {
				return parsed.Format("02 Jan 2006")
			}
		}
		return t
	case nil:
		return ""
	default:
		return fmt.Sprint(v)
	}
}

// Money formats an amount with thousands separators and two decimals. An
// invalid NullDecimal renders empty.
func Money(v any) string {
	var d decimal.Decimal
	switch amount := v.(type) {
	case decimal.Decimal:
		d = amount
	case decimal.NullDecimal:
		if !amount.Valid {
			return ""
		}
		d = amount.Decimal
	case json.Number:
		parsed, err := decimal.NewFromString(amount.String())
		if err != nil {
			return amount.String()
		}
		d = parsed
	case string:
		parsed, err := decimal.NewFromString(amount)
		if err != nil {
			return amount
		}
		d = parsed
	case float64:
		d = decimal.NewFromFloat(amount)
	case int:
		d = decimal.NewFromInt(int64(amount))
	case int64:
		d = decimal.NewFromInt(amount)
	case nil:
		d = decimal.Zero
	default:
		return fmt.Sprint(v)
	}
	cents := d.Round(2)
	whole := cents.Truncate(0)
	frac := cents.Sub(whole).Abs().Shift(2).IntPart()
	sign := ""
	if cents.IsNegative() {
		sign = "-"
		whole = whole.Abs()
	}
	return printer.Sprintf("%s%s%d.%02d", sign, CurrencySymbol, whole.IntPart(), frac)
}
