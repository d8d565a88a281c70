// Package invoice renders order invoices and writes them to the invoice directory.
package invoice

import (
	"bytes"
	"context"
	_ "embed"
	"fmt"
	"html/template"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"golang.org/x/text/currency"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"retailpos/backend/internal/domain"
)

//go:embed invoice.html
var invoiceHTML string

// Renderer turns an HTML document into a PDF.
type Renderer interface {
	RenderPDF(ctx context.Context, html []byte) ([]byte, error)
}

type Shop struct {
	Name    string
	Address string
	Phone   string
}

type Data struct {
	Order    domain.Order
	Customer domain.Customer
	Lines    []domain.OrderLine
}

type Options struct {
	Dir      string
	Shop     Shop
	Language string
	Currency string
	Location *time.Location
	// Renderer is optional. Without one the invoice is stored as HTML.
	Renderer Renderer
	Logger   *slog.Logger
}

type Generator struct {
	dir      string
	shop     Shop
	renderer Renderer
	location *time.Location
	printer  *message.Printer
	unit     currency.Unit
	tmpl     *template.Template
	logger   *slog.Logger
}

func NewGenerator(opts Options) (*Generator, error) {
	tag, err := language.Parse(defaultString(opts.Language, "vi"))
	if err != nil {
		return nil, fmt.Errorf("invoice language: %w", err)
	}
	unit, err := currency.ParseISO(defaultString(opts.Currency, "VND"))
	if err != nil {
		return nil, fmt.Errorf("invoice currency: %w", err)
	}
	location := opts.Location
	if location == nil {
		location = time.Local
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	g := &Generator{
		dir:      defaultString(opts.Dir, "invoices"),
		shop:     opts.Shop,
		renderer: opts.Renderer,
		location: location,
		printer:  message.NewPrinter(tag),
		unit:     unit,
		logger:   logger,
	}
	g.tmpl, err = template.New("invoice").Funcs(template.FuncMap{"money": g.FormatMoney}).Parse(invoiceHTML)
	if err != nil {
		return nil, err
	}
	return g, nil
}

// FormatMoney prints an amount with locale digit grouping and the ISO code.
func (g *Generator) FormatMoney(amount int64) string {
	return g.printer.Sprintf("%d %s", amount, g.unit.String())
}

func (g *Generator) RenderHTML(data Data) ([]byte, error) {
	var buf bytes.Buffer
	err := g.tmpl.Execute(&buf, struct {
		Data
		Shop      Shop
		OrderDate string
	}{
		Data:      data,
		Shop:      g.shop,
		OrderDate: data.Order.OrderDate.In(g.location).Format("02/01/2006 15:04:05"),
	})
	if err != nil {
		return nil, fmt.Errorf("render invoice template: %w", err)
	}
	return buf.Bytes(), nil
}

// Generate writes invoice_<orderId>.pdf, or invoice_<orderId>.html when no
// renderer is configured, and returns the file path.
func (g *Generator) Generate(ctx context.Context, data Data) (string, error) {
	html, err := g.RenderHTML(data)
	if err != nil {
		return "", err
	}

	content, ext := html, ".html"
	if g.renderer != nil {
		pdf, err := g.renderer.RenderPDF(ctx, html)
		if err != nil {
			return "", fmt.Errorf("render invoice pdf: %w", err)
		}
		content, ext = pdf, ".pdf"
	}

	if err := os.MkdirAll(g.dir, 0o755); err != nil {
		return "", fmt.Errorf("create invoice dir: %w", err)
	}
	path := filepath.Join(g.dir, "invoice_"+data.Order.ID+ext)
	if err := os.WriteFile(path, content, 0o644); err != nil {
		return "", fmt.Errorf("write invoice: %w", err)
	}
	g.logger.Info("invoice generated", "order_id", data.Order.ID, "path", path)
	return path, nil
}

func defaultString(value, fallback string) string {
	if value == "" {
		return fallback
	}
	return value
}
