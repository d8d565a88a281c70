package invoice

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"retailpos/backend/internal/domain"
)

func sampleData() Data {
	return Data{
		Order: domain.Order{
			ID:             "order-1",
			Total:          1234567,
			AmountReceived: 1300000,
			ChangeGiven:    65433,
			OrderDate:      time.Date(2024, 5, 1, 9, 30, 0, 0, time.UTC),
		},
		Customer: domain.Customer{Name: "Jane Doe", PhoneNumber: "0900", Email: "jane@example.com"},
		Lines: []domain.OrderLine{
			{ProductName: "Phone <Pro>", Quantity: 1, UnitPrice: 1234567, TotalPrice: 1234567},
		},
	}
}

func TestGenerateWritesHTMLWithoutRenderer(t *testing.T) {
	dir := t.TempDir()
	g, err := NewGenerator(Options{Dir: dir, Shop: Shop{Name: "Test Shop"}, Language: "en", Currency: "USD", Location: time.UTC})
	require.NoError(t, err)

	path, err := g.Generate(context.Background(), sampleData())
	require.NoError(t, err)
	require.Equal(t, filepath.Join(dir, "invoice_order-1.html"), path)

	body, err := os.ReadFile(path)
	require.NoError(t, err)
	html := string(body)
	require.Contains(t, html, "Test Shop")
	require.Contains(t, html, "Jane Doe")
	require.Contains(t, html, "Phone &lt;Pro&gt;")
	require.Contains(t, html, "1,234,567 USD")
	require.Contains(t, html, "01/05/2024 09:30:00")
}

func TestGenerateUsesGotenbergForPDF(t *testing.T) {
	var gotHTML string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/forms/chromium/convert/html", r.URL.Path)
		require.NoError(t, r.ParseMultipartForm(1<<20))
		file, _, err := r.FormFile("files")
		require.NoError(t, err)
		data, _ := io.ReadAll(file)
		gotHTML = string(data)
		_, _ = w.Write([]byte("%PDF-1.4 fake"))
	}))
	t.Cleanup(srv.Close)

	dir := t.TempDir()
	g, err := NewGenerator(Options{Dir: dir, Renderer: NewGotenbergClient(srv.URL + "/")})
	require.NoError(t, err)

	path, err := g.Generate(context.Background(), sampleData())
	require.NoError(t, err)
	require.True(t, strings.HasSuffix(path, "invoice_order-1.pdf"))
	require.Contains(t, gotHTML, "order-1")

	body, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Equal(t, "%PDF-1.4 fake", string(body))
}

func TestGenerateFailsWhenRendererFails(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	t.Cleanup(srv.Close)

	g, err := NewGenerator(Options{Dir: t.TempDir(), Renderer: NewGotenbergClient(srv.URL)})
	require.NoError(t, err)
	_, err = g.Generate(context.Background(), sampleData())
	require.ErrorContains(t, err, "status 503")

	require.Error(t, NewGotenbergClient(srv.URL).Ping(context.Background()))
}

func TestNewGeneratorRejectsUnknownCurrency(t *testing.T) {
	_, err := NewGenerator(Options{Currency: "XYZW"})
	require.Error(t, err)
}
