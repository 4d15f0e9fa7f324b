package invoice

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/jung-kurt/gofpdf"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/templstore/storefront/internal/common"
	"github.com/templstore/storefront/internal/resilience"
	"github.com/templstore/storefront/internal/session"
	"github.com/templstore/storefront/internal/upstream"
)

func TestFilename(t *testing.T) {
	require.Equal(t, "invoice_ord-42.pdf", Filename("ord-42", nil))

	fixed := time.UnixMilli(1700000000000)
	require.Equal(t, "invoice_1700000000000.pdf", Filename("", func() time.Time { return fixed }))
}

func measuringPDF() *gofpdf.Fpdf {
	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.AddPage()
	pdf.SetFont("Helvetica", "", 12)
	return pdf
}

func TestFitTextToWidthKeepsFittingSize(t *testing.T) {
	pdf := measuringPDF()
	size := FitTextToWidth(pdf, "short", 100, 12)
	require.Equal(t, 12.0, size)
}

func TestFitTextToWidthShrinksInHalfSteps(t *testing.T) {
	pdf := measuringPDF()
	long := strings.Repeat("A Very Long Template Name ", 3)
	size := FitTextToWidth(pdf, long, 100, 12)
	require.Less(t, size, 12.0)
	require.Greater(t, size, 6.0)
	// the result is always a half-point multiple of the start size
	steps := (12.0 - size) / 0.5
	require.Equal(t, float64(int(steps)), steps)
	require.LessOrEqual(t, pdf.GetStringWidth(long), 100.0)
}

func TestFitTextToWidthFloor(t *testing.T) {
	pdf := measuringPDF()
	huge := strings.Repeat("WWWWWWWWWW", 100)
	size := FitTextToWidth(pdf, huge, 10, 12)
	require.Equal(t, 6.0, size)
	// at the floor the text may still overflow; the size just stops shrinking
	require.Greater(t, pdf.GetStringWidth(huge), 10.0)
}

func TestRenderProducesPDF(t *testing.T) {
	var buf bytes.Buffer
	err := Render(&buf, Invoice{
		PurchaseID:   "ord-42",
		Date:         time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC),
		TemplateName: "SaaS Landing Kit",
		TemplateID:   "tpl-9",
		PriceIncTax:  11800,
	}, 1800, "INR")
	require.NoError(t, err)
	require.True(t, bytes.HasPrefix(buf.Bytes(), []byte("%PDF")))
}

type stubSessions struct {
	rec session.Record
	err error
}

func (s stubSessions) Current(context.Context, string) (session.Record, error) {
	return s.rec, s.err
}
func (s stubSessions) Invalidate(context.Context, string) error { return nil }

func TestDownloadStreamsAttachment(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/purchases/ord-42", r.URL.Path)
		require.Equal(t, "Bearer tok", r.Header.Get("Authorization"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"ord-42","template_id":"tpl-9","template_name":"SaaS Landing Kit",` +
			`"purchased_at":"2026-08-01T10:00:00Z","price":11800}`))
	}))
	t.Cleanup(srv.Close)

	h := &Handler{
		Up:       upstream.New(srv.URL, resilience.HTTPClient{Client: srv.Client()}, zerolog.Nop()),
		Sessions: stubSessions{rec: session.Record{ID: "s1", Token: "tok", ExpiresAt: time.Now().Add(time.Hour)}},
		TaxBps:   1800,
		Currency: "INR",
		Log:      zerolog.Nop(),
	}

	r := chi.NewRouter()
	r.Get("/invoices/{purchaseId}/pdf", h.Download)

	req := httptest.NewRequest(http.MethodGet, "/invoices/ord-42/pdf", nil)
	req = req.WithContext(common.WithIdentity(req.Context(), common.Identity{SessionID: "s1", Username: "alice", Role: 2}))
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "application/pdf", rec.Header().Get("Content-Type"))
	require.Contains(t, rec.Header().Get("Content-Disposition"), "invoice_ord-42.pdf")
	require.True(t, bytes.HasPrefix(rec.Body.Bytes(), []byte("%PDF")))
}

func TestDownloadRequiresIdentity(t *testing.T) {
	h := &Handler{Sessions: stubSessions{err: session.ErrNotFound}}
	rec := httptest.NewRecorder()
	h.Download(rec, httptest.NewRequest(http.MethodGet, "/invoices/x/pdf", nil))
	require.Equal(t, http.StatusUnauthorized, rec.Code)
}
