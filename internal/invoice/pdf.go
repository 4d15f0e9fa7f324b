package invoice

import (
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/jung-kurt/gofpdf"

	"github.com/templstore/storefront/internal/pricing"
)

// Invoice carries the purchase facts rendered into the PDF. Price is the
// tax-inclusive amount the buyer paid, in minor units.
type Invoice struct {
	PurchaseID   string
	Date         time.Time
	TemplateName string
	TemplateID   string
	PriceIncTax  pricing.Money
}

const (
	minFontSize  = 6.0
	fontSizeStep = 0.5
)

// Filename derives the download name for an invoice. An empty purchase id
// falls back to a millisecond timestamp so the name stays unique.
func Filename(purchaseID string, now func() time.Time) string {
	if purchaseID != "" {
		return "invoice_" + purchaseID + ".pdf"
	}
	if now == nil {
		now = time.Now
	}
	return "invoice_" + strconv.FormatInt(now().UnixMilli(), 10) + ".pdf"
}

// FitTextToWidth shrinks the font size in half-point steps until text fits
// within maxWidth, bottoming out at 6pt. Text that already fits keeps the
// starting size. The pdf's font size is left at the returned value.
func FitTextToWidth(pdf *gofpdf.Fpdf, text string, maxWidth, startSize float64) float64 {
	size := startSize
	if size < minFontSize {
		size = minFontSize
	}
	pdf.SetFontSize(size)
	for size > minFontSize && pdf.GetStringWidth(text) > maxWidth {
		size -= fontSizeStep
		if size < minFontSize {
			size = minFontSize
		}
		pdf.SetFontSize(size)
	}
	return size
}

// Render writes the invoice PDF. The monetary lines come from the canonical
// price calculator with no discount, so net + tax reassembles the paid price.
func Render(w io.Writer, inv Invoice, taxBps int, currency string) error {
	b := pricing.ComputeAmount(inv.PriceIncTax, 0, taxBps)

	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetTitle("Invoice "+inv.PurchaseID, false)
	pdf.AddPage()

	pdf.SetFont("Helvetica", "B", 20)
	pdf.CellFormat(0, 12, "TemplStore", "", 1, "L", false, 0, "")
	pdf.SetFont("Helvetica", "", 11)
	pdf.CellFormat(0, 6, "Tax Invoice", "", 1, "L", false, 0, "")
	pdf.Ln(6)

	pdf.SetFont("Helvetica", "", 10)
	pdf.CellFormat(0, 5, "Invoice no: "+displayID(inv.PurchaseID), "", 1, "L", false, 0, "")
	pdf.CellFormat(0, 5, "Date: "+inv.Date.Format("02 Jan 2006"), "", 1, "L", false, 0, "")
	pdf.Ln(8)

	// Item table header
	pdf.SetFont("Helvetica", "B", 10)
	pdf.CellFormat(110, 8, "Item", "B", 0, "L", false, 0, "")
	pdf.CellFormat(40, 8, "Template ID", "B", 0, "L", false, 0, "")
	pdf.CellFormat(0, 8, "Amount", "B", 1, "R", false, 0, "")

	pdf.SetFont("Helvetica", "", 10)
	FitTextToWidth(pdf, inv.TemplateName, 108, 10)
	pdf.CellFormat(110, 8, inv.TemplateName, "", 0, "L", false, 0, "")
	pdf.SetFontSize(10)
	pdf.CellFormat(40, 8, inv.TemplateID, "", 0, "L", false, 0, "")
	pdf.CellFormat(0, 8, money(b.TotalIncTax, currency), "", 1, "R", false, 0, "")
	pdf.Ln(6)

	// Totals block
	rows := []struct {
		label string
		value pricing.Money
	}{
		{"Net amount", b.Base},
		{fmt.Sprintf("Tax (%.1f%%)", float64(taxBps)/100), b.Tax},
		{"Total paid", b.Total},
	}
	for i, row := range rows {
		if i == len(rows)-1 {
			pdf.SetFont("Helvetica", "B", 10)
		}
		pdf.CellFormat(150, 7, row.label, "", 0, "R", false, 0, "")
		pdf.CellFormat(0, 7, money(row.value, currency), "", 1, "R", false, 0, "")
	}

	pdf.Ln(10)
	pdf.SetFont("Helvetica", "I", 8)
	pdf.CellFormat(0, 5, "Prices are inclusive of tax. This invoice was generated electronically.", "", 1, "L", false, 0, "")

	return pdf.Output(w)
}

func displayID(id string) string {
	if id == "" {
		return "-"
	}
	return id
}

func money(v pricing.Money, currency string) string {
	neg := ""
	if v < 0 {
		neg = "-"
		v = -v
	}
	return fmt.Sprintf("%s%s %d.%02d", neg, currency, v/100, v%100)
}
