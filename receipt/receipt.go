/*
Package receipt renders a completed sale into a PDF invoice.

PURPOSE:
  Pure presentation: a sale record goes in, PDF bytes come out. Nothing
  here reads or writes state, and a render failure never touches the
  ledger - the shell reports it as a soft warning after the purchase
  result has already been delivered.

LAYOUT:
  Store header, invoice id and date, buyer block, a one-row item table
  (product, price), the redemption code in a bordered callout, and a
  contact footer.
*/
package receipt

import (
	"bytes"
	"fmt"
	"time"

	"github.com/jung-kurt/gofpdf"

	"github.com/warp/storefront/ledger"
)

// Data is the flat record consumed by the renderer.
type Data struct {
	InvoiceID   string
	ProductName string
	Price       int64
	Code        string
	Timestamp   time.Time
	UserID      string
	UserName    string
}

// Renderer holds the static invoice chrome.
type Renderer struct {
	StoreName        string
	OwnerContact     string
	Currency         string
	CurrencyExponent int32
}

// Render produces the PDF invoice for one sale.
func (r *Renderer) Render(d Data) ([]byte, error) {
	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetTitle(fmt.Sprintf("Invoice %s", d.InvoiceID), false)
	pdf.AddPage()

	// Header
	pdf.SetFont("Helvetica", "B", 18)
	pdf.SetTextColor(20, 40, 90)
	pdf.CellFormat(0, 12, r.StoreName, "", 1, "C", false, 0, "")
	pdf.SetFont("Helvetica", "", 11)
	pdf.SetTextColor(0, 0, 0)
	pdf.CellFormat(0, 8, "Purchase Invoice", "", 1, "C", false, 0, "")
	pdf.Ln(4)

	// Invoice meta
	pdf.SetFont("Helvetica", "", 10)
	pdf.CellFormat(0, 6, fmt.Sprintf("Invoice: %s", d.InvoiceID), "", 1, "L", false, 0, "")
	pdf.CellFormat(0, 6, fmt.Sprintf("Date: %s", d.Timestamp.Format("2006-01-02 15:04")), "", 1, "L", false, 0, "")
	pdf.Ln(2)

	// Buyer block
	pdf.SetFont("Helvetica", "B", 10)
	pdf.CellFormat(0, 6, "Billed to", "", 1, "L", false, 0, "")
	pdf.SetFont("Helvetica", "", 10)
	pdf.CellFormat(0, 6, d.UserName, "", 1, "L", false, 0, "")
	pdf.CellFormat(0, 6, fmt.Sprintf("User ID: %s", d.UserID), "", 1, "L", false, 0, "")
	pdf.Ln(4)

	// Item table
	price := ledger.FormatAmount(d.Price, r.Currency, r.CurrencyExponent)
	pdf.SetFont("Helvetica", "B", 10)
	pdf.SetFillColor(235, 238, 245)
	pdf.CellFormat(130, 8, "Item", "1", 0, "L", true, 0, "")
	pdf.CellFormat(60, 8, "Price", "1", 1, "R", true, 0, "")
	pdf.SetFont("Helvetica", "", 10)
	pdf.CellFormat(130, 8, d.ProductName, "1", 0, "L", false, 0, "")
	pdf.CellFormat(60, 8, price, "1", 1, "R", false, 0, "")
	pdf.SetFont("Helvetica", "B", 10)
	pdf.CellFormat(130, 8, "Total", "1", 0, "L", false, 0, "")
	pdf.CellFormat(60, 8, price, "1", 1, "R", false, 0, "")
	pdf.Ln(6)

	// Redemption code callout
	pdf.SetFont("Helvetica", "B", 10)
	pdf.CellFormat(0, 6, "Your redemption code", "", 1, "L", false, 0, "")
	pdf.SetFont("Courier", "", 11)
	pdf.CellFormat(0, 10, d.Code, "1", 1, "C", false, 0, "")
	pdf.Ln(8)

	// Footer
	pdf.SetFont("Helvetica", "I", 9)
	pdf.SetTextColor(90, 90, 90)
	pdf.CellFormat(0, 5, "Thank you for your purchase!", "", 1, "C", false, 0, "")
	if r.OwnerContact != "" {
		pdf.CellFormat(0, 5, fmt.Sprintf("Support: %s", r.OwnerContact), "", 1, "C", false, 0, "")
	}

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, fmt.Errorf("render invoice %s: %w", d.InvoiceID, err)
	}
	return buf.Bytes(), nil
}
