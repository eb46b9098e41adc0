// Package receipt renders order receipts as PDF.
package receipt

import (
	"fmt"
	"io"
	"strings"

	"github.com/jung-kurt/gofpdf"
	"github.com/shopspring/decimal"

	"gamyacollections/internal/models"
)

const storeName = "Gamya Collections"

func money(v float64) string {
	return "Rs. " + decimal.NewFromFloat(v).StringFixed(2)
}

// Render writes an A4 receipt for order to w.
func Render(w io.Writer, order models.Order) error {
	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetTitle("Receipt "+order.OrderID, true)
	pdf.AddPage()

	pdf.SetFont("Helvetica", "B", 18)
	pdf.CellFormat(0, 10, storeName, "", 1, "C", false, 0, "")
	pdf.SetFont("Helvetica", "", 11)
	pdf.CellFormat(0, 6, "Order Receipt", "", 1, "C", false, 0, "")
	pdf.Ln(6)

	field := func(label, value string) {
		pdf.SetFont("Helvetica", "B", 10)
		pdf.CellFormat(40, 6, label, "", 0, "L", false, 0, "")
		pdf.SetFont("Helvetica", "", 10)
		pdf.CellFormat(0, 6, value, "", 1, "L", false, 0, "")
	}
	field("Order ID:", order.OrderID)
	field("Date:", order.CreatedAt.Format("02 Jan 2006 15:04"))
	field("Customer:", order.UserName)
	field("Email:", order.UserEmail)
	field("Payment:", fmt.Sprintf("%s (%s)", order.PaymentMethod, order.PaymentStatus))
	field("Status:", string(order.OrderStatus))
	if order.RazorpayPaymentID != "" {
		field("Payment ID:", order.RazorpayPaymentID)
	}
	pdf.Ln(4)

	addr := order.ShippingAddress
	pdf.SetFont("Helvetica", "B", 11)
	pdf.CellFormat(0, 7, "Shipping Address", "", 1, "L", false, 0, "")
	pdf.SetFont("Helvetica", "", 10)
	for _, line := range []string{
		addr.Name,
		addr.Address,
		strings.TrimSpace(fmt.Sprintf("%s, %s %s", addr.City, addr.State, addr.Pincode)),
		addr.Country,
		"Phone: " + addr.Phone,
	} {
		if strings.Trim(line, ", ") != "" {
			pdf.CellFormat(0, 5, line, "", 1, "L", false, 0, "")
		}
	}
	pdf.Ln(6)

	widths := []float64{90, 20, 35, 35}
	pdf.SetFont("Helvetica", "B", 10)
	pdf.SetFillColor(240, 240, 240)
	for i, h := range []string{"Item", "Qty", "Price", "Total"} {
		align := "R"
		if i == 0 {
			align = "L"
		}
		pdf.CellFormat(widths[i], 8, h, "1", 0, align, true, 0, "")
	}
	pdf.Ln(-1)

	pdf.SetFont("Helvetica", "", 10)
	for _, item := range order.Items {
		name := item.Name
		if variant := strings.Trim(item.Size+" / "+item.Color, " /"); variant != "" {
			name += " (" + variant + ")"
		}
		lineTotal, _ := decimal.NewFromFloat(item.Price).Mul(decimal.NewFromInt(int64(item.Quantity))).Float64()

		pdf.CellFormat(widths[0], 7, name, "1", 0, "L", false, 0, "")
		pdf.CellFormat(widths[1], 7, fmt.Sprintf("%d", item.Quantity), "1", 0, "R", false, 0, "")
		pdf.CellFormat(widths[2], 7, money(item.Price), "1", 0, "R", false, 0, "")
		pdf.CellFormat(widths[3], 7, money(lineTotal), "1", 0, "R", false, 0, "")
		pdf.Ln(-1)
	}

	pdf.SetFont("Helvetica", "B", 11)
	pdf.CellFormat(widths[0]+widths[1]+widths[2], 8, "Grand Total", "1", 0, "R", false, 0, "")
	pdf.CellFormat(widths[3], 8, money(order.TotalAmount), "1", 1, "R", false, 0, "")

	pdf.Ln(10)
	pdf.SetFont("Helvetica", "I", 9)
	pdf.CellFormat(0, 5, "Thank you for shopping with "+storeName+".", "", 1, "C", false, 0, "")

	return pdf.Output(w)
}
