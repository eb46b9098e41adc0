package handlers

import (
	"bytes"
	"fmt"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/tealeg/xlsx"

	"gamyacollections/internal/checkout"
	"gamyacollections/internal/models"
)

var orderExportHeaders = []string{
	"Order ID", "Date", "Customer", "Email", "Phone", "Address", "Items",
	"Total", "Payment Method", "Payment Status", "Order Status",
	"Razorpay Payment ID", "Tracking Number",
}

// ExportOrders streams the filtered orders as an xlsx workbook.
func ExportOrders(orders *checkout.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "GET /api/orders/export"
		defer handlePanic(c, route)

		filter, err := orderFilterFromQuery(c)
		if err != nil {
			respondError(c, route, err)
			return
		}

		ctx, cancel := requestContext(c)
		defer cancel()

		list, _, err := orders.ListOrders(ctx, filter)
		if err != nil {
			respondError(c, route, err)
			return
		}

		file, err := ordersWorkbook(list)
		if err != nil {
			log.Printf("[%s] [ERROR] building workbook: %v", route, err)
			respondWithError(c, http.StatusInternalServerError, route, "Failed to create Excel sheet")
			return
		}

		var buf bytes.Buffer
		if err := file.Write(&buf); err != nil {
			log.Printf("[%s] [ERROR] writing workbook: %v", route, err)
			respondWithError(c, http.StatusInternalServerError, route, "Failed to write Excel file")
			return
		}

		log.Printf("[%s] exported %d orders", route, len(list))
		c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=orders-%s.xlsx", time.Now().Format("20060102")))
		c.Data(http.StatusOK, "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet", buf.Bytes())
	}
}

func ordersWorkbook(orders []models.Order) (*xlsx.File, error) {
	file := xlsx.NewFile()
	sheet, err := file.AddSheet("Orders")
	if err != nil {
		return nil, err
	}

	header := sheet.AddRow()
	for _, h := range orderExportHeaders {
		header.AddCell().SetValue(h)
	}

	for _, o := range orders {
		row := sheet.AddRow()
		addr := o.ShippingAddress

		row.AddCell().SetValue(o.OrderID)
		row.AddCell().SetValue(o.CreatedAt.Format("2006-01-02 15:04:05"))
		row.AddCell().SetValue(addr.Name)
		row.AddCell().SetValue(o.UserEmail)
		row.AddCell().SetValue(addr.Phone)
		row.AddCell().SetValue(strings.Join([]string{addr.Address, addr.City, addr.State, addr.Pincode}, ", "))
		row.AddCell().SetValue(itemSummary(o.Items))
		row.AddCell().SetValue(o.TotalAmount)
		row.AddCell().SetValue(string(o.PaymentMethod))
		row.AddCell().SetValue(string(o.PaymentStatus))
		row.AddCell().SetValue(string(o.OrderStatus))
		row.AddCell().SetValue(o.RazorpayPaymentID)
		row.AddCell().SetValue(o.TrackingNumber)
	}
	return file, nil
}

func itemSummary(items []models.OrderItem) string {
	parts := make([]string, 0, len(items))
	for _, item := range items {
		parts = append(parts, fmt.Sprintf("%s x%d", item.Name, item.Quantity))
	}
	return strings.Join(parts, "; ")
}
