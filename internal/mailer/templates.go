package mailer

import (
	"bytes"
	"fmt"
	"html/template"
	"time"

	"github.com/shopspring/decimal"

	"gamyacollections/internal/models"
)

var funcs = template.FuncMap{
	"money": func(v float64) string {
		return "₹" + decimal.NewFromFloat(v).StringFixed(2)
	},
	"lineTotal": func(item models.OrderItem) string {
		return "₹" + decimal.NewFromFloat(item.Price).Mul(decimal.NewFromInt(int64(item.Quantity))).StringFixed(2)
	},
	"date": func(t time.Time) string {
		return t.Format("02 Jan 2006, 15:04")
	},
}

const itemsTable = `{{define "items"}}
<table cellpadding="6" style="border-collapse:collapse;width:100%">
  <tr><th align="left">Item</th><th>Qty</th><th align="right">Price</th><th align="right">Total</th></tr>
  {{range .Items}}
  <tr>
    <td>{{.Name}}{{if .Size}} ({{.Size}}){{end}}{{if .Color}} - {{.Color}}{{end}}</td>
    <td align="center">{{.Quantity}}</td>
    <td align="right">{{money .Price}}</td>
    <td align="right">{{lineTotal .}}</td>
  </tr>
  {{end}}
  <tr><td colspan="3" align="right"><strong>Total</strong></td><td align="right"><strong>{{money .TotalAmount}}</strong></td></tr>
</table>
{{end}}`

var (
	confirmationTmpl = template.Must(template.New("confirmation").Funcs(funcs).Parse(itemsTable + `
<h2>Thank you for your order, {{.UserName}}!</h2>
<p>Your order <strong>{{.OrderID}}</strong> was placed on {{date .CreatedAt}}.</p>
<p>Payment: {{.PaymentMethod}} ({{.PaymentStatus}})</p>
{{template "items" .}}
<h3>Shipping to</h3>
<p>{{.ShippingAddress.Name}}<br>{{.ShippingAddress.Address}}<br>
{{.ShippingAddress.City}}, {{.ShippingAddress.State}} {{.ShippingAddress.Pincode}}<br>
{{.ShippingAddress.Phone}}</p>
<p>We will let you know when it ships.</p>`))

	adminTmpl = template.Must(template.New("admin").Funcs(funcs).Parse(itemsTable + `
<h2>New order {{.OrderID}}</h2>
<p>Customer: {{.UserName}} &lt;{{.UserEmail}}&gt;</p>
<p>Placed: {{date .CreatedAt}}<br>Payment: {{.PaymentMethod}} ({{.PaymentStatus}})<br>Status: {{.OrderStatus}}</p>
{{template "items" .}}
<p>Ship to: {{.ShippingAddress.Name}}, {{.ShippingAddress.Phone}}, {{.ShippingAddress.Address}},
{{.ShippingAddress.City}}, {{.ShippingAddress.State}} {{.ShippingAddress.Pincode}}</p>`))

	resetTmpl = template.Must(template.New("reset").Parse(`
<p>Hi {{.Name}},</p>
<p>Your password reset code is <strong style="font-size:20px">{{.OTP}}</strong>.</p>
<p>It expires in {{.Minutes}} minutes. If you did not ask for a reset you can ignore this email.</p>`))
)

func render(t *template.Template, data interface{}) (string, error) {
	var buf bytes.Buffer
	if err := t.Execute(&buf, data); err != nil {
		return "", err
	}
	return buf.String(), nil
}

// OrderConfirmation is the customer's copy of a placed order.
func OrderConfirmation(order models.Order) (Message, error) {
	to := order.UserEmail
	if to == "" {
		to = order.ShippingAddress.Email
	}
	html, err := render(confirmationTmpl, order)
	if err != nil {
		return Message{}, err
	}
	return Message{
		To:      []string{to},
		Subject: fmt.Sprintf("Order confirmed - %s", order.OrderID),
		HTML:    html,
	}, nil
}

func AdminNotification(order models.Order, adminEmail string) (Message, error) {
	html, err := render(adminTmpl, order)
	if err != nil {
		return Message{}, err
	}
	return Message{
		To:      []string{adminEmail},
		Subject: fmt.Sprintf("New order %s (%s)", order.OrderID, order.PaymentMethod),
		HTML:    html,
	}, nil
}

func PasswordResetOTP(user models.User, otp string, validFor time.Duration) (Message, error) {
	html, err := render(resetTmpl, struct {
		Name    string
		OTP     string
		Minutes int
	}{user.Name, otp, int(validFor.Minutes())})
	if err != nil {
		return Message{}, err
	}
	return Message{
		To:      []string{user.Email},
		Subject: "Your password reset code",
		HTML:    html,
	}, nil
}
