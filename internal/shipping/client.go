// Package shipping is the Shiprocket fulfillment adapter.
package shipping

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"strings"
	"time"

	"gamyacollections/internal/models"
)

const DefaultBaseURL = "https://apiv2.shiprocket.in/v1/external"

// APIError is a non-2xx answer from Shiprocket.
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("shiprocket returned %d: %s", e.StatusCode, e.Body)
}

type Config struct {
	BaseURL        string
	Email          string
	Password       string
	PickupLocation string
	Timeout        time.Duration
}

type Client struct {
	httpClient     *http.Client
	baseURL        string
	pickupLocation string
	session        *Session
}

func New(cfg Config) *Client {
	baseURL := strings.TrimRight(cfg.BaseURL, "/")
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	httpClient := &http.Client{Timeout: timeout}

	return &Client{
		httpClient:     httpClient,
		baseURL:        baseURL,
		pickupLocation: cfg.PickupLocation,
		session:        NewSession(httpClient, baseURL, cfg.Email, cfg.Password),
	}
}

// Shipment identifies the fulfillment order created for one of our orders.
type Shipment struct {
	OrderID    string
	ShipmentID string
	Status     string
	AWBCode    string
}

type createOrderItem struct {
	Name         string  `json:"name"`
	SKU          string  `json:"sku"`
	Units        int     `json:"units"`
	SellingPrice float64 `json:"selling_price"`
}

type createOrderRequest struct {
	OrderID             string            `json:"order_id"`
	OrderDate           string            `json:"order_date"`
	PickupLocation      string            `json:"pickup_location"`
	BillingCustomerName string            `json:"billing_customer_name"`
	BillingLastName     string            `json:"billing_last_name"`
	BillingAddress      string            `json:"billing_address"`
	BillingCity         string            `json:"billing_city"`
	BillingPincode      string            `json:"billing_pincode"`
	BillingState        string            `json:"billing_state"`
	BillingCountry      string            `json:"billing_country"`
	BillingEmail        string            `json:"billing_email"`
	BillingPhone        string            `json:"billing_phone"`
	ShippingIsBilling   bool              `json:"shipping_is_billing"`
	OrderItems          []createOrderItem `json:"order_items"`
	PaymentMethod       string            `json:"payment_method"`
	SubTotal            float64           `json:"sub_total"`
	Length              float64           `json:"length"`
	Breadth             float64           `json:"breadth"`
	Height              float64           `json:"height"`
	Weight              float64           `json:"weight"`
}

type createOrderResponse struct {
	OrderID    json.Number `json:"order_id"`
	ShipmentID json.Number `json:"shipment_id"`
	Status     string      `json:"status"`
	AWBCode    string      `json:"awb_code"`
}

// CreateOrder registers an adhoc fulfillment order for a placed order.
func (c *Client) CreateOrder(ctx context.Context, order models.Order) (*Shipment, error) {
	req := buildCreateOrderRequest(order, c.pickupLocation)

	var resp createOrderResponse
	if err := c.do(ctx, http.MethodPost, "/orders/create/adhoc", req, &resp); err != nil {
		return nil, err
	}
	if resp.OrderID == "" {
		return nil, fmt.Errorf("shiprocket returned no order id for %s", order.OrderID)
	}

	log.Println("[SHIPROCKET] [INFO] fulfillment order created:", order.OrderID, "->", resp.OrderID.String())
	return &Shipment{
		OrderID:    resp.OrderID.String(),
		ShipmentID: resp.ShipmentID.String(),
		Status:     resp.Status,
		AWBCode:    resp.AWBCode,
	}, nil
}

// Track returns the raw tracking document of a shipment.
func (c *Client) Track(ctx context.Context, shipmentID string) (map[string]interface{}, error) {
	var out map[string]interface{}
	if err := c.do(ctx, http.MethodGet, "/courier/track/shipment/"+shipmentID, nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// CancelOrders cancels fulfillment orders by their Shiprocket ids.
func (c *Client) CancelOrders(ctx context.Context, ids []string) error {
	numbers := make([]json.Number, 0, len(ids))
	for _, id := range ids {
		numbers = append(numbers, json.Number(id))
	}
	return c.do(ctx, http.MethodPost, "/orders/cancel", map[string]interface{}{"ids": numbers}, nil)
}

// do performs an authenticated call. A 401 invalidates the session token
// and the call is retried exactly once with a fresh one.
func (c *Client) do(ctx context.Context, method, path string, payload, out interface{}) error {
	for attempt := 1; ; attempt++ {
		token, err := c.session.Token(ctx)
		if err != nil {
			return err
		}

		status, body, err := send(ctx, c.httpClient, method, c.baseURL+path, token, payload, out)
		if err != nil {
			return err
		}
		if status == http.StatusUnauthorized && attempt == 1 {
			log.Println("[SHIPROCKET] [WARN] token rejected, re-authenticating:", path)
			c.session.Invalidate(token)
			continue
		}
		if status < 200 || status >= 300 {
			return &APIError{StatusCode: status, Body: body}
		}
		return nil
	}
}

// send writes payload as JSON and decodes a 2xx body into out.
func send(ctx context.Context, httpClient *http.Client, method, url, token string, payload, out interface{}) (int, string, error) {
	var reader io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return 0, "", err
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, reader)
	if err != nil {
		return 0, "", err
	}
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := httpClient.Do(req)
	if err != nil {
		return 0, "", fmt.Errorf("failed to reach shiprocket: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return resp.StatusCode, "", err
	}

	if resp.StatusCode >= 200 && resp.StatusCode < 300 && out != nil && len(bytes.TrimSpace(body)) > 0 {
		if err := json.Unmarshal(body, out); err != nil {
			return resp.StatusCode, string(body), fmt.Errorf("failed to parse shiprocket response: %w", err)
		}
	}
	return resp.StatusCode, string(body), nil
}

func buildCreateOrderRequest(order models.Order, pickupLocation string) createOrderRequest {
	addr := order.ShippingAddress
	first, last := splitName(addr.Name)

	email := addr.Email
	if email == "" {
		email = order.UserEmail
	}
	country := addr.Country
	if country == "" {
		country = "India"
	}
	method := "COD"
	if order.PaymentStatus == models.PaymentStatusPaid {
		method = "Prepaid"
	}

	items := make([]createOrderItem, 0, len(order.Items))
	for _, item := range order.Items {
		items = append(items, createOrderItem{
			Name:         item.Name,
			SKU:          item.Product.Hex(),
			Units:        item.Quantity,
			SellingPrice: item.Price,
		})
	}

	return createOrderRequest{
		OrderID:             order.OrderID,
		OrderDate:           order.CreatedAt.Format("2006-01-02 15:04"),
		PickupLocation:      pickupLocation,
		BillingCustomerName: first,
		BillingLastName:     last,
		BillingAddress:      addr.Address,
		BillingCity:         addr.City,
		BillingPincode:      addr.Pincode,
		BillingState:        addr.State,
		BillingCountry:      country,
		BillingEmail:        email,
		BillingPhone:        addr.Phone,
		ShippingIsBilling:   true,
		OrderItems:          items,
		PaymentMethod:       method,
		SubTotal:            order.TotalAmount,
		Length:              10,
		Breadth:             10,
		Height:              5,
		Weight:              0.5,
	}
}

func splitName(full string) (string, string) {
	parts := strings.Fields(full)
	switch len(parts) {
	case 0:
		return "", ""
	case 1:
		return parts[0], ""
	default:
		return parts[0], strings.Join(parts[1:], " ")
	}
}
