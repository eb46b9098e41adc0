package checkout

import (
	"context"
	"log"

	"gamyacollections/internal/mailer"
	"gamyacollections/internal/models"
	"gamyacollections/internal/store"
)

func (s *Service) sendCustomerEmail(ctx context.Context, order *models.Order) error {
	if order.UserEmailSent {
		return nil
	}
	msg, err := mailer.OrderConfirmation(*order)
	if err != nil {
		return err
	}
	if err := s.mailer.Send(ctx, msg); err != nil {
		return err
	}
	return s.orders.MarkNotified(ctx, order.ID, models.JobCustomerEmail)
}

func (s *Service) sendAdminEmail(ctx context.Context, order *models.Order) error {
	if order.AdminEmailSent {
		return nil
	}
	if s.adminEmail == "" {
		log.Println("[ORDER] [WARN] ADMIN_EMAIL not set, skipping admin notification:", order.OrderID)
		return nil
	}
	msg, err := mailer.AdminNotification(*order, s.adminEmail)
	if err != nil {
		return err
	}
	if err := s.mailer.Send(ctx, msg); err != nil {
		return err
	}
	return s.orders.MarkNotified(ctx, order.ID, models.JobAdminEmail)
}

func (s *Service) createFulfillment(ctx context.Context, order *models.Order) error {
	if order.ShiprocketOrderID != "" {
		return nil
	}
	if order.OrderStatus == models.OrderStatusCancelled {
		log.Println("[SHIPROCKET] [INFO] order cancelled, not shipping:", order.OrderID)
		return nil
	}

	shipment, err := s.shipping.CreateOrder(ctx, *order)
	if err != nil {
		return err
	}
	return s.orders.SetFulfillment(ctx, order.ID, store.Fulfillment{
		ShiprocketOrderID:    shipment.OrderID,
		ShiprocketShipmentID: shipment.ShipmentID,
		TrackingNumber:       shipment.AWBCode,
	})
}
