package handlers

import "fmt"

type priceUpdate struct {
	Price         *float64
	DiscountPrice *float64
}

// validateDiscount allows a zero discount (no sale) or one strictly between
// zero and the price.
func validateDiscount(price, discountPrice float64) error {
	if price <= 0 {
		return fmt.Errorf("price must be greater than 0")
	}
	if discountPrice == 0 {
		return nil
	}
	if discountPrice < 0 {
		return fmt.Errorf("discountPrice must be greater than 0")
	}
	if discountPrice >= price {
		return fmt.Errorf("discountPrice must be less than price")
	}
	return nil
}

// resolvePriceUpdate merges a partial update into the stored prices and
// validates the outcome.
func resolvePriceUpdate(existingPrice, existingDiscount float64, input priceUpdate) (float64, float64, error) {
	price, discount := existingPrice, existingDiscount
	if input.Price != nil {
		price = *input.Price
	}
	if input.DiscountPrice != nil {
		discount = *input.DiscountPrice
	}
	if err := validateDiscount(price, discount); err != nil {
		return 0, 0, err
	}
	return price, discount, nil
}
