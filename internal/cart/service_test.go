package cart

import (
	"context"
	"sync"
	"testing"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"gamyacollections/internal/apperr"
	"gamyacollections/internal/models"
	"gamyacollections/internal/store"
)

func setup(t *testing.T) (*Service, *models.Product, primitive.ObjectID) {
	t.Helper()
	mem := store.NewMemory()
	product := &models.Product{Name: "Pearl Studs", Price: 800, DiscountPrice: 600, Stock: 4}
	if err := mem.Products().Create(context.Background(), product); err != nil {
		t.Fatalf("seed product: %v", err)
	}
	return NewService(mem.Carts(), mem.Products()), product, primitive.NewObjectID()
}

func TestGetEmptyCart(t *testing.T) {
	svc, _, user := setup(t)
	view, err := svc.Get(context.Background(), user)
	if err != nil {
		t.Fatalf("Get returned error: %v", err)
	}
	if len(view.Items) != 0 || view.TotalAmount != 0 {
		t.Fatalf("expected empty cart, got %+v", view)
	}
}

func TestAddItemMergesAndPricesAtDiscount(t *testing.T) {
	svc, product, user := setup(t)
	ctx := context.Background()

	if _, err := svc.AddItem(ctx, user, ItemRequest{ProductID: product.ID.Hex(), Quantity: 1, Size: "M"}); err != nil {
		t.Fatalf("AddItem returned error: %v", err)
	}
	view, err := svc.AddItem(ctx, user, ItemRequest{ProductID: product.ID.Hex(), Quantity: 2, Size: "m"})
	if err != nil {
		t.Fatalf("AddItem returned error: %v", err)
	}
	if len(view.Items) != 1 || view.Items[0].Quantity != 3 {
		t.Fatalf("expected merged line of 3, got %+v", view.Items)
	}
	if view.TotalAmount != 1800 || view.Items[0].UnitPrice != 600 {
		t.Fatalf("expected discounted total 1800, got %v", view.TotalAmount)
	}

	view, err = svc.AddItem(ctx, user, ItemRequest{ProductID: product.ID.Hex(), Quantity: 1, Size: "L"})
	if err != nil {
		t.Fatalf("AddItem returned error: %v", err)
	}
	if len(view.Items) != 2 || view.TotalItems != 4 {
		t.Fatalf("expected a separate line for another size, got %+v", view)
	}
}

func TestAddItemChecksSummedStock(t *testing.T) {
	svc, product, user := setup(t)
	ctx := context.Background()

	if _, err := svc.AddItem(ctx, user, ItemRequest{ProductID: product.ID.Hex(), Quantity: 3, Size: "S"}); err != nil {
		t.Fatalf("AddItem returned error: %v", err)
	}
	_, err := svc.AddItem(ctx, user, ItemRequest{ProductID: product.ID.Hex(), Quantity: 2, Size: "L"})
	if apperr.KindOf(err) != apperr.KindInsufficientStock {
		t.Fatalf("expected insufficient_stock, got %v", err)
	}
}

func TestAddItemValidation(t *testing.T) {
	svc, _, user := setup(t)
	ctx := context.Background()

	if _, err := svc.AddItem(ctx, user, ItemRequest{ProductID: "nope"}); apperr.KindOf(err) != apperr.KindValidation {
		t.Fatalf("expected validation error, got %v", err)
	}
	if _, err := svc.AddItem(ctx, user, ItemRequest{ProductID: primitive.NewObjectID().Hex()}); apperr.KindOf(err) != apperr.KindNotFound {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestUpdateItem(t *testing.T) {
	svc, product, user := setup(t)
	ctx := context.Background()
	if _, err := svc.AddItem(ctx, user, ItemRequest{ProductID: product.ID.Hex(), Quantity: 1}); err != nil {
		t.Fatalf("AddItem returned error: %v", err)
	}

	view, err := svc.UpdateItem(ctx, user, ItemRequest{ProductID: product.ID.Hex(), Quantity: 4})
	if err != nil || view.Items[0].Quantity != 4 {
		t.Fatalf("expected quantity 4, got %+v, %v", view, err)
	}
	if _, err := svc.UpdateItem(ctx, user, ItemRequest{ProductID: product.ID.Hex(), Quantity: 5}); apperr.KindOf(err) != apperr.KindInsufficientStock {
		t.Fatalf("expected insufficient_stock, got %v", err)
	}
	if _, err := svc.UpdateItem(ctx, user, ItemRequest{ProductID: product.ID.Hex(), Quantity: 0}); apperr.KindOf(err) != apperr.KindValidation {
		t.Fatalf("expected validation error, got %v", err)
	}
	if _, err := svc.UpdateItem(ctx, user, ItemRequest{ProductID: product.ID.Hex(), Quantity: 1, Size: "XL"}); apperr.KindOf(err) != apperr.KindNotFound {
		t.Fatalf("expected not found for unknown line, got %v", err)
	}
}

func TestRemoveItemAndClear(t *testing.T) {
	svc, product, user := setup(t)
	ctx := context.Background()
	for _, size := range []string{"S", "M"} {
		if _, err := svc.AddItem(ctx, user, ItemRequest{ProductID: product.ID.Hex(), Quantity: 1, Size: size}); err != nil {
			t.Fatalf("AddItem returned error: %v", err)
		}
	}

	view, err := svc.RemoveItem(ctx, user, product.ID.Hex(), "S", "")
	if err != nil || len(view.Items) != 1 || view.Items[0].Size != "M" {
		t.Fatalf("expected only M left, got %+v, %v", view, err)
	}
	view, err = svc.RemoveItem(ctx, user, product.ID.Hex(), "", "")
	if err != nil || len(view.Items) != 0 {
		t.Fatalf("expected empty cart, got %+v, %v", view, err)
	}
	if _, err := svc.RemoveItem(ctx, user, product.ID.Hex(), "", ""); apperr.KindOf(err) != apperr.KindNotFound {
		t.Fatalf("expected not found, got %v", err)
	}

	if err := svc.Clear(ctx, user); err != nil {
		t.Fatalf("Clear returned error: %v", err)
	}
}

func TestConcurrentAddsNeverExceedStock(t *testing.T) {
	svc, product, user := setup(t)
	ctx := context.Background()

	var wg sync.WaitGroup
	var mu sync.Mutex
	added, refused := 0, 0
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := svc.AddItem(ctx, user, ItemRequest{ProductID: product.ID.Hex(), Quantity: 1})
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				added++
			case apperr.KindOf(err) == apperr.KindInsufficientStock:
				refused++
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()

	if added != product.Stock || refused != 10-product.Stock {
		t.Fatalf("expected %d adds and %d refusals, got %d and %d", product.Stock, 10-product.Stock, added, refused)
	}
	view, err := svc.Get(ctx, user)
	if err != nil {
		t.Fatalf("Get returned error: %v", err)
	}
	if view.TotalItems != product.Stock {
		t.Fatalf("expected %d items in cart, got %d", product.Stock, view.TotalItems)
	}
}
