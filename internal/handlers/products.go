package handlers

import (
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"gamyacollections/internal/apperr"
	"gamyacollections/internal/models"
	"gamyacollections/internal/store"
)

/*
GET /api/products
- Pagination is optional: without page and limit every product is returned.
*/
func GetProducts(products store.Products) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "GET /api/products"
		defer handlePanic(c, route)

		log.Printf("[%s] hit page=%s limit=%s category=%s search=%s",
			route, c.Query("page"), c.Query("limit"), c.Query("category"), c.Query("search"))

		filter, err := productFilterFromQuery(c)
		if err != nil {
			respondError(c, route, err)
			return
		}

		ctx, cancel := requestContext(c)
		defer cancel()

		items, total, err := products.List(ctx, filter)
		if err != nil {
			respondError(c, route, apperr.Internal("db error", err))
			return
		}

		body := gin.H{"success": true, "products": items, "total": total}
		if filter.Limit > 0 {
			body["pagination"] = paginationMeta(filter.Page, filter.Limit, total)
		}
		log.Printf("[%s] returning %d products", route, len(items))
		c.JSON(http.StatusOK, body)
	}
}

func productFilterFromQuery(c *gin.Context) (store.ProductFilter, error) {
	filter := store.ProductFilter{Search: strings.TrimSpace(c.Query("search"))}

	if value := strings.TrimSpace(c.Query("category")); value != "" {
		id, err := primitive.ObjectIDFromHex(value)
		if err != nil {
			return filter, apperr.Validation("invalid category")
		}
		filter.Category = &id
	}
	if value := strings.TrimSpace(c.Query("subCategory")); value != "" {
		id, err := primitive.ObjectIDFromHex(value)
		if err != nil {
			return filter, apperr.Validation("invalid subCategory")
		}
		filter.SubCategory = &id
	}
	if value := strings.TrimSpace(c.Query("featured")); value != "" {
		parsed, err := parseBoolValue(value)
		if err != nil {
			return filter, apperr.Validation("featured must be a boolean")
		}
		filter.Featured = &parsed
	}
	if value := strings.TrimSpace(c.Query("bestseller")); value != "" {
		parsed, err := parseBoolValue(value)
		if err != nil {
			return filter, apperr.Validation("bestseller must be a boolean")
		}
		filter.Bestseller = &parsed
	}

	if c.Query("page") != "" || c.Query("limit") != "" {
		page, limit, err := parsePaginationParams(c.Query("page"), c.Query("limit"))
		if err != nil {
			return filter, err
		}
		filter.Page, filter.Limit = page, limit
	}
	return filter, nil
}

func GetProduct(products store.Products) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "GET /api/products/:id"
		defer handlePanic(c, route)

		id, err := objectIDParam(c, "id")
		if err != nil {
			respondError(c, route, err)
			return
		}

		ctx, cancel := requestContext(c)
		defer cancel()

		product, err := products.FindByID(ctx, id)
		if err != nil {
			respondError(c, route, storeError(err, "Product not found"))
			return
		}
		c.JSON(http.StatusOK, gin.H{"success": true, "product": product})
	}
}

func CreateProduct(products store.Products) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "POST /api/products"
		defer handlePanic(c, route)

		input, err := parseProductRequest(c)
		if err != nil {
			respondError(c, route, apperr.Wrap(apperr.KindValidation, err.Error(), err))
			return
		}

		product, err := newProductFromInput(input)
		if err != nil {
			respondError(c, route, err)
			return
		}

		ctx, cancel := requestContext(c)
		defer cancel()

		if err := products.Create(ctx, product); err != nil {
			respondError(c, route, storeError(err, "Product not found"))
			return
		}

		log.Printf("[%s] created product %s", route, product.ID.Hex())
		c.JSON(http.StatusCreated, gin.H{"success": true, "product": product})
	}
}

func newProductFromInput(input productInput) (*models.Product, error) {
	if input.Name == nil || strings.TrimSpace(*input.Name) == "" {
		return nil, apperr.Validation("name is required")
	}
	if input.Price == nil {
		return nil, apperr.Validation("price is required")
	}
	if input.Category == nil || *input.Category == "" {
		return nil, apperr.Validation("category is required")
	}

	product := &models.Product{
		Name:      strings.TrimSpace(*input.Name),
		Price:     *input.Price,
		Images:    models.StringList(input.Images),
		Sizes:     models.StringList(input.Sizes),
		Colors:    models.StringList(input.Colors),
		CreatedAt: time.Now(),
	}
	product.UpdatedAt = product.CreatedAt

	if input.DiscountPrice != nil {
		product.DiscountPrice = *input.DiscountPrice
	}
	if err := validateDiscount(product.Price, product.DiscountPrice); err != nil {
		return nil, apperr.Validation(err.Error())
	}

	category, err := primitive.ObjectIDFromHex(*input.Category)
	if err != nil {
		return nil, apperr.Validation("invalid category")
	}
	product.Category = category

	if input.SubCategory != nil && *input.SubCategory != "" {
		sub, err := primitive.ObjectIDFromHex(*input.SubCategory)
		if err != nil {
			return nil, apperr.Validation("invalid subCategory")
		}
		product.SubCategory = &sub
	}
	if input.Description != nil {
		product.Description = *input.Description
	}
	if input.Stock != nil {
		if *input.Stock < 0 {
			return nil, apperr.Validation("stock cannot be negative")
		}
		product.Stock = *input.Stock
	}
	if input.Featured != nil {
		product.Featured = *input.Featured
	}
	if input.Bestseller != nil {
		product.Bestseller = *input.Bestseller
	}
	if err := validateImageURLs(input.Images); err != nil {
		return nil, apperr.Validation(err.Error())
	}
	return product, nil
}

func UpdateProduct(products store.Products) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "PUT /api/products/:id"
		defer handlePanic(c, route)

		id, err := objectIDParam(c, "id")
		if err != nil {
			respondError(c, route, err)
			return
		}

		input, err := parseProductRequest(c)
		if err != nil {
			respondError(c, route, apperr.Wrap(apperr.KindValidation, err.Error(), err))
			return
		}

		ctx, cancel := requestContext(c)
		defer cancel()

		existing, err := products.FindByID(ctx, id)
		if err != nil {
			respondError(c, route, storeError(err, "Product not found"))
			return
		}

		update, err := productUpdateFromInput(*existing, input)
		if err != nil {
			respondError(c, route, err)
			return
		}

		updated, err := products.Update(ctx, id, update)
		if err != nil {
			respondError(c, route, storeError(err, "Product not found"))
			return
		}

		log.Printf("[%s] updated product %s", route, id.Hex())
		c.JSON(http.StatusOK, gin.H{"success": true, "product": updated})
	}
}

func productUpdateFromInput(existing models.Product, input productInput) (store.ProductUpdate, error) {
	update := store.ProductUpdate{
		Description: input.Description,
		Featured:    input.Featured,
		Bestseller:  input.Bestseller,
		Sizes:       input.Sizes,
		Colors:      input.Colors,
	}

	if input.Name != nil {
		name := strings.TrimSpace(*input.Name)
		if name == "" {
			return update, apperr.Validation("name cannot be empty")
		}
		update.Name = &name
	}

	if input.Price != nil || input.DiscountPrice != nil {
		price, discount, err := resolvePriceUpdate(existing.Price, existing.DiscountPrice, priceUpdate{
			Price:         input.Price,
			DiscountPrice: input.DiscountPrice,
		})
		if err != nil {
			return update, apperr.Validation(err.Error())
		}
		update.Price = &price
		update.DiscountPrice = &discount
	}

	if input.Category != nil {
		category, err := primitive.ObjectIDFromHex(*input.Category)
		if err != nil {
			return update, apperr.Validation("invalid category")
		}
		update.Category = &category
	}
	if input.SubCategory != nil && *input.SubCategory != "" {
		sub, err := primitive.ObjectIDFromHex(*input.SubCategory)
		if err != nil {
			return update, apperr.Validation("invalid subCategory")
		}
		update.SubCategory = &sub
	}
	if input.Stock != nil {
		if *input.Stock < 0 {
			return update, apperr.Validation("stock cannot be negative")
		}
		update.Stock = input.Stock
	}
	if input.Images != nil {
		if err := validateImageURLs(input.Images); err != nil {
			return update, apperr.Validation(err.Error())
		}
		update.Images = input.Images
	}
	return update, nil
}

func DeleteProduct(products store.Products) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "DELETE /api/products/:id"
		defer handlePanic(c, route)

		id, err := objectIDParam(c, "id")
		if err != nil {
			respondError(c, route, err)
			return
		}

		ctx, cancel := requestContext(c)
		defer cancel()

		if err := products.Delete(ctx, id); err != nil {
			respondError(c, route, storeError(err, "Product not found"))
			return
		}

		log.Printf("[%s] deleted product %s", route, id.Hex())
		c.JSON(http.StatusOK, gin.H{"success": true, "message": "Product deleted"})
	}
}
