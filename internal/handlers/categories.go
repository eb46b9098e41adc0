package handlers

import (
	"context"
	"errors"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"gamyacollections/internal/apperr"
	"gamyacollections/internal/models"
)

type CategoryRequest struct {
	Name  string `json:"name" binding:"required"`
	Image string `json:"image"`
}

type CategoryUpdateRequest struct {
	Name  *string `json:"name"`
	Image *string `json:"image"`
}

type SubCategoryRequest struct {
	Name     string `json:"name" binding:"required"`
	Image    string `json:"image"`
	Category string `json:"category" binding:"required"`
}

type SubCategoryUpdateRequest struct {
	Name     *string `json:"name"`
	Image    *string `json:"image"`
	Category *string `json:"category"`
}

func GetCategories(categories *mongo.Collection) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "GET /api/categories"
		defer handlePanic(c, route)

		if err := ensureDBConnection(c.Request.Context(), categories.Database()); err != nil {
			respondWithError(c, http.StatusServiceUnavailable, route, "database unavailable")
			return
		}

		ctx, cancel := requestContext(c)
		defer cancel()

		result := make([]models.Category, 0)
		if err := findSorted(ctx, categories, bson.M{}, &result); err != nil {
			respondError(c, route, apperr.Internal("db error", err))
			return
		}

		log.Printf("[%s] returning %d categories", route, len(result))
		c.JSON(http.StatusOK, gin.H{"success": true, "categories": result})
	}
}

// CreateCategory rejects a name that is already taken.
func CreateCategory(categories *mongo.Collection) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "POST /api/categories"
		defer handlePanic(c, route)

		var req CategoryRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			respondValidationError(c, route, err)
			return
		}
		name := strings.TrimSpace(req.Name)
		if name == "" {
			respondError(c, route, apperr.Validation("name is required"))
			return
		}

		ctx, cancel := requestContext(c)
		defer cancel()

		if err := ensureUniqueName(ctx, categories, bson.M{"name": name}, primitive.NilObjectID); err != nil {
			respondError(c, route, err)
			return
		}

		now := time.Now()
		category := models.Category{Name: name, Image: strings.TrimSpace(req.Image), CreatedAt: now, UpdatedAt: now}
		res, err := categories.InsertOne(ctx, category)
		if err != nil {
			respondError(c, route, apperr.Internal("db error", err))
			return
		}
		category.ID, _ = res.InsertedID.(primitive.ObjectID)

		log.Printf("[%s] created category %s", route, category.ID.Hex())
		c.JSON(http.StatusCreated, gin.H{"success": true, "category": category})
	}
}

func UpdateCategory(categories *mongo.Collection) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "PUT /api/categories/:id"
		defer handlePanic(c, route)

		id, err := objectIDParam(c, "id")
		if err != nil {
			respondError(c, route, err)
			return
		}

		var req CategoryUpdateRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			respondValidationError(c, route, err)
			return
		}

		ctx, cancel := requestContext(c)
		defer cancel()

		update := bson.M{}
		if req.Name != nil {
			name := strings.TrimSpace(*req.Name)
			if name == "" {
				respondError(c, route, apperr.Validation("name cannot be empty"))
				return
			}
			if err := ensureUniqueName(ctx, categories, bson.M{"name": name}, id); err != nil {
				respondError(c, route, err)
				return
			}
			update["name"] = name
		}
		if req.Image != nil {
			update["image"] = strings.TrimSpace(*req.Image)
		}
		if len(update) == 0 {
			respondError(c, route, apperr.Validation("no fields to update"))
			return
		}

		var updated models.Category
		if err := updateByID(ctx, categories, id, update, &updated); err != nil {
			respondError(c, route, catalogError(err, "Category not found"))
			return
		}
		c.JSON(http.StatusOK, gin.H{"success": true, "category": updated})
	}
}

// DeleteCategory removes the category only; its subcategories and products
// keep their references.
func DeleteCategory(categories *mongo.Collection) gin.HandlerFunc {
	return deleteCatalogEntry(categories, "DELETE /api/categories/:id", "Category")
}

// GetSubCategories optionally narrows to one parent with ?category=.
func GetSubCategories(subCategories *mongo.Collection) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "GET /api/subcategories"
		defer handlePanic(c, route)

		filter := bson.M{}
		if value := strings.TrimSpace(c.Query("category")); value != "" {
			parent, err := primitive.ObjectIDFromHex(value)
			if err != nil {
				respondError(c, route, apperr.Validation("invalid category"))
				return
			}
			filter["category"] = parent
		}

		ctx, cancel := requestContext(c)
		defer cancel()

		result := make([]models.SubCategory, 0)
		if err := findSorted(ctx, subCategories, filter, &result); err != nil {
			respondError(c, route, apperr.Internal("db error", err))
			return
		}
		c.JSON(http.StatusOK, gin.H{"success": true, "subCategories": result})
	}
}

func CreateSubCategory(subCategories, categories *mongo.Collection) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "POST /api/subcategories"
		defer handlePanic(c, route)

		var req SubCategoryRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			respondValidationError(c, route, err)
			return
		}
		name := strings.TrimSpace(req.Name)
		if name == "" {
			respondError(c, route, apperr.Validation("name is required"))
			return
		}

		ctx, cancel := requestContext(c)
		defer cancel()

		parent, err := parentCategory(ctx, categories, req.Category)
		if err != nil {
			respondError(c, route, err)
			return
		}
		if err := ensureUniqueName(ctx, subCategories, bson.M{"name": name, "category": parent}, primitive.NilObjectID); err != nil {
			respondError(c, route, err)
			return
		}

		now := time.Now()
		sub := models.SubCategory{Name: name, Image: strings.TrimSpace(req.Image), Category: parent, CreatedAt: now, UpdatedAt: now}
		res, err := subCategories.InsertOne(ctx, sub)
		if err != nil {
			respondError(c, route, apperr.Internal("db error", err))
			return
		}
		sub.ID, _ = res.InsertedID.(primitive.ObjectID)

		log.Printf("[%s] created subcategory %s under %s", route, sub.ID.Hex(), parent.Hex())
		c.JSON(http.StatusCreated, gin.H{"success": true, "subCategory": sub})
	}
}

func UpdateSubCategory(subCategories, categories *mongo.Collection) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "PUT /api/subcategories/:id"
		defer handlePanic(c, route)

		id, err := objectIDParam(c, "id")
		if err != nil {
			respondError(c, route, err)
			return
		}

		var req SubCategoryUpdateRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			respondValidationError(c, route, err)
			return
		}

		ctx, cancel := requestContext(c)
		defer cancel()

		update := bson.M{}
		if req.Name != nil {
			name := strings.TrimSpace(*req.Name)
			if name == "" {
				respondError(c, route, apperr.Validation("name cannot be empty"))
				return
			}
			update["name"] = name
		}
		if req.Image != nil {
			update["image"] = strings.TrimSpace(*req.Image)
		}
		if req.Category != nil {
			parent, err := parentCategory(ctx, categories, *req.Category)
			if err != nil {
				respondError(c, route, err)
				return
			}
			update["category"] = parent
		}
		if len(update) == 0 {
			respondError(c, route, apperr.Validation("no fields to update"))
			return
		}

		var updated models.SubCategory
		if err := updateByID(ctx, subCategories, id, update, &updated); err != nil {
			respondError(c, route, catalogError(err, "SubCategory not found"))
			return
		}
		c.JSON(http.StatusOK, gin.H{"success": true, "subCategory": updated})
	}
}

func DeleteSubCategory(subCategories *mongo.Collection) gin.HandlerFunc {
	return deleteCatalogEntry(subCategories, "DELETE /api/subcategories/:id", "SubCategory")
}

func deleteCatalogEntry(coll *mongo.Collection, route, label string) gin.HandlerFunc {
	return func(c *gin.Context) {
		defer handlePanic(c, route)

		id, err := objectIDParam(c, "id")
		if err != nil {
			respondError(c, route, err)
			return
		}

		ctx, cancel := requestContext(c)
		defer cancel()

		res, err := coll.DeleteOne(ctx, bson.M{"_id": id})
		if err != nil {
			respondError(c, route, apperr.Internal("db error", err))
			return
		}
		if res.DeletedCount == 0 {
			respondError(c, route, apperr.NotFound(label+" not found"))
			return
		}

		log.Printf("[%s] deleted %s", route, id.Hex())
		c.JSON(http.StatusOK, gin.H{"success": true, "message": label + " deleted"})
	}
}

func parentCategory(ctx context.Context, categories *mongo.Collection, ref string) (primitive.ObjectID, error) {
	parent, err := primitive.ObjectIDFromHex(strings.TrimSpace(ref))
	if err != nil {
		return primitive.NilObjectID, apperr.Validation("invalid category")
	}
	count, err := categories.CountDocuments(ctx, bson.M{"_id": parent})
	if err != nil {
		return primitive.NilObjectID, apperr.Internal("db error", err)
	}
	if count == 0 {
		return primitive.NilObjectID, apperr.NotFound("Parent category not found")
	}
	return parent, nil
}

func ensureUniqueName(ctx context.Context, coll *mongo.Collection, filter bson.M, self primitive.ObjectID) error {
	if !self.IsZero() {
		filter["_id"] = bson.M{"$ne": self}
	}
	count, err := coll.CountDocuments(ctx, filter)
	if err != nil {
		return apperr.Internal("db error", err)
	}
	if count > 0 {
		return apperr.Conflict("name already exists")
	}
	return nil
}

func findSorted(ctx context.Context, coll *mongo.Collection, filter bson.M, out interface{}) error {
	cursor, err := coll.Find(ctx, filter, options.Find().SetSort(bson.D{{Key: "name", Value: 1}}))
	if err != nil {
		return err
	}
	defer cursor.Close(ctx)
	return cursor.All(ctx, out)
}

func updateByID(ctx context.Context, coll *mongo.Collection, id primitive.ObjectID, set bson.M, out interface{}) error {
	set["updatedAt"] = time.Now()
	return coll.FindOneAndUpdate(ctx, bson.M{"_id": id}, bson.M{"$set": set},
		options.FindOneAndUpdate().SetReturnDocument(options.After)).Decode(out)
}

func catalogError(err error, notFound string) error {
	if errors.Is(err, mongo.ErrNoDocuments) {
		return apperr.NotFound(notFound)
	}
	return apperr.Internal("db error", err)
}
