package store

import (
	"context"
	"regexp"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"

	"gamyacollections/internal/models"
)

type MongoProducts struct {
	coll *mongo.Collection
}

func (r *MongoProducts) FindByID(ctx context.Context, id primitive.ObjectID) (*models.Product, error) {
	var product models.Product
	if err := r.coll.FindOne(ctx, bson.M{"_id": id}).Decode(&product); err != nil {
		return nil, translate(err)
	}
	product.Decorate()
	return &product, nil
}

func (r *MongoProducts) List(ctx context.Context, f ProductFilter) ([]models.Product, int64, error) {
	filter := bson.M{}
	if f.Category != nil {
		filter["category"] = *f.Category
	}
	if f.SubCategory != nil {
		filter["subCategory"] = *f.SubCategory
	}
	if f.Featured != nil {
		filter["featured"] = *f.Featured
	}
	if f.Bestseller != nil {
		filter["bestseller"] = *f.Bestseller
	}
	if f.Search != "" {
		filter["name"] = bson.M{"$regex": regexp.QuoteMeta(f.Search), "$options": "i"}
	}

	total, err := r.coll.CountDocuments(ctx, filter)
	if err != nil {
		return nil, 0, err
	}

	cursor, err := r.coll.Find(ctx, filter, pageOptions(f.Page, f.Limit))
	if err != nil {
		return nil, 0, err
	}
	defer cursor.Close(ctx)

	products := make([]models.Product, 0)
	if err := cursor.All(ctx, &products); err != nil {
		return nil, 0, err
	}
	for i := range products {
		products[i].Decorate()
	}
	return products, total, nil
}

func (r *MongoProducts) Create(ctx context.Context, product *models.Product) error {
	res, err := r.coll.InsertOne(ctx, product)
	if err != nil {
		return translate(err)
	}
	if id, ok := res.InsertedID.(primitive.ObjectID); ok {
		product.ID = id
	}
	product.Decorate()
	return nil
}

func (r *MongoProducts) Update(ctx context.Context, id primitive.ObjectID, u ProductUpdate) (*models.Product, error) {
	set := bson.M{"updatedAt": time.Now()}
	if u.Name != nil {
		set["name"] = *u.Name
	}
	if u.Description != nil {
		set["description"] = *u.Description
	}
	if u.Price != nil {
		set["price"] = *u.Price
	}
	if u.DiscountPrice != nil {
		set["discountPrice"] = *u.DiscountPrice
	}
	if u.Category != nil {
		set["category"] = *u.Category
	}
	if u.SubCategory != nil {
		set["subCategory"] = *u.SubCategory
	}
	if u.Stock != nil {
		set["stock"] = *u.Stock
	}
	if u.Images != nil {
		set["images"] = u.Images
	}
	if u.Featured != nil {
		set["featured"] = *u.Featured
	}
	if u.Bestseller != nil {
		set["bestseller"] = *u.Bestseller
	}
	if u.Sizes != nil {
		set["sizes"] = u.Sizes
	}
	if u.Colors != nil {
		set["colors"] = u.Colors
	}

	var updated models.Product
	err := r.coll.FindOneAndUpdate(ctx, bson.M{"_id": id}, bson.M{"$set": set}, returnAfter()).Decode(&updated)
	if err != nil {
		return nil, translate(err)
	}
	updated.Decorate()
	return &updated, nil
}

func (r *MongoProducts) Delete(ctx context.Context, id primitive.ObjectID) error {
	res, err := r.coll.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return err
	}
	if res.DeletedCount == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *MongoProducts) ReserveStock(ctx context.Context, id primitive.ObjectID, qty int) (bool, error) {
	filter := bson.M{
		"_id":   id,
		"stock": bson.M{"$gte": qty},
	}
	update := bson.M{"$inc": bson.M{"stock": -qty}}

	res, err := r.coll.UpdateOne(ctx, filter, update)
	if err != nil {
		return false, err
	}
	return res.MatchedCount > 0, nil
}

func (r *MongoProducts) ReleaseStock(ctx context.Context, id primitive.ObjectID, qty int) error {
	_, err := r.coll.UpdateByID(ctx, id, bson.M{"$inc": bson.M{"stock": qty}})
	return err
}
