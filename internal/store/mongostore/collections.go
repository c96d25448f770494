package mongostore

import (
	"context"
	"regexp"
	"time"

	"github.com/pkg/errors"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"shop_back_end/internal/models"
	"shop_back_end/internal/store"
)

func byID(id primitive.ObjectID) bson.M { return bson.M{"_id": id} }

func findAll[T any](ctx context.Context, col *mongo.Collection, filter interface{}, opts ...*options.FindOptions) ([]T, error) {
	cursor, err := col.Find(ctx, filter, opts...)
	if err != nil {
		return nil, translate(err)
	}
	out := []T{}
	if err := cursor.All(ctx, &out); err != nil {
		return nil, errors.Wrapf(err, "decoding %s", col.Name())
	}
	return out, nil
}

func findOne[T any](ctx context.Context, col *mongo.Collection, filter interface{}) (T, error) {
	var out T
	err := col.FindOne(ctx, filter).Decode(&out)
	return out, translate(err)
}

func ascendingID() *options.FindOptions {
	return options.Find().SetSort(bson.D{{Key: "_id", Value: 1}})
}

// --- users ---

type users struct{ col *mongo.Collection }

func (r users) Create(ctx context.Context, user *models.User) error {
	if user.ID.IsZero() {
		user.ID = primitive.NewObjectID()
	}
	_, err := r.col.InsertOne(ctx, user)
	return translate(err)
}

func (r users) FindByID(ctx context.Context, id primitive.ObjectID) (models.User, error) {
	return findOne[models.User](ctx, r.col, byID(id))
}

func (r users) FindByEmail(ctx context.Context, email string) (models.User, error) {
	return findOne[models.User](ctx, r.col, bson.M{"email": email})
}

func (r users) FindByUsername(ctx context.Context, username string) (models.User, error) {
	return findOne[models.User](ctx, r.col, bson.M{"username": username})
}

func (r users) FindByIDs(ctx context.Context, ids []primitive.ObjectID) (map[primitive.ObjectID]models.User, error) {
	found, err := findAll[models.User](ctx, r.col, bson.M{"_id": bson.M{"$in": ids}})
	if err != nil {
		return nil, err
	}
	out := make(map[primitive.ObjectID]models.User, len(found))
	for _, u := range found {
		out[u.ID] = u
	}
	return out, nil
}

func (r users) UpdatePassword(ctx context.Context, id primitive.ObjectID, hash string, at time.Time) error {
	res, err := r.col.UpdateOne(ctx, byID(id), bson.M{"$set": bson.M{"password_hash": hash, "updated_at": at}})
	if err != nil {
		return translate(err)
	}
	if res.MatchedCount == 0 {
		return store.ErrNotFound
	}
	return nil
}

// --- categories ---

type categories struct{ col *mongo.Collection }

func (r categories) Create(ctx context.Context, category *models.Category) error {
	if category.ID.IsZero() {
		category.ID = primitive.NewObjectID()
	}
	_, err := r.col.InsertOne(ctx, category)
	return translate(err)
}

func (r categories) FindByID(ctx context.Context, id primitive.ObjectID) (models.Category, error) {
	return findOne[models.Category](ctx, r.col, byID(id))
}

func (r categories) List(ctx context.Context) ([]models.Category, error) {
	return findAll[models.Category](ctx, r.col, bson.M{}, ascendingID())
}

func (r categories) Delete(ctx context.Context, id primitive.ObjectID) error {
	res, err := r.col.DeleteOne(ctx, byID(id))
	if err != nil {
		return translate(err)
	}
	if res.DeletedCount == 0 {
		return store.ErrNotFound
	}
	return nil
}

// --- products ---

type products struct{ col *mongo.Collection }

func (r products) Create(ctx context.Context, product *models.Product) error {
	if product.ID.IsZero() {
		product.ID = primitive.NewObjectID()
	}
	_, err := r.col.InsertOne(ctx, product)
	return translate(err)
}

func (r products) FindByID(ctx context.Context, id primitive.ObjectID) (models.Product, error) {
	return findOne[models.Product](ctx, r.col, byID(id))
}

func (r products) FindByIDs(ctx context.Context, ids []primitive.ObjectID) (map[primitive.ObjectID]models.Product, error) {
	found, err := findAll[models.Product](ctx, r.col, bson.M{"_id": bson.M{"$in": ids}})
	if err != nil {
		return nil, err
	}
	out := make(map[primitive.ObjectID]models.Product, len(found))
	for _, p := range found {
		out[p.ID] = p
	}
	return out, nil
}

func (r products) List(ctx context.Context) ([]models.Product, error) {
	return findAll[models.Product](ctx, r.col, bson.M{}, ascendingID())
}

func (r products) Search(ctx context.Context, query string) ([]models.Product, error) {
	pattern := primitive.Regex{Pattern: regexp.QuoteMeta(query), Options: "i"}
	filter := bson.M{"$or": []bson.M{
		{"name": pattern},
		{"description": pattern},
	}}
	return findAll[models.Product](ctx, r.col, filter, ascendingID())
}

func (r products) Update(ctx context.Context, id primitive.ObjectID, patch models.ProductPatch, at time.Time) (models.Product, error) {
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)
	var out models.Product
	err := r.col.FindOneAndUpdate(ctx, byID(id), bson.M{"$set": productSet(patch, at)}, opts).Decode(&out)
	return out, translate(err)
}

// productSet lists only the patched fields so concurrent updates of
// different fields do not overwrite each other.
func productSet(patch models.ProductPatch, at time.Time) bson.M {
	set := bson.M{"updated_at": at}
	if patch.Name != nil {
		set["name"] = *patch.Name
	}
	if patch.Description != nil {
		set["description"] = *patch.Description
	}
	if patch.Price != nil {
		set["price"] = *patch.Price
	}
	if patch.Category != nil {
		set["category"] = *patch.Category
	}
	if patch.InStock != nil {
		set["in_stock"] = *patch.InStock
	}
	return set
}

func (r products) Delete(ctx context.Context, id primitive.ObjectID) error {
	res, err := r.col.DeleteOne(ctx, byID(id))
	if err != nil {
		return translate(err)
	}
	if res.DeletedCount == 0 {
		return store.ErrNotFound
	}
	return nil
}

func (r products) DeleteAll(ctx context.Context) (int64, error) {
	res, err := r.col.DeleteMany(ctx, bson.M{})
	if err != nil {
		return 0, translate(err)
	}
	return res.DeletedCount, nil
}

func (r products) CountByCategory(ctx context.Context, categoryID primitive.ObjectID) (int64, error) {
	n, err := r.col.CountDocuments(ctx, bson.M{"category": categoryID})
	return n, translate(err)
}

// --- cart ---

type cart struct{ col *mongo.Collection }

func (r cart) Insert(ctx context.Context, item *models.CartItem) error {
	if item.ID.IsZero() {
		item.ID = primitive.NewObjectID()
	}
	_, err := r.col.InsertOne(ctx, item)
	return translate(err)
}

func (r cart) FindItem(ctx context.Context, userID, productID primitive.ObjectID) (models.CartItem, error) {
	return findOne[models.CartItem](ctx, r.col, bson.M{"user_id": userID, "product_id": productID})
}

func (r cart) AddQuantity(ctx context.Context, id primitive.ObjectID, delta int, at time.Time) (models.CartItem, error) {
	var item models.CartItem
	err := r.col.FindOneAndUpdate(ctx, byID(id),
		bson.M{"$inc": bson.M{"quantity": delta}, "$set": bson.M{"updated_at": at}},
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	).Decode(&item)
	return item, translate(err)
}

func (r cart) ListByUser(ctx context.Context, userID primitive.ObjectID) ([]models.CartItem, error) {
	return findAll[models.CartItem](ctx, r.col, bson.M{"user_id": userID}, ascendingID())
}

func (r cart) DeleteItem(ctx context.Context, userID, itemID primitive.ObjectID) error {
	res, err := r.col.DeleteOne(ctx, bson.M{"_id": itemID, "user_id": userID})
	if err != nil {
		return translate(err)
	}
	if res.DeletedCount == 0 {
		return store.ErrNotFound
	}
	return nil
}

func (r cart) DeleteByUser(ctx context.Context, userID primitive.ObjectID) (int64, error) {
	res, err := r.col.DeleteMany(ctx, bson.M{"user_id": userID})
	if err != nil {
		return 0, translate(err)
	}
	return res.DeletedCount, nil
}

// --- orders ---

type orders struct{ col *mongo.Collection }

func (r orders) Create(ctx context.Context, order *models.Order) error {
	if order.ID.IsZero() {
		order.ID = primitive.NewObjectID()
	}
	_, err := r.col.InsertOne(ctx, order)
	return translate(err)
}

func (r orders) FindByID(ctx context.Context, id primitive.ObjectID) (models.Order, error) {
	return findOne[models.Order](ctx, r.col, byID(id))
}

func (r orders) FindByNumber(ctx context.Context, number string) (models.Order, error) {
	return findOne[models.Order](ctx, r.col, bson.M{"order_number": number})
}

func (r orders) NumberExists(ctx context.Context, number string) (bool, error) {
	n, err := r.col.CountDocuments(ctx, bson.M{"order_number": number}, options.Count().SetLimit(1))
	if err != nil {
		return false, translate(err)
	}
	return n > 0, nil
}

func (r orders) List(ctx context.Context, filter models.OrderFilter) ([]models.Order, error) {
	query := bson.M{}
	if filter.UserID != nil {
		query["user_id"] = *filter.UserID
	}
	if filter.Status != "" {
		query["status"] = filter.Status
	}

	sort := bson.D{{Key: "created_at", Value: -1}, {Key: "_id", Value: -1}}
	switch filter.SortBy {
	case models.SortOldest:
		sort = bson.D{{Key: "created_at", Value: 1}, {Key: "_id", Value: 1}}
	case models.SortStatus:
		sort = bson.D{{Key: "status", Value: 1}, {Key: "created_at", Value: -1}}
	}
	return findAll[models.Order](ctx, r.col, query, options.Find().SetSort(sort))
}

func (r orders) UpdateStatus(ctx context.Context, id primitive.ObjectID, from, to models.OrderStatus, notes *string, at time.Time) error {
	filter, update := statusUpdate(id, from, to, notes, at)
	res, err := r.col.UpdateOne(ctx, filter, update)
	if err != nil {
		return translate(err)
	}
	if res.MatchedCount > 0 {
		return nil
	}

	n, err := r.col.CountDocuments(ctx, byID(id), options.Count().SetLimit(1))
	if err != nil {
		return translate(err)
	}
	if n == 0 {
		return store.ErrNotFound
	}
	return store.ErrStatusChanged
}

// statusUpdate matches the order only while it is still in status from.
func statusUpdate(id primitive.ObjectID, from, to models.OrderStatus, notes *string, at time.Time) (bson.M, bson.M) {
	set := bson.M{"status": to, "updated_at": at}
	if notes != nil {
		set["notes"] = *notes
	}
	return bson.M{"_id": id, "status": from}, bson.M{"$set": set}
}
