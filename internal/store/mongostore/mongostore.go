// Package mongostore implements store.Store on MongoDB. Checkout relies on
// multi-document transactions, so the server must run as a replica set.
package mongostore

import (
	"context"
	"strings"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"

	"shop_back_end/internal/store"
)

const (
	colUsers      = "users"
	colCategories = "categories"
	colProducts   = "products"
	colCart       = "cart_items"
	colOrders     = "orders"
)

// unique index name -> field reported in store.DuplicateError
var uniqueIndexes = map[string]string{
	"users_email_unique":       "email",
	"users_username_unique":    "username",
	"cart_user_product_unique": "product_id",
	"orders_number_unique":     "order_number",
}

type Store struct {
	client *mongo.Client
	db     *mongo.Database
}

var _ store.Store = (*Store)(nil)

// Connect dials MongoDB and verifies the connection with a ping.
func Connect(ctx context.Context, uri, database string) (*Store, error) {
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, errors.Wrap(err, "connecting to mongodb")
	}
	s := New(client, database)
	if err := s.Ping(ctx); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, err
	}
	log.WithField("database", database).Info("connected to mongodb")
	return s, nil
}

func New(client *mongo.Client, database string) *Store {
	return &Store{client: client, db: client.Database(database)}
}

func (s *Store) Users() store.Users           { return users{s.db.Collection(colUsers)} }
func (s *Store) Categories() store.Categories { return categories{s.db.Collection(colCategories)} }
func (s *Store) Products() store.Products     { return products{s.db.Collection(colProducts)} }
func (s *Store) Cart() store.Cart             { return cart{s.db.Collection(colCart)} }
func (s *Store) Orders() store.Orders         { return orders{s.db.Collection(colOrders)} }

func (s *Store) WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	session, err := s.client.StartSession()
	if err != nil {
		return errors.Wrap(err, "starting session")
	}
	defer session.EndSession(ctx)

	_, err = session.WithTransaction(ctx, func(sc mongo.SessionContext) (interface{}, error) {
		return nil, fn(sc)
	})
	return err
}

func (s *Store) Ping(ctx context.Context) error {
	return errors.Wrap(s.client.Ping(ctx, readpref.Primary()), "pinging mongodb")
}

func (s *Store) Close(ctx context.Context) error {
	return s.client.Disconnect(ctx)
}

// EnsureIndexes creates the unique and lookup indexes. Safe to run repeatedly.
func (s *Store) EnsureIndexes(ctx context.Context) error {
	specs := map[string][]mongo.IndexModel{
		colUsers: {
			{Keys: bson.D{{Key: "email", Value: 1}}, Options: options.Index().SetName("users_email_unique").SetUnique(true)},
			{Keys: bson.D{{Key: "username", Value: 1}}, Options: options.Index().SetName("users_username_unique").SetUnique(true)},
		},
		colProducts: {
			{Keys: bson.D{{Key: "category", Value: 1}}, Options: options.Index().SetName("products_category")},
			{Keys: bson.D{{Key: "vendor_id", Value: 1}}, Options: options.Index().SetName("products_vendor")},
		},
		colCart: {
			{Keys: bson.D{{Key: "user_id", Value: 1}, {Key: "product_id", Value: 1}}, Options: options.Index().SetName("cart_user_product_unique").SetUnique(true)},
		},
		colOrders: {
			{Keys: bson.D{{Key: "order_number", Value: 1}}, Options: options.Index().SetName("orders_number_unique").SetUnique(true)},
			{Keys: bson.D{{Key: "user_id", Value: 1}, {Key: "created_at", Value: -1}}, Options: options.Index().SetName("orders_user_created")},
			{Keys: bson.D{{Key: "status", Value: 1}}, Options: options.Index().SetName("orders_status")},
		},
	}

	for collection, models := range specs {
		names, err := s.db.Collection(collection).Indexes().CreateMany(ctx, models)
		if err != nil {
			return errors.Wrapf(err, "creating indexes on %s", collection)
		}
		log.WithFields(log.Fields{"collection": collection, "indexes": names}).Info("indexes ensured")
	}
	return nil
}

// translate maps driver errors onto the store sentinels.
func translate(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, mongo.ErrNoDocuments) {
		return store.ErrNotFound
	}
	if mongo.IsDuplicateKeyError(err) {
		for index, field := range uniqueIndexes {
			if strings.Contains(err.Error(), index) {
				return &store.DuplicateError{Field: field}
			}
		}
		return &store.DuplicateError{Field: "unknown"}
	}
	return errors.WithStack(err)
}
