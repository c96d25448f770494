// Package services holds the business operations behind the HTTP handlers.
// Every failure they return is an *apperror.Error or wraps one.
package services

import (
	"time"

	"github.com/pkg/errors"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"shop_back_end/internal/apperror"
	"shop_back_end/internal/store"
)

type Clock func() time.Time

func utcNow() time.Time { return time.Now().UTC() }

// ParseID decodes a 24-hex-char identifier.
func ParseID(kind, raw string) (primitive.ObjectID, error) {
	id, err := primitive.ObjectIDFromHex(raw)
	if err != nil {
		return primitive.NilObjectID, apperror.Validation("INVALID_ID", "Invalid "+kind+" ID")
	}
	return id, nil
}

// notFoundOr turns store.ErrNotFound into nf and anything else into an
// internal error.
func notFoundOr(err error, nf *apperror.Error) error {
	if errors.Is(err, store.ErrNotFound) {
		return nf
	}
	return apperror.Internal(err)
}
