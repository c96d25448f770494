package apperror

import (
	"net/http"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
)

func TestStatusMapping(t *testing.T) {
	cases := map[*Error]int{
		Validation("BAD", "bad"):         http.StatusBadRequest,
		InvalidState("STATE", "state"):   http.StatusBadRequest,
		Unauthenticated("AUTH", "auth"):  http.StatusUnauthorized,
		Forbidden("NOPE", "nope"):        http.StatusForbidden,
		NotFound("MISSING", "missing"):   http.StatusNotFound,
		Conflict("DUP", "dup"):           http.StatusConflict,
		Internal(errors.New("db down")): http.StatusInternalServerError,
	}
	for err, status := range cases {
		assert.Equal(t, status, err.Status(), err.Code)
	}
}

func TestFromKeepsWrappedAppErrors(t *testing.T) {
	base := NotFound("ORDER_NOT_FOUND", "Order not found")
	wrapped := errors.Wrap(base, "loading order")

	got := From(wrapped)
	assert.Same(t, base, got)
	assert.True(t, IsKind(wrapped, KindNotFound))
	assert.ErrorIs(t, wrapped, NotFound("ORDER_NOT_FOUND", "other text"))
}

func TestFromHidesUnknownErrors(t *testing.T) {
	got := From(errors.New("connection refused"))

	assert.Equal(t, KindInternal, got.Kind)
	assert.Equal(t, "Internal server error", got.Message)
	assert.EqualError(t, got.Unwrap(), "connection refused")
}
