package apperr

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStatusByKind(t *testing.T) {
	cases := []struct {
		err  error
		want int
	}{
		{Validation("bad %s", "input"), http.StatusBadRequest},
		{NotFound("missing"), http.StatusNotFound},
		{Unauthorized("no token"), http.StatusUnauthorized},
		{Forbidden("admins only"), http.StatusForbidden},
		{errors.New("boom"), http.StatusInternalServerError},
		{fmt.Errorf("wrapped: %w", NotFound("order")), http.StatusNotFound},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, Status(tc.err), tc.err.Error())
	}
}

func TestInternalWrapsMessage(t *testing.T) {
	cause := errors.New("connection reset")
	err := Internal(cause, "checking out order")

	assert.Equal(t, "Error while checking out order: connection reset", err.Error())
	assert.ErrorIs(t, err, cause)
	assert.True(t, Is(err, KindInternal))
}

func TestInternalKeepsTypedErrors(t *testing.T) {
	original := Validation("Order is not pending")
	assert.Same(t, original, Internal(original, "adding product"))
	assert.Nil(t, Internal(nil, "anything"))
}
